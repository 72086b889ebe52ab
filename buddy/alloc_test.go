// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package buddy_test

import (
	"testing"

	"code.hybscloud.com/buddyht/buddy"
)

func TestAllocFree_Basic(t *testing.T) {
	rt := buddy.NewRuntime()
	ctx, err := rt.Acquire(buddy.WithPageSize(4096))
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	b, err := ctx.Alloc(128)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if len(b.Bytes()) < 128 {
		t.Fatalf("Bytes() length = %d, want >= 128", len(b.Bytes()))
	}
	copy(b.Bytes(), []byte("hello"))

	if err := ctx.Free(b); err != nil {
		t.Fatalf("Free: %v", err)
	}
	if err := ctx.Free(b); err == nil {
		t.Fatal("second Free on same block should fail")
	}
}

func TestAllocSplitsAndMergesBuddies(t *testing.T) {
	rt := buddy.NewRuntime()
	ctx, err := rt.Acquire(buddy.WithPageSize(4096))
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	a, err := ctx.Alloc(32)
	if err != nil {
		t.Fatalf("Alloc a: %v", err)
	}
	c, err := ctx.Alloc(32)
	if err != nil {
		t.Fatalf("Alloc c: %v", err)
	}

	if err := ctx.Free(a); err != nil {
		t.Fatalf("Free a: %v", err)
	}
	if err := ctx.Free(c); err != nil {
		t.Fatalf("Free c: %v", err)
	}

	// After freeing both small blocks the whole page should have merged
	// back together: a subsequent allocation near the page size should
	// succeed without growing a second page.
	big, err := ctx.Alloc(3000)
	if err != nil {
		t.Fatalf("Alloc big after merge: %v", err)
	}
	if err := ctx.Free(big); err != nil {
		t.Fatalf("Free big: %v", err)
	}
}

func TestAllocExtraBlock(t *testing.T) {
	rt := buddy.NewRuntime()
	ctx, err := rt.Acquire(buddy.WithPageSize(4096), buddy.WithExtraAlloc(true))
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	b, err := ctx.Alloc(1 << 20)
	if err != nil {
		t.Fatalf("Alloc extra: %v", err)
	}
	if len(b.Bytes()) != 1<<20 {
		t.Fatalf("extra block length = %d, want %d", len(b.Bytes()), 1<<20)
	}
	if err := ctx.Free(b); err != nil {
		t.Fatalf("Free extra: %v", err)
	}
}

func TestAllocExtraDisabled(t *testing.T) {
	rt := buddy.NewRuntime()
	ctx, err := rt.Acquire(buddy.WithPageSize(4096), buddy.WithExtraAlloc(false))
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	if _, err := ctx.Alloc(1 << 20); err == nil {
		t.Fatal("expected error allocating beyond page size with extra alloc disabled")
	}
}

func TestOnDemandAllocDisabledOOM(t *testing.T) {
	rt := buddy.NewRuntime()
	ctx, err := rt.Acquire(buddy.WithPageSize(4096), buddy.WithOnDemandAlloc(false))
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	// Acquire always seeds ctx with one initial standard page, so the
	// first allocation succeeds even with on-demand allocation disabled.
	// Consume the whole page in one block, then a second allocation has
	// nowhere left to come from.
	if _, err := ctx.Alloc(4096 - 64); err != nil {
		t.Fatalf("Alloc consuming initial page: %v", err)
	}

	if _, err := ctx.Alloc(128); err == nil {
		t.Fatal("expected out-of-memory error once the initial page is exhausted and on-demand is disabled")
	}
}

func TestReallocGrowsAndCopies(t *testing.T) {
	rt := buddy.NewRuntime()
	ctx, err := rt.Acquire(buddy.WithPageSize(4096))
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	b, err := ctx.Alloc(16)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	copy(b.Bytes(), []byte("payload"))

	nb, err := ctx.Realloc(b, 256)
	if err != nil {
		t.Fatalf("Realloc: %v", err)
	}
	if string(nb.Bytes()[:7]) != "payload" {
		t.Fatalf("Realloc did not preserve prefix: got %q", nb.Bytes()[:7])
	}
	if err := ctx.Free(nb); err != nil {
		t.Fatalf("Free: %v", err)
	}
}

func TestStrdup(t *testing.T) {
	rt := buddy.NewRuntime()
	ctx, err := rt.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	b, err := ctx.Strdup("ganesha")
	if err != nil {
		t.Fatalf("Strdup: %v", err)
	}
	if got := string(b.Bytes()[:len("ganesha")]); got != "ganesha" {
		t.Fatalf("Strdup content = %q, want %q", got, "ganesha")
	}
}

func TestCrossContextFreeIsDeferred(t *testing.T) {
	rt := buddy.NewRuntime()
	owner, err := rt.Acquire(buddy.WithPageSize(4096))
	if err != nil {
		t.Fatalf("Acquire owner: %v", err)
	}
	other, err := rt.Acquire(buddy.WithPageSize(4096))
	if err != nil {
		t.Fatalf("Acquire other: %v", err)
	}

	b, err := owner.Alloc(64)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}

	// Freeing from a goroutine/context that does not own b must succeed
	// without touching owner's free index directly.
	if err := other.Free(b); err != nil {
		t.Fatalf("cross-context Free: %v", err)
	}

	// Owner reclaims it on its next allocator call.
	if _, err := owner.Alloc(64); err != nil {
		t.Fatalf("Alloc after cross-context free: %v", err)
	}
}

func TestDestroyFailsWithOutstandingBlocks(t *testing.T) {
	rt := buddy.NewRuntime()
	ctx, err := rt.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	b, err := ctx.Alloc(32)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}

	if err := ctx.Destroy(); err == nil {
		t.Fatal("expected Destroy to fail with outstanding blocks")
	}

	if err := ctx.Free(b); err != nil {
		t.Fatalf("Free: %v", err)
	}
	if err := ctx.Destroy(); err != nil {
		t.Fatalf("Destroy after draining: %v", err)
	}
}

func TestGarbageCollectionKeepsMinimum(t *testing.T) {
	rt := buddy.NewRuntime()
	ctx, err := rt.Acquire(
		buddy.WithPageSize(4096),
		buddy.WithKeepMinimum(2),
		buddy.WithKeepFactor(1),
	)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	var blocks []*buddy.Block
	for i := 0; i < 4; i++ {
		b, err := ctx.Alloc(3000)
		if err != nil {
			t.Fatalf("Alloc %d: %v", i, err)
		}
		blocks = append(blocks, b)
	}
	for _, b := range blocks {
		if err := ctx.Free(b); err != nil {
			t.Fatalf("Free: %v", err)
		}
	}

	// KeepMinimum=2 should stop garbage collection from dropping the
	// last two pages even though nothing is in use.
	if ctx.Stats().NbStdPages < 2 {
		t.Fatalf("NbStdPages = %d, want >= 2 (KeepMinimum)", ctx.Stats().NbStdPages)
	}
}
