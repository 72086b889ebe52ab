// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package buddy

import (
	"fmt"
	"sync"

	"code.hybscloud.com/spin"
)

// Context is a single owner's view of the allocator: its own standard
// pages, its own free index, and the accounting needed to safely hand
// blocks to, and receive blocks freed by, other goroutines.
//
// A Context is not safe for concurrent use by multiple goroutines. The
// normal pattern is one Context per goroutine, acquired once via
// [Runtime.Acquire] and reused for the goroutine's lifetime.
type Context struct {
	rt  *Runtime
	cfg Config
	log logSink

	stdSizeK uint8
	freeIdx  freeIndex
	stats    Stats

	// liveCount is the number of blocks currently checked out of ctx
	// that have not yet been freed, tracked regardless of
	// cfg.leakTracking. Destroy uses it to detect outstanding blocks.
	liveCount uint

	// allocatedList threads every still-live block this context has
	// handed out, for leak reporting at Destroy time. Unused unless
	// cfg.leakTracking is set.
	allocatedList *Block

	// toBeFreed holds blocks freed by a goroutine other than their
	// owner. They are spliced into the owner's free index the next
	// time the owner allocates or calls Destroy.
	toBeFreedMu sync.Mutex
	toBeFreed   *Block

	destroyPending bool
	lastErr        error

	// registry linkage, guarded by rt.mu.
	prev, next *Context
}

// Runtime is a process-wide registry of active contexts plus the
// object pool definitions shared across all of them. The zero value is
// not usable; use [NewRuntime].
type Runtime struct {
	mu       sync.Mutex
	head     *Context
	poolsMu  sync.Mutex
	pools    map[string]*poolDef
}

// NewRuntime creates an empty registry. A process normally creates one
// Runtime and shares it across every goroutine that calls [Runtime.Acquire].
func NewRuntime() *Runtime {
	return &Runtime{pools: make(map[string]*poolDef)}
}

// Acquire creates a new Context owned by the calling goroutine,
// configured by opts, and gives it one initial standard page regardless
// of OnDemandAlloc. The caller must retain the returned Context and pass
// it to every subsequent allocator call it makes; it must not be shared
// with another goroutine without external synchronization.
//
// Acquire fails with ErrMalloc if the initial page cannot be allocated.
func (rt *Runtime) Acquire(opts ...Option) (ctx *Context, err error) {
	cfg := NewConfig(opts...)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	ctx = &Context{
		rt:       rt,
		cfg:      cfg,
		log:      newLogSink(cfg.logger),
		stdSizeK: log2Ceil(uintptr(cfg.PageSize)),
	}
	ctx.stats.StdPageSize = uint64(cfg.PageSize)

	if err := ctx.allocInitialPage(); err != nil {
		return nil, err
	}

	rt.mu.Lock()
	ctx.next = rt.head
	if rt.head != nil {
		rt.head.prev = ctx
	}
	rt.head = ctx
	rt.mu.Unlock()

	return ctx, nil
}

// allocInitialPage gives ctx its first standard page. newStdPage only
// ever fails by panicking (make's out-of-memory behavior), so that panic
// is recovered here and turned into ErrMalloc, matching the ground-truth
// init routine's BUDDY_ERR_MALLOC return on a failed first page.
func (ctx *Context) allocInitialPage() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrMalloc, r)
		}
	}()
	ctx.newStdPage()
	return nil
}

// Destroy releases ctx. It first drains the to-be-freed list, then
// fails with [ErrInUse] if blocks allocated from ctx are still
// outstanding and have not been returned via Free.
//
// A Destroy that fails leaves ctx usable as before: it is not left
// destroy-pending, Alloc keeps working, and Free calls from other
// goroutines keep queueing their blocks until ctx drains them; a later
// Free does not finish the teardown, Destroy has to be called again.
// After a Destroy that succeeds, any attempt to Alloc from ctx fails
// with ErrInUse.
func (ctx *Context) Destroy() error {
	ctx.destroyPending = true
	ctx.drainToBeFreed()

	if ctx.liveCount != 0 {
		ctx.destroyPending = false
		return ErrInUse
	}

	ctx.rt.mu.Lock()
	if ctx.prev != nil {
		ctx.prev.next = ctx.next
	} else {
		ctx.rt.head = ctx.next
	}
	if ctx.next != nil {
		ctx.next.prev = ctx.prev
	}
	ctx.rt.mu.Unlock()

	return nil
}

// Stats returns a snapshot of ctx's current memory accounting.
func (ctx *Context) Stats() Stats {
	return ctx.stats
}

// LastError returns the error recorded by the most recent failing
// allocator call made through ctx, or nil. It is overwritten by each
// call that fails and is not cleared by calls that succeed; it exists
// for callers that prefer to check it after a sequence of operations
// rather than thread an error return through every call.
func (ctx *Context) LastError() error {
	return ctx.lastErr
}

func (ctx *Context) setErr(err error) error {
	ctx.lastErr = err
	return err
}

// deferFree is called by Free when the block being freed belongs to a
// different Context than the caller's. The block is pushed onto the
// owner's to-be-freed list under a short lock instead of being spliced
// into the owner's free index directly, since the free index itself is
// single-goroutine-only.
func (owner *Context) deferFree(b *Block) {
	owner.toBeFreedMu.Lock()
	b.next = owner.toBeFreed
	owner.toBeFreed = b
	owner.toBeFreedMu.Unlock()
}

// drainToBeFreed splices every block queued by other goroutines into
// ctx's own free index, merging buddies as it goes. It is called at
// the start of every allocation (Alloc and the calls built on it) and
// by Destroy; Free, Check and an in-place Realloc do not drain.
func (ctx *Context) drainToBeFreed() {
	ctx.toBeFreedMu.Lock()
	head := ctx.toBeFreed
	ctx.toBeFreed = nil
	ctx.toBeFreedMu.Unlock()

	w := spin.Wait{}
	for head != nil {
		next := head.next
		head.next = nil
		ctx.reclaim(head)
		head = next
		w.Once()
	}
}

// reclaim marks b free, merges it with its buddy as far as possible,
// and inserts the result into the free index. It assumes b is already
// unlinked from any list it was on.
func (ctx *Context) reclaim(b *Block) {
	if b.isExtra() {
		ctx.freeExtra(b)
		return
	}

	b.st = statusFree
	b.mg = magicFree
	ctx.stats.onFreeStdMemSpace(uint64(b.userSize))

	for b.k < b.baseK {
		budOff := buddyOffset(b.offset, b.k)
		buddy := ctx.findFreeAt(b.pg, budOff, b.k)
		if buddy == nil {
			break
		}
		ctx.freeIdx.remove(ctx.log, buddy)
		if budOff < b.offset {
			b.offset = budOff
		}
		b.k++
	}

	ctx.freeIdx.insert(ctx.log, b)

	if b.isRootPage() {
		ctx.stats.onFreeStdPage()
		if ctx.cfg.FreeAreas {
			ctx.garbageCollectMerged(b)
		}
	}
}

// findFreeAt reports the free block at the given page/offset/size
// class, if ctx's free index is currently tracking one, by scanning
// the size class's list. Standard pages rarely hold more than a
// handful of blocks per class, so linear scan is sufficient.
func (ctx *Context) findFreeAt(pg *page, offset uintptr, k uint8) *Block {
	for b := ctx.freeIdx.heads[k]; b != nil; b = b.next {
		if b.pg == pg && b.offset == offset {
			return b
		}
	}
	return nil
}

// untrack retires b from ctx's bookkeeping: the live count always, and
// the leak-tracking list when cfg.leakTracking is set.
func (ctx *Context) untrack(b *Block) {
	ctx.liveCount--

	if !ctx.cfg.leakTracking {
		return
	}
	if b.prevAliveRef != nil {
		*b.prevAliveRef = b.nextAlive
	}
	if b.nextAlive != nil {
		b.nextAlive.prevAliveRef = b.prevAliveRef
	}
	b.nextAlive = nil
	b.prevAliveRef = nil
}

// track records b as checked out of ctx: the live count always, and the
// leak-tracking list (callsite/label, for [Runtime.LabelSummary] and
// [Context.CountLabel]) when cfg.leakTracking is set.
func (ctx *Context) track(b *Block) {
	ctx.liveCount++

	if !ctx.cfg.leakTracking {
		return
	}
	b.nextAlive = ctx.allocatedList
	if ctx.allocatedList != nil {
		ctx.allocatedList.prevAliveRef = &b.nextAlive
	}
	ctx.allocatedList = b
	b.prevAliveRef = &ctx.allocatedList
}
