// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rbtree_test

import (
	"math/rand"
	"sort"
	"testing"

	"code.hybscloud.com/buddyht/rbtree"
)

func TestInsertFindMinMax(t *testing.T) {
	var tr rbtree.Tree[string]

	tr.Insert(5, "five")
	tr.Insert(2, "two")
	tr.Insert(8, "eight")
	tr.Insert(1, "one")
	tr.Insert(9, "nine")

	if tr.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", tr.Len())
	}
	if n := tr.Find(8); n == nil || n.Value != "eight" {
		t.Fatalf("Find(8) = %v, want eight", n)
	}
	if tr.Find(100) != nil {
		t.Fatal("Find(100) should be nil")
	}
	if tr.Min().Key() != 1 {
		t.Fatalf("Min().Key() = %d, want 1", tr.Min().Key())
	}
	if tr.Max().Key() != 9 {
		t.Fatalf("Max().Key() = %d, want 9", tr.Max().Key())
	}
}

func TestInOrderTraversalSorted(t *testing.T) {
	var tr rbtree.Tree[int]
	keys := []uint64{50, 20, 70, 10, 30, 60, 80, 5, 15, 25, 35}
	for _, k := range keys {
		tr.Insert(k, int(k))
	}

	var got []uint64
	for n := tr.Min(); n != nil; n = rbtree.Increment(n) {
		got = append(got, n.Key())
	}

	want := append([]uint64(nil), keys...)
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })

	if len(got) != len(want) {
		t.Fatalf("traversal length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got[%d] = %d, want %d", i, got[i], want[i])
		}
	}

	var rev []uint64
	for n := tr.Max(); n != nil; n = rbtree.Decrement(n) {
		rev = append(rev, n.Key())
	}
	for i := range rev {
		if rev[i] != want[len(want)-1-i] {
			t.Fatalf("reverse traversal mismatch at %d: got %d want %d", i, rev[i], want[len(want)-1-i])
		}
	}
}

func TestDuplicateKeysFindLeft(t *testing.T) {
	var tr rbtree.Tree[int]
	tr.Insert(7, 1)
	tr.Insert(7, 2)
	tr.Insert(7, 3)

	if tr.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", tr.Len())
	}

	n := tr.FindLeft(7)
	if n == nil {
		t.Fatal("FindLeft(7) = nil")
	}
	count := 0
	for ; n != nil && n.Key() == 7; n = rbtree.Increment(n) {
		count++
	}
	if count != 3 {
		t.Fatalf("encountered %d nodes with key 7 from FindLeft, want 3", count)
	}
}

func TestUnlinkPreservesOrderAndCount(t *testing.T) {
	var tr rbtree.Tree[int]
	var nodes []*rbtree.Node[int]
	for i := uint64(0); i < 100; i++ {
		nodes = append(nodes, tr.Insert(i, int(i)))
	}

	r := rand.New(rand.NewSource(1))
	r.Shuffle(len(nodes), func(i, j int) { nodes[i], nodes[j] = nodes[j], nodes[i] })

	for i := 0; i < 40; i++ {
		tr.Unlink(nodes[i])
	}
	if tr.Len() != 60 {
		t.Fatalf("Len() after unlinking 40 = %d, want 60", tr.Len())
	}

	var prev uint64
	first := true
	count := uint(0)
	for n := tr.Min(); n != nil; n = rbtree.Increment(n) {
		if !first && n.Key() < prev {
			t.Fatalf("traversal out of order: %d after %d", n.Key(), prev)
		}
		prev = n.Key()
		first = false
		count++
	}
	if count != tr.Len() {
		t.Fatalf("traversal visited %d nodes, Len() = %d", count, tr.Len())
	}

	if tr.Find(nodes[0].Key()) != nil {
		t.Fatalf("key %d should have been removed", nodes[0].Key())
	}
}

func TestUnlinkAllEmptiesTree(t *testing.T) {
	var tr rbtree.Tree[int]
	var nodes []*rbtree.Node[int]
	for i := uint64(0); i < 30; i++ {
		nodes = append(nodes, tr.Insert(i, int(i)))
	}
	for _, n := range nodes {
		tr.Unlink(n)
	}
	if tr.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", tr.Len())
	}
	if tr.Min() != nil || tr.Max() != nil {
		t.Fatal("Min/Max should be nil on an empty tree")
	}
}
