// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package buddy

// freeIndex is the per-owner array of doubly linked free lists, one per
// size class. It is never touched by more than one goroutine: the
// owning Context is the only caller.
type freeIndex struct {
	heads [maxLog2 + 1]*Block
}

// insert prepends b to the free list for its size class in O(1). A bad
// magic number on b or its former head is logged but not treated as
// fatal; callers are expected to have just marked b free.
func (fi *freeIndex) insert(log logSink, b *Block) {
	if b.mg != magicFree {
		log.warnf("insert_free_block: bad magic on inserted block", "block", b.String())
	}
	head := fi.heads[b.k]
	if head != nil && head.mg != magicFree {
		log.warnf("insert_free_block: bad magic on current head", "block", head.String())
	}
	b.next = head
	b.prev = nil
	if head != nil {
		head.prev = b
	}
	fi.heads[b.k] = b
}

// remove unlinks b from its size-class free list in O(1) using its
// prev/next pointers.
func (fi *freeIndex) remove(log logSink, b *Block) {
	if b.mg != magicFree {
		log.warnf("remove_free_block: bad magic on removed block", "block", b.String())
	}
	prev, next := b.prev, b.next
	if prev != nil {
		if prev.mg != magicFree {
			log.warnf("remove_free_block: bad magic on prev", "block", prev.String())
		}
		prev.next = next
	} else {
		fi.heads[b.k] = next
	}
	if next != nil {
		if next.mg != magicFree {
			log.warnf("remove_free_block: bad magic on next", "block", next.String())
		}
		next.prev = prev
	}
	b.prev, b.next = nil, nil
}

// smallestAvailable scans size classes [from, to] and returns the
// smallest one with a free block, or nil if none exists.
func (fi *freeIndex) smallestAvailable(from, to uint8) (uint8, *Block) {
	for k := from; k <= to; k++ {
		if fi.heads[k] != nil {
			return k, fi.heads[k]
		}
		if k == to {
			break
		}
	}
	return 0, nil
}
