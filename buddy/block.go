// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package buddy

import "fmt"

// magic distinguishes a live block from a free one; any other value
// means the header has been corrupted.
type magic uint32

const (
	magicFree magic = 0xF4EEB10C
	magicUsed magic = 0x1D0BE1AE
)

type status uint8

const (
	statusFree status = iota
	statusUsed
)

const (
	// maxLog2 is the largest size-class index a block can carry.
	maxLog2 = 63

	// headerSize is the logical per-block header overhead charged
	// against size-class arithmetic. Block keeps its header as a
	// side-table struct rather than overlaying it on raw bytes, but
	// still reserves this many bytes of every size class so that
	// k = ceil_log2(size + header) lines up with a page laid out as
	// contiguous, evenly-split power-of-two regions.
	headerSize = 64

	// minFreeBody is the minimum payload a block must reserve so that
	// a free block's prev/next links would fit if they were overlaid
	// directly on its bytes.
	minFreeBody = 16

	// minAllocSize is the smallest request size size-class math uses.
	minAllocSize = minFreeBody
)

// page is a single power-of-two-sized memory area obtained from the
// system allocator, represented as a plain byte slice plus the log2 of
// its size so buddy offsets are computed with integer arithmetic
// instead of pointer arithmetic.
type page struct {
	buf   []byte
	baseK uint8
}

// Block is the header-equivalent side-table entry for one allocation or
// free region. Its address (the *Block pointer itself) is the O(1)
// handle the public API hands back to callers: a stable, cheap-to-copy
// reference to memory that is never itself relocated.
type Block struct {
	pg     *page  // nil for extra (oversized) blocks
	offset uintptr

	st    status
	mg    magic
	k     uint8 // current size class
	baseK uint8 // size class of the containing page (== k for extra blocks, unused)

	owner    *Context
	extraLen int // total allocation size in bytes, extra blocks only

	// free-list links, valid only while st == statusFree.
	prev, next *Block

	// label, userSize and poolSlab are always set; the nextAlive and
	// prevAliveRef leak-tracking links are maintained only when the
	// owning context enables leak tracking.
	label        label
	nextAlive    *Block
	prevAliveRef **Block
	poolSlab     *slab
	userSize     int

	extraBuf []byte // backs bytes() when isExtra() is true
}

type label struct {
	file string
	fn   string
	line int
	tag  string
}

func (l label) isZero() bool {
	return l.file == "" && l.fn == "" && l.line == 0 && l.tag == ""
}

// isExtra reports whether b is an oversized block served directly by the
// system allocator rather than split out of a standard page.
func (b *Block) isExtra() bool {
	return b.pg == nil
}

// bytes returns the payload slice a caller may read/write. For standard
// blocks this is a sub-slice of the containing page's buffer; for extra
// blocks it is the whole allocation.
func (b *Block) bytes() []byte {
	if b.isExtra() {
		return b.extraBuf
	}
	size := (uintptr(1) << b.k) - headerSize
	return b.pg.buf[b.offset+headerSize : b.offset+headerSize+size]
}

// Bytes returns the payload slice backing b. Its length is the size
// class's usable capacity, which may be larger than the size originally
// requested from Alloc; callers that need the exact requested size
// should track it themselves or slice the result.
func (b *Block) Bytes() []byte {
	return b.bytes()
}

// buddyOffset returns the offset (within the same page) of the buddy of
// a block at the given offset and size class: offset XOR (1<<k).
func buddyOffset(offset uintptr, k uint8) uintptr {
	return offset ^ (uintptr(1) << k)
}

// log2Ceil returns the smallest k such that 1<<k >= size.
func log2Ceil(size uintptr) uint8 {
	var k uint8
	v := uintptr(1)
	for v < size && k < maxLog2 {
		v <<= 1
		k++
	}
	return k
}

// sizeClassFor returns the size class needed to hold a user request of
// reqSize bytes including header overhead: the smallest k such that
// (1<<k) >= reqSize+headerSize and (1<<k) >= headerSize+minFreeBody.
func sizeClassFor(reqSize int) uint8 {
	n := reqSize
	if n < minAllocSize {
		n = minAllocSize
	}
	return log2Ceil(uintptr(n + headerSize))
}

func (b *Block) String() string {
	if b == nil {
		return "<nil>"
	}
	if b.isExtra() {
		return fmt.Sprintf("Block{extra,len=%d,status=%d}", b.extraLen, b.st)
	}
	return fmt.Sprintf("Block{off=%d,k=%d,baseK=%d,status=%d}", b.offset, b.k, b.baseK, b.st)
}
