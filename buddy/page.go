// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package buddy

// newStdPage allocates a fresh standard page from the system allocator,
// marks it as a single free root block, and inserts it into the owner's
// free index.
func (ctx *Context) newStdPage() *Block {
	k := ctx.stdSizeK
	buf := make([]byte, uintptr(1)<<k)
	pg := &page{buf: buf, baseK: k}
	b := &Block{
		pg:     pg,
		offset: 0,
		st:     statusFree,
		mg:     magicFree,
		k:      k,
		baseK:  k,
		owner:  ctx,
	}
	ctx.freeIdx.insert(ctx.log, b)
	ctx.stats.onNewStdPage()
	return b
}

// isRootPage reports whether b is the unsplit, whole-page block for its
// page: offset 0 and its size class equal to the page's base size class.
func (b *Block) isRootPage() bool {
	return !b.isExtra() && b.offset == 0 && b.k == b.baseK
}
