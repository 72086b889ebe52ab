// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package buddy

import "fmt"

// Alloc reserves a block of at least size bytes from ctx, splitting the
// smallest available free block down to the required size class. If no
// block is large enough and OnDemandAlloc is set, a new standard page
// is allocated first. Requests larger than one standard page are
// served as extra blocks when ExtraAlloc is set.
//
// Alloc returns ErrNotInit if ctx has not been acquired, ErrOutOfMemory
// if no suitably sized memory can be produced (including a request
// larger than one page while ExtraAlloc is disabled), and ErrInvalid if
// size is not positive.
func (ctx *Context) Alloc(size int) (*Block, error) {
	return ctx.allocLabeled(size, label{})
}

// MustAlloc is Alloc, but panics instead of returning an error when ctx
// was created with [WithPanicOnOOM]; otherwise it returns nil on error
// exactly as Alloc would, leaving the error recorded on ctx.LastError.
func (ctx *Context) MustAlloc(size int) *Block {
	b, err := ctx.Alloc(size)
	if err != nil {
		if ctx.cfg.panicOnOOM {
			panic(err)
		}
		return nil
	}
	return b
}

// MustCalloc is Calloc, but panics instead of returning an error when
// ctx was created with [WithPanicOnOOM]; see [Context.MustAlloc].
func (ctx *Context) MustCalloc(nmemb, size int) *Block {
	b, err := ctx.Calloc(nmemb, size)
	if err != nil {
		if ctx.cfg.panicOnOOM {
			panic(err)
		}
		return nil
	}
	return b
}

// MustStrdup is Strdup, but panics instead of returning an error when
// ctx was created with [WithPanicOnOOM]; see [Context.MustAlloc].
func (ctx *Context) MustStrdup(s string) *Block {
	b, err := ctx.Strdup(s)
	if err != nil {
		if ctx.cfg.panicOnOOM {
			panic(err)
		}
		return nil
	}
	return b
}

// MustRealloc is Realloc, but panics instead of returning an error when
// ctx was created with [WithPanicOnOOM]; see [Context.MustAlloc].
func (ctx *Context) MustRealloc(b *Block, newSize int) *Block {
	nb, err := ctx.Realloc(b, newSize)
	if err != nil {
		if ctx.cfg.panicOnOOM {
			panic(err)
		}
		return nil
	}
	return nb
}

// AllocAutolabel behaves like Alloc but additionally records file, fn
// and line as the block's leak-tracking label. It is meant to be called
// through a thin per-package wrapper that captures its own caller via
// runtime.Caller, the way callers use fmt.Errorf with %w: the wrapper
// supplies the label, this method does the allocation.
func (ctx *Context) AllocAutolabel(size int, file, fn string, line int, tag string) (*Block, error) {
	return ctx.allocLabeled(size, label{file: file, fn: fn, line: line, tag: tag})
}

func (ctx *Context) allocLabeled(size int, lbl label) (*Block, error) {
	if ctx == nil {
		return nil, ErrNotInit
	}
	if ctx.destroyPending {
		return nil, ctx.setErr(ErrInUse)
	}

	ctx.drainToBeFreed()

	if size <= 0 {
		return nil, ctx.setErr(fmt.Errorf("%w: size must be positive", ErrInvalid))
	}

	k := sizeClassFor(size)
	pageK := ctx.stdSizeK

	if k > pageK {
		if !ctx.cfg.ExtraAlloc {
			ctx.log.errorf("allocation too large and extra allocation disabled", "size", size)
			return nil, ctx.setErr(ErrOutOfMemory)
		}
		return ctx.allocExtra(size, lbl)
	}

	actK, head := ctx.freeIdx.smallestAvailable(k, pageK)
	var b *Block
	if head != nil {
		b = head
	} else if ctx.cfg.OnDemandAlloc {
		b = ctx.newStdPage()
		actK = pageK
	} else {
		ctx.log.errorf("out of memory and on-demand allocation disabled", "size", size)
		return nil, ctx.setErr(ErrOutOfMemory)
	}

	ctx.freeIdx.remove(ctx.log, b)

	if b.isRootPage() {
		ctx.stats.onUseStdPage()
	}

	for actK > k {
		actK--
		buddy := ctx.splitOff(b, actK)
		ctx.freeIdx.insert(ctx.log, buddy)
	}

	b.st = statusUsed
	b.mg = magicUsed
	b.owner = ctx
	b.userSize = size
	b.label = lbl
	ctx.track(b)

	ctx.stats.onUseStdMemSpace(uint64(size))

	ctx.log.debugf("allocated block", "size", size, "block", b.String())
	return b, nil
}

// splitOff halves b in place, returning its new buddy as a free block
// of size class newK. b keeps the lower half of the address range when
// the two halves are not already distinguished by offset parity; the
// original implementation always grows the buddy at the offset formed
// by flipping bit newK, which this preserves via buddyOffset.
func (ctx *Context) splitOff(b *Block, newK uint8) *Block {
	b.k = newK
	buddyOff := buddyOffset(b.offset, newK)
	buddy := &Block{
		pg:    b.pg,
		offset: buddyOff,
		st:    statusFree,
		mg:    magicFree,
		k:     newK,
		baseK: b.baseK,
		owner: ctx,
	}
	return buddy
}

func (ctx *Context) allocExtra(size int, lbl label) (*Block, error) {
	buf := make([]byte, size)
	b := &Block{
		st:       statusUsed,
		mg:       magicUsed,
		owner:    ctx,
		extraLen: size,
		userSize: size,
		label:    lbl,
		extraBuf: buf,
	}
	ctx.track(b)
	ctx.stats.onAddExtraPage(uint64(size))
	ctx.log.debugf("allocated extra block", "size", size)
	return b, nil
}

// Free releases b back to its owning Context. If the calling goroutine
// does not own b (b.owner != ctx), the block is queued on the owner's
// to-be-freed list and reclaimed the next time the owner calls into the
// allocator; this is always safe even if the owner is concurrently
// calling Destroy.
//
// Free returns ErrDoubleFree if b has already been freed.
func (ctx *Context) Free(b *Block) error {
	if b == nil {
		return nil
	}
	if b.mg != magicUsed {
		ctx.log.errorf("double free or corrupted block", "block", b.String())
		return ctx.setErr(ErrDoubleFree)
	}

	owner := b.owner
	owner.untrack(b)

	if owner == ctx {
		owner.reclaim(b)
	} else {
		b.mg = magicFree
		owner.deferFree(b)
	}
	return nil
}

func (ctx *Context) freeExtra(b *Block) {
	ctx.stats.onRemoveExtraPage(uint64(b.extraLen))
	b.extraBuf = nil
	ctx.log.debugf("freed extra block", "size", b.extraLen)
}

// Calloc is Alloc followed by zeroing the returned block's bytes.
func (ctx *Context) Calloc(nmemb, size int) (*Block, error) {
	b, err := ctx.Alloc(nmemb * size)
	if err != nil {
		return nil, err
	}
	buf := b.bytes()
	for i := range buf {
		buf[i] = 0
	}
	return b, nil
}

// Strdup copies s into a newly allocated block large enough to hold it
// and returns the block. The block's Bytes may be longer than len(s).
func (ctx *Context) Strdup(s string) (*Block, error) {
	b, err := ctx.Alloc(len(s))
	if err != nil {
		return nil, err
	}
	copy(b.bytes(), s)
	return b, nil
}

// Realloc resizes b to newSize, allocating a fresh block and copying
// the overlapping prefix when the existing block's size class cannot
// hold newSize in place. The original block is freed once the copy (if
// any) completes successfully.
func (ctx *Context) Realloc(b *Block, newSize int) (*Block, error) {
	if b == nil {
		return ctx.Alloc(newSize)
	}
	if newSize <= 0 {
		if err := ctx.Free(b); err != nil {
			return nil, err
		}
		return nil, nil
	}

	if !b.isExtra() {
		capacity := (uintptr(1) << b.k) - headerSize
		if uintptr(newSize) <= capacity {
			oldSize := b.userSize
			b.userSize = newSize
			switch {
			case newSize > oldSize:
				ctx.stats.onUseStdMemSpace(uint64(newSize - oldSize))
			case newSize < oldSize:
				ctx.stats.onFreeStdMemSpace(uint64(oldSize - newSize))
			}
			return b, nil
		}
	}

	nb, err := ctx.Alloc(newSize)
	if err != nil {
		return nil, err
	}
	n := copy(nb.bytes(), b.bytes())
	_ = n
	if err := ctx.Free(b); err != nil {
		return nil, err
	}
	return nb, nil
}

// Check verifies that b carries a live magic number and, unless
// allowForeign is true, that it is owned by ctx. It returns ErrFault if
// the magic number is corrupted and ErrNotOwnedHere if ownership does
// not match and allowForeign is false.
func (ctx *Context) Check(b *Block, allowForeign bool) error {
	if b == nil {
		return ctx.setErr(ErrInvalid)
	}
	if b.mg != magicUsed {
		ctx.log.errorf("corrupted block detected", "block", b.String())
		if ctx.cfg.panicOnCorrupt {
			panic(ErrFault)
		}
		return ctx.setErr(ErrFault)
	}
	if !allowForeign && b.owner != ctx {
		return ctx.setErr(ErrNotOwnedHere)
	}
	return nil
}
