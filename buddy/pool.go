// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package buddy

import (
	"fmt"
	"sync"

	"code.hybscloud.com/iox"
)

// poolDef is the shared, process-wide definition of one named pool:
// the entry size, the constructor hook every slot gets when a slab is
// grown, and the destructor hook an entry gets when it is Put back. It
// is registered once per name on a
// Runtime and then used by every Context that calls [Runtime.Pool].
type poolDef struct {
	name        string
	entrySize   int
	slotsPerSlab int
	ctor        func(entry []byte)
	dtor        func(entry []byte)

	mu          sync.Mutex
	slabs       []*slab
	totalAlloc  int
	inUse       int
	highWater   int
}

// slab is one buddy allocation backing slotsPerSlab entries of a pool,
// threaded into a free list of not-yet-handed-out slots.
type slab struct {
	block *Block
	def   *poolDef
	free  []int // indices into the slab not currently in use
}

// preferredPoolCount rounds a requested slot count up to the largest
// count whose slab still fits the buddy block that requested slots would
// occupy: the block for requested*entrySize bytes plus the block header
// is a power of two, and the returned count fills that block's payload
// so the slab wastes none of it.
func preferredPoolCount(requested, entrySize int) int {
	if requested <= 0 {
		requested = 1
	}
	if entrySize <= 0 {
		return requested
	}
	blockSize := uintptr(1) << log2Ceil(uintptr(requested*entrySize)+headerSize)
	return int(blockSize-headerSize) / entrySize
}

// Pool returns the shared definition for name, creating it with the
// given entry size and hooks on first use. Subsequent calls with the
// same name on the same Runtime return the same definition regardless
// of the entrySize/ctor/dtor arguments passed; only the first caller's
// values take effect.
func (rt *Runtime) Pool(name string, entrySize int, ctor, dtor func(entry []byte)) *poolDef {
	rt.poolsMu.Lock()
	defer rt.poolsMu.Unlock()
	if pd, ok := rt.pools[name]; ok {
		return pd
	}
	pd := &poolDef{
		name:         name,
		entrySize:    entrySize,
		slotsPerSlab: preferredPoolCount(16, entrySize),
		ctor:         ctor,
		dtor:         dtor,
	}
	rt.pools[name] = pd
	return pd
}

// Get returns a free entry from pd, growing it with a new slab
// allocated from ctx if every existing slab is fully in use. Entries are
// zeroed and passed to the constructor once, when their slab is grown;
// an entry reused after Put is not cleared again.
//
// If growing the pool fails because a cross-owner free is still in
// flight on ctx's to-be-freed list, Get retries with adaptive waiting
// (iox.Backoff) rather than failing immediately: the memory needed may
// become available as soon as that free is drained on a subsequent
// allocator call. It gives up after a bounded number of attempts and
// returns an error that wraps iox.ErrWouldBlock and includes the text of
// the last growth error.
func (ctx *Context) Get(pd *poolDef) ([]byte, error) {
	if entry, ok := ctx.tryTakeFree(pd); ok {
		return entry, nil
	}

	var aw iox.Backoff
	var lastErr error
	for attempt := 0; attempt < 8; attempt++ {
		pd.mu.Lock()
		s, err := ctx.growPool(pd)
		if err == nil {
			idx := s.free[len(s.free)-1]
			s.free = s.free[:len(s.free)-1]
			pd.inUse++
			if pd.inUse > pd.highWater {
				pd.highWater = pd.inUse
			}
			entry := pd.entryAt(s, idx)
			pd.mu.Unlock()
			return entry, nil
		}
		pd.mu.Unlock()
		lastErr = err

		if entry, ok := ctx.tryTakeFree(pd); ok {
			return entry, nil
		}
		aw.Wait()
	}
	return nil, fmt.Errorf("pool %q exhausted after retry: %w: %v", pd.name, iox.ErrWouldBlock, lastErr)
}

// tryTakeFree claims a free slot from any existing slab without
// growing the pool.
func (ctx *Context) tryTakeFree(pd *poolDef) ([]byte, bool) {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	for _, s := range pd.slabs {
		if len(s.free) > 0 {
			idx := s.free[len(s.free)-1]
			s.free = s.free[:len(s.free)-1]
			pd.inUse++
			if pd.inUse > pd.highWater {
				pd.highWater = pd.inUse
			}
			return pd.entryAt(s, idx), true
		}
	}
	return nil, false
}

// growPool allocates one new slab for pd from ctx and appends it to
// pd.slabs. Caller must hold pd.mu.
func (ctx *Context) growPool(pd *poolDef) (*slab, error) {
	total := pd.slotsPerSlab * pd.entrySize
	block, err := ctx.Alloc(total)
	if err != nil {
		return nil, err
	}
	s := &slab{block: block, def: pd}
	s.free = make([]int, pd.slotsPerSlab)
	for i := range s.free {
		s.free[i] = i
	}
	block.poolSlab = s
	for i := 0; i < pd.slotsPerSlab; i++ {
		entry := pd.entryAt(s, i)
		for j := range entry {
			entry[j] = 0
		}
		if pd.ctor != nil {
			pd.ctor(entry)
		}
	}
	pd.slabs = append(pd.slabs, s)
	pd.totalAlloc += pd.slotsPerSlab
	return s, nil
}

func (pd *poolDef) entryAt(s *slab, idx int) []byte {
	buf := s.block.bytes()
	off := idx * pd.entrySize
	return buf[off : off+pd.entrySize]
}

// Put returns entry, previously obtained from pd.Get, back to its
// slab's free list. It does not free the slab's underlying block even
// if every entry in it becomes free again. Slab blocks are never
// returned to the Context: they stay allocated, so a Context that has
// grown a pool slab keeps reporting them as outstanding to Destroy.
func (ctx *Context) Put(pd *poolDef, entry []byte) {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	for _, s := range pd.slabs {
		buf := s.block.bytes()
		idx := -1 // slot index of entry within buf, if it lies there
		for off := 0; off+pd.entrySize <= len(buf); off += pd.entrySize {
			if &buf[off] == &entry[0] {
				idx = off / pd.entrySize
				break
			}
		}
		if idx < 0 {
			continue
		}
		if pd.dtor != nil {
			pd.dtor(entry)
		}
		s.free = append(s.free, idx)
		pd.inUse--
		return
	}
}

// Summary reports pd's current slab usage.
func (pd *poolDef) Summary() PoolSummary {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	return PoolSummary{
		Name:           pd.name,
		Slabs:          len(pd.slabs),
		SlotsPerSlab:   pd.slotsPerSlab,
		EntrySize:      pd.entrySize,
		TotalAllocated: pd.totalAlloc,
		InUse:          pd.inUse,
		HighWater:      pd.highWater,
	}
}

// PoolSummaries returns a Summary for every pool registered on rt, in
// no particular order.
func (rt *Runtime) PoolSummaries() []PoolSummary {
	rt.poolsMu.Lock()
	defer rt.poolsMu.Unlock()
	out := make([]PoolSummary, 0, len(rt.pools))
	for _, pd := range rt.pools {
		out = append(out, pd.Summary())
	}
	return out
}
