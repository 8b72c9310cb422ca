package tlsf

import (
	"github.com/clockworklabs/tlsf-go/internal/errors"
	"github.com/clockworklabs/tlsf-go/internal/types"
)

// Alloc returns a reference to a block of at least size bytes, aligned to
// the block alignment. On failure it returns NilRef and an error, and the
// pool is left exactly as it was.
func (p *Pool) Alloc(size uint32) (types.Ref, error) {
	if p.destroyed {
		return types.NilRef, errors.ErrPoolDestroyed
	}
	if p.inISR == nil || !p.inISR() {
		p.lock.Lock()
		defer p.lock.Unlock()
	}
	ref, err := p.allocEx(size)
	if err == nil {
		p.allocs.Add(1)
	}
	return ref, err
}

// Free returns a block to the pool, coalescing it with any free physical
// neighbor. Freeing NilRef is a no-op.
func (p *Pool) Free(ref types.Ref) {
	if p.destroyed || ref == types.NilRef {
		return
	}
	if p.inISR == nil || !p.inISR() {
		p.lock.Lock()
		defer p.lock.Unlock()
	}
	p.freeEx(ref)
	p.frees.Add(1)
}

// Realloc resizes the block at ref to size bytes, in place when the block
// itself or its free successor can accommodate the change, otherwise by
// allocate-copy-free. Realloc(NilRef, n) allocates; Realloc(ref, 0) frees.
// When a needed allocation fails the original block is preserved unchanged.
func (p *Pool) Realloc(ref types.Ref, size uint32) (types.Ref, error) {
	if p.destroyed {
		return types.NilRef, errors.ErrPoolDestroyed
	}
	if p.inISR == nil || !p.inISR() {
		p.lock.Lock()
		defer p.lock.Unlock()
	}
	return p.reallocEx(ref, size)
}

// Calloc allocates n*elemSize bytes and zero-fills them. Zero counts and
// sizes are rejected.
func (p *Pool) Calloc(n, elemSize uint32) (types.Ref, error) {
	if p.destroyed {
		return types.NilRef, errors.ErrPoolDestroyed
	}
	if n == 0 || elemSize == 0 {
		return types.NilRef, errors.ErrZeroCount
	}
	total := uint64(n) * uint64(elemSize)
	if total > types.MaxRequestSize {
		p.status.Store(uint32(types.ErrnoOOMMalloc))
		return types.NilRef, errors.ErrRequestTooLarge
	}
	if p.inISR == nil || !p.inISR() {
		p.lock.Lock()
		defer p.lock.Unlock()
	}
	ref, err := p.allocEx(uint32(total))
	if err != nil {
		return types.NilRef, err
	}
	clear(p.buf[ref : ref+uint32(total)])
	p.allocs.Add(1)
	return ref, nil
}

// allocEx is the unlocked allocation path.
func (p *Pool) allocEx(size uint32) (types.Ref, error) {
	if size < types.MinBlockSize {
		size = types.MinBlockSize
	} else {
		size = roundUpSize(size)
	}

	rounded, fl, sl, ok := mappingSearch(size)
	if !ok {
		p.status.Store(uint32(types.ErrnoOOMMalloc))
		return types.NilRef, errors.ErrRequestTooLarge
	}

	b, fl, sl, found := p.findSuitable(fl, sl)
	if !found && p.growth {
		if p.growPool(rounded) {
			_, fl, sl, _ = mappingSearch(size)
			b, fl, sl, found = p.findSuitable(fl, sl)
		}
	}
	if !found {
		p.status.Store(uint32(types.ErrnoOOMMalloc))
		return types.NilRef, errors.ErrOutOfMemory
	}

	p.extractHead(b, fl, sl)

	nextB := p.nextBlock(b)
	if p.blockSize(b)-rounded >= types.BhdrOverhead+types.MinBlockSize {
		p.splitTail(b, rounded)
	} else {
		p.clearFlags(nextB, types.PrevFree)
		p.clearFlags(b, types.FreeBlock)
	}

	p.addSize(b)
	p.checkCanary(types.ErrnoUsedExceedsPoolMalloc)
	return p.payload(b), nil
}

// splitTail splits block b so it keeps exactly `keep` payload bytes and the
// surplus becomes a new free block published on the matrix. The caller
// guarantees the surplus is at least a header plus a minimum block.
func (p *Pool) splitTail(b types.Ref, keep uint32) {
	total := p.blockSize(b)
	oldNext := b + types.BhdrOverhead + total

	tail := b + types.BhdrOverhead + keep
	tailSize := total - keep - types.BhdrOverhead
	p.setSizeWord(tail, tailSize|types.FreeBlock)
	p.setPrevPhys(oldNext, tail)
	p.orFlags(oldNext, types.PrevFree)

	fl, sl := mappingInsert(tailSize)
	p.insertBlock(tail, fl, sl)

	p.setSizeWord(b, keep|(p.sizeWord(b)&types.PrevFree))
}

// freeEx is the unlocked free path. It returns the header of the block the
// freed bytes ended up in after coalescing.
func (p *Pool) freeEx(ref types.Ref) types.Ref {
	b := p.header(ref)
	p.orFlags(b, types.FreeBlock)
	p.removeSize(b)
	p.setFreePrev(b, types.NilRef)
	p.setFreeNext(b, types.NilRef)

	next := p.nextBlock(b)
	if p.isFree(next) {
		fl, sl := mappingInsert(p.blockSize(next))
		p.extractBlock(next, fl, sl)
		p.setSizeWord(b, p.sizeWord(b)+p.blockSize(next)+types.BhdrOverhead)
	}
	if p.isPrevFree(b) {
		prev := p.prevPhys(b)
		fl, sl := mappingInsert(p.blockSize(prev))
		p.extractBlock(prev, fl, sl)
		p.setSizeWord(prev, p.sizeWord(prev)+p.blockSize(b)+types.BhdrOverhead)
		b = prev
	}

	fl, sl := mappingInsert(p.blockSize(b))
	p.insertBlock(b, fl, sl)

	next = p.nextBlock(b)
	p.orFlags(next, types.PrevFree)
	p.setPrevPhys(next, b)

	p.checkCanary(types.ErrnoUsedExceedsPoolFree)
	return b
}

// reallocEx is the unlocked realloc path.
func (p *Pool) reallocEx(ref types.Ref, newSize uint32) (types.Ref, error) {
	if ref == types.NilRef {
		if newSize == 0 {
			return types.NilRef, nil
		}
		r, err := p.allocEx(newSize)
		if err == nil {
			p.allocs.Add(1)
		}
		return r, err
	}
	if newSize == 0 {
		p.freeEx(ref)
		p.frees.Add(1)
		return types.NilRef, nil
	}

	if newSize < types.MinBlockSize {
		newSize = types.MinBlockSize
	} else {
		newSize = roundUpSize(newSize)
	}

	b := p.header(ref)
	next := p.nextBlock(b)
	cur := p.blockSize(b)

	if newSize <= cur {
		// Shrink in place. A free successor is folded in first so the tail
		// split reenters one maximal free block.
		p.removeSize(b)
		if p.isFree(next) {
			fl, sl := mappingInsert(p.blockSize(next))
			p.extractBlock(next, fl, sl)
			p.setSizeWord(b, p.sizeWord(b)+p.blockSize(next)+types.BhdrOverhead)
		}
		if p.blockSize(b)-newSize >= types.BhdrOverhead+types.MinBlockSize {
			p.splitTail(b, newSize)
		}
		p.addSize(b)
		return ref, nil
	}

	if p.isFree(next) && newSize <= cur+p.blockSize(next)+types.BhdrOverhead {
		// Grow in place by absorbing the free successor.
		p.removeSize(b)
		fl, sl := mappingInsert(p.blockSize(next))
		p.extractBlock(next, fl, sl)
		p.setSizeWord(b, p.sizeWord(b)+p.blockSize(next)+types.BhdrOverhead)
		next = p.nextBlock(b)
		p.setPrevPhys(next, b)
		p.clearFlags(next, types.PrevFree)
		if p.blockSize(b)-newSize >= types.BhdrOverhead+types.MinBlockSize {
			p.splitTail(b, newSize)
		}
		p.addSize(b)
		return ref, nil
	}

	// Copy path: the original block is untouched unless the new
	// allocation succeeds.
	newRef, err := p.allocEx(newSize)
	if err != nil {
		return types.NilRef, err
	}
	p.allocs.Add(1)
	n := cur
	if newSize < n {
		n = newSize
	}
	copy(p.buf[newRef:newRef+n], p.buf[ref:ref+n])
	p.freeEx(ref)
	p.frees.Add(1)
	return newRef, nil
}

// growPool asks the memory for at least `need` more bytes and hands the new
// range to the pool as an area.
func (p *Pool) growPool(need uint32) bool {
	areaSize := need + 8*types.BhdrOverhead
	if areaSize < types.DefaultAreaSize {
		areaSize = types.DefaultAreaSize
	}
	areaSize = alignGrow(areaSize)

	oldLen := uint32(len(p.buf))
	base := roundUpSize(oldLen)
	if !p.mem.Grow(areaSize + (base - oldLen)) {
		return false
	}
	p.buf = p.mem.Bytes()
	if _, err := p.addArea(base, uint32(len(p.buf))-base); err != nil {
		return false
	}
	p.grows.Add(1)
	return true
}
