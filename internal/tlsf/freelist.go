package tlsf

import "github.com/clockworklabs/tlsf-go/internal/types"

// Free-list matrix and bitmap maintenance. The matrix stores the head
// reference of each (fl, sl) class; a first-level bit is set while any
// class under that row is non-empty, a second-level bit while its class
// list is non-empty.

func (p *Pool) flBitmap() uint32 {
	return p.readWord(p.base + ctlFlBitmap)
}

func (p *Pool) slBitmap(fl int) uint32 {
	return p.readWord(p.base + ctlSlBitmap + uint32(fl)*types.WordSize)
}

func (p *Pool) matrixHead(fl, sl int) types.Ref {
	return p.readWord(p.base + ctlMatrix + uint32(fl*types.MaxSLI+sl)*types.WordSize)
}

func (p *Pool) setMatrixHead(fl, sl int, b types.Ref) {
	p.writeWord(p.base+ctlMatrix+uint32(fl*types.MaxSLI+sl)*types.WordSize, b)
}

func (p *Pool) markClass(fl, sl int) {
	slWord := p.slBitmap(fl)
	setBit(sl, &slWord)
	p.writeWord(p.base+ctlSlBitmap+uint32(fl)*types.WordSize, slWord)
	flWord := p.flBitmap()
	setBit(fl, &flWord)
	p.writeWord(p.base+ctlFlBitmap, flWord)
}

// unmarkClass clears the class bit and, when the row empties, the row bit.
func (p *Pool) unmarkClass(fl, sl int) {
	slWord := p.slBitmap(fl)
	clearBit(sl, &slWord)
	p.writeWord(p.base+ctlSlBitmap+uint32(fl)*types.WordSize, slWord)
	if slWord == 0 {
		flWord := p.flBitmap()
		clearBit(fl, &flWord)
		p.writeWord(p.base+ctlFlBitmap, flWord)
	}
}

// findSuitable returns the head of the smallest non-empty class at or
// above (fl, sl). found is false when every class at or above is empty.
func (p *Pool) findSuitable(fl, sl int) (b types.Ref, outFl, outSl int, found bool) {
	tmp := p.slBitmap(fl) & (^uint32(0) << uint(sl))
	if tmp != 0 {
		sl = lsBit(tmp)
		return p.matrixHead(fl, sl), fl, sl, true
	}
	rows := p.flBitmap() & (^uint32(0) << uint(fl+1))
	if rows == 0 {
		return types.NilRef, 0, 0, false
	}
	fl = lsBit(rows)
	sl = lsBit(p.slBitmap(fl))
	return p.matrixHead(fl, sl), fl, sl, true
}

// insertBlock prepends b to its class list and marks the bitmaps.
func (p *Pool) insertBlock(b types.Ref, fl, sl int) {
	head := p.matrixHead(fl, sl)
	p.setFreePrev(b, types.NilRef)
	p.setFreeNext(b, head)
	if head != types.NilRef {
		p.setFreePrev(head, b)
	}
	p.setMatrixHead(fl, sl, b)
	p.markClass(fl, sl)
}

// extractHead unlinks the head block b of class (fl, sl).
func (p *Pool) extractHead(b types.Ref, fl, sl int) {
	next := p.freeNext(b)
	p.setMatrixHead(fl, sl, next)
	if next != types.NilRef {
		p.setFreePrev(next, types.NilRef)
	} else {
		p.unmarkClass(fl, sl)
	}
	p.setFreePrev(b, types.NilRef)
	p.setFreeNext(b, types.NilRef)
}

// extractBlock unlinks b from anywhere in its class list.
func (p *Pool) extractBlock(b types.Ref, fl, sl int) {
	next := p.freeNext(b)
	prev := p.freePrev(b)
	if next != types.NilRef {
		p.setFreePrev(next, prev)
	}
	if prev != types.NilRef {
		p.setFreeNext(prev, next)
	}
	if p.matrixHead(fl, sl) == b {
		p.setMatrixHead(fl, sl, next)
		if next == types.NilRef {
			p.unmarkClass(fl, sl)
		}
	}
	p.setFreePrev(b, types.NilRef)
	p.setFreeNext(b, types.NilRef)
}
