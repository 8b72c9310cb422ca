package tlsf

import (
	"encoding/binary"

	"github.com/clockworklabs/tlsf-go/internal/types"
)

// Block header layout, relative to the header reference h:
//
//	h+0  prev-physical reference (meaningful only while PrevFree is set)
//	h+4  size word: payload size | flag bits
//	h+8  payload; while the block is free the first two words hold the
//	     free-list links (prev at h+8, next at h+12)
//
// All words are little-endian, the byte order of the linear memory.
const (
	hdrPrevPhys  = 0
	hdrSize      = types.WordSize
	hdrPayload   = types.BhdrOverhead
	linkPrevFree = types.BhdrOverhead
	linkNextFree = types.BhdrOverhead + types.WordSize
)

func (p *Pool) readWord(off uint32) uint32 {
	return binary.LittleEndian.Uint32(p.buf[off:])
}

func (p *Pool) writeWord(off, v uint32) {
	binary.LittleEndian.PutUint32(p.buf[off:], v)
}

// sizeWord returns the raw size word of block h, flags included.
func (p *Pool) sizeWord(h types.Ref) uint32 {
	return p.readWord(h + hdrSize)
}

func (p *Pool) setSizeWord(h types.Ref, v uint32) {
	p.writeWord(h+hdrSize, v)
}

// blockSize returns the payload size of block h.
func (p *Pool) blockSize(h types.Ref) uint32 {
	return p.sizeWord(h) & types.SizeMask
}

func (p *Pool) isFree(h types.Ref) bool {
	return p.sizeWord(h)&types.FreeBlock != 0
}

func (p *Pool) isPrevFree(h types.Ref) bool {
	return p.sizeWord(h)&types.PrevFree != 0
}

func (p *Pool) orFlags(h types.Ref, flags uint32) {
	p.setSizeWord(h, p.sizeWord(h)|flags)
}

func (p *Pool) clearFlags(h types.Ref, flags uint32) {
	p.setSizeWord(h, p.sizeWord(h)&^flags)
}

// prevPhys returns the back-reference to the physically previous block.
// Only meaningful while h carries PrevFree.
func (p *Pool) prevPhys(h types.Ref) types.Ref {
	return p.readWord(h + hdrPrevPhys)
}

func (p *Pool) setPrevPhys(h, prev types.Ref) {
	p.writeWord(h+hdrPrevPhys, prev)
}

// nextBlock returns the header of the physically next block. The zero-size
// sentinel at each area's end keeps this from running off the area.
func (p *Pool) nextBlock(h types.Ref) types.Ref {
	return h + types.BhdrOverhead + p.blockSize(h)
}

// payload returns the payload reference handed to callers.
func (p *Pool) payload(h types.Ref) types.Ref {
	return h + hdrPayload
}

// header recovers the block header from a payload reference.
func (p *Pool) header(ref types.Ref) types.Ref {
	return ref - hdrPayload
}

// Free-list links, overlaying the payload of free blocks.

func (p *Pool) freePrev(h types.Ref) types.Ref {
	return p.readWord(h + linkPrevFree)
}

func (p *Pool) setFreePrev(h, v types.Ref) {
	p.writeWord(h+linkPrevFree, v)
}

func (p *Pool) freeNext(h types.Ref) types.Ref {
	return p.readWord(h + linkNextFree)
}

func (p *Pool) setFreeNext(h, v types.Ref) {
	p.writeWord(h+linkNextFree, v)
}
