// Package tlsf implements a two-level segregated fit allocator over a
// linear memory. Every public operation runs in bounded constant time with
// respect to the number of live blocks: size classes are selected with two
// bitmap scans, and coalescing is O(1) through in-band boundary tags.
//
// All allocator state (control block, bitmaps, free-list matrix, area list)
// lives little-endian inside the managed bytes themselves, so a pool can be
// re-attached to an already-initialized memory and block references survive
// a reallocation of the backing slice.
package tlsf

import (
	"sync/atomic"

	"github.com/clockworklabs/tlsf-go/internal/errors"
	"github.com/clockworklabs/tlsf-go/internal/platform"
	"github.com/clockworklabs/tlsf-go/internal/types"
)

// Control block layout, relative to the pool base. The matrix rows follow
// the bitmaps; the whole block is a multiple of the block alignment so the
// first area starts aligned.
const (
	ctlSignature = 0
	ctlUsedSize  = 4
	ctlMaxSize   = 8
	ctlAreaHead  = 12
	ctlFlBitmap  = 16
	ctlSlBitmap  = 20
	ctlMatrix    = ctlSlBitmap + types.RealFLI*types.WordSize
	ctlSize      = ctlMatrix + types.RealFLI*types.MaxSLI*types.WordSize

	// minPoolSize is the smallest region Init accepts: the control block
	// plus room for a handful of headers.
	minPoolSize = ctlSize + 8*types.BhdrOverhead
	// minAreaSize is the smallest region AddArea accepts: area descriptor
	// block, one usable block and the sentinel.
	minAreaSize = 8 * types.BhdrOverhead
)

// Area descriptor layout, stored in the payload of each area's first block:
// the sentinel reference and the next area's descriptor reference.
const (
	areaEnd  = 0
	areaNext = types.WordSize
)

// Pool is a TLSF pool over a linear memory. Alloc, Free, Realloc, Calloc
// and AddArea serialize through the pool's Serializer unless the interrupt
// check reports an interrupt context. The other methods do not take the
// Serializer.
type Pool struct {
	mem Memory
	buf []byte

	base     uint32
	capacity uint32
	growth   bool

	lock      platform.Serializer
	inISR     platform.InterruptCheck
	destroyed bool

	status atomic.Uint32 // most recent types.Errno

	allocs atomic.Uint64
	frees  atomic.Uint64
	grows  atomic.Uint64
}

// Option configures a Pool.
type Option func(*Pool)

// WithSerializer replaces the default serializer.
func WithSerializer(s platform.Serializer) Option {
	return func(p *Pool) { p.lock = s }
}

// WithInterruptCheck installs the interrupt-context query. Entry points
// skip the serializer while it reports true; see platform.InterruptCheck
// for the guarantees the caller takes over.
func WithInterruptCheck(check platform.InterruptCheck) Option {
	return func(p *Pool) { p.inISR = check }
}

// WithGrowth enables the growth path: an allocation that finds no suitable
// block asks the Memory to grow and retries once.
func WithGrowth(enabled bool) Option {
	return func(p *Pool) { p.growth = enabled }
}

// New creates a pool over mem. The pool is unusable until Init.
func New(mem Memory, opts ...Option) *Pool {
	p := &Pool{
		mem:  mem,
		lock: platform.NewSerializer(),
	}
	for _, o := range opts {
		o(p)
	}
	if mem != nil {
		p.buf = mem.Bytes()
	}
	return p
}

// Stats is a snapshot of the pool counters.
type Stats struct {
	UsedSize uint32
	MaxSize  uint32
	Capacity uint32
	Areas    int
	Allocs   uint64
	Frees    uint64
	Grows    uint64
}

// Init initializes the pool over [base, base+size) of the memory. It
// returns the number of usable bytes. Initializing a region that already
// carries a live pool signature is idempotent: the region is left untouched
// and the current size of its first payload block is returned.
func (p *Pool) Init(base, size uint32) (uint32, error) {
	if p.mem == nil {
		return 0, errors.ErrInvalidPool
	}
	p.buf = p.mem.Bytes()
	if size < minPoolSize || base&types.PtrMask != 0 ||
		uint64(base)+uint64(size) > uint64(len(p.buf)) {
		return 0, errors.ErrInvalidPool
	}

	p.base = base
	p.destroyed = false
	if p.lock == nil {
		p.lock = platform.NewSerializer()
	}
	if p.readWord(base+ctlSignature) == types.Signature {
		if p.capacity == 0 {
			p.capacity = size
		}
		ib := base + ctlSize
		return p.blockSize(p.nextBlock(ib)), nil
	}

	clear(p.buf[base : base+ctlSize])
	p.writeWord(base+ctlSignature, types.Signature)
	p.capacity = size

	// Seed the counter high enough that publishing the central block does
	// not underflow it; the exact value is written below.
	p.writeWord(base+ctlUsedSize, size)

	ib := p.processArea(base+ctlSize, roundDownSize(size-ctlSize))
	b := p.nextBlock(ib)
	p.freeEx(p.payload(b))
	p.writeWord(base+ctlAreaHead, p.payload(ib))

	usable := p.blockSize(b)
	p.writeWord(base+ctlUsedSize, size-usable)
	p.writeWord(base+ctlMaxSize, size-usable)
	return usable, nil
}

// Destroy clears the pool signature and detaches the serializer. The
// backing memory stays with the caller.
func (p *Pool) Destroy() {
	if p.destroyed || p.mem == nil || len(p.buf) == 0 {
		return
	}
	p.writeWord(p.base+ctlSignature, 0)
	p.destroyed = true
	p.lock = nil
}

// AddArea hands [base, base+size) of the memory to the pool as a further
// area. Areas physically adjacent to an existing one are merged with it;
// others are linked into the area list. Returns the size of the free block
// the new area's bytes end up in; when that block coalesced with an
// existing free block, the size includes the existing block's bytes.
func (p *Pool) AddArea(base, size uint32) (uint32, error) {
	if p.destroyed {
		return 0, errors.ErrPoolDestroyed
	}
	if p.inISR == nil || !p.inISR() {
		p.lock.Lock()
		defer p.lock.Unlock()
	}
	return p.addArea(base, size)
}

// addArea is AddArea without serialization, shared with the growth path.
func (p *Pool) addArea(base, size uint32) (uint32, error) {
	p.buf = p.mem.Bytes()
	if size < minAreaSize || base&types.PtrMask != 0 ||
		uint64(base)+uint64(size) > uint64(len(p.buf)) {
		return 0, errors.ErrInvalidPool
	}

	clear(p.buf[base : base+size])

	ib0 := p.processArea(base, size)
	b0 := p.nextBlock(ib0)
	lb0 := p.nextBlock(b0)

	// Merge the new area with any physically contiguous existing one
	// before inserting it in the list.
	ptr := p.readWord(p.base + ctlAreaHead)
	ptrPrev := types.NilRef
	for ptr != types.NilRef {
		ib1 := ptr - types.BhdrOverhead
		b1 := p.nextBlock(ib1)
		lb1 := p.readWord(ptr + areaEnd)

		switch {
		case ib1 == lb0+types.BhdrOverhead:
			// The new area ends exactly where this one begins: fuse the
			// new central block with this area's descriptor block.
			p.unlinkArea(ptr, ptrPrev)
			ptr = p.readWord(ptr + areaNext)
			p.setSizeWord(b0, roundDownSize(
				p.blockSize(b0)+p.blockSize(ib1)+2*types.BhdrOverhead))
			p.setPrevPhys(b1, b0)
			lb0 = lb1

		case lb1+types.BhdrOverhead == ib0:
			// This area's sentinel sits exactly where the new area
			// begins: extend the sentinel over the bridge.
			p.unlinkArea(ptr, ptrPrev)
			next := p.readWord(ptr + areaNext)
			p.setSizeWord(lb1, roundDownSize(
				p.blockSize(b0)+p.blockSize(ib0)+2*types.BhdrOverhead)|
				(p.sizeWord(lb1)&types.PrevFree))
			nb := p.nextBlock(lb1)
			p.setPrevPhys(nb, lb1)
			b0 = lb1
			ib0 = ib1
			ptr = next

		default:
			ptrPrev = ptr
			ptr = p.readWord(ptr + areaNext)
		}
	}

	ai := p.payload(ib0)
	p.writeWord(ai+areaNext, p.readWord(p.base+ctlAreaHead))
	p.writeWord(ai+areaEnd, lb0)
	p.writeWord(p.base+ctlAreaHead, ai)

	p.capacity += size
	p.writeWord(p.base+ctlUsedSize, p.readWord(p.base+ctlUsedSize)+size)
	final := p.freeEx(p.payload(b0))
	if used := p.readWord(p.base + ctlUsedSize); used > p.readWord(p.base+ctlMaxSize) {
		p.writeWord(p.base+ctlMaxSize, used)
	}
	return p.blockSize(final), nil
}

// unlinkArea removes an area descriptor from the area list.
func (p *Pool) unlinkArea(ptr, ptrPrev types.Ref) {
	next := p.readWord(ptr + areaNext)
	if p.readWord(p.base+ctlAreaHead) == ptr {
		p.writeWord(p.base+ctlAreaHead, next)
	} else {
		p.writeWord(ptrPrev+areaNext, next)
	}
}

// processArea lays an area out as descriptor block, one central block
// covering the bulk, and the zero-size sentinel. The central block is left
// marked used; the caller frees it to publish it on the matrix.
func (p *Pool) processArea(area, size uint32) types.Ref {
	ibSize := uint32(types.MinBlockSize)
	if s := roundUpSize(areaInfoSize); s > ibSize {
		ibSize = s
	}
	ib := area
	p.setSizeWord(ib, ibSize)

	b := p.nextBlock(ib)
	p.setSizeWord(b, roundDownSize(size-3*types.BhdrOverhead-ibSize))
	p.setFreePrev(b, types.NilRef)
	p.setFreeNext(b, types.NilRef)

	lb := p.nextBlock(b)
	p.setPrevPhys(lb, b)
	p.setSizeWord(lb, 0|types.PrevFree)

	ai := p.payload(ib)
	p.writeWord(ai+areaNext, types.NilRef)
	p.writeWord(ai+areaEnd, lb)
	return ib
}

// areaInfoSize is the byte size of an area descriptor.
const areaInfoSize = 2 * types.WordSize

// UsedSize returns the bytes currently accounted as used, headers and
// per-area structure included.
func (p *Pool) UsedSize() uint32 {
	if len(p.buf) == 0 {
		return 0
	}
	return p.readWord(p.base + ctlUsedSize)
}

// MaxSize returns the high-water mark of UsedSize.
func (p *Pool) MaxSize() uint32 {
	if len(p.buf) == 0 {
		return 0
	}
	return p.readWord(p.base + ctlMaxSize)
}

// Errno returns the most recent failure code. It is sticky until the next
// failure overwrites it.
func (p *Pool) Errno() types.Errno {
	return types.Errno(p.status.Load())
}

// Bytes returns a writable window over n payload bytes at ref. The window
// is invalidated by the next pool growth.
func (p *Pool) Bytes(ref types.Ref, n uint32) []byte {
	return p.buf[ref : ref+n]
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	s := Stats{
		UsedSize: p.UsedSize(),
		MaxSize:  p.MaxSize(),
		Capacity: p.capacity,
		Allocs:   p.allocs.Load(),
		Frees:    p.frees.Load(),
		Grows:    p.grows.Load(),
	}
	if len(p.buf) != 0 && !p.destroyed &&
		p.readWord(p.base+ctlSignature) == types.Signature {
		for ai := p.readWord(p.base + ctlAreaHead); ai != types.NilRef; ai = p.readWord(ai + areaNext) {
			s.Areas++
		}
	}
	return s
}

// addSize accounts an allocated block and updates the high-water mark.
func (p *Pool) addSize(b types.Ref) {
	used := p.readWord(p.base+ctlUsedSize) + p.blockSize(b) + types.BhdrOverhead
	p.writeWord(p.base+ctlUsedSize, used)
	if used > p.readWord(p.base+ctlMaxSize) {
		p.writeWord(p.base+ctlMaxSize, used)
	}
}

// removeSize reverses addSize for a block being freed.
func (p *Pool) removeSize(b types.Ref) {
	p.writeWord(p.base+ctlUsedSize,
		p.readWord(p.base+ctlUsedSize)-p.blockSize(b)-types.BhdrOverhead)
}

// checkCanary latches the corruption canary when the used-size counter
// exceeds the pool capacity. The pool keeps running; the code tells the
// host the heap has been damaged.
func (p *Pool) checkCanary(code types.Errno) {
	if p.readWord(p.base+ctlUsedSize) > p.capacity {
		p.status.Store(uint32(code))
	}
}
