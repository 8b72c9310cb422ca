package tlsf

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clockworklabs/tlsf-go/internal/types"
)

// checkInvariants verifies the structural invariants of the pool: eager
// coalescing, free-list membership, bitmap consistency, boundary-tag
// agreement, area termination and the accounting bounds.
func checkInvariants(t *testing.T, p *Pool) {
	t.Helper()

	freeSet := make(map[types.Ref]uint32)
	var freeTotal uint64
	usedBlocks := 0
	areas := 0

	for ai := p.readWord(p.base + ctlAreaHead); ai != types.NilRef; ai = p.readWord(ai + areaNext) {
		areas++
		h := ai - types.BhdrOverhead
		prevFree := false
		prevRef := types.NilRef
		for {
			size := p.blockSize(h)
			free := p.isFree(h)

			// Boundary tags agree with the actual neighbor state.
			require.Equal(t, prevFree, p.isPrevFree(h),
				"block 0x%x prev-free tag disagrees with neighbor", h)
			if prevFree {
				require.Equal(t, prevRef, p.prevPhys(h),
					"block 0x%x prev-physical link is stale", h)
			}

			if free {
				// Eager coalescing: no two adjacent free blocks.
				require.False(t, prevFree,
					"adjacent free blocks at 0x%x", h)
				freeSet[h] = size
				freeTotal += uint64(size)
			} else {
				usedBlocks++
			}

			if size == 0 {
				// The sentinel terminates the walk and must be the block
				// the area descriptor points at.
				require.False(t, free, "sentinel 0x%x must be used", h)
				require.Equal(t, p.readWord(ai+areaEnd), h,
					"physical walk must end at the area sentinel")
				break
			}
			prevFree = free
			prevRef = h
			h = p.nextBlock(h)
		}
	}

	// Every free block is reachable through exactly one class list, the
	// class mappingInsert assigns it, and the bitmaps mirror the lists.
	matrixSet := make(map[types.Ref]struct{})
	for fl := 0; fl < types.RealFLI; fl++ {
		slWord := p.slBitmap(fl)
		require.Equal(t, slWord != 0, p.flBitmap()&(1<<uint(fl)) != 0,
			"fl bitmap bit %d disagrees with sl word", fl)
		for sl := 0; sl < types.MaxSLI; sl++ {
			head := p.matrixHead(fl, sl)
			require.Equal(t, head != types.NilRef, slWord&(1<<uint(sl)) != 0,
				"sl bitmap bit [%d][%d] disagrees with list head", fl, sl)
			prev := types.NilRef
			for b := head; b != types.NilRef; b = p.freeNext(b) {
				require.True(t, p.isFree(b), "list block 0x%x not marked free", b)
				require.Equal(t, prev, p.freePrev(b), "free list back-link broken at 0x%x", b)
				wantFl, wantSl := mappingInsert(p.blockSize(b))
				require.Equal(t, wantFl, fl, "block 0x%x in wrong row", b)
				require.Equal(t, wantSl, sl, "block 0x%x in wrong class", b)
				_, dup := matrixSet[b]
				require.False(t, dup, "block 0x%x linked twice", b)
				matrixSet[b] = struct{}{}
				prev = b
			}
		}
	}
	require.Equal(t, len(freeSet), len(matrixSet),
		"physical free blocks and listed free blocks differ")
	for b := range freeSet {
		_, ok := matrixSet[b]
		require.True(t, ok, "free block 0x%x missing from the matrix", b)
	}

	// Accounting: used plus free payload tracks capacity within the
	// per-block bookkeeping band.
	used := uint64(p.UsedSize())
	diff := int64(used+freeTotal) - int64(p.capacity)
	require.Zero(t, diff%8, "accounting drift must be whole headers")
	require.GreaterOrEqual(t, diff, int64(-8*(areas-1)))
	require.LessOrEqual(t, diff, int64(8*usedBlocks))

	require.GreaterOrEqual(t, p.MaxSize(), p.UsedSize())
}

func TestInvariantsAfterInit(t *testing.T) {
	p, _ := newTestPool(t, 4096)
	checkInvariants(t, p)
}

func TestInvariantsUnderRandomWorkload(t *testing.T) {
	p, _ := newTestPool(t, 32*1024)
	baseline := p.UsedSize()
	rng := rand.New(rand.NewSource(1))

	type live struct {
		ref  types.Ref
		size uint32
	}
	var blocks []live

	fill := func(b live) {
		payload := p.Bytes(b.ref, b.size)
		for i := range payload {
			payload[i] = byte(b.ref)
		}
	}
	verify := func(b live) {
		for i, v := range p.Bytes(b.ref, b.size) {
			require.Equalf(t, byte(b.ref), v, "payload of 0x%x damaged at %d", b.ref, i)
		}
	}

	maxMark := p.MaxSize()
	for i := 0; i < 400; i++ {
		switch op := rng.Intn(10); {
		case op < 4 || len(blocks) == 0:
			size := uint32(1 + rng.Intn(400))
			ref, err := p.Alloc(size)
			if err == nil {
				b := live{ref, size}
				fill(b)
				blocks = append(blocks, b)
			}
		case op < 7:
			j := rng.Intn(len(blocks))
			verify(blocks[j])
			p.Free(blocks[j].ref)
			blocks = append(blocks[:j], blocks[j+1:]...)
		case op < 9:
			j := rng.Intn(len(blocks))
			old := blocks[j]
			verify(old)
			newSize := uint32(1 + rng.Intn(600))
			ref, err := p.Realloc(old.ref, newSize)
			if err == nil {
				keep := old.size
				if newSize < keep {
					keep = newSize
				}
				for i, v := range p.Bytes(ref, keep) {
					require.Equalf(t, byte(old.ref), v,
						"realloc lost payload byte %d", i)
				}
				blocks[j] = live{ref, newSize}
				fill(blocks[j])
			} else {
				// Failed realloc preserves the original.
				verify(old)
			}
		default:
			n := uint32(1 + rng.Intn(16))
			ref, err := p.Calloc(n, 8)
			if err == nil {
				for _, v := range p.Bytes(ref, n*8) {
					require.Zero(t, v)
				}
				b := live{ref, n * 8}
				fill(b)
				blocks = append(blocks, b)
			}
		}

		require.GreaterOrEqual(t, p.MaxSize(), maxMark, "high-water mark receded")
		maxMark = p.MaxSize()
		if i%8 == 0 {
			checkInvariants(t, p)
		}
	}

	for _, b := range blocks {
		verify(b)
		p.Free(b.ref)
	}
	checkInvariants(t, p)

	require.Equal(t, baseline, p.UsedSize(),
		"freeing everything must restore the initial accounting")
	require.Len(t, freeBlocks(p), p.Stats().Areas,
		"each area must coalesce back to one free block")
}
