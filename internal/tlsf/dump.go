package tlsf

import (
	"fmt"
	"io"

	"github.com/clockworklabs/tlsf-go/internal/types"
)

// BlockInfo describes one physical block during a walk.
type BlockInfo struct {
	Header   types.Ref
	Size     uint32
	Free     bool
	PrevFree bool
	Sentinel bool
}

// String returns a one-line description of the block.
func (bi BlockInfo) String() string {
	state := "used"
	if bi.Free {
		state = "free"
	}
	if bi.Sentinel {
		return fmt.Sprintf("block{ref: 0x%x, sentinel, prevFree: %t}", bi.Header, bi.PrevFree)
	}
	return fmt.Sprintf("block{ref: 0x%x, size: %d, %s, prevFree: %t}",
		bi.Header, bi.Size, state, bi.PrevFree)
}

// WalkBlocks visits every physical block of every area in address order
// within each area, sentinel included. The visitor returns false to stop.
// The caller must serialize against mutation.
func (p *Pool) WalkBlocks(visit func(area int, bi BlockInfo) bool) {
	area := 0
	for ai := p.readWord(p.base + ctlAreaHead); ai != types.NilRef; ai = p.readWord(ai + areaNext) {
		h := ai - types.BhdrOverhead
		for {
			size := p.blockSize(h)
			bi := BlockInfo{
				Header:   h,
				Size:     size,
				Free:     p.isFree(h),
				PrevFree: p.isPrevFree(h),
				Sentinel: size == 0,
			}
			if !visit(area, bi) {
				return
			}
			if bi.Sentinel {
				break
			}
			h = p.nextBlock(h)
		}
		area++
	}
}

// DumpPool writes the bitmaps and every free-list class to w.
func (p *Pool) DumpPool(w io.Writer) {
	fmt.Fprintf(w, "pool at 0x%x\n", p.base)
	fmt.Fprintf(w, "fl bitmap: 0x%08x\n", p.flBitmap())
	for fl := 0; fl < types.RealFLI; fl++ {
		if p.slBitmap(fl) == 0 {
			continue
		}
		fmt.Fprintf(w, "sl bitmap[%d]: 0x%08x\n", fl, p.slBitmap(fl))
		for sl := 0; sl < types.MaxSLI; sl++ {
			b := p.matrixHead(fl, sl)
			if b == types.NilRef {
				continue
			}
			fmt.Fprintf(w, "-> [%d][%d]\n", fl, sl)
			for ; b != types.NilRef; b = p.freeNext(b) {
				fmt.Fprintf(w, "   free{ref: 0x%x, size: %d}\n", b, p.blockSize(b))
			}
		}
	}
}

// DumpBlocks writes a physical walk of every area to w.
func (p *Pool) DumpBlocks(w io.Writer) {
	fmt.Fprintf(w, "pool at 0x%x, all blocks\n", p.base)
	p.WalkBlocks(func(area int, bi BlockInfo) bool {
		fmt.Fprintf(w, "area %d %s\n", area, bi)
		return true
	})
}
