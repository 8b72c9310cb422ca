package tlsf

import "github.com/clockworklabs/tlsf-go/internal/types"

// roundUpSize rounds r up to the block alignment.
func roundUpSize(r uint32) uint32 {
	return (r + types.MemAlignMask) &^ uint32(types.MemAlignMask)
}

// roundDownSize rounds r down to the block alignment.
func roundDownSize(r uint32) uint32 {
	return r &^ uint32(types.MemAlignMask)
}

// mappingInsert classifies a block of size r into the class that owns it.
//
// Sizes at or above MaxBlockSize cannot be represented in the matrix; they
// are clamped into the top class. Blocks there are all at least as large as
// the top class start, so the search guarantee (every block in a class is
// >= the class start) still holds for every request mappingSearch accepts.
func mappingInsert(r uint32) (fl, sl int) {
	if r < types.SmallBlock {
		return 0, int(r / types.SmallBlockStep)
	}
	if r >= types.MaxBlockSize {
		return types.RealFLI - 1, types.MaxSLI - 1
	}
	m := msBit(r)
	fl = m - types.FLIOffset
	sl = int(r>>uint(m-types.MaxLog2SLI)) - types.MaxSLI
	return fl, sl
}

// mappingSearch rounds a request r up to the start of the next class
// boundary and classifies the rounded size, so that every block in the
// returned class is guaranteed to be at least r bytes. The rounded size is
// returned. ok is false when the rounded request exceeds the largest class.
func mappingSearch(r uint32) (rounded uint32, fl, sl int, ok bool) {
	if r < types.SmallBlock {
		fl, sl = mappingInsert(r)
		return r, fl, sl, true
	}
	t := uint32(1)<<uint(msBit(r)-types.MaxLog2SLI) - 1
	r += t
	r &^= t
	if r >= types.MaxBlockSize {
		return 0, 0, 0, false
	}
	fl, sl = mappingInsert(r)
	return r, fl, sl, true
}
