package tlsf

import "math/bits"

// msBit returns the position of the most significant set bit of x, or -1
// when x is zero.
func msBit(x uint32) int {
	return bits.Len32(x) - 1
}

// lsBit returns the position of the least significant set bit of x, or -1
// when x is zero. The position is the trailing-zero count of x.
func lsBit(x uint32) int {
	if x == 0 {
		return -1
	}
	return bits.TrailingZeros32(x)
}

// setBit sets bit nr in *word.
func setBit(nr int, word *uint32) {
	*word |= 1 << uint(nr&0x1f)
}

// clearBit clears bit nr in *word.
func clearBit(nr int, word *uint32) {
	*word &^= 1 << uint(nr&0x1f)
}
