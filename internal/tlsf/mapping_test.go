package tlsf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clockworklabs/tlsf-go/internal/types"
)

func TestMappingInsert(t *testing.T) {
	tests := []struct {
		name   string
		size   uint32
		wantFl int
		wantSl int
	}{
		{"minimum block", 8, 0, 2},
		{"small mid", 64, 0, 16},
		{"last small class", 124, 0, 31},
		{"first large class", 128, 1, 0},
		{"large mid", 200, 1, 18},
		{"row boundary below", 255, 1, 31},
		{"row boundary", 256, 2, 0},
		{"top row start", 4096, 6, 0},
		{"top class", 8064, 6, 31},
		{"just below clamp", 8191, 6, 31},
		{"clamped oversize", 8192, types.RealFLI - 1, types.MaxSLI - 1},
		{"clamped huge", 1 << 20, types.RealFLI - 1, types.MaxSLI - 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fl, sl := mappingInsert(tt.size)
			assert.Equal(t, tt.wantFl, fl)
			assert.Equal(t, tt.wantSl, sl)
		})
	}
}

func TestMappingSearchRoundsUp(t *testing.T) {
	tests := []struct {
		name        string
		size        uint32
		wantRounded uint32
		wantFl      int
		wantSl      int
	}{
		{"small passes through", 64, 64, 0, 16},
		{"class start stays", 128, 128, 1, 0},
		{"rounds within row", 130, 132, 1, 1},
		{"rounds to next row", 255, 256, 2, 0},
		{"mid row", 3000, 3008, 5, 15},
		{"largest request", types.MaxRequestSize, types.MaxRequestSize, 6, 31},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rounded, fl, sl, ok := mappingSearch(tt.size)
			require.True(t, ok)
			assert.Equal(t, tt.wantRounded, rounded)
			assert.Equal(t, tt.wantFl, fl)
			assert.Equal(t, tt.wantSl, sl)
		})
	}
}

func TestMappingSearchRejectsOversize(t *testing.T) {
	for _, size := range []uint32{types.MaxRequestSize + 1, types.MaxBlockSize, 1 << 20} {
		_, _, _, ok := mappingSearch(size)
		assert.False(t, ok, "size %d must not be searchable", size)
	}
}

// Every searchable class start is at least the original request, so a block
// from the returned class always satisfies the request.
func TestMappingSearchGuarantee(t *testing.T) {
	for size := uint32(8); size <= types.MaxRequestSize; size += 8 {
		rounded, fl, sl, ok := mappingSearch(size)
		require.True(t, ok, "size %d", size)
		require.GreaterOrEqual(t, rounded, size)
		insFl, insSl := mappingInsert(rounded)
		require.Equal(t, insFl, fl)
		require.Equal(t, insSl, sl)
	}
}

func TestRoundSizes(t *testing.T) {
	assert.Equal(t, uint32(0), roundUpSize(0))
	assert.Equal(t, uint32(8), roundUpSize(1))
	assert.Equal(t, uint32(8), roundUpSize(8))
	assert.Equal(t, uint32(16), roundUpSize(9))
	assert.Equal(t, uint32(0), roundDownSize(7))
	assert.Equal(t, uint32(8), roundDownSize(15))
}
