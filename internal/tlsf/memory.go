package tlsf

import (
	"github.com/bytedance/gopkg/lang/dirtmake"

	"github.com/clockworklabs/tlsf-go/internal/types"
)

// Memory is the linear byte store a pool lives in. Block references are
// offsets into Bytes. Grow extends the store in place; after a successful
// Grow the pool re-fetches Bytes, so implementations may reallocate as long
// as the existing content is preserved.
type Memory interface {
	// Bytes returns the whole linear memory. The slice is invalidated by
	// the next Grow.
	Bytes() []byte
	// Grow extends the memory by at least n bytes, zero-filled. It returns
	// false when the memory cannot grow.
	Grow(n uint32) bool
}

// SliceMemory is a Memory over a plain byte slice. The zero value is not
// usable; construct it with NewSliceMemory or WrapSliceMemory.
type SliceMemory struct {
	buf      []byte
	growable bool
}

// NewSliceMemory allocates a growable slice memory of the given size. The
// backing bytes are allocated without zeroing: the pool writes every header
// it reads, and payload content is the caller's business until freed.
func NewSliceMemory(size uint32) *SliceMemory {
	return &SliceMemory{buf: dirtmake.Bytes(int(size), int(size)), growable: true}
}

// WrapSliceMemory wraps a caller-owned buffer. The buffer must stay
// writable for the lifetime of the pool. Wrapped memories do not grow; the
// caller owns the backing bytes.
func WrapSliceMemory(buf []byte) *SliceMemory {
	return &SliceMemory{buf: buf}
}

// Bytes implements Memory.
func (m *SliceMemory) Bytes() []byte { return m.buf }

// Grow implements Memory.
func (m *SliceMemory) Grow(n uint32) bool {
	if !m.growable {
		return false
	}
	grown := dirtmake.Bytes(len(m.buf)+int(n), len(m.buf)+int(n))
	copy(grown, m.buf)
	clear(grown[len(m.buf):])
	m.buf = grown
	return true
}

// alignGrow rounds a growth request so new areas start block-aligned.
func alignGrow(n uint32) uint32 {
	return (n + types.MemAlignMask) &^ uint32(types.MemAlignMask)
}
