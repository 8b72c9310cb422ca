// Package tlsf is the public surface of the two-level segregated fit pool
// allocator. It re-exports the core types and carries a process-wide
// default pool for hosts that want plain Malloc/Free entry points.
package tlsf

import (
	"sync"

	"github.com/clockworklabs/tlsf-go/internal/platform"
	"github.com/clockworklabs/tlsf-go/internal/tlsf"
	"github.com/clockworklabs/tlsf-go/internal/types"
)

// Re-exported core types.
type (
	// Pool is a TLSF pool over a linear memory.
	Pool = tlsf.Pool
	// Memory is the linear byte store a pool lives in.
	Memory = tlsf.Memory
	// SliceMemory is a Memory over a byte slice.
	SliceMemory = tlsf.SliceMemory
	// Stats is a snapshot of pool counters.
	Stats = tlsf.Stats
	// Option configures a pool.
	Option = tlsf.Option
	// Ref is a block reference.
	Ref = types.Ref
	// Errno is the sticky pool status code.
	Errno = types.Errno
	// Serializer guards pool access.
	Serializer = platform.Serializer
)

// NilRef is the null block reference.
const NilRef = types.NilRef

// Re-exported options.
var (
	WithSerializer     = tlsf.WithSerializer
	WithInterruptCheck = tlsf.WithInterruptCheck
	WithGrowth         = tlsf.WithGrowth
)

// NewSliceMemory allocates a fresh growable slice memory.
var NewSliceMemory = tlsf.NewSliceMemory

// WrapSliceMemory wraps a caller-owned buffer.
var WrapSliceMemory = tlsf.WrapSliceMemory

// New creates a pool over mem. The pool is unusable until Init.
func New(mem Memory, opts ...Option) *Pool {
	return tlsf.New(mem, opts...)
}

// InitMemoryPool creates and initializes a pool spanning the whole of a
// caller-owned buffer. It returns the pool and its usable bytes.
func InitMemoryPool(buf []byte) (*Pool, uint32, error) {
	p := tlsf.New(tlsf.WrapSliceMemory(buf))
	usable, err := p.Init(0, uint32(len(buf)))
	if err != nil {
		return nil, 0, err
	}
	return p, usable, nil
}

// Default process pool, the analog of a static work memory brought up once
// at host start.

var (
	defaultMu   sync.Mutex
	defaultPool *Pool
)

// Setup brings up the process default pool with the given size. Calling it
// again while the default pool exists is a no-op.
func Setup(size uint32) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultPool != nil {
		return nil
	}
	p := tlsf.New(tlsf.NewSliceMemory(size), tlsf.WithGrowth(true))
	if _, err := p.Init(0, size); err != nil {
		return err
	}
	defaultPool = p
	return nil
}

// Default returns the process default pool, or nil before Setup.
func Default() *Pool {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultPool
}

// Teardown destroys the process default pool.
func Teardown() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultPool != nil {
		defaultPool.Destroy()
		defaultPool = nil
	}
}

// Malloc allocates from the default pool.
func Malloc(size uint32) (Ref, error) {
	return Default().Alloc(size)
}

// Free returns a block to the default pool.
func Free(ref Ref) {
	Default().Free(ref)
}

// Realloc resizes a block of the default pool.
func Realloc(ref Ref, size uint32) (Ref, error) {
	return Default().Realloc(ref, size)
}

// Calloc allocates zero-filled memory from the default pool.
func Calloc(n, elemSize uint32) (Ref, error) {
	return Default().Calloc(n, elemSize)
}

// UsedSize returns the default pool's used bytes.
func UsedSize() uint32 {
	return Default().UsedSize()
}

// MaxSize returns the default pool's used-size high-water mark.
func MaxSize() uint32 {
	return Default().MaxSize()
}
