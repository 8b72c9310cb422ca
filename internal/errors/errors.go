// Package errors defines the error values the allocator reports and their
// mapping to pool status codes.
package errors

import (
	"errors"

	"github.com/clockworklabs/tlsf-go/internal/types"
)

// Sentinel errors returned by the public pool operations.
var (
	// ErrInvalidPool rejects a nil, undersized or misaligned pool region.
	ErrInvalidPool = errors.New("invalid pool region")
	// ErrOutOfMemory signals that no free block can serve the request and
	// the growth path (if any) could not acquire more memory.
	ErrOutOfMemory = errors.New("out of pool memory")
	// ErrRequestTooLarge rejects requests beyond the largest size class.
	ErrRequestTooLarge = errors.New("request exceeds maximum block size")
	// ErrZeroCount rejects a calloc with a zero element count or size.
	ErrZeroCount = errors.New("zero element count or size")
	// ErrPoolDestroyed rejects operations on a destroyed pool.
	ErrPoolDestroyed = errors.New("pool has been destroyed")
)

// ErrnoMessage returns the human-readable description of a status code.
func ErrnoMessage(code types.Errno) string {
	switch code {
	case types.ErrnoNone:
		return "ok"
	case types.ErrnoOOMMalloc:
		return "allocation failed: out of pool memory"
	case types.ErrnoUsedExceedsPoolFree:
		return "heap damage: used size exceeds pool size (detected in free)"
	case types.ErrnoUsedExceedsPoolMalloc:
		return "heap damage: used size exceeds pool size (detected in malloc)"
	default:
		return "unknown status code"
	}
}
