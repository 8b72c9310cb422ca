// Package wasm adapts a WebAssembly linear memory to the allocator's
// Memory interface, so a pool can manage allocations inside a wazero
// module's memory. The growth path maps to page growth: when the pool runs
// out, the linear memory grows and the new pages are handed to the pool as
// a further area.
package wasm

import (
	"github.com/tetratelabs/wazero/api"
)

// PageSize is the WebAssembly page size.
const PageSize = 65536

// linearMemory is the subset of wazero's api.Memory the adapter needs.
type linearMemory interface {
	Size() uint32
	Grow(deltaPages uint32) (uint32, bool)
	Read(offset, byteCount uint32) ([]byte, bool)
}

// PoolMemory exposes a wazero linear memory as pool memory. The view
// returned by Bytes aliases the module's memory; it is re-fetched by the
// pool after every Grow, matching wazero's invalidation rules.
type PoolMemory struct {
	mem linearMemory
}

// NewPoolMemory wraps a module's exported memory.
func NewPoolMemory(mem api.Memory) *PoolMemory {
	return &PoolMemory{mem: mem}
}

// Bytes returns the whole linear memory as a mutable view.
func (m *PoolMemory) Bytes() []byte {
	buf, ok := m.mem.Read(0, m.mem.Size())
	if !ok {
		return nil
	}
	return buf
}

// Grow extends the memory by whole pages covering at least n bytes.
func (m *PoolMemory) Grow(n uint32) bool {
	pages := (n + PageSize - 1) / PageSize
	_, ok := m.mem.Grow(pages)
	return ok
}
