package tlsf

import (
	"testing"

	"github.com/bytedance/gopkg/lang/mcache"
)

func BenchmarkAllocFree(b *testing.B) {
	p := New(NewSliceMemory(1 << 20))
	if _, err := p.Init(0, 1<<20); err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ref, err := p.Alloc(128)
		if err != nil {
			b.Fatal(err)
		}
		p.Free(ref)
	}
}

func BenchmarkAllocFreeMixed(b *testing.B) {
	p := New(NewSliceMemory(1 << 20))
	if _, err := p.Init(0, 1<<20); err != nil {
		b.Fatal(err)
	}
	sizes := []uint32{16, 48, 128, 700, 2048}
	refs := make([]uint32, 0, len(sizes))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		refs = refs[:0]
		for _, n := range sizes {
			ref, err := p.Alloc(n)
			if err != nil {
				b.Fatal(err)
			}
			refs = append(refs, ref)
		}
		for _, ref := range refs {
			p.Free(ref)
		}
	}
}

// Baseline: the power-of-two slab cache used elsewhere in the stack.
func BenchmarkMCacheMallocFree(b *testing.B) {
	for i := 0; i < b.N; i++ {
		buf := mcache.Malloc(128)
		mcache.Free(buf)
	}
}
