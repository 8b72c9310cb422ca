package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/clockworklabs/tlsf-go/pkg/tlsf"
)

func main() {
	size := flag.Uint("size", 64*1024, "pool size in bytes")
	dump := flag.Bool("dump", false, "dump the free-list matrix after the workload")
	flag.Parse()

	pool, usable, err := tlsf.InitMemoryPool(make([]byte, *size))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize pool: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("pool initialized: %d bytes usable of %d\n", usable, *size)

	// A small mixed workload to exercise split, coalesce and realloc.
	var refs []tlsf.Ref
	for _, n := range []uint32{16, 48, 128, 700, 24, 2048} {
		ref, err := pool.Alloc(n)
		if err != nil {
			fmt.Fprintf(os.Stderr, "alloc %d: %v\n", n, err)
			os.Exit(1)
		}
		refs = append(refs, ref)
	}
	for i := 0; i < len(refs); i += 2 {
		pool.Free(refs[i])
	}
	grown, err := pool.Realloc(refs[1], 512)
	if err != nil {
		fmt.Fprintf(os.Stderr, "realloc: %v\n", err)
		os.Exit(1)
	}
	pool.Free(grown)
	for i := 3; i < len(refs); i += 2 {
		pool.Free(refs[i])
	}

	st := pool.Stats()
	fmt.Printf("used=%d max=%d capacity=%d areas=%d allocs=%d frees=%d\n",
		st.UsedSize, st.MaxSize, st.Capacity, st.Areas, st.Allocs, st.Frees)
	if pool.Errno() != 0 {
		fmt.Fprintf(os.Stderr, "pool status: %v\n", pool.Errno())
		os.Exit(1)
	}
	if *dump {
		pool.DumpPool(os.Stdout)
	}
}
