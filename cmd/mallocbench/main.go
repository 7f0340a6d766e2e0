// Command mallocbench drives internal/heapalloc with a synthetic alloc/free/realloc
// workload and reports the resulting allocator statistics.
package main

import (
	"flag"
	"log"
	"math/rand"
	"unsafe"

	"github.com/cresthaven/mallocore/internal/heapalloc"
)

// liveSlots bounds the pending-pointer table the workload tracks. A generator that
// allocates without ever freeing would grow this table unboundedly; capping it and
// logging drops keeps the benchmark's own bookkeeping out of the allocator's way.
const liveSlots = 65536

func main() {
	var (
		ops           = flag.Int("ops", 100000, "number of alloc/free/realloc operations to perform")
		seed          = flag.Int64("seed", 1, "PRNG seed for the workload generator")
		maxSize       = flag.Int("max-size", 4096, "upper bound on requested payload size in bytes")
		mmapThreshold = flag.Int("mmap-threshold", heapalloc.MMAPThreshold, "override the heap/mapped region threshold")
		verbose       = flag.Bool("verbose", false, "log every operation and check invariants after each one")
	)

	flag.Parse()

	a := heapalloc.New(
		heapalloc.WithThreshold(uintptr(*mmapThreshold)),
	)

	rng := rand.New(rand.NewSource(*seed))
	live := make([]unsafe.Pointer, liveSlots)
	liveCount := 0
	dropped := 0

	for i := 0; i < *ops; i++ {
		switch rng.Intn(4) {
		case 0: // malloc
			size := 1 + rng.Intn(*maxSize)
			p := a.Malloc(size)
			if p != nil && uintptr(p)%heapalloc.Alignment != 0 {
				log.Fatalf("mallocbench: Malloc returned misaligned pointer %#x at op %d", p, i)
			}

			liveCount = storeLive(live, liveCount, p, &dropped)
		case 1: // calloc
			n := 1 + rng.Intn(64)
			size := 1 + rng.Intn(*maxSize/n+1)
			p := a.Calloc(n, size)
			liveCount = storeLive(live, liveCount, p, &dropped)
		case 2: // realloc
			if liveCount == 0 {
				continue
			}

			idx := rng.Intn(liveCount)
			size := 1 + rng.Intn(*maxSize)
			live[idx] = a.Realloc(live[idx], size)
		case 3: // free
			if liveCount == 0 {
				continue
			}

			idx := rng.Intn(liveCount)
			a.Free(live[idx])
			liveCount--
			live[idx] = live[liveCount]
		}

		if *verbose {
			log.Printf("mallocbench: op %d done, %d live pointers", i, liveCount)

			if err := a.Check(); err != nil {
				log.Fatalf("mallocbench: invariant violation after op %d: %v", i, err)
			}
		}
	}

	if err := a.Check(); err != nil {
		log.Fatalf("mallocbench: invariant violation at exit: %v", err)
	}

	if dropped > 0 {
		log.Printf("dropped %d allocations: live-pointer table (%d slots) was full", dropped, liveSlots)
	}

	stats := a.Stats()
	log.Printf("heap blocks=%d (free=%d alloc=%d) free_bytes=%d alloc_bytes=%d mapped_blocks=%d mapped_bytes=%d",
		stats.HeapBlocks, stats.FreeBlocks, stats.AllocBlocks, stats.FreeBytes, stats.AllocBytes,
		stats.MappedBlocks, stats.MappedBytes)
}

func storeLive(live []unsafe.Pointer, count int, p unsafe.Pointer, dropped *int) int {
	if p == nil {
		return count
	}

	if count >= len(live) {
		*dropped++
		return count
	}

	live[count] = p

	return count + 1
}
