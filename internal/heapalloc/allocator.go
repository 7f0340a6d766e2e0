package heapalloc

import (
	"unsafe"

	"github.com/cresthaven/mallocore/internal/oshost"
)

// Default tuning constants: the size of the one-time heap preallocation and the
// heap/mapped-region threshold, both expressed in bytes.
const (
	// InitialHeap is the size, in bytes, of the single preallocation performed on
	// first heap-backed allocation.
	InitialHeap = 131072
	// MMAPThreshold is the total-block-size boundary above which a request is served
	// by an individually mapped region rather than the heap; a request whose total
	// block size equals it still uses the heap.
	MMAPThreshold = 131072
)

// Allocator holds one independent heap list, one mapped list, and the host binding
// they are built on. It has no internal synchronization: like the allocator it
// implements, it is built for a single-threaded caller, and no operation may be
// invoked concurrently with any other on the same Allocator.
type Allocator struct {
	host oshost.Host

	heapStart *header // head of the heap list; never reassigned after ensureHeap
	mmapStart *header // head of the mapped list; reassigned on every insert/remove

	initialHeap uintptr
	threshold   uintptr
}

// Option configures an Allocator at construction time.
type Option func(*Allocator)

// WithHost overrides the host binding, primarily for tests that want a FakeHost
// instead of the real unix implementation.
func WithHost(h oshost.Host) Option {
	return func(a *Allocator) { a.host = h }
}

// WithInitialHeap overrides the size of the one-time heap preallocation.
func WithInitialHeap(n uintptr) Option {
	return func(a *Allocator) { a.initialHeap = n }
}

// WithThreshold overrides the mmap threshold used to classify requests.
func WithThreshold(n uintptr) Option {
	return func(a *Allocator) { a.threshold = n }
}

// New constructs an Allocator. The heap itself is not touched until the first
// heap-backed allocation (ensureHeap is lazy).
func New(opts ...Option) *Allocator {
	a := &Allocator{
		host:        oshost.DefaultHost(),
		initialHeap: InitialHeap,
		threshold:   MMAPThreshold,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Stats summarizes the current state of both lists. All fields are derived by walking
// the lists at call time, so they can never drift from the real allocator state the way
// a separately maintained counter could.
type Stats struct {
	HeapBlocks   int
	FreeBlocks   int
	AllocBlocks  int
	MappedBlocks int

	FreeBytes   uintptr
	AllocBytes  uintptr
	MappedBytes uintptr
}

// Stats walks both lists and reports their current composition.
func (a *Allocator) Stats() Stats {
	var s Stats

	for cur := a.heapStart; cur != nil; cur = cur.next {
		s.HeapBlocks++

		switch cur.status {
		case statusFree:
			s.FreeBlocks++
			s.FreeBytes += cur.size
		case statusAlloc:
			s.AllocBlocks++
			s.AllocBytes += cur.size
		case statusMapped:
			// unreachable: heap list blocks are never MAPPED.
		}
	}

	for cur := a.mmapStart; cur != nil; cur = cur.next {
		s.MappedBlocks++
		s.MappedBytes += cur.size
	}

	return s
}

// defaultAllocator backs the package-level Malloc/Free/Calloc/Realloc functions, letting
// callers use this package the way they would a process-wide malloc family instead of
// constructing their own Allocator.
var defaultAllocator = New()

// Malloc allocates size bytes via the default Allocator.
func Malloc(size int) unsafe.Pointer { return defaultAllocator.Malloc(size) }

// Free releases ptr via the default Allocator.
func Free(ptr unsafe.Pointer) { defaultAllocator.Free(ptr) }

// Calloc allocates and zero-fills nmemb*size bytes via the default Allocator.
func Calloc(nmemb, size int) unsafe.Pointer { return defaultAllocator.Calloc(nmemb, size) }

// Realloc resizes ptr to size bytes via the default Allocator.
func Realloc(ptr unsafe.Pointer, size int) unsafe.Pointer {
	return defaultAllocator.Realloc(ptr, size)
}

// Walk returns a snapshot of the default Allocator's heap list.
func Walk() []BlockInfo { return defaultAllocator.Walk() }

// Check verifies the default Allocator's heap-list invariants.
func Check() error { return defaultAllocator.Check() }

// GetStats reports the default Allocator's current state.
func GetStats() Stats { return defaultAllocator.Stats() }
