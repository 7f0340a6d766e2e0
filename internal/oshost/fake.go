package oshost

import (
	"fmt"
	"unsafe"
)

// FakeHost is an in-process Host backed by plain Go slices, used by tests that want to
// exercise the allocator core without depending on the real mmap reservation or a unix
// build tag. Its "break" is a single pre-sized buffer; its mapped regions are ordinary
// heap-allocated slices tracked by address so Munmap can find them again.
type FakeHost struct {
	heap []byte
	used uintptr

	mapped   map[uintptr][]byte
	pageSize uintptr
}

// NewFakeHost creates a FakeHost whose simulated break can grow up to capacity bytes.
func NewFakeHost(capacity uintptr) *FakeHost {
	return &FakeHost{
		heap:     make([]byte, capacity),
		mapped:   make(map[uintptr][]byte),
		pageSize: 4096,
	}
}

func (h *FakeHost) Sbrk(delta uintptr) (uintptr, error) {
	if h.used+delta > uintptr(len(h.heap)) {
		return 0, fmt.Errorf("fakehost: simulated heap exhausted (%d of %d bytes used, %d more requested)",
			h.used, len(h.heap), delta)
	}

	addr := uintptr(unsafe.Pointer(&h.heap[0])) + h.used
	h.used += delta

	return addr, nil
}

func (h *FakeHost) MmapAnon(size uintptr) (uintptr, []byte, error) {
	mem := make([]byte, size)
	addr := uintptr(unsafe.Pointer(&mem[0]))
	h.mapped[addr] = mem

	return addr, mem, nil
}

func (h *FakeHost) Munmap(addr uintptr, size uintptr) error {
	mem, ok := h.mapped[addr]
	if !ok {
		return fmt.Errorf("fakehost: munmap of untracked address %#x", addr)
	}

	if uintptr(len(mem)) != size {
		return fmt.Errorf("fakehost: munmap size %d does not match mapped size %d", size, len(mem))
	}

	delete(h.mapped, addr)

	return nil
}

func (h *FakeHost) PageSize() uintptr {
	return h.pageSize
}

// SetPageSize overrides the simulated page size, for tests exercising Calloc's
// threshold override.
func (h *FakeHost) SetPageSize(n uintptr) {
	h.pageSize = n
}

// MappedCount reports how many mapped regions are currently outstanding, for test
// assertions that a realloc/free actually released its mapping.
func (h *FakeHost) MappedCount() int {
	return len(h.mapped)
}
