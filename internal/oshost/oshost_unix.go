//go:build unix

package oshost

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// maxHeapReservation bounds the single, fixed virtual-address reservation that backs
// the simulated program break. A real brk(2) syscall cannot be driven safely from a
// hosted Go process (the Go runtime already owns the process break for its own heap),
// so Sbrk is implemented by reserving this much address space once, up front, via a
// single anonymous mapping, and bumping a logical high-water mark inside it. The
// reservation is never committed by the kernel beyond the pages actually touched
// (MAP_NORESERVE plus Linux/BSD lazy zero-fill-on-demand anonymous pages), so the
// reservation size can be generous without costing physical memory.
const maxHeapReservation = 4 << 30 // 4 GiB of address space

// unixHost implements Host using golang.org/x/sys/unix.
type unixHost struct {
	once sync.Once

	base uintptr // address of the reservation backing the simulated break
	used uintptr // bytes of the reservation handed out so far
}

var defaultHost = &unixHost{}

// DefaultHost returns the process-wide unix Host.
func DefaultHost() Host {
	return defaultHost
}

func (h *unixHost) reserve() {
	mem, err := unix.Mmap(-1, 0, maxHeapReservation,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_NORESERVE)
	if err != nil {
		Fatalf("oshost: failed to reserve %d bytes of address space for the heap: %v", maxHeapReservation, err)
	}

	h.base = uintptr(unsafe.Pointer(&mem[0]))
}

func (h *unixHost) Sbrk(delta uintptr) (uintptr, error) {
	h.once.Do(h.reserve)

	if h.used+delta > maxHeapReservation {
		return 0, fmt.Errorf("oshost: heap reservation exhausted (%d of %d bytes used, %d more requested)",
			h.used, uintptr(maxHeapReservation), delta)
	}

	addr := h.base + h.used
	h.used += delta

	return addr, nil
}

func (h *unixHost) MmapAnon(size uintptr) (uintptr, []byte, error) {
	mem, err := unix.Mmap(-1, 0, int(size),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return 0, nil, err
	}

	return uintptr(unsafe.Pointer(&mem[0])), mem, nil
}

func (h *unixHost) Munmap(addr uintptr, size uintptr) error {
	mem := unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(size))
	return unix.Munmap(mem)
}

func (h *unixHost) PageSize() uintptr {
	return uintptr(unix.Getpagesize())
}
