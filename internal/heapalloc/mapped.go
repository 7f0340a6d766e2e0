package heapalloc

import "github.com/cresthaven/mallocore/internal/oshost"

// createMappedBlock maps total(size) bytes of fresh anonymous memory, installs a
// MAPPED block at the head of the mapped list, and returns its header.
func (a *Allocator) createMappedBlock(size uintptr) *header {
	requiredTotal := total(size)

	addr, _, err := a.host.MmapAnon(requiredTotal)
	if err != nil {
		oshost.Fatalf("heapalloc: failed to map %d bytes: %v", requiredTotal, err)
	}

	h := (*header)(headerAt(addr))
	h.size = requiredTotal - metaSize
	h.status = statusMapped
	h.next = a.mmapStart

	a.mmapStart = h

	return h
}

// mappedFree unlinks h from the mapped list by pointer identity and unmaps its
// backing memory. If h is not found in the list (a foreign or already-freed pointer),
// it is left untouched and no unmap occurs — the asymmetry with heap-free's reachability
// check is deliberate: the mapped list is walked purely to unlink, not to validate.
func (a *Allocator) mappedFree(h *header) {
	if a.mmapStart == h {
		a.mmapStart = h.next
	} else {
		cur := a.mmapStart
		for cur != nil && cur.next != h {
			cur = cur.next
		}

		if cur == nil {
			return
		}

		cur.next = h.next
	}

	size := total(h.size)
	if err := a.host.Munmap(addrOf(h), size); err != nil {
		oshost.Fatalf("heapalloc: failed to unmap %d bytes at %#x: %v", size, addrOf(h), err)
	}
}
