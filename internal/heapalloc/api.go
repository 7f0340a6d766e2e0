package heapalloc

import "unsafe"

// Malloc returns a payload pointer to at least size usable bytes, or nil if size is
// non-positive. Requests whose total block size is at or below the allocator's threshold
// are served from the heap; larger requests get their own mapped region.
func (a *Allocator) Malloc(size int) unsafe.Pointer {
	if size <= 0 {
		return nil
	}

	asize := align(uintptr(size))

	if total(asize) <= a.threshold {
		return payloadOf(a.allocateHeapBlock(asize))
	}

	return payloadOf(a.createMappedBlock(asize))
}

// Free releases ptr, which must have been returned by Malloc, Calloc, or Realloc on
// this Allocator. A nil ptr is a no-op.
func (a *Allocator) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	h := blockOf(ptr)

	if h.status == statusMapped {
		a.mappedFree(h)
		return
	}

	a.heapFree(h)
}

// Calloc allocates nmemb*size bytes and zero-fills them. The multiplication is
// unchecked, preserving parity with the allocator this package is modeled on: overflow
// behavior is whatever the unchecked product produces. While the request is in flight,
// the allocator's threshold is temporarily lowered to the host's page size, favoring a
// mapped (and therefore already zero, though this code does not rely on that) region
// for any request spanning at least one page; the override is restored on every exit
// path via defer.
func (a *Allocator) Calloc(nmemb, size int) unsafe.Pointer {
	totalBytes := nmemb * size

	restore := a.overrideThreshold(a.host.PageSize())
	defer restore()

	ptr := a.Malloc(totalBytes)
	if ptr != nil {
		zeroFill(ptr, uintptr(totalBytes))
	}

	return ptr
}

func (a *Allocator) overrideThreshold(n uintptr) func() {
	prev := a.threshold
	a.threshold = n

	return func() { a.threshold = prev }
}

// Realloc resizes the allocation at ptr to size bytes, returning a pointer to the
// (possibly moved) block, or nil. A nil ptr behaves as Malloc; a size of zero behaves
// as Free. Reallocating a FREE block is treated as an error and returns nil without
// mutating anything, matching the allocator this package is modeled on rather than
// standard realloc's null-only special case.
func (a *Allocator) Realloc(ptr unsafe.Pointer, size int) unsafe.Pointer {
	if ptr == nil {
		return a.Malloc(size)
	}

	if size == 0 {
		a.Free(ptr)
		return nil
	}

	asize := align(uintptr(size))
	h := blockOf(ptr)

	switch h.status {
	case statusFree:
		return nil
	case statusMapped:
		return a.mappedRealloc(h, asize)
	default:
		return a.heapRealloc(h, asize)
	}
}

// mappedRealloc relocates a mapped block: allocate fresh, copy the overlapping prefix,
// and unmap the original.
func (a *Allocator) mappedRealloc(h *header, size uintptr) unsafe.Pointer {
	oldSize := h.size
	oldPayload := payloadOf(h)

	newPtr := a.Malloc(int(size))
	if newPtr == nil {
		return nil
	}

	copyMemory(newPtr, oldPayload, minUintptr(oldSize, size))
	a.mappedFree(h)

	return newPtr
}

// heapRealloc resizes a heap block: a membership check rejects foreign pointers,
// oversized requests are promoted to a mapped region, otherwise an in-place grow attempt
// consumes FREE neighbors via coalescing before falling back to relocation. A block with
// no successor gets a last-block special case: it moves into an interior FREE block large
// enough for the request if one exists, and otherwise extends the heap in place, so the
// caller's pointer survives even when nothing to its right can be coalesced.
func (a *Allocator) heapRealloc(b *header, size uintptr) unsafe.Pointer {
	oldSize := b.size
	bs := total(size)

	// 1. Heap-membership check.
	if !a.heapContains(b) {
		return nil
	}

	// 2. Promotion to a mapped region.
	if bs > a.threshold {
		newPtr := payloadOf(a.createMappedBlock(size))
		copyMemory(newPtr, payloadOf(b), minUintptr(oldSize, size))
		a.heapFree(b)

		return newPtr
	}

	// 3. In-place grow attempt: temporarily mark FREE so coalescing can consume FREE
	// neighbors, then restore ALLOC regardless of outcome.
	b.status = statusFree
	for total(b.size) < bs && coalescableOnce(b) {
		coalesceStep(b)
	}
	b.status = statusAlloc

	if total(b.size) >= bs {
		if b.size+metaSize > bs {
			splitBlock(b, bs)
		}

		return payloadOf(b)
	}

	// 4. Not the last block: release any over-coalesced surplus, relocate.
	if b.next != nil {
		if b.size != oldSize {
			splitBlock(b, total(oldSize))
		}

		newBlock := a.allocateHeapBlock(size)
		copyMemory(payloadOf(newBlock), payloadOf(b), minUintptr(b.size, size))
		a.heapFree(b)

		return payloadOf(newBlock)
	}

	// 5. Last block and grow failed: try an interior hole before extending the heap.
	b.status = statusFree

	best, last := a.findBestFit(bs)
	if best == nil {
		// last is b itself (the tail) unless the search merged b into a FREE
		// predecessor. requestSpace's FREE-tail case expands last in place, so when last
		// is b the caller's original pointer remains valid; otherwise the payload is
		// moved to the front of the merged block.
		nb := a.requestSpace(last, bs)
		nb.status = statusAlloc

		if nb != b {
			copyMemory(payloadOf(nb), payloadOf(b), oldSize)
		}

		return payloadOf(nb)
	}

	best.status = statusAlloc
	copyMemory(payloadOf(best), payloadOf(b), oldSize)
	a.heapFree(b)

	return payloadOf(best)
}

func minUintptr(a, b uintptr) uintptr {
	if a < b {
		return a
	}

	return b
}

func copyMemory(dst, src unsafe.Pointer, n uintptr) {
	if n == 0 {
		return
	}

	copy(unsafe.Slice((*byte)(dst), n), unsafe.Slice((*byte)(src), n))
}

func zeroFill(ptr unsafe.Pointer, n uintptr) {
	if n == 0 {
		return
	}

	clear(unsafe.Slice((*byte)(ptr), n))
}
