package heapalloc

import "github.com/cresthaven/mallocore/internal/oshost"

// ensureHeap performs the one-time preallocation of the heap on first use: advance the
// break by a.initialHeap bytes and install a single FREE block covering the region.
func (a *Allocator) ensureHeap() {
	if a.heapStart != nil {
		return
	}

	addr, err := a.host.Sbrk(a.initialHeap)
	if err != nil {
		oshost.Fatalf("heapalloc: failed to preallocate %d-byte heap: %v", a.initialHeap, err)
	}

	h := (*header)(headerAt(addr))
	h.size = a.initialHeap - metaSize
	h.status = statusFree
	h.next = nil

	a.heapStart = h
}

// requestSpace grows the heap to accommodate a block of blockSize total bytes. If last
// is the FREE tail of the heap list, it is extended in place and returned; otherwise a
// fresh block is appended after last (or installed as the sole block, if last is nil).
func (a *Allocator) requestSpace(last *header, blockSize uintptr) *header {
	if last != nil && last.status == statusFree {
		delta := blockSize - total(last.size)

		if _, err := a.host.Sbrk(delta); err != nil {
			oshost.Fatalf("heapalloc: failed to extend heap by %d bytes: %v", delta, err)
		}

		last.size += delta

		return last
	}

	addr, err := a.host.Sbrk(blockSize)
	if err != nil {
		oshost.Fatalf("heapalloc: failed to extend heap by %d bytes: %v", blockSize, err)
	}

	nb := (*header)(headerAt(addr))
	nb.size = blockSize - metaSize
	nb.status = statusFree
	nb.next = nil

	if last != nil {
		last.next = nb
	}

	return nb
}

// coalescableOnce reports whether b can be merged with its immediate successor: both
// must be FREE and the successor must exist.
func coalescableOnce(b *header) bool {
	return b.status == statusFree && b.next != nil && b.next.status == statusFree
}

// coalesceStep merges b with its successor. Caller must have verified coalescableOnce.
func coalesceStep(b *header) {
	next := b.next
	b.size += total(next.size)
	b.next = next.next
}

// coalesceForward eagerly merges b with as many FREE successors as possible. Backward
// merging is never performed directly; it happens transitively because the heap list
// is always walked from the head and coalescing runs at every visited block.
func coalesceForward(b *header) {
	for coalescableOnce(b) {
		coalesceStep(b)
	}
}

// coalesceHeapList walks the entire heap list from the head, coalescing every block it
// visits with as many immediate FREE successors as possible. This is the only place
// backward coalescing effectively happens: a block that was freed while its predecessor
// was still ALLOC, then later found itself preceded by a newly-freed block, is picked up
// the next time the head-to-tail walk passes over it.
func (a *Allocator) coalesceHeapList() {
	for cur := a.heapStart; cur != nil; cur = cur.next {
		coalesceForward(cur)
	}
}

// findBestFit walks the heap list from the head, opportunistically coalescing every
// block it visits, and returns the smallest FREE block whose total size is at least
// requiredTotal (earliest visited wins ties), along with the last block visited (for
// requestSpace to extend from on a miss).
func (a *Allocator) findBestFit(requiredTotal uintptr) (best *header, last *header) {
	var bestSize uintptr

	cur := a.heapStart
	for cur != nil {
		coalesceForward(cur)

		if cur.status == statusFree && total(cur.size) >= requiredTotal {
			if best == nil || cur.size < bestSize {
				best = cur
				bestSize = cur.size
			}
		}

		last = cur
		cur = cur.next
	}

	return best, last
}

// splitBlock carves a new FREE block out of the surplus of block, once block has been
// claimed for a requiredTotal-byte allocation. Precondition: block.size+metaSize >
// requiredTotal (strict), which permits a zero-payload FREE tail when the surplus is
// exactly one header's worth — that block can never be usefully reused, but it does not
// violate any invariant, and the behavior is preserved deliberately for determinism.
func splitBlock(block *header, requiredTotal uintptr) {
	surplus := block.size - (requiredTotal - metaSize)

	newBlock := (*header)(headerAt(addrOf(block) + requiredTotal))
	newBlock.size = surplus
	newBlock.status = statusFree
	newBlock.next = block.next

	block.size = requiredTotal - metaSize
	block.next = newBlock
}

// allocateHeapBlock is the malloc_sbrk path: best-fit first, extend on miss, split
// whenever the chosen block is strictly larger than required.
func (a *Allocator) allocateHeapBlock(size uintptr) *header {
	a.ensureHeap()

	requiredTotal := total(size)

	best, last := a.findBestFit(requiredTotal)
	if best != nil {
		best.status = statusAlloc
		if best.size+metaSize > requiredTotal {
			splitBlock(best, requiredTotal)
		}

		return best
	}

	nb := a.requestSpace(last, requiredTotal)
	nb.status = statusAlloc

	return nb
}

// heapContains reports whether target is reachable from heapStart, defending heapFree
// and heapRealloc against dangling or foreign pointers.
func (a *Allocator) heapContains(target *header) bool {
	for cur := a.heapStart; cur != nil; cur = cur.next {
		if cur == target {
			return true
		}
	}

	return false
}

// heapFree marks h FREE and re-coalesces the whole heap list so h merges with both a
// FREE successor and, transitively, any FREE predecessor the per-node coalesceForward in
// the allocation path would otherwise miss. Unreachable blocks are left untouched
// (double-free/foreign-pointer defense).
func (a *Allocator) heapFree(h *header) {
	if !a.heapContains(h) {
		return
	}

	h.status = statusFree
	a.coalesceHeapList()
}
