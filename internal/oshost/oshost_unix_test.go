//go:build unix

package oshost

import "testing"

func TestUnixHostSbrkMmapMunmap(t *testing.T) {
	h := &unixHost{}

	a1, err := h.Sbrk(64)
	if err != nil {
		t.Fatalf("Sbrk(64) error: %v", err)
	}

	a2, err := h.Sbrk(64)
	if err != nil {
		t.Fatalf("Sbrk(64) error: %v", err)
	}

	if a2 != a1+64 {
		t.Errorf("second Sbrk address = %#x, want %#x", a2, a1+64)
	}

	addr, mem, err := h.MmapAnon(4096)
	if err != nil {
		t.Fatalf("MmapAnon error: %v", err)
	}

	mem[0] = 0xAB
	if mem[0] != 0xAB {
		t.Fatal("mapped memory is not writable")
	}

	if err := h.Munmap(addr, 4096); err != nil {
		t.Fatalf("Munmap error: %v", err)
	}

	if h.PageSize() == 0 {
		t.Error("PageSize returned 0")
	}
}
