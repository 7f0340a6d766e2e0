package oshost

import "testing"

func TestFakeHostSbrk(t *testing.T) {
	h := NewFakeHost(1024)

	a1, err := h.Sbrk(100)
	if err != nil {
		t.Fatalf("Sbrk(100) error: %v", err)
	}

	a2, err := h.Sbrk(50)
	if err != nil {
		t.Fatalf("Sbrk(50) error: %v", err)
	}

	if a2 != a1+100 {
		t.Errorf("second Sbrk address = %#x, want %#x", a2, a1+100)
	}

	if _, err := h.Sbrk(1000); err == nil {
		t.Error("Sbrk beyond capacity should fail")
	}
}

func TestFakeHostMmapMunmap(t *testing.T) {
	h := NewFakeHost(1024)

	addr, mem, err := h.MmapAnon(256)
	if err != nil {
		t.Fatalf("MmapAnon error: %v", err)
	}

	if len(mem) != 256 {
		t.Fatalf("MmapAnon returned %d bytes, want 256", len(mem))
	}

	if h.MappedCount() != 1 {
		t.Fatalf("MappedCount = %d, want 1", h.MappedCount())
	}

	if err := h.Munmap(addr, 256); err != nil {
		t.Fatalf("Munmap error: %v", err)
	}

	if h.MappedCount() != 0 {
		t.Fatalf("MappedCount after Munmap = %d, want 0", h.MappedCount())
	}

	if err := h.Munmap(addr, 256); err == nil {
		t.Error("Munmap of an already-unmapped address should fail")
	}
}

func TestFakeHostPageSize(t *testing.T) {
	h := NewFakeHost(1024)

	if h.PageSize() != 4096 {
		t.Errorf("default PageSize = %d, want 4096", h.PageSize())
	}

	h.SetPageSize(8192)
	if h.PageSize() != 8192 {
		t.Errorf("PageSize after SetPageSize = %d, want 8192", h.PageSize())
	}
}
