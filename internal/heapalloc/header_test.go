package heapalloc

import (
	"testing"
	"unsafe"
)

func TestAlign(t *testing.T) {
	cases := []struct {
		in, want uintptr
	}{
		{0, 0},
		{1, 8},
		{7, 8},
		{8, 8},
		{9, 16},
		{100, 104},
		{104, 104},
	}

	for _, c := range cases {
		if got := align(c.in); got != c.want {
			t.Errorf("align(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestTotal(t *testing.T) {
	if total(0)%Alignment != 0 {
		t.Fatalf("total(0) = %d is not %d-byte aligned", total(0), Alignment)
	}

	if total(100) != metaSize+104 {
		t.Errorf("total(100) = %d, want %d", total(100), metaSize+104)
	}
}

func TestPayloadBlockRoundTrip(t *testing.T) {
	buf := make([]byte, metaSize+64)
	h := (*header)(unsafe.Pointer(&buf[0]))
	h.size = 64
	h.status = statusAlloc

	p := payloadOf(h)
	if uintptr(p)-uintptr(unsafe.Pointer(h)) != metaSize {
		t.Fatalf("payloadOf offset = %d, want %d", uintptr(p)-uintptr(unsafe.Pointer(h)), metaSize)
	}

	back := blockOf(p)
	if back != h {
		t.Fatalf("blockOf(payloadOf(h)) = %p, want %p", back, h)
	}
}

func TestBlockStatusString(t *testing.T) {
	cases := map[blockStatus]string{
		statusFree:       "FREE",
		statusAlloc:      "ALLOC",
		statusMapped:     "MAPPED",
		blockStatus(255): "UNKNOWN",
	}

	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("status %d String() = %q, want %q", s, got, want)
		}
	}
}
