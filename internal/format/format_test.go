package format

import "testing"

func TestAlign8(t *testing.T) {
	cases := map[int]int{0: 0, 1: 8, 7: 8, 8: 8, 9: 16, 17: 24}
	for in, want := range cases {
		if got := Align8(in); got != want {
			t.Fatalf("Align8(%d) = %d, want %d", in, got, want)
		}
	}
	if !IsAligned8(24) || IsAligned8(12) {
		t.Fatalf("IsAligned8 mismatch")
	}
}

func TestEvenWords(t *testing.T) {
	if got := EvenWords(49); got != 200 {
		t.Fatalf("EvenWords(49) = %d, want 200", got)
	}
	if got := EvenWords(50); got != 200 {
		t.Fatalf("EvenWords(50) = %d, want 200", got)
	}
}

func TestAdjustedSize(t *testing.T) {
	cases := []struct{ n, want int }{
		{1, MinBlockSize},
		{8, MinBlockSize},
		{16, 24},
		{17, 32},
		{24, 32},
		{100, 112},
	}
	for _, tc := range cases {
		if got := AdjustedSize(tc.n); got != tc.want {
			t.Fatalf("AdjustedSize(%d) = %d, want %d", tc.n, got, tc.want)
		}
	}
}

func TestPackUnpack(t *testing.T) {
	tag := Pack(4096, true)
	size, alloc := Unpack(tag)
	if size != 4096 || !alloc {
		t.Fatalf("Unpack(Pack(4096,true)) = %d,%v", size, alloc)
	}
	size, alloc = Unpack(Pack(24, false))
	if size != 24 || alloc {
		t.Fatalf("Unpack(Pack(24,false)) = %d,%v", size, alloc)
	}
}

func TestWordAccessors(t *testing.T) {
	b := make([]byte, 16)
	PutU32(b, 4, 0xdeadbeef)
	if got := ReadU32(b, 4); got != 0xdeadbeef {
		t.Fatalf("ReadU32 = 0x%x", got)
	}
	if b[4] != 0xef {
		t.Fatalf("expected little-endian layout, got first byte 0x%x", b[4])
	}
	PutU64(b, 8, 1<<40|7)
	if got := ReadU64(b, 8); got != 1<<40|7 {
		t.Fatalf("ReadU64 = %d", got)
	}
}
