package bitops

import "testing"

func TestExtract(t *testing.T) {
	buf := []byte{0x12, 0x34, 0x56, 0x78} // 0001 0010 0011 0100 0101 0110 0111 1000

	cases := []struct {
		name     string
		start    int
		length   int
		expected uint8
	}{
		{"first nibble", 0, 4, 0x1},
		{"second nibble", 4, 4, 0x2},
		{"third nibble", 8, 4, 0x3},
		{"full first byte", 0, 8, 0x12},
		{"crosses byte boundary", 4, 8, 0x23},
		{"single bit", 0, 1, 0},
		{"single bit set", 3, 1, 1},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Extract(buf, c.start, c.length)
			if got != c.expected {
				t.Errorf("Extract(%d,%d) = 0x%x, want 0x%x", c.start, c.length, got, c.expected)
			}
		})
	}
}

func TestExtractPastEnd(t *testing.T) {
	buf := []byte{0xFF}
	got := Extract(buf, 4, 8)
	if got != 0xF0 {
		t.Errorf("Extract past buffer end = 0x%x, want 0xf0", got)
	}
}

func TestExtractPanicsOnInvalidLength(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for lenBits out of range")
		}
	}()
	Extract([]byte{0}, 0, 9)
}

func TestDepth(t *testing.T) {
	cases := []struct {
		keyBytes, bits, want int
	}{
		{4, 4, 8},
		{4, 8, 4},
		{2, 8, 2},
		{1, 3, 3},
	}
	for _, c := range cases {
		if got := Depth(c.keyBytes, c.bits); got != c.want {
			t.Errorf("Depth(%d,%d) = %d, want %d", c.keyBytes, c.bits, got, c.want)
		}
	}
}
