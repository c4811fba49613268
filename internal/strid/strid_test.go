package strid

import "testing"

func TestHashStable(t *testing.T) {
	a := Hash("order.created")
	b := Hash("order.created")
	if a != b {
		t.Fatalf("Hash not stable: %d != %d", a, b)
	}
}

func TestHashDistinguishesNames(t *testing.T) {
	a := Hash("order.created")
	b := Hash("order.cancelled")
	if a == b {
		t.Fatalf("expected distinct hashes, both %d", a)
	}
}
