package dnsutil

import (
	"context"
	"testing"
	"time"
)

func TestResolveRejectsNoServers(t *testing.T) {
	r := NewResolver(nil, time.Second, 0)
	if _, err := r.Resolve(context.Background(), "example.com.", 1); err == nil {
		t.Fatal("Resolve with no servers unexpectedly succeeded")
	}
}

func TestResolvePTRRejectsBadAddress(t *testing.T) {
	r := NewResolver([]string{"127.0.0.1:1"}, 50*time.Millisecond, 0)
	if _, err := r.ResolvePTR(context.Background(), "not-an-ip"); err == nil {
		t.Fatal("ResolvePTR with a malformed address unexpectedly succeeded")
	}
}
