package traceroute

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

// quotedProbe builds the quoted-original-datagram bytes a router includes
// in its ICMP error: a minimal IPv4 header followed by the probe's UDP
// header, destined for basePort+ttl.
func quotedProbe(ttl int) []byte {
	q := make([]byte, 20+8)
	q[0] = 0x45 // version 4, 20-byte header
	q[9] = 17   // UDP
	binary.BigEndian.PutUint16(q[20:22], 54321)
	binary.BigEndian.PutUint16(q[22:24], uint16(basePort+ttl))
	return q
}

func marshalReply(t *testing.T, msg *icmp.Message) []byte {
	t.Helper()
	b, err := msg.Marshal(nil)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestParseReplyTimeExceeded(t *testing.T) {
	b := marshalReply(t, &icmp.Message{
		Type: ipv4.ICMPTypeTimeExceeded,
		Body: &icmp.TimeExceeded{Data: quotedProbe(5)},
	})

	ttl, reached, ok := parseReply(b)
	if !ok {
		t.Fatal("parseReply rejected a valid time-exceeded reply")
	}
	if ttl != 5 {
		t.Fatalf("ttl = %d, want 5", ttl)
	}
	if reached {
		t.Fatal("time-exceeded reply reported as destination")
	}
}

func TestParseReplyPortUnreachableMarksDestination(t *testing.T) {
	b := marshalReply(t, &icmp.Message{
		Type: ipv4.ICMPTypeDestinationUnreachable,
		Code: 3,
		Body: &icmp.DstUnreach{Data: quotedProbe(9)},
	})

	ttl, reached, ok := parseReply(b)
	if !ok || ttl != 9 {
		t.Fatalf("parseReply = (%d, %v, %v), want ttl 9", ttl, reached, ok)
	}
	if !reached {
		t.Fatal("port-unreachable reply not reported as destination")
	}
}

func TestParseReplyRejectsOtherUnreachableCodes(t *testing.T) {
	b := marshalReply(t, &icmp.Message{
		Type: ipv4.ICMPTypeDestinationUnreachable,
		Code: 1, // host unreachable
		Body: &icmp.DstUnreach{Data: quotedProbe(3)},
	})

	if _, _, ok := parseReply(b); ok {
		t.Fatal("parseReply accepted a host-unreachable reply")
	}
}

func TestParseReplyRejectsEchoReply(t *testing.T) {
	b := marshalReply(t, &icmp.Message{
		Type: ipv4.ICMPTypeEchoReply,
		Body: &icmp.Echo{ID: 1, Seq: 1, Data: []byte("x")},
	})

	if _, _, ok := parseReply(b); ok {
		t.Fatal("parseReply accepted an echo reply")
	}
}

func TestQuotedDstPortRejectsTruncatedAndNonUDP(t *testing.T) {
	if _, ok := quotedDstPort(quotedProbe(1)[:21]); ok {
		t.Fatal("accepted a quote truncated mid-UDP-header")
	}

	tcp := quotedProbe(1)
	tcp[9] = 6
	if _, ok := quotedDstPort(tcp); ok {
		t.Fatal("accepted a quoted TCP datagram")
	}
}

func TestTrimAtDestination(t *testing.T) {
	hops := []Hop{
		{TTL: 1, Addr: "10.0.0.1"},
		{TTL: 2, Addr: "10.0.0.2"},
		{TTL: 3, Addr: "192.0.2.1", Reached: true},
		{TTL: 4, Addr: "192.0.2.1", Reached: true},
	}
	trimmed := trimAtDestination(hops)
	if len(trimmed) != 3 {
		t.Fatalf("got %d hops after trim, want 3", len(trimmed))
	}
	if !trimmed[2].Reached {
		t.Fatal("last hop after trim is not the destination")
	}

	open := []Hop{{TTL: 1}, {TTL: 2}}
	if got := trimAtDestination(open); len(got) != 2 {
		t.Fatalf("trim altered a trace that never reached its destination: %d hops", len(got))
	}
}

func TestRunRejectsBadConfig(t *testing.T) {
	ctx := context.Background()
	if _, err := Run(ctx, "192.0.2.1", Config{MaxHops: 0, Timeout: time.Second}); err == nil {
		t.Fatal("Run accepted MaxHops 0")
	}
	if _, err := Run(ctx, "192.0.2.1", Config{MaxHops: 4, Timeout: 0}); err == nil {
		t.Fatal("Run accepted a zero timeout")
	}
}
