// Package traceroute performs a classic UDP traceroute: one probe per TTL
// toward a high destination port, with ICMP time-exceeded replies
// identifying each hop and an ICMP port-unreachable reply identifying the
// destination itself. Probes for all TTLs are in flight concurrently, each
// on its own task from internal/threadpool; a single receiver demultiplexes
// ICMP replies back to the probe that triggered them by the destination
// port embedded in the quoted original datagram.
//
// Opening the ICMP listener requires raw-socket privileges on most
// systems; Run surfaces the failure as an ordinary error.
package traceroute

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"

	"github.com/dreamware/substrate/internal/dnsutil"
	"github.com/dreamware/substrate/internal/logging"
	"github.com/dreamware/substrate/internal/threadpool"
)

// basePort is the first destination port probed; TTL n probes basePort+n,
// which is how replies are matched back to their probe.
const basePort = 33434

const protocolICMP = 1

// payload is what every probe datagram carries. The content is irrelevant
// to the route; routers quote the headers, not the body.
var payload = []byte("substrate-traceroute")

// Hop describes one responding router (or the destination) on the path.
type Hop struct {
	TTL      int
	Addr     string
	Hostname string
	RTT      time.Duration
	Reached  bool // true only for the destination's port-unreachable reply
}

// Config parameterizes a Run call.
type Config struct {
	MaxHops int
	Timeout time.Duration // per-probe wait for a matching reply
	Retries uint64        // additional sends per TTL before giving up; 0 = single probe
	// Resolver, when non-nil, labels each responding hop with its PTR
	// name. Lookup failures leave Hostname empty rather than failing the
	// trace.
	Resolver *dnsutil.Resolver
}

// reply is what the receiver hands to the probe task that owns the TTL.
type reply struct {
	addr    string
	reached bool
	at      time.Time
}

// Run traces the route to dest, returning one Hop per TTL that answered,
// in TTL order, truncated at the destination if it was reached. A TTL
// whose probes all time out simply has no Hop in the result.
func Run(ctx context.Context, dest string, cfg Config) ([]Hop, error) {
	if cfg.MaxHops < 1 {
		return nil, fmt.Errorf("traceroute: max hops %d out of range", cfg.MaxHops)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("traceroute: timeout must be positive")
	}

	addr, err := net.ResolveIPAddr("ip4", dest)
	if err != nil {
		return nil, fmt.Errorf("traceroute: resolving %s: %w", dest, err)
	}

	conn, err := icmp.ListenPacket("ip4:icmp", "0.0.0.0")
	if err != nil {
		return nil, fmt.Errorf("traceroute: opening icmp listener: %w", err)
	}
	defer conn.Close()

	log := logging.Default().Named("traceroute")
	log.Debugf("tracing %s (%s), %d hops max", dest, addr.IP, cfg.MaxHops)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// One reply channel per in-flight TTL, filled by the receiver below.
	inbox := make(map[int]chan reply, cfg.MaxHops)
	for ttl := 1; ttl <= cfg.MaxHops; ttl++ {
		inbox[ttl] = make(chan reply, 1)
	}

	pool := threadpool.New(ctx)
	defer pool.Shutdown()

	receiver := pool.Spawn(0, func(ctx context.Context) {
		receiveLoop(ctx, conn, inbox)
	})

	var (
		mu     sync.Mutex
		hops   []Hop
		probes []*threadpool.Handle
	)
	for ttl := 1; ttl <= cfg.MaxHops; ttl++ {
		h := pool.Spawn(0, func(ctx context.Context) {
			hop, ok := probe(ctx, addr, ttl, cfg, inbox[ttl])
			if !ok {
				return
			}
			if cfg.Resolver != nil {
				if name, err := cfg.Resolver.ResolvePTR(ctx, hop.Addr); err == nil {
					hop.Hostname = name
				}
			}
			mu.Lock()
			hops = append(hops, hop)
			mu.Unlock()
		})
		probes = append(probes, h)
	}

	for _, h := range probes {
		h.Wait()
	}
	receiver.Release()
	receiver.Wait()

	sort.Slice(hops, func(i, j int) bool { return hops[i].TTL < hops[j].TTL })
	return trimAtDestination(hops), nil
}

// probe sends one UDP datagram at the given TTL (re-sending per the retry
// policy) and waits for the receiver to deliver the matching reply.
func probe(ctx context.Context, dest *net.IPAddr, ttl int, cfg Config, in <-chan reply) (Hop, bool) {
	udp, err := net.ListenPacket("udp4", "")
	if err != nil {
		return Hop{}, false
	}
	defer udp.Close()

	pc := ipv4.NewPacketConn(udp)
	if err := pc.SetTTL(ttl); err != nil {
		return Hop{}, false
	}
	target := &net.UDPAddr{IP: dest.IP, Port: basePort + ttl}

	var hop Hop
	attempt := func() error {
		sent := time.Now()
		if _, err := udp.WriteTo(payload, target); err != nil {
			return err
		}
		select {
		case r := <-in:
			hop = Hop{TTL: ttl, Addr: r.addr, RTT: r.at.Sub(sent), Reached: r.reached}
			return nil
		case <-time.After(cfg.Timeout):
			return fmt.Errorf("traceroute: ttl %d: no reply within %s", ttl, cfg.Timeout)
		case <-ctx.Done():
			return backoff.Permanent(ctx.Err())
		}
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), cfg.Retries), ctx)
	if err := backoff.Retry(attempt, policy); err != nil {
		return Hop{}, false
	}
	return hop, true
}

// receiveLoop reads ICMP packets off conn until ctx is cancelled, routing
// each parseable reply to the TTL that triggered it.
func receiveLoop(ctx context.Context, conn *icmp.PacketConn, inbox map[int]chan reply) {
	buf := make([]byte, 1500)
	for {
		if ctx.Err() != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		n, peer, err := conn.ReadFrom(buf)
		if err != nil {
			continue
		}
		ttl, reached, ok := parseReply(buf[:n])
		if !ok {
			continue
		}
		ch, known := inbox[ttl]
		if !known {
			continue
		}
		select {
		case ch <- reply{addr: peer.String(), reached: reached, at: time.Now()}:
		default:
			// A retry already consumed this TTL's slot.
		}
	}
}

// parseReply inspects one inbound ICMP packet. For a time-exceeded or
// port-unreachable message it recovers the probe's TTL from the quoted
// original datagram's destination port and reports whether the reply came
// from the destination itself.
func parseReply(b []byte) (ttl int, reached bool, ok bool) {
	msg, err := icmp.ParseMessage(protocolICMP, b)
	if err != nil {
		return 0, false, false
	}

	var quoted []byte
	switch body := msg.Body.(type) {
	case *icmp.TimeExceeded:
		quoted = body.Data
	case *icmp.DstUnreach:
		if msg.Code != 3 { // only port-unreachable marks the destination
			return 0, false, false
		}
		quoted = body.Data
		reached = true
	default:
		return 0, false, false
	}

	port, ok := quotedDstPort(quoted)
	if !ok {
		return 0, false, false
	}
	ttl = port - basePort
	if ttl < 1 {
		return 0, false, false
	}
	return ttl, reached, true
}

// quotedDstPort extracts the UDP destination port from a quoted original
// datagram (IPv4 header plus at least the first four bytes of UDP).
func quotedDstPort(data []byte) (int, bool) {
	if len(data) < 1 {
		return 0, false
	}
	ihl := int(data[0]&0x0f) * 4
	if ihl < 20 || len(data) < ihl+4 {
		return 0, false
	}
	if data[9] != 17 { // not UDP
		return 0, false
	}
	return int(binary.BigEndian.Uint16(data[ihl+2 : ihl+4])), true
}

// trimAtDestination drops every hop past the first one that reached the
// destination; replies for higher TTLs are stale duplicates of the same
// endpoint.
func trimAtDestination(hops []Hop) []Hop {
	for i, h := range hops {
		if h.Reached {
			return hops[:i+1]
		}
	}
	return hops
}
