// Package dnsutil is a small façade over miekg/dns for the lookups
// substrate's own tooling needs: forward resolution for the CLI's dns
// subcommand and PTR resolution for traceroute hop labeling.
package dnsutil

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/miekg/dns"
)

// Resolver issues DNS queries against a fixed list of servers, retrying
// transient failures with an exponential backoff.
type Resolver struct {
	servers []string
	client  *dns.Client
	retries uint64
}

// NewResolver returns a Resolver querying servers (host:port form, e.g.
// "8.8.8.8:53") with the given per-query timeout. maxRetries bounds the
// backoff retry loop; 0 means no retry.
func NewResolver(servers []string, timeout time.Duration, maxRetries uint64) *Resolver {
	return &Resolver{
		servers: servers,
		client:  &dns.Client{Timeout: timeout},
		retries: maxRetries,
	}
}

// Resolve queries name for records of qtype (e.g. dns.TypeA, dns.TypePTR),
// trying each configured server in turn and retrying the whole round per
// the Resolver's backoff policy.
func (r *Resolver) Resolve(ctx context.Context, name string, qtype uint16) ([]dns.RR, error) {
	if len(r.servers) == 0 {
		return nil, fmt.Errorf("dnsutil: no servers configured")
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), qtype)

	var answer []dns.RR
	op := func() error {
		var lastErr error
		for _, server := range r.servers {
			resp, _, err := r.client.ExchangeContext(ctx, msg, server)
			if err != nil {
				lastErr = err
				continue
			}
			if resp.Rcode != dns.RcodeSuccess {
				lastErr = fmt.Errorf("dnsutil: %s answered rcode %s", server, dns.RcodeToString[resp.Rcode])
				continue
			}
			answer = resp.Answer
			return nil
		}
		return lastErr
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), r.retries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, fmt.Errorf("dnsutil: resolving %s: %w", name, err)
	}
	return answer, nil
}

// ResolvePTR resolves ip's reverse DNS name, returning "" if a server
// answers successfully without a PTR record. A non-success rcode (such as
// NXDOMAIN) is returned as an error, as from Resolve.
func (r *Resolver) ResolvePTR(ctx context.Context, ip string) (string, error) {
	arpa, err := dns.ReverseAddr(ip)
	if err != nil {
		return "", fmt.Errorf("dnsutil: reverse address for %s: %w", ip, err)
	}
	rrs, err := r.Resolve(ctx, arpa, dns.TypePTR)
	if err != nil {
		return "", err
	}
	for _, rr := range rrs {
		if ptr, ok := rr.(*dns.PTR); ok {
			return ptr.Ptr, nil
		}
	}
	return "", nil
}
