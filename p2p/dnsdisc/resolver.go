// Copyright 2025 R5 Labs
// This file is part of the R5 Core library.
//
// This software is provided "as is", without warranty of any kind,
// express or implied, including but not limited to the warranties
// of merchantability, fitness for a particular purpose and
// noninfringement. In no event shall the authors or copyright
// holders be liable for any claim, damages, or other liability,
// whether in an action of contract, tort or otherwise, arising
// from, out of or in connection with the software or the use or
// other dealings in the software.

package dnsdisc

import (
	"context"
	"net"
	"strings"
	"sync"
)

// Resolver is the DNS transport contract: given a domain, return its
// TXT record value, or the empty string if none exists (NXDOMAIN or no
// TXT). When a
// name publishes more than one TXT record, the resolver is required
// to concatenate their values in publication order and return the
// single concatenation, per EIP-1459 (large records are split across
// multiple TXT strings at the wire level only).
type Resolver interface {
	Resolve(ctx context.Context, domain string) (string, error)
}

// DNSResolver resolves TXT records using the real DNS system resolver.
type DNSResolver struct {
	resolver *net.Resolver
}

// NewDNSResolver wraps r (nil selects the Go runtime's default system
// resolver).
func NewDNSResolver(r *net.Resolver) *DNSResolver {
	if r == nil {
		r = net.DefaultResolver
	}
	return &DNSResolver{resolver: r}
}

func (d *DNSResolver) Resolve(ctx context.Context, domain string) (string, error) {
	txts, err := d.resolver.LookupTXT(ctx, domain)
	if err != nil {
		if isNXDomain(err) {
			return "", nil
		}
		return "", &ResolverError{Domain: domain, Err: err}
	}
	if len(txts) == 0 {
		return "", nil
	}
	return strings.Join(txts, ""), nil
}

func isNXDomain(err error) bool {
	dnsErr, ok := err.(*net.DNSError)
	return ok && dnsErr.IsNotFound
}

// MapResolver is a synchronous in-memory Resolver used in tests; keys
// are domain names, values are the (already-joined) TXT content.
type MapResolver map[string]string

func (m MapResolver) Resolve(ctx context.Context, domain string) (string, error) {
	domain = strings.TrimSuffix(domain, ".")
	v, ok := m[domain]
	if !ok {
		return "", nil
	}
	return v, nil
}

// CountingResolver wraps another Resolver and counts calls per domain,
// used by tests to assert that the parse cache prevents duplicate DNS
// lookups for a hash shared by two trees (spec scenario 5).
type CountingResolver struct {
	Resolver

	mu     sync.Mutex
	counts map[string]int
}

// NewCountingResolver wraps r.
func NewCountingResolver(r Resolver) *CountingResolver {
	return &CountingResolver{Resolver: r, counts: make(map[string]int)}
}

func (c *CountingResolver) Resolve(ctx context.Context, domain string) (string, error) {
	c.mu.Lock()
	c.counts[domain]++
	c.mu.Unlock()
	return c.Resolver.Resolve(ctx, domain)
}

// Count returns the number of times domain was resolved.
func (c *CountingResolver) Count(domain string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[domain]
}
