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
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/nodedisc/dnstree/common/mclock"
)

// queryKind distinguishes the two shapes of lookup the pool performs:
// resolving a tree's apex (domain only) versus resolving a hash-named
// entry beneath some tree's subdomain.
type queryKind int

const (
	queryRoot queryKind = iota
	queryEntry
)

// queryOutcome is the sum type delivered for a completed lookup: a
// root resolution (possibly failed), or an entry resolution carrying
// the hash it was addressed by so the sync tree can match it back to
// the cursor that requested it.
type queryOutcome struct {
	kind   queryKind
	domain string
	hash   string // populated for queryEntry

	entry parsedEntry
	err   error
}

// queryPool funnels all outbound DNS lookups for a discovery service
// through a shared rate limiter and in-flight deduplication, so
// concurrent lookups of the same DNS name trigger one wire query. The
// dedup key includes the tree's domain, so the same hash under two
// different trees is looked up once per tree.
type queryPool struct {
	resolver Resolver
	limiter  *rate.Limiter
	timeout  time.Duration
	clock    mclock.Clock

	group   singleflight.Group
	results chan queryOutcome

	mu      sync.Mutex
	pending int
}

func newQueryPool(cfg Config) *queryPool {
	return &queryPool{
		resolver: cfg.Resolver,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		timeout:  cfg.LookupTimeout,
		clock:    cfg.Clock,
		results:  make(chan queryOutcome, 256),
	}
}

// enqueueRoot starts (or joins an in-flight) resolution of domain's
// apex TXT record.
func (p *queryPool) enqueueRoot(ctx context.Context, domain string) {
	p.launch("root:"+domain, func() queryOutcome {
		text, err := p.resolveOne(ctx, domain)
		if err != nil {
			return queryOutcome{kind: queryRoot, domain: domain, err: err}
		}
		if text == "" {
			return queryOutcome{kind: queryRoot, domain: domain, err: &ResolverError{Domain: domain, NXDomain: true}}
		}
		entry, perr := parseEntry(text)
		if perr == nil && entry.kind != kindRoot {
			perr = &ParseError{Kind: UnknownTag}
		}
		return queryOutcome{kind: queryRoot, domain: domain, entry: entry, err: perr}
	})
}

// enqueueEntry starts (or joins an in-flight) resolution of the record
// addressed by hash under tree domain base.
func (p *queryPool) enqueueEntry(ctx context.Context, base, hash string) {
	domain := hash + "." + base
	p.launch("entry:"+domain, func() queryOutcome {
		text, err := p.resolveOne(ctx, domain)
		if err != nil {
			return queryOutcome{kind: queryEntry, domain: domain, hash: hash, err: err}
		}
		if text == "" {
			return queryOutcome{kind: queryEntry, domain: domain, hash: hash, err: &ResolverError{Domain: domain, NXDomain: true}}
		}
		entry, perr := parseEntry(text)
		if perr == nil && !hashMatches(hash, entry) {
			perr = &ParseError{Kind: HashMismatch}
		}
		return queryOutcome{kind: queryEntry, domain: domain, hash: hash, entry: entry, err: perr}
	})
}

// hashMatches checks the self-hash invariant: the name a record was
// fetched under must equal the base32 content hash of its own text.
func hashMatches(hash string, e parsedEntry) bool {
	return strings.EqualFold(hash, subdomain(e.text))
}

func (p *queryPool) launch(key string, work func() queryOutcome) {
	p.mu.Lock()
	p.pending++
	p.mu.Unlock()
	go func() {
		v, _, _ := p.group.Do(key, func() (interface{}, error) {
			return work(), nil
		})
		p.mu.Lock()
		p.pending--
		p.mu.Unlock()
		p.results <- v.(queryOutcome)
	}()
}

// resolveOne blocks for a rate-limiter slot, then performs a single
// bounded-deadline resolution.
func (p *queryPool) resolveOne(ctx context.Context, domain string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	text, err := p.resolver.Resolve(ctx, domain)
	if err != nil {
		if ctx.Err() != nil {
			return "", &TimeoutError{Domain: domain}
		}
		return "", err
	}
	return text, nil
}

// poll drains at most one completed outcome without blocking. It
// reports ok=false when nothing is ready yet.
func (p *queryPool) poll() (queryOutcome, bool) {
	select {
	case out := <-p.results:
		return out, true
	default:
		return queryOutcome{}, false
	}
}

// idle reports whether the pool has no in-flight or queued work.
func (p *queryPool) idle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending == 0 && len(p.results) == 0
}
