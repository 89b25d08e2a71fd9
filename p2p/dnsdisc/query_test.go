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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodedisc/dnstree/common/mclock"
	"github.com/nodedisc/dnstree/crypto"
)

func signedRootText(t *testing.T) string {
	t.Helper()
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	root := TreeRoot{EROOT: "2XS2367YHAXJFGLZHVAWLQD4ZY", LROOT: "JWXYDBPXYWG6FX3GMDIBFA6CJ4", Seq: 1}
	sig, err := crypto.Sign(root.sigHash(), priv)
	require.NoError(t, err)
	copy(root.Sig[:], sig)
	return root.String()
}

func TestQueryPoolEnqueueRootResolvesSuccessfully(t *testing.T) {
	m := MapResolver{"nodes.example.org": signedRootText(t)}
	cfg := Config{Resolver: m, RateLimit: 100, Burst: 100, LookupTimeout: time.Second, Clock: mclock.System{}}
	pool := newQueryPool(cfg)

	pool.enqueueRoot(context.Background(), "nodes.example.org")
	out := mustPoll(t, pool)
	assert.Equal(t, queryRoot, out.kind)
	assert.Equal(t, kindRoot, out.entry.kind)
	assert.NoError(t, out.err)
}

func TestQueryPoolEnqueueRootNXDomain(t *testing.T) {
	m := MapResolver{}
	cfg := Config{Resolver: m, RateLimit: 100, Burst: 100, LookupTimeout: time.Second, Clock: mclock.System{}}
	pool := newQueryPool(cfg)

	pool.enqueueRoot(context.Background(), "missing.example.org")
	out := mustPoll(t, pool)
	require.Error(t, out.err)
	var rerr *ResolverError
	require.ErrorAs(t, out.err, &rerr)
	assert.True(t, rerr.NXDomain)
}

func TestQueryPoolEnqueueEntryDetectsHashMismatch(t *testing.T) {
	wrongHash := "AAAAAAAAAAAAAAAAAAAAAAAAAA"
	m := MapResolver{wrongHash + ".nodes.example.org": branchPrefix + "2XS2367YHAXJFGLZHVAWLQD4ZY"}
	cfg := Config{Resolver: m, RateLimit: 100, Burst: 100, LookupTimeout: time.Second, Clock: mclock.System{}}
	pool := newQueryPool(cfg)

	pool.enqueueEntry(context.Background(), "nodes.example.org", wrongHash)
	out := mustPoll(t, pool)
	require.Error(t, out.err)
	var perr *ParseError
	require.ErrorAs(t, out.err, &perr)
	assert.Equal(t, HashMismatch, perr.Kind)
}

// TestQueryPoolDedupesConcurrentIdenticalRequests holds the resolver
// open behind a gate so all 5 enqueued lookups are guaranteed to join
// the same singleflight group before any of them completes, making
// the dedup count deterministic rather than a timing race.
func TestQueryPoolDedupesConcurrentIdenticalRequests(t *testing.T) {
	gated := &gatedMapResolver{MapResolver: MapResolver{"nodes.example.org": signedRootText(t)}, release: make(chan struct{})}
	cfg := Config{Resolver: gated, RateLimit: 100, Burst: 100, LookupTimeout: time.Second, Clock: mclock.System{}}
	pool := newQueryPool(cfg)

	for i := 0; i < 5; i++ {
		pool.enqueueRoot(context.Background(), "nodes.example.org")
	}
	// Give all 5 launched goroutines a chance to reach group.Do and
	// block inside Resolve before releasing the shared call.
	time.Sleep(50 * time.Millisecond)
	close(gated.release)

	for i := 0; i < 5; i++ {
		out := mustPoll(t, pool)
		assert.NoError(t, out.err)
	}
	assert.Equal(t, 1, gated.calls())
}

func mustPoll(t *testing.T, pool *queryPool) queryOutcome {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if out, ok := pool.poll(); ok {
			return out
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for query pool outcome")
		case <-time.After(time.Millisecond):
		}
	}
}

type gatedMapResolver struct {
	MapResolver
	release chan struct{}

	mu sync.Mutex
	n  int
}

func (g *gatedMapResolver) Resolve(ctx context.Context, domain string) (string, error) {
	g.mu.Lock()
	g.n++
	g.mu.Unlock()
	<-g.release
	return g.MapResolver.Resolve(ctx, domain)
}

func (g *gatedMapResolver) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}
