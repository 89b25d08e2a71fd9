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
	"time"

	"github.com/nodedisc/dnstree/common/mclock"
	"github.com/nodedisc/dnstree/log"
)

const (
	defaultLookupTimeout   = 5 * time.Second
	defaultRecheckInterval = 30 * time.Minute
	defaultCacheLimit      = 1000
	defaultRateLimit       = 3 // queries per second
)

// Config controls the discovery service's resolution policy.
type Config struct {
	// LookupTimeout bounds a single DNS resolution.
	LookupTimeout time.Duration
	// RecheckInterval is how often a fully-synced tree's root is
	// re-resolved to pick up republication.
	RecheckInterval time.Duration
	// CacheLimit bounds the number of parsed entries kept in memory,
	// keyed by content hash.
	CacheLimit int
	// RateLimit caps outbound DNS queries per second.
	RateLimit float64
	// Burst is the token bucket's burst capacity.
	Burst int
	// Bootstrap is the set of trees synced on startup.
	Bootstrap []LinkEntry
	// Resolver performs the underlying DNS TXT lookups.
	Resolver Resolver
	// Clock abstracts time for deterministic tests.
	Clock mclock.Clock
	// Logger receives structured diagnostics.
	Logger log.Logger
}

// WithDefaults fills unset fields with their defaults and returns the
// result; it never mutates the receiver.
func (c Config) WithDefaults() Config {
	if c.LookupTimeout == 0 {
		c.LookupTimeout = defaultLookupTimeout
	}
	if c.RecheckInterval == 0 {
		c.RecheckInterval = defaultRecheckInterval
	}
	if c.CacheLimit == 0 {
		c.CacheLimit = defaultCacheLimit
	}
	if c.RateLimit == 0 {
		c.RateLimit = defaultRateLimit
	}
	if c.Burst == 0 {
		// Burst equals the steady-state rate: the token bucket starts
		// full, capacity = max_requests_per_sec, matching the
		// sliding-window property that allows only brief jitter above
		// the configured rate rather than a large initial spike.
		c.Burst = int(c.RateLimit)
		if c.Burst == 0 {
			c.Burst = 1
		}
	}
	if c.Resolver == nil {
		c.Resolver = NewDNSResolver(nil)
	}
	if c.Clock == nil {
		c.Clock = mclock.System{}
	}
	if c.Logger == nil {
		c.Logger = log.Root()
	}
	return c
}
