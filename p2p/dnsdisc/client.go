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
	"fmt"

	"github.com/nodedisc/dnstree/p2p/enode"
)

// Client is a thin synchronous wrapper around DiscoveryService for
// callers that just want "give me the nodes behind this URL" without
// managing the event loop themselves.
type Client struct {
	cfg Config
}

// NewClient constructs a Client; cfg's defaults are filled lazily by
// NewDiscoveryService on each call.
func NewClient(cfg Config) *Client {
	return &Client{cfg: cfg}
}

// SyncTree resolves url fully, including every linked subtree, and
// returns every node record discovered before the walk goes idle (no
// tree has outstanding link or leaf work left) or ctx is canceled.
func (c *Client) SyncTree(ctx context.Context, url string) ([]*enode.NodeRecordWithForkId, error) {
	link, err := ParseLink(url)
	if err != nil {
		return nil, fmt.Errorf("dnsdisc: %w", err)
	}

	svc := NewDiscoveryService(c.cfg)
	defer svc.Stop()

	nodes := svc.Subscribe()
	events := svc.Events()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go svc.Run(runCtx)

	svc.SyncTree(link)

	idle := svc.cfg.Clock.NewTimer(svc.cfg.LookupTimeout)
	defer idle.Stop()

	var out []*enode.NodeRecordWithForkId
	for {
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		case n, ok := <-nodes:
			if !ok {
				return out, nil
			}
			out = append(out, n)
			idle.Reset(svc.cfg.LookupTimeout)
		case <-events:
			idle.Reset(svc.cfg.LookupTimeout)
		case <-idle.C():
			if !svc.pool.idle() {
				// A lookup is still waiting for a rate-limiter slot or
				// for its answer: the walk is not over yet.
				idle.Reset(svc.cfg.LookupTimeout)
				continue
			}
			return out, nil
		}
	}
}
