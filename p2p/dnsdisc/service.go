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

// Package dnsdisc implements the EIP-1459 DNS tree-walk discovery
// protocol: resolving and verifying a signed, Merkle-structured tree
// of DNS TXT records into a stream of node records, and the inverse,
// publishing a set of node records as such a tree.
package dnsdisc

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/nodedisc/dnstree/log"
	"github.com/nodedisc/dnstree/p2p/enode"
	"github.com/nodedisc/dnstree/p2p/enr"
)

// RecordProjector turns a validated leaf ENR into the compact record a
// subscriber actually wants. The output type is always
// NodeRecordWithForkId; callers needing a different way of filling it
// in (or additional filtering, e.g. by capability: an error drops the
// record) can supply their own.
type RecordProjector interface {
	Project(rec *enr.Record) (*enode.NodeRecordWithForkId, error)
}

type defaultProjector struct{}

func (defaultProjector) Project(rec *enr.Record) (*enode.NodeRecordWithForkId, error) {
	ip, hasIP := enr.LoadIP(rec)
	if !hasIP {
		if ip6, ok := enr.LoadIP6(rec); ok {
			ip, hasIP = ip6, true
		}
	}
	if !hasIP {
		return nil, &NodeRecordConversionError{Reason: "missing ip/ip6"}
	}
	udp, hasUDP := enr.LoadUDP(rec)
	if !hasUDP {
		return nil, &NodeRecordConversionError{Reason: "missing udp port"}
	}
	tcp, _ := enr.LoadTCP(rec)
	nr := enode.NodeRecordWithForkId{
		NodeRecord: enode.NodeRecord{
			IP:  ip,
			UDP: udp,
			TCP: tcp,
			ID:  enode.PubkeyToIDV4(rec.PublicKey()),
		},
	}
	if fid, ok := enr.LoadForkID(rec); ok {
		nr.ForkID = &fid
	}
	return &nr, nil
}

// EventKind classifies an observable DiscoveryEvent.
type EventKind int

const (
	EventRootUpdated EventKind = iota
	EventLinkDiscovered
	EventNodeFound
	EventEntryError
)

// DiscoveryEvent is emitted on the service's event stream for every
// state transition a caller might want to observe without subscribing
// to the node-record feed itself.
type DiscoveryEvent struct {
	Kind   EventKind
	Domain string
	Seq    uint32
	Link   LinkEntry
	Node   *enode.NodeRecordWithForkId
	Err    error
}

type treeState struct {
	tree *syncTree

	awaiting     bool
	awaitingRoot bool
	awaitingHash string
}

// command is the service's inbox message type.
type command interface{ isCommand() }

type cmdSyncTree struct{ link LinkEntry }

func (cmdSyncTree) isCommand() {}

type cmdStop struct{}

func (cmdStop) isCommand() {}

// DiscoveryService runs the cooperative event loop that drives every
// tree's walk to completion and beyond, republishing node records as
// they are discovered and rechecking roots on a timer. It is safe to
// drive from a single goroutine (Run) and command from any number of
// others.
type DiscoveryService struct {
	cfg       Config
	pool      *queryPool
	cache     *entryCache
	projector RecordProjector
	log       log.Logger

	trees map[string]*treeState

	commands chan command
	events   chan DiscoveryEvent

	subsMu sync.Mutex
	subs   []chan *enode.NodeRecordWithForkId

	ctx    context.Context
	cancel context.CancelFunc
}

// NewDiscoveryService constructs a service from cfg (defaults filled
// in) and schedules cfg.Bootstrap for sync once Run starts.
func NewDiscoveryService(cfg Config) *DiscoveryService {
	cfg = cfg.WithDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	s := &DiscoveryService{
		cfg:       cfg,
		pool:      newQueryPool(cfg),
		cache:     newEntryCache(cfg.CacheLimit),
		projector: defaultProjector{},
		log:       cfg.Logger,
		trees:     make(map[string]*treeState),
		commands:  make(chan command, 64),
		events:    make(chan DiscoveryEvent, 256),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, l := range cfg.Bootstrap {
		s.trees[l.Domain] = &treeState{tree: newSyncTree(l)}
	}
	return s
}

// SetProjector overrides the default ENR-to-NodeRecord projection.
// Must be called before Run.
func (s *DiscoveryService) SetProjector(p RecordProjector) { s.projector = p }

// SyncTree schedules link for walking. Safe to call concurrently with
// Run; idempotent for a domain already being synced.
func (s *DiscoveryService) SyncTree(link LinkEntry) {
	select {
	case s.commands <- cmdSyncTree{link: link}:
	case <-s.ctx.Done():
	}
}

// Subscribe returns a channel that receives every node record the
// service discovers from here on. The channel is closed when the
// service stops. Sends are non-blocking: a slow subscriber misses
// records rather than stalling the event loop.
func (s *DiscoveryService) Subscribe() <-chan *enode.NodeRecordWithForkId {
	ch := make(chan *enode.NodeRecordWithForkId, 256)
	s.subsMu.Lock()
	s.subs = append(s.subs, ch)
	s.subsMu.Unlock()
	return ch
}

// Events returns the service's observable event stream.
func (s *DiscoveryService) Events() <-chan DiscoveryEvent { return s.events }

// Stop terminates the event loop and closes all subscriber channels.
func (s *DiscoveryService) Stop() { s.cancel() }

// Run drives the event loop until Stop is called or ctx is canceled.
// It is intended to be launched in its own goroutine.
func (s *DiscoveryService) Run(ctx context.Context) {
	defer s.closeSubscribers()

	timer := s.cfg.Clock.NewTimer(pollInterval)
	defer timer.Stop()

	for {
		s.drainCommands()
		s.drainResults()
		s.dispatchPolls()

		select {
		case <-ctx.Done():
			return
		case <-s.ctx.Done():
			return
		case c := <-s.commands:
			s.handleCommand(c)
		case out := <-s.pool.results:
			s.handleOutcome(out)
		case <-timer.C():
			timer.Reset(pollInterval)
		}
	}
}

const pollInterval = 50 * time.Millisecond

func (s *DiscoveryService) drainCommands() {
	for {
		select {
		case c := <-s.commands:
			s.handleCommand(c)
		default:
			return
		}
	}
}

func (s *DiscoveryService) handleCommand(c command) {
	switch cmd := c.(type) {
	case cmdSyncTree:
		if _, ok := s.trees[cmd.link.Domain]; !ok {
			s.trees[cmd.link.Domain] = &treeState{tree: newSyncTree(cmd.link)}
		}
	case cmdStop:
		s.cancel()
	}
}

func (s *DiscoveryService) drainResults() {
	for {
		out, ok := s.pool.poll()
		if !ok {
			return
		}
		s.handleOutcome(out)
	}
}

// dispatchPolls advances every tree not already awaiting a query,
// consulting the cache before issuing a new DNS lookup.
func (s *DiscoveryService) dispatchPolls() {
	now := s.cfg.Clock.Now()
	for domain, ts := range s.trees {
		if ts.awaiting {
			continue
		}
		for {
			action := ts.tree.poll(now, s.cfg.RecheckInterval)
			if action.kind == actionNone {
				break
			}
			if action.kind == actionUpdateRoot {
				s.pool.enqueueRoot(s.ctx, domain)
				ts.awaiting, ts.awaitingRoot = true, true
				break
			}
			if cached, ok := s.cache.get(action.hash); ok {
				s.applyResolved(domain, ts, action.kind, action.hash, cached, nil)
				continue // tree state changed; poll again immediately
			}
			s.pool.enqueueEntry(s.ctx, domain, action.hash)
			ts.awaiting, ts.awaitingHash = true, action.hash
			break
		}
	}
}

func (s *DiscoveryService) handleOutcome(out queryOutcome) {
	if out.kind == queryRoot {
		ts, ok := s.trees[out.domain]
		if !ok {
			return
		}
		ts.awaiting, ts.awaitingRoot = false, false
		s.applyResolved(out.domain, ts, actionUpdateRoot, "", out.entry, out.err)
		return
	}
	// Entry outcome: match against whichever tree is awaiting this
	// hash under its own domain (outcome.domain is "<hash>.<base>").
	for domain, ts := range s.trees {
		if !ts.awaiting || ts.awaitingRoot || ts.awaitingHash != out.hash {
			continue
		}
		if !strings.HasSuffix(out.domain, "."+domain) {
			continue
		}
		ts.awaiting, ts.awaitingHash = false, ""
		if out.err == nil {
			s.cache.put(out.hash, out.entry)
		}
		kind := actionResolveEnr
		if s.expectsLinkSide(ts.tree, out.hash) {
			kind = actionResolveLink
		}
		s.applyResolved(domain, ts, kind, out.hash, out.entry, out.err)
		return
	}
}

// expectsLinkSide is a best-effort classification used only to route
// a freshly resolved hash back into the correct cursor's queue; actual
// content-kind mismatches (e.g. an ENR reached from the link side) are
// caught by applyResolved's type switch and reported as parse errors.
func (s *DiscoveryService) expectsLinkSide(t *syncTree, hash string) bool {
	for _, h := range t.linkQueue {
		if h == hash {
			return true
		}
	}
	return false
}

func (s *DiscoveryService) applyResolved(domain string, ts *treeState, kind syncActionKind, hash string, e parsedEntry, err error) {
	now := s.cfg.Clock.Now()
	if err != nil {
		s.log.Debug("dnsdisc entry resolution failed", "domain", domain, "err", err)
		s.emit(DiscoveryEvent{Kind: EventEntryError, Domain: domain, Err: err})
		return
	}
	switch kind {
	case actionUpdateRoot:
		if e.kind != kindRoot {
			s.emit(DiscoveryEvent{Kind: EventEntryError, Domain: domain, Err: &ParseError{Kind: UnknownTag}})
			return
		}
		if !e.root.verifySignature(ts.tree.link.Pubkey) {
			s.log.Warn("dnsdisc root signature verification failed", "domain", domain)
			s.emit(DiscoveryEvent{Kind: EventEntryError, Domain: domain, Err: &ParseError{Kind: BadSignature}})
			return
		}
		if ts.tree.updateRoot(now, e.root) {
			s.log.Info("dnsdisc root updated", "domain", domain, "seq", e.root.Seq)
			s.emit(DiscoveryEvent{Kind: EventRootUpdated, Domain: domain, Seq: e.root.Seq})
		}
	case actionResolveLink:
		switch e.kind {
		case kindBranch:
			ts.tree.extendBranch(true, hash, e.branch.children)
		case kindLink:
			ts.tree.resolveLink(hash, e.link)
			s.emit(DiscoveryEvent{Kind: EventLinkDiscovered, Domain: domain, Link: e.link})
			s.SyncTree(e.link)
		default:
			s.emit(DiscoveryEvent{Kind: EventEntryError, Domain: domain, Err: &ParseError{Kind: UnknownTag}})
		}
	case actionResolveEnr:
		switch e.kind {
		case kindBranch:
			ts.tree.extendBranch(false, hash, e.branch.children)
		case kindEnr:
			nr, perr := s.projector.Project(e.enr.record)
			if perr != nil {
				s.emit(DiscoveryEvent{Kind: EventEntryError, Domain: domain, Err: perr})
				return
			}
			s.emit(DiscoveryEvent{Kind: EventNodeFound, Domain: domain, Node: nr})
			s.publish(nr)
		default:
			s.emit(DiscoveryEvent{Kind: EventEntryError, Domain: domain, Err: &ParseError{Kind: UnknownTag}})
		}
	}
}

func (s *DiscoveryService) emit(ev DiscoveryEvent) {
	select {
	case s.events <- ev:
	default:
		// Event stream is lossy under backpressure, same as the
		// subscriber feed: observability must never stall discovery.
	}
}

func (s *DiscoveryService) publish(nr *enode.NodeRecordWithForkId) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- nr:
		default:
		}
	}
}

func (s *DiscoveryService) closeSubscribers() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		close(ch)
	}
	s.subs = nil
}
