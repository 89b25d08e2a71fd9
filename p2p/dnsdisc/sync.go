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

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/nodedisc/dnstree/common/mclock"
)

// syncActionKind tags what a SyncTree wants the service to do next.
type syncActionKind int

const (
	actionNone syncActionKind = iota
	actionUpdateRoot
	actionResolveLink
	actionResolveEnr
)

// syncAction is the single unit of work a SyncTree's poll can request.
// Exactly one pending action is returned at a time, in the priority
// order: root refresh, then link-side children, then leaf children.
type syncAction struct {
	kind syncActionKind
	hash string // populated for actionResolveLink/actionResolveEnr
}

// syncTree is the per-tree state machine: it tracks the tree's current
// root, the still-unresolved link and ENR hashes discovered while
// walking, and which hashes have already been resolved so re-walks
// after a recheck don't repeat work unless the tree's content changed.
type syncTree struct {
	link LinkEntry

	root          TreeRoot
	haveRoot      bool
	rootAttempted bool
	lastSeen      mclock.AbsTime

	linkQueue []string
	enrQueue  []string

	resolvedLinks mapset.Set[string]
	seenThisEpoch mapset.Set[string]

	childLinks []LinkEntry
}

func newSyncTree(link LinkEntry) *syncTree {
	return &syncTree{
		link:          link,
		resolvedLinks: mapset.NewSet[string](),
		seenThisEpoch: mapset.NewSet[string](),
	}
}

// poll returns the next outstanding action for this tree, or
// actionNone when the tree is fully walked and not yet due for a
// recheck.
func (t *syncTree) poll(now mclock.AbsTime, recheckInterval time.Duration) syncAction {
	if !t.haveRoot {
		// Gate repeated attempts on the recheck window, same as an
		// established root: a lookup that keeps failing (NXDOMAIN,
		// timeout, bad sig) must back off to the recheck cadence
		// rather than being re-emitted on every poll tick. The very
		// first attempt is never gated.
		if t.rootAttempted && time.Duration(now-t.lastSeen) < recheckInterval {
			return syncAction{kind: actionNone}
		}
		t.rootAttempted = true
		t.lastSeen = now
		return syncAction{kind: actionUpdateRoot}
	}
	if time.Duration(now-t.lastSeen) >= recheckInterval {
		t.lastSeen = now
		return syncAction{kind: actionUpdateRoot}
	}
	// Link-side children take priority: they define new trees whose
	// own roots need to be scheduled as early as possible.
	for len(t.linkQueue) > 0 {
		h := t.linkQueue[0]
		t.linkQueue = t.linkQueue[1:]
		if t.resolvedLinks.Contains(h) {
			continue
		}
		return syncAction{kind: actionResolveLink, hash: h}
	}
	for len(t.enrQueue) > 0 {
		h := t.enrQueue[0]
		t.enrQueue = t.enrQueue[1:]
		return syncAction{kind: actionResolveEnr, hash: h}
	}
	return syncAction{kind: actionNone}
}

// updateRoot applies a freshly resolved root record, per the sequence
// comparison rule: a higher seq replaces the tree wholesale and resets
// the walk; an equal seq with identical content just refreshes the
// recheck timestamp; anything else (a lower seq, or an equal seq with
// different content) leaves the tree as it is and also only refreshes
// the recheck timestamp. A root with a bad signature is rejected by
// the caller before this is invoked.
func (t *syncTree) updateRoot(now mclock.AbsTime, newRoot TreeRoot) (changed bool) {
	switch {
	case !t.haveRoot:
		t.applyNewRoot(now, newRoot)
		return true
	case newRoot.Seq > t.root.Seq:
		t.applyNewRoot(now, newRoot)
		return true
	case newRoot.Seq == t.root.Seq && newRoot.Equal(t.root):
		t.lastSeen = now
		return false
	default:
		// Stale or regressed root: keep the current state, just push
		// the recheck clock out so we don't hammer a misbehaving
		// publisher.
		t.lastSeen = now
		return false
	}
}

func (t *syncTree) applyNewRoot(now mclock.AbsTime, newRoot TreeRoot) {
	t.root = newRoot
	t.haveRoot = true
	t.lastSeen = now
	t.linkQueue = []string{newRoot.LROOT}
	t.enrQueue = []string{newRoot.EROOT}
	t.seenThisEpoch = mapset.NewSet[string]()
}

// extendBranch expands a resolved branch entry's children into the
// appropriate queue, skipping hashes already seen this epoch so a DAG
// shared between branches is only walked once until a higher-seq root
// resets the walk.
func (t *syncTree) extendBranch(isLinkSide bool, hash string, children []string) {
	t.seenThisEpoch.Add(hash)
	for _, c := range children {
		if t.seenThisEpoch.Contains(c) {
			continue
		}
		t.seenThisEpoch.Add(c)
		if isLinkSide {
			t.linkQueue = append(t.linkQueue, c)
		} else {
			t.enrQueue = append(t.enrQueue, c)
		}
	}
}

// resolveLink records a fully resolved child link, making its tree
// eligible for the service to start syncing.
func (t *syncTree) resolveLink(hash string, link LinkEntry) {
	t.resolvedLinks.Add(hash)
	t.childLinks = append(t.childLinks, link)
}

// drainChildLinks returns and clears newly discovered child links.
func (t *syncTree) drainChildLinks() []LinkEntry {
	out := t.childLinks
	t.childLinks = nil
	return out
}

// done reports whether the tree has no outstanding link or leaf work
// (it may still come due for a recheck later).
func (t *syncTree) done() bool {
	return t.haveRoot && len(t.linkQueue) == 0 && len(t.enrQueue) == 0
}
