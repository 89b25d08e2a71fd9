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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodedisc/dnstree/common/mclock"
	"github.com/nodedisc/dnstree/crypto"
)

func TestSyncTreeStartsByUpdatingRoot(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	st := newSyncTree(LinkEntry{Domain: "nodes.example.org", Pubkey: &priv.PublicKey})

	action := st.poll(0, time.Minute)
	assert.Equal(t, actionUpdateRoot, action.kind)
}

func TestSyncTreeWalksLinkThenEnrQueues(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	st := newSyncTree(LinkEntry{Domain: "nodes.example.org", Pubkey: &priv.PublicKey})

	root := TreeRoot{EROOT: "ENRROOTHASH00000000000001", LROOT: "LINKROOTHASH000000000001", Seq: 1}
	changed := st.updateRoot(0, root)
	require.True(t, changed)

	action := st.poll(0, time.Minute)
	require.Equal(t, actionResolveLink, action.kind)
	assert.Equal(t, root.LROOT, action.hash)

	// Link queue now drained; next poll moves to the ENR side.
	action = st.poll(0, time.Minute)
	require.Equal(t, actionResolveEnr, action.kind)
	assert.Equal(t, root.EROOT, action.hash)

	assert.Equal(t, actionNone, st.poll(0, time.Minute).kind)
	assert.True(t, st.done())
}

func TestSyncTreeUpdateRootHigherSeqReplacesWalk(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	st := newSyncTree(LinkEntry{Domain: "nodes.example.org", Pubkey: &priv.PublicKey})

	first := TreeRoot{EROOT: "ENRROOTHASH00000000000001", LROOT: "LINKROOTHASH000000000001", Seq: 1}
	require.True(t, st.updateRoot(0, first))
	// Drain the first epoch's queues so we can tell the second apply reset them.
	st.poll(0, time.Minute)
	st.poll(0, time.Minute)
	assert.True(t, st.done())

	second := TreeRoot{EROOT: "ENRROOTHASH00000000000002", LROOT: "LINKROOTHASH000000000002", Seq: 2}
	require.True(t, st.updateRoot(10, second))
	assert.False(t, st.done())

	action := st.poll(10, time.Minute)
	require.Equal(t, actionResolveLink, action.kind)
	assert.Equal(t, second.LROOT, action.hash)
}

func TestSyncTreeUpdateRootEqualSeqRefreshesTimestampOnly(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	st := newSyncTree(LinkEntry{Domain: "nodes.example.org", Pubkey: &priv.PublicKey})

	root := TreeRoot{EROOT: "ENRROOTHASH00000000000001", LROOT: "LINKROOTHASH000000000001", Seq: 1}
	require.True(t, st.updateRoot(0, root))

	changed := st.updateRoot(5, root)
	assert.False(t, changed)
	assert.Equal(t, mclock.AbsTime(5), st.lastSeen)
}

func TestSyncTreeUpdateRootStaleSeqRejected(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	st := newSyncTree(LinkEntry{Domain: "nodes.example.org", Pubkey: &priv.PublicKey})

	newer := TreeRoot{EROOT: "ENRROOTHASH00000000000002", LROOT: "LINKROOTHASH000000000002", Seq: 5}
	require.True(t, st.updateRoot(0, newer))

	stale := TreeRoot{EROOT: "ENRROOTHASH00000000000001", LROOT: "LINKROOTHASH000000000001", Seq: 3}
	changed := st.updateRoot(10, stale)
	assert.False(t, changed)
	// The tree keeps the newer root's content, just bumps lastSeen.
	assert.True(t, st.root.Equal(newer))
	assert.Equal(t, mclock.AbsTime(10), st.lastSeen)
}

func TestSyncTreeRecheckFiresAfterInterval(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	st := newSyncTree(LinkEntry{Domain: "nodes.example.org", Pubkey: &priv.PublicKey})

	root := TreeRoot{EROOT: "ENRROOTHASH00000000000001", LROOT: "LINKROOTHASH000000000001", Seq: 1}
	require.True(t, st.updateRoot(0, root))
	st.poll(0, time.Minute)
	st.poll(0, time.Minute)
	require.True(t, st.done())

	recheck := 30 * time.Minute
	assert.Equal(t, actionNone, st.poll(mclock.AbsTime(recheck-time.Second), recheck).kind)
	assert.Equal(t, actionUpdateRoot, st.poll(mclock.AbsTime(recheck), recheck).kind)
}

func TestSyncTreeExtendBranchDedupesWithinEpoch(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	st := newSyncTree(LinkEntry{Domain: "nodes.example.org", Pubkey: &priv.PublicKey})

	root := TreeRoot{EROOT: "ROOTEMPTYENRHASH000000001", LROOT: "ROOTBRANCHHASH0000000001", Seq: 1}
	require.True(t, st.updateRoot(0, root))

	action := st.poll(0, time.Minute) // drains the synthetic lroot hash into extendBranch
	require.Equal(t, actionResolveLink, action.kind)
	st.extendBranch(true, action.hash, []string{"CHILDHASH0000000000000001", "CHILDHASH0000000000000002"})
	// Re-delivering the same branch (e.g. reached via a second parent)
	// must not duplicate its children into the queue.
	st.extendBranch(true, action.hash, []string{"CHILDHASH0000000000000001", "CHILDHASH0000000000000002"})

	assert.Len(t, st.linkQueue, 2)
}

func TestSyncTreeResolveLinkTracksChildLinks(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	st := newSyncTree(LinkEntry{Domain: "nodes.example.org", Pubkey: &priv.PublicKey})

	childPriv, err := crypto.GenerateKey()
	require.NoError(t, err)
	child := LinkEntry{Domain: "child.example.org", Pubkey: &childPriv.PublicKey}

	st.resolveLink("SOMEHASH00000000000000001", child)
	links := st.drainChildLinks()
	require.Len(t, links, 1)
	assert.Equal(t, child.Domain, links[0].Domain)
	assert.Empty(t, st.drainChildLinks())
	assert.True(t, st.resolvedLinks.Contains("SOMEHASH00000000000000001"))
}
