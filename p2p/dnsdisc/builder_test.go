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
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodedisc/dnstree/crypto"
	"github.com/nodedisc/dnstree/p2p/enr"
)

func makeTestRecord(t *testing.T, udp uint16) *enr.Record {
	t.Helper()
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	rec := enr.NewRecord()
	rec.Set(enr.IP4(net.ParseIP("127.0.0.1")))
	rec.Set(enr.UDP(udp))
	require.NoError(t, rec.Sign(priv))
	return rec
}

func TestMakeTreeSignToTXTSingleLeaf(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	rec := makeTestRecord(t, 30303)

	tree, err := MakeTree(1, []*enr.Record{rec}, nil)
	require.NoError(t, err)
	require.NoError(t, tree.Sign(priv))

	const domain = "nodes.example.org"
	txt, err := tree.ToTXT(domain)
	require.NoError(t, err)

	root, err := parseRoot(txt[domain])
	require.NoError(t, err)
	assert.True(t, root.verifySignature(&priv.PublicKey))

	// Walk from root.EROOT down to the single leaf.
	leafText, ok := txt[root.EROOT+"."+domain]
	require.True(t, ok, "leaf entry must be published under its hash subdomain")
	entry, err := parseEntry(leafText)
	require.NoError(t, err)
	assert.Equal(t, kindEnr, entry.kind)
	assert.True(t, enr.Equal(rec, entry.enr.record))

	// Link side is empty: its root addresses a synthetic empty branch.
	lrootText, ok := txt[root.LROOT+"."+domain]
	require.True(t, ok)
	lrootEntry, err := parseEntry(lrootText)
	require.NoError(t, err)
	require.Equal(t, kindBranch, lrootEntry.kind)
	assert.Empty(t, lrootEntry.branch.children)
}

func TestMakeTreeFansOutLargeLeafSet(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)

	var records []*enr.Record
	for i := 0; i < maxChildrenPerBranch+5; i++ {
		records = append(records, makeTestRecord(t, uint16(30000+i)))
	}

	tree, err := MakeTree(1, records, nil)
	require.NoError(t, err)
	require.NoError(t, tree.Sign(priv))

	const domain = "nodes.example.org"
	txt, err := tree.ToTXT(domain)
	require.NoError(t, err)

	root, err := parseRoot(txt[domain])
	require.NoError(t, err)

	// The apex of a >maxChildrenPerBranch leaf set must fold into at
	// least one intermediate branch rather than listing every leaf
	// directly, so walking it must pass through at least one branch
	// entry before reaching a leaf.
	rootEntryText, ok := txt[root.EROOT+"."+domain]
	require.True(t, ok)
	rootEntry, err := parseEntry(rootEntryText)
	require.NoError(t, err)
	require.Equal(t, kindBranch, rootEntry.kind)

	seenLeaf := false
	for _, childHash := range rootEntry.branch.children {
		childText, ok := txt[childHash+"."+domain]
		require.True(t, ok)
		child, err := parseEntry(childText)
		require.NoError(t, err)
		require.Equal(t, kindBranch, child.kind)
		for _, leafHash := range child.branch.children {
			leafText, ok := txt[leafHash+"."+domain]
			require.True(t, ok)
			leaf, err := parseEntry(leafText)
			require.NoError(t, err)
			if leaf.kind == kindEnr {
				seenLeaf = true
			}
		}
	}
	assert.True(t, seenLeaf)
}

func TestMakeTreeRejectsToTXTBeforeSign(t *testing.T) {
	tree, err := MakeTree(1, nil, nil)
	require.NoError(t, err)
	_, err = tree.ToTXT("nodes.example.org")
	assert.Error(t, err)
}

func TestTreeLinkURLMatchesParseLink(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	tree, err := MakeTree(1, nil, nil)
	require.NoError(t, err)
	require.NoError(t, tree.Sign(priv))

	url := tree.LinkURL("nodes.example.org", &priv.PublicKey)
	assert.True(t, strings.HasPrefix(url, linkPrefix))

	link, err := ParseLink(url)
	require.NoError(t, err)
	assert.Equal(t, "nodes.example.org", link.Domain)
	assert.True(t, crypto.PubkeysEqual(&priv.PublicKey, link.Pubkey))
}
