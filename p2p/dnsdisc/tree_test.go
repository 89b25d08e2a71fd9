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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodedisc/dnstree/crypto"
	"github.com/nodedisc/dnstree/p2p/enr"
)

func TestLinkEntryRoundTrip(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)

	link := LinkEntry{Domain: "nodes.example.org", Pubkey: &priv.PublicKey}
	url := link.String()
	assert.Contains(t, url, linkPrefix)

	parsed, err := ParseLink(url)
	require.NoError(t, err)
	assert.Equal(t, link.Domain, parsed.Domain)
	assert.True(t, crypto.PubkeysEqual(link.Pubkey, parsed.Pubkey))
}

func TestParseLinkRejectsMissingAtSign(t *testing.T) {
	_, err := ParseLink(linkPrefix + "nodomainhere")
	require.Error(t, err)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, FieldMissing, perr.Kind)
}

func TestParseLinkRejectsWrongPrefix(t *testing.T) {
	_, err := ParseLink("enr:notalink")
	require.Error(t, err)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, UnknownTag, perr.Kind)
}

func TestTreeRootSignatureRoundTrip(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)

	root := TreeRoot{EROOT: "2XS2367YHAXJFGLZHVAWLQD4ZY", LROOT: "JWXYDBPXYWG6FX3GMDIBFA6CJ4", Seq: 1}
	sig, err := crypto.Sign(root.sigHash(), priv)
	require.NoError(t, err)
	copy(root.Sig[:], sig)

	assert.True(t, root.verifySignature(&priv.PublicKey))

	other, err := crypto.GenerateKey()
	require.NoError(t, err)
	assert.False(t, root.verifySignature(&other.PublicKey))
}

func TestTreeRootStringParseRoundTrip(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)

	root := TreeRoot{EROOT: "2XS2367YHAXJFGLZHVAWLQD4ZY", LROOT: "JWXYDBPXYWG6FX3GMDIBFA6CJ4", Seq: 7}
	sig, err := crypto.Sign(root.sigHash(), priv)
	require.NoError(t, err)
	copy(root.Sig[:], sig)

	text := root.String()
	parsed, err := parseRoot(text)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(root))
	assert.True(t, parsed.verifySignature(&priv.PublicKey))
}

func TestParseRootRejectsBadHashLength(t *testing.T) {
	_, err := parseRoot(rootPrefix + " e=short l=JWXYDBPXYWG6FX3GMDIBFA6CJ4 seq=1 sig=AAAA")
	require.Error(t, err)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, BadHashLength, perr.Kind)
}

func TestBranchEntryRoundTrip(t *testing.T) {
	b := &branchEntry{children: []string{"2XS2367YHAXJFGLZHVAWLQD4ZY", "JWXYDBPXYWG6FX3GMDIBFA6CJ4"}}
	text := b.String()

	parsed, err := parseBranch(text)
	require.NoError(t, err)
	assert.Equal(t, b.children, parsed.children)
}

func TestParseEmptyBranch(t *testing.T) {
	parsed, err := parseBranch(branchPrefix)
	require.NoError(t, err)
	assert.Empty(t, parsed.children)
}

func TestParseBranchRejectsBadChildHash(t *testing.T) {
	_, err := parseBranch(branchPrefix + "too-short")
	require.Error(t, err)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, BadHashLength, perr.Kind)
}

func TestEnrEntryRoundTrip(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	rec := enr.NewRecord()
	rec.Set(enr.IP4(net.ParseIP("127.0.0.1")))
	rec.Set(enr.UDP(30303))
	require.NoError(t, rec.Sign(priv))

	text := enrPrefix + b64.EncodeToString(rec.Encode())
	e, err := parseEnr(text)
	require.NoError(t, err)
	assert.True(t, enr.Equal(rec, e.record))
	assert.Equal(t, text, e.String())
}

func TestParseEntryDispatch(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)

	root := TreeRoot{EROOT: "2XS2367YHAXJFGLZHVAWLQD4ZY", LROOT: "JWXYDBPXYWG6FX3GMDIBFA6CJ4", Seq: 1}
	sig, err := crypto.Sign(root.sigHash(), priv)
	require.NoError(t, err)
	copy(root.Sig[:], sig)

	cases := []struct {
		name string
		text string
		kind entryKind
	}{
		{"root", root.String(), kindRoot},
		{"branch", (&branchEntry{children: []string{"2XS2367YHAXJFGLZHVAWLQD4ZY"}}).String(), kindBranch},
		{"link", LinkEntry{Domain: "n.example.org", Pubkey: &priv.PublicKey}.String(), kindLink},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			e, err := parseEntry(c.text)
			require.NoError(t, err)
			assert.Equal(t, c.kind, e.kind)
		})
	}
}

func TestParseEntryUnknownTag(t *testing.T) {
	_, err := parseEntry("garbage")
	require.Error(t, err)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, UnknownTag, perr.Kind)
}

func TestSubdomainIsDeterministicAndFixedLength(t *testing.T) {
	h1 := subdomain("hello")
	h2 := subdomain("hello")
	h3 := subdomain("world")
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, hashLength)
}
