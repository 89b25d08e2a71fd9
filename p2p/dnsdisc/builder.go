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
	"crypto/ecdsa"
	"fmt"
	"sort"

	"github.com/nodedisc/dnstree/crypto"
	"github.com/nodedisc/dnstree/p2p/enr"
)

// maxChildrenPerBranch bounds how many hashes a single enrtree-branch:
// entry lists, keeping each TXT record within typical DNS record size
// limits once base32-encoded.
const maxChildrenPerBranch = 30

// Tree is an in-memory EIP-1459 tree ready for signing and
// publication. Build one with MakeTree, then Sign it before calling
// ToTXT.
type Tree struct {
	root     TreeRoot
	entries  map[string]string // subdomain hash -> entry text, excludes the apex
	seq      uint32
	eroot    string
	lroot    string
	unsigned bool
}

// MakeTree lays out enrs as the leaf set and links as the tree's child
// links, building whatever branch fan-out is required, and leaves the
// result ready for Sign.
func MakeTree(seq uint32, records []*enr.Record, links []LinkEntry) (*Tree, error) {
	t := &Tree{entries: make(map[string]string), seq: seq, unsigned: true}

	leafTexts := make([]string, 0, len(records))
	for _, r := range records {
		leafTexts = append(leafTexts, enrPrefix+b64.EncodeToString(r.Encode()))
	}
	eroot, err := t.buildSubtree(leafTexts)
	if err != nil {
		return nil, err
	}
	t.eroot = eroot

	linkTexts := make([]string, 0, len(links))
	for _, l := range links {
		linkTexts = append(linkTexts, l.String())
	}
	lroot, err := t.buildSubtree(linkTexts)
	if err != nil {
		return nil, err
	}
	t.lroot = lroot
	return t, nil
}

// buildSubtree inserts leaves into t.entries, building intermediate
// enrtree-branch: nodes as needed, and returns the subtree's root
// hash. An empty leaf set's root hash addresses an empty branch entry,
// matching the "no entries of this kind" case a minimal tree can have.
func (t *Tree) buildSubtree(leaves []string) (string, error) {
	level := leaves
	if len(level) == 0 {
		text := (&branchEntry{}).String()
		t.entries[subdomain(text)] = text
		return subdomain(text), nil
	}
	for _, l := range level {
		t.entries[subdomain(l)] = l
	}
	for len(level) > 1 {
		level = t.foldLevel(level)
	}
	return subdomain(level[0]), nil
}

// foldLevel groups the current level's hashes into branch entries of
// at most maxChildrenPerBranch children, producing the next level up.
func (t *Tree) foldLevel(level []string) []string {
	hashes := make([]string, len(level))
	for i, e := range level {
		hashes[i] = subdomain(e)
	}
	sort.Strings(hashes)

	var next []string
	for i := 0; i < len(hashes); i += maxChildrenPerBranch {
		end := i + maxChildrenPerBranch
		if end > len(hashes) {
			end = len(hashes)
		}
		b := &branchEntry{children: hashes[i:end]}
		text := b.String()
		t.entries[subdomain(text)] = text
		next = append(next, text)
	}
	return next
}

// Sign computes and stores the tree's root signature using priv.
func (t *Tree) Sign(priv *ecdsa.PrivateKey) error {
	root := TreeRoot{EROOT: t.eroot, LROOT: t.lroot, Seq: t.seq}
	sig, err := signRoot(root, priv)
	if err != nil {
		return err
	}
	root.Sig = sig
	t.root = root
	t.unsigned = false
	return nil
}

func signRoot(root TreeRoot, priv *ecdsa.PrivateKey) ([65]byte, error) {
	var out [65]byte
	sig, err := crypto.Sign(root.sigHash(), priv)
	if err != nil {
		return out, err
	}
	copy(out[:], sig)
	return out, nil
}

// ToTXT renders the tree as a domain -> TXT record-body map ready for
// publication, including the apex record under domain itself.
func (t *Tree) ToTXT(domain string) (map[string]string, error) {
	if t.unsigned {
		return nil, fmt.Errorf("dnsdisc: tree must be signed before publication")
	}
	out := map[string]string{domain: t.root.String()}
	for hash, text := range t.entries {
		out[hash+"."+domain] = text
	}
	return out, nil
}

// LinkURL returns the enrtree:// URL other trees should reference to
// link to this one.
func (t *Tree) LinkURL(domain string, pub *ecdsa.PublicKey) string {
	return LinkEntry{Domain: domain, Pubkey: pub}.String()
}
