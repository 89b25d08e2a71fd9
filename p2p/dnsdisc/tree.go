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
	"encoding/base32"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/nodedisc/dnstree/crypto"
	"github.com/nodedisc/dnstree/p2p/enr"
)

const (
	rootPrefix   = "enrtree-root:v1"
	branchPrefix = "enrtree-branch:"
	linkPrefix   = "enrtree://"
	enrPrefix    = "enr:"

	hashLength = 26 // base32 chars, no padding, encoding a 16-byte keccak truncation
)

var (
	b32 = base32.StdEncoding.WithPadding(base32.NoPadding)
	b64 = base64.RawURLEncoding
)

// LinkEntry identifies a tree: the domain it is published under and
// the public key its root records must verify against. Immutable once
// constructed.
type LinkEntry struct {
	Domain string
	Pubkey *ecdsa.PublicKey
}

// String renders the enrtree:// URL for this link.
func (l LinkEntry) String() string {
	return linkPrefix + b32.EncodeToString(crypto.CompressPubkey(l.Pubkey)) + "@" + l.Domain
}

// ParseLink parses an "enrtree://<base32-pubkey>@<domain>" URL.
func ParseLink(url string) (LinkEntry, error) {
	if !strings.HasPrefix(url, linkPrefix) {
		return LinkEntry{}, &ParseError{Kind: UnknownTag}
	}
	return parseLinkBody(url[len(linkPrefix):])
}

func parseLinkBody(body string) (LinkEntry, error) {
	at := strings.IndexByte(body, '@')
	if at == -1 {
		return LinkEntry{}, errMissing("domain")
	}
	keystr, domain := body[:at], body[at+1:]
	if domain == "" {
		return LinkEntry{}, &ParseError{Kind: BadDomain}
	}
	keybytes, err := b32.DecodeString(keystr)
	if err != nil {
		return LinkEntry{}, &ParseError{Kind: Base32Decode, Err: err}
	}
	pub, err := crypto.DecompressPubkey(keybytes)
	if err != nil {
		return LinkEntry{}, &ParseError{Kind: BadPublicKey, Err: err}
	}
	return LinkEntry{Domain: domain, Pubkey: pub}, nil
}

// TreeRoot is the apex record of an EIP-1459 tree.
type TreeRoot struct {
	EROOT string
	LROOT string
	Seq   uint32
	Sig   [65]byte
	raw   string // original text, kept for re-verification/equality
}

// Equal reports whether two roots carry the same content (ignoring the
// retained raw text, which is derived from the fields).
func (r TreeRoot) Equal(o TreeRoot) bool {
	return r.EROOT == o.EROOT && r.LROOT == o.LROOT && r.Seq == o.Seq && r.Sig == o.Sig
}

// sigHash returns the Keccak-256 hash of the canonical pre-signature
// text, per §3: "enrtree-root:v1 e=<eroot> l=<lroot> seq=<seq>".
func (r TreeRoot) sigHash() []byte {
	return crypto.Keccak256([]byte(fmt.Sprintf("%s e=%s l=%s seq=%d", rootPrefix, r.EROOT, r.LROOT, r.Seq)))
}

// verifySignature recovers the signer's public key from Sig and
// checks it against pubkey, per §3's invariant.
func (r TreeRoot) verifySignature(pubkey *ecdsa.PublicKey) bool {
	recovered, err := crypto.RecoverPubkey(r.sigHash(), r.Sig[:])
	if err != nil {
		return false
	}
	return crypto.PubkeysEqual(recovered, pubkey)
}

// String renders the root's canonical text form, including signature.
func (r TreeRoot) String() string {
	if r.raw != "" {
		return r.raw
	}
	return fmt.Sprintf("%s e=%s l=%s seq=%d sig=%s", rootPrefix, r.EROOT, r.LROOT, r.Seq, b64.EncodeToString(r.Sig[:]))
}

func parseRoot(text string) (TreeRoot, error) {
	fields, err := parseFields(text[len(rootPrefix):])
	if err != nil {
		return TreeRoot{}, err
	}
	eroot, ok := fields["e"]
	if !ok {
		return TreeRoot{}, errMissing("e")
	}
	lroot, ok := fields["l"]
	if !ok {
		return TreeRoot{}, errMissing("l")
	}
	seqStr, ok := fields["seq"]
	if !ok {
		return TreeRoot{}, errMissing("seq")
	}
	sigStr, ok := fields["sig"]
	if !ok {
		return TreeRoot{}, errMissing("sig")
	}
	if !isValidHash(eroot) || !isValidHash(lroot) {
		return TreeRoot{}, &ParseError{Kind: BadHashLength}
	}
	seq, err := strconv.ParseUint(seqStr, 10, 32)
	if err != nil {
		return TreeRoot{}, &ParseError{Kind: InvalidValue, Field: "seq", Err: err}
	}
	sigBytes, err := b64.DecodeString(sigStr)
	if err != nil || len(sigBytes) != 65 {
		return TreeRoot{}, &ParseError{Kind: Base64Decode, Err: err}
	}
	root := TreeRoot{EROOT: eroot, LROOT: lroot, Seq: uint32(seq), raw: text}
	copy(root.Sig[:], sigBytes)
	return root, nil
}

// parseFields parses a space-separated "k=v" field list, as used by
// root records: " e=X l=Y seq=3 sig=Z".
func parseFields(s string) (map[string]string, error) {
	fields := make(map[string]string)
	for _, tok := range strings.Fields(s) {
		eq := strings.IndexByte(tok, '=')
		if eq == -1 {
			return nil, &ParseError{Kind: UnknownTag}
		}
		fields[tok[:eq]] = tok[eq+1:]
	}
	return fields, nil
}

func isValidHash(s string) bool {
	if len(s) != hashLength {
		return false
	}
	_, err := b32.DecodeString(s)
	return err == nil
}

// branchEntry lists the child hashes of an interior tree node.
type branchEntry struct {
	children []string
}

func (e *branchEntry) String() string {
	return branchPrefix + strings.Join(e.children, ",")
}

func parseBranch(text string) (*branchEntry, error) {
	body := text[len(branchPrefix):]
	if body == "" {
		return &branchEntry{}, nil
	}
	parts := strings.Split(body, ",")
	children := make([]string, 0, len(parts))
	for _, h := range parts {
		if !isValidHash(h) {
			return nil, &ParseError{Kind: BadHashLength}
		}
		children = append(children, h)
	}
	return &branchEntry{children: children}, nil
}

// enrEntry is a leaf node record.
type enrEntry struct {
	record *enr.Record
	raw    string
}

func (e *enrEntry) String() string {
	return e.raw
}

func parseEnr(text string) (*enrEntry, error) {
	payload, err := b64.DecodeString(text[len(enrPrefix):])
	if err != nil {
		return nil, &ParseError{Kind: Base64Decode, Err: err}
	}
	rec, err := enr.Decode(payload)
	if err != nil {
		return nil, &ParseError{Kind: BadSignature, Err: err}
	}
	return &enrEntry{record: rec, raw: text}, nil
}

// subdomain computes the 26-character base32 hash a given entry's text
// form is addressed by within its parent tree.
func subdomain(text string) string {
	h := crypto.Keccak256([]byte(text))
	return b32.EncodeToString(h[:16])
}

// entryKind distinguishes what a resolved entry turned out to be, used
// by the service to match it against what the sync tree expected.
type entryKind int

const (
	kindRoot entryKind = iota
	kindLink
	kindBranch
	kindEnr
)

// parsedEntry is the result of parsing one TXT record body, tagged
// with its kind so callers don't need type switches everywhere.
type parsedEntry struct {
	kind   entryKind
	root   TreeRoot
	link   LinkEntry
	branch *branchEntry
	enr    *enrEntry
	text   string
}

// parseEntry parses any entry text form (root, branch, link, or leaf).
// It does not check where the entry was found: callers reject a root
// below the apex and a non-root entry at the apex.
func parseEntry(text string) (parsedEntry, error) {
	switch {
	case strings.HasPrefix(text, rootPrefix):
		root, err := parseRoot(text)
		if err != nil {
			return parsedEntry{}, err
		}
		return parsedEntry{kind: kindRoot, root: root, text: text}, nil
	case strings.HasPrefix(text, branchPrefix):
		b, err := parseBranch(text)
		if err != nil {
			return parsedEntry{}, err
		}
		return parsedEntry{kind: kindBranch, branch: b, text: text}, nil
	case strings.HasPrefix(text, linkPrefix):
		l, err := parseLinkBody(text[len(linkPrefix):])
		if err != nil {
			return parsedEntry{}, err
		}
		return parsedEntry{kind: kindLink, link: l, text: text}, nil
	case strings.HasPrefix(text, enrPrefix):
		e, err := parseEnr(text)
		if err != nil {
			return parsedEntry{}, err
		}
		return parsedEntry{kind: kindEnr, enr: e, text: text}, nil
	default:
		return parsedEntry{}, &ParseError{Kind: UnknownTag}
	}
}
