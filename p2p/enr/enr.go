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

// Package enr implements the subset of Ethereum Node Records (EIP-778)
// needed by a DNS discovery leaf: decoding a record's key/value pairs,
// verifying its "v4" (secp256k1-keccak) signature, and encoding a
// record back for tree publication. Full scheme pluggability and
// forward-compatibility handling are out of scope: the tree walker
// treats a leaf record as validated by this external collaborator,
// not as something it re-derives trust for.
package enr

import (
	"bytes"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"net"
	"sort"

	"github.com/nodedisc/dnstree/crypto"
	"github.com/nodedisc/dnstree/internal/rlp"
)

const IDScheme = "v4"

var (
	ErrInvalidSig     = errors.New("enr: invalid signature")
	ErrMissingPrefix  = errors.New("enr: record too short")
	ErrDuplicateEntry = errors.New("enr: duplicate key in record")
	ErrNotSorted      = errors.New("enr: keys not sorted")
)

// Entry is a typed record key/value pair.
type Entry interface {
	ENRKey() string
}

type pair struct {
	k string
	v []byte // raw RLP-encoded value
}

// Record is a decoded, signature-verified Ethereum Node Record.
type Record struct {
	Seq       uint64
	Signature []byte
	pubkey    *ecdsa.PublicKey
	pairs     []pair
}

// NewRecord returns an empty, unsigned record ready for Set/Sign.
func NewRecord() *Record {
	return &Record{}
}

// PublicKey returns the record's secp256k1 identity public key, valid
// after Decode or after NewRecord+Sign.
func (r *Record) PublicKey() *ecdsa.PublicKey {
	return r.pubkey
}

// Load decodes the value stored under e's key into e.
func (r *Record) Load(e Entry) error {
	for _, p := range r.pairs {
		if p.k == e.ENRKey() {
			return decodeEntry(p.v, e)
		}
	}
	return fmt.Errorf("enr: missing key %q", e.ENRKey())
}

// Set stores e's value, replacing any previous entry under the same
// key, keeping pairs sorted by key as EIP-778 requires.
func (r *Record) Set(e Entry) {
	v := encodeEntry(e)
	for i, p := range r.pairs {
		if p.k == e.ENRKey() {
			r.pairs[i].v = v
			return
		}
	}
	r.pairs = append(r.pairs, pair{k: e.ENRKey(), v: v})
	sort.Slice(r.pairs, func(i, j int) bool { return r.pairs[i].k < r.pairs[j].k })
}

// content returns the RLP list [seq, k1, v1, k2, v2, ...] that gets
// signed and hashed for the record's self-identifying hash.
func (r *Record) content() []byte {
	items := [][]byte{rlp.EncodeUint(r.Seq)}
	for _, p := range r.pairs {
		items = append(items, rlp.EncodeBytes([]byte(p.k)), p.v)
	}
	return rlp.EncodeList(items...)
}

// Sign computes the record's v4 signature and public key entry using
// priv, and bumps Seq by one.
func (r *Record) Sign(priv *ecdsa.PrivateKey) error {
	r.Seq++
	r.Set(ID(IDScheme))
	r.Set(&secp256k1Entry{&priv.PublicKey})
	hash := crypto.Keccak256(r.content())
	sig, err := crypto.Sign(hash, priv)
	if err != nil {
		return err
	}
	r.Signature = sig[:64] // drop recovery id; v4 signatures are r||s only
	r.pubkey = &priv.PublicKey
	return nil
}

// Encode serializes the record as [signature, seq, k1, v1, ...].
func (r *Record) Encode() []byte {
	items := [][]byte{rlp.EncodeBytes(r.Signature), rlp.EncodeUint(r.Seq)}
	for _, p := range r.pairs {
		items = append(items, rlp.EncodeBytes([]byte(p.k)), p.v)
	}
	return rlp.EncodeList(items...)
}

// Decode parses and signature-verifies an RLP-encoded record.
func Decode(data []byte) (*Record, error) {
	items, err := rlp.DecodeList(data)
	if err != nil {
		return nil, err
	}
	if len(items) < 2 || len(items)%2 != 0 {
		return nil, ErrMissingPrefix
	}
	sig := items[0].Bytes
	seq := rlp.DecodeUint(items[1].Bytes)

	rec := &Record{Seq: seq, Signature: sig}
	var lastKey string
	for i := 2; i+1 < len(items); i += 2 {
		k := string(items[i].Bytes)
		if i > 2 && k <= lastKey {
			return nil, ErrNotSorted
		}
		lastKey = k
		rec.pairs = append(rec.pairs, pair{k: k, v: reencode(items[i+1])})
	}

	var idE idEntry
	var pubEntry secp256k1Entry
	if err := rec.Load(&idE); err != nil || idE.scheme != IDScheme {
		return nil, fmt.Errorf("enr: unsupported identity scheme %q", idE.scheme)
	}
	if err := rec.Load(&pubEntry); err != nil {
		return nil, fmt.Errorf("enr: missing secp256k1 entry: %w", err)
	}
	rec.pubkey = pubEntry.pub

	hash := crypto.Keccak256(rec.content())
	if !crypto.VerifySignature(crypto.CompressPubkey(rec.pubkey), hash, rec.Signature) {
		return nil, ErrInvalidSig
	}
	return rec, nil
}

// reencode turns a decoded Item back into its minimal RLP encoding, so
// pairs can be stored as opaque pre-encoded values the way they came
// in (needed because content() must reproduce the exact signed bytes).
func reencode(it rlp.Item) []byte {
	if !it.IsList() {
		return rlp.EncodeBytes(it.Bytes)
	}
	sub := make([][]byte, len(it.List))
	for i, e := range it.List {
		sub[i] = reencode(e)
	}
	return rlp.EncodeList(sub...)
}

func encodeEntry(e Entry) []byte {
	switch v := e.(type) {
	case *ipEntry:
		return rlp.EncodeBytes(net.IP(*v).To4())
	case *ip6Entry:
		return rlp.EncodeBytes(net.IP(*v).To16())
	case *tcpEntry:
		return rlp.EncodeUint(uint64(*v))
	case *udpEntry:
		return rlp.EncodeUint(uint64(*v))
	case *idEntry:
		return rlp.EncodeBytes([]byte(v.scheme))
	case *secp256k1Entry:
		return rlp.EncodeBytes(crypto.CompressPubkey(v.pub))
	case *forkIDEntry:
		inner := rlp.EncodeList(rlp.EncodeBytes(v.Hash[:]), rlp.EncodeUint(v.Next))
		return rlp.EncodeList(inner)
	default:
		panic(fmt.Sprintf("enr: unsupported entry type %T", e))
	}
}

func decodeEntry(raw []byte, e Entry) error {
	item, rest, err := rlp.Decode(raw)
	if err != nil {
		return err
	}
	if len(rest) != 0 {
		return errors.New("enr: trailing bytes in entry")
	}
	switch v := e.(type) {
	case *ipEntry:
		if len(item.Bytes) != 4 {
			return errors.New("enr: bad ip length")
		}
		*v = ipEntry(append(net.IP{}, item.Bytes...))
	case *ip6Entry:
		if len(item.Bytes) != 16 {
			return errors.New("enr: bad ip6 length")
		}
		*v = ip6Entry(append(net.IP{}, item.Bytes...))
	case *tcpEntry:
		*v = tcpEntry(rlp.DecodeUint(item.Bytes))
	case *udpEntry:
		*v = udpEntry(rlp.DecodeUint(item.Bytes))
	case *idEntry:
		v.scheme = string(item.Bytes)
	case *secp256k1Entry:
		pub, err := crypto.DecompressPubkey(item.Bytes)
		if err != nil {
			return err
		}
		v.pub = pub
	case *forkIDEntry:
		if !item.IsList() || len(item.List) != 1 || !item.List[0].IsList() || len(item.List[0].List) != 2 {
			return errors.New("enr: malformed eth entry")
		}
		inner := item.List[0].List
		copy(v.Hash[:], inner[0].Bytes)
		v.Next = rlp.DecodeUint(inner[1].Bytes)
	default:
		return fmt.Errorf("enr: unsupported entry type %T", e)
	}
	return nil
}

// Equal reports whether two records have identical encodings
// (signature, seq and every key/value pair); two nil records are equal.
func Equal(a, b *Record) bool {
	if a == nil || b == nil {
		return a == b
	}
	return bytes.Equal(a.Encode(), b.Encode())
}
