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

// Package enode holds the node-identity types shared by the discovery
// engine: a node's derived ID, a Node wrapping its signed record, and
// the compact NodeRecord/NodeRecordWithForkId projections that are
// actually delivered to subscribers (the tree-walk layer never hands
// out a raw ENR to consumers that only care about dialing a peer).
package enode

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"net"

	"github.com/nodedisc/dnstree/crypto"
	"github.com/nodedisc/dnstree/p2p/enr"
)

// ID is the derived keccak256 identity of a node's public key.
type ID [32]byte

func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// Bytes returns the raw identity bytes.
func (id ID) Bytes() []byte { return id[:] }

// PubkeyToIDV4 derives a v4 (secp256k1) node ID from a public key, the
// same way go-ethereum's enode package does: the keccak256 hash of the
// 64-byte uncompressed point (X||Y, no 0x04 prefix).
func PubkeyToIDV4(pub *ecdsa.PublicKey) ID {
	var id ID
	raw := crypto.FromECDSAPub(pub)
	if len(raw) != 65 {
		// Malformed or nil pubkey: FromECDSAPub already returned nil
		// for this case, so there's no point to hash.
		return id
	}
	copy(id[:], crypto.Keccak256(raw[1:]))
	return id
}

// Node is a node's signed record plus its derived identity.
type Node struct {
	r  *enr.Record
	id ID
}

// New validates r (it must carry a v4 identity and a secp256k1 public
// key, which enr.Decode already checked) and wraps it as a Node.
func New(r *enr.Record) (*Node, error) {
	if r.PublicKey() == nil {
		return nil, errors.New("enode: record has no identity public key")
	}
	return &Node{r: r, id: PubkeyToIDV4(r.PublicKey())}, nil
}

// ID returns the node's derived identity.
func (n *Node) ID() ID { return n.id }

// Record returns the node's underlying ENR.
func (n *Node) Record() *enr.Record { return n.r }

// IP returns the node's IPv4 address, or its IPv6 address when no IPv4
// is present, or nil.
func (n *Node) IP() net.IP {
	if ip, ok := enr.LoadIP(n.r); ok {
		return ip
	}
	if ip, ok := enr.LoadIP6(n.r); ok {
		return ip
	}
	return nil
}

// TCP returns the node's advertised TCP port, or 0.
func (n *Node) TCP() uint16 {
	port, _ := enr.LoadTCP(n.r)
	return port
}

// UDP returns the node's advertised UDP port, or 0.
func (n *Node) UDP() uint16 {
	port, _ := enr.LoadUDP(n.r)
	return port
}

// Iterator is a pull-based source of discovered nodes. No type in this
// module implements it: the synchronous dnsdisc.Client returns its
// results as a slice.
type Iterator interface {
	Next() bool
	Node() *Node
	Close()
}

// NodeRecord is the transport-relevant projection of an ENR: just
// enough to dial or identify a peer.
type NodeRecord struct {
	IP  net.IP
	UDP uint16
	TCP uint16
	ID  ID
}

// NodeRecordWithForkId additionally carries the node's advertised "eth"
// fork id, when present. This is the type actually delivered on
// subscriber channels (see p2p/dnsdisc's design note on output
// projection).
type NodeRecordWithForkId struct {
	NodeRecord
	ForkID *enr.ForkID
}
