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

// Package dnsdisc implements EIP-1459 DNS-based node discovery: a
// signed, Merkle-structured set of DNS TXT records that a client can
// walk without trusting the DNS operator for anything beyond
// availability. Tree content is authenticated end-to-end by a
// secp256k1 signature over the root record and by content-addressed
// hashing of every other entry.
//
// DiscoveryService drives the walk as a cooperative event loop: one or
// more goroutines feed it commands (SyncTree to add a tree,
// Subscribe/Events to observe results) while a single Run goroutine
// owns all mutable state, dispatching outbound DNS queries through a
// shared rate-limited, deduplicating queryPool and folding completed
// lookups back into each tree's syncTree state machine.
//
// On the publish side, Tree/MakeTree/Sign/ToTXT build the same record
// set in the other direction, for operators who want to serve a tree
// rather than walk one.
package dnsdisc
