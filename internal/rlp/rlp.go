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

// Package rlp implements the minimal subset of Ethereum's Recursive
// Length Prefix encoding needed to serialize an ENR record: byte
// strings, uints (encoded as their minimal big-endian byte string),
// and lists of the above. ENR leaf validation is explicitly an
// external collaborator concern (see p2p/enr's package doc comment);
// this package exists only because no third-party RLP
// module exists in the dependency corpus to depend on instead — real
// go-ethereum's rlp package ships inside its own monorepo rather than
// as an independently importable module.
package rlp

import (
	"errors"
	"math/big"
)

var (
	ErrTooShort    = errors.New("rlp: input too short")
	ErrExpectList  = errors.New("rlp: expected list")
	ErrTrailingHex = errors.New("rlp: trailing data after list")
)

// EncodeBytes encodes a single byte string.
func EncodeBytes(b []byte) []byte {
	if len(b) == 1 && b[0] < 0x80 {
		return []byte{b[0]}
	}
	return append(encodeHeader(0x80, 0xb7, len(b)), b...)
}

// EncodeUint encodes x as its minimal big-endian byte string.
func EncodeUint(x uint64) []byte {
	if x == 0 {
		return []byte{0x80}
	}
	return EncodeBytes(new(big.Int).SetUint64(x).Bytes())
}

// EncodeList concatenates the already-encoded items and wraps the
// result in a list header.
func EncodeList(items ...[]byte) []byte {
	var payload []byte
	for _, it := range items {
		payload = append(payload, it...)
	}
	return append(encodeHeader(0xc0, 0xf7, len(payload)), payload...)
}

func encodeHeader(shortBase, longBase byte, n int) []byte {
	if n < 56 {
		return []byte{shortBase + byte(n)}
	}
	lenBytes := uintToMinimalBytes(uint64(n))
	header := make([]byte, 0, 1+len(lenBytes))
	header = append(header, longBase+byte(len(lenBytes)))
	return append(header, lenBytes...)
}

func uintToMinimalBytes(x uint64) []byte {
	return new(big.Int).SetUint64(x).Bytes()
}

// Item is a decoded RLP value: either a byte string (List == nil) or a
// list of items (List != nil, Bytes == nil).
type Item struct {
	Bytes []byte
	List  []Item
}

// IsList reports whether the item decoded as a list.
func (it Item) IsList() bool { return it.List != nil }

// DecodeUint interprets a byte-string item as a big-endian uint.
func DecodeUint(b []byte) uint64 {
	return new(big.Int).SetBytes(b).Uint64()
}

// Decode parses exactly one RLP item from data and returns it along
// with any trailing bytes.
func Decode(data []byte) (Item, []byte, error) {
	if len(data) == 0 {
		return Item{}, nil, ErrTooShort
	}
	b0 := data[0]
	switch {
	case b0 < 0x80:
		return Item{Bytes: data[0:1]}, data[1:], nil
	case b0 < 0xb8:
		n := int(b0 - 0x80)
		if len(data) < 1+n {
			return Item{}, nil, ErrTooShort
		}
		return Item{Bytes: data[1 : 1+n]}, data[1+n:], nil
	case b0 < 0xc0:
		lenOfLen := int(b0 - 0xb7)
		if len(data) < 1+lenOfLen {
			return Item{}, nil, ErrTooShort
		}
		n := int(new(big.Int).SetBytes(data[1 : 1+lenOfLen]).Uint64())
		start := 1 + lenOfLen
		if len(data) < start+n {
			return Item{}, nil, ErrTooShort
		}
		return Item{Bytes: data[start : start+n]}, data[start+n:], nil
	case b0 < 0xf8:
		n := int(b0 - 0xc0)
		if len(data) < 1+n {
			return Item{}, nil, ErrTooShort
		}
		items, err := decodeListPayload(data[1 : 1+n])
		if err != nil {
			return Item{}, nil, err
		}
		return Item{List: items}, data[1+n:], nil
	default:
		lenOfLen := int(b0 - 0xf7)
		if len(data) < 1+lenOfLen {
			return Item{}, nil, ErrTooShort
		}
		n := int(new(big.Int).SetBytes(data[1 : 1+lenOfLen]).Uint64())
		start := 1 + lenOfLen
		if len(data) < start+n {
			return Item{}, nil, ErrTooShort
		}
		items, err := decodeListPayload(data[start : start+n])
		if err != nil {
			return Item{}, nil, err
		}
		return Item{List: items}, data[start+n:], nil
	}
}

func decodeListPayload(payload []byte) ([]Item, error) {
	items := []Item{}
	for len(payload) > 0 {
		it, rest, err := Decode(payload)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
		payload = rest
	}
	return items, nil
}

// DecodeList parses data as a single top-level list and returns its
// elements, rejecting trailing bytes.
func DecodeList(data []byte) ([]Item, error) {
	it, rest, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if !it.IsList() {
		return nil, ErrExpectList
	}
	if len(rest) != 0 {
		return nil, ErrTrailingHex
	}
	return it.List, nil
}
