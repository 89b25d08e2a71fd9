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

// Package crypto wraps the secp256k1 primitives needed by the DNS
// discovery tree: hashing, signing and recovering the compact
// recoverable signatures used by root records, and compressing or
// decompressing the public keys carried in enrtree:// link URLs.
package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/sha3"
)

const (
	// SignatureLength is the length of a compact recoverable secp256k1
	// signature: 32 bytes R, 32 bytes S, 1 byte recovery id.
	SignatureLength = 64 + 1
)

var (
	ErrInvalidSignatureLen = errors.New("invalid signature length")
	ErrInvalidPubkey       = errors.New("invalid public key")
)

// S256 returns the secp256k1 curve, matching crypto/ecdsa expectations.
func S256() elliptic.Curve {
	return btcec.S256()
}

// Keccak256 computes the Keccak-256 hash (not SHA3-256: no NIST padding
// change) of the concatenated inputs.
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, b := range data {
		h.Write(b)
	}
	return h.Sum(nil)
}

// Sign produces a compact recoverable signature (R || S || V) over hash
// using the given private key. hash must be 32 bytes.
func Sign(hash []byte, priv *ecdsa.PrivateKey) ([]byte, error) {
	if len(hash) != 32 {
		return nil, fmt.Errorf("hash is required to be exactly 32 bytes (%d)", len(hash))
	}
	var d [32]byte
	priv.D.FillBytes(d[:])
	btcPriv := secp256k1.PrivKeyFromBytes(d[:])
	sig := btcecdsa.SignCompact(btcPriv, hash, false)
	// btcec's compact format is (recid+27) || R || S; convert to R || S || recid.
	out := make([]byte, SignatureLength)
	copy(out, sig[1:])
	out[64] = sig[0] - 27
	return out, nil
}

// VerifySignature checks a compact (R||S, 64-byte, no recovery id)
// signature against an uncompressed or compressed public key.
func VerifySignature(pubkey, hash, signature []byte) bool {
	if len(signature) != 64 {
		return false
	}
	pub, err := secp256k1.ParsePubKey(pubkey)
	if err != nil {
		return false
	}
	var r, s secp256k1.ModNScalar
	if overflow := r.SetByteSlice(signature[:32]); overflow {
		return false
	}
	if overflow := s.SetByteSlice(signature[32:64]); overflow {
		return false
	}
	sig := btcecdsa.NewSignature(&r, &s)
	return sig.Verify(hash, pub)
}

// RecoverPubkey recovers the public key that produced sig (R||S||V, 65
// bytes) over hash.
func RecoverPubkey(hash, sig []byte) (*ecdsa.PublicKey, error) {
	if len(sig) != SignatureLength {
		return nil, ErrInvalidSignatureLen
	}
	btcSig := make([]byte, SignatureLength)
	btcSig[0] = sig[64] + 27
	copy(btcSig[1:], sig[:64])
	pub, _, err := btcecdsa.RecoverCompact(btcSig, hash)
	if err != nil {
		return nil, err
	}
	return pub.ToECDSA(), nil
}

// CompressPubkey encodes a public key to the 33-byte compressed form.
func CompressPubkey(pubkey *ecdsa.PublicKey) []byte {
	return toBtcecPubkey(pubkey).SerializeCompressed()
}

// DecompressPubkey parses a 33-byte compressed secp256k1 public key.
func DecompressPubkey(data []byte) (*ecdsa.PublicKey, error) {
	if len(data) != 33 {
		return nil, ErrInvalidPubkey
	}
	pub, err := secp256k1.ParsePubKey(data)
	if err != nil {
		return nil, ErrInvalidPubkey
	}
	return pub.ToECDSA(), nil
}

func toBtcecPubkey(pubkey *ecdsa.PublicKey) *secp256k1.PublicKey {
	var x, y secp256k1.FieldVal
	x.SetByteSlice(pubkey.X.Bytes())
	y.SetByteSlice(pubkey.Y.Bytes())
	return secp256k1.NewPublicKey(&x, &y)
}

// FromECDSAPub returns the 65-byte uncompressed encoding (0x04 prefix)
// of a public key, or nil if pub is malformed.
func FromECDSAPub(pub *ecdsa.PublicKey) []byte {
	if pub == nil || pub.X == nil || pub.Y == nil {
		return nil
	}
	return elliptic.Marshal(S256(), pub.X, pub.Y)
}

// PubkeysEqual reports whether two secp256k1 public keys are equal.
func PubkeysEqual(a, b *ecdsa.PublicKey) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.X.Cmp(b.X) == 0 && a.Y.Cmp(b.Y) == 0
}

// HexToECDSA parses a hex-encoded secp256k1 private key, as used by
// the devp2p dns sign command to load a signing key from a file.
func HexToECDSA(hexkey string) (*ecdsa.PrivateKey, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(hexkey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid hex private key: %w", err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("invalid private key length %d, want 32", len(b))
	}
	priv := new(ecdsa.PrivateKey)
	priv.PublicKey.Curve = S256()
	priv.D = new(big.Int).SetBytes(b)
	priv.PublicKey.X, priv.PublicKey.Y = S256().ScalarBaseMult(b)
	return priv, nil
}

// GenerateKey creates a new random secp256k1 private key, used by tests
// and by the publish-side tree signer.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	btcPriv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	d := btcPriv.Key.Bytes()
	priv := new(ecdsa.PrivateKey)
	priv.PublicKey.Curve = S256()
	priv.D = new(big.Int).SetBytes(d[:])
	priv.PublicKey.X, priv.PublicKey.Y = S256().ScalarBaseMult(d[:])
	return priv, nil
}
