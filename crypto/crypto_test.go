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

package crypto

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignRecoverPubkeyRoundTrip(t *testing.T) {
	priv, err := GenerateKey()
	require.NoError(t, err)
	hash := Keccak256([]byte("enrtree-root:v1 e=test l=test seq=1"))

	sig, err := Sign(hash, priv)
	require.NoError(t, err)
	assert.Len(t, sig, SignatureLength)

	recovered, err := RecoverPubkey(hash, sig)
	require.NoError(t, err)
	assert.True(t, PubkeysEqual(&priv.PublicKey, recovered))
}

func TestVerifySignatureRejectsWrongHash(t *testing.T) {
	priv, err := GenerateKey()
	require.NoError(t, err)
	hash := Keccak256([]byte("payload"))
	sig, err := Sign(hash, priv)
	require.NoError(t, err)

	assert.True(t, VerifySignature(CompressPubkey(&priv.PublicKey), hash, sig[:64]))

	otherHash := Keccak256([]byte("different payload"))
	assert.False(t, VerifySignature(CompressPubkey(&priv.PublicKey), otherHash, sig[:64]))
}

func TestSignRejectsShortHash(t *testing.T) {
	priv, err := GenerateKey()
	require.NoError(t, err)
	_, err = Sign([]byte("too short"), priv)
	assert.Error(t, err)
}

func TestCompressDecompressPubkeyRoundTrip(t *testing.T) {
	priv, err := GenerateKey()
	require.NoError(t, err)

	compressed := CompressPubkey(&priv.PublicKey)
	assert.Len(t, compressed, 33)

	decompressed, err := DecompressPubkey(compressed)
	require.NoError(t, err)
	assert.True(t, PubkeysEqual(&priv.PublicKey, decompressed))
}

func TestDecompressPubkeyRejectsWrongLength(t *testing.T) {
	_, err := DecompressPubkey([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidPubkey)
}

func TestHexToECDSARoundTripsWithGeneratedKey(t *testing.T) {
	priv, err := GenerateKey()
	require.NoError(t, err)

	var hexkey [32]byte
	priv.D.FillBytes(hexkey[:])

	parsed, err := HexToECDSA("0x" + hex.EncodeToString(hexkey[:]))
	require.NoError(t, err)
	assert.True(t, PubkeysEqual(&priv.PublicKey, &parsed.PublicKey))
}

func TestHexToECDSARejectsBadLength(t *testing.T) {
	_, err := HexToECDSA("0x1234")
	assert.Error(t, err)
}

func TestPubkeysEqualHandlesNil(t *testing.T) {
	priv, err := GenerateKey()
	require.NoError(t, err)
	assert.True(t, PubkeysEqual(nil, nil))
	assert.False(t, PubkeysEqual(nil, &priv.PublicKey))
}
