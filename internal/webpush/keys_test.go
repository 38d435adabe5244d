package webpush

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeTestKeyPair(t *testing.T, key *ecdsa.PrivateKey) (publicB64, privateB64 string) {
	t.Helper()

	pub := make([]byte, 65)
	pub[0] = 0x04
	key.X.FillBytes(pub[1:33])
	key.Y.FillBytes(pub[33:65])

	d := make([]byte, 32)
	key.D.FillBytes(d)

	return EncodeBase64URL(pub), EncodeBase64URL(d)
}

func TestResolveSigningKeyRawScalar(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	pubB64, privB64 := encodeTestKeyPair(t, key)
	require.Len(t, privB64, 43) // the raw-scalar length heuristic window

	resolved, err := ResolveSigningKey(pubB64, privB64)
	require.NoError(t, err)

	assert.Zero(t, resolved.D.Cmp(key.D))
	assert.Zero(t, resolved.X.Cmp(key.X))
	assert.Zero(t, resolved.Y.Cmp(key.Y))
}

func TestResolveSigningKeyBadPublicLength(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	_, privB64 := encodeTestKeyPair(t, key)

	_, err = ResolveSigningKey(EncodeBase64URL(make([]byte, 64)), privB64)
	assert.ErrorIs(t, err, ErrInvalidKeyLength)
}

func TestResolveSigningKeyPKCS8(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	require.Greater(t, len(der), 100)

	pubB64, _ := encodeTestKeyPair(t, key)
	resolved, err := ResolveSigningKey(pubB64, EncodeBase64URL(der))
	require.NoError(t, err)

	assert.Zero(t, resolved.D.Cmp(key.D))
}

func TestResolveSigningKeyHexScalar(t *testing.T) {
	// 64 hex characters fall outside the 40-50 window, decode to 32 bytes,
	// and 32 <= 100: unsupported by the length heuristic.
	_, err := ResolveSigningKey("", "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff")
	assert.ErrorIs(t, err, ErrUnsupportedKeyFormat)
}

func TestResolveSigningKeyUnsupportedLength(t *testing.T) {
	_, err := ResolveSigningKey("", EncodeBase64URL(make([]byte, 60)))
	assert.ErrorIs(t, err, ErrUnsupportedKeyFormat)
}
