package webpush

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptEnvelopeLayout(t *testing.T) {
	client, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)

	plaintext := []byte(`{"title":"Update available","body":"Version 2.4.0 is ready."}`)

	envelope, err := Encrypt(plaintext, EncodeBase64URL(client.PublicKey().Bytes()), EncodeBase64URL(auth))
	require.NoError(t, err)

	// header(86) + plaintext + 2-byte padding prefix + 16-byte GCM tag
	require.Len(t, envelope, 86+len(plaintext)+2+16)
	assert.Equal(t, uint32(4096), binary.BigEndian.Uint32(envelope[16:20]))
	assert.Equal(t, byte(65), envelope[20])

	// bytes 21-85 must be a valid uncompressed P-256 point
	_, err = ecdh.P256().NewPublicKey(envelope[21:86])
	assert.NoError(t, err)
}

func TestEncryptRejectsBadSubscriberKey(t *testing.T) {
	_, err := Encrypt([]byte("x"), EncodeBase64URL(make([]byte, 64)), EncodeBase64URL(make([]byte, 16)))
	assert.Error(t, err)
}

// hkdfOneBlock recomputes one HKDF-SHA256 round from the HMAC primitives
// alone, independent of the hkdf package used by the implementation. All
// derived lengths here fit one expand block.
func hkdfOneBlock(secret, salt []byte, info string, length int) []byte {
	extract := hmac.New(sha256.New, salt)
	extract.Write(secret)
	prk := extract.Sum(nil)

	expand := hmac.New(sha256.New, prk)
	expand.Write([]byte(info))
	expand.Write([]byte{0x01})
	return expand.Sum(nil)[:length]
}

func TestEncryptKnownMaterialDecryptsOnClientSide(t *testing.T) {
	// Fixed scalars and salt so every intermediate value is reproducible.
	serverScalar := make([]byte, 32)
	clientScalar := make([]byte, 32)
	for i := 0; i < 32; i++ {
		serverScalar[i] = byte(i + 1)
		clientScalar[i] = byte(0x40 + i)
	}
	server, err := ecdh.P256().NewPrivateKey(serverScalar)
	require.NoError(t, err)
	client, err := ecdh.P256().NewPrivateKey(clientScalar)
	require.NoError(t, err)

	salt := []byte("0123456789abcdef")
	auth := []byte{0xa0, 0xa1, 0xa2, 0xa3, 0xa4, 0xa5, 0xa6, 0xa7, 0xa8, 0xa9, 0xaa, 0xab, 0xac, 0xad, 0xae, 0xaf}
	plaintext := []byte(`{"title":"Update"}`)

	envelope, err := encryptWithMaterial(plaintext, client.PublicKey(), auth, server, salt)
	require.NoError(t, err)

	assert.Equal(t, salt, envelope[:16])
	assert.Equal(t, server.PublicKey().Bytes(), envelope[21:86])

	// Replay the subscriber's decrypt routine with an HMAC-only key
	// schedule: any info-string or salt-role transposition in the
	// implementation fails here.
	serverPub, err := ecdh.P256().NewPublicKey(envelope[21:86])
	require.NoError(t, err)
	shared, err := client.ECDH(serverPub)
	require.NoError(t, err)

	prk := hkdfOneBlock(shared, auth, "Content-Encoding: auth\x00", 32)
	cek := hkdfOneBlock(prk, envelope[:16], "Content-Encoding: aes128gcm\x00", 16)
	nonce := hkdfOneBlock(prk, envelope[:16], "Content-Encoding: nonce\x00", 12)

	block, err := aes.NewCipher(cek)
	require.NoError(t, err)
	gcm, err := cipher.NewGCM(block)
	require.NoError(t, err)

	padded, err := gcm.Open(nil, nonce, envelope[86:], nil)
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(padded), 2)
	assert.Equal(t, []byte{0x00, 0x00}, padded[:2])
	assert.Equal(t, plaintext, padded[2:])
}

func TestDeriveKeyLengthsAndDeterminism(t *testing.T) {
	secret := []byte("shared-secret-material-under-test")
	salt := []byte("0123456789abcdef")

	a, err := deriveKey(secret, salt, infoCEK, 16)
	require.NoError(t, err)
	b, err := deriveKey(secret, salt, infoCEK, 16)
	require.NoError(t, err)
	nonce, err := deriveKey(secret, salt, infoNonce, 12)
	require.NoError(t, err)

	assert.Len(t, a, 16)
	assert.Len(t, nonce, 12)
	assert.Equal(t, a, b)
	assert.Equal(t, hkdfOneBlock(secret, salt, infoCEK, 16), a)
	assert.Equal(t, hkdfOneBlock(secret, salt, infoNonce, 12), nonce)
}
