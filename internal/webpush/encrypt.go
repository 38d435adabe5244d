package webpush

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// recordSize is written into every envelope header; payloads here are
	// far below it so a single record always suffices.
	recordSize = 4096

	// envelopeHeaderLen = salt(16) + record size(4) + key length(1) + key(65).
	envelopeHeaderLen = 86

	infoAuth  = "Content-Encoding: auth\x00"
	infoCEK   = "Content-Encoding: aes128gcm\x00"
	infoNonce = "Content-Encoding: nonce\x00"
)

// Encrypt seals a notification payload for one subscriber and frames it as
// an aes128gcm envelope: an ephemeral ECDH agreement against the
// subscriber's p256dh point, two rounds of HKDF-SHA256 (the first keyed by
// the subscriber's auth secret, the second by a fresh random salt), then
// AES-128-GCM over the two-byte-zero-prefixed plaintext. All derived
// material lives only for this call.
func Encrypt(plaintext []byte, p256dhB64, authB64 string) ([]byte, error) {
	subscriberRaw, err := DecodeBase64URLStrict(p256dhB64)
	if err != nil {
		return nil, fmt.Errorf("webpush: decoding p256dh: %w", err)
	}
	subscriberPub, err := ecdh.P256().NewPublicKey(subscriberRaw)
	if err != nil {
		return nil, fmt.Errorf("webpush: parsing subscriber public key: %w", err)
	}
	auth, err := DecodeBase64URLStrict(authB64)
	if err != nil {
		return nil, fmt.Errorf("webpush: decoding auth secret: %w", err)
	}

	local, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("webpush: generating ephemeral key: %w", err)
	}
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("webpush: generating salt: %w", err)
	}

	return encryptWithMaterial(plaintext, subscriberPub, auth, local, salt)
}

// encryptWithMaterial is the deterministic tail of Encrypt, split out so
// tests can supply a fixed ephemeral key and salt.
func encryptWithMaterial(plaintext []byte, subscriberPub *ecdh.PublicKey, auth []byte, local *ecdh.PrivateKey, salt []byte) ([]byte, error) {
	shared, err := local.ECDH(subscriberPub)
	if err != nil {
		return nil, fmt.Errorf("webpush: ECDH agreement: %w", err)
	}

	prk, err := deriveKey(shared, auth, infoAuth, 32)
	if err != nil {
		return nil, err
	}
	cek, err := deriveKey(prk, salt, infoCEK, 16)
	if err != nil {
		return nil, err
	}
	nonce, err := deriveKey(prk, salt, infoNonce, 12)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(cek)
	if err != nil {
		return nil, fmt.Errorf("webpush: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("webpush: creating GCM: %w", err)
	}

	// Two-byte zero padding-length prefix; no further padding in this
	// profile.
	padded := make([]byte, 0, 2+len(plaintext))
	padded = append(padded, 0x00, 0x00)
	padded = append(padded, plaintext...)

	ciphertext := gcm.Seal(nil, nonce, padded, nil)

	localPub := local.PublicKey().Bytes()
	envelope := make([]byte, 0, envelopeHeaderLen+len(ciphertext))
	envelope = append(envelope, salt...)
	envelope = binary.BigEndian.AppendUint32(envelope, recordSize)
	envelope = append(envelope, byte(len(localPub)))
	envelope = append(envelope, localPub...)
	envelope = append(envelope, ciphertext...)
	return envelope, nil
}

// deriveKey runs one HKDF-SHA256 round: extract with salt over secret, then
// expand with info to length bytes. The trailing NUL in each info string is
// part of the wire contract.
func deriveKey(secret, salt []byte, info string, length int) ([]byte, error) {
	out := make([]byte, length)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, salt, []byte(info)), out); err != nil {
		return nil, fmt.Errorf("webpush: HKDF expand: %w", err)
	}
	return out, nil
}
