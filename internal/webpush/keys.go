package webpush

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/x509"
	"errors"
	"fmt"
	"math/big"
)

var (
	ErrInvalidKeyLength     = errors.New("webpush: public key must be a 65-byte uncompressed P-256 point")
	ErrUnsupportedKeyFormat = errors.New("webpush: unsupported private key format")
)

// ResolveSigningKey turns the configured VAPID key pair into an ECDSA
// signing key. Two storage conventions exist and are told apart by length:
// a base64url raw 32-byte scalar is 40-50 characters, in which case the
// public point is reconstructed from publicKeyB64; anything that decodes to
// more than 100 bytes is PKCS#8 DER. Other lengths are unsupported.
func ResolveSigningKey(publicKeyB64, privateKeyRaw string) (*ecdsa.PrivateKey, error) {
	if l := len(privateKeyRaw); l >= 40 && l <= 50 {
		d, err := DecodeBase64URLTolerant(privateKeyRaw)
		if err != nil {
			return nil, fmt.Errorf("webpush: decoding private scalar: %w", err)
		}
		pub, err := DecodeBase64URLTolerant(publicKeyB64)
		if err != nil {
			return nil, fmt.Errorf("webpush: decoding public key: %w", err)
		}
		if len(pub) != 65 {
			return nil, ErrInvalidKeyLength
		}
		return &ecdsa.PrivateKey{
			PublicKey: ecdsa.PublicKey{
				Curve: elliptic.P256(),
				X:     new(big.Int).SetBytes(pub[1:33]),
				Y:     new(big.Int).SetBytes(pub[33:65]),
			},
			D: new(big.Int).SetBytes(d),
		}, nil
	}

	raw, err := DecodeBase64URLTolerant(privateKeyRaw)
	if err != nil {
		return nil, fmt.Errorf("webpush: decoding private key: %w", err)
	}
	if len(raw) <= 100 {
		return nil, ErrUnsupportedKeyFormat
	}
	parsed, err := x509.ParsePKCS8PrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("webpush: parsing PKCS#8 key: %w", err)
	}
	key, ok := parsed.(*ecdsa.PrivateKey)
	if !ok || key.Curve != elliptic.P256() {
		return nil, ErrUnsupportedKeyFormat
	}
	return key, nil
}
