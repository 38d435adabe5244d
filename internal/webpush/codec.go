// Package webpush implements the Web Push message encryption (aes128gcm
// content coding) and VAPID authentication used to deliver broadcast
// notifications to third-party push services.
package webpush

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"
)

// EncodeBase64URL encodes bytes as unpadded base64url.
func EncodeBase64URL(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeBase64URLStrict decodes unpadded or padded base64url.
func DecodeBase64URLStrict(s string) ([]byte, error) {
	s = strings.TrimRight(s, "=")
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid base64url: %w", err)
	}
	return b, nil
}

// DecodeBase64URLTolerant decodes key material that may come from several
// storage conventions: whitespace is stripped, a 64-character hex string is
// accepted as 32 raw bytes, and a strict-decode failure is retried once
// with the last character removed (keys with one stray trailing character
// from lossy storage). If the retry also fails, the original error is
// returned.
func DecodeBase64URLTolerant(s string) ([]byte, error) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	if len(cleaned) == 64 && isHex(cleaned) {
		return hex.DecodeString(cleaned)
	}

	b, err := DecodeBase64URLStrict(cleaned)
	if err == nil {
		return b, nil
	}
	if len(cleaned) > 1 {
		if b, retryErr := DecodeBase64URLStrict(cleaned[:len(cleaned)-1]); retryErr == nil {
			return b, nil
		}
	}
	return nil, err
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
