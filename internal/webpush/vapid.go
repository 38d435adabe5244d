package webpush

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"
)

// VAPID tokens are valid for exactly 12 hours.
const vapidTokenLifetime = 43200

// SignVAPIDJWT builds and signs the ES256 compact JWT asserting this server
// to a push service. The audience is the scheme+host of the subscription's
// endpoint; the subject is the fixed contact URI for the whole service.
func SignVAPIDJWT(audience, subject string, key *ecdsa.PrivateKey) (string, error) {
	header, err := json.Marshal(map[string]string{"alg": "ES256", "typ": "JWT"})
	if err != nil {
		return "", err
	}
	claims, err := json.Marshal(map[string]any{
		"aud": audience,
		"exp": time.Now().Unix() + vapidTokenLifetime,
		"sub": subject,
	})
	if err != nil {
		return "", err
	}

	unsigned := EncodeBase64URL(header) + "." + EncodeBase64URL(claims)

	digest := sha256.Sum256([]byte(unsigned))
	r, s, err := ecdsa.Sign(rand.Reader, key, digest[:])
	if err != nil {
		return "", fmt.Errorf("webpush: signing VAPID token: %w", err)
	}

	// JOSE signature format: raw r and s, each left-padded to 32 bytes.
	sig := make([]byte, 64)
	r.FillBytes(sig[:32])
	s.FillBytes(sig[32:])

	return unsigned + "." + EncodeBase64URL(sig), nil
}
