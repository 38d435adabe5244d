package webpush

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"update-broadcast-go/internal/models"
)

// Config is the VAPID identity of this server, constructed once at startup
// and passed in explicitly.
type Config struct {
	PublicKey  string // base64url 65-byte uncompressed P-256 point
	PrivateKey string // raw scalar or PKCS#8, see ResolveSigningKey
	Subject    string // mailto: contact URI
}

type SendStatus int

const (
	SendSuccess SendStatus = iota
	SendExpired            // subscription no longer valid at the push service
	SendFailed
)

// SendResult classifies one delivery attempt.
type SendResult struct {
	Status     SendStatus
	HTTPStatus int    // 0 when the request never got a response
	Error      string // empty on success
}

const (
	defaultTTL         = 86400
	defaultSendTimeout = 30 * time.Second
)

// Dispatcher posts encrypted envelopes to push services. Each subscription
// gets exactly one attempt per broadcast; retries are the caller's problem.
type Dispatcher struct {
	config     Config
	signingKey *ecdsa.PrivateKey
	client     *http.Client
}

func NewDispatcher(cfg Config) (*Dispatcher, error) {
	key, err := ResolveSigningKey(cfg.PublicKey, cfg.PrivateKey)
	if err != nil {
		return nil, err
	}
	return &Dispatcher{
		config:     cfg,
		signingKey: key,
		client:     &http.Client{Timeout: defaultSendTimeout},
	}, nil
}

// WithHTTPClient sets a custom HTTP client.
func (d *Dispatcher) WithHTTPClient(client *http.Client) *Dispatcher {
	d.client = client
	return d
}

// Send encrypts the payload for one subscription, signs a VAPID token for
// the endpoint's origin, posts the envelope and classifies the response.
func (d *Dispatcher) Send(ctx context.Context, sub *models.PushSubscription, payload []byte) SendResult {
	endpoint, err := url.Parse(sub.Endpoint)
	if err != nil {
		return d.failed(0, fmt.Sprintf("invalid endpoint: %v", err))
	}
	audience := endpoint.Scheme + "://" + endpoint.Host

	token, err := SignVAPIDJWT(audience, d.config.Subject, d.signingKey)
	if err != nil {
		return d.failed(0, err.Error())
	}

	envelope, err := Encrypt(payload, sub.P256dh, sub.Auth)
	if err != nil {
		return d.failed(0, err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.Endpoint, bytes.NewReader(envelope))
	if err != nil {
		return d.failed(0, err.Error())
	}
	req.Header.Set("Authorization", "vapid t="+token+", k="+d.config.PublicKey)
	req.Header.Set("Content-Encoding", "aes128gcm")
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("TTL", strconv.Itoa(defaultTTL))
	req.Header.Set("Urgency", "high")
	req.ContentLength = int64(len(envelope))

	resp, err := d.client.Do(req)
	if err != nil {
		return d.failed(0, err.Error())
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		pushSends.WithLabelValues("success").Inc()
		return SendResult{Status: SendSuccess, HTTPStatus: resp.StatusCode}
	case http.StatusNotFound, http.StatusGone:
		pushSends.WithLabelValues("expired").Inc()
		return SendResult{Status: SendExpired, HTTPStatus: resp.StatusCode}
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return d.failed(resp.StatusCode, fmt.Sprintf("push service returned %d: %s", resp.StatusCode, body))
	}
}

func (d *Dispatcher) failed(status int, msg string) SendResult {
	pushSends.WithLabelValues("failed").Inc()
	return SendResult{Status: SendFailed, HTTPStatus: status, Error: msg}
}
