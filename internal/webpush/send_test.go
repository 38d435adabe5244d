package webpush

import (
	"context"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"update-broadcast-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	pubB64, privB64 := encodeTestKeyPair(t, key)

	d, err := NewDispatcher(Config{
		PublicKey:  pubB64,
		PrivateKey: privB64,
		Subject:    "mailto:ops@example.com",
	})
	require.NoError(t, err)
	return d
}

func newTestSubscription(t *testing.T, endpoint string) *models.PushSubscription {
	t.Helper()

	client, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)

	return &models.PushSubscription{
		ID:       1,
		Endpoint: endpoint,
		P256dh:   EncodeBase64URL(client.PublicKey().Bytes()),
		Auth:     EncodeBase64URL(auth),
	}
}

func TestSendSuccess(t *testing.T) {
	d := newTestDispatcher(t)

	var gotHeaders http.Header
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	sub := newTestSubscription(t, srv.URL+"/push/v2/abc")
	payload := []byte(`{"title":"Update"}`)

	res := d.Send(context.Background(), sub, payload)
	assert.Equal(t, SendSuccess, res.Status)
	assert.Equal(t, http.StatusCreated, res.HTTPStatus)
	assert.Empty(t, res.Error)

	assert.True(t, strings.HasPrefix(gotHeaders.Get("Authorization"), "vapid t="))
	assert.Contains(t, gotHeaders.Get("Authorization"), ", k="+d.config.PublicKey)
	assert.Equal(t, "aes128gcm", gotHeaders.Get("Content-Encoding"))
	assert.Equal(t, "application/octet-stream", gotHeaders.Get("Content-Type"))
	assert.Equal(t, "86400", gotHeaders.Get("TTL"))
	assert.Equal(t, "high", gotHeaders.Get("Urgency"))

	// encrypted envelope, not the plaintext
	require.Len(t, gotBody, 86+len(payload)+2+16)
	assert.NotContains(t, string(gotBody), "Update")
}

func TestSendClassifiesExpired(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusGone} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		d := newTestDispatcher(t)

		res := d.Send(context.Background(), newTestSubscription(t, srv.URL), []byte("{}"))
		assert.Equal(t, SendExpired, res.Status)
		assert.Equal(t, status, res.HTTPStatus)
		srv.Close()
	}
}

func TestSendClassifiesFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("rate limited"))
	}))
	defer srv.Close()
	d := newTestDispatcher(t)

	res := d.Send(context.Background(), newTestSubscription(t, srv.URL), []byte("{}"))
	assert.Equal(t, SendFailed, res.Status)
	assert.Equal(t, http.StatusTooManyRequests, res.HTTPStatus)
	assert.Contains(t, res.Error, "429")
	assert.Contains(t, res.Error, "rate limited")
}

func TestSendNetworkErrorHasNoStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()
	d := newTestDispatcher(t)

	res := d.Send(context.Background(), newTestSubscription(t, url), []byte("{}"))
	assert.Equal(t, SendFailed, res.Status)
	assert.Zero(t, res.HTTPStatus)
	assert.NotEmpty(t, res.Error)
}
