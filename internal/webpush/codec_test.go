package webpush

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		{0x00},
		{0xff, 0xfe, 0xfd},
		[]byte("a slightly longer payload with spaces and / + characters"),
		make([]byte, 65),
	}
	for _, b := range cases {
		enc := EncodeBase64URL(b)
		assert.NotContains(t, enc, "+")
		assert.NotContains(t, enc, "/")
		assert.NotContains(t, enc, "=")

		dec, err := DecodeBase64URLStrict(enc)
		require.NoError(t, err)
		assert.Equal(t, b, dec)
	}
}

func TestStrictDecodeAcceptsPadding(t *testing.T) {
	dec, err := DecodeBase64URLStrict("AQID" + "BA==")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, dec)
}

func TestStrictDecodeRejectsInvalidChars(t *testing.T) {
	_, err := DecodeBase64URLStrict("not!valid")
	assert.Error(t, err)
}

func TestTolerantDecodeHex(t *testing.T) {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = byte(i * 7)
	}
	hexStr := hex.EncodeToString(raw)
	require.Len(t, hexStr, 64)

	dec, err := DecodeBase64URLTolerant(hexStr)
	require.NoError(t, err)
	assert.Equal(t, raw, dec)
}

func TestTolerantDecodeNonHex64CharsUsesBase64(t *testing.T) {
	// 64 valid base64url chars containing '-' are not a hex string.
	s := "-" + strings.Repeat("A", 63)
	dec, err := DecodeBase64URLTolerant(s)
	require.NoError(t, err)
	assert.Len(t, dec, 48)
}

func TestTolerantDecodeStripsWhitespace(t *testing.T) {
	raw := []byte{9, 8, 7, 6, 5}
	enc := EncodeBase64URL(raw)
	dec, err := DecodeBase64URLTolerant(" " + enc[:3] + "\n" + enc[3:] + "\t")
	require.NoError(t, err)
	assert.Equal(t, raw, dec)
}

func TestTolerantDecodeTrimsStrayTrailingChar(t *testing.T) {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = byte(i)
	}
	enc := EncodeBase64URL(raw) // 43 chars

	dec, err := DecodeBase64URLTolerant(enc + "!")
	require.NoError(t, err)
	assert.Equal(t, raw, dec)
}

func TestTolerantDecodePropagatesOriginalError(t *testing.T) {
	_, err := DecodeBase64URLTolerant("!!!!")
	assert.Error(t, err)
}
