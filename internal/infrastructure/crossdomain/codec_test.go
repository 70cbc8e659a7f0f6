package crossdomain_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convertrack/convertrack-go/internal/domain/entities/attribution"
	"github.com/convertrack/convertrack-go/internal/infrastructure/crossdomain"
)

func newCodec(t *testing.T) *crossdomain.Codec {
	t.Helper()
	return crossdomain.NewCodec("test-signing-key", time.Hour, "_ctxd", []string{"example.com", "shop.example.net"})
}

func TestCodec_RoundTrip(t *testing.T) {
	codec := newCodec(t)

	first := &attribution.Snapshot{UTMSource: "google", UTMMedium: "cpc"}
	token, err := codec.Encode(crossdomain.Payload{
		SessionID:  "s-123",
		FirstTouch: first,
		Timestamp:  time.Now().UTC(),
	})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	decoded, ok := codec.Decode(token)
	require.True(t, ok)
	assert.Equal(t, "s-123", decoded.SessionID)
	require.NotNil(t, decoded.FirstTouch)
	assert.Equal(t, "google", decoded.FirstTouch.UTMSource)
	assert.Nil(t, decoded.LastTouch)
}

func TestCodec_Decode_Rejections(t *testing.T) {
	codec := newCodec(t)

	t.Run("garbage", func(t *testing.T) {
		_, ok := codec.Decode("not-a-token")
		assert.False(t, ok)
	})

	t.Run("tampered payload", func(t *testing.T) {
		token, err := codec.Encode(crossdomain.Payload{SessionID: "s-1"})
		require.NoError(t, err)

		parts := strings.Split(token, ".")
		require.Len(t, parts, 3)
		parts[1] = parts[1][:len(parts[1])-2] + "xx"
		_, ok := codec.Decode(strings.Join(parts, "."))
		assert.False(t, ok)
	})

	t.Run("wrong key", func(t *testing.T) {
		other := crossdomain.NewCodec("different-key", time.Hour, "_ctxd", nil)
		token, err := other.Encode(crossdomain.Payload{SessionID: "s-1"})
		require.NoError(t, err)

		_, ok := codec.Decode(token)
		assert.False(t, ok)
	})

	t.Run("missing session", func(t *testing.T) {
		token, err := codec.Encode(crossdomain.Payload{})
		require.NoError(t, err)

		_, ok := codec.Decode(token)
		assert.False(t, ok)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := codec.Encode(crossdomain.Payload{
			SessionID: "s-1",
			Timestamp: time.Now().UTC().Add(-2 * time.Hour),
		})
		require.NoError(t, err)

		_, ok := codec.Decode(token)
		assert.False(t, ok)
	})
}

func TestCodec_IsLinkedDomain(t *testing.T) {
	codec := newCodec(t)

	assert.True(t, codec.IsLinkedDomain("example.com"))
	assert.True(t, codec.IsLinkedDomain("www.example.com"))
	assert.True(t, codec.IsLinkedDomain("EXAMPLE.COM"))
	assert.True(t, codec.IsLinkedDomain("example.com:8080"))
	assert.True(t, codec.IsLinkedDomain("shop.example.net"))

	assert.False(t, codec.IsLinkedDomain("evil.com"))
	assert.False(t, codec.IsLinkedDomain("example.com.evil.com"))
	assert.False(t, codec.IsLinkedDomain("sub.example.com"))
}

func TestCodec_DecorateURL(t *testing.T) {
	codec := newCodec(t)
	payload := crossdomain.Payload{SessionID: "s-1"}

	t.Run("linked domain gets the parameter", func(t *testing.T) {
		out := codec.DecorateURL("https://example.com/landing?x=1", payload)
		assert.Contains(t, out, "_ctxd=")
		assert.Contains(t, out, "x=1")
	})

	t.Run("unlisted domain untouched", func(t *testing.T) {
		in := "https://other.com/landing"
		assert.Equal(t, in, codec.DecorateURL(in, payload))
	})

	t.Run("relative url untouched", func(t *testing.T) {
		assert.Equal(t, "/landing", codec.DecorateURL("/landing", payload))
	})
}

func TestCodec_ExtractToken(t *testing.T) {
	codec := newCodec(t)

	decorated := codec.DecorateURL("https://example.com/landing?x=1", crossdomain.Payload{SessionID: "s-1"})
	token, clean := codec.ExtractToken(decorated)

	require.NotEmpty(t, token)
	assert.NotContains(t, clean, "_ctxd")
	assert.Contains(t, clean, "x=1")

	decoded, ok := codec.Decode(token)
	require.True(t, ok)
	assert.Equal(t, "s-1", decoded.SessionID)

	t.Run("no token present", func(t *testing.T) {
		token, clean := codec.ExtractToken("https://example.com/?x=1")
		assert.Empty(t, token)
		assert.Equal(t, "https://example.com/?x=1", clean)
	})
}
