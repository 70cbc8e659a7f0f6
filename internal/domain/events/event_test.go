package events_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convertrack/convertrack-go/internal/domain/events"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"phone_click", "phone_click"},
		{"Phone Click", "phone_click"},
		{"  Quote--Request!  ", "quote_request"},
		{"CALCULATOR start (v2)", "calculator_start_v2"},
		{"!!!", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, events.SanitizeName(tt.in), "input %q", tt.in)
	}
}

func TestPageContext_Device(t *testing.T) {
	assert.Equal(t, events.DeviceDesktop, events.PageContext{}.Device())
	assert.Equal(t, events.DeviceMobile, events.PageContext{ViewportWidth: 375}.Device())
	assert.Equal(t, events.DeviceMobile, events.PageContext{ViewportWidth: 767}.Device())
	assert.Equal(t, events.DeviceTablet, events.PageContext{ViewportWidth: 768}.Device())
	assert.Equal(t, events.DeviceTablet, events.PageContext{ViewportWidth: 1023}.Device())
	assert.Equal(t, events.DeviceDesktop, events.PageContext{ViewportWidth: 1024}.Device())
}

func TestEnvelope_MarshalJSON(t *testing.T) {
	env := events.Envelope{
		Event:           "quote_request",
		TrackingVersion: "2.1",
		SessionID:       "s-1",
		PageURL:         "https://example.com/pricing",
		Device:          "desktop",
		Timestamp:       time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Params: map[string]any{
			"value": 42,
			"event": "spoofed",
		},
	}

	raw, err := json.Marshal(env)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))

	// Params flatten to the top level; envelope fields win collisions.
	assert.Equal(t, float64(42), out["value"])
	assert.Equal(t, "quote_request", out["event"])
	assert.Equal(t, "s-1", out["session_id"])
	assert.Equal(t, "2025-06-01T12:00:00Z", out["timestamp"])
}

func TestIsConversion(t *testing.T) {
	assert.True(t, events.IsConversion(events.EventQuoteRequest))
	assert.True(t, events.IsConversion(events.EventCallbackRequest))
	assert.True(t, events.IsConversion(events.EventContactForm))
	assert.False(t, events.IsConversion(events.EventPageView))
	assert.False(t, events.IsConversion(events.EventPhoneClick))
}
