// Package events defines the tracking event envelope and the fixed
// event vocabulary.
package events

import (
	"encoding/json"
	"strings"
	"time"
)

// Fixed event vocabulary.
const (
	EventPhoneClick       = "phone_click"
	EventQuoteRequest     = "quote_request"
	EventCallbackRequest  = "callback_request"
	EventContactForm      = "contact_form"
	EventCalculatorStart  = "calculator_start"
	EventCalculatorStep   = "calculator_step"
	EventCalculatorOption = "calculator_option"
	EventFormAbandon      = "form_abandon"

	// Lifecycle events emitted by the engine itself.
	EventPageView        = "page_view"
	EventSessionStart    = "session_start"
	EventUserIdentified  = "user_identified"
	EventUserLogout      = "user_logout"
	EventAudienceUpdated = "audience_updated"
)

// Device classifications by viewport width.
const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
)

// PageContext carries the page-side inputs every beacon includes.
type PageContext struct {
	URL           string `json:"url"`
	Path          string `json:"path,omitempty"`
	Referrer      string `json:"referrer,omitempty"`
	Title         string `json:"title,omitempty"`
	ViewportWidth int    `json:"viewportWidth,omitempty"`
}

// Device classifies the page context by viewport width. A missing width
// classifies as desktop.
func (p PageContext) Device() string {
	switch {
	case p.ViewportWidth <= 0:
		return DeviceDesktop
	case p.ViewportWidth < 768:
		return DeviceMobile
	case p.ViewportWidth < 1024:
		return DeviceTablet
	default:
		return DeviceDesktop
	}
}

// Envelope is the common structure every emitted event is normalized to.
// Params are flattened alongside the envelope fields on the wire.
type Envelope struct {
	Event           string         `json:"event"`
	TrackingVersion string         `json:"tracking_version"`
	SessionID       string         `json:"session_id"`
	PageURL         string         `json:"page_url"`
	Device          string         `json:"device"`
	Timestamp       time.Time      `json:"timestamp"`
	Params          map[string]any `json:"-"`
}

// MarshalJSON flattens Params into the top-level object. Envelope fields
// win on key collision.
func (e Envelope) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Params)+6)
	for k, v := range e.Params {
		out[k] = v
	}
	out["event"] = e.Event
	out["tracking_version"] = e.TrackingVersion
	out["session_id"] = e.SessionID
	out["page_url"] = e.PageURL
	out["device"] = e.Device
	out["timestamp"] = e.Timestamp.UTC().Format(time.RFC3339)
	return json.Marshal(out)
}

// IsConversion reports whether the event name belongs to the
// conversion class that gets attribution enrichment.
func IsConversion(name string) bool {
	switch name {
	case EventQuoteRequest, EventCallbackRequest, EventContactForm:
		return true
	}
	return false
}

// SanitizeName folds an arbitrary event name to an identifier-safe
// form: lower-cased, non-alphanumeric runs become single underscores.
func SanitizeName(name string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastUnderscore = false
		} else if !lastUnderscore && b.Len() > 0 {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
