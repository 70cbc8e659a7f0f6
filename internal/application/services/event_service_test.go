package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convertrack/convertrack-go/internal/application/services"
	"github.com/convertrack/convertrack-go/internal/domain/events"
	"github.com/convertrack/convertrack-go/internal/infrastructure/consent"
	"github.com/convertrack/convertrack-go/internal/infrastructure/datalayer"
	"github.com/convertrack/convertrack-go/internal/infrastructure/delivery"
	"github.com/convertrack/convertrack-go/internal/infrastructure/plugins"
	"github.com/convertrack/convertrack-go/internal/infrastructure/profile"
)

// recordingSink captures forwarded envelopes and their event IDs.
type recordingSink struct {
	name     string
	sent     []events.Envelope
	eventIDs []string
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Send(_ context.Context, ev events.Envelope, eventID string) delivery.Outcome {
	s.sent = append(s.sent, ev)
	s.eventIDs = append(s.eventIDs, eventID)
	return delivery.OutcomeDelivered
}

func newEventService(gate *consent.Gate) (*services.EventService, *datalayer.DataLayer) {
	dl := datalayer.New(50, nil)
	attribution := services.NewAttributionService(gate, nil)
	return services.NewEventService(dl, plugins.NewRegistry(nil), gate, attribution, "1.0.0", false, nil), dl
}

func TestEventService_Dispatch(t *testing.T) {
	svc, dl := newEventService(devGate())
	profileCtx := newProfileCtx("p-ev")
	profileCtx.Page = events.PageContext{URL: "https://example.com/pricing", ViewportWidth: 500}

	envelope := svc.Dispatch(context.Background(), profileCtx, "s1", events.EventPageView, map[string]any{"path": "/pricing"})

	assert.Equal(t, events.EventPageView, envelope.Event)
	assert.Equal(t, "s1", envelope.SessionID)
	assert.Equal(t, "1.0.0", envelope.TrackingVersion)
	assert.Equal(t, "mobile", envelope.Device)
	assert.False(t, envelope.Timestamp.IsZero())

	recent := dl.Snapshot(0)
	require.Len(t, recent, 1)
	assert.Equal(t, events.EventPageView, recent[0].Event)
}

func TestEventService_ConversionEnrichment(t *testing.T) {
	gate := devGate()
	svc, _ := newEventService(gate)
	attribution := services.NewAttributionService(gate, nil)
	profileCtx := newProfileCtx("p-ev-conv")

	profileCtx.Page = events.PageContext{URL: "https://example.com/?utm_source=google&gclid=g-123"}
	require.True(t, attribution.CaptureAttributionParams(profileCtx))

	t.Run("conversion carries touches and click IDs", func(t *testing.T) {
		envelope := svc.Dispatch(context.Background(), profileCtx, "s1", events.EventQuoteRequest, nil)
		assert.Contains(t, envelope.Params, "first_touch")
		assert.Contains(t, envelope.Params, "last_touch")
		assert.Equal(t, "g-123", envelope.Params["gclid"])
	})

	t.Run("non-conversion stays lean", func(t *testing.T) {
		envelope := svc.Dispatch(context.Background(), profileCtx, "s1", events.EventPageView, nil)
		assert.NotContains(t, envelope.Params, "first_touch")
		assert.NotContains(t, envelope.Params, "gclid")
	})
}

func TestEventService_DevModeValidationWithoutLogger(t *testing.T) {
	gate := devGate()
	dl := datalayer.New(10, nil)
	attribution := services.NewAttributionService(gate, nil)
	svc := services.NewEventService(dl, plugins.NewRegistry(nil), gate, attribution, "1.0.0", true, nil)
	profileCtx := newProfileCtx("p-ev-devnolog")

	// quote_request without its required fields trips validation; with
	// no logger wired the dispatch must still complete quietly.
	assert.NotPanics(t, func() {
		svc.Dispatch(context.Background(), profileCtx, "s1", events.EventQuoteRequest, nil)
	})
	assert.Len(t, dl.Snapshot(0), 1)
}

func TestEventService_TrackEvent(t *testing.T) {
	svc, _ := newEventService(devGate())
	profileCtx := newProfileCtx("p-ev-arb")

	envelope, ok := svc.TrackEvent(context.Background(), profileCtx, "s1", "Video Played!", nil)
	require.True(t, ok)
	assert.Equal(t, "video_played", envelope.Event)

	_, ok = svc.TrackEvent(context.Background(), profileCtx, "s1", "???", nil)
	assert.False(t, ok)
}

func TestEventService_Listeners(t *testing.T) {
	svc, _ := newEventService(devGate())
	profileCtx := newProfileCtx("p-ev-listen")

	var seen []string
	svc.SubscribeDispatch(func(_ *profile.Context, ev events.Envelope) {
		seen = append(seen, ev.Event)
	})

	svc.Dispatch(context.Background(), profileCtx, "s1", events.EventPageView, nil)
	svc.Dispatch(context.Background(), profileCtx, "s1", events.EventPhoneClick, nil)

	assert.Equal(t, []string{events.EventPageView, events.EventPhoneClick}, seen)
}

func TestEventService_SinkConsentGating(t *testing.T) {
	t.Run("marketing denied skips sinks but not data layer", func(t *testing.T) {
		gate := consent.NewGate(nil, false, nil) // prod default: deny
		svc, dl := newEventService(gate)
		sink := &recordingSink{name: "pixel"}
		svc.AddSink(sink)
		profileCtx := newProfileCtx("p-ev-denied")

		svc.Dispatch(context.Background(), profileCtx, "s1", events.EventQuoteRequest, nil)

		assert.Empty(t, sink.sent)
		assert.Len(t, dl.Snapshot(0), 1)
	})

	t.Run("marketing granted forwards with shared event ID", func(t *testing.T) {
		gate := consent.NewGate(nil, false, nil)
		svc, _ := newEventService(gate)
		pixel := &recordingSink{name: "pixel"}
		capi := &recordingSink{name: "capi"}
		svc.AddSink(pixel)
		svc.AddSink(capi)
		profileCtx := newProfileCtx("p-ev-granted")
		gate.NotifyChange(profileCtx.ProfileID, consent.State{Marketing: true, Necessary: true})

		svc.Dispatch(context.Background(), profileCtx, "s1", events.EventQuoteRequest, nil)

		require.Len(t, pixel.sent, 1)
		require.Len(t, capi.sent, 1)
		assert.NotEmpty(t, pixel.eventIDs[0])
		assert.Equal(t, pixel.eventIDs[0], capi.eventIDs[0], "pixel and CAPI share the dedup ID")
	})

	t.Run("consent re-checked per dispatch", func(t *testing.T) {
		gate := consent.NewGate(nil, false, nil)
		svc, _ := newEventService(gate)
		sink := &recordingSink{name: "pixel"}
		svc.AddSink(sink)
		profileCtx := newProfileCtx("p-ev-revoked")

		gate.NotifyChange(profileCtx.ProfileID, consent.State{Marketing: true, Necessary: true})
		svc.Dispatch(context.Background(), profileCtx, "s1", events.EventQuoteRequest, nil)
		require.Len(t, sink.sent, 1)

		gate.NotifyChange(profileCtx.ProfileID, consent.State{Necessary: true})
		svc.Dispatch(context.Background(), profileCtx, "s1", events.EventQuoteRequest, nil)
		assert.Len(t, sink.sent, 1, "revoked consent stops the next send")
	})
}
