package services

import (
	"context"
	"sync"
	"time"

	"github.com/convertrack/convertrack-go/internal/domain/events"
	"github.com/convertrack/convertrack-go/internal/infrastructure/consent"
	"github.com/convertrack/convertrack-go/internal/infrastructure/datalayer"
	"github.com/convertrack/convertrack-go/internal/infrastructure/delivery"
	"github.com/convertrack/convertrack-go/internal/infrastructure/observability/logging"
	"github.com/convertrack/convertrack-go/internal/infrastructure/plugins"
	"github.com/convertrack/convertrack-go/internal/infrastructure/profile"
	"github.com/convertrack/convertrack-go/internal/infrastructure/security"
)

// DispatchListener observes every dispatched event. The funnel and
// engagement engines subscribe here instead of intercepting the data
// layer.
type DispatchListener func(profileCtx *profile.Context, ev events.Envelope)

// EventService normalizes and emits structured tracking events: data
// layer push, plugin fan-out, and consent-gated sink forwarding.
type EventService struct {
	dataLayer       *datalayer.DataLayer
	registry        *plugins.Registry
	gate            *consent.Gate
	attribution     *AttributionService
	sinks           []delivery.Sink
	trackingVersion string
	devMode         bool
	logger          *logging.ChanneledLogger

	mu        sync.RWMutex
	listeners []DispatchListener
}

// NewEventService creates the event dispatcher.
func NewEventService(
	dataLayer *datalayer.DataLayer,
	registry *plugins.Registry,
	gate *consent.Gate,
	attribution *AttributionService,
	trackingVersion string,
	devMode bool,
	logger *logging.ChanneledLogger,
) *EventService {
	return &EventService{
		dataLayer:       dataLayer,
		registry:        registry,
		gate:            gate,
		attribution:     attribution,
		trackingVersion: trackingVersion,
		devMode:         devMode,
		logger:          logger,
	}
}

// AddSink registers a marketing sink (pixel/CAPI endpoint).
func (s *EventService) AddSink(sink delivery.Sink) {
	s.mu.Lock()
	s.sinks = append(s.sinks, sink)
	s.mu.Unlock()
}

// SubscribeDispatch registers an internal listener for every dispatch.
func (s *EventService) SubscribeDispatch(fn DispatchListener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Dispatch normalizes an event and emits it. The name is taken as-is
// for the fixed vocabulary; arbitrary names go through TrackEvent.
func (s *EventService) Dispatch(ctx context.Context, profileCtx *profile.Context, sessionID, name string, params map[string]any) events.Envelope {
	envelope := events.Envelope{
		Event:           name,
		TrackingVersion: s.trackingVersion,
		SessionID:       sessionID,
		PageURL:         profileCtx.Page.URL,
		Device:          profileCtx.Page.Device(),
		Timestamp:       time.Now().UTC(),
		Params:          params,
	}

	if s.devMode && s.logger != nil {
		if violations := events.Validate(name, params); len(violations) > 0 {
			// Validation is diagnostic only; delivery proceeds.
			s.logger.Events().Warn("Event schema violations",
				"event", name,
				"sessionId", sessionID,
				"violations", violations,
			)
		}
	}

	if events.IsConversion(name) {
		s.enrichWithAttribution(profileCtx, &envelope)
	}

	s.dataLayer.Push(envelope)
	s.registry.NotifyEvent(envelope)
	if events.IsConversion(name) {
		s.registry.NotifyConversion(envelope)
	}
	if name == events.EventPhoneClick {
		s.registry.NotifyPhoneClick(envelope)
	}

	s.notifyListeners(profileCtx, envelope)
	s.forwardToSinks(ctx, profileCtx, envelope)

	if s.logger != nil {
		s.logger.Events().Debug("Event dispatched",
			"event", name,
			"sessionId", sessionID,
			"device", envelope.Device,
		)
	}
	return envelope
}

// TrackEvent dispatches an arbitrary event, folding its name to an
// identifier-safe form first.
func (s *EventService) TrackEvent(ctx context.Context, profileCtx *profile.Context, sessionID, name string, params map[string]any) (events.Envelope, bool) {
	sanitized := events.SanitizeName(name)
	if sanitized == "" {
		if s.logger != nil {
			s.logger.Events().Warn("Dropped event with unusable name", "name", name)
		}
		return events.Envelope{}, false
	}
	return s.Dispatch(ctx, profileCtx, sessionID, sanitized, params), true
}

func (s *EventService) enrichWithAttribution(profileCtx *profile.Context, envelope *events.Envelope) {
	if envelope.Params == nil {
		envelope.Params = make(map[string]any)
	}
	if first, ok := s.attribution.GetFirstTouch(profileCtx); ok {
		envelope.Params["first_touch"] = first
	}
	if last, ok := s.attribution.GetLastTouch(profileCtx); ok {
		envelope.Params["last_touch"] = last
	}
	if gclid := s.attribution.GetGclid(profileCtx); gclid != "" {
		envelope.Params["gclid"] = gclid
	}
	if fbclid := s.attribution.GetFbclid(profileCtx); fbclid != "" {
		envelope.Params["fbclid"] = fbclid
	}
}

func (s *EventService) notifyListeners(profileCtx *profile.Context, envelope events.Envelope) {
	s.mu.RLock()
	listeners := make([]DispatchListener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(profileCtx, envelope)
	}
}

// forwardToSinks sends the event to pixel/CAPI sinks. Marketing consent
// is re-checked here, at the moment of the send.
func (s *EventService) forwardToSinks(ctx context.Context, profileCtx *profile.Context, envelope events.Envelope) {
	s.mu.RLock()
	sinks := make([]delivery.Sink, len(s.sinks))
	copy(sinks, s.sinks)
	s.mu.RUnlock()

	if len(sinks) == 0 {
		return
	}

	if !s.gate.Allows(profileCtx.ProfileID, consent.CategoryMarketing) {
		if s.logger != nil {
			s.logger.Consent().Debug("Sink forwarding skipped, marketing consent denied",
				"event", envelope.Event,
				"profileId", profileCtx.ProfileID,
			)
		}
		return
	}

	// One idempotency ID per logical event, shared across sinks so the
	// downstream pixel/CAPI pair can deduplicate.
	eventID := security.ShortHash(envelope.SessionID + envelope.Event + envelope.Timestamp.Format(time.RFC3339Nano))
	for _, sink := range sinks {
		sink.Send(ctx, envelope, eventID)
	}
}
