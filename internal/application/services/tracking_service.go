package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/convertrack/convertrack-go/internal/domain/events"
	"github.com/convertrack/convertrack-go/internal/infrastructure/consent"
	"github.com/convertrack/convertrack-go/internal/infrastructure/observability/logging"
	"github.com/convertrack/convertrack-go/internal/infrastructure/plugins"
	"github.com/convertrack/convertrack-go/internal/infrastructure/profile"
	"github.com/convertrack/convertrack-go/internal/infrastructure/security"
)

// ConversionResult is returned from TrackConversion.
type ConversionResult struct {
	Success        bool   `json:"success"`
	LeadID         string `json:"leadId,omitempty"`
	Gclid          string `json:"gclid,omitempty"`
	ConsentBlocked bool   `json:"consentBlocked"`
	Reason         string `json:"reason,omitempty"`
	Error          string `json:"error,omitempty"`
}

// PhoneClickResult is returned from TrackPhoneClick.
type PhoneClickResult struct {
	Success   bool   `json:"success"`
	Duplicate bool   `json:"duplicate"`
	EventID   string `json:"eventId,omitempty"`
}

// PageViewResult is returned from TrackPageView.
type PageViewResult struct {
	SessionID  string `json:"sessionId"`
	NewSession bool   `json:"newSession"`
	Segment    string `json:"segment"`
	Score      int    `json:"score"`
	Captured   bool   `json:"attributionCaptured"`
}

// TrackingService is the public facade orchestrating the tracking
// pipeline. Every entry point degrades gracefully; nothing propagates
// a failure into the embedding page's request.
type TrackingService struct {
	sessions    *SessionService
	attribution *AttributionService
	eventsSvc   *EventService
	engagement  *EngagementService
	identity    *IdentityService
	gate        *consent.Gate
	registry    *plugins.Registry
	logger      *logging.ChanneledLogger

	mu          sync.Mutex
	firedPhones map[string]phoneFire // sessionId -> fired event, once per session
}

// phoneFire records one fired phone_click so later clicks in the same
// session echo the original event ID. The timestamp drives pruning once
// the session can no longer be active.
type phoneFire struct {
	eventID string
	firedAt time.Time
}

// NewTrackingService creates the facade over the pipeline services.
func NewTrackingService(
	sessions *SessionService,
	attribution *AttributionService,
	eventsSvc *EventService,
	engagement *EngagementService,
	identity *IdentityService,
	gate *consent.Gate,
	registry *plugins.Registry,
	logger *logging.ChanneledLogger,
) *TrackingService {
	return &TrackingService{
		sessions:    sessions,
		attribution: attribution,
		eventsSvc:   eventsSvc,
		engagement:  engagement,
		identity:    identity,
		gate:        gate,
		registry:    registry,
		logger:      logger,
		firedPhones: make(map[string]phoneFire),
	}
}

// TrackPageView runs the page-load pipeline: session issue/extend,
// attribution capture, anonymous-session accounting, signal updates.
func (s *TrackingService) TrackPageView(ctx context.Context, profileCtx *profile.Context) PageViewResult {
	wasActive := s.sessions.HasActiveSession(profileCtx)
	info := s.sessions.GetOrCreateSession(profileCtx)

	if !wasActive && info.IsNew {
		s.engagement.RecordSessionStart(profileCtx)
		s.identity.TrackAnonymousSession(profileCtx, info.SessionID)
		s.eventsSvc.Dispatch(ctx, profileCtx, info.SessionID, events.EventSessionStart, nil)
	}

	captured := s.attribution.CaptureAttributionParams(profileCtx)

	// The engagement engine counts the page view off the dispatch
	// stream; a direct counter bump here would double it.
	s.eventsSvc.Dispatch(ctx, profileCtx, info.SessionID, events.EventPageView, map[string]any{
		"path": profileCtx.Page.Path,
	})
	s.registry.NotifyPageView(profileCtx.Page)

	signals := s.engagement.Signals(profileCtx)
	return PageViewResult{
		SessionID:  info.SessionID,
		NewSession: info.IsNew,
		Segment:    string(signals.Segment()),
		Score:      signals.Score(),
		Captured:   captured,
	}
}

// TrackConversion dispatches a conversion-class event with attribution
// enrichment and a minted lead ID. Marketing-consent denial is a normal
// branch: the data-layer event still fires, pixel/CAPI forwarding and
// click-ID reporting are skipped.
func (s *TrackingService) TrackConversion(ctx context.Context, profileCtx *profile.Context, conversionType string, params map[string]any) ConversionResult {
	if !events.IsConversion(conversionType) {
		return ConversionResult{
			Success: false,
			Error:   fmt.Sprintf("unknown conversion type: %s", conversionType),
		}
	}

	info := s.sessions.GetOrCreateSession(profileCtx)
	s.identity.TrackAnonymousSession(profileCtx, info.SessionID)

	blocked := !s.gate.Allows(profileCtx.ProfileID, consent.CategoryMarketing)
	leadID := security.GenerateULID()

	if params == nil {
		params = make(map[string]any)
	}
	params["lead_id"] = leadID
	params["conversion_type"] = conversionType

	s.eventsSvc.Dispatch(ctx, profileCtx, info.SessionID, conversionType, params)

	result := ConversionResult{
		Success:        true,
		LeadID:         leadID,
		ConsentBlocked: blocked,
	}
	if blocked {
		result.Reason = "no_consent"
	} else {
		result.Gclid = s.attribution.GetGclid(profileCtx)
	}
	return result
}

// TrackPhoneClick dispatches a phone_click event, deduplicated once per
// session via an in-memory fired set.
func (s *TrackingService) TrackPhoneClick(ctx context.Context, profileCtx *profile.Context, params map[string]any) PhoneClickResult {
	info := s.sessions.GetOrCreateSession(profileCtx)

	s.mu.Lock()
	s.pruneFiredPhonesLocked(time.Now())
	if existing, fired := s.firedPhones[info.SessionID]; fired {
		s.mu.Unlock()
		return PhoneClickResult{Success: false, Duplicate: true, EventID: existing.eventID}
	}
	eventID := security.GenerateULID()
	s.firedPhones[info.SessionID] = phoneFire{eventID: eventID, firedAt: time.Now()}
	s.mu.Unlock()

	if params == nil {
		params = make(map[string]any)
	}
	params["event_id"] = eventID

	s.eventsSvc.Dispatch(ctx, profileCtx, info.SessionID, events.EventPhoneClick, params)
	s.engagement.RecordPhoneClick(profileCtx)

	return PhoneClickResult{Success: true, Duplicate: false, EventID: eventID}
}

// pruneFiredPhonesLocked drops dedupe entries for sessions whose
// inactivity window has long passed; their IDs can never recur.
// Caller holds s.mu.
func (s *TrackingService) pruneFiredPhonesLocked(now time.Time) {
	cutoff := now.Add(-2 * s.sessions.timeout)
	for sessionID, fire := range s.firedPhones {
		if fire.firedAt.Before(cutoff) {
			delete(s.firedPhones, sessionID)
		}
	}
}

// TrackEvent dispatches an arbitrary event under the current session.
func (s *TrackingService) TrackEvent(ctx context.Context, profileCtx *profile.Context, name string, params map[string]any) (events.Envelope, bool) {
	info := s.sessions.GetOrCreateSession(profileCtx)
	return s.eventsSvc.TrackEvent(ctx, profileCtx, info.SessionID, name, params)
}

// IdentifyUser stitches the current session onto an identity and emits
// the identity event.
func (s *TrackingService) IdentifyUser(ctx context.Context, profileCtx *profile.Context, params IdentifyParams) error {
	info := s.sessions.GetOrCreateSession(profileCtx)

	user, err := s.identity.IdentifyUser(profileCtx, info.SessionID, params)
	if err != nil {
		return err
	}

	s.eventsSvc.Dispatch(ctx, profileCtx, info.SessionID, events.EventUserIdentified, map[string]any{
		"email_hash":    user.EmailHash,
		"session_count": len(user.Sessions),
	})
	return nil
}

// ClearIdentity erases the stored identity and emits the logout signal.
func (s *TrackingService) ClearIdentity(ctx context.Context, profileCtx *profile.Context) {
	existed := s.identity.ClearIdentity(profileCtx)
	if !existed {
		return
	}
	info := s.sessions.GetOrCreateSession(profileCtx)
	s.eventsSvc.Dispatch(ctx, profileCtx, info.SessionID, events.EventUserLogout, nil)
}

// NotifyConsentChange relays a host-reported consent update into the
// gate and fans it out to plugins.
func (s *TrackingService) NotifyConsentChange(profileCtx *profile.Context, state consent.State) {
	s.gate.NotifyChange(profileCtx.ProfileID, state)
	s.registry.NotifyConsentChange(profileCtx.ProfileID, state)
}
