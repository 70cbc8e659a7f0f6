package services

import (
	"time"

	"github.com/convertrack/convertrack-go/internal/domain/entities/attribution"
	"github.com/convertrack/convertrack-go/internal/domain/events"
	"github.com/convertrack/convertrack-go/internal/infrastructure/consent"
	"github.com/convertrack/convertrack-go/internal/infrastructure/datalayer"
	"github.com/convertrack/convertrack-go/internal/infrastructure/delivery"
	"github.com/convertrack/convertrack-go/internal/infrastructure/plugins"
	"github.com/convertrack/convertrack-go/internal/infrastructure/profile"
)

// DebugService exposes runtime state for the inspection endpoints.
type DebugService struct {
	dataLayer   *datalayer.DataLayer
	queue       *delivery.Queue
	sessions    *SessionService
	attribution *AttributionService
	engagement  *EngagementService
	identity    *IdentityService
	gate        *consent.Gate
	registry    *plugins.Registry
	version     string
	startedAt   time.Time
}

// StateSnapshot is a point-in-time view of one profile's tracking state.
type StateSnapshot struct {
	ProfileID     string                `json:"profileId"`
	Version       string                `json:"version"`
	UptimeSeconds int                   `json:"uptimeSeconds"`
	SessionID     string                `json:"sessionId,omitempty"`
	SessionActive bool                  `json:"sessionActive"`
	Consent       consent.State         `json:"consent"`
	FirstTouch    *attribution.Snapshot `json:"firstTouch,omitempty"`
	LastTouch     *attribution.Snapshot `json:"lastTouch,omitempty"`
	Segment       string                `json:"segment"`
	Score         int                   `json:"score"`
	Identified    bool                  `json:"identified"`
	QueueDepth    int                   `json:"queueDepth"`
	Plugins       []string              `json:"plugins"`
	RecentEvents  []events.Envelope     `json:"recentEvents"`
}

// NewDebugService creates the debug state service.
func NewDebugService(
	dataLayer *datalayer.DataLayer,
	queue *delivery.Queue,
	sessions *SessionService,
	attribution *AttributionService,
	engagement *EngagementService,
	identity *IdentityService,
	gate *consent.Gate,
	registry *plugins.Registry,
	version string,
) *DebugService {
	return &DebugService{
		dataLayer:   dataLayer,
		queue:       queue,
		sessions:    sessions,
		attribution: attribution,
		engagement:  engagement,
		identity:    identity,
		gate:        gate,
		registry:    registry,
		version:     version,
		startedAt:   time.Now(),
	}
}

// Snapshot assembles the current state for one profile, including the
// last n data-layer events.
func (s *DebugService) Snapshot(profileCtx *profile.Context, recentEvents int) StateSnapshot {
	snap := StateSnapshot{
		ProfileID:     profileCtx.ProfileID,
		Version:       s.version,
		UptimeSeconds: int(time.Since(s.startedAt).Seconds()),
		Consent:       s.gate.Current(profileCtx.ProfileID),
		Plugins:       s.registry.List(),
		QueueDepth:    s.queue.Pending(),
		RecentEvents:  s.dataLayer.Snapshot(recentEvents),
	}

	if sess, ok := s.sessions.CurrentSession(profileCtx); ok {
		snap.SessionID = sess.ID
		snap.SessionActive = true
	}
	if first, ok := s.attribution.GetFirstTouch(profileCtx); ok {
		snap.FirstTouch = &first
	}
	if last, ok := s.attribution.GetLastTouch(profileCtx); ok {
		snap.LastTouch = &last
	}

	signals := s.engagement.Signals(profileCtx)
	snap.Segment = string(signals.Segment())
	snap.Score = signals.Score()

	_, snap.Identified = s.identity.CurrentIdentity(profileCtx)
	return snap
}

// PendingDeliveries returns the queued retry requests.
func (s *DebugService) PendingDeliveries() []delivery.Request {
	return s.queue.PendingRequests()
}

// RecentEvents returns the last n data-layer events.
func (s *DebugService) RecentEvents(n int) []events.Envelope {
	return s.dataLayer.Snapshot(n)
}
