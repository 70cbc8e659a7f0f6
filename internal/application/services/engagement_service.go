package services

import (
	"time"

	"github.com/convertrack/convertrack-go/internal/domain/entities/engagement"
	"github.com/convertrack/convertrack-go/internal/domain/events"
	"github.com/convertrack/convertrack-go/internal/infrastructure/observability/logging"
	"github.com/convertrack/convertrack-go/internal/infrastructure/persistence/kv"
	"github.com/convertrack/convertrack-go/internal/infrastructure/profile"
)

const keyEngagement = "engagement"

// AudienceNotifier re-emits audience signals after a segment change.
type AudienceNotifier func(profileCtx *profile.Context, segment engagement.Segment, score int)

// EngagementService accumulates visitor signals and derives the
// audience segment and engagement score.
type EngagementService struct {
	notifier AudienceNotifier
	logger   *logging.ChanneledLogger
}

// NewEngagementService creates a new engagement service.
func NewEngagementService(logger *logging.ChanneledLogger) *EngagementService {
	return &EngagementService{logger: logger}
}

// SetAudienceNotifier wires the re-emission callback. Set once by the
// container to break the dispatcher/engine construction cycle.
func (s *EngagementService) SetAudienceNotifier(fn AudienceNotifier) {
	s.notifier = fn
}

// Signals returns the profile's accumulated signals.
func (s *EngagementService) Signals(profileCtx *profile.Context) engagement.Signals {
	signals, _ := kv.GetJSON[engagement.Signals](profileCtx.Store, keyEngagement)
	return signals
}

// GetAudienceSegment recomputes the segment from current signals.
func (s *EngagementService) GetAudienceSegment(profileCtx *profile.Context) engagement.Segment {
	return s.Signals(profileCtx).Segment()
}

// GetEngagementScore recomputes the 0-100 score from current signals.
func (s *EngagementService) GetEngagementScore(profileCtx *profile.Context) int {
	return s.Signals(profileCtx).Score()
}

// RecordPageView bumps the page view counter.
func (s *EngagementService) RecordPageView(profileCtx *profile.Context) {
	s.update(profileCtx, func(sig *engagement.Signals) {
		sig.PageViews++
	})
}

// RecordSessionStart bumps the session counter for a new session.
func (s *EngagementService) RecordSessionStart(profileCtx *profile.Context) {
	s.update(profileCtx, func(sig *engagement.Signals) {
		sig.SessionCount++
	})
}

// RecordCalculatorStart marks that the visitor opened the calculator.
func (s *EngagementService) RecordCalculatorStart(profileCtx *profile.Context) {
	s.update(profileCtx, func(sig *engagement.Signals) {
		sig.CalculatorStarted = true
	})
}

// RecordCalculatorComplete marks a finished calculator run.
func (s *EngagementService) RecordCalculatorComplete(profileCtx *profile.Context) {
	s.update(profileCtx, func(sig *engagement.Signals) {
		sig.CalculatorCompleted = true
	})
}

// RecordPricingView marks that pricing content was viewed.
func (s *EngagementService) RecordPricingView(profileCtx *profile.Context) {
	s.update(profileCtx, func(sig *engagement.Signals) {
		sig.PricingViewed = true
	})
}

// RecordPhoneClick marks a phone number click.
func (s *EngagementService) RecordPhoneClick(profileCtx *profile.Context) {
	s.update(profileCtx, func(sig *engagement.Signals) {
		sig.PhoneClicked = true
	})
}

// AddTimeOnSite accumulates reported on-site seconds.
func (s *EngagementService) AddTimeOnSite(profileCtx *profile.Context, seconds int) {
	if seconds <= 0 {
		return
	}
	s.update(profileCtx, func(sig *engagement.Signals) {
		sig.TimeOnSite += seconds
	})
}

// RecordScrollDepth keeps the high-water scroll percentage.
func (s *EngagementService) RecordScrollDepth(profileCtx *profile.Context, depth int) {
	s.update(profileCtx, func(sig *engagement.Signals) {
		if depth > sig.ScrollDepth {
			sig.ScrollDepth = depth
		}
	})
}

// HandleEvent derives signal updates from dispatched events, subscribed
// on the dispatcher instead of patching the data layer.
func (s *EngagementService) HandleEvent(profileCtx *profile.Context, ev events.Envelope) {
	switch ev.Event {
	case events.EventCalculatorStart:
		s.RecordCalculatorStart(profileCtx)
	case events.EventCalculatorStep:
		if isFinalStep(ev.Params) {
			s.RecordCalculatorComplete(profileCtx)
		}
	case events.EventPageView:
		s.RecordPageView(profileCtx)
	case events.EventQuoteRequest, events.EventCallbackRequest:
		s.RecordPricingView(profileCtx)
	}
}

func isFinalStep(params map[string]any) bool {
	final, ok := params["is_final"].(bool)
	return ok && final
}

// update applies a load-modify-store cycle and re-emits the audience
// signal when the derived segment changed.
func (s *EngagementService) update(profileCtx *profile.Context, mutate func(*engagement.Signals)) {
	signals, _ := kv.GetJSON[engagement.Signals](profileCtx.Store, keyEngagement)
	before := signals.Segment()

	mutate(&signals)
	signals.LastVisit = time.Now().UTC()
	kv.SetJSON(profileCtx.Store, keyEngagement, signals)

	after := signals.Segment()
	if after != before {
		if s.logger != nil {
			s.logger.Analytics().Info("Audience segment changed",
				"profileId", profileCtx.ProfileID,
				"from", string(before),
				"to", string(after),
				"score", signals.Score(),
			)
		}
		if s.notifier != nil {
			s.notifier(profileCtx, after, signals.Score())
		}
	}
}
