package services

import (
	"time"

	"github.com/convertrack/convertrack-go/internal/infrastructure/crossdomain"
	"github.com/convertrack/convertrack-go/internal/infrastructure/observability/logging"
	"github.com/convertrack/convertrack-go/internal/infrastructure/profile"
)

// CrossDomainService carries session and attribution state across
// linked domains via signed URL payloads.
type CrossDomainService struct {
	codec       *crossdomain.Codec
	sessions    *SessionService
	attribution *AttributionService
	logger      *logging.ChanneledLogger
}

// ApplyResult describes the outcome of ingesting an inbound payload.
type ApplyResult struct {
	Applied        bool   `json:"applied"`
	SessionAdopted bool   `json:"sessionAdopted"`
	CleanURL       string `json:"cleanUrl,omitempty"`
}

// NewCrossDomainService creates the cross-domain propagation service.
func NewCrossDomainService(codec *crossdomain.Codec, sessions *SessionService, attribution *AttributionService, logger *logging.ChanneledLogger) *CrossDomainService {
	return &CrossDomainService{
		codec:       codec,
		sessions:    sessions,
		attribution: attribution,
		logger:      logger,
	}
}

// EncodeState packs the current session and attribution snapshots into
// a signed token for outbound links.
func (s *CrossDomainService) EncodeState(profileCtx *profile.Context) (string, error) {
	payload := crossdomain.Payload{Timestamp: time.Now().UTC()}
	if sess, ok := s.sessions.CurrentSession(profileCtx); ok {
		payload.SessionID = sess.ID
	}
	if first, ok := s.attribution.GetFirstTouch(profileCtx); ok {
		payload.FirstTouch = &first
	}
	if last, ok := s.attribution.GetLastTouch(profileCtx); ok {
		payload.LastTouch = &last
	}
	return s.codec.Encode(payload)
}

// DecorateURL appends the signed state to an outbound URL when its host
// is on the linked-domain allow-list. Unlisted hosts pass through
// untouched.
func (s *CrossDomainService) DecorateURL(profileCtx *profile.Context, rawURL string) string {
	payload := crossdomain.Payload{Timestamp: time.Now().UTC()}
	if sess, ok := s.sessions.CurrentSession(profileCtx); ok {
		payload.SessionID = sess.ID
	}
	if first, ok := s.attribution.GetFirstTouch(profileCtx); ok {
		payload.FirstTouch = &first
	}
	if last, ok := s.attribution.GetLastTouch(profileCtx); ok {
		payload.LastTouch = &last
	}
	return s.codec.DecorateURL(rawURL, payload)
}

// ApplyInbound detects, verifies, and applies a cross-domain token on
// the landing URL. Invalid or expired tokens are discarded; the clean
// URL is still returned so the parameter never lingers.
func (s *CrossDomainService) ApplyInbound(profileCtx *profile.Context) ApplyResult {
	token, cleanURL := s.codec.ExtractToken(profileCtx.Page.URL)
	if token == "" {
		return ApplyResult{}
	}

	result := ApplyResult{CleanURL: cleanURL}

	payload, ok := s.codec.Decode(token)
	if !ok {
		if s.logger != nil {
			s.logger.Attribution().Warn("Rejected cross-domain payload", "profileId", profileCtx.ProfileID)
		}
		return result
	}

	if payload.SessionID != "" {
		result.SessionAdopted = s.sessions.AdoptSession(profileCtx, payload.SessionID)
	}
	if payload.FirstTouch != nil {
		s.attribution.SeedFirstTouch(profileCtx, *payload.FirstTouch)
	}
	if payload.LastTouch != nil {
		s.attribution.OverwriteLastTouch(profileCtx, *payload.LastTouch)
	}

	// Landing-page params on the current URL still take precedence
	// over the carried snapshot.
	profileCtx.Page.URL = cleanURL
	s.attribution.CaptureAttributionParams(profileCtx)

	result.Applied = true
	if s.logger != nil {
		s.logger.Attribution().Info("Applied cross-domain payload",
			"profileId", profileCtx.ProfileID,
			"sessionAdopted", result.SessionAdopted)
	}
	return result
}

// IsLinkedDomain reports whether a host is on the allow-list.
func (s *CrossDomainService) IsLinkedDomain(host string) bool {
	return s.codec.IsLinkedDomain(host)
}
