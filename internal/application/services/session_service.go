// Package services provides application-level orchestration services
package services

import (
	"time"

	"github.com/convertrack/convertrack-go/internal/domain/entities/session"
	"github.com/convertrack/convertrack-go/internal/infrastructure/observability/logging"
	"github.com/convertrack/convertrack-go/internal/infrastructure/persistence/kv"
	"github.com/convertrack/convertrack-go/internal/infrastructure/profile"
	"github.com/convertrack/convertrack-go/internal/infrastructure/security"
)

const keySession = "session"

// SessionService owns the rolling session lifecycle for visitor profiles.
type SessionService struct {
	timeout time.Duration
	logger  *logging.ChanneledLogger
}

// NewSessionService creates a new session service with the configured
// inactivity timeout.
func NewSessionService(timeout time.Duration, logger *logging.ChanneledLogger) *SessionService {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &SessionService{timeout: timeout, logger: logger}
}

// SessionInfo is the result of a session read.
type SessionInfo struct {
	SessionID string `json:"sessionId"`
	IsNew     bool   `json:"isNew"`
}

// HasActiveSession is a non-mutating peek, used to detect a brand-new
// session before the mutating getter runs.
func (s *SessionService) HasActiveSession(profileCtx *profile.Context) bool {
	existing, ok := kv.GetJSON[session.Session](profileCtx.Store, keySession)
	return ok && !existing.IsExpired(time.Now().UTC(), s.timeout)
}

// GetOrCreateSession extends the active session or mints a new one when
// none exists or the previous session expired.
func (s *SessionService) GetOrCreateSession(profileCtx *profile.Context) SessionInfo {
	now := time.Now().UTC()

	existing, ok := kv.GetJSON[session.Session](profileCtx.Store, keySession)
	if ok && !existing.IsExpired(now, s.timeout) {
		existing.LastActivity = now
		kv.SetJSON(profileCtx.Store, keySession, existing)
		return SessionInfo{SessionID: existing.ID, IsNew: false}
	}

	fresh := session.Session{
		ID:           security.GenerateSessionID(),
		CreatedAt:    now,
		LastActivity: now,
	}
	kv.SetJSON(profileCtx.Store, keySession, fresh)

	if s.logger != nil {
		s.logger.Session().Info("New session started",
			"profileId", profileCtx.ProfileID,
			"sessionId", fresh.ID,
			"expiredPrevious", ok,
		)
	}
	return SessionInfo{SessionID: fresh.ID, IsNew: true}
}

// AdoptSession installs an externally propagated session ID, but only
// when no unexpired local session would conflict.
func (s *SessionService) AdoptSession(profileCtx *profile.Context, sessionID string) bool {
	if sessionID == "" || s.HasActiveSession(profileCtx) {
		return false
	}

	now := time.Now().UTC()
	adopted := session.Session{ID: sessionID, CreatedAt: now, LastActivity: now}
	if !kv.SetJSON(profileCtx.Store, keySession, adopted) {
		return false
	}

	if s.logger != nil {
		s.logger.Session().Info("Adopted cross-domain session",
			"profileId", profileCtx.ProfileID,
			"sessionId", sessionID,
		)
	}
	return true
}

// CurrentSession returns the unexpired session without extending it.
func (s *SessionService) CurrentSession(profileCtx *profile.Context) (session.Session, bool) {
	existing, ok := kv.GetJSON[session.Session](profileCtx.Store, keySession)
	if !ok || existing.IsExpired(time.Now().UTC(), s.timeout) {
		return session.Session{}, false
	}
	return existing, true
}

// Timeout returns the configured inactivity timeout.
func (s *SessionService) Timeout() time.Duration {
	return s.timeout
}
