// Package session defines the rolling visitor session entity.
package session

import "time"

// Session is the rolling session record for one visitor profile.
// At most one active session exists per profile at a time.
type Session struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
}

// IsExpired reports whether the session has exceeded the inactivity timeout.
func (s *Session) IsExpired(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.LastActivity) >= timeout
}
