// Package identity defines the stitched user identity entity.
package identity

import "time"

// UserIdentity links an identified user to every session observed for
// that browser profile. The Sessions set is a union of all anonymous
// session IDs seen before identification plus the current one.
type UserIdentity struct {
	EmailHash    string    `json:"emailHash"`
	Email        string    `json:"email"`
	PhoneHash    string    `json:"phoneHash,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	FirstName    string    `json:"firstName,omitempty"`
	LastName     string    `json:"lastName,omitempty"`
	UserID       string    `json:"userId,omitempty"`
	IdentifiedAt time.Time `json:"identifiedAt"`
	Sessions     []string  `json:"sessions"`
}

// HasSession reports whether the session ID is already linked.
func (u *UserIdentity) HasSession(sessionID string) bool {
	for _, id := range u.Sessions {
		if id == sessionID {
			return true
		}
	}
	return false
}

// AddSession appends a session ID if not already present, reporting
// whether the set changed.
func (u *UserIdentity) AddSession(sessionID string) bool {
	if sessionID == "" || u.HasSession(sessionID) {
		return false
	}
	u.Sessions = append(u.Sessions, sessionID)
	return true
}
