package services

import (
	"fmt"
	"time"

	"github.com/convertrack/convertrack-go/internal/domain/entities/identity"
	"github.com/convertrack/convertrack-go/internal/infrastructure/observability/logging"
	"github.com/convertrack/convertrack-go/internal/infrastructure/persistence/kv"
	"github.com/convertrack/convertrack-go/internal/infrastructure/profile"
	"github.com/convertrack/convertrack-go/internal/infrastructure/security"
)

const (
	keyIdentity          = "identity"
	keyAnonymousSessions = "identity:anonymous_sessions"
)

// IdentifyParams carries the user-supplied fields for identification.
type IdentifyParams struct {
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	UserID    string `json:"userId,omitempty"`
}

// IdentityService links anonymous sessions to an identified user and
// merges session history. Hashes are for matching, not security.
type IdentityService struct {
	logger *logging.ChanneledLogger
}

// NewIdentityService creates a new identity service.
func NewIdentityService(logger *logging.ChanneledLogger) *IdentityService {
	return &IdentityService{logger: logger}
}

// IdentifyUser creates or refreshes the stored identity, unioning the
// current session with all anonymous sessions seen so far.
func (s *IdentityService) IdentifyUser(profileCtx *profile.Context, sessionID string, params IdentifyParams) (identity.UserIdentity, error) {
	emailHash := security.HashEmail(params.Email)
	if emailHash == "" {
		return identity.UserIdentity{}, fmt.Errorf("email is required to identify a user")
	}

	user := identity.UserIdentity{
		EmailHash:    emailHash,
		Email:        params.Email,
		PhoneHash:    security.HashPhone(params.Phone),
		Phone:        params.Phone,
		FirstName:    params.FirstName,
		LastName:     params.LastName,
		UserID:       params.UserID,
		IdentifiedAt: time.Now().UTC(),
	}

	// Union anonymous session history with the current session.
	anonymous, _ := kv.GetJSON[[]string](profileCtx.Store, keyAnonymousSessions)
	for _, id := range anonymous {
		user.AddSession(id)
	}
	user.AddSession(sessionID)

	// Preserve sessions from an earlier identification of the same user.
	if existing, ok := kv.GetJSON[identity.UserIdentity](profileCtx.Store, keyIdentity); ok && existing.EmailHash == emailHash {
		for _, id := range existing.Sessions {
			user.AddSession(id)
		}
	}

	kv.SetJSON(profileCtx.Store, keyIdentity, user)
	profileCtx.Store.Remove(keyAnonymousSessions)

	if s.logger != nil {
		s.logger.Identity().Info("User identified",
			"profileId", profileCtx.ProfileID,
			"emailHash", emailHash,
			"sessions", len(user.Sessions),
		)
	}
	return user, nil
}

// TrackAnonymousSession accumulates the session for later stitching.
// No-ops once the profile is identified; appending is idempotent.
func (s *IdentityService) TrackAnonymousSession(profileCtx *profile.Context, sessionID string) {
	if sessionID == "" {
		return
	}
	if _, identified := kv.GetJSON[identity.UserIdentity](profileCtx.Store, keyIdentity); identified {
		return
	}

	sessions, _ := kv.GetJSON[[]string](profileCtx.Store, keyAnonymousSessions)
	for _, id := range sessions {
		if id == sessionID {
			return
		}
	}
	sessions = append(sessions, sessionID)
	kv.SetJSON(profileCtx.Store, keyAnonymousSessions, sessions)
}

// MergeIdentity re-hashes the given email and, on a match with the
// stored identity, appends the current session. A mismatch returns no
// identity; the caller must not assume one.
func (s *IdentityService) MergeIdentity(profileCtx *profile.Context, sessionID, email string) (identity.UserIdentity, bool) {
	stored, ok := kv.GetJSON[identity.UserIdentity](profileCtx.Store, keyIdentity)
	if !ok {
		return identity.UserIdentity{}, false
	}

	if security.HashEmail(email) != stored.EmailHash {
		if s.logger != nil {
			s.logger.Identity().Debug("Identity merge rejected, hash mismatch",
				"profileId", profileCtx.ProfileID)
		}
		return identity.UserIdentity{}, false
	}

	if stored.AddSession(sessionID) {
		kv.SetJSON(profileCtx.Store, keyIdentity, stored)
	}
	return stored, true
}

// CurrentIdentity returns the stored identity, if any.
func (s *IdentityService) CurrentIdentity(profileCtx *profile.Context) (identity.UserIdentity, bool) {
	return kv.GetJSON[identity.UserIdentity](profileCtx.Store, keyIdentity)
}

// ClearIdentity erases the identity and the anonymous accumulator
// (logout or erasure request). Returns whether an identity existed.
func (s *IdentityService) ClearIdentity(profileCtx *profile.Context) bool {
	_, existed := kv.GetJSON[identity.UserIdentity](profileCtx.Store, keyIdentity)
	profileCtx.Store.Remove(keyIdentity)
	profileCtx.Store.Remove(keyAnonymousSessions)

	if existed && s.logger != nil {
		s.logger.Identity().Info("Identity cleared", "profileId", profileCtx.ProfileID)
	}
	return existed
}
