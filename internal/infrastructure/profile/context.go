// Package profile scopes tracking state to one visitor profile.
package profile

import (
	"github.com/convertrack/convertrack-go/internal/domain/events"
	"github.com/convertrack/convertrack-go/internal/infrastructure/observability/logging"
	"github.com/convertrack/convertrack-go/internal/infrastructure/persistence/kv"
	"github.com/convertrack/convertrack-go/internal/infrastructure/security"
)

// Context carries one visitor profile through a single tracking request.
// Services are stateless singletons; everything per-visitor hangs off
// this context, including the profile's namespaced slice of the store.
type Context struct {
	ProfileID string
	Store     *kv.Namespaced
	Page      events.PageContext
}

// Manager mints profile contexts over the shared store.
type Manager struct {
	store  kv.Store
	logger *logging.ChanneledLogger
}

// NewManager creates a profile context manager.
func NewManager(store kv.Store, logger *logging.ChanneledLogger) *Manager {
	return &Manager{store: store, logger: logger}
}

// Context returns a per-request context for the given profile ID,
// minting a new profile when the caller has none yet.
func (m *Manager) Context(profileID string, page events.PageContext) *Context {
	if profileID == "" {
		profileID = security.GenerateULID()
		if m.logger != nil {
			m.logger.Session().Debug("Minted new visitor profile", "profileId", profileID)
		}
	}
	return &Context{
		ProfileID: profileID,
		Store:     kv.Namespace(m.store, "profile:"+profileID),
		Page:      page,
	}
}

// RootStore exposes the shared store for engine-global state
// (delivery queue, aggregate funnel stats).
func (m *Manager) RootStore() kv.Store {
	return m.store
}
