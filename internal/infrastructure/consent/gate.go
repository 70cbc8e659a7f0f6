// Package consent provides the read-only bridge to the host-controlled
// consent authority. The gate never persists consent and never alters it.
package consent

import (
	"context"
	"sync"
	"time"

	"github.com/convertrack/convertrack-go/internal/infrastructure/observability/logging"
)

// Category is one consent category granted or denied by the visitor.
type Category string

const (
	CategoryAnalytics  Category = "analytics"
	CategoryMarketing  Category = "marketing"
	CategoryFunctional Category = "functional"
	CategoryNecessary  Category = "necessary"
)

// State is the current per-category consent of one visitor.
type State struct {
	Analytics  bool `json:"analytics"`
	Marketing  bool `json:"marketing"`
	Functional bool `json:"functional"`
	Necessary  bool `json:"necessary"`
}

// Allows reports whether the state grants a category.
func (s State) Allows(c Category) bool {
	switch c {
	case CategoryAnalytics:
		return s.Analytics
	case CategoryMarketing:
		return s.Marketing
	case CategoryFunctional:
		return s.Functional
	case CategoryNecessary:
		return s.Necessary
	}
	return false
}

// Provider is an injected external consent source. Implementations
// return ok=false when they hold no state for the profile.
type Provider interface {
	Current(profileID string) (State, bool)
}

// ChangeListener receives consent updates as the host reports them.
type ChangeListener func(profileID string, state State)

// Gate reads consent on demand and fans out change notifications.
// Marketing-gated side effects must call Allows at the moment of the
// side effect; consent can change between any two reads.
type Gate struct {
	provider Provider
	devMode  bool
	logger   *logging.ChanneledLogger

	mu        sync.RWMutex
	reported  map[string]State
	listeners map[int]ChangeListener
	nextID    int
}

// NewGate creates a consent gate. A nil provider means consent arrives
// only via NotifyChange from the host page's beacons.
func NewGate(provider Provider, devMode bool, logger *logging.ChanneledLogger) *Gate {
	return &Gate{
		provider:  provider,
		devMode:   devMode,
		logger:    logger,
		reported:  make(map[string]State),
		listeners: make(map[int]ChangeListener),
	}
}

// Current returns the profile's consent state. When no authority has
// reported anything, production defaults to deny-all; dev mode defaults
// to fully granted for testability.
func (g *Gate) Current(profileID string) State {
	if g.provider != nil {
		if state, ok := g.provider.Current(profileID); ok {
			return state
		}
	}

	g.mu.RLock()
	state, ok := g.reported[profileID]
	g.mu.RUnlock()
	if ok {
		return state
	}

	if g.devMode {
		return State{Analytics: true, Marketing: true, Functional: true, Necessary: true}
	}
	return State{Necessary: true}
}

// Allows re-reads the current state and checks one category.
func (g *Gate) Allows(profileID string, category Category) bool {
	return g.Current(profileID).Allows(category)
}

// NotifyChange records a host-reported consent update and fans it out.
func (g *Gate) NotifyChange(profileID string, state State) {
	g.mu.Lock()
	previous, had := g.reported[profileID]
	g.reported[profileID] = state
	listeners := make([]ChangeListener, 0, len(g.listeners))
	for _, fn := range g.listeners {
		listeners = append(listeners, fn)
	}
	g.mu.Unlock()

	if had && previous == state {
		return
	}

	if g.logger != nil {
		g.logger.Consent().Info("Consent state changed",
			"profileId", profileID,
			"analytics", state.Analytics,
			"marketing", state.Marketing,
		)
	}

	for _, fn := range listeners {
		fn(profileID, state)
	}
}

// OnConsentChange subscribes to consent updates. The returned function
// unsubscribes.
func (g *Gate) OnConsentChange(fn ChangeListener) func() {
	g.mu.Lock()
	id := g.nextID
	g.nextID++
	g.listeners[id] = fn
	g.mu.Unlock()

	return func() {
		g.mu.Lock()
		delete(g.listeners, id)
		g.mu.Unlock()
	}
}

// WaitForConsent resolves true immediately if the category is already
// granted, otherwise waits for the next matching change, and resolves
// false on timeout or context cancellation.
func (g *Gate) WaitForConsent(ctx context.Context, profileID string, category Category, timeout time.Duration) bool {
	if g.Allows(profileID, category) {
		return true
	}

	granted := make(chan struct{}, 1)
	unsubscribe := g.OnConsentChange(func(changedProfile string, state State) {
		if changedProfile == profileID && state.Allows(category) {
			select {
			case granted <- struct{}{}:
			default:
			}
		}
	})
	defer unsubscribe()

	// Re-check after subscribing to close the race with a change that
	// landed between the first check and the subscription.
	if g.Allows(profileID, category) {
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-granted:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}
