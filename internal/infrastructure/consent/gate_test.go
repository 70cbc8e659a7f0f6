package consent_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convertrack/convertrack-go/internal/infrastructure/consent"
)

type staticProvider struct {
	states map[string]consent.State
}

func (p *staticProvider) Current(profileID string) (consent.State, bool) {
	state, ok := p.states[profileID]
	return state, ok
}

func TestGate_Current_Defaults(t *testing.T) {
	t.Run("production denies all but necessary", func(t *testing.T) {
		gate := consent.NewGate(nil, false, nil)
		state := gate.Current("p1")
		assert.False(t, state.Analytics)
		assert.False(t, state.Marketing)
		assert.True(t, state.Necessary)
	})

	t.Run("dev mode grants all", func(t *testing.T) {
		gate := consent.NewGate(nil, true, nil)
		state := gate.Current("p1")
		assert.True(t, state.Analytics)
		assert.True(t, state.Marketing)
	})
}

func TestGate_ProviderWins(t *testing.T) {
	provider := &staticProvider{states: map[string]consent.State{
		"p1": {Analytics: true, Necessary: true},
	}}
	gate := consent.NewGate(provider, true, nil)

	// Provider state beats the dev-mode grant-all default.
	state := gate.Current("p1")
	assert.True(t, state.Analytics)
	assert.False(t, state.Marketing)

	// Profiles the provider doesn't know fall through to defaults.
	assert.True(t, gate.Current("unknown").Marketing)
}

func TestGate_NotifyChange(t *testing.T) {
	gate := consent.NewGate(nil, false, nil)

	var gotProfile string
	var gotState consent.State
	calls := 0
	unsubscribe := gate.OnConsentChange(func(profileID string, state consent.State) {
		gotProfile = profileID
		gotState = state
		calls++
	})

	gate.NotifyChange("p1", consent.State{Marketing: true, Necessary: true})
	require.Equal(t, 1, calls)
	assert.Equal(t, "p1", gotProfile)
	assert.True(t, gotState.Marketing)

	// Reported state now drives Allows.
	assert.True(t, gate.Allows("p1", consent.CategoryMarketing))
	assert.False(t, gate.Allows("p1", consent.CategoryAnalytics))

	// Identical re-report does not fan out.
	gate.NotifyChange("p1", consent.State{Marketing: true, Necessary: true})
	assert.Equal(t, 1, calls)

	unsubscribe()
	gate.NotifyChange("p1", consent.State{Necessary: true})
	assert.Equal(t, 1, calls)
}

func TestGate_WaitForConsent(t *testing.T) {
	t.Run("already granted", func(t *testing.T) {
		gate := consent.NewGate(nil, false, nil)
		gate.NotifyChange("p1", consent.State{Analytics: true})
		assert.True(t, gate.WaitForConsent(context.Background(), "p1", consent.CategoryAnalytics, time.Second))
	})

	t.Run("granted while waiting", func(t *testing.T) {
		gate := consent.NewGate(nil, false, nil)

		go func() {
			time.Sleep(20 * time.Millisecond)
			gate.NotifyChange("p1", consent.State{Marketing: true})
		}()

		assert.True(t, gate.WaitForConsent(context.Background(), "p1", consent.CategoryMarketing, time.Second))
	})

	t.Run("timeout", func(t *testing.T) {
		gate := consent.NewGate(nil, false, nil)
		assert.False(t, gate.WaitForConsent(context.Background(), "p1", consent.CategoryMarketing, 30*time.Millisecond))
	})

	t.Run("other profile does not satisfy wait", func(t *testing.T) {
		gate := consent.NewGate(nil, false, nil)

		go func() {
			time.Sleep(10 * time.Millisecond)
			gate.NotifyChange("someone-else", consent.State{Marketing: true})
		}()

		assert.False(t, gate.WaitForConsent(context.Background(), "p1", consent.CategoryMarketing, 60*time.Millisecond))
	})
}
