package services_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convertrack/convertrack-go/internal/application/services"
	"github.com/convertrack/convertrack-go/internal/domain/entities/session"
	"github.com/convertrack/convertrack-go/internal/domain/events"
	"github.com/convertrack/convertrack-go/internal/infrastructure/persistence/kv"
	"github.com/convertrack/convertrack-go/internal/infrastructure/profile"
)

func newProfileCtx(id string) *profile.Context {
	return &profile.Context{
		ProfileID: id,
		Store:     kv.Namespace(kv.NewMemoryStore(), "profile:"+id),
		Page:      events.PageContext{URL: "https://example.com/"},
	}
}

func TestSessionService_GetOrCreateSession(t *testing.T) {
	svc := services.NewSessionService(30*time.Minute, nil)
	profileCtx := newProfileCtx("p1")

	first := svc.GetOrCreateSession(profileCtx)
	assert.True(t, first.IsNew)
	assert.NotEmpty(t, first.SessionID)

	// Second call within the timeout extends, not replaces.
	second := svc.GetOrCreateSession(profileCtx)
	assert.False(t, second.IsNew)
	assert.Equal(t, first.SessionID, second.SessionID)
}

func TestSessionService_ExpiryBoundary(t *testing.T) {
	svc := services.NewSessionService(30*time.Minute, nil)
	profileCtx := newProfileCtx("p1")

	info := svc.GetOrCreateSession(profileCtx)

	t.Run("just inside window survives", func(t *testing.T) {
		stale := session.Session{
			ID:           info.SessionID,
			CreatedAt:    time.Now().UTC().Add(-time.Hour),
			LastActivity: time.Now().UTC().Add(-30*time.Minute + time.Second),
		}
		require.True(t, kv.SetJSON[session.Session](profileCtx.Store, "session", stale))

		next := svc.GetOrCreateSession(profileCtx)
		assert.False(t, next.IsNew)
		assert.Equal(t, info.SessionID, next.SessionID)
	})

	t.Run("exactly at timeout expires", func(t *testing.T) {
		stale := session.Session{
			ID:           info.SessionID,
			CreatedAt:    time.Now().UTC().Add(-time.Hour),
			LastActivity: time.Now().UTC().Add(-30 * time.Minute),
		}
		require.True(t, kv.SetJSON[session.Session](profileCtx.Store, "session", stale))

		next := svc.GetOrCreateSession(profileCtx)
		assert.True(t, next.IsNew)
		assert.NotEqual(t, info.SessionID, next.SessionID)
	})
}

func TestSessionService_CurrentSessionDoesNotExtend(t *testing.T) {
	svc := services.NewSessionService(30*time.Minute, nil)
	profileCtx := newProfileCtx("p1")

	_, ok := svc.CurrentSession(profileCtx)
	assert.False(t, ok, "no session until one is created")

	info := svc.GetOrCreateSession(profileCtx)
	before, _ := kv.GetJSON[session.Session](profileCtx.Store, "session")

	sess, ok := svc.CurrentSession(profileCtx)
	require.True(t, ok)
	assert.Equal(t, info.SessionID, sess.ID)

	after, _ := kv.GetJSON[session.Session](profileCtx.Store, "session")
	assert.Equal(t, before.LastActivity, after.LastActivity)
}

func TestSessionService_AdoptSession(t *testing.T) {
	svc := services.NewSessionService(30*time.Minute, nil)

	t.Run("adopts into empty profile", func(t *testing.T) {
		profileCtx := newProfileCtx("p1")
		assert.True(t, svc.AdoptSession(profileCtx, "s-external"))

		sess, ok := svc.CurrentSession(profileCtx)
		require.True(t, ok)
		assert.Equal(t, "s-external", sess.ID)
	})

	t.Run("local active session wins", func(t *testing.T) {
		profileCtx := newProfileCtx("p2")
		local := svc.GetOrCreateSession(profileCtx)

		assert.False(t, svc.AdoptSession(profileCtx, "s-external"))
		sess, _ := svc.CurrentSession(profileCtx)
		assert.Equal(t, local.SessionID, sess.ID)
	})

	t.Run("empty id rejected", func(t *testing.T) {
		assert.False(t, svc.AdoptSession(newProfileCtx("p3"), ""))
	})
}
