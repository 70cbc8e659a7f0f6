package kv_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convertrack/convertrack-go/internal/infrastructure/persistence/kv"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestMemoryStore(t *testing.T) {
	store := kv.NewMemoryStore()

	_, ok := store.Get("missing")
	assert.False(t, ok)

	assert.True(t, store.Set("a", "1"))
	val, ok := store.Get("a")
	require.True(t, ok)
	assert.Equal(t, "1", val)

	assert.True(t, store.Remove("a"))
	_, ok = store.Get("a")
	assert.False(t, ok)
}

func TestMemoryStore_Keys(t *testing.T) {
	store := kv.NewMemoryStore()
	store.Set("queue:1", "a")
	store.Set("queue:2", "b")
	store.Set("other", "c")

	assert.ElementsMatch(t, []string{"queue:1", "queue:2"}, store.Keys("queue:"))
	assert.Empty(t, store.Keys("nope"))
}

func TestGetJSON(t *testing.T) {
	store := kv.NewMemoryStore()

	t.Run("round trip", func(t *testing.T) {
		require.True(t, kv.SetJSON(store, "p", payload{Name: "x", Count: 3}))
		got, ok := kv.GetJSON[payload](store, "p")
		require.True(t, ok)
		assert.Equal(t, payload{Name: "x", Count: 3}, got)
	})

	t.Run("absent key", func(t *testing.T) {
		_, ok := kv.GetJSON[payload](store, "missing")
		assert.False(t, ok)
	})

	t.Run("corrupt payload self-heals", func(t *testing.T) {
		store.Set("bad", "{not json")
		_, ok := kv.GetJSON[payload](store, "bad")
		assert.False(t, ok)

		// The poisoned key is gone, not left to fail forever.
		_, present := store.Get("bad")
		assert.False(t, present)
	})
}

func TestNamespaced(t *testing.T) {
	base := kv.NewMemoryStore()
	a := kv.Namespace(base, "profile:a")
	b := kv.Namespace(base, "profile:b")

	a.Set("session", "s-a")
	b.Set("session", "s-b")

	valA, _ := a.Get("session")
	valB, _ := b.Get("session")
	assert.Equal(t, "s-a", valA)
	assert.Equal(t, "s-b", valB)

	// Namespaces do not leak into each other.
	a.Remove("session")
	_, ok := a.Get("session")
	assert.False(t, ok)
	_, ok = b.Get("session")
	assert.True(t, ok)
}

func TestNamespaced_Keys(t *testing.T) {
	base := kv.NewMemoryStore()
	ns := kv.Namespace(base, "profile:a")
	ns.Set("funnel:x", "1")
	ns.Set("funnel:y", "2")
	ns.Set("session", "3")

	assert.ElementsMatch(t, []string{"funnel:x", "funnel:y"}, ns.Keys("funnel:"))
}
