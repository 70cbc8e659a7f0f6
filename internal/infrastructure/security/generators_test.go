package security_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/convertrack/convertrack-go/internal/infrastructure/security"
)

func TestHashEmail(t *testing.T) {
	t.Run("normalization makes the same mailbox match", func(t *testing.T) {
		assert.Equal(t,
			security.HashEmail("user@example.com"),
			security.HashEmail("  User@EXAMPLE.com "))
	})

	t.Run("different mailboxes differ", func(t *testing.T) {
		assert.NotEqual(t,
			security.HashEmail("a@example.com"),
			security.HashEmail("b@example.com"))
	})

	t.Run("empty input hashes to nothing", func(t *testing.T) {
		assert.Empty(t, security.HashEmail(""))
		assert.Empty(t, security.HashEmail("   "))
	})
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"formatted US number", "(555) 123-4567", "5551234567"},
		{"e164 keeps leading plus", "+1 555 123 4567", "+15551234567"},
		{"plus only mid-string dropped", "555+123", "555123"},
		{"letters dropped", "CALL-555-NOW", "555"},
		{"empty", "", ""},
		{"bare plus", "+", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, security.NormalizePhone(tt.input))
		})
	}
}

func TestHashPhone(t *testing.T) {
	assert.Equal(t,
		security.HashPhone("+1 (555) 123-4567"),
		security.HashPhone("+15551234567"))
	assert.Empty(t, security.HashPhone("n/a"))
}

func TestIDGenerators(t *testing.T) {
	t.Run("ulids are unique and sortable length", func(t *testing.T) {
		a := security.GenerateULID()
		b := security.GenerateULID()
		assert.Len(t, a, 26)
		assert.NotEqual(t, a, b)
	})

	t.Run("session ids are unique", func(t *testing.T) {
		assert.NotEqual(t, security.GenerateSessionID(), security.GenerateSessionID())
	})

	t.Run("short hash is stable and compact", func(t *testing.T) {
		assert.Equal(t, security.ShortHash("x"), security.ShortHash("x"))
		assert.Len(t, security.ShortHash("x"), 16)
		assert.NotEqual(t, security.ShortHash("x"), security.ShortHash("y"))
	})
}
