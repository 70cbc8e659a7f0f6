// Package security provides ID generation and identity hashing utilities
package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/blake2b"
)

// GenerateULID generates a new ULID string.
func GenerateULID() string {
	return ulid.Make().String()
}

// GenerateSessionID returns a cryptographically random session identifier,
// falling back to a timestamp+random string if the entropy source fails.
func GenerateSessionID() string {
	id, err := uuid.NewRandom()
	if err == nil {
		return id.String()
	}
	return fallbackID()
}

// fallbackID builds a timestamp+random identifier without crypto/rand.
func fallbackID() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1<<31))
	var suffix int64
	if err != nil {
		suffix = time.Now().UnixNano() % (1 << 31)
	} else {
		suffix = n.Int64()
	}
	return fmt.Sprintf("s_%d_%d", time.Now().UnixMilli(), suffix)
}

// GenerateSecureToken generates a cryptographically secure random token suitable for URLs.
func GenerateSecureToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate secure token: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// HashEmail returns the SHA-256 hex digest of a normalized email address.
// Normalization lower-cases and trims so the same mailbox always matches.
func HashEmail(email string) string {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// HashPhone returns the SHA-256 hex digest of an E.164-normalized phone number.
func HashPhone(phone string) string {
	normalized := NormalizePhone(phone)
	if normalized == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// NormalizePhone strips formatting characters and keeps a leading plus,
// approximating E.164 form for matching purposes.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(phone) {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		} else if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" || digits == "+" {
		return ""
	}
	return digits
}

// ShortHash returns a compact BLAKE2b digest of the input, used for
// event idempotency keys and dedupe identifiers, not for security.
func ShortHash(input string) string {
	sum := blake2b.Sum256([]byte(input))
	return hex.EncodeToString(sum[:8])
}
