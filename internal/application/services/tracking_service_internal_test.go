package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTrackingService_PhoneDedupePruning(t *testing.T) {
	sessions := NewSessionService(30*time.Minute, nil)
	svc := NewTrackingService(sessions, nil, nil, nil, nil, nil, nil, nil)

	now := time.Now()
	svc.firedPhones["expired"] = phoneFire{eventID: "ev-old", firedAt: now.Add(-2 * time.Hour)}
	svc.firedPhones["boundary"] = phoneFire{eventID: "ev-edge", firedAt: now.Add(-2*30*time.Minute + time.Second)}
	svc.firedPhones["live"] = phoneFire{eventID: "ev-new", firedAt: now}

	svc.mu.Lock()
	svc.pruneFiredPhonesLocked(now)
	svc.mu.Unlock()

	// Entries past twice the inactivity window can never collide with a
	// live session and are dropped; everything newer stays.
	assert.NotContains(t, svc.firedPhones, "expired")
	assert.Contains(t, svc.firedPhones, "boundary")
	assert.Contains(t, svc.firedPhones, "live")
}
