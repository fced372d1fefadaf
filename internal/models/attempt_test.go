package models_test

import (
	"testing"
	"time"

	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rule = models.FailureRule{LockThreshold: 4, LockoutDuration: 30 * time.Minute}

func TestRegisterFailure_LocksAtThreshold(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rec := &models.AttemptRecord{Key: "203.0.113.10"}

	for i := 1; i < rule.LockThreshold; i++ {
		rec.RegisterFailure(now, rule)
		assert.Equal(t, i, rec.FailureCount)
		assert.Nil(t, rec.LockedUntil)
	}

	rec.RegisterFailure(now, rule)
	require.NotNil(t, rec.LockedUntil)
	assert.Equal(t, now.Add(30*time.Minute), *rec.LockedUntil)
	assert.Equal(t, now, rec.UpdatedAt)
}

func TestRegisterFailure_ActiveLockKeepsDeadline(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	lockedUntil := now.Add(10 * time.Minute)
	rec := &models.AttemptRecord{FailureCount: 4, LockedUntil: &lockedUntil}

	rec.RegisterFailure(now.Add(time.Minute), rule)

	assert.Equal(t, 5, rec.FailureCount)
	assert.Equal(t, lockedUntil, *rec.LockedUntil)
}

func TestRegisterFailure_ExpiredLockStartsNewCycle(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	lockedUntil := now.Add(-time.Second)
	rec := &models.AttemptRecord{FailureCount: 4, LockedUntil: &lockedUntil}

	rec.RegisterFailure(now, rule)

	assert.Equal(t, 1, rec.FailureCount)
	assert.Nil(t, rec.LockedUntil)
}

func TestLockActive_BoundaryIsUnlocked(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rec := &models.AttemptRecord{FailureCount: 4, LockedUntil: &now}

	assert.False(t, rec.LockActive(now))
	assert.True(t, rec.LockExpired(now))
	assert.True(t, rec.LockActive(now.Add(-time.Nanosecond)))

	var missing *models.AttemptRecord
	assert.False(t, missing.LockActive(now))
}

func TestClone_DoesNotShareLockPointer(t *testing.T) {
	lockedUntil := time.Now()
	rec := &models.AttemptRecord{FailureCount: 2, LockedUntil: &lockedUntil}

	clone := rec.Clone()
	*clone.LockedUntil = clone.LockedUntil.Add(time.Hour)

	assert.Equal(t, lockedUntil, *rec.LockedUntil)
}

func TestVerdict_RemainingSecondsRoundsUpAndClamps(t *testing.T) {
	tests := []struct {
		name      string
		remaining time.Duration
		seconds   int
		minutes   int
	}{
		{"negative clamps to zero", -5 * time.Second, 0, 0},
		{"zero", 0, 0, 0},
		{"sub-second rounds up", 200 * time.Millisecond, 1, 1},
		{"exact seconds", 90 * time.Second, 90, 2},
		{"full lockout", 30 * time.Minute, 1800, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := models.Verdict{Locked: true, Remaining: tt.remaining}
			assert.Equal(t, tt.seconds, v.RemainingSeconds())
			assert.Equal(t, tt.minutes, v.RemainingMinutes())
		})
	}
}

func TestVerdict_Status(t *testing.T) {
	v := models.Verdict{Locked: true, Remaining: 61 * time.Second, Attempts: 4}
	assert.Equal(t, models.RateLimitStatus{Locked: true, RemainingSeconds: 61, Attempts: 4}, v.Status())
	assert.False(t, v.Allowed())
}
