package services_test

import (
	"testing"
	"time"

	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/BradenHooton/loginguard/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLockoutPolicy_Validation(t *testing.T) {
	tests := []struct {
		name         string
		captchaAfter int
		lockAfter    int
		duration     time.Duration
		wantErr      bool
	}{
		{"defaults", 3, 4, 30 * time.Minute, false},
		{"equal thresholds", 3, 3, time.Minute, false},
		{"zero captcha threshold", 0, 4, time.Minute, true},
		{"lockout below captcha", 4, 3, time.Minute, true},
		{"zero duration", 3, 4, 0, true},
		{"negative duration", 3, 4, -time.Second, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := services.NewLockoutPolicy(tt.captchaAfter, tt.lockAfter, tt.duration)
			if tt.wantErr {
				assert.ErrorIs(t, err, models.ErrPolicyMisconfiguration)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLockoutPolicy_Evaluate(t *testing.T) {
	policy, err := services.NewLockoutPolicy(3, 4, 30*time.Minute)
	require.NoError(t, err)

	now := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	future := now.Add(10 * time.Minute)
	past := now.Add(-time.Second)

	tests := []struct {
		name   string
		record *models.AttemptRecord
		want   models.Verdict
	}{
		{
			name:   "no record",
			record: nil,
			want:   models.Verdict{},
		},
		{
			name:   "below captcha threshold",
			record: &models.AttemptRecord{FailureCount: 2},
			want:   models.Verdict{Attempts: 2},
		},
		{
			name:   "at captcha threshold",
			record: &models.AttemptRecord{FailureCount: 3},
			want:   models.Verdict{Attempts: 3, CaptchaRequired: true},
		},
		{
			name:   "active lock",
			record: &models.AttemptRecord{FailureCount: 4, LockedUntil: &future},
			want:   models.Verdict{Locked: true, Remaining: 10 * time.Minute, Attempts: 4},
		},
		{
			name:   "lock ending exactly now has lapsed",
			record: &models.AttemptRecord{FailureCount: 4, LockedUntil: &now},
			want:   models.Verdict{},
		},
		{
			name:   "expired lock starts a fresh cycle",
			record: &models.AttemptRecord{FailureCount: 7, LockedUntil: &past},
			want:   models.Verdict{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.Evaluate(tt.record, now))
		})
	}
}

func TestLockoutPolicy_FailureRule(t *testing.T) {
	policy, err := services.NewLockoutPolicy(2, 5, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, models.FailureRule{LockThreshold: 5, LockoutDuration: time.Hour}, policy.FailureRule())
}
