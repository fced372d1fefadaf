package services

import (
	"fmt"
	"time"

	"github.com/BradenHooton/loginguard/internal/models"
)

// LockoutPolicy decides what a key may do next from its record and the current time.
// It holds no state and performs no I/O.
type LockoutPolicy struct {
	MaxAttemptsBeforeCaptcha int
	MaxAttemptsBeforeLockout int
	LockoutDuration          time.Duration
}

// NewLockoutPolicy validates the thresholds and returns a policy.
// Invalid values are a startup error, never a request-time one.
func NewLockoutPolicy(captchaAfter, lockAfter int, lockoutDuration time.Duration) (LockoutPolicy, error) {
	p := LockoutPolicy{
		MaxAttemptsBeforeCaptcha: captchaAfter,
		MaxAttemptsBeforeLockout: lockAfter,
		LockoutDuration:          lockoutDuration,
	}
	if err := p.Validate(); err != nil {
		return LockoutPolicy{}, err
	}
	return p, nil
}

// Validate reports ErrPolicyMisconfiguration for unusable settings
func (p LockoutPolicy) Validate() error {
	if p.MaxAttemptsBeforeCaptcha < 1 {
		return fmt.Errorf("%w: captcha threshold must be at least 1 (got %d)",
			models.ErrPolicyMisconfiguration, p.MaxAttemptsBeforeCaptcha)
	}
	if p.MaxAttemptsBeforeLockout < p.MaxAttemptsBeforeCaptcha {
		return fmt.Errorf("%w: lockout threshold %d is below captcha threshold %d",
			models.ErrPolicyMisconfiguration, p.MaxAttemptsBeforeLockout, p.MaxAttemptsBeforeCaptcha)
	}
	if p.LockoutDuration <= 0 {
		return fmt.Errorf("%w: lockout duration must be positive (got %s)",
			models.ErrPolicyMisconfiguration, p.LockoutDuration)
	}
	return nil
}

// FailureRule returns the store-side parameters for recording a failure
func (p LockoutPolicy) FailureRule() models.FailureRule {
	return models.FailureRule{
		LockThreshold:   p.MaxAttemptsBeforeLockout,
		LockoutDuration: p.LockoutDuration,
	}
}

// Evaluate maps a record (nil when the key has none) to a verdict at now.
// The attempt that crosses the captcha threshold was judged on the pre-increment
// count, so captcha is demanded starting with the next attempt.
func (p LockoutPolicy) Evaluate(record *models.AttemptRecord, now time.Time) models.Verdict {
	if record == nil {
		return models.Verdict{}
	}

	if record.LockActive(now) {
		return models.Verdict{
			Locked:    true,
			Remaining: record.LockedUntil.Sub(now),
			Attempts:  record.FailureCount,
		}
	}

	// Lapsed lock: a fresh cycle begins, the stored count no longer applies
	if record.LockExpired(now) {
		return models.Verdict{}
	}

	return models.Verdict{
		CaptchaRequired: record.FailureCount >= p.MaxAttemptsBeforeCaptcha,
		Attempts:        record.FailureCount,
	}
}
