package models

import "time"

// AttemptKey identifies the coarse origin (normalized client address) that
// failed-login accounting is scoped to. Several users behind one address share a key.
type AttemptKey string

// UnknownAttemptKey is used when no usable client address can be derived
const UnknownAttemptKey AttemptKey = "unknown"

// AttemptRecord is the persisted failure state for one key
type AttemptRecord struct {
	Key          AttemptKey `db:"attempt_key"`
	FailureCount int        `db:"failure_count"`
	LockedUntil  *time.Time `db:"locked_until"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

// FailureRule carries the parameters a store needs to apply one failed attempt
type FailureRule struct {
	LockThreshold   int
	LockoutDuration time.Duration
}

// LockActive reports whether the record denies attempts at now.
// A lock whose deadline has passed is logically gone even if still stored.
func (r *AttemptRecord) LockActive(now time.Time) bool {
	return r != nil && r.LockedUntil != nil && now.Before(*r.LockedUntil)
}

// LockExpired reports whether the record carries a lock that lapsed at or before now
func (r *AttemptRecord) LockExpired(now time.Time) bool {
	return r != nil && r.LockedUntil != nil && !now.Before(*r.LockedUntil)
}

// RegisterFailure applies one failed attempt in place.
//
// An expired lock starts a fresh cycle at one failure. An active lock only
// increments the counter and keeps its deadline. Otherwise the counter is
// incremented and the lock is set once it reaches rule.LockThreshold.
func (r *AttemptRecord) RegisterFailure(now time.Time, rule FailureRule) {
	switch {
	case r.LockExpired(now):
		r.FailureCount = 1
		r.LockedUntil = nil
	default:
		r.FailureCount++
	}

	if r.LockedUntil == nil && r.FailureCount >= rule.LockThreshold {
		lockedUntil := now.Add(rule.LockoutDuration)
		r.LockedUntil = &lockedUntil
	}

	r.UpdatedAt = now
}

// Clone returns a deep copy so callers never share the LockedUntil pointer
func (r *AttemptRecord) Clone() *AttemptRecord {
	if r == nil {
		return nil
	}
	out := *r
	if r.LockedUntil != nil {
		lockedUntil := *r.LockedUntil
		out.LockedUntil = &lockedUntil
	}
	return &out
}

// Verdict is the outcome of evaluating a key's record at a point in time
type Verdict struct {
	Locked          bool
	CaptchaRequired bool
	Remaining       time.Duration // lockout time left, zero unless Locked
	Attempts        int           // failures counted in the current cycle
	Degraded        bool          // store could not be consulted or updated
}

// Allowed reports whether an attempt may proceed to credential verification
func (v Verdict) Allowed() bool {
	return !v.Locked
}

// RemainingSeconds rounds the remaining lockout up to whole seconds, never negative
func (v Verdict) RemainingSeconds() int {
	if v.Remaining <= 0 {
		return 0
	}
	return int((v.Remaining + time.Second - 1) / time.Second)
}

// RemainingMinutes rounds the remaining lockout up to whole minutes for user-facing messages
func (v Verdict) RemainingMinutes() int {
	seconds := v.RemainingSeconds()
	return (seconds + 59) / 60
}

// RateLimitStatus is the collaborator-facing view of a key's state
type RateLimitStatus struct {
	Locked           bool `json:"locked"`
	RemainingSeconds int  `json:"remaining_seconds"`
	Attempts         int  `json:"attempts"`
	CaptchaRequired  bool `json:"captcha_required"`
}

// Status converts a verdict to its collaborator-facing shape
func (v Verdict) Status() RateLimitStatus {
	return RateLimitStatus{
		Locked:           v.Locked,
		RemainingSeconds: v.RemainingSeconds(),
		Attempts:         v.Attempts,
		CaptchaRequired:  v.CaptchaRequired,
	}
}
