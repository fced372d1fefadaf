package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/BradenHooton/loginguard/internal/clock"
	"github.com/BradenHooton/loginguard/internal/models"
	pkglogger "github.com/BradenHooton/loginguard/pkg/logger"
)

// AttemptStore defines the persistence contract for failed-attempt accounting.
// Implementations must apply RecordFailure as one atomic read-modify-write per key.
type AttemptStore interface {
	// Load returns nil, nil for a key without a record
	Load(ctx context.Context, key models.AttemptKey) (*models.AttemptRecord, error)
	RecordFailure(ctx context.Context, key models.AttemptKey, now time.Time, rule models.FailureRule) (*models.AttemptRecord, error)
	Clear(ctx context.Context, key models.AttemptKey) error
	// Prune removes records untouched since before; returns rows removed
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// ErrorReporter receives limiter degradations for out-of-band alerting
type ErrorReporter interface {
	CaptureException(err error)
}

// RateLimitConfig holds configuration for the gate itself
type RateLimitConfig struct {
	StoreTimeout time.Duration // bound on every store call
}

// DegradationStats counts store operations the gate had to absorb
type DegradationStats struct {
	ReadFailures  int64 `json:"read_failures"`
	WriteFailures int64 `json:"write_failures"`
}

// RateLimitService is the single enforcement point for login brute-force protection.
// It pairs an AttemptStore with a LockoutPolicy and never lets a store error escape:
// reads fail open, writes are logged and reported.
type RateLimitService struct {
	store    AttemptStore
	policy   LockoutPolicy
	clock    clock.Clock
	config   RateLimitConfig
	logger   *slog.Logger
	audit    *pkglogger.AuditLogger
	reporter ErrorReporter

	readFailures  atomic.Int64
	writeFailures atomic.Int64
}

// NewRateLimitService creates a new RateLimitService
func NewRateLimitService(
	store AttemptStore,
	policy LockoutPolicy,
	clk clock.Clock,
	config RateLimitConfig,
	logger *slog.Logger,
	audit *pkglogger.AuditLogger,
	reporter ErrorReporter,
) *RateLimitService {
	if clk == nil {
		clk = clock.System{}
	}
	if config.StoreTimeout <= 0 {
		config.StoreTimeout = 2 * time.Second
	}
	return &RateLimitService{
		store:    store,
		policy:   policy,
		clock:    clk,
		config:   config,
		logger:   logger,
		audit:    audit,
		reporter: reporter,
	}
}

// Policy returns the policy the gate enforces
func (s *RateLimitService) Policy() LockoutPolicy {
	return s.policy
}

// CheckBeforeAttempt reports whether key may attempt a login now. It never mutates state.
func (s *RateLimitService) CheckBeforeAttempt(ctx context.Context, key models.AttemptKey) models.Verdict {
	now := s.clock.Now()

	storeCtx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	record, err := s.store.Load(storeCtx, key)
	if err != nil {
		s.readFailures.Add(1)
		s.degraded("load", key, err)
		// Fail open: login availability must not depend on the limiter's storage
		return models.Verdict{Degraded: true}
	}

	return s.policy.Evaluate(record, now)
}

// RecordFailure counts a failed verification for key and returns the resulting
// verdict so the caller can render lockout or captcha state immediately
func (s *RateLimitService) RecordFailure(ctx context.Context, key models.AttemptKey) models.Verdict {
	now := s.clock.Now()

	storeCtx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	record, err := s.store.RecordFailure(storeCtx, key, now, s.policy.FailureRule())
	if err != nil {
		s.writeFailures.Add(1)
		s.degraded("record_failure", key, err)
		return models.Verdict{Degraded: true}
	}

	verdict := s.policy.Evaluate(record, now)
	if verdict.Locked && record.FailureCount == s.policy.MaxAttemptsBeforeLockout {
		s.logger.Warn("attempt key locked out",
			slog.String("attempt_key", string(key)),
			slog.Int("failed_attempts", record.FailureCount),
			slog.Duration("lockout_duration", s.policy.LockoutDuration))
		if s.audit != nil {
			s.audit.LogLockout(string(key), record.FailureCount, *record.LockedUntil)
		}
	}

	return verdict
}

// RecordSuccess clears the key's record. Failure to clear is logged and never
// blocks the successful login.
func (s *RateLimitService) RecordSuccess(ctx context.Context, key models.AttemptKey) {
	storeCtx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	if err := s.store.Clear(storeCtx, key); err != nil {
		s.writeFailures.Add(1)
		s.degraded("clear", key, err)
	}
}

// Status returns the collaborator-facing view used by status endpoints
func (s *RateLimitService) Status(ctx context.Context, key models.AttemptKey) models.RateLimitStatus {
	return s.CheckBeforeAttempt(ctx, key).Status()
}

// Stats returns how many store operations were absorbed since startup
func (s *RateLimitService) Stats() DegradationStats {
	return DegradationStats{
		ReadFailures:  s.readFailures.Load(),
		WriteFailures: s.writeFailures.Load(),
	}
}

func (s *RateLimitService) degraded(operation string, key models.AttemptKey, err error) {
	s.logger.Warn("rate limit store degraded",
		slog.String("operation", operation),
		slog.String("attempt_key", string(key)),
		slog.Any("error", err))

	if s.audit != nil {
		s.audit.LogLimiterDegraded(operation, string(key), err)
	}
	if s.reporter != nil {
		s.reporter.CaptureException(fmt.Errorf("rate limit %s for %s: %w", operation, key, err))
	}
}
