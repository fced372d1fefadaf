package services_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BradenHooton/loginguard/internal/clock"
	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/BradenHooton/loginguard/internal/services"
	pkglogger "github.com/BradenHooton/loginguard/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = models.AttemptKey("203.0.113.7")

var testStart = time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestService(t *testing.T, store services.AttemptStore) (*services.RateLimitService, *clock.Fake) {
	t.Helper()
	policy, err := services.NewLockoutPolicy(3, 4, 30*time.Minute)
	require.NoError(t, err)

	clk := clock.NewFake(testStart)
	svc := services.NewRateLimitService(store, policy, clk, services.RateLimitConfig{}, testLogger(), nil, nil)
	return svc, clk
}

func TestRateLimitService_CaptchaThenLockout(t *testing.T) {
	svc, _ := newTestService(t, &services.MockAttemptStore{})
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		v := svc.CheckBeforeAttempt(ctx, testKey)
		require.True(t, v.Allowed(), "attempt %d should be allowed", i)
		v = svc.RecordFailure(ctx, testKey)
		assert.Equal(t, i, v.Attempts)
		assert.False(t, v.Locked)
	}

	// third failure crossed the captcha threshold
	v := svc.CheckBeforeAttempt(ctx, testKey)
	assert.True(t, v.Allowed())
	assert.True(t, v.CaptchaRequired)
	assert.Equal(t, 3, v.Attempts)

	v = svc.RecordFailure(ctx, testKey)
	assert.True(t, v.Locked)
	assert.Equal(t, 4, v.Attempts)
	assert.Equal(t, 1800, v.RemainingSeconds())
	assert.Equal(t, 30, v.RemainingMinutes())

	v = svc.CheckBeforeAttempt(ctx, testKey)
	assert.False(t, v.Allowed())
}

func TestRateLimitService_LockoutExpiry(t *testing.T) {
	svc, clk := newTestService(t, &services.MockAttemptStore{})
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		svc.RecordFailure(ctx, testKey)
	}

	clk.Advance(29*time.Minute + 30*time.Second)
	v := svc.CheckBeforeAttempt(ctx, testKey)
	assert.True(t, v.Locked)
	assert.Equal(t, 30, v.RemainingSeconds())
	assert.Equal(t, 1, v.RemainingMinutes())

	clk.Advance(30 * time.Second)
	v = svc.CheckBeforeAttempt(ctx, testKey)
	assert.True(t, v.Allowed())
	assert.False(t, v.CaptchaRequired)
	assert.Equal(t, 0, v.Attempts)

	// the next failure starts a fresh cycle
	v = svc.RecordFailure(ctx, testKey)
	assert.Equal(t, 1, v.Attempts)
	assert.False(t, v.Locked)
}

func TestRateLimitService_FailureDuringLockKeepsDeadline(t *testing.T) {
	svc, clk := newTestService(t, &services.MockAttemptStore{})
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		svc.RecordFailure(ctx, testKey)
	}

	clk.Advance(10 * time.Minute)
	v := svc.RecordFailure(ctx, testKey)
	assert.True(t, v.Locked)
	assert.Equal(t, 5, v.Attempts)
	assert.Equal(t, 20*time.Minute, v.Remaining)
}

func TestRateLimitService_SuccessResets(t *testing.T) {
	svc, _ := newTestService(t, &services.MockAttemptStore{})
	ctx := context.Background()

	svc.RecordFailure(ctx, testKey)
	svc.RecordFailure(ctx, testKey)

	svc.RecordSuccess(ctx, testKey)
	assert.Equal(t, models.RateLimitStatus{}, svc.Status(ctx, testKey))

	// idempotent
	svc.RecordSuccess(ctx, testKey)
	assert.Equal(t, models.RateLimitStatus{}, svc.Status(ctx, testKey))
	assert.Equal(t, services.DegradationStats{}, svc.Stats())
}

func TestRateLimitService_KeysAreIsolated(t *testing.T) {
	svc, _ := newTestService(t, &services.MockAttemptStore{})
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		svc.RecordFailure(ctx, testKey)
	}

	v := svc.CheckBeforeAttempt(ctx, "198.51.100.9")
	assert.True(t, v.Allowed())
	assert.Equal(t, 0, v.Attempts)
}

func TestRateLimitService_RemainingNeverIncreases(t *testing.T) {
	svc, clk := newTestService(t, &services.MockAttemptStore{})
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		svc.RecordFailure(ctx, testKey)
	}

	last := svc.Status(ctx, testKey).RemainingSeconds
	for i := 0; i < 40; i++ {
		clk.Advance(47 * time.Second)
		current := svc.Status(ctx, testKey).RemainingSeconds
		assert.LessOrEqual(t, current, last)
		assert.GreaterOrEqual(t, current, 0)
		last = current
	}
	assert.Equal(t, 0, last)
}

func TestRateLimitService_StatusShape(t *testing.T) {
	svc, _ := newTestService(t, &services.MockAttemptStore{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		svc.RecordFailure(ctx, testKey)
	}

	assert.Equal(t, models.RateLimitStatus{Attempts: 3, CaptchaRequired: true}, svc.Status(ctx, testKey))
}

func TestRateLimitService_ReadFailureFailsOpen(t *testing.T) {
	reporter := &services.MockErrorReporter{}
	store := &services.MockAttemptStore{
		LoadFunc: func(ctx context.Context, key models.AttemptKey) (*models.AttemptRecord, error) {
			return nil, models.ErrStoreUnavailable
		},
	}

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	policy, err := services.NewLockoutPolicy(3, 4, 30*time.Minute)
	require.NoError(t, err)
	svc := services.NewRateLimitService(store, policy, clock.NewFake(testStart), services.RateLimitConfig{},
		logger, pkglogger.NewAuditLogger(logger), reporter)

	v := svc.CheckBeforeAttempt(context.Background(), testKey)
	assert.True(t, v.Allowed())
	assert.True(t, v.Degraded)
	assert.Equal(t, int64(1), svc.Stats().ReadFailures)
	assert.Equal(t, 1, reporter.Count())
	assert.ErrorIs(t, reporter.Captured[0], models.ErrStoreUnavailable)
	assert.True(t, strings.Contains(buf.String(), "limiter_degraded"))
}

func TestRateLimitService_WriteFailuresAreAbsorbed(t *testing.T) {
	reporter := &services.MockErrorReporter{}
	storeErr := errors.New("connection refused")
	store := &services.MockAttemptStore{
		RecordFailureFunc: func(ctx context.Context, key models.AttemptKey, now time.Time, rule models.FailureRule) (*models.AttemptRecord, error) {
			return nil, storeErr
		},
		ClearFunc: func(ctx context.Context, key models.AttemptKey) error {
			return storeErr
		},
	}

	policy, err := services.NewLockoutPolicy(3, 4, 30*time.Minute)
	require.NoError(t, err)
	svc := services.NewRateLimitService(store, policy, nil, services.RateLimitConfig{}, testLogger(), nil, reporter)

	v := svc.RecordFailure(context.Background(), testKey)
	assert.True(t, v.Degraded)
	assert.False(t, v.Locked)

	svc.RecordSuccess(context.Background(), testKey)

	assert.Equal(t, services.DegradationStats{WriteFailures: 2}, svc.Stats())
	assert.Equal(t, 2, reporter.Count())
}

func TestRateLimitService_StoreCallsAreBounded(t *testing.T) {
	store := &services.MockAttemptStore{
		LoadFunc: func(ctx context.Context, key models.AttemptKey) (*models.AttemptRecord, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}

	policy, err := services.NewLockoutPolicy(3, 4, 30*time.Minute)
	require.NoError(t, err)
	svc := services.NewRateLimitService(store, policy, nil,
		services.RateLimitConfig{StoreTimeout: 20 * time.Millisecond}, testLogger(), nil, nil)

	start := time.Now()
	v := svc.CheckBeforeAttempt(context.Background(), testKey)
	assert.True(t, v.Degraded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRateLimitService_ConcurrentFailuresAllCounted(t *testing.T) {
	store := &services.MockAttemptStore{}
	policy, err := services.NewLockoutPolicy(1000, 1000, time.Minute)
	require.NoError(t, err)
	svc := services.NewRateLimitService(store, policy, clock.NewFake(testStart), services.RateLimitConfig{}, testLogger(), nil, nil)
	ctx := context.Background()

	const initial = 5
	for i := 0; i < initial; i++ {
		svc.RecordFailure(ctx, testKey)
	}

	const workers = 100
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.RecordFailure(ctx, testKey)
		}()
	}
	wg.Wait()

	assert.Equal(t, initial+workers, svc.Status(ctx, testKey).Attempts)
}

func TestRateLimitService_LockoutIsAudited(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	policy, err := services.NewLockoutPolicy(3, 4, 30*time.Minute)
	require.NoError(t, err)
	svc := services.NewRateLimitService(&services.MockAttemptStore{}, policy, clock.NewFake(testStart),
		services.RateLimitConfig{}, logger, pkglogger.NewAuditLogger(logger), nil)

	for i := 0; i < 5; i++ {
		svc.RecordFailure(context.Background(), testKey)
	}

	assert.Equal(t, 1, strings.Count(buf.String(), "lockout_started"))
}
