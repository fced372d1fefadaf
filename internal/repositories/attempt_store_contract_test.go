package repositories_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type attemptStore interface {
	Load(ctx context.Context, key models.AttemptKey) (*models.AttemptRecord, error)
	RecordFailure(ctx context.Context, key models.AttemptKey, now time.Time, rule models.FailureRule) (*models.AttemptRecord, error)
	Clear(ctx context.Context, key models.AttemptKey) error
	Prune(ctx context.Context, before time.Time) (int64, error)
}

var contractRule = models.FailureRule{LockThreshold: 4, LockoutDuration: 30 * time.Minute}

// runAttemptStoreContract exercises the behavior every store must share
func runAttemptStoreContract(t *testing.T, newStore func(t *testing.T) attemptStore) {
	t.Helper()
	base := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)

	t.Run("missing key loads as nil", func(t *testing.T) {
		store := newStore(t)
		rec, err := store.Load(context.Background(), "192.0.2.1")
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("failures accumulate and lock at threshold", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		key := models.AttemptKey("192.0.2.2")

		for i := 1; i < contractRule.LockThreshold; i++ {
			rec, err := store.RecordFailure(ctx, key, base, contractRule)
			require.NoError(t, err)
			assert.Equal(t, i, rec.FailureCount)
			assert.Nil(t, rec.LockedUntil)
		}

		rec, err := store.RecordFailure(ctx, key, base, contractRule)
		require.NoError(t, err)
		assert.Equal(t, contractRule.LockThreshold, rec.FailureCount)
		require.NotNil(t, rec.LockedUntil)
		assert.WithinDuration(t, base.Add(contractRule.LockoutDuration), *rec.LockedUntil, time.Millisecond)

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, contractRule.LockThreshold, loaded.FailureCount)
		require.NotNil(t, loaded.LockedUntil)
		assert.WithinDuration(t, *rec.LockedUntil, *loaded.LockedUntil, time.Millisecond)
	})

	t.Run("failure during active lock keeps deadline", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		key := models.AttemptKey("192.0.2.3")

		var locked *models.AttemptRecord
		for i := 0; i < contractRule.LockThreshold; i++ {
			rec, err := store.RecordFailure(ctx, key, base, contractRule)
			require.NoError(t, err)
			locked = rec
		}

		rec, err := store.RecordFailure(ctx, key, base.Add(time.Minute), contractRule)
		require.NoError(t, err)
		assert.Equal(t, contractRule.LockThreshold+1, rec.FailureCount)
		require.NotNil(t, rec.LockedUntil)
		assert.WithinDuration(t, *locked.LockedUntil, *rec.LockedUntil, time.Millisecond)
	})

	t.Run("failure after lock expiry starts a new cycle", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		key := models.AttemptKey("192.0.2.4")

		for i := 0; i < contractRule.LockThreshold; i++ {
			_, err := store.RecordFailure(ctx, key, base, contractRule)
			require.NoError(t, err)
		}

		later := base.Add(contractRule.LockoutDuration + time.Second)
		rec, err := store.RecordFailure(ctx, key, later, contractRule)
		require.NoError(t, err)
		assert.Equal(t, 1, rec.FailureCount)
		assert.Nil(t, rec.LockedUntil)
	})

	t.Run("clear is idempotent", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		key := models.AttemptKey("192.0.2.5")

		_, err := store.RecordFailure(ctx, key, base, contractRule)
		require.NoError(t, err)

		require.NoError(t, store.Clear(ctx, key))
		require.NoError(t, store.Clear(ctx, key))

		rec, err := store.Load(ctx, key)
		require.NoError(t, err)
		assert.Nil(t, rec)

		rec, err = store.RecordFailure(ctx, key, base, contractRule)
		require.NoError(t, err)
		assert.Equal(t, 1, rec.FailureCount)
	})

	t.Run("keys are independent", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		for i := 0; i < contractRule.LockThreshold; i++ {
			_, err := store.RecordFailure(ctx, "198.51.100.1", base, contractRule)
			require.NoError(t, err)
		}

		rec, err := store.Load(ctx, "198.51.100.2")
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("concurrent failures are never lost", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		key := models.AttemptKey("203.0.113.99")
		wide := models.FailureRule{LockThreshold: 10_000, LockoutDuration: time.Minute}

		const initial = 2
		for i := 0; i < initial; i++ {
			_, err := store.RecordFailure(ctx, key, base, wide)
			require.NoError(t, err)
		}

		const workers = 64
		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := store.RecordFailure(ctx, key, base, wide); err != nil {
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		rec, err := store.Load(ctx, key)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, initial+workers, rec.FailureCount, fmt.Sprintf("expected exactly %d failures", initial+workers))
	})
}
