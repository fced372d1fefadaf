package repositories

import (
	"context"
	"sync"
	"time"

	"github.com/BradenHooton/loginguard/internal/models"
)

// memoryEntry guards one key. Contention is scoped to the key: the map itself
// is a sync.Map, so there is no process-wide lock on the hot path.
type memoryEntry struct {
	mu      sync.Mutex
	record  models.AttemptRecord
	present bool
	removed bool // set by Prune once the entry left the map
}

// MemoryAttemptStore keeps attempt records in process memory.
// Suitable for single-instance deployments and tests.
type MemoryAttemptStore struct {
	entries sync.Map // models.AttemptKey -> *memoryEntry
}

// NewMemoryAttemptStore creates an empty in-memory store
func NewMemoryAttemptStore() *MemoryAttemptStore {
	return &MemoryAttemptStore{}
}

// Load returns a copy of the key's record or nil if there is none
func (s *MemoryAttemptStore) Load(ctx context.Context, key models.AttemptKey) (*models.AttemptRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	value, ok := s.entries.Load(key)
	if !ok {
		return nil, nil
	}

	entry := value.(*memoryEntry)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if !entry.present || entry.removed {
		return nil, nil
	}
	return entry.record.Clone(), nil
}

// RecordFailure applies one failure under the key's lock
func (s *MemoryAttemptStore) RecordFailure(ctx context.Context, key models.AttemptKey, now time.Time, rule models.FailureRule) (*models.AttemptRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for {
		value, _ := s.entries.LoadOrStore(key, &memoryEntry{})
		entry := value.(*memoryEntry)

		entry.mu.Lock()
		if entry.removed {
			// Lost a race with Prune; the next LoadOrStore installs a fresh entry
			entry.mu.Unlock()
			continue
		}

		if !entry.present {
			entry.record = models.AttemptRecord{Key: key}
			entry.present = true
		}
		entry.record.RegisterFailure(now, rule)
		out := entry.record.Clone()
		entry.mu.Unlock()

		return out, nil
	}
}

// Clear resets the key's record; clearing a missing key is a no-op
func (s *MemoryAttemptStore) Clear(ctx context.Context, key models.AttemptKey) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, ok := s.entries.Load(key)
	if !ok {
		return nil
	}

	entry := value.(*memoryEntry)
	entry.mu.Lock()
	entry.present = false
	entry.record = models.AttemptRecord{}
	entry.mu.Unlock()

	return nil
}

// Prune drops entries that are cleared or untouched since before, keeping any
// whose lock is still running past before
func (s *MemoryAttemptStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	var removed int64

	s.entries.Range(func(k, value any) bool {
		if ctx.Err() != nil {
			return false
		}

		entry := value.(*memoryEntry)
		entry.mu.Lock()
		stale := !entry.present ||
			(entry.record.UpdatedAt.Before(before) && !entry.record.LockActive(before))
		if stale {
			entry.removed = true
			s.entries.CompareAndDelete(k, entry)
			if entry.present {
				removed++
			}
		}
		entry.mu.Unlock()
		return true
	})

	if err := ctx.Err(); err != nil {
		return removed, err
	}
	return removed, nil
}
