package services

import (
	"context"
	"sync"
	"time"

	"github.com/BradenHooton/loginguard/internal/models"
)

// MockAttemptStore implements AttemptStore for testing. Unset funcs fall back to
// an in-memory map so tests only override the operations they care about.
type MockAttemptStore struct {
	LoadFunc          func(ctx context.Context, key models.AttemptKey) (*models.AttemptRecord, error)
	RecordFailureFunc func(ctx context.Context, key models.AttemptKey, now time.Time, rule models.FailureRule) (*models.AttemptRecord, error)
	ClearFunc         func(ctx context.Context, key models.AttemptKey) error
	PruneFunc         func(ctx context.Context, before time.Time) (int64, error)

	mu      sync.Mutex
	records map[models.AttemptKey]*models.AttemptRecord
}

func (m *MockAttemptStore) Load(ctx context.Context, key models.AttemptKey) (*models.AttemptRecord, error) {
	if m.LoadFunc != nil {
		return m.LoadFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[key].Clone(), nil
}

func (m *MockAttemptStore) RecordFailure(ctx context.Context, key models.AttemptKey, now time.Time, rule models.FailureRule) (*models.AttemptRecord, error) {
	if m.RecordFailureFunc != nil {
		return m.RecordFailureFunc(ctx, key, now, rule)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.records == nil {
		m.records = make(map[models.AttemptKey]*models.AttemptRecord)
	}
	record, ok := m.records[key]
	if !ok {
		record = &models.AttemptRecord{Key: key}
		m.records[key] = record
	}
	record.RegisterFailure(now, rule)
	return record.Clone(), nil
}

func (m *MockAttemptStore) Clear(ctx context.Context, key models.AttemptKey) error {
	if m.ClearFunc != nil {
		return m.ClearFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, key)
	return nil
}

func (m *MockAttemptStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	if m.PruneFunc != nil {
		return m.PruneFunc(ctx, before)
	}
	return 0, nil
}

// MockErrorReporter records captured errors
type MockErrorReporter struct {
	mu       sync.Mutex
	Captured []error
}

func (m *MockErrorReporter) CaptureException(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Captured = append(m.Captured, err)
}

// Count returns the number of captured errors
func (m *MockErrorReporter) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Captured)
}
