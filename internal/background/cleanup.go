package background

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/loginguard/internal/clock"
)

// Pruner removes attempt records untouched since before
type Pruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// CleanupManager periodically prunes stale attempt records
type CleanupManager struct {
	store     Pruner
	clock     clock.Clock
	logger    *slog.Logger
	interval  time.Duration
	retention time.Duration
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	store Pruner,
	clk clock.Clock,
	logger *slog.Logger,
	interval time.Duration,
	retention time.Duration,
) *CleanupManager {
	if clk == nil {
		clk = clock.System{}
	}
	return &CleanupManager{
		store:     store,
		clock:     clk,
		logger:    logger,
		interval:  interval,
		retention: retention,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the periodic cleanup task and blocks until stopped
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	cm.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			cm.RunOnce(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// RunOnce prunes records older than the retention window
func (cm *CleanupManager) RunOnce(ctx context.Context) int64 {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	before := cm.clock.Now().Add(-cm.retention)
	removed, err := cm.store.Prune(cleanupCtx, before)
	if err != nil {
		cm.logger.Error("failed to prune attempt records", slog.Any("error", err))
		return 0
	}

	if removed > 0 {
		cm.logger.Info("attempt record cleanup completed",
			slog.Int64("rows_deleted", removed),
			slog.Time("before", before))
	}
	return removed
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}
