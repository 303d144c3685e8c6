package background

import (
	"context"
	"log/slog"
	"time"
)

// IdleStatePurger removes security state rows that carry no information
type IdleStatePurger interface {
	PurgeIdle(ctx context.Context) (int64, error)
}

// EventPruner removes lockout events recorded before a cutoff
type EventPruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupTask is one unit of periodic housekeeping. Run reports how many
// rows it removed.
type CleanupTask struct {
	Name string
	Run  func(ctx context.Context) (int64, error)
}

// PurgeIdleStateTask deletes unlocked security states with no failed attempts
func PurgeIdleStateTask(store IdleStatePurger) CleanupTask {
	return CleanupTask{Name: "idle_security_state", Run: store.PurgeIdle}
}

// EventRetentionTask deletes lockout events older than retention
func EventRetentionTask(store EventPruner, retention time.Duration) CleanupTask {
	return CleanupTask{
		Name: "lockout_event_retention",
		Run: func(ctx context.Context) (int64, error) {
			return store.DeleteOlderThan(ctx, time.Now().Add(-retention))
		},
	}
}

// CleanupManager periodically runs housekeeping tasks. Lock expiry never
// depends on it; expired locks are cleared lazily by the guard.
type CleanupManager struct {
	tasks    []CleanupTask
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(logger *slog.Logger, interval time.Duration, tasks ...CleanupTask) *CleanupManager {
	return &CleanupManager{
		tasks:    tasks,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the cleanup loop until Stop is called or ctx is cancelled
func (cm *CleanupManager) Start(ctx context.Context) {
	defer close(cm.doneCh)

	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup(ctx context.Context) {
	for _, task := range cm.tasks {
		cm.runTask(ctx, task)
	}
}

func (cm *CleanupManager) runTask(ctx context.Context, task CleanupTask) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	removed, err := task.Run(cleanupCtx)
	if err != nil {
		cm.logger.Error("cleanup task failed",
			slog.String("task", task.Name),
			slog.Any("error", err))
		return
	}

	if removed > 0 {
		cm.logger.Info("cleanup task completed",
			slog.String("task", task.Name),
			slog.Int64("rows_deleted", removed))
	}
}

// Stop signals the loop to exit and waits for it to finish. Safe to call
// once; a manager that was never started must not be stopped.
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
	<-cm.doneCh
}
