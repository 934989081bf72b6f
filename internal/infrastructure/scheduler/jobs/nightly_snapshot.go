// Package jobs contains implementations of scheduled jobs for the progression engine.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/olympus-hub/classroom-olympics/internal/application/command"
	"github.com/olympus-hub/classroom-olympics/internal/domain/snapshot"
)

// ══════════════════════════════════════════════════════════════════════════════
// NIGHTLY SNAPSHOT JOB
// ══════════════════════════════════════════════════════════════════════════════

// NightlySnapshotJob freezes every player's progress into a checksummed
// snapshot. The snapshot log is the audit trail instructors rely on when a
// dispute comes up, so the job must run even on days with no activity:
// an unchanged snapshot is still evidence.
type NightlySnapshotJob struct {
	handler *command.CreateSnapshotHandler
	logger  *slog.Logger

	config NightlySnapshotConfig

	// State
	lastStats atomic.Value // *SnapshotStats
}

// NightlySnapshotConfig contains configuration for the snapshot job.
type NightlySnapshotConfig struct {
	// Timeout is the maximum duration for one snapshot run.
	Timeout time.Duration
}

// DefaultNightlySnapshotConfig returns sensible defaults.
func DefaultNightlySnapshotConfig() NightlySnapshotConfig {
	return NightlySnapshotConfig{
		Timeout: 2 * time.Minute,
	}
}

// SnapshotStats contains statistics from a snapshot run.
type SnapshotStats struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	SnapshotID  string
	PlayerCount int
	TotalXP     int
	Evicted     int
}

// NewNightlySnapshotJob creates a new nightly snapshot job.
func NewNightlySnapshotJob(
	handler *command.CreateSnapshotHandler,
	logger *slog.Logger,
	config NightlySnapshotConfig,
) *NightlySnapshotJob {
	if logger == nil {
		logger = slog.Default()
	}

	return &NightlySnapshotJob{
		handler: handler,
		logger:  logger,
		config:  config,
	}
}

// Name returns the job name.
func (j *NightlySnapshotJob) Name() string {
	return "nightly_snapshot"
}

// Description returns a human-readable description.
func (j *NightlySnapshotJob) Description() string {
	return "Creates a checksummed progress snapshot of all players"
}

// Run executes the snapshot job.
func (j *NightlySnapshotJob) Run(ctx context.Context) error {
	startedAt := time.Now()

	j.logger.Info("starting nightly_snapshot job")

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	result, err := j.handler.Handle(ctx, command.CreateSnapshotCommand{
		TriggeredBy: snapshot.TriggerAutomatic,
	})
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}

	completedAt := time.Now()
	stats := &SnapshotStats{
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		Duration:    completedAt.Sub(startedAt),
		SnapshotID:  result.Snapshot.ID,
		PlayerCount: result.Snapshot.PlayerCount,
		TotalXP:     result.Snapshot.TotalXPRecorded,
		Evicted:     len(result.Evicted),
	}
	j.lastStats.Store(stats)

	j.logger.Info("nightly_snapshot job completed",
		"duration", stats.Duration.String(),
		"snapshot_id", stats.SnapshotID,
		"players", stats.PlayerCount,
		"total_xp", stats.TotalXP,
		"evicted", stats.Evicted,
	)

	return nil
}

// LastStats returns statistics from the last run.
func (j *NightlySnapshotJob) LastStats() *SnapshotStats {
	stats := j.lastStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*SnapshotStats)
}
