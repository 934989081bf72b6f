package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/olympus-hub/classroom-olympics/internal/domain/player"
)

// ══════════════════════════════════════════════════════════════════════════════
// REBUILD RANKS JOB
// ══════════════════════════════════════════════════════════════════════════════

// RebuildRanksJob rebuilds the Redis rank index from persisted player state.
// The index is updated incrementally on every XP gain; this job is the
// corrective sweep that heals it after a cache flush or missed event.
type RebuildRanksJob struct {
	playerRepo player.Repository
	rankCache  player.RankCache
	logger     *slog.Logger

	config RebuildRanksConfig

	// State
	lastStats atomic.Value // *RebuildRanksStats
}

// RebuildRanksConfig contains configuration for the rebuild job.
type RebuildRanksConfig struct {
	// PageSize is how many players are loaded per storage round-trip.
	PageSize int

	// Timeout is the maximum duration for one rebuild run.
	Timeout time.Duration
}

// DefaultRebuildRanksConfig returns sensible defaults.
func DefaultRebuildRanksConfig() RebuildRanksConfig {
	return RebuildRanksConfig{
		PageSize: 500,
		Timeout:  2 * time.Minute,
	}
}

// RebuildRanksStats contains statistics from a rebuild run.
type RebuildRanksStats struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	PlayerCount int
}

// NewRebuildRanksJob creates a new rank rebuild job.
func NewRebuildRanksJob(
	playerRepo player.Repository,
	rankCache player.RankCache,
	logger *slog.Logger,
	config RebuildRanksConfig,
) *RebuildRanksJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.PageSize <= 0 {
		config.PageSize = 500
	}

	return &RebuildRanksJob{
		playerRepo: playerRepo,
		rankCache:  rankCache,
		logger:     logger,
		config:     config,
	}
}

// Name returns the job name.
func (j *RebuildRanksJob) Name() string {
	return "rebuild_ranks"
}

// Description returns a human-readable description.
func (j *RebuildRanksJob) Description() string {
	return "Rebuilds the Redis rank index from persisted player state"
}

// Run executes the rebuild job.
func (j *RebuildRanksJob) Run(ctx context.Context) error {
	startedAt := time.Now()

	j.logger.Info("starting rebuild_ranks job")

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	scores, err := j.collectScores(ctx)
	if err != nil {
		return fmt.Errorf("failed to collect scores: %w", err)
	}

	if err := j.rankCache.Rebuild(ctx, scores); err != nil {
		return fmt.Errorf("failed to rebuild rank index: %w", err)
	}

	completedAt := time.Now()
	stats := &RebuildRanksStats{
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		Duration:    completedAt.Sub(startedAt),
		PlayerCount: len(scores),
	}
	j.lastStats.Store(stats)

	j.logger.Info("rebuild_ranks job completed",
		"duration", stats.Duration.String(),
		"players", stats.PlayerCount,
	)

	return nil
}

// collectScores pages through all players and collects their total XP.
func (j *RebuildRanksJob) collectScores(ctx context.Context) (map[string]int, error) {
	scores := make(map[string]int)

	opts := player.DefaultListOptions().
		WithLimit(j.config.PageSize).
		WithSort("id", false)

	for offset := 0; ; offset += j.config.PageSize {
		page, err := j.playerRepo.GetAll(ctx, opts.WithOffset(offset))
		if err != nil {
			return nil, err
		}

		for _, s := range page {
			scores[s.ID] = int(s.TotalXP)
		}

		if len(page) < j.config.PageSize {
			return scores, nil
		}
	}
}
