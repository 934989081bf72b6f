package redis

import (
	"context"
	"log/slog"

	"github.com/olympus-hub/classroom-olympics/internal/domain/player"
	"github.com/olympus-hub/classroom-olympics/pkg/circuitbreaker"
)

// ══════════════════════════════════════════════════════════════════════════════
// GUARDED RANK CACHE
// Декоратор над RankCache с circuit breaker. Индекс рейтинга - производные
// данные с фолбэком на хранилище, поэтому при нестабильном Redis лучше
// быстро отдать ошибку, чем копить таймауты на каждом запросе.
// ══════════════════════════════════════════════════════════════════════════════

// GuardedRankCache wraps a RankCache with a circuit breaker.
type GuardedRankCache struct {
	inner   player.RankCache
	breaker *circuitbreaker.CircuitBreaker
}

// NewGuardedRankCache creates a breaker-guarded rank cache.
func NewGuardedRankCache(inner player.RankCache, logger *slog.Logger) *GuardedRankCache {
	if logger == nil {
		logger = slog.Default()
	}

	breaker := circuitbreaker.RankIndexBreaker(func(name string, from, to circuitbreaker.State) {
		logger.Warn("rank index breaker state change",
			"breaker", name,
			"from", from.String(),
			"to", to.String(),
		)
	})

	return &GuardedRankCache{
		inner:   inner,
		breaker: breaker,
	}
}

// UpdateScore records a player's TotalXP in the rank index.
func (g *GuardedRankCache) UpdateScore(ctx context.Context, playerID string, totalXP int) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.inner.UpdateScore(ctx, playerID, totalXP)
	})
}

// Top returns a slice of the ranking starting at offset.
func (g *GuardedRankCache) Top(ctx context.Context, offset, limit int) ([]player.RankedPlayer, error) {
	var result []player.RankedPlayer
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var innerErr error
		result, innerErr = g.inner.Top(ctx, offset, limit)
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RankOf returns a player's position (1 = best, 0 = unranked).
func (g *GuardedRankCache) RankOf(ctx context.Context, playerID string) (player.Rank, error) {
	var result player.Rank
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var innerErr error
		result, innerErr = g.inner.RankOf(ctx, playerID)
		return innerErr
	})
	if err != nil {
		return 0, err
	}
	return result, nil
}

// Rebuild atomically rebuilds the index from a playerID -> totalXP map.
func (g *GuardedRankCache) Rebuild(ctx context.Context, scores map[string]int) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.inner.Rebuild(ctx, scores)
	})
}

// Size returns the number of ranked players.
func (g *GuardedRankCache) Size(ctx context.Context) (int, error) {
	var result int
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var innerErr error
		result, innerErr = g.inner.Size(ctx)
		return innerErr
	})
	if err != nil {
		return 0, err
	}
	return result, nil
}

// BreakerState exposes the breaker state for health reporting.
func (g *GuardedRankCache) BreakerState() circuitbreaker.State {
	return g.breaker.State()
}
