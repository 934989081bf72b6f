// Package redis - rank index backed by a Redis sorted set.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/olympus-hub/classroom-olympics/internal/domain/player"
)

// ══════════════════════════════════════════════════════════════════════════════
// RANK CACHE
//
// Architecture:
//   - Sorted Set "olympics:rank" stores playerID -> TotalXP mapping
//
// Рейтинг - производные данные: его можно перестроить из хранилища
// в любой момент (Rebuild). Потеря кеша не теряет ни одного XP.
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrPlayerIDEmpty is returned when an empty player ID is provided.
	ErrPlayerIDEmpty = errors.New("rank_cache: player id cannot be empty")

	// ErrInvalidRankRange is returned when invalid pagination parameters are provided.
	ErrInvalidRankRange = errors.New("rank_cache: invalid rank range")
)

// RankCache implements player.RankCache on top of a Redis sorted set.
// Rank lookups are O(log N), range reads are O(log N + M).
type RankCache struct {
	cache *Cache
	key   string
}

// NewRankCache creates a new RankCache instance.
func NewRankCache(cache *Cache) *RankCache {
	return &RankCache{
		cache: cache,
		key:   PrefixRank,
	}
}

// UpdateScore записывает новый TotalXP игрока в рейтинг.
func (r *RankCache) UpdateScore(ctx context.Context, playerID string, totalXP int) error {
	if playerID == "" {
		return ErrPlayerIDEmpty
	}

	return r.cache.Client().ZAdd(ctx, r.key, redis.Z{
		Score:  float64(totalXP),
		Member: playerID,
	}).Err()
}

// Top возвращает срез рейтинга, начиная с offset (0-based).
// Rank присваивается плотно: offset+1, offset+2, ...
func (r *RankCache) Top(ctx context.Context, offset, limit int) ([]player.RankedPlayer, error) {
	if offset < 0 || limit <= 0 {
		return nil, ErrInvalidRankRange
	}

	start := int64(offset)
	stop := start + int64(limit) - 1

	members, err := r.cache.Client().ZRevRangeWithScores(ctx, r.key, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("rank_cache: failed to read top: %w", err)
	}

	ranked := make([]player.RankedPlayer, 0, len(members))
	for i, m := range members {
		id, ok := m.Member.(string)
		if !ok {
			continue
		}
		ranked = append(ranked, player.RankedPlayer{
			PlayerID: id,
			TotalXP:  int(m.Score),
			Rank:     player.Rank(offset + i + 1),
		})
	}

	return ranked, nil
}

// RankOf возвращает позицию игрока (1 = лучший), 0 если не ранжирован.
func (r *RankCache) RankOf(ctx context.Context, playerID string) (player.Rank, error) {
	if playerID == "" {
		return 0, ErrPlayerIDEmpty
	}

	// ZRevRank returns 0-based rank (0 = highest score)
	rank, err := r.cache.Client().ZRevRank(ctx, r.key, playerID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("rank_cache: failed to read rank: %w", err)
	}

	return player.Rank(rank + 1), nil
}

// Rebuild атомарно перестраивает рейтинг из карты playerID -> totalXP.
// Выполняется в транзакционном pipeline: читатели видят либо старый
// индекс целиком, либо новый.
func (r *RankCache) Rebuild(ctx context.Context, scores map[string]int) error {
	pipe := r.cache.Client().TxPipeline()

	pipe.Del(ctx, r.key)

	if len(scores) > 0 {
		members := make([]redis.Z, 0, len(scores))
		for id, totalXP := range scores {
			if id == "" {
				continue
			}
			members = append(members, redis.Z{
				Score:  float64(totalXP),
				Member: id,
			})
		}
		pipe.ZAdd(ctx, r.key, members...)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("rank_cache: failed to rebuild: %w", err)
	}
	return nil
}

// Size возвращает количество ранжированных игроков.
func (r *RankCache) Size(ctx context.Context) (int, error) {
	count, err := r.cache.Client().ZCard(ctx, r.key).Result()
	if err != nil {
		return 0, fmt.Errorf("rank_cache: failed to read size: %w", err)
	}
	return int(count), nil
}
