package player

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// RANK CACHE
// Кросс-игровой рейтинг по TotalXP. Кеш является производным от состояния
// игроков и может быть перестроен из хранилища в любой момент.
// ══════════════════════════════════════════════════════════════════════════════

// RankedPlayer - одна запись рейтинга.
type RankedPlayer struct {
	// PlayerID - идентификатор игрока.
	PlayerID string

	// TotalXP - общий XP игрока (score в рейтинге).
	TotalXP int

	// Rank - позиция в рейтинге (1 = лучший).
	Rank Rank
}

// RankCache определяет контракт кеша рейтинга.
// Реализация - Redis sorted set; nil-безопасные вызывающие стороны
// обязаны уметь работать и без кеша (fallback на хранилище).
type RankCache interface {
	// UpdateScore записывает новый TotalXP игрока в рейтинг.
	UpdateScore(ctx context.Context, playerID string, totalXP int) error

	// Top возвращает срез рейтинга, начиная с offset (0-based), limit записей.
	Top(ctx context.Context, offset, limit int) ([]RankedPlayer, error)

	// RankOf возвращает позицию игрока (1 = лучший).
	// Возвращает 0, если игрок не ранжирован.
	RankOf(ctx context.Context, playerID string) (Rank, error)

	// Rebuild атомарно перестраивает рейтинг из карты playerID -> totalXP.
	Rebuild(ctx context.Context, scores map[string]int) error

	// Size возвращает количество ранжированных игроков.
	Size(ctx context.Context) (int, error)
}
