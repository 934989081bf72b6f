package query

import (
	"context"
	"errors"
	"time"

	"github.com/olympus-hub/classroom-olympics/internal/domain/player"
	"github.com/olympus-hub/classroom-olympics/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Получает топ-N игроков по TotalXP. Сначала пробует Redis-кеш рейтинга,
// при его недоступности падает обратно на хранилище.
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardQuery содержит параметры запроса лидерборда.
type GetLeaderboardQuery struct {
	// Limit - количество записей (по умолчанию 20, максимум 100).
	Limit int

	// Offset - смещение для пагинации.
	Offset int
}

// Validate проверяет корректность параметров запроса.
func (q *GetLeaderboardQuery) Validate() error {
	if q.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if q.Limit == 0 {
		q.Limit = 20
	}
	if q.Offset < 0 {
		return errors.New("offset cannot be negative")
	}
	return nil
}

// LeaderboardEntryDTO - DTO для записи лидерборда.
type LeaderboardEntryDTO struct {
	// Rank - позиция в рейтинге (начиная с 1).
	Rank int `json:"rank"`

	// PlayerID - идентификатор игрока.
	PlayerID string `json:"player_id"`

	// TotalXP - общий XP.
	TotalXP int `json:"total_xp"`

	// Level - уровень игрока.
	Level int `json:"level"`
}

// GetLeaderboardResult содержит результат запроса лидерборда.
type GetLeaderboardResult struct {
	// Entries - записи лидерборда.
	Entries []LeaderboardEntryDTO `json:"entries"`

	// TotalCount - общее количество игроков.
	TotalCount int `json:"total_count"`

	// AverageXP - средний XP на странице.
	AverageXP int `json:"average_xp"`

	// MedianXP - медианный XP на странице.
	MedianXP int `json:"median_xp"`

	// FromCache - получен ли результат из кеша рейтинга.
	FromCache bool `json:"from_cache"`

	// GeneratedAt - время генерации результата.
	GeneratedAt time.Time `json:"generated_at"`

	// HasMore - есть ли ещё записи после текущей страницы.
	HasMore bool `json:"has_more"`
}

// GetLeaderboardHandler обрабатывает запросы на получение лидерборда.
type GetLeaderboardHandler struct {
	playerRepo player.Repository
	rankCache  player.RankCache
}

// NewGetLeaderboardHandler создаёт новый обработчик запроса лидерборда.
func NewGetLeaderboardHandler(playerRepo player.Repository, rankCache player.RankCache) *GetLeaderboardHandler {
	return &GetLeaderboardHandler{
		playerRepo: playerRepo,
		rankCache:  rankCache,
	}
}

// Handle выполняет запрос на получение лидерборда.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	if err := q.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetLeaderboard", shared.ErrValidation, err.Error(), err)
	}

	totalCount, err := h.playerRepo.Count(ctx)
	if err != nil {
		return nil, err
	}

	// Сначала кеш рейтинга.
	if h.rankCache != nil {
		ranked, err := h.rankCache.Top(ctx, q.Offset, q.Limit)
		if err == nil && len(ranked) > 0 {
			return h.buildFromCache(ctx, ranked, q, totalCount)
		}
	}

	// Fallback: сортировка по total_xp в хранилище.
	opts := player.DefaultListOptions().
		WithOffset(q.Offset).
		WithLimit(q.Limit).
		WithSort("total_xp", true)

	states, err := h.playerRepo.GetAll(ctx, opts)
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntryDTO, len(states))
	for i, s := range states {
		entries[i] = LeaderboardEntryDTO{
			Rank:     q.Offset + i + 1,
			PlayerID: s.ID,
			TotalXP:  int(s.TotalXP),
			Level:    int(s.CurrentLevel),
		}
	}

	return buildLeaderboardResult(entries, q, totalCount, false), nil
}

// buildFromCache обогащает кешированный срез рейтинга уровнями из хранилища.
func (h *GetLeaderboardHandler) buildFromCache(
	ctx context.Context,
	ranked []player.RankedPlayer,
	q GetLeaderboardQuery,
	totalCount int,
) (*GetLeaderboardResult, error) {
	ids := make([]string, len(ranked))
	for i, r := range ranked {
		ids[i] = r.PlayerID
	}

	levels := make(map[string]int, len(ids))
	if states, err := h.playerRepo.GetByIDs(ctx, ids); err == nil {
		for _, s := range states {
			levels[s.ID] = int(s.CurrentLevel)
		}
	}

	entries := make([]LeaderboardEntryDTO, len(ranked))
	for i, r := range ranked {
		level := levels[r.PlayerID]
		if level == 0 {
			// Кеш знает только score; уровень производный от него.
			level = int(player.CalculateLevel(player.XP(r.TotalXP)))
		}
		entries[i] = LeaderboardEntryDTO{
			Rank:     int(r.Rank),
			PlayerID: r.PlayerID,
			TotalXP:  r.TotalXP,
			Level:    level,
		}
	}

	return buildLeaderboardResult(entries, q, totalCount, true), nil
}

// buildLeaderboardResult формирует итоговый результат со статистикой страницы.
func buildLeaderboardResult(
	entries []LeaderboardEntryDTO,
	q GetLeaderboardQuery,
	totalCount int,
	fromCache bool,
) *GetLeaderboardResult {
	var totalXP int
	for _, e := range entries {
		totalXP += e.TotalXP
	}

	avgXP := 0
	if len(entries) > 0 {
		avgXP = totalXP / len(entries)
	}

	medianXP := 0
	if len(entries) > 0 {
		mid := len(entries) / 2
		if len(entries)%2 == 0 && mid > 0 {
			medianXP = (entries[mid-1].TotalXP + entries[mid].TotalXP) / 2
		} else {
			medianXP = entries[mid].TotalXP
		}
	}

	return &GetLeaderboardResult{
		Entries:     entries,
		TotalCount:  totalCount,
		AverageXP:   avgXP,
		MedianXP:    medianXP,
		FromCache:   fromCache,
		GeneratedAt: time.Now().UTC(),
		HasMore:     q.Offset+len(entries) < totalCount,
	}
}
