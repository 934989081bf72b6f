// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"errors"
	"time"

	"github.com/olympus-hub/classroom-olympics/internal/domain/player"
	"github.com/olympus-hub/classroom-olympics/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PLAYER QUERY
// Returns one player's full progression state, enriched with the live rank.
// ══════════════════════════════════════════════════════════════════════════════

// GetPlayerQuery contains the parameters for fetching a player.
type GetPlayerQuery struct {
	// PlayerID is the player to fetch.
	PlayerID string
}

// Validate checks the query parameters.
func (q GetPlayerQuery) Validate() error {
	if q.PlayerID == "" {
		return errors.New("player_id is required")
	}
	return nil
}

// PlayerDTO is the read model for one player.
type PlayerDTO struct {
	ID             string         `json:"id"`
	CurrentXP      int            `json:"current_xp"`
	TotalXP        int            `json:"total_xp"`
	Level          int            `json:"level"`
	Rank           int            `json:"rank"`
	Gold           int            `json:"gold"`
	BoardPosition  int            `json:"board_position"`
	MovesRemaining int            `json:"moves_remaining"`
	PerQuestXP     map[string]int `json:"per_quest_xp"`
	Skills         map[string]int `json:"skills"`
	Version        int64          `json:"version"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// GetPlayerHandler handles the GetPlayerQuery.
type GetPlayerHandler struct {
	playerRepo player.Repository
	rankCache  player.RankCache
}

// NewGetPlayerHandler creates a new GetPlayerHandler.
func NewGetPlayerHandler(playerRepo player.Repository, rankCache player.RankCache) *GetPlayerHandler {
	return &GetPlayerHandler{
		playerRepo: playerRepo,
		rankCache:  rankCache,
	}
}

// Handle executes the get player query.
func (h *GetPlayerHandler) Handle(ctx context.Context, q GetPlayerQuery) (*PlayerDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetPlayer", shared.ErrValidation, err.Error(), err)
	}

	state, err := h.playerRepo.GetByID(ctx, q.PlayerID)
	if err != nil {
		return nil, err
	}

	dto := PlayerToDTO(state)

	// The cached rank is fresher than the persisted one; prefer it when available.
	if h.rankCache != nil {
		if rank, err := h.rankCache.RankOf(ctx, q.PlayerID); err == nil && rank > 0 {
			dto.Rank = int(rank)
		}
	}

	return dto, nil
}

// PlayerToDTO converts player state to its read model.
func PlayerToDTO(state *player.State) *PlayerDTO {
	perQuest := make(map[string]int, len(state.PerQuestXP))
	for q, xp := range state.PerQuestXP {
		perQuest[q.String()] = int(xp)
	}

	return &PlayerDTO{
		ID:             state.ID,
		CurrentXP:      int(state.CurrentXP),
		TotalXP:        int(state.TotalXP),
		Level:          int(state.CurrentLevel),
		Rank:           int(state.CurrentRank),
		Gold:           int(state.Gold),
		BoardPosition:  state.BoardPosition,
		MovesRemaining: state.MovesRemaining,
		PerQuestXP:     perQuest,
		Skills:         state.Skills.ToMap(),
		Version:        state.Version,
		CreatedAt:      state.CreatedAt,
		UpdatedAt:      state.UpdatedAt,
	}
}
