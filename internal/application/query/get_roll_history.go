package query

import (
	"context"
	"errors"
	"time"

	"github.com/olympus-hub/classroom-olympics/internal/domain/gameboard"
	"github.com/olympus-hub/classroom-olympics/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET ROLL HISTORY QUERY
// Returns a player's most recent station rolls, newest first.
// ══════════════════════════════════════════════════════════════════════════════

// GetRollHistoryQuery contains the parameters for fetching roll history.
type GetRollHistoryQuery struct {
	// PlayerID is the player whose rolls to fetch.
	PlayerID string

	// Limit is the maximum number of rolls (default 20, max 100).
	Limit int
}

// Validate checks the query parameters.
func (q *GetRollHistoryQuery) Validate() error {
	if q.PlayerID == "" {
		return errors.New("player_id is required")
	}
	if q.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	if q.Limit == 0 {
		q.Limit = 20
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	return nil
}

// RollDTO is the read model for one resolved roll.
type RollDTO struct {
	ID            string    `json:"id"`
	StationID     int       `json:"station_id"`
	SkillLevel    int       `json:"skill_level"`
	RollValue     int       `json:"roll_value"`
	SuccessChance int       `json:"success_chance"`
	Succeeded     bool      `json:"succeeded"`
	RewardXP      int       `json:"reward_xp"`
	RewardGold    int       `json:"reward_gold"`
	RewardItems   []string  `json:"reward_items,omitempty"`
	RolledAt      time.Time `json:"rolled_at"`
}

// GetRollHistoryResult contains the matching rolls and success stats.
type GetRollHistoryResult struct {
	PlayerID    string    `json:"player_id"`
	Rolls       []RollDTO `json:"rolls"`
	SuccessRate float64   `json:"success_rate"`
	GeneratedAt time.Time `json:"generated_at"`
}

// GetRollHistoryHandler handles the GetRollHistoryQuery.
type GetRollHistoryHandler struct {
	rollHistory gameboard.RollHistory
}

// NewGetRollHistoryHandler creates a new GetRollHistoryHandler.
func NewGetRollHistoryHandler(rollHistory gameboard.RollHistory) *GetRollHistoryHandler {
	return &GetRollHistoryHandler{rollHistory: rollHistory}
}

// Handle executes the get roll history query.
func (h *GetRollHistoryHandler) Handle(ctx context.Context, q GetRollHistoryQuery) (*GetRollHistoryResult, error) {
	if err := q.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetRollHistory", shared.ErrValidation, err.Error(), err)
	}

	outcomes, err := h.rollHistory.ListByPlayer(ctx, q.PlayerID, q.Limit)
	if err != nil {
		return nil, err
	}

	rolls := make([]RollDTO, len(outcomes))
	succeeded := 0
	for i, o := range outcomes {
		if o.Succeeded {
			succeeded++
		}
		rolls[i] = RollDTO{
			ID:            o.ID,
			StationID:     o.StationID,
			SkillLevel:    o.SkillLevel,
			RollValue:     o.RollValue,
			SuccessChance: o.SuccessChance,
			Succeeded:     o.Succeeded,
			RewardXP:      o.Rewards.XP,
			RewardGold:    o.Rewards.Gold,
			RewardItems:   o.Rewards.Items,
			RolledAt:      o.RolledAt,
		}
	}

	rate := 0.0
	if len(rolls) > 0 {
		rate = float64(succeeded) / float64(len(rolls))
	}

	return &GetRollHistoryResult{
		PlayerID:    q.PlayerID,
		Rolls:       rolls,
		SuccessRate: rate,
		GeneratedAt: time.Now().UTC(),
	}, nil
}
