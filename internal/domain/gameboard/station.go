// Package gameboard contains the game-board domain: stations, dice
// resolution, and the per-player progression state machine.
// This is a pure domain layer with zero external dependencies.
package gameboard

import (
	"context"
	"errors"

	"github.com/olympus-hub/classroom-olympics/internal/domain/player"
)

// Domain errors for gameboard package.
var (
	ErrInvalidStationID  = errors.New("gameboard: invalid station ID")
	ErrInvalidDifficulty = errors.New("gameboard: difficulty must be between 1 and 10")
	ErrUnknownStation    = errors.New("gameboard: unknown station")
)

// Difficulty bounds. Difficulty attenuates the success chance:
// each point of difficulty removes 10 points of chance.
const (
	DifficultyMin = 1
	DifficultyMax = 10
)

// Station is a read-only game-board location with a skill check and rewards.
// Stations are reference data; the engine never mutates them.
type Station struct {
	ID            int
	Name          string
	Narrative     string
	RequiredSkill player.SkillName
	Difficulty    int
	RewardXP      int
	RewardGold    int
	RewardItems   []string

	// RewardQuest is the quest bucket XP rewards are credited to.
	// Required when RewardXP > 0, so reward XP always lands in a bucket.
	RewardQuest player.QuestID
}

// Validate checks that the station reference data is well-formed.
func (s Station) Validate() error {
	if s.ID <= 0 {
		return ErrInvalidStationID
	}
	if !s.RequiredSkill.IsValid() {
		return player.ErrUnknownSkill
	}
	if s.Difficulty < DifficultyMin || s.Difficulty > DifficultyMax {
		return ErrInvalidDifficulty
	}
	if s.RewardXP < 0 || s.RewardGold < 0 {
		return errors.New("gameboard: rewards must be non-negative")
	}
	if s.RewardXP > 0 && !s.RewardQuest.IsValid() {
		return errors.New("gameboard: reward quest is required for xp rewards")
	}
	return nil
}

// StationRepository provides read access to the station reference data.
type StationRepository interface {
	// GetByID returns a station by ID.
	// Returns shared.ErrStationNotFound if the station is unknown.
	GetByID(ctx context.Context, id int) (*Station, error)

	// ListAll returns all stations ordered by ID.
	ListAll(ctx context.Context) ([]*Station, error)

	// Count returns the number of stations (the board length).
	Count(ctx context.Context) (int, error)
}

// RollHistory persists resolved rolls. Append-only.
type RollHistory interface {
	// Append records one resolved roll.
	Append(ctx context.Context, outcome *RollOutcome) error

	// ListByPlayer returns the most recent rolls for a player, newest first.
	ListByPlayer(ctx context.Context, playerID string, limit int) ([]*RollOutcome, error)
}
