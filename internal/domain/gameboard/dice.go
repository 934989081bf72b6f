package gameboard

import (
	"errors"
	"fmt"
	"time"

	"github.com/olympus-hub/classroom-olympics/internal/domain/player"
)

// Roll validation errors.
var (
	ErrSkillLevelOutOfRange = errors.New("gameboard: skill level must be in [1,5]")
	ErrRollValueOutOfRange  = errors.New("gameboard: roll value must be in [0,100)")
)

// Success chance bounds. Outcomes are never guaranteed nor impossible.
const (
	ChanceFloor = 5
	ChanceCeil  = 95
)

// SuccessChance computes the percentage chance of passing a station check.
// Skill dominates, difficulty attenuates:
//
//	chance = clamp(skill*15 + (100 - difficulty*10), 5, 95)
func SuccessChance(skillLevel, difficulty int) int {
	chance := skillLevel*15 + (100 - difficulty*10)
	if chance < ChanceFloor {
		return ChanceFloor
	}
	if chance > ChanceCeil {
		return ChanceCeil
	}
	return chance
}

// Rewards is what a resolved roll grants. A failed roll grants nothing;
// the consumed board move is accounted for by the progression machine.
type Rewards struct {
	XP    int
	Gold  int
	Items []string
}

// IsEmpty reports whether the rewards grant anything at all.
func (r Rewards) IsEmpty() bool {
	return r.XP == 0 && r.Gold == 0 && len(r.Items) == 0
}

// RollOutcome is the immutable record of a single resolved roll.
// Created once, appended to history, never mutated.
type RollOutcome struct {
	ID            string
	PlayerID      string
	StationID     int
	SkillLevel    int
	RollValue     int
	SuccessChance int
	Succeeded     bool
	Rewards       Rewards
	RolledAt      time.Time
}

// Resolve deterministically resolves a roll against a station.
// The roll value is supplied by the caller, which keeps this function pure:
// identical inputs always produce an identical outcome. Randomness is the
// caller's responsibility.
func Resolve(skillLevel int, station *Station, rollValue int) (*RollOutcome, error) {
	if skillLevel < player.SkillMin || skillLevel > player.SkillMax {
		return nil, fmt.Errorf("%w: %d", ErrSkillLevelOutOfRange, skillLevel)
	}
	if rollValue < 0 || rollValue >= 100 {
		return nil, fmt.Errorf("%w: %d", ErrRollValueOutOfRange, rollValue)
	}
	if station == nil {
		return nil, ErrUnknownStation
	}
	if err := station.Validate(); err != nil {
		return nil, err
	}

	chance := SuccessChance(skillLevel, station.Difficulty)
	succeeded := rollValue < chance

	outcome := &RollOutcome{
		StationID:     station.ID,
		SkillLevel:    skillLevel,
		RollValue:     rollValue,
		SuccessChance: chance,
		Succeeded:     succeeded,
	}

	if succeeded {
		items := make([]string, len(station.RewardItems))
		copy(items, station.RewardItems)
		outcome.Rewards = Rewards{
			XP:    station.RewardXP,
			Gold:  station.RewardGold,
			Items: items,
		}
	}

	return outcome, nil
}
