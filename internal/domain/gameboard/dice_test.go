package gameboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olympus-hub/classroom-olympics/internal/domain/player"
)

func testStation() *Station {
	return &Station{
		ID:            4,
		Name:          "Climbing Wall",
		RequiredSkill: player.SkillClimbing,
		Difficulty:    4,
		RewardXP:      50,
		RewardGold:    2,
		RewardItems:   []string{"chalk"},
		RewardQuest:   "sprint",
	}
}

func TestSuccessChance(t *testing.T) {
	// skill*15 + (100 - difficulty*10), clamped to [5,95]
	assert.Equal(t, 95, SuccessChance(3, 4))
	assert.Equal(t, 50, SuccessChance(2, 8))
	assert.Equal(t, 15, SuccessChance(1, 10))
	assert.Equal(t, 95, SuccessChance(5, 1))
}

func TestResolve_Success(t *testing.T) {
	st := testStation()

	outcome, err := Resolve(3, st, 40)
	require.NoError(t, err)

	assert.True(t, outcome.Succeeded)
	assert.Equal(t, 95, outcome.SuccessChance)
	assert.Equal(t, st.ID, outcome.StationID)
	assert.Equal(t, 40, outcome.RollValue)
	assert.Equal(t, 50, outcome.Rewards.XP)
	assert.Equal(t, 2, outcome.Rewards.Gold)
	assert.Equal(t, []string{"chalk"}, outcome.Rewards.Items)
}

func TestResolve_Failure_GrantsNothing(t *testing.T) {
	st := testStation()
	st.Difficulty = 10 // chance for skill 1 is 15

	outcome, err := Resolve(1, st, 80)
	require.NoError(t, err)

	assert.False(t, outcome.Succeeded)
	assert.True(t, outcome.Rewards.IsEmpty())
}

func TestResolve_Deterministic(t *testing.T) {
	st := testStation()

	first, err := Resolve(2, st, 63)
	require.NoError(t, err)
	second, err := Resolve(2, st, 63)
	require.NoError(t, err)

	assert.Equal(t, first.Succeeded, second.Succeeded)
	assert.Equal(t, first.SuccessChance, second.SuccessChance)
	assert.Equal(t, first.Rewards, second.Rewards)
}

func TestResolve_Boundary(t *testing.T) {
	st := testStation()
	st.Difficulty = 10 // chance for skill 1 is 15

	// roll == chance fails, roll == chance-1 succeeds.
	atChance, err := Resolve(1, st, 15)
	require.NoError(t, err)
	assert.False(t, atChance.Succeeded)

	belowChance, err := Resolve(1, st, 14)
	require.NoError(t, err)
	assert.True(t, belowChance.Succeeded)
}

func TestResolve_Validation(t *testing.T) {
	st := testStation()

	_, err := Resolve(0, st, 10)
	assert.ErrorIs(t, err, ErrSkillLevelOutOfRange)

	_, err = Resolve(6, st, 10)
	assert.ErrorIs(t, err, ErrSkillLevelOutOfRange)

	_, err = Resolve(3, st, -1)
	assert.ErrorIs(t, err, ErrRollValueOutOfRange)

	_, err = Resolve(3, st, 100)
	assert.ErrorIs(t, err, ErrRollValueOutOfRange)

	_, err = Resolve(3, nil, 10)
	assert.ErrorIs(t, err, ErrUnknownStation)
}

func TestStation_Validate(t *testing.T) {
	st := testStation()
	assert.NoError(t, st.Validate())

	bad := *st
	bad.ID = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidStationID)

	bad = *st
	bad.Difficulty = 11
	assert.ErrorIs(t, bad.Validate(), ErrInvalidDifficulty)

	bad = *st
	bad.RequiredSkill = "juggling"
	assert.ErrorIs(t, bad.Validate(), player.ErrUnknownSkill)

	// XP rewards need a quest bucket to land in.
	bad = *st
	bad.RewardQuest = ""
	assert.Error(t, bad.Validate())
}
