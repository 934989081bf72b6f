package player

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestState(t *testing.T) *State {
	t.Helper()
	s, err := NewState(NewStateParams{
		ID:     "player-1",
		Quests: []QuestID{"sprint", "marathon", "relay"},
	})
	require.NoError(t, err)
	return s
}

func TestNewState_Defaults(t *testing.T) {
	s := newTestState(t)

	assert.Equal(t, "player-1", s.ID)
	assert.Equal(t, XP(0), s.TotalXP)
	assert.Equal(t, Level(1), s.CurrentLevel)
	assert.Equal(t, Gold(3), s.Gold)
	assert.Equal(t, 1, s.BoardPosition)
	assert.Equal(t, 0, s.MovesRemaining)
	assert.Equal(t, int64(1), s.Version)
	assert.Len(t, s.PerQuestXP, QuestCount)
	assert.NoError(t, s.CheckInvariants())
}

func TestNewState_Validation(t *testing.T) {
	_, err := NewState(NewStateParams{ID: "", Quests: []QuestID{"a", "b", "c"}})
	assert.ErrorIs(t, err, ErrInvalidPlayerID)

	_, err = NewState(NewStateParams{ID: "p", Quests: []QuestID{"a", "b"}})
	assert.ErrorIs(t, err, ErrInvalidQuestSet)

	_, err = NewState(NewStateParams{ID: "p", Quests: []QuestID{"a", "b", "b"}})
	assert.ErrorIs(t, err, ErrInvalidQuestSet)

	_, err = NewState(NewStateParams{ID: "p", Quests: []QuestID{"a", "b", ""}})
	assert.ErrorIs(t, err, ErrInvalidQuestSet)
}

func TestAddQuestXP_Conservation(t *testing.T) {
	s := newTestState(t)

	require.NoError(t, s.AddQuestXP("sprint", 120))
	require.NoError(t, s.AddQuestXP("marathon", 80))
	require.NoError(t, s.AddQuestXP("sprint", 50))

	assert.Equal(t, XP(250), s.TotalXP)
	assert.Equal(t, XP(170), s.PerQuestXP["sprint"])
	assert.Equal(t, XP(80), s.PerQuestXP["marathon"])
	assert.Equal(t, XP(0), s.PerQuestXP["relay"])
	assert.NoError(t, s.CheckInvariants())
}

func TestAddQuestXP_LevelDerivation(t *testing.T) {
	s := newTestState(t)

	require.NoError(t, s.AddQuestXP("sprint", 250))
	assert.Equal(t, Level(2), s.CurrentLevel)

	// XP in a quest the player doesn't have must not change anything.
	err := s.AddQuestXP("unknown", 10)
	assert.ErrorIs(t, err, ErrInvalidQuest)
	assert.Equal(t, XP(250), s.TotalXP)

	err = s.AddQuestXP("sprint", 0)
	assert.ErrorIs(t, err, ErrInvalidXP)
}

func TestCalculateLevel(t *testing.T) {
	assert.Equal(t, Level(1), CalculateLevel(0))
	assert.Equal(t, Level(1), CalculateLevel(199))
	assert.Equal(t, Level(2), CalculateLevel(200))
	assert.Equal(t, Level(2), CalculateLevel(250))
	assert.Equal(t, Level(1), CalculateLevel(-5))
	assert.Equal(t, LevelCap, CalculateLevel(XP(XPPerLevel*100)))
}

func TestMoves(t *testing.T) {
	s := newTestState(t)

	assert.ErrorIs(t, s.ConsumeMove(), ErrNoMovesRemaining)

	require.NoError(t, s.AddMoves(2))
	require.NoError(t, s.ConsumeMove())
	require.NoError(t, s.ConsumeMove())
	assert.ErrorIs(t, s.ConsumeMove(), ErrNoMovesRemaining)

	assert.ErrorIs(t, s.AddMoves(0), ErrInvalidXP)
}

func TestAdvanceBoard_Wrap(t *testing.T) {
	s := newTestState(t)

	s.AdvanceBoard(3, 10)
	assert.Equal(t, 4, s.BoardPosition)

	// 4 + 8 = 12 wraps to 2 on a 10-station board.
	s.AdvanceBoard(8, 10)
	assert.Equal(t, 2, s.BoardPosition)

	// Landing exactly on the last station.
	s.AdvanceBoard(8, 10)
	assert.Equal(t, 10, s.BoardPosition)

	// Invalid inputs are no-ops.
	s.AdvanceBoard(0, 10)
	s.AdvanceBoard(3, 0)
	assert.Equal(t, 10, s.BoardPosition)
}

func TestCheckInvariants_Violations(t *testing.T) {
	s := newTestState(t)
	require.NoError(t, s.AddQuestXP("sprint", 100))

	s.TotalXP = 999
	assert.ErrorIs(t, s.CheckInvariants(), ErrXPConservation)

	s.TotalXP = 100
	s.CurrentLevel = 7
	assert.Error(t, s.CheckInvariants())
}

func TestClone_Independence(t *testing.T) {
	s := newTestState(t)
	require.NoError(t, s.AddQuestXP("sprint", 10))

	clone := s.Clone()
	require.NoError(t, clone.AddQuestXP("sprint", 90))

	assert.Equal(t, XP(10), s.TotalXP)
	assert.Equal(t, XP(100), clone.TotalXP)
}

func TestQuestIDs_Sorted(t *testing.T) {
	s, err := NewState(NewStateParams{
		ID:     "p",
		Quests: []QuestID{"relay", "sprint", "marathon"},
	})
	require.NoError(t, err)

	assert.Equal(t, []QuestID{"marathon", "relay", "sprint"}, s.QuestIDs())
}
