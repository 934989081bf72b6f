package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olympus-hub/classroom-olympics/internal/domain/gameboard"
	"github.com/olympus-hub/classroom-olympics/internal/domain/player"
	"github.com/olympus-hub/classroom-olympics/internal/domain/shared"
)

// testBoard is a three-station board. A player starting at position 1
// lands on station 2 after one move.
func testBoard() *fakeStationRepo {
	return newFakeStationRepo(
		&gameboard.Station{
			ID: 1, Name: "Start Line", RequiredSkill: player.SkillSpeed,
			Difficulty: 1,
		},
		&gameboard.Station{
			ID: 2, Name: "Climbing Wall", RequiredSkill: player.SkillClimbing,
			Difficulty: 1, RewardXP: 50, RewardGold: 2, RewardQuest: "sprint",
		},
		&gameboard.Station{
			ID: 3, Name: "Tactics Table", RequiredSkill: player.SkillTactics,
			Difficulty: 10, RewardXP: 100, RewardQuest: "marathon",
		},
	)
}

func newMoveHandler(
	repo *fakePlayerRepo,
	stations *fakeStationRepo,
	history *fakeRollHistory,
	log *fakeActivityLog,
	pub *fakePublisher,
) *MovePlayerHandler {
	store := newFakeProgressStore(repo, log, history)
	return NewMovePlayerHandler(repo, stations, store, pub, NewPlayerLocks())
}

func grantMoves(t *testing.T, repo *fakePlayerRepo, playerID string, n int) {
	t.Helper()
	h := newApplyHandler(repo, newFakeActivityLog(), newFakePublisher())
	_, err := h.Handle(context.Background(), ApplyAwardCommand{
		AwardID:  "grant-moves-" + playerID,
		Kind:     "moves",
		PlayerID: playerID,
		Amount:   n,
		IssuedBy: "test",
	})
	require.NoError(t, err)
}

func TestMovePlayer_NoMovesRemaining(t *testing.T) {
	repo := newFakePlayerRepo()
	seedPlayer(repo, "p1")

	h := newMoveHandler(repo, testBoard(), newFakeRollHistory(), newFakeActivityLog(), newFakePublisher())

	_, err := h.Handle(context.Background(), MovePlayerCommand{PlayerID: "p1", RollValue: 10})
	assert.ErrorIs(t, err, player.ErrNoMovesRemaining)
}

func TestMovePlayer_SuccessfulCheck(t *testing.T) {
	repo := newFakePlayerRepo()
	history := newFakeRollHistory()
	log := newFakeActivityLog()
	pub := newFakePublisher()
	seedPlayer(repo, "p1")
	grantMoves(t, repo, "p1", 1)

	h := newMoveHandler(repo, testBoard(), history, log, pub)

	// Station 2: skill 1, difficulty 1 -> chance 95; roll 10 passes.
	result, err := h.Handle(context.Background(), MovePlayerCommand{PlayerID: "p1", RollValue: 10})
	require.NoError(t, err)

	assert.Equal(t, 2, result.NewPosition)
	assert.Equal(t, 0, result.MovesRemaining)
	assert.Equal(t, "Climbing Wall", result.StationName)
	assert.True(t, result.Outcome.Succeeded)
	assert.Equal(t, 50, result.TotalXP)

	state, err := repo.GetByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, player.XP(50), state.PerQuestXP["sprint"])
	assert.Equal(t, player.Gold(5), state.Gold) // 3 starting + 2 reward
	assert.NoError(t, state.CheckInvariants())

	require.Len(t, history.outcomes, 1)
	assert.Equal(t, "p1", history.outcomes[0].PlayerID)

	// One log entry per reward (xp + gold), all in the same commit.
	assert.Equal(t, 2, log.count())

	types := pub.eventTypes()
	assert.Contains(t, types, shared.EventRollResolved)
	assert.Contains(t, types, shared.EventPlayerAdvanced)
	assert.Contains(t, types, shared.EventXPGained)
}

func TestMovePlayer_FailedCheckConsumesMove(t *testing.T) {
	repo := newFakePlayerRepo()
	history := newFakeRollHistory()
	log := newFakeActivityLog()
	seedPlayer(repo, "p1")
	grantMoves(t, repo, "p1", 2)

	h := newMoveHandler(repo, testBoard(), history, log, newFakePublisher())

	// First move lands on station 2 (chance 95): roll 99 fails.
	result, err := h.Handle(context.Background(), MovePlayerCommand{PlayerID: "p1", RollValue: 99})
	require.NoError(t, err)

	assert.False(t, result.Outcome.Succeeded)
	assert.True(t, result.Outcome.Rewards.IsEmpty())
	assert.Equal(t, 1, result.MovesRemaining)
	assert.Equal(t, 0, result.TotalXP)

	// The move itself committed: position advanced, roll recorded.
	assert.Equal(t, 2, result.NewPosition)
	assert.Len(t, history.outcomes, 1)
	assert.Equal(t, 0, log.count(), "a failed check grants nothing")
}

func TestMovePlayer_BoardWraps(t *testing.T) {
	repo := newFakePlayerRepo()
	seedPlayer(repo, "p1")
	grantMoves(t, repo, "p1", 3)

	h := newMoveHandler(repo, testBoard(), newFakeRollHistory(), newFakeActivityLog(), newFakePublisher())

	// Three moves on a three-station board: 1 -> 2 -> 3 -> 1.
	for _, want := range []int{2, 3, 1} {
		result, err := h.Handle(context.Background(), MovePlayerCommand{PlayerID: "p1", RollValue: 99})
		require.NoError(t, err)
		assert.Equal(t, want, result.NewPosition)
	}
}

func TestMovePlayer_InjectedRollSource(t *testing.T) {
	repo := newFakePlayerRepo()
	seedPlayer(repo, "p1")
	grantMoves(t, repo, "p1", 1)

	h := newMoveHandler(repo, testBoard(), newFakeRollHistory(), newFakeActivityLog(), newFakePublisher()).
		WithRollFunc(func() int { return 7 })

	// Negative roll value means the handler rolls itself.
	result, err := h.Handle(context.Background(), MovePlayerCommand{PlayerID: "p1", RollValue: -1})
	require.NoError(t, err)
	assert.Equal(t, 7, result.Outcome.RollValue)
}

func TestMovePlayer_Validation(t *testing.T) {
	h := newMoveHandler(newFakePlayerRepo(), testBoard(), newFakeRollHistory(), newFakeActivityLog(), newFakePublisher())

	_, err := h.Handle(context.Background(), MovePlayerCommand{PlayerID: "", RollValue: 10})
	assert.Error(t, err)

	_, err = h.Handle(context.Background(), MovePlayerCommand{PlayerID: "p1", RollValue: 100})
	assert.ErrorIs(t, err, gameboard.ErrRollValueOutOfRange)
}

func TestMovePlayer_StationPin(t *testing.T) {
	repo := newFakePlayerRepo()
	seedPlayer(repo, "p1")
	grantMoves(t, repo, "p1", 2)

	h := newMoveHandler(repo, testBoard(), newFakeRollHistory(), newFakeActivityLog(), newFakePublisher())

	// An unknown station fails before the move is attempted.
	_, err := h.Handle(context.Background(), MovePlayerCommand{PlayerID: "p1", StationID: 42, RollValue: 10})
	assert.ErrorIs(t, err, shared.ErrStationNotFound)

	// A pin that disagrees with where the player lands also fails, and
	// nothing is consumed or recorded.
	_, err = h.Handle(context.Background(), MovePlayerCommand{PlayerID: "p1", StationID: 3, RollValue: 10})
	assert.ErrorIs(t, err, shared.ErrStationNotFound)

	state, err := repo.GetByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, state.MovesRemaining)
	assert.Equal(t, 1, state.BoardPosition)

	// Pinning the station the move actually lands on succeeds.
	result, err := h.Handle(context.Background(), MovePlayerCommand{PlayerID: "p1", StationID: 2, RollValue: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, result.NewPosition)
}

func TestMovePlayer_FailedCommitRollsBackMove(t *testing.T) {
	repo := newFakePlayerRepo()
	history := newFakeRollHistory()
	log := newFakeActivityLog()
	seedPlayer(repo, "p1")
	grantMoves(t, repo, "p1", 1)

	store := newFakeProgressStore(repo, log, history)
	store.failCommitsLeft = 1
	h := NewMovePlayerHandler(repo, testBoard(), store, newFakePublisher(), NewPlayerLocks())

	_, err := h.Handle(context.Background(), MovePlayerCommand{PlayerID: "p1", RollValue: 10})
	require.Error(t, err)

	// Nothing landed: the move budget, position, roll history, and log
	// are all untouched.
	state, err := repo.GetByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, state.MovesRemaining)
	assert.Equal(t, 1, state.BoardPosition)
	assert.Empty(t, history.outcomes)
	assert.Equal(t, 0, log.count())

	// The move can simply be replayed.
	result, err := h.Handle(context.Background(), MovePlayerCommand{PlayerID: "p1", RollValue: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, result.NewPosition)
	assert.Len(t, history.outcomes, 1)
}

func TestMovePlayer_RetriesVersionConflict(t *testing.T) {
	repo := newFakePlayerRepo()
	history := newFakeRollHistory()
	seedPlayer(repo, "p1")
	grantMoves(t, repo, "p1", 1)
	repo.failSavesLeft = 1

	h := newMoveHandler(repo, testBoard(), history, newFakeActivityLog(), newFakePublisher())

	result, err := h.Handle(context.Background(), MovePlayerCommand{PlayerID: "p1", RollValue: 10})
	require.NoError(t, err)

	// The retry replays the same dice and commits exactly once.
	assert.Equal(t, 10, result.Outcome.RollValue)
	assert.Len(t, history.outcomes, 1)
}
