package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olympus-hub/classroom-olympics/internal/domain/award"
	"github.com/olympus-hub/classroom-olympics/internal/domain/player"
	"github.com/olympus-hub/classroom-olympics/internal/domain/shared"
)

func newApplyHandler(repo *fakePlayerRepo, log *fakeActivityLog, pub *fakePublisher) *ApplyAwardHandler {
	store := newFakeProgressStore(repo, log, newFakeRollHistory())
	return NewApplyAwardHandler(repo, log, store, pub, NewPlayerLocks(), ApplyAwardHandlerConfig{})
}

func TestApplyAward_XP(t *testing.T) {
	repo := newFakePlayerRepo()
	log := newFakeActivityLog()
	pub := newFakePublisher()
	seedPlayer(repo, "p1")

	h := newApplyHandler(repo, log, pub)

	result, err := h.Handle(context.Background(), ApplyAwardCommand{
		AwardID:  "award-1",
		Kind:     award.KindXP,
		PlayerID: "p1",
		Amount:   120,
		QuestID:  "sprint",
		IssuedBy: "instructor:alia",
	})
	require.NoError(t, err)

	assert.False(t, result.AlreadyApplied)
	assert.Equal(t, 120, result.TotalXP)
	assert.Equal(t, 120, result.Deltas.XP)
	assert.Equal(t, int64(2), result.ResultVersion)

	state, err := repo.GetByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, player.XP(120), state.PerQuestXP["sprint"])
	assert.NoError(t, state.CheckInvariants())

	assert.Equal(t, 1, log.count())
	assert.Contains(t, pub.eventTypes(), shared.EventAwardApplied)
	assert.Contains(t, pub.eventTypes(), shared.EventXPGained)
	assert.NotContains(t, pub.eventTypes(), shared.EventLevelUp)
}

func TestApplyAward_LevelUpEvent(t *testing.T) {
	repo := newFakePlayerRepo()
	pub := newFakePublisher()
	seedPlayer(repo, "p1")

	h := newApplyHandler(repo, newFakeActivityLog(), pub)

	result, err := h.Handle(context.Background(), ApplyAwardCommand{
		AwardID:  "award-1",
		Kind:     award.KindXP,
		PlayerID: "p1",
		Amount:   250,
		QuestID:  "sprint",
		IssuedBy: "instructor:alia",
	})
	require.NoError(t, err)

	assert.True(t, result.LevelledUp)
	assert.Equal(t, 2, result.Level)
	assert.Contains(t, pub.eventTypes(), shared.EventLevelUp)
}

func TestApplyAward_Idempotent(t *testing.T) {
	repo := newFakePlayerRepo()
	log := newFakeActivityLog()
	seedPlayer(repo, "p1")

	h := newApplyHandler(repo, log, newFakePublisher())

	cmd := ApplyAwardCommand{
		AwardID:  "award-1",
		Kind:     award.KindGold,
		PlayerID: "p1",
		Amount:   10,
		IssuedBy: "instructor:alia",
	}

	first, err := h.Handle(context.Background(), cmd)
	require.NoError(t, err)
	require.False(t, first.AlreadyApplied)

	second, err := h.Handle(context.Background(), cmd)
	require.NoError(t, err)
	assert.True(t, second.AlreadyApplied)
	assert.Equal(t, first.Deltas, second.Deltas)
	assert.Equal(t, first.ResultVersion, second.ResultVersion)

	// The replay must not touch state or grow the log.
	state, err := repo.GetByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, player.Gold(13), state.Gold)
	assert.Equal(t, int64(2), state.Version)
	assert.Equal(t, 1, log.count())
}

func TestApplyAward_SkillClampStillApplies(t *testing.T) {
	repo := newFakePlayerRepo()
	log := newFakeActivityLog()
	seedPlayer(repo, "p1")

	h := newApplyHandler(repo, log, newFakePublisher())

	result, err := h.Handle(context.Background(), ApplyAwardCommand{
		AwardID:  "award-1",
		Kind:     award.KindSkillPoint,
		PlayerID: "p1",
		Amount:   10,
		Skill:    player.SkillSpeed,
		IssuedBy: "instructor:alia",
	})
	require.NoError(t, err)

	// Amount 10 clamps to the skill cap; the delta reflects what landed.
	assert.Equal(t, 4, result.Deltas.SkillDelta)

	state, _ := repo.GetByID(context.Background(), "p1")
	assert.Equal(t, player.SkillMax, state.Skills.Speed)

	// A further grant at the cap is a zero-delta application, not an error.
	result, err = h.Handle(context.Background(), ApplyAwardCommand{
		AwardID:  "award-2",
		Kind:     award.KindSkillPoint,
		PlayerID: "p1",
		Amount:   1,
		Skill:    player.SkillSpeed,
		IssuedBy: "instructor:alia",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Deltas.SkillDelta)
	assert.Equal(t, 2, log.count())
}

func TestApplyAward_ValidationFailures(t *testing.T) {
	repo := newFakePlayerRepo()
	seedPlayer(repo, "p1")
	h := newApplyHandler(repo, newFakeActivityLog(), newFakePublisher())

	_, err := h.Handle(context.Background(), ApplyAwardCommand{
		AwardID:  "a1",
		Kind:     award.KindXP,
		PlayerID: "p1",
		Amount:   100,
		IssuedBy: "i",
	})
	assert.ErrorIs(t, err, award.ErrQuestRequired)

	_, err = h.Handle(context.Background(), ApplyAwardCommand{
		AwardID:  "a1",
		Kind:     award.KindGold,
		PlayerID: "p1",
		Amount:   award.DefaultAmountCeiling + 1,
		IssuedBy: "i",
	})
	assert.ErrorIs(t, err, award.ErrAmountTooLarge)
}

func TestApplyAward_PlayerNotFound(t *testing.T) {
	h := newApplyHandler(newFakePlayerRepo(), newFakeActivityLog(), newFakePublisher())

	_, err := h.Handle(context.Background(), ApplyAwardCommand{
		AwardID:  "a1",
		Kind:     award.KindGold,
		PlayerID: "ghost",
		Amount:   5,
		IssuedBy: "i",
	})
	assert.True(t, shared.IsNotFound(err))
}

func TestApplyAward_RetriesVersionConflict(t *testing.T) {
	repo := newFakePlayerRepo()
	seedPlayer(repo, "p1")
	repo.failSavesLeft = 1

	h := newApplyHandler(repo, newFakeActivityLog(), newFakePublisher())

	result, err := h.Handle(context.Background(), ApplyAwardCommand{
		AwardID:  "a1",
		Kind:     award.KindGold,
		PlayerID: "p1",
		Amount:   5,
		IssuedBy: "i",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.ResultVersion)

	state, _ := repo.GetByID(context.Background(), "p1")
	assert.Equal(t, player.Gold(8), state.Gold)
}

func TestApplyAward_FailedCommitLeavesNoPartialState(t *testing.T) {
	repo := newFakePlayerRepo()
	log := newFakeActivityLog()
	seedPlayer(repo, "p1")

	store := newFakeProgressStore(repo, log, newFakeRollHistory())
	store.failCommitsLeft = 1
	h := NewApplyAwardHandler(repo, log, store, newFakePublisher(), NewPlayerLocks(), ApplyAwardHandlerConfig{})

	cmd := ApplyAwardCommand{
		AwardID:  "award-1",
		Kind:     award.KindXP,
		PlayerID: "p1",
		Amount:   100,
		QuestID:  "sprint",
		IssuedBy: "instructor:alia",
	}

	_, err := h.Handle(context.Background(), cmd)
	require.Error(t, err)

	// The rolled-back attempt left neither state change nor log entry.
	state, err := repo.GetByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, player.XP(0), state.TotalXP)
	assert.Equal(t, int64(1), state.Version)
	assert.Equal(t, 0, log.count())

	// Retrying the same award ID lands it exactly once.
	result, err := h.Handle(context.Background(), cmd)
	require.NoError(t, err)
	assert.False(t, result.AlreadyApplied)
	assert.Equal(t, 100, result.TotalXP)

	state, err = repo.GetByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, player.XP(100), state.TotalXP)
	assert.Equal(t, int64(2), state.Version)
	assert.Equal(t, 1, log.count())
}

func TestApplyAward_GivesUpAfterRepeatedConflicts(t *testing.T) {
	repo := newFakePlayerRepo()
	seedPlayer(repo, "p1")
	repo.failSavesLeft = 100

	h := newApplyHandler(repo, newFakeActivityLog(), newFakePublisher())

	_, err := h.Handle(context.Background(), ApplyAwardCommand{
		AwardID:  "a1",
		Kind:     award.KindGold,
		PlayerID: "p1",
		Amount:   5,
		IssuedBy: "i",
	})
	assert.True(t, shared.IsConflict(err))
}
