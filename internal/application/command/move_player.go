package command

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/olympus-hub/classroom-olympics/internal/domain/award"
	"github.com/olympus-hub/classroom-olympics/internal/domain/gameboard"
	"github.com/olympus-hub/classroom-olympics/internal/domain/player"
	"github.com/olympus-hub/classroom-olympics/internal/domain/shared"
	"github.com/olympus-hub/classroom-olympics/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// MOVE PLAYER COMMAND
// Consumes one board move, advances the player, and resolves the skill check
// at the station the player lands on. A failed check still consumes the move;
// a successful one grants the station rewards in the same commit.
// ══════════════════════════════════════════════════════════════════════════════

// MovePlayerCommand contains the data to execute one board move.
type MovePlayerCommand struct {
	// PlayerID is the player making the move.
	PlayerID string

	// StationID optionally pins the station this move must land on.
	// Zero means no expectation. A pinned station that does not exist,
	// or does not match where the player actually lands, fails the move
	// before anything is committed.
	StationID int

	// RollValue is a pre-supplied roll in [0,100). Negative means the
	// handler rolls itself. Supplied values make replays deterministic.
	RollValue int

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c MovePlayerCommand) Validate() error {
	if c.PlayerID == "" {
		return errors.New("move_player: player_id is required")
	}
	if c.RollValue >= 100 {
		return gameboard.ErrRollValueOutOfRange
	}
	return nil
}

// MovePlayerResult contains the outcome of a board move.
type MovePlayerResult struct {
	// PlayerID is the player who moved.
	PlayerID string

	// Outcome is the immutable roll record.
	Outcome *gameboard.RollOutcome

	// StationName is the name of the station the player landed on.
	StationName string

	// SkillUsed is the skill the station checked.
	SkillUsed player.SkillName

	// NewPosition is the board position after the move.
	NewPosition int

	// MovesRemaining is the move budget after the move.
	MovesRemaining int

	// TotalXP is the player's total XP after rewards.
	TotalXP int

	// Level is the player's level after rewards.
	Level int

	// ResultVersion is the player state version after the commit.
	ResultVersion int64

	// Events contains domain events generated.
	Events []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// MovePlayerHandler handles the MovePlayerCommand. The handler drives the
// per-move phase machine: Idle -> AwaitingRoll -> Resolving -> Idle.
type MovePlayerHandler struct {
	playerRepo     player.Repository
	stationRepo    gameboard.StationRepository
	store          ProgressStore
	eventPublisher shared.EventPublisher
	locks          *PlayerLocks
	conflicts      *retry.Retrier

	// roll produces a value in [0,100). Injected for tests.
	roll func() int
}

// NewMovePlayerHandler creates a new MovePlayerHandler.
func NewMovePlayerHandler(
	playerRepo player.Repository,
	stationRepo gameboard.StationRepository,
	store ProgressStore,
	eventPublisher shared.EventPublisher,
	locks *PlayerLocks,
) *MovePlayerHandler {
	return &MovePlayerHandler{
		playerRepo:     playerRepo,
		stationRepo:    stationRepo,
		store:          store,
		eventPublisher: eventPublisher,
		locks:          locks,
		conflicts:      retry.ConflictRetrier(),
		roll:           func() int { return rand.Intn(100) },
	}
}

// WithRollFunc overrides the roll source. Used by tests and replays.
func (h *MovePlayerHandler) WithRollFunc(roll func() int) *MovePlayerHandler {
	h.roll = roll
	return h
}

// Handle executes the move player command.
func (h *MovePlayerHandler) Handle(ctx context.Context, cmd MovePlayerCommand) (*MovePlayerResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	defer h.locks.Lock(cmd.PlayerID)()

	// A pinned station must exist before the move is even attempted.
	if cmd.StationID != 0 {
		if _, err := h.stationRepo.GetByID(ctx, cmd.StationID); err != nil {
			return nil, fmt.Errorf("move_player: station %d: %w", cmd.StationID, err)
		}
	}

	boardLength, err := h.stationRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("move_player: failed to size the board: %w", err)
	}
	if boardLength == 0 {
		return nil, gameboard.ErrUnknownStation
	}

	// The roll value is fixed before the commit loop so a version-conflict
	// retry replays the same dice.
	rollValue := cmd.RollValue
	if rollValue < 0 {
		rollValue = h.roll()
	}
	rollID := uuid.NewString()

	progression := gameboard.NewProgression(cmd.PlayerID)

	var result *MovePlayerResult
	err = h.conflicts.Do(ctx, func(ctx context.Context) error {
		progression.Abort() // reset to Idle on a retry pass

		r, err := h.resolveMove(ctx, cmd, progression, boardLength, rollID, rollValue)
		if err != nil {
			progression.Abort()
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, event := range result.Events {
		_ = h.eventPublisher.Publish(event)
	}

	return result, nil
}

// resolveMove runs one full move attempt against the current player state.
func (h *MovePlayerHandler) resolveMove(
	ctx context.Context,
	cmd MovePlayerCommand,
	progression *gameboard.Progression,
	boardLength int,
	rollID string,
	rollValue int,
) (*MovePlayerResult, error) {
	state, err := h.playerRepo.GetByID(ctx, cmd.PlayerID)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("move_player: failed to get player: %w", err))
	}

	oldPosition := state.BoardPosition
	oldLevel := state.CurrentLevel

	if err := state.ConsumeMove(); err != nil {
		return nil, retry.Permanent(fmt.Errorf("move_player: %w", err))
	}
	if err := progression.BeginMove(); err != nil {
		return nil, retry.Permanent(err)
	}

	state.AdvanceBoard(gameboard.BoardStep, boardLength)

	station, err := h.stationRepo.GetByID(ctx, state.BoardPosition)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("move_player: failed to get station %d: %w", state.BoardPosition, err))
	}

	// A pinned station that is not where the player lands means the caller
	// is acting on a stale view of the board. Nothing has committed yet.
	if cmd.StationID != 0 && cmd.StationID != station.ID {
		return nil, retry.Permanent(fmt.Errorf(
			"move_player: move lands on station %d, not %d: %w",
			station.ID, cmd.StationID, shared.ErrStationNotFound,
		))
	}

	skillLevel, err := state.Skills.Level(station.RequiredSkill)
	if err != nil {
		return nil, retry.Permanent(err)
	}

	if err := progression.SubmitRoll(); err != nil {
		return nil, retry.Permanent(err)
	}

	outcome, err := gameboard.Resolve(skillLevel, station, rollValue)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("move_player: %w", err))
	}
	outcome.ID = rollID
	outcome.PlayerID = cmd.PlayerID
	outcome.RolledAt = time.Now().UTC()

	// Rewards are applied in the same commit as the move itself, via the
	// uniform award path, so the activity log explains every state change.
	rewardAwards := rewardAwardsFor(outcome, station)
	deltas := make([]award.Deltas, 0, len(rewardAwards))
	for _, a := range rewardAwards {
		d, err := applyAwardToState(state, a)
		if err != nil {
			return nil, retry.Permanent(fmt.Errorf("move_player: failed to apply reward: %w", err))
		}
		d.OldLevel = oldLevel
		d.NewLevel = state.CurrentLevel
		deltas = append(deltas, d)
	}

	expectedVersion := state.Version
	state.Version++

	appliedAt := time.Now().UTC()
	entries := make([]*award.LogEntry, 0, len(rewardAwards))
	for i, a := range rewardAwards {
		entry, err := award.NewLogEntry(uuid.NewString(), a, deltas[i], state.Version, appliedAt)
		if err != nil {
			return nil, retry.Permanent(err)
		}
		entries = append(entries, entry)
	}

	// The move, the roll record, and the reward log entries land in one
	// commit. A failure rolls everything back, including the consumed move.
	if err := h.store.CommitMove(ctx, state, expectedVersion, outcome, entries); err != nil {
		if errors.Is(err, shared.ErrPlayerStaleVersion) {
			return nil, retry.Retryable(err)
		}
		return nil, retry.Permanent(fmt.Errorf("move_player: failed to commit move: %w", err))
	}

	if err := progression.Complete(); err != nil {
		return nil, retry.Permanent(err)
	}

	return &MovePlayerResult{
		PlayerID:       cmd.PlayerID,
		Outcome:        outcome,
		StationName:    station.Name,
		SkillUsed:      station.RequiredSkill,
		NewPosition:    state.BoardPosition,
		MovesRemaining: state.MovesRemaining,
		TotalXP:        int(state.TotalXP),
		Level:          int(state.CurrentLevel),
		ResultVersion:  state.Version,
		Events: buildMoveEvents(
			cmd, state, outcome, oldPosition, oldLevel, rewardAwards,
		),
	}, nil
}

// rewardAwardsFor materializes the synthetic awards a successful roll grants.
// Award IDs derive from the roll ID, so a conflict retry re-derives the same
// awards instead of minting new ones.
func rewardAwardsFor(outcome *gameboard.RollOutcome, station *gameboard.Station) []*award.Award {
	if !outcome.Succeeded || outcome.Rewards.IsEmpty() {
		return nil
	}

	issuedAt := time.Now().UTC()
	awards := make([]*award.Award, 0, 2)

	if outcome.Rewards.XP > 0 {
		awards = append(awards, &award.Award{
			ID:          DeriveAwardID("roll:"+outcome.ID, "xp"),
			Kind:        award.KindXP,
			TargetID:    outcome.PlayerID,
			Amount:      outcome.Rewards.XP,
			QuestID:     station.RewardQuest,
			Description: fmt.Sprintf("station %q check passed", station.Name),
			IssuedBy:    "gameboard",
			IssuedAt:    issuedAt,
		})
	}
	if outcome.Rewards.Gold > 0 {
		awards = append(awards, &award.Award{
			ID:          DeriveAwardID("roll:"+outcome.ID, "gold"),
			Kind:        award.KindGold,
			TargetID:    outcome.PlayerID,
			Amount:      outcome.Rewards.Gold,
			Description: fmt.Sprintf("station %q check passed", station.Name),
			IssuedBy:    "gameboard",
			IssuedAt:    issuedAt,
		})
	}

	return awards
}

// buildMoveEvents collects the domain events for a committed move.
func buildMoveEvents(
	cmd MovePlayerCommand,
	state *player.State,
	outcome *gameboard.RollOutcome,
	oldPosition int,
	oldLevel player.Level,
	rewardAwards []*award.Award,
) []shared.Event {
	events := make([]shared.Event, 0, 4)

	resolved := shared.NewRollResolvedEvent(
		cmd.PlayerID, outcome.StationID, outcome.RollValue, outcome.SuccessChance, outcome.Succeeded,
	)
	if cmd.CorrelationID != "" {
		resolved.BaseEvent = resolved.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	events = append(events, resolved)

	events = append(events, shared.NewPlayerAdvancedEvent(
		cmd.PlayerID, oldPosition, state.BoardPosition, state.MovesRemaining,
	))

	for _, a := range rewardAwards {
		events = append(events, shared.NewAwardAppliedEvent(
			a.ID, a.TargetID, a.Kind.String(), a.Amount, a.IssuedBy,
		))
		if a.Kind == award.KindXP {
			events = append(events, shared.NewXPGainedEvent(
				a.TargetID, a.QuestID.String(), a.Amount, int(state.TotalXP),
			))
		}
	}

	if state.CurrentLevel > oldLevel {
		events = append(events, shared.NewLevelUpEvent(
			cmd.PlayerID, int(oldLevel), int(state.CurrentLevel), int(state.TotalXP),
		))
	}

	return events
}
