// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/olympus-hub/classroom-olympics/internal/domain/award"
	"github.com/olympus-hub/classroom-olympics/internal/domain/player"
	"github.com/olympus-hub/classroom-olympics/internal/domain/shared"
	"github.com/olympus-hub/classroom-olympics/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// APPLY AWARD COMMAND
// Applies one award (xp, gold, moves, or a skill point) to one player.
// Idempotent: an award ID already present in the activity log is a no-op
// reported as AlreadyApplied.
// ══════════════════════════════════════════════════════════════════════════════

// ApplyAwardCommand contains the data to apply a single award.
type ApplyAwardCommand struct {
	// AwardID is the unique idempotency key for this logical action.
	AwardID string

	// Kind is the award kind: xp, gold, moves, or skill-point.
	Kind award.Kind

	// PlayerID is the target player.
	PlayerID string

	// Amount is the positive quantity to grant.
	Amount int

	// QuestID is the quest bucket (required for xp awards).
	QuestID player.QuestID

	// Skill is the skill to raise (required for skill-point awards).
	Skill player.SkillName

	// Description is an optional human-readable reason.
	Description string

	// IssuedBy identifies the instructor or system component issuing the award.
	IssuedBy string

	// CorrelationID for tracing.
	CorrelationID string
}

// toAward converts the command into a domain award.
func (c ApplyAwardCommand) toAward() *award.Award {
	return &award.Award{
		ID:          c.AwardID,
		Kind:        c.Kind,
		TargetID:    c.PlayerID,
		Amount:      c.Amount,
		QuestID:     c.QuestID,
		Skill:       c.Skill,
		Description: c.Description,
		IssuedBy:    c.IssuedBy,
		IssuedAt:    time.Now().UTC(),
	}
}

// ApplyAwardResult contains the result of applying an award.
type ApplyAwardResult struct {
	// AwardID is the idempotency key that was applied (or found applied).
	AwardID string

	// PlayerID is the target player.
	PlayerID string

	// AlreadyApplied indicates the award was a duplicate and nothing changed.
	AlreadyApplied bool

	// Deltas is what the award changed on the player.
	Deltas award.Deltas

	// TotalXP is the player's total XP after the award.
	TotalXP int

	// Level is the player's level after the award.
	Level int

	// LevelledUp indicates the derived level increased.
	LevelledUp bool

	// ResultVersion is the player state version after the award.
	ResultVersion int64

	// Events contains domain events generated.
	Events []shared.Event

	// AppliedAt is when the award was committed.
	AppliedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// ApplyAwardHandler handles the ApplyAwardCommand.
type ApplyAwardHandler struct {
	playerRepo     player.Repository
	activityLog    award.ActivityLog
	store          ProgressStore
	eventPublisher shared.EventPublisher
	locks          *PlayerLocks
	conflicts      *retry.Retrier

	// amountCeiling bounds a single award amount.
	amountCeiling int
}

// ApplyAwardHandlerConfig contains configuration for the handler.
type ApplyAwardHandlerConfig struct {
	// AmountCeiling bounds a single award amount. Zero means the default.
	AmountCeiling int
}

// NewApplyAwardHandler creates a new ApplyAwardHandler.
func NewApplyAwardHandler(
	playerRepo player.Repository,
	activityLog award.ActivityLog,
	store ProgressStore,
	eventPublisher shared.EventPublisher,
	locks *PlayerLocks,
	config ApplyAwardHandlerConfig,
) *ApplyAwardHandler {
	if config.AmountCeiling <= 0 {
		config.AmountCeiling = award.DefaultAmountCeiling
	}

	return &ApplyAwardHandler{
		playerRepo:     playerRepo,
		activityLog:    activityLog,
		store:          store,
		eventPublisher: eventPublisher,
		locks:          locks,
		conflicts:      retry.ConflictRetrier(),
		amountCeiling:  config.AmountCeiling,
	}
}

// Handle executes the apply award command.
func (h *ApplyAwardHandler) Handle(ctx context.Context, cmd ApplyAwardCommand) (*ApplyAwardResult, error) {
	a := cmd.toAward()
	if err := a.ValidateWithCeiling(h.amountCeiling); err != nil {
		return nil, fmt.Errorf("apply_award: validation failed: %w", err)
	}

	// Serialize all mutations for this player within the process.
	defer h.locks.Lock(a.TargetID)()

	// Duplicate check: the activity log is the idempotency record.
	existing, err := h.activityLog.FindByAwardID(ctx, a.TargetID, a.ID)
	if err != nil && !shared.IsNotFound(err) {
		return nil, fmt.Errorf("apply_award: idempotency check failed: %w", err)
	}
	if existing != nil {
		return h.duplicateResult(a, existing), nil
	}

	result, err := h.applyOnce(ctx, a, cmd.CorrelationID)
	if err != nil {
		return nil, err
	}

	for _, event := range result.Events {
		_ = h.eventPublisher.Publish(event)
	}

	return result, nil
}

// duplicateResult builds the no-op result for an already applied award.
func (h *ApplyAwardHandler) duplicateResult(a *award.Award, entry *award.LogEntry) *ApplyAwardResult {
	return &ApplyAwardResult{
		AwardID:        a.ID,
		PlayerID:       a.TargetID,
		AlreadyApplied: true,
		Deltas:         entry.Deltas,
		ResultVersion:  entry.ResultVersion,
		AppliedAt:      entry.AppliedAt,
	}
}

// applyOnce loads the player, applies the award, and commits with a bounded
// retry on version conflicts from competing processes.
func (h *ApplyAwardHandler) applyOnce(ctx context.Context, a *award.Award, correlationID string) (*ApplyAwardResult, error) {
	var result *ApplyAwardResult

	err := h.conflicts.Do(ctx, func(ctx context.Context) error {
		state, err := h.playerRepo.GetByID(ctx, a.TargetID)
		if err != nil {
			return retry.Permanent(fmt.Errorf("apply_award: failed to get player: %w", err))
		}

		oldLevel := state.CurrentLevel

		deltas, err := applyAwardToState(state, a)
		if err != nil {
			return retry.Permanent(fmt.Errorf("apply_award: %w", err))
		}
		deltas.OldLevel = oldLevel
		deltas.NewLevel = state.CurrentLevel

		expectedVersion := state.Version
		state.Version++

		appliedAt := time.Now().UTC()
		entry, err := award.NewLogEntry(uuid.NewString(), a, deltas, state.Version, appliedAt)
		if err != nil {
			return retry.Permanent(err)
		}

		// The state update and its log entry commit together. A failed
		// commit leaves no trace, so a retry of the same award ID starts
		// from the unchanged player.
		if err := h.store.CommitAward(ctx, state, expectedVersion, []*award.LogEntry{entry}); err != nil {
			if errors.Is(err, shared.ErrPlayerStaleVersion) {
				return retry.Retryable(err)
			}
			return retry.Permanent(fmt.Errorf("apply_award: failed to commit award: %w", err))
		}

		result = &ApplyAwardResult{
			AwardID:       a.ID,
			PlayerID:      a.TargetID,
			Deltas:        deltas,
			TotalXP:       int(state.TotalXP),
			Level:         int(state.CurrentLevel),
			LevelledUp:    state.CurrentLevel > oldLevel,
			ResultVersion: state.Version,
			AppliedAt:     appliedAt,
			Events:        buildAwardEvents(a, state, oldLevel, correlationID),
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// applyAwardToState mutates the player state according to the award kind.
// Uniform over kinds: no call site ever branches on the kind itself.
func applyAwardToState(state *player.State, a *award.Award) (award.Deltas, error) {
	switch a.Kind {
	case award.KindXP:
		if err := state.AddQuestXP(a.QuestID, player.XP(a.Amount)); err != nil {
			return award.Deltas{}, err
		}
		return award.Deltas{XP: a.Amount, QuestID: a.QuestID}, nil

	case award.KindGold:
		if err := state.AddGold(player.Gold(a.Amount)); err != nil {
			return award.Deltas{}, err
		}
		return award.Deltas{Gold: a.Amount}, nil

	case award.KindMoves:
		if err := state.AddMoves(a.Amount); err != nil {
			return award.Deltas{}, err
		}
		return award.Deltas{Moves: a.Amount}, nil

	case award.KindSkillPoint:
		// The skill cap clamps the delta; a clamped-to-zero grant still
		// counts as applied, matching the original classroom rules.
		delta, err := state.Skills.Increment(a.Skill, a.Amount)
		if err != nil {
			return award.Deltas{}, err
		}
		return award.Deltas{SkillDelta: delta, Skill: a.Skill}, nil

	default:
		return award.Deltas{}, award.ErrInvalidKind
	}
}

// buildAwardEvents collects the domain events for a committed award.
func buildAwardEvents(a *award.Award, state *player.State, oldLevel player.Level, correlationID string) []shared.Event {
	events := make([]shared.Event, 0, 3)

	applied := shared.NewAwardAppliedEvent(a.ID, a.TargetID, a.Kind.String(), a.Amount, a.IssuedBy)
	if correlationID != "" {
		applied.BaseEvent = applied.BaseEvent.WithCorrelationID(correlationID)
	}
	events = append(events, applied)

	if a.Kind == award.KindXP {
		events = append(events, shared.NewXPGainedEvent(
			a.TargetID, a.QuestID.String(), a.Amount, int(state.TotalXP),
		))
	}

	if state.CurrentLevel > oldLevel {
		events = append(events, shared.NewLevelUpEvent(
			a.TargetID, int(oldLevel), int(state.CurrentLevel), int(state.TotalXP),
		))
	}

	return events
}
