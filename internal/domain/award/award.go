// Package award contains domain entities and business logic for
// instructor- and system-issued awards: XP, gold, board moves, and skill points.
// This is a pure domain layer with zero external dependencies.
package award

import (
	"errors"
	"fmt"
	"time"

	"github.com/olympus-hub/classroom-olympics/internal/domain/player"
)

// Domain errors for award package.
var (
	ErrInvalidAwardID  = errors.New("award: invalid award ID")
	ErrInvalidPlayerID = errors.New("award: invalid target player ID")
	ErrInvalidKind     = errors.New("award: unknown award kind")
	ErrInvalidAmount   = errors.New("award: amount must be positive")
	ErrAmountTooLarge  = errors.New("award: amount exceeds the configured ceiling")
	ErrQuestRequired   = errors.New("award: quest is required for xp awards")
	ErrSkillRequired   = errors.New("award: skill is required for skill-point awards")
	ErrIssuerRequired  = errors.New("award: issuer is required")
)

// Kind is the tagged union of award types. Every award is applied uniformly
// by the processor based on its kind - there are no per-call-site branches.
type Kind string

const (
	// KindXP grants experience into one of the player's quest buckets.
	KindXP Kind = "xp"
	// KindGold grants gold.
	KindGold Kind = "gold"
	// KindMoves grants gameboard moves.
	KindMoves Kind = "moves"
	// KindSkillPoint raises one of the five skills (capped at 5).
	KindSkillPoint Kind = "skill-point"
)

// IsValid checks if the kind is one of the known award kinds.
func (k Kind) IsValid() bool {
	switch k {
	case KindXP, KindGold, KindMoves, KindSkillPoint:
		return true
	default:
		return false
	}
}

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// DefaultAmountCeiling bounds a single award to protect against
// fat-fingered instructor input. Configurable via ValidateWithCeiling.
const DefaultAmountCeiling = 10000

// Award is a single grant to one player. It is created by a caller,
// consumed exactly once by the processor, and immutable afterwards.
// The ID must be unique per logical action - it is the idempotency key.
type Award struct {
	ID          string
	Kind        Kind
	TargetID    string
	Amount      int
	QuestID     player.QuestID   // required when Kind == KindXP
	Skill       player.SkillName // required when Kind == KindSkillPoint
	Description string
	IssuedBy    string
	IssuedAt    time.Time
}

// New creates a validated award.
func New(id string, kind Kind, targetID string, amount int, issuedBy string) (*Award, error) {
	a := &Award{
		ID:       id,
		Kind:     kind,
		TargetID: targetID,
		Amount:   amount,
		IssuedBy: issuedBy,
		IssuedAt: time.Now().UTC(),
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// WithQuest sets the quest bucket for xp awards.
func (a *Award) WithQuest(quest player.QuestID) *Award {
	a.QuestID = quest
	return a
}

// WithSkill sets the skill for skill-point awards.
func (a *Award) WithSkill(skill player.SkillName) *Award {
	a.Skill = skill
	return a
}

// WithDescription sets a human-readable description.
func (a *Award) WithDescription(desc string) *Award {
	a.Description = desc
	return a
}

// Validate checks the award against DefaultAmountCeiling.
func (a *Award) Validate() error {
	return a.ValidateWithCeiling(DefaultAmountCeiling)
}

// ValidateWithCeiling checks structural validity and the amount bound.
// Kind-specific requirements: xp needs a quest, skill-point needs a skill.
func (a *Award) ValidateWithCeiling(ceiling int) error {
	if a.ID == "" {
		return ErrInvalidAwardID
	}
	if a.TargetID == "" {
		return ErrInvalidPlayerID
	}
	if !a.Kind.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, a.Kind)
	}
	if a.Amount <= 0 {
		return ErrInvalidAmount
	}
	if ceiling > 0 && a.Amount > ceiling {
		return fmt.Errorf("%w: %d > %d", ErrAmountTooLarge, a.Amount, ceiling)
	}
	if a.IssuedBy == "" {
		return ErrIssuerRequired
	}

	switch a.Kind {
	case KindXP:
		if !a.QuestID.IsValid() {
			return ErrQuestRequired
		}
	case KindSkillPoint:
		if !a.Skill.IsValid() {
			return ErrSkillRequired
		}
	}

	return nil
}

// Template describes a bulk award before it is fanned out to targets.
// Each target receives an Award derived deterministically from the template ID
// and the target ID, so retrying a whole batch is idempotent per player.
type Template struct {
	ID          string
	Kind        Kind
	Amount      int
	QuestID     player.QuestID
	Skill       player.SkillName
	Description string
	IssuedBy    string
}

// Validate checks the template the same way a derived award would be checked,
// so invalid templates fail before any fan-out starts.
func (t Template) Validate() error {
	probe := Award{
		ID:       t.ID,
		Kind:     t.Kind,
		TargetID: "probe",
		Amount:   t.Amount,
		QuestID:  t.QuestID,
		Skill:    t.Skill,
		IssuedBy: t.IssuedBy,
	}
	return probe.Validate()
}

// Materialize builds the concrete award for one target. The award ID is
// supplied by the caller (derived deterministically in the application layer).
func (t Template) Materialize(awardID, targetID string) *Award {
	return &Award{
		ID:          awardID,
		Kind:        t.Kind,
		TargetID:    targetID,
		Amount:      t.Amount,
		QuestID:     t.QuestID,
		Skill:       t.Skill,
		Description: t.Description,
		IssuedBy:    t.IssuedBy,
		IssuedAt:    time.Now().UTC(),
	}
}

// Deltas captures what an applied award actually changed on the player.
// Stored alongside the log entry for audit.
type Deltas struct {
	XP         int              `json:"xp,omitempty"`
	Gold       int              `json:"gold,omitempty"`
	Moves      int              `json:"moves,omitempty"`
	SkillDelta int              `json:"skill_delta,omitempty"`
	Skill      player.SkillName `json:"skill,omitempty"`
	QuestID    player.QuestID   `json:"quest_id,omitempty"`
	OldLevel   player.Level     `json:"old_level,omitempty"`
	NewLevel   player.Level     `json:"new_level,omitempty"`
}

// LogEntry is one append-only activity-log record: the award as issued plus
// the deltas it produced and the resulting player version.
type LogEntry struct {
	ID            string
	AwardID       string
	PlayerID      string
	Kind          Kind
	Amount        int
	Deltas        Deltas
	Description   string
	IssuedBy      string
	AppliedAt     time.Time
	ResultVersion int64
}

// NewLogEntry builds a log entry for an applied award.
func NewLogEntry(entryID string, a *Award, deltas Deltas, resultVersion int64, appliedAt time.Time) (*LogEntry, error) {
	if entryID == "" {
		return nil, errors.New("award: invalid log entry ID")
	}
	if a == nil {
		return nil, errors.New("award: award cannot be nil")
	}

	return &LogEntry{
		ID:            entryID,
		AwardID:       a.ID,
		PlayerID:      a.TargetID,
		Kind:          a.Kind,
		Amount:        a.Amount,
		Deltas:        deltas,
		Description:   a.Description,
		IssuedBy:      a.IssuedBy,
		AppliedAt:     appliedAt,
		ResultVersion: resultVersion,
	}, nil
}
