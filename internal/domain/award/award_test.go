package award

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olympus-hub/classroom-olympics/internal/domain/player"
)

func TestNew_Valid(t *testing.T) {
	a, err := New("award-1", KindGold, "player-1", 5, "instructor:alia")
	require.NoError(t, err)

	assert.Equal(t, "award-1", a.ID)
	assert.Equal(t, KindGold, a.Kind)
	assert.Equal(t, 5, a.Amount)
	assert.False(t, a.IssuedAt.IsZero())
}

func TestValidate_KindSpecificRequirements(t *testing.T) {
	// xp awards need a quest bucket.
	_, err := New("a1", KindXP, "p1", 100, "instructor:alia")
	assert.ErrorIs(t, err, ErrQuestRequired)

	a := &Award{ID: "a1", Kind: KindXP, TargetID: "p1", Amount: 100, IssuedBy: "i"}
	a.WithQuest("sprint")
	assert.NoError(t, a.Validate())

	// skill-point awards need a skill.
	_, err = New("a2", KindSkillPoint, "p1", 1, "instructor:alia")
	assert.ErrorIs(t, err, ErrSkillRequired)

	b := &Award{ID: "a2", Kind: KindSkillPoint, TargetID: "p1", Amount: 1, IssuedBy: "i"}
	b.WithSkill(player.SkillSpeed)
	assert.NoError(t, b.Validate())

	// gold and moves have no extra requirements.
	_, err = New("a3", KindMoves, "p1", 3, "instructor:alia")
	assert.NoError(t, err)
}

func TestValidate_StructuralErrors(t *testing.T) {
	_, err := New("", KindGold, "p1", 5, "i")
	assert.ErrorIs(t, err, ErrInvalidAwardID)

	_, err = New("a1", KindGold, "", 5, "i")
	assert.ErrorIs(t, err, ErrInvalidPlayerID)

	_, err = New("a1", "stickers", "p1", 5, "i")
	assert.ErrorIs(t, err, ErrInvalidKind)

	_, err = New("a1", KindGold, "p1", 0, "i")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = New("a1", KindGold, "p1", -2, "i")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = New("a1", KindGold, "p1", 5, "")
	assert.ErrorIs(t, err, ErrIssuerRequired)
}

func TestValidate_Ceiling(t *testing.T) {
	_, err := New("a1", KindGold, "p1", DefaultAmountCeiling+1, "i")
	assert.ErrorIs(t, err, ErrAmountTooLarge)

	_, err = New("a1", KindGold, "p1", DefaultAmountCeiling, "i")
	assert.NoError(t, err)

	a := &Award{ID: "a1", Kind: KindGold, TargetID: "p1", Amount: 500, IssuedBy: "i"}
	assert.ErrorIs(t, a.ValidateWithCeiling(100), ErrAmountTooLarge)

	// Ceiling of zero disables the bound.
	assert.NoError(t, a.ValidateWithCeiling(0))
}

func TestTemplate_Validate(t *testing.T) {
	tpl := Template{
		ID:       "tpl-1",
		Kind:     KindXP,
		Amount:   100,
		QuestID:  "sprint",
		IssuedBy: "instructor:alia",
	}
	assert.NoError(t, tpl.Validate())

	tpl.QuestID = ""
	assert.ErrorIs(t, tpl.Validate(), ErrQuestRequired)

	tpl.Kind = KindGold
	tpl.Amount = 0
	assert.ErrorIs(t, tpl.Validate(), ErrInvalidAmount)
}

func TestTemplate_Materialize(t *testing.T) {
	tpl := Template{
		ID:          "tpl-1",
		Kind:        KindXP,
		Amount:      100,
		QuestID:     "sprint",
		Description: "week one bonus",
		IssuedBy:    "instructor:alia",
	}

	a := tpl.Materialize("derived-id", "player-9")
	assert.Equal(t, "derived-id", a.ID)
	assert.Equal(t, "player-9", a.TargetID)
	assert.Equal(t, tpl.Kind, a.Kind)
	assert.Equal(t, tpl.Amount, a.Amount)
	assert.Equal(t, tpl.QuestID, a.QuestID)
	assert.Equal(t, tpl.Description, a.Description)
	assert.NoError(t, a.Validate())
}
