package player

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSkills_AllAtMinimum(t *testing.T) {
	s := NewSkills()

	for _, name := range AllSkills() {
		level, err := s.Level(name)
		require.NoError(t, err)
		assert.Equal(t, SkillMin, level, "skill %s", name)
	}
	assert.NoError(t, s.Validate())
}

func TestSkills_Increment(t *testing.T) {
	s := NewSkills()

	delta, err := s.Increment(SkillTactics, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, delta)
	assert.Equal(t, 3, s.Tactics)

	// Clamps at SkillMax and reports the effective delta.
	delta, err = s.Increment(SkillTactics, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, delta)
	assert.Equal(t, SkillMax, s.Tactics)

	// At the cap the delta is zero.
	delta, err = s.Increment(SkillTactics, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, delta)

	_, err = s.Increment("juggling", 1)
	assert.ErrorIs(t, err, ErrUnknownSkill)

	_, err = s.Increment(SkillSpeed, 0)
	assert.ErrorIs(t, err, ErrSkillOutOfRange)
}

func TestSkills_Validate(t *testing.T) {
	s := NewSkills()
	s.Climbing = 6
	assert.ErrorIs(t, s.Validate(), ErrSkillOutOfRange)

	s.Climbing = 0
	assert.ErrorIs(t, s.Validate(), ErrSkillOutOfRange)
}

func TestSkillsFromMap(t *testing.T) {
	s, err := SkillsFromMap(map[string]int{
		"strength": 4,
		"speed":    2,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, s.Strength)
	assert.Equal(t, 2, s.Speed)
	assert.Equal(t, SkillMin, s.Endurance)

	_, err = SkillsFromMap(map[string]int{"juggling": 3})
	assert.ErrorIs(t, err, ErrUnknownSkill)

	_, err = SkillsFromMap(map[string]int{"strength": 9})
	assert.ErrorIs(t, err, ErrSkillOutOfRange)
}
