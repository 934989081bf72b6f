package player

import (
	"errors"
	"fmt"
)

// ══════════════════════════════════════════════════════════════════════════════
// SKILLS (Таблица навыков)
// ══════════════════════════════════════════════════════════════════════════════

// SkillName представляет один из пяти навыков игрока.
type SkillName string

const (
	// SkillStrength - сила.
	SkillStrength SkillName = "strength"
	// SkillEndurance - выносливость.
	SkillEndurance SkillName = "endurance"
	// SkillTactics - тактика.
	SkillTactics SkillName = "tactics"
	// SkillClimbing - скалолазание.
	SkillClimbing SkillName = "climbing"
	// SkillSpeed - скорость.
	SkillSpeed SkillName = "speed"
)

// IsValid проверяет, что навык корректен.
func (n SkillName) IsValid() bool {
	switch n {
	case SkillStrength, SkillEndurance, SkillTactics, SkillClimbing, SkillSpeed:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление навыка.
func (n SkillName) String() string {
	return string(n)
}

// AllSkills возвращает все навыки в каноническом порядке.
func AllSkills() []SkillName {
	return []SkillName{SkillStrength, SkillEndurance, SkillTactics, SkillClimbing, SkillSpeed}
}

// Границы уровня навыка.
const (
	SkillMin = 1
	SkillMax = 5
)

var (
	// ErrUnknownSkill - неизвестное имя навыка.
	ErrUnknownSkill = errors.New("unknown skill name")

	// ErrSkillOutOfRange - уровень навыка вне диапазона [1,5].
	ErrSkillOutOfRange = errors.New("skill level out of range [1,5]")
)

// Skills хранит уровни пяти навыков игрока. Каждый уровень в диапазоне [1,5].
type Skills struct {
	Strength  int
	Endurance int
	Tactics   int
	Climbing  int
	Speed     int
}

// NewSkills возвращает стартовые навыки (все на минимальном уровне).
func NewSkills() Skills {
	return Skills{
		Strength:  SkillMin,
		Endurance: SkillMin,
		Tactics:   SkillMin,
		Climbing:  SkillMin,
		Speed:     SkillMin,
	}
}

// Level возвращает уровень указанного навыка.
func (s Skills) Level(name SkillName) (int, error) {
	switch name {
	case SkillStrength:
		return s.Strength, nil
	case SkillEndurance:
		return s.Endurance, nil
	case SkillTactics:
		return s.Tactics, nil
	case SkillClimbing:
		return s.Climbing, nil
	case SkillSpeed:
		return s.Speed, nil
	default:
		return 0, ErrUnknownSkill
	}
}

// Increment повышает навык на amount, не выше SkillMax.
// Возвращает фактическую дельту (0, если навык уже на максимуме).
func (s *Skills) Increment(name SkillName, amount int) (delta int, err error) {
	if amount <= 0 {
		return 0, ErrSkillOutOfRange
	}

	current, err := s.Level(name)
	if err != nil {
		return 0, err
	}

	next := current + amount
	if next > SkillMax {
		next = SkillMax
	}

	switch name {
	case SkillStrength:
		s.Strength = next
	case SkillEndurance:
		s.Endurance = next
	case SkillTactics:
		s.Tactics = next
	case SkillClimbing:
		s.Climbing = next
	case SkillSpeed:
		s.Speed = next
	}

	return next - current, nil
}

// Validate проверяет, что все навыки в диапазоне [1,5].
func (s Skills) Validate() error {
	for _, name := range AllSkills() {
		level, err := s.Level(name)
		if err != nil {
			return err
		}
		if level < SkillMin || level > SkillMax {
			return fmt.Errorf("%w: %s=%d", ErrSkillOutOfRange, name, level)
		}
	}
	return nil
}

// ToMap возвращает навыки в виде карты для сериализации.
func (s Skills) ToMap() map[string]int {
	return map[string]int{
		string(SkillStrength):  s.Strength,
		string(SkillEndurance): s.Endurance,
		string(SkillTactics):   s.Tactics,
		string(SkillClimbing):  s.Climbing,
		string(SkillSpeed):     s.Speed,
	}
}

// SkillsFromMap восстанавливает навыки из карты (например, после десериализации).
func SkillsFromMap(m map[string]int) (Skills, error) {
	s := NewSkills()
	for name, level := range m {
		skill := SkillName(name)
		if !skill.IsValid() {
			return Skills{}, fmt.Errorf("%w: %s", ErrUnknownSkill, name)
		}
		switch skill {
		case SkillStrength:
			s.Strength = level
		case SkillEndurance:
			s.Endurance = level
		case SkillTactics:
			s.Tactics = level
		case SkillClimbing:
			s.Climbing = level
		case SkillSpeed:
			s.Speed = level
		}
	}
	if err := s.Validate(); err != nil {
		return Skills{}, err
	}
	return s, nil
}
