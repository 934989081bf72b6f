// Package player содержит доменную модель игрока Classroom Olympics.
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package player

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// XP представляет очки опыта игрока.
type XP int

// IsValid проверяет, что XP неотрицательный.
func (x XP) IsValid() bool {
	return x >= 0
}

// Add складывает XP.
func (x XP) Add(delta XP) XP {
	return x + delta
}

// Level представляет уровень игрока, вычисляемый из общего XP.
type Level int

// LevelCap - максимальный уровень в таблице уровней.
const LevelCap Level = 10

// XPPerLevel - сколько XP нужно для одного уровня.
const XPPerLevel = 200

// CalculateLevel вычисляет уровень на основе общего XP.
// Формула: уровень = 1 + totalXP/200, не выше LevelCap.
func CalculateLevel(totalXP XP) Level {
	if totalXP < 0 {
		return 1
	}
	level := Level(1 + int(totalXP)/XPPerLevel)
	if level > LevelCap {
		return LevelCap
	}
	return level
}

// Gold представляет золото игрока.
type Gold int

// IsValid проверяет, что золото неотрицательное.
func (g Gold) IsValid() bool {
	return g >= 0
}

// Rank представляет позицию игрока в общем рейтинге (1 = лучший, 0 = не ранжирован).
type Rank int

// QuestID представляет идентификатор квеста (тематической корзины XP).
type QuestID string

// IsValid проверяет корректность идентификатора квеста.
func (q QuestID) IsValid() bool {
	return q != ""
}

// String возвращает строковое представление квеста.
func (q QuestID) String() string {
	return string(q)
}

// QuestCount - фиксированное количество квестов на игрока.
const QuestCount = 3

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidPlayerID - невалидный идентификатор игрока.
	ErrInvalidPlayerID = errors.New("invalid player id: must not be empty")

	// ErrInvalidXP - невалидное значение XP.
	ErrInvalidXP = errors.New("invalid xp: must be non-negative")

	// ErrInvalidQuest - квест не входит в набор квестов игрока.
	ErrInvalidQuest = errors.New("invalid quest: not one of the player's quest slots")

	// ErrInvalidQuestSet - набор квестов должен содержать ровно три уникальных квеста.
	ErrInvalidQuestSet = errors.New("invalid quest set: exactly three unique quests required")

	// ErrNoMovesRemaining - у игрока не осталось ходов.
	ErrNoMovesRemaining = errors.New("no moves remaining")

	// ErrXPConservation - нарушен инвариант totalXP == sum(perQuestXP).
	ErrXPConservation = errors.New("xp conservation violated: totalXP != sum(perQuestXP)")
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: PLAYER STATE
// ══════════════════════════════════════════════════════════════════════════════

// State - центральная сущность движка, представляющая прогресс одного игрока.
// Инвариант: TotalXP == сумма PerQuestXP; CurrentLevel всегда производный от TotalXP.
type State struct {
	// ID - внутренний уникальный идентификатор (UUID в строковом формате).
	ID string

	// CurrentXP - XP, заработанный в текущем учебном периоде.
	CurrentXP XP

	// TotalXP - суммарный XP за всё время. Всегда равен сумме PerQuestXP.
	TotalXP XP

	// CurrentLevel - уровень, производный от TotalXP (кешируется, пересчитывается
	// при каждом изменении TotalXP).
	CurrentLevel Level

	// CurrentRank - позиция в общем рейтинге (производная, кросс-игровая).
	CurrentRank Rank

	// Gold - золото игрока.
	Gold Gold

	// BoardPosition - текущая позиция на игровом поле (1-based).
	BoardPosition int

	// MovesRemaining - оставшиеся ходы на игровом поле.
	MovesRemaining int

	// PerQuestXP - XP по квестам (ровно три квестовых слота).
	PerQuestXP map[QuestID]XP

	// Skills - уровни пяти навыков игрока.
	Skills Skills

	// Version - монотонный счётчик для оптимистичной конкурентности.
	Version int64

	// CreatedAt - время создания записи.
	CreatedAt time.Time

	// UpdatedAt - время последнего обновления.
	UpdatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// NewStateParams содержит параметры для создания нового игрока.
type NewStateParams struct {
	ID     string
	Quests []QuestID
}

// Стартовые значения повторяют дефолты продакшн-схемы player_stats.
const (
	initialGold          = 3
	initialBoardPosition = 1
)

// NewState создаёт начальное состояние игрока с валидацией всех полей.
func NewState(params NewStateParams) (*State, error) {
	if params.ID == "" {
		return nil, ErrInvalidPlayerID
	}

	if len(params.Quests) != QuestCount {
		return nil, ErrInvalidQuestSet
	}

	perQuest := make(map[QuestID]XP, QuestCount)
	for _, q := range params.Quests {
		if !q.IsValid() {
			return nil, ErrInvalidQuestSet
		}
		if _, dup := perQuest[q]; dup {
			return nil, ErrInvalidQuestSet
		}
		perQuest[q] = 0
	}

	now := time.Now().UTC()

	return &State{
		ID:             params.ID,
		CurrentXP:      0,
		TotalXP:        0,
		CurrentLevel:   CalculateLevel(0),
		CurrentRank:    0,
		Gold:           initialGold,
		BoardPosition:  initialBoardPosition,
		MovesRemaining: 0,
		PerQuestXP:     perQuest,
		Skills:         NewSkills(),
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS (Business Logic)
// ══════════════════════════════════════════════════════════════════════════════

// AddQuestXP добавляет XP в квестовую корзину и пересчитывает производные поля.
// Возвращает ошибку, если квест не входит в набор игрока или сумма невалидна.
func (s *State) AddQuestXP(quest QuestID, amount XP) error {
	if amount <= 0 {
		return ErrInvalidXP
	}
	if _, ok := s.PerQuestXP[quest]; !ok {
		return ErrInvalidQuest
	}

	s.PerQuestXP[quest] += amount
	s.CurrentXP += amount
	s.recomputeTotals()
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// recomputeTotals пересчитывает TotalXP из квестовых корзин и уровень из TotalXP.
// Единственное место, где изменяются TotalXP и CurrentLevel.
func (s *State) recomputeTotals() {
	var total XP
	for _, xp := range s.PerQuestXP {
		total += xp
	}
	s.TotalXP = total
	s.CurrentLevel = CalculateLevel(total)
}

// AddGold добавляет золото.
func (s *State) AddGold(amount Gold) error {
	if amount <= 0 {
		return ErrInvalidXP
	}
	s.Gold += amount
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// AddMoves добавляет ходы на игровом поле.
// Верхняя граница здесь не применяется - её контролирует логика поля.
func (s *State) AddMoves(amount int) error {
	if amount <= 0 {
		return ErrInvalidXP
	}
	s.MovesRemaining += amount
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// ConsumeMove списывает один ход. Возвращает ErrNoMovesRemaining при нуле ходов.
func (s *State) ConsumeMove() error {
	if s.MovesRemaining <= 0 {
		return ErrNoMovesRemaining
	}
	s.MovesRemaining--
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// AdvanceBoard продвигает игрока на step позиций с заворотом на длине поля.
func (s *State) AdvanceBoard(step, boardLength int) {
	if boardLength <= 0 || step <= 0 {
		return
	}
	// Позиции 1-based, поэтому арифметика через нулевую базу.
	zero := (s.BoardPosition - 1 + step) % boardLength
	s.BoardPosition = zero + 1
	s.UpdatedAt = time.Now().UTC()
}

// UpdateRank обновляет производный кросс-игровой ранг.
func (s *State) UpdateRank(rank Rank) {
	s.CurrentRank = rank
}

// CheckInvariants проверяет инварианты состояния.
// Используется в тестах и при восстановлении из снапшота.
func (s *State) CheckInvariants() error {
	var total XP
	for _, xp := range s.PerQuestXP {
		if !xp.IsValid() {
			return ErrInvalidXP
		}
		total += xp
	}
	if total != s.TotalXP {
		return ErrXPConservation
	}
	if CalculateLevel(s.TotalXP) != s.CurrentLevel {
		return fmt.Errorf("derived level %d does not match stored level %d", CalculateLevel(s.TotalXP), s.CurrentLevel)
	}
	if len(s.PerQuestXP) != QuestCount {
		return ErrInvalidQuestSet
	}
	return s.Skills.Validate()
}

// QuestIDs возвращает отсортированный список квестов игрока.
func (s *State) QuestIDs() []QuestID {
	ids := make([]QuestID, 0, len(s.PerQuestXP))
	for q := range s.PerQuestXP {
		ids = append(ids, q)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// String возвращает строковое представление игрока для логирования.
func (s *State) String() string {
	return fmt.Sprintf(
		"Player{ID: %s, TotalXP: %d, Level: %d, Gold: %d, Pos: %d, Moves: %d, v%d}",
		s.ID, s.TotalXP, s.CurrentLevel, s.Gold, s.BoardPosition, s.MovesRemaining, s.Version,
	)
}

// Clone создаёт глубокую копию состояния игрока.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}

	clone := *s
	clone.PerQuestXP = make(map[QuestID]XP, len(s.PerQuestXP))
	for q, xp := range s.PerQuestXP {
		clone.PerQuestXP[q] = xp
	}
	return &clone
}
