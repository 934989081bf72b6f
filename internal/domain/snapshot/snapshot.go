// Package snapshot содержит доменную модель снапшотов Classroom Olympics.
package snapshot

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/olympus-hub/classroom-olympics/internal/domain/player"
)

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT
// ══════════════════════════════════════════════════════════════════════════════

// Trigger определяет, кем был инициирован снапшот.
type Trigger string

const (
	// TriggerAutomatic - снапшот создан планировщиком по расписанию.
	TriggerAutomatic Trigger = "automatic"
	// TriggerManual - снапшот создан вручную преподавателем.
	TriggerManual Trigger = "manual"
)

// IsValid проверяет корректность триггера.
func (t Trigger) IsValid() bool {
	return t == TriggerAutomatic || t == TriggerManual
}

// DefaultRetention - сколько последних снапшотов хранится по умолчанию.
const DefaultRetention = 50

// ExportType - тип экспортного конверта, совместимый со старым бэкап-скриптом.
const ExportType = "olympics-progression-backup"

var (
	// ErrInvalidTrigger - неизвестный триггер снапшота.
	ErrInvalidTrigger = errors.New("snapshot: invalid trigger")

	// ErrIssuerRequired - ручной снапшот должен содержать автора.
	ErrIssuerRequired = errors.New("snapshot: issuedBy is required for manual snapshots")

	// ErrNoPlayers - снапшот без игроков допустим, но записи должны быть не nil.
	ErrNoPlayers = errors.New("snapshot: player records must not be nil")
)

// PlayerRecord - неизменяемая запись прогресса одного игрока внутри снапшота.
type PlayerRecord struct {
	// ID - идентификатор игрока.
	ID string `json:"id"`

	// TotalXP - общий XP на момент снапшота.
	TotalXP int `json:"total_xp"`

	// CurrentLevel - производный уровень.
	CurrentLevel int `json:"current_level"`

	// CurrentRank - производный кросс-игровой ранг.
	CurrentRank int `json:"current_rank"`

	// PerQuestXP - XP по квестовым корзинам.
	PerQuestXP map[string]int `json:"per_quest_xp"`

	// Skills - уровни навыков.
	Skills map[string]int `json:"skills"`
}

// RecordFromState строит запись снапшота из состояния игрока.
func RecordFromState(s *player.State) PlayerRecord {
	perQuest := make(map[string]int, len(s.PerQuestXP))
	for q, xp := range s.PerQuestXP {
		perQuest[q.String()] = int(xp)
	}

	return PlayerRecord{
		ID:           s.ID,
		TotalXP:      int(s.TotalXP),
		CurrentLevel: int(s.CurrentLevel),
		CurrentRank:  int(s.CurrentRank),
		PerQuestXP:   perQuest,
		Skills:       s.Skills.ToMap(),
	}
}

// Snapshot представляет проверяемый срез всего состояния игроков.
// Снапшоты неизменяемы после создания и хранятся в скользящем журнале
// ограниченного размера (старейший вытесняется сверх лимита хранения).
type Snapshot struct {
	// ID - уникальный идентификатор снапшота.
	ID string

	// CreatedAt - время создания.
	CreatedAt time.Time

	// TriggeredBy - automatic или manual.
	TriggeredBy Trigger

	// IssuedBy - кто создал ручной снапшот (пусто для автоматических).
	IssuedBy string

	// AcademicPeriod - учебный период (например, "2026-fall").
	AcademicPeriod string

	// PlayerCount - количество игроков в снапшоте.
	PlayerCount int

	// TotalXPRecorded - суммарный XP всех игроков.
	TotalXPRecorded int

	// Checksum - hex-хеш BLAKE2b-256 канонической сериализации игроков.
	Checksum string

	// Players - записи игроков, отсортированные по ID.
	Players []PlayerRecord
}

// NewSnapshotParams содержит параметры для создания снапшота.
type NewSnapshotParams struct {
	ID             string
	TriggeredBy    Trigger
	IssuedBy       string
	AcademicPeriod string
	Players        []PlayerRecord
	CreatedAt      time.Time
}

// New создаёт снапшот: сортирует записи, считает агрегаты и контрольную сумму.
func New(params NewSnapshotParams) (*Snapshot, error) {
	if params.ID == "" {
		return nil, errors.New("snapshot: id is required")
	}
	if !params.TriggeredBy.IsValid() {
		return nil, ErrInvalidTrigger
	}
	if params.TriggeredBy == TriggerManual && params.IssuedBy == "" {
		return nil, ErrIssuerRequired
	}
	if params.Players == nil {
		return nil, ErrNoPlayers
	}

	players := make([]PlayerRecord, len(params.Players))
	copy(players, params.Players)
	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })

	totalXP := 0
	for _, p := range players {
		totalXP += p.TotalXP
	}

	createdAt := params.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	return &Snapshot{
		ID:              params.ID,
		CreatedAt:       createdAt,
		TriggeredBy:     params.TriggeredBy,
		IssuedBy:        params.IssuedBy,
		AcademicPeriod:  params.AcademicPeriod,
		PlayerCount:     len(players),
		TotalXPRecorded: totalXP,
		Checksum:        Checksum(players),
		Players:         players,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CHECKSUM
// ══════════════════════════════════════════════════════════════════════════════

// Checksum вычисляет BLAKE2b-256 хеш канонической сериализации записей.
// Каноническая форма: записи сортируются по ID, каждая кодируется как
// "id|totalXP|level|rank\n". Порядок входного слайса на результат не влияет.
func Checksum(players []PlayerRecord) string {
	sorted := make([]PlayerRecord, len(players))
	copy(sorted, players)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var b strings.Builder
	for _, p := range sorted {
		fmt.Fprintf(&b, "%s|%d|%d|%d\n", p.ID, p.TotalXP, p.CurrentLevel, p.CurrentRank)
	}

	sum := blake2b.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Verify сверяет сохранённую контрольную сумму с пересчитанной по записям.
func (s *Snapshot) Verify() error {
	if Checksum(s.Players) != s.Checksum {
		return errors.New("snapshot: checksum mismatch")
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// EXPORT (для аудита и восстановления)
// ══════════════════════════════════════════════════════════════════════════════

// Export - сериализуемый конверт снапшота. Движок не пишет файлы сам:
// конверт передаётся внешнему экспортёру.
type Export struct {
	ExportType      string         `json:"export_type"`
	ID              string         `json:"id"`
	CreatedAt       time.Time      `json:"created_at"`
	TriggeredBy     string         `json:"triggered_by"`
	IssuedBy        string         `json:"issued_by,omitempty"`
	AcademicPeriod  string         `json:"academic_period"`
	PlayerCount     int            `json:"player_count"`
	TotalXPRecorded int            `json:"total_xp_recorded"`
	Checksum        string         `json:"checksum"`
	Players         []PlayerRecord `json:"players"`
}

// ToExport преобразует снапшот в экспортный конверт.
func (s *Snapshot) ToExport() Export {
	return Export{
		ExportType:      ExportType,
		ID:              s.ID,
		CreatedAt:       s.CreatedAt,
		TriggeredBy:     string(s.TriggeredBy),
		IssuedBy:        s.IssuedBy,
		AcademicPeriod:  s.AcademicPeriod,
		PlayerCount:     s.PlayerCount,
		TotalXPRecorded: s.TotalXPRecorded,
		Checksum:        s.Checksum,
		Players:         s.Players,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT METADATA (для списков)
// ══════════════════════════════════════════════════════════════════════════════

// Meta содержит метаданные снапшота без записей игроков.
type Meta struct {
	ID              string
	CreatedAt       time.Time
	TriggeredBy     Trigger
	IssuedBy        string
	AcademicPeriod  string
	PlayerCount     int
	TotalXPRecorded int
	Checksum        string
}

// ToMeta преобразует снапшот в метаданные.
func (s *Snapshot) ToMeta() Meta {
	return Meta{
		ID:              s.ID,
		CreatedAt:       s.CreatedAt,
		TriggeredBy:     s.TriggeredBy,
		IssuedBy:        s.IssuedBy,
		AcademicPeriod:  s.AcademicPeriod,
		PlayerCount:     s.PlayerCount,
		TotalXPRecorded: s.TotalXPRecorded,
		Checksum:        s.Checksum,
	}
}

// String возвращает строковое представление для логирования.
func (s *Snapshot) String() string {
	return fmt.Sprintf(
		"Snapshot{ID: %s, Trigger: %s, Players: %d, TotalXP: %d, At: %s}",
		s.ID, s.TriggeredBy, s.PlayerCount, s.TotalXPRecorded,
		s.CreatedAt.Format(time.RFC3339),
	)
}
