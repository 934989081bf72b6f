// Package shared contains common domain types, errors, and events
// that are used across all domain packages.
package shared

import (
	"context"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// Award events
	EventAwardApplied   EventType = "award.applied"
	EventAwardDuplicate EventType = "award.duplicate"
	EventBulkCompleted  EventType = "award.bulk_completed"

	// Progress events
	EventXPGained EventType = "progress.xp_gained"
	EventLevelUp  EventType = "progress.level_up"

	// Gameboard events
	EventRollResolved   EventType = "gameboard.roll_resolved"
	EventPlayerAdvanced EventType = "gameboard.player_advanced"

	// Snapshot events
	EventSnapshotCreated EventType = "snapshot.created"
	EventSnapshotEvicted EventType = "snapshot.evicted"

	// Roster events
	EventPlayerEnrolled EventType = "roster.player_enrolled"
)

// Event is the interface all domain events must implement.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// EventHandler processes domain events.
type EventHandler interface {
	// Handle processes the event. Handlers must be safe for concurrent use.
	Handle(ctx context.Context, event Event) error

	// Name returns the handler name for logging.
	Name() string
}

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Award Events
// ═══════════════════════════════════════════════════════════════════════════

// AwardAppliedEvent is emitted after an award has been committed to a player.
type AwardAppliedEvent struct {
	BaseEvent
	AwardID  string `json:"award_id"`
	PlayerID string `json:"player_id"`
	Kind     string `json:"kind"`
	Amount   int    `json:"amount"`
	IssuedBy string `json:"issued_by"`
}

// Payload implements Event interface.
func (e AwardAppliedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"award_id":  e.AwardID,
		"player_id": e.PlayerID,
		"kind":      e.Kind,
		"amount":    e.Amount,
		"issued_by": e.IssuedBy,
	}
}

// NewAwardAppliedEvent creates a new AwardAppliedEvent.
func NewAwardAppliedEvent(awardID, playerID, kind string, amount int, issuedBy string) AwardAppliedEvent {
	return AwardAppliedEvent{
		BaseEvent: NewBaseEvent(EventAwardApplied, playerID),
		AwardID:   awardID,
		PlayerID:  playerID,
		Kind:      kind,
		Amount:    amount,
		IssuedBy:  issuedBy,
	}
}

// BulkAwardCompletedEvent is emitted after a bulk fan-out has finished.
// Per-player failures are counted, not carried; the activity log holds detail.
type BulkAwardCompletedEvent struct {
	BaseEvent
	TemplateID   string `json:"template_id"`
	TotalCount   int    `json:"total_count"`
	SuccessCount int    `json:"success_count"`
	FailedCount  int    `json:"failed_count"`
}

// Payload implements Event interface.
func (e BulkAwardCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"template_id":   e.TemplateID,
		"total_count":   e.TotalCount,
		"success_count": e.SuccessCount,
		"failed_count":  e.FailedCount,
	}
}

// NewBulkAwardCompletedEvent creates a new BulkAwardCompletedEvent.
func NewBulkAwardCompletedEvent(templateID string, total, success, failed int) BulkAwardCompletedEvent {
	return BulkAwardCompletedEvent{
		BaseEvent:    NewBaseEvent(EventBulkCompleted, templateID),
		TemplateID:   templateID,
		TotalCount:   total,
		SuccessCount: success,
		FailedCount:  failed,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// XPGainedEvent is emitted when a player gains XP.
type XPGainedEvent struct {
	BaseEvent
	PlayerID string `json:"player_id"`
	QuestID  string `json:"quest_id"`
	Amount   int    `json:"amount"`
	NewTotal int    `json:"new_total"`
}

// Payload implements Event interface.
func (e XPGainedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"player_id": e.PlayerID,
		"quest_id":  e.QuestID,
		"amount":    e.Amount,
		"new_total": e.NewTotal,
	}
}

// NewXPGainedEvent creates a new XPGainedEvent.
func NewXPGainedEvent(playerID, questID string, amount, newTotal int) XPGainedEvent {
	return XPGainedEvent{
		BaseEvent: NewBaseEvent(EventXPGained, playerID),
		PlayerID:  playerID,
		QuestID:   questID,
		Amount:    amount,
		NewTotal:  newTotal,
	}
}

// LevelUpEvent is emitted when a player's derived level increases.
type LevelUpEvent struct {
	BaseEvent
	PlayerID string `json:"player_id"`
	OldLevel int    `json:"old_level"`
	NewLevel int    `json:"new_level"`
	TotalXP  int    `json:"total_xp"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"player_id": e.PlayerID,
		"old_level": e.OldLevel,
		"new_level": e.NewLevel,
		"total_xp":  e.TotalXP,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(playerID string, oldLevel, newLevel, totalXP int) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, playerID),
		PlayerID:  playerID,
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
		TotalXP:   totalXP,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Gameboard Events
// ═══════════════════════════════════════════════════════════════════════════

// RollResolvedEvent is emitted when a station roll has been resolved.
type RollResolvedEvent struct {
	BaseEvent
	PlayerID  string `json:"player_id"`
	StationID int    `json:"station_id"`
	RollValue int    `json:"roll_value"`
	Chance    int    `json:"chance"`
	Succeeded bool   `json:"succeeded"`
}

// Payload implements Event interface.
func (e RollResolvedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"player_id":  e.PlayerID,
		"station_id": e.StationID,
		"roll_value": e.RollValue,
		"chance":     e.Chance,
		"succeeded":  e.Succeeded,
	}
}

// NewRollResolvedEvent creates a new RollResolvedEvent.
func NewRollResolvedEvent(playerID string, stationID, rollValue, chance int, succeeded bool) RollResolvedEvent {
	return RollResolvedEvent{
		BaseEvent: NewBaseEvent(EventRollResolved, playerID),
		PlayerID:  playerID,
		StationID: stationID,
		RollValue: rollValue,
		Chance:    chance,
		Succeeded: succeeded,
	}
}

// PlayerAdvancedEvent is emitted when a player's board position changes.
type PlayerAdvancedEvent struct {
	BaseEvent
	PlayerID       string `json:"player_id"`
	OldPosition    int    `json:"old_position"`
	NewPosition    int    `json:"new_position"`
	MovesRemaining int    `json:"moves_remaining"`
}

// Payload implements Event interface.
func (e PlayerAdvancedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"player_id":       e.PlayerID,
		"old_position":    e.OldPosition,
		"new_position":    e.NewPosition,
		"moves_remaining": e.MovesRemaining,
	}
}

// NewPlayerAdvancedEvent creates a new PlayerAdvancedEvent.
func NewPlayerAdvancedEvent(playerID string, oldPos, newPos, movesRemaining int) PlayerAdvancedEvent {
	return PlayerAdvancedEvent{
		BaseEvent:      NewBaseEvent(EventPlayerAdvanced, playerID),
		PlayerID:       playerID,
		OldPosition:    oldPos,
		NewPosition:    newPos,
		MovesRemaining: movesRemaining,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Snapshot Events
// ═══════════════════════════════════════════════════════════════════════════

// SnapshotCreatedEvent is emitted after a snapshot has been persisted.
type SnapshotCreatedEvent struct {
	BaseEvent
	SnapshotID  string `json:"snapshot_id"`
	TriggeredBy string `json:"triggered_by"`
	PlayerCount int    `json:"player_count"`
	TotalXP     int    `json:"total_xp"`
	Checksum    string `json:"checksum"`
}

// Payload implements Event interface.
func (e SnapshotCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"snapshot_id":  e.SnapshotID,
		"triggered_by": e.TriggeredBy,
		"player_count": e.PlayerCount,
		"total_xp":     e.TotalXP,
		"checksum":     e.Checksum,
	}
}

// NewSnapshotCreatedEvent creates a new SnapshotCreatedEvent.
func NewSnapshotCreatedEvent(snapshotID, triggeredBy string, playerCount, totalXP int, checksum string) SnapshotCreatedEvent {
	return SnapshotCreatedEvent{
		BaseEvent:   NewBaseEvent(EventSnapshotCreated, snapshotID),
		SnapshotID:  snapshotID,
		TriggeredBy: triggeredBy,
		PlayerCount: playerCount,
		TotalXP:     totalXP,
		Checksum:    checksum,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Roster Events
// ═══════════════════════════════════════════════════════════════════════════

// PlayerEnrolledEvent is emitted after a player has been enrolled into the
// classroom roster, including any welcome grants.
type PlayerEnrolledEvent struct {
	BaseEvent
	PlayerID    string `json:"player_id"`
	EnrolledBy  string `json:"enrolled_by"`
	WelcomeGold int    `json:"welcome_gold"`
}

// Payload implements Event interface.
func (e PlayerEnrolledEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"player_id":    e.PlayerID,
		"enrolled_by":  e.EnrolledBy,
		"welcome_gold": e.WelcomeGold,
	}
}

// NewPlayerEnrolledEvent creates a new PlayerEnrolledEvent.
func NewPlayerEnrolledEvent(playerID, enrolledBy string, welcomeGold int) PlayerEnrolledEvent {
	return PlayerEnrolledEvent{
		BaseEvent:   NewBaseEvent(EventPlayerEnrolled, playerID),
		PlayerID:    playerID,
		EnrolledBy:  enrolledBy,
		WelcomeGold: welcomeGold,
	}
}
