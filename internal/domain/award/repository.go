package award

import (
	"context"
	"time"
)

// ActivityLog is the append-only store of applied awards.
// Appends must be atomic; entries are never updated or deleted.
// The log doubles as the idempotency record: an award ID present in the log
// for a player means that award has already been applied.
type ActivityLog interface {
	// Append atomically records one applied award.
	Append(ctx context.Context, entry *LogEntry) error

	// FindByAwardID returns the log entry for the given award and player.
	// Returns shared.ErrAwardNotFound if the award has not been applied.
	FindByAwardID(ctx context.Context, playerID, awardID string) (*LogEntry, error)

	// HasAward reports whether the award has already been applied to the player.
	HasAward(ctx context.Context, playerID, awardID string) (bool, error)

	// ListByPlayer returns the most recent entries for a player, newest first.
	ListByPlayer(ctx context.Context, playerID string, limit int) ([]*LogEntry, error)

	// ListByIssuer returns the most recent entries issued by one instructor,
	// newest first.
	ListByIssuer(ctx context.Context, issuedBy string, limit int) ([]*LogEntry, error)

	// ListSince returns entries applied at or after the given time, oldest first.
	// Used by audit exports.
	ListSince(ctx context.Context, since time.Time, limit int) ([]*LogEntry, error)
}
