package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/olympus-hub/classroom-olympics/internal/domain/award"
	"github.com/olympus-hub/classroom-olympics/internal/domain/gameboard"
	"github.com/olympus-hub/classroom-olympics/internal/domain/player"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS STORE IMPLEMENTATION
// Commits a player's new state together with the records that explain it:
// the award log entries, and for moves the roll outcome. Everything lands
// in one transaction, so a crash or a lost connection can never persist
// the state change without its log entry or vice versa. The log entry is
// what makes a retried award collapse into a duplicate instead of applying
// twice.
// ══════════════════════════════════════════════════════════════════════════════

// ProgressStore implements command.ProgressStore for PostgreSQL.
type ProgressStore struct {
	conn *Connection
}

// NewProgressStore creates a new ProgressStore.
func NewProgressStore(conn *Connection) *ProgressStore {
	return &ProgressStore{conn: conn}
}

// CommitAward persists the player state and its award log entries atomically.
func (s *ProgressStore) CommitAward(
	ctx context.Context,
	state *player.State,
	expectedVersion int64,
	entries []*award.LogEntry,
) error {
	return s.conn.WithTx(ctx, func(tx pgx.Tx) error {
		return commitProgress(ctx, tx, state, expectedVersion, nil, entries)
	})
}

// CommitMove persists the player state, the roll outcome, and any award log
// entries earned by the landing atomically.
func (s *ProgressStore) CommitMove(
	ctx context.Context,
	state *player.State,
	expectedVersion int64,
	outcome *gameboard.RollOutcome,
	entries []*award.LogEntry,
) error {
	return s.conn.WithTx(ctx, func(tx pgx.Tx) error {
		return commitProgress(ctx, tx, state, expectedVersion, outcome, entries)
	})
}

// commitProgress writes the state update and its records on one Querier.
// The version-guarded UPDATE goes first: if a concurrent writer moved the
// version, nothing else is attempted and the whole transaction rolls back
// with the stale-version error.
func commitProgress(
	ctx context.Context,
	q Querier,
	state *player.State,
	expectedVersion int64,
	outcome *gameboard.RollOutcome,
	entries []*award.LogEntry,
) error {
	if err := savePlayerState(ctx, q, state, expectedVersion); err != nil {
		return err
	}

	if outcome != nil {
		if err := appendRollOutcome(ctx, q, outcome); err != nil {
			return err
		}
	}

	for _, entry := range entries {
		if err := appendAwardEntry(ctx, q, entry); err != nil {
			return err
		}
	}

	return nil
}

var _ Querier = (*Connection)(nil)
