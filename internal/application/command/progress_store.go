package command

import (
	"context"

	"github.com/olympus-hub/classroom-olympics/internal/domain/award"
	"github.com/olympus-hub/classroom-olympics/internal/domain/gameboard"
	"github.com/olympus-hub/classroom-olympics/internal/domain/player"
)

// ProgressStore commits the write side of a player mutation as one unit:
// the new player state together with the records that prove it happened.
// Implementations must persist everything or nothing, so a half-applied
// award can never leave state changed without its activity-log entry.
type ProgressStore interface {
	// CommitAward persists the updated player state and the activity-log
	// entries explaining it. Returns shared.ErrPlayerStaleVersion when the
	// stored version no longer matches expectedVersion.
	CommitAward(ctx context.Context, state *player.State, expectedVersion int64, entries []*award.LogEntry) error

	// CommitMove persists the updated player state, the roll outcome, and
	// the reward log entries of one board move. Same atomicity and version
	// semantics as CommitAward.
	CommitMove(ctx context.Context, state *player.State, expectedVersion int64, outcome *gameboard.RollOutcome, entries []*award.LogEntry) error
}
