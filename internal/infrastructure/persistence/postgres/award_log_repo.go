package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/olympus-hub/classroom-olympics/internal/domain/award"
	"github.com/olympus-hub/classroom-olympics/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// AWARD LOG REPOSITORY IMPLEMENTATION
// Append-only: there are no UPDATE or DELETE statements in this file.
// ══════════════════════════════════════════════════════════════════════════════

const awardLogColumns = `
	id, award_id, player_id, kind, amount, deltas, description,
	issued_by, applied_at, result_version
`

// AwardLogRepository implements award.ActivityLog for PostgreSQL.
type AwardLogRepository struct {
	conn *Connection
}

// NewAwardLogRepository creates a new AwardLogRepository.
func NewAwardLogRepository(conn *Connection) *AwardLogRepository {
	return &AwardLogRepository{conn: conn}
}

// Append atomically records one applied award. The unique constraint on
// (player_id, award_id) is the idempotency backstop for competing processes.
func (r *AwardLogRepository) Append(ctx context.Context, entry *award.LogEntry) error {
	return appendAwardEntry(ctx, r.conn, entry)
}

// appendAwardEntry inserts one log entry on q, which is either the pool or
// an open transaction.
func appendAwardEntry(ctx context.Context, q Querier, entry *award.LogEntry) error {
	query := `
		INSERT INTO award_log (
			id, award_id, player_id, kind, amount, deltas, description,
			issued_by, applied_at, result_version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	deltasJSON, err := json.Marshal(entry.Deltas)
	if err != nil {
		return fmt.Errorf("failed to marshal deltas: %w", err)
	}

	_, err = q.Exec(ctx, query,
		entry.ID,
		entry.AwardID,
		entry.PlayerID,
		entry.Kind.String(),
		entry.Amount,
		deltasJSON,
		entry.Description,
		entry.IssuedBy,
		entry.AppliedAt,
		entry.ResultVersion,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrAwardAlreadyApplied
		}
		return storeErr("failed to append award log entry", err)
	}

	return nil
}

// FindByAwardID returns the log entry for the given award and player.
func (r *AwardLogRepository) FindByAwardID(ctx context.Context, playerID, awardID string) (*award.LogEntry, error) {
	query := `SELECT ` + awardLogColumns + `
		FROM award_log WHERE player_id = $1 AND award_id = $2`

	row := r.conn.QueryRow(ctx, query, playerID, awardID)
	return r.scanEntry(row)
}

// HasAward reports whether the award has already been applied to the player.
func (r *AwardLogRepository) HasAward(ctx context.Context, playerID, awardID string) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM award_log WHERE player_id = $1 AND award_id = $2)`,
		playerID, awardID,
	).Scan(&exists)
	if err != nil {
		return false, storeErr("failed to check award log", err)
	}
	return exists, nil
}

// ListByPlayer returns the most recent entries for a player, newest first.
func (r *AwardLogRepository) ListByPlayer(ctx context.Context, playerID string, limit int) ([]*award.LogEntry, error) {
	query := `SELECT ` + awardLogColumns + `
		FROM award_log WHERE player_id = $1
		ORDER BY applied_at DESC LIMIT $2`

	rows, err := r.conn.Query(ctx, query, playerID, limit)
	if err != nil {
		return nil, storeErr("failed to list award log by player", err)
	}
	defer rows.Close()

	return r.scanEntries(rows)
}

// ListByIssuer returns the most recent entries issued by one instructor.
func (r *AwardLogRepository) ListByIssuer(ctx context.Context, issuedBy string, limit int) ([]*award.LogEntry, error) {
	query := `SELECT ` + awardLogColumns + `
		FROM award_log WHERE issued_by = $1
		ORDER BY applied_at DESC LIMIT $2`

	rows, err := r.conn.Query(ctx, query, issuedBy, limit)
	if err != nil {
		return nil, storeErr("failed to list award log by issuer", err)
	}
	defer rows.Close()

	return r.scanEntries(rows)
}

// ListSince returns entries applied at or after the given time, oldest first.
func (r *AwardLogRepository) ListSince(ctx context.Context, since time.Time, limit int) ([]*award.LogEntry, error) {
	query := `SELECT ` + awardLogColumns + `
		FROM award_log WHERE applied_at >= $1
		ORDER BY applied_at ASC LIMIT $2`

	rows, err := r.conn.Query(ctx, query, since, limit)
	if err != nil {
		return nil, storeErr("failed to list award log since", err)
	}
	defer rows.Close()

	return r.scanEntries(rows)
}

// scanEntry scans one row into a log entry.
func (r *AwardLogRepository) scanEntry(row pgx.Row) (*award.LogEntry, error) {
	var (
		entry      award.LogEntry
		kind       string
		deltasJSON []byte
	)

	err := row.Scan(
		&entry.ID,
		&entry.AwardID,
		&entry.PlayerID,
		&kind,
		&entry.Amount,
		&deltasJSON,
		&entry.Description,
		&entry.IssuedBy,
		&entry.AppliedAt,
		&entry.ResultVersion,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrAwardNotFound
		}
		return nil, storeErr("failed to scan award log entry", err)
	}

	entry.Kind = award.Kind(kind)
	if err := json.Unmarshal(deltasJSON, &entry.Deltas); err != nil {
		return nil, fmt.Errorf("failed to unmarshal deltas: %w", err)
	}

	return &entry, nil
}

// scanEntries scans all rows into log entries.
func (r *AwardLogRepository) scanEntries(rows pgx.Rows) ([]*award.LogEntry, error) {
	entries := make([]*award.LogEntry, 0)
	for rows.Next() {
		entry, err := r.scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
