package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/olympus-hub/classroom-olympics/internal/domain/shared"
	"github.com/olympus-hub/classroom-olympics/internal/domain/snapshot"
)

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT REPOSITORY IMPLEMENTATION
// The save and the retention eviction run in one transaction, so a crash
// can never leave the log over its retention bound with the new snapshot in.
// ══════════════════════════════════════════════════════════════════════════════

const snapshotMetaColumns = `
	id, created_at, triggered_by, issued_by, academic_period,
	player_count, total_xp_recorded, checksum
`

// SnapshotRepository implements snapshot.Repository for PostgreSQL.
type SnapshotRepository struct {
	conn *Connection
}

// NewSnapshotRepository creates a new SnapshotRepository.
func NewSnapshotRepository(conn *Connection) *SnapshotRepository {
	return &SnapshotRepository{conn: conn}
}

// Save stores a snapshot and evicts the oldest entries beyond retention.
func (r *SnapshotRepository) Save(ctx context.Context, snap *snapshot.Snapshot, retention int) ([]string, error) {
	playersJSON, err := json.Marshal(snap.Players)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot players: %w", err)
	}

	evicted := make([]string, 0)

	err = r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO snapshots (
				id, created_at, triggered_by, issued_by, academic_period,
				player_count, total_xp_recorded, checksum, players
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`,
			snap.ID,
			snap.CreatedAt,
			string(snap.TriggeredBy),
			snap.IssuedBy,
			snap.AcademicPeriod,
			snap.PlayerCount,
			snap.TotalXPRecorded,
			snap.Checksum,
			playersJSON,
		)
		if err != nil {
			return storeErr("failed to insert snapshot", err)
		}

		if retention <= 0 {
			return nil
		}

		rows, err := tx.Query(ctx, `
			DELETE FROM snapshots
			WHERE id IN (
				SELECT id FROM snapshots
				ORDER BY created_at DESC
				OFFSET $1
			)
			RETURNING id
		`, retention)
		if err != nil {
			return storeErr("failed to evict snapshots", err)
		}
		defer rows.Close()

		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return fmt.Errorf("failed to scan evicted snapshot id: %w", err)
			}
			evicted = append(evicted, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return evicted, nil
}

// GetByID returns a full snapshot with player records.
func (r *SnapshotRepository) GetByID(ctx context.Context, id string) (*snapshot.Snapshot, error) {
	query := `SELECT ` + snapshotMetaColumns + `, players FROM snapshots WHERE id = $1`

	row := r.conn.QueryRow(ctx, query, id)
	return r.scanSnapshot(row)
}

// GetLatest returns the most recent snapshot.
func (r *SnapshotRepository) GetLatest(ctx context.Context) (*snapshot.Snapshot, error) {
	query := `SELECT ` + snapshotMetaColumns + `, players
		FROM snapshots ORDER BY created_at DESC LIMIT 1`

	row := r.conn.QueryRow(ctx, query)
	return r.scanSnapshot(row)
}

// List returns snapshot metadata, newest first.
func (r *SnapshotRepository) List(ctx context.Context, limit, offset int) ([]snapshot.Meta, error) {
	query := `SELECT ` + snapshotMetaColumns + `
		FROM snapshots ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.conn.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, storeErr("failed to list snapshots", err)
	}
	defer rows.Close()

	metas := make([]snapshot.Meta, 0)
	for rows.Next() {
		var (
			m         snapshot.Meta
			triggered string
		)
		err := rows.Scan(
			&m.ID,
			&m.CreatedAt,
			&triggered,
			&m.IssuedBy,
			&m.AcademicPeriod,
			&m.PlayerCount,
			&m.TotalXPRecorded,
			&m.Checksum,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot meta: %w", err)
		}
		m.TriggeredBy = snapshot.Trigger(triggered)
		metas = append(metas, m)
	}
	return metas, rows.Err()
}

// Count returns the number of stored snapshots.
func (r *SnapshotRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM snapshots`).Scan(&count)
	if err != nil {
		return 0, storeErr("failed to count snapshots", err)
	}
	return count, nil
}

// scanSnapshot scans one full snapshot row.
func (r *SnapshotRepository) scanSnapshot(row pgx.Row) (*snapshot.Snapshot, error) {
	var (
		snap        snapshot.Snapshot
		triggered   string
		playersJSON []byte
	)

	err := row.Scan(
		&snap.ID,
		&snap.CreatedAt,
		&triggered,
		&snap.IssuedBy,
		&snap.AcademicPeriod,
		&snap.PlayerCount,
		&snap.TotalXPRecorded,
		&snap.Checksum,
		&playersJSON,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrSnapshotNotFound
		}
		return nil, storeErr("failed to scan snapshot", err)
	}

	snap.TriggeredBy = snapshot.Trigger(triggered)
	if err := json.Unmarshal(playersJSON, &snap.Players); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot players: %w", err)
	}

	return &snap, nil
}
