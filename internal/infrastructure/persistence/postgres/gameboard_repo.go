package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/olympus-hub/classroom-olympics/internal/domain/gameboard"
	"github.com/olympus-hub/classroom-olympics/internal/domain/player"
	"github.com/olympus-hub/classroom-olympics/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATION REPOSITORY IMPLEMENTATION
// Stations are reference data loaded by instructors; the engine only reads.
// ══════════════════════════════════════════════════════════════════════════════

const stationColumns = `
	id, name, narrative, required_skill, difficulty,
	reward_xp, reward_gold, reward_items, reward_quest
`

// StationRepository implements gameboard.StationRepository for PostgreSQL.
type StationRepository struct {
	conn *Connection
}

// NewStationRepository creates a new StationRepository.
func NewStationRepository(conn *Connection) *StationRepository {
	return &StationRepository{conn: conn}
}

// GetByID returns a station by ID.
func (r *StationRepository) GetByID(ctx context.Context, id int) (*gameboard.Station, error) {
	query := `SELECT ` + stationColumns + ` FROM stations WHERE id = $1`

	row := r.conn.QueryRow(ctx, query, id)
	return r.scanStation(row)
}

// ListAll returns all stations ordered by ID.
func (r *StationRepository) ListAll(ctx context.Context) ([]*gameboard.Station, error) {
	query := `SELECT ` + stationColumns + ` FROM stations ORDER BY id ASC`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, storeErr("failed to list stations", err)
	}
	defer rows.Close()

	stations := make([]*gameboard.Station, 0)
	for rows.Next() {
		s, err := r.scanStation(rows)
		if err != nil {
			return nil, err
		}
		stations = append(stations, s)
	}
	return stations, rows.Err()
}

// Count returns the number of stations (the board length).
func (r *StationRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM stations`).Scan(&count)
	if err != nil {
		return 0, storeErr("failed to count stations", err)
	}
	return count, nil
}

// scanStation scans one row into a station.
func (r *StationRepository) scanStation(row pgx.Row) (*gameboard.Station, error) {
	var (
		s             gameboard.Station
		requiredSkill string
		rewardQuest   string
		itemsJSON     []byte
	)

	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.Narrative,
		&requiredSkill,
		&s.Difficulty,
		&s.RewardXP,
		&s.RewardGold,
		&itemsJSON,
		&rewardQuest,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrStationNotFound
		}
		return nil, storeErr("failed to scan station", err)
	}

	s.RequiredSkill = player.SkillName(requiredSkill)
	s.RewardQuest = player.QuestID(rewardQuest)
	if err := json.Unmarshal(itemsJSON, &s.RewardItems); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reward items: %w", err)
	}

	return &s, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ROLL HISTORY IMPLEMENTATION
// Append-only, like the award log.
// ══════════════════════════════════════════════════════════════════════════════

// RollHistoryRepository implements gameboard.RollHistory for PostgreSQL.
type RollHistoryRepository struct {
	conn *Connection
}

// NewRollHistoryRepository creates a new RollHistoryRepository.
func NewRollHistoryRepository(conn *Connection) *RollHistoryRepository {
	return &RollHistoryRepository{conn: conn}
}

// Append records one resolved roll.
func (r *RollHistoryRepository) Append(ctx context.Context, outcome *gameboard.RollOutcome) error {
	return appendRollOutcome(ctx, r.conn, outcome)
}

// appendRollOutcome inserts one roll on q, which is either the pool or an
// open transaction.
func appendRollOutcome(ctx context.Context, q Querier, outcome *gameboard.RollOutcome) error {
	query := `
		INSERT INTO dice_rolls (
			id, player_id, station_id, skill_level, roll_value, success_chance,
			was_successful, reward_xp, reward_gold, reward_items, rolled_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	itemsJSON, err := json.Marshal(outcome.Rewards.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal reward items: %w", err)
	}

	_, err = q.Exec(ctx, query,
		outcome.ID,
		outcome.PlayerID,
		outcome.StationID,
		outcome.SkillLevel,
		outcome.RollValue,
		outcome.SuccessChance,
		outcome.Succeeded,
		outcome.Rewards.XP,
		outcome.Rewards.Gold,
		itemsJSON,
		outcome.RolledAt,
	)
	if err != nil {
		return storeErr("failed to append roll", err)
	}

	return nil
}

// ListByPlayer returns the most recent rolls for a player, newest first.
func (r *RollHistoryRepository) ListByPlayer(ctx context.Context, playerID string, limit int) ([]*gameboard.RollOutcome, error) {
	query := `
		SELECT id, player_id, station_id, skill_level, roll_value, success_chance,
		       was_successful, reward_xp, reward_gold, reward_items, rolled_at
		FROM dice_rolls
		WHERE player_id = $1
		ORDER BY rolled_at DESC
		LIMIT $2
	`

	rows, err := r.conn.Query(ctx, query, playerID, limit)
	if err != nil {
		return nil, storeErr("failed to list rolls", err)
	}
	defer rows.Close()

	outcomes := make([]*gameboard.RollOutcome, 0)
	for rows.Next() {
		var (
			o         gameboard.RollOutcome
			itemsJSON []byte
		)
		err := rows.Scan(
			&o.ID,
			&o.PlayerID,
			&o.StationID,
			&o.SkillLevel,
			&o.RollValue,
			&o.SuccessChance,
			&o.Succeeded,
			&o.Rewards.XP,
			&o.Rewards.Gold,
			&itemsJSON,
			&o.RolledAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan roll: %w", err)
		}
		if err := json.Unmarshal(itemsJSON, &o.Rewards.Items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal reward items: %w", err)
		}
		outcomes = append(outcomes, &o)
	}
	return outcomes, rows.Err()
}
