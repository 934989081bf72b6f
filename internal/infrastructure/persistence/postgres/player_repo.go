package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/olympus-hub/classroom-olympics/internal/domain/player"
	"github.com/olympus-hub/classroom-olympics/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PLAYER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// playerColumns is the canonical column list shared by all player queries.
const playerColumns = `
	id, current_xp, total_xp, current_level, current_rank, gold,
	board_position, moves_remaining, per_quest_xp, skills, version,
	created_at, updated_at
`

// allowed sort columns for GetAll; anything else falls back to total_xp.
var playerSortColumns = map[string]string{
	"total_xp":   "total_xp",
	"id":         "id",
	"level":      "current_level",
	"gold":       "gold",
	"created_at": "created_at",
}

// PlayerRepository implements player.Repository for PostgreSQL.
type PlayerRepository struct {
	conn *Connection
}

// NewPlayerRepository creates a new PlayerRepository.
func NewPlayerRepository(conn *Connection) *PlayerRepository {
	return &PlayerRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// CRUD Operations
// ─────────────────────────────────────────────────────────────────────────────

// Create creates a new player.
func (r *PlayerRepository) Create(ctx context.Context, s *player.State) error {
	query := `
		INSERT INTO players (
			id, current_xp, total_xp, current_level, current_rank, gold,
			board_position, moves_remaining, per_quest_xp, skills, version,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	perQuestJSON, skillsJSON, err := marshalPlayerJSON(s)
	if err != nil {
		return err
	}

	_, err = r.conn.Exec(ctx, query,
		s.ID,
		int(s.CurrentXP),
		int(s.TotalXP),
		int(s.CurrentLevel),
		int(s.CurrentRank),
		int(s.Gold),
		s.BoardPosition,
		s.MovesRemaining,
		perQuestJSON,
		skillsJSON,
		s.Version,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrPlayerAlreadyExists
		}
		return storeErr("failed to create player", err)
	}

	return nil
}

// GetByID returns a player by ID.
func (r *PlayerRepository) GetByID(ctx context.Context, id string) (*player.State, error) {
	query := `SELECT ` + playerColumns + ` FROM players WHERE id = $1`

	row := r.conn.QueryRow(ctx, query, id)
	return r.scanPlayer(row)
}

// Save persists a player state expecting the stored version to match
// expectedVersion. The state's version must already be incremented by the
// caller; a zero-row update means a concurrent writer won the race.
func (r *PlayerRepository) Save(ctx context.Context, s *player.State, expectedVersion int64) error {
	return savePlayerState(ctx, r.conn, s, expectedVersion)
}

// savePlayerState runs the optimistic-concurrency UPDATE on q, which is
// either the pool or an open transaction.
func savePlayerState(ctx context.Context, q Querier, s *player.State, expectedVersion int64) error {
	query := `
		UPDATE players SET
			current_xp = $1,
			total_xp = $2,
			current_level = $3,
			current_rank = $4,
			gold = $5,
			board_position = $6,
			moves_remaining = $7,
			per_quest_xp = $8,
			skills = $9,
			version = $10,
			updated_at = $11
		WHERE id = $12 AND version = $13
	`

	perQuestJSON, skillsJSON, err := marshalPlayerJSON(s)
	if err != nil {
		return err
	}

	result, err := q.Exec(ctx, query,
		int(s.CurrentXP),
		int(s.TotalXP),
		int(s.CurrentLevel),
		int(s.CurrentRank),
		int(s.Gold),
		s.BoardPosition,
		s.MovesRemaining,
		perQuestJSON,
		skillsJSON,
		s.Version,
		s.UpdatedAt,
		s.ID,
		expectedVersion,
	)
	if err != nil {
		return storeErr("failed to save player", err)
	}

	if result.RowsAffected() == 0 {
		// Either the player vanished or the version moved; distinguish them.
		exists, exErr := playerExists(ctx, q, s.ID)
		if exErr == nil && !exists {
			return shared.ErrPlayerNotFound
		}
		return shared.ErrPlayerStaleVersion
	}

	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Bulk Operations
// ─────────────────────────────────────────────────────────────────────────────

// GetAll returns all players with pagination and sorting.
func (r *PlayerRepository) GetAll(ctx context.Context, opts player.ListOptions) ([]*player.State, error) {
	sortColumn, ok := playerSortColumns[opts.SortBy]
	if !ok {
		sortColumn = "total_xp"
	}
	direction := "ASC"
	if opts.SortDesc {
		direction = "DESC"
	}

	query := fmt.Sprintf(
		`SELECT %s FROM players ORDER BY %s %s, id ASC LIMIT $1 OFFSET $2`,
		playerColumns, sortColumn, direction,
	)

	rows, err := r.conn.Query(ctx, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, storeErr("failed to list players", err)
	}
	defer rows.Close()

	return r.scanPlayers(rows)
}

// GetByIDs returns players matching the given IDs.
func (r *PlayerRepository) GetByIDs(ctx context.Context, ids []string) ([]*player.State, error) {
	if len(ids) == 0 {
		return []*player.State{}, nil
	}

	query := `SELECT ` + playerColumns + ` FROM players WHERE id = ANY($1)`

	rows, err := r.conn.Query(ctx, query, ids)
	if err != nil {
		return nil, storeErr("failed to get players by ids", err)
	}
	defer rows.Close()

	return r.scanPlayers(rows)
}

// Count returns the total number of players.
func (r *PlayerRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM players`).Scan(&count)
	if err != nil {
		return 0, storeErr("failed to count players", err)
	}
	return count, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Existence Checks
// ─────────────────────────────────────────────────────────────────────────────

// Exists checks whether a player exists.
func (r *PlayerRepository) Exists(ctx context.Context, id string) (bool, error) {
	return playerExists(ctx, r.conn, id)
}

func playerExists(ctx context.Context, q Querier, id string) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM players WHERE id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		return false, storeErr("failed to check player existence", err)
	}
	return exists, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning helpers
// ─────────────────────────────────────────────────────────────────────────────

// scanPlayer scans one row into a player state.
func (r *PlayerRepository) scanPlayer(row pgx.Row) (*player.State, error) {
	var (
		s            player.State
		currentXP    int
		totalXP      int
		currentLevel int
		currentRank  int
		gold         int
		perQuestJSON []byte
		skillsJSON   []byte
	)

	err := row.Scan(
		&s.ID,
		&currentXP,
		&totalXP,
		&currentLevel,
		&currentRank,
		&gold,
		&s.BoardPosition,
		&s.MovesRemaining,
		&perQuestJSON,
		&skillsJSON,
		&s.Version,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrPlayerNotFound
		}
		return nil, storeErr("failed to scan player", err)
	}

	s.CurrentXP = player.XP(currentXP)
	s.TotalXP = player.XP(totalXP)
	s.CurrentLevel = player.Level(currentLevel)
	s.CurrentRank = player.Rank(currentRank)
	s.Gold = player.Gold(gold)

	var perQuest map[string]int
	if err := json.Unmarshal(perQuestJSON, &perQuest); err != nil {
		return nil, fmt.Errorf("failed to unmarshal per_quest_xp: %w", err)
	}
	s.PerQuestXP = make(map[player.QuestID]player.XP, len(perQuest))
	for q, xp := range perQuest {
		s.PerQuestXP[player.QuestID(q)] = player.XP(xp)
	}

	var skills map[string]int
	if err := json.Unmarshal(skillsJSON, &skills); err != nil {
		return nil, fmt.Errorf("failed to unmarshal skills: %w", err)
	}
	s.Skills, err = player.SkillsFromMap(skills)
	if err != nil {
		return nil, fmt.Errorf("corrupt skills record for player %s: %w", s.ID, err)
	}

	return &s, nil
}

// scanPlayers scans all rows into player states.
func (r *PlayerRepository) scanPlayers(rows pgx.Rows) ([]*player.State, error) {
	players := make([]*player.State, 0)
	for rows.Next() {
		s, err := r.scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		players = append(players, s)
	}
	return players, rows.Err()
}

// marshalPlayerJSON serializes the JSONB columns of a player state.
func marshalPlayerJSON(s *player.State) (perQuestJSON, skillsJSON []byte, err error) {
	perQuest := make(map[string]int, len(s.PerQuestXP))
	for q, xp := range s.PerQuestXP {
		perQuest[q.String()] = int(xp)
	}

	perQuestJSON, err = json.Marshal(perQuest)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal per_quest_xp: %w", err)
	}

	skillsJSON, err = json.Marshal(s.Skills.ToMap())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal skills: %w", err)
	}

	return perQuestJSON, skillsJSON, nil
}
