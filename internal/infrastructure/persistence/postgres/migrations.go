// Package postgres - embedded schema migrations.
package postgres

// allMigrations returns the schema steps in the order they apply.
func allMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_players", SQL: migrationPlayers},
		{Version: 2, Name: "create_award_log", SQL: migrationAwardLog},
		{Version: 3, Name: "create_gameboard", SQL: migrationGameboard},
		{Version: 4, Name: "create_snapshots", SQL: migrationSnapshots},
	}
}

const migrationPlayers = `
-- Migration: Create players table
-- Version: 001

CREATE TABLE IF NOT EXISTS players (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    current_xp INTEGER NOT NULL DEFAULT 0,
    total_xp INTEGER NOT NULL DEFAULT 0,
    current_level INTEGER NOT NULL DEFAULT 1,
    current_rank INTEGER NOT NULL DEFAULT 0,
    gold INTEGER NOT NULL DEFAULT 3,
    board_position INTEGER NOT NULL DEFAULT 1,
    moves_remaining INTEGER NOT NULL DEFAULT 0,

    -- XP buckets: quest id -> xp, exactly three keys per player
    per_quest_xp JSONB NOT NULL DEFAULT '{}'::jsonb,

    -- Skill levels: skill name -> level in [1,5]
    skills JSONB NOT NULL DEFAULT '{
        "strength": 1,
        "endurance": 1,
        "tactics": 1,
        "climbing": 1,
        "speed": 1
    }'::jsonb,

    -- Optimistic concurrency counter
    version BIGINT NOT NULL DEFAULT 1,

    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT players_total_xp_non_negative CHECK (total_xp >= 0),
    CONSTRAINT players_gold_non_negative CHECK (gold >= 0),
    CONSTRAINT players_moves_non_negative CHECK (moves_remaining >= 0),
    CONSTRAINT players_position_positive CHECK (board_position >= 1)
);

CREATE INDEX IF NOT EXISTS idx_players_total_xp ON players(total_xp DESC);
`

const migrationAwardLog = `
-- Migration: Create award activity log
-- Version: 002
-- The log is append-only and doubles as the idempotency record:
-- (player_id, award_id) is unique.

CREATE TABLE IF NOT EXISTS award_log (
    id UUID PRIMARY KEY,
    award_id UUID NOT NULL,
    player_id UUID NOT NULL REFERENCES players(id) ON DELETE CASCADE,
    kind VARCHAR(20) NOT NULL,
    amount INTEGER NOT NULL,
    deltas JSONB NOT NULL DEFAULT '{}'::jsonb,
    description TEXT NOT NULL DEFAULT '',
    issued_by VARCHAR(100) NOT NULL,
    applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    result_version BIGINT NOT NULL,

    CONSTRAINT award_log_amount_positive CHECK (amount > 0),
    CONSTRAINT award_log_idempotency UNIQUE (player_id, award_id)
);

CREATE INDEX IF NOT EXISTS idx_award_log_player_applied
    ON award_log(player_id, applied_at DESC);
CREATE INDEX IF NOT EXISTS idx_award_log_issuer_applied
    ON award_log(issued_by, applied_at DESC);
CREATE INDEX IF NOT EXISTS idx_award_log_applied_at
    ON award_log(applied_at);
`

const migrationGameboard = `
-- Migration: Create station reference data and roll history
-- Version: 003
-- Station ids are board positions 1..N; the board length is count(stations).

CREATE TABLE IF NOT EXISTS stations (
    id INTEGER PRIMARY KEY,
    name VARCHAR(100) NOT NULL,
    narrative TEXT NOT NULL DEFAULT '',
    required_skill VARCHAR(20) NOT NULL,
    difficulty INTEGER NOT NULL,
    reward_xp INTEGER NOT NULL DEFAULT 0,
    reward_gold INTEGER NOT NULL DEFAULT 0,
    reward_items JSONB NOT NULL DEFAULT '[]'::jsonb,
    reward_quest VARCHAR(50) NOT NULL DEFAULT '',

    CONSTRAINT stations_difficulty_range CHECK (difficulty BETWEEN 1 AND 10),
    CONSTRAINT stations_rewards_non_negative CHECK (reward_xp >= 0 AND reward_gold >= 0)
);

CREATE TABLE IF NOT EXISTS dice_rolls (
    id UUID PRIMARY KEY,
    player_id UUID NOT NULL REFERENCES players(id) ON DELETE CASCADE,
    station_id INTEGER NOT NULL REFERENCES stations(id),
    skill_level INTEGER NOT NULL,
    roll_value INTEGER NOT NULL,
    success_chance INTEGER NOT NULL,
    was_successful BOOLEAN NOT NULL,
    reward_xp INTEGER NOT NULL DEFAULT 0,
    reward_gold INTEGER NOT NULL DEFAULT 0,
    reward_items JSONB NOT NULL DEFAULT '[]'::jsonb,
    rolled_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT dice_rolls_skill_range CHECK (skill_level BETWEEN 1 AND 5),
    CONSTRAINT dice_rolls_roll_range CHECK (roll_value BETWEEN 0 AND 99),
    CONSTRAINT dice_rolls_chance_range CHECK (success_chance BETWEEN 5 AND 95)
);

CREATE INDEX IF NOT EXISTS idx_dice_rolls_player_rolled
    ON dice_rolls(player_id, rolled_at DESC);
`

const migrationSnapshots = `
-- Migration: Create rolling snapshot log
-- Version: 004
-- Player records are stored denormalized as JSONB; the checksum covers the
-- canonical serialization and is verified on export.

CREATE TABLE IF NOT EXISTS snapshots (
    id UUID PRIMARY KEY,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    triggered_by VARCHAR(20) NOT NULL,
    issued_by VARCHAR(100) NOT NULL DEFAULT '',
    academic_period VARCHAR(50) NOT NULL DEFAULT '',
    player_count INTEGER NOT NULL,
    total_xp_recorded INTEGER NOT NULL,
    checksum CHAR(64) NOT NULL,
    players JSONB NOT NULL,

    CONSTRAINT snapshots_trigger_known CHECK (triggered_by IN ('automatic', 'manual'))
);

CREATE INDEX IF NOT EXISTS idx_snapshots_created_at ON snapshots(created_at DESC);
`
