package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FeatureFlags manages feature toggles and gradual rollouts.
// Supports percentage rollout, per-player targeting, and period-based
// experiments so new classroom mechanics can be trialled on part of
// the class before everyone gets them.
type FeatureFlags struct {
	mu sync.RWMutex

	// Core features
	features map[string]*Feature

	// Override rules (for testing/debugging)
	playerOverrides map[string]map[string]bool // playerID -> feature -> enabled
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100)
	// Players are assigned based on hash of their ID
	RolloutPercent int

	// Academic period targeting (e.g., "2026-spring", "2026-autumn")
	// Empty means all periods
	TargetPeriods []string

	// Time-based activation
	EnabledFrom  *time.Time
	EnabledUntil *time.Time

	// A/B test variant (for experiments)
	Variants []string
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	PlayerID string

	AcademicPeriod string // e.g. "2026-autumn"
	IsInstructor   bool
}

// Predefined feature flag names.
const (
	// === Leaderboard Features ===
	FeatureLeaderboardLiveRank = "leaderboard.live_rank" // Serve ranks from the Redis index
	FeatureLeaderboardStats    = "leaderboard.stats"     // Average/median XP on leaderboard pages

	// === Gameboard Features ===
	FeatureGameboardRolls        = "gameboard.rolls"         // Dice-based station rolls
	FeatureGameboardRollOverride = "gameboard.roll_override" // Instructors may pre-supply roll values

	// === Award Features ===
	FeatureAwardsBulk        = "awards.bulk"         // Bulk award fan-out
	FeatureAwardsSkillPoints = "awards.skill_points" // Skill-point awards

	// === Snapshot Features ===
	FeatureSnapshotsManual = "snapshots.manual" // Instructor-triggered snapshots
	FeatureSnapshotsExport = "snapshots.export" // Snapshot export endpoint

	// === Experimental Features ===
	FeatureExperimentalSeasons   = "experimental.seasons"   // Seasonal XP resets
	FeatureExperimentalAnalytics = "experimental.analytics" // Advanced progression analytics
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:        make(map[string]*Feature),
		playerOverrides: make(map[string]map[string]bool),
	}

	// Initialize all features with defaults
	ff.initializeDefaults()

	// Load overrides from environment
	ff.loadFromEnvironment()

	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	// Leaderboard features - enabled by default
	ff.features[FeatureLeaderboardLiveRank] = &Feature{
		Name:           FeatureLeaderboardLiveRank,
		Description:    "Serve leaderboard from the Redis rank index",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureLeaderboardStats] = &Feature{
		Name:           FeatureLeaderboardStats,
		Description:    "Include average and median XP in leaderboard pages",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Gameboard features - core mechanic, enabled by default
	ff.features[FeatureGameboardRolls] = &Feature{
		Name:           FeatureGameboardRolls,
		Description:    "Dice-based skill checks at board stations",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureGameboardRollOverride] = &Feature{
		Name:           FeatureGameboardRollOverride,
		Description:    "Allow pre-supplied roll values for deterministic replays",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Award features
	ff.features[FeatureAwardsBulk] = &Feature{
		Name:           FeatureAwardsBulk,
		Description:    "Bulk award fan-out to many players",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureAwardsSkillPoints] = &Feature{
		Name:           FeatureAwardsSkillPoints,
		Description:    "Skill-point awards that raise station skills",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Snapshot features
	ff.features[FeatureSnapshotsManual] = &Feature{
		Name:           FeatureSnapshotsManual,
		Description:    "Instructor-triggered snapshots over the API",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureSnapshotsExport] = &Feature{
		Name:           FeatureSnapshotsExport,
		Description:    "Checksum-verified snapshot export",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Experimental features - disabled by default
	ff.features[FeatureExperimentalSeasons] = &Feature{
		Name:           FeatureExperimentalSeasons,
		Description:    "Seasonal current-XP resets between academic periods",
		Enabled:        false,
		RolloutPercent: 0,
	}

	ff.features[FeatureExperimentalAnalytics] = &Feature{
		Name:           FeatureExperimentalAnalytics,
		Description:    "Advanced progression analytics",
		Enabled:        false,
		RolloutPercent: 0,
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_AWARDS_BULK=true
// Example: FEATURE_EXPERIMENTAL_SEASONS=50 (50% rollout)
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := featureNameToEnvKey(name)
		if val := os.Getenv(envKey); val != "" {
			// Try parsing as boolean
			if b, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = b
				if b {
					feature.RolloutPercent = 100
				} else {
					feature.RolloutPercent = 0
				}
				continue
			}

			// Try parsing as percentage
			if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
				feature.Enabled = p > 0
				feature.RolloutPercent = p
			}
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "awards.bulk" -> "FEATURE_AWARDS_BULK"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given context.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	// Check player overrides first
	if ctx != nil && ctx.PlayerID != "" {
		if overrides, ok := ff.playerOverrides[ctx.PlayerID]; ok {
			if enabled, ok := overrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok {
		return false
	}

	// Instructors get all features
	if ctx != nil && ctx.IsInstructor {
		return true
	}

	// Check if feature is enabled at all
	if !feature.Enabled {
		return false
	}

	// Check time-based activation
	now := time.Now()
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	// Check academic period targeting
	if len(feature.TargetPeriods) > 0 && ctx != nil && ctx.AcademicPeriod != "" {
		periodMatch := false
		for _, p := range feature.TargetPeriods {
			if p == ctx.AcademicPeriod {
				periodMatch = true
				break
			}
		}
		if !periodMatch {
			return false
		}
	}

	// Check rollout percentage
	if feature.RolloutPercent < 100 && ctx != nil && ctx.PlayerID != "" {
		return ff.isInRollout(ctx.PlayerID, featureName, feature.RolloutPercent)
	}

	return feature.RolloutPercent > 0
}

// isInRollout determines if a player is in the rollout percentage.
// Uses consistent hashing so players stay in their bucket.
func (ff *FeatureFlags) isInRollout(playerID string, featureName string, percent int) bool {
	// Create a consistent hash for this player+feature combination
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(playerID))
	hash := h.Sum32()

	// Map to 0-99 range
	bucket := int(hash % 100)

	return bucket < percent
}

// GetVariant returns the A/B test variant for a player.
// Returns empty string if no variants defined or feature disabled.
func (ff *FeatureFlags) GetVariant(featureName string, ctx *FeatureContext) string {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	feature, ok := ff.features[featureName]
	if !ok || !ff.IsEnabled(featureName, ctx) {
		return ""
	}

	if len(feature.Variants) == 0 {
		return ""
	}

	// Use consistent hashing to assign variant
	h := fnv.New32a()
	h.Write([]byte(featureName + "_variant"))
	h.Write([]byte(ctx.PlayerID))
	hash := h.Sum32()

	variantIndex := int(hash % uint32(len(feature.Variants)))
	return feature.Variants[variantIndex]
}

// SetPlayerOverride sets a feature override for a specific player.
// Useful for testing and debugging.
func (ff *FeatureFlags) SetPlayerOverride(playerID string, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.playerOverrides[playerID]; !ok {
		ff.playerOverrides[playerID] = make(map[string]bool)
	}
	ff.playerOverrides[playerID][featureName] = enabled
}

// ClearPlayerOverrides removes all overrides for a player.
func (ff *FeatureFlags) ClearPlayerOverrides(playerID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.playerOverrides, playerID)
}

// SetRolloutPercent updates the rollout percentage for a feature.
// Thread-safe for live updates.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}

	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0

	return nil
}

// EnableFeature enables a feature at 100% rollout.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 100)
}

// DisableFeature disables a feature completely.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 0)
}

// GetAllFeatures returns a copy of all feature configurations.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]*Feature, len(ff.features))
	for k, v := range ff.features {
		// Return a copy
		featureCopy := *v
		result[k] = &featureCopy
	}
	return result
}

// --- Errors ---

var (
	ErrFeatureNotFound       = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidRolloutPercent = &FeatureFlagError{Message: "rollout percent must be 0-100"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
