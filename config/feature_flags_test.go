package config

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureFlags_Defaults(t *testing.T) {
	ff := LoadFeatureFlags()

	ctx := &FeatureContext{PlayerID: "p1"}
	assert.True(t, ff.IsEnabled(FeatureGameboardRolls, ctx))
	assert.True(t, ff.IsEnabled(FeatureAwardsBulk, ctx))
	assert.False(t, ff.IsEnabled(FeatureExperimentalSeasons, ctx))
	assert.False(t, ff.IsEnabled("does.not.exist", ctx))
}

func TestFeatureFlags_EnvOverrides(t *testing.T) {
	t.Setenv("FEATURE_AWARDS_BULK", "false")
	t.Setenv("FEATURE_EXPERIMENTAL_SEASONS", "true")

	ff := LoadFeatureFlags()
	ctx := &FeatureContext{PlayerID: "p1"}

	assert.False(t, ff.IsEnabled(FeatureAwardsBulk, ctx))
	assert.True(t, ff.IsEnabled(FeatureExperimentalSeasons, ctx))
}

func TestFeatureFlags_PercentRolloutIsConsistent(t *testing.T) {
	ff := LoadFeatureFlags()
	require.NoError(t, ff.SetRolloutPercent(FeatureExperimentalAnalytics, 50))

	enabled := 0
	for i := 0; i < 200; i++ {
		ctx := &FeatureContext{PlayerID: fmt.Sprintf("player-%d", i)}
		first := ff.IsEnabled(FeatureExperimentalAnalytics, ctx)
		// Same player always lands in the same bucket.
		assert.Equal(t, first, ff.IsEnabled(FeatureExperimentalAnalytics, ctx))
		if first {
			enabled++
		}
	}

	// Roughly half the class, allowing for hash skew.
	assert.Greater(t, enabled, 50)
	assert.Less(t, enabled, 150)
}

func TestFeatureFlags_RolloutBounds(t *testing.T) {
	ff := LoadFeatureFlags()

	assert.ErrorIs(t, ff.SetRolloutPercent(FeatureAwardsBulk, 101), ErrInvalidRolloutPercent)
	assert.ErrorIs(t, ff.SetRolloutPercent(FeatureAwardsBulk, -1), ErrInvalidRolloutPercent)
	assert.ErrorIs(t, ff.SetRolloutPercent("does.not.exist", 50), ErrFeatureNotFound)

	require.NoError(t, ff.DisableFeature(FeatureAwardsBulk))
	assert.False(t, ff.IsEnabled(FeatureAwardsBulk, &FeatureContext{PlayerID: "p1"}))

	require.NoError(t, ff.EnableFeature(FeatureAwardsBulk))
	assert.True(t, ff.IsEnabled(FeatureAwardsBulk, &FeatureContext{PlayerID: "p1"}))
}

func TestFeatureFlags_PlayerOverridesWin(t *testing.T) {
	ff := LoadFeatureFlags()

	ff.SetPlayerOverride("p1", FeatureGameboardRolls, false)
	assert.False(t, ff.IsEnabled(FeatureGameboardRolls, &FeatureContext{PlayerID: "p1"}))
	assert.True(t, ff.IsEnabled(FeatureGameboardRolls, &FeatureContext{PlayerID: "p2"}))

	ff.SetPlayerOverride("p1", FeatureExperimentalSeasons, true)
	assert.True(t, ff.IsEnabled(FeatureExperimentalSeasons, &FeatureContext{PlayerID: "p1"}))

	ff.ClearPlayerOverrides("p1")
	assert.True(t, ff.IsEnabled(FeatureGameboardRolls, &FeatureContext{PlayerID: "p1"}))
	assert.False(t, ff.IsEnabled(FeatureExperimentalSeasons, &FeatureContext{PlayerID: "p1"}))
}

func TestFeatureFlags_InstructorsGetEverything(t *testing.T) {
	ff := LoadFeatureFlags()

	ctx := &FeatureContext{PlayerID: "instructor:alia", IsInstructor: true}
	assert.True(t, ff.IsEnabled(FeatureExperimentalSeasons, ctx))
	assert.True(t, ff.IsEnabled(FeatureExperimentalAnalytics, ctx))
}

func TestFeatureFlags_GetAllFeaturesReturnsCopies(t *testing.T) {
	ff := LoadFeatureFlags()

	all := ff.GetAllFeatures()
	require.Contains(t, all, FeatureAwardsBulk)

	// Mutating the copy must not affect live flags.
	all[FeatureAwardsBulk].Enabled = false
	assert.True(t, ff.IsEnabled(FeatureAwardsBulk, &FeatureContext{PlayerID: "p1"}))
}
