package bizconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg, err := DefaultConfig()
	require.NoError(t, err)

	assert.InDelta(t, 1.0, cfg.Weights.Sum(), weightTolerance)
	assert.GreaterOrEqual(t, cfg.ROI.TargetPercent, cfg.ROI.MinAcceptable)
	assert.GreaterOrEqual(t, cfg.ROI.ExcellentThreshold, cfg.ROI.TargetPercent)
	assert.NotEmpty(t, cfg.VelocityTiers)
	assert.NotEmpty(t, cfg.Strategies)
	assert.Positive(t, cfg.DefaultBenchmark)
	assert.Equal(t, 90, cfg.LookbackDays)
}

func TestScope_RoundTrip(t *testing.T) {
	cases := []string{"global", "domain:1", "domain:12", "category:Toys & Games"}
	for _, key := range cases {
		sc, err := ParseScope(key)
		require.NoError(t, err, key)
		assert.Equal(t, key, sc.String())
	}
}

func TestParseScope_Invalid(t *testing.T) {
	for _, key := range []string{"", "domain:", "domain:abc", "domain:-3", "category:", "site:us"} {
		_, err := ParseScope(key)
		assert.Error(t, err, key)
	}
}

func TestDaysToSell_TierBands(t *testing.T) {
	cfg := MustDefaultConfig()

	cases := []struct {
		score float64
		tier  string
		days  int
	}{
		{95, "very_fast", 7},
		{80, "very_fast", 7}, // boundary lands in the faster tier
		{70, "fast", 14},
		{50, "moderate", 30},
		{25, "slow", 60},
		{5, "very_slow", 120},
		{0, "very_slow", 120},
	}
	for _, tc := range cases {
		tier, days := cfg.DaysToSell(tc.score)
		assert.Equal(t, tc.tier, tier, "score %.0f", tc.score)
		assert.Equal(t, tc.days, days, "score %.0f", tc.score)
	}
}

func TestBenchmarkFor(t *testing.T) {
	cfg := MustDefaultConfig()

	assert.Equal(t, int64(120000), cfg.BenchmarkFor("Toys & Games"))
	assert.Equal(t, cfg.DefaultBenchmark, cfg.BenchmarkFor("Obscure Category"))
}

func TestValidate_ROIInvariants(t *testing.T) {
	cfg := MustDefaultConfig()
	cfg.ROI.MinAcceptable = 50
	cfg.ROI.TargetPercent = 30

	err := Validate(cfg)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Error(), "min_acceptable")
}

func TestValidate_ExcellentBelowTarget(t *testing.T) {
	cfg := MustDefaultConfig()
	cfg.ROI.ExcellentThreshold = cfg.ROI.TargetPercent - 1

	var verr *ValidationError
	require.ErrorAs(t, Validate(cfg), &verr)
}

func TestValidate_WeightSum(t *testing.T) {
	cfg := MustDefaultConfig()
	cfg.Weights.ROI += 0.05

	var verr *ValidationError
	require.ErrorAs(t, Validate(cfg), &verr)
	assert.Contains(t, verr.Error(), "sum to 1.0")

	// Drift within tolerance passes.
	cfg = MustDefaultConfig()
	cfg.Weights.ROI += 0.0005
	assert.NoError(t, Validate(cfg))
}

func TestValidate_TierOverlap(t *testing.T) {
	cfg := MustDefaultConfig()
	cfg.VelocityTiers = []VelocityTier{
		{Name: "a", MinScore: 0, MaxScore: 50, EstimatedDaysToSell: 60},
		{Name: "b", MinScore: 40, MaxScore: 100, EstimatedDaysToSell: 10},
	}

	var verr *ValidationError
	require.ErrorAs(t, Validate(cfg), &verr)
	assert.Contains(t, verr.Error(), "overlaps")
}

func TestValidate_TierOrdering(t *testing.T) {
	cfg := MustDefaultConfig()
	cfg.VelocityTiers = []VelocityTier{
		{Name: "fast", MinScore: 60, MaxScore: 100, EstimatedDaysToSell: 10},
		{Name: "slow", MinScore: 0, MaxScore: 60, EstimatedDaysToSell: 60},
	}

	var verr *ValidationError
	require.ErrorAs(t, Validate(cfg), &verr)
	assert.Contains(t, verr.Error(), "ascending")
}

func TestDeepMerge_NestedAndReplace(t *testing.T) {
	base := map[string]any{
		"roi":     map[string]any{"target_percent": 30.0, "min_acceptable": 15.0},
		"weights": map[string]any{"roi": 0.35},
		"tiers":   []any{"a", "b"},
	}
	patch := map[string]any{
		"roi":   map[string]any{"target_percent": 40.0},
		"tiers": []any{"c"},
	}

	out := deepMerge(base, patch)

	roi := out["roi"].(map[string]any)
	assert.Equal(t, 40.0, roi["target_percent"])
	assert.Equal(t, 15.0, roi["min_acceptable"]) // sibling fields survive
	assert.Equal(t, []any{"c"}, out["tiers"])    // arrays replace wholesale
	assert.Equal(t, map[string]any{"roi": 0.35}, out["weights"])

	// Inputs are untouched.
	assert.Equal(t, 30.0, base["roi"].(map[string]any)["target_percent"])
}

func TestDeepMerge_Idempotent(t *testing.T) {
	base := map[string]any{
		"gates": map[string]any{"min_roi_percent": 20.0, "max_risk_score": 70.0},
	}
	patch := map[string]any{
		"gates": map[string]any{"max_risk_score": 60.0},
	}

	once := deepMerge(base, patch)
	twice := deepMerge(once, patch)
	assert.Equal(t, once, twice)
}
