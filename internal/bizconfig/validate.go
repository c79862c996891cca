package bizconfig

import (
	"fmt"
	"math"
	"strings"
)

// weightTolerance is how far the weight sum may drift from 1.0 before a
// write is rejected.
const weightTolerance = 0.001

// ValidationError reports every invariant a candidate configuration breaks.
// A write that produces one is rejected atomically; the stored version is
// untouched.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "bizconfig: validation failed: " + strings.Join(e.Issues, "; ")
}

// Validate checks a fully resolved configuration against the write-time
// invariants. It returns a *ValidationError listing every violation, or nil.
func Validate(c BusinessConfig) error {
	var issues []string

	weights := map[string]float64{
		"weights.roi":         c.Weights.ROI,
		"weights.velocity":    c.Weights.Velocity,
		"weights.stability":   c.Weights.Stability,
		"weights.competition": c.Weights.Competition,
	}
	for name, w := range weights {
		if w < 0 {
			issues = append(issues, fmt.Sprintf("%s must be >= 0, got %.3f", name, w))
		}
	}
	if sum := c.Weights.Sum(); math.Abs(sum-1.0) > weightTolerance {
		issues = append(issues, fmt.Sprintf("weights must sum to 1.0 (±%.3f), got %.4f", weightTolerance, sum))
	}

	if c.ROI.TargetPercent < c.ROI.MinAcceptable {
		issues = append(issues, fmt.Sprintf("roi.target_percent (%.1f) must be >= roi.min_acceptable (%.1f)",
			c.ROI.TargetPercent, c.ROI.MinAcceptable))
	}
	if c.ROI.ExcellentThreshold < c.ROI.TargetPercent {
		issues = append(issues, fmt.Sprintf("roi.excellent_threshold (%.1f) must be >= roi.target_percent (%.1f)",
			c.ROI.ExcellentThreshold, c.ROI.TargetPercent))
	}

	issues = append(issues, validateTiers(c.VelocityTiers)...)

	if c.Fees.ReferralPercent < 0 || c.Fees.ReferralPercent > 1 {
		issues = append(issues, fmt.Sprintf("fees.referral_percent must be within [0,1], got %.3f", c.Fees.ReferralPercent))
	}
	if c.Fees.FulfillmentFee < 0 {
		issues = append(issues, "fees.fulfillment_fee must be >= 0")
	}
	if c.Fees.ClosingFee < 0 {
		issues = append(issues, "fees.closing_fee must be >= 0")
	}
	for _, s := range c.Strategies {
		if s.Name == "" {
			issues = append(issues, "strategies: every strategy needs a name")
		}
		if s.TargetROI < 0 {
			issues = append(issues, fmt.Sprintf("strategies.%s: target_roi must be >= 0", s.Name))
		}
	}

	for name, v := range c.Benchmarks {
		if v <= 0 {
			issues = append(issues, fmt.Sprintf("benchmarks.%s must be > 0, got %d", name, v))
		}
	}
	if c.DefaultBenchmark <= 0 {
		issues = append(issues, "default_benchmark must be > 0")
	}
	if c.LookbackDays <= 0 {
		issues = append(issues, "lookback_days must be > 0")
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}

func validateTiers(tiers []VelocityTier) []string {
	var issues []string
	if len(tiers) == 0 {
		return []string{"velocity_tiers must not be empty"}
	}
	for i, t := range tiers {
		if t.Name == "" {
			issues = append(issues, fmt.Sprintf("velocity_tiers[%d]: name required", i))
		}
		if t.MaxScore < t.MinScore {
			issues = append(issues, fmt.Sprintf("velocity_tiers[%d] (%s): max_score < min_score", i, t.Name))
		}
		if t.EstimatedDaysToSell <= 0 {
			issues = append(issues, fmt.Sprintf("velocity_tiers[%d] (%s): estimated_days_to_sell must be > 0", i, t.Name))
		}
		if i == 0 {
			continue
		}
		prev := tiers[i-1]
		if t.MinScore < prev.MinScore {
			issues = append(issues, fmt.Sprintf("velocity_tiers[%d] (%s): tiers must be ordered ascending by min_score", i, t.Name))
		}
		if t.MinScore < prev.MaxScore {
			issues = append(issues, fmt.Sprintf("velocity_tiers[%d] (%s): overlaps %s", i, t.Name, prev.Name))
		}
	}
	return issues
}
