// Package scoring combines the metric calculator outputs into a weighted
// score and maps it, through boolean gates and override rules, onto a
// recommendation tier.
package scoring

import (
	"fmt"
	"strings"

	"github.com/arbscout/sourcing-cli/internal/bizconfig"
	"github.com/arbscout/sourcing-cli/internal/model"
)

const gateCount = 6

// Override cutoffs. These fire after the base tier mapping and always win.
const (
	overrideMinROIPercent = 15.0
	overrideMaxRiskScore  = 85.0
)

// gateResult is one boolean criterion with the evidence behind it.
type gateResult struct {
	Name   string
	Passed bool
	Detail string
}

// Score aggregates calculator outputs into a final recommendation. It is a
// pure function: it never errors and never mutates its inputs. Degraded
// upstream data arrives as zero scores and simply fails gates.
func Score(in model.ScoreInputs, cfg bizconfig.BusinessConfig) model.RecommendationResult {
	risk := in.RiskScore()
	tierName, daysToSell := cfg.DaysToSell(in.VelocityScore)

	gates := evalGates(in, cfg, risk, daysToSell)
	passed := 0
	for _, g := range gates {
		if g.Passed {
			passed++
		}
	}

	tier := baseTier(passed)
	tier, overridden := applyOverrides(tier, in, risk)

	res := model.RecommendationResult{
		ASIN:              in.ASIN,
		Title:             in.Title,
		Recommendation:    tier,
		ConfidencePercent: confidence(passed, in, risk),
		CombinedScore:     combinedScore(in, cfg),
		CriteriaPassed:    passed,
		ROIPercent:        in.ROIPercent,
		VelocityScore:     in.VelocityScore,
		StabilityScore:    in.StabilityScore,
		RiskScore:         risk,
	}
	res.Reason = buildReason(in, gates, passed, overridden, tierName, daysToSell)
	res.SuggestedAction = suggestedAction(tier)
	res.NextSteps = nextSteps(tier, in)
	return res
}

// Degraded is the aggregator's failure path: any upstream computation error
// becomes a SKIP with zero confidence and the error text in the reason,
// never a propagated error.
func Degraded(asin, title string, err error) model.RecommendationResult {
	reason := "scoring failed"
	if err != nil {
		reason = "scoring failed: " + err.Error()
	}
	return model.RecommendationResult{
		ASIN:            asin,
		Title:           title,
		Recommendation:  model.TierSkip,
		Reason:          reason,
		SuggestedAction: suggestedAction(model.TierSkip),
		NextSteps:       []string{"Re-fetch the snapshot and retry"},
	}
}

// combinedScore is the order-independent weighted sum of the four metrics.
// ROI is the only input not already bounded, so it is clamped to [0,100]
// before weighting.
func combinedScore(in model.ScoreInputs, cfg bizconfig.BusinessConfig) float64 {
	roi := in.ROIPercent
	if roi < 0 {
		roi = 0
	}
	if roi > 100 {
		roi = 100
	}
	w := cfg.Weights
	return w.ROI*roi +
		w.Velocity*in.VelocityScore +
		w.Stability*in.StabilityScore +
		w.Competition*in.CompetitionScore
}

func evalGates(in model.ScoreInputs, cfg bizconfig.BusinessConfig, risk float64, daysToSell int) []gateResult {
	g := cfg.Gates
	return []gateResult{
		{
			Name:   "roi",
			Passed: in.ROIPercent >= g.MinROIPercent,
			Detail: fmt.Sprintf("ROI %.1f%% vs min %.1f%%", in.ROIPercent, g.MinROIPercent),
		},
		{
			Name:   "velocity",
			Passed: in.VelocityScore >= g.MinVelocityScore,
			Detail: fmt.Sprintf("velocity %.0f vs min %.0f", in.VelocityScore, g.MinVelocityScore),
		},
		{
			Name:   "risk",
			Passed: risk < g.MaxRiskScore,
			Detail: fmt.Sprintf("risk %.0f vs max %.0f", risk, g.MaxRiskScore),
		},
		{
			Name:   "time_to_sell",
			Passed: daysToSell <= g.MaxDaysToSell,
			Detail: fmt.Sprintf("~%dd to sell vs max %dd", daysToSell, g.MaxDaysToSell),
		},
		{
			Name:   "no_first_party",
			Passed: !in.FirstPartyPresent,
			Detail: "no first-party seller on the listing",
		},
		{
			Name:   "stability",
			Passed: in.StabilityScore >= g.MinStabilityScore,
			Detail: fmt.Sprintf("stability %.0f vs min %.0f", in.StabilityScore, g.MinStabilityScore),
		},
	}
}

func baseTier(passed int) model.Tier {
	switch {
	case passed >= gateCount:
		return model.TierStrongBuy
	case passed == 5:
		return model.TierBuy
	case passed == 4:
		return model.TierConsider
	case passed == 3:
		return model.TierWatch
	default:
		return model.TierSkip
	}
}

// applyOverrides forces the tier down when a deal-breaker is present,
// regardless of how many gates passed.
func applyOverrides(tier model.Tier, in model.ScoreInputs, risk float64) (model.Tier, string) {
	switch {
	case in.FirstPartyHasBuyBox:
		return model.TierAvoid, "first-party seller holds the buy box"
	case in.ROIPercent < overrideMinROIPercent:
		return model.TierSkip, fmt.Sprintf("ROI %.1f%% below %.0f%% floor", in.ROIPercent, overrideMinROIPercent)
	case risk > overrideMaxRiskScore:
		return model.TierSkip, fmt.Sprintf("risk %.0f above %.0f ceiling", risk, overrideMaxRiskScore)
	}
	return tier, ""
}

func confidence(passed int, in model.ScoreInputs, risk float64) float64 {
	c := float64(passed) / gateCount * 60

	switch {
	case in.ROIPercent >= 50:
		c += 15
	case in.ROIPercent >= 30:
		c += 10
	}
	switch {
	case in.VelocityScore >= 80:
		c += 10
	case in.VelocityScore >= 60:
		c += 5
	}
	switch {
	case risk < 30:
		c += 10
	case risk < 50:
		c += 5
	}

	if c > 100 {
		return 100
	}
	return c
}

func buildReason(in model.ScoreInputs, gates []gateResult, passed int, overridden, tierName string, daysToSell int) string {
	if overridden != "" {
		return "Overridden: " + overridden
	}

	var failed []string
	for _, g := range gates {
		if !g.Passed {
			failed = append(failed, g.Detail)
		}
	}
	head := fmt.Sprintf("Passed %d/%d criteria: ROI %.1f%%, velocity %.0f (%s, ~%dd), risk %.0f",
		passed, gateCount, in.ROIPercent, in.VelocityScore, tierName, daysToSell, in.RiskScore())
	if len(failed) == 0 {
		return head
	}
	return head + "; failed: " + strings.Join(failed, ", ")
}

func suggestedAction(tier model.Tier) string {
	switch tier {
	case model.TierStrongBuy:
		return "Source immediately at or below the suggested buy cost"
	case model.TierBuy:
		return "Source at the target buy cost"
	case model.TierConsider:
		return "Verify margins and competition before sourcing"
	case model.TierWatch:
		return "Track rank and price; revisit on improvement"
	case model.TierAvoid:
		return "Do not source this listing"
	default:
		return "Pass on this opportunity"
	}
}

func nextSteps(tier model.Tier, in model.ScoreInputs) []string {
	switch tier {
	case model.TierStrongBuy, model.TierBuy:
		return []string{
			"Confirm supplier availability and landed cost",
			"Check listing restrictions before committing",
		}
	case model.TierConsider:
		return []string{
			"Re-check fees against the current buy-box price",
			"Review seller count trend over the last 30 days",
		}
	case model.TierWatch:
		steps := []string{"Add to the watch list and re-score weekly"}
		if in.VelocityScore < 50 {
			steps = append(steps, "Wait for rank to improve before sourcing")
		}
		return steps
	case model.TierAvoid:
		return []string{"Remove from the sourcing pipeline"}
	default:
		return []string{"No action required"}
	}
}
