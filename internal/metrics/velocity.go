package metrics

import "github.com/arbscout/sourcing-cli/internal/model"

// Velocity component contribution caps.
const (
	velocityRankPoints        = 30
	velocityImprovementPoints = 25
	velocityUptimePoints      = 25
	velocityVolatilityPoints  = 20

	// improvementsForFullCredit is the rank-improvement count that maxes out
	// that component.
	improvementsForFullCredit = 10

	// volatilityCap bounds each volatility input (offer-count stdev and price
	// CoV%) before they are combined.
	volatilityCap = 10
)

// Velocity estimates how fast a product sells, 0-100. benchmark is the median
// best-sellers rank of the product's category; non-positive benchmarks
// disable the rank component. Without a rank and without rank history the
// score is the minimum with a NO_DATA tag.
func Velocity(p model.NormalizedProduct, benchmark int64) (float64, map[string]float64) {
	components := make(map[string]float64, 5)

	if !p.CurrentRank.Present() && len(p.RankHistory) == 0 {
		components[TagNoData] = 1
		return 0, components
	}

	score := 0.0

	// (a) Rank percentile vs. the category benchmark, bucketed.
	if p.CurrentRank.Present() && benchmark > 0 {
		ratio := float64(*p.CurrentRank.Value) / float64(benchmark)
		bucket := rankBucket(ratio)
		contribution := bucket / 100 * velocityRankPoints
		components["rank_percentile"] = contribution
		score += contribution
	} else {
		components[TagInsufficientData] = 1
	}

	// (b) Rank improvements across the window (lower is better).
	improvements := 0
	for i := 1; i < len(p.RankHistory); i++ {
		if p.RankHistory[i].Rank < p.RankHistory[i-1].Rank {
			improvements++
		}
	}
	if improvements > improvementsForFullCredit {
		improvements = improvementsForFullCredit
	}
	improvementScore := float64(improvements) / improvementsForFullCredit * velocityImprovementPoints
	components["rank_improvements"] = improvementScore
	score += improvementScore

	// (c) Buy-box availability uptime.
	if len(p.BuyBoxHistory) > 0 {
		up := 0
		for _, pt := range p.BuyBoxHistory {
			if pt.Available {
				up++
			}
		}
		uptime := float64(up) / float64(len(p.BuyBoxHistory))
		uptimeScore := uptime * velocityUptimePoints
		components["buy_box_uptime"] = uptimeScore
		score += uptimeScore
	}

	// (d) Inverse volatility: calm offer counts and stable prices read as
	// steady demand. No history at all is unknown, not calm: half credit.
	var volScore float64
	if len(p.OfferHistory) < 2 && len(p.PriceHistory) < 2 {
		components[TagInsufficientData] = 1
		volScore = velocityVolatilityPoints / 2.0
	} else {
		vol := clamp(stddev(offerCounts(p)), 0, volatilityCap) +
			clamp(covPercent(prices(p)), 0, volatilityCap)
		volScore = velocityVolatilityPoints * (1 - vol/(2*volatilityCap))
	}
	components["volatility"] = volScore
	score += volScore

	return clamp(score, 0, 100), components
}

// rankBucket maps the rank/benchmark ratio to a 0-100 bucket score. A product
// ranking inside the top tenth of its category benchmark gets 90.
func rankBucket(ratio float64) float64 {
	switch {
	case ratio <= 0.10:
		return 90
	case ratio <= 0.25:
		return 75
	case ratio <= 0.50:
		return 50
	case ratio <= 1.00:
		return 25
	default:
		return 10
	}
}

func offerCounts(p model.NormalizedProduct) []float64 {
	out := make([]float64, len(p.OfferHistory))
	for i, pt := range p.OfferHistory {
		out[i] = float64(pt.Count)
	}
	return out
}

func prices(p model.NormalizedProduct) []float64 {
	out := make([]float64, len(p.PriceHistory))
	for i, pt := range p.PriceHistory {
		out[i], _ = pt.Price.Float64()
	}
	return out
}
