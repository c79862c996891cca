package metrics

import "github.com/arbscout/sourcing-cli/internal/model"

// stabilityNeutral is returned when the window holds fewer than 2 price
// points — not enough to measure variation either way.
const stabilityNeutral = 50

// covMultiplier scales the price coefficient of variation (in percent) into
// score points: a 20% relative swing floors the score at 0.
const covMultiplier = 5

// Stability scores price steadiness over the window, 0-100. Violent price
// swings make realized margins unpredictable.
func Stability(p model.NormalizedProduct) (float64, map[string]float64) {
	components := make(map[string]float64, 3)

	if len(p.PriceHistory) < 2 {
		components[TagInsufficientData] = 1
		components["price_points"] = float64(len(p.PriceHistory))
		return stabilityNeutral, components
	}

	cov := covPercent(prices(p))
	components["price_cov_percent"] = cov
	components["price_points"] = float64(len(p.PriceHistory))

	penalty := cov * covMultiplier
	if penalty > 100 {
		penalty = 100
	}
	return 100 - penalty, components
}
