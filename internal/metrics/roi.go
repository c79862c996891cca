package metrics

import (
	"github.com/shopspring/decimal"

	"github.com/arbscout/sourcing-cli/internal/fees"
)

var one = decimal.NewFromInt(1)

// ROIForward computes the return on investment, in percent, for buying at
// buyCost and selling at sellPrice under the given fee schedule. Non-positive
// inputs degrade to 0 with a NO_DATA tag.
func ROIForward(sellPrice, buyCost decimal.Decimal, schedule fees.Schedule) (float64, map[string]float64) {
	components := make(map[string]float64, 4)

	if sellPrice.Sign() <= 0 || buyCost.Sign() <= 0 {
		components[TagNoData] = 1
		return 0, components
	}

	fee := schedule.Estimate(sellPrice)
	netProfit := sellPrice.Sub(buyCost).Sub(fee)
	roi := netProfit.Div(buyCost).Mul(decimal.NewFromInt(100))

	components["sell_price"], _ = sellPrice.Float64()
	components["buy_cost"], _ = buyCost.Float64()
	components["fees"], _ = fee.Float64()
	components["net_profit"], _ = netProfit.Round(2).Float64()

	out, _ := roi.Round(2).Float64()
	return out, components
}

// ROIInverse solves for the buy cost that hits the named strategy's target
// ROI at the given sell price. Because fees depend only on the sell price the
// solve is closed-form:
//
//	buy = (sell − fees(sell)) / (1 + target/100)
//
// A solved cost that is non-positive or above the sell price falls back to
// half the sell price. Unknown strategies resolve to the 30% default target.
func ROIInverse(sellPrice decimal.Decimal, strategyName string, strategies []fees.Strategy, schedule fees.Schedule) (decimal.Decimal, float64, map[string]float64) {
	components := make(map[string]float64, 4)

	if sellPrice.Sign() <= 0 {
		components[TagNoData] = 1
		return decimal.Zero, 0, components
	}

	target := fees.ResolveTarget(strategyName, strategies)
	components["target_roi"] = target

	fee := schedule.Estimate(sellPrice)
	divisor := one.Add(decimal.NewFromFloat(target / 100))
	buy := sellPrice.Sub(fee).Div(divisor).Round(2)

	if buy.Sign() <= 0 || buy.GreaterThan(sellPrice) {
		buy = sellPrice.Mul(decimal.NewFromFloat(0.5)).Round(2)
		components["fallback_half_sell"] = 1
	}

	roi, fwd := ROIForward(sellPrice, buy, schedule)
	for k, v := range fwd {
		components[k] = v
	}
	return buy, roi, components
}
