// Package fees models marketplace selling fees and the named sourcing
// strategies that drive inverse ROI targets.
package fees

import "github.com/shopspring/decimal"

// DefaultTargetROI is the hard-contract fallback, in percent: a missing
// strategy or an unset target always resolves to 30.
const DefaultTargetROI = 30.0

// Schedule is the fee model applied to a sale. Fees depend only on the sell
// price, which keeps the inverse ROI solve closed-form.
type Schedule struct {
	// ReferralPercent is the marketplace commission, as a fraction of the
	// sell price (0.15 = 15%).
	ReferralPercent float64 `json:"referral_percent" yaml:"referral_percent" mapstructure:"referral_percent"`

	// FulfillmentFee is the flat pick-pack-ship fee per unit.
	FulfillmentFee float64 `json:"fulfillment_fee" yaml:"fulfillment_fee" mapstructure:"fulfillment_fee"`

	// ClosingFee is the flat per-item closing fee, zero for most categories.
	ClosingFee float64 `json:"closing_fee" yaml:"closing_fee" mapstructure:"closing_fee"`
}

// DefaultSchedule returns the standard-category fee model.
func DefaultSchedule() Schedule {
	return Schedule{
		ReferralPercent: 0.15,
		FulfillmentFee:  3.00,
		ClosingFee:      0,
	}
}

// Estimate returns the total fees charged on selling one unit at sellPrice,
// rounded to 2 decimal places.
func (s Schedule) Estimate(sellPrice decimal.Decimal) decimal.Decimal {
	referral := sellPrice.Mul(decimal.NewFromFloat(s.ReferralPercent))
	total := referral.
		Add(decimal.NewFromFloat(s.FulfillmentFee)).
		Add(decimal.NewFromFloat(s.ClosingFee))
	return total.Round(2)
}

// Strategy is a named sourcing posture with an ROI target in percent.
type Strategy struct {
	Name      string  `json:"name" yaml:"name" mapstructure:"name"`
	TargetROI float64 `json:"target_roi" yaml:"target_roi" mapstructure:"target_roi"`
}

// ResolveTarget returns the ROI target for the named strategy, falling back
// to DefaultTargetROI when the strategy is unknown or its target is unset.
func ResolveTarget(name string, strategies []Strategy) float64 {
	for _, s := range strategies {
		if s.Name == name {
			if s.TargetROI > 0 {
				return s.TargetROI
			}
			return DefaultTargetROI
		}
	}
	return DefaultTargetROI
}
