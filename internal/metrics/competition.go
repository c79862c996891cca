package metrics

import "github.com/arbscout/sourcing-cli/internal/model"

const (
	// sellerPenaltyMax is the largest deduction for raw seller count; it is
	// reached at sellerPenaltySaturation sellers.
	sellerPenaltyMax        = 40
	sellerPenaltySaturation = 20

	// fewSellerBonus rewards listings with at most fewSellerThreshold sellers.
	fewSellerBonus     = 20
	fewSellerThreshold = 3

	// fulfilledDominancePenalty applies when fulfilled-by-platform sellers
	// exceed fulfilledDominanceShare of all sellers — they win the buy-box
	// disproportionately.
	fulfilledDominancePenalty = 15
	fulfilledDominanceShare   = 0.70

	// firstPartyPenalty applies whenever the platform's own retail offer is
	// on the listing.
	firstPartyPenalty = 25
)

// Competition scores how contested the listing is, 0-100; higher means less
// competition. A zero seller count is scored, not tagged: an empty listing is
// the least contested state, not missing data.
func Competition(p model.NormalizedProduct) (float64, map[string]float64) {
	components := make(map[string]float64, 4)
	score := 100.0

	sellers := float64(p.TotalSellerCount)
	penalty := sellers / sellerPenaltySaturation * sellerPenaltyMax
	if penalty > sellerPenaltyMax {
		penalty = sellerPenaltyMax
	}
	components["seller_count_penalty"] = -penalty
	score -= penalty

	if p.TotalSellerCount > 0 && p.TotalSellerCount <= fewSellerThreshold {
		components["few_seller_bonus"] = fewSellerBonus
		score += fewSellerBonus
	}

	if p.TotalSellerCount > 0 {
		share := float64(p.FulfilledCount) / sellers
		if share > fulfilledDominanceShare {
			components["fulfilled_dominance_penalty"] = -fulfilledDominancePenalty
			score -= fulfilledDominancePenalty
		}
	}

	if p.FirstPartyPresent {
		components["first_party_penalty"] = -firstPartyPenalty
		score -= firstPartyPenalty
	}

	return clamp(score, 0, 100), components
}
