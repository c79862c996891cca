package model

// Tier is the closed set of recommendation outcomes.
type Tier string

const (
	TierStrongBuy Tier = "STRONG_BUY"
	TierBuy       Tier = "BUY"
	TierConsider  Tier = "CONSIDER"
	TierWatch     Tier = "WATCH"
	TierSkip      Tier = "SKIP"
	TierAvoid     Tier = "AVOID"
)

// Valid reports whether t is a member of the closed tier set.
func (t Tier) Valid() bool {
	switch t {
	case TierStrongBuy, TierBuy, TierConsider, TierWatch, TierSkip, TierAvoid:
		return true
	}
	return false
}

// ScoreInputs bundles the calculator outputs fed to the aggregator.
// Component maps carry per-factor sub-scores for explainability.
type ScoreInputs struct {
	ASIN  string `json:"asin"`
	Title string `json:"title"`

	ROIPercent       float64 `json:"roi_percent"`
	VelocityScore    float64 `json:"velocity_score"`
	StabilityScore   float64 `json:"stability_score"`
	CompetitionScore float64 `json:"competition_score"`

	ROIComponents         map[string]float64 `json:"roi_components,omitempty"`
	VelocityComponents    map[string]float64 `json:"velocity_components,omitempty"`
	StabilityComponents   map[string]float64 `json:"stability_components,omitempty"`
	CompetitionComponents map[string]float64 `json:"competition_components,omitempty"`

	FirstPartyPresent   bool `json:"first_party_present"`
	FirstPartyHasBuyBox bool `json:"first_party_has_buy_box"`
}

// RiskScore is the complement of the competition score: the higher the seller
// pressure, the higher the risk of being outsold on the listing.
func (in ScoreInputs) RiskScore() float64 {
	risk := 100 - in.CompetitionScore
	if risk < 0 {
		return 0
	}
	if risk > 100 {
		return 100
	}
	return risk
}

// RecommendationResult is the aggregator's final verdict. Pure output value;
// the core never persists it.
type RecommendationResult struct {
	ASIN  string `json:"asin"`
	Title string `json:"title,omitempty"`

	Recommendation    Tier    `json:"recommendation"`
	ConfidencePercent float64 `json:"confidence_percent"`
	CombinedScore     float64 `json:"combined_score"`
	CriteriaPassed    int     `json:"criteria_passed"`

	Reason          string   `json:"reason"`
	SuggestedAction string   `json:"suggested_action"`
	NextSteps       []string `json:"next_steps"`

	ROIPercent     float64 `json:"roi_percent"`
	VelocityScore  float64 `json:"velocity_score"`
	StabilityScore float64 `json:"stability_score"`
	RiskScore      float64 `json:"risk_score"`
}
