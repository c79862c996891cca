// Package pipeline wires extraction, metric calculation, and aggregation
// into the end-to-end snapshot-to-recommendation flow.
package pipeline

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/arbscout/sourcing-cli/internal/bizconfig"
	"github.com/arbscout/sourcing-cli/internal/extract"
	"github.com/arbscout/sourcing-cli/internal/metrics"
	"github.com/arbscout/sourcing-cli/internal/model"
	"github.com/arbscout/sourcing-cli/internal/scoring"
)

// Request is one product to evaluate.
type Request struct {
	Snapshot *model.RawSnapshot

	// DomainID selects the domain configuration scope; <= 0 skips it.
	DomainID int

	// Strategy names the sourcing strategy for the inverse ROI solve.
	// Ignored when BuyCost is set.
	Strategy string

	// BuyCost, when non-nil, switches ROI to the forward computation
	// against a known acquisition cost.
	BuyCost *decimal.Decimal
}

// Result is everything one evaluation produced, for rendering and audit.
type Result struct {
	Product          model.NormalizedProduct    `json:"product"`
	Inputs           model.ScoreInputs          `json:"inputs"`
	Recommendation   model.RecommendationResult `json:"recommendation"`
	SuggestedBuyCost decimal.Decimal            `json:"suggested_buy_cost"`
	ConfigSources    []bizconfig.SourceFlag     `json:"config_sources,omitempty"`
}

// Scorer runs the full evaluation flow against resolver-supplied
// configuration. It holds no per-request state; one Scorer serves any number
// of concurrent evaluations.
type Scorer struct {
	resolver *bizconfig.Resolver
}

// NewScorer builds a Scorer over the given resolver.
func NewScorer(resolver *bizconfig.Resolver) *Scorer {
	return &Scorer{resolver: resolver}
}

// Evaluate scores one product. It is total over snapshot data: malformed or
// empty snapshots flow through as absent metrics and fail gates. Only
// configuration resolution can degrade the result outright, and that becomes
// a SKIP with the error in the reason, not a returned error.
func (s *Scorer) Evaluate(ctx context.Context, req Request) Result {
	var asin, title, category string
	if req.Snapshot != nil {
		asin = req.Snapshot.ASIN
		title = req.Snapshot.Title
		category = req.Snapshot.RootCategory
	}

	eff, err := s.resolver.GetEffective(ctx, req.DomainID, category)
	if err != nil {
		zap.L().Error("config resolution failed", zap.String("asin", asin), zap.Error(err))
		return Result{
			Recommendation: scoring.Degraded(asin, title, err),
		}
	}
	cfg := eff.Config

	product := extract.Extract(req.Snapshot, extract.Options{
		LookbackDays: cfg.LookbackDays,
		Benchmarks:   cfg.Benchmarks,
	})

	benchmark := cfg.BenchmarkFor(category)
	velocity, velocityComp := metrics.Velocity(product, benchmark)
	stability, stabilityComp := metrics.Stability(product)
	competition, competitionComp := metrics.Competition(product)

	var (
		roi       float64
		roiComp   map[string]float64
		suggested decimal.Decimal
	)
	sellPrice := sellingPrice(product)
	if req.BuyCost != nil {
		roi, roiComp = metrics.ROIForward(sellPrice, *req.BuyCost, cfg.Fees)
		suggested = *req.BuyCost
	} else {
		suggested, roi, roiComp = metrics.ROIInverse(sellPrice, req.Strategy, cfg.Strategies, cfg.Fees)
	}

	inputs := model.ScoreInputs{
		ASIN:                  asin,
		Title:                 title,
		ROIPercent:            roi,
		VelocityScore:         velocity,
		StabilityScore:        stability,
		CompetitionScore:      competition,
		ROIComponents:         roiComp,
		VelocityComponents:    velocityComp,
		StabilityComponents:   stabilityComp,
		CompetitionComponents: competitionComp,
		FirstPartyPresent:     product.FirstPartyPresent,
		FirstPartyHasBuyBox:   product.FirstPartyHasBuyBox,
	}

	return Result{
		Product:          product,
		Inputs:           inputs,
		Recommendation:   scoring.Score(inputs, cfg),
		SuggestedBuyCost: suggested,
		ConfigSources:    eff.Sources,
	}
}

func sellingPrice(p model.NormalizedProduct) decimal.Decimal {
	if p.CurrentPrice.Present() {
		return *p.CurrentPrice.Value
	}
	return decimal.Zero
}
