// Package bizconfig resolves the business configuration that drives scoring:
// metric weights, ROI targets, gate thresholds, velocity tiers, and fee
// schedules. Configuration is layered by scope (global < domain < category)
// with field-by-field deep merge, and every write is versioned and audited.
package bizconfig

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/arbscout/sourcing-cli/internal/fees"
)

// Weights are the combined-score weights per metric. They must sum to 1.0
// (within tolerance, see Validate) before a configuration write is accepted.
type Weights struct {
	ROI         float64 `json:"roi" yaml:"roi" mapstructure:"roi"`
	Velocity    float64 `json:"velocity" yaml:"velocity" mapstructure:"velocity"`
	Stability   float64 `json:"stability" yaml:"stability" mapstructure:"stability"`
	Competition float64 `json:"competition" yaml:"competition" mapstructure:"competition"`
}

// Sum returns the total of all metric weights.
func (w Weights) Sum() float64 {
	return w.ROI + w.Velocity + w.Stability + w.Competition
}

// ROIConfig holds the ROI thresholds used by the scorer and its gates.
type ROIConfig struct {
	TargetPercent      float64 `json:"target_percent" yaml:"target_percent" mapstructure:"target_percent"`
	MinAcceptable      float64 `json:"min_acceptable" yaml:"min_acceptable" mapstructure:"min_acceptable"`
	ExcellentThreshold float64 `json:"excellent_threshold" yaml:"excellent_threshold" mapstructure:"excellent_threshold"`
}

// GateThresholds are the cutoffs for the boolean recommendation gates.
type GateThresholds struct {
	MinROIPercent     float64 `json:"min_roi_percent" yaml:"min_roi_percent" mapstructure:"min_roi_percent"`
	MinVelocityScore  float64 `json:"min_velocity_score" yaml:"min_velocity_score" mapstructure:"min_velocity_score"`
	MaxRiskScore      float64 `json:"max_risk_score" yaml:"max_risk_score" mapstructure:"max_risk_score"`
	MaxDaysToSell     int     `json:"max_days_to_sell" yaml:"max_days_to_sell" mapstructure:"max_days_to_sell"`
	MinStabilityScore float64 `json:"min_stability_score" yaml:"min_stability_score" mapstructure:"min_stability_score"`
}

// VelocityTier maps a velocity score band to an estimated time to sell.
// Tiers must be ordered ascending by MinScore and must not overlap.
type VelocityTier struct {
	Name                string  `json:"name" yaml:"name" mapstructure:"name"`
	MinScore            float64 `json:"min_score" yaml:"min_score" mapstructure:"min_score"`
	MaxScore            float64 `json:"max_score" yaml:"max_score" mapstructure:"max_score"`
	EstimatedDaysToSell int     `json:"estimated_days_to_sell" yaml:"estimated_days_to_sell" mapstructure:"estimated_days_to_sell"`
}

// BusinessConfig is the fully resolved configuration a scoring run operates
// on. All fields have concrete defaults (see DefaultConfig); scope overlays
// only ever narrow or retune them.
type BusinessConfig struct {
	Weights          Weights          `json:"weights" yaml:"weights" mapstructure:"weights"`
	ROI              ROIConfig        `json:"roi" yaml:"roi" mapstructure:"roi"`
	Gates            GateThresholds   `json:"gates" yaml:"gates" mapstructure:"gates"`
	VelocityTiers    []VelocityTier   `json:"velocity_tiers" yaml:"velocity_tiers" mapstructure:"velocity_tiers"`
	Fees             fees.Schedule    `json:"fees" yaml:"fees" mapstructure:"fees"`
	Strategies       []fees.Strategy  `json:"strategies" yaml:"strategies" mapstructure:"strategies"`
	Benchmarks       map[string]int64 `json:"benchmarks" yaml:"benchmarks" mapstructure:"benchmarks"`
	DefaultBenchmark int64            `json:"default_benchmark" yaml:"default_benchmark" mapstructure:"default_benchmark"`
	LookbackDays     int              `json:"lookback_days" yaml:"lookback_days" mapstructure:"lookback_days"`
}

// DaysToSell maps a velocity score onto the configured tier table and returns
// the tier name and its estimated days to sell. Tiers are ordered ascending
// by MinScore (enforced by Validate); a score on a shared boundary lands in
// the faster tier.
func (c BusinessConfig) DaysToSell(velocityScore float64) (string, int) {
	if len(c.VelocityTiers) == 0 {
		return "unknown", 0
	}
	match := &c.VelocityTiers[0]
	for i := range c.VelocityTiers {
		if velocityScore >= c.VelocityTiers[i].MinScore {
			match = &c.VelocityTiers[i]
		}
	}
	return match.Name, match.EstimatedDaysToSell
}

// BenchmarkFor returns the sales-rank benchmark for a root category, falling
// back to the configured default when the category has no entry.
func (c BusinessConfig) BenchmarkFor(category string) int64 {
	if v, ok := c.Benchmarks[category]; ok && v > 0 {
		return v
	}
	return c.DefaultBenchmark
}

// ScopeKind identifies which layer of the precedence chain a scope sits in.
type ScopeKind int

const (
	ScopeGlobal ScopeKind = iota
	ScopeDomain
	ScopeCategory
)

// Scope addresses one configuration layer. Precedence is
// global < domain:<id> < category:<name>.
type Scope struct {
	Kind     ScopeKind
	Domain   int
	Category string
}

// GlobalScope addresses the base configuration layer.
func GlobalScope() Scope { return Scope{Kind: ScopeGlobal} }

// DomainScope addresses the overlay for a marketplace domain ID.
func DomainScope(id int) Scope { return Scope{Kind: ScopeDomain, Domain: id} }

// CategoryScope addresses the overlay for a root category name.
func CategoryScope(name string) Scope { return Scope{Kind: ScopeCategory, Category: name} }

// String renders the scope in its stored key form.
func (s Scope) String() string {
	switch s.Kind {
	case ScopeDomain:
		return fmt.Sprintf("domain:%d", s.Domain)
	case ScopeCategory:
		return "category:" + s.Category
	default:
		return "global"
	}
}

// ParseScope parses a stored key form ("global", "domain:<id>",
// "category:<name>") back into a Scope.
func ParseScope(s string) (Scope, error) {
	if s == "global" {
		return GlobalScope(), nil
	}
	if rest, ok := strings.CutPrefix(s, "domain:"); ok {
		id, err := strconv.Atoi(rest)
		if err != nil || id < 0 {
			return Scope{}, eris.Errorf("bizconfig: invalid domain scope %q", s)
		}
		return DomainScope(id), nil
	}
	if rest, ok := strings.CutPrefix(s, "category:"); ok {
		if rest == "" {
			return Scope{}, eris.New("bizconfig: category scope requires a name")
		}
		return CategoryScope(rest), nil
	}
	return Scope{}, eris.Errorf("bizconfig: unrecognized scope %q", s)
}
