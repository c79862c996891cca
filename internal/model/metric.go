package model

// MetricSource identifies where an extracted value came from. Extraction walks
// sources in declaration order and stops at the first non-sentinel hit.
type MetricSource int

const (
	// SourceNone means no source yielded a value.
	SourceNone MetricSource = iota
	// SourceCategoryRanks is the per-category rank map (primary).
	SourceCategoryRanks
	// SourceCurrentVector is the positional current-values slot (primary).
	SourceCurrentVector
	// SourceRecentHistory is the newest in-window history point (fallback).
	SourceRecentHistory
	// SourceRollingAverage is the mean over the full series, ignoring the
	// window (last resort).
	SourceRollingAverage
)

func (s MetricSource) String() string {
	switch s {
	case SourceCategoryRanks:
		return "category_ranks"
	case SourceCurrentVector:
		return "current_vector"
	case SourceRecentHistory:
		return "recent_history"
	case SourceRollingAverage:
		return "rolling_average"
	default:
		return "none"
	}
}

// DecayFactor returns the confidence multiplier applied to values obtained
// from this source. Primary sources carry no penalty.
func (s MetricSource) DecayFactor() float64 {
	switch s {
	case SourceCategoryRanks, SourceCurrentVector:
		return 1.0
	case SourceRecentHistory:
		return 0.9
	case SourceRollingAverage:
		return 0.8
	default:
		return 0.0
	}
}

// ExtractedMetric is a single extracted value with provenance. A missing or
// malformed field yields the zero metric (no value, confidence 0) rather than
// an error.
type ExtractedMetric[T any] struct {
	Value      *T           `json:"value,omitempty"`
	Source     MetricSource `json:"source"`
	Confidence float64      `json:"confidence"`
}

// Absent returns the no-data metric.
func Absent[T any]() ExtractedMetric[T] {
	return ExtractedMetric[T]{Source: SourceNone, Confidence: 0}
}

// Extracted builds a present metric from a value, its source, and the base
// confidence before source decay.
func Extracted[T any](v T, source MetricSource, baseConfidence float64) ExtractedMetric[T] {
	if baseConfidence < 0 {
		baseConfidence = 0
	}
	if baseConfidence > 1 {
		baseConfidence = 1
	}
	return ExtractedMetric[T]{
		Value:      &v,
		Source:     source,
		Confidence: baseConfidence * source.DecayFactor(),
	}
}

// Present reports whether the metric carries a value.
func (m ExtractedMetric[T]) Present() bool {
	return m.Value != nil
}

// Or returns the metric's value, or fallback when absent.
func (m ExtractedMetric[T]) Or(fallback T) T {
	if m.Value == nil {
		return fallback
	}
	return *m.Value
}
