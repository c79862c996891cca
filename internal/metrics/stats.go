// Package metrics implements the pure per-factor calculators: velocity, price
// stability, and competition. Each returns a 0-100 score plus a component map
// for explainability, never mutates its input, and never fails — degraded
// inputs yield the documented minimum with a tag in the component map.
package metrics

import "math"

// Component-map tag keys for degraded computations.
const (
	TagNoData           = "NO_DATA"
	TagInsufficientData = "INSUFFICIENT_DATA"
)

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev is the population standard deviation.
func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}

// covPercent is the coefficient of variation expressed as a percentage
// (stdev/mean x 100). Zero mean yields zero.
func covPercent(xs []float64) float64 {
	m := mean(xs)
	if m == 0 {
		return 0
	}
	return stddev(xs) / m * 100
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
