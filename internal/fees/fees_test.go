package fees

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestEstimate(t *testing.T) {
	s := DefaultSchedule()

	// 15% of 54.99 is 8.2485, plus 3.00 fulfillment, rounded to 11.25.
	got := s.Estimate(decimal.RequireFromString("54.99"))
	assert.True(t, got.Equal(decimal.RequireFromString("11.25")), got.String())

	s.ClosingFee = 1.80
	got = s.Estimate(decimal.RequireFromString("10.00"))
	assert.True(t, got.Equal(decimal.RequireFromString("6.30")), got.String())
}

func TestEstimateZeroPrice(t *testing.T) {
	got := DefaultSchedule().Estimate(decimal.Zero)
	assert.True(t, got.Equal(decimal.RequireFromString("3.00")), got.String())
}

func TestResolveTarget(t *testing.T) {
	strategies := []Strategy{
		{Name: "conservative", TargetROI: 50},
		{Name: "balanced", TargetROI: 30},
		{Name: "aggressive", TargetROI: 20},
		{Name: "broken"},
	}

	assert.Equal(t, 50.0, ResolveTarget("conservative", strategies))
	assert.Equal(t, 20.0, ResolveTarget("aggressive", strategies))
	assert.Equal(t, DefaultTargetROI, ResolveTarget("unknown", strategies))
	assert.Equal(t, DefaultTargetROI, ResolveTarget("broken", strategies))
	assert.Equal(t, DefaultTargetROI, ResolveTarget("balanced", nil))
}
