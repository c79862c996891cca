// Package render formats evaluation results for terminal output with
// locale-aware numbers and currency.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/arbscout/sourcing-cli/internal/model"
	"github.com/arbscout/sourcing-cli/internal/pipeline"
)

// Renderer writes human-readable result output for one locale/currency pair.
type Renderer struct {
	printer *message.Printer
	unit    currency.Unit
}

// New builds a Renderer for a BCP 47 locale and ISO 4217 currency code.
func New(locale, currencyCode string) (*Renderer, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, eris.Wrapf(err, "render: parse locale %q", locale)
	}
	unit, err := currency.ParseISO(currencyCode)
	if err != nil {
		return nil, eris.Wrapf(err, "render: parse currency %q", currencyCode)
	}
	return &Renderer{printer: message.NewPrinter(tag), unit: unit}, nil
}

// Money formats a decimal amount with the renderer's currency symbol.
func (r *Renderer) Money(d decimal.Decimal) string {
	f, _ := d.Float64()
	return r.printer.Sprint(currency.Symbol(r.unit.Amount(f)))
}

// Percent formats a percentage with one fractional digit.
func (r *Renderer) Percent(v float64) string {
	return r.printer.Sprintf("%.1f%%", v)
}

// Result writes a full evaluation block.
func (r *Renderer) Result(w io.Writer, res pipeline.Result) {
	rec := res.Recommendation

	fmt.Fprintf(w, "%s  %s\n", rec.ASIN, rec.Title)
	fmt.Fprintf(w, "  Recommendation: %s (confidence %s, %d/6 criteria)\n",
		rec.Recommendation, r.Percent(rec.ConfidencePercent), rec.CriteriaPassed)
	fmt.Fprintf(w, "  Combined score: %s\n", r.printer.Sprintf("%.1f", rec.CombinedScore))

	if res.Product.CurrentPrice.Present() {
		fmt.Fprintf(w, "  Sell price:     %s\n", r.Money(*res.Product.CurrentPrice.Value))
	}
	if res.SuggestedBuyCost.IsPositive() {
		fmt.Fprintf(w, "  Buy at:         %s\n", r.Money(res.SuggestedBuyCost))
	}

	fmt.Fprintf(w, "  ROI %s | velocity %s | stability %s | risk %s\n",
		r.Percent(rec.ROIPercent),
		r.printer.Sprintf("%.0f", rec.VelocityScore),
		r.printer.Sprintf("%.0f", rec.StabilityScore),
		r.printer.Sprintf("%.0f", rec.RiskScore))

	fmt.Fprintf(w, "  Reason: %s\n", rec.Reason)
	fmt.Fprintf(w, "  Action: %s\n", rec.SuggestedAction)
	for _, step := range rec.NextSteps {
		fmt.Fprintf(w, "    - %s\n", step)
	}
}

// Line writes the one-line batch summary for a result.
func (r *Renderer) Line(w io.Writer, res pipeline.Result) {
	rec := res.Recommendation
	fmt.Fprintf(w, "%-12s %-11s roi=%-7s vel=%-3s risk=%-3s %s\n",
		rec.ASIN,
		rec.Recommendation,
		r.Percent(rec.ROIPercent),
		r.printer.Sprintf("%.0f", rec.VelocityScore),
		r.printer.Sprintf("%.0f", rec.RiskScore),
		truncate(rec.Title, 40))
}

// Summary writes the tier tally for a batch.
func (r *Renderer) Summary(w io.Writer, results []pipeline.Result) {
	counts := map[model.Tier]int{}
	for _, res := range results {
		counts[res.Recommendation.Recommendation]++
	}

	var parts []string
	for _, tier := range []model.Tier{
		model.TierStrongBuy, model.TierBuy, model.TierConsider,
		model.TierWatch, model.TierSkip, model.TierAvoid,
	} {
		if n := counts[tier]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", tier, n))
		}
	}
	fmt.Fprintf(w, "scored %d products: %s\n", len(results), strings.Join(parts, " "))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
