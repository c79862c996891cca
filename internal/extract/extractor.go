// Package extract turns raw catalog snapshots into typed, partially-populated
// product records. Extraction is total: missing or malformed fields degrade to
// absent metrics with confidence 0, never to errors.
package extract

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/arbscout/sourcing-cli/internal/model"
)

// DefaultLookbackDays bounds history windows when the caller does not specify one.
const DefaultLookbackDays = 90

var minorUnits = decimal.NewFromInt(100)

// Options control extraction behavior.
type Options struct {
	// LookbackDays limits history windows to points at most this many days
	// old. Zero or negative falls back to DefaultLookbackDays.
	LookbackDays int

	// Now anchors the lookback window. Zero means time.Now in UTC.
	Now time.Time

	// Benchmarks maps category IDs to median best-sellers ranks. A product
	// whose root category has a benchmark gets full base confidence on rank
	// extraction; otherwise the global default benchmark applies at 0.8.
	Benchmarks map[string]int64
}

func (o Options) window() (cutoff, now time.Time) {
	now = o.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	days := o.LookbackDays
	if days <= 0 {
		days = DefaultLookbackDays
	}
	return now.AddDate(0, 0, -days), now
}

// Extract builds a NormalizedProduct from a raw snapshot. It never fails:
// every unextractable field is recorded as absent.
func Extract(raw *model.RawSnapshot, opts Options) model.NormalizedProduct {
	if raw == nil {
		return model.NormalizedProduct{
			CurrentPrice:       model.Absent[decimal.Decimal](),
			FirstPartyPrice:    model.Absent[decimal.Decimal](),
			ThirdPartyNewPrice: model.Absent[decimal.Decimal](),
			FulfilledPrice:     model.Absent[decimal.Decimal](),
			BuyBoxPrice:        model.Absent[decimal.Decimal](),
			CurrentRank:        model.Absent[int64](),
		}
	}

	cutoff, _ := opts.window()

	p := model.NormalizedProduct{
		ASIN:         raw.ASIN,
		Title:        raw.Title,
		RootCategory: raw.RootCategory,

		FirstPartyPrice:    ExtractPrice(raw, model.SlotFirstPartyPrice, model.SeriesFirstPartyPrice, cutoff),
		ThirdPartyNewPrice: ExtractPrice(raw, model.SlotThirdPartyNew, model.SeriesThirdPartyNew, cutoff),
		FulfilledPrice:     ExtractPrice(raw, model.SlotFulfilledPrice, "", cutoff),
		BuyBoxPrice:        ExtractPrice(raw, model.SlotBuyBoxPrice, model.SeriesBuyBoxPrice, cutoff),

		CurrentRank: ExtractRank(raw, opts),

		FirstPartyHasBuyBox: raw.BuyBoxIsFirstParty,

		RankHistory:   RankWindow(raw, cutoff),
		PriceHistory:  PriceWindow(raw, model.SeriesBuyBoxPrice, cutoff),
		BuyBoxHistory: AvailabilityWindow(raw, cutoff),
		OfferHistory:  OfferWindow(raw, cutoff),
	}

	// Selling price preference: buy-box, then fulfilled, then third-party
	// new, then the platform's own offer.
	for _, m := range []model.ExtractedMetric[decimal.Decimal]{
		p.BuyBoxPrice, p.FulfilledPrice, p.ThirdPartyNewPrice, p.FirstPartyPrice,
	} {
		if m.Present() {
			p.CurrentPrice = m
			break
		}
	}
	if !p.CurrentPrice.Present() {
		p.CurrentPrice = model.Absent[decimal.Decimal]()
	}

	// Thin buy-box price history can fall back to the third-party series so
	// stability still has something to chew on.
	if len(p.PriceHistory) < 2 {
		if alt := PriceWindow(raw, model.SeriesThirdPartyNew, cutoff); len(alt) > len(p.PriceHistory) {
			p.PriceHistory = alt
		}
	}

	// Presence means a live first-party offer: the current-vector slot or the
	// buy-box owner. A price recovered from history says the platform sold
	// here once, not that it still does.
	p.FirstPartyPresent = (p.FirstPartyPrice.Present() && p.FirstPartyPrice.Source == model.SourceCurrentVector) ||
		raw.BuyBoxIsFirstParty

	if n := raw.CurrentSlot(model.SlotFulfilledCount); n >= 0 {
		p.FulfilledCount = int(n)
	}
	p.TotalSellerCount = raw.TotalOfferCount
	if p.TotalSellerCount == 0 {
		if pts := p.OfferHistory; len(pts) > 0 {
			p.TotalSellerCount = int(pts[len(pts)-1].Count)
		}
	}
	if p.TotalSellerCount < p.FulfilledCount {
		p.TotalSellerCount = p.FulfilledCount
	}

	return p
}

// ExtractPrice pulls a price for one semantic slot. The current vector is the
// primary source; the named history series (if any) is the recent-history
// fallback. Minor units divide by 100 with exactly 2 fractional digits kept.
func ExtractPrice(raw *model.RawSnapshot, slot int, series string, cutoff time.Time) model.ExtractedMetric[decimal.Decimal] {
	if v := raw.CurrentSlot(slot); !model.IsPriceSentinel(v) {
		return model.Extracted(minorToDecimal(v), model.SourceCurrentVector, 1.0)
	}

	if series != "" {
		if pts := PriceWindow(raw, series, cutoff); len(pts) > 0 {
			last := pts[len(pts)-1]
			return model.Extracted(last.Price, model.SourceRecentHistory, 1.0)
		}
	}

	return model.Absent[decimal.Decimal]()
}

// ExtractRank resolves the best-sellers rank through the strict fallback
// chain: per-category rank map, current-vector slot, newest in-window history
// point, rolling window average. The source decay compounds with the base
// benchmark confidence.
func ExtractRank(raw *model.RawSnapshot, opts Options) model.ExtractedMetric[int64] {
	base := rankBaseConfidence(raw, opts.Benchmarks)
	cutoff, _ := opts.window()

	// 1. Per-category rank map.
	if len(raw.CategoryRanks) > 0 {
		if r, ok := raw.CategoryRanks[raw.RootCategory]; ok && !model.IsRankSentinel(r) {
			return model.Extracted(r, model.SourceCategoryRanks, base)
		}
		if raw.RootCategory == "" && len(raw.CategoryRanks) == 1 {
			for _, r := range raw.CategoryRanks {
				if !model.IsRankSentinel(r) {
					return model.Extracted(r, model.SourceCategoryRanks, base)
				}
			}
		}
	}

	// 2. Current-vector slot.
	if v := raw.CurrentSlot(model.SlotCurrentRank); !model.IsRankSentinel(v) {
		return model.Extracted(v, model.SourceCurrentVector, base)
	}

	// 3. Most recent in-window history point.
	pts := RankWindow(raw, cutoff)
	if len(pts) > 0 {
		last := pts[len(pts)-1]
		return model.Extracted(last.Rank, model.SourceRecentHistory, base)
	}

	// 4. Rolling average over the full series, ignoring the window.
	if avg := rollingAverageRank(raw); avg > 0 {
		return model.Extracted(avg, model.SourceRollingAverage, base)
	}

	return model.Absent[int64]()
}

// rankBaseConfidence compares against the configured category benchmarks:
// full confidence when the product's root category has one, 0.8 when scoring
// against the global default.
func rankBaseConfidence(raw *model.RawSnapshot, benchmarks map[string]int64) float64 {
	if raw.RootCategory != "" {
		if _, ok := benchmarks[raw.RootCategory]; ok {
			return 1.0
		}
	}
	return 0.8
}

// rollingAverageRank averages all non-sentinel rank points in the full series
// regardless of window, as a last-resort estimate.
func rollingAverageRank(raw *model.RawSnapshot) int64 {
	pairs := raw.Series[model.SeriesSalesRank]
	var sum, n int64
	for i := 0; i+1 < len(pairs); i += 2 {
		v := pairs[i+1]
		if model.IsRankSentinel(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / n
}

// RankWindow returns the in-window rank history, ascending by timestamp.
func RankWindow(raw *model.RawSnapshot, cutoff time.Time) []model.RankPoint {
	var out []model.RankPoint
	eachInWindow(raw, model.SeriesSalesRank, cutoff, func(at time.Time, v int64) {
		if model.IsRankSentinel(v) {
			return
		}
		out = append(out, model.RankPoint{At: at, Rank: v})
	})
	sort.Slice(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

// PriceWindow returns the in-window price history for a named series,
// ascending by timestamp, prices in decimal currency.
func PriceWindow(raw *model.RawSnapshot, series string, cutoff time.Time) []model.PricePoint {
	var out []model.PricePoint
	eachInWindow(raw, series, cutoff, func(at time.Time, v int64) {
		if model.IsPriceSentinel(v) {
			return
		}
		out = append(out, model.PricePoint{At: at, Price: minorToDecimal(v)})
	})
	sort.Slice(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

// AvailabilityWindow returns the in-window buy-box availability history,
// ascending by timestamp. Any non-negative value is an observation; nonzero
// means the buy-box was live.
func AvailabilityWindow(raw *model.RawSnapshot, cutoff time.Time) []model.BoolPoint {
	var out []model.BoolPoint
	eachInWindow(raw, model.SeriesBuyBoxAvailable, cutoff, func(at time.Time, v int64) {
		if v < 0 {
			return
		}
		out = append(out, model.BoolPoint{At: at, Available: v != 0})
	})
	sort.Slice(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

// OfferWindow returns the in-window offer-count history, ascending by timestamp.
func OfferWindow(raw *model.RawSnapshot, cutoff time.Time) []model.CountPoint {
	var out []model.CountPoint
	eachInWindow(raw, model.SeriesOfferCount, cutoff, func(at time.Time, v int64) {
		if v < 0 {
			return
		}
		out = append(out, model.CountPoint{At: at, Count: v})
	})
	sort.Slice(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

// eachInWindow walks a (timestamp, value) pair array, converting catalog
// minutes to UTC and skipping points older than the cutoff. A trailing
// unpaired element is dropped.
func eachInWindow(raw *model.RawSnapshot, series string, cutoff time.Time, fn func(at time.Time, v int64)) {
	if raw == nil || raw.Series == nil {
		return
	}
	pairs := raw.Series[series]
	if len(pairs)%2 != 0 {
		zap.L().Debug("extract: odd-length series, dropping trailing element",
			zap.String("series", series),
			zap.String("asin", raw.ASIN),
		)
	}
	for i := 0; i+1 < len(pairs); i += 2 {
		at := model.CatalogMinutesToTime(pairs[i])
		if at.Before(cutoff) {
			continue
		}
		fn(at, pairs[i+1])
	}
}

func minorToDecimal(v int64) decimal.Decimal {
	return decimal.NewFromInt(v).Div(minorUnits).Round(2)
}
