// Package model defines the data contracts shared across the sourcing pipeline:
// raw catalog snapshots, extracted metrics with provenance, normalized products,
// and recommendation results.
package model

import "time"

// Positions within a snapshot's "current values" vector. The upstream catalog
// API guarantees these slot assignments; values are in minor currency units
// except ranks and counts.
const (
	SlotFirstPartyPrice = 0  // platform-direct offer price
	SlotThirdPartyNew   = 1  // lowest third-party new price
	SlotCurrentRank     = 3  // best-sellers rank
	SlotFulfilledPrice  = 7  // lowest fulfilled-by-platform price
	SlotFulfilledCount  = 11 // fulfilled-by-platform offer count
	SlotBuyBoxPrice     = 18 // current buy-box price
)

// Named history series carried by a snapshot. Each series alternates
// (timestamp, value) pairs; timestamps are minutes since the catalog epoch.
const (
	SeriesFirstPartyPrice = "FIRST_PARTY"
	SeriesThirdPartyNew   = "NEW_THIRD_PARTY"
	SeriesSalesRank       = "SALES_RANK"
	SeriesBuyBoxPrice     = "BUY_BOX"
	SeriesBuyBoxAvailable = "BUY_BOX_AVAILABLE"
	SeriesOfferCount      = "OFFER_COUNT"
)

// Sentinel is the upstream "no data" marker inside positional arrays.
const Sentinel = -1

// catalogEpoch is the upstream's custom epoch: 2011-01-01T00:00:00Z.
// History timestamps are minutes since this instant.
const catalogEpochUnix int64 = 1293840000

// RawSnapshot is the catalog API's loosely-typed product record. The core
// never mutates it; the caller owns it for its lifetime.
type RawSnapshot struct {
	ASIN  string `json:"asin"`
	Title string `json:"title"`

	// Current is the positional "current values" vector (see Slot* constants).
	Current []int64 `json:"current"`

	// Series maps a series name to its (timestamp, value) pair array.
	Series map[string][]int64 `json:"series"`

	// CategoryRanks maps category IDs to the product's current rank in that
	// category. Preferred over the Current vector when populated.
	CategoryRanks map[string]int64 `json:"category_ranks,omitempty"`

	// RootCategory identifies the product's primary browse category.
	RootCategory string `json:"root_category,omitempty"`

	// BuyBoxIsFirstParty reports whether the platform's own retail offer
	// currently holds the buy-box.
	BuyBoxIsFirstParty bool `json:"buy_box_is_first_party,omitempty"`

	// TotalOfferCount is the total live seller count across fulfillment types.
	TotalOfferCount int `json:"total_offer_count,omitempty"`
}

// CurrentSlot returns the value at the given slot of the current vector, or
// Sentinel if the vector is too short.
func (s *RawSnapshot) CurrentSlot(slot int) int64 {
	if s == nil || slot < 0 || slot >= len(s.Current) {
		return Sentinel
	}
	return s.Current[slot]
}

// CatalogMinutesToTime converts a catalog-epoch minute timestamp to UTC.
func CatalogMinutesToTime(minutes int64) time.Time {
	return time.Unix(catalogEpochUnix+minutes*60, 0).UTC()
}

// TimeToCatalogMinutes converts a UTC instant to catalog-epoch minutes.
// Instants before the epoch clamp to 0.
func TimeToCatalogMinutes(t time.Time) int64 {
	m := (t.Unix() - catalogEpochUnix) / 60
	if m < 0 {
		return 0
	}
	return m
}

// IsPriceSentinel reports whether a raw price value means "no data".
func IsPriceSentinel(v int64) bool {
	return v < 0
}

// IsRankSentinel reports whether a raw rank value means "no data".
// Best-sellers ranks are 1-based, so 0 can only come from an uninitialized
// upstream field and is treated the same as -1.
func IsRankSentinel(v int64) bool {
	return v <= 0
}
