package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricePoint is one observation in a price history window.
type PricePoint struct {
	At    time.Time       `json:"at"`
	Price decimal.Decimal `json:"price"`
}

// RankPoint is one observation in a rank history window.
type RankPoint struct {
	At   time.Time `json:"at"`
	Rank int64     `json:"rank"`
}

// BoolPoint is one observation in an availability history window.
type BoolPoint struct {
	At        time.Time `json:"at"`
	Available bool      `json:"available"`
}

// CountPoint is one observation in an offer-count history window.
type CountPoint struct {
	At    time.Time `json:"at"`
	Count int64     `json:"count"`
}

// NormalizedProduct is the typed, partially-populated view of a RawSnapshot.
// Built once per scoring request; read-only afterward.
type NormalizedProduct struct {
	ASIN  string `json:"asin"`
	Title string `json:"title"`

	// CurrentPrice is the best available selling price (buy-box preferred,
	// first-party price as the last resort), in decimal currency with exactly
	// 2 fractional digits.
	CurrentPrice ExtractedMetric[decimal.Decimal] `json:"current_price"`

	// Per-slot prices, each extracted independently.
	FirstPartyPrice    ExtractedMetric[decimal.Decimal] `json:"first_party_price"`
	ThirdPartyNewPrice ExtractedMetric[decimal.Decimal] `json:"third_party_new_price"`
	FulfilledPrice     ExtractedMetric[decimal.Decimal] `json:"fulfilled_price"`
	BuyBoxPrice        ExtractedMetric[decimal.Decimal] `json:"buy_box_price"`

	// CurrentRank is the best-sellers rank via the fallback chain.
	CurrentRank ExtractedMetric[int64] `json:"current_rank"`

	RootCategory string `json:"root_category,omitempty"`

	// Competition inputs. FirstPartyPresent means a live first-party offer
	// (current vector or buy-box owner), not one recovered from history.
	TotalSellerCount    int  `json:"total_seller_count"`
	FulfilledCount      int  `json:"fulfilled_count"`
	FirstPartyPresent   bool `json:"first_party_present"`
	FirstPartyHasBuyBox bool `json:"first_party_has_buy_box"`

	// History windows, ascending by timestamp.
	RankHistory   []RankPoint  `json:"rank_history,omitempty"`
	PriceHistory  []PricePoint `json:"price_history,omitempty"`
	BuyBoxHistory []BoolPoint  `json:"buy_box_history,omitempty"`
	OfferHistory  []CountPoint `json:"offer_history,omitempty"`
}
