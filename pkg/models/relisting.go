package models

import "time"

// RelistingType classifies how a relisting was detected.
type RelistingType string

const (
	RelistingTypeVinMatch        RelistingType = "vin_match"
	RelistingTypeExternalIDMatch RelistingType = "external_id_match"
	RelistingTypeFuzzyMatch      RelistingType = "fuzzy_match"
	RelistingTypeCombinedMatch   RelistingType = "combined_match"
)

// RelistingPattern records one detected reappearance of a vehicle: a new
// listing matched against a previously deactivated one. Immutable after
// creation except for the suspicious flag, which a classification pass sets.
type RelistingPattern struct {
	ID                string        `json:"id" db:"id"`
	TenantID          string        `json:"tenant_id" db:"tenant_id"`
	CurrentListingID  string        `json:"current_listing_id" db:"current_listing_id"`
	PreviousListingID string        `json:"previous_listing_id" db:"previous_listing_id"`
	DealerID          *string       `json:"dealer_id,omitempty" db:"dealer_id"`
	PatternType       RelistingType `json:"pattern_type" db:"pattern_type"`
	Method            MatchMethod   `json:"method" db:"method"`
	Confidence        float64       `json:"confidence" db:"confidence"`
	Vin               string        `json:"vin,omitempty" db:"vin"`
	Make              string        `json:"make,omitempty" db:"make"`
	Model             string        `json:"model,omitempty" db:"model"`
	Year              int           `json:"year,omitempty" db:"year"`
	PriceBefore       *float64      `json:"price_before,omitempty" db:"price_before"`
	PriceAfter        *float64      `json:"price_after,omitempty" db:"price_after"`
	DaysOffMarket     float64       `json:"days_off_market" db:"days_off_market"`
	DaysOnMarket      float64       `json:"days_on_market" db:"days_on_market"`
	IsSuspicious      bool          `json:"is_suspicious" db:"is_suspicious"`
	CreatedAt         time.Time     `json:"created_at" db:"created_at"`
}

// PriceDelta returns the price change across the relisting, when both prices
// are known.
func (p *RelistingPattern) PriceDelta() *float64 {
	if p.PriceBefore == nil || p.PriceAfter == nil {
		return nil
	}
	delta := *p.PriceAfter - *p.PriceBefore
	return &delta
}

// RelistingDetectionResult is the outcome of checking one listing against
// the deactivated pool.
type RelistingDetectionResult struct {
	IsRelisting      bool              `json:"is_relisting"`
	MatchedListingID string            `json:"matched_listing_id,omitempty"`
	MatchConfidence  float64           `json:"match_confidence,omitempty"`
	MatchMethod      MatchMethod       `json:"match_method,omitempty"`
	Pattern          *RelistingPattern `json:"pattern,omitempty"`
}

// BatchScanError records a per-listing failure during a batch scan.
type BatchScanError struct {
	ListingID string `json:"listing_id"`
	Message   string `json:"message"`
}

// BatchScanResult summarizes a relisting scan over a set of listings.
type BatchScanResult struct {
	Scanned         int                `json:"scanned"`
	RelistingsFound int                `json:"relistings_found"`
	Errors          []BatchScanError   `json:"errors,omitempty"`
	Patterns        []RelistingPattern `json:"patterns,omitempty"`
}

// DealerRelistingStats aggregates relisting behavior for one dealer.
type DealerRelistingStats struct {
	TenantID           string    `json:"tenant_id" db:"tenant_id"`
	DealerID           string    `json:"dealer_id" db:"dealer_id"`
	TotalListings      int       `json:"total_listings" db:"total_listings"`
	TotalRelistings    int       `json:"total_relistings" db:"total_relistings"`
	RelistingRate      float64   `json:"relisting_rate" db:"relisting_rate"`
	IsFrequentRelister bool      `json:"is_frequent_relister" db:"is_frequent_relister"`
	ComputedAt         time.Time `json:"computed_at" db:"computed_at"`
}
