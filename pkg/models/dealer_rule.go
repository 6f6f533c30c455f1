package models

import (
	"fmt"
	"strings"
	"time"
)

// FieldWeights controls how much each field contributes to a composite
// confidence score. Entries are non-negative and are normalized to sum to 1
// before scoring. Color participates only in relisting detection; location
// and image only in the main pipeline.
type FieldWeights struct {
	MakeModel float64 `json:"make_model"`
	Year      float64 `json:"year"`
	Mileage   float64 `json:"mileage"`
	Price     float64 `json:"price"`
	Location  float64 `json:"location"`
	Color     float64 `json:"color"`
	Image     float64 `json:"image"`
}

// Sum returns the total of all weights.
func (w FieldWeights) Sum() float64 {
	return w.MakeModel + w.Year + w.Mileage + w.Price + w.Location + w.Color + w.Image
}

// Normalize returns a copy scaled so the weights sum to 1. Errors when any
// weight is negative or all weights are zero.
func (w FieldWeights) Normalize() (FieldWeights, error) {
	for name, value := range map[string]float64{
		"make_model": w.MakeModel,
		"year":       w.Year,
		"mileage":    w.Mileage,
		"price":      w.Price,
		"location":   w.Location,
		"color":      w.Color,
		"image":      w.Image,
	} {
		if value < 0 {
			return FieldWeights{}, fmt.Errorf("field weight %s is negative", name)
		}
	}

	sum := w.Sum()
	if sum == 0 {
		return FieldWeights{}, fmt.Errorf("field weights sum to zero")
	}

	return FieldWeights{
		MakeModel: w.MakeModel / sum,
		Year:      w.Year / sum,
		Mileage:   w.Mileage / sum,
		Price:     w.Price / sum,
		Location:  w.Location / sum,
		Color:     w.Color / sum,
		Image:     w.Image / sum,
	}, nil
}

// DefaultPipelineWeights is the system-wide weight table used by the
// matching pipeline when no dealer rule overrides it.
func DefaultPipelineWeights() FieldWeights {
	return FieldWeights{
		MakeModel: 0.25,
		Year:      0.20,
		Mileage:   0.15,
		Price:     0.15,
		Location:  0.15,
		Image:     0.10,
	}
}

// DefaultRelistingWeights is the weight table used by same-dealer relisting
// fuzzy matching.
func DefaultRelistingWeights() FieldWeights {
	return FieldWeights{
		MakeModel: 0.30,
		Year:      0.20,
		Mileage:   0.20,
		Price:     0.15,
		Color:     0.15,
	}
}

// DefaultTolerances are the system-wide proximity allowances.
func DefaultTolerances() Tolerances {
	return Tolerances{
		Mileage:       5000,
		Price:         1000,
		Year:          1,
		LocationMiles: 10,
	}
}

// Tolerances are the per-field allowances used by numeric proximity.
type Tolerances struct {
	Mileage       float64 `json:"mileage"`
	Price         float64 `json:"price"`
	Year          int     `json:"year"`
	LocationMiles float64 `json:"location_miles"`
}

// Validate checks that the tolerances can actually parameterize a fuzzy
// comparison. Numeric proximity rejects non-positive tolerances at scoring
// time, so a rule carrying them would fail every match it applies to.
func (t Tolerances) Validate() error {
	if t.Mileage <= 0 {
		return fmt.Errorf("mileage tolerance must be positive")
	}
	if t.Price <= 0 {
		return fmt.Errorf("price tolerance must be positive")
	}
	if t.LocationMiles <= 0 {
		return fmt.Errorf("location tolerance must be positive")
	}
	if t.Year < 0 {
		return fmt.Errorf("year tolerance must not be negative")
	}
	return nil
}

// DealerDeduplicationRule is a per-seller matching policy. Rules are ordered
// by priority; the highest-priority active rule whose bounds accept a record
// parameterizes the pipeline for that record.
type DealerDeduplicationRule struct {
	ID                       string                `json:"id" db:"id"`
	TenantID                 string                `json:"tenant_id" db:"tenant_id"`
	DealerID                 *string               `json:"dealer_id,omitempty" db:"dealer_id"`
	Name                     string                `json:"name" db:"name"`
	Priority                 int                   `json:"priority" db:"priority"`
	IsActive                 bool                  `json:"is_active" db:"is_active"`
	AutoMatchThreshold       float64               `json:"auto_match_threshold" db:"auto_match_threshold"`
	ReviewThreshold          float64               `json:"review_threshold" db:"review_threshold"`
	Weights                  FieldWeights          `json:"weights" db:"-"`
	Tolerances               Tolerances            `json:"tolerances" db:"-"`
	EnableVinMatching        bool                  `json:"enable_vin_matching" db:"enable_vin_matching"`
	EnableExternalIDMatching bool                  `json:"enable_external_id_matching" db:"enable_external_id_matching"`
	EnableFuzzyMatching      bool                  `json:"enable_fuzzy_matching" db:"enable_fuzzy_matching"`
	EnableImageMatching      bool                  `json:"enable_image_matching" db:"enable_image_matching"`
	StrictMode               bool                  `json:"strict_mode" db:"strict_mode"`
	MinPrice                 *float64              `json:"min_price,omitempty" db:"min_price"`
	MaxPrice                 *float64              `json:"max_price,omitempty" db:"max_price"`
	MinYear                  *int                  `json:"min_year,omitempty" db:"min_year"`
	MaxYear                  *int                  `json:"max_year,omitempty" db:"max_year"`
	MakeFilter               *string               `json:"make_filter,omitempty" db:"make_filter"`
	ModelFilter              *string               `json:"model_filter,omitempty" db:"model_filter"`
	UsageCount               int64                 `json:"usage_count" db:"usage_count"`
	CreatedBy                *string               `json:"created_by,omitempty" db:"created_by"`
	CreatedAt                time.Time             `json:"created_at" db:"created_at"`
	UpdatedAt                time.Time             `json:"updated_at" db:"updated_at"`
	DeletedAt                *time.Time            `json:"deleted_at,omitempty" db:"deleted_at"`
}

// AppliesTo reports whether the rule's bounds accept the record. Unbounded
// dimensions always match.
func (r *DealerDeduplicationRule) AppliesTo(record *ScrapedRecord) bool {
	if record == nil {
		return false
	}
	if r.DealerID != nil {
		if record.DealerID == nil || *record.DealerID != *r.DealerID {
			return false
		}
	}
	if r.MinPrice != nil && (record.Price == nil || *record.Price < *r.MinPrice) {
		return false
	}
	if r.MaxPrice != nil && (record.Price == nil || *record.Price > *r.MaxPrice) {
		return false
	}
	if r.MinYear != nil && (record.Year == 0 || record.Year < *r.MinYear) {
		return false
	}
	if r.MaxYear != nil && (record.Year == 0 || record.Year > *r.MaxYear) {
		return false
	}
	if r.MakeFilter != nil && !strings.EqualFold(*r.MakeFilter, record.Make) {
		return false
	}
	if r.ModelFilter != nil && !strings.EqualFold(*r.ModelFilter, record.Model) {
		return false
	}
	return true
}

// CreateDealerRuleRequest creates a new rule for a dealer.
type CreateDealerRuleRequest struct {
	DealerID                 *string      `json:"dealer_id,omitempty"`
	Name                     string       `json:"name" validate:"required"`
	Priority                 int          `json:"priority"`
	AutoMatchThreshold       float64      `json:"auto_match_threshold" validate:"gte=0,lte=100"`
	ReviewThreshold          float64      `json:"review_threshold" validate:"gte=0,lte=100"`
	Weights                  FieldWeights `json:"weights"`
	Tolerances               Tolerances   `json:"tolerances"`
	EnableVinMatching        bool         `json:"enable_vin_matching"`
	EnableExternalIDMatching bool         `json:"enable_external_id_matching"`
	EnableFuzzyMatching      bool         `json:"enable_fuzzy_matching"`
	EnableImageMatching      bool         `json:"enable_image_matching"`
	StrictMode               bool         `json:"strict_mode"`
	MinPrice                 *float64     `json:"min_price,omitempty"`
	MaxPrice                 *float64     `json:"max_price,omitempty"`
	MinYear                  *int         `json:"min_year,omitempty"`
	MaxYear                  *int         `json:"max_year,omitempty"`
	MakeFilter               *string      `json:"make_filter,omitempty"`
	ModelFilter              *string      `json:"model_filter,omitempty"`
	CreatedBy                *string      `json:"created_by,omitempty"`
}

// UpdateDealerRuleRequest updates mutable fields of a rule. Nil fields are
// left unchanged.
type UpdateDealerRuleRequest struct {
	Name               *string       `json:"name,omitempty"`
	Priority           *int          `json:"priority,omitempty"`
	IsActive           *bool         `json:"is_active,omitempty"`
	AutoMatchThreshold *float64      `json:"auto_match_threshold,omitempty" validate:"omitempty,gte=0,lte=100"`
	ReviewThreshold    *float64      `json:"review_threshold,omitempty" validate:"omitempty,gte=0,lte=100"`
	Weights            *FieldWeights `json:"weights,omitempty"`
	Tolerances         *Tolerances   `json:"tolerances,omitempty"`
}
