package models

import "time"

// ScrapedRecord is a raw vehicle listing as it arrives from a source site,
// before it has been resolved against the existing listings of its tenant.
type ScrapedRecord struct {
	TenantID      string   `json:"tenant_id" validate:"required"`
	SourceSite    string   `json:"source_site" validate:"required"`
	ExternalID    string   `json:"external_id" validate:"required"`
	Vin           string   `json:"vin,omitempty"`
	Make          string   `json:"make,omitempty"`
	Model         string   `json:"model,omitempty"`
	Year          int      `json:"year,omitempty"`
	Price         *float64 `json:"price,omitempty"`
	Mileage       *int     `json:"mileage,omitempty"`
	ExteriorColor string   `json:"exterior_color,omitempty"`
	Latitude      *float64 `json:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty"`
	DealerID      *string  `json:"dealer_id,omitempty"`
	DealerName    string   `json:"dealer_name,omitempty"`
	ScrapedAt     time.Time `json:"scraped_at,omitempty"`
}

// MakeModel returns the combined make/model string used for fuzzy comparison.
func (r *ScrapedRecord) MakeModel() string {
	if r.Make == "" {
		return r.Model
	}
	if r.Model == "" {
		return r.Make
	}
	return r.Make + " " + r.Model
}

// Listing is a resolved vehicle listing owned by a tenant.
type Listing struct {
	ID            string     `json:"id" db:"id"`
	TenantID      string     `json:"tenant_id" db:"tenant_id"`
	SourceSite    string     `json:"source_site" db:"source_site"`
	ExternalID    string     `json:"external_id" db:"external_id"`
	Vin           string     `json:"vin,omitempty" db:"vin"`
	Make          string     `json:"make,omitempty" db:"make"`
	Model         string     `json:"model,omitempty" db:"model"`
	Year          int        `json:"year,omitempty" db:"year"`
	Price         *float64   `json:"price,omitempty" db:"price"`
	Mileage       *int       `json:"mileage,omitempty" db:"mileage"`
	ExteriorColor string     `json:"exterior_color,omitempty" db:"exterior_color"`
	Latitude      *float64   `json:"latitude,omitempty" db:"latitude"`
	Longitude     *float64   `json:"longitude,omitempty" db:"longitude"`
	DealerID      *string    `json:"dealer_id,omitempty" db:"dealer_id"`
	DealerName    string     `json:"dealer_name,omitempty" db:"dealer_name"`
	IsActive      bool       `json:"is_active" db:"is_active"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty" db:"deactivated_at"`
	RelistedCount int        `json:"relisted_count" db:"relisted_count"`
	FirstSeenAt   time.Time  `json:"first_seen_at" db:"first_seen_at"`
	LastSeenAt    time.Time  `json:"last_seen_at" db:"last_seen_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// MakeModel returns the combined make/model string used for fuzzy comparison.
func (l *Listing) MakeModel() string {
	if l.Make == "" {
		return l.Model
	}
	if l.Model == "" {
		return l.Make
	}
	return l.Make + " " + l.Model
}

// DaysOffMarket returns how long the listing has been deactivated as of now.
// Returns 0 when the listing is still active.
func (l *Listing) DaysOffMarket(now time.Time) float64 {
	if l.DeactivatedAt == nil {
		return 0
	}
	return now.Sub(*l.DeactivatedAt).Hours() / 24
}

// Summary projects the listing down to the fields shown alongside a review
// item.
func (l *Listing) Summary() *ListingSummary {
	return &ListingSummary{
		ID:         l.ID,
		Vin:        l.Vin,
		Make:       l.Make,
		Model:      l.Model,
		Year:       l.Year,
		Price:      l.Price,
		Mileage:    l.Mileage,
		SourceSite: l.SourceSite,
		ExternalID: l.ExternalID,
	}
}

// Record converts the listing back into the scraped-record shape so it can be
// fed through the same comparison paths as incoming records.
func (l *Listing) Record() *ScrapedRecord {
	return &ScrapedRecord{
		TenantID:      l.TenantID,
		SourceSite:    l.SourceSite,
		ExternalID:    l.ExternalID,
		Vin:           l.Vin,
		Make:          l.Make,
		Model:         l.Model,
		Year:          l.Year,
		Price:         l.Price,
		Mileage:       l.Mileage,
		ExteriorColor: l.ExteriorColor,
		Latitude:      l.Latitude,
		Longitude:     l.Longitude,
		DealerID:      l.DealerID,
		DealerName:    l.DealerName,
	}
}
