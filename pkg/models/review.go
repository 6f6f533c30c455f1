package models

import "time"

const (
	ReviewStatusPending   = "pending"
	ReviewStatusResolved  = "resolved"
	ReviewStatusDismissed = "dismissed"
)

const (
	ReviewResolutionSameVehicle      = "same_vehicle"
	ReviewResolutionDifferentVehicle = "different_vehicle"
)

// ReviewItem is an uncertain match pair queued for human review. The listing
// ids are stored in normalized order (ListingAID < ListingBID) so the pending
// uniqueness constraint covers the unordered pair.
type ReviewItem struct {
	ID            string             `json:"id" db:"id"`
	TenantID      string             `json:"tenant_id" db:"tenant_id"`
	ListingAID    string             `json:"listing_a_id" db:"listing_a_id"`
	ListingBID    string             `json:"listing_b_id" db:"listing_b_id"`
	Confidence    float64            `json:"confidence" db:"confidence"`
	Method        MatchMethod        `json:"method" db:"method"`
	Status        string             `json:"status" db:"status"`
	Resolution    *string            `json:"resolution,omitempty" db:"resolution"`
	DismissReason *string            `json:"dismiss_reason,omitempty" db:"dismiss_reason"`
	Notes         *string            `json:"notes,omitempty" db:"notes"`
	FieldScores   map[string]float64 `json:"field_scores,omitempty" db:"-"`
	ResolvedBy    *string            `json:"resolved_by,omitempty" db:"resolved_by"`
	ResolvedAt    *time.Time         `json:"resolved_at,omitempty" db:"resolved_at"`
	CreatedAt     time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at" db:"updated_at"`
}

// IsTerminal reports whether the item has already been resolved or dismissed.
func (r *ReviewItem) IsTerminal() bool {
	return r.Status == ReviewStatusResolved || r.Status == ReviewStatusDismissed
}

// NormalizePair orders the listing ids so (A,B) and (B,A) store identically.
func (r *ReviewItem) NormalizePair() {
	if r.ListingBID < r.ListingAID {
		r.ListingAID, r.ListingBID = r.ListingBID, r.ListingAID
	}
}

// ListReviewItemsRequest filters and paginates the review queue.
type ListReviewItemsRequest struct {
	Status        string     `json:"status,omitempty" query:"status"`
	Method        string     `json:"method,omitempty" query:"method"`
	MinConfidence *float64   `json:"min_confidence,omitempty" query:"min_confidence"`
	MaxConfidence *float64   `json:"max_confidence,omitempty" query:"max_confidence"`
	CreatedAfter  *time.Time `json:"created_after,omitempty" query:"created_after"`
	CreatedBefore *time.Time `json:"created_before,omitempty" query:"created_before"`
	Page          int        `json:"page,omitempty" query:"page"`
	PageSize      int        `json:"page_size,omitempty" query:"page_size"`
}

// ReviewItemPage is one page of review items with the unfiltered total.
type ReviewItemPage struct {
	Items    []ReviewItem `json:"items"`
	Total    int          `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
}

// ReviewQueueStats summarizes the state of a tenant's review queue.
type ReviewQueueStats struct {
	Pending              int            `json:"pending" db:"pending"`
	Resolved             int            `json:"resolved" db:"resolved"`
	Dismissed            int            `json:"dismissed" db:"dismissed"`
	AvgPendingConfidence float64        `json:"avg_pending_confidence" db:"avg_pending_confidence"`
	ByMethod             map[string]int `json:"by_method"`
}

// ListingSummary is the slice of listing fields shown alongside a review
// item so a reviewer can compare the pair without extra lookups.
type ListingSummary struct {
	ID         string   `json:"id"`
	Vin        string   `json:"vin,omitempty"`
	Make       string   `json:"make,omitempty"`
	Model      string   `json:"model,omitempty"`
	Year       int      `json:"year,omitempty"`
	Price      *float64 `json:"price,omitempty"`
	Mileage    *int     `json:"mileage,omitempty"`
	SourceSite string   `json:"source_site,omitempty"`
	ExternalID string   `json:"external_id,omitempty"`
}

// ReviewItemInfo is a review item denormalized with both listings' summaries.
// A summary is nil when the listing no longer exists.
type ReviewItemInfo struct {
	ReviewItem
	ListingA *ListingSummary `json:"listing_a,omitempty"`
	ListingB *ListingSummary `json:"listing_b,omitempty"`
}

// ReviewItemInfoPage is one page of denormalized review items with the
// unfiltered total.
type ReviewItemInfoPage struct {
	Items    []ReviewItemInfo `json:"items"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

// ResolveReviewItemRequest marks a pending item as resolved.
type ResolveReviewItemRequest struct {
	Resolution string `json:"resolution" validate:"required,oneof=same_vehicle different_vehicle"`
	ResolvedBy string `json:"resolved_by,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

// DismissReviewItemRequest marks a pending item as dismissed.
type DismissReviewItemRequest struct {
	Reason string `json:"reason,omitempty"`
}
