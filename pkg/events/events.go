// Package events defines the domain events emitted after deduplication
// decisions and the emitter that publishes them.
package events

import (
	"context"
	"time"

	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/logging"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/models"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/tracing"
)

const (
	EventListingMatched  = "listing.matched"
	EventListingRelisted = "listing.relisted"
	EventReviewCreated   = "review.created"
)

// ListingMatchedEvent is emitted when a record matches an existing listing
type ListingMatchedEvent struct {
	EventType        string             `json:"event_type"`
	TenantID         string             `json:"tenant_id"`
	ListingID        string             `json:"listing_id"`
	MatchedListingID string             `json:"matched_listing_id"`
	Method           models.MatchMethod `json:"method"`
	Confidence       float64            `json:"confidence"`
	Decision         string             `json:"decision"`
	Timestamp        time.Time          `json:"timestamp"`
}

// ListingRelistedEvent is emitted when a listing is detected as a relist
type ListingRelistedEvent struct {
	EventType         string             `json:"event_type"`
	TenantID          string             `json:"tenant_id"`
	CurrentListingID  string             `json:"current_listing_id"`
	PreviousListingID string             `json:"previous_listing_id"`
	DealerID          *string            `json:"dealer_id,omitempty"`
	Method            models.MatchMethod `json:"method"`
	Confidence        float64            `json:"confidence"`
	IsSuspicious      bool               `json:"is_suspicious"`
	DaysOffMarket     float64            `json:"days_off_market"`
	Timestamp         time.Time          `json:"timestamp"`
}

// ReviewCreatedEvent is emitted when a pair lands in the review queue
type ReviewCreatedEvent struct {
	EventType  string             `json:"event_type"`
	TenantID   string             `json:"tenant_id"`
	ReviewID   string             `json:"review_id"`
	ListingAID string             `json:"listing_a_id"`
	ListingBID string             `json:"listing_b_id"`
	Method     models.MatchMethod `json:"method"`
	Confidence float64            `json:"confidence"`
	Timestamp  time.Time          `json:"timestamp"`
}

// Publisher writes a keyed event to the event topic
type Publisher interface {
	Publish(ctx context.Context, key string, payload any, headers map[string]string) error
}

// Emitter publishes deduplication events. Emission failures are logged and
// swallowed so a broker outage never blocks record processing.
type Emitter struct {
	publisher Publisher
	logger    logging.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(publisher Publisher, logger logging.Logger) *Emitter {
	return &Emitter{
		publisher: publisher,
		logger:    logger,
	}
}

// ListingMatched emits a listing.matched event for a match decision
func (e *Emitter) ListingMatched(ctx context.Context, tenantID, listingID string, result *models.MatchResult) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.ListingMatched")
	defer span.End()

	if result == nil || result.Matched == nil {
		return
	}

	event := &ListingMatchedEvent{
		EventType:        EventListingMatched,
		TenantID:         tenantID,
		ListingID:        listingID,
		MatchedListingID: result.Matched.ID,
		Method:           result.Method,
		Confidence:       result.Confidence,
		Decision:         string(result.Decision),
		Timestamp:        time.Now().UTC(),
	}

	e.emit(ctx, listingID, event, event.EventType, tenantID)
}

// ListingRelisted emits a listing.relisted event for a detected pattern
func (e *Emitter) ListingRelisted(ctx context.Context, pattern *models.RelistingPattern) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.ListingRelisted")
	defer span.End()

	if pattern == nil {
		return
	}

	event := &ListingRelistedEvent{
		EventType:         EventListingRelisted,
		TenantID:          pattern.TenantID,
		CurrentListingID:  pattern.CurrentListingID,
		PreviousListingID: pattern.PreviousListingID,
		DealerID:          pattern.DealerID,
		Method:            pattern.Method,
		Confidence:        pattern.Confidence,
		IsSuspicious:      pattern.IsSuspicious,
		DaysOffMarket:     pattern.DaysOffMarket,
		Timestamp:         time.Now().UTC(),
	}

	e.emit(ctx, pattern.CurrentListingID, event, event.EventType, pattern.TenantID)
}

// ReviewCreated emits a review.created event for a queued pair
func (e *Emitter) ReviewCreated(ctx context.Context, item *models.ReviewItem) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.ReviewCreated")
	defer span.End()

	if item == nil {
		return
	}

	event := &ReviewCreatedEvent{
		EventType:  EventReviewCreated,
		TenantID:   item.TenantID,
		ReviewID:   item.ID,
		ListingAID: item.ListingAID,
		ListingBID: item.ListingBID,
		Method:     item.Method,
		Confidence: item.Confidence,
		Timestamp:  time.Now().UTC(),
	}

	e.emit(ctx, item.ID, event, event.EventType, item.TenantID)
}

func (e *Emitter) emit(ctx context.Context, key string, payload any, eventType, tenantID string) {
	headers := map[string]string{
		"event_type": eventType,
		"tenant_id":  tenantID,
	}
	if err := e.publisher.Publish(ctx, key, payload, headers); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_type": eventType,
		}).Error("Failed to emit event")
	}
}
