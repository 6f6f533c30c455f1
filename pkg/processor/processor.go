// Package processor consumes scraped listing records and drives them through
// upsert, matching, and relisting detection.
package processor

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/kafka"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/logging"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/models"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/tracing"
)

// ListingStore persists listings for incoming records
type ListingStore interface {
	GetBySource(ctx context.Context, tenantID, sourceSite, externalID string) (*models.Listing, error)
	Upsert(ctx context.Context, listing *models.Listing) (*models.Listing, error)
	Deactivate(ctx context.Context, tenantID, id string) error
}

// Matcher runs the deduplication pipeline for a record
type Matcher interface {
	Match(ctx context.Context, record *models.ScrapedRecord, recordListingID string) (*models.MatchResult, error)
}

// RelistDetector checks a listing against recently deactivated inventory
type RelistDetector interface {
	Detect(ctx context.Context, listing *models.Listing) (*models.RelistingDetectionResult, error)
}

// EventEmitter publishes deduplication events
type EventEmitter interface {
	ListingMatched(ctx context.Context, tenantID, listingID string, result *models.MatchResult)
	ListingRelisted(ctx context.Context, pattern *models.RelistingPattern)
	ReviewCreated(ctx context.Context, item *models.ReviewItem)
}

// Processor wires record ingestion to the matching and relisting engines
type Processor struct {
	listings ListingStore
	matcher  Matcher
	relister RelistDetector
	emitter  EventEmitter
	logger   logging.Logger
}

// NewProcessor creates a new record processor
func NewProcessor(listings ListingStore, matcher Matcher, relister RelistDetector, emitter EventEmitter, logger logging.Logger) *Processor {
	return &Processor{
		listings: listings,
		matcher:  matcher,
		relister: relister,
		emitter:  emitter,
		logger:   logger,
	}
}

// HandleMessage processes one consumed record message
func (p *Processor) HandleMessage(ctx context.Context, msg *kafka.IncomingMessage) error {
	ctx, span := tracing.StartSpan(ctx, "processor.Processor.HandleMessage")
	defer span.End()

	if msg.Record == nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "message has no record")
	}

	if msg.IsDelisting() {
		return p.handleDelisting(ctx, msg.Record)
	}
	return p.Process(ctx, msg.Record)
}

// Process upserts the record's listing, runs matching, and on a fresh or
// reactivated listing runs relisting detection.
func (p *Processor) Process(ctx context.Context, record *models.ScrapedRecord) error {
	ctx, span := tracing.StartSpan(ctx, "processor.Processor.Process")
	defer span.End()

	if record == nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "record is required")
	}
	if record.TenantID == "" || record.SourceSite == "" || record.ExternalID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "record requires tenant_id, source_site and external_id")
	}

	existing, err := p.listings.GetBySource(ctx, record.TenantID, record.SourceSite, record.ExternalID)
	if err != nil {
		return err
	}
	isNew := existing == nil
	wasInactive := existing != nil && !existing.IsActive

	saved, err := p.listings.Upsert(ctx, listingFromRecord(record))
	if err != nil {
		return err
	}

	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"listing_id":  saved.ID,
		"source_site": saved.SourceSite,
		"external_id": saved.ExternalID,
	})

	result, err := p.matcher.Match(ctx, record, saved.ID)
	if err != nil {
		return err
	}

	switch result.Decision {
	case models.MatchDecisionAutoMatch:
		p.emitter.ListingMatched(ctx, record.TenantID, saved.ID, result)
	case models.MatchDecisionReview:
		if result.ReviewID != nil && result.Matched != nil {
			p.emitter.ReviewCreated(ctx, &models.ReviewItem{
				ID:         *result.ReviewID,
				TenantID:   record.TenantID,
				ListingAID: saved.ID,
				ListingBID: result.Matched.ID,
				Confidence: result.Confidence,
				Method:     result.Method,
				Status:     models.ReviewStatusPending,
			})
		}
	}

	if isNew || wasInactive {
		detection, err := p.relister.Detect(ctx, saved)
		if err != nil {
			// Relisting detection is best-effort; the record is already stored.
			log.WithError(err).Warn("Relisting detection failed")
			return nil
		}
		if detection.IsRelisting && detection.Pattern != nil {
			p.emitter.ListingRelisted(ctx, detection.Pattern)
		}
	}

	return nil
}

func (p *Processor) handleDelisting(ctx context.Context, record *models.ScrapedRecord) error {
	ctx, span := tracing.StartSpan(ctx, "processor.Processor.handleDelisting")
	defer span.End()

	existing, err := p.listings.GetBySource(ctx, record.TenantID, record.SourceSite, record.ExternalID)
	if err != nil {
		return err
	}
	if existing == nil || !existing.IsActive {
		return nil // already gone
	}

	return p.listings.Deactivate(ctx, record.TenantID, existing.ID)
}

func listingFromRecord(record *models.ScrapedRecord) *models.Listing {
	return &models.Listing{
		TenantID:      record.TenantID,
		SourceSite:    record.SourceSite,
		ExternalID:    record.ExternalID,
		Vin:           record.Vin,
		Make:          record.Make,
		Model:         record.Model,
		Year:          record.Year,
		Price:         record.Price,
		Mileage:       record.Mileage,
		ExteriorColor: record.ExteriorColor,
		Latitude:      record.Latitude,
		Longitude:     record.Longitude,
		DealerID:      record.DealerID,
		DealerName:    record.DealerName,
	}
}
