// Package relisting detects the reappearance of previously deactivated
// listings: the same vehicle taken off market and re-offered, often with a
// price reset. Detection runs against a deactivated candidate pool within a
// lookback window and records a RelistingPattern per hit.
package relisting

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/google/uuid"

	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/confidence"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/logging"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/models"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/normalizers"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/progress"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/tracing"
)

// ListingStore supplies the candidate pools for detection.
type ListingStore interface {
	ListDeactivatedSince(ctx context.Context, tenantID string, since time.Time) ([]models.Listing, error)
	ListActivatedSince(ctx context.Context, tenantID string, since time.Time) ([]models.Listing, error)
	CountActiveByDealer(ctx context.Context, tenantID string) (map[string]int, error)
}

// PatternStore persists detected relisting patterns. Record also applies the
// relist count to the current listing atomically with the pattern insert.
type PatternStore interface {
	Record(ctx context.Context, pattern *models.RelistingPattern, relistedCount int) error
	ExistsForListing(ctx context.Context, tenantID, currentListingID string) (bool, error)
	CountByDealer(ctx context.Context, tenantID string) (map[string]int, error)
}

// StatsStore persists per-dealer relisting aggregates.
type StatsStore interface {
	Upsert(ctx context.Context, stats *models.DealerRelistingStats) error
}

// Config carries the detection thresholds. The legacy constants are explicit
// configuration so operators can tune them without a rebuild.
type Config struct {
	LookbackDays         int
	MinDaysOffMarket     float64
	VinConfidence        float64
	ExternalIDConfidence float64
	FuzzyMinimum         float64
	ProgressInterval     int
	FrequentRelisterRate float64
	FrequentRelisterMin  int
	SuspiciousChurnDays  float64
	ChronicRelistCount   int
}

// DefaultConfig returns the standard relisting thresholds.
func DefaultConfig() Config {
	return Config{
		LookbackDays:         90,
		MinDaysOffMarket:     1,
		VinConfidence:        100,
		ExternalIDConfidence: 95,
		FuzzyMinimum:         70,
		ProgressInterval:     50,
		FrequentRelisterRate: 0.20,
		FrequentRelisterMin:  5,
		SuspiciousChurnDays:  7,
		ChronicRelistCount:   3,
	}
}

type Engine struct {
	listings   ListingStore
	patterns   PatternStore
	stats      StatsStore
	calculator *confidence.Calculator
	classifier Classifier
	config     Config
	logger     logging.Logger
	now        func() time.Time
}

func NewEngine(listings ListingStore, patterns PatternStore, stats StatsStore, classifier Classifier, config Config, logger logging.Logger) *Engine {
	if classifier == nil {
		classifier = DefaultClassifier(config.SuspiciousChurnDays, config.ChronicRelistCount)
	}
	return &Engine{
		listings:   listings,
		patterns:   patterns,
		stats:      stats,
		calculator: confidence.NewCalculator(),
		classifier: classifier,
		config:     config,
		logger:     logger,
		now:        time.Now,
	}
}

// Detect checks one (re)activated listing against the tenant's deactivated
// pool. On a hit it records the pattern and carries the prior listing's
// relist count forward, incremented by one.
func (e *Engine) Detect(ctx context.Context, listing *models.Listing) (*models.RelistingDetectionResult, error) {
	ctx, span := tracing.StartSpan(ctx, "relisting.Engine.Detect")
	defer span.End()

	if listing == nil {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "listing is required")
	}

	now := e.now().UTC()
	since := now.AddDate(0, 0, -e.config.LookbackDays)

	pool, err := e.listings.ListDeactivatedSince(ctx, listing.TenantID, since)
	if err != nil {
		e.logger.WithContext(ctx).WithError(err).WithField("tenant_id", listing.TenantID).Error("failed to load deactivated listings")
		return nil, err
	}

	candidates := make([]models.Listing, 0, len(pool))
	for _, candidate := range pool {
		if candidate.ID == listing.ID {
			continue
		}
		// An insufficiently cooled-off candidate is never a relisting source.
		if candidate.DeactivatedAt == nil || candidate.DaysOffMarket(now) < e.config.MinDaysOffMarket {
			continue
		}
		candidates = append(candidates, candidate)
	}

	previous, conf, patternType, method, err := e.findPrevious(listing, candidates)
	if err != nil {
		return nil, err
	}
	if previous == nil {
		return &models.RelistingDetectionResult{IsRelisting: false}, nil
	}

	pattern := e.buildPattern(listing, previous, patternType, method, conf, now)
	relistedCount := previous.RelistedCount + 1
	pattern.IsSuspicious = e.classifier.IsSuspicious(pattern, relistedCount)

	if err := e.patterns.Record(ctx, pattern, relistedCount); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tenant_id":  listing.TenantID,
			"listing_id": listing.ID,
		}).Error("failed to record relisting pattern")
		return nil, err
	}

	return &models.RelistingDetectionResult{
		IsRelisting:      true,
		MatchedListingID: previous.ID,
		MatchConfidence:  conf,
		MatchMethod:      method,
		Pattern:          pattern,
	}, nil
}

// findPrevious applies the detection stages in priority order: exact VIN,
// external id, then same-dealer fuzzy. A VIN hit whose candidate also carries
// the same source/external id pair is reported as a combined match.
func (e *Engine) findPrevious(listing *models.Listing, candidates []models.Listing) (*models.Listing, float64, models.RelistingType, models.MatchMethod, error) {
	externalID := normalizers.NormalizeExternalID(listing.ExternalID)
	sourceSite := normalizers.NormalizeExternalID(listing.SourceSite)

	vin := normalizers.NormalizeVin(listing.Vin)
	if len(vin) == 17 {
		for i := range candidates {
			if normalizers.NormalizeVin(candidates[i].Vin) != vin {
				continue
			}
			patternType := models.RelistingTypeVinMatch
			if externalID != "" && sourceSite != "" &&
				normalizers.NormalizeExternalID(candidates[i].ExternalID) == externalID &&
				normalizers.NormalizeExternalID(candidates[i].SourceSite) == sourceSite {
				patternType = models.RelistingTypeCombinedMatch
			}
			return &candidates[i], e.config.VinConfidence, patternType, models.MatchMethodExactVin, nil
		}
	}

	if externalID != "" && sourceSite != "" {
		for i := range candidates {
			if normalizers.NormalizeExternalID(candidates[i].ExternalID) == externalID &&
				normalizers.NormalizeExternalID(candidates[i].SourceSite) == sourceSite {
				return &candidates[i], e.config.ExternalIDConfidence, models.RelistingTypeExternalIDMatch, models.MatchMethodExternalID, nil
			}
		}
	}

	if listing.DealerID == nil {
		return nil, 0, "", models.MatchMethodNone, nil
	}

	record := listing.Record()
	for i := range candidates {
		candidate := &candidates[i]
		if candidate.DealerID == nil || *candidate.DealerID != *listing.DealerID {
			continue
		}

		conf, _, err := e.calculator.Score(record, candidate.Record(), models.DefaultRelistingWeights(), models.DefaultTolerances())
		if err != nil {
			return nil, 0, "", models.MatchMethodNone, err
		}
		if conf >= e.config.FuzzyMinimum {
			return candidate, conf, models.RelistingTypeFuzzyMatch, models.MatchMethodFuzzyAttributes, nil
		}
	}

	return nil, 0, "", models.MatchMethodNone, nil
}

func (e *Engine) buildPattern(listing, previous *models.Listing, patternType models.RelistingType, method models.MatchMethod, conf float64, now time.Time) *models.RelistingPattern {
	daysOnMarket := 0.0
	if previous.DeactivatedAt != nil && previous.DeactivatedAt.After(previous.FirstSeenAt) {
		daysOnMarket = previous.DeactivatedAt.Sub(previous.FirstSeenAt).Hours() / 24
	}

	return &models.RelistingPattern{
		ID:                uuid.New().String(),
		TenantID:          listing.TenantID,
		CurrentListingID:  listing.ID,
		PreviousListingID: previous.ID,
		DealerID:          listing.DealerID,
		PatternType:       patternType,
		Method:            method,
		Confidence:        conf,
		Vin:               listing.Vin,
		Make:              listing.Make,
		Model:             listing.Model,
		Year:              listing.Year,
		PriceBefore:       previous.Price,
		PriceAfter:        listing.Price,
		DaysOffMarket:     previous.DaysOffMarket(now),
		DaysOnMarket:      daysOnMarket,
		CreatedAt:         now,
	}
}

// ScanBatch runs Detect over listings activated since the given time that do
// not already have a pattern. Per-listing failures are collected, not fatal;
// cancellation stops the scan before the next listing.
func (e *Engine) ScanBatch(ctx context.Context, tenantID string, since time.Time, reporter progress.Reporter) (*models.BatchScanResult, error) {
	ctx, span := tracing.StartSpan(ctx, "relisting.Engine.ScanBatch")
	defer span.End()

	if reporter == nil {
		reporter = progress.Nop()
	}

	listings, err := e.listings.ListActivatedSince(ctx, tenantID, since)
	if err != nil {
		e.logger.WithContext(ctx).WithError(err).WithField("tenant_id", tenantID).Error("failed to load activated listings for scan")
		return nil, err
	}

	result := &models.BatchScanResult{}
	total := len(listings)

	for i := range listings {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		listing := &listings[i]

		exists, err := e.patterns.ExistsForListing(ctx, tenantID, listing.ID)
		if err != nil {
			result.Errors = append(result.Errors, models.BatchScanError{ListingID: listing.ID, Message: err.Error()})
			continue
		}
		if !exists {
			detection, err := e.Detect(ctx, listing)
			if err != nil {
				result.Errors = append(result.Errors, models.BatchScanError{ListingID: listing.ID, Message: err.Error()})
			} else if detection.IsRelisting {
				result.RelistingsFound++
				result.Patterns = append(result.Patterns, *detection.Pattern)
			}
		}

		result.Scanned++
		if result.Scanned%e.config.ProgressInterval == 0 {
			reporter.Report(result.Scanned, total, fmt.Sprintf("scanned %d of %d listings", result.Scanned, total))
		}
	}

	reporter.Report(result.Scanned, total, fmt.Sprintf("relisting scan complete: %d relistings, %d errors", result.RelistingsFound, len(result.Errors)))
	return result, nil
}

// RecomputeDealerStats rebuilds per-dealer relisting rates for the tenant
// and flags frequent relisters. Run periodically, not on every detection.
func (e *Engine) RecomputeDealerStats(ctx context.Context, tenantID string) ([]models.DealerRelistingStats, error) {
	ctx, span := tracing.StartSpan(ctx, "relisting.Engine.RecomputeDealerStats")
	defer span.End()

	listingCounts, err := e.listings.CountActiveByDealer(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	relistCounts, err := e.patterns.CountByDealer(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	out := make([]models.DealerRelistingStats, 0, len(listingCounts))

	for dealerID, totalListings := range listingCounts {
		if totalListings == 0 {
			continue
		}
		totalRelistings := relistCounts[dealerID]
		rate := float64(totalRelistings) / float64(totalListings)

		stats := models.DealerRelistingStats{
			TenantID:           tenantID,
			DealerID:           dealerID,
			TotalListings:      totalListings,
			TotalRelistings:    totalRelistings,
			RelistingRate:      rate,
			IsFrequentRelister: rate >= e.config.FrequentRelisterRate && totalRelistings >= e.config.FrequentRelisterMin,
			ComputedAt:         now,
		}

		if err := e.stats.Upsert(ctx, &stats); err != nil {
			e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"tenant_id": tenantID,
				"dealer_id": dealerID,
			}).Error("failed to upsert dealer relisting stats")
			return nil, err
		}
		out = append(out, stats)
	}

	return out, nil
}
