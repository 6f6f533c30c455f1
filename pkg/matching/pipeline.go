// Package matching resolves incoming scraped records against a tenant's
// active listings: deterministic identifier checks first, then weighted
// fuzzy scoring, with thresholds and feature flags supplied by the
// applicable dealer rule.
package matching

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/google/uuid"

	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/confidence"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/logging"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/models"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/normalizers"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/tracing"
)

// ListingSource supplies the candidate pool for a tenant.
type ListingSource interface {
	ListActive(ctx context.Context, tenantID string) ([]models.Listing, error)
}

// ReviewQueue receives pairs whose confidence lands in the review band.
type ReviewQueue interface {
	Exists(ctx context.Context, tenantID, listingAID, listingBID string) (bool, error)
	Create(ctx context.Context, item *models.ReviewItem) (*models.ReviewItem, error)
}

// RuleResolver supplies the matching policy for a record.
type RuleResolver interface {
	GetApplicableRule(ctx context.Context, tenantID string, record *models.ScrapedRecord) (*models.DealerDeduplicationRule, error)
}

// Config carries the method confidences. The legacy constants are explicit
// configuration so operators can tune them without a rebuild.
type Config struct {
	ExactVinConfidence   float64
	PartialVinConfidence float64
	ExternalIDConfidence float64
}

// DefaultConfig returns the standard method confidences.
func DefaultConfig() Config {
	return Config{
		ExactVinConfidence:   100,
		PartialVinConfidence: 95,
		ExternalIDConfidence: 100,
	}
}

func (c Config) confidenceFor(method models.MatchMethod) float64 {
	switch method {
	case models.MatchMethodExactVin:
		return c.ExactVinConfidence
	case models.MatchMethodPartialVin:
		return c.PartialVinConfidence
	case models.MatchMethodExternalID:
		return c.ExternalIDConfidence
	default:
		return 0
	}
}

type Pipeline struct {
	listings   ListingSource
	reviews    ReviewQueue
	rules      RuleResolver
	calculator *confidence.Calculator
	config     Config
	logger     logging.Logger
}

func NewPipeline(listings ListingSource, reviews ReviewQueue, rules RuleResolver, config Config, logger logging.Logger) *Pipeline {
	return &Pipeline{
		listings:   listings,
		reviews:    reviews,
		rules:      rules,
		calculator: confidence.NewCalculator(),
		config:     config,
		logger:     logger,
	}
}

// Match resolves a record against the tenant's active listings and returns
// the decision. recordListingID is the id of the listing persisted for this
// record; it is excluded from the candidate pool and names the record's side
// of any review pair. When empty (preview), review items are not created.
// The pipeline itself mutates no listings.
func (p *Pipeline) Match(ctx context.Context, record *models.ScrapedRecord, recordListingID string) (*models.MatchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Pipeline.Match")
	defer span.End()

	if record == nil {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "record is required")
	}
	if record.TenantID == "" {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "record tenant id is required")
	}

	rule, err := p.rules.GetApplicableRule(ctx, record.TenantID, record)
	if err != nil {
		return nil, err
	}

	if rule.StrictMode && normalizers.NormalizeVin(record.Vin) == "" {
		// Strict mode requires a VIN; records without one are always new.
		return noMatch(rule), nil
	}

	candidates, err := p.listings.ListActive(ctx, record.TenantID)
	if err != nil {
		p.logger.WithContext(ctx).WithError(err).WithField("tenant_id", record.TenantID).Error("failed to load active listings")
		return nil, err
	}
	candidates = excludeListing(candidates, recordListingID)

	method, matched, fieldScores, conf, err := p.findBestMatch(ctx, record, candidates, rule)
	if err != nil {
		return nil, err
	}
	if matched == nil {
		return noMatch(rule), nil
	}

	result := &models.MatchResult{
		Method:      method,
		Confidence:  conf,
		Matched:     matched,
		FieldScores: fieldScores,
	}
	if rule.ID != "" {
		result.RuleID = &rule.ID
	}

	switch {
	case conf >= rule.AutoMatchThreshold:
		result.Decision = models.MatchDecisionAutoMatch
	case conf >= rule.ReviewThreshold:
		result.Decision = models.MatchDecisionReview
		if recordListingID != "" {
			reviewID, err := p.enqueueReview(ctx, record.TenantID, recordListingID, matched.ID, method, conf, fieldScores)
			if err != nil {
				return nil, err
			}
			result.ReviewID = reviewID
		}
	default:
		return noMatch(rule), nil
	}

	return result, nil
}

// findBestMatch runs the identifier strategy table, then fuzzy scoring.
func (p *Pipeline) findBestMatch(ctx context.Context, record *models.ScrapedRecord, candidates []models.Listing, rule *models.DealerDeduplicationRule) (models.MatchMethod, *models.Listing, map[string]float64, float64, error) {
	for _, matcher := range identifierMatchers() {
		if !matcher.enabled(rule) {
			continue
		}
		if matched := matcher.match(record, candidates); matched != nil {
			return matcher.method, matched, nil, p.config.confidenceFor(matcher.method), nil
		}
	}

	if !rule.EnableFuzzyMatching {
		return models.MatchMethodNone, nil, nil, 0, nil
	}

	return p.fuzzyMatch(ctx, record, candidates, rule)
}

// fuzzyMatch scores the record against each candidate and keeps the best.
// When the record's dealer is known the pool is narrowed to that dealer.
func (p *Pipeline) fuzzyMatch(ctx context.Context, record *models.ScrapedRecord, candidates []models.Listing, rule *models.DealerDeduplicationRule) (models.MatchMethod, *models.Listing, map[string]float64, float64, error) {
	if record.DealerID != nil {
		narrowed := make([]models.Listing, 0, len(candidates))
		for _, candidate := range candidates {
			if candidate.DealerID != nil && *candidate.DealerID == *record.DealerID {
				narrowed = append(narrowed, candidate)
			}
		}
		if len(narrowed) > 0 {
			candidates = narrowed
		}
	}

	weights := rule.Weights
	if !rule.EnableImageMatching {
		weights.Image = 0
	}
	if weights.Sum() == 0 {
		weights = models.DefaultPipelineWeights()
	}

	var best *models.Listing
	var bestScores map[string]float64
	bestConfidence := 0.0

	for i := range candidates {
		candidate := &candidates[i]
		conf, fieldScores, err := p.calculator.Score(record, candidate.Record(), weights, rule.Tolerances)
		if err != nil {
			return models.MatchMethodNone, nil, nil, 0, err
		}
		if conf > bestConfidence {
			best = candidate
			bestScores = fieldScores
			bestConfidence = conf
		}
	}

	if best == nil {
		return models.MatchMethodNone, nil, nil, 0, nil
	}
	return models.MatchMethodFuzzyAttributes, best, bestScores, bestConfidence, nil
}

// enqueueReview records the uncertain pair unless one is already pending.
func (p *Pipeline) enqueueReview(ctx context.Context, tenantID, listingAID, listingBID string, method models.MatchMethod, conf float64, fieldScores map[string]float64) (*string, error) {
	exists, err := p.reviews.Exists(ctx, tenantID, listingAID, listingBID)
	if err != nil {
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tenant_id":    tenantID,
			"listing_a_id": listingAID,
			"listing_b_id": listingBID,
		}).Error("failed to probe for existing review item")
		return nil, err
	}
	if exists {
		return nil, nil
	}

	now := time.Now().UTC()
	item := &models.ReviewItem{
		ID:          uuid.New().String(),
		TenantID:    tenantID,
		ListingAID:  listingAID,
		ListingBID:  listingBID,
		Confidence:  conf,
		Method:      method,
		Status:      models.ReviewStatusPending,
		FieldScores: fieldScores,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	item.NormalizePair()

	created, err := p.reviews.Create(ctx, item)
	if err != nil {
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tenant_id":    tenantID,
			"listing_a_id": listingAID,
			"listing_b_id": listingBID,
		}).Error("failed to create review item")
		return nil, err
	}

	return &created.ID, nil
}

func noMatch(rule *models.DealerDeduplicationRule) *models.MatchResult {
	result := &models.MatchResult{
		Decision: models.MatchDecisionNoMatch,
		Method:   models.MatchMethodNone,
	}
	if rule != nil && rule.ID != "" {
		result.RuleID = &rule.ID
	}
	return result
}

func excludeListing(candidates []models.Listing, listingID string) []models.Listing {
	if listingID == "" {
		return candidates
	}
	out := candidates[:0]
	for _, candidate := range candidates {
		if candidate.ID != listingID {
			out = append(out, candidate)
		}
	}
	return out
}
