package processor

import (
	"context"
	"testing"

	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/kafka"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/logging"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeListings struct {
	bySource    map[string]*models.Listing
	upserted    []*models.Listing
	deactivated []string
}

func sourceKey(tenantID, sourceSite, externalID string) string {
	return tenantID + "|" + sourceSite + "|" + externalID
}

func (f *fakeListings) GetBySource(_ context.Context, tenantID, sourceSite, externalID string) (*models.Listing, error) {
	return f.bySource[sourceKey(tenantID, sourceSite, externalID)], nil
}

func (f *fakeListings) Upsert(_ context.Context, listing *models.Listing) (*models.Listing, error) {
	if existing := f.bySource[sourceKey(listing.TenantID, listing.SourceSite, listing.ExternalID)]; existing != nil {
		listing.ID = existing.ID
	} else if listing.ID == "" {
		listing.ID = "listing-" + listing.ExternalID
	}
	listing.IsActive = true
	f.upserted = append(f.upserted, listing)
	if f.bySource == nil {
		f.bySource = make(map[string]*models.Listing)
	}
	f.bySource[sourceKey(listing.TenantID, listing.SourceSite, listing.ExternalID)] = listing
	return listing, nil
}

func (f *fakeListings) Deactivate(_ context.Context, _, id string) error {
	f.deactivated = append(f.deactivated, id)
	return nil
}

type fakeMatcher struct {
	result    *models.MatchResult
	calledFor []string
}

func (f *fakeMatcher) Match(_ context.Context, _ *models.ScrapedRecord, recordListingID string) (*models.MatchResult, error) {
	f.calledFor = append(f.calledFor, recordListingID)
	if f.result != nil {
		return f.result, nil
	}
	return &models.MatchResult{Decision: models.MatchDecisionNoMatch, Method: models.MatchMethodNone}, nil
}

type fakeDetector struct {
	result    *models.RelistingDetectionResult
	calledFor []string
}

func (f *fakeDetector) Detect(_ context.Context, listing *models.Listing) (*models.RelistingDetectionResult, error) {
	f.calledFor = append(f.calledFor, listing.ID)
	if f.result != nil {
		return f.result, nil
	}
	return &models.RelistingDetectionResult{}, nil
}

type fakeEmitter struct {
	matched  []string
	relisted []string
	reviews  []string
}

func (f *fakeEmitter) ListingMatched(_ context.Context, _, listingID string, _ *models.MatchResult) {
	f.matched = append(f.matched, listingID)
}

func (f *fakeEmitter) ListingRelisted(_ context.Context, pattern *models.RelistingPattern) {
	f.relisted = append(f.relisted, pattern.CurrentListingID)
}

func (f *fakeEmitter) ReviewCreated(_ context.Context, item *models.ReviewItem) {
	f.reviews = append(f.reviews, item.ID)
}

func record(externalID string) *models.ScrapedRecord {
	return &models.ScrapedRecord{
		TenantID:   "tenant-1",
		SourceSite: "autotrader",
		ExternalID: externalID,
		Make:       "Honda",
		Model:      "Civic",
		Year:       2021,
	}
}

func TestProcessNewRecordRunsMatchAndRelistDetection(t *testing.T) {
	listings := &fakeListings{}
	matcher := &fakeMatcher{}
	detector := &fakeDetector{}
	emitter := &fakeEmitter{}
	p := NewProcessor(listings, matcher, detector, emitter, logging.Nop())

	err := p.Process(context.Background(), record("ext-1"))
	require.NoError(t, err)

	require.Len(t, listings.upserted, 1)
	assert.Equal(t, []string{"listing-ext-1"}, matcher.calledFor)
	assert.Equal(t, []string{"listing-ext-1"}, detector.calledFor)
}

func TestProcessExistingActiveListingSkipsRelistDetection(t *testing.T) {
	existing := &models.Listing{ID: "listing-old", TenantID: "tenant-1", SourceSite: "autotrader", ExternalID: "ext-1", IsActive: true}
	listings := &fakeListings{bySource: map[string]*models.Listing{
		sourceKey("tenant-1", "autotrader", "ext-1"): existing,
	}}
	matcher := &fakeMatcher{}
	detector := &fakeDetector{}
	p := NewProcessor(listings, matcher, detector, &fakeEmitter{}, logging.Nop())

	err := p.Process(context.Background(), record("ext-1"))
	require.NoError(t, err)

	assert.Equal(t, []string{"listing-old"}, matcher.calledFor)
	assert.Empty(t, detector.calledFor)
}

func TestProcessReactivatedListingRunsRelistDetection(t *testing.T) {
	existing := &models.Listing{ID: "listing-old", TenantID: "tenant-1", SourceSite: "autotrader", ExternalID: "ext-1", IsActive: false}
	listings := &fakeListings{bySource: map[string]*models.Listing{
		sourceKey("tenant-1", "autotrader", "ext-1"): existing,
	}}
	detector := &fakeDetector{}
	p := NewProcessor(listings, &fakeMatcher{}, detector, &fakeEmitter{}, logging.Nop())

	err := p.Process(context.Background(), record("ext-1"))
	require.NoError(t, err)

	assert.Equal(t, []string{"listing-old"}, detector.calledFor)
}

func TestProcessEmitsMatchedEvent(t *testing.T) {
	matched := &models.Listing{ID: "listing-other", TenantID: "tenant-1"}
	matcher := &fakeMatcher{result: &models.MatchResult{
		Decision:   models.MatchDecisionAutoMatch,
		Method:     models.MatchMethodExactVin,
		Confidence: 100,
		Matched:    matched,
	}}
	emitter := &fakeEmitter{}
	p := NewProcessor(&fakeListings{}, matcher, &fakeDetector{}, emitter, logging.Nop())

	err := p.Process(context.Background(), record("ext-1"))
	require.NoError(t, err)

	assert.Equal(t, []string{"listing-ext-1"}, emitter.matched)
}

func TestProcessEmitsReviewCreatedEvent(t *testing.T) {
	reviewID := "review-1"
	matched := &models.Listing{ID: "listing-other", TenantID: "tenant-1"}
	matcher := &fakeMatcher{result: &models.MatchResult{
		Decision:   models.MatchDecisionReview,
		Method:     models.MatchMethodFuzzyAttributes,
		Confidence: 78,
		Matched:    matched,
		ReviewID:   &reviewID,
	}}
	emitter := &fakeEmitter{}
	p := NewProcessor(&fakeListings{}, matcher, &fakeDetector{}, emitter, logging.Nop())

	err := p.Process(context.Background(), record("ext-1"))
	require.NoError(t, err)

	assert.Equal(t, []string{"review-1"}, emitter.reviews)
}

func TestProcessEmitsRelistedEvent(t *testing.T) {
	detector := &fakeDetector{result: &models.RelistingDetectionResult{
		IsRelisting: true,
		Pattern:     &models.RelistingPattern{CurrentListingID: "listing-ext-1", TenantID: "tenant-1"},
	}}
	emitter := &fakeEmitter{}
	p := NewProcessor(&fakeListings{}, &fakeMatcher{}, detector, emitter, logging.Nop())

	err := p.Process(context.Background(), record("ext-1"))
	require.NoError(t, err)

	assert.Equal(t, []string{"listing-ext-1"}, emitter.relisted)
}

func TestProcessRejectsIncompleteRecord(t *testing.T) {
	p := NewProcessor(&fakeListings{}, &fakeMatcher{}, &fakeDetector{}, &fakeEmitter{}, logging.Nop())

	err := p.Process(context.Background(), &models.ScrapedRecord{TenantID: "tenant-1"})
	assert.Error(t, err)

	err = p.Process(context.Background(), nil)
	assert.Error(t, err)
}

func TestHandleDelistingDeactivatesActiveListing(t *testing.T) {
	existing := &models.Listing{ID: "listing-old", TenantID: "tenant-1", SourceSite: "autotrader", ExternalID: "ext-1", IsActive: true}
	listings := &fakeListings{bySource: map[string]*models.Listing{
		sourceKey("tenant-1", "autotrader", "ext-1"): existing,
	}}
	p := NewProcessor(listings, &fakeMatcher{}, &fakeDetector{}, &fakeEmitter{}, logging.Nop())

	msg := &kafka.IncomingMessage{
		Record:  record("ext-1"),
		Headers: map[string]string{"event_type": "listing.delisted"},
	}
	err := p.HandleMessage(context.Background(), msg)
	require.NoError(t, err)

	assert.Equal(t, []string{"listing-old"}, listings.deactivated)
}

func TestHandleDelistingUnknownListingIsNoOp(t *testing.T) {
	listings := &fakeListings{}
	p := NewProcessor(listings, &fakeMatcher{}, &fakeDetector{}, &fakeEmitter{}, logging.Nop())

	msg := &kafka.IncomingMessage{
		Record:  record("ext-404"),
		Headers: map[string]string{"event_type": "listing.delisted"},
	}
	err := p.HandleMessage(context.Background(), msg)
	require.NoError(t, err)
	assert.Empty(t, listings.deactivated)
}
