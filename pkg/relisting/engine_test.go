package relisting

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/logging"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/models"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/progress"
)

type fakeListingStore struct {
	deactivated  []models.Listing
	activated    []models.Listing
	dealerCounts map[string]int
}

func newFakeListingStore() *fakeListingStore {
	return &fakeListingStore{
		dealerCounts: make(map[string]int),
	}
}

func (f *fakeListingStore) ListDeactivatedSince(ctx context.Context, tenantID string, since time.Time) ([]models.Listing, error) {
	var out []models.Listing
	for _, l := range f.deactivated {
		if l.TenantID != tenantID || l.DeactivatedAt == nil {
			continue
		}
		if l.DeactivatedAt.Before(since) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (f *fakeListingStore) ListActivatedSince(ctx context.Context, tenantID string, since time.Time) ([]models.Listing, error) {
	var out []models.Listing
	for _, l := range f.activated {
		if l.TenantID == tenantID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeListingStore) CountActiveByDealer(ctx context.Context, tenantID string) (map[string]int, error) {
	return f.dealerCounts, nil
}

type fakePatternStore struct {
	patterns     []*models.RelistingPattern
	relistCounts map[string]int
	existing     map[string]bool
	failExistsOn map[string]bool
	dealerCounts map[string]int
}

func newFakePatternStore() *fakePatternStore {
	return &fakePatternStore{
		relistCounts: make(map[string]int),
		existing:     make(map[string]bool),
		failExistsOn: make(map[string]bool),
		dealerCounts: make(map[string]int),
	}
}

func (f *fakePatternStore) Record(ctx context.Context, pattern *models.RelistingPattern, relistedCount int) error {
	f.patterns = append(f.patterns, pattern)
	f.relistCounts[pattern.CurrentListingID] = relistedCount
	f.existing[pattern.CurrentListingID] = true
	return nil
}

func (f *fakePatternStore) ExistsForListing(ctx context.Context, tenantID, currentListingID string) (bool, error) {
	if f.failExistsOn[currentListingID] {
		return false, httperror.NewHTTPError(500, "storage unavailable")
	}
	return f.existing[currentListingID], nil
}

func (f *fakePatternStore) CountByDealer(ctx context.Context, tenantID string) (map[string]int, error) {
	return f.dealerCounts, nil
}

type fakeStatsStore struct {
	upserted map[string]*models.DealerRelistingStats
}

func newFakeStatsStore() *fakeStatsStore {
	return &fakeStatsStore{upserted: make(map[string]*models.DealerRelistingStats)}
}

func (f *fakeStatsStore) Upsert(ctx context.Context, stats *models.DealerRelistingStats) error {
	f.upserted[stats.DealerID] = stats
	return nil
}

func ptr[T any](v T) *T {
	return &v
}

var fixedNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func newTestEngine(listings *fakeListingStore, patterns *fakePatternStore, stats *fakeStatsStore) *Engine {
	engine := NewEngine(listings, patterns, stats, nil, DefaultConfig(), logging.Nop())
	engine.now = func() time.Time { return fixedNow }
	return engine
}

func deactivatedListing(id, vin string, daysOffMarket float64) models.Listing {
	deactivatedAt := fixedNow.Add(-time.Duration(daysOffMarket*24) * time.Hour)
	return models.Listing{
		ID:            id,
		TenantID:      "tenant-1",
		SourceSite:    "OldSite",
		ExternalID:    "old-" + id,
		Vin:           vin,
		Make:          "Honda",
		Model:         "Civic",
		Year:          2021,
		Price:         ptr(26000.0),
		IsActive:      false,
		DeactivatedAt: &deactivatedAt,
		FirstSeenAt:   deactivatedAt.AddDate(0, 0, -30),
	}
}

func activeListing(id, vin string) *models.Listing {
	return &models.Listing{
		ID:         id,
		TenantID:   "tenant-1",
		SourceSite: "NewSite",
		ExternalID: "new-" + id,
		Vin:        vin,
		Make:       "Honda",
		Model:      "Civic",
		Year:       2021,
		Price:      ptr(25000.0),
		IsActive:   true,
		FirstSeenAt: fixedNow,
	}
}

func TestDetectVinMatch(t *testing.T) {
	listings := newFakeListingStore()
	patterns := newFakePatternStore()
	previous := deactivatedListing("prev-1", "1HGBH41JXMN109186", 2)
	previous.RelistedCount = 1
	listings.deactivated = []models.Listing{previous}

	engine := newTestEngine(listings, patterns, newFakeStatsStore())

	current := activeListing("cur-1", "1hgbh41jxmn109186")
	current.RelistedCount = 0

	result, err := engine.Detect(context.Background(), current)
	require.NoError(t, err)

	assert.True(t, result.IsRelisting)
	assert.Equal(t, "prev-1", result.MatchedListingID)
	assert.Equal(t, 100.0, result.MatchConfidence)
	assert.Equal(t, models.MatchMethodExactVin, result.MatchMethod)

	require.NotNil(t, result.Pattern)
	assert.Equal(t, models.RelistingTypeVinMatch, result.Pattern.PatternType)
	assert.InDelta(t, 2.0, result.Pattern.DaysOffMarket, 0.01)
	require.NotNil(t, result.Pattern.PriceDelta())
	assert.Equal(t, -1000.0, *result.Pattern.PriceDelta())

	// relist count carries forward from the prior listing plus one
	assert.Equal(t, previous.RelistedCount+1, patterns.relistCounts["cur-1"])
	require.Len(t, patterns.patterns, 1)
}

func TestDetectCombinedMatch(t *testing.T) {
	listings := newFakeListingStore()
	previous := deactivatedListing("prev-1", "1HGBH41JXMN109186", 5)
	previous.SourceSite = "TestSite"
	previous.ExternalID = "EXT-001"
	listings.deactivated = []models.Listing{previous}

	engine := newTestEngine(listings, newFakePatternStore(), newFakeStatsStore())

	// same VIN and same source/external id pair on one candidate
	current := activeListing("cur-1", "1HGBH41JXMN109186")
	current.SourceSite = "testsite"
	current.ExternalID = "ext-001"

	result, err := engine.Detect(context.Background(), current)
	require.NoError(t, err)

	assert.True(t, result.IsRelisting)
	assert.Equal(t, 100.0, result.MatchConfidence)
	assert.Equal(t, models.MatchMethodExactVin, result.MatchMethod)
	require.NotNil(t, result.Pattern)
	assert.Equal(t, models.RelistingTypeCombinedMatch, result.Pattern.PatternType)
}

func TestDetectMinDaysOffMarketGate(t *testing.T) {
	listings := newFakeListingStore()
	// deactivated only two hours ago
	listings.deactivated = []models.Listing{deactivatedListing("prev-1", "1HGBH41JXMN109186", 2.0/24)}

	engine := newTestEngine(listings, newFakePatternStore(), newFakeStatsStore())

	result, err := engine.Detect(context.Background(), activeListing("cur-1", "1HGBH41JXMN109186"))
	require.NoError(t, err)

	assert.False(t, result.IsRelisting)
	assert.Nil(t, result.Pattern)
}

func TestDetectIgnoresStillActiveListing(t *testing.T) {
	listings := newFakeListingStore()
	never := deactivatedListing("prev-1", "1HGBH41JXMN109186", 2)
	never.IsActive = true
	never.DeactivatedAt = nil
	listings.deactivated = []models.Listing{never}

	engine := newTestEngine(listings, newFakePatternStore(), newFakeStatsStore())

	result, err := engine.Detect(context.Background(), activeListing("cur-1", "1HGBH41JXMN109186"))
	require.NoError(t, err)

	assert.False(t, result.IsRelisting)
}

func TestDetectLookbackWindow(t *testing.T) {
	listings := newFakeListingStore()
	listings.deactivated = []models.Listing{deactivatedListing("prev-1", "1HGBH41JXMN109186", 120)}

	engine := newTestEngine(listings, newFakePatternStore(), newFakeStatsStore())

	result, err := engine.Detect(context.Background(), activeListing("cur-1", "1HGBH41JXMN109186"))
	require.NoError(t, err)

	assert.False(t, result.IsRelisting)
}

func TestDetectExternalIDMatch(t *testing.T) {
	listings := newFakeListingStore()
	previous := deactivatedListing("prev-1", "", 5)
	previous.SourceSite = "TestSite"
	previous.ExternalID = "EXT-001"
	listings.deactivated = []models.Listing{previous}

	engine := newTestEngine(listings, newFakePatternStore(), newFakeStatsStore())

	current := activeListing("cur-1", "")
	current.SourceSite = "TestSite"
	current.ExternalID = "EXT-001"

	result, err := engine.Detect(context.Background(), current)
	require.NoError(t, err)

	assert.True(t, result.IsRelisting)
	assert.Equal(t, 95.0, result.MatchConfidence)
	assert.Equal(t, models.RelistingTypeExternalIDMatch, result.Pattern.PatternType)
}

func TestDetectFuzzySameDealerOnly(t *testing.T) {
	listings := newFakeListingStore()

	otherDealer := deactivatedListing("prev-other", "", 5)
	otherDealer.DealerID = ptr("dealer-2")
	otherDealer.Mileage = ptr(30000)
	otherDealer.ExteriorColor = "Blue"

	sameDealer := deactivatedListing("prev-same", "", 5)
	sameDealer.DealerID = ptr("dealer-1")
	sameDealer.Mileage = ptr(30000)
	sameDealer.ExteriorColor = "Blue"

	listings.deactivated = []models.Listing{otherDealer, sameDealer}

	engine := newTestEngine(listings, newFakePatternStore(), newFakeStatsStore())

	current := activeListing("cur-1", "")
	current.DealerID = ptr("dealer-1")
	current.Mileage = ptr(31000)
	current.ExteriorColor = "Blue"
	current.Price = ptr(25500.0)

	result, err := engine.Detect(context.Background(), current)
	require.NoError(t, err)

	assert.True(t, result.IsRelisting)
	assert.Equal(t, "prev-same", result.MatchedListingID)
	assert.Equal(t, models.RelistingTypeFuzzyMatch, result.Pattern.PatternType)
	assert.GreaterOrEqual(t, result.MatchConfidence, 70.0)
}

func TestDetectFuzzySkippedWithoutDealer(t *testing.T) {
	listings := newFakeListingStore()
	candidate := deactivatedListing("prev-1", "", 5)
	candidate.DealerID = ptr("dealer-1")
	listings.deactivated = []models.Listing{candidate}

	engine := newTestEngine(listings, newFakePatternStore(), newFakeStatsStore())

	current := activeListing("cur-1", "")

	result, err := engine.Detect(context.Background(), current)
	require.NoError(t, err)

	assert.False(t, result.IsRelisting)
}

func TestDetectNilListing(t *testing.T) {
	engine := newTestEngine(newFakeListingStore(), newFakePatternStore(), newFakeStatsStore())

	_, err := engine.Detect(context.Background(), nil)
	assert.Error(t, err)
}

func TestScanBatchProgressAndErrors(t *testing.T) {
	listings := newFakeListingStore()
	patterns := newFakePatternStore()

	for i := 0; i < 120; i++ {
		l := activeListing(fmt.Sprintf("cur-%d", i), "")
		listings.activated = append(listings.activated, *l)
	}
	patterns.failExistsOn["cur-7"] = true
	// one listing already has a pattern and is skipped
	patterns.existing["cur-9"] = true

	engine := newTestEngine(listings, patterns, newFakeStatsStore())

	var reports []int
	reporter := progress.ReporterFunc(func(processed, total int, message string) {
		reports = append(reports, processed)
	})

	result, err := engine.ScanBatch(context.Background(), "tenant-1", fixedNow.AddDate(0, 0, -1), reporter)
	require.NoError(t, err)

	assert.Equal(t, 120, result.Scanned)
	assert.Equal(t, 0, result.RelistingsFound)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "cur-7", result.Errors[0].ListingID)

	// progress every 50 plus the final summary
	assert.Equal(t, []int{50, 100, 120}, reports)
}

func TestScanBatchCancellation(t *testing.T) {
	listings := newFakeListingStore()
	for i := 0; i < 10; i++ {
		l := activeListing(fmt.Sprintf("cur-%d", i), "")
		listings.activated = append(listings.activated, *l)
	}

	engine := newTestEngine(listings, newFakePatternStore(), newFakeStatsStore())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := engine.ScanBatch(ctx, "tenant-1", fixedNow.AddDate(0, 0, -1), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, result.Scanned)
}

func TestRecomputeDealerStats(t *testing.T) {
	listings := newFakeListingStore()
	patterns := newFakePatternStore()
	stats := newFakeStatsStore()

	listings.dealerCounts = map[string]int{
		"frequent": 20,
		"light":    20,
		"busy":     100,
	}
	patterns.dealerCounts = map[string]int{
		"frequent": 5,  // rate 0.25, count 5 -> flagged
		"light":    4,  // rate 0.20 but below the minimum count
		"busy":     10, // count 10 but rate 0.10
	}

	engine := newTestEngine(listings, patterns, stats)

	out, err := engine.RecomputeDealerStats(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Len(t, out, 3)

	assert.True(t, stats.upserted["frequent"].IsFrequentRelister)
	assert.False(t, stats.upserted["light"].IsFrequentRelister)
	assert.False(t, stats.upserted["busy"].IsFrequentRelister)
	assert.InDelta(t, 0.25, stats.upserted["frequent"].RelistingRate, 0.001)
}
