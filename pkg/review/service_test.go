package review

import (
	"context"
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/logging"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/models"
)

type memoryStore struct {
	items map[string]*models.ReviewItem
}

func newMemoryStore() *memoryStore {
	return &memoryStore{items: make(map[string]*models.ReviewItem)}
}

func (m *memoryStore) Create(ctx context.Context, item *models.ReviewItem) (*models.ReviewItem, error) {
	copied := *item
	m.items[item.ID] = &copied
	return item, nil
}

func (m *memoryStore) GetByID(ctx context.Context, tenantID, id string) (*models.ReviewItem, error) {
	item, ok := m.items[id]
	if !ok || item.TenantID != tenantID {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "review item not found")
	}
	copied := *item
	return &copied, nil
}

func (m *memoryStore) GetPendingByPair(ctx context.Context, tenantID, a, b string) (*models.ReviewItem, error) {
	for _, item := range m.items {
		if item.TenantID == tenantID && item.Status == models.ReviewStatusPending &&
			item.ListingAID == a && item.ListingBID == b {
			copied := *item
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memoryStore) Update(ctx context.Context, item *models.ReviewItem) error {
	if _, ok := m.items[item.ID]; !ok {
		return httperror.NewHTTPError(http.StatusNotFound, "review item not found")
	}
	copied := *item
	m.items[item.ID] = &copied
	return nil
}

func (m *memoryStore) List(ctx context.Context, tenantID string, req *models.ListReviewItemsRequest) (*models.ReviewItemPage, error) {
	var matched []models.ReviewItem
	for _, item := range m.items {
		if item.TenantID != tenantID {
			continue
		}
		if req.Status != "" && item.Status != req.Status {
			continue
		}
		if req.Method != "" && string(item.Method) != req.Method {
			continue
		}
		if req.MinConfidence != nil && item.Confidence < *req.MinConfidence {
			continue
		}
		if req.MaxConfidence != nil && item.Confidence > *req.MaxConfidence {
			continue
		}
		matched = append(matched, *item)
	}

	start := (req.Page - 1) * req.PageSize
	end := start + req.PageSize
	if start > len(matched) {
		start = len(matched)
	}
	if end > len(matched) {
		end = len(matched)
	}

	return &models.ReviewItemPage{
		Items:    matched[start:end],
		Total:    len(matched),
		Page:     req.Page,
		PageSize: req.PageSize,
	}, nil
}

func (m *memoryStore) Stats(ctx context.Context, tenantID string) (*models.ReviewQueueStats, error) {
	stats := &models.ReviewQueueStats{ByMethod: make(map[string]int)}
	sum := 0.0
	for _, item := range m.items {
		if item.TenantID != tenantID {
			continue
		}
		switch item.Status {
		case models.ReviewStatusPending:
			stats.Pending++
			sum += item.Confidence
		case models.ReviewStatusResolved:
			stats.Resolved++
		case models.ReviewStatusDismissed:
			stats.Dismissed++
		}
		stats.ByMethod[string(item.Method)]++
	}
	if stats.Pending > 0 {
		stats.AvgPendingConfidence = sum / float64(stats.Pending)
	}
	return stats, nil
}

type memoryListings struct {
	listings map[string]models.Listing
}

func newMemoryListings() *memoryListings {
	return &memoryListings{listings: make(map[string]models.Listing)}
}

func (m *memoryListings) add(listing models.Listing) {
	m.listings[listing.ID] = listing
}

func (m *memoryListings) ListByIDs(ctx context.Context, tenantID string, ids []string) ([]models.Listing, error) {
	var out []models.Listing
	for _, id := range ids {
		if listing, ok := m.listings[id]; ok && listing.TenantID == tenantID {
			out = append(out, listing)
		}
	}
	return out, nil
}

func newTestService() (*Service, *memoryStore) {
	svc, store, _ := newTestServiceWithListings()
	return svc, store
}

func newTestServiceWithListings() (*Service, *memoryStore, *memoryListings) {
	store := newMemoryStore()
	listings := newMemoryListings()
	return NewService(store, listings, logging.Nop()), store, listings
}

func pendingItem(a, b string) *models.ReviewItem {
	return &models.ReviewItem{
		TenantID:   "tenant-1",
		ListingAID: a,
		ListingBID: b,
		Confidence: 78,
		Method:     models.MatchMethodFuzzyAttributes,
	}
}

func TestCreateNormalizesPairOrder(t *testing.T) {
	svc, _ := newTestService()

	created, err := svc.Create(context.Background(), pendingItem("listing-b", "listing-a"))
	require.NoError(t, err)

	assert.Equal(t, "listing-a", created.ListingAID)
	assert.Equal(t, "listing-b", created.ListingBID)
	assert.Equal(t, models.ReviewStatusPending, created.Status)
	assert.NotEmpty(t, created.ID)
}

func TestCreateDuplicatePendingPairConflicts(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, pendingItem("listing-a", "listing-b"))
	require.NoError(t, err)

	// same pair in either order conflicts
	_, err = svc.Create(ctx, pendingItem("listing-a", "listing-b"))
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, httperror.GetStatusCode(err))

	_, err = svc.Create(ctx, pendingItem("listing-b", "listing-a"))
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, httperror.GetStatusCode(err))
}

func TestCreateAllowsNewPairAfterResolution(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, pendingItem("listing-a", "listing-b"))
	require.NoError(t, err)

	ok, err := svc.Resolve(ctx, "tenant-1", created.ID, &models.ResolveReviewItemRequest{
		Resolution: models.ReviewResolutionDifferentVehicle,
	})
	require.NoError(t, err)
	require.True(t, ok)

	// once the prior item is terminal the pair may be queued again
	_, err = svc.Create(ctx, pendingItem("listing-a", "listing-b"))
	assert.NoError(t, err)
}

func TestCreateRejectsSelfPair(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Create(context.Background(), pendingItem("listing-a", "listing-a"))
	assert.Error(t, err)
}

func TestExistsIsOrderIndependent(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, pendingItem("listing-a", "listing-b"))
	require.NoError(t, err)

	ab, err := svc.Exists(ctx, "tenant-1", "listing-a", "listing-b")
	require.NoError(t, err)
	ba, err := svc.Exists(ctx, "tenant-1", "listing-b", "listing-a")
	require.NoError(t, err)

	assert.True(t, ab)
	assert.Equal(t, ab, ba)
}

func TestResolve(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, pendingItem("listing-a", "listing-b"))
	require.NoError(t, err)

	ok, err := svc.Resolve(ctx, "tenant-1", created.ID, &models.ResolveReviewItemRequest{
		Resolution: models.ReviewResolutionSameVehicle,
		ResolvedBy: "reviewer-1",
		Notes:      "same VIN suffix, confirmed by photos",
	})
	require.NoError(t, err)
	assert.True(t, ok)

	stored := store.items[created.ID]
	assert.Equal(t, models.ReviewStatusResolved, stored.Status)
	require.NotNil(t, stored.Resolution)
	assert.Equal(t, models.ReviewResolutionSameVehicle, *stored.Resolution)
	require.NotNil(t, stored.ResolvedBy)
	assert.Equal(t, "reviewer-1", *stored.ResolvedBy)
	assert.NotNil(t, stored.ResolvedAt)
}

func TestResolveTerminalItemIsNoOp(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, pendingItem("listing-a", "listing-b"))
	require.NoError(t, err)

	ok, err := svc.Resolve(ctx, "tenant-1", created.ID, &models.ResolveReviewItemRequest{
		Resolution: models.ReviewResolutionSameVehicle,
	})
	require.NoError(t, err)
	require.True(t, ok)

	// second resolve reports failure without error and changes nothing
	ok, err = svc.Resolve(ctx, "tenant-1", created.ID, &models.ResolveReviewItemRequest{
		Resolution: models.ReviewResolutionDifferentVehicle,
	})
	require.NoError(t, err)
	assert.False(t, ok)

	stored := store.items[created.ID]
	assert.Equal(t, models.ReviewResolutionSameVehicle, *stored.Resolution)

	// dismissing a resolved item is also a no-op
	ok, err = svc.Dismiss(ctx, "tenant-1", created.ID, "stale")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolveMissingItemIsNoOp(t *testing.T) {
	svc, _ := newTestService()

	ok, err := svc.Resolve(context.Background(), "tenant-1", "missing-id", &models.ResolveReviewItemRequest{
		Resolution: models.ReviewResolutionSameVehicle,
	})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolveInvalidResolution(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Resolve(context.Background(), "tenant-1", "any", &models.ResolveReviewItemRequest{
		Resolution: "maybe",
	})
	assert.Error(t, err)
}

func TestDismiss(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, pendingItem("listing-a", "listing-b"))
	require.NoError(t, err)

	ok, err := svc.Dismiss(ctx, "tenant-1", created.ID, "duplicate scan artifact")
	require.NoError(t, err)
	assert.True(t, ok)

	stored := store.items[created.ID]
	assert.Equal(t, models.ReviewStatusDismissed, stored.Status)
	require.NotNil(t, stored.DismissReason)
	assert.Equal(t, "duplicate scan artifact", *stored.DismissReason)
}

func TestListFiltersAndPaginates(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	pairs := [][2]string{{"l1", "l2"}, {"l3", "l4"}, {"l5", "l6"}}
	for i, pair := range pairs {
		item := pendingItem(pair[0], pair[1])
		item.Confidence = 70 + float64(i*5)
		_, err := svc.Create(ctx, item)
		require.NoError(t, err)
	}

	min := 75.0
	page, err := svc.List(ctx, "tenant-1", &models.ListReviewItemsRequest{
		Status:        models.ReviewStatusPending,
		MinConfidence: &min,
		Page:          1,
		PageSize:      10,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, page.Total)
	assert.Len(t, page.Items, 2)
}

func TestGetReturnsListingSummaries(t *testing.T) {
	svc, _, listings := newTestServiceWithListings()
	ctx := context.Background()

	listings.add(models.Listing{ID: "listing-a", TenantID: "tenant-1", Vin: "1HGBH41JXMN109186", Make: "Honda", Model: "Civic", Year: 2021})
	listings.add(models.Listing{ID: "listing-b", TenantID: "tenant-1", Vin: "1HGBH41JXMN109186", Make: "Honda", Model: "Civic", Year: 2021, SourceSite: "OtherSite"})

	created, err := svc.Create(ctx, pendingItem("listing-a", "listing-b"))
	require.NoError(t, err)

	info, err := svc.Get(ctx, "tenant-1", created.ID)
	require.NoError(t, err)

	assert.Equal(t, created.ID, info.ID)
	require.NotNil(t, info.ListingA)
	require.NotNil(t, info.ListingB)
	assert.Equal(t, "listing-a", info.ListingA.ID)
	assert.Equal(t, "Honda", info.ListingA.Make)
	assert.Equal(t, "OtherSite", info.ListingB.SourceSite)
}

func TestGetMissingListingLeavesNilSummary(t *testing.T) {
	svc, _, listings := newTestServiceWithListings()
	ctx := context.Background()

	listings.add(models.Listing{ID: "listing-a", TenantID: "tenant-1", Make: "Honda"})

	created, err := svc.Create(ctx, pendingItem("listing-a", "listing-gone"))
	require.NoError(t, err)

	info, err := svc.Get(ctx, "tenant-1", created.ID)
	require.NoError(t, err)

	require.NotNil(t, info.ListingA)
	assert.Nil(t, info.ListingB)
}

func TestListReturnsListingSummaries(t *testing.T) {
	svc, _, listings := newTestServiceWithListings()
	ctx := context.Background()

	listings.add(models.Listing{ID: "l1", TenantID: "tenant-1", Make: "Honda"})
	listings.add(models.Listing{ID: "l2", TenantID: "tenant-1", Make: "Honda"})

	_, err := svc.Create(ctx, pendingItem("l1", "l2"))
	require.NoError(t, err)

	page, err := svc.List(ctx, "tenant-1", &models.ListReviewItemsRequest{})
	require.NoError(t, err)

	require.Len(t, page.Items, 1)
	require.NotNil(t, page.Items[0].ListingA)
	assert.Equal(t, "l1", page.Items[0].ListingA.ID)
	require.NotNil(t, page.Items[0].ListingB)
}

func TestListRejectsInvertedConfidenceRange(t *testing.T) {
	svc, _ := newTestService()

	min, max := 90.0, 50.0
	_, err := svc.List(context.Background(), "tenant-1", &models.ListReviewItemsRequest{
		MinConfidence: &min,
		MaxConfidence: &max,
	})
	assert.Error(t, err)
}

func TestStats(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	first, err := svc.Create(ctx, pendingItem("l1", "l2"))
	require.NoError(t, err)
	_, err = svc.Create(ctx, pendingItem("l3", "l4"))
	require.NoError(t, err)

	ok, err := svc.Resolve(ctx, "tenant-1", first.ID, &models.ResolveReviewItemRequest{
		Resolution: models.ReviewResolutionSameVehicle,
	})
	require.NoError(t, err)
	require.True(t, ok)

	stats, err := svc.Stats(ctx, "tenant-1")
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.Resolved)
	assert.Equal(t, 0, stats.Dismissed)
	assert.InDelta(t, 78.0, stats.AvgPendingConfidence, 0.001)
}
