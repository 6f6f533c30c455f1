// Package review implements the human-review workflow for uncertain match
// pairs: a Pending item is created by the pipeline and a reviewer either
// resolves it (same vehicle / different vehicle) or dismisses it. Both
// outcomes are terminal.
package review

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/google/uuid"

	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/logging"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/models"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/tracing"
)

// Store is the persistence surface the service needs. GetPendingByPair
// returns (nil, nil) when no pending item exists for the normalized pair.
type Store interface {
	Create(ctx context.Context, item *models.ReviewItem) (*models.ReviewItem, error)
	GetByID(ctx context.Context, tenantID, id string) (*models.ReviewItem, error)
	GetPendingByPair(ctx context.Context, tenantID, listingAID, listingBID string) (*models.ReviewItem, error)
	Update(ctx context.Context, item *models.ReviewItem) error
	List(ctx context.Context, tenantID string, req *models.ListReviewItemsRequest) (*models.ReviewItemPage, error)
	Stats(ctx context.Context, tenantID string) (*models.ReviewQueueStats, error)
}

// ListingStore resolves the listing pairs referenced by review items so Get
// and List can return them denormalized.
type ListingStore interface {
	ListByIDs(ctx context.Context, tenantID string, ids []string) ([]models.Listing, error)
}

type Service struct {
	store    Store
	listings ListingStore
	logger   logging.Logger
}

func NewService(store Store, listings ListingStore, logger logging.Logger) *Service {
	return &Service{
		store:    store,
		listings: listings,
		logger:   logger,
	}
}

// Create queues a pair for review. Fails with a conflict when a pending item
// already exists for the unordered pair; the storage-level unique index
// backs this check against concurrent ingestion of the same pair.
func (s *Service) Create(ctx context.Context, item *models.ReviewItem) (*models.ReviewItem, error) {
	ctx, span := tracing.StartSpan(ctx, "review.Service.Create")
	defer span.End()

	if item == nil {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "review item is required")
	}
	if item.TenantID == "" || item.ListingAID == "" || item.ListingBID == "" {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "tenant id and both listing ids are required")
	}
	if item.ListingAID == item.ListingBID {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "review pair must reference two distinct listings")
	}

	item.NormalizePair()

	existing, err := s.store.GetPendingByPair(ctx, item.TenantID, item.ListingAID, item.ListingBID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, httperror.NewHTTPError(http.StatusConflict, "a pending review already exists for this listing pair")
	}

	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	item.Status = models.ReviewStatusPending
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	created, err := s.store.Create(ctx, item)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tenant_id":    item.TenantID,
			"listing_a_id": item.ListingAID,
			"listing_b_id": item.ListingBID,
		}).Error("failed to create review item")
		return nil, err
	}

	return created, nil
}

// Exists reports whether a pending review covers the unordered pair.
// Exists(A, B) and Exists(B, A) are equivalent.
func (s *Service) Exists(ctx context.Context, tenantID, listingAID, listingBID string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "review.Service.Exists")
	defer span.End()

	if listingBID < listingAID {
		listingAID, listingBID = listingBID, listingAID
	}

	item, err := s.store.GetPendingByPair(ctx, tenantID, listingAID, listingBID)
	if err != nil {
		return false, err
	}
	return item != nil, nil
}

// Get returns a review item by id, denormalized with both listings'
// summaries so the reviewer can compare the pair without extra lookups.
func (s *Service) Get(ctx context.Context, tenantID, id string) (*models.ReviewItemInfo, error) {
	ctx, span := tracing.StartSpan(ctx, "review.Service.Get")
	defer span.End()

	item, err := s.store.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	infos, err := s.denormalize(ctx, tenantID, []models.ReviewItem{*item})
	if err != nil {
		return nil, err
	}
	return &infos[0], nil
}

// denormalize attaches listing summaries to the items in one batched lookup.
// A listing that no longer exists leaves its summary nil.
func (s *Service) denormalize(ctx context.Context, tenantID string, items []models.ReviewItem) ([]models.ReviewItemInfo, error) {
	ids := make([]string, 0, len(items)*2)
	seen := make(map[string]bool, len(items)*2)
	for i := range items {
		for _, id := range []string{items[i].ListingAID, items[i].ListingBID} {
			if id != "" && !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	listings, err := s.listings.ListByIDs(ctx, tenantID, ids)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("tenant_id", tenantID).Error("failed to load listings for review items")
		return nil, err
	}

	summaries := make(map[string]*models.ListingSummary, len(listings))
	for i := range listings {
		summaries[listings[i].ID] = listings[i].Summary()
	}

	infos := make([]models.ReviewItemInfo, len(items))
	for i := range items {
		infos[i] = models.ReviewItemInfo{
			ReviewItem: items[i],
			ListingA:   summaries[items[i].ListingAID],
			ListingB:   summaries[items[i].ListingBID],
		}
	}
	return infos, nil
}

// Resolve marks a pending item resolved. Returns false without error when
// the item is missing or already terminal; the caller decides whether that
// matters.
func (s *Service) Resolve(ctx context.Context, tenantID, id string, req *models.ResolveReviewItemRequest) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "review.Service.Resolve")
	defer span.End()

	if req == nil {
		return false, httperror.NewHTTPError(http.StatusBadRequest, "request is required")
	}
	if req.Resolution != models.ReviewResolutionSameVehicle && req.Resolution != models.ReviewResolutionDifferentVehicle {
		return false, httperror.NewHTTPError(http.StatusBadRequest, "resolution must be same_vehicle or different_vehicle")
	}

	item, ok, err := s.pendingItem(ctx, tenantID, id)
	if err != nil || !ok {
		return false, err
	}

	now := time.Now().UTC()
	item.Status = models.ReviewStatusResolved
	item.Resolution = &req.Resolution
	item.ResolvedAt = &now
	item.UpdatedAt = now
	if req.ResolvedBy != "" {
		item.ResolvedBy = &req.ResolvedBy
	}
	if req.Notes != "" {
		item.Notes = &req.Notes
	}

	if err := s.store.Update(ctx, item); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tenant_id": tenantID,
			"review_id": id,
		}).Error("failed to resolve review item")
		return false, err
	}

	return true, nil
}

// Dismiss marks a pending item dismissed. Same boolean-failure contract as
// Resolve.
func (s *Service) Dismiss(ctx context.Context, tenantID, id, reason string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "review.Service.Dismiss")
	defer span.End()

	item, ok, err := s.pendingItem(ctx, tenantID, id)
	if err != nil || !ok {
		return false, err
	}

	now := time.Now().UTC()
	item.Status = models.ReviewStatusDismissed
	item.UpdatedAt = now
	item.ResolvedAt = &now
	if reason != "" {
		item.DismissReason = &reason
	}

	if err := s.store.Update(ctx, item); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tenant_id": tenantID,
			"review_id": id,
		}).Error("failed to dismiss review item")
		return false, err
	}

	return true, nil
}

// pendingItem loads an item, translating "missing" and "already terminal"
// into the boolean no-op contract.
func (s *Service) pendingItem(ctx context.Context, tenantID, id string) (*models.ReviewItem, bool, error) {
	item, err := s.store.GetByID(ctx, tenantID, id)
	if err != nil {
		if httperror.IsHTTPError(err) && httperror.GetStatusCode(err) == http.StatusNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	if item.Status != models.ReviewStatusPending {
		return nil, false, nil
	}
	return item, true, nil
}

// List returns a filtered, paginated page of review items, each denormalized
// with its listing pair.
func (s *Service) List(ctx context.Context, tenantID string, req *models.ListReviewItemsRequest) (*models.ReviewItemInfoPage, error) {
	ctx, span := tracing.StartSpan(ctx, "review.Service.List")
	defer span.End()

	if req == nil {
		req = &models.ListReviewItemsRequest{}
	}
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > 200 {
		req.PageSize = 50
	}
	if req.MinConfidence != nil && req.MaxConfidence != nil && *req.MinConfidence > *req.MaxConfidence {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "min confidence exceeds max confidence")
	}

	page, err := s.store.List(ctx, tenantID, req)
	if err != nil {
		return nil, err
	}

	infos, err := s.denormalize(ctx, tenantID, page.Items)
	if err != nil {
		return nil, err
	}

	return &models.ReviewItemInfoPage{
		Items:    infos,
		Total:    page.Total,
		Page:     page.Page,
		PageSize: page.PageSize,
	}, nil
}

// Stats aggregates queue counts and the average pending confidence.
func (s *Service) Stats(ctx context.Context, tenantID string) (*models.ReviewQueueStats, error) {
	ctx, span := tracing.StartSpan(ctx, "review.Service.Stats")
	defer span.End()

	return s.store.Stats(ctx, tenantID)
}
