package reviewitem

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/database"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/logging"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/models"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/tracing"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
)

var reviewColumns = []string{
	"id", "tenant_id", "listing_a_id", "listing_b_id", "confidence", "method",
	"status", "resolution", "dismiss_reason", "notes", "field_scores",
	"resolved_by", "resolved_at", "created_at", "updated_at",
}

// reviewRow maps the review_items table, with field scores stored as jsonb.
type reviewRow struct {
	models.ReviewItem
	FieldScoresJSON database.JSONB[map[string]float64] `db:"field_scores"`
}

func (row *reviewRow) toModel() *models.ReviewItem {
	item := row.ReviewItem
	item.FieldScores = row.FieldScoresJSON.GetValue()
	return &item
}

// Repository handles review queue persistence
type Repository struct {
	db     database.DB
	logger logging.Logger
}

// NewRepository creates a new review item repository
func NewRepository(db database.DB, logger logging.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a pending review item. The partial unique index on pending
// pairs backs the application-level duplicate check, so a concurrent insert
// of the same pair surfaces as a conflict here.
func (r *Repository) Create(ctx context.Context, item *models.ReviewItem) (*models.ReviewItem, error) {
	ctx, span := tracing.StartSpan(ctx, "reviewitem.Repository.Create")
	defer span.End()

	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	if item.Status == "" {
		item.Status = models.ReviewStatusPending
	}
	item.NormalizePair()

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("review_items")
	sb.Cols(reviewColumns...)
	sb.Values(
		item.ID, item.TenantID, item.ListingAID, item.ListingBID, item.Confidence,
		item.Method, item.Status, item.Resolution, item.DismissReason, item.Notes,
		database.NewJSONB(item.FieldScores), item.ResolvedBy, item.ResolvedAt,
		item.CreatedAt, item.UpdatedAt,
	)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return nil, httperror.NewHTTPError(http.StatusConflict, "a pending review item already exists for this pair")
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"review_id": item.ID}).Error("Failed to create review item")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create review item")
	}

	return item, nil
}

// GetByID retrieves a review item by ID
func (r *Repository) GetByID(ctx context.Context, tenantID, id string) (*models.ReviewItem, error) {
	ctx, span := tracing.StartSpan(ctx, "reviewitem.Repository.GetByID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(reviewColumns...)
	sb.From("review_items")
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()
	var row reviewRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("review item %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get review item")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get review item")
	}

	return row.toModel(), nil
}

// GetPendingByPair retrieves the pending item for a listing pair regardless of
// order. Returns nil when no pending item exists.
func (r *Repository) GetPendingByPair(ctx context.Context, tenantID, listingAID, listingBID string) (*models.ReviewItem, error) {
	ctx, span := tracing.StartSpan(ctx, "reviewitem.Repository.GetPendingByPair")
	defer span.End()

	query := `
		SELECT id, tenant_id, listing_a_id, listing_b_id, confidence, method, status, resolution, dismiss_reason, notes, field_scores, resolved_by, resolved_at, created_at, updated_at
		FROM review_items
		WHERE tenant_id = $1
		AND status = $2
		AND ((listing_a_id = $3 AND listing_b_id = $4) OR (listing_a_id = $4 AND listing_b_id = $3))
		LIMIT 1
	`

	var row reviewRow
	if err := r.db.GetContext(ctx, &row, query, tenantID, models.ReviewStatusPending, listingAID, listingBID); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil // No pending item
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get review item by pair")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get review item")
	}

	return row.toModel(), nil
}

// Update persists resolution fields on an existing item
func (r *Repository) Update(ctx context.Context, item *models.ReviewItem) error {
	ctx, span := tracing.StartSpan(ctx, "reviewitem.Repository.Update")
	defer span.End()

	item.UpdatedAt = time.Now().UTC()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("review_items")
	sb.Set(
		sb.Assign("status", item.Status),
		sb.Assign("resolution", item.Resolution),
		sb.Assign("dismiss_reason", item.DismissReason),
		sb.Assign("notes", item.Notes),
		sb.Assign("resolved_by", item.ResolvedBy),
		sb.Assign("resolved_at", item.ResolvedAt),
		sb.Assign("updated_at", item.UpdatedAt),
	)
	sb.Where(
		sb.Equal("id", item.ID),
		sb.Equal("tenant_id", item.TenantID),
	)

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update review item")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update review item")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("review item %s not found", item.ID))
	}

	return nil
}

// List retrieves a filtered, paginated page of review items
func (r *Repository) List(ctx context.Context, tenantID string, req *models.ListReviewItemsRequest) (*models.ReviewItemPage, error) {
	ctx, span := tracing.StartSpan(ctx, "reviewitem.Repository.List")
	defer span.End()

	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = 50
	}
	if pageSize > 200 {
		pageSize = 200
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(reviewColumns...)
	sb.From("review_items")

	where := []string{sb.Equal("tenant_id", tenantID)}
	if req.Status != "" {
		where = append(where, sb.Equal("status", req.Status))
	}
	if req.Method != "" {
		where = append(where, sb.Equal("method", req.Method))
	}
	if req.MinConfidence != nil {
		where = append(where, sb.GreaterEqualThan("confidence", *req.MinConfidence))
	}
	if req.MaxConfidence != nil {
		where = append(where, sb.LessEqualThan("confidence", *req.MaxConfidence))
	}
	if req.CreatedAfter != nil {
		where = append(where, sb.GreaterEqualThan("created_at", *req.CreatedAfter))
	}
	if req.CreatedBefore != nil {
		where = append(where, sb.LessEqualThan("created_at", *req.CreatedBefore))
	}
	sb.Where(where...)
	sb.OrderBy("created_at DESC")
	sb.Limit(pageSize)
	sb.Offset((page - 1) * pageSize)

	query, args := sb.Build()
	var rows []reviewRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list review items")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list review items")
	}

	cb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	cb.Select("COUNT(*)")
	cb.From("review_items")
	countWhere := []string{cb.Equal("tenant_id", tenantID)}
	if req.Status != "" {
		countWhere = append(countWhere, cb.Equal("status", req.Status))
	}
	if req.Method != "" {
		countWhere = append(countWhere, cb.Equal("method", req.Method))
	}
	if req.MinConfidence != nil {
		countWhere = append(countWhere, cb.GreaterEqualThan("confidence", *req.MinConfidence))
	}
	if req.MaxConfidence != nil {
		countWhere = append(countWhere, cb.LessEqualThan("confidence", *req.MaxConfidence))
	}
	if req.CreatedAfter != nil {
		countWhere = append(countWhere, cb.GreaterEqualThan("created_at", *req.CreatedAfter))
	}
	if req.CreatedBefore != nil {
		countWhere = append(countWhere, cb.LessEqualThan("created_at", *req.CreatedBefore))
	}
	cb.Where(countWhere...)

	countQuery, countArgs := cb.Build()
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count review items")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count review items")
	}

	items := make([]models.ReviewItem, 0, len(rows))
	for i := range rows {
		items = append(items, *rows[i].toModel())
	}

	return &models.ReviewItemPage{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// Stats summarizes the review queue for a tenant
func (r *Repository) Stats(ctx context.Context, tenantID string) (*models.ReviewQueueStats, error) {
	ctx, span := tracing.StartSpan(ctx, "reviewitem.Repository.Stats")
	defer span.End()

	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending') AS pending,
			COUNT(*) FILTER (WHERE status = 'resolved') AS resolved,
			COUNT(*) FILTER (WHERE status = 'dismissed') AS dismissed,
			COALESCE(AVG(confidence) FILTER (WHERE status = 'pending'), 0) AS avg_pending_confidence
		FROM review_items
		WHERE tenant_id = $1
	`

	var stats models.ReviewQueueStats
	if err := r.db.GetContext(ctx, &stats, query, tenantID); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get review queue stats")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get review queue stats")
	}

	methodQuery := `
		SELECT method, COUNT(*) AS item_count
		FROM review_items
		WHERE tenant_id = $1 AND status = 'pending'
		GROUP BY method
	`

	rows, err := r.db.QueryxContext(ctx, methodQuery, tenantID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get review queue method breakdown")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get review queue stats")
	}
	defer rows.Close()

	stats.ByMethod = make(map[string]int)
	for rows.Next() {
		var method string
		var count int
		if err := rows.Scan(&method, &count); err != nil {
			return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get review queue stats")
		}
		stats.ByMethod[method] = count
	}
	if err := rows.Err(); err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get review queue stats")
	}

	return &stats, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	// lib/pq unique_violation
	return strings.Contains(err.Error(), "23505") || strings.Contains(err.Error(), "duplicate key value")
}
