package relistingpattern

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/database"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/logging"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/models"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/tracing"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
)

var patternColumns = []string{
	"id", "tenant_id", "current_listing_id", "previous_listing_id", "dealer_id",
	"pattern_type", "method", "confidence", "vin", "make", "model", "year",
	"price_before", "price_after", "days_off_market", "days_on_market",
	"is_suspicious", "created_at",
}

// Repository handles relisting pattern persistence
type Repository struct {
	db     database.DB
	logger logging.Logger
}

// NewRepository creates a new relisting pattern repository
func NewRepository(db database.DB, logger logging.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Record inserts a relisting pattern and bumps the relisted count on the
// current listing in one transaction, so a crash between the two writes
// cannot leave a counted relist with no pattern (or the reverse).
func (r *Repository) Record(ctx context.Context, pattern *models.RelistingPattern, relistedCount int) error {
	ctx, span := tracing.StartSpan(ctx, "relistingpattern.Repository.Record")
	defer span.End()

	if pattern.ID == "" {
		pattern.ID = uuid.New().String()
	}
	if pattern.CreatedAt.IsZero() {
		pattern.CreatedAt = time.Now().UTC()
	}

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("relisting_patterns")
	sb.Cols(patternColumns...)
	sb.Values(
		pattern.ID, pattern.TenantID, pattern.CurrentListingID, pattern.PreviousListingID,
		pattern.DealerID, pattern.PatternType, pattern.Method, pattern.Confidence,
		pattern.Vin, pattern.Make, pattern.Model, pattern.Year,
		pattern.PriceBefore, pattern.PriceAfter, pattern.DaysOffMarket, pattern.DaysOnMarket,
		pattern.IsSuspicious, pattern.CreatedAt,
	)

	query, args := sb.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"pattern_id": pattern.ID}).Error("Failed to create relisting pattern")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create relisting pattern")
	}

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("listings")
	ub.Set(
		ub.Assign("relisted_count", relistedCount),
		ub.Assign("updated_at", time.Now().UTC()),
	)
	ub.Where(
		ub.Equal("id", pattern.CurrentListingID),
		ub.Equal("tenant_id", pattern.TenantID),
	)

	query, args = ub.Build()
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"listing_id": pattern.CurrentListingID}).Error("Failed to update relisted count")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update relisted count")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("listing %s not found", pattern.CurrentListingID))
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"pattern_id": pattern.ID}).Error("Failed to commit transaction")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit")
	}
	return nil
}

// ExistsForListing reports whether a pattern already records this listing as a relist
func (r *Repository) ExistsForListing(ctx context.Context, tenantID, currentListingID string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "relistingpattern.Repository.ExistsForListing")
	defer span.End()

	query := `SELECT EXISTS(SELECT 1 FROM relisting_patterns WHERE tenant_id = $1 AND current_listing_id = $2)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, tenantID, currentListingID); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to check relisting pattern existence")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to check relisting pattern")
	}

	return exists, nil
}

// CountByDealer returns the number of relisting patterns per dealer
func (r *Repository) CountByDealer(ctx context.Context, tenantID string) (map[string]int, error) {
	ctx, span := tracing.StartSpan(ctx, "relistingpattern.Repository.CountByDealer")
	defer span.End()

	query := `
		SELECT dealer_id, COUNT(*) AS pattern_count
		FROM relisting_patterns
		WHERE tenant_id = $1 AND dealer_id IS NOT NULL
		GROUP BY dealer_id
	`

	rows, err := r.db.QueryxContext(ctx, query, tenantID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count relisting patterns by dealer")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count relisting patterns")
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var dealerID string
		var count int
		if err := rows.Scan(&dealerID, &count); err != nil {
			return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count relisting patterns")
		}
		counts[dealerID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count relisting patterns")
	}

	return counts, nil
}

// ListByDealer retrieves patterns for a dealer, newest first
func (r *Repository) ListByDealer(ctx context.Context, tenantID, dealerID string, limit int) ([]models.RelistingPattern, error) {
	ctx, span := tracing.StartSpan(ctx, "relistingpattern.Repository.ListByDealer")
	defer span.End()

	if limit < 1 || limit > 500 {
		limit = 100
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(patternColumns...)
	sb.From("relisting_patterns")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("dealer_id", dealerID),
	)
	sb.OrderBy("created_at DESC")
	sb.Limit(limit)

	query, args := sb.Build()
	var patterns []models.RelistingPattern
	if err := r.db.SelectContext(ctx, &patterns, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list relisting patterns by dealer")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list relisting patterns")
	}

	return patterns, nil
}

// ListSuspicious retrieves suspicious patterns for a tenant, newest first
func (r *Repository) ListSuspicious(ctx context.Context, tenantID string, limit int) ([]models.RelistingPattern, error) {
	ctx, span := tracing.StartSpan(ctx, "relistingpattern.Repository.ListSuspicious")
	defer span.End()

	if limit < 1 || limit > 500 {
		limit = 100
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(patternColumns...)
	sb.From("relisting_patterns")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("is_suspicious", true),
	)
	sb.OrderBy("created_at DESC")
	sb.Limit(limit)

	query, args := sb.Build()
	var patterns []models.RelistingPattern
	if err := r.db.SelectContext(ctx, &patterns, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list suspicious relisting patterns")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list suspicious relisting patterns")
	}

	return patterns, nil
}
