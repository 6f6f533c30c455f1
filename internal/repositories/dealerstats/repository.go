package dealerstats

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/database"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/logging"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/models"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/tracing"
	"github.com/huandu/go-sqlbuilder"
)

var statsColumns = []string{
	"tenant_id", "dealer_id", "total_listings", "total_relistings",
	"relisting_rate", "is_frequent_relister", "computed_at",
}

// Repository handles per-dealer relisting aggregate persistence
type Repository struct {
	db     database.DB
	logger logging.Logger
}

// NewRepository creates a new dealer stats repository
func NewRepository(db database.DB, logger logging.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Upsert writes the latest aggregates for a dealer
func (r *Repository) Upsert(ctx context.Context, stats *models.DealerRelistingStats) error {
	ctx, span := tracing.StartSpan(ctx, "dealerstats.Repository.Upsert")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("dealer_relisting_stats")
	sb.Cols(statsColumns...)
	sb.Values(
		stats.TenantID, stats.DealerID, stats.TotalListings, stats.TotalRelistings,
		stats.RelistingRate, stats.IsFrequentRelister, stats.ComputedAt,
	)

	query, args := sb.Build()
	query += ` ON CONFLICT (tenant_id, dealer_id) DO UPDATE SET
		total_listings = EXCLUDED.total_listings,
		total_relistings = EXCLUDED.total_relistings,
		relisting_rate = EXCLUDED.relisting_rate,
		is_frequent_relister = EXCLUDED.is_frequent_relister,
		computed_at = EXCLUDED.computed_at`

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"dealer_id": stats.DealerID}).Error("Failed to upsert dealer relisting stats")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert dealer relisting stats")
	}

	return nil
}

// Get retrieves the aggregates for a single dealer
func (r *Repository) Get(ctx context.Context, tenantID, dealerID string) (*models.DealerRelistingStats, error) {
	ctx, span := tracing.StartSpan(ctx, "dealerstats.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(statsColumns...)
	sb.From("dealer_relisting_stats")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("dealer_id", dealerID),
	)

	query, args := sb.Build()
	var stats models.DealerRelistingStats
	if err := r.db.GetContext(ctx, &stats, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, "dealer relisting stats not found")
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get dealer relisting stats")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get dealer relisting stats")
	}

	return &stats, nil
}

// ListFrequentRelisters retrieves dealers currently flagged as frequent relisters
func (r *Repository) ListFrequentRelisters(ctx context.Context, tenantID string) ([]models.DealerRelistingStats, error) {
	ctx, span := tracing.StartSpan(ctx, "dealerstats.Repository.ListFrequentRelisters")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(statsColumns...)
	sb.From("dealer_relisting_stats")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("is_frequent_relister", true),
	)
	sb.OrderBy("relisting_rate DESC")

	query, args := sb.Build()
	var stats []models.DealerRelistingStats
	if err := r.db.SelectContext(ctx, &stats, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list frequent relisters")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list frequent relisters")
	}

	return stats, nil
}
