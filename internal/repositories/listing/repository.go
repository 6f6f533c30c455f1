package listing

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

var listingColumns = []string{
	"id", "tenant_id", "source_site", "external_id", "vin", "make", "model", "year",
	"price", "mileage", "exterior_color", "latitude", "longitude", "dealer_id",
	"dealer_name", "is_active", "deactivated_at", "relisted_count", "first_seen_at",
	"last_seen_at", "created_at", "updated_at",
}

// Repository handles vehicle listing persistence
type Repository struct {
	db     database.DB
	logger logging.Logger
}

// NewRepository creates a new listing repository
func NewRepository(db database.DB, logger logging.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new listing
func (r *Repository) Create(ctx context.Context, listing *models.Listing) (*models.Listing, error) {
	ctx, span := tracing.StartSpan(ctx, "listing.Repository.Create")
	defer span.End()

	if listing.ID == "" {
		listing.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	listing.CreatedAt = now
	listing.UpdatedAt = now
	if listing.FirstSeenAt.IsZero() {
		listing.FirstSeenAt = now
	}
	if listing.LastSeenAt.IsZero() {
		listing.LastSeenAt = now
	}
	listing.IsActive = true

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("listings")
	sb.Cols(listingColumns...)
	sb.Values(
		listing.ID, listing.TenantID, listing.SourceSite, listing.ExternalID, listing.Vin,
		listing.Make, listing.Model, listing.Year, listing.Price, listing.Mileage,
		listing.ExteriorColor, listing.Latitude, listing.Longitude, listing.DealerID,
		listing.DealerName, listing.IsActive, listing.DeactivatedAt, listing.RelistedCount,
		listing.FirstSeenAt, listing.LastSeenAt, listing.CreatedAt, listing.UpdatedAt,
	)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"listing_id": listing.ID}).Error("Failed to create listing")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create listing")
	}

	return listing, nil
}

// Upsert inserts a listing or refreshes the existing row for the same
// (tenant, source site, external id), marking it active again.
func (r *Repository) Upsert(ctx context.Context, listing *models.Listing) (*models.Listing, error) {
	ctx, span := tracing.StartSpan(ctx, "listing.Repository.Upsert")
	defer span.End()

	if listing.ID == "" {
		listing.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	listing.CreatedAt = now
	listing.UpdatedAt = now
	if listing.FirstSeenAt.IsZero() {
		listing.FirstSeenAt = now
	}
	listing.LastSeenAt = now
	listing.IsActive = true

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("listings")
	sb.Cols(listingColumns...)
	sb.Values(
		listing.ID, listing.TenantID, listing.SourceSite, listing.ExternalID, listing.Vin,
		listing.Make, listing.Model, listing.Year, listing.Price, listing.Mileage,
		listing.ExteriorColor, listing.Latitude, listing.Longitude, listing.DealerID,
		listing.DealerName, listing.IsActive, nil, listing.RelistedCount,
		listing.FirstSeenAt, listing.LastSeenAt, listing.CreatedAt, listing.UpdatedAt,
	)

	query, args := sb.Build()
	query += ` ON CONFLICT (tenant_id, source_site, external_id) DO UPDATE SET
		vin = EXCLUDED.vin, make = EXCLUDED.make, model = EXCLUDED.model, year = EXCLUDED.year,
		price = EXCLUDED.price, mileage = EXCLUDED.mileage, exterior_color = EXCLUDED.exterior_color,
		latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude,
		dealer_id = EXCLUDED.dealer_id, dealer_name = EXCLUDED.dealer_name,
		is_active = TRUE, deactivated_at = NULL,
		last_seen_at = EXCLUDED.last_seen_at, updated_at = EXCLUDED.updated_at
		RETURNING ` + strings.Join(listingColumns, ", ")

	var saved models.Listing
	if err := r.db.GetContext(ctx, &saved, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"external_id": listing.ExternalID}).Error("Failed to upsert listing")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert listing")
	}

	return &saved, nil
}

// Get retrieves a listing by ID
func (r *Repository) Get(ctx context.Context, tenantID string, id string) (*models.Listing, error) {
	ctx, span := tracing.StartSpan(ctx, "listing.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(listingColumns...)
	sb.From("listings")
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()
	var listing models.Listing
	if err := r.db.GetContext(ctx, &listing, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("listing %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get listing")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get listing")
	}

	return &listing, nil
}

// ListByIDs retrieves the listings with the given ids. Missing ids are
// simply absent from the result.
func (r *Repository) ListByIDs(ctx context.Context, tenantID string, ids []string) ([]models.Listing, error) {
	ctx, span := tracing.StartSpan(ctx, "listing.Repository.ListByIDs")
	defer span.End()

	if len(ids) == 0 {
		return nil, nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(listingColumns...)
	sb.From("listings")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.In("id", sqlbuilder.Flatten(ids)...),
	)

	query, args := sb.Build()
	var listings []models.Listing
	if err := r.db.SelectContext(ctx, &listings, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list listings by ids")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list listings")
	}

	return listings, nil
}

// GetBySource retrieves a listing by its source site and external id
func (r *Repository) GetBySource(ctx context.Context, tenantID, sourceSite, externalID string) (*models.Listing, error) {
	ctx, span := tracing.StartSpan(ctx, "listing.Repository.GetBySource")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(listingColumns...)
	sb.From("listings")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("source_site", sourceSite),
		sb.Equal("external_id", externalID),
	)

	query, args := sb.Build()
	var listing models.Listing
	if err := r.db.GetContext(ctx, &listing, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil // No existing listing
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get listing by source")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get listing")
	}

	return &listing, nil
}

// ListActive retrieves all active listings for a tenant
func (r *Repository) ListActive(ctx context.Context, tenantID string) ([]models.Listing, error) {
	ctx, span := tracing.StartSpan(ctx, "listing.Repository.ListActive")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(listingColumns...)
	sb.From("listings")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("is_active", true),
	)
	sb.OrderBy("last_seen_at DESC")

	query, args := sb.Build()
	var listings []models.Listing
	if err := r.db.SelectContext(ctx, &listings, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list active listings")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list active listings")
	}

	return listings, nil
}

// ListDeactivatedSince retrieves listings deactivated on or after the given time
func (r *Repository) ListDeactivatedSince(ctx context.Context, tenantID string, since time.Time) ([]models.Listing, error) {
	ctx, span := tracing.StartSpan(ctx, "listing.Repository.ListDeactivatedSince")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(listingColumns...)
	sb.From("listings")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("is_active", false),
		sb.IsNotNull("deactivated_at"),
		sb.GreaterEqualThan("deactivated_at", since),
	)
	sb.OrderBy("deactivated_at DESC")

	query, args := sb.Build()
	var listings []models.Listing
	if err := r.db.SelectContext(ctx, &listings, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list deactivated listings")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list deactivated listings")
	}

	return listings, nil
}

// ListActivatedSince retrieves active listings first seen on or after the given time
func (r *Repository) ListActivatedSince(ctx context.Context, tenantID string, since time.Time) ([]models.Listing, error) {
	ctx, span := tracing.StartSpan(ctx, "listing.Repository.ListActivatedSince")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(listingColumns...)
	sb.From("listings")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("is_active", true),
		sb.GreaterEqualThan("first_seen_at", since),
	)
	sb.OrderBy("first_seen_at DESC")

	query, args := sb.Build()
	var listings []models.Listing
	if err := r.db.SelectContext(ctx, &listings, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list recently activated listings")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list recently activated listings")
	}

	return listings, nil
}

// Deactivate marks a listing as off-market
func (r *Repository) Deactivate(ctx context.Context, tenantID string, id string) error {
	ctx, span := tracing.StartSpan(ctx, "listing.Repository.Deactivate")
	defer span.End()

	now := time.Now().UTC()
	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("listings")
	sb.Set(
		sb.Assign("is_active", false),
		sb.Assign("deactivated_at", now),
		sb.Assign("updated_at", now),
	)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
		sb.Equal("is_active", true),
	)

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to deactivate listing")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to deactivate listing")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("active listing %s not found", id))
	}

	return nil
}

// ListTenants returns the distinct tenants that have listings
func (r *Repository) ListTenants(ctx context.Context) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "listing.Repository.ListTenants")
	defer span.End()

	query := `SELECT DISTINCT tenant_id FROM listings`

	var tenants []string
	if err := r.db.SelectContext(ctx, &tenants, query); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list tenants")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list tenants")
	}

	return tenants, nil
}

// CountActiveByDealer returns the number of active listings per dealer
func (r *Repository) CountActiveByDealer(ctx context.Context, tenantID string) (map[string]int, error) {
	ctx, span := tracing.StartSpan(ctx, "listing.Repository.CountActiveByDealer")
	defer span.End()

	query := `
		SELECT dealer_id, COUNT(*) AS listing_count
		FROM listings
		WHERE tenant_id = $1 AND is_active = TRUE AND dealer_id IS NOT NULL
		GROUP BY dealer_id
	`

	rows, err := r.db.QueryxContext(ctx, query, tenantID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count active listings by dealer")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count active listings")
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var dealerID string
		var count int
		if err := rows.Scan(&dealerID, &count); err != nil {
			r.logger.WithContext(ctx).WithError(err).Error("Failed to scan dealer listing count")
			return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count active listings")
		}
		counts[dealerID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count active listings")
	}

	return counts, nil
}
