package dealerrule

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

var ruleColumns = []string{
	"id", "tenant_id", "dealer_id", "name", "priority", "is_active",
	"auto_match_threshold", "review_threshold", "weights", "tolerances",
	"enable_vin_matching", "enable_external_id_matching", "enable_fuzzy_matching",
	"enable_image_matching", "strict_mode", "min_price", "max_price", "min_year",
	"max_year", "make_filter", "model_filter", "usage_count", "created_by",
	"created_at", "updated_at", "deleted_at",
}

// ruleRow maps the dealer_rules table, with weights and tolerances as jsonb.
type ruleRow struct {
	models.DealerDeduplicationRule
	WeightsJSON    database.JSONB[models.FieldWeights] `db:"weights"`
	TolerancesJSON database.JSONB[models.Tolerances]   `db:"tolerances"`
}

func (row *ruleRow) toModel() *models.DealerDeduplicationRule {
	rule := row.DealerDeduplicationRule
	rule.Weights = row.WeightsJSON.GetValue()
	rule.Tolerances = row.TolerancesJSON.GetValue()
	return &rule
}

// Repository handles dealer deduplication rule persistence
type Repository struct {
	db     database.DB
	logger logging.Logger
}

// NewRepository creates a new dealer rule repository
func NewRepository(db database.DB, logger logging.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new dealer rule
func (r *Repository) Create(ctx context.Context, rule *models.DealerDeduplicationRule) error {
	ctx, span := tracing.StartSpan(ctx, "dealerrule.Repository.Create")
	defer span.End()

	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("dealer_rules")
	sb.Cols(ruleColumns...)
	sb.Values(
		rule.ID, rule.TenantID, rule.DealerID, rule.Name, rule.Priority, rule.IsActive,
		rule.AutoMatchThreshold, rule.ReviewThreshold,
		database.NewJSONB(rule.Weights), database.NewJSONB(rule.Tolerances),
		rule.EnableVinMatching, rule.EnableExternalIDMatching, rule.EnableFuzzyMatching,
		rule.EnableImageMatching, rule.StrictMode, rule.MinPrice, rule.MaxPrice,
		rule.MinYear, rule.MaxYear, rule.MakeFilter, rule.ModelFilter, rule.UsageCount,
		rule.CreatedBy, rule.CreatedAt, rule.UpdatedAt, rule.DeletedAt,
	)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"rule_id": rule.ID}).Error("Failed to create dealer rule")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create dealer rule")
	}

	return nil
}

// GetByID retrieves a dealer rule by ID
func (r *Repository) GetByID(ctx context.Context, tenantID, id string) (*models.DealerDeduplicationRule, error) {
	ctx, span := tracing.StartSpan(ctx, "dealerrule.Repository.GetByID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(ruleColumns...)
	sb.From("dealer_rules")
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	var row ruleRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("dealer rule %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get dealer rule")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get dealer rule")
	}

	return row.toModel(), nil
}

// Update persists changes to an existing dealer rule
func (r *Repository) Update(ctx context.Context, rule *models.DealerDeduplicationRule) error {
	ctx, span := tracing.StartSpan(ctx, "dealerrule.Repository.Update")
	defer span.End()

	rule.UpdatedAt = time.Now().UTC()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("dealer_rules")
	sb.Set(
		sb.Assign("name", rule.Name),
		sb.Assign("priority", rule.Priority),
		sb.Assign("is_active", rule.IsActive),
		sb.Assign("auto_match_threshold", rule.AutoMatchThreshold),
		sb.Assign("review_threshold", rule.ReviewThreshold),
		sb.Assign("weights", database.NewJSONB(rule.Weights)),
		sb.Assign("tolerances", database.NewJSONB(rule.Tolerances)),
		sb.Assign("enable_vin_matching", rule.EnableVinMatching),
		sb.Assign("enable_external_id_matching", rule.EnableExternalIDMatching),
		sb.Assign("enable_fuzzy_matching", rule.EnableFuzzyMatching),
		sb.Assign("enable_image_matching", rule.EnableImageMatching),
		sb.Assign("strict_mode", rule.StrictMode),
		sb.Assign("min_price", rule.MinPrice),
		sb.Assign("max_price", rule.MaxPrice),
		sb.Assign("min_year", rule.MinYear),
		sb.Assign("max_year", rule.MaxYear),
		sb.Assign("make_filter", rule.MakeFilter),
		sb.Assign("model_filter", rule.ModelFilter),
		sb.Assign("updated_at", rule.UpdatedAt),
	)
	sb.Where(
		sb.Equal("id", rule.ID),
		sb.Equal("tenant_id", rule.TenantID),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update dealer rule")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update dealer rule")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("dealer rule %s not found", rule.ID))
	}

	return nil
}

// Delete soft-deletes a dealer rule
func (r *Repository) Delete(ctx context.Context, tenantID, id string) error {
	ctx, span := tracing.StartSpan(ctx, "dealerrule.Repository.Delete")
	defer span.End()

	now := time.Now().UTC()
	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("dealer_rules")
	sb.Set(
		sb.Assign("deleted_at", now),
		sb.Assign("is_active", false),
		sb.Assign("updated_at", now),
	)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete dealer rule")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete dealer rule")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("dealer rule %s not found", id))
	}

	return nil
}

// List retrieves all non-deleted dealer rules for a tenant
func (r *Repository) List(ctx context.Context, tenantID string) ([]models.DealerDeduplicationRule, error) {
	ctx, span := tracing.StartSpan(ctx, "dealerrule.Repository.List")
	defer span.End()

	return r.list(ctx, tenantID, false)
}

// ListActive retrieves active dealer rules ordered by priority descending
func (r *Repository) ListActive(ctx context.Context, tenantID string) ([]models.DealerDeduplicationRule, error) {
	ctx, span := tracing.StartSpan(ctx, "dealerrule.Repository.ListActive")
	defer span.End()

	return r.list(ctx, tenantID, true)
}

func (r *Repository) list(ctx context.Context, tenantID string, activeOnly bool) ([]models.DealerDeduplicationRule, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(ruleColumns...)
	sb.From("dealer_rules")

	where := []string{
		sb.Equal("tenant_id", tenantID),
		sb.IsNull("deleted_at"),
	}
	if activeOnly {
		where = append(where, sb.Equal("is_active", true))
	}
	sb.Where(where...)
	sb.OrderBy("priority DESC", "created_at ASC")

	query, args := sb.Build()
	var rows []ruleRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list dealer rules")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list dealer rules")
	}

	rules := make([]models.DealerDeduplicationRule, 0, len(rows))
	for i := range rows {
		rules = append(rules, *rows[i].toModel())
	}

	return rules, nil
}

// IncrementUsage bumps the usage counter on a rule
func (r *Repository) IncrementUsage(ctx context.Context, tenantID, id string) error {
	ctx, span := tracing.StartSpan(ctx, "dealerrule.Repository.IncrementUsage")
	defer span.End()

	query := `
		UPDATE dealer_rules
		SET usage_count = usage_count + 1, updated_at = $1
		WHERE id = $2 AND tenant_id = $3 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id, tenantID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to increment rule usage")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to increment rule usage")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("dealer rule %s not found", id))
	}

	return nil
}
