// Package dealerrule resolves which per-seller matching policy applies to an
// incoming record and manages the rule lifecycle.
package dealerrule

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

// Store is the persistence surface the service needs.
type Store interface {
	Create(ctx context.Context, rule *models.DealerDeduplicationRule) error
	GetByID(ctx context.Context, tenantID, id string) (*models.DealerDeduplicationRule, error)
	Update(ctx context.Context, rule *models.DealerDeduplicationRule) error
	Delete(ctx context.Context, tenantID, id string) error
	List(ctx context.Context, tenantID string) ([]models.DealerDeduplicationRule, error)
	ListActive(ctx context.Context, tenantID string) ([]models.DealerDeduplicationRule, error)
	IncrementUsage(ctx context.Context, tenantID, id string) error
}

type Service struct {
	store  Store
	logger logging.Logger
}

func NewService(store Store, logger logging.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
	}
}

// DefaultRule returns the system-wide matching policy used when no stored
// rule applies to a record.
func DefaultRule(tenantID string) *models.DealerDeduplicationRule {
	return &models.DealerDeduplicationRule{
		TenantID:                 tenantID,
		Name:                     "system_defaults",
		IsActive:                 true,
		AutoMatchThreshold:       85,
		ReviewThreshold:          70,
		Weights:                  models.DefaultPipelineWeights(),
		Tolerances:               models.DefaultTolerances(),
		EnableVinMatching:        true,
		EnableExternalIDMatching: true,
		EnableFuzzyMatching:      true,
	}
}

// Create stores a new rule after validating its thresholds and weights.
func (s *Service) Create(ctx context.Context, tenantID string, req *models.CreateDealerRuleRequest) (*models.DealerDeduplicationRule, error) {
	ctx, span := tracing.StartSpan(ctx, "dealerrule.Service.Create")
	defer span.End()

	if req == nil {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "request is required")
	}
	if req.AutoMatchThreshold < req.ReviewThreshold {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "auto-match threshold must be at least the review threshold")
	}
	if req.EnableFuzzyMatching {
		if _, err := req.Weights.Normalize(); err != nil {
			return nil, httperror.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		if err := req.Tolerances.Validate(); err != nil {
			return nil, httperror.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}

	now := time.Now().UTC()
	rule := &models.DealerDeduplicationRule{
		ID:                       uuid.New().String(),
		TenantID:                 tenantID,
		DealerID:                 req.DealerID,
		Name:                     req.Name,
		Priority:                 req.Priority,
		IsActive:                 true,
		AutoMatchThreshold:       req.AutoMatchThreshold,
		ReviewThreshold:          req.ReviewThreshold,
		Weights:                  req.Weights,
		Tolerances:               req.Tolerances,
		EnableVinMatching:        req.EnableVinMatching,
		EnableExternalIDMatching: req.EnableExternalIDMatching,
		EnableFuzzyMatching:      req.EnableFuzzyMatching,
		EnableImageMatching:      req.EnableImageMatching,
		StrictMode:               req.StrictMode,
		MinPrice:                 req.MinPrice,
		MaxPrice:                 req.MaxPrice,
		MinYear:                  req.MinYear,
		MaxYear:                  req.MaxYear,
		MakeFilter:               req.MakeFilter,
		ModelFilter:              req.ModelFilter,
		CreatedBy:                req.CreatedBy,
		CreatedAt:                now,
		UpdatedAt:                now,
	}

	if err := s.store.Create(ctx, rule); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tenant_id": tenantID,
			"rule_name": req.Name,
		}).Error("failed to create dealer rule")
		return nil, err
	}

	return rule, nil
}

// Get returns a rule by id.
func (s *Service) Get(ctx context.Context, tenantID, id string) (*models.DealerDeduplicationRule, error) {
	ctx, span := tracing.StartSpan(ctx, "dealerrule.Service.Get")
	defer span.End()

	return s.store.GetByID(ctx, tenantID, id)
}

// List returns all rules for a tenant, including inactive ones.
func (s *Service) List(ctx context.Context, tenantID string) ([]models.DealerDeduplicationRule, error) {
	ctx, span := tracing.StartSpan(ctx, "dealerrule.Service.List")
	defer span.End()

	return s.store.List(ctx, tenantID)
}

// Update applies the non-nil fields of the request to an existing rule.
func (s *Service) Update(ctx context.Context, tenantID, id string, req *models.UpdateDealerRuleRequest) (*models.DealerDeduplicationRule, error) {
	ctx, span := tracing.StartSpan(ctx, "dealerrule.Service.Update")
	defer span.End()

	if req == nil {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "request is required")
	}

	rule, err := s.store.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		rule.Name = *req.Name
	}
	if req.Priority != nil {
		rule.Priority = *req.Priority
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}
	if req.AutoMatchThreshold != nil {
		rule.AutoMatchThreshold = *req.AutoMatchThreshold
	}
	if req.ReviewThreshold != nil {
		rule.ReviewThreshold = *req.ReviewThreshold
	}
	if req.Weights != nil {
		if _, err := req.Weights.Normalize(); err != nil {
			return nil, httperror.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		rule.Weights = *req.Weights
	}
	if req.Tolerances != nil {
		rule.Tolerances = *req.Tolerances
	}

	if rule.AutoMatchThreshold < rule.ReviewThreshold {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "auto-match threshold must be at least the review threshold")
	}
	if rule.EnableFuzzyMatching {
		if err := rule.Tolerances.Validate(); err != nil {
			return nil, httperror.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}

	rule.UpdatedAt = time.Now().UTC()

	if err := s.store.Update(ctx, rule); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tenant_id": tenantID,
			"rule_id":   id,
		}).Error("failed to update dealer rule")
		return nil, err
	}

	return rule, nil
}

// Delete soft-deletes a rule.
func (s *Service) Delete(ctx context.Context, tenantID, id string) error {
	ctx, span := tracing.StartSpan(ctx, "dealerrule.Service.Delete")
	defer span.End()

	return s.store.Delete(ctx, tenantID, id)
}

// GetApplicableRule returns the highest-priority active rule whose bounds
// accept the record, falling back to the system defaults. A hit increments
// the rule's usage counter; counter failures are logged, not surfaced.
func (s *Service) GetApplicableRule(ctx context.Context, tenantID string, record *models.ScrapedRecord) (*models.DealerDeduplicationRule, error) {
	ctx, span := tracing.StartSpan(ctx, "dealerrule.Service.GetApplicableRule")
	defer span.End()

	if record == nil {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "record is required")
	}

	rules, err := s.store.ListActive(ctx, tenantID)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("tenant_id", tenantID).Error("failed to list active dealer rules")
		return nil, err
	}

	for i := range rules {
		rule := &rules[i]
		if !rule.AppliesTo(record) {
			continue
		}

		if err := s.store.IncrementUsage(ctx, tenantID, rule.ID); err != nil {
			s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"tenant_id": tenantID,
				"rule_id":   rule.ID,
			}).Warn("failed to increment rule usage counter")
		}
		return rule, nil
	}

	return DefaultRule(tenantID), nil
}
