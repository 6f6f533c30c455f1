package dealerrule

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"

	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/models"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/tracing"
)

const (
	PresetStrictVinOnly = "strict_vin_only"
	PresetRelaxed       = "relaxed"
	PresetHighValue     = "high_value"
)

// presetRequest builds the create request for a named preset. Presets are
// templates: applying one creates a regular rule the caller can edit later.
func presetRequest(preset string, dealerID *string) (*models.CreateDealerRuleRequest, error) {
	switch preset {
	case PresetStrictVinOnly:
		return &models.CreateDealerRuleRequest{
			DealerID:           dealerID,
			Name:               "Strict VIN Only",
			Priority:           100,
			AutoMatchThreshold: 85,
			ReviewThreshold:    70,
			Weights:            models.DefaultPipelineWeights(),
			Tolerances:         models.DefaultTolerances(),
			EnableVinMatching:  true,
			StrictMode:         true,
		}, nil
	case PresetRelaxed:
		return &models.CreateDealerRuleRequest{
			DealerID:                 dealerID,
			Name:                     "Relaxed",
			Priority:                 10,
			AutoMatchThreshold:       75,
			ReviewThreshold:          60,
			Weights:                  models.DefaultPipelineWeights(),
			Tolerances: models.Tolerances{
				Mileage:       10000,
				Price:         2500,
				Year:          2,
				LocationMiles: 25,
			},
			EnableVinMatching:        true,
			EnableExternalIDMatching: true,
			EnableFuzzyMatching:      true,
		}, nil
	case PresetHighValue:
		minPrice := 50000.0
		return &models.CreateDealerRuleRequest{
			DealerID:                 dealerID,
			Name:                     "High Value Vehicles",
			Priority:                 50,
			AutoMatchThreshold:       90,
			ReviewThreshold:          75,
			Weights:                  models.DefaultPipelineWeights(),
			Tolerances: models.Tolerances{
				Mileage:       2500,
				Price:         500,
				Year:          1,
				LocationMiles: 10,
			},
			EnableVinMatching:        true,
			EnableExternalIDMatching: true,
			EnableFuzzyMatching:      true,
			MinPrice:                 &minPrice,
		}, nil
	default:
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "unknown preset: "+preset)
	}
}

// CreateFromPreset creates a rule from one of the named presets.
func (s *Service) CreateFromPreset(ctx context.Context, tenantID, preset string, dealerID *string) (*models.DealerDeduplicationRule, error) {
	ctx, span := tracing.StartSpan(ctx, "dealerrule.Service.CreateFromPreset")
	defer span.End()

	req, err := presetRequest(preset, dealerID)
	if err != nil {
		return nil, err
	}

	return s.Create(ctx, tenantID, req)
}
