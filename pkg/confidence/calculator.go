// Package confidence combines per-field similarity scores into a single
// 0-100 confidence value under a configurable weight table.
package confidence

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"

	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/models"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/normalizers"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/similarity"
)

// neutralScore is contributed by optional fields that are missing on either
// side. Sparse source data should neither confirm nor deny a match.
const neutralScore = 0.5

const (
	FieldMakeModel = "make_model"
	FieldYear      = "year"
	FieldMileage   = "mileage"
	FieldPrice     = "price"
	FieldLocation  = "location"
	FieldColor     = "color"
	FieldImage     = "image"
)

// Calculator scores record pairs. It is stateless and safe for concurrent use.
type Calculator struct {
	scorer *similarity.Scorer
}

// NewCalculator creates a new Calculator
func NewCalculator() *Calculator {
	return &Calculator{scorer: similarity.NewScorer()}
}

// yearScore treats years within the tolerance band as a full match; beyond
// it the standard per-year decay applies.
func (c *Calculator) yearScore(a, b, tolerance int) float64 {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	if tolerance > 0 && diff <= tolerance {
		return 1.0
	}
	return c.scorer.YearProximity(a, b)
}

// Score compares two records under the given weights and tolerances and
// returns a 0-100 confidence plus the per-field similarity breakdown.
// Weights are normalized explicitly before use; zero-weight fields are not
// computed and do not appear in the breakdown.
func (c *Calculator) Score(a, b *models.ScrapedRecord, weights models.FieldWeights, tolerances models.Tolerances) (float64, map[string]float64, error) {
	if a == nil || b == nil {
		return 0, nil, httperror.NewHTTPError(http.StatusBadRequest, "both records are required")
	}

	normalized, err := weights.Normalize()
	if err != nil {
		return 0, nil, httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	fieldScores := make(map[string]float64)
	confidence := 0.0

	if normalized.MakeModel > 0 {
		score := c.scorer.String(normalizers.NormalizeMakeModel(a.MakeModel()), normalizers.NormalizeMakeModel(b.MakeModel()))
		fieldScores[FieldMakeModel] = score
		confidence += normalized.MakeModel * score
	}

	if normalized.Year > 0 {
		score := neutralScore
		if a.Year != 0 && b.Year != 0 {
			score = c.yearScore(a.Year, b.Year, tolerances.Year)
		}
		fieldScores[FieldYear] = score
		confidence += normalized.Year * score
	}

	if normalized.Mileage > 0 {
		score := neutralScore
		if a.Mileage != nil && b.Mileage != nil {
			score, err = c.scorer.NumericProximity(float64(*a.Mileage), float64(*b.Mileage), tolerances.Mileage)
			if err != nil {
				return 0, nil, err
			}
		}
		fieldScores[FieldMileage] = score
		confidence += normalized.Mileage * score
	}

	if normalized.Price > 0 {
		score := neutralScore
		if a.Price != nil && b.Price != nil {
			score, err = c.scorer.NumericProximity(*a.Price, *b.Price, tolerances.Price)
			if err != nil {
				return 0, nil, err
			}
		}
		fieldScores[FieldPrice] = score
		confidence += normalized.Price * score
	}

	if normalized.Location > 0 {
		score, err := c.scorer.GeoProximity(a.Latitude, a.Longitude, b.Latitude, b.Longitude, tolerances.LocationMiles)
		if err != nil {
			return 0, nil, err
		}
		fieldScores[FieldLocation] = score
		confidence += normalized.Location * score
	}

	if normalized.Color > 0 {
		score := c.scorer.String(a.ExteriorColor, b.ExteriorColor)
		fieldScores[FieldColor] = score
		confidence += normalized.Color * score
	}

	if normalized.Image > 0 {
		// Image comparison is not performed by this core; the field always
		// contributes the neutral fallback.
		fieldScores[FieldImage] = neutralScore
		confidence += normalized.Image * neutralScore
	}

	confidence *= 100
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 100 {
		confidence = 100
	}

	return confidence, fieldScores, nil
}
