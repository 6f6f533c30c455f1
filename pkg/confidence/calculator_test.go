package confidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/models"
)

func ptr[T any](v T) *T {
	return &v
}

func testRecord() *models.ScrapedRecord {
	return &models.ScrapedRecord{
		TenantID:   "tenant-1",
		SourceSite: "TestSite",
		ExternalID: "EXT-001",
		Make:       "Honda",
		Model:      "Civic",
		Year:       2021,
		Price:      ptr(25000.0),
		Mileage:    ptr(30000),
		Latitude:   ptr(40.7128),
		Longitude:  ptr(-74.0060),
	}
}

func TestScoreIdenticalRecords(t *testing.T) {
	calc := NewCalculator()
	a := testRecord()
	b := testRecord()

	confidence, fieldScores, err := calc.Score(a, b, models.DefaultPipelineWeights(), models.DefaultTolerances())
	require.NoError(t, err)

	// All comparable fields are perfect; image contributes the neutral 0.5
	// against its 0.10 weight, so 95 is the ceiling with default weights.
	assert.InDelta(t, 95.0, confidence, 0.01)
	assert.Equal(t, 1.0, fieldScores[FieldMakeModel])
	assert.Equal(t, 1.0, fieldScores[FieldYear])
	assert.Equal(t, 0.5, fieldScores[FieldImage])
}

func TestScoreMissingOptionalFieldsUseNeutralFallback(t *testing.T) {
	calc := NewCalculator()
	a := testRecord()
	b := testRecord()
	a.Mileage = nil
	b.Price = nil

	confidence, fieldScores, err := calc.Score(a, b, models.DefaultPipelineWeights(), models.DefaultTolerances())
	require.NoError(t, err)

	assert.Equal(t, 0.5, fieldScores[FieldMileage])
	assert.Equal(t, 0.5, fieldScores[FieldPrice])
	assert.Greater(t, confidence, 0.0)
}

func TestScoreMissingCoordinatesScoreZero(t *testing.T) {
	calc := NewCalculator()
	a := testRecord()
	b := testRecord()
	b.Latitude = nil
	b.Longitude = nil

	_, fieldScores, err := calc.Score(a, b, models.DefaultPipelineWeights(), models.DefaultTolerances())
	require.NoError(t, err)

	assert.Equal(t, 0.0, fieldScores[FieldLocation])
}

func TestScoreNormalizesWeightsExplicitly(t *testing.T) {
	calc := NewCalculator()
	a := testRecord()
	b := testRecord()

	// Same ratios as the defaults but scaled by 10; the result must not change.
	scaled := models.FieldWeights{
		MakeModel: 2.5,
		Year:      2.0,
		Mileage:   1.5,
		Price:     1.5,
		Location:  1.5,
		Image:     1.0,
	}

	base, _, err := calc.Score(a, b, models.DefaultPipelineWeights(), models.DefaultTolerances())
	require.NoError(t, err)
	rescaled, _, err := calc.Score(a, b, scaled, models.DefaultTolerances())
	require.NoError(t, err)

	assert.InDelta(t, base, rescaled, 0.0001)
}

func TestScoreZeroWeightsRejected(t *testing.T) {
	calc := NewCalculator()
	_, _, err := calc.Score(testRecord(), testRecord(), models.FieldWeights{}, models.DefaultTolerances())
	assert.Error(t, err)
}

func TestScoreNegativeWeightRejected(t *testing.T) {
	calc := NewCalculator()
	weights := models.DefaultPipelineWeights()
	weights.Year = -0.2
	_, _, err := calc.Score(testRecord(), testRecord(), weights, models.DefaultTolerances())
	assert.Error(t, err)
}

func TestScoreNilRecordRejected(t *testing.T) {
	calc := NewCalculator()
	_, _, err := calc.Score(nil, testRecord(), models.DefaultPipelineWeights(), models.DefaultTolerances())
	assert.Error(t, err)
}

func TestScoreZeroWeightFieldsSkipped(t *testing.T) {
	calc := NewCalculator()
	a := testRecord()
	b := testRecord()

	weights := models.FieldWeights{MakeModel: 1.0}
	confidence, fieldScores, err := calc.Score(a, b, weights, models.DefaultTolerances())
	require.NoError(t, err)

	assert.InDelta(t, 100.0, confidence, 0.0001)
	assert.NotContains(t, fieldScores, FieldPrice)
	assert.NotContains(t, fieldScores, FieldImage)
}

func TestScoreRelistingWeightsUseColor(t *testing.T) {
	calc := NewCalculator()
	a := testRecord()
	b := testRecord()
	a.ExteriorColor = "Blue"
	b.ExteriorColor = "Blue"

	confidence, fieldScores, err := calc.Score(a, b, models.DefaultRelistingWeights(), models.DefaultTolerances())
	require.NoError(t, err)

	assert.Equal(t, 1.0, fieldScores[FieldColor])
	assert.NotContains(t, fieldScores, FieldLocation)
	assert.InDelta(t, 100.0, confidence, 0.01)
}

func TestScoreYearToleranceBandScoresFull(t *testing.T) {
	calc := NewCalculator()
	a := testRecord()
	b := testRecord()
	b.Year = a.Year - 2

	tolerances := models.DefaultTolerances()
	tolerances.Year = 2
	_, fieldScores, err := calc.Score(a, b, models.DefaultPipelineWeights(), tolerances)
	require.NoError(t, err)
	assert.Equal(t, 1.0, fieldScores[FieldYear])

	// Beyond the band the standard per-year decay applies to the full gap.
	tolerances.Year = 1
	_, fieldScores, err = calc.Score(a, b, models.DefaultPipelineWeights(), tolerances)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, fieldScores[FieldYear], 0.0001)
}

func TestScoreDivergentRecordsScoreLow(t *testing.T) {
	calc := NewCalculator()
	a := testRecord()
	b := &models.ScrapedRecord{
		TenantID:   "tenant-1",
		SourceSite: "OtherSite",
		ExternalID: "EXT-999",
		Make:       "Ford",
		Model:      "F-150",
		Year:       2010,
		Price:      ptr(60000.0),
		Mileage:    ptr(150000),
		Latitude:   ptr(34.0522),
		Longitude:  ptr(-118.2437),
	}

	confidence, _, err := calc.Score(a, b, models.DefaultPipelineWeights(), models.DefaultTolerances())
	require.NoError(t, err)

	assert.Less(t, confidence, 40.0)
}
