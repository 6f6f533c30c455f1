// Package similarity provides the field-level comparison primitives used by
// confidence scoring: normalized edit distance, numeric proximity with a
// tolerance band, model-year proximity, and great-circle geo proximity.
package similarity

import (
	"math"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
)

// earthRadiusMiles is the mean radius of the earth.
const earthRadiusMiles = 3958.8

// Scorer provides the string and value comparison algorithms
type Scorer struct{}

// NewScorer creates a new Scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// String returns the normalized edit-distance similarity between two strings.
// Comparison is case-insensitive and ignores surrounding whitespace. Both
// inputs empty means vacuously equal (1.0); exactly one empty means 0.0.
func (s *Scorer) String(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))

	if a == "" && b == "" {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	distance := s.LevenshteinDistance(a, b)
	maxLen := max(len(a), len(b))
	return 1.0 - float64(distance)/float64(maxLen)
}

// LevenshteinDistance calculates the edit distance between two strings
func (s *Scorer) LevenshteinDistance(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	// Two rows for dynamic programming
	row := make([]int, len(b)+1)
	prevRow := make([]int, len(b)+1)

	for j := 0; j <= len(b); j++ {
		prevRow[j] = j
	}

	for i := 1; i <= len(a); i++ {
		row[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			row[j] = min(min(row[j-1]+1, prevRow[j]+1), prevRow[j-1]+cost)
		}
		row, prevRow = prevRow, row
	}

	return prevRow[len(b)]
}

// NumericProximity compares two values against a tolerance band. Differences
// within the tolerance score 1.0; beyond it the score decays as
// tolerance/|x-y|, approaching but never reaching zero.
func (s *Scorer) NumericProximity(x, y, tolerance float64) (float64, error) {
	if tolerance <= 0 {
		return 0, httperror.NewHTTPError(http.StatusBadRequest, "tolerance must be positive")
	}

	diff := math.Abs(x - y)
	if diff <= tolerance {
		return 1.0, nil
	}
	return tolerance / diff, nil
}

// YearProximity scores two model years. Identical years score 1.0, each year
// of difference costs 0.2, clamped at zero.
func (s *Scorer) YearProximity(a, b int) float64 {
	diff := math.Abs(float64(a - b))
	return math.Max(0, 1.0-0.2*diff)
}

// GeoProximity scores two coordinates by great-circle distance with the same
// decay shape as NumericProximity. Either coordinate missing scores 0.0;
// proximity cannot be asserted without data.
func (s *Scorer) GeoProximity(lat1, lon1, lat2, lon2 *float64, toleranceMiles float64) (float64, error) {
	if toleranceMiles <= 0 {
		return 0, httperror.NewHTTPError(http.StatusBadRequest, "tolerance must be positive")
	}

	if lat1 == nil || lon1 == nil || lat2 == nil || lon2 == nil {
		return 0.0, nil
	}

	distance := HaversineMiles(*lat1, *lon1, *lat2, *lon2)
	if distance <= toleranceMiles {
		return 1.0, nil
	}
	return toleranceMiles / distance, nil
}

// HaversineMiles returns the great-circle distance between two coordinates.
func HaversineMiles(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMiles * c
}
