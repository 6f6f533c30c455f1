package matching

import (
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/models"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/normalizers"
)

// vinLength is the standard length of a complete VIN.
const vinLength = 17

// partialVinLength is how many trailing VIN characters must agree for a
// partial match. The serial suffix survives OCR and typo noise in the
// manufacturer prefix.
const partialVinLength = 8

// identifierMatcher is one deterministic stage of the pipeline. Stages run
// in table order; the first hit wins and no further stages are consulted.
type identifierMatcher struct {
	method  models.MatchMethod
	enabled func(rule *models.DealerDeduplicationRule) bool
	match   func(record *models.ScrapedRecord, candidates []models.Listing) *models.Listing
}

// identifierMatchers is the strategy table, in strict priority order.
func identifierMatchers() []identifierMatcher {
	return []identifierMatcher{
		{
			method:  models.MatchMethodExactVin,
			enabled: func(rule *models.DealerDeduplicationRule) bool { return rule.EnableVinMatching },
			match:   matchExactVin,
		},
		{
			method:  models.MatchMethodPartialVin,
			enabled: func(rule *models.DealerDeduplicationRule) bool { return rule.EnableVinMatching },
			match:   matchPartialVin,
		},
		{
			method:  models.MatchMethodExternalID,
			enabled: func(rule *models.DealerDeduplicationRule) bool { return rule.EnableExternalIDMatching },
			match:   matchExternalID,
		},
	}
}

func matchExactVin(record *models.ScrapedRecord, candidates []models.Listing) *models.Listing {
	vin := normalizers.NormalizeVin(record.Vin)
	if len(vin) != vinLength {
		return nil
	}

	for i := range candidates {
		if normalizers.NormalizeVin(candidates[i].Vin) == vin {
			return &candidates[i]
		}
	}
	return nil
}

func matchPartialVin(record *models.ScrapedRecord, candidates []models.Listing) *models.Listing {
	vin := normalizers.NormalizeVin(record.Vin)
	if len(vin) < partialVinLength {
		return nil
	}
	suffix := vin[len(vin)-partialVinLength:]

	for i := range candidates {
		candidateVin := normalizers.NormalizeVin(candidates[i].Vin)
		if len(candidateVin) < partialVinLength {
			continue
		}
		if candidateVin[len(candidateVin)-partialVinLength:] == suffix {
			return &candidates[i]
		}
	}
	return nil
}

func matchExternalID(record *models.ScrapedRecord, candidates []models.Listing) *models.Listing {
	externalID := normalizers.NormalizeExternalID(record.ExternalID)
	sourceSite := normalizers.NormalizeExternalID(record.SourceSite)
	if externalID == "" || sourceSite == "" {
		return nil
	}

	for i := range candidates {
		if normalizers.NormalizeExternalID(candidates[i].ExternalID) == externalID &&
			normalizers.NormalizeExternalID(candidates[i].SourceSite) == sourceSite {
			return &candidates[i]
		}
	}
	return nil
}
