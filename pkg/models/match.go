package models

// MatchMethod identifies which pipeline stage produced a match.
type MatchMethod string

const (
	MatchMethodExactVin        MatchMethod = "exact_vin"
	MatchMethodPartialVin      MatchMethod = "partial_vin"
	MatchMethodExternalID      MatchMethod = "external_id"
	MatchMethodFuzzyAttributes MatchMethod = "fuzzy_attributes"
	MatchMethodNone            MatchMethod = "none"
)

// MatchDecision is the disposition the pipeline reached for a record.
type MatchDecision string

const (
	MatchDecisionAutoMatch MatchDecision = "auto_match"
	MatchDecisionReview    MatchDecision = "review"
	MatchDecisionNoMatch   MatchDecision = "no_match"
)

// MatchResult is the outcome of running a scraped record through the
// matching pipeline. Matched is nil when no candidate cleared the review
// threshold.
type MatchResult struct {
	Decision    MatchDecision      `json:"decision"`
	Method      MatchMethod        `json:"method"`
	Confidence  float64            `json:"confidence"`
	Matched     *Listing           `json:"matched,omitempty"`
	FieldScores map[string]float64 `json:"field_scores,omitempty"`
	RuleID      *string            `json:"rule_id,omitempty"`
	ReviewID    *string            `json:"review_id,omitempty"`
}

// IsMatch reports whether the pipeline auto-matched the record.
func (r *MatchResult) IsMatch() bool {
	return r.Decision == MatchDecisionAutoMatch && r.Matched != nil
}
