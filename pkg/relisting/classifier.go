package relisting

import "github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/models"

// Classifier decides whether a detected relisting looks like manipulative
// behavior (price-reset churn) rather than a routine re-offer. The concrete
// thresholds are a product decision; the engine only requires the predicate.
type Classifier interface {
	IsSuspicious(pattern *models.RelistingPattern, relistedCount int) bool
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(pattern *models.RelistingPattern, relistedCount int) bool

func (f ClassifierFunc) IsSuspicious(pattern *models.RelistingPattern, relistedCount int) bool {
	return f(pattern, relistedCount)
}

// DefaultClassifier flags quick churn with a price increase, and chronic
// relisting regardless of price.
func DefaultClassifier(maxDaysOffMarket float64, chronicRelistCount int) Classifier {
	return ClassifierFunc(func(pattern *models.RelistingPattern, relistedCount int) bool {
		if pattern == nil {
			return false
		}
		if delta := pattern.PriceDelta(); delta != nil && *delta > 0 && pattern.DaysOffMarket < maxDaysOffMarket {
			return true
		}
		return relistedCount >= chronicRelistCount
	})
}
