package relisting

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/logging"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/models"
)

func TestDefaultClassifier(t *testing.T) {
	classifier := DefaultClassifier(7, 3)

	pattern := func(before, after float64, daysOff float64) *models.RelistingPattern {
		return &models.RelistingPattern{
			PriceBefore:   &before,
			PriceAfter:    &after,
			DaysOffMarket: daysOff,
		}
	}

	tests := []struct {
		name          string
		pattern       *models.RelistingPattern
		relistedCount int
		expected      bool
	}{
		{name: "quick churn with price increase", pattern: pattern(25000, 27000, 2), relistedCount: 1, expected: true},
		{name: "quick churn with price drop", pattern: pattern(25000, 24000, 2), relistedCount: 1, expected: false},
		{name: "slow relist with price increase", pattern: pattern(25000, 27000, 30), relistedCount: 1, expected: false},
		{name: "chronic relisting", pattern: pattern(25000, 24000, 30), relistedCount: 3, expected: true},
		{name: "missing prices", pattern: &models.RelistingPattern{DaysOffMarket: 1}, relistedCount: 1, expected: false},
		{name: "nil pattern", pattern: nil, relistedCount: 5, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, classifier.IsSuspicious(tt.pattern, tt.relistedCount))
		})
	}
}

func TestClassifierIsPluggable(t *testing.T) {
	always := ClassifierFunc(func(*models.RelistingPattern, int) bool { return true })

	listings := newFakeListingStore()
	listings.deactivated = []models.Listing{deactivatedListing("prev-1", "1HGBH41JXMN109186", 30)}
	patterns := newFakePatternStore()

	engine := NewEngine(listings, patterns, newFakeStatsStore(), always, DefaultConfig(), logging.Nop())
	engine.now = func() time.Time { return fixedNow }

	result, err := engine.Detect(context.Background(), activeListing("cur-1", "1HGBH41JXMN109186"))
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsRelisting {
		t.Fatal("expected a relisting")
	}

	assert.True(t, result.Pattern.IsSuspicious)
}
