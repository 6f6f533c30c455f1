// Package progress defines the reporting sink used by batch operations.
package progress

import (
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/logging"
)

// Reporter receives periodic progress updates from a batch operation.
type Reporter interface {
	Report(processed, total int, message string)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(processed, total int, message string)

func (f ReporterFunc) Report(processed, total int, message string) {
	f(processed, total, message)
}

// Nop returns a Reporter that discards updates.
func Nop() Reporter {
	return ReporterFunc(func(int, int, string) {})
}

// NewLogReporter returns a Reporter that writes updates to the logger.
func NewLogReporter(logger logging.Logger) Reporter {
	return ReporterFunc(func(processed, total int, message string) {
		logger.WithFields(map[string]any{
			"processed": processed,
			"total":     total,
		}).Info(message)
	})
}
