package relisting

import (
	"context"
	"sync"
	"time"

	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/logging"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/progress"
)

// TenantSource enumerates tenants that have listings
type TenantSource interface {
	ListTenants(ctx context.Context) ([]string, error)
}

// Scheduler periodically scans recent listings and recomputes dealer
// relisting aggregates for every tenant.
type Scheduler struct {
	engine   *Engine
	tenants  TenantSource
	interval time.Duration
	scanDays int
	logger   logging.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewScheduler creates a new relisting scheduler
func NewScheduler(engine *Engine, tenants TenantSource, interval time.Duration, scanDays int, logger logging.Logger) *Scheduler {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	if scanDays < 1 {
		scanDays = 7
	}
	return &Scheduler{
		engine:   engine,
		tenants:  tenants,
		interval: interval,
		scanDays: scanDays,
		logger:   logger,
	}
}

// Start begins the periodic scan loop
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.loop(ctx)
}

// Stop cancels the loop and waits for a running pass to finish
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.WithContext(ctx).Info("Relisting scheduler stopping")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	tenants, err := s.tenants.ListTenants(ctx)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to list tenants for relisting scan")
		return
	}

	since := time.Now().UTC().AddDate(0, 0, -s.scanDays)
	reporter := progress.NewLogReporter(s.logger)

	for _, tenantID := range tenants {
		if ctx.Err() != nil {
			return
		}

		log := s.logger.WithContext(ctx).WithField("tenant_id", tenantID)

		result, err := s.engine.ScanBatch(ctx, tenantID, since, reporter)
		if err != nil {
			log.WithError(err).Error("Relisting scan failed")
			continue
		}
		log.WithFields(map[string]any{
			"scanned":  result.Scanned,
			"relisted": result.RelistingsFound,
			"errors":   len(result.Errors),
		}).Info("Relisting scan complete")

		if _, err := s.engine.RecomputeDealerStats(ctx, tenantID); err != nil {
			log.WithError(err).Error("Failed to recompute dealer relisting stats")
		}
	}
}
