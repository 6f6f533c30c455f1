package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/config"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/logging"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/server"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/startup"
)

// serviceDependency builds and runs the server as a startup dependency so
// boot is retried while postgres and kafka come up.
type serviceDependency struct {
	cfg    *config.Config
	logger logging.Logger
	cancel context.CancelFunc
	srv    *server.Server
}

func (d *serviceDependency) GetName() string     { return "service" }
func (d *serviceDependency) DependsOn() []string { return nil }

func (d *serviceDependency) Start(ctx context.Context) error {
	srv, err := server.New(ctx, d.cfg, d.logger)
	if err != nil {
		return err
	}
	d.srv = srv

	go func() {
		if err := srv.Start(ctx); err != nil && err != http.ErrServerClosed {
			d.logger.WithError(err).Error("Server stopped unexpectedly")
			d.cancel()
		}
	}()
	return nil
}

func (d *serviceDependency) Stop(ctx context.Context) error {
	if d.srv == nil {
		return nil
	}
	return d.srv.Stop(ctx)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogPretty)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	service := &serviceDependency{cfg: cfg, logger: logger, cancel: cancel}

	boot := startup.NewStartup(logger, 5)
	boot.AddDependency(service)
	if err := boot.Start(ctx); err != nil {
		logger.WithError(err).Error("Failed to start service")
		os.Exit(1)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := boot.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Error("Shutdown failed")
	}
}
