// Package server assembles the HTTP surface, Kafka pipeline, and storage
// layer into a runnable service.
package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Gobusters/ectoinject"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/config"
	rulerepo "github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/internal/repositories/dealerrule"
	statsrepo "github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/internal/repositories/dealerstats"
	listingrepo "github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/internal/repositories/listing"
	patternrepo "github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/internal/repositories/relistingpattern"
	reviewrepo "github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/internal/repositories/reviewitem"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/database"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/dealerrule"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/events"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/kafka"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/logging"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/matching"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/middleware"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/processor"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/relisting"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/review"
	dealerruleroutes "github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/routes/dealerrule"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/routes/health"
	matchroutes "github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/routes/match"
	relistingroutes "github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/routes/relisting"
	reviewroutes "github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/routes/review"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/tracing"
)

// Version is set at build time
var Version = "dev"

// Server holds the assembled service
type Server struct {
	cfg       *config.Config
	logger    logging.Logger
	echo      *echo.Echo
	db        database.DB
	consumer  *kafka.Consumer
	producer  *kafka.Producer
	scheduler *relisting.Scheduler
	health    *health.Checker

	shutdownTracing func(context.Context) error
}

// New builds the service: database, migrations, repositories, engines,
// Kafka pipeline, and the echo router with its DI container.
func New(ctx context.Context, cfg *config.Config, logger logging.Logger) (*Server, error) {
	shutdownTracing := tracing.Init(cfg.AppName)

	db, err := database.Connect(ctx, cfg.PostgresURL, cfg.PostgresMaxOpenConns, cfg.PostgresMaxIdleConns, logger)
	if err != nil {
		return nil, err
	}

	instance, ok := db.(*database.DatabaseInstance)
	if !ok {
		return nil, fmt.Errorf("unexpected database instance type")
	}

	driver, err := migratepg.WithInstance(instance.DB.DB, &migratepg.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}
	migrations := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.MigrationsPath,
		Version:             cfg.MigrationVersion,
	})
	if err := migrations.Migrate("postgres", driver); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	listings := listingrepo.NewRepository(db, logger)
	reviews := reviewrepo.NewRepository(db, logger)
	rules := rulerepo.NewRepository(db, logger)
	patterns := patternrepo.NewRepository(db, logger)
	dealerStats := statsrepo.NewRepository(db, logger)

	ruleService := dealerrule.NewService(rules, logger)
	reviewService := review.NewService(reviews, listings, logger)

	pipeline := matching.NewPipeline(listings, reviewService, ruleService, matching.Config{
		ExactVinConfidence:   cfg.ExactVinConfidence,
		PartialVinConfidence: cfg.PartialVinConfidence,
		ExternalIDConfidence: cfg.ExternalIDConfidence,
	}, logger)

	engine := relisting.NewEngine(listings, patterns, dealerStats, nil, relisting.Config{
		LookbackDays:         cfg.RelistLookbackDays,
		MinDaysOffMarket:     cfg.RelistMinDaysOffMarket,
		VinConfidence:        cfg.RelistVinConfidence,
		ExternalIDConfidence: cfg.RelistExternalIDConfidence,
		FuzzyMinimum:         cfg.RelistFuzzyMinimum,
		ProgressInterval:     cfg.ScanProgressInterval,
		FrequentRelisterRate: cfg.FrequentRelisterRate,
		FrequentRelisterMin:  cfg.FrequentRelisterMinCount,
		SuspiciousChurnDays:  cfg.SuspiciousChurnDays,
		ChronicRelistCount:   cfg.ChronicRelistCount,
	}, logger)

	brokers := strings.Split(cfg.KafkaBrokers, ",")
	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      brokers,
		Topic:        cfg.KafkaEventsTopic,
		BatchSize:    100,
		BatchTimeout: 100 * time.Millisecond,
		RequiredAcks: -1,
		Compression:  cfg.KafkaCompression,
	}, logger)
	emitter := events.NewEmitter(producer, logger)

	scheduler := relisting.NewScheduler(engine, listings, time.Duration(cfg.ScanIntervalHours)*time.Hour, cfg.ScanWindowDays, logger)

	proc := processor.NewProcessor(listings, pipeline, engine, emitter, logger)
	consumer := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:       brokers,
		Topic:         cfg.KafkaRecordsTopic,
		ConsumerGroup: cfg.KafkaConsumerGroup,
	}, logger, proc.HandleMessage)

	container, err := ectoinject.NewDIDefaultContainer()
	if err != nil {
		return nil, fmt.Errorf("failed to create DI container: %w", err)
	}
	if err := ectoinject.RegisterInstance[logging.Logger](container, logger); err != nil {
		return nil, err
	}
	if err := ectoinject.RegisterInstance[database.DB](container, db); err != nil {
		return nil, err
	}
	if err := ectoinject.RegisterInstance[*review.Service](container, reviewService); err != nil {
		return nil, err
	}
	if err := ectoinject.RegisterInstance[*dealerrule.Service](container, ruleService); err != nil {
		return nil, err
	}
	if err := ectoinject.RegisterInstance[*matching.Pipeline](container, pipeline); err != nil {
		return nil, err
	}
	if err := ectoinject.RegisterInstance[*relisting.Engine](container, engine); err != nil {
		return nil, err
	}
	if err := ectoinject.RegisterInstance[*patternrepo.Repository](container, patterns); err != nil {
		return nil, err
	}
	if err := ectoinject.RegisterInstance[*statsrepo.Repository](container, dealerStats); err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(echomiddleware.Recover())
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, err := ectoinject.SetActiveContainer(c.Request().Context(), container.GetContainerID())
			if err != nil {
				return err
			}
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})

	api := e.Group("/api/v1")
	reviewroutes.Register(api.Group("/reviews"))
	dealerruleroutes.Register(api.Group("/dealer-rules"))
	relistingroutes.Register(api.Group("/relisting"))
	matchroutes.Register(api.Group("/match"))

	checker := health.NewChecker(instance.DB, consumer, Version)
	checker.RegisterRoutes(e)

	return &Server{
		cfg:             cfg,
		logger:          logger,
		echo:            e,
		db:              db,
		consumer:        consumer,
		producer:        producer,
		scheduler:       scheduler,
		health:          checker,
		shutdownTracing: shutdownTracing,
	}, nil
}

// Start launches the Kafka consumer and the HTTP listener. It blocks until
// the HTTP server stops.
func (s *Server) Start(ctx context.Context) error {
	if err := s.consumer.Start(ctx); err != nil {
		return err
	}
	s.scheduler.Start(ctx)
	s.health.SetReady(true)

	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.logger.WithContext(ctx).WithField("addr", addr).Info("Starting HTTP server")
	return s.echo.Start(addr)
}

// Stop shuts everything down in reverse order.
func (s *Server) Stop(ctx context.Context) error {
	s.health.SetReady(false)

	if err := s.echo.Shutdown(ctx); err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to shut down HTTP server")
	}
	s.scheduler.Stop()
	if err := s.consumer.Stop(); err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to stop consumer")
	}
	if err := s.producer.Close(); err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to close producer")
	}
	if err := s.db.Close(); err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to close database")
	}
	if s.shutdownTracing != nil {
		if err := s.shutdownTracing(ctx); err != nil {
			s.logger.WithContext(ctx).WithError(err).Error("Failed to shut down tracing")
		}
	}
	return nil
}
