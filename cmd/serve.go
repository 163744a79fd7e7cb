package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"example.com/logitrack/services/warehouse/config"
	"example.com/logitrack/services/warehouse/internal/api"
	"example.com/logitrack/services/warehouse/internal/cache"
	"example.com/logitrack/services/warehouse/internal/delivery"
	"example.com/logitrack/services/warehouse/internal/history"
	"example.com/logitrack/services/warehouse/internal/messaging"
	"example.com/logitrack/services/warehouse/internal/metrics"
	"example.com/logitrack/services/warehouse/internal/models"
	"example.com/logitrack/services/warehouse/internal/ordersystem"
	"example.com/logitrack/services/warehouse/internal/repository"
	"example.com/logitrack/services/warehouse/internal/search"
	"example.com/logitrack/services/warehouse/internal/services"
	"example.com/logitrack/services/warehouse/internal/tracing"
	"example.com/logitrack/services/warehouse/internal/wms"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the adapter",
	Long: `Start the warehouse adapter: session consumers on the order event
queues, the history eviction scheduler, and the read/admin HTTP API. The
history store is in-process, so consumers and API run in one process.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}

	// Configure logging
	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Initialize database
	db, err := initDatabase(cfg)
	if err != nil {
		return err
	}

	// Initialize cache
	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
		redisCache, _ = cache.NewRedisCache(config.RedisConfig{Enabled: false})
	}

	// Initialize tracer; fall back to the disabled tracer on init failure so
	// downstream components never hold a nil Tracer
	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		tracer = tracing.NewDisabledTracer()
	}
	defer tracer.Close()

	// Initialize Elasticsearch mirroring, if enabled
	var indexer history.Indexer
	if cfg.Elastic.Enabled {
		elasticClient, err := search.NewElasticClient(cfg.Elastic)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without search mirroring")
		} else {
			indexer = elasticClient
		}
	}

	// Initialize components
	collector := metrics.NewMetrics()
	historyStore := history.NewStore(indexer)
	defer historyStore.Close()
	transport := wms.NewManagerFromConfig(cfg.WMS)
	orderClient := ordersystem.NewClient(cfg.OrderSystem)
	deliveryEngine := delivery.NewEngine(repository.NewDeliveryRepository(db))

	notifier, err := messaging.NewPublisher(cfg.Azure, cfg.Azure.NotificationQueue)
	if err != nil {
		return err
	}
	defer notifier.Close()

	warehouseService := services.NewWarehouseService(
		transport,
		orderClient,
		notifier,
		historyStore,
		redisCache,
		collector,
		tracer,
		cfg.WMS.ProcessingDelay,
	)

	// Wire the event router
	processor := messaging.NewProcessor(collector)
	processor.Register(models.EventOrderCreated, warehouseService.HandleOrderCreated)
	processor.Register(models.EventOrderStatusUpdated, warehouseService.HandleOrderStatusUpdated)
	processor.Register(models.EventOrderCancelled, warehouseService.HandleOrderCancelled)

	// Start session consumers on both inbound queues
	consumer, err := messaging.NewConsumer(cfg.Azure)
	if err != nil {
		return err
	}

	for _, queue := range []string{cfg.Azure.OrderEventsQueue, cfg.Azure.OrderStatusQueue} {
		queue := queue
		g.Go(func() error {
			log.Info().Str("queue", queue).Msg("Starting Service Bus consumer")
			return consumer.ConsumeQueue(ctx, queue, processor)
		})
	}

	// Start the history eviction scheduler
	g.Go(func() error {
		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return err
		}

		_, err = scheduler.NewJob(
			gocron.DurationJob(cfg.History.SweepInterval),
			gocron.NewTask(func() {
				removed := historyStore.ClearOld(cfg.History.RetentionHours)
				log.Debug().Int("removed", removed).Msg("History sweep completed")
			}),
		)
		if err != nil {
			return err
		}

		scheduler.Start()
		<-ctx.Done()
		return scheduler.Shutdown()
	})

	// Start the HTTP server
	server := api.NewServer(cfg, warehouseService, deliveryEngine, collector, tracer)
	g.Go(func() error {
		return server.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		return server.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Adapter error")
		return err
	}

	log.Info().Msg("Adapter shutting down gracefully")
	return nil
}

func initDatabase(cfg config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DB.DSN), &gorm.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	if err := models.SetupModels(db); err != nil {
		return nil, errors.Wrap(err, "failed to run migrations")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get underlying DB connection")
	}

	sqlDB.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)

	return db, nil
}
