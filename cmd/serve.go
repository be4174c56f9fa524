package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/tindevelopers/recall-sub000/config"
	"github.com/tindevelopers/recall-sub000/credentials"
	"github.com/tindevelopers/recall-sub000/pkg/bot"
	"github.com/tindevelopers/recall-sub000/pkg/calendar"
	"github.com/tindevelopers/recall-sub000/pkg/db"
	"github.com/tindevelopers/recall-sub000/pkg/logging"
	"github.com/tindevelopers/recall-sub000/pkg/observability"
	"github.com/tindevelopers/recall-sub000/pkg/queues"
	"github.com/tindevelopers/recall-sub000/pkg/recallai"
	"github.com/tindevelopers/recall-sub000/pkg/transcript"
	"github.com/tindevelopers/recall-sub000/pkg/webhooks"
	"github.com/tindevelopers/recall-sub000/pkg/workers"
)

// NewServeCommand returns the long-running service command: HTTP intake,
// queue workers, and the periodic sweeper.
func NewServeCommand() *cobra.Command {
	var migrationsDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the calendar recording service",
		Long: `Run the recalld service: webhook intake, calendar synchronization,
bot scheduling, and transcript ingestion.

The service listens for provider webhooks, mirrors calendar events into
Postgres, schedules or removes recording bots to match each event's
recording state, and ingests transcript deliveries into meeting artifacts.

Database connection settings come from DB_* environment variables
(DB_HOST, DB_PORT, DB_NAME, DB_USER, DB_PASSWORD, DB_SSLMODE).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			return runServe(cmd.Context(), cfg, migrationsDir)
		},
	}

	cmd.Flags().StringVar(&migrationsDir, "migrations", "", "run SQL migrations from this directory before serving")
	return cmd
}

func runServe(ctx context.Context, cfg *config.ServiceConfig, migrationsDir string) error {
	logger := logging.NewLogger(&logging.Config{
		Level:       logging.Level(cfg.LogLevel),
		ServiceName: "recalld",
		JSONFormat:  cfg.LogJSON,
	})

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	apiKey, err := resolveAPIKey(cfg)
	if err != nil {
		return err
	}

	// Postgres
	dbCfg := db.ConfigFromEnv()
	pool, err := db.ConnectWithRetry(ctx, dbCfg, 5, 2*time.Second)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close(pool)

	if migrationsDir != "" {
		result, err := db.RunMigrations(ctx, pool, migrationsDir)
		if err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		logger.Info("migrations applied", logging.F("applied", len(result.Applied)))
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		db.NewPoolStatsCollector(pool, "recalld"),
	)
	metrics := observability.New(registry)

	// Redis queues
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	queueConfigs := queues.DefaultQueueConfigs()
	syncQueue := queues.NewRedisQueue(redisClient, queueConfigs[queues.QueueSync])
	reconcileQueue := queues.NewRedisQueue(redisClient, queueConfigs[queues.QueueReconcile])
	ingestQueue := queues.NewRedisQueue(redisClient, queueConfigs[queues.QueueIngest])
	enrichQueue := queues.NewRedisQueue(redisClient, queueConfigs[queues.QueueEnrich])
	dispatcher := queues.NewDispatcher(syncQueue, reconcileQueue, ingestQueue, enrichQueue)

	// Provider client
	provider, err := recallai.NewClient(recallai.Options{
		BaseURL: cfg.Provider.BaseURL,
		APIKey:  apiKey,
		Timeout: cfg.Provider.RequestTimeout,
	})
	if err != nil {
		return fmt.Errorf("creating provider client: %w", err)
	}

	// Domain services
	store := calendar.NewPostgresStore(pool)
	synchronizer := calendar.NewSynchronizer(provider, store, store, calendar.SynchronizerOptions{
		Reconcile:   dispatcher,
		Lookback:    cfg.Sync.SweepLookback,
		ThrottleTTL: cfg.Sync.ThrottleTTL,
		Logger:      logger,
		Metrics:     metrics,
	})
	scheduler := bot.NewScheduler(provider, store, bot.SchedulerOptions{
		PublicBaseURL: cfg.PublicBaseURL,
		Logger:        logger,
		Metrics:       metrics,
	})
	artifacts := transcript.NewPostgresStore(pool)
	pipeline := transcript.NewPipeline(transcript.PipelineOptions{
		Store:    artifacts,
		Provider: provider,
		Enricher: dispatcher,
		Metrics:  metrics,
		Logger:   logger,
	})
	enricher := transcript.NewEnricher(artifacts, logger)

	// Workers
	workerConfigs := workers.DefaultWorkerConfigs()
	manager := workers.NewPoolManager()
	manager.RegisterPool(workers.NewPool(workerConfigs[workers.WorkerTypeSync], syncQueue,
		workers.SyncHandler(synchronizer, store, cfg.Sync.SweepLookback), logger))
	manager.RegisterPool(workers.NewPool(workerConfigs[workers.WorkerTypeReconcile], reconcileQueue,
		workers.ReconcileHandler(scheduler, store, store), logger))
	manager.RegisterPool(workers.NewPool(workerConfigs[workers.WorkerTypeIngest], ingestQueue,
		workers.IngestHandler(pipeline), logger))
	manager.RegisterPool(workers.NewPool(workerConfigs[workers.WorkerTypeEnrich], enrichQueue,
		workers.EnrichHandler(enricher, logger), logger))
	manager.StartAll()
	defer manager.StopAll()

	sweeper := workers.NewSweeper(synchronizer, cfg.Sync.SweepInterval,
		[]*queues.RedisQueue{syncQueue, reconcileQueue, ingestQueue, enrichQueue}, logger)
	sweeper.Start()
	defer sweeper.Stop()

	// HTTP intake
	server := webhooks.NewServer(webhooks.ServerOptions{
		Calendars: store,
		Sync:      dispatcher,
		Ingest:    dispatcher,
		OnDemand:  synchronizer,
		Health: []webhooks.HealthChecker{
			webhooks.PingerFunc(func(ctx context.Context) error { return db.Ping(ctx, pool) }),
			webhooks.PingerFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }),
		},
		Metrics:  metrics,
		Registry: registry,
		Logger:   logger,
	})

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", logging.F("addr", cfg.ListenAddress))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("http server failed", logging.Err(err))
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", logging.Err(err))
	}
	return nil
}

// resolveAPIKey resolves the provider API key: config file first (container
// deployments), then RECALLD_API_KEY, then the credentials store.
func resolveAPIKey(cfg *config.ServiceConfig) (string, error) {
	if cfg.Provider.APIKey != "" {
		return cfg.Provider.APIKey, nil
	}
	if key := os.Getenv("RECALLD_API_KEY"); key != "" {
		return key, nil
	}
	store, err := credentials.NewStore()
	if err != nil {
		return "", fmt.Errorf("opening credentials store: %w", err)
	}
	key, err := store.GetActiveAPIKey()
	if err != nil {
		if errors.Is(err, credentials.ErrNoCredentials) {
			return "", fmt.Errorf("no provider API key configured; run 'recalld auth set-key' or set RECALLD_API_KEY")
		}
		return "", err
	}
	return key, nil
}
