package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/content-aggregator/internal/config"
	"github.com/content-aggregator/internal/fetch"
	"github.com/content-aggregator/internal/platform"
	"github.com/content-aggregator/internal/platform/github"
	"github.com/content-aggregator/internal/platform/medium"
	"github.com/content-aggregator/internal/platform/reddit"
	"github.com/content-aggregator/internal/platform/zsxq"
	"github.com/content-aggregator/internal/scheduler"
	"github.com/content-aggregator/internal/storage"
	"github.com/content-aggregator/internal/storage/sqlite"
	"github.com/content-aggregator/internal/task"
	"github.com/content-aggregator/pkg/logger"
	"github.com/content-aggregator/pkg/ratelimit"
)

var (
	cfgFile string
	cfg     *config.Config
	log     *logger.Logger
	repo    storage.Repository
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "aggregator-scheduler",
		Short: "Background scheduler for the content aggregator",
		Long: `Runs scheduled content fetches across all tracked users in the background.
This daemon should be run as a service for autonomous operation.`,
		RunE: runScheduler,
	}

	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file path")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runScheduler(cmd *cobra.Command, args []string) error {
	var err error

	// Load config
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	log = logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	log.Info().Msg("Starting Content Aggregator Scheduler")

	repo, err = sqlite.New(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer repo.Close()

	if err := repo.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Start health check server
	go startHealthServer()

	// Initialize rate limiter and platform adapters
	limiter := ratelimit.NewDefaultLimiter()
	registry := platform.NewRegistry(log,
		github.New(limiter, log),
		reddit.New(limiter, log),
		medium.New(limiter, log),
		zsxq.New(limiter, log),
	)

	tracker := task.NewTracker(repo, log)
	orchestrator := fetch.NewOrchestrator(repo, registry, tracker, fetch.Options{
		PageSize:      cfg.Fetch.PageSize,
		MaxPages:      cfg.Fetch.MaxPages,
		RunTimeout:    cfg.Fetch.RunTimeout,
		RetryAttempts: cfg.Fetch.RetryAttempts,
		RetryBackoff:  cfg.Fetch.RetryBackoff,
		Workers:       cfg.Fetch.Workers,
	}, log)
	trigger := scheduler.NewTrigger(repo, orchestrator, log)

	if !cfg.Scheduler.Enabled {
		log.Warn().Msg("Scheduler disabled in config, nothing to do")
		return nil
	}

	// Create cron scheduler
	c := cron.New(cron.WithLogger(cronLogger{log}), cron.WithChain(
		cron.SkipIfStillRunning(cronLogger{log}),
	))

	_, err = c.AddFunc(cfg.Scheduler.FetchCron, func() {
		ctx := context.Background()
		log.Info().Msg("Running scheduled fetch tick")

		summary, err := trigger.Tick(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Scheduled fetch tick failed")
			return
		}

		log.Info().
			Int("eligible", summary.Eligible).
			Int("submitted", summary.Submitted).
			Int("skipped", summary.Skipped).
			Msg("Scheduled fetch tick completed")
	})
	if err != nil {
		return fmt.Errorf("failed to schedule fetch job: %w", err)
	}
	log.Info().Str("cron", cfg.Scheduler.FetchCron).Msg("Fetch job scheduled")

	// Start scheduler
	c.Start()
	log.Info().Msg("Scheduler started")

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("Shutting down scheduler")
	<-c.Stop().Done()
	orchestrator.Shutdown()

	return nil
}

// cronLogger adapts our logger for cron
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Info().Msgf(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Msgf(msg, keysAndValues...)
}

// startHealthServer starts a simple HTTP server for health checks
func startHealthServer() {
	addr := cfg.Server.Addr
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}

	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Content Aggregator Scheduler"))
	})

	log.Info().Str("addr", addr).Msg("Health check server starting")
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Error().Err(err).Msg("Health server failed")
	}
}
