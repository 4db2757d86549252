package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gpress/aggregator/internal/config"
	"gpress/aggregator/internal/database"
	"gpress/aggregator/internal/enrich"
	"gpress/aggregator/internal/ingest"
	"gpress/aggregator/internal/llm"
	"gpress/aggregator/internal/retention"
	"gpress/aggregator/internal/scheduler"
	"gpress/aggregator/internal/scraper"
	"gpress/aggregator/internal/server"
	"gpress/aggregator/internal/sources"
	"gpress/aggregator/internal/store"
)

func init() {
	// .env is optional; environment variables win when both are set.
	_ = godotenv.Load()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02 15:04:05"})
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

func usage() {
	fmt.Println("Usage: gpress [command] [options]")
	fmt.Println("Commands: start, sweep, server")
	fmt.Println("\nFor command-specific options, use: gpress [command] -h")
}

func main() {
	cfg := config.DefaultConfig()

	startCmd := flag.NewFlagSet("start", flag.ExitOnError)
	startCmd.StringVar(&cfg.DBPath, "db", config.GetEnvString("GPRESS_DB_PATH", config.DefaultDBPath),
		"Path to the SQLite database file (env: GPRESS_DB_PATH)")
	startCmd.StringVar(&cfg.ScrapersDir, "scrapers", config.GetEnvString("GPRESS_SCRAPERS_DIR", config.DefaultScrapersDir),
		"Directory containing the scraper scripts (env: GPRESS_SCRAPERS_DIR)")

	var startLogLevelStr string
	startCmd.StringVar(&startLogLevelStr, "log-level", config.GetEnvString("GPRESS_LOG_LEVEL", config.DefaultLogLevel),
		"Log level: debug, info, warn, error (env: GPRESS_LOG_LEVEL)")

	var intervalMinutes int
	startCmd.IntVar(&intervalMinutes, "interval", config.GetEnvInt("GPRESS_INTERVAL", config.DefaultPipelineInterval),
		"Interval in minutes between pipeline runs, 0 for one-shot mode (env: GPRESS_INTERVAL)")

	startCmd.IntVar(&cfg.RetentionDays, "retention", config.GetEnvInt("GPRESS_RETENTION_DAYS", config.DefaultRetentionDays),
		"Number of days to retain articles (env: GPRESS_RETENTION_DAYS)")

	var scraperTimeoutMinutes int
	startCmd.IntVar(&scraperTimeoutMinutes, "scraper-timeout", config.GetEnvInt("GPRESS_SCRAPER_TIMEOUT", config.DefaultScraperTimeout),
		"Minutes before a scraper process is killed (env: GPRESS_SCRAPER_TIMEOUT)")

	sweepCmd := flag.NewFlagSet("sweep", flag.ExitOnError)
	sweepCmd.StringVar(&cfg.DBPath, "db", config.GetEnvString("GPRESS_DB_PATH", config.DefaultDBPath),
		"Path to the SQLite database file (env: GPRESS_DB_PATH)")

	var sweepDays int
	sweepCmd.IntVar(&sweepDays, "days", config.GetEnvInt("GPRESS_SWEEP_DAYS", config.DefaultAdHocRetentionDays),
		"Number of days of articles to keep (env: GPRESS_SWEEP_DAYS)")

	var sweepLogLevelStr string
	sweepCmd.StringVar(&sweepLogLevelStr, "log-level", config.GetEnvString("GPRESS_LOG_LEVEL", config.DefaultLogLevel),
		"Log level: debug, info, warn, error (env: GPRESS_LOG_LEVEL)")

	serverCmd := flag.NewFlagSet("server", flag.ExitOnError)
	serverCmd.StringVar(&cfg.DBPath, "db", config.GetEnvString("GPRESS_DB_PATH", config.DefaultDBPath),
		"Path to the SQLite database file (env: GPRESS_DB_PATH)")
	serverCmd.StringVar(&cfg.ServerHost, "host", config.GetEnvString("GPRESS_HOST", config.DefaultServerHost),
		"Host to bind the server to (env: GPRESS_HOST)")
	serverCmd.IntVar(&cfg.ServerPort, "port", config.GetEnvInt("GPRESS_PORT", config.DefaultServerPort),
		"Port to listen on (env: GPRESS_PORT)")

	var serverLogLevelStr string
	serverCmd.StringVar(&serverLogLevelStr, "log-level", config.GetEnvString("GPRESS_LOG_LEVEL", config.DefaultLogLevel),
		"Log level: debug, info, warn, error (env: GPRESS_LOG_LEVEL)")

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "start":
		startCmd.Parse(os.Args[2:])

		if level, err := zerolog.ParseLevel(startLogLevelStr); err == nil {
			cfg.LogLevel = level
		}
		cfg.PipelineInterval = time.Duration(intervalMinutes) * time.Minute
		cfg.ScraperTimeout = time.Duration(scraperTimeoutMinutes) * time.Minute

		zerolog.SetGlobalLevel(cfg.LogLevel)

		if err := runStart(cfg); err != nil {
			log.Error().Err(err).Msg("Pipeline failed")
			os.Exit(1)
		}

	case "sweep":
		sweepCmd.Parse(os.Args[2:])

		if level, err := zerolog.ParseLevel(sweepLogLevelStr); err == nil {
			cfg.LogLevel = level
		}

		zerolog.SetGlobalLevel(cfg.LogLevel)

		if err := runSweep(cfg, sweepDays); err != nil {
			log.Error().Err(err).Msg("Sweep failed")
			os.Exit(1)
		}

	case "server":
		serverCmd.Parse(os.Args[2:])

		if level, err := zerolog.ParseLevel(serverLogLevelStr); err == nil {
			cfg.LogLevel = level
		}

		zerolog.SetGlobalLevel(cfg.LogLevel)

		if err := runServer(cfg); err != nil {
			log.Error().Err(err).Msg("Server failed")
			os.Exit(1)
		}

	case "-h", "--help", "help":
		usage()
		os.Exit(0)

	default:
		log.Error().Str("command", os.Args[1]).Msg("Unknown command")
		usage()
		os.Exit(1)
	}
}

// buildStores opens one article store per configured source.
func buildStores(db *database.DB) []*store.ArticleStore {
	stores := make([]*store.ArticleStore, 0, len(sources.All()))
	for _, src := range sources.All() {
		stores = append(stores, store.NewArticleStore(db, src))
	}
	return stores
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-shutdown
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
		cancel()
	}()

	return ctx, cancel
}

// runStart runs the ingestion and enrichment pipeline, either once or
// periodically, together with the daily retention sweep.
func runStart(cfg *config.Config) error {
	if cfg.PipelineInterval <= 0 {
		log.Info().Msg("Running in one-shot mode")
	} else {
		log.Info().Int64("interval_minutes", int64(cfg.PipelineInterval.Minutes())).Msg("Running in periodic mode")
	}

	db, err := database.NewDB(database.NewConfig(cfg.DBPath))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	ctx, cancel := signalContext()
	defer cancel()

	llmClient, err := llm.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		return fmt.Errorf("failed to initialize gemini client: %w", err)
	}
	defer llmClient.Close()

	stores := buildStores(db)
	questions := store.NewQuestionStore(db)
	runner := scraper.NewRunner(cfg.ScrapersDir, cfg.ScraperTimeout)

	ingester := ingest.NewEngine(runner, stores)
	enricher := enrich.NewEngine(llmClient, stores, questions)
	sweeper := retention.NewSweeper(stores, questions)

	sched := scheduler.New(ingester, enricher, sweeper,
		cfg.PipelineInterval, cfg.SweepInterval, cfg.RetentionDays)

	if cfg.PipelineInterval <= 0 {
		sched.RunPipelineCycle(ctx)
		log.Info().Msg("One-shot run completed, exiting")
		return nil
	}

	sched.Run(ctx)
	return nil
}

// runSweep deletes articles older than the given window and exits.
func runSweep(cfg *config.Config, days int) error {
	db, err := database.NewDB(database.NewConfig(cfg.DBPath))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	ctx, cancel := signalContext()
	defer cancel()

	sweeper := retention.NewSweeper(buildStores(db), store.NewQuestionStore(db))
	result := sweeper.Sweep(ctx, days)

	log.Info().
		Int64("articles_deleted", result.ArticlesDeleted).
		Int64("questions_deleted", result.QuestionsDeleted).
		Msg("Sweep completed")
	return nil
}

// runServer serves the HTTP API until interrupted.
func runServer(cfg *config.Config) error {
	db, err := database.NewDB(database.NewConfig(cfg.DBPath))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	ctx, cancel := signalContext()
	defer cancel()

	llmClient, err := llm.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		return fmt.Errorf("failed to initialize gemini client: %w", err)
	}
	defer llmClient.Close()

	stores := buildStores(db)
	questions := store.NewQuestionStore(db)
	enricher := enrich.NewEngine(llmClient, stores, questions)

	return server.RunServer(ctx, db, stores, questions, enricher, cfg.ListenAddr(), log.Logger, cfg.APIKey)
}
