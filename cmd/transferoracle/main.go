package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/subosito/gotenv"

	"github.com/rewired-gh/transferoracle/internal/analysis"
	"github.com/rewired-gh/transferoracle/internal/config"
	"github.com/rewired-gh/transferoracle/internal/evaluator"
	"github.com/rewired-gh/transferoracle/internal/fixtures"
	"github.com/rewired-gh/transferoracle/internal/httpapi"
	"github.com/rewired-gh/transferoracle/internal/laliga"
	"github.com/rewired-gh/transferoracle/internal/logger"
	"github.com/rewired-gh/transferoracle/internal/metrics"
	"github.com/rewired-gh/transferoracle/internal/signals"
	"github.com/rewired-gh/transferoracle/internal/storage"
	"github.com/rewired-gh/transferoracle/internal/telegram"
	"github.com/rewired-gh/transferoracle/internal/transfers"
	"github.com/rewired-gh/transferoracle/internal/unifier"
)

const (
	defaultConfigPath = "configs/config.yaml"
	shutdownTimeout   = 10 * time.Second
	filePermissions   = 0644
	dirPermissions    = 0755
)

var version = "dev"

var (
	configPath = flag.String("config", defaultConfigPath, "Path to configuration file")
	envPath    = flag.String("env", ".env", "Path to an optional .env file")
	once       = flag.Bool("once", false, "Run one analysis, print the report as JSON and exit")
)

func main() {
	flag.Parse()

	// Variables already set in the environment win over .env
	if err := gotenv.Load(*envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("Failed to load %s: %v", *envPath, err)
	}

	// A missing default config file falls back to defaults and environment
	path := *configPath
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && path == defaultConfigPath {
		path = ""
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	if path != "" {
		logger.Info("Configuration loaded from %s", path)
	} else {
		logger.Info("No configuration file, using defaults and environment")
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	recorder := metrics.NewRecorder()
	r := &runner{recorder: recorder, now: time.Now}

	// Initialize snapshot download
	if cfg.LaLiga.Enabled {
		client := laliga.NewClient(ctx, cfg.LaLiga.APIBaseURL, cfg.Credentials(), cfg.LaLiga.Timeout,
			laliga.WithRetries(cfg.LaLiga.MaxRetries, cfg.LaLiga.RetryDelay))
		r.downloader = laliga.NewDownloader(client, cfg.Data.Root, cfg.LaLiga.LeagueID, filePermissions, dirPermissions)
		logger.Info("Snapshot download enabled for league %s", cfg.LaLiga.LeagueID)
	} else {
		logger.Debug("Snapshot download disabled, reading %s as is", cfg.Data.Root)
	}

	sessionOpts := []analysis.Option{
		analysis.WithEvaluatorOptions(
			evaluator.WithWeights(cfg.Evaluator.Weights),
			evaluator.WithConstants(cfg.Evaluator.Constants),
		),
		analysis.WithFixtureOptions(
			fixtures.WithHomeAdvantage(cfg.Fixtures.HomeAdvantage),
			fixtures.WithAwayPenalty(cfg.Fixtures.AwayPenalty),
			fixtures.WithHorizonWeights(cfg.Fixtures.HorizonWeights...),
		),
		analysis.WithSearchOptions(
			transfers.WithThreshold(cfg.Transfers.Threshold),
			transfers.WithSamePosition(cfg.Transfers.SamePosition),
			transfers.WithWorkers(cfg.Transfers.Workers),
		),
	}

	// Initialize signal enrichment
	if cfg.Signals.Enabled {
		store, err := storage.New(cfg.Signals.CachePath, dirPermissions)
		if err != nil {
			logger.Fatal("Failed to initialize signal cache: %v", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Error("Failed to close signal cache: %v", err)
			}
		}()

		names, err := signals.LoadNameMapper(cfg.Signals.NameMappingFile)
		if err != nil {
			logger.Fatal("Failed to load name mapping: %v", err)
		}
		scraper := signals.NewScraper(cfg.Signals.BaseURL, cfg.Signals.Timeout, cfg.BreakerSettings())
		newGateway := func() *signals.Gateway {
			return signals.NewGateway(scraper,
				signals.WithCache(store),
				signals.WithNameMapper(names),
				signals.WithMaxLookups(cfg.Signals.MaxPerRun),
			)
		}
		sessionOpts = append(sessionOpts, analysis.WithEnricher(r.newEnricher(newGateway)))
		logger.Info("Signal enrichment enabled (%d name mappings, cache %s)", names.Len(), cfg.Signals.CachePath)
	} else {
		logger.Debug("Signal enrichment disabled, neutral defaults apply")
	}

	session := analysis.New(unifier.NewLoader(cfg.Data.Root), analysis.Settings{
		TeamName:              cfg.Data.TeamName,
		Horizon:               cfg.Data.Horizon,
		MaxResults:            cfg.Transfers.MaxResults,
		CandidatesPerPosition: cfg.Transfers.CandidatesPerPosition,
		EnrichSquad:           cfg.Signals.EnrichSquad,
	}, sessionOpts...)
	r.session = session

	// Initialize Telegram client
	if cfg.Telegram.Enabled {
		telegramClient, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelay)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		r.notifier = telegramClient
		r.cooldown = analysis.NewCooldown(cfg.Telegram.Cooldown)
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	if *once || (!cfg.Schedule.Enabled && !cfg.Server.Enabled) {
		report, err := r.run(ctx)
		if err != nil {
			logger.Fatal("%v", err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			logger.Fatal("Failed to write report: %v", err)
		}
		return
	}

	serve(ctx, cancel, cfg, r, session, recorder)
}

// serve runs the HTTP API and the scheduler until ctx is cancelled.
func serve(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, r *runner, session *analysis.Session, recorder *metrics.Recorder) {
	var srv *http.Server
	if cfg.Server.Enabled {
		srv = &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           httpapi.New(session, r.run, recorder, version).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("HTTP API listening on %s", cfg.Server.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server failed: %v", err)
				cancel()
			}
		}()
	}

	// Run initial analysis immediately
	if _, err := r.run(ctx); err != nil {
		logger.Error("Initial analysis failed: %v", err)
	}

	var scheduler *cron.Cron
	if cfg.Schedule.Enabled {
		cronLogger := cron.PrintfLogger(logger.WithField("component", "scheduler"))
		scheduler = cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.SkipIfStillRunning(cronLogger)),
		)
		if _, err := scheduler.AddFunc(cfg.Schedule.Spec, func() {
			if _, err := r.run(ctx); err != nil {
				logger.Error("Scheduled analysis failed: %v", err)
			}
		}); err != nil {
			logger.Fatal("Failed to schedule analysis: %v", err)
		}
		scheduler.Start()
		logger.Info("Scheduled analysis with spec %q", cfg.Schedule.Spec)
	}

	<-ctx.Done()

	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	if srv != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown failed: %v", err)
		}
	}
	logger.Info("Service stopped")
}
