// Kestrel - Social account scoring that deploys in 60 seconds.
// Copyright (c) 2025 opensource.social
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opensource-social/kestrel/internal/api"
	"github.com/opensource-social/kestrel/internal/bus"
	"github.com/opensource-social/kestrel/internal/cache"
	"github.com/opensource-social/kestrel/internal/config"
	"github.com/opensource-social/kestrel/internal/domain"
	"github.com/opensource-social/kestrel/internal/history"
	"github.com/opensource-social/kestrel/internal/insight"
	"github.com/opensource-social/kestrel/internal/repository"
	"github.com/opensource-social/kestrel/internal/score"
	"github.com/opensource-social/kestrel/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("KESTREL_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting kestrel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("KESTREL_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize engine parameter stores with the baked-in defaults
	audienceCfg, err := config.NewStore(domain.EngineAudienceQuality, domain.DefaultAudienceQualityParams())
	if err != nil {
		slog.Error("failed to initialize audience config store", "error", err)
		os.Exit(1)
	}
	hopsCfg, err := config.NewStore(domain.EngineHops, domain.DefaultHopsParams())
	if err != nil {
		slog.Error("failed to initialize hops config store", "error", err)
		os.Exit(1)
	}
	scoreCfg, err := config.NewStore(domain.EngineTwitterScore, domain.DefaultTwitterScoreParams())
	if err != nil {
		slog.Error("failed to initialize score config store", "error", err)
		os.Exit(1)
	}
	slog.Info("config stores initialized",
		"engines", []string{domain.EngineAudienceQuality, domain.EngineHops, domain.EngineTwitterScore},
	)

	// Initialize Insight Engine with the default CEL rule set
	insights, err := insight.NewEngine()
	if err != nil {
		slog.Error("failed to initialize insight engine", "error", err)
		os.Exit(1)
	}
	if err := insights.LoadRules(insight.DefaultRules()); err != nil {
		slog.Error("failed to load insight rules", "error", err)
		os.Exit(1)
	}
	slog.Info("insight engine initialized", "rules_count", insights.RulesCount())

	// Initialize History Service (score-history trend fallback)
	trends := history.NewService(repo, logger)
	slog.Info("history service initialized")

	// Initialize Score Engine
	scorer := score.NewEngine(insights, trends)

	// Initialize async Worker (Pro tier or opt-in)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("KESTREL_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, repo, scorer, scoreCfg)
		if err := asyncWorker.Start(); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started")
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, scorer, audienceCfg, hopsCfg, scoreCfg, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("kestrel is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("kestrel shutdown complete")
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🪶 KESTREL                  ║")
	fmt.Println("  ║       Social Account Scoring Engine       ║")
	fmt.Println("  ║        Eyes on every account.             ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints (under /api/connections):")
	fmt.Println("    POST  /{engine}                      - Compute a score")
	fmt.Println("    POST  /{engine}/batch                - Compute a batch (max 50)")
	fmt.Println("    GET   /{engine}/info                 - Engine description")
	fmt.Println("    GET   /{engine}/mock                 - Deterministic sample results")
	fmt.Println("    GET   /{engine}/config               - Live parameters")
	fmt.Println("    PATCH /admin/{engine}/config         - Patch parameters")
	fmt.Println("    GET   /admin/{engine}/config/history - Config audit trail")
	fmt.Println("    GET   /results/{engine}/{account_id} - Latest persisted result")
	fmt.Println("    PUT   /graphs/{id}                   - Store a graph snapshot")
	fmt.Println("    POST  /twitter-score/async           - Queue async scoring")
	fmt.Println("    GET   /health                        - Health check")
	fmt.Println()
	fmt.Println("  Engines: audience-quality, hops, twitter-score")
	fmt.Println()
}
