package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MikeSquared-Agency/arbiter/internal/api"
	"github.com/MikeSquared-Agency/arbiter/internal/config"
	"github.com/MikeSquared-Agency/arbiter/internal/curve"
	"github.com/MikeSquared-Agency/arbiter/internal/exitguard"
	"github.com/MikeSquared-Agency/arbiter/internal/hermes"
	"github.com/MikeSquared-Agency/arbiter/internal/processor"
	"github.com/MikeSquared-Agency/arbiter/internal/reputation"
	"github.com/MikeSquared-Agency/arbiter/internal/store"
	"github.com/MikeSquared-Agency/arbiter/internal/tier"
	"github.com/MikeSquared-Agency/arbiter/internal/trust"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("arbiter starting", "port", cfg.Port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	params, err := config.LoadParams(cfg.ParamsFile)
	if err != nil {
		slog.Error("failed to load scoring parameters", "file", cfg.ParamsFile, "error", err)
		os.Exit(1)
	}

	// Scoring engines
	bondingCurve, err := curve.New(params.Curve)
	if err != nil {
		slog.Error("invalid curve parameters", "error", err)
		os.Exit(1)
	}
	trustEngine, err := trust.NewEngine(params.Trust)
	if err != nil {
		slog.Error("invalid trust parameters", "error", err)
		os.Exit(1)
	}
	repEngine, err := reputation.NewEngine(params.Reputation, bondingCurve)
	if err != nil {
		slog.Error("invalid reputation parameters", "error", err)
		os.Exit(1)
	}
	classifier, err := tier.New(params.Tier)
	if err != nil {
		slog.Error("invalid tier parameters", "error", err)
		os.Exit(1)
	}
	guard, err := exitguard.New(params.ExitGuard)
	if err != nil {
		slog.Error("invalid exit guard parameters", "error", err)
		os.Exit(1)
	}

	// Database
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		slog.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("database connected")

	// NATS/Hermes
	hermesClient, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
	if err != nil {
		slog.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer hermesClient.Close()
	slog.Info("NATS connected", "url", cfg.NatsURL)

	proc := processor.New(db, hermesClient, processor.Engines{
		Trust:      trustEngine,
		Reputation: repEngine,
		Tier:       classifier,
	}, slog.Default())

	if err := hermesClient.Subscribe(hermes.SubjectSignalIndexed, proc.HandleSignalIndexed); err != nil {
		slog.Error("failed to subscribe to signal events", "error", err)
		os.Exit(1)
	}

	// Periodic rescoring so decay and stability advance without new signals
	sched, err := processor.NewScheduler(ctx, proc, cfg.RescoreCron, cfg.SweepLimit, slog.Default())
	if err != nil {
		slog.Error("invalid rescore schedule", "cron", cfg.RescoreCron, "error", err)
		os.Exit(1)
	}
	sched.Start()
	defer sched.Stop()

	// HTTP API
	srv := api.NewServer(api.Options{
		Port:      cfg.Port,
		APIToken:  cfg.APIToken,
		Curve:     bondingCurve,
		Guard:     guard,
		Ledger:    db,
		Scorer:    proc,
		DB:        db,
		Messaging: hermesClient,
		Logger:    slog.Default(),
	})
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	// Announce registration
	if err := hermesClient.Publish("swarm.agent.arbiter.registered", map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"port":      cfg.Port,
	}); err != nil {
		slog.Warn("failed to publish registration", "error", err)
	}

	if cfg.APIToken == "" {
		slog.Warn("ARBITER_API_TOKEN not set, rescore endpoint is closed")
	}
	slog.Info("arbiter ready", "port", cfg.Port, "rescore_cron", cfg.RescoreCron)

	// Graceful shutdown
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown incomplete", "error", err)
	}
	slog.Info("arbiter stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
