package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	httpapi "github.com/mafia-engine/mafia-engine/internal/api/http"
	"github.com/mafia-engine/mafia-engine/internal/application/actions"
	"github.com/mafia-engine/mafia-engine/internal/application/phase"
	"github.com/mafia-engine/mafia-engine/internal/application/registry"
	"github.com/mafia-engine/mafia-engine/internal/config"
	"github.com/mafia-engine/mafia-engine/internal/infrastructure/postgres"
	"github.com/mafia-engine/mafia-engine/internal/infrastructure/scheduler"
	"github.com/mafia-engine/mafia-engine/internal/transport"
)

func main() {
	_ = godotenv.Load()

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db error: %v", err)
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool, cfg.MigrationsDir); err != nil {
		log.Fatalf("migration error: %v", err)
	}

	// infrastructure
	gameRepo := postgres.NewGameRepository(pool)
	sched := scheduler.NewTimerScheduler(logger)
	msgr := transport.NewLogMessenger(logger)

	// services
	reg := registry.New(gameRepo, logger)
	actionSvc := actions.NewManager(reg, sched, msgr, logger)
	phaseSvc := phase.NewService(reg, actionSvc, sched, msgr, logger)

	// hydrate persisted sessions and re-arm their deadlines
	if _, err := reg.LoadAll(ctx); err != nil {
		log.Fatalf("load error: %v", err)
	}
	phaseSvc.RescheduleAll(ctx)

	// API server
	apiServer := httpapi.NewServer(phaseSvc, cfg.AdminTokenHash)

	httpServer := &http.Server{
		Addr:         cfg.AdminAddr,
		Handler:      apiServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// background loops
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			for _, id := range reg.IDs() {
				_ = actionSvc.SweepExpired(context.Background(), id)
			}
		}
	}()

	// start server
	go func() {
		logger.Info().Str("addr", cfg.AdminAddr).Msg("admin server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("admin server failed")
		}
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.FlushTimeout)
	defer cancel()
	_ = httpServer.Shutdown(ctxShutdown)
	sched.Close()
	if err := reg.FlushAll(ctxShutdown); err != nil {
		logger.Error().Err(err).Msg("flush on shutdown failed")
	}
	reg.Close()
	logger.Info().Msg("shutdown complete")
}
