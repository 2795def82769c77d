package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/facility-booking-backend/internal/app"
	"github.com/nekogravitycat/facility-booking-backend/internal/config"
	"github.com/nekogravitycat/facility-booking-backend/internal/db"
	"github.com/nekogravitycat/facility-booking-backend/internal/logging"
)

func main() {
	// For receiving Ctrl+C / SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect DB
	pool, err := db.NewPool(ctx, cfg.DBDSN, cfg.DBMaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to db")
	}
	defer pool.Close()

	container, err := app.NewContainer(app.Config{
		IsProduction:     cfg.IsProduction,
		ProdOrigins:      cfg.ProdOrigins,
		DBPool:           pool,
		PaymentTTL:       cfg.PaymentTTL,
		PaymentSweepCron: cfg.PaymentSweepCron,
		WebhookSecret:    cfg.WebhookSecret,
		PublicBaseURL:    cfg.PublicBaseURL,
		Logger:           logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize application")
	}

	container.Scheduler.Start()

	// Use http.Server for graceful shutdown
	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: container.Router,
	}

	// Run server in separate goroutine
	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("server running")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for Ctrl+C
	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	if err := container.Scheduler.Stop(); err != nil {
		logger.Warn().Err(err).Msg("scheduler shutdown error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}
	logger.Info().Msg("server stopped")
}
