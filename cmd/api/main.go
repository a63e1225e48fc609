package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"surety-registry-api/db"
	"surety-registry-api/internal"
	"surety-registry-api/internal/config"
	"surety-registry-api/internal/logging"
	"surety-registry-api/internal/store"
)

func main() {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.LoadAndValidate()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Logger error: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	if cfg.DatabaseDSN == "" {
		return errors.New("DB_DSN environment variable is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, pool, err := store.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}

	if cfg.AutoMigrate {
		applied, err := db.Migrate(ctx, conn)
		if err != nil {
			return err
		}
		logger.Info("migrations applied", zap.Strings("files", applied))
	}

	srv, err := internal.NewServer(cfg, conn, pool, logger)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting surety registry API",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("jwt_issuer", cfg.JWTIssuer),
			zap.String("jwt_audience", cfg.JWTAudience),
			zap.Duration("jwt_expiry", cfg.JWTExpiry),
			zap.Int("court_stations", len(cfg.CourtStations)),
		)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			srv.Close(context.Background())
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
	return srv.Close(shutdownCtx)
}
