package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/punchamoorthee/bucksops/internal/api"
	"github.com/punchamoorthee/bucksops/internal/config"
	"github.com/punchamoorthee/bucksops/internal/service"
	"github.com/punchamoorthee/bucksops/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.TimeKey = "timestamp"
	if cfg.Env == "development" {
		zapConfig = zap.NewDevelopmentConfig()
	}
	logger, err := zapConfig.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := runMigrations(cfg.MigrationsURL, cfg.DBSource); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}
	logger.Info("Database migrations completed")

	db, err := store.NewPostgres(context.Background(), cfg.DBSource)
	if err != nil {
		logger.Fatal("Unable to connect to database", zap.Error(err))
	}
	defer db.Close()

	auth := service.NewAuth(db, cfg.TokenSecret, cfg.TokenTTL, cfg.StartingBalance,
		logger.With(zap.String("component", "Auth")))
	engine := service.NewEngine(db, db, db,
		logger.With(zap.String("component", "Engine")))
	handler := api.NewHandler(engine, auth, logger.With(zap.String("component", "HTTPHandler")))
	router := api.NewRouter(handler, auth, logger.With(zap.String("component", "HTTP")))

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	} else {
		logger.Info("Server stopped")
	}
}

func runMigrations(sourceURL, dbSource string) error {
	m, err := migrate.New(sourceURL, dbSource)
	if err != nil {
		return fmt.Errorf("migrate init: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}
