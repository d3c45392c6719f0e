package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ThiagoRGoveia/refdict/internal/config"
	"github.com/ThiagoRGoveia/refdict/internal/database"
	"github.com/ThiagoRGoveia/refdict/internal/dictionary"
	"github.com/ThiagoRGoveia/refdict/internal/ingestion"
	"github.com/ThiagoRGoveia/refdict/internal/logging"
	"github.com/ThiagoRGoveia/refdict/internal/reader"
	"github.com/ThiagoRGoveia/refdict/internal/relations"
	"github.com/ThiagoRGoveia/refdict/internal/server"
)

func main() {
	if _, err := config.LoadEnv(".env", ".env.local"); err != nil {
		log.Fatalf("Error loading .env file: %v", err)
	}
	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbpool, err := database.ConnectDB(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		return fmt.Errorf("failed to connect to the database: %w", err)
	}
	defer dbpool.Close()

	dbManager := database.NewPostgresDBManager(dbpool, logger)
	generator := relations.NewGenerator(dbManager, relations.GeneratorConfig{
		Workers: cfg.RelationWorkers,
		Timeout: cfg.RelationTimeout,
	}, logger)
	asyncWorker := ingestion.NewAsyncWorker(dbManager, ingestion.AsyncWorkerConfig{DBBatchSize: cfg.ImportBatchSize}, logger)

	handler := server.NewHandler(server.Services{
		Dictionaries: dictionary.NewService(dbManager, logger),
		Importer:     ingestion.NewIngestionService(dbManager, asyncWorker, generator, logger),
		Relations:    generator,
		Reader:       reader.NewService(dbManager, logger),
		Health:       dbpool,
	}, cfg.MaxUploadBytes, logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.APIPort),
		Handler:           server.SetupRoutes(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("port", cfg.APIPort))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
