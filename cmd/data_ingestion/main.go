package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ThiagoRGoveia/refdict/internal/config"
	"github.com/ThiagoRGoveia/refdict/internal/database"
	"github.com/ThiagoRGoveia/refdict/internal/logging"
)

// app holds what every subcommand needs once the environment is loaded.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	dbpool    *pgxpool.Pool
	dbManager *database.PostgresDBManager
}

func (a *app) setup(ctx context.Context) error {
	if _, err := config.LoadEnv(".env", ".env.local"); err != nil {
		return fmt.Errorf("failed to load .env file: %w", err)
	}
	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	dbpool, err := database.ConnectDB(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		return fmt.Errorf("unable to connect to database: %w", err)
	}

	a.cfg = cfg
	a.logger = logger
	a.dbpool = dbpool
	a.dbManager = database.NewPostgresDBManager(dbpool, logger)
	return nil
}

func (a *app) cleanup() {
	if a.dbpool != nil {
		a.dbpool.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func newRootCmd(a *app) *cobra.Command {
	var startTime time.Time
	root := &cobra.Command{
		Use:           "data_ingestion",
		Short:         "Maintain reference dictionaries: schema setup, table import and hierarchy generation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			startTime = time.Now()
			return a.setup(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			a.logger.Info("finished", zap.String("command", cmd.Name()), zap.Duration(logging.FieldDuration, time.Since(startTime)))
		},
	}
	root.AddCommand(newSetupCmd(a), newImportCmd(a), newRelationsCmd(a))
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a := &app{}

	err := newRootCmd(a).ExecuteContext(ctx)
	stop()
	a.cleanup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
