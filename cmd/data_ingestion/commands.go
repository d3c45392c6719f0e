package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ThiagoRGoveia/refdict/internal/ingestion"
	"github.com/ThiagoRGoveia/refdict/internal/logging"
	"github.com/ThiagoRGoveia/refdict/internal/models"
	"github.com/ThiagoRGoveia/refdict/internal/relations"
)

func newSetupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Create the dictionary tables if they do not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.dbManager.CreateTables(cmd.Context())
		},
	}
}

func newImportCmd(a *app) *cobra.Command {
	var dictionaryID int64
	var force bool

	cmd := &cobra.Command{
		Use:   "import PATH",
		Short: "Import a .csv/.xlsx file, or every such file below a directory, into a dictionary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			processor := ingestion.NewFileProcessor(newIngestionService(a), a.logger)
			files, err := processor.ScanForFiles(args[0])
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("no .csv or .xlsx files found in %s", args[0])
			}

			failed := 0
			for _, outcome := range processor.ProcessFiles(cmd.Context(), dictionaryID, files, force) {
				if outcome.Err != nil {
					failed++
					continue
				}
				a.logger.Info("file imported",
					zap.String("path", outcome.Path),
					zap.Int("rows_imported", outcome.Result.RowsImported),
					zap.Int("rows_skipped", outcome.Result.RowsSkipped),
					zap.Int("relations_created", outcome.Result.Relations.Created),
					zap.Bool("with_errors", outcome.Result.HasErrors()),
				)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed to import", failed, len(files))
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&dictionaryID, "dictionary", 0, "target dictionary id")
	cmd.Flags().BoolVar(&force, "force", false, "import even if an identical table was already imported")
	_ = cmd.MarkFlagRequired("dictionary")
	return cmd
}

func newRelationsCmd(a *app) *cobra.Command {
	var dictionaryID, positionID int64

	cmd := &cobra.Command{
		Use:   "relations",
		Short: "Regenerate parent/child relations of a dictionary or of one position",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			generator := newGenerator(a)

			var result models.RelationResult
			var err error
			if positionID > 0 {
				result, err = generator.ForPosition(cmd.Context(), dictionaryID, positionID)
			} else {
				result, err = generator.ForDictionary(cmd.Context(), dictionaryID)
			}
			if err != nil {
				return err
			}

			a.logger.Info("relations regenerated",
				zap.Int64(logging.FieldDictionaryID, dictionaryID),
				zap.Int("positions", result.Positions),
				zap.Int("created", result.Created),
				zap.Int("skipped", result.Skipped),
				zap.Int("failed", result.Failed),
				zap.Int64s("failed_positions", result.FailedPositions),
			)
			if result.Failed > 0 || len(result.FailedPositions) > 0 {
				return fmt.Errorf("relation generation finished with %d rejected relations and %d failed positions",
					result.Failed, len(result.FailedPositions))
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&dictionaryID, "dictionary", 0, "dictionary id")
	cmd.Flags().Int64Var(&positionID, "position", 0, "only regenerate this position")
	_ = cmd.MarkFlagRequired("dictionary")
	return cmd
}

func newGenerator(a *app) *relations.Generator {
	return relations.NewGenerator(a.dbManager, relations.GeneratorConfig{
		Workers: a.cfg.RelationWorkers,
		Timeout: a.cfg.RelationTimeout,
	}, a.logger)
}

func newIngestionService(a *app) *ingestion.IngestionService {
	asyncWorker := ingestion.NewAsyncWorker(a.dbManager, ingestion.AsyncWorkerConfig{DBBatchSize: a.cfg.ImportBatchSize}, a.logger)
	return ingestion.NewIngestionService(a.dbManager, asyncWorker, newGenerator(a), a.logger)
}
