package ingestion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ThiagoRGoveia/refdict/internal/logging"
	"github.com/ThiagoRGoveia/refdict/internal/models"
	"github.com/ThiagoRGoveia/refdict/internal/parser"
)

// Importer imports one decoded table.
type Importer interface {
	Execute(ctx context.Context, req ImportRequest) (models.ImportResult, error)
}

// Processor defines the interface for file processing operations.
type Processor interface {
	ScanForFiles(rootPath string) ([]models.FileInfo, error)
	ProcessFiles(ctx context.Context, dictionaryID int64, files []models.FileInfo, force bool) []FileOutcome
}

// FileOutcome is the result of importing one file.
type FileOutcome struct {
	Path   string
	Result models.ImportResult
	Err    error
}

// FileProcessor discovers importable files and feeds them to the importer one by one.
type FileProcessor struct {
	importer Importer
	logger   *zap.Logger
}

func NewFileProcessor(importer Importer, logger *zap.Logger) *FileProcessor {
	return &FileProcessor{
		importer: importer,
		logger:   logger.Named("files"),
	}
}

// ScanForFiles returns rootPath itself when it is a file, or every .csv and
// .xlsx file below it, in lexical order.
func (fp *FileProcessor) ScanForFiles(rootPath string) ([]models.FileInfo, error) {
	var fileInfos []models.FileInfo
	fp.logger.Info("scanning for files", zap.String("path", rootPath))

	err := filepath.Walk(rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if !parser.Supported(path) {
			fp.logger.Warn("unsupported file, skipping", zap.String("path", path))
			return nil
		}
		fileInfos = append(fileInfos, models.FileInfo{Path: path})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking directory %s: %w", rootPath, err)
	}

	fp.logger.Info("files found", zap.Int(logging.FieldCount, len(fileInfos)))
	return fileInfos, nil
}

// ProcessFiles imports the files sequentially. A failing file does not stop
// the rest; a cancelled ctx does.
func (fp *FileProcessor) ProcessFiles(ctx context.Context, dictionaryID int64, files []models.FileInfo, force bool) []FileOutcome {
	outcomes := make([]FileOutcome, 0, len(files))
	for _, file := range files {
		if ctx.Err() != nil {
			outcomes = append(outcomes, FileOutcome{Path: file.Path, Err: ctx.Err()})
			continue
		}

		outcome := FileOutcome{Path: file.Path}
		table, err := parser.ParseFile(file.Path)
		if err != nil {
			outcome.Err = err
		} else {
			outcome.Result, outcome.Err = fp.importer.Execute(ctx, ImportRequest{
				DictionaryID: dictionaryID,
				FileName:     filepath.Base(file.Path),
				Table:        table,
				Force:        force,
			})
		}

		if outcome.Err != nil {
			fp.logger.Error("file import failed",
				zap.String("path", file.Path),
				zap.Int64(logging.FieldDictionaryID, dictionaryID),
				zap.Error(outcome.Err),
			)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}
