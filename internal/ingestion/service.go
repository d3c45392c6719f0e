package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/ThiagoRGoveia/refdict/internal/database"
	"github.com/ThiagoRGoveia/refdict/internal/logging"
	"github.com/ThiagoRGoveia/refdict/internal/metrics"
	"github.com/ThiagoRGoveia/refdict/internal/models"
	"github.com/ThiagoRGoveia/refdict/pkg/checksum"
)

// maxRecordedErrors caps the messages stored on an import record.
const maxRecordedErrors = 100

// RelationGenerator rebuilds the hierarchy of a whole dictionary.
type RelationGenerator interface {
	ForDictionary(ctx context.Context, dictionaryID int64) (models.RelationResult, error)
}

type ImportRequest struct {
	DictionaryID int64
	FileName     string
	Table        *models.Table
	// Force imports a table even if an identical one was already imported.
	Force bool
}

type IngestionService struct {
	dbManager   database.ImportStore
	asyncWorker Worker
	relations   RelationGenerator
	logger      *zap.Logger
}

func NewIngestionService(dbManager database.ImportStore, worker Worker, relations RelationGenerator, logger *zap.Logger) *IngestionService {
	return &IngestionService{
		dbManager:   dbManager,
		asyncWorker: worker,
		relations:   relations,
		logger:      logger.Named("ingestion"),
	}
}

// Execute imports a table into a dictionary: one position per row with a CODE
// and a NAME, one fact per column bound to an attribute, and finally a rebuild
// of the dictionary's relations.
func (s *IngestionService) Execute(ctx context.Context, req ImportRequest) (models.ImportResult, error) {
	var result models.ImportResult
	started := time.Now()
	logger := s.logger.With(zap.Int64(logging.FieldDictionaryID, req.DictionaryID), zap.String("file", req.FileName))

	// Step 1: The table must carry the structural columns before anything is written.
	if req.Table == nil {
		return result, models.Validationf("no table to import")
	}
	if name, ok := duplicateColumn(req.Table.Columns); ok {
		return result, models.Validationf("table has column %s more than once", name)
	}
	index := req.Table.ColumnIndex()
	for _, required := range []string{models.AltNameCode, models.AltNameName} {
		if _, ok := index[required]; !ok {
			return result, models.Validationf("table is missing required column %s", required)
		}
	}
	result.RowsTotal = len(req.Table.Rows)

	// Step 2: Reject a table identical to one already imported into this dictionary.
	tableChecksum := checksum.TableChecksum(req.Table.Columns, req.Table.Rows)
	if !req.Force {
		imported, err := s.dbManager.IsTableAlreadyImported(ctx, req.DictionaryID, tableChecksum)
		if err != nil {
			return result, errors.Wrap(err, "check previous imports")
		}
		if imported {
			return result, errors.WithHint(
				models.Conflictf("table %s (checksum %s) was already imported into dictionary %d", req.FileName, tableChecksum, req.DictionaryID),
				"import again with force to load it anyway",
			)
		}
	}

	// Step 3: Resolve the dictionary window and the columns bound to attributes.
	dictionary, err := s.dbManager.GetDictionary(ctx, req.DictionaryID)
	if err != nil {
		return result, err
	}
	attributeIDs, err := s.dbManager.GetAttributeIDsByAltName(ctx, req.DictionaryID)
	if err != nil {
		return result, errors.Wrap(err, "resolve attributes")
	}
	columns, err := bindColumns(req.Table.Columns, attributeIDs)
	if err != nil {
		return result, err
	}
	for _, name := range unboundColumns(req.Table.Columns, attributeIDs) {
		logger.Warn("column has no matching attribute, ignoring", zap.String("column", name))
	}

	// Step 4: Record the import before touching content.
	recordID, err := s.dbManager.InsertImportRecord(ctx, models.ImportRecord{
		DictionaryID: req.DictionaryID,
		FileName:     req.FileName,
		ProcessedAt:  started,
		Status:       database.IMPORT_STATUS_PROCESSING,
		Checksum:     tableChecksum,
	})
	if err != nil {
		return result, errors.Wrap(err, "record import")
	}
	result.RecordID = recordID
	logger = logger.With(zap.Int64(logging.FieldRecordID, recordID))

	// Step 5: Keep rows with both CODE and NAME and allocate their positions at once.
	rows := make([][]string, 0, len(req.Table.Rows))
	for _, row := range req.Table.Rows {
		if NormalizeValue(req.Table.Cell(row, index[models.AltNameCode])) == nil ||
			NormalizeValue(req.Table.Cell(row, index[models.AltNameName])) == nil {
			continue
		}
		rows = append(rows, row)
	}
	result.RowsImported = len(rows)
	result.RowsSkipped = result.RowsTotal - result.RowsImported

	positionIDs, err := s.dbManager.CreatePositions(ctx, req.DictionaryID, len(rows))
	if err != nil {
		return s.fail(ctx, logger, result, errors.Wrap(err, "create positions"))
	}

	// Step 6: Stream facts to the DB worker, which writes them in fixed-size batches.
	plan := ImportPlan{
		Rows:        rows,
		PositionIDs: positionIDs,
		Columns:     columns,
		Window:      models.Window{Start: dictionary.StartDate, Finish: dictionary.FinishDate},
	}
	writeCtx, cancel := context.WithCancel(ctx)
	stats, err := s.asyncWorker.DbWorker(writeCtx, s.asyncWorker.DispatchRows(writeCtx, plan))
	cancel()
	result.Facts = stats.Facts
	result.Batches = stats.Batches
	if err != nil {
		return s.fail(ctx, logger, result, errors.Wrapf(err, "write facts after %d of %d rows", stats.Rows, len(rows)))
	}
	metrics.RecordImportRows(result.RowsImported, result.RowsSkipped)

	// Step 7: The hierarchy is only valid once relations are rebuilt from the new facts.
	relations, err := s.relations.ForDictionary(ctx, req.DictionaryID)
	result.Relations = relations
	if err != nil {
		return s.fail(ctx, logger, result, errors.Wrap(err, "generate relations"))
	}

	// Step 8: Finalize the import record.
	status := database.IMPORT_STATUS_DONE
	var messages []string
	if result.HasErrors() {
		status = database.IMPORT_STATUS_DONE_WITH_ERRORS
		messages = relationErrors(req.DictionaryID, relations)
	}
	s.finalize(ctx, logger, result, status, messages)

	logger.Info("import finished",
		zap.String("status", status),
		zap.Int("rows_total", result.RowsTotal),
		zap.Int("rows_imported", result.RowsImported),
		zap.Int("rows_skipped", result.RowsSkipped),
		zap.Int("facts", result.Facts),
		zap.Int("batches", result.Batches),
		zap.Int("relations_created", relations.Created),
		zap.Duration(logging.FieldDuration, time.Since(started)),
	)
	return result, nil
}

func (s *IngestionService) fail(ctx context.Context, logger *zap.Logger, result models.ImportResult, err error) (models.ImportResult, error) {
	logger.Error("import failed", zap.Error(err))
	s.finalize(ctx, logger, result, database.IMPORT_STATUS_FATAL, []string{err.Error()})
	return result, err
}

// finalize stores the outcome on the import record. It runs even if ctx was cancelled.
func (s *IngestionService) finalize(ctx context.Context, logger *zap.Logger, result models.ImportResult, status string, messages []string) {
	if len(messages) > maxRecordedErrors {
		messages = messages[:maxRecordedErrors]
	}
	if err := s.dbManager.UpdateImportRecord(context.WithoutCancel(ctx), result.RecordID, status, result, messages); err != nil {
		logger.Error("failed to update import record", zap.String("status", status), zap.Error(err))
	}
	metrics.RecordImportRun(status)
}

// bindColumns pairs every column with the attribute of the same alt_name.
// CODE and NAME must both be bound.
func bindColumns(names []string, attributeIDs map[string]int64) ([]BoundColumn, error) {
	columns := make([]BoundColumn, 0, len(names))
	seen := make(map[string]bool, len(names))
	for i, name := range names {
		attributeID, ok := attributeIDs[name]
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		columns = append(columns, BoundColumn{Index: i, Name: name, AttributeID: attributeID})
	}

	for _, required := range []string{models.AltNameCode, models.AltNameName} {
		if !seen[required] {
			return nil, models.Validationf("dictionary has no attribute with alt_name %s", required)
		}
	}
	return columns, nil
}

// duplicateColumn returns the first column name that occurs more than once.
func duplicateColumn(names []string) (string, bool) {
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			return name, true
		}
		seen[name] = true
	}
	return "", false
}

func unboundColumns(names []string, attributeIDs map[string]int64) []string {
	var unbound []string
	for _, name := range names {
		if _, ok := attributeIDs[name]; !ok {
			unbound = append(unbound, name)
		}
	}
	return unbound
}

func relationErrors(dictionaryID int64, relations models.RelationResult) []string {
	messages := make([]string, 0, len(relations.FailedPositions)+1)
	if relations.Failed > 0 {
		messages = append(messages, (&models.AppError{
			DictionaryID: dictionaryID,
			Message:      fmt.Sprintf("%d relation inserts were rejected", relations.Failed),
		}).Error())
	}
	for _, positionID := range relations.FailedPositions {
		messages = append(messages, (&models.AppError{
			DictionaryID: dictionaryID,
			PositionID:   positionID,
			Message:      "relation rebuild failed",
		}).Error())
	}
	return messages
}
