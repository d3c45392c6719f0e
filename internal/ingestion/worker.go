package ingestion

import (
	"context"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/ThiagoRGoveia/refdict/internal/logging"
	"github.com/ThiagoRGoveia/refdict/internal/metrics"
	"github.com/ThiagoRGoveia/refdict/internal/models"
)

type AsyncWorkerConfig struct {
	DBBatchSize int
}

// FactWriter is the bulk write the DB worker flushes batches to.
type FactWriter interface {
	InsertData(ctx context.Context, facts []models.DataFact) (int64, error)
}

// Worker streams the facts of an import plan to the store.
type Worker interface {
	DispatchRows(ctx context.Context, plan ImportPlan) <-chan []models.DataFact
	DbWorker(ctx context.Context, rows <-chan []models.DataFact) (WriteStats, error)
}

// WriteStats counts what a DB worker wrote.
type WriteStats struct {
	Rows    int
	Facts   int
	Batches int
}

type AsyncWorker struct {
	config AsyncWorkerConfig
	store  FactWriter
	logger *zap.Logger
}

func NewAsyncWorker(store FactWriter, cfg AsyncWorkerConfig, logger *zap.Logger) *AsyncWorker {
	if cfg.DBBatchSize < 1 {
		cfg.DBBatchSize = 1
	}
	return &AsyncWorker{
		config: cfg,
		store:  store,
		logger: logger.Named("worker"),
	}
}

// DispatchRows sends the facts of every plan row, one slice per row, and closes
// the channel when done or when ctx is cancelled.
func (w *AsyncWorker) DispatchRows(ctx context.Context, plan ImportPlan) <-chan []models.DataFact {
	rows := make(chan []models.DataFact, w.config.DBBatchSize)
	go func() {
		defer close(rows)
		for i := range plan.Rows {
			select {
			case rows <- plan.Facts(i):
			case <-ctx.Done():
				return
			}
		}
	}()
	return rows
}

// DbWorker collects rows and writes their facts every DBBatchSize rows, plus a
// final partial batch. A failed write is returned as is and not retried.
func (w *AsyncWorker) DbWorker(ctx context.Context, rows <-chan []models.DataFact) (WriteStats, error) {
	var stats WriteStats
	batch := make([]models.DataFact, 0, w.config.DBBatchSize)
	rowsInBatch := 0

	flush := func() error {
		if rowsInBatch == 0 {
			return nil
		}
		w.logger.Debug("inserting batch",
			zap.Int(logging.FieldBatchSize, rowsInBatch),
			zap.Int(logging.FieldCount, len(batch)),
		)
		written, err := w.store.InsertData(ctx, batch)
		if err != nil {
			return errors.Wrapf(err, "insert batch %d of %d rows", stats.Batches+1, rowsInBatch)
		}
		metrics.RecordFactBatch()
		stats.Batches++
		stats.Rows += rowsInBatch
		stats.Facts += int(written)
		batch = make([]models.DataFact, 0, cap(batch))
		rowsInBatch = 0
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case facts, ok := <-rows:
			if !ok {
				if err := flush(); err != nil {
					return stats, err
				}
				return stats, nil
			}
			batch = append(batch, facts...)
			rowsInBatch++
			if rowsInBatch >= w.config.DBBatchSize {
				if err := flush(); err != nil {
					return stats, err
				}
			}
		}
	}
}
