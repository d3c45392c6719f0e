package relations

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/ThiagoRGoveia/refdict/internal/database"
	"github.com/ThiagoRGoveia/refdict/internal/logging"
	"github.com/ThiagoRGoveia/refdict/internal/metrics"
	"github.com/ThiagoRGoveia/refdict/internal/models"
)

type GeneratorConfig struct {
	Workers int
	Timeout time.Duration
}

// Generator derives parent/child relations from CODE and PARENT_CODE facts.
type Generator struct {
	store  database.RelationStore
	config GeneratorConfig
	logger *zap.Logger
}

func NewGenerator(store database.RelationStore, cfg GeneratorConfig, logger *zap.Logger) *Generator {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Generator{
		store:  store,
		config: cfg,
		logger: logger.Named("relations"),
	}
}

type positionOutcome struct {
	positionID int64
	result     models.RelationResult
	err        error
}

// ForPosition rebuilds the relations of a single position of the dictionary.
func (g *Generator) ForPosition(ctx context.Context, dictionaryID, positionID int64) (models.RelationResult, error) {
	exists, err := g.store.PositionExists(ctx, dictionaryID, positionID)
	if err != nil {
		return models.RelationResult{}, errors.Wrapf(err, "look up position %d", positionID)
	}
	if !exists {
		return models.RelationResult{}, models.NotFoundf("position %d not found in dictionary %d", positionID, dictionaryID)
	}

	result, err := g.rebuild(ctx, dictionaryID, positionID)
	if err != nil {
		return result, errors.Wrapf(err, "rebuild relations of position %d", positionID)
	}
	return result, nil
}

// ForDictionary rebuilds the relations of every position of the dictionary on a
// fixed pool of workers. A position whose rebuild fails is reported in the result
// and does not stop the others. Cancelling ctx stops dispatching; positions not
// yet rebuilt keep their previous relations.
func (g *Generator) ForDictionary(ctx context.Context, dictionaryID int64) (models.RelationResult, error) {
	if g.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.config.Timeout)
		defer cancel()
	}

	started := time.Now()
	positionIDs, err := g.store.ListPositionIDs(ctx, dictionaryID)
	if err != nil {
		return models.RelationResult{}, errors.Wrapf(err, "list positions of dictionary %d", dictionaryID)
	}

	numWorkers := min(g.config.Workers, len(positionIDs))
	jobs := make(chan int64)
	outcomes := make(chan positionOutcome, g.config.Workers)

	var wg sync.WaitGroup
	for i := 1; i <= numWorkers; i++ {
		wg.Add(1)
		go g.relationWorker(ctx, i, dictionaryID, jobs, outcomes, &wg)
	}

	go func() {
		defer close(jobs)
		for _, positionID := range positionIDs {
			select {
			case jobs <- positionID:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	var total models.RelationResult
	for outcome := range outcomes {
		if outcome.err != nil {
			total.Positions++
			total.FailedPositions = append(total.FailedPositions, outcome.positionID)
			continue
		}
		total.Merge(outcome.result)
	}
	slices.Sort(total.FailedPositions)

	g.logger.Info("relations generated",
		zap.Int64(logging.FieldDictionaryID, dictionaryID),
		zap.Int(logging.FieldWorkers, numWorkers),
		zap.Int("positions", total.Positions),
		zap.Int("created", total.Created),
		zap.Int("skipped", total.Skipped),
		zap.Int("failed", total.Failed),
		zap.Int("failed_positions", len(total.FailedPositions)),
		zap.Duration(logging.FieldDuration, time.Since(started)),
	)

	if err := ctx.Err(); err != nil {
		return total, errors.Wrapf(err, "relation generation of dictionary %d interrupted after %d of %d positions",
			dictionaryID, total.Positions, len(positionIDs))
	}
	return total, nil
}

func (g *Generator) relationWorker(ctx context.Context, workerID int, dictionaryID int64, jobs <-chan int64, outcomes chan<- positionOutcome, wg *sync.WaitGroup) {
	defer wg.Done()
	for positionID := range jobs {
		if ctx.Err() != nil {
			return
		}
		result, err := g.rebuild(ctx, dictionaryID, positionID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			g.logger.Error("position rebuild failed",
				zap.Int("worker", workerID),
				zap.Int64(logging.FieldDictionaryID, dictionaryID),
				zap.Int64(logging.FieldPositionID, positionID),
				zap.Error(err),
			)
		}
		outcomes <- positionOutcome{positionID: positionID, result: result, err: err}
	}
}

// rebuild replaces the position's relations. The delete and all inserts share
// one transaction; a rejected insert is logged and counted without aborting it.
func (g *Generator) rebuild(ctx context.Context, dictionaryID, positionID int64) (models.RelationResult, error) {
	started := time.Now()
	defer func() { metrics.ObserveRelationRebuild(time.Since(started).Seconds()) }()

	var result models.RelationResult
	err := g.store.RebuildRelations(ctx, positionID, func(tx database.RelationTx) error {
		result = models.RelationResult{Positions: 1}

		if _, err := tx.DeleteRelations(ctx, positionID); err != nil {
			return err
		}

		parentCodes, err := tx.ParentCodeFacts(ctx, positionID)
		if err != nil {
			return err
		}

		for _, child := range parentCodes {
			if child.Value == nil {
				continue
			}

			candidates, err := tx.CodeFacts(ctx, dictionaryID, *child.Value)
			if err != nil {
				return err
			}

			for _, candidate := range candidates {
				window, ok := Intersect(child.Window, candidate.Window)
				if !ok {
					result.Skipped++
					continue
				}

				relation := models.Relation{
					PositionID:       positionID,
					ParentPositionID: candidate.PositionID,
					StartDate:        window.Start,
					FinishDate:       window.Finish,
				}
				if err := tx.InsertRelation(ctx, relation); err != nil {
					if ctx.Err() != nil {
						return err
					}
					g.logger.Warn("relation insert skipped",
						zap.Int64(logging.FieldPositionID, positionID),
						zap.Int64("parent_position_id", candidate.PositionID),
						zap.Error(err),
					)
					result.Failed++
					continue
				}
				result.Created++
			}
		}
		return nil
	})
	if err != nil {
		return models.RelationResult{Positions: 1}, err
	}

	metrics.RecordRelationCandidates(result.Created, result.Skipped, result.Failed)
	return result, nil
}
