package reader

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/ThiagoRGoveia/refdict/internal/database"
	"github.com/ThiagoRGoveia/refdict/internal/logging"
	"github.com/ThiagoRGoveia/refdict/internal/metrics"
	"github.com/ThiagoRGoveia/refdict/internal/models"
)

// Service reconstructs dictionary positions as of a reference date. It never writes.
type Service struct {
	store  database.ReaderStore
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store database.ReaderStore, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger.Named("reader"),
		now:    time.Now,
	}
}

// GetValues returns every position of the dictionary as of date. A zero date means today.
func (s *Service) GetValues(ctx context.Context, dictionaryID int64, date time.Time) ([]models.PositionOut, error) {
	return s.load(ctx, models.PositionFilter{DictionaryID: dictionaryID, Date: s.resolve(date)})
}

// GetValueByCode returns the positions whose CODE valid on date contains fragment.
func (s *Service) GetValueByCode(ctx context.Context, dictionaryID int64, fragment string, date time.Time) ([]models.PositionOut, error) {
	if strings.TrimSpace(fragment) == "" {
		return nil, models.Validationf("code fragment must not be empty")
	}
	return s.load(ctx, models.PositionFilter{DictionaryID: dictionaryID, Date: s.resolve(date), CodeFragment: fragment})
}

// GetValueByID returns one position of the dictionary as of date.
func (s *Service) GetValueByID(ctx context.Context, dictionaryID, positionID int64, date time.Time) (*models.PositionOut, error) {
	positions, err := s.load(ctx, models.PositionFilter{DictionaryID: dictionaryID, Date: s.resolve(date), PositionID: &positionID})
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		return nil, models.NotFoundf("position %d not found in dictionary %d", positionID, dictionaryID)
	}
	return &positions[0], nil
}

// FindValue returns the positions having any value valid on date that contains fragment.
func (s *Service) FindValue(ctx context.Context, dictionaryID int64, fragment string, date time.Time) ([]models.PositionOut, error) {
	if strings.TrimSpace(fragment) == "" {
		return nil, models.Validationf("search text must not be empty")
	}
	return s.load(ctx, models.PositionFilter{DictionaryID: dictionaryID, Date: s.resolve(date), TextFragment: fragment})
}

func (s *Service) load(ctx context.Context, filter models.PositionFilter) ([]models.PositionOut, error) {
	if _, err := s.store.GetDictionary(ctx, filter.DictionaryID); err != nil {
		return nil, err
	}

	attributes, err := s.store.GetStructure(ctx, filter.DictionaryID)
	if err != nil {
		return nil, errors.Wrap(err, "load attributes")
	}

	positionIDs, err := s.store.FindPositions(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "find positions")
	}
	if len(positionIDs) == 0 {
		return []models.PositionOut{}, nil
	}

	facts, err := s.store.FactsOn(ctx, positionIDs, filter.Date)
	if err != nil {
		return nil, errors.Wrap(err, "load facts")
	}
	relations, err := s.store.RelationsOn(ctx, positionIDs, filter.Date)
	if err != nil {
		return nil, errors.Wrap(err, "load relations")
	}

	return pivot(positionIDs, attributes, facts, relations, func(kind string, positionID int64, candidates int) {
		metrics.RecordAmbiguity(kind)
		s.logger.Warn("more than one row valid on date, using the latest",
			zap.String("kind", kind),
			zap.Int64(logging.FieldDictionaryID, filter.DictionaryID),
			zap.Int64(logging.FieldPositionID, positionID),
			zap.Int(logging.FieldCount, candidates),
			zap.Time("date", filter.Date),
		)
	}), nil
}

func (s *Service) resolve(date time.Time) time.Time {
	if date.IsZero() {
		now := s.now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	return date
}
