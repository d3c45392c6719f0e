package dictionary

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ThiagoRGoveia/refdict/internal/database"
	"github.com/ThiagoRGoveia/refdict/internal/logging"
	"github.com/ThiagoRGoveia/refdict/internal/models"
)

var altNamePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	err := v.RegisterValidation("alt_name", func(fl validator.FieldLevel) bool {
		return altNamePattern.MatchString(fl.Field().String())
	})
	if err != nil {
		panic(fmt.Sprintf("register alt_name validation: %v", err))
	}
	return v
}

// Service manages dictionary definitions and their attribute schema.
type Service struct {
	store    database.SchemaStore
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(store database.SchemaStore, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		validate: newValidator(),
		logger:   logger.Named("dictionary"),
		now:      time.Now,
	}
}

// CreateDictionary stores a new dictionary together with its seed attributes.
// The status is derived from whether today falls inside the dictionary window.
func (s *Service) CreateDictionary(ctx context.Context, in models.DictionaryIn) (int64, error) {
	if err := s.check(in); err != nil {
		return 0, err
	}
	in.StatusID = s.status(in)

	id, err := s.store.CreateDictionary(ctx, in, SeedAttributes(in))
	if err != nil {
		return 0, errors.Wrap(err, "create dictionary")
	}

	s.logger.Info("dictionary created",
		zap.Int64(logging.FieldDictionaryID, id),
		zap.String("code", in.Code),
		zap.Int(logging.FieldCount, len(seedAttributes)),
	)
	return id, nil
}

func (s *Service) UpdateDictionary(ctx context.Context, id int64, in models.DictionaryIn) error {
	if err := s.check(in); err != nil {
		return err
	}
	in.StatusID = s.status(in)

	if err := s.store.UpdateDictionary(ctx, id, in); err != nil {
		return errors.Wrapf(err, "update dictionary %d", id)
	}

	s.logger.Info("dictionary updated", zap.Int64(logging.FieldDictionaryID, id))
	return nil
}

func (s *Service) GetAll(ctx context.Context) ([]models.Dictionary, error) {
	dictionaries, err := s.store.GetDictionaries(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list dictionaries")
	}
	return dictionaries, nil
}

func (s *Service) FindByName(ctx context.Context, fragment string) ([]models.Dictionary, error) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return nil, models.Validationf("name fragment must not be empty")
	}

	dictionaries, err := s.store.FindDictionariesByName(ctx, fragment)
	if err != nil {
		return nil, errors.Wrap(err, "find dictionaries by name")
	}
	return dictionaries, nil
}

// GetStructure lists the attributes of an existing dictionary.
func (s *Service) GetStructure(ctx context.Context, dictionaryID int64) ([]models.Attribute, error) {
	if _, err := s.store.GetDictionary(ctx, dictionaryID); err != nil {
		return nil, err
	}

	attributes, err := s.store.GetStructure(ctx, dictionaryID)
	if err != nil {
		return nil, errors.Wrapf(err, "get structure of dictionary %d", dictionaryID)
	}
	return attributes, nil
}

func (s *Service) CreateAttribute(ctx context.Context, in models.AttributeIn) (int64, error) {
	if err := s.check(in); err != nil {
		return 0, err
	}

	if _, err := s.store.GetDictionary(ctx, in.DictionaryID); err != nil {
		return 0, err
	}

	id, err := s.store.CreateAttribute(ctx, in)
	if err != nil {
		return 0, errors.Wrap(err, "create attribute")
	}

	s.logger.Info("attribute created",
		zap.Int64(logging.FieldDictionaryID, in.DictionaryID),
		zap.Int64("attribute_id", id),
		zap.Stringp("alt_name", in.AltName),
	)
	return id, nil
}

func (s *Service) status(in models.DictionaryIn) int {
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if in.ActiveOn(today) {
		return models.DictionaryStatusActive
	}
	return models.DictionaryStatusInactive
}

func (s *Service) check(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return errors.Wrap(err, "validate")
	}

	messages := make([]string, 0, len(validationErrs))
	for _, fieldErr := range validationErrs {
		messages = append(messages, fmt.Sprintf("%s failed on '%s'", fieldErr.Field(), fieldErr.Tag()))
	}
	return models.Validationf("%s", strings.Join(messages, "; "))
}
