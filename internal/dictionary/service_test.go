package dictionary

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ThiagoRGoveia/refdict/internal/models"
)

type MockSchemaStore struct {
	mock.Mock
}

func (m *MockSchemaStore) CreateDictionary(ctx context.Context, dictionary models.DictionaryIn, seed []models.AttributeIn) (int64, error) {
	args := m.Called(ctx, dictionary, seed)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSchemaStore) UpdateDictionary(ctx context.Context, id int64, dictionary models.DictionaryIn) error {
	args := m.Called(ctx, id, dictionary)
	return args.Error(0)
}

func (m *MockSchemaStore) GetDictionaries(ctx context.Context) ([]models.Dictionary, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Dictionary), args.Error(1)
}

func (m *MockSchemaStore) FindDictionariesByName(ctx context.Context, fragment string) ([]models.Dictionary, error) {
	args := m.Called(ctx, fragment)
	return args.Get(0).([]models.Dictionary), args.Error(1)
}

func (m *MockSchemaStore) GetDictionary(ctx context.Context, id int64) (*models.Dictionary, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dictionary), args.Error(1)
}

func (m *MockSchemaStore) GetStructure(ctx context.Context, dictionaryID int64) ([]models.Attribute, error) {
	args := m.Called(ctx, dictionaryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Attribute), args.Error(1)
}

func (m *MockSchemaStore) CreateAttribute(ctx context.Context, attribute models.AttributeIn) (int64, error) {
	args := m.Called(ctx, attribute)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSchemaStore) GetAttributeIDsByAltName(ctx context.Context, dictionaryID int64) (map[string]int64, error) {
	args := m.Called(ctx, dictionaryID)
	return args.Get(0).(map[string]int64), args.Error(1)
}

func date(value string) time.Time {
	d, err := time.Parse("2006-01-02", value)
	if err != nil {
		panic(err)
	}
	return d
}

func newTestService(store *MockSchemaStore, today string) *Service {
	service := NewService(store, zap.NewNop())
	service.now = func() time.Time { return date(today) }
	return service
}

func validDictionary() models.DictionaryIn {
	return models.DictionaryIn{
		Name:       "ОКЭД",
		Code:       "OKED",
		StartDate:  date("2020-01-01"),
		FinishDate: date("9999-12-31"),
	}
}

func TestService_CreateDictionary(t *testing.T) {
	ctx := context.Background()

	t.Run("should create an active dictionary with the seed attributes", func(t *testing.T) {
		store := new(MockSchemaStore)
		service := newTestService(store, "2024-05-10")

		store.On("CreateDictionary", ctx, mock.MatchedBy(func(d models.DictionaryIn) bool {
			return d.StatusID == models.DictionaryStatusActive
		}), mock.MatchedBy(func(seed []models.AttributeIn) bool {
			return len(seed) == 12
		})).Return(int64(7), nil)

		id, err := service.CreateDictionary(ctx, validDictionary())

		require.NoError(t, err)
		assert.Equal(t, int64(7), id)
		store.AssertExpectations(t)
	})

	t.Run("should derive an inactive status outside the window", func(t *testing.T) {
		store := new(MockSchemaStore)
		service := newTestService(store, "2019-12-31")

		store.On("CreateDictionary", ctx, mock.MatchedBy(func(d models.DictionaryIn) bool {
			return d.StatusID == models.DictionaryStatusInactive
		}), mock.Anything).Return(int64(1), nil)

		_, err := service.CreateDictionary(ctx, validDictionary())

		require.NoError(t, err)
		store.AssertExpectations(t)
	})

	t.Run("should treat the finish date as part of the window", func(t *testing.T) {
		store := new(MockSchemaStore)
		service := newTestService(store, "2021-01-01")
		in := validDictionary()
		in.FinishDate = date("2021-01-01")

		store.On("CreateDictionary", ctx, mock.MatchedBy(func(d models.DictionaryIn) bool {
			return d.StatusID == models.DictionaryStatusActive
		}), mock.Anything).Return(int64(1), nil)

		_, err := service.CreateDictionary(ctx, in)

		require.NoError(t, err)
		store.AssertExpectations(t)
	})

	t.Run("should reject a missing name without touching the store", func(t *testing.T) {
		store := new(MockSchemaStore)
		service := newTestService(store, "2024-05-10")
		in := validDictionary()
		in.Name = ""

		_, err := service.CreateDictionary(ctx, in)

		assert.True(t, errors.Is(err, models.ErrValidation))
		store.AssertNotCalled(t, "CreateDictionary", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("should reject a window that finishes before it starts", func(t *testing.T) {
		store := new(MockSchemaStore)
		service := newTestService(store, "2024-05-10")
		in := validDictionary()
		in.FinishDate = date("2019-01-01")

		_, err := service.CreateDictionary(ctx, in)

		assert.True(t, errors.Is(err, models.ErrValidation))
		assert.Contains(t, err.Error(), "FinishDate")
	})
}

func TestSeedAttributes(t *testing.T) {
	in := validDictionary()
	seed := SeedAttributes(in)

	altNames := make([]string, 0, len(seed))
	for _, attribute := range seed {
		require.NotNil(t, attribute.AltName)
		altNames = append(altNames, *attribute.AltName)
		assert.Equal(t, in.StartDate, attribute.StartDate)
		assert.Equal(t, in.FinishDate, attribute.FinishDate)
		assert.Equal(t, seedCapacity, attribute.Capacity)
		assert.True(t, altNamePattern.MatchString(*attribute.AltName))
	}

	assert.Equal(t, []string{
		"NAME", "CODE", "PARENT_CODE", "FULL_SUM", "START_DATE", "FINISH_DATE",
		"NAME_BEL", "NAME_ENG", "DESCR", "DESCR_BEL", "DESCR_ENG", "COMMENT",
	}, altNames)

	t.Run("should not share alt name pointers between calls", func(t *testing.T) {
		other := SeedAttributes(in)
		*other[0].AltName = "CHANGED"
		assert.Equal(t, "NAME", *SeedAttributes(in)[0].AltName)
		assert.Equal(t, "NAME", *seed[0].AltName)
	})
}

func TestService_UpdateDictionary(t *testing.T) {
	ctx := context.Background()

	t.Run("should propagate not found", func(t *testing.T) {
		store := new(MockSchemaStore)
		service := newTestService(store, "2024-05-10")
		store.On("UpdateDictionary", ctx, int64(9), mock.Anything).Return(models.NotFoundf("dictionary 9 not found"))

		err := service.UpdateDictionary(ctx, 9, validDictionary())

		assert.True(t, errors.Is(err, models.ErrNotFound))
	})

	t.Run("should re-derive the status", func(t *testing.T) {
		store := new(MockSchemaStore)
		service := newTestService(store, "2030-01-01")
		in := validDictionary()
		in.FinishDate = date("2025-01-01")
		in.StatusID = models.DictionaryStatusActive

		store.On("UpdateDictionary", ctx, int64(3), mock.MatchedBy(func(d models.DictionaryIn) bool {
			return d.StatusID == models.DictionaryStatusInactive
		})).Return(nil)

		require.NoError(t, service.UpdateDictionary(ctx, 3, in))
		store.AssertExpectations(t)
	})
}

func TestService_FindByName(t *testing.T) {
	ctx := context.Background()

	t.Run("should reject an empty fragment", func(t *testing.T) {
		service := newTestService(new(MockSchemaStore), "2024-05-10")

		_, err := service.FindByName(ctx, "  ")

		assert.True(t, errors.Is(err, models.ErrValidation))
	})

	t.Run("should search with the trimmed fragment", func(t *testing.T) {
		store := new(MockSchemaStore)
		service := newTestService(store, "2024-05-10")
		expected := []models.Dictionary{{ID: 1, DictionaryIn: validDictionary()}}
		store.On("FindDictionariesByName", ctx, "ОКЭД").Return(expected, nil)

		result, err := service.FindByName(ctx, " ОКЭД ")

		require.NoError(t, err)
		assert.Equal(t, expected, result)
	})
}

func TestService_GetStructure(t *testing.T) {
	ctx := context.Background()

	t.Run("should fail for an unknown dictionary", func(t *testing.T) {
		store := new(MockSchemaStore)
		service := newTestService(store, "2024-05-10")
		store.On("GetDictionary", ctx, int64(5)).Return(nil, models.NotFoundf("dictionary 5 not found"))

		_, err := service.GetStructure(ctx, 5)

		assert.True(t, errors.Is(err, models.ErrNotFound))
		store.AssertNotCalled(t, "GetStructure", mock.Anything, mock.Anything)
	})

	t.Run("should list attributes", func(t *testing.T) {
		store := new(MockSchemaStore)
		service := newTestService(store, "2024-05-10")
		attributes := []models.Attribute{{ID: 1}, {ID: 2}}
		store.On("GetDictionary", ctx, int64(5)).Return(&models.Dictionary{ID: 5}, nil)
		store.On("GetStructure", ctx, int64(5)).Return(attributes, nil)

		result, err := service.GetStructure(ctx, 5)

		require.NoError(t, err)
		assert.Equal(t, attributes, result)
	})
}

func TestService_CreateAttribute(t *testing.T) {
	ctx := context.Background()
	altName := func(v string) *string { return &v }
	validAttribute := func() models.AttributeIn {
		return models.AttributeIn{
			DictionaryID: 5,
			Name:         "ОКПО",
			Type:         models.AttributeTypeText,
			Capacity:     20,
			StartDate:    date("2020-01-01"),
			FinishDate:   date("2020-12-31"),
			AltName:      altName("OKPO"),
		}
	}

	t.Run("should create an attribute of an existing dictionary", func(t *testing.T) {
		store := new(MockSchemaStore)
		service := newTestService(store, "2024-05-10")
		store.On("GetDictionary", ctx, int64(5)).Return(&models.Dictionary{ID: 5}, nil)
		store.On("CreateAttribute", ctx, validAttribute()).Return(int64(40), nil)

		id, err := service.CreateAttribute(ctx, validAttribute())

		require.NoError(t, err)
		assert.Equal(t, int64(40), id)
	})

	t.Run("should accept an attribute without alt name", func(t *testing.T) {
		store := new(MockSchemaStore)
		service := newTestService(store, "2024-05-10")
		in := validAttribute()
		in.AltName = nil
		store.On("GetDictionary", ctx, int64(5)).Return(&models.Dictionary{ID: 5}, nil)
		store.On("CreateAttribute", ctx, in).Return(int64(41), nil)

		_, err := service.CreateAttribute(ctx, in)

		require.NoError(t, err)
	})

	invalid := map[string]func(*models.AttributeIn){
		"lowercase alt name": func(a *models.AttributeIn) { a.AltName = altName("okpo") },
		"unknown type":       func(a *models.AttributeIn) { a.Type = 4 },
		"zero capacity":      func(a *models.AttributeIn) { a.Capacity = 0 },
		"inverted window":    func(a *models.AttributeIn) { a.FinishDate = date("2019-01-01") },
		"missing dictionary": func(a *models.AttributeIn) { a.DictionaryID = 0 },
	}
	for name, mutate := range invalid {
		t.Run("should reject "+name, func(t *testing.T) {
			store := new(MockSchemaStore)
			service := newTestService(store, "2024-05-10")
			in := validAttribute()
			mutate(&in)

			_, err := service.CreateAttribute(ctx, in)

			assert.True(t, errors.Is(err, models.ErrValidation))
			store.AssertNotCalled(t, "CreateAttribute", mock.Anything, mock.Anything)
		})
	}

	t.Run("should fail when the dictionary does not exist", func(t *testing.T) {
		store := new(MockSchemaStore)
		service := newTestService(store, "2024-05-10")
		store.On("GetDictionary", ctx, int64(5)).Return(nil, models.NotFoundf("dictionary 5 not found"))

		_, err := service.CreateAttribute(ctx, validAttribute())

		assert.True(t, errors.Is(err, models.ErrNotFound))
	})
}

func TestNewValidator(t *testing.T) {
	t.Run("should register the alt_name rule", func(t *testing.T) {
		var v *validator.Validate
		require.NotPanics(t, func() { v = newValidator() })

		assert.NoError(t, v.Var("PARENT_CODE", "alt_name"))
		assert.Error(t, v.Var("parent code", "alt_name"))
	})
}
