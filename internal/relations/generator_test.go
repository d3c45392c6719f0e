package relations

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ThiagoRGoveia/refdict/internal/database"
	"github.com/ThiagoRGoveia/refdict/internal/models"
)

// fakeRelationStore keeps facts and relations in memory and stages each
// rebuild until its callback returns, like the transactional store does.
type fakeRelationStore struct {
	mu           sync.Mutex
	dictionaryID int64
	positions    []int64
	codes        map[int64][]models.CodeFact
	parentCodes  map[int64][]models.CodeFact
	relations    map[int64][]models.Relation
	failParents  map[int64]bool
	failReads    map[int64]bool
	delay        time.Duration
	inFlight     int
	maxInFlight  int
}

func newFakeRelationStore(dictionaryID int64) *fakeRelationStore {
	return &fakeRelationStore{
		dictionaryID: dictionaryID,
		codes:        make(map[int64][]models.CodeFact),
		parentCodes:  make(map[int64][]models.CodeFact),
		relations:    make(map[int64][]models.Relation),
		failParents:  make(map[int64]bool),
		failReads:    make(map[int64]bool),
	}
}

func (s *fakeRelationStore) addPosition(id int64, code string, codeWindow models.Window) {
	s.positions = append(s.positions, id)
	s.codes[id] = append(s.codes[id], models.CodeFact{PositionID: id, Value: &code, Window: codeWindow})
}

func (s *fakeRelationStore) addParentCode(id int64, value *string, parentWindow models.Window) {
	s.parentCodes[id] = append(s.parentCodes[id], models.CodeFact{PositionID: id, Value: value, Window: parentWindow})
}

func (s *fakeRelationStore) ListPositionIDs(ctx context.Context, dictionaryID int64) ([]int64, error) {
	if dictionaryID != s.dictionaryID {
		return []int64{}, nil
	}
	return append([]int64(nil), s.positions...), nil
}

func (s *fakeRelationStore) PositionExists(ctx context.Context, dictionaryID, positionID int64) (bool, error) {
	if dictionaryID != s.dictionaryID {
		return false, nil
	}
	for _, id := range s.positions {
		if id == positionID {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeRelationStore) RebuildRelations(ctx context.Context, positionID int64, fn func(database.RelationTx) error) error {
	s.mu.Lock()
	s.inFlight++
	s.maxInFlight = max(s.maxInFlight, s.inFlight)
	staged := append([]models.Relation(nil), s.relations[positionID]...)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	tx := &fakeRelationTx{store: s, staged: staged}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	s.relations[positionID] = tx.staged
	s.mu.Unlock()
	return nil
}

type fakeRelationTx struct {
	store  *fakeRelationStore
	staged []models.Relation
}

func (tx *fakeRelationTx) DeleteRelations(ctx context.Context, positionID int64) (int64, error) {
	deleted := int64(len(tx.staged))
	tx.staged = nil
	return deleted, nil
}

func (tx *fakeRelationTx) ParentCodeFacts(ctx context.Context, positionID int64) ([]models.CodeFact, error) {
	if tx.store.failReads[positionID] {
		return nil, errors.New("connection reset")
	}
	return tx.store.parentCodes[positionID], nil
}

func (tx *fakeRelationTx) CodeFacts(ctx context.Context, dictionaryID int64, code string) ([]models.CodeFact, error) {
	var matches []models.CodeFact
	for _, id := range tx.store.positions {
		for _, fact := range tx.store.codes[id] {
			if fact.Value != nil && *fact.Value == code {
				matches = append(matches, fact)
			}
		}
	}
	return matches, nil
}

func (tx *fakeRelationTx) InsertRelation(ctx context.Context, relation models.Relation) error {
	if tx.store.failParents[relation.ParentPositionID] {
		return errors.Mark(errors.New("duplicate key value violates unique constraint"), models.ErrConflict)
	}
	if !relation.StartDate.Before(relation.FinishDate) {
		return errors.New("violates check constraint")
	}
	tx.staged = append(tx.staged, relation)
	return nil
}

func (s *fakeRelationStore) snapshot() map[int64][]models.Relation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64][]models.Relation, len(s.relations))
	for id, relations := range s.relations {
		if len(relations) == 0 {
			continue
		}
		copied := append([]models.Relation(nil), relations...)
		sort.Slice(copied, func(i, j int) bool { return copied[i].ParentPositionID < copied[j].ParentPositionID })
		out[id] = copied
	}
	return out
}

func strPtr(v string) *string { return &v }

func newTestGenerator(t *testing.T, store database.RelationStore, workers int) *Generator {
	return NewGenerator(store, GeneratorConfig{Workers: workers}, zaptest.NewLogger(t))
}

func TestGenerator_ForDictionary(t *testing.T) {
	ctx := context.Background()
	full := window("2020-01-01", "9999-12-31")

	t.Run("should link a child to its parent over the common window", func(t *testing.T) {
		store := newFakeRelationStore(1)
		store.addPosition(1, "100", full)
		store.addParentCode(1, nil, full)
		store.addPosition(2, "110", full)
		store.addParentCode(2, strPtr("100"), full)

		result, err := newTestGenerator(t, store, 4).ForDictionary(ctx, 1)

		require.NoError(t, err)
		assert.Equal(t, 2, result.Positions)
		assert.Equal(t, 1, result.Created)
		assert.Empty(t, result.FailedPositions)
		assert.Equal(t, map[int64][]models.Relation{
			2: {{PositionID: 2, ParentPositionID: 1, StartDate: day("2020-01-01"), FinishDate: day("9999-12-31")}},
		}, store.snapshot())
	})

	t.Run("should produce the same relations when run twice", func(t *testing.T) {
		store := newFakeRelationStore(1)
		store.addPosition(1, "100", full)
		store.addPosition(2, "110", full)
		store.addParentCode(2, strPtr("100"), full)
		store.addPosition(3, "111", full)
		store.addParentCode(3, strPtr("110"), full)
		generator := newTestGenerator(t, store, 2)

		_, err := generator.ForDictionary(ctx, 1)
		require.NoError(t, err)
		first := store.snapshot()

		_, err = generator.ForDictionary(ctx, 1)
		require.NoError(t, err)

		assert.Equal(t, first, store.snapshot())
		assert.Len(t, first, 2)
	})

	t.Run("should drop stale relations", func(t *testing.T) {
		store := newFakeRelationStore(1)
		store.addPosition(1, "100", full)
		store.relations[1] = []models.Relation{{PositionID: 1, ParentPositionID: 99, StartDate: day("2020-01-01"), FinishDate: day("2021-01-01")}}

		_, err := newTestGenerator(t, store, 1).ForDictionary(ctx, 1)

		require.NoError(t, err)
		assert.Empty(t, store.snapshot())
	})

	t.Run("should not link windows that only touch at a boundary", func(t *testing.T) {
		store := newFakeRelationStore(1)
		store.addPosition(1, "100", window("2021-01-01", "2022-01-01"))
		store.addPosition(2, "110", full)
		store.addParentCode(2, strPtr("100"), window("2020-01-01", "2021-01-01"))

		result, err := newTestGenerator(t, store, 1).ForDictionary(ctx, 1)

		require.NoError(t, err)
		assert.Equal(t, 0, result.Created)
		assert.Equal(t, 1, result.Skipped)
		assert.Empty(t, store.snapshot())
	})

	t.Run("should keep different parents for different periods", func(t *testing.T) {
		store := newFakeRelationStore(1)
		store.addPosition(10, "A", window("2019-01-01", "2021-01-01"))
		store.addPosition(11, "A", window("2021-06-01", "2023-01-01"))
		store.addPosition(12, "C", full)
		store.addParentCode(12, strPtr("A"), window("2020-01-01", "2022-01-01"))

		result, err := newTestGenerator(t, store, 3).ForDictionary(ctx, 1)

		require.NoError(t, err)
		assert.Equal(t, 2, result.Created)
		assert.Equal(t, []models.Relation{
			{PositionID: 12, ParentPositionID: 10, StartDate: day("2020-01-01"), FinishDate: day("2021-01-01")},
			{PositionID: 12, ParentPositionID: 11, StartDate: day("2021-06-01"), FinishDate: day("2022-01-01")},
		}, store.snapshot()[12])
	})

	t.Run("should skip a rejected insert and keep the other candidates", func(t *testing.T) {
		store := newFakeRelationStore(1)
		store.addPosition(1, "100", full)
		store.addPosition(2, "100", full)
		store.addPosition(3, "110", full)
		store.addParentCode(3, strPtr("100"), full)
		store.failParents[1] = true

		result, err := newTestGenerator(t, store, 2).ForDictionary(ctx, 1)

		require.NoError(t, err)
		assert.Equal(t, 1, result.Created)
		assert.Equal(t, 1, result.Failed)
		require.Len(t, store.snapshot()[3], 1)
		assert.Equal(t, int64(2), store.snapshot()[3][0].ParentPositionID)
	})

	t.Run("should report a failed position and continue with the rest", func(t *testing.T) {
		store := newFakeRelationStore(1)
		store.addPosition(1, "100", full)
		store.addPosition(2, "110", full)
		store.addParentCode(2, strPtr("100"), full)
		store.addPosition(3, "120", full)
		store.addParentCode(3, strPtr("100"), full)
		store.failReads[2] = true

		result, err := newTestGenerator(t, store, 2).ForDictionary(ctx, 1)

		require.NoError(t, err)
		assert.Equal(t, 3, result.Positions)
		assert.Equal(t, []int64{2}, result.FailedPositions)
		assert.Equal(t, 1, result.Created)
		assert.Contains(t, store.snapshot(), int64(3))
	})

	t.Run("should ignore absent parent codes", func(t *testing.T) {
		store := newFakeRelationStore(1)
		store.addPosition(1, "100", full)
		store.addParentCode(1, nil, full)

		result, err := newTestGenerator(t, store, 1).ForDictionary(ctx, 1)

		require.NoError(t, err)
		assert.Equal(t, 0, result.Created+result.Skipped+result.Failed)
	})

	t.Run("should never run more rebuilds at once than workers", func(t *testing.T) {
		store := newFakeRelationStore(1)
		for i := int64(1); i <= 40; i++ {
			store.addPosition(i, fmt.Sprintf("%d", i), full)
		}
		store.delay = 2 * time.Millisecond

		result, err := newTestGenerator(t, store, 3).ForDictionary(ctx, 1)

		require.NoError(t, err)
		assert.Equal(t, 40, result.Positions)
		assert.LessOrEqual(t, store.maxInFlight, 3)
		assert.GreaterOrEqual(t, store.maxInFlight, 1)
	})

	t.Run("should succeed on an empty dictionary", func(t *testing.T) {
		store := newFakeRelationStore(1)

		result, err := newTestGenerator(t, store, 4).ForDictionary(ctx, 1)

		require.NoError(t, err)
		assert.Equal(t, models.RelationResult{}, result)
	})

	t.Run("should stop when the context is cancelled", func(t *testing.T) {
		store := newFakeRelationStore(1)
		for i := int64(1); i <= 10; i++ {
			store.addPosition(i, fmt.Sprintf("%d", i), full)
		}
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		result, err := newTestGenerator(t, store, 2).ForDictionary(cancelled, 1)

		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
		assert.Less(t, result.Positions, 10)
	})
}

func TestGenerator_ForPosition(t *testing.T) {
	ctx := context.Background()
	full := window("2020-01-01", "9999-12-31")

	t.Run("should rebuild only the given position", func(t *testing.T) {
		store := newFakeRelationStore(1)
		store.addPosition(1, "100", full)
		store.addPosition(2, "110", full)
		store.addParentCode(2, strPtr("100"), full)
		store.addPosition(3, "120", full)
		store.addParentCode(3, strPtr("100"), full)

		result, err := newTestGenerator(t, store, 1).ForPosition(ctx, 1, 2)

		require.NoError(t, err)
		assert.Equal(t, models.RelationResult{Positions: 1, Created: 1}, result)
		snapshot := store.snapshot()
		assert.Contains(t, snapshot, int64(2))
		assert.NotContains(t, snapshot, int64(3))
	})

	t.Run("should fail for a position of another dictionary", func(t *testing.T) {
		store := newFakeRelationStore(1)
		store.addPosition(1, "100", full)

		_, err := newTestGenerator(t, store, 1).ForPosition(ctx, 2, 1)

		assert.True(t, errors.Is(err, models.ErrNotFound))
	})

	t.Run("should propagate a failed rebuild", func(t *testing.T) {
		store := newFakeRelationStore(1)
		store.addPosition(1, "100", full)
		store.failReads[1] = true

		_, err := newTestGenerator(t, store, 1).ForPosition(ctx, 1, 1)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection reset")
	})
}
