package database

import (
	"context"
	"fmt"
	"slices"

	"github.com/jackc/pgx/v5"

	"github.com/ThiagoRGoveia/refdict/internal/models"
)

// CreatePositions allocates count positions in a single statement and returns
// their ids in ascending order.
func (m *PostgresDBManager) CreatePositions(ctx context.Context, dictionaryID int64, count int) ([]int64, error) {
	if count <= 0 {
		return []int64{}, nil
	}

	query := `
	INSERT INTO dictionary_positions (id_dictionary)
	SELECT @id_dictionary FROM generate_series(1, @count)
	RETURNING id;`

	rows, err := m.dbpool.Query(ctx, query, pgx.NamedArgs{
		"id_dictionary": dictionaryID,
		"count":         count,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating positions: %w", mapPgError(err))
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("error creating positions: %w", mapPgError(err))
	}
	if len(ids) != count {
		return nil, fmt.Errorf("error creating positions: expected %d ids, got %d", count, len(ids))
	}
	slices.Sort(ids)

	return ids, nil
}

// InsertData bulk writes facts with the COPY protocol. The copy is atomic: either
// every fact of the call is stored or none is.
func (m *PostgresDBManager) InsertData(ctx context.Context, facts []models.DataFact) (int64, error) {
	if len(facts) == 0 {
		return 0, nil
	}

	copySource := pgx.CopyFromSlice(len(facts), func(i int) ([]interface{}, error) {
		fact := facts[i]
		return []interface{}{fact.PositionID, fact.AttributeID, fact.Value, fact.StartDate, fact.FinishDate}, nil
	})

	copyCount, err := m.dbpool.CopyFrom(
		ctx,
		pgx.Identifier{"dictionary_data"},
		[]string{"id_position", "id_attribute", "value", "start_date", "finish_date"},
		copySource,
	)
	if err != nil {
		return 0, fmt.Errorf("error copying facts: %w", mapPgError(err))
	}

	return copyCount, nil
}

func (m *PostgresDBManager) ListPositionIDs(ctx context.Context, dictionaryID int64) ([]int64, error) {
	query := `SELECT id FROM dictionary_positions WHERE id_dictionary = @id_dictionary ORDER BY id;`

	rows, err := m.dbpool.Query(ctx, query, pgx.NamedArgs{"id_dictionary": dictionaryID})
	if err != nil {
		return nil, fmt.Errorf("error listing positions of dictionary %d: %w", dictionaryID, err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("error scanning position ids: %w", err)
	}

	return ids, nil
}

func (m *PostgresDBManager) PositionExists(ctx context.Context, dictionaryID, positionID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM dictionary_positions WHERE id = @id AND id_dictionary = @id_dictionary);`

	var exists bool
	err := m.dbpool.QueryRow(ctx, query, pgx.NamedArgs{
		"id":            positionID,
		"id_dictionary": dictionaryID,
	}).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("error checking position %d: %w", positionID, err)
	}

	return exists, nil
}
