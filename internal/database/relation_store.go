package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ThiagoRGoveia/refdict/internal/models"
)

// RebuildRelations runs fn in one transaction holding a transaction-scoped
// advisory lock on positionID, so concurrent rebuilds of the same position
// queue behind each other instead of interleaving.
func (m *PostgresDBManager) RebuildRelations(ctx context.Context, positionID int64, fn func(RelationTx) error) error {
	tx, err := m.dbpool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(@position_id);`, pgx.NamedArgs{"position_id": positionID}); err != nil {
		return fmt.Errorf("error locking position %d: %w", positionID, err)
	}

	if err := fn(&pgRelationTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("error committing relations of position %d: %w", positionID, err)
	}

	return nil
}

type pgRelationTx struct {
	tx pgx.Tx
}

func (r *pgRelationTx) DeleteRelations(ctx context.Context, positionID int64) (int64, error) {
	tag, err := r.tx.Exec(ctx, `DELETE FROM dictionary_relations WHERE id_positions = @position_id;`, pgx.NamedArgs{"position_id": positionID})
	if err != nil {
		return 0, fmt.Errorf("error deleting relations of position %d: %w", positionID, err)
	}
	return tag.RowsAffected(), nil
}

func (r *pgRelationTx) ParentCodeFacts(ctx context.Context, positionID int64) ([]models.CodeFact, error) {
	query := `
	SELECT d.id_position, d.value, d.start_date, d.finish_date
	FROM dictionary_data d
	JOIN dictionary_attribute a ON a.id = d.id_attribute
	WHERE d.id_position = @position_id AND a.alt_name = @alt_name
	ORDER BY d.start_date, d.id;`

	return r.queryCodeFacts(ctx, query, pgx.NamedArgs{
		"position_id": positionID,
		"alt_name":    models.AltNameParentCode,
	})
}

func (r *pgRelationTx) CodeFacts(ctx context.Context, dictionaryID int64, code string) ([]models.CodeFact, error) {
	query := `
	SELECT d.id_position, d.value, d.start_date, d.finish_date
	FROM dictionary_data d
	JOIN dictionary_attribute a ON a.id = d.id_attribute
	WHERE a.id_dictionary = @id_dictionary AND a.alt_name = @alt_name AND d.value = @code
	ORDER BY d.id_position, d.start_date;`

	return r.queryCodeFacts(ctx, query, pgx.NamedArgs{
		"id_dictionary": dictionaryID,
		"alt_name":      models.AltNameCode,
		"code":          code,
	})
}

func (r *pgRelationTx) queryCodeFacts(ctx context.Context, query string, args pgx.NamedArgs) ([]models.CodeFact, error) {
	rows, err := r.tx.Query(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("error querying code facts: %w", err)
	}
	defer rows.Close()

	facts := make([]models.CodeFact, 0)
	for rows.Next() {
		var fact models.CodeFact
		if err := rows.Scan(&fact.PositionID, &fact.Value, &fact.Window.Start, &fact.Window.Finish); err != nil {
			return nil, fmt.Errorf("error scanning code fact: %w", err)
		}
		facts = append(facts, fact)
	}

	return facts, rows.Err()
}

// InsertRelation inserts inside a savepoint so a rejected edge does not abort
// the rebuild transaction.
func (r *pgRelationTx) InsertRelation(ctx context.Context, relation models.Relation) error {
	savepoint, err := r.tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error creating savepoint: %w", err)
	}
	defer savepoint.Rollback(ctx)

	query := `
	INSERT INTO dictionary_relations (id_positions, id_parent_positions, start_date, finish_date)
	VALUES (@id_positions, @id_parent_positions, @start_date, @finish_date);`

	_, err = savepoint.Exec(ctx, query, pgx.NamedArgs{
		"id_positions":        relation.PositionID,
		"id_parent_positions": relation.ParentPositionID,
		"start_date":          relation.StartDate,
		"finish_date":         relation.FinishDate,
	})
	if err != nil {
		return fmt.Errorf("error inserting relation %d -> %d: %w", relation.PositionID, relation.ParentPositionID, mapPgError(err))
	}

	return savepoint.Commit(ctx)
}
