package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ThiagoRGoveia/refdict/internal/models"
)

// FindPositions returns the ids of the dictionary's positions selected by filter, ordered by id.
// Code and text fragments match case-sensitively against facts valid on filter.Date.
func (m *PostgresDBManager) FindPositions(ctx context.Context, filter models.PositionFilter) ([]int64, error) {
	var query strings.Builder
	query.WriteString(`
	SELECT p.id
	FROM dictionary_positions p
	WHERE p.id_dictionary = @id_dictionary`)

	args := pgx.NamedArgs{"id_dictionary": filter.DictionaryID}

	switch {
	case filter.PositionID != nil:
		query.WriteString(` AND p.id = @position_id`)
		args["position_id"] = *filter.PositionID
	case filter.CodeFragment != "":
		query.WriteString(`
		AND EXISTS (
			SELECT 1
			FROM dictionary_data d
			JOIN dictionary_attribute a ON a.id = d.id_attribute
			WHERE d.id_position = p.id
				AND a.alt_name = @alt_name
				AND strpos(d.value, @fragment) > 0
				AND d.start_date <= @date AND d.finish_date >= @date
		)`)
		args["alt_name"] = models.AltNameCode
		args["fragment"] = filter.CodeFragment
		args["date"] = filter.Date
	case filter.TextFragment != "":
		query.WriteString(`
		AND EXISTS (
			SELECT 1
			FROM dictionary_data d
			WHERE d.id_position = p.id
				AND strpos(d.value, @fragment) > 0
				AND d.start_date <= @date AND d.finish_date >= @date
		)`)
		args["fragment"] = filter.TextFragment
		args["date"] = filter.Date
	}
	query.WriteString(` ORDER BY p.id;`)

	rows, err := m.dbpool.Query(ctx, query.String(), args)
	if err != nil {
		return nil, fmt.Errorf("error finding positions of dictionary %d: %w", filter.DictionaryID, err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("error scanning position ids: %w", err)
	}

	return ids, nil
}

// FactsOn returns the facts of the given positions whose window contains date.
// Rows of one position and attribute come latest start date first.
func (m *PostgresDBManager) FactsOn(ctx context.Context, positionIDs []int64, date time.Time) ([]models.FactRow, error) {
	if len(positionIDs) == 0 {
		return []models.FactRow{}, nil
	}

	query := `
	SELECT d.id, d.id_position, d.id_attribute, d.value, d.start_date
	FROM dictionary_data d
	WHERE d.id_position = ANY(@position_ids)
		AND d.start_date <= @date AND d.finish_date >= @date
	ORDER BY d.id_position, d.id_attribute, d.start_date DESC, d.id DESC;`

	rows, err := m.dbpool.Query(ctx, query, pgx.NamedArgs{
		"position_ids": positionIDs,
		"date":         date,
	})
	if err != nil {
		return nil, fmt.Errorf("error querying facts: %w", err)
	}
	defer rows.Close()

	facts := make([]models.FactRow, 0)
	for rows.Next() {
		var fact models.FactRow
		if err := rows.Scan(&fact.ID, &fact.PositionID, &fact.AttributeID, &fact.Value, &fact.StartDate); err != nil {
			return nil, fmt.Errorf("error scanning fact: %w", err)
		}
		facts = append(facts, fact)
	}

	return facts, rows.Err()
}

// RelationsOn returns the relations of the given positions whose window contains date,
// each with the parent's CODE value valid on the same date.
func (m *PostgresDBManager) RelationsOn(ctx context.Context, positionIDs []int64, date time.Time) ([]models.ActiveRelation, error) {
	if len(positionIDs) == 0 {
		return []models.ActiveRelation{}, nil
	}

	query := `
	SELECT r.id, r.id_positions, r.id_parent_positions, r.start_date,
		(
			SELECT d.value
			FROM dictionary_data d
			JOIN dictionary_attribute a ON a.id = d.id_attribute
			WHERE d.id_position = r.id_parent_positions
				AND a.alt_name = @alt_name
				AND d.start_date <= @date AND d.finish_date >= @date
			ORDER BY d.start_date DESC, d.id DESC
			LIMIT 1
		) AS parent_code
	FROM dictionary_relations r
	WHERE r.id_positions = ANY(@position_ids)
		AND r.start_date <= @date AND r.finish_date >= @date
	ORDER BY r.id_positions, r.start_date DESC, r.id DESC;`

	rows, err := m.dbpool.Query(ctx, query, pgx.NamedArgs{
		"position_ids": positionIDs,
		"date":         date,
		"alt_name":     models.AltNameCode,
	})
	if err != nil {
		return nil, fmt.Errorf("error querying relations: %w", err)
	}
	defer rows.Close()

	relations := make([]models.ActiveRelation, 0)
	for rows.Next() {
		var relation models.ActiveRelation
		if err := rows.Scan(&relation.ID, &relation.PositionID, &relation.ParentPositionID, &relation.StartDate, &relation.ParentCode); err != nil {
			return nil, fmt.Errorf("error scanning relation: %w", err)
		}
		relations = append(relations, relation)
	}

	return relations, rows.Err()
}
