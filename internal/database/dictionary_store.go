package database

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"

	"github.com/ThiagoRGoveia/refdict/internal/models"
)

const dictionaryColumns = `id, name, code, description, start_date, finish_date, name_eng, name_bel,
	description_eng, description_bel, gko, organization, classifier, id_status, id_type`

const attributeColumns = `id, id_dictionary, name, id_attribute_type, required, capacity, start_date, finish_date, alt_name`

func dictionaryArgs(d models.DictionaryIn) pgx.NamedArgs {
	return pgx.NamedArgs{
		"name":            d.Name,
		"code":            d.Code,
		"description":     d.Description,
		"start_date":      d.StartDate,
		"finish_date":     d.FinishDate,
		"name_eng":        d.NameEng,
		"name_bel":        d.NameBel,
		"description_eng": d.DescriptionEng,
		"description_bel": d.DescriptionBel,
		"gko":             d.GKO,
		"organization":    d.Organization,
		"classifier":      d.Classifier,
		"id_status":       d.StatusID,
		"id_type":         d.TypeID,
	}
}

func attributeArgs(a models.AttributeIn) pgx.NamedArgs {
	return pgx.NamedArgs{
		"id_dictionary":     a.DictionaryID,
		"name":              a.Name,
		"id_attribute_type": a.Type,
		"required":          a.Required,
		"capacity":          a.Capacity,
		"start_date":        a.StartDate,
		"finish_date":       a.FinishDate,
		"alt_name":          a.AltName,
	}
}

const insertAttributeQuery = `
	INSERT INTO dictionary_attribute (id_dictionary, name, id_attribute_type, required, capacity, start_date, finish_date, alt_name)
	VALUES (@id_dictionary, @name, @id_attribute_type, @required, @capacity, @start_date, @finish_date, @alt_name)
	RETURNING id;`

// CreateDictionary inserts the dictionary and its seed attributes in one transaction.
// Seed entries with a zero DictionaryID are bound to the new dictionary.
func (m *PostgresDBManager) CreateDictionary(ctx context.Context, dictionary models.DictionaryIn, seed []models.AttributeIn) (int64, error) {
	tx, err := m.dbpool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
	INSERT INTO dictionary (name, code, description, start_date, finish_date, change_date, name_eng, name_bel,
		description_eng, description_bel, gko, organization, classifier, id_status, id_type)
	VALUES (@name, @code, @description, @start_date, @finish_date, CURRENT_DATE, @name_eng, @name_bel,
		@description_eng, @description_bel, @gko, @organization, @classifier, @id_status, @id_type)
	RETURNING id;`

	var dictionaryID int64
	if err := tx.QueryRow(ctx, query, dictionaryArgs(dictionary)).Scan(&dictionaryID); err != nil {
		return 0, fmt.Errorf("error inserting dictionary: %w", mapPgError(err))
	}

	if len(seed) > 0 {
		batch := &pgx.Batch{}
		for _, attribute := range seed {
			if attribute.DictionaryID == 0 {
				attribute.DictionaryID = dictionaryID
			}
			batch.Queue(insertAttributeQuery, attributeArgs(attribute))
		}

		results := tx.SendBatch(ctx, batch)
		for _, attribute := range seed {
			var id int64
			if err := results.QueryRow().Scan(&id); err != nil {
				results.Close()
				return 0, fmt.Errorf("error inserting seed attribute %s: %w", attribute.Name, mapPgError(err))
			}
		}
		if err := results.Close(); err != nil {
			return 0, fmt.Errorf("error closing seed batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("error committing dictionary: %w", err)
	}

	return dictionaryID, nil
}

func (m *PostgresDBManager) UpdateDictionary(ctx context.Context, id int64, dictionary models.DictionaryIn) error {
	query := `
	UPDATE dictionary
	SET name = @name,
		code = @code,
		description = @description,
		start_date = @start_date,
		finish_date = @finish_date,
		change_date = CURRENT_DATE,
		name_eng = @name_eng,
		name_bel = @name_bel,
		description_eng = @description_eng,
		description_bel = @description_bel,
		gko = @gko,
		organization = @organization,
		classifier = @classifier,
		id_status = @id_status,
		id_type = @id_type
	WHERE id = @id;`

	args := dictionaryArgs(dictionary)
	args["id"] = id

	tag, err := m.dbpool.Exec(ctx, query, args)
	if err != nil {
		return fmt.Errorf("error updating dictionary %d: %w", id, mapPgError(err))
	}
	if tag.RowsAffected() == 0 {
		return models.NotFoundf("dictionary %d not found", id)
	}

	return nil
}

func (m *PostgresDBManager) GetDictionaries(ctx context.Context) ([]models.Dictionary, error) {
	query := `SELECT ` + dictionaryColumns + ` FROM dictionary ORDER BY id;`
	return m.queryDictionaries(ctx, query, nil)
}

// FindDictionariesByName matches name fragments case-insensitively and literally.
func (m *PostgresDBManager) FindDictionariesByName(ctx context.Context, fragment string) ([]models.Dictionary, error) {
	query := `SELECT ` + dictionaryColumns + ` FROM dictionary WHERE strpos(lower(name), lower(@fragment)) > 0 ORDER BY id;`
	return m.queryDictionaries(ctx, query, pgx.NamedArgs{"fragment": fragment})
}

func (m *PostgresDBManager) GetDictionary(ctx context.Context, id int64) (*models.Dictionary, error) {
	query := `SELECT ` + dictionaryColumns + ` FROM dictionary WHERE id = @id;`

	dictionary, err := scanDictionary(m.dbpool.QueryRow(ctx, query, pgx.NamedArgs{"id": id}))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.NotFoundf("dictionary %d not found", id)
		}
		return nil, fmt.Errorf("error getting dictionary %d: %w", id, err)
	}

	return dictionary, nil
}

func (m *PostgresDBManager) queryDictionaries(ctx context.Context, query string, args pgx.NamedArgs) ([]models.Dictionary, error) {
	var rows pgx.Rows
	var err error
	if args == nil {
		rows, err = m.dbpool.Query(ctx, query)
	} else {
		rows, err = m.dbpool.Query(ctx, query, args)
	}
	if err != nil {
		return nil, fmt.Errorf("error querying dictionaries: %w", err)
	}
	defer rows.Close()

	dictionaries := make([]models.Dictionary, 0)
	for rows.Next() {
		dictionary, err := scanDictionary(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning dictionary: %w", err)
		}
		dictionaries = append(dictionaries, *dictionary)
	}

	return dictionaries, rows.Err()
}

func scanDictionary(row pgx.Row) (*models.Dictionary, error) {
	var d models.Dictionary
	err := row.Scan(
		&d.ID, &d.Name, &d.Code, &d.Description, &d.StartDate, &d.FinishDate, &d.NameEng, &d.NameBel,
		&d.DescriptionEng, &d.DescriptionBel, &d.GKO, &d.Organization, &d.Classifier, &d.StatusID, &d.TypeID,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// GetStructure lists every attribute of the dictionary ordered by id.
func (m *PostgresDBManager) GetStructure(ctx context.Context, dictionaryID int64) ([]models.Attribute, error) {
	query := `SELECT ` + attributeColumns + ` FROM dictionary_attribute WHERE id_dictionary = @id_dictionary ORDER BY id;`

	rows, err := m.dbpool.Query(ctx, query, pgx.NamedArgs{"id_dictionary": dictionaryID})
	if err != nil {
		return nil, fmt.Errorf("error querying structure of dictionary %d: %w", dictionaryID, err)
	}
	defer rows.Close()

	attributes := make([]models.Attribute, 0)
	for rows.Next() {
		var a models.Attribute
		if err := rows.Scan(&a.ID, &a.DictionaryID, &a.Name, &a.Type, &a.Required, &a.Capacity, &a.StartDate, &a.FinishDate, &a.AltName); err != nil {
			return nil, fmt.Errorf("error scanning attribute: %w", err)
		}
		attributes = append(attributes, a)
	}

	return attributes, rows.Err()
}

func (m *PostgresDBManager) CreateAttribute(ctx context.Context, attribute models.AttributeIn) (int64, error) {
	var id int64
	err := m.dbpool.QueryRow(ctx, insertAttributeQuery, attributeArgs(attribute)).Scan(&id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, models.NotFoundf("dictionary %d not found", attribute.DictionaryID)
		}
		return 0, fmt.Errorf("error inserting attribute: %w", mapPgError(err))
	}

	return id, nil
}

// GetAttributeIDsByAltName maps alt_name to attribute id for every attribute that has one.
func (m *PostgresDBManager) GetAttributeIDsByAltName(ctx context.Context, dictionaryID int64) (map[string]int64, error) {
	query := `
	SELECT alt_name, id
	FROM dictionary_attribute
	WHERE id_dictionary = @id_dictionary AND alt_name IS NOT NULL
	ORDER BY id;`

	rows, err := m.dbpool.Query(ctx, query, pgx.NamedArgs{"id_dictionary": dictionaryID})
	if err != nil {
		return nil, fmt.Errorf("error querying attributes of dictionary %d: %w", dictionaryID, err)
	}
	defer rows.Close()

	attributes := make(map[string]int64)
	for rows.Next() {
		var altName string
		var id int64
		if err := rows.Scan(&altName, &id); err != nil {
			return nil, fmt.Errorf("error scanning attribute: %w", err)
		}
		if _, exists := attributes[altName]; !exists {
			attributes[altName] = id
		}
	}

	return attributes, rows.Err()
}
