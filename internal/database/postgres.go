package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ThiagoRGoveia/refdict/internal/models"
)

const (
	IMPORT_STATUS_PROCESSING       = "PROCESSING"
	IMPORT_STATUS_DONE             = "DONE"
	IMPORT_STATUS_DONE_WITH_ERRORS = "DONE_WITH_ERRORS"
	IMPORT_STATUS_FATAL            = "FATAL"
)

// ConnectDB opens a pool capped at maxConns connections and verifies it with a ping.
func ConnectDB(ctx context.Context, connStr string, maxConns int32) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database url: %w", err)
	}
	if maxConns > 0 {
		poolConfig.MaxConns = maxConns
	}

	dbpool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := dbpool.Ping(ctx); err != nil {
		dbpool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return dbpool, nil
}

type PostgresDBManager struct {
	dbpool *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgresDBManager(pool *pgxpool.Pool, logger *zap.Logger) *PostgresDBManager {
	return &PostgresDBManager{dbpool: pool, logger: logger.Named("database")}
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS dictionary (
		id BIGSERIAL PRIMARY KEY,
		name VARCHAR(500) NOT NULL,
		code VARCHAR(100) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		start_date DATE NOT NULL,
		finish_date DATE NOT NULL,
		change_date DATE NOT NULL DEFAULT CURRENT_DATE,
		name_eng VARCHAR(500),
		name_bel VARCHAR(500),
		description_eng TEXT,
		description_bel TEXT,
		gko BOOLEAN NOT NULL DEFAULT FALSE,
		organization VARCHAR(500),
		classifier VARCHAR(500),
		id_status INTEGER NOT NULL DEFAULT 0,
		id_type INTEGER,
		CHECK (start_date <= finish_date)
	);`,
	`CREATE TABLE IF NOT EXISTS dictionary_attribute (
		id BIGSERIAL PRIMARY KEY,
		id_dictionary BIGINT NOT NULL REFERENCES dictionary (id) ON DELETE CASCADE,
		name VARCHAR(250) NOT NULL,
		id_attribute_type INTEGER NOT NULL,
		required BOOLEAN NOT NULL DEFAULT FALSE,
		capacity INTEGER NOT NULL,
		start_date DATE NOT NULL,
		finish_date DATE NOT NULL,
		alt_name VARCHAR(100)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_dictionary_attribute_dictionary ON dictionary_attribute (id_dictionary, alt_name);`,
	`CREATE TABLE IF NOT EXISTS dictionary_positions (
		id BIGSERIAL PRIMARY KEY,
		id_dictionary BIGINT NOT NULL REFERENCES dictionary (id) ON DELETE CASCADE
	);`,
	`CREATE INDEX IF NOT EXISTS idx_dictionary_positions_dictionary ON dictionary_positions (id_dictionary);`,
	`CREATE TABLE IF NOT EXISTS dictionary_data (
		id BIGSERIAL PRIMARY KEY,
		id_position BIGINT NOT NULL REFERENCES dictionary_positions (id) ON DELETE CASCADE,
		id_attribute BIGINT NOT NULL REFERENCES dictionary_attribute (id) ON DELETE CASCADE,
		value TEXT,
		start_date DATE NOT NULL,
		finish_date DATE NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_dictionary_data_position ON dictionary_data (id_position, id_attribute);`,
	`CREATE INDEX IF NOT EXISTS idx_dictionary_data_attribute_value ON dictionary_data (id_attribute, value);`,
	`CREATE TABLE IF NOT EXISTS dictionary_relations (
		id BIGSERIAL PRIMARY KEY,
		id_positions BIGINT NOT NULL REFERENCES dictionary_positions (id) ON DELETE CASCADE,
		id_parent_positions BIGINT NOT NULL REFERENCES dictionary_positions (id) ON DELETE CASCADE,
		start_date DATE NOT NULL,
		finish_date DATE NOT NULL,
		CHECK (start_date < finish_date)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_dictionary_relations_position ON dictionary_relations (id_positions);`,
	`CREATE TABLE IF NOT EXISTS import_records (
		id BIGSERIAL PRIMARY KEY,
		id_dictionary BIGINT NOT NULL REFERENCES dictionary (id) ON DELETE CASCADE,
		file_name VARCHAR(255) NOT NULL,
		processed_at TIMESTAMP NOT NULL,
		status VARCHAR(50) NOT NULL CHECK (status IN ('DONE', 'DONE_WITH_ERRORS', 'PROCESSING', 'FATAL')),
		checksum VARCHAR(64),
		rows_total INTEGER NOT NULL DEFAULT 0,
		rows_imported INTEGER NOT NULL DEFAULT 0,
		errors jsonb
	);`,
	`CREATE INDEX IF NOT EXISTS idx_import_records_checksum ON import_records (id_dictionary, checksum);`,
}

// CreateTables creates every table and index of the store. It is safe to run repeatedly.
func (m *PostgresDBManager) CreateTables(ctx context.Context) error {
	tx, err := m.dbpool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, query := range schemaStatements {
		if _, err := tx.Exec(ctx, query); err != nil {
			return fmt.Errorf("error creating schema: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("error committing schema: %w", err)
	}

	m.logger.Info("schema ready", zap.Int("statements", len(schemaStatements)))
	return nil
}

func (m *PostgresDBManager) InsertImportRecord(ctx context.Context, record models.ImportRecord) (int64, error) {
	query := `
	INSERT INTO import_records (id_dictionary, file_name, processed_at, status, checksum)
	VALUES (@id_dictionary, @file_name, @processed_at, @status, @checksum)
	RETURNING id;`

	var recordID int64
	err := m.dbpool.QueryRow(ctx, query, pgx.NamedArgs{
		"id_dictionary": record.DictionaryID,
		"file_name":     record.FileName,
		"processed_at":  record.ProcessedAt,
		"status":        record.Status,
		"checksum":      record.Checksum,
	}).Scan(&recordID)
	if err != nil {
		return 0, fmt.Errorf("error inserting import record: %w", mapPgError(err))
	}

	return recordID, nil
}

func (m *PostgresDBManager) UpdateImportRecord(ctx context.Context, id int64, status string, result models.ImportResult, errs []string) error {
	query := `
	UPDATE import_records
	SET status = @status,
		processed_at = @processed_at,
		rows_total = @rows_total,
		rows_imported = @rows_imported,
		errors = @errors
	WHERE id = @id;`

	var errorsJSON []byte
	if len(errs) > 0 {
		var err error
		errorsJSON, err = json.Marshal(errs)
		if err != nil {
			return fmt.Errorf("error encoding import errors: %w", err)
		}
	}

	_, err := m.dbpool.Exec(ctx, query, pgx.NamedArgs{
		"status":        status,
		"processed_at":  time.Now(),
		"rows_total":    result.RowsTotal,
		"rows_imported": result.RowsImported,
		"errors":        errorsJSON,
		"id":            id,
	})
	if err != nil {
		return fmt.Errorf("error updating import record status: %w", err)
	}

	return nil
}

func (m *PostgresDBManager) IsTableAlreadyImported(ctx context.Context, dictionaryID int64, checksum string) (bool, error) {
	query := `
	SELECT id
	FROM import_records
	WHERE id_dictionary = @id_dictionary AND checksum = @checksum AND status = 'DONE'
	LIMIT 1;`

	var id int64
	err := m.dbpool.QueryRow(ctx, query, pgx.NamedArgs{
		"id_dictionary": dictionaryID,
		"checksum":      checksum,
	}).Scan(&id)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("error finding import record by checksum: %w", err)
	}

	return true, nil
}
