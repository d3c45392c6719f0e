package database

import (
	"context"
	"time"

	"github.com/ThiagoRGoveia/refdict/internal/models"
)

// SchemaStore persists dictionaries and their attribute definitions.
type SchemaStore interface {
	CreateDictionary(ctx context.Context, dictionary models.DictionaryIn, seed []models.AttributeIn) (int64, error)
	UpdateDictionary(ctx context.Context, id int64, dictionary models.DictionaryIn) error
	GetDictionaries(ctx context.Context) ([]models.Dictionary, error)
	FindDictionariesByName(ctx context.Context, fragment string) ([]models.Dictionary, error)
	GetDictionary(ctx context.Context, id int64) (*models.Dictionary, error)
	GetStructure(ctx context.Context, dictionaryID int64) ([]models.Attribute, error)
	CreateAttribute(ctx context.Context, attribute models.AttributeIn) (int64, error)
	GetAttributeIDsByAltName(ctx context.Context, dictionaryID int64) (map[string]int64, error)
}

// FactStore persists positions and their data facts.
type FactStore interface {
	CreatePositions(ctx context.Context, dictionaryID int64, count int) ([]int64, error)
	InsertData(ctx context.Context, facts []models.DataFact) (int64, error)
	ListPositionIDs(ctx context.Context, dictionaryID int64) ([]int64, error)
}

// RelationTx is the unit of work of one position's relation rebuild. All calls
// share a transaction that holds the position's rebuild lock.
type RelationTx interface {
	DeleteRelations(ctx context.Context, positionID int64) (int64, error)
	ParentCodeFacts(ctx context.Context, positionID int64) ([]models.CodeFact, error)
	CodeFacts(ctx context.Context, dictionaryID int64, code string) ([]models.CodeFact, error)
	// InsertRelation inserts one edge. A failure leaves the surrounding transaction usable.
	InsertRelation(ctx context.Context, relation models.Relation) error
}

type RelationStore interface {
	ListPositionIDs(ctx context.Context, dictionaryID int64) ([]int64, error)
	PositionExists(ctx context.Context, dictionaryID, positionID int64) (bool, error)
	// RebuildRelations runs fn in a transaction serialized on positionID.
	// The transaction commits when fn returns nil and rolls back otherwise.
	RebuildRelations(ctx context.Context, positionID int64, fn func(RelationTx) error) error
}

type ReaderStore interface {
	GetDictionary(ctx context.Context, id int64) (*models.Dictionary, error)
	GetStructure(ctx context.Context, dictionaryID int64) ([]models.Attribute, error)
	FindPositions(ctx context.Context, filter models.PositionFilter) ([]int64, error)
	FactsOn(ctx context.Context, positionIDs []int64, date time.Time) ([]models.FactRow, error)
	RelationsOn(ctx context.Context, positionIDs []int64, date time.Time) ([]models.ActiveRelation, error)
}

type ImportRecordStore interface {
	InsertImportRecord(ctx context.Context, record models.ImportRecord) (int64, error)
	UpdateImportRecord(ctx context.Context, id int64, status string, result models.ImportResult, errors []string) error
	IsTableAlreadyImported(ctx context.Context, dictionaryID int64, checksum string) (bool, error)
}

// ImportStore is the subset of the store used by the import pipeline.
type ImportStore interface {
	GetDictionary(ctx context.Context, id int64) (*models.Dictionary, error)
	GetAttributeIDsByAltName(ctx context.Context, dictionaryID int64) (map[string]int64, error)
	CreatePositions(ctx context.Context, dictionaryID int64, count int) ([]int64, error)
	InsertData(ctx context.Context, facts []models.DataFact) (int64, error)
	ImportRecordStore
}

type DBManager interface {
	SchemaStore
	FactStore
	RelationStore
	ReaderStore
	ImportRecordStore
	CreateTables(ctx context.Context) error
}
