package models

import (
	"time"
)

// Attribute alt names with structural meaning for import and hierarchy generation.
const (
	AltNameCode       = "CODE"
	AltNameName       = "NAME"
	AltNameParentCode = "PARENT_CODE"
)

// Attribute type tags.
const (
	AttributeTypeText    = 1
	AttributeTypeNumeric = 2
	AttributeTypeFlag    = 3
)

const (
	DictionaryStatusInactive = 0
	DictionaryStatusActive   = 1
)

// DictionaryIn is the editable definition of a dictionary.
type DictionaryIn struct {
	Name           string    `json:"name" validate:"required,max=500"`
	Code           string    `json:"code" validate:"required,max=100"`
	Description    string    `json:"description" validate:"max=2000"`
	StartDate      time.Time `json:"start_date" validate:"required"`
	FinishDate     time.Time `json:"finish_date" validate:"required,gtefield=StartDate"`
	NameEng        *string   `json:"name_eng,omitempty"`
	NameBel        *string   `json:"name_bel,omitempty"`
	DescriptionEng *string   `json:"description_eng,omitempty"`
	DescriptionBel *string   `json:"description_bel,omitempty"`
	GKO            bool      `json:"gko"`
	Organization   *string   `json:"organization,omitempty"`
	Classifier     *string   `json:"classifier,omitempty"`
	TypeID         *int      `json:"id_type,omitempty"`
	StatusID       int       `json:"id_status"`
}

type Dictionary struct {
	ID int64 `json:"id"`
	DictionaryIn
}

// ActiveOn reports whether date falls inside the dictionary's validity window.
func (d DictionaryIn) ActiveOn(date time.Time) bool {
	return Window{Start: d.StartDate, Finish: d.FinishDate}.Contains(date)
}

// AttributeIn describes a new attribute of a dictionary.
type AttributeIn struct {
	DictionaryID int64     `json:"id_dictionary" validate:"required,gt=0"`
	Name         string    `json:"name" validate:"required,max=250"`
	Type         int       `json:"type" validate:"oneof=1 2 3"`
	Required     bool      `json:"required"`
	Capacity     int       `json:"capacity" validate:"gt=0"`
	StartDate    time.Time `json:"start_date" validate:"required"`
	FinishDate   time.Time `json:"finish_date" validate:"required,gtefield=StartDate"`
	AltName      *string   `json:"alt_name,omitempty" validate:"omitempty,alt_name"`
}

type Attribute struct {
	ID int64 `json:"id"`
	AttributeIn
}

// Window is a closed validity range of dates.
type Window struct {
	Start  time.Time `json:"start_date"`
	Finish time.Time `json:"finish_date"`
}

// Contains reports whether date lies within [Start, Finish].
func (w Window) Contains(date time.Time) bool {
	return !date.Before(w.Start) && !date.After(w.Finish)
}

// Position is one row of dictionary content. All content lives in DataFacts.
type Position struct {
	ID           int64 `json:"id"`
	DictionaryID int64 `json:"id_dictionary"`
}

// DataFact is a single attribute value of a position valid within a window.
type DataFact struct {
	PositionID  int64
	AttributeID int64
	Value       *string
	StartDate   time.Time
	FinishDate  time.Time
}

// CodeFact is a CODE or PARENT_CODE fact as read by the relation generator.
type CodeFact struct {
	PositionID int64
	Value      *string
	Window     Window
}

// Relation is a derived parent/child edge valid within a window.
type Relation struct {
	PositionID       int64
	ParentPositionID int64
	StartDate        time.Time
	FinishDate       time.Time
}

// FactRow is a fact valid on a reference date, as read by the point-in-time reader.
type FactRow struct {
	ID          int64
	PositionID  int64
	AttributeID int64
	Value       *string
	StartDate   time.Time
}

// ActiveRelation is a relation covering a reference date together with the parent's code on that date.
type ActiveRelation struct {
	ID               int64
	PositionID       int64
	ParentPositionID int64
	ParentCode       *string
	StartDate        time.Time
}

// PositionFilter selects the positions returned by the point-in-time reader.
// At most one of PositionID, CodeFragment and TextFragment is expected to be set.
type PositionFilter struct {
	DictionaryID int64
	Date         time.Time
	PositionID   *int64
	CodeFragment string
	TextFragment string
}

type AttrValue struct {
	Name  string  `json:"name"`
	Value *string `json:"value"`
}

// PositionOut is a position reconstructed as of one reference date.
type PositionOut struct {
	ID         int64       `json:"id"`
	ParentID   *int64      `json:"parent_id"`
	ParentCode *string     `json:"parent_code"`
	Attrs      []AttrValue `json:"attrs"`
}

// Table is a decoded rectangular input: ordered column names plus rows of cells.
type Table struct {
	Columns []string
	Rows    [][]string
}

// ColumnIndex maps every column name to its position.
func (t *Table) ColumnIndex() map[string]int {
	index := make(map[string]int, len(t.Columns))
	for i, name := range t.Columns {
		index[name] = i
	}
	return index
}

// Cell returns the cell at column i of row, or an empty string for short rows.
func (t *Table) Cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// RelationResult summarizes a relation generation run.
type RelationResult struct {
	Positions       int     `json:"positions"`
	Created         int     `json:"created"`
	Skipped         int     `json:"skipped"`
	Failed          int     `json:"failed"`
	FailedPositions []int64 `json:"failed_positions,omitempty"`
}

// Merge adds the counts of other into r.
func (r *RelationResult) Merge(other RelationResult) {
	r.Positions += other.Positions
	r.Created += other.Created
	r.Skipped += other.Skipped
	r.Failed += other.Failed
	r.FailedPositions = append(r.FailedPositions, other.FailedPositions...)
}

// ImportResult summarizes an import run.
type ImportResult struct {
	RecordID     int64          `json:"record_id"`
	RowsTotal    int            `json:"rows_total"`
	RowsImported int            `json:"rows_imported"`
	RowsSkipped  int            `json:"rows_skipped"`
	Facts        int            `json:"facts"`
	Batches      int            `json:"batches"`
	Relations    RelationResult `json:"relations"`
}

// HasErrors reports whether any item of the run failed.
func (r *ImportResult) HasErrors() bool {
	return r.Relations.Failed > 0 || len(r.Relations.FailedPositions) > 0
}

// ImportRecord tracks one import of a table into a dictionary.
type ImportRecord struct {
	ID           int64
	DictionaryID int64
	FileName     string
	ProcessedAt  time.Time
	Status       string
	Checksum     string
}

type FileInfo struct {
	Path string
}
