package ingestion

import (
	"strings"

	"github.com/ThiagoRGoveia/refdict/internal/models"
)

var nullTokens = map[string]struct{}{
	"nan":  {},
	"none": {},
	"null": {},
	"":     {},
}

// NormalizeValue maps null placeholders ("nan", "none", "null" or blank, in any
// case) to an absent value. Other cells are kept as they are.
func NormalizeValue(cell string) *string {
	if _, isNull := nullTokens[strings.ToLower(strings.TrimSpace(cell))]; isNull {
		return nil
	}
	value := cell
	return &value
}

// BoundColumn is a table column bound to the attribute sharing its alt_name.
type BoundColumn struct {
	Index       int
	Name        string
	AttributeID int64
}

// ImportPlan holds the rows that passed filtering with their allocated positions.
type ImportPlan struct {
	Rows        [][]string
	PositionIDs []int64
	Columns     []BoundColumn
	Window      models.Window
}

// Facts builds one fact per bound column for the i-th row of the plan.
func (p ImportPlan) Facts(i int) []models.DataFact {
	row := p.Rows[i]
	facts := make([]models.DataFact, 0, len(p.Columns))
	for _, column := range p.Columns {
		cell := ""
		if column.Index < len(row) {
			cell = row[column.Index]
		}
		facts = append(facts, models.DataFact{
			PositionID:  p.PositionIDs[i],
			AttributeID: column.AttributeID,
			Value:       NormalizeValue(cell),
			StartDate:   p.Window.Start,
			FinishDate:  p.Window.Finish,
		})
	}
	return facts
}
