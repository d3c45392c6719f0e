package reader

import (
	"github.com/ThiagoRGoveia/refdict/internal/models"
)

// Ambiguity kinds reported when more than one row is valid on the reference date.
const (
	AmbiguityRelation = "relation"
	AmbiguityFact     = "fact"
)

type factKey struct {
	positionID  int64
	attributeID int64
}

// pivot assembles positions from their facts and relations. Every attribute is
// listed for every position, absent ones with a nil value. When several rows
// compete for the same slot the one with the latest start date wins, then the
// one with the highest id, and onAmbiguity is told about it.
func pivot(
	positionIDs []int64,
	attributes []models.Attribute,
	facts []models.FactRow,
	relations []models.ActiveRelation,
	onAmbiguity func(kind string, positionID int64, candidates int),
) []models.PositionOut {
	chosenFacts := make(map[factKey]models.FactRow, len(facts))
	factCandidates := make(map[factKey]int, len(facts))
	for _, fact := range facts {
		key := factKey{positionID: fact.PositionID, attributeID: fact.AttributeID}
		factCandidates[key]++
		if current, ok := chosenFacts[key]; !ok || newerFact(fact, current) {
			chosenFacts[key] = fact
		}
	}

	chosenRelations := make(map[int64]models.ActiveRelation, len(relations))
	relationCandidates := make(map[int64]int, len(relations))
	for _, relation := range relations {
		relationCandidates[relation.PositionID]++
		if current, ok := chosenRelations[relation.PositionID]; !ok || newerRelation(relation, current) {
			chosenRelations[relation.PositionID] = relation
		}
	}

	positions := make([]models.PositionOut, 0, len(positionIDs))
	for _, positionID := range positionIDs {
		position := models.PositionOut{ID: positionID, Attrs: make([]models.AttrValue, 0, len(attributes))}

		if relation, ok := chosenRelations[positionID]; ok {
			parentID := relation.ParentPositionID
			position.ParentID = &parentID
			position.ParentCode = relation.ParentCode
			if n := relationCandidates[positionID]; n > 1 {
				onAmbiguity(AmbiguityRelation, positionID, n)
			}
		}

		for _, attribute := range attributes {
			value := models.AttrValue{Name: attribute.Name}
			key := factKey{positionID: positionID, attributeID: attribute.ID}
			if fact, ok := chosenFacts[key]; ok {
				value.Value = fact.Value
				if n := factCandidates[key]; n > 1 {
					onAmbiguity(AmbiguityFact, positionID, n)
				}
			}
			position.Attrs = append(position.Attrs, value)
		}

		positions = append(positions, position)
	}
	return positions
}

func newerFact(a, b models.FactRow) bool {
	if !a.StartDate.Equal(b.StartDate) {
		return a.StartDate.After(b.StartDate)
	}
	return a.ID > b.ID
}

func newerRelation(a, b models.ActiveRelation) bool {
	if !a.StartDate.Equal(b.StartDate) {
		return a.StartDate.After(b.StartDate)
	}
	return a.ID > b.ID
}
