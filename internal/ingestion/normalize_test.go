package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThiagoRGoveia/refdict/internal/models"
)

func TestNormalizeValue(t *testing.T) {
	for _, cell := range []string{"", "   ", "nan", "NaN", "NAN", "none", "None", " null ", "NULL"} {
		assert.Nil(t, NormalizeValue(cell), "cell %q should be absent", cell)
	}

	for _, cell := range []string{"0", "Nancy", "n/a", " 100 "} {
		value := NormalizeValue(cell)
		require.NotNil(t, value, "cell %q should be kept", cell)
		assert.Equal(t, cell, *value)
	}
}

func TestImportPlan_Facts(t *testing.T) {
	plan := ImportPlan{
		Rows:        [][]string{{"100", "Root"}},
		PositionIDs: []int64{42},
		Columns: []BoundColumn{
			{Index: 0, Name: "CODE", AttributeID: 1},
			{Index: 1, Name: "NAME", AttributeID: 2},
			{Index: 2, Name: "COMMENT", AttributeID: 3},
		},
		Window: models.Window{Start: day("2020-01-01"), Finish: day("2020-12-31")},
	}

	facts := plan.Facts(0)

	require.Len(t, facts, 3)
	assert.Equal(t, int64(42), facts[0].PositionID)
	assert.Equal(t, "100", *facts[0].Value)
	assert.Equal(t, "Root", *facts[1].Value)
	assert.Nil(t, facts[2].Value, "a missing trailing cell is absent")
	assert.Equal(t, day("2020-12-31"), facts[2].FinishDate)
}
