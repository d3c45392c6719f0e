package dictionary

import (
	"github.com/ThiagoRGoveia/refdict/internal/models"
)

const seedCapacity = 250

type seedAttribute struct {
	Name     string
	AltName  string
	Type     int
	Required bool
}

// seedAttributes is the fixed set of attributes every dictionary is created with.
var seedAttributes = []seedAttribute{
	{Name: "Наименование", AltName: models.AltNameName, Type: models.AttributeTypeText, Required: true},
	{Name: "Код", AltName: models.AltNameCode, Type: models.AttributeTypeText, Required: true},
	{Name: "Код родительской позиции", AltName: models.AltNameParentCode, Type: models.AttributeTypeText, Required: true},
	{Name: "Признак полноты итога", AltName: "FULL_SUM", Type: models.AttributeTypeFlag, Required: true},
	{Name: "Дата начала действия позиции", AltName: "START_DATE", Type: models.AttributeTypeFlag, Required: true},
	{Name: "Дата окончания действия позиции", AltName: "FINISH_DATE", Type: models.AttributeTypeFlag, Required: true},
	{Name: "Наименование на белорусском языке", AltName: "NAME_BEL", Type: models.AttributeTypeText, Required: true},
	{Name: "Наименование на английском языке", AltName: "NAME_ENG", Type: models.AttributeTypeText, Required: true},
	{Name: "Описание", AltName: "DESCR", Type: models.AttributeTypeText},
	{Name: "Описание на белорусском языке", AltName: "DESCR_BEL", Type: models.AttributeTypeText},
	{Name: "Описание на английском языке", AltName: "DESCR_ENG", Type: models.AttributeTypeText},
	{Name: "Комментарий", AltName: "COMMENT", Type: models.AttributeTypeText},
}

// SeedAttributes builds the seed attribute definitions for a dictionary window.
// DictionaryID is left zero and bound by the store on insert.
func SeedAttributes(dictionary models.DictionaryIn) []models.AttributeIn {
	attributes := make([]models.AttributeIn, 0, len(seedAttributes))
	for _, seed := range seedAttributes {
		altName := seed.AltName
		attributes = append(attributes, models.AttributeIn{
			Name:       seed.Name,
			Type:       seed.Type,
			Required:   seed.Required,
			Capacity:   seedCapacity,
			StartDate:  dictionary.StartDate,
			FinishDate: dictionary.FinishDate,
			AltName:    &altName,
		})
	}
	return attributes
}
