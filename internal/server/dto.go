package server

import (
	"time"

	"github.com/ThiagoRGoveia/refdict/internal/models"
)

const dateLayout = "2006-01-02"

// parseDate parses a YYYY-MM-DD value. An empty value yields the zero time.
func parseDate(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	date, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, models.Validationf("invalid '%s' format, use YYYY-MM-DD", field)
	}
	return date, nil
}

func formatDate(date time.Time) string {
	return date.Format(dateLayout)
}

type dictionaryRequest struct {
	Name           string  `json:"name"`
	Code           string  `json:"code"`
	Description    string  `json:"description"`
	StartDate      string  `json:"start_date"`
	FinishDate     string  `json:"finish_date"`
	NameEng        *string `json:"name_eng"`
	NameBel        *string `json:"name_bel"`
	DescriptionEng *string `json:"description_eng"`
	DescriptionBel *string `json:"description_bel"`
	GKO            bool    `json:"gko"`
	Organization   *string `json:"organization"`
	Classifier     *string `json:"classifier"`
	TypeID         *int    `json:"id_type"`
}

func (r dictionaryRequest) toModel() (models.DictionaryIn, error) {
	start, err := parseDate("start_date", r.StartDate)
	if err != nil {
		return models.DictionaryIn{}, err
	}
	finish, err := parseDate("finish_date", r.FinishDate)
	if err != nil {
		return models.DictionaryIn{}, err
	}
	return models.DictionaryIn{
		Name:           r.Name,
		Code:           r.Code,
		Description:    r.Description,
		StartDate:      start,
		FinishDate:     finish,
		NameEng:        r.NameEng,
		NameBel:        r.NameBel,
		DescriptionEng: r.DescriptionEng,
		DescriptionBel: r.DescriptionBel,
		GKO:            r.GKO,
		Organization:   r.Organization,
		Classifier:     r.Classifier,
		TypeID:         r.TypeID,
	}, nil
}

type dictionaryResponse struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	Code           string  `json:"code"`
	Description    string  `json:"description"`
	StartDate      string  `json:"start_date"`
	FinishDate     string  `json:"finish_date"`
	NameEng        *string `json:"name_eng"`
	NameBel        *string `json:"name_bel"`
	DescriptionEng *string `json:"description_eng"`
	DescriptionBel *string `json:"description_bel"`
	GKO            bool    `json:"gko"`
	Organization   *string `json:"organization"`
	Classifier     *string `json:"classifier"`
	TypeID         *int    `json:"id_type"`
	StatusID       int     `json:"id_status"`
}

func newDictionaryResponses(dictionaries []models.Dictionary) []dictionaryResponse {
	out := make([]dictionaryResponse, 0, len(dictionaries))
	for _, d := range dictionaries {
		out = append(out, dictionaryResponse{
			ID:             d.ID,
			Name:           d.Name,
			Code:           d.Code,
			Description:    d.Description,
			StartDate:      formatDate(d.StartDate),
			FinishDate:     formatDate(d.FinishDate),
			NameEng:        d.NameEng,
			NameBel:        d.NameBel,
			DescriptionEng: d.DescriptionEng,
			DescriptionBel: d.DescriptionBel,
			GKO:            d.GKO,
			Organization:   d.Organization,
			Classifier:     d.Classifier,
			TypeID:         d.TypeID,
			StatusID:       d.StatusID,
		})
	}
	return out
}

type attributeRequest struct {
	Name       string  `json:"name"`
	Type       int     `json:"type"`
	Required   bool    `json:"required"`
	Capacity   int     `json:"capacity"`
	StartDate  string  `json:"start_date"`
	FinishDate string  `json:"finish_date"`
	AltName    *string `json:"alt_name"`
}

func (r attributeRequest) toModel(dictionaryID int64) (models.AttributeIn, error) {
	start, err := parseDate("start_date", r.StartDate)
	if err != nil {
		return models.AttributeIn{}, err
	}
	finish, err := parseDate("finish_date", r.FinishDate)
	if err != nil {
		return models.AttributeIn{}, err
	}
	return models.AttributeIn{
		DictionaryID: dictionaryID,
		Name:         r.Name,
		Type:         r.Type,
		Required:     r.Required,
		Capacity:     r.Capacity,
		StartDate:    start,
		FinishDate:   finish,
		AltName:      r.AltName,
	}, nil
}

type attributeResponse struct {
	ID           int64   `json:"id"`
	DictionaryID int64   `json:"id_dictionary"`
	Name         string  `json:"name"`
	Type         int     `json:"type"`
	Required     bool    `json:"required"`
	Capacity     int     `json:"capacity"`
	StartDate    string  `json:"start_date"`
	FinishDate   string  `json:"finish_date"`
	AltName      *string `json:"alt_name"`
}

func newAttributeResponses(attributes []models.Attribute) []attributeResponse {
	out := make([]attributeResponse, 0, len(attributes))
	for _, a := range attributes {
		out = append(out, attributeResponse{
			ID:           a.ID,
			DictionaryID: a.DictionaryID,
			Name:         a.Name,
			Type:         a.Type,
			Required:     a.Required,
			Capacity:     a.Capacity,
			StartDate:    formatDate(a.StartDate),
			FinishDate:   formatDate(a.FinishDate),
			AltName:      a.AltName,
		})
	}
	return out
}

// resultEnvelope is the plain success/failure answer of the write operations.
type resultEnvelope struct {
	Success bool `json:"success"`
	Result  any  `json:"result,omitempty"`
}

type idResponse struct {
	ID int64 `json:"id"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Hint      string `json:"hint,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}
