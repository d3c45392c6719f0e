package server

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/ThiagoRGoveia/refdict/internal/ingestion"
	"github.com/ThiagoRGoveia/refdict/internal/models"
	"github.com/ThiagoRGoveia/refdict/internal/parser"
)

type DictionaryService interface {
	CreateDictionary(ctx context.Context, in models.DictionaryIn) (int64, error)
	UpdateDictionary(ctx context.Context, id int64, in models.DictionaryIn) error
	GetAll(ctx context.Context) ([]models.Dictionary, error)
	FindByName(ctx context.Context, fragment string) ([]models.Dictionary, error)
	GetStructure(ctx context.Context, dictionaryID int64) ([]models.Attribute, error)
	CreateAttribute(ctx context.Context, in models.AttributeIn) (int64, error)
}

type Importer interface {
	Execute(ctx context.Context, req ingestion.ImportRequest) (models.ImportResult, error)
}

type RelationService interface {
	ForDictionary(ctx context.Context, dictionaryID int64) (models.RelationResult, error)
	ForPosition(ctx context.Context, dictionaryID, positionID int64) (models.RelationResult, error)
}

type ReaderService interface {
	GetValues(ctx context.Context, dictionaryID int64, date time.Time) ([]models.PositionOut, error)
	GetValueByCode(ctx context.Context, dictionaryID int64, fragment string, date time.Time) ([]models.PositionOut, error)
	GetValueByID(ctx context.Context, dictionaryID, positionID int64, date time.Time) (*models.PositionOut, error)
	FindValue(ctx context.Context, dictionaryID int64, fragment string, date time.Time) ([]models.PositionOut, error)
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Services struct {
	Dictionaries DictionaryService
	Importer     Importer
	Relations    RelationService
	Reader       ReaderService
	Health       Pinger
}

type Handler struct {
	Services
	maxUploadBytes int64
	logger         *zap.Logger
}

func NewHandler(services Services, maxUploadBytes int64, logger *zap.Logger) *Handler {
	return &Handler{
		Services:       services,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.Named("http"),
	}
}

func (h *Handler) CreateDictionary(w http.ResponseWriter, r *http.Request) {
	var req dictionaryRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	in, err := req.toModel()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	id, err := h.Dictionaries.CreateDictionary(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: id})
}

func (h *Handler) UpdateDictionary(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req dictionaryRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	in, err := req.toModel()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.Dictionaries.UpdateDictionary(r.Context(), id, in); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resultEnvelope{Success: true})
}

func (h *Handler) GetDictionaries(w http.ResponseWriter, r *http.Request) {
	dictionaries, err := h.Dictionaries.GetAll(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newDictionaryResponses(dictionaries))
}

func (h *Handler) FindDictionaries(w http.ResponseWriter, r *http.Request) {
	dictionaries, err := h.Dictionaries.FindByName(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newDictionaryResponses(dictionaries))
}

func (h *Handler) GetStructure(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	attributes, err := h.Dictionaries.GetStructure(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAttributeResponses(attributes))
}

func (h *Handler) CreateAttribute(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req attributeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	in, err := req.toModel(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	attributeID, err := h.Dictionaries.CreateAttribute(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: attributeID})
}

// ImportValues accepts a multipart upload with a "file" part (.csv or .xlsx)
// and an optional "force" field.
func (h *Handler) ImportValues(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		h.writeError(w, r, models.Validationf("invalid upload: %v", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, r, models.Validationf("missing file part: %v", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, r, models.Validationf("read upload: %v", err))
		return
	}
	table, err := parser.Parse(header.Filename, data)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	force, err := boolParam(r.FormValue("force"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.Importer.Execute(r.Context(), ingestion.ImportRequest{
		DictionaryID: id,
		FileName:     header.Filename,
		Table:        table,
		Force:        force,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resultEnvelope{Success: !result.HasErrors(), Result: result})
}

func (h *Handler) GenerateRelations(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := h.Relations.ForDictionary(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resultEnvelope{Success: relationsSucceeded(result), Result: result})
}

func (h *Handler) GeneratePositionRelations(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	positionID, err := pathID(r, "pid")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := h.Relations.ForPosition(r.Context(), id, positionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resultEnvelope{Success: relationsSucceeded(result), Result: result})
}

func (h *Handler) GetValues(w http.ResponseWriter, r *http.Request) {
	id, date, err := readParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	positions, err := h.Reader.GetValues(r.Context(), id, date)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, positions)
}

func (h *Handler) GetValueByCode(w http.ResponseWriter, r *http.Request) {
	id, date, err := readParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	positions, err := h.Reader.GetValueByCode(r.Context(), id, r.URL.Query().Get("code"), date)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, positions)
}

func (h *Handler) GetValueByID(w http.ResponseWriter, r *http.Request) {
	id, date, err := readParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	positionID, err := pathID(r, "pid")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	position, err := h.Reader.GetValueByID(r.Context(), id, positionID, date)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, position)
}

func (h *Handler) FindValue(w http.ResponseWriter, r *http.Request) {
	id, date, err := readParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	positions, err := h.Reader.FindValue(r.Context(), id, r.URL.Query().Get("q"), date)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, positions)
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.Health.Ping(ctx); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func relationsSucceeded(result models.RelationResult) bool {
	return result.Failed == 0 && len(result.FailedPositions) == 0
}

func pathID(r *http.Request, name string) (int64, error) {
	value := mux.Vars(r)[name]
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, models.Validationf("invalid %s %q", name, value)
	}
	return id, nil
}

// readParams returns the dictionary id and the optional reference date. A
// missing date is left zero so the reader falls back to today.
func readParams(r *http.Request) (int64, time.Time, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return 0, time.Time{}, err
	}
	date, err := parseDate("date", r.URL.Query().Get("date"))
	if err != nil {
		return 0, time.Time{}, err
	}
	return id, date, nil
}

func boolParam(value string) (bool, error) {
	if value == "" {
		return false, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, models.Validationf("invalid boolean %q", value)
	}
	return parsed, nil
}
