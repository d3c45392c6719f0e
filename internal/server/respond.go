package server

import (
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/ThiagoRGoveia/refdict/internal/logging"
	"github.com/ThiagoRGoveia/refdict/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// statusFor maps the error taxonomy to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	requestID := RequestID(r.Context())
	body := errorResponse{Error: err.Error(), Hint: errors.FlattenHints(err), RequestID: requestID}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String(logging.FieldRequestID, requestID),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		body = errorResponse{Error: "internal error", RequestID: requestID}
	}
	writeJSON(w, status, body)
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return models.Validationf("invalid request body: %v", err)
	}
	return nil
}
