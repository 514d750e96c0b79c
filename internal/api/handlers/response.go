package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coderisedev/cs-sub003/internal/api/middleware"
	"github.com/coderisedev/cs-sub003/internal/domain"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error      string `json:"error"`
	Saga       string `json:"saga,omitempty"`
	Step       string `json:"step,omitempty"`
	ResourceID string `json:"resource_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

// writeServiceError maps the domain error taxonomy onto HTTP. Unknown errors
// are logged and reported as 500 with fallback as the message.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error, fallback string) {
	var (
		incomplete *domain.SagaCompensationIncompleteError
		failed     *domain.SagaFailedError
		partial    *domain.PartiallyLinkedResourceError
	)

	switch {
	case errors.As(err, &incomplete):
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error: "provisioning failed and rollback is incomplete",
			Saga:  incomplete.Saga,
			Step:  incomplete.Step,
		})
	case errors.As(err, &failed) && errors.Is(err, domain.ErrConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: failed.Err.Error(), Saga: failed.Saga, Step: failed.Step})
	case errors.As(err, &failed):
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Error: "provisioning failed and was rolled back",
			Saga:  failed.Saga,
			Step:  failed.Step,
		})
	case errors.As(err, &partial):
		writeJSON(w, http.StatusMultiStatus, errorResponse{
			Error:      "resource created but not linked; retry relink",
			ResourceID: partial.ResourceID,
		})
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFoundOrInactive), errors.Is(err, domain.ErrTenantNotFound):
		writeError(w, http.StatusNotFound, domain.ErrNotFoundOrInactive.Error())
	case errors.Is(err, domain.ErrProductNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		logger.Error(fallback,
			zap.String("request_id", middleware.RequestIDFromContext(r.Context())),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, fallback)
	}
}
