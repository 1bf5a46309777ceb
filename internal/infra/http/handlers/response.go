package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/xavierca1/zag-leads/internal/entity"
	"github.com/xavierca1/zag-leads/internal/infra/logger"
	"github.com/xavierca1/zag-leads/internal/usecase"
)

type ErrorResponse struct {
	Code    string                    `json:"code"`
	Message string                    `json:"message"`
	Fields  []usecase.ValidationError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeErrorResponse(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// writeError maps use case errors onto HTTP status codes. Technical errors
// are logged and their cause is not echoed to the client.
func writeError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	var (
		de *usecase.DomainError
		te *usecase.TechnicalError
	)
	switch {
	case errors.Is(err, entity.ErrLeadNotFound):
		writeErrorResponse(w, http.StatusNotFound, "LEAD_NOT_FOUND", "lead not found")
	case errors.As(err, &de):
		writeJSON(w, domainStatus(de.Code), ErrorResponse{Code: de.Code, Message: de.Message, Fields: de.Fields})
	case errors.As(err, &te):
		log.WithContext(r.Context()).HTTPError(r.Method, r.URL.Path, http.StatusInternalServerError, err, "")
		writeErrorResponse(w, http.StatusInternalServerError, te.Code, te.Message)
	default:
		log.WithContext(r.Context()).HTTPError(r.Method, r.URL.Path, http.StatusInternalServerError, err, "")
		writeErrorResponse(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
	}
}

func domainStatus(code string) int {
	switch code {
	case "INVALID_STATE", "NO_NEXT_STEP", "EMAIL_CONFLICT":
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}
