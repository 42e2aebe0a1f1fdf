package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cleared-dev/ledger/internal/ledger"
	"github.com/cleared-dev/ledger/internal/store"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, ErrorResponse{Error: code, ErrorDescription: description})
}

// writeLedgerError maps ledger errors onto HTTP statuses. Storage failures
// are logged and reported without detail.
func (s *Server) writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		notFound *ledger.NotFoundError
		reversed *ledger.AlreadyReversedError
	)
	switch {
	case ledger.IsValidation(err):
		writeJSONError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.As(err, &notFound):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.As(err, &reversed):
		writeJSONError(w, http.StatusConflict, "already_reversed", err.Error())
	case errors.Is(err, store.ErrDuplicate):
		writeJSONError(w, http.StatusConflict, "duplicate", "A record with the same key already exists")
	default:
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "server_error", "Internal server error")
	}
}
