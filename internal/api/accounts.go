package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cleared-dev/ledger/internal/auditlog"
	"github.com/cleared-dev/ledger/internal/model"
)

// listAccounts handles GET /businesses/{businessID}/accounts.
func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	accts, err := s.ledger.Accounts(r.Context(), chi.URLParam(r, "businessID"))
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	if accts == nil {
		accts = []model.Account{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": accts})
}

// createAccount handles POST /businesses/{businessID}/accounts.
func (s *Server) createAccount(w http.ResponseWriter, r *http.Request) {
	var req AccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Failed to parse request body")
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	acct, err := s.ledger.CreateAccount(r.Context(), model.Account{
		BusinessID: chi.URLParam(r, "businessID"),
		Code:       req.Code,
		Name:       req.Name,
		Type:       req.Type,
		IsActive:   active,
	})
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}

	s.record(s.actor(r), auditlog.ActionCreateAccount, fmt.Sprintf("%s %s (%s)", acct.Code, acct.Name, acct.Type), "")
	writeJSON(w, http.StatusCreated, map[string]any{"account": acct})
}
