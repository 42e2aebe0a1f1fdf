package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cleared-dev/ledger/internal/auditlog"
	"github.com/cleared-dev/ledger/internal/ledger"
	"github.com/cleared-dev/ledger/internal/model"
)

// postJournalEntry handles POST /businesses/{businessID}/journal-entries.
func (s *Server) postJournalEntry(w http.ResponseWriter, r *http.Request) {
	businessID := chi.URLParam(r, "businessID")

	var req JournalEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Failed to parse request body")
		return
	}

	date, err := parseDate(req.TransactionDate)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}

	entry := ledger.JournalEntry{
		BusinessID:      businessID,
		TransactionDate: date,
		Description:     req.Description,
		Reference:       req.Reference,
		Type:            req.Type,
		ActorID:         s.actor(r),
	}
	for _, l := range req.Lines {
		accountID, err := s.resolveAccount(r.Context(), businessID, l.AccountID, l.AccountCode)
		if err != nil {
			s.writeLedgerError(w, r, err)
			return
		}
		entry.Lines = append(entry.Lines, ledger.Line{
			AccountID:   accountID,
			Debit:       l.Debit,
			Credit:      l.Credit,
			Description: l.Description,
		})
	}

	txn, err := s.ledger.PostJournalEntry(r.Context(), entry)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}

	s.record(entry.ActorID, auditlog.ActionPostJournal, txn.Description, txn.TransactionNumber)
	writeJSON(w, http.StatusCreated, TransactionResponse{Transaction: txn})
}

// postIncome handles POST /businesses/{businessID}/income.
func (s *Server) postIncome(w http.ResponseWriter, r *http.Request) {
	s.postMovement(w, r, s.ledger.PostIncome, auditlog.ActionPostIncome)
}

// postExpense handles POST /businesses/{businessID}/expenses.
func (s *Server) postExpense(w http.ResponseWriter, r *http.Request) {
	s.postMovement(w, r, s.ledger.PostExpense, auditlog.ActionPostExpense)
}

type movementFunc func(ctx context.Context, m ledger.Movement) (model.Transaction, error)

func (s *Server) postMovement(w http.ResponseWriter, r *http.Request, post movementFunc, action string) {
	businessID := chi.URLParam(r, "businessID")

	var req MovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Failed to parse request body")
		return
	}

	date, err := parseDate(req.Date)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	accountID, err := s.resolveAccount(r.Context(), businessID, req.AccountID, req.AccountCode)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	cashID, err := s.resolveAccount(r.Context(), businessID, req.CashAccountID, req.CashAccountCode)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}

	actor := s.actor(r)
	txn, err := post(r.Context(), ledger.Movement{
		BusinessID:    businessID,
		AccountID:     accountID,
		CashAccountID: cashID,
		Amount:        req.Amount,
		Date:          date,
		Description:   req.Description,
		Reference:     req.Reference,
		ActorID:       actor,
	})
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}

	s.record(actor, action, fmt.Sprintf("%s %s", req.Amount.StringFixed(2), txn.Description), txn.TransactionNumber)
	writeJSON(w, http.StatusCreated, TransactionResponse{Transaction: txn})
}

// reverseTransaction handles POST /transactions/{transactionID}/reverse.
func (s *Server) reverseTransaction(w http.ResponseWriter, r *http.Request) {
	transactionID := chi.URLParam(r, "transactionID")

	// The body is optional; an empty one means no reason.
	var req ReverseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Failed to parse request body")
		return
	}

	actor := s.actor(r)
	rev, err := s.ledger.ReverseTransaction(r.Context(), transactionID, req.Reason, actor)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}

	s.record(actor, auditlog.ActionReverse, rev.Description, rev.TransactionNumber)
	writeJSON(w, http.StatusCreated, TransactionResponse{Transaction: rev})
}

// getTransaction handles GET /transactions/{transactionID}.
func (s *Server) getTransaction(w http.ResponseWriter, r *http.Request) {
	txn, lines, err := s.ledger.Transaction(r.Context(), chi.URLParam(r, "transactionID"))
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TransactionResponse{Transaction: txn, Lines: lines})
}

// listTransactions handles GET /businesses/{businessID}/transactions.
func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	txns, err := s.ledger.Transactions(r.Context(), chi.URLParam(r, "businessID"))
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	if txns == nil {
		txns = []model.Transaction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txns})
}
