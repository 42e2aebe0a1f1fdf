package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/ledger/internal/auditlog"
	"github.com/cleared-dev/ledger/internal/ledger"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/store"
	"github.com/cleared-dev/ledger/internal/store/memory"
)

const biz = "biz-1"

var testNow = time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

type testServer struct {
	handler http.Handler
	ledger  *ledger.Service
	audit   *auditlog.Log
	cash    string
	revenue string
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	svc := ledger.NewService(memory.New(), ledger.WithClock(func() time.Time { return testNow }))
	ts := &testServer{ledger: svc, audit: auditlog.New(t.TempDir())}

	ctx := context.Background()
	for _, a := range []model.Account{
		{Code: "1000", Name: "Cash", Type: model.AccountTypeAsset},
		{Code: "4000", Name: "Sales Revenue", Type: model.AccountTypeIncome},
		{Code: "5000", Name: "Operating Expenses", Type: model.AccountTypeExpense},
	} {
		a.BusinessID = biz
		a.IsActive = true
		created, err := svc.CreateAccount(ctx, a)
		require.NoError(t, err)
		switch a.Code {
		case "1000":
			ts.cash = created.ID
		case "4000":
			ts.revenue = created.ID
		}
	}

	ts.handler = NewServer(svc,
		WithAuditLog(ts.audit),
		WithDefaultActor("api"),
		WithRequestLog(false),
	).Routes()
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func saleEntry(amount string) map[string]any {
	return map[string]any{
		"transactionDate": "2025-03-01",
		"description":     "Sale",
		"lines": []map[string]any{
			{"accountCode": "1000", "debit": amount, "credit": "0"},
			{"accountCode": "4000", "debit": "0", "credit": amount},
		},
	}
}

func TestHealth(t *testing.T) {
	ts := setupTestServer(t)
	rec := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestPostJournalEntry(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodPost, "/businesses/"+biz+"/journal-entries", saleEntry("150.00"), ActorHeader, "alice")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[TransactionResponse](t, rec)
	assert.Equal(t, "JE-2025-000001", resp.Transaction.TransactionNumber)
	assert.Equal(t, model.TypeManualJournal, resp.Transaction.Type)
	assert.Equal(t, "alice", resp.Transaction.CreatedBy)
	assert.True(t, resp.Transaction.TransactionDate.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)))

	cash, err := ts.ledger.AccountByCode(context.Background(), biz, "1000")
	require.NoError(t, err)
	assert.Equal(t, "150.00", cash.Balance.StringFixed(2))

	entries, err := ts.audit.Read()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "alice", entries[0].Actor)
	assert.Equal(t, auditlog.ActionPostJournal, entries[0].Action)
	assert.Equal(t, "JE-2025-000001", entries[0].TransactionNumber)
}

func TestPostJournalEntry_ByAccountID(t *testing.T) {
	ts := setupTestServer(t)

	body := map[string]any{
		"description": "Sale",
		"lines": []map[string]any{
			{"accountId": ts.cash, "debit": 10},
			{"accountId": ts.revenue, "credit": 10},
		},
	}
	rec := ts.do(t, http.MethodPost, "/businesses/"+biz+"/journal-entries", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[TransactionResponse](t, rec)
	assert.Equal(t, "api", resp.Transaction.CreatedBy, "default actor without header")
	assert.True(t, resp.Transaction.TransactionDate.Equal(testNow), "missing date defaults to now")
}

func TestPostJournalEntry_Rejected(t *testing.T) {
	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{
			name: "imbalanced",
			body: map[string]any{"description": "x", "lines": []map[string]any{
				{"accountCode": "1000", "debit": "100"},
				{"accountCode": "4000", "credit": "90"},
			}},
			status: http.StatusBadRequest,
			code:   "validation_error",
		},
		{
			name: "zero total",
			body: map[string]any{"description": "x", "lines": []map[string]any{
				{"accountCode": "1000", "debit": "0"},
				{"accountCode": "4000", "credit": "0"},
			}},
			status: http.StatusBadRequest,
			code:   "validation_error",
		},
		{
			name:   "unknown account code",
			body:   map[string]any{"description": "x", "lines": []map[string]any{{"accountCode": "9999", "debit": "1"}}},
			status: http.StatusBadRequest,
			code:   "validation_error",
		},
		{
			name:   "bad date",
			body:   map[string]any{"transactionDate": "March 1st", "description": "x"},
			status: http.StatusBadRequest,
			code:   "validation_error",
		},
		{
			name:   "malformed JSON",
			body:   `{"description":`,
			status: http.StatusBadRequest,
			code:   "invalid_request",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := setupTestServer(t)
			rec := ts.do(t, http.MethodPost, "/businesses/"+biz+"/journal-entries", tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decode[ErrorResponse](t, rec).Error)

			txns, err := ts.ledger.Transactions(context.Background(), biz)
			require.NoError(t, err)
			assert.Empty(t, txns, "nothing is written")
		})
	}
}

func TestPostIncomeAndExpense(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodPost, "/businesses/"+biz+"/income", map[string]any{
		"accountCode": "4000", "cashAccountCode": "1000", "amount": "500", "date": "2025-04-01", "description": "Invoice 7",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, model.TypeIncome, decode[TransactionResponse](t, rec).Transaction.Type)

	rec = ts.do(t, http.MethodPost, "/businesses/"+biz+"/expenses", map[string]any{
		"accountCode": "5000", "cashAccountCode": "1000", "amount": "120.50", "description": "Rent",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[TransactionResponse](t, rec)
	assert.Equal(t, model.TypeExpense, resp.Transaction.Type)
	assert.Equal(t, "JE-2025-000002", resp.Transaction.TransactionNumber)

	cash, err := ts.ledger.AccountByCode(context.Background(), biz, "1000")
	require.NoError(t, err)
	assert.Equal(t, "379.50", cash.Balance.StringFixed(2))

	rec = ts.do(t, http.MethodPost, "/businesses/"+biz+"/expenses", map[string]any{
		"accountCode": "5000", "cashAccountCode": "1000", "amount": "-5", "description": "Refund?",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReverseTransaction(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodPost, "/businesses/"+biz+"/journal-entries", saleEntry("75"))
	require.Equal(t, http.StatusCreated, rec.Code)
	orig := decode[TransactionResponse](t, rec).Transaction

	rec = ts.do(t, http.MethodPost, "/transactions/"+orig.ID+"/reverse", ReverseRequest{Reason: "duplicate"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rev := decode[TransactionResponse](t, rec).Transaction
	assert.Equal(t, "Reversal: Sale - duplicate", rev.Description)
	assert.Equal(t, "REV-"+orig.TransactionNumber, rev.Reference)

	rec = ts.do(t, http.MethodPost, "/transactions/"+orig.ID+"/reverse", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_reversed", decode[ErrorResponse](t, rec).Error)

	rec = ts.do(t, http.MethodPost, "/transactions/missing/reverse", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[ErrorResponse](t, rec).Error)

	rec = ts.do(t, http.MethodGet, "/transactions/"+orig.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[TransactionResponse](t, rec)
	assert.True(t, got.Transaction.IsReversed)
	assert.Equal(t, rev.ID, got.Transaction.ReversedByTransactionID)
	require.Len(t, got.Lines, 2)
	assert.Equal(t, 1, got.Lines[0].Position)
}

func TestGetTransaction_NotFound(t *testing.T) {
	ts := setupTestServer(t)
	rec := ts.do(t, http.MethodGet, "/transactions/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListTransactions(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodGet, "/businesses/"+biz+"/transactions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"transactions":[]}`, rec.Body.String())

	for range 3 {
		require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/businesses/"+biz+"/journal-entries", saleEntry("1")).Code)
	}

	rec = ts.do(t, http.MethodGet, "/businesses/"+biz+"/transactions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Transactions []model.Transaction `json:"transactions"`
	}](t, rec)
	require.Len(t, list.Transactions, 3)
	assert.Equal(t, "JE-2025-000003", list.Transactions[2].TransactionNumber)
}

func TestAccounts(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodPost, "/businesses/"+biz+"/accounts", AccountRequest{
		Code: "1100", Name: "Bank", Type: model.AccountTypeAsset,
	}, ActorHeader, "bob")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[struct {
		Account model.Account `json:"account"`
	}](t, rec).Account
	assert.NotEmpty(t, created.ID)
	assert.True(t, created.IsActive, "accounts default to active")

	inactive := false
	rec = ts.do(t, http.MethodPost, "/businesses/"+biz+"/accounts", AccountRequest{
		Code: "1900", Name: "Old", Type: model.AccountTypeAsset, IsActive: &inactive,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodPost, "/businesses/"+biz+"/accounts", AccountRequest{
		Code: "1100", Name: "Bank again", Type: model.AccountTypeAsset,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "duplicate", decode[ErrorResponse](t, rec).Error)

	rec = ts.do(t, http.MethodPost, "/businesses/"+biz+"/accounts", AccountRequest{
		Code: "6000", Name: "Bad", Type: "revenue",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/businesses/"+biz+"/accounts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Accounts []model.Account `json:"accounts"`
	}](t, rec)
	require.Len(t, list.Accounts, 5)
	assert.Equal(t, "1000", list.Accounts[0].Code)
	assert.Equal(t, "1100", list.Accounts[1].Code)

	entries, err := ts.audit.Read()
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, "bob", entries[0].Actor)
	assert.Equal(t, auditlog.ActionCreateAccount, entries[0].Action)
}

// brokenStore fails every unit of work.
type brokenStore struct{}

var errBroken = errors.New("database is on fire")

func (brokenStore) RunAtomic(context.Context, func(store.Tx) error) error { return errBroken }
func (brokenStore) Close() error                                          { return nil }

func TestStorageFailure(t *testing.T) {
	handler := NewServer(ledger.NewService(brokenStore{}), WithRequestLog(false)).Routes()

	req := httptest.NewRequest(http.MethodGet, "/businesses/"+biz+"/transactions", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "server_error", resp.Error)
	assert.NotContains(t, rec.Body.String(), "fire", "storage detail is not leaked")
}
