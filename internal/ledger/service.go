// Package ledger posts balanced double-entry journal entries and keeps
// account balances in step with them.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/ledger/internal/id"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/store"
)

const reversalPrefix = "Reversal"

// Line is one proposed debit/credit row of a journal entry.
type Line struct {
	AccountID   string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
}

// JournalEntry is a proposed set of lines posted as one transaction.
type JournalEntry struct {
	BusinessID      string
	TransactionDate time.Time // zero means today
	Description     string
	Reference       string
	Type            model.TransactionType // empty means manual_journal
	Lines           []Line
	ActorID         string
}

// Movement describes a single-amount income or expense between a cash
// account and an income or expense account.
type Movement struct {
	BusinessID    string
	AccountID     string // income account for PostIncome, expense account for PostExpense
	CashAccountID string
	Amount        decimal.Decimal
	Date          time.Time
	Description   string
	Reference     string
	ActorID       string
}

// Service is the ledger core. It keeps no state between calls; durability
// and isolation come from the store.
type Service struct {
	store store.Store
	log   *slog.Logger
	now   func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithClock sets the time source used for default dates and reversals.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a ledger Service backed by st.
func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{
		store: st,
		log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PostJournalEntry validates entry and commits it with its balance updates
// as one atomic unit. Validation failures are returned before anything is
// written.
func (s *Service) PostJournalEntry(ctx context.Context, entry JournalEntry) (model.Transaction, error) {
	entry = s.normalize(entry)
	if err := ValidateEntry(entry); err != nil {
		s.log.Debug("journal entry rejected", "business", entry.BusinessID, "error", err)
		return model.Transaction{}, err
	}

	var posted model.Transaction
	err := s.store.RunAtomic(ctx, func(tx store.Tx) error {
		var err error
		posted, err = s.post(ctx, tx, entry)
		return err
	})
	if err != nil {
		s.log.Debug("journal entry not posted", "business", entry.BusinessID, "error", err)
		return model.Transaction{}, err
	}

	debits, _ := Totals(entry.Lines)
	s.log.Info("journal entry posted",
		"business", posted.BusinessID,
		"transaction", posted.ID,
		"number", posted.TransactionNumber,
		"type", posted.Type,
		"total", debits.String(),
		"lines", len(entry.Lines),
		"actor", entry.ActorID,
	)
	return posted, nil
}

// PostIncome debits the cash account and credits the income account.
func (s *Service) PostIncome(ctx context.Context, m Movement) (model.Transaction, error) {
	if !m.Amount.IsPositive() {
		return model.Transaction{}, &InvalidAmountError{Amount: m.Amount}
	}
	return s.PostJournalEntry(ctx, JournalEntry{
		BusinessID:      m.BusinessID,
		TransactionDate: m.Date,
		Description:     m.Description,
		Reference:       m.Reference,
		Type:            model.TypeIncome,
		ActorID:         m.ActorID,
		Lines: []Line{
			{AccountID: m.CashAccountID, Debit: m.Amount, Description: m.Description},
			{AccountID: m.AccountID, Credit: m.Amount, Description: m.Description},
		},
	})
}

// PostExpense debits the expense account and credits the cash account.
func (s *Service) PostExpense(ctx context.Context, m Movement) (model.Transaction, error) {
	if !m.Amount.IsPositive() {
		return model.Transaction{}, &InvalidAmountError{Amount: m.Amount}
	}
	return s.PostJournalEntry(ctx, JournalEntry{
		BusinessID:      m.BusinessID,
		TransactionDate: m.Date,
		Description:     m.Description,
		Reference:       m.Reference,
		Type:            model.TypeExpense,
		ActorID:         m.ActorID,
		Lines: []Line{
			{AccountID: m.AccountID, Debit: m.Amount, Description: m.Description},
			{AccountID: m.CashAccountID, Credit: m.Amount, Description: m.Description},
		},
	})
}

// ReverseTransaction posts an equal and opposite entry for transactionID and
// marks the original as reversed. Both happen in one atomic unit, so a
// transaction can be reversed at most once.
func (s *Service) ReverseTransaction(ctx context.Context, transactionID, reason, actorID string) (model.Transaction, error) {
	var reversal model.Transaction
	err := s.store.RunAtomic(ctx, func(tx store.Tx) error {
		orig, err := tx.FindTransaction(ctx, transactionID)
		if errors.Is(err, store.ErrNotFound) {
			return &NotFoundError{TransactionID: transactionID}
		}
		if err != nil {
			return fmt.Errorf("loading transaction %s: %w", transactionID, err)
		}
		if orig.IsReversed {
			return &AlreadyReversedError{TransactionID: orig.ID, ReversedBy: orig.ReversedByTransactionID}
		}

		lines, err := tx.FindTransactionLines(ctx, orig.ID)
		if err != nil {
			return fmt.Errorf("loading lines of %s: %w", orig.ID, err)
		}

		entry := s.normalize(reversalEntry(orig, lines, reason, actorID))
		if err := ValidateEntry(entry); err != nil {
			return err
		}

		reversal, err = s.post(ctx, tx, entry)
		if err != nil {
			return err
		}

		err = tx.MarkReversed(ctx, orig.ID, reversal.ID)
		if errors.Is(err, store.ErrAlreadyReversed) {
			return &AlreadyReversedError{TransactionID: orig.ID}
		}
		if err != nil {
			return fmt.Errorf("marking %s reversed: %w", orig.ID, err)
		}
		return nil
	})
	if err != nil {
		s.log.Debug("reversal not posted", "transaction", transactionID, "error", err)
		return model.Transaction{}, err
	}

	s.log.Info("transaction reversed",
		"business", reversal.BusinessID,
		"transaction", transactionID,
		"reversal", reversal.ID,
		"number", reversal.TransactionNumber,
		"actor", actorID,
	)
	return reversal, nil
}

func reversalEntry(orig model.Transaction, lines []model.TransactionLine, reason, actorID string) JournalEntry {
	desc := fmt.Sprintf("%s: %s", reversalPrefix, orig.Description)
	if reason != "" {
		desc += " - " + reason
	}

	swapped := make([]Line, len(lines))
	for i, l := range lines {
		lineDesc := reversalPrefix
		if l.Description != "" {
			lineDesc = fmt.Sprintf("%s: %s", reversalPrefix, l.Description)
		}
		swapped[i] = Line{
			AccountID:   l.AccountID,
			Debit:       l.CreditAmount,
			Credit:      l.DebitAmount,
			Description: lineDesc,
		}
	}

	return JournalEntry{
		BusinessID:  orig.BusinessID,
		Description: desc,
		Reference:   "REV-" + orig.TransactionNumber,
		Type:        orig.Type,
		Lines:       swapped,
		ActorID:     actorID,
	}
}

// normalize fills defaults and moves the date to UTC, the zone every backend
// stores, so the number's year always matches the stored date.
func (s *Service) normalize(entry JournalEntry) JournalEntry {
	if entry.TransactionDate.IsZero() {
		entry.TransactionDate = s.now()
	}
	entry.TransactionDate = entry.TransactionDate.UTC()
	if entry.Type == "" {
		entry.Type = model.TypeManualJournal
	}
	return entry
}

// post writes a validated entry inside an open unit of work. The number it
// assigns is the one returned; nothing is re-read afterwards.
func (s *Service) post(ctx context.Context, tx store.Tx, entry JournalEntry) (model.Transaction, error) {
	accounts, err := resolveAccounts(ctx, tx, entry.BusinessID, entry.Lines)
	if err != nil {
		return model.Transaction{}, err
	}

	year := entry.TransactionDate.Year()
	current, found, err := tx.FindMaxTransactionNumber(ctx, entry.BusinessID, id.TransactionNumberPrefix(year))
	if err != nil {
		return model.Transaction{}, fmt.Errorf("reading transaction sequence: %w", err)
	}
	number, err := id.NextTransactionNumber(year, current, found)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("assigning transaction number: %w", err)
	}

	txn := model.Transaction{
		ID:                id.New(),
		BusinessID:        entry.BusinessID,
		TransactionNumber: number,
		TransactionDate:   entry.TransactionDate,
		Description:       entry.Description,
		Reference:         entry.Reference,
		Type:              entry.Type,
		CreatedBy:         entry.ActorID,
		CreatedAt:         s.now(),
	}
	if err := tx.InsertTransaction(ctx, txn); err != nil {
		return model.Transaction{}, fmt.Errorf("inserting transaction %s: %w", number, err)
	}

	lines := make([]model.TransactionLine, len(entry.Lines))
	for i, l := range entry.Lines {
		lines[i] = model.TransactionLine{
			ID:            id.New(),
			TransactionID: txn.ID,
			Position:      i + 1,
			AccountID:     l.AccountID,
			DebitAmount:   l.Debit,
			CreditAmount:  l.Credit,
			Description:   l.Description,
		}
	}
	if err := tx.InsertTransactionLines(ctx, lines); err != nil {
		return model.Transaction{}, fmt.Errorf("inserting lines of %s: %w", number, err)
	}

	for _, l := range lines {
		delta := accounts[l.AccountID].Apply(l.DebitAmount, l.CreditAmount)
		if err := tx.IncrementAccountBalance(ctx, l.AccountID, delta); err != nil {
			return model.Transaction{}, fmt.Errorf("updating balance of %s: %w", l.AccountID, err)
		}
	}

	return txn, nil
}
