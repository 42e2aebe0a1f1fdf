// Package memory is an in-process store.Store. Units of work are serialized
// by a mutex and rolled back by restoring a snapshot taken when they start.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/store"
)

// Store keeps every record in maps guarded by a single mutex.
type Store struct {
	mu    sync.Mutex
	state state
}

type state struct {
	accounts     map[string]model.Account
	transactions map[string]model.Transaction
	lines        map[string][]model.TransactionLine // by transaction ID
}

// New returns an empty Store.
func New() *Store {
	return &Store{state: state{
		accounts:     make(map[string]model.Account),
		transactions: make(map[string]model.Transaction),
		lines:        make(map[string][]model.TransactionLine),
	}}
}

func (s state) clone() state {
	lines := make(map[string][]model.TransactionLine, len(s.lines))
	for k, v := range s.lines {
		lines[k] = slices.Clone(v)
	}
	return state{
		accounts:     maps.Clone(s.accounts),
		transactions: maps.Clone(s.transactions),
		lines:        lines,
	}
}

// RunAtomic implements store.Store.
func (s *Store) RunAtomic(ctx context.Context, fn func(tx store.Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	defer func() {
		if p := recover(); p != nil {
			s.state = snapshot
			panic(p)
		}
		if err != nil {
			s.state = snapshot
		}
	}()

	t := &tx{st: &s.state}
	defer func() { t.done = true }()
	return fn(t)
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

type tx struct {
	st   *state
	done bool
}

func (t *tx) check() error {
	if t.done {
		return fmt.Errorf("memory store: transaction already finished")
	}
	return nil
}

func (t *tx) FindAccount(_ context.Context, businessID, accountID string) (model.Account, error) {
	if err := t.check(); err != nil {
		return model.Account{}, err
	}
	a, ok := t.st.accounts[accountID]
	if !ok || a.BusinessID != businessID {
		return model.Account{}, store.ErrNotFound
	}
	return a, nil
}

func (t *tx) ListAccounts(_ context.Context, businessID string) ([]model.Account, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	var out []model.Account
	for _, a := range t.st.accounts {
		if a.BusinessID == businessID {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b model.Account) int { return strings.Compare(a.Code, b.Code) })
	return out, nil
}

func (t *tx) InsertAccount(_ context.Context, account model.Account) error {
	if err := t.check(); err != nil {
		return err
	}
	if _, ok := t.st.accounts[account.ID]; ok {
		return fmt.Errorf("account %s: %w", account.ID, store.ErrDuplicate)
	}
	for _, a := range t.st.accounts {
		if a.BusinessID == account.BusinessID && a.Code == account.Code {
			return fmt.Errorf("account code %s: %w", account.Code, store.ErrDuplicate)
		}
	}
	t.st.accounts[account.ID] = account
	return nil
}

func (t *tx) FindTransaction(_ context.Context, transactionID string) (model.Transaction, error) {
	if err := t.check(); err != nil {
		return model.Transaction{}, err
	}
	txn, ok := t.st.transactions[transactionID]
	if !ok {
		return model.Transaction{}, store.ErrNotFound
	}
	return txn, nil
}

func (t *tx) ListTransactions(_ context.Context, businessID string) ([]model.Transaction, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	var out []model.Transaction
	for _, txn := range t.st.transactions {
		if txn.BusinessID == businessID {
			out = append(out, txn)
		}
	}
	slices.SortFunc(out, func(a, b model.Transaction) int {
		return strings.Compare(a.TransactionNumber, b.TransactionNumber)
	})
	return out, nil
}

func (t *tx) FindTransactionLines(_ context.Context, transactionID string) ([]model.TransactionLine, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	lines := slices.Clone(t.st.lines[transactionID])
	slices.SortFunc(lines, func(a, b model.TransactionLine) int { return a.Position - b.Position })
	return lines, nil
}

func (t *tx) FindMaxTransactionNumber(_ context.Context, businessID, prefix string) (string, bool, error) {
	if err := t.check(); err != nil {
		return "", false, err
	}
	best, found := "", false
	for _, txn := range t.st.transactions {
		if txn.BusinessID != businessID || !strings.HasPrefix(txn.TransactionNumber, prefix) {
			continue
		}
		if !found || txn.TransactionNumber > best {
			best, found = txn.TransactionNumber, true
		}
	}
	return best, found, nil
}

func (t *tx) InsertTransaction(_ context.Context, txn model.Transaction) error {
	if err := t.check(); err != nil {
		return err
	}
	if _, ok := t.st.transactions[txn.ID]; ok {
		return fmt.Errorf("transaction %s: %w", txn.ID, store.ErrDuplicate)
	}
	for _, other := range t.st.transactions {
		if other.BusinessID == txn.BusinessID && other.TransactionNumber == txn.TransactionNumber {
			return fmt.Errorf("transaction number %s: %w", txn.TransactionNumber, store.ErrDuplicate)
		}
	}
	t.st.transactions[txn.ID] = txn
	return nil
}

func (t *tx) InsertTransactionLines(_ context.Context, lines []model.TransactionLine) error {
	if err := t.check(); err != nil {
		return err
	}
	for _, l := range lines {
		if _, ok := t.st.transactions[l.TransactionID]; !ok {
			return fmt.Errorf("line %s: transaction %s: %w", l.ID, l.TransactionID, store.ErrNotFound)
		}
		if _, ok := t.st.accounts[l.AccountID]; !ok {
			return fmt.Errorf("line %s: account %s: %w", l.ID, l.AccountID, store.ErrNotFound)
		}
		t.st.lines[l.TransactionID] = append(t.st.lines[l.TransactionID], l)
	}
	return nil
}

func (t *tx) IncrementAccountBalance(_ context.Context, accountID string, delta decimal.Decimal) error {
	if err := t.check(); err != nil {
		return err
	}
	a, ok := t.st.accounts[accountID]
	if !ok {
		return fmt.Errorf("account %s: %w", accountID, store.ErrNotFound)
	}
	a.Balance = a.Balance.Add(delta)
	t.st.accounts[accountID] = a
	return nil
}

func (t *tx) MarkReversed(_ context.Context, transactionID, reversedByID string) error {
	if err := t.check(); err != nil {
		return err
	}
	txn, ok := t.st.transactions[transactionID]
	if !ok {
		return fmt.Errorf("transaction %s: %w", transactionID, store.ErrNotFound)
	}
	if txn.IsReversed {
		return fmt.Errorf("transaction %s: %w", transactionID, store.ErrAlreadyReversed)
	}
	txn.IsReversed = true
	txn.ReversedByTransactionID = reversedByID
	t.st.transactions[transactionID] = txn
	return nil
}
