// Package bolt is a store.Store on a single bbolt file. Records are JSON
// values; secondary index buckets map business-scoped keys to record IDs.
package bolt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	bolt "go.etcd.io/bbolt"

	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/store"
)

// Bucket names.
const (
	BucketAccounts           = "accounts"
	BucketAccountCodes       = "account_codes"
	BucketTransactions       = "transactions"
	BucketTransactionNumbers = "transaction_numbers"
	BucketTransactionLines   = "transaction_lines"
)

var buckets = []string{
	BucketAccounts,
	BucketAccountCodes,
	BucketTransactions,
	BucketTransactionNumbers,
	BucketTransactionLines,
}

// sep joins the parts of index keys. It cannot appear in IDs or codes
// entered through the ledger.
const sep = "\x00"

// Store represents the bbolt database wrapper.
type Store struct {
	db *bolt.DB
}

// Open opens the database at dbPath and initializes buckets.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := bolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(bucket)); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RunAtomic implements store.Store. bbolt allows one writer at a time, so
// units are fully serialized.
func (s *Store) RunAtomic(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(btx *bolt.Tx) error {
		return fn(&tx{btx: btx})
	})
}

type tx struct {
	btx *bolt.Tx
}

func (t *tx) bucket(name string) *bolt.Bucket {
	return t.btx.Bucket([]byte(name))
}

func key(parts ...string) []byte {
	var buf bytes.Buffer
	for i, p := range parts {
		if i > 0 {
			buf.WriteString(sep)
		}
		buf.WriteString(p)
	}
	return buf.Bytes()
}

func (t *tx) get(bucket string, k []byte, value any) error {
	data := t.bucket(bucket).Get(k)
	if data == nil {
		return store.ErrNotFound
	}
	if err := json.Unmarshal(data, value); err != nil {
		return fmt.Errorf("failed to unmarshal %s record: %w", bucket, err)
	}
	return nil
}

func (t *tx) put(bucket string, k []byte, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return t.bucket(bucket).Put(k, data)
}

// scanIndex calls fn with the record ID of every index entry under prefix,
// in key order.
func (t *tx) scanIndex(bucket string, prefix []byte, fn func(k, id []byte) error) error {
	c := t.bucket(bucket).Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) FindAccount(ctx context.Context, businessID, accountID string) (model.Account, error) {
	var a model.Account
	if err := t.get(BucketAccounts, []byte(accountID), &a); err != nil {
		return model.Account{}, err
	}
	if a.BusinessID != businessID {
		return model.Account{}, store.ErrNotFound
	}
	return a, nil
}

func (t *tx) ListAccounts(ctx context.Context, businessID string) ([]model.Account, error) {
	var out []model.Account
	err := t.scanIndex(BucketAccountCodes, key(businessID, ""), func(_, id []byte) error {
		var a model.Account
		if err := t.get(BucketAccounts, id, &a); err != nil {
			return fmt.Errorf("account index points at %s: %w", id, err)
		}
		out = append(out, a)
		return nil
	})
	return out, err
}

func (t *tx) InsertAccount(ctx context.Context, a model.Account) error {
	codeKey := key(a.BusinessID, a.Code)
	if t.bucket(BucketAccountCodes).Get(codeKey) != nil {
		return fmt.Errorf("account code %s: %w", a.Code, store.ErrDuplicate)
	}
	if t.bucket(BucketAccounts).Get([]byte(a.ID)) != nil {
		return fmt.Errorf("account %s: %w", a.ID, store.ErrDuplicate)
	}
	if err := t.put(BucketAccounts, []byte(a.ID), a); err != nil {
		return err
	}
	return t.bucket(BucketAccountCodes).Put(codeKey, []byte(a.ID))
}

func (t *tx) FindTransaction(ctx context.Context, transactionID string) (model.Transaction, error) {
	var txn model.Transaction
	if err := t.get(BucketTransactions, []byte(transactionID), &txn); err != nil {
		return model.Transaction{}, err
	}
	return txn, nil
}

func (t *tx) ListTransactions(ctx context.Context, businessID string) ([]model.Transaction, error) {
	var out []model.Transaction
	err := t.scanIndex(BucketTransactionNumbers, key(businessID, ""), func(_, id []byte) error {
		var txn model.Transaction
		if err := t.get(BucketTransactions, id, &txn); err != nil {
			return fmt.Errorf("number index points at %s: %w", id, err)
		}
		out = append(out, txn)
		return nil
	})
	return out, err
}

// Line keys sort by position because the position is zero padded.
func lineKey(transactionID string, position int) []byte {
	return key(transactionID, fmt.Sprintf("%010d", position))
}

func (t *tx) FindTransactionLines(ctx context.Context, transactionID string) ([]model.TransactionLine, error) {
	var out []model.TransactionLine
	err := t.scanIndex(BucketTransactionLines, key(transactionID, ""), func(_, v []byte) error {
		var l model.TransactionLine
		if err := json.Unmarshal(v, &l); err != nil {
			return fmt.Errorf("failed to unmarshal line: %w", err)
		}
		out = append(out, l)
		return nil
	})
	return out, err
}

func (t *tx) FindMaxTransactionNumber(ctx context.Context, businessID, prefix string) (string, bool, error) {
	scope := key(businessID, "")
	var last []byte
	err := t.scanIndex(BucketTransactionNumbers, key(businessID, prefix), func(k, _ []byte) error {
		last = k
		return nil
	})
	if err != nil || last == nil {
		return "", false, err
	}
	return string(last[len(scope):]), true, nil
}

func (t *tx) InsertTransaction(ctx context.Context, txn model.Transaction) error {
	numberKey := key(txn.BusinessID, txn.TransactionNumber)
	if t.bucket(BucketTransactionNumbers).Get(numberKey) != nil {
		return fmt.Errorf("transaction number %s: %w", txn.TransactionNumber, store.ErrDuplicate)
	}
	if t.bucket(BucketTransactions).Get([]byte(txn.ID)) != nil {
		return fmt.Errorf("transaction %s: %w", txn.ID, store.ErrDuplicate)
	}
	if err := t.put(BucketTransactions, []byte(txn.ID), txn); err != nil {
		return err
	}
	return t.bucket(BucketTransactionNumbers).Put(numberKey, []byte(txn.ID))
}

func (t *tx) InsertTransactionLines(ctx context.Context, lines []model.TransactionLine) error {
	for _, l := range lines {
		if t.bucket(BucketTransactions).Get([]byte(l.TransactionID)) == nil {
			return fmt.Errorf("transaction %s: %w", l.TransactionID, store.ErrNotFound)
		}
		if t.bucket(BucketAccounts).Get([]byte(l.AccountID)) == nil {
			return fmt.Errorf("account %s: %w", l.AccountID, store.ErrNotFound)
		}
		k := lineKey(l.TransactionID, l.Position)
		if t.bucket(BucketTransactionLines).Get(k) != nil {
			return fmt.Errorf("line %d of %s: %w", l.Position, l.TransactionID, store.ErrDuplicate)
		}
		if err := t.put(BucketTransactionLines, k, l); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) IncrementAccountBalance(ctx context.Context, accountID string, delta decimal.Decimal) error {
	var a model.Account
	if err := t.get(BucketAccounts, []byte(accountID), &a); err != nil {
		return fmt.Errorf("account %s: %w", accountID, err)
	}
	a.Balance = a.Balance.Add(delta)
	return t.put(BucketAccounts, []byte(accountID), a)
}

func (t *tx) MarkReversed(ctx context.Context, transactionID, reversedByID string) error {
	var txn model.Transaction
	err := t.get(BucketTransactions, []byte(transactionID), &txn)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("transaction %s: %w", transactionID, err)
	}
	if err != nil {
		return err
	}
	if txn.IsReversed {
		return fmt.Errorf("transaction %s: %w", transactionID, store.ErrAlreadyReversed)
	}
	txn.IsReversed = true
	txn.ReversedByTransactionID = reversedByID
	return t.put(BucketTransactions, []byte(transactionID), txn)
}
