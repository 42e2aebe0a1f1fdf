// Package auditlog keeps an append-only CSV record of ledger actions in
// <repo>/logs/audit-log.csv.
package auditlog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Actions recorded by the CLI and the HTTP API.
const (
	ActionInit          = "init"
	ActionCreateAccount = "create_account"
	ActionPostJournal   = "post_journal_entry"
	ActionPostIncome    = "post_income"
	ActionPostExpense   = "post_expense"
	ActionReverse       = "reverse_transaction"
	ActionImport        = "import_bank_csv"
)

// Entry is one row in the audit log.
type Entry struct {
	Timestamp         time.Time
	Actor             string
	Action            string
	Details           string
	TransactionNumber string
}

// RelPath is the log location relative to a data directory.
const RelPath = "logs/audit-log.csv"

var header = []string{"timestamp", "actor", "action", "details", "transaction_number"}

const (
	numFields    = 5
	colTimestamp = 0
	colActor     = 1
	colAction    = 2
	colDetails   = 3
	colTxnNumber = 4
)

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.UTC().Format(time.RFC3339)
	row[colActor] = e.Actor
	row[colAction] = e.Action
	row[colDetails] = e.Details
	row[colTxnNumber] = e.TransactionNumber
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}

	return Entry{
		Timestamp:         ts,
		Actor:             record[colActor],
		Action:            record[colAction],
		Details:           record[colDetails],
		TransactionNumber: record[colTxnNumber],
	}, nil
}

// Log appends entries to one data directory's audit file. It is safe for
// concurrent use within a process.
type Log struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// New returns the log for repoRoot. Nothing is created until the first
// Append.
func New(repoRoot string) *Log {
	return &Log{path: filepath.Join(repoRoot, RelPath), now: time.Now}
}

// Path returns the audit file path.
func (l *Log) Path() string {
	return l.path
}

// Record appends a single entry stamped with the current time.
func (l *Log) Record(actor, action, details, transactionNumber string) error {
	return l.Append(Entry{
		Timestamp:         l.now(),
		Actor:             actor,
		Action:            action,
		Details:           details,
		TransactionNumber: transactionNumber,
	})
}

// Append writes entries, creating the file and header if needed.
func (l *Log) Append(entries ...Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat audit log: %w", err)
	}

	cw := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := cw.Write(header); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Read returns all entries in the audit file, or nil if it does not exist.
func (l *Log) Read() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading audit log header: %w", err)
	}

	var entries []Entry
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading audit log CSV: %w", err)
		}
		e, err := UnmarshalEntry(rec)
		if err != nil {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		entries = append(entries, e)
	}
}
