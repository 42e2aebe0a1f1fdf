// Package journal exports posted transactions to per-month journal.csv files
// under the data directory and checks exported files for consistency. The
// store stays the system of record; the files exist for review and diffing.
package journal

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/cleared-dev/ledger/internal/model"
)

// Source is the part of the ledger an export reads.
type Source interface {
	Accounts(ctx context.Context, businessID string) ([]model.Account, error)
	Transactions(ctx context.Context, businessID string) ([]model.Transaction, error)
	Transaction(ctx context.Context, transactionID string) (model.Transaction, []model.TransactionLine, error)
}

// Month identifies one journal file.
type Month struct {
	Year  int
	Month int
}

// Export writes every transaction of businessID to
// <repoRoot>/YYYY/MM/journal.csv by transaction date, replacing files
// already there. It returns the paths written in month order.
func Export(ctx context.Context, src Source, businessID, repoRoot string) ([]string, error) {
	accts, err := src.Accounts(ctx, businessID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.Account, len(accts))
	for _, a := range accts {
		byID[a.ID] = a
	}

	txns, err := src.Transactions(ctx, businessID)
	if err != nil {
		return nil, err
	}
	numbers := make(map[string]string, len(txns))
	for _, t := range txns {
		numbers[t.ID] = t.TransactionNumber
	}

	months := make(map[Month][]Row)
	for _, t := range txns {
		_, lines, err := src.Transaction(ctx, t.ID)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", t.TransactionNumber, err)
		}
		m := Month{t.TransactionDate.Year(), int(t.TransactionDate.Month())}
		for _, l := range lines {
			acct := byID[l.AccountID]
			months[m] = append(months[m], Row{
				TransactionNumber: t.TransactionNumber,
				Date:              t.TransactionDate,
				Type:              t.Type,
				Line:              l.Position,
				AccountCode:       acct.Code,
				AccountName:       acct.Name,
				Debit:             l.DebitAmount,
				Credit:            l.CreditAmount,
				Description:       l.Description,
				Reference:         t.Reference,
				ReversedBy:        numbers[t.ReversedByTransactionID],
			})
		}
	}

	keys := make([]Month, 0, len(months))
	for m := range months {
		keys = append(keys, m)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Year != keys[j].Year {
			return keys[i].Year < keys[j].Year
		}
		return keys[i].Month < keys[j].Month
	})

	paths := make([]string, 0, len(keys))
	for _, m := range keys {
		path := MonthPath(repoRoot, m.Year, m.Month)
		if err := writeMonth(path, months[m]); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeMonth(path string, rows []Row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating journal dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating journal: %w", err)
	}
	if err := WriteRows(f, rows); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing journal %s: %w", path, err)
	}
	return f.Close()
}

// ReadMonth reads all rows for a given year/month. A missing file reads as
// no rows.
func ReadMonth(repoRoot string, year, month int) ([]Row, error) {
	path := MonthPath(repoRoot, year, month)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening journal %s: %w", path, err)
	}
	defer f.Close()

	rows, err := ReadRows(f)
	if err != nil {
		return nil, fmt.Errorf("reading journal %s: %w", path, err)
	}
	return rows, nil
}

// MonthPath returns where the journal for year/month lives.
func MonthPath(repoRoot string, year, month int) string {
	return filepath.Join(repoRoot, fmt.Sprintf("%04d", year), fmt.Sprintf("%02d", month), "journal.csv")
}

// Months lists the journals present under repoRoot, oldest first.
func Months(repoRoot string) ([]Month, error) {
	matches, err := filepath.Glob(filepath.Join(repoRoot, "[0-9][0-9][0-9][0-9]", "[0-9][0-9]", "journal.csv"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	out := make([]Month, 0, len(matches))
	for _, path := range matches {
		monthDir := filepath.Dir(path)
		y, err := strconv.Atoi(filepath.Base(filepath.Dir(monthDir)))
		if err != nil {
			continue
		}
		m, err := strconv.Atoi(filepath.Base(monthDir))
		if err != nil || m < 1 || m > 12 {
			continue
		}
		out = append(out, Month{Year: y, Month: m})
	}
	return out, nil
}
