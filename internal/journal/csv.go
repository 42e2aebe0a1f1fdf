package journal

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/ledger/internal/model"
)

// Header is the CSV header for journal.csv.
var Header = []string{
	"transaction_number", "date", "type", "line", "account_code", "account_name",
	"debit", "credit", "description", "reference", "reversed_by",
}

const (
	numFields     = 11
	dateFormat    = "2006-01-02"
	colNumber     = 0
	colDate       = 1
	colType       = 2
	colLine       = 3
	colCode       = 4
	colName       = 5
	colDebit      = 6
	colCredit     = 7
	colDesc       = 8
	colRef        = 9
	colReversedBy = 10
)

// Row is one transaction line flattened with its transaction's header
// fields, as written to journal.csv.
type Row struct {
	TransactionNumber string
	Date              time.Time
	Type              model.TransactionType
	Line              int
	AccountCode       string
	AccountName       string
	Debit             decimal.Decimal
	Credit            decimal.Decimal
	Description       string
	Reference         string
	ReversedBy        string // number of the reversing transaction
}

// ReadRows reads all rows from a journal.csv reader.
func ReadRows(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading journal header: %w", err)
	}

	var rows []Row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading journal CSV: %w", err)
		}
		row, err := UnmarshalRow(rec)
		if err != nil {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteRows writes rows to a journal.csv writer (including header).
func WriteRows(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, row := range rows {
		if err := cw.Write(MarshalRow(row)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalRow converts a Row to a CSV record.
func MarshalRow(row Row) []string {
	rec := make([]string, numFields)
	rec[colNumber] = row.TransactionNumber
	rec[colDate] = row.Date.Format(dateFormat)
	rec[colType] = string(row.Type)
	rec[colLine] = strconv.Itoa(row.Line)
	rec[colCode] = row.AccountCode
	rec[colName] = row.AccountName

	if !row.Debit.IsZero() {
		rec[colDebit] = row.Debit.StringFixed(2)
	}
	if !row.Credit.IsZero() {
		rec[colCredit] = row.Credit.StringFixed(2)
	}

	rec[colDesc] = row.Description
	rec[colRef] = row.Reference
	rec[colReversedBy] = row.ReversedBy
	return rec
}

// UnmarshalRow converts a CSV record to a Row.
func UnmarshalRow(record []string) (Row, error) {
	if len(record) != numFields {
		return Row{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	date, err := time.Parse(dateFormat, record[colDate])
	if err != nil {
		return Row{}, fmt.Errorf("parsing date %q: %w", record[colDate], err)
	}

	line, err := strconv.Atoi(record[colLine])
	if err != nil {
		return Row{}, fmt.Errorf("parsing line %q: %w", record[colLine], err)
	}

	var debit, credit decimal.Decimal
	if record[colDebit] != "" {
		debit, err = decimal.NewFromString(record[colDebit])
		if err != nil {
			return Row{}, fmt.Errorf("parsing debit %q: %w", record[colDebit], err)
		}
	}
	if record[colCredit] != "" {
		credit, err = decimal.NewFromString(record[colCredit])
		if err != nil {
			return Row{}, fmt.Errorf("parsing credit %q: %w", record[colCredit], err)
		}
	}

	return Row{
		TransactionNumber: record[colNumber],
		Date:              date,
		Type:              model.TransactionType(record[colType]),
		Line:              line,
		AccountCode:       record[colCode],
		AccountName:       record[colName],
		Debit:             debit,
		Credit:            credit,
		Description:       record[colDesc],
		Reference:         record[colRef],
		ReversedBy:        record[colReversedBy],
	}, nil
}
