package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/ledger/internal/model"
)

// ChaseParser parses Chase bank checking CSV exports:
//
//	Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #
type ChaseParser struct{}

const (
	chaseDateFormat = "01/02/2006"
	chaseNumFields  = 7
	chaseColDate    = 1
	chaseColDesc    = 2
	chaseColAmount  = 3
	chaseColType    = 4
)

// Format returns the parser name.
func (p *ChaseParser) Format() string { return "chase" }

// Parse reads a Chase CSV and returns its rows in file order. The header row
// is required; a file with only a header yields no rows.
func (p *ChaseParser) Parse(r io.Reader) ([]model.BankTransaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = chaseNumFields
	cr.TrimLeadingSpace = true

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading chase CSV header: %w", err)
	}

	var txns []model.BankTransaction
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading chase CSV: %w", err)
		}
		line, _ := cr.FieldPos(0)

		txn, err := parseChaseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

func parseChaseRow(rec []string) (model.BankTransaction, error) {
	rawDate := strings.TrimSpace(rec[chaseColDate])
	date, err := time.Parse(chaseDateFormat, rawDate)
	if err != nil {
		return model.BankTransaction{}, fmt.Errorf("parsing date %q: %w", rawDate, err)
	}

	rawAmount := strings.NewReplacer("$", "", ",", "").Replace(strings.TrimSpace(rec[chaseColAmount]))
	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		return model.BankTransaction{}, fmt.Errorf("parsing amount %q: %w", rec[chaseColAmount], err)
	}

	desc := strings.Join(strings.Fields(rec[chaseColDesc]), " ")

	return model.BankTransaction{
		Date:        date,
		Description: desc,
		Amount:      amount,
		Reference:   chaseReference(date, desc),
		Type:        strings.TrimSpace(rec[chaseColType]),
	}, nil
}

// chaseReference builds a reference like chase_20250103_GITHUBPROS from the
// posting date and the first ten alphanumerics of the description.
func chaseReference(date time.Time, desc string) string {
	var b strings.Builder
	for _, r := range desc {
		if b.Len() == 10 {
			break
		}
		if r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return fmt.Sprintf("chase_%s_%s", date.Format("20060102"), b.String())
}
