package id

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const (
	numberPrefix = "JE"
	seqDigits    = 6
	// MaxSequence is the last number a year can hold. Stores find the current
	// maximum by string order, which stops working past six digits.
	MaxSequence = 999999
)

// ErrSequenceExhausted is returned when a year has used every number.
var ErrSequenceExhausted = errors.New("transaction number sequence exhausted")

// New returns a fresh entity ID.
func New() string {
	return uuid.NewString()
}

// TransactionNumberPrefix returns the shared prefix of every number in a year,
// e.g. "JE-2025-".
func TransactionNumberPrefix(year int) string {
	return fmt.Sprintf("%s-%04d-", numberPrefix, year)
}

// FormatTransactionNumber returns a number like "JE-2025-000001".
func FormatTransactionNumber(year, seq int) string {
	return fmt.Sprintf("%s%0*d", TransactionNumberPrefix(year), seqDigits, seq)
}

// ParseTransactionNumber parses "JE-2025-000001" into year and sequence.
func ParseTransactionNumber(number string) (year, seq int, err error) {
	parts := strings.SplitN(number, "-", 3)
	if len(parts) != 3 || parts[0] != numberPrefix {
		return 0, 0, fmt.Errorf("invalid transaction number format: %q", number)
	}

	year, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid year in transaction number %q: %w", number, err)
	}

	if len(parts[2]) < seqDigits {
		return 0, 0, fmt.Errorf("invalid sequence in transaction number %q", number)
	}
	seq, err = strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid sequence in transaction number %q: %w", number, err)
	}

	return year, seq, nil
}

// NextTransactionNumber returns the number following current within year.
// When found is false the year has no numbers yet and the sequence starts at 1.
func NextTransactionNumber(year int, current string, found bool) (string, error) {
	if !found {
		return FormatTransactionNumber(year, 1), nil
	}
	y, seq, err := ParseTransactionNumber(current)
	if err != nil {
		return "", err
	}
	if y != year {
		return "", fmt.Errorf("transaction number %q is not in year %d", current, year)
	}
	if seq >= MaxSequence {
		return "", fmt.Errorf("year %d after %s: %w", year, current, ErrSequenceExhausted)
	}
	return FormatTransactionNumber(year, seq+1), nil
}
