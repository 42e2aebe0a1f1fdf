package accounts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cleared-dev/ledger/internal/model"
)

// ChartFile is the chart location relative to a data directory.
const ChartFile = "accounts/chart-of-accounts.csv"

// Service provides in-memory lookup over a chart of accounts.
type Service struct {
	accounts []model.Account
	byCode   map[string]model.Account
}

// NewService creates a Service from a slice of accounts.
func NewService(accounts []model.Account) *Service {
	byCode := make(map[string]model.Account, len(accounts))
	for _, a := range accounts {
		byCode[a.Code] = a
	}
	return &Service{accounts: accounts, byCode: byCode}
}

// Load reads the chart CSV from a data directory and returns a Service.
func Load(repoRoot string) (*Service, error) {
	path := filepath.Join(repoRoot, ChartFile)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening chart of accounts: %w", err)
	}
	defer f.Close()

	accts, err := ReadAccounts(f)
	if err != nil {
		return nil, fmt.Errorf("reading chart of accounts: %w", err)
	}
	return NewService(accts), nil
}

// All returns all accounts.
func (s *Service) All() []model.Account {
	return s.accounts
}

// Get returns an account by code.
func (s *Service) Get(code string) (model.Account, bool) {
	a, ok := s.byCode[code]
	return a, ok
}

// Exists reports whether code is in the chart.
func (s *Service) Exists(code string) bool {
	_, ok := s.byCode[code]
	return ok
}

// ByType returns all accounts of the given type.
func (s *Service) ByType(accountType model.AccountType) []model.Account {
	var result []model.Account
	for _, a := range s.accounts {
		if a.Type == accountType {
			result = append(result, a)
		}
	}
	return result
}

// Save writes the chart to the data directory.
func (s *Service) Save(repoRoot string) error {
	path := filepath.Join(repoRoot, ChartFile)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating accounts dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating chart of accounts file: %w", err)
	}
	defer f.Close()

	if err := WriteAccounts(f, s.accounts); err != nil {
		return fmt.Errorf("writing chart of accounts: %w", err)
	}
	return nil
}

// Creator is the part of the ledger Seed needs.
type Creator interface {
	Accounts(ctx context.Context, businessID string) ([]model.Account, error)
	CreateAccount(ctx context.Context, acct model.Account) (model.Account, error)
}

// Seed creates every chart account whose code the business does not have
// yet and returns the ones it created. Existing accounts are left as they
// are, so seeding twice is harmless.
func Seed(ctx context.Context, c Creator, businessID string, chart []model.Account) ([]model.Account, error) {
	existing, err := c.Accounts(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, a := range existing {
		have[a.Code] = true
	}

	var created []model.Account
	for _, a := range chart {
		if have[a.Code] {
			continue
		}
		a.BusinessID = businessID
		got, err := c.CreateAccount(ctx, a)
		if err != nil {
			return created, fmt.Errorf("creating account %s: %w", a.Code, err)
		}
		have[a.Code] = true
		created = append(created, got)
	}
	return created, nil
}
