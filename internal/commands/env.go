package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cleared-dev/ledger/internal/accounts"
	"github.com/cleared-dev/ledger/internal/auditlog"
	"github.com/cleared-dev/ledger/internal/config"
	"github.com/cleared-dev/ledger/internal/ledger"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/store"
	"github.com/cleared-dev/ledger/internal/store/storeopen"
)

// defaultActor is recorded when neither the config nor LEDGER_ACTOR names one.
const defaultActor = "cli"

// env is everything a command needs to work on an initialized data directory.
type env struct {
	repo   string
	cfg    *config.Config
	store  store.Store
	ledger *ledger.Service
	audit  *auditlog.Log

	chart *accounts.Service // loaded from the store on first use
}

// open loads the data directory's config and opens its store.
func (g *globals) open(ctx context.Context) (*env, error) {
	repo, err := filepath.Abs(g.repo)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	cfg, err := config.Load(filepath.Join(repo, config.FileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s is not a ledger directory (run 'ledger init' first)", repo)
		}
		return nil, err
	}
	if err := cfg.ApplyEnv(filepath.Join(repo, ".env")); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Actor == "" {
		cfg.Actor = defaultActor
	}

	st, err := storeopen.Open(ctx, cfg.Store.Driver, cfg.ResolveDSN(repo))
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	g.log.Debug("store opened", "driver", cfg.Store.Driver, "repo", repo)

	return &env{
		repo:   repo,
		cfg:    cfg,
		store:  st,
		ledger: ledger.NewService(st, ledger.WithLogger(g.log)),
		audit:  auditlog.New(repo),
	}, nil
}

func (e *env) Close() error {
	return e.store.Close()
}

func (e *env) businessID() string {
	return e.cfg.Business.ID
}

// loadChart returns the business's chart as stored, with balances.
func (e *env) loadChart(ctx context.Context) (*accounts.Service, error) {
	if e.chart != nil {
		return e.chart, nil
	}
	accts, err := e.ledger.Accounts(ctx, e.businessID())
	if err != nil {
		return nil, err
	}
	e.chart = accounts.NewService(accts)
	return e.chart, nil
}

// accountID resolves a code from the command line to an account id.
func (e *env) accountID(ctx context.Context, code string) (string, error) {
	chart, err := e.loadChart(ctx)
	if err != nil {
		return "", err
	}
	acct, ok := chart.Get(code)
	if !ok {
		return "", &ledger.UnknownOrInactiveAccountError{AccountID: code}
	}
	return acct.ID, nil
}

// syncChart rewrites the chart CSV from the accounts in the store.
func (e *env) syncChart(ctx context.Context) error {
	e.chart = nil
	chart, err := e.loadChart(ctx)
	if err != nil {
		return err
	}
	if err := chart.Save(e.repo); err != nil {
		return fmt.Errorf("writing chart of accounts: %w", err)
	}
	return nil
}

// findTransaction accepts either a transaction id or a number like
// JE-2025-000001.
func (e *env) findTransaction(ctx context.Context, ref string) (model.Transaction, []model.TransactionLine, error) {
	if strings.HasPrefix(ref, "JE-") {
		txns, err := e.ledger.Transactions(ctx, e.businessID())
		if err != nil {
			return model.Transaction{}, nil, err
		}
		for _, t := range txns {
			if t.TransactionNumber == ref {
				ref = t.ID
				break
			}
		}
	}
	return e.ledger.Transaction(ctx, ref)
}

// record appends to the audit log. The ledger write has already committed,
// so failures are only logged.
func (g *globals) record(e *env, action, details, number string) {
	if err := e.audit.Record(e.cfg.Actor, action, details, number); err != nil {
		g.log.Warn("audit log append failed", "action", action, "error", err)
	}
}

// parseDate parses a YYYY-MM-DD flag. Empty means today, chosen by the ledger.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}
