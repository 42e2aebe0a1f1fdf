package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledger/internal/accounts"
	"github.com/cleared-dev/ledger/internal/auditlog"
	"github.com/cleared-dev/ledger/internal/config"
	"github.com/cleared-dev/ledger/internal/gitops"
	"github.com/cleared-dev/ledger/internal/id"
	"github.com/cleared-dev/ledger/internal/ledger"
	"github.com/cleared-dev/ledger/internal/store/storeopen"
)

type initOptions struct {
	name       string
	entityType string
	businessID string
	driver     string
	dsn        string
	git        bool
}

func newInitCommand(g *globals) *cobra.Command {
	var opts initOptions

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new ledger data directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := g.repo
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return g.runInit(cmd, absDir, opts)
		},
	}

	cmd.Flags().StringVar(&opts.name, "name", "", "business name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&opts.entityType, "entity-type", "llc_single_member", "entity type")
	cmd.Flags().StringVar(&opts.businessID, "business-id", "", "business ID (default: generated)")
	cmd.Flags().StringVar(&opts.driver, "driver", "", "store driver: memory, sqlite, postgres or bolt (default sqlite)")
	cmd.Flags().StringVar(&opts.dsn, "dsn", "", "store DSN or file path")
	cmd.Flags().BoolVar(&opts.git, "git", false, "initialize a git repository and commit the new files")

	return cmd
}

func (g *globals) runInit(cmd *cobra.Command, dir string, opts initOptions) error {
	ctx := cmd.Context()

	if _, err := os.Stat(filepath.Join(dir, config.FileName)); err == nil {
		return fmt.Errorf("%s already exists in %s", config.FileName, dir)
	}

	dirs := []string{
		"accounts",
		"logs",
		"import",
		filepath.Join("import", "processed"),
		"data",
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	cfg := config.Default(opts.name, opts.entityType)
	cfg.Business.ID = opts.businessID
	if cfg.Business.ID == "" {
		cfg.Business.ID = id.New()
	}
	if opts.driver != "" {
		cfg.Store.Driver = opts.driver
		cfg.Store.DSN = defaultDSN(opts.driver)
	}
	if opts.dsn != "" {
		cfg.Store.DSN = opts.dsn
	}
	if err := config.Save(filepath.Join(dir, config.FileName), cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	chart := accounts.DefaultChart(opts.entityType)
	if err := accounts.NewService(chart).Save(dir); err != nil {
		return fmt.Errorf("writing chart of accounts: %w", err)
	}

	gitignore := "data/\n.env\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "import", ".gitkeep"), []byte{}, 0o644); err != nil {
		return fmt.Errorf("writing .gitkeep: %w", err)
	}

	st, err := storeopen.Open(ctx, cfg.Store.Driver, cfg.ResolveDSN(dir))
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	svc := ledger.NewService(st, ledger.WithLogger(g.log))
	seeded, err := accounts.Seed(ctx, svc, cfg.Business.ID, chart)
	if err != nil {
		return fmt.Errorf("seeding chart of accounts: %w", err)
	}
	g.log.Debug("chart seeded", "business", cfg.Business.ID, "accounts", len(seeded))

	actor := cfg.Actor
	if actor == "" {
		actor = defaultActor
	}
	details := fmt.Sprintf("initialized %s (%s) with %d accounts", opts.name, opts.entityType, len(seeded))
	if err := auditlog.New(dir).Record(actor, auditlog.ActionInit, details, ""); err != nil {
		return fmt.Errorf("writing audit log: %w", err)
	}

	out := cmd.OutOrStdout()
	if !opts.git {
		fmt.Fprintf(out, "Initialized ledger for %s at %s\n", opts.name, dir)
		return nil
	}

	if err := gitops.Init(ctx, dir); err != nil {
		return fmt.Errorf("git init: %w", err)
	}
	hash, err := gitops.CommitAll(ctx, dir, "init: Initialize "+opts.name, gitops.DefaultAuthor)
	if err != nil {
		return fmt.Errorf("initial commit: %w", err)
	}

	fmt.Fprintf(out, "Initialized ledger for %s at %s (%s)\n", opts.name, dir, hash)
	return nil
}

// defaultDSN is the file a file-backed driver uses under data/ when --dsn
// is not given.
func defaultDSN(driver string) string {
	switch strings.ToLower(driver) {
	case storeopen.DriverSQLite, "sqlite3":
		return "data/ledger.db"
	case storeopen.DriverBolt, "bbolt":
		return "data/ledger.bolt"
	}
	return ""
}
