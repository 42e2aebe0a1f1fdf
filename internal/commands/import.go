package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledger/internal/auditlog"
	"github.com/cleared-dev/ledger/internal/importer"
)

func newImportCommand(g *globals) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "import [file...]",
		Short: "Post bank CSV rows as income and expense entries",
		Long: `Post each row of a bank CSV export as its own ledger entry.

Deposits credit the default income account, withdrawals debit the default
expense account, and both move the default cash account. With no files,
every CSV waiting in import/ is posted and then moved to import/processed/.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := g.open(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			registry := importer.DefaultRegistry()
			if registry.Get(format) == nil {
				return fmt.Errorf("unknown format %q (available: %s)", format, strings.Join(registry.Formats(), ", "))
			}

			files := args
			fromInbox := len(files) == 0
			if fromInbox {
				files, err = importer.Scan(e.repo)
				if err != nil {
					return err
				}
				if len(files) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Nothing to import")
					return nil
				}
			}

			accts := importer.Accounts{BusinessID: e.businessID(), ActorID: e.cfg.Actor}
			if accts.Cash, err = e.accountID(ctx, e.cfg.Defaults.CashAccount); err != nil {
				return err
			}
			if accts.Income, err = e.accountID(ctx, e.cfg.Defaults.IncomeAccount); err != nil {
				return err
			}
			if accts.Expense, err = e.accountID(ctx, e.cfg.Defaults.ExpenseAccount); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, path := range files {
				rows, err := registry.ParseFile(path, format)
				if err != nil {
					return err
				}

				res, err := importer.Post(ctx, e.ledger, rows, accts)
				name := filepath.Base(path)
				if len(res.Posted) > 0 {
					g.record(e, auditlog.ActionImport,
						fmt.Sprintf("%s: %d rows posted", name, len(res.Posted)),
						res.Posted[len(res.Posted)-1].TransactionNumber)
				}
				if err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}

				if fromInbox {
					if err := importer.MarkProcessed(e.repo, name); err != nil {
						return err
					}
				}
				g.log.Debug("file imported", "file", name, "posted", len(res.Posted), "skipped", len(res.Skipped))
				fmt.Fprintf(out, "%s: posted %d, skipped %d\n", name, len(res.Posted), len(res.Skipped))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "chase", "bank CSV format")

	return cmd
}
