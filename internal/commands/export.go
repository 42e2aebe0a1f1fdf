package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledger/internal/accounts"
	"github.com/cleared-dev/ledger/internal/gitops"
	"github.com/cleared-dev/ledger/internal/journal"
)

func newExportCommand(g *globals) *cobra.Command {
	var commit bool

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write posted transactions to YYYY/MM/journal.csv files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := g.open(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.syncChart(ctx); err != nil {
				return err
			}
			paths, err := journal.Export(ctx, e.ledger, e.businessID(), e.repo)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, p := range paths {
				rel, _ := filepath.Rel(e.repo, p)
				fmt.Fprintln(out, rel)
			}

			if !commit {
				return nil
			}
			if !gitops.IsRepo(e.repo) {
				return fmt.Errorf("%s is not a git repository (run 'ledger init --git')", e.repo)
			}
			hash, err := gitops.CommitAll(ctx, e.repo, fmt.Sprintf("export: %d journal files", len(paths)), gitops.DefaultAuthor)
			if err != nil {
				return fmt.Errorf("committing export: %w", err)
			}
			fmt.Fprintf(out, "Committed %s\n", hash)
			return nil
		},
	}

	cmd.Flags().BoolVar(&commit, "commit", false, "commit the exported files to git")

	return cmd
}

func newVerifyCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check exported journal files against the chart of accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := filepath.Abs(g.repo)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			chart, err := accounts.Load(repo)
			if err != nil {
				return err
			}
			months, err := journal.Months(repo)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			var problems int
			for _, m := range months {
				rows, err := journal.ReadMonth(repo, m.Year, m.Month)
				if err != nil {
					return err
				}
				for _, verr := range journal.Check(rows, chart, m.Year, m.Month) {
					fmt.Fprintf(out, "%04d-%02d %s\n", m.Year, m.Month, verr)
					problems++
				}
			}

			if problems > 0 {
				return fmt.Errorf("%d problems in %d journal files", problems, len(months))
			}
			fmt.Fprintf(out, "%d journal files OK\n", len(months))
			return nil
		},
	}
}
