// Package commands implements the ledger CLI.
package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledger/internal/buildinfo"
)

// globals holds the persistent flags shared by every subcommand.
type globals struct {
	repo  string
	debug bool
	log   *slog.Logger
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:     "ledger",
		Short:   "Double-entry bookkeeping for small businesses",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelWarn
			if g.debug {
				level = slog.LevelDebug
			}
			g.log = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&g.repo, "repo", ".", "ledger data directory")
	rootCmd.PersistentFlags().BoolVar(&g.debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(
		newInitCommand(g),
		newAccountsCommand(g),
		newPostCommand(g),
		newIncomeCommand(g),
		newExpenseCommand(g),
		newReverseCommand(g),
		newShowCommand(g),
		newTransactionsCommand(g),
		newImportCommand(g),
		newExportCommand(g),
		newVerifyCommand(g),
		newLogCommand(g),
		newServeCommand(g),
	)

	return rootCmd
}
