package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	DB      string // overrides SPLITLEDGER_DB
	As      string // calling account id
	Lang    string // BCP 47 tag for amount formatting
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the splitledger CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "splitledger",
		Short: "splitledger - shared debt ledger",
		Long: `A ledger of debts between connected accounts.

Each side keeps its own row of a shared debt. Rows sync automatically when
the other side auto-accepts, and otherwise wait as intentions until the
other side accepts them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "database path (default $SPLITLEDGER_DB)")
	cmd.PersistentFlags().StringVar(&opts.As, "as", "", "account id to act as")
	cmd.PersistentFlags().StringVar(&opts.Lang, "lang", "en", "language for amount formatting")

	// Add subcommands
	cmd.AddCommand(NewAccountCommand(opts))
	cmd.AddCommand(NewUserCommand(opts))
	cmd.AddCommand(NewDebtCommand(opts))
	cmd.AddCommand(NewIntentionsCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
