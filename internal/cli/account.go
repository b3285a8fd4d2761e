package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/splitledger/internal/engine"
	"github.com/roach88/splitledger/internal/ledger"
)

// NewAccountCommand creates the account command group.
func NewAccountCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage accounts and their connections",
	}
	cmd.AddCommand(newAccountCreateCommand(rootOpts))
	cmd.AddCommand(newAccountConnectCommand(rootOpts))
	cmd.AddCommand(newAccountSettingsCommand(rootOpts))
	return cmd
}

func newAccountCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "create <email>",
		Short: "Create an account",
		Example: `  splitledger account create alice@example.com --id alice`,
		Args: cobra.ExactArgs(1),
		RunE: withSession(rootOpts, func(ctx context.Context, s *session, args []string) error {
			acc, err := s.engine.CreateAccount(ctx, engine.AccountInput{ID: id, Email: args[0]})
			if err != nil {
				return s.out.LedgerError(err)
			}
			return s.out.Success(acc, func(w io.Writer) {
				fmt.Fprintf(w, "Created account %s (self user %s)\n", acc.Identity.AccountID, acc.SelfUserID)
			})
		}),
	}
	cmd.Flags().StringVar(&id, "id", "", "account id (default: generated)")
	return cmd
}

func newAccountConnectCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "connect <account-id>",
		Short: "Connect the caller with another account both ways",
		Long: `Connect the caller with another account both ways.

Each side gets a contact standing for the other, created when missing.
Debts recorded against those contacts sync between the two accounts.`,
		Example: `  splitledger --as alice account connect bob`,
		Args:    cobra.ExactArgs(1),
		RunE: asCaller(rootOpts, func(ctx context.Context, s *session, id ledger.Identity, args []string) error {
			other, err := s.engine.Identity(ctx, args[0])
			if err != nil {
				return s.out.LedgerError(err)
			}
			conn, err := s.engine.Connect(ctx, id, other)
			if err != nil {
				return s.out.LedgerError(err)
			}
			return s.out.Success(conn, func(w io.Writer) {
				fmt.Fprintf(w, "Connected: your user %s, their user %s\n", conn.AUserID, conn.BUserID)
			})
		}),
	}
}

func newAccountSettingsCommand(rootOpts *RootOptions) *cobra.Command {
	var manual bool
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the caller's settings",
		Example: `  splitledger --as bob account settings --manual-accept=true`,
		Args: cobra.NoArgs,
	}
	cmd.RunE = asCaller(rootOpts, func(ctx context.Context, s *session, id ledger.Identity, args []string) error {
		if cmd.Flags().Changed("manual-accept") {
			if err := s.engine.SetManualAcceptDebts(ctx, id, manual); err != nil {
				return s.out.LedgerError(err)
			}
		}
		settings, err := s.engine.Settings(ctx, id)
		if err != nil {
			return s.out.LedgerError(err)
		}
		return s.out.Success(settings, func(w io.Writer) {
			fmt.Fprintf(w, "manual_accept_debts: %t\n", settings.ManualAcceptDebts)
		})
	})
	cmd.Flags().BoolVar(&manual, "manual-accept", false, "require accepting every synced debt by hand")
	return cmd
}
