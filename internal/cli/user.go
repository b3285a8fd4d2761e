package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/splitledger/internal/engine"
	"github.com/roach88/splitledger/internal/ledger"
)

// NewUserCommand creates the user command group.
func NewUserCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage the caller's contacts",
	}
	cmd.AddCommand(newUserCreateCommand(rootOpts))
	cmd.AddCommand(newUserConnectCommand(rootOpts))
	return cmd
}

func newUserCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an unconnected contact",
		Args:  cobra.ExactArgs(1),
		RunE: asCaller(rootOpts, func(ctx context.Context, s *session, caller ledger.Identity, args []string) error {
			u, err := s.engine.CreateUser(ctx, caller, engine.UserInput{ID: id, Name: args[0]})
			if err != nil {
				return s.out.LedgerError(err)
			}
			return s.out.Success(u, func(w io.Writer) {
				fmt.Fprintf(w, "Created user %s (%s)\n", u.ID, u.Name)
			})
		}),
	}
	cmd.Flags().StringVar(&id, "id", "", "user id (default: generated)")
	return cmd
}

func newUserConnectCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "connect <user-id> <account-id>",
		Short: "Point one of the caller's contacts at another account",
		Args:  cobra.ExactArgs(2),
		RunE: asCaller(rootOpts, func(ctx context.Context, s *session, caller ledger.Identity, args []string) error {
			if err := s.engine.ConnectUser(ctx, caller, args[0], args[1]); err != nil {
				return s.out.LedgerError(err)
			}
			data := map[string]string{"user_id": args[0], "connected_account_id": args[1]}
			return s.out.Success(data, func(w io.Writer) {
				fmt.Fprintf(w, "User %s now stands for account %s\n", args[0], args[1])
			})
		}),
	}
}
