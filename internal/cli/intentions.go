package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/splitledger/internal/ledger"
)

// NewIntentionsCommand creates the intentions command group.
func NewIntentionsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "intentions",
		Short: "Review and accept the other side's changes",
		Long: `Review and accept the other side's changes.

An intention is a locked debt on the other side that is fresher than your
own row for it, or that you do not have yet.`,
	}
	cmd.AddCommand(newIntentionsListCommand(rootOpts))
	cmd.AddCommand(newIntentionsAcceptCommand(rootOpts))
	cmd.AddCommand(newIntentionsAcceptAllCommand(rootOpts))
	return cmd
}

func newIntentionsListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pending intentions, freshest first",
		Args:  cobra.NoArgs,
		RunE: asCaller(rootOpts, func(ctx context.Context, s *session, id ledger.Identity, args []string) error {
			intentions, err := s.engine.GetIntentions(ctx, id)
			if err != nil {
				return s.out.LedgerError(err)
			}
			return s.out.Success(intentions, func(w io.Writer) {
				writeIntentions(w, s.printer, intentions)
			})
		}),
	}
}

func newIntentionsAcceptCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "accept <id>",
		Short: "Accept one intention",
		Args:  cobra.ExactArgs(1),
		RunE: asCaller(rootOpts, func(ctx context.Context, s *session, id ledger.Identity, args []string) error {
			res, err := s.engine.AcceptIntention(ctx, id, args[0])
			if err != nil {
				return s.out.LedgerError(err)
			}
			return s.out.Success(res, func(w io.Writer) {
				fmt.Fprintf(w, "Accepted %s\n", args[0])
			})
		}),
	}
}

func newIntentionsAcceptAllCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "accept-all",
		Short: "Accept every pending intention at once",
		Args:  cobra.NoArgs,
		RunE: asCaller(rootOpts, func(ctx context.Context, s *session, id ledger.Identity, args []string) error {
			accepted, err := s.engine.AcceptAllIntentions(ctx, id)
			if err != nil {
				return s.out.LedgerError(err)
			}
			return s.out.Success(accepted, func(w io.Writer) {
				fmt.Fprintf(w, "Accepted %d intention(s)\n", len(accepted))
			})
		}),
	}
}
