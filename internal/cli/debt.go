package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/splitledger/internal/engine"
	"github.com/roach88/splitledger/internal/ledger"
	"github.com/roach88/splitledger/internal/schema"
)

// NewDebtCommand creates the debt command group.
func NewDebtCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "debt",
		Short: "Record, change and remove the caller's debts",
		Long: `Record, change and remove the caller's debts.

A positive amount means the user owes the caller; a negative amount means
the caller owes the user.`,
	}
	cmd.AddCommand(newDebtAddCommand(rootOpts))
	cmd.AddCommand(newDebtUpdateCommand(rootOpts))
	cmd.AddCommand(newDebtRemoveCommand(rootOpts))
	cmd.AddCommand(newDebtListCommand(rootOpts))
	return cmd
}

func newDebtAddCommand(rootOpts *RootOptions) *cobra.Command {
	var in schema.DebtInput
	var receipt string
	cmd := &cobra.Command{
		Use:     "add",
		Short:   "Record a debt against a user",
		Example: `  splitledger --as alice debt add --user 0192... --amount -12.50 --currency EUR --timestamp 2024-05-01 --note lunch`,
		Args:    cobra.NoArgs,
	}
	cmd.RunE = asCaller(rootOpts, func(ctx context.Context, s *session, id ledger.Identity, args []string) error {
		if cmd.Flags().Changed("receipt") {
			in.ReceiptID = &receipt
		}
		v, err := newValidator()
		if err != nil {
			return err
		}
		req, err := v.Debt(in)
		if err != nil {
			return s.out.LedgerError(err)
		}
		res, err := s.engine.Add(ctx, id, req)
		if err != nil {
			return s.out.LedgerError(err)
		}
		return s.out.Success(res, func(w io.Writer) {
			fmt.Fprintf(w, "Added debt %s", res.ID)
			if res.ReverseAccepted {
				fmt.Fprint(w, " (synced)")
			}
			fmt.Fprintln(w)
		})
	})

	cmd.Flags().StringVar(&in.UserID, "user", "", "user id the debt is with")
	cmd.Flags().StringVar(&in.Amount, "amount", "", "signed amount, at most two decimals")
	cmd.Flags().StringVar(&in.CurrencyCode, "currency", "", "ISO 4217 currency code")
	cmd.Flags().StringVar(&in.Timestamp, "timestamp", "", "date (2006-01-02) or RFC 3339 instant")
	cmd.Flags().StringVar(&in.Note, "note", "", "private note")
	cmd.Flags().StringVar(&receipt, "receipt", "", "receipt id for deduplication")
	cmd.Flags().BoolVar(&in.Unlocked, "unlocked", false, "record a draft that does not sync yet")
	return cmd
}

func newDebtUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	var amount, code, timestamp, note, receipt string
	var locked bool
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of one of the caller's debts",
		Long: `Change fields of one of the caller's debts.

Only the flags given are changed. Changing the amount, currency or
timestamp of a locked debt locks it again at the current time; --lock
sets or clears the lock explicitly.`,
		Args: cobra.ExactArgs(1),
	}
	cmd.RunE = asCaller(rootOpts, func(ctx context.Context, s *session, id ledger.Identity, args []string) error {
		var in schema.PatchInput
		flags := cmd.Flags()
		if flags.Changed("amount") {
			in.Amount = &amount
		}
		if flags.Changed("currency") {
			in.CurrencyCode = &code
		}
		if flags.Changed("timestamp") {
			in.Timestamp = &timestamp
		}
		if flags.Changed("note") {
			in.Note = &note
		}
		if flags.Changed("receipt") {
			in.ReceiptID = &receipt
		}
		if flags.Changed("lock") {
			in.Locked = &locked
		}

		v, err := newValidator()
		if err != nil {
			return err
		}
		patch, err := v.Patch(in)
		if err != nil {
			return s.out.LedgerError(err)
		}
		res, err := s.engine.Update(ctx, id, engine.UpdateInput{ID: args[0], Patch: patch})
		if err != nil {
			return s.out.LedgerError(err)
		}
		return s.out.Success(res, func(w io.Writer) {
			fmt.Fprintf(w, "Updated debt %s (%s)", args[0], lockState(res.LockedTimestamp))
			if res.ReverseLockedTimestampUpdated {
				fmt.Fprint(w, " (synced)")
			}
			fmt.Fprintln(w)
		})
	})

	cmd.Flags().StringVar(&amount, "amount", "", "new signed amount")
	cmd.Flags().StringVar(&code, "currency", "", "new currency code")
	cmd.Flags().StringVar(&timestamp, "timestamp", "", "new date or instant")
	cmd.Flags().StringVar(&note, "note", "", "new note")
	cmd.Flags().StringVar(&receipt, "receipt", "", "new receipt id")
	cmd.Flags().BoolVar(&locked, "lock", false, "set (true) or clear (false) the lock")
	return cmd
}

func newDebtRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove one of the caller's debts",
		Args:  cobra.ExactArgs(1),
		RunE: asCaller(rootOpts, func(ctx context.Context, s *session, id ledger.Identity, args []string) error {
			res, err := s.engine.Remove(ctx, id, args[0])
			if err != nil {
				return s.out.LedgerError(err)
			}
			return s.out.Success(res, func(w io.Writer) {
				fmt.Fprintf(w, "Removed debt %s", args[0])
				if res.ReverseRemoved {
					fmt.Fprint(w, " on both sides")
				}
				fmt.Fprintln(w)
			})
		}),
	}
}

func newDebtListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the caller's debts, newest first",
		Args:  cobra.NoArgs,
		RunE: asCaller(rootOpts, func(ctx context.Context, s *session, id ledger.Identity, args []string) error {
			debts, err := s.engine.ListDebts(ctx, id)
			if err != nil {
				return s.out.LedgerError(err)
			}
			return s.out.Success(debts, func(w io.Writer) {
				writeDebts(w, s.printer, debts)
			})
		}),
	}
}

func newValidator() (*schema.Validator, error) {
	v, err := schema.New()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to compile request schema", err)
	}
	return v, nil
}
