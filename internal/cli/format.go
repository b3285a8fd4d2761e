package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/message"

	"github.com/roach88/splitledger/internal/ledger"
)

// formatAmount renders an amount with the currency symbol of the printer's
// language, falling back to the bare code. Display only; stored amounts
// never pass through floats.
func formatAmount(p *message.Printer, amount decimal.Decimal, code string) string {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return amount.StringFixed(ledger.AmountPlaces) + " " + code
	}
	return p.Sprint(currency.Symbol(unit.Amount(amount.InexactFloat64())))
}

func formatDate(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

func lockState(t *time.Time) string {
	if t == nil {
		return "draft"
	}
	return "locked " + t.UTC().Format(time.RFC3339)
}

func writeDebts(w io.Writer, p *message.Printer, debts []ledger.Debt) {
	if len(debts) == 0 {
		fmt.Fprintln(w, "No debts.")
		return
	}
	for _, d := range debts {
		fmt.Fprintf(w, "%s  %s  %s  user=%s  %s", d.ID, formatDate(d.Timestamp), formatAmount(p, d.Amount, d.CurrencyCode), d.UserID, lockState(d.LockedTimestamp))
		if d.ReceiptID != nil {
			fmt.Fprintf(w, "  receipt=%s", *d.ReceiptID)
		}
		if d.Note != "" {
			fmt.Fprintf(w, "  %q", d.Note)
		}
		fmt.Fprintln(w)
	}
}

func writeIntentions(w io.Writer, p *message.Printer, intentions []ledger.Intention) {
	if len(intentions) == 0 {
		fmt.Fprintln(w, "No intentions.")
		return
	}
	for _, in := range intentions {
		fmt.Fprintf(w, "%s  %s  %s  user=%s", in.ID, formatDate(in.Timestamp), formatAmount(p, in.Amount, in.CurrencyCode), in.UserID)
		if c := in.Current; c != nil {
			fmt.Fprintf(w, "  (yours: %s %s)", formatAmount(p, c.Amount, c.CurrencyCode), formatDate(c.Timestamp))
		} else {
			fmt.Fprint(w, "  (new)")
		}
		fmt.Fprintln(w)
	}
}
