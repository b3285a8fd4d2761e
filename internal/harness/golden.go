package harness

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/splitledger/internal/ledger"
)

// Snapshot renders a result as stable text: the trace in step order, then
// every row by owner and label. Generated ids and clock-derived instants
// are left out so snapshots survive scheduling differences.
func Snapshot(name string, r *Result) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", name)

	b.WriteString("trace:\n")
	for _, ev := range r.Trace {
		target := ev.Target
		if target == "" {
			target = "-"
		}
		fmt.Fprintf(&b, "  %s %s %s %s -> %s\n", ev.Step, ev.As, ev.Op, target, ev.Outcome)
	}

	b.WriteString("ledger:\n")
	for _, d := range sortedLedger(r) {
		fmt.Fprintf(&b, "  %s %s with=%s amount=%s currency=%s timestamp=%s locked=%t receipt=%s note=%q\n",
			d.OwnerAccountID,
			label(r, d.ID),
			withAccount(r, d),
			d.Amount.StringFixed(ledger.AmountPlaces),
			d.CurrencyCode,
			d.Timestamp.Format(time.RFC3339),
			d.Locked(),
			receipt(d),
			d.Note,
		)
	}
	return []byte(b.String())
}

func receipt(d ledger.Debt) string {
	if d.ReceiptID == nil {
		return "-"
	}
	return *d.ReceiptID
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, Snapshot(name, result))
}
