package harness

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/splitledger/internal/ledger"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// checkExpect validates one call's outcome against its expect clause.
func checkExpect(where string, exp *Expect, out outcome, resolve func(string) string) []string {
	if exp == nil || exp.Error == "" {
		if out.err != nil {
			return []string{fmt.Sprintf("%s: unexpected error: %v", where, out.err)}
		}
	} else {
		got := "ok"
		if out.err != nil {
			got = string(ledger.CodeOf(out.err))
		}
		if got != exp.Error {
			return []string{fmt.Sprintf("%s: expected error %s, got %s (%v)", where, exp.Error, got, out.err)}
		}
		return nil
	}
	if exp == nil {
		return nil
	}

	actual, err := normalize(out.value)
	if err != nil {
		return []string{fmt.Sprintf("%s: cannot inspect result: %v", where, err)}
	}

	var errs []string
	if exp.Count != nil {
		list, ok := actual.([]any)
		if !ok {
			errs = append(errs, fmt.Sprintf("%s: expected a list result, got %T", where, actual))
		} else if len(list) != *exp.Count {
			errs = append(errs, fmt.Sprintf("%s: expected %d results, got %d", where, *exp.Count, len(list)))
		}
	}
	if exp.Result != nil && !matchValue(exp.Result, actual, resolve) {
		errs = append(errs, fmt.Sprintf("%s: result mismatch: expected %v, got %v", where, exp.Result, actual))
	}
	return errs
}

// normalize returns the JSON form of v as plain maps, slices and scalars.
func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// matchValue reports whether actual contains expected. Maps match as
// subsets, lists element-wise. Strings that name a label match the labelled
// id, and numeric strings match by decimal value.
func matchValue(expected, actual any, resolve func(string) string) bool {
	switch exp := expected.(type) {
	case nil:
		return actual == nil
	case map[string]any:
		act, ok := actual.(map[string]any)
		if !ok {
			return false
		}
		for k, v := range exp {
			if !matchValue(v, act[k], resolve) {
				return false
			}
		}
		return true
	case []any:
		act, ok := actual.([]any)
		if !ok || len(act) != len(exp) {
			return false
		}
		for i := range exp {
			if !matchValue(exp[i], act[i], resolve) {
				return false
			}
		}
		return true
	case string:
		if actual == nil {
			return false
		}
		want := resolve(exp)
		got := fmt.Sprint(actual)
		if want == got {
			return true
		}
		a, errA := decimal.NewFromString(want)
		b, errB := decimal.NewFromString(got)
		return errA == nil && errB == nil && a.Equal(b)
	default:
		return actual != nil && fmt.Sprint(exp) == fmt.Sprint(actual)
	}
}

// EvaluateAssertions checks every assertion against the final ledger and
// returns failure messages.
func EvaluateAssertions(r *Result, assertions []Assertion, resolve func(string) string) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertDebt:
			err = assertDebt(r, a, resolve)
		case AssertDebtAbsent:
			err = assertDebtAbsent(r, a, resolve)
		case AssertDebtCount:
			err = assertDebtCount(r, a)
		case AssertMirror:
			err = assertMirror(r, a, resolve)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func findDebt(r *Result, owner, id string) (ledger.Debt, bool) {
	for _, d := range r.Ledger {
		if d.OwnerAccountID == owner && d.ID == id {
			return d, true
		}
	}
	return ledger.Debt{}, false
}

func assertDebt(r *Result, a Assertion, resolve func(string) string) error {
	id := resolve(a.ID)
	d, ok := findDebt(r, a.Owner, id)
	if !ok {
		return &AssertionError{
			Type:     AssertDebt,
			Expected: fmt.Sprintf("%s holds debt %s", a.Owner, a.ID),
			Actual:   "not found",
		}
	}
	view := debtView(r, d)
	if !matchValue(a.Expect, view, resolve) {
		return &AssertionError{
			Type:     AssertDebt,
			Expected: fmt.Sprintf("%v", a.Expect),
			Actual:   fmt.Sprintf("%v", view),
		}
	}
	return nil
}

func assertDebtAbsent(r *Result, a Assertion, resolve func(string) string) error {
	if d, ok := findDebt(r, a.Owner, resolve(a.ID)); ok {
		return &AssertionError{
			Type:     AssertDebtAbsent,
			Expected: fmt.Sprintf("%s holds no debt %s", a.Owner, a.ID),
			Actual:   fmt.Sprintf("%v", debtView(r, d)),
		}
	}
	return nil
}

func assertDebtCount(r *Result, a Assertion) error {
	n := 0
	for _, d := range r.Ledger {
		if d.OwnerAccountID == a.Owner {
			n++
		}
	}
	if n != *a.Count {
		return &AssertionError{
			Type:     AssertDebtCount,
			Expected: fmt.Sprintf("%s holds %d debts", a.Owner, *a.Count),
			Actual:   fmt.Sprintf("%d debts", n),
		}
	}
	return nil
}

func assertMirror(r *Result, a Assertion, resolve func(string) string) error {
	id := resolve(a.ID)
	var rows []ledger.Debt
	for _, d := range r.Ledger {
		if d.ID == id {
			rows = append(rows, d)
		}
	}
	if len(rows) != 2 {
		return &AssertionError{
			Type:     AssertMirror,
			Expected: fmt.Sprintf("two rows with id %s", a.ID),
			Actual:   fmt.Sprintf("%d rows", len(rows)),
		}
	}
	if !ledger.Mirrors(rows[0], rows[1]) {
		return &AssertionError{
			Type:     AssertMirror,
			Expected: "rows mirror each other",
			Actual:   fmt.Sprintf("%v / %v", debtView(r, rows[0]), debtView(r, rows[1])),
		}
	}
	return nil
}

// debtView is the assertable form of a row.
func debtView(r *Result, d ledger.Debt) map[string]any {
	view := map[string]any{
		"id":            d.ID,
		"with":          withAccount(r, d),
		"amount":        d.Amount.StringFixed(ledger.AmountPlaces),
		"currency_code": d.CurrencyCode,
		"timestamp":     d.Timestamp.Format(time.RFC3339),
		"locked":        d.Locked(),
		"note":          d.Note,
		"receipt_id":    nil,
	}
	if d.ReceiptID != nil {
		view["receipt_id"] = *d.ReceiptID
	}
	return view
}

func withAccount(r *Result, d ledger.Debt) string {
	if acc, ok := r.Accounts[d.UserID]; ok {
		return acc
	}
	return d.UserID
}

func label(r *Result, id string) string {
	if l, ok := r.Labels[id]; ok {
		return l
	}
	return id
}

// sortedLedger orders rows by owner, then label.
func sortedLedger(r *Result) []ledger.Debt {
	out := make([]ledger.Debt, len(r.Ledger))
	copy(out, r.Ledger)
	sort.Slice(out, func(i, j int) bool {
		if out[i].OwnerAccountID != out[j].OwnerAccountID {
			return out[i].OwnerAccountID < out[j].OwnerAccountID
		}
		return label(r, out[i].ID) < label(r, out[j].ID)
	})
	return out
}
