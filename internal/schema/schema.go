// Package schema validates raw debt requests before they reach the engine.
//
// Shapes are checked against an embedded CUE schema; currency codes are then
// checked against ISO 4217 and amounts parsed as decimals.
package schema

import (
	_ "embed"
	"fmt"
	"sync"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/roach88/splitledger/internal/engine"
	"github.com/roach88/splitledger/internal/ledger"
)

//go:embed debt.cue
var debtSchema string

// DebtInput is a raw add request.
type DebtInput struct {
	UserID       string  `json:"user_id" yaml:"user_id"`
	Amount       string  `json:"amount" yaml:"amount"`
	CurrencyCode string  `json:"currency_code" yaml:"currency_code"`
	Timestamp    string  `json:"timestamp" yaml:"timestamp"`
	Note         string  `json:"note,omitempty" yaml:"note"`
	ReceiptID    *string `json:"receipt_id,omitempty" yaml:"receipt_id"`
	Unlocked     bool    `json:"unlocked,omitempty" yaml:"unlocked"`
}

// PatchInput is a raw update request. Absent fields are left unchanged.
type PatchInput struct {
	Amount       *string `json:"amount,omitempty" yaml:"amount"`
	CurrencyCode *string `json:"currency_code,omitempty" yaml:"currency_code"`
	Timestamp    *string `json:"timestamp,omitempty" yaml:"timestamp"`
	Note         *string `json:"note,omitempty" yaml:"note"`
	ReceiptID    *string `json:"receipt_id,omitempty" yaml:"receipt_id"`
	Locked       *bool   `json:"locked,omitempty" yaml:"locked"`
}

// Validator checks requests against the compiled schema.
//
// Thread-safety: safe for concurrent use; CUE evaluation is serialised.
type Validator struct {
	mu    sync.Mutex
	ctx   *cue.Context
	debt  cue.Value
	patch cue.Value
}

// New compiles the embedded schema.
func New() (*Validator, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(debtSchema, cue.Filename("debt.cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile debt schema: %w", err)
	}
	return &Validator{
		ctx:   ctx,
		debt:  v.LookupPath(cue.ParsePath("#DebtInput")),
		patch: v.LookupPath(cue.ParsePath("#DebtPatch")),
	}, nil
}

// Debt validates an add request and converts it for the engine.
func (v *Validator) Debt(in DebtInput) (engine.AddInput, error) {
	if err := v.check(v.debt, in); err != nil {
		return engine.AddInput{}, err
	}
	amount, err := parseAmount(in.Amount)
	if err != nil {
		return engine.AddInput{}, err
	}
	code, err := parseCurrency(in.CurrencyCode)
	if err != nil {
		return engine.AddInput{}, err
	}
	ts, err := parseTimestamp(in.Timestamp)
	if err != nil {
		return engine.AddInput{}, err
	}
	return engine.AddInput{
		UserID:       in.UserID,
		Amount:       amount,
		CurrencyCode: code,
		Timestamp:    ts,
		Note:         in.Note,
		ReceiptID:    ledger.CloneString(in.ReceiptID),
		Unlocked:     in.Unlocked,
	}, nil
}

// Patch validates an update request and converts it for the engine.
func (v *Validator) Patch(in PatchInput) (engine.Patch, error) {
	if err := v.check(v.patch, in); err != nil {
		return engine.Patch{}, err
	}
	p := engine.Patch{
		Note:      ledger.CloneString(in.Note),
		ReceiptID: ledger.CloneString(in.ReceiptID),
		Locked:    in.Locked,
	}
	if in.Amount != nil {
		a, err := parseAmount(*in.Amount)
		if err != nil {
			return engine.Patch{}, err
		}
		p.Amount = &a
	}
	if in.CurrencyCode != nil {
		code, err := parseCurrency(*in.CurrencyCode)
		if err != nil {
			return engine.Patch{}, err
		}
		p.CurrencyCode = &code
	}
	if in.Timestamp != nil {
		ts, err := parseTimestamp(*in.Timestamp)
		if err != nil {
			return engine.Patch{}, err
		}
		p.Timestamp = &ts
	}
	if p.Empty() {
		return engine.Patch{}, ledger.BadRequest("Expected at least one field to update.")
	}
	return p, nil
}

func (v *Validator) check(schema cue.Value, in any) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	val := v.ctx.Encode(in)
	if err := val.Err(); err != nil {
		return ledger.BadRequest("encode request: %v", err)
	}
	if err := schema.Unify(val).Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// formatCUEError reports the first schema violation.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return ledger.BadRequest("%v", err)
	}
	return ledger.BadRequest("%s", errs[0].Error())
}

func parseAmount(s string) (decimal.Decimal, error) {
	a, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, ledger.BadRequest("Invalid amount %q.", s)
	}
	if a.IsZero() {
		return decimal.Decimal{}, ledger.BadRequest("Amount must not be zero.")
	}
	return a, nil
}

func parseCurrency(s string) (string, error) {
	unit, err := currency.ParseISO(s)
	if err != nil {
		return "", ledger.BadRequest("Unknown currency %q.", s)
	}
	return unit.String(), nil
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, ledger.BadRequest("Invalid timestamp %q.", s)
}
