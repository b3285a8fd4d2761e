package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/splitledger/internal/ledger"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := New()
	require.NoError(t, err)
	return v
}

func strp(s string) *string { return &s }

func TestDebt_Valid(t *testing.T) {
	v := newValidator(t)

	in, err := v.Debt(DebtInput{
		UserID:       "u-1",
		Amount:       "-12.5",
		CurrencyCode: "EUR",
		Timestamp:    "2024-05-01",
		Note:         "lunch",
		ReceiptID:    strp("r-1"),
	})
	require.NoError(t, err)

	assert.Equal(t, "u-1", in.UserID)
	assert.Equal(t, "-12.5", in.Amount.String())
	assert.Equal(t, "EUR", in.CurrencyCode)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), in.Timestamp)
	assert.Equal(t, "r-1", *in.ReceiptID)
	assert.False(t, in.Unlocked)
}

func TestDebt_Rejections(t *testing.T) {
	v := newValidator(t)
	valid := DebtInput{UserID: "u-1", Amount: "10", CurrencyCode: "USD", Timestamp: "2024-05-01T10:00:00Z"}

	tests := []struct {
		name   string
		mutate func(*DebtInput)
	}{
		{"missing user", func(in *DebtInput) { in.UserID = "" }},
		{"three decimals", func(in *DebtInput) { in.Amount = "1.234" }},
		{"not a number", func(in *DebtInput) { in.Amount = "ten" }},
		{"zero amount", func(in *DebtInput) { in.Amount = "0.00" }},
		{"lowercase currency", func(in *DebtInput) { in.CurrencyCode = "usd" }},
		{"unknown currency", func(in *DebtInput) { in.CurrencyCode = "XYZ" }},
		{"bad timestamp", func(in *DebtInput) { in.Timestamp = "yesterday" }},
		{"impossible date", func(in *DebtInput) { in.Timestamp = "2024-13-45" }},
		{"empty receipt", func(in *DebtInput) { in.ReceiptID = strp("") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			_, err := v.Debt(in)
			require.Error(t, err)
			assert.ErrorIs(t, err, ledger.ErrBadRequest)
		})
	}

	_, err := v.Debt(valid)
	assert.NoError(t, err)
}

func TestPatch(t *testing.T) {
	v := newValidator(t)
	locked := false

	p, err := v.Patch(PatchInput{Amount: strp("3.10"), Locked: &locked})
	require.NoError(t, err)
	require.NotNil(t, p.Amount)
	assert.Equal(t, "3.1", p.Amount.String())
	assert.Nil(t, p.CurrencyCode)
	require.NotNil(t, p.Locked)
	assert.False(t, *p.Locked)

	p, err = v.Patch(PatchInput{Note: strp("")})
	require.NoError(t, err, "clearing a note is a real change")
	assert.Equal(t, "", *p.Note)

	_, err = v.Patch(PatchInput{})
	assert.ErrorIs(t, err, ledger.ErrBadRequest)

	_, err = v.Patch(PatchInput{CurrencyCode: strp("EURO")})
	assert.ErrorIs(t, err, ledger.ErrBadRequest)
}
