package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/roach88/splitledger/internal/ledger"
)

func TestFormatAmount(t *testing.T) {
	p := message.NewPrinter(language.English)

	out := formatAmount(p, decimal.RequireFromString("-12.5"), "EUR")
	assert.Contains(t, out, "12.50")
	assert.Contains(t, out, "-")

	assert.Equal(t, "3.00 ZZZ", formatAmount(p, decimal.RequireFromString("3"), "ZZZ"))
}

func TestWriteDebts(t *testing.T) {
	p := message.NewPrinter(language.English)
	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	receipt := "r-1"

	buf := &bytes.Buffer{}
	writeDebts(buf, p, nil)
	assert.Equal(t, "No debts.\n", buf.String())

	buf.Reset()
	writeDebts(buf, p, []ledger.Debt{{
		ID: "d-1", UserID: "u-1", Amount: decimal.RequireFromString("4"), CurrencyCode: "USD",
		Timestamp: ts, LockedTimestamp: &ts, ReceiptID: &receipt, Note: "cab",
	}})
	line := buf.String()
	assert.Contains(t, line, "d-1  2024-05-01")
	assert.Contains(t, line, "user=u-1  locked 2024-05-01T00:00:00Z  receipt=r-1  \"cab\"\n")
}

func TestWriteIntentions(t *testing.T) {
	p := message.NewPrinter(language.English)
	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	buf := &bytes.Buffer{}
	writeIntentions(buf, p, []ledger.Intention{
		{ID: "a", UserID: "u", Amount: decimal.RequireFromString("1"), CurrencyCode: "USD", Timestamp: ts, LockedTimestamp: ts},
		{ID: "b", UserID: "u", Amount: decimal.RequireFromString("2"), CurrencyCode: "USD", Timestamp: ts, LockedTimestamp: ts,
			Current: &ledger.MirrorState{Amount: decimal.RequireFromString("1"), CurrencyCode: "USD", Timestamp: ts}},
	})
	out := buf.String()
	assert.Contains(t, out, "(new)")
	assert.Contains(t, out, "(yours: ")
}
