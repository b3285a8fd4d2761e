package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// AmountPlaces is the fixed decimal precision of every stored amount.
const AmountPlaces = 2

// Identity is the authenticated caller of an operation.
// It is resolved by the request boundary and never taken from client input.
type Identity struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
}

// Debt is one account's stored view of a bilateral obligation.
type Debt struct {
	ID              string          `json:"id"`
	OwnerAccountID  string          `json:"owner_account_id"`
	UserID          string          `json:"user_id"`
	Amount          decimal.Decimal `json:"amount"`
	CurrencyCode    string          `json:"currency_code"`
	Timestamp       time.Time       `json:"timestamp"`
	LockedTimestamp *time.Time      `json:"locked_timestamp,omitempty"`
	Note            string          `json:"note"`
	ReceiptID       *string         `json:"receipt_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Locked reports whether the row is a confirmed, sync-eligible snapshot.
func (d *Debt) Locked() bool {
	return d != nil && d.LockedTimestamp != nil
}

// DedupKey returns the receipt dedup tuple of the row.
// ok is false when the row carries no receipt.
func (d *Debt) DedupKey() (key DedupKey, ok bool) {
	if d.ReceiptID == nil {
		return DedupKey{}, false
	}
	return DedupKey{OwnerAccountID: d.OwnerAccountID, UserID: d.UserID, ReceiptID: *d.ReceiptID}, true
}

// DedupKey identifies the single row allowed per receipt-scoped charge.
type DedupKey struct {
	OwnerAccountID string
	UserID         string
	ReceiptID      string
}

// User is an account-scoped contact record.
type User struct {
	ID                 string  `json:"id"`
	OwnerAccountID     string  `json:"owner_account_id"`
	Name               string  `json:"name"`
	ConnectedAccountID *string `json:"connected_account_id,omitempty"`
}

// IsSelf reports whether the user is its owner's own self-reference.
func (u User) IsSelf() bool {
	return u.ConnectedAccountID != nil && *u.ConnectedAccountID == u.OwnerAccountID
}

// UserLink is a user together with the counterparty side of its connection.
type UserLink struct {
	User
	// TheirUserID names the counterparty's user pointing back at the owner.
	TheirUserID *string
	// ManualAcceptDebts is the counterparty account's setting.
	ManualAcceptDebts bool
}

// Connected reports whether both sides of the user pair exist.
func (l UserLink) Connected() bool {
	return l.ConnectedAccountID != nil && l.TheirUserID != nil && !l.IsSelf()
}

// AutoAccepts reports whether the counterparty's mirror row may be written
// without their explicit action.
func (l UserLink) AutoAccepts() bool {
	return l.Connected() && !l.ManualAcceptDebts
}

// AccountSettings holds per-account reconciliation preferences.
type AccountSettings struct {
	AccountID         string `json:"account_id"`
	ManualAcceptDebts bool   `json:"manual_accept_debts"`
}

// Intention is a counterparty row fresher than the caller's mirror,
// expressed in the caller's frame.
type Intention struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Amount          decimal.Decimal `json:"amount"`
	CurrencyCode    string          `json:"currency_code"`
	Timestamp       time.Time       `json:"timestamp"`
	LockedTimestamp time.Time       `json:"locked_timestamp"`
	ReceiptID       *string         `json:"receipt_id,omitempty"`
	Current         *MirrorState    `json:"current,omitempty"`
}

// MirrorState is the caller's own mirrored values for an intention.
type MirrorState struct {
	Amount          decimal.Decimal `json:"amount"`
	CurrencyCode    string          `json:"currency_code"`
	Timestamp       time.Time       `json:"timestamp"`
	LockedTimestamp *time.Time      `json:"locked_timestamp,omitempty"`
}

// Mirror returns the counterparty-frame view of d owned by ownerAccountID
// through userID. Notes are never mirrored.
func Mirror(d Debt, ownerAccountID, userID string) Debt {
	return Debt{
		ID:              d.ID,
		OwnerAccountID:  ownerAccountID,
		UserID:          userID,
		Amount:          d.Amount.Neg(),
		CurrencyCode:    d.CurrencyCode,
		Timestamp:       d.Timestamp,
		LockedTimestamp: CloneTime(d.LockedTimestamp),
		ReceiptID:       CloneString(d.ReceiptID),
	}
}

// RoundAmount normalises an amount to the stored precision.
func RoundAmount(a decimal.Decimal) decimal.Decimal {
	return a.Round(AmountPlaces)
}

// CloneTime returns a copy of t.
func CloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// CloneString returns a copy of s.
func CloneString(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
