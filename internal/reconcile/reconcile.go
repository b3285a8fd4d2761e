// Package reconcile writes a counterparty's mirrored rows on their behalf.
//
// A candidate is matched either by identity (id, owner) or, for new rows,
// by the receipt dedup tuple (owner, user, receipt). Matched rows are
// updated in place without touching their note; unmatched candidates are
// inserted. An identity match locked strictly after the candidate is left
// alone. Running the same candidates twice leaves one row per candidate.
//
// The work is split so callers sharing a read phase can match a whole group
// of candidates at once and then apply each logical call's share in its own
// transaction.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/splitledger/internal/ledger"
	"github.com/roach88/splitledger/internal/store"
)

// Candidate is a mirrored row to write on the counterparty's side.
type Candidate struct {
	ID              string
	OwnerAccountID  string
	UserID          string
	ReceiptID       *string
	Amount          decimal.Decimal
	CurrencyCode    string
	Timestamp       time.Time
	LockedTimestamp *time.Time
	Note            string
	// IsNew selects dedup-tuple matching instead of identity matching.
	IsNew bool
}

// Outcome is the result for the candidate at the same index.
type Outcome struct {
	Debt     ledger.Debt
	Inserted bool
	// MatchedID is set when a new candidate landed on an existing row with a
	// different id. Callers redirect their own row onto it.
	MatchedID *string
	// Stale is set when the matched row holds a fresher lock than the
	// candidate and was not written. Debt is the row as stored.
	Stale bool
}

// Result summarises one Apply.
type Result struct {
	Inserted []ledger.Debt
	Updated  []ledger.Debt
	Outcomes []Outcome
}

// Match finds the existing row for each candidate in one read per match
// kind. The returned slice is indexed like cands; nil means unmatched.
func Match(ctx context.Context, q *store.Queries, cands []Candidate) ([]*ledger.Debt, error) {
	var (
		keys  []store.DebtKey
		dedup []ledger.DedupKey
	)
	for _, c := range cands {
		switch {
		case !c.IsNew:
			keys = append(keys, store.DebtKey{ID: c.ID, OwnerAccountID: c.OwnerAccountID})
		case c.ReceiptID != nil:
			dedup = append(dedup, c.dedupKey())
		}
	}

	byKey, err := q.ReadDebtsByKey(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("match by identity: %w", err)
	}
	byDedup, err := q.ReadDebtsByDedupKey(ctx, dedup)
	if err != nil {
		return nil, fmt.Errorf("match by receipt: %w", err)
	}

	matches := make([]*ledger.Debt, len(cands))
	for i, c := range cands {
		var (
			d  ledger.Debt
			ok bool
		)
		switch {
		case !c.IsNew:
			d, ok = byKey[store.DebtKey{ID: c.ID, OwnerAccountID: c.OwnerAccountID}]
		case c.ReceiptID != nil:
			d, ok = byDedup[c.dedupKey()]
		}
		if ok {
			matches[i] = &d
		}
	}
	return matches, nil
}

// Apply writes cands given their matches: one multi-row insert for the
// unmatched candidates, then one update per matched candidate.
// matches must be indexed like cands, as returned by Match.
func Apply(ctx context.Context, q *store.Queries, cands []Candidate, matches []*ledger.Debt, now time.Time) (Result, error) {
	if len(matches) != len(cands) {
		return Result{}, ledger.Internal(nil, "reconcile: %d matches for %d candidates", len(matches), len(cands))
	}

	res := Result{Outcomes: make([]Outcome, len(cands))}
	var inserts []ledger.Debt
	for i, c := range cands {
		m := matches[i]
		if m == nil {
			d := c.debt(now)
			inserts = append(inserts, d)
			res.Outcomes[i] = Outcome{Debt: d, Inserted: true}
			continue
		}

		if !c.IsNew && ledger.IsIntentionFrom(m, &ledger.Debt{LockedTimestamp: c.LockedTimestamp}) {
			res.Outcomes[i] = Outcome{Debt: *m, Stale: true}
			continue
		}

		d := *m
		d.Amount = ledger.RoundAmount(c.Amount)
		d.CurrencyCode = c.CurrencyCode
		d.Timestamp = c.Timestamp
		d.ReceiptID = ledger.CloneString(c.ReceiptID)
		d.LockedTimestamp = ledger.CloneTime(c.LockedTimestamp)
		d.UpdatedAt = now
		ok, err := q.UpdateDebt(ctx, d)
		if err != nil {
			return Result{}, conflict(err)
		}
		if !ok {
			return Result{}, ledger.Internal(nil, "reconcile: matched debt %s of %s vanished", d.ID, d.OwnerAccountID)
		}

		out := Outcome{Debt: d}
		if c.IsNew && d.ID != c.ID {
			out.MatchedID = &d.ID
		}
		res.Outcomes[i] = out
		res.Updated = append(res.Updated, d)
	}

	if err := q.InsertDebts(ctx, inserts); err != nil {
		return Result{}, conflict(err)
	}
	res.Inserted = inserts
	return res, nil
}

// Reconcile matches and applies cands in one step.
func Reconcile(ctx context.Context, q *store.Queries, cands []Candidate, now time.Time) (Result, error) {
	matches, err := Match(ctx, q, cands)
	if err != nil {
		return Result{}, err
	}
	return Apply(ctx, q, cands, matches, now)
}

// conflict reports a write that collided with another counterparty row on
// its id or receipt.
func conflict(err error) error {
	if store.IsUniqueViolation(err) {
		return ledger.ReciprocalForbidden("The other side already holds a debt with this id or receipt.")
	}
	return err
}

func (c Candidate) dedupKey() ledger.DedupKey {
	return ledger.DedupKey{OwnerAccountID: c.OwnerAccountID, UserID: c.UserID, ReceiptID: *c.ReceiptID}
}

func (c Candidate) debt(now time.Time) ledger.Debt {
	return ledger.Debt{
		ID:              c.ID,
		OwnerAccountID:  c.OwnerAccountID,
		UserID:          c.UserID,
		Amount:          ledger.RoundAmount(c.Amount),
		CurrencyCode:    c.CurrencyCode,
		Timestamp:       c.Timestamp,
		LockedTimestamp: ledger.CloneTime(c.LockedTimestamp),
		Note:            c.Note,
		ReceiptID:       ledger.CloneString(c.ReceiptID),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
