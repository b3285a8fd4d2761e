package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/splitledger/internal/batch"
	"github.com/roach88/splitledger/internal/ledger"
	"github.com/roach88/splitledger/internal/reconcile"
	"github.com/roach88/splitledger/internal/store"
)

// Patch holds the fields to change. Nil fields are left as they are.
type Patch struct {
	Amount       *decimal.Decimal
	CurrencyCode *string
	Timestamp    *time.Time
	Note         *string
	ReceiptID    *string
	// Locked explicitly sets (true) or clears (false) the lock.
	Locked *bool
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Amount == nil && p.CurrencyCode == nil && p.Timestamp == nil &&
		p.Note == nil && p.ReceiptID == nil && p.Locked == nil
}

// mirrored reports whether the patch touches a field the counterparty keeps.
func (p Patch) mirrored() bool {
	return p.Amount != nil || p.CurrencyCode != nil || p.Timestamp != nil ||
		p.ReceiptID != nil || p.Locked != nil
}

// UpdateInput targets one of the caller's debts.
type UpdateInput struct {
	ID    string
	Patch Patch
}

// UpdateResult reports the resulting lock state.
type UpdateResult struct {
	LockedTimestamp *time.Time `json:"locked_timestamp,omitempty"`
	// ReverseLockedTimestampUpdated is true when the counterparty's row was
	// written with the new state.
	ReverseLockedTimestampUpdated bool `json:"reverse_locked_timestamp_updated"`
}

// Update applies a patch to the caller's row and, when the counterparty
// auto-accepts and the result is locked, mirrors it onto their row. A
// counterparty row locked after the caller's result is left as it is.
func (e *Engine) Update(ctx context.Context, id ledger.Identity, in UpdateInput) (UpdateResult, error) {
	return e.update.Call(ctx, id, in)
}

type updatePlan struct {
	err  error
	cur  *ledger.Debt
	link ledger.UserLink
	// fresh is set for repeated ids, which must re-read inside their
	// transaction to see the earlier call's write.
	fresh   bool
	cand    *reconcile.Candidate
	candIdx int
}

func (e *Engine) resolveUpdate(ctx context.Context, id ledger.Identity, inputs []UpdateInput) ([]batch.Result[UpdateResult], error) {
	e.logGroup("update", id, len(inputs))
	q := e.store.Queries()

	keys := make([]store.DebtKey, len(inputs))
	for i, in := range inputs {
		keys[i] = store.DebtKey{ID: in.ID, OwnerAccountID: id.AccountID}
	}
	rows, err := q.ReadDebtsByKey(ctx, keys)
	if err != nil {
		return nil, e.failGroup("update", id, err)
	}

	userIDs := make([]string, 0, len(rows))
	var receipts []ledger.DedupKey
	for i, in := range inputs {
		cur, ok := rows[keys[i]]
		if !ok {
			continue
		}
		userIDs = append(userIDs, cur.UserID)
		if in.Patch.ReceiptID != nil {
			receipts = append(receipts, ledger.DedupKey{OwnerAccountID: id.AccountID, UserID: cur.UserID, ReceiptID: *in.Patch.ReceiptID})
		}
	}
	links, err := q.ReadUserLinks(ctx, id.AccountID, userIDs)
	if err != nil {
		return nil, e.failGroup("update", id, err)
	}
	taken, err := q.ReadDebtsByDedupKey(ctx, receipts)
	if err != nil {
		return nil, e.failGroup("update", id, err)
	}

	now := e.now()
	plans := make([]updatePlan, len(inputs))
	seen := make(map[string]bool)
	var cands []reconcile.Candidate
	for i, in := range inputs {
		p := &plans[i]
		if p.err = validatePatch(in.Patch); p.err != nil {
			continue
		}
		cur, ok := rows[keys[i]]
		if !ok {
			p.err = ledger.NotFound("Debt %q not found.", in.ID)
			continue
		}
		p.link = links[cur.UserID]
		if seen[in.ID] {
			p.fresh = true
			continue
		}
		seen[in.ID] = true
		p.cur = &cur

		if err := receiptConflict(cur, in.Patch, taken); err != nil {
			p.err = err
			continue
		}
		next := applyPatch(cur, in.Patch, now)
		if c := reverseCandidate(next, p.link, in.Patch); c != nil {
			p.cand = c
			p.candIdx = len(cands)
			cands = append(cands, *c)
		}
	}

	matches, err := reconcile.Match(ctx, q, cands)
	if err != nil {
		return nil, e.failGroup("update", id, err)
	}

	results := make([]batch.Result[UpdateResult], len(inputs))
	for i, p := range plans {
		if p.err != nil {
			results[i] = batch.Fail[UpdateResult](p.err)
			continue
		}
		in := inputs[i]
		var res UpdateResult
		err := e.inTx(ctx, "update", id, func(q *store.Queries) error {
			cur, cand := p.cur, p.cand
			var match []*ledger.Debt
			if p.fresh {
				d, err := q.ReadDebt(ctx, keys[i])
				if isNoRows(err) {
					return ledger.NotFound("Debt %q not found.", in.ID)
				}
				if err != nil {
					return err
				}
				if in.Patch.ReceiptID != nil {
					k := ledger.DedupKey{OwnerAccountID: id.AccountID, UserID: d.UserID, ReceiptID: *in.Patch.ReceiptID}
					taken, err := q.ReadDebtsByDedupKey(ctx, []ledger.DedupKey{k})
					if err != nil {
						return err
					}
					if err := receiptConflict(d, in.Patch, taken); err != nil {
						return err
					}
				}
				cur = &d
				cand = reverseCandidate(applyPatch(d, in.Patch, now), p.link, in.Patch)
				if cand != nil {
					if match, err = reconcile.Match(ctx, q, []reconcile.Candidate{*cand}); err != nil {
						return err
					}
				}
			} else if cand != nil {
				match = []*ledger.Debt{matches[p.candIdx]}
			}

			next := applyPatch(*cur, in.Patch, now)
			ok, err := q.UpdateDebt(ctx, next)
			if err != nil {
				return err
			}
			if !ok {
				return ledger.NotFound("Debt %q not found.", in.ID)
			}
			res.LockedTimestamp = ledger.CloneTime(next.LockedTimestamp)

			if cand != nil {
				out, err := reconcile.Apply(ctx, q, []reconcile.Candidate{*cand}, match, now)
				if err != nil {
					return err
				}
				res.ReverseLockedTimestampUpdated = !out.Outcomes[0].Stale
			}
			return nil
		})
		if err != nil {
			results[i] = batch.Fail[UpdateResult](err)
			continue
		}
		results[i] = batch.Ok(res)
	}
	return results, nil
}

func validatePatch(p Patch) error {
	if p.Empty() {
		return ledger.BadRequest("Expected at least one field to update.")
	}
	if p.Amount != nil && p.Amount.IsZero() {
		return ledger.BadRequest("Amount must not be zero.")
	}
	return nil
}

// receiptConflict rejects moving a row onto a receipt another row holds.
func receiptConflict(cur ledger.Debt, p Patch, taken map[ledger.DedupKey]ledger.Debt) error {
	if p.ReceiptID == nil {
		return nil
	}
	k := ledger.DedupKey{OwnerAccountID: cur.OwnerAccountID, UserID: cur.UserID, ReceiptID: *p.ReceiptID}
	if other, ok := taken[k]; ok && other.ID != cur.ID {
		return ledger.ReciprocalForbidden("A debt for receipt %q already exists.", k.ReceiptID)
	}
	return nil
}

// applyPatch returns cur with the patch applied, including the lock rule:
// an explicit Locked wins; otherwise a locked row is re-locked at now only
// when amount, timestamp or currency actually changed.
func applyPatch(cur ledger.Debt, p Patch, now time.Time) ledger.Debt {
	next := cur
	changed := false
	if p.Amount != nil {
		a := ledger.RoundAmount(*p.Amount)
		changed = changed || !a.Equal(cur.Amount)
		next.Amount = a
	}
	if p.CurrencyCode != nil {
		changed = changed || *p.CurrencyCode != cur.CurrencyCode
		next.CurrencyCode = *p.CurrencyCode
	}
	if p.Timestamp != nil {
		ts := p.Timestamp.UTC().Truncate(time.Millisecond)
		changed = changed || !ts.Equal(cur.Timestamp)
		next.Timestamp = ts
	}
	if p.Note != nil {
		next.Note = *p.Note
	}
	if p.ReceiptID != nil {
		next.ReceiptID = ledger.CloneString(p.ReceiptID)
	}

	lock := now
	switch {
	case p.Locked != nil && *p.Locked:
		next.LockedTimestamp = &lock
	case p.Locked != nil:
		next.LockedTimestamp = nil
	case cur.Locked() && changed:
		next.LockedTimestamp = &lock
	default:
		next.LockedTimestamp = ledger.CloneTime(cur.LockedTimestamp)
	}
	next.UpdatedAt = now
	return next
}

// reverseCandidate returns the counterparty's full mirrored state, or nil
// when the counterparty must not be written.
func reverseCandidate(next ledger.Debt, link ledger.UserLink, p Patch) *reconcile.Candidate {
	if !link.AutoAccepts() || !p.mirrored() || !next.Locked() {
		return nil
	}
	m := ledger.Mirror(next, *link.ConnectedAccountID, *link.TheirUserID)
	return &reconcile.Candidate{
		ID:              m.ID,
		OwnerAccountID:  m.OwnerAccountID,
		UserID:          m.UserID,
		ReceiptID:       m.ReceiptID,
		Amount:          m.Amount,
		CurrencyCode:    m.CurrencyCode,
		Timestamp:       m.Timestamp,
		LockedTimestamp: m.LockedTimestamp,
	}
}
