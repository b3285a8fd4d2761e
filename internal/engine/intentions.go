package engine

import (
	"context"
	"time"

	"github.com/roach88/splitledger/internal/batch"
	"github.com/roach88/splitledger/internal/ledger"
	"github.com/roach88/splitledger/internal/store"
)

// AcceptResult reports when the caller's mirror row was created.
type AcceptResult struct {
	CreatedAt time.Time `json:"created_at"`
}

// AcceptedDebt is one row written by AcceptAllIntentions.
type AcceptedDebt struct {
	ID        string    `json:"id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GetIntentions returns every counterparty row fresher than the caller's
// mirror, in the caller's frame, ordered by lockedTimestamp DESC, id DESC.
func (e *Engine) GetIntentions(ctx context.Context, id ledger.Identity) ([]ledger.Intention, error) {
	return e.intentions.Call(ctx, id, struct{}{})
}

// AcceptIntention copies the counterparty's row with debtID onto the
// caller's side.
//
// Fails NotFound when the row is absent, owned by the caller or not visible
// through a connected user pair. Fails reciprocal-forbidden when the row is
// unlocked or the caller's row is at least as fresh.
func (e *Engine) AcceptIntention(ctx context.Context, id ledger.Identity, debtID string) (AcceptResult, error) {
	return e.accept.Call(ctx, id, debtID)
}

// AcceptAllIntentions accepts every intention of the caller in one
// transaction. Fails BadRequest when there is nothing to accept.
func (e *Engine) AcceptAllIntentions(ctx context.Context, id ledger.Identity) ([]AcceptedDebt, error) {
	now := e.now()
	var accepted []AcceptedDebt
	err := e.inTx(ctx, "accept_all_intentions", id, func(q *store.Queries) error {
		cps, err := q.ReadCounterparts(ctx, id.AccountID, store.CounterpartFilter{LockedOnly: true})
		if err != nil {
			return err
		}

		var inserts []ledger.Debt
		var updates []ledger.Debt
		for _, cp := range cps {
			if !isIntention(cp) {
				continue
			}
			d := acceptedRow(cp, id.AccountID, now)
			if cp.Mine == nil {
				inserts = append(inserts, d)
			} else {
				updates = append(updates, d)
			}
			accepted = append(accepted, AcceptedDebt{ID: d.ID, UpdatedAt: now})
		}
		if len(accepted) == 0 {
			return ledger.BadRequest("Expected to have at least one debt to accept.")
		}

		if err := q.InsertDebts(ctx, inserts); err != nil {
			if store.IsUniqueViolation(err) {
				return ledger.ReciprocalForbidden("A debt for one of these receipts already exists on your side.")
			}
			return err
		}
		for _, d := range updates {
			if _, err := q.UpdateDebt(ctx, d); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Debug("accepted all intentions",
		"account", id.AccountID,
		"count", len(accepted),
	)
	return accepted, nil
}

func (e *Engine) resolveIntentions(ctx context.Context, id ledger.Identity, inputs []struct{}) ([]batch.Result[[]ledger.Intention], error) {
	e.logGroup("get_intentions", id, len(inputs))

	cps, err := e.store.Queries().ReadCounterparts(ctx, id.AccountID, store.CounterpartFilter{LockedOnly: true})
	if err != nil {
		return nil, e.failGroup("get_intentions", id, err)
	}

	intentions := []ledger.Intention{}
	for _, cp := range cps {
		if !isIntention(cp) {
			continue
		}
		intentions = append(intentions, toIntention(cp))
	}

	results := make([]batch.Result[[]ledger.Intention], len(inputs))
	for i := range inputs {
		out := make([]ledger.Intention, len(intentions))
		copy(out, intentions)
		results[i] = batch.Ok(out)
	}
	return results, nil
}

func (e *Engine) resolveAccept(ctx context.Context, id ledger.Identity, debtIDs []string) ([]batch.Result[AcceptResult], error) {
	e.logGroup("accept_intention", id, len(debtIDs))

	cps, err := e.store.Queries().ReadCounterparts(ctx, id.AccountID, store.CounterpartFilter{IDs: uniq(debtIDs)})
	if err != nil {
		return nil, e.failGroup("accept_intention", id, err)
	}
	byID := make(map[string]store.Counterpart, len(cps))
	for _, cp := range cps {
		if _, ok := byID[cp.Theirs.ID]; !ok {
			byID[cp.Theirs.ID] = cp
		}
	}

	now := e.now()
	seen := make(map[string]bool)
	results := make([]batch.Result[AcceptResult], len(debtIDs))
	for i, debtID := range debtIDs {
		cp, ok := byID[debtID]
		fresh := seen[debtID]
		seen[debtID] = true

		var res AcceptResult
		err := e.inTx(ctx, "accept_intention", id, func(q *store.Queries) error {
			if fresh {
				// An earlier call in this group may have accepted the same id.
				again, err := q.ReadCounterparts(ctx, id.AccountID, store.CounterpartFilter{IDs: []string{debtID}})
				if err != nil {
					return err
				}
				ok = len(again) > 0
				if ok {
					cp = again[0]
				}
			}
			if !ok || cp.MyUserID == nil {
				return ledger.NotFound("Debt %q not found.", debtID)
			}

			c := ledger.Compare(cp.Mine, &cp.Theirs)
			switch {
			case !cp.Theirs.Locked():
				return ledger.ReciprocalForbidden("Debt %q has no locked state to accept.", debtID)
			case c.Blocked:
				return ledger.ReciprocalForbidden("Debt %q is already up to date on your side; the other side should accept instead.", debtID)
			}

			d := acceptedRow(cp, id.AccountID, now)
			if cp.Mine == nil {
				res.CreatedAt = d.CreatedAt
				if err := q.InsertDebts(ctx, []ledger.Debt{d}); err != nil {
					if store.IsUniqueViolation(err) {
						return receiptTaken(d)
					}
					return err
				}
				return nil
			}
			res.CreatedAt = cp.Mine.CreatedAt
			updated, err := q.UpdateDebt(ctx, d)
			if err != nil {
				return err
			}
			if !updated {
				return ledger.Internal(nil, "mirror of debt %s vanished during accept", debtID)
			}
			return nil
		})
		if err != nil {
			results[i] = batch.Fail[AcceptResult](err)
			continue
		}
		results[i] = batch.Ok(res)
	}
	return results, nil
}

// receiptTaken reports an accepted row whose receipt the caller already uses
// on another row.
func receiptTaken(d ledger.Debt) error {
	if d.ReceiptID != nil {
		return ledger.ReciprocalForbidden("A debt for receipt %q already exists.", *d.ReceiptID)
	}
	return ledger.ReciprocalForbidden("Debt %q already exists.", d.ID)
}

// isIntention reports a counterparty row the caller can accept.
func isIntention(cp store.Counterpart) bool {
	return cp.MyUserID != nil && ledger.IsIntentionFrom(&cp.Theirs, cp.Mine)
}

func toIntention(cp store.Counterpart) ledger.Intention {
	t := cp.Theirs
	in := ledger.Intention{
		ID:              t.ID,
		UserID:          *cp.MyUserID,
		Amount:          t.Amount.Neg(),
		CurrencyCode:    t.CurrencyCode,
		Timestamp:       t.Timestamp,
		LockedTimestamp: *t.LockedTimestamp,
		ReceiptID:       ledger.CloneString(t.ReceiptID),
	}
	if m := cp.Mine; m != nil {
		in.Current = &ledger.MirrorState{
			Amount:          m.Amount,
			CurrencyCode:    m.CurrencyCode,
			Timestamp:       m.Timestamp,
			LockedTimestamp: ledger.CloneTime(m.LockedTimestamp),
		}
	}
	return in
}

// acceptedRow is the caller's row after taking over the counterparty's
// state. An existing row keeps its note, receipt and createdAt.
func acceptedRow(cp store.Counterpart, accountID string, now time.Time) ledger.Debt {
	if cp.Mine == nil {
		d := ledger.Mirror(cp.Theirs, accountID, *cp.MyUserID)
		d.CreatedAt = now
		d.UpdatedAt = now
		return d
	}
	d := *cp.Mine
	d.Amount = cp.Theirs.Amount.Neg()
	d.CurrencyCode = cp.Theirs.CurrencyCode
	d.Timestamp = cp.Theirs.Timestamp
	d.LockedTimestamp = ledger.CloneTime(cp.Theirs.LockedTimestamp)
	d.UpdatedAt = now
	return d
}

func uniq(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
