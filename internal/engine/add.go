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

// AddInput is one debt to record against a user of the caller.
type AddInput struct {
	UserID       string
	Amount       decimal.Decimal
	CurrencyCode string
	Timestamp    time.Time
	Note         string
	ReceiptID    *string
	// Unlocked records a draft that is not yet eligible to sync.
	Unlocked bool
}

// AddResult reports the stored row.
type AddResult struct {
	ID        string    `json:"id"`
	UpdatedAt time.Time `json:"updated_at"`
	// ReverseAccepted is true when the counterparty's mirror was written.
	ReverseAccepted bool `json:"reverse_accepted"`
}

// Add records a debt for the caller and, when the counterparty auto-accepts,
// writes the counterparty's mirrored row in the same transaction.
func (e *Engine) Add(ctx context.Context, id ledger.Identity, in AddInput) (AddResult, error) {
	return e.add.Call(ctx, id, in)
}

// addPlan is the read-phase decision for one input.
type addPlan struct {
	err  error
	debt ledger.Debt
	// cand is the counterparty mirror to reconcile; candIdx indexes matches.
	cand    *reconcile.Candidate
	candIdx int
}

func (e *Engine) resolveAdd(ctx context.Context, id ledger.Identity, inputs []AddInput) ([]batch.Result[AddResult], error) {
	e.logGroup("add", id, len(inputs))
	q := e.store.Queries()

	userIDs := make([]string, 0, len(inputs))
	var dedup []ledger.DedupKey
	for _, in := range inputs {
		userIDs = append(userIDs, in.UserID)
		if in.ReceiptID != nil {
			dedup = append(dedup, ledger.DedupKey{OwnerAccountID: id.AccountID, UserID: in.UserID, ReceiptID: *in.ReceiptID})
		}
	}
	links, err := q.ReadUserLinks(ctx, id.AccountID, userIDs)
	if err != nil {
		return nil, e.failGroup("add", id, err)
	}
	existing, err := q.ReadDebtsByDedupKey(ctx, dedup)
	if err != nil {
		return nil, e.failGroup("add", id, err)
	}

	now := e.now()
	plans := make([]addPlan, len(inputs))
	claimed := make(map[ledger.DedupKey]bool)
	var cands []reconcile.Candidate
	for i, in := range inputs {
		link, ok := links[in.UserID]
		switch {
		case !ok:
			plans[i].err = ledger.NotFound("User %q not found.", in.UserID)
			continue
		case link.IsSelf():
			plans[i].err = ledger.Forbidden("Cannot add a debt to yourself.")
			continue
		case in.Amount.IsZero():
			plans[i].err = ledger.BadRequest("Amount must not be zero.")
			continue
		}

		d := ledger.Debt{
			ID:             e.ids.Generate(),
			OwnerAccountID: id.AccountID,
			UserID:         in.UserID,
			Amount:         ledger.RoundAmount(in.Amount),
			CurrencyCode:   in.CurrencyCode,
			Timestamp:      in.Timestamp.UTC().Truncate(time.Millisecond),
			Note:           in.Note,
			ReceiptID:      ledger.CloneString(in.ReceiptID),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if !in.Unlocked {
			lock := now
			d.LockedTimestamp = &lock
		}

		if k, ok := d.DedupKey(); ok {
			if _, dup := existing[k]; dup || claimed[k] {
				plans[i].err = ledger.ReciprocalForbidden("A debt for receipt %q already exists.", k.ReceiptID)
				continue
			}
			claimed[k] = true
		}
		plans[i].debt = d

		if link.AutoAccepts() && d.Locked() {
			m := ledger.Mirror(d, *link.ConnectedAccountID, *link.TheirUserID)
			plans[i].cand = &reconcile.Candidate{
				ID:              m.ID,
				OwnerAccountID:  m.OwnerAccountID,
				UserID:          m.UserID,
				ReceiptID:       m.ReceiptID,
				Amount:          m.Amount,
				CurrencyCode:    m.CurrencyCode,
				Timestamp:       m.Timestamp,
				LockedTimestamp: m.LockedTimestamp,
				IsNew:           true,
			}
			plans[i].candIdx = len(cands)
			cands = append(cands, *plans[i].cand)
		}
	}

	matches, err := reconcile.Match(ctx, q, cands)
	if err != nil {
		return nil, e.failGroup("add", id, err)
	}

	results := make([]batch.Result[AddResult], len(inputs))
	for i, p := range plans {
		if p.err != nil {
			results[i] = batch.Fail[AddResult](p.err)
			continue
		}
		res, err := e.applyAdd(ctx, id, p, matches, now)
		if err != nil {
			results[i] = batch.Fail[AddResult](err)
			continue
		}
		results[i] = batch.Ok(res)
	}
	return results, nil
}

func (e *Engine) applyAdd(ctx context.Context, id ledger.Identity, p addPlan, matches []*ledger.Debt, now time.Time) (AddResult, error) {
	d := p.debt
	res := AddResult{UpdatedAt: now}
	err := e.inTx(ctx, "add", id, func(q *store.Queries) error {
		if p.cand != nil {
			out, err := reconcile.Apply(ctx, q, []reconcile.Candidate{*p.cand}, []*ledger.Debt{matches[p.candIdx]}, now)
			if err != nil {
				return err
			}
			if m := out.Outcomes[0].MatchedID; m != nil {
				d.ID = *m
			}
			res.ReverseAccepted = true
		}
		if err := q.InsertDebts(ctx, []ledger.Debt{d}); err != nil {
			if store.IsUniqueViolation(err) {
				return ledger.ReciprocalForbidden("Debt %q already exists.", d.ID)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return AddResult{}, err
	}
	res.ID = d.ID
	return res, nil
}
