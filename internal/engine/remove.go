package engine

import (
	"context"
	"database/sql"
	"errors"

	"github.com/roach88/splitledger/internal/batch"
	"github.com/roach88/splitledger/internal/ledger"
	"github.com/roach88/splitledger/internal/store"
)

// RemoveResult reports whether the counterparty's row went too.
type RemoveResult struct {
	ReverseRemoved bool `json:"reverse_removed"`
}

// Remove deletes the caller's row. When the counterparty auto-accepts at
// delete time, the delete is widened to every row sharing the id.
func (e *Engine) Remove(ctx context.Context, id ledger.Identity, debtID string) (RemoveResult, error) {
	return e.remove.Call(ctx, id, debtID)
}

func (e *Engine) resolveRemove(ctx context.Context, id ledger.Identity, debtIDs []string) ([]batch.Result[RemoveResult], error) {
	e.logGroup("remove", id, len(debtIDs))
	q := e.store.Queries()

	keys := make([]store.DebtKey, len(debtIDs))
	for i, debtID := range debtIDs {
		keys[i] = store.DebtKey{ID: debtID, OwnerAccountID: id.AccountID}
	}
	rows, err := q.ReadDebtsByKey(ctx, keys)
	if err != nil {
		return nil, e.failGroup("remove", id, err)
	}
	userIDs := make([]string, 0, len(rows))
	for _, d := range rows {
		userIDs = append(userIDs, d.UserID)
	}
	links, err := q.ReadUserLinks(ctx, id.AccountID, userIDs)
	if err != nil {
		return nil, e.failGroup("remove", id, err)
	}

	results := make([]batch.Result[RemoveResult], len(debtIDs))
	for i, k := range keys {
		cur, ok := rows[k]
		if !ok {
			results[i] = batch.Fail[RemoveResult](ledger.NotFound("Debt %q not found.", k.ID))
			continue
		}

		var res RemoveResult
		err := e.inTx(ctx, "remove", id, func(q *store.Queries) error {
			// Cascading by id alone relies on the mirror invariant: the only
			// other row with this id is the counterparty's.
			n, err := q.DeleteDebt(ctx, k, links[cur.UserID].AutoAccepts())
			if err != nil {
				return err
			}
			if n == 0 {
				return ledger.NotFound("Debt %q not found.", k.ID)
			}
			res.ReverseRemoved = n > 1
			return nil
		})
		if err != nil {
			results[i] = batch.Fail[RemoveResult](err)
			continue
		}
		results[i] = batch.Ok(res)
	}
	return results, nil
}

// isNoRows reports a row that is absent from the store.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
