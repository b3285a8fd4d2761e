package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/splitledger/internal/ledger"
)

// Counterpart is a counterparty row visible to an account, joined with the
// account's own side of the same id.
type Counterpart struct {
	Theirs ledger.Debt
	// Mine is the viewer's row with the same id, if any.
	Mine *ledger.Debt
	// MyUserID is the viewer's user connected to the counterparty. Nil when
	// the viewer has no user pointing back.
	MyUserID *string
}

// CounterpartFilter narrows ReadCounterparts.
type CounterpartFilter struct {
	// IDs restricts the result to these debt ids. Empty means all.
	IDs []string
	// LockedOnly drops counterparty rows without a lock.
	LockedOnly bool
}

// ReadCounterparts returns counterparty rows visible to accountID: rows owned
// by another account through a user connected to accountID.
// Results are ordered by locked_timestamp DESC, id DESC.
func (q *Queries) ReadCounterparts(ctx context.Context, accountID string, f CounterpartFilter) ([]Counterpart, error) {
	var (
		where = []string{"t.owner_account_id <> ?"}
		args  = []any{accountID, accountID, accountID, accountID}
	)
	if f.LockedOnly {
		where = append(where, "t.locked_timestamp IS NOT NULL")
	}
	if len(f.IDs) > 0 {
		where = append(where, "t.id IN ("+placeholders(len(f.IDs))+")")
		args = append(args, stringArgs(f.IDs)...)
	}

	rows, err := q.db.QueryContext(ctx, `
		SELECT `+debtColumns("t")+`, mu.id, `+debtColumns("m")+`
		FROM debts t
		JOIN users tu
		     ON tu.id = t.user_id
		    AND tu.owner_account_id = t.owner_account_id
		    AND tu.connected_account_id = ?
		LEFT JOIN users mu
		     ON mu.owner_account_id = ?
		    AND mu.connected_account_id = t.owner_account_id
		LEFT JOIN debts m
		     ON m.id = t.id
		    AND m.owner_account_id = ?
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY t.locked_timestamp DESC, t.id DESC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query counterparts: %w", err)
	}
	defer rows.Close()

	var out []Counterpart
	for rows.Next() {
		var (
			theirs, mine debtScan
			myUser       sql.NullString
		)
		dest := append(theirs.dest(), &myUser)
		dest = append(dest, mine.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan counterpart: %w", err)
		}

		var cp Counterpart
		if cp.Theirs, _, err = theirs.debt(); err != nil {
			return nil, err
		}
		m, ok, err := mine.debt()
		if err != nil {
			return nil, err
		}
		if ok {
			cp.Mine = &m
		}
		cp.MyUserID = fromNullString(myUser)
		out = append(out, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counterparts: %w", err)
	}

	if out == nil {
		out = []Counterpart{}
	}
	return out, nil
}
