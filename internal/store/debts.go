package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/splitledger/internal/ledger"
)

// debtColumns lists debt columns in scanDebt order for the given alias.
func debtColumns(alias string) string {
	cols := []string{
		"id", "owner_account_id", "user_id", "amount", "currency_code", "timestamp",
		"locked_timestamp", "note", "receipt_id", "created_at", "updated_at",
	}
	for i, c := range cols {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

// DebtKey identifies one side of a debt.
type DebtKey struct {
	ID             string
	OwnerAccountID string
}

// Key returns the identity key of d.
func Key(d ledger.Debt) DebtKey {
	return DebtKey{ID: d.ID, OwnerAccountID: d.OwnerAccountID}
}

type scanner interface {
	Scan(dest ...any) error
}

// debtScan holds nullable destinations so the same scan serves LEFT JOINs.
type debtScan struct {
	id, owner, user, amount, currency sql.NullString
	timestamp, locked                 sql.NullInt64
	note, receipt                     sql.NullString
	createdAt, updatedAt              sql.NullInt64
}

func (s *debtScan) dest() []any {
	return []any{
		&s.id, &s.owner, &s.user, &s.amount, &s.currency, &s.timestamp,
		&s.locked, &s.note, &s.receipt, &s.createdAt, &s.updatedAt,
	}
}

// debt converts the scan to a Debt. ok is false for an all-NULL join side.
func (s *debtScan) debt() (d ledger.Debt, ok bool, err error) {
	if !s.id.Valid {
		return ledger.Debt{}, false, nil
	}
	amount, err := unmarshalAmount(s.amount.String)
	if err != nil {
		return ledger.Debt{}, false, err
	}
	return ledger.Debt{
		ID:              s.id.String,
		OwnerAccountID:  s.owner.String,
		UserID:          s.user.String,
		Amount:          amount,
		CurrencyCode:    s.currency.String,
		Timestamp:       fromMillis(s.timestamp.Int64),
		LockedTimestamp: fromNullMillis(s.locked),
		Note:            s.note.String,
		ReceiptID:       fromNullString(s.receipt),
		CreatedAt:       fromMillis(s.createdAt.Int64),
		UpdatedAt:       fromMillis(s.updatedAt.Int64),
	}, true, nil
}

func scanDebt(row scanner) (ledger.Debt, error) {
	var s debtScan
	if err := row.Scan(s.dest()...); err != nil {
		return ledger.Debt{}, err
	}
	d, _, err := s.debt()
	return d, err
}

func (q *Queries) queryDebts(ctx context.Context, query string, args ...any) ([]ledger.Debt, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query debts: %w", err)
	}
	defer rows.Close()

	var debts []ledger.Debt
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan debt: %w", err)
		}
		debts = append(debts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate debts: %w", err)
	}

	// Return empty slice instead of nil
	if debts == nil {
		debts = []ledger.Debt{}
	}
	return debts, nil
}

// ReadDebt retrieves one side of a debt.
// Returns sql.ErrNoRows if not found.
func (q *Queries) ReadDebt(ctx context.Context, key DebtKey) (ledger.Debt, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+debtColumns("d")+`
		FROM debts d
		WHERE d.id = ? AND d.owner_account_id = ?
	`, key.ID, key.OwnerAccountID)
	return scanDebt(row)
}

// ListDebts returns every debt owned by an account.
// Results are ordered by timestamp DESC, id DESC.
func (q *Queries) ListDebts(ctx context.Context, ownerAccountID string) ([]ledger.Debt, error) {
	return q.queryDebts(ctx, `
		SELECT `+debtColumns("d")+`
		FROM debts d
		WHERE d.owner_account_id = ?
		ORDER BY d.timestamp DESC, d.id DESC
	`, ownerAccountID)
}

// ReadAllDebts returns every row in the ledger ordered by id, then owner.
// Used for snapshots and invariant checks.
func (q *Queries) ReadAllDebts(ctx context.Context) ([]ledger.Debt, error) {
	return q.queryDebts(ctx, `
		SELECT `+debtColumns("d")+`
		FROM debts d
		ORDER BY d.id ASC, d.owner_account_id ASC
	`)
}

// ReadDebtsByID returns every side of the given ids, across all owners.
func (q *Queries) ReadDebtsByID(ctx context.Context, ids []string) ([]ledger.Debt, error) {
	if len(ids) == 0 {
		return []ledger.Debt{}, nil
	}
	return q.queryDebts(ctx, `
		SELECT `+debtColumns("d")+`
		FROM debts d
		WHERE d.id IN (`+placeholders(len(ids))+`)
		ORDER BY d.id ASC, d.owner_account_id ASC
	`, stringArgs(ids)...)
}

// ReadDebtsByKey returns the rows matching any of keys, keyed by identity.
func (q *Queries) ReadDebtsByKey(ctx context.Context, keys []DebtKey) (map[DebtKey]ledger.Debt, error) {
	out := make(map[DebtKey]ledger.Debt, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	conds := make([]string, len(keys))
	args := make([]any, 0, 2*len(keys))
	for i, k := range keys {
		conds[i] = "(d.id = ? AND d.owner_account_id = ?)"
		args = append(args, k.ID, k.OwnerAccountID)
	}
	debts, err := q.queryDebts(ctx, `
		SELECT `+debtColumns("d")+`
		FROM debts d
		WHERE `+strings.Join(conds, " OR "), args...)
	if err != nil {
		return nil, err
	}
	for _, d := range debts {
		out[Key(d)] = d
	}
	return out, nil
}

// ReadDebtsByDedupKey returns the rows matching any receipt dedup tuple.
func (q *Queries) ReadDebtsByDedupKey(ctx context.Context, keys []ledger.DedupKey) (map[ledger.DedupKey]ledger.Debt, error) {
	out := make(map[ledger.DedupKey]ledger.Debt, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	conds := make([]string, len(keys))
	args := make([]any, 0, 3*len(keys))
	for i, k := range keys {
		conds[i] = "(d.owner_account_id = ? AND d.user_id = ? AND d.receipt_id = ?)"
		args = append(args, k.OwnerAccountID, k.UserID, k.ReceiptID)
	}
	debts, err := q.queryDebts(ctx, `
		SELECT `+debtColumns("d")+`
		FROM debts d
		WHERE `+strings.Join(conds, " OR "), args...)
	if err != nil {
		return nil, err
	}
	for _, d := range debts {
		if k, ok := d.DedupKey(); ok {
			out[k] = d
		}
	}
	return out, nil
}

// InsertDebts inserts rows in a single statement.
func (q *Queries) InsertDebts(ctx context.Context, debts []ledger.Debt) error {
	if len(debts) == 0 {
		return nil
	}

	values := make([]string, len(debts))
	args := make([]any, 0, 11*len(debts))
	for i, d := range debts {
		values[i] = "(" + placeholders(11) + ")"
		args = append(args,
			d.ID,
			d.OwnerAccountID,
			d.UserID,
			marshalAmount(d.Amount),
			d.CurrencyCode,
			toMillis(d.Timestamp),
			nullMillis(d.LockedTimestamp),
			normalizeNote(d.Note),
			nullString(d.ReceiptID),
			toMillis(d.CreatedAt),
			toMillis(d.UpdatedAt),
		)
	}

	_, err := q.db.ExecContext(ctx, `
		INSERT INTO debts
		(id, owner_account_id, user_id, amount, currency_code, timestamp,
		 locked_timestamp, note, receipt_id, created_at, updated_at)
		VALUES `+strings.Join(values, ", "), args...)
	if err != nil {
		return fmt.Errorf("insert debts: %w", err)
	}
	return nil
}

// UpdateDebt overwrites the mutable columns of one side of a debt.
// user_id and created_at never change. Returns whether a row matched.
func (q *Queries) UpdateDebt(ctx context.Context, d ledger.Debt) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE debts
		SET amount = ?, currency_code = ?, timestamp = ?, locked_timestamp = ?,
		    note = ?, receipt_id = ?, updated_at = ?
		WHERE id = ? AND owner_account_id = ?
	`,
		marshalAmount(d.Amount),
		d.CurrencyCode,
		toMillis(d.Timestamp),
		nullMillis(d.LockedTimestamp),
		normalizeNote(d.Note),
		nullString(d.ReceiptID),
		toMillis(d.UpdatedAt),
		d.ID,
		d.OwnerAccountID,
	)
	if err != nil {
		return false, fmt.Errorf("update debt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update debt: rows affected: %w", err)
	}
	return n > 0, nil
}

// DeleteDebt deletes the owner's side of a debt. With cascade the statement
// is widened to every row sharing the id, which removes the mirror in the
// same round trip. Returns the number of rows deleted.
func (q *Queries) DeleteDebt(ctx context.Context, key DebtKey, cascade bool) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if cascade {
		res, err = q.db.ExecContext(ctx, `DELETE FROM debts WHERE id = ?`, key.ID)
	} else {
		res, err = q.db.ExecContext(ctx, `DELETE FROM debts WHERE id = ? AND owner_account_id = ?`, key.ID, key.OwnerAccountID)
	}
	if err != nil {
		return 0, fmt.Errorf("delete debt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete debt: rows affected: %w", err)
	}
	return n, nil
}
