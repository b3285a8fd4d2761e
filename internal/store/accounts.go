package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/splitledger/internal/ledger"
)

// CreateAccount inserts an account holder.
func (q *Queries) CreateAccount(ctx context.Context, id, email string, now time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO accounts (id, email, created_at)
		VALUES (?, ?, ?)
	`, id, email, toMillis(now))
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// ReadAccountEmail returns the email of an account.
// Returns sql.ErrNoRows if not found.
func (q *Queries) ReadAccountEmail(ctx context.Context, id string) (string, error) {
	var email string
	err := q.db.QueryRowContext(ctx, `SELECT email FROM accounts WHERE id = ?`, id).Scan(&email)
	if err != nil {
		return "", err
	}
	return email, nil
}

// SetAccountSettings upserts the settings row of an account.
func (q *Queries) SetAccountSettings(ctx context.Context, s ledger.AccountSettings) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO account_settings (account_id, manual_accept_debts)
		VALUES (?, ?)
		ON CONFLICT(account_id) DO UPDATE SET manual_accept_debts = excluded.manual_accept_debts
	`, s.AccountID, s.ManualAcceptDebts)
	if err != nil {
		return fmt.Errorf("set account settings: %w", err)
	}
	return nil
}

// ReadAccountSettings returns the settings of an account.
// An account without a settings row auto-accepts.
func (q *Queries) ReadAccountSettings(ctx context.Context, accountID string) (ledger.AccountSettings, error) {
	settings := ledger.AccountSettings{AccountID: accountID}
	err := q.db.QueryRowContext(ctx, `
		SELECT manual_accept_debts FROM account_settings WHERE account_id = ?
	`, accountID).Scan(&settings.ManualAcceptDebts)
	if errors.Is(err, sql.ErrNoRows) {
		return settings, nil
	}
	if err != nil {
		return ledger.AccountSettings{}, fmt.Errorf("read account settings: %w", err)
	}
	return settings, nil
}

// CreateUser inserts a user reference.
func (q *Queries) CreateUser(ctx context.Context, u ledger.User, now time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO users (id, owner_account_id, name, connected_account_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, u.ID, u.OwnerAccountID, u.Name, nullString(u.ConnectedAccountID), toMillis(now))
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// ConnectUser points an existing user at another account.
// Returns sql.ErrNoRows if the owner has no such user.
func (q *Queries) ConnectUser(ctx context.Context, ownerAccountID, userID, connectedAccountID string) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE users SET connected_account_id = ?
		WHERE id = ? AND owner_account_id = ?
	`, connectedAccountID, userID, ownerAccountID)
	if err != nil {
		return fmt.Errorf("connect user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("connect user: rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// FindUserByConnection returns the owner's user connected to another account.
// ok is false when no such user exists.
func (q *Queries) FindUserByConnection(ctx context.Context, ownerAccountID, connectedAccountID string) (u ledger.User, ok bool, err error) {
	var connected sql.NullString
	err = q.db.QueryRowContext(ctx, `
		SELECT id, owner_account_id, name, connected_account_id
		FROM users
		WHERE owner_account_id = ? AND connected_account_id = ?
	`, ownerAccountID, connectedAccountID).Scan(&u.ID, &u.OwnerAccountID, &u.Name, &connected)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.User{}, false, nil
	}
	if err != nil {
		return ledger.User{}, false, fmt.Errorf("find user by connection: %w", err)
	}
	u.ConnectedAccountID = fromNullString(connected)
	return u, true, nil
}

// ReadUserLinks returns the owner's users among ids, keyed by id, together
// with the counterparty's linking user and manual-accept setting.
// Ids the owner does not own are absent from the result.
func (q *Queries) ReadUserLinks(ctx context.Context, ownerAccountID string, ids []string) (map[string]ledger.UserLink, error) {
	links := make(map[string]ledger.UserLink, len(ids))
	if len(ids) == 0 {
		return links, nil
	}

	args := append([]any{ownerAccountID}, stringArgs(ids)...)
	rows, err := q.db.QueryContext(ctx, `
		SELECT u.id, u.owner_account_id, u.name, u.connected_account_id,
		       ru.id, COALESCE(s.manual_accept_debts, 0)
		FROM users u
		LEFT JOIN users ru
		       ON ru.owner_account_id = u.connected_account_id
		      AND ru.connected_account_id = u.owner_account_id
		LEFT JOIN account_settings s ON s.account_id = u.connected_account_id
		WHERE u.owner_account_id = ? AND u.id IN (`+placeholders(len(ids))+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query user links: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			link      ledger.UserLink
			connected sql.NullString
			theirUser sql.NullString
		)
		if err := rows.Scan(&link.ID, &link.OwnerAccountID, &link.Name, &connected, &theirUser, &link.ManualAcceptDebts); err != nil {
			return nil, fmt.Errorf("scan user link: %w", err)
		}
		link.ConnectedAccountID = fromNullString(connected)
		link.TheirUserID = fromNullString(theirUser)
		links[link.ID] = link
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user links: %w", err)
	}
	return links, nil
}
