package engine

import (
	"context"
	"time"

	"github.com/roach88/splitledger/internal/ledger"
	"github.com/roach88/splitledger/internal/store"
)

// AccountInput describes a new account holder. An empty ID is generated.
type AccountInput struct {
	ID    string
	Email string
}

// Account is a created account with its self-reference user.
type Account struct {
	Identity   ledger.Identity `json:"identity"`
	SelfUserID string          `json:"self_user_id"`
}

// CreateAccount creates an account and its self-reference user.
func (e *Engine) CreateAccount(ctx context.Context, in AccountInput) (Account, error) {
	if in.Email == "" {
		return Account{}, ledger.BadRequest("Email is required.")
	}
	accountID := in.ID
	if accountID == "" {
		accountID = e.ids.Generate()
	}
	acc := Account{
		Identity:   ledger.Identity{AccountID: accountID, Email: in.Email},
		SelfUserID: e.ids.Generate(),
	}
	now := e.now()

	err := e.inTx(ctx, "create_account", acc.Identity, func(q *store.Queries) error {
		if err := q.CreateAccount(ctx, accountID, in.Email, now); err != nil {
			if store.IsUniqueViolation(err) {
				return ledger.Forbidden("Account %q or email %q already exists.", accountID, in.Email)
			}
			return err
		}
		return q.CreateUser(ctx, ledger.User{
			ID:                 acc.SelfUserID,
			OwnerAccountID:     accountID,
			Name:               in.Email,
			ConnectedAccountID: &accountID,
		}, now)
	})
	if err != nil {
		return Account{}, err
	}
	return acc, nil
}

// Identity resolves an account id to the identity used by every operation.
func (e *Engine) Identity(ctx context.Context, accountID string) (ledger.Identity, error) {
	email, err := e.store.Queries().ReadAccountEmail(ctx, accountID)
	if isNoRows(err) {
		return ledger.Identity{}, ledger.NotFound("Account %q not found.", accountID)
	}
	if err != nil {
		return ledger.Identity{}, e.internal("identity", ledger.Identity{AccountID: accountID}, err)
	}
	return ledger.Identity{AccountID: accountID, Email: email}, nil
}

// UserInput describes a contact owned by the caller. An empty ID is
// generated.
type UserInput struct {
	ID   string
	Name string
}

// CreateUser adds an unconnected contact to the caller's account.
func (e *Engine) CreateUser(ctx context.Context, id ledger.Identity, in UserInput) (ledger.User, error) {
	u := ledger.User{ID: in.ID, OwnerAccountID: id.AccountID, Name: in.Name}
	if u.ID == "" {
		u.ID = e.ids.Generate()
	}
	err := e.inTx(ctx, "create_user", id, func(q *store.Queries) error {
		if err := q.CreateUser(ctx, u, e.now()); err != nil {
			if store.IsUniqueViolation(err) {
				return ledger.Forbidden("User %q already exists.", u.ID)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return ledger.User{}, err
	}
	return u, nil
}

// ConnectUser points one of the caller's contacts at another account. The
// pair syncs once the other account connects a contact back.
func (e *Engine) ConnectUser(ctx context.Context, id ledger.Identity, userID, accountID string) error {
	if accountID == id.AccountID {
		return ledger.Forbidden("Cannot connect a user to yourself.")
	}
	return e.inTx(ctx, "connect_user", id, func(q *store.Queries) error {
		if _, err := q.ReadAccountEmail(ctx, accountID); isNoRows(err) {
			return ledger.NotFound("Account %q not found.", accountID)
		} else if err != nil {
			return err
		}
		err := q.ConnectUser(ctx, id.AccountID, userID, accountID)
		switch {
		case isNoRows(err):
			return ledger.NotFound("User %q not found.", userID)
		case store.IsUniqueViolation(err):
			return ledger.Forbidden("Another user is already connected to %q.", accountID)
		}
		return err
	})
}

// Connection is the user pair linking two accounts.
type Connection struct {
	AUserID string `json:"a_user_id"`
	BUserID string `json:"b_user_id"`
}

// Connect links two accounts both ways, creating a contact on either side
// when none points at the other account yet.
func (e *Engine) Connect(ctx context.Context, a, b ledger.Identity) (Connection, error) {
	if a.AccountID == b.AccountID {
		return Connection{}, ledger.Forbidden("Cannot connect a user to yourself.")
	}
	now := e.now()
	var conn Connection
	err := e.inTx(ctx, "connect", a, func(q *store.Queries) error {
		var err error
		if conn.AUserID, err = e.ensureContact(ctx, q, a, b, now); err != nil {
			return err
		}
		conn.BUserID, err = e.ensureContact(ctx, q, b, a, now)
		return err
	})
	if err != nil {
		return Connection{}, err
	}
	return conn, nil
}

func (e *Engine) ensureContact(ctx context.Context, q *store.Queries, owner, other ledger.Identity, now time.Time) (string, error) {
	u, ok, err := q.FindUserByConnection(ctx, owner.AccountID, other.AccountID)
	if err != nil || ok {
		return u.ID, err
	}
	u = ledger.User{
		ID:                 e.ids.Generate(),
		OwnerAccountID:     owner.AccountID,
		Name:               other.Email,
		ConnectedAccountID: &other.AccountID,
	}
	return u.ID, q.CreateUser(ctx, u, now)
}

// SetManualAcceptDebts sets whether the caller must accept every mirrored
// row by hand.
func (e *Engine) SetManualAcceptDebts(ctx context.Context, id ledger.Identity, manual bool) error {
	return e.inTx(ctx, "set_manual_accept_debts", id, func(q *store.Queries) error {
		return q.SetAccountSettings(ctx, ledger.AccountSettings{AccountID: id.AccountID, ManualAcceptDebts: manual})
	})
}

// Settings returns the caller's settings.
func (e *Engine) Settings(ctx context.Context, id ledger.Identity) (ledger.AccountSettings, error) {
	s, err := e.store.Queries().ReadAccountSettings(ctx, id.AccountID)
	if err != nil {
		return ledger.AccountSettings{}, e.internal("settings", id, err)
	}
	return s, nil
}

// ListDebts returns the caller's rows ordered by timestamp DESC, id DESC.
func (e *Engine) ListDebts(ctx context.Context, id ledger.Identity) ([]ledger.Debt, error) {
	debts, err := e.store.Queries().ListDebts(ctx, id.AccountID)
	if err != nil {
		return nil, e.internal("list_debts", id, err)
	}
	return debts, nil
}
