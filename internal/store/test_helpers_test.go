package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/splitledger/internal/ledger"
)

var testNow = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

// createTestStore creates a new in-memory store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createFileStore creates a file-backed store, needed where WAL matters.
func createFileStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seedPair creates alice and bob with users pointing at each other:
// "alice-bob" owned by alice, "bob-alice" owned by bob.
func seedPair(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	q := s.Queries()
	alice, bob := "alice", "bob"

	for _, id := range []string{alice, bob} {
		if err := q.CreateAccount(ctx, id, id+"@example.com", testNow); err != nil {
			t.Fatalf("CreateAccount(%s) failed: %v", id, err)
		}
	}
	users := []ledger.User{
		{ID: "alice-bob", OwnerAccountID: alice, Name: "Bob", ConnectedAccountID: &bob},
		{ID: "bob-alice", OwnerAccountID: bob, Name: "Alice", ConnectedAccountID: &alice},
	}
	for _, u := range users {
		if err := q.CreateUser(ctx, u, testNow); err != nil {
			t.Fatalf("CreateUser(%s) failed: %v", u.ID, err)
		}
	}
}

// createTestDebt creates a debt with minimal required fields.
func createTestDebt(id, owner, user, amount string, locked *time.Time) ledger.Debt {
	return ledger.Debt{
		ID:              id,
		OwnerAccountID:  owner,
		UserID:          user,
		Amount:          decimal.RequireFromString(amount),
		CurrencyCode:    "USD",
		Timestamp:       testNow.Add(-24 * time.Hour),
		LockedTimestamp: locked,
		CreatedAt:       testNow,
		UpdatedAt:       testNow,
	}
}

func ptr[T any](v T) *T {
	return &v
}
