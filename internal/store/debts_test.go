package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/splitledger/internal/ledger"
)

var decimalComparer = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func TestInsertDebts_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	seedPair(t, s)
	ctx := context.Background()
	q := s.Queries()

	want := createTestDebt("d-1", "alice", "alice-bob", "12.5", ptr(testNow))
	want.Note = "  lunch  "
	want.ReceiptID = ptr("r-1")
	mirror := createTestDebt("d-1", "bob", "bob-alice", "-12.5", ptr(testNow))

	require.NoError(t, q.InsertDebts(ctx, []ledger.Debt{want, mirror}))

	got, err := q.ReadDebt(ctx, DebtKey{ID: "d-1", OwnerAccountID: "alice"})
	require.NoError(t, err)

	want.Note = "lunch"
	if diff := cmp.Diff(want, got, decimalComparer); diff != "" {
		t.Errorf("ReadDebt() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "12.50", marshalAmount(got.Amount))

	all, err := q.ReadDebtsByID(ctx, []string{"d-1"})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "alice", all[0].OwnerAccountID)
	assert.Equal(t, "bob", all[1].OwnerAccountID)
	assert.True(t, ledger.Mirrors(all[0], all[1]))
}

func TestInsertDebts_ReceiptDedupConstraint(t *testing.T) {
	s := createTestStore(t)
	seedPair(t, s)
	ctx := context.Background()
	q := s.Queries()

	first := createTestDebt("d-1", "alice", "alice-bob", "10", nil)
	first.ReceiptID = ptr("r-1")
	second := createTestDebt("d-2", "alice", "alice-bob", "20", nil)
	second.ReceiptID = ptr("r-1")

	require.NoError(t, q.InsertDebts(ctx, []ledger.Debt{first}))
	err := q.InsertDebts(ctx, []ledger.Debt{second})
	require.Error(t, err, "second row for one receipt must be rejected")
	assert.True(t, IsUniqueViolation(err))

	// Rows without a receipt are unconstrained.
	require.NoError(t, q.InsertDebts(ctx, []ledger.Debt{
		createTestDebt("d-3", "alice", "alice-bob", "1", nil),
		createTestDebt("d-4", "alice", "alice-bob", "1", nil),
	}))
}

func TestReadDebtsByDedupKey(t *testing.T) {
	s := createTestStore(t)
	seedPair(t, s)
	ctx := context.Background()
	q := s.Queries()

	d := createTestDebt("d-1", "bob", "bob-alice", "-10", nil)
	d.ReceiptID = ptr("r-9")
	require.NoError(t, q.InsertDebts(ctx, []ledger.Debt{d, createTestDebt("d-2", "bob", "bob-alice", "5", nil)}))

	hit := ledger.DedupKey{OwnerAccountID: "bob", UserID: "bob-alice", ReceiptID: "r-9"}
	miss := ledger.DedupKey{OwnerAccountID: "bob", UserID: "bob-alice", ReceiptID: "r-0"}
	got, err := q.ReadDebtsByDedupKey(ctx, []ledger.DedupKey{hit, miss})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "d-1", got[hit].ID)
}

func TestReadDebtsByKey(t *testing.T) {
	s := createTestStore(t)
	seedPair(t, s)
	ctx := context.Background()
	q := s.Queries()

	require.NoError(t, q.InsertDebts(ctx, []ledger.Debt{
		createTestDebt("d-1", "alice", "alice-bob", "10", nil),
		createTestDebt("d-1", "bob", "bob-alice", "-10", nil),
	}))

	keys := []DebtKey{{ID: "d-1", OwnerAccountID: "bob"}, {ID: "d-2", OwnerAccountID: "bob"}}
	got, err := q.ReadDebtsByKey(ctx, keys)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[keys[0]].Amount.Equal(decimal.NewFromInt(-10)))
}

func TestUpdateDebt(t *testing.T) {
	s := createTestStore(t)
	seedPair(t, s)
	ctx := context.Background()
	q := s.Queries()

	d := createTestDebt("d-1", "alice", "alice-bob", "10", nil)
	require.NoError(t, q.InsertDebts(ctx, []ledger.Debt{d}))

	later := testNow.Add(time.Hour)
	d.Amount = decimal.RequireFromString("15.25")
	d.CurrencyCode = "EUR"
	d.LockedTimestamp = &later
	d.UpdatedAt = later
	ok, err := q.UpdateDebt(ctx, d)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := q.ReadDebt(ctx, Key(d))
	require.NoError(t, err)
	assert.Equal(t, "15.25", marshalAmount(got.Amount))
	assert.Equal(t, "EUR", got.CurrencyCode)
	assert.True(t, got.LockedTimestamp.Equal(later))
	assert.True(t, got.CreatedAt.Equal(testNow), "created_at never changes")

	d.ID = "missing"
	ok, err = q.UpdateDebt(ctx, d)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteDebt(t *testing.T) {
	tests := []struct {
		name    string
		mirror  bool
		cascade bool
		want    int64
	}{
		{"own side only", true, false, 1},
		{"cascade with mirror", true, true, 2},
		{"cascade without mirror", false, true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := createTestStore(t)
			seedPair(t, s)
			ctx := context.Background()
			q := s.Queries()

			rows := []ledger.Debt{createTestDebt("d-1", "alice", "alice-bob", "10", nil)}
			if tt.mirror {
				rows = append(rows, createTestDebt("d-1", "bob", "bob-alice", "-10", nil))
			}
			require.NoError(t, q.InsertDebts(ctx, rows))

			n, err := q.DeleteDebt(ctx, DebtKey{ID: "d-1", OwnerAccountID: "alice"}, tt.cascade)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)

			_, err = q.ReadDebt(ctx, DebtKey{ID: "d-1", OwnerAccountID: "alice"})
			assert.ErrorIs(t, err, sql.ErrNoRows)
		})
	}
}

func TestListDebts_Ordering(t *testing.T) {
	s := createTestStore(t)
	seedPair(t, s)
	ctx := context.Background()
	q := s.Queries()

	older := createTestDebt("d-a", "alice", "alice-bob", "1", nil)
	newerA := createTestDebt("d-b", "alice", "alice-bob", "2", nil)
	newerA.Timestamp = testNow
	newerB := createTestDebt("d-c", "alice", "alice-bob", "3", nil)
	newerB.Timestamp = testNow
	require.NoError(t, q.InsertDebts(ctx, []ledger.Debt{older, newerA, newerB}))

	got, err := q.ListDebts(ctx, "alice")
	require.NoError(t, err)

	ids := make([]string, len(got))
	for i, d := range got {
		ids[i] = d.ID
	}
	assert.Equal(t, []string{"d-c", "d-b", "d-a"}, ids)

	empty, err := q.ListDebts(ctx, "bob")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}
