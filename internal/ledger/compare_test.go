package ledger

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func at(minutes int) *time.Time {
	t := base.Add(time.Duration(minutes) * time.Minute)
	return &t
}

func debt(amount string, locked *time.Time) *Debt {
	return &Debt{
		ID:              "debt-1",
		Amount:          decimal.RequireFromString(amount),
		CurrencyCode:    "USD",
		Timestamp:       base,
		LockedTimestamp: locked,
	}
}

func TestIsDivergent(t *testing.T) {
	tests := []struct {
		name   string
		mine   *Debt
		theirs *Debt
		want   bool
	}{
		{"theirs absent", debt("10", nil), nil, false},
		{"both absent", nil, nil, false},
		{"mine absent", nil, debt("-10", at(1)), true},
		{"mirrored", debt("10", nil), debt("-10", nil), false},
		{"same sign", debt("10", nil), debt("10", nil), true},
		{"amount differs", debt("10", nil), debt("-11", nil), true},
		{"precision ignored", debt("10.00", nil), debt("-10", nil), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDivergent(tt.mine, tt.theirs))
		})
	}
}

func TestIsDivergent_CurrencyAndTimestamp(t *testing.T) {
	mine := debt("10", nil)
	theirs := debt("-10", nil)
	theirs.CurrencyCode = "EUR"
	assert.True(t, IsDivergent(mine, theirs))

	theirs = debt("-10", nil)
	theirs.Timestamp = base.Add(24 * time.Hour)
	assert.True(t, IsDivergent(mine, theirs))
}

func TestIsIntentionFrom(t *testing.T) {
	tests := []struct {
		name   string
		theirs *Debt
		mine   *Debt
		want   bool
	}{
		{"theirs unlocked", debt("-10", nil), nil, false},
		{"mine absent", debt("-10", at(1)), nil, true},
		{"mine unlocked", debt("-10", at(1)), debt("10", nil), true},
		{"mine older", debt("-10", at(2)), debt("10", at(1)), true},
		{"mine equal", debt("-10", at(2)), debt("10", at(2)), false},
		{"mine newer", debt("-10", at(1)), debt("10", at(2)), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsIntentionFrom(tt.theirs, tt.mine))
		})
	}
}

func TestIsAcceptBlocked(t *testing.T) {
	assert.False(t, IsAcceptBlocked(nil, debt("-10", at(1))))
	assert.False(t, IsAcceptBlocked(debt("10", nil), debt("-10", at(1))))
	assert.False(t, IsAcceptBlocked(debt("10", at(0)), debt("-10", at(1))))
	assert.True(t, IsAcceptBlocked(debt("10", at(1)), debt("-10", at(1))))
	assert.True(t, IsAcceptBlocked(debt("10", at(2)), debt("-10", at(1))))
	assert.True(t, IsAcceptBlocked(debt("10", at(2)), debt("-10", nil)))
}

// Accepting is possible exactly when it is not blocked, for every locked pair.
func TestFreshnessMonotonicity(t *testing.T) {
	for m := 0; m < 4; m++ {
		for th := 0; th < 4; th++ {
			t.Run(fmt.Sprintf("mine=%d/theirs=%d", m, th), func(t *testing.T) {
				mine, theirs := debt("10", at(m)), debt("-10", at(th))
				require.NotEqual(t, IsIntentionFrom(theirs, mine), IsAcceptBlocked(mine, theirs))
				if m >= th {
					assert.True(t, IsAcceptBlocked(mine, theirs))
				}
			})
		}
	}
}

func TestCompare(t *testing.T) {
	c := Compare(debt("10", at(1)), debt("-12", at(2)))
	assert.Equal(t, Comparison{Divergent: true, Direction: DirectionFromTheirs}, c)

	c = Compare(debt("10", at(3)), debt("-12", at(2)))
	assert.Equal(t, Comparison{Divergent: true, Direction: DirectionFromMine, Blocked: true}, c)

	c = Compare(debt("10", at(2)), debt("-10", at(2)))
	assert.Equal(t, Comparison{Direction: DirectionNone, Blocked: true}, c)

	c = Compare(debt("10", at(2)), nil)
	assert.Equal(t, Comparison{Direction: DirectionFromMine}, c)
	assert.Equal(t, "from_mine", c.Direction.String())
}

func TestMirror(t *testing.T) {
	receipt := "r-1"
	d := *debt("12.50", at(1))
	d.OwnerAccountID = "alice"
	d.UserID = "alice-bob"
	d.Note = "dinner"
	d.ReceiptID = &receipt

	m := Mirror(d, "bob", "bob-alice")
	assert.Equal(t, "debt-1", m.ID)
	assert.Equal(t, "bob", m.OwnerAccountID)
	assert.Equal(t, "bob-alice", m.UserID)
	assert.True(t, m.Amount.Equal(decimal.RequireFromString("-12.5")))
	assert.Empty(t, m.Note)
	assert.True(t, Mirrors(d, m))

	*d.LockedTimestamp = base
	*d.ReceiptID = "changed"
	assert.True(t, m.LockedTimestamp.Equal(*at(1)), "lock must be copied")
	assert.Equal(t, "r-1", *m.ReceiptID)
}

func TestUserLink(t *testing.T) {
	alice, bob, their := "alice", "bob", "bob-alice"

	self := UserLink{User: User{ID: "alice-self", OwnerAccountID: alice, ConnectedAccountID: &alice}}
	assert.True(t, self.IsSelf())
	assert.False(t, self.Connected())

	oneSided := UserLink{User: User{ID: "alice-bob", OwnerAccountID: alice, ConnectedAccountID: &bob}}
	assert.False(t, oneSided.Connected())

	linked := UserLink{User: oneSided.User, TheirUserID: &their}
	assert.True(t, linked.Connected())
	assert.True(t, linked.AutoAccepts())

	linked.ManualAcceptDebts = true
	assert.False(t, linked.AutoAccepts())
}
