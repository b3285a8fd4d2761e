package ledger

// Direction tells which side of a mirrored pair holds the fresher snapshot.
type Direction int

const (
	// DirectionNone means neither side may accept from the other.
	DirectionNone Direction = iota
	// DirectionFromTheirs means the caller may accept the counterparty's row.
	DirectionFromTheirs
	// DirectionFromMine means the counterparty may accept the caller's row.
	DirectionFromMine
)

func (d Direction) String() string {
	switch d {
	case DirectionFromTheirs:
		return "from_theirs"
	case DirectionFromMine:
		return "from_mine"
	default:
		return "none"
	}
}

// Comparison is the reconciliation state of a (mine, theirs) pair.
type Comparison struct {
	// Divergent is true when theirs exists and mine does not mirror it.
	Divergent bool
	// Direction is the accept path that is open, if any.
	Direction Direction
	// Blocked is true when mine is at least as fresh as theirs, so accepting
	// theirs must be refused as reciprocal.
	Blocked bool
}

// Compare evaluates both rows of one id. Either side may be nil.
func Compare(mine, theirs *Debt) Comparison {
	c := Comparison{Divergent: IsDivergent(mine, theirs)}
	switch {
	case IsIntentionFrom(theirs, mine):
		c.Direction = DirectionFromTheirs
	case IsIntentionFrom(mine, theirs):
		c.Direction = DirectionFromMine
	}
	if theirs != nil {
		c.Blocked = IsAcceptBlocked(mine, theirs)
	}
	return c
}

// IsDivergent reports whether theirs exists and mine is absent or does not
// hold the sign-inverted amount, the same currency and the same timestamp.
func IsDivergent(mine, theirs *Debt) bool {
	if theirs == nil {
		return false
	}
	if mine == nil {
		return true
	}
	return !Mirrors(*mine, *theirs)
}

// Mirrors reports whether a and b satisfy the mirrored pair invariant.
func Mirrors(a, b Debt) bool {
	return a.Amount.Equal(b.Amount.Neg()) &&
		a.CurrencyCode == b.CurrencyCode &&
		a.Timestamp.Equal(b.Timestamp)
}

// IsIntentionFrom reports whether theirs is a locked snapshot strictly
// fresher than mine. An absent or unlocked mine is always older.
func IsIntentionFrom(theirs, mine *Debt) bool {
	if theirs == nil || theirs.LockedTimestamp == nil {
		return false
	}
	if mine == nil || mine.LockedTimestamp == nil {
		return true
	}
	return mine.LockedTimestamp.Before(*theirs.LockedTimestamp)
}

// IsAcceptBlocked reports whether mine is locked at or after theirs.
// An unlocked theirs sorts before every lock.
func IsAcceptBlocked(mine, theirs *Debt) bool {
	if mine == nil || mine.LockedTimestamp == nil {
		return false
	}
	if theirs == nil || theirs.LockedTimestamp == nil {
		return true
	}
	return !mine.LockedTimestamp.Before(*theirs.LockedTimestamp)
}
