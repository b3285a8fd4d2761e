package engine

import "time"

// Clock supplies the instants written to lockedTimestamp, createdAt and
// updatedAt. Implemented by SystemClock and by testutil.StepClock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
