package core

import "time"

// Clock returns the current instant in the organization's civil timezone.
// All time comparisons in the redemption path go through it so tests can
// pin the clock.
type Clock interface {
	Now() time.Time
}

type zoneClock struct {
	loc *time.Location
}

// NewZoneClock builds a Clock fixed to the given civil timezone.
func NewZoneClock(loc *time.Location) Clock {
	return &zoneClock{loc: loc}
}

func (c *zoneClock) Now() time.Time {
	return time.Now().In(c.loc)
}
