package util

import "time"

// Clock is the timestamp source used to stamp orders and trades. Injected so
// tests can pin time.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }
