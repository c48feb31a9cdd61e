package core

import "time"

type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func NewRealClock() Clock { return RealClock{} }

func (RealClock) Now() time.Time { return time.Now() }

// FixedClock always reports the same instant; the CLI uses it for dry runs
// and tests use it to pin timestamps.
type FixedClock struct{ At time.Time }

func (c FixedClock) Now() time.Time { return c.At }
