package chain

import (
	"fmt"
	"time"
)

// Clock returns the current time in unix seconds.
type Clock func() (uint64, error)

// SystemClock reads the wall clock. It fails if the clock reports a time
// before the unix epoch.
func SystemClock() (uint64, error) {
	now := time.Now().UTC().Unix()
	if now < 0 {
		return 0, fmt.Errorf("wall clock reports %d: %w", now, ErrClockUnavailable)
	}
	return uint64(now), nil
}

// FixedClock returns a clock that always reports the specified time.
func FixedClock(unix uint64) Clock {
	return func() (uint64, error) {
		return unix, nil
	}
}
