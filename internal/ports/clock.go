// Package ports holds the interfaces the engine uses to reach the host, so
// tests can substitute the fakes under internal/testing/fakes.
package ports

import "time"

// Clock is the time source for recording timestamps, read deadlines and
// command durations.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}
