// Package realclock implements ports.Clock with the time package.
package realclock

import (
	"time"

	"github.com/acolita/termengine/internal/ports"
)

var _ ports.Clock = Clock{}

// Clock reads the wall clock.
type Clock struct{}

func New() Clock { return Clock{} }

func (Clock) Now() time.Time { return time.Now() }

func (Clock) After(d time.Duration) <-chan time.Time { return time.After(d) }
