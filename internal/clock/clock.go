// Package clock abstracts wall time and blocking sleeps so that the control
// loop can be driven by a fake clock in tests.
package clock

import "time"

// Clock supplies the current time and blocks for a duration.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// Real is the system clock.
type Real struct{}

// Now returns time.Now().
func (Real) Now() time.Time { return time.Now() }

// Sleep calls time.Sleep.
func (Real) Sleep(d time.Duration) { time.Sleep(d) }
