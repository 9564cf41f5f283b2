package clock

import "time"

// Fake is a manually advanced clock. Sleep advances the clock instead of
// blocking, so a blocking pump run completes instantly in tests.
type Fake struct {
	now time.Time

	// OnSleep, if set, is called after each Sleep has advanced the clock.
	OnSleep func(now time.Time)

	// Step, if set, replaces the duration passed to Sleep. Used to simulate a
	// clock that jumps.
	Step func(d time.Duration) time.Duration

	// Slept is the total duration requested through Sleep.
	Slept time.Duration
}

// NewFake creates a Fake starting at the given time.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	return f.now
}

// Sleep advances the fake clock by d.
func (f *Fake) Sleep(d time.Duration) {
	f.Slept += d
	if f.Step != nil {
		d = f.Step(d)
	}
	f.now = f.now.Add(d)
	if f.OnSleep != nil {
		f.OnSleep(f.now)
	}
}

// Advance moves the clock forward without counting as a sleep.
func (f *Fake) Advance(d time.Duration) {
	f.now = f.now.Add(d)
}

// Set moves the clock to t.
func (f *Fake) Set(t time.Time) {
	f.now = t
}
