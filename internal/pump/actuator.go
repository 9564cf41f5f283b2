// Package pump drives pump relays and the shared electrovalve.
//
// Run is a blocking operation: it owns the caller for the whole cycle and
// polls elapsed time in small steps. A port that needs cancellation would
// replace the polling loop with a timer and a context without changing the
// contract: a run completes, is cut short by the ceiling, or is rejected as
// busy.
package pump

import (
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/sweeney/tank-controller/internal/clock"
	"github.com/sweeney/tank-controller/internal/gpio"
	"github.com/sweeney/tank-controller/internal/logic"
)

// ErrBusy is returned when a run is requested while another is in progress.
var ErrBusy = errors.New("pump: another pump is running")

// Timing defaults.
const (
	DefaultSettle       = 500 * time.Millisecond
	DefaultPollInterval = 100 * time.Millisecond
)

// Config holds the actuator parameters.
type Config struct {
	ValvePin     int
	Limit        time.Duration // hard ceiling for a single run
	Settle       time.Duration // valve opening delay
	PollInterval time.Duration
}

// DefaultConfig returns the standard timing with the given valve pin.
func DefaultConfig(valvePin int) Config {
	return Config{
		ValvePin:     valvePin,
		Limit:        logic.DefaultPumpLimit,
		Settle:       DefaultSettle,
		PollInterval: DefaultPollInterval,
	}
}

// Report describes a finished run.
type Report struct {
	Pin       int
	Requested time.Duration
	Elapsed   time.Duration
	TimedOut  bool
}

// Actuator runs one pump at a time.
type Actuator struct {
	out   gpio.Writer
	clock clock.Clock
	cfg   Config

	// busy is the single system-wide pump gate. It is taken with a
	// compare-and-swap so the gate stays correct if runs are ever issued
	// from more than one goroutine.
	busy atomic.Bool

	activePin int
	startTime time.Time
	runtime   map[int]time.Duration
	lastErr   logic.WaterError
}

// NewActuator creates an idle actuator.
func NewActuator(out gpio.Writer, clk clock.Clock, cfg Config) *Actuator {
	if cfg.Limit <= 0 {
		cfg.Limit = logic.DefaultPumpLimit
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Actuator{
		out:       out,
		clock:     clk,
		cfg:       cfg,
		activePin: -1,
		runtime:   make(map[int]time.Duration),
	}
}

// Run drives pin for d, clamped to the ceiling. Sequence: valve open, settle,
// pump on, poll until d elapses, pump off, valve closed. If the elapsed time
// passes the ceiling by more than one poll interval, LastError becomes
// PUMP_TIMEOUT; the shutdown sequence still runs.
func (a *Actuator) Run(pin int, d time.Duration) (Report, error) {
	if !a.busy.CompareAndSwap(false, true) {
		log.Printf("pump: run of pin %d rejected, pin %d busy", pin, a.activePin)
		return Report{Pin: pin, Requested: d}, ErrBusy
	}
	defer a.busy.Store(false)

	rep := Report{Pin: pin, Requested: d}
	if d > a.cfg.Limit {
		log.Printf("pump: pin %d request %v clamped to %v", pin, d, a.cfg.Limit)
		d = a.cfg.Limit
	}
	a.lastErr = logic.ErrNone

	var errs []error
	set := func(p int, on bool) {
		if err := a.out.Set(p, on); err != nil {
			errs = append(errs, err)
		}
	}

	set(a.cfg.ValvePin, true)
	a.clock.Sleep(a.cfg.Settle)

	a.activePin = pin
	a.startTime = a.clock.Now()
	set(pin, true)

	// d never exceeds the ceiling, so the loop always ends at the first check
	// past d. Overshooting the ceiling by more than one poll step means the
	// clock jumped or a sleep stalled.
	for {
		elapsed := a.clock.Now().Sub(a.startTime)
		if elapsed >= d {
			if elapsed > a.cfg.Limit+a.cfg.PollInterval {
				log.Printf("pump: pin %d exceeded ceiling %v after %v, stopping", pin, a.cfg.Limit, elapsed)
				a.lastErr = logic.ErrPumpTimeout
				rep.TimedOut = true
			}
			break
		}
		a.clock.Sleep(a.cfg.PollInterval)
	}

	set(pin, false)
	set(a.cfg.ValvePin, false)

	rep.Elapsed = a.clock.Now().Sub(a.startTime)
	a.runtime[pin] += rep.Elapsed
	a.activePin = -1

	if len(errs) > 0 {
		return rep, fmt.Errorf("pump: pin %d: %w", pin, errors.Join(errs...))
	}
	return rep, nil
}

// IsBusy reports whether a run is in progress.
func (a *Actuator) IsBusy() bool {
	return a.busy.Load()
}

// ActivePin returns the running pin, or -1.
func (a *Actuator) ActivePin() int {
	return a.activePin
}

// LastError returns PUMP_TIMEOUT if the last run hit the ceiling.
func (a *Actuator) LastError() logic.WaterError {
	return a.lastErr
}

// Runtime returns the cumulative run time of pin.
func (a *Actuator) Runtime(pin int) time.Duration {
	return a.runtime[pin]
}

// Statistics returns a copy of the cumulative run time per pin.
func (a *Actuator) Statistics() map[int]time.Duration {
	out := make(map[int]time.Duration, len(a.runtime))
	for pin, d := range a.runtime {
		out[pin] = d
	}
	return out
}

// ResetStatistics clears all runtime counters.
func (a *Actuator) ResetStatistics() {
	a.runtime = make(map[int]time.Duration)
}

// Limit returns the hard ceiling.
func (a *Actuator) Limit() time.Duration {
	return a.cfg.Limit
}

// EmergencyStop forces the given pump pins and the valve off, regardless of
// any latched control state.
func (a *Actuator) EmergencyStop(pins ...int) error {
	var errs []error
	for _, pin := range pins {
		if err := a.out.Set(pin, false); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.out.Set(a.cfg.ValvePin, false); err != nil {
		errs = append(errs, err)
	}
	log.Printf("pump: emergency stop, pins %v and valve %d off", pins, a.cfg.ValvePin)
	return errors.Join(errs...)
}
