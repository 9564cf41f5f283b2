package logic

import "time"

// Modes selects automatic or manual control per direction.
type Modes struct {
	InletAuto  bool
	OutletAuto bool
}

// AutoModes enables automatic control for both directions.
func AutoModes() Modes {
	return Modes{InletAuto: true, OutletAuto: true}
}

// Action asks the actuator to run the pump for a direction.
type Action struct {
	Direction Direction
	Duration  time.Duration
}

// Hysteresis is the per-direction Idle/Active latch that drives the let-pumps.
//
// A direction enters Active when the level leaves the band by more than the
// margin (below Low-margin for inlet, above High+margin for outlet) and stays
// Active, requesting a bounded run on every step, until the level has come
// back past the threshold by the margin (Low+margin, High-margin).
type Hysteresis struct {
	margin int
	limit  time.Duration
	inlet  State
	outlet State
}

// NewHysteresis creates a state machine with both directions Idle. limit caps
// every requested run.
func NewHysteresis(margin int, limit time.Duration) *Hysteresis {
	return &Hysteresis{
		margin: margin,
		limit:  limit,
		inlet:  StateIdle,
		outlet: StateIdle,
	}
}

// Step evaluates a fresh level. It returns the pump runs to perform, in order,
// and any transition events. Callers must only pass levels from a good read.
func (h *Hysteresis) Step(level int, th Thresholds, modes Modes, now time.Time) ([]Action, []Event) {
	var actions []Action
	var events []Event

	emit := func(t EventType, d time.Duration) {
		events = append(events, Event{Timestamp: now, Type: t, Level: level, Pump: -1, Duration: d})
	}

	// Inlet
	switch {
	case !modes.InletAuto:
		if h.inlet == StateActive {
			h.inlet = StateIdle
			emit(EventInletOff, 0)
		}
	case h.inlet == StateIdle:
		if level < th.Low-h.margin {
			h.inlet = StateActive
			d := PumpDuration(level, th.Low, h.limit)
			emit(EventInletOn, d)
			actions = append(actions, Action{Direction: Inlet, Duration: d})
		}
	case h.inlet == StateActive:
		if level >= th.Low+h.margin {
			h.inlet = StateIdle
			emit(EventInletOff, 0)
		} else {
			actions = append(actions, Action{Direction: Inlet, Duration: PumpDuration(level, th.Low, h.limit)})
		}
	}

	// Outlet
	switch {
	case !modes.OutletAuto:
		if h.outlet == StateActive {
			h.outlet = StateIdle
			emit(EventOutletOff, 0)
		}
	case h.outlet == StateIdle:
		if level > th.High+h.margin {
			h.outlet = StateActive
			d := PumpDuration(level, th.High, h.limit)
			emit(EventOutletOn, d)
			actions = append(actions, Action{Direction: Outlet, Duration: d})
		}
	case h.outlet == StateActive:
		if level <= th.High-h.margin {
			h.outlet = StateIdle
			emit(EventOutletOff, 0)
		} else {
			actions = append(actions, Action{Direction: Outlet, Duration: PumpDuration(level, th.High, h.limit)})
		}
	}

	return actions, events
}

// State returns the current state of a direction.
func (h *Hysteresis) State(d Direction) State {
	if d == Outlet {
		return h.outlet
	}
	return h.inlet
}

// Active reports whether a direction is latched Active.
func (h *Hysteresis) Active(d Direction) bool {
	return h.State(d) == StateActive
}

// Margin returns the hysteresis margin in percent.
func (h *Hysteresis) Margin() int {
	return h.margin
}
