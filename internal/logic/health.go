package logic

import "time"

// DefaultStopAfter is the number of consecutive failed polls after which the
// let-pumps are forced off.
const DefaultStopAfter = 3

// Health follows the sensor error stream across polls.
type Health struct {
	stopAfter     int
	last          WaterError
	consecutive   int
	stopped       bool
	startTime     time.Time
	lastHeartbeat time.Time
}

// NewHealth creates a tracker that requests an emergency stop after
// stopAfter consecutive sensor failures.
func NewHealth(stopAfter int, startTime time.Time) *Health {
	if stopAfter <= 0 {
		stopAfter = DefaultStopAfter
	}
	return &Health{
		stopAfter:     stopAfter,
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Observe records the error of one poll. It returns events for error
// transitions and reports whether an emergency stop is due now. The stop is
// requested once per failure streak.
func (h *Health) Observe(err WaterError, now time.Time) (events []Event, stop bool) {
	if err == ErrPumpTimeout {
		events = append(events, Event{Timestamp: now, Type: EventPumpTimeout, Error: err, Pump: -1})
		err = ErrNone
	}

	if !err.IsSensor() {
		if h.last.IsSensor() {
			events = append(events, Event{Timestamp: now, Type: EventSensorOK, Pump: -1})
		}
		h.last = err
		h.consecutive = 0
		h.stopped = false
		return events, false
	}

	if err != h.last {
		events = append(events, Event{Timestamp: now, Type: EventSensorError, Error: err, Pump: -1})
	}
	h.last = err
	h.consecutive++

	if h.consecutive >= h.stopAfter && !h.stopped {
		h.stopped = true
		events = append(events, Event{Timestamp: now, Type: EventEmergencyStop, Error: err, Pump: -1})
		return events, true
	}
	return events, false
}

// Consecutive returns the length of the current failure streak.
func (h *Health) Consecutive() int {
	return h.consecutive
}

// Last returns the most recent sensor error.
func (h *Health) Last() WaterError {
	return h.last
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if interval is <= 0 (disabled).
func (h *Health) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}
	if now.Sub(h.lastHeartbeat) < interval {
		return nil
	}
	h.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(h.startTime),
	}
}
