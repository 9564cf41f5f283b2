package logic

import "time"

// Default control parameters.
const (
	DefaultLow    = 30
	DefaultHigh   = 70
	DefaultMargin = 5

	baseRunTime      = 1000 * time.Millisecond
	runTimePerPoint  = 100 * time.Millisecond
	DefaultPumpLimit = 30 * time.Second
)

// Thresholds are the low/high water level limits in percent.
type Thresholds struct {
	Low  int
	High int
}

// DefaultThresholds is the safe pair used when stored thresholds are unusable.
func DefaultThresholds() Thresholds {
	return Thresholds{Low: DefaultLow, High: DefaultHigh}
}

// Valid reports whether 0 <= Low < High <= 100.
func (t Thresholds) Valid() bool {
	return t.Low >= 0 && t.High <= 100 && t.Low < t.High
}

// OrDefault returns t if valid, otherwise DefaultThresholds.
func (t Thresholds) OrDefault() Thresholds {
	if t.Valid() {
		return t
	}
	return DefaultThresholds()
}

// PumpDuration returns how long to run a let-pump for the given deviation
// from target: 1s plus 100ms per percentage point, capped at limit.
func PumpDuration(level, target int, limit time.Duration) time.Duration {
	dev := level - target
	if dev < 0 {
		dev = -dev
	}
	d := baseRunTime + time.Duration(dev)*runTimePerPoint
	if limit > 0 && d > limit {
		return limit
	}
	return d
}
