package logic

import "time"

const (
	secondsPerDay = 86400

	// DefaultFlowRate is the dosing pump flow in ml per second.
	DefaultFlowRate = 2
)

// DosingConfig is the schedule of one dosing channel.
type DosingConfig struct {
	AmountMl     uint16
	IntervalDays uint32 // 0 disables the channel
	LastDose     uint64 // unix seconds of the last dose
	Duration     time.Duration
}

// Enabled reports whether the channel has a schedule.
func (c DosingConfig) Enabled() bool {
	return c.IntervalDays != 0
}

// Due reports whether a dose is due at now (unix seconds). A clock that went
// backwards past the last dose counts as due, so a reset RTC cannot stall
// dosing forever.
func (c DosingConfig) Due(now uint64) bool {
	if !c.Enabled() {
		return false
	}
	if now < c.LastDose {
		return true
	}
	return now-c.LastDose >= uint64(c.IntervalDays)*secondsPerDay
}

// NextDose returns the unix second at which the channel becomes due, or 0
// when disabled.
func (c DosingConfig) NextDose() uint64 {
	if !c.Enabled() {
		return 0
	}
	return c.LastDose + uint64(c.IntervalDays)*secondsPerDay
}

// DoseDuration converts an amount into a pump run time at flowRate ml/s,
// capped at limit.
func DoseDuration(amountMl uint16, flowRate int, limit time.Duration) time.Duration {
	if flowRate <= 0 {
		flowRate = DefaultFlowRate
	}
	d := time.Duration(amountMl) * time.Second / time.Duration(flowRate)
	if limit > 0 && d > limit {
		return limit
	}
	return d
}
