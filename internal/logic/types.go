// Package logic contains pure business logic for water level control and dosing.
// This package has NO external dependencies (no GPIO, I2C, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// WaterError classifies the outcome of a sensing or actuation operation.
// Values are mutually exclusive; the most recent one wins.
type WaterError int

const (
	ErrNone WaterError = iota
	ErrSensorTimeout
	ErrSensorComm
	ErrSensorInvalidData
	ErrPumpTimeout
)

func (e WaterError) String() string {
	switch e {
	case ErrNone:
		return "NONE"
	case ErrSensorTimeout:
		return "SENSOR_TIMEOUT"
	case ErrSensorComm:
		return "SENSOR_COMM_ERROR"
	case ErrSensorInvalidData:
		return "SENSOR_INVALID_DATA"
	case ErrPumpTimeout:
		return "PUMP_TIMEOUT"
	}
	return "UNKNOWN"
}

// IsSensor reports whether e came from the sensor link.
func (e WaterError) IsSensor() bool {
	return e == ErrSensorTimeout || e == ErrSensorComm || e == ErrSensorInvalidData
}

// Direction is the flow direction handled by a let-pump.
type Direction string

const (
	Inlet  Direction = "INLET"
	Outlet Direction = "OUTLET"
)

// State is the hysteresis state of one direction.
type State string

const (
	StateIdle   State = "IDLE"
	StateActive State = "ACTIVE"
)

// EventType identifies something worth publishing.
type EventType string

const (
	EventInletOn       EventType = "INLET_ON"
	EventInletOff      EventType = "INLET_OFF"
	EventOutletOn      EventType = "OUTLET_ON"
	EventOutletOff     EventType = "OUTLET_OFF"
	EventDose          EventType = "DOSE"
	EventSensorError   EventType = "SENSOR_ERROR"
	EventSensorOK      EventType = "SENSOR_OK"
	EventPumpTimeout   EventType = "PUMP_TIMEOUT"
	EventEmergencyStop EventType = "EMERGENCY_STOP"
)

// Event represents a state change to be published.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Level     int
	Error     WaterError
	// Pump is the pump index for DOSE events, -1 otherwise.
	Pump int
	// Duration is the requested run time for pump events.
	Duration time.Duration
	// AmountMl is the dispensed amount for DOSE events.
	AmountMl uint16
}

// Result is what a single poll produces for display.
type Result struct {
	Error        WaterError
	Level        int
	InletActive  bool
	OutletActive bool
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	InletOn      int
	OutletOn     int
	Doses        int
	SensorErrors int
	PumpTimeouts int
}

// Add counts an event.
func (c *EventCounts) Add(t EventType) {
	switch t {
	case EventInletOn:
		c.InletOn++
	case EventOutletOn:
		c.OutletOn++
	case EventDose:
		c.Doses++
	case EventSensorError:
		c.SensorErrors++
	case EventPumpTimeout:
		c.PumpTimeouts++
	}
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
}
