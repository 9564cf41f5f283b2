// Package control runs the automatic water level loop: read the sensor
// ladder, estimate the level, step the hysteresis state machine and drive
// the let-pumps. It also executes manual commands queued by other goroutines,
// so the control loop stays the only caller of the pump actuator.
package control

import (
	"errors"
	"log"
	"time"

	"github.com/sweeney/tank-controller/internal/clock"
	"github.com/sweeney/tank-controller/internal/logic"
	"github.com/sweeney/tank-controller/internal/pump"
	"github.com/sweeney/tank-controller/internal/state"
)

// Sensor is the part of the sensor link the controller needs.
type Sensor interface {
	Read() (logic.Frame, logic.WaterError)
	IsConnected() bool
}

// Actuator is the part of the pump actuator the controller needs.
type Actuator interface {
	Run(pin int, d time.Duration) (pump.Report, error)
	EmergencyStop(pins ...int) error
	ResetStatistics()
	Limit() time.Duration
}

// Config holds controller parameters.
type Config struct {
	Margin         int
	TouchThreshold byte
	QueueSize      int
}

// DefaultConfig returns the standard margin and touch threshold.
func DefaultConfig() Config {
	return Config{
		Margin:         logic.DefaultMargin,
		TouchThreshold: logic.DefaultTouchThreshold,
		QueueSize:      8,
	}
}

// Controller couples the sensor, the hysteresis state machine and the pumps.
type Controller struct {
	sensor Sensor
	act    Actuator
	sys    *state.System
	clock  clock.Clock
	cfg    Config
	hyst   *logic.Hysteresis

	cmds chan Command

	lastFrame logic.Frame
	lastLevel int
	haveLevel bool
}

// New creates a controller with both directions Idle.
func New(sensor Sensor, act Actuator, sys *state.System, clk clock.Clock, cfg Config) *Controller {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	return &Controller{
		sensor: sensor,
		act:    act,
		sys:    sys,
		clock:  clk,
		cfg:    cfg,
		hyst:   logic.NewHysteresis(cfg.Margin, act.Limit()),
		cmds:   make(chan Command, cfg.QueueSize),
	}
}

// Poll performs one control pass. Any sensor error skips actuation entirely
// and is returned in the result; the caller decides when to stop the pumps.
// A run cut short by the safety ceiling reports PUMP_TIMEOUT.
func (c *Controller) Poll() (logic.Result, []logic.Event) {
	frame, werr := c.sensor.Read()
	if werr == logic.ErrNone && !c.sensor.IsConnected() {
		werr = logic.ErrSensorTimeout
	}
	if werr != logic.ErrNone {
		return c.result(werr), nil
	}

	level := logic.Level(frame, c.cfg.TouchThreshold)
	c.lastFrame = frame
	c.lastLevel = level
	c.haveLevel = true

	now := c.clock.Now()
	actions, events := c.hyst.Step(level, c.sys.Thresholds(), c.sys.Modes(), now)

	res := logic.ErrNone
	for _, a := range actions {
		pin := c.sys.DirectionPin(a.Direction)
		rep, err := c.act.Run(pin, a.Duration)
		switch {
		case errors.Is(err, pump.ErrBusy):
			log.Printf("control: %s run skipped, pump busy", a.Direction)
			continue
		case err != nil:
			log.Printf("control: %s run: %v", a.Direction, err)
		}
		if rep.TimedOut {
			res = logic.ErrPumpTimeout
		}
	}

	return c.result(res), events
}

func (c *Controller) result(werr logic.WaterError) logic.Result {
	return logic.Result{
		Error:        werr,
		Level:        c.lastLevel,
		InletActive:  c.hyst.Active(logic.Inlet),
		OutletActive: c.hyst.Active(logic.Outlet),
	}
}

// EmergencyStop forces the inlet and outlet pumps and the valve off without
// touching the hysteresis latches.
func (c *Controller) EmergencyStop() error {
	return c.act.EmergencyStop(c.sys.Inlet().Pin, c.sys.Outlet().Pin)
}

// StopAll forces every pump and the valve off.
func (c *Controller) StopAll() error {
	pumps := c.sys.Pumps()
	pins := make([]int, len(pumps))
	for i, p := range pumps {
		pins[i] = p.Pin
	}
	return c.act.EmergencyStop(pins...)
}

// LastFrame returns the last good frame and whether one has been read.
func (c *Controller) LastFrame() (logic.Frame, bool) {
	return c.lastFrame, c.haveLevel
}

// Margin returns the hysteresis margin.
func (c *Controller) Margin() int {
	return c.hyst.Margin()
}
