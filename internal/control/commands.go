package control

import (
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/tank-controller/internal/logic"
)

// ErrQueueFull is returned by Submit when the command queue is full.
var ErrQueueFull = errors.New("control: command queue full")

// CommandKind identifies a manual command.
type CommandKind int

const (
	CommandRun CommandKind = iota
	CommandStop
	CommandResetStats
)

func (k CommandKind) String() string {
	switch k {
	case CommandRun:
		return "run"
	case CommandStop:
		return "stop"
	case CommandResetStats:
		return "reset-stats"
	default:
		return "unknown"
	}
}

// Command is a manual request executed by the control loop.
type Command struct {
	Kind     CommandKind
	Pump     int
	Duration time.Duration
}

// Submit queues cmd without blocking. Safe for use from any goroutine.
func (c *Controller) Submit(cmd Command) error {
	select {
	case c.cmds <- cmd:
		return nil
	default:
		return ErrQueueFull
	}
}

// Commands returns the queue for the control loop to select on.
func (c *Controller) Commands() <-chan Command {
	return c.cmds
}

// Execute runs one command. A manual run does not touch the dosing schedule.
func (c *Controller) Execute(cmd Command) ([]logic.Event, error) {
	switch cmd.Kind {
	case CommandRun:
		p, err := c.sys.Pump(cmd.Pump)
		if err != nil {
			return nil, err
		}
		rep, err := c.act.Run(p.Pin, cmd.Duration)
		if err != nil {
			return nil, fmt.Errorf("control: manual run of pump %d: %w", cmd.Pump, err)
		}
		var events []logic.Event
		now := c.clock.Now()
		if rep.TimedOut {
			events = append(events, logic.Event{Timestamp: now, Type: logic.EventPumpTimeout, Error: logic.ErrPumpTimeout, Pump: cmd.Pump})
		}
		return events, nil
	case CommandStop:
		return nil, c.StopAll()
	case CommandResetStats:
		c.act.ResetStatistics()
		return nil, nil
	default:
		return nil, fmt.Errorf("control: unknown command %d", cmd.Kind)
	}
}
