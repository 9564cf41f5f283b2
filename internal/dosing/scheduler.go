// Package dosing runs the day-interval dosing channels.
package dosing

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/robfig/cron/v3"

	"github.com/sweeney/tank-controller/internal/logic"
	"github.com/sweeney/tank-controller/internal/pump"
	"github.com/sweeney/tank-controller/internal/state"
)

// DefaultCheckSpec is how often the channels are examined.
const DefaultCheckSpec = "@every 1m"

// Actuator is the part of the pump actuator the scheduler needs.
type Actuator interface {
	Run(pin int, d time.Duration) (pump.Report, error)
	IsBusy() bool
	Limit() time.Duration
}

// Config holds scheduler parameters.
type Config struct {
	FlowRate  int    // ml per second
	CheckSpec string // cron spec throttling Tick
}

// DefaultConfig returns the standard flow rate and check cadence.
func DefaultConfig() Config {
	return Config{FlowRate: logic.DefaultFlowRate, CheckSpec: DefaultCheckSpec}
}

// Scheduler doses each enabled channel once its interval has elapsed.
type Scheduler struct {
	sys      *state.System
	act      Actuator
	flowRate int
	check    cron.Schedule

	nextCheck time.Time
}

// New creates a Scheduler. The first Tick always checks.
func New(sys *state.System, act Actuator, cfg Config) (*Scheduler, error) {
	if cfg.FlowRate <= 0 {
		cfg.FlowRate = logic.DefaultFlowRate
	}
	if cfg.CheckSpec == "" {
		cfg.CheckSpec = DefaultCheckSpec
	}
	check, err := cron.ParseStandard(cfg.CheckSpec)
	if err != nil {
		return nil, fmt.Errorf("dosing: parse check spec %q: %w", cfg.CheckSpec, err)
	}
	return &Scheduler{sys: sys, act: act, flowRate: cfg.FlowRate, check: check}, nil
}

// Tick examines the dosing channels if the check schedule allows it. lastErr
// is the result of the latest sensor poll; any sensor error skips dosing.
// Each dose is persisted before the pump runs so a power loss mid-run cannot
// repeat it on the next boot.
func (s *Scheduler) Tick(now time.Time, lastErr logic.WaterError) []logic.Event {
	if !s.nextCheck.IsZero() && now.Before(s.nextCheck) {
		return nil
	}
	s.nextCheck = s.check.Next(now)

	if lastErr.IsSensor() {
		log.Printf("dosing: skipped, sensor error %s", lastErr)
		return nil
	}

	at := s.sys.DosingClock(now)
	var events []logic.Event
	for _, p := range s.sys.Pumps() {
		if p.Role != state.RoleDosing {
			continue
		}
		if !p.Dosing.Due(at) {
			continue
		}
		if s.act.IsBusy() {
			log.Printf("dosing: pump %d due but another pump is running", p.Index)
			continue
		}
		events = append(events, s.dose(p, at, now)...)
	}
	return events
}

func (s *Scheduler) dose(p state.Pump, at uint64, now time.Time) []logic.Event {
	cfg := p.Dosing
	if cfg.AmountMl == 0 {
		if err := s.sys.RecordDose(p.Index, at, 0); err != nil {
			log.Printf("dosing: pump %d: %v", p.Index, err)
		}
		log.Printf("dosing: pump %d due with nothing to dispense, schedule reset", p.Index)
		return nil
	}

	d := logic.DoseDuration(cfg.AmountMl, s.flowRate, s.act.Limit())
	if err := s.sys.RecordDose(p.Index, at, d); err != nil {
		log.Printf("dosing: pump %d: %v", p.Index, err)
	}

	rep, err := s.act.Run(p.Pin, d)
	if errors.Is(err, pump.ErrBusy) {
		log.Printf("dosing: pump %d run: %v", p.Index, err)
		return nil
	}
	if err != nil {
		log.Printf("dosing: pump %d run: %v", p.Index, err)
	}

	next := time.Unix(int64(at+uint64(cfg.IntervalDays)*86400), 0)
	log.Printf("dosing: pump %d dispensed %dml in %v, next dose %s",
		p.Index, cfg.AmountMl, rep.Elapsed, humanize.RelTime(next, time.Unix(int64(at), 0), "ago", "from now"))

	events := []logic.Event{{
		Timestamp: now,
		Type:      logic.EventDose,
		Pump:      p.Index,
		Duration:  d,
		AmountMl:  cfg.AmountMl,
	}}
	if rep.TimedOut {
		events = append(events, logic.Event{Timestamp: now, Type: logic.EventPumpTimeout, Error: logic.ErrPumpTimeout, Pump: p.Index})
	}
	return events
}

// NextCheck returns when Tick will next examine the channels.
func (s *Scheduler) NextCheck() time.Time {
	return s.nextCheck
}
