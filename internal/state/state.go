// Package state holds the controller's mutable configuration: thresholds,
// pump channels, modes and display settings. Every successful change is
// written to the configuration store straight away.
//
// A System is owned by the control loop and is not safe for concurrent use.
package state

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sweeney/tank-controller/internal/config"
	"github.com/sweeney/tank-controller/internal/logic"
)

// LanguageCount is the number of selectable display languages.
const LanguageCount = 10

var (
	// ErrInvalidThresholds is returned when a change would break 0 <= low < high <= 100.
	ErrInvalidThresholds = errors.New("state: thresholds must satisfy 0 <= low < high <= 100")

	// ErrNotEditable is returned when editing dosing fields of a let-pump.
	ErrNotEditable = errors.New("state: inlet and outlet pumps have no editable amount or interval")

	// ErrUnknownPump is returned for an out-of-range pump index.
	ErrUnknownPump = errors.New("state: unknown pump")

	// ErrInvalidValue is returned for a value the record cannot hold.
	ErrInvalidValue = errors.New("state: invalid value")
)

// Role is the fixed function of a pump channel.
type Role int

const (
	RoleDosing Role = iota
	RoleInlet
	RoleOutlet
)

func (r Role) String() string {
	switch r {
	case RoleDosing:
		return "dosing"
	case RoleInlet:
		return "inlet"
	case RoleOutlet:
		return "outlet"
	default:
		return "unknown"
	}
}

// Pump is one pump channel. Dosing is only meaningful for RoleDosing.
type Pump struct {
	Index  int
	Role   Role
	Pin    int
	Dosing logic.DosingConfig
}

// Pins maps pump channels to output lines.
type Pins struct {
	Dosing [config.PumpInlet]int
	Inlet  int
	Outlet int
}

// System is the in-memory configuration of the controller.
type System struct {
	store config.Store

	language   uint8
	tankVolume uint32
	timeOffset int64
	thresholds logic.Thresholds
	modes      logic.Modes
	pumps      [config.PumpCount]Pump
}

// Load builds a System from the stored record. A missing, unreadable or
// invalid record yields the defaults; the defaults are not written back until
// the first explicit change.
func Load(store config.Store, pins Pins) *System {
	s := &System{store: store}
	s.initPumps(pins)

	cfg, err := store.Load()
	switch {
	case errors.Is(err, config.ErrNotFound):
		log.Printf("state: no stored configuration, using defaults")
		cfg = config.Default()
	case err != nil:
		log.Printf("state: load configuration: %v, using defaults", err)
		cfg = config.Default()
	case !config.IsValid(cfg):
		log.Printf("state: stored configuration invalid, using defaults")
		cfg = config.Default()
	}
	s.apply(cfg)
	return s
}

func (s *System) initPumps(pins Pins) {
	for i := 0; i < config.PumpCount; i++ {
		p := Pump{Index: i}
		switch i {
		case config.PumpInlet:
			p.Role, p.Pin = RoleInlet, pins.Inlet
		case config.PumpOutlet:
			p.Role, p.Pin = RoleOutlet, pins.Outlet
		default:
			p.Role, p.Pin = RoleDosing, pins.Dosing[i]
		}
		s.pumps[i] = p
	}
}

func (s *System) apply(cfg config.Configuration) {
	s.language = cfg.LanguageIndex
	if s.language >= LanguageCount {
		s.language = 0
	}
	s.tankVolume = cfg.TankVolume
	s.timeOffset = cfg.TimeOffset
	s.thresholds = logic.Thresholds{
		Low:  int(cfg.LowThreshold),
		High: int(cfg.HighThreshold),
	}.OrDefault()
	s.modes = logic.Modes{
		InletAuto:  cfg.InletMode != config.ModeManual,
		OutletAuto: cfg.OutletMode != config.ModeManual,
	}
	for i := range s.pumps {
		if s.pumps[i].Role != RoleDosing {
			s.pumps[i].Dosing = logic.DosingConfig{}
			continue
		}
		s.pumps[i].Dosing = logic.DosingConfig{
			AmountMl:     cfg.PumpAmounts[i],
			IntervalDays: cfg.PumpIntervals[i],
			LastDose:     cfg.LastDose[i],
			Duration:     time.Duration(cfg.PumpDurations[i]) * time.Millisecond,
		}
	}
}

// Configuration returns the record for the current state.
func (s *System) Configuration() config.Configuration {
	cfg := config.Configuration{
		LanguageIndex: s.language,
		TankVolume:    s.tankVolume,
		TimeOffset:    s.timeOffset,
		LowThreshold:  uint16(s.thresholds.Low),
		HighThreshold: uint16(s.thresholds.High),
		InletMode:     modeByte(s.modes.InletAuto),
		OutletMode:    modeByte(s.modes.OutletAuto),
	}
	for i, p := range s.pumps {
		if p.Role != RoleDosing {
			continue
		}
		cfg.PumpAmounts[i] = p.Dosing.AmountMl
		cfg.PumpIntervals[i] = p.Dosing.IntervalDays
		cfg.LastDose[i] = p.Dosing.LastDose
		cfg.PumpDurations[i] = uint64(p.Dosing.Duration / time.Millisecond)
	}
	return cfg
}

func modeByte(auto bool) uint8 {
	if auto {
		return config.ModeAuto
	}
	return config.ModeManual
}

func (s *System) persist() error {
	if err := s.store.Save(s.Configuration()); err != nil {
		log.Printf("state: save configuration: %v", err)
		return fmt.Errorf("state: persist: %w", err)
	}
	return nil
}

// FactoryReset stores an all-unset record and returns to the defaults.
func (s *System) FactoryReset() error {
	if err := s.store.Save(config.FactoryReset()); err != nil {
		return fmt.Errorf("state: factory reset: %w", err)
	}
	s.apply(config.Default())
	log.Printf("state: factory reset")
	return nil
}

// Thresholds returns the active low/high pair.
func (s *System) Thresholds() logic.Thresholds {
	return s.thresholds
}

// SetThresholds replaces both thresholds.
func (s *System) SetThresholds(low, high int) error {
	th := logic.Thresholds{Low: low, High: high}
	if !th.Valid() {
		return fmt.Errorf("%w: got %d/%d", ErrInvalidThresholds, low, high)
	}
	s.thresholds = th
	return s.persist()
}

// SetLow changes the low threshold, keeping it below high.
func (s *System) SetLow(low int) error {
	return s.SetThresholds(low, s.thresholds.High)
}

// SetHigh changes the high threshold, keeping it above low.
func (s *System) SetHigh(high int) error {
	return s.SetThresholds(s.thresholds.Low, high)
}

// Modes returns the auto/manual setting per direction.
func (s *System) Modes() logic.Modes {
	return s.modes
}

// SetModes changes the auto/manual setting per direction.
func (s *System) SetModes(m logic.Modes) error {
	s.modes = m
	return s.persist()
}

// Language returns the display language index.
func (s *System) Language() int {
	return int(s.language)
}

// SetLanguage selects a display language.
func (s *System) SetLanguage(index int) error {
	if index < 0 || index >= LanguageCount {
		return fmt.Errorf("%w: language %d", ErrInvalidValue, index)
	}
	s.language = uint8(index)
	return s.persist()
}

// TankVolume returns the tank volume in litres.
func (s *System) TankVolume() uint32 {
	return s.tankVolume
}

// SetTankVolume sets the tank volume in litres.
func (s *System) SetTankVolume(litres uint32) error {
	if litres == config.UnsetU32 {
		return fmt.Errorf("%w: tank volume %d", ErrInvalidValue, litres)
	}
	s.tankVolume = litres
	return s.persist()
}

// TimeOffset returns the dosing clock offset in seconds.
func (s *System) TimeOffset() int64 {
	return s.timeOffset
}

// SetTimeOffset sets the dosing clock offset in seconds.
func (s *System) SetTimeOffset(seconds int64) error {
	if seconds == config.UnsetI64 {
		return fmt.Errorf("%w: time offset %d", ErrInvalidValue, seconds)
	}
	s.timeOffset = seconds
	return s.persist()
}

// DosingClock converts host time to the dosing clock in unix seconds.
func (s *System) DosingClock(now time.Time) uint64 {
	t := now.Unix() + s.timeOffset
	if t < 0 {
		return 0
	}
	return uint64(t)
}

// Pump returns channel i.
func (s *System) Pump(i int) (Pump, error) {
	if i < 0 || i >= len(s.pumps) {
		return Pump{}, fmt.Errorf("%w: %d", ErrUnknownPump, i)
	}
	return s.pumps[i], nil
}

// Pumps returns a copy of all channels.
func (s *System) Pumps() []Pump {
	out := make([]Pump, len(s.pumps))
	copy(out, s.pumps[:])
	return out
}

// Inlet returns the inlet channel.
func (s *System) Inlet() Pump {
	return s.pumps[config.PumpInlet]
}

// Outlet returns the outlet channel.
func (s *System) Outlet() Pump {
	return s.pumps[config.PumpOutlet]
}

// DirectionPin returns the output line of a let-pump direction.
func (s *System) DirectionPin(d logic.Direction) int {
	if d == logic.Outlet {
		return s.Outlet().Pin
	}
	return s.Inlet().Pin
}

// dosingPump returns a pointer to channel i if it is a dosing channel.
func (s *System) dosingPump(i int) (*Pump, error) {
	if i < 0 || i >= len(s.pumps) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPump, i)
	}
	p := &s.pumps[i]
	switch p.Role {
	case RoleDosing:
		return p, nil
	case RoleInlet, RoleOutlet:
		return nil, fmt.Errorf("%w: pump %d is %s", ErrNotEditable, i, p.Role)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownPump, i)
	}
}

// SetPumpAmount sets the dose of channel i in ml.
func (s *System) SetPumpAmount(i int, ml uint16) error {
	if ml == config.UnsetU16 {
		return fmt.Errorf("%w: amount %d", ErrInvalidValue, ml)
	}
	p, err := s.dosingPump(i)
	if err != nil {
		return err
	}
	p.Dosing.AmountMl = ml
	return s.persist()
}

// SetPumpInterval sets the dosing interval of channel i in days. Zero
// disables the channel.
func (s *System) SetPumpInterval(i int, days uint32) error {
	if days == config.UnsetU32 {
		return fmt.Errorf("%w: interval %d", ErrInvalidValue, days)
	}
	p, err := s.dosingPump(i)
	if err != nil {
		return err
	}
	p.Dosing.IntervalDays = days
	return s.persist()
}

// RecordDose stores the time and computed run time of a dose on channel i.
func (s *System) RecordDose(i int, at uint64, d time.Duration) error {
	p, err := s.dosingPump(i)
	if err != nil {
		return err
	}
	p.Dosing.LastDose = at
	p.Dosing.Duration = d
	return s.persist()
}
