package control

import (
	"errors"
	"testing"
	"time"

	"github.com/sweeney/tank-controller/internal/clock"
	"github.com/sweeney/tank-controller/internal/config"
	"github.com/sweeney/tank-controller/internal/gpio"
	"github.com/sweeney/tank-controller/internal/logic"
	"github.com/sweeney/tank-controller/internal/pump"
	"github.com/sweeney/tank-controller/internal/sensor"
	"github.com/sweeney/tank-controller/internal/state"
)

const (
	pinInlet  = 17
	pinOutlet = 27
	pinValve  = 22
)

var (
	start    = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	testPins = state.Pins{Dosing: [3]int{5, 6, 13}, Inlet: pinInlet, Outlet: pinOutlet}
)

type rig struct {
	ctrl *Controller
	bus  *sensor.FakeBus
	out  *gpio.FakeWriter
	clk  *clock.Fake
	link *sensor.Link
	sys  *state.System
	act  *pump.Actuator
}

func newRig() *rig {
	clk := clock.NewFake(start)
	bus := sensor.NewFakeBus()
	out := gpio.NewFakeWriter()
	link := sensor.NewLink(bus, clk, sensor.DefaultConfig())
	act := pump.NewActuator(out, clk, pump.DefaultConfig(pinValve))
	sys := state.Load(config.NewMemStore(), testPins)
	return &rig{
		ctrl: New(link, act, sys, clk, DefaultConfig()),
		bus:  bus,
		out:  out,
		clk:  clk,
		link: link,
		sys:  sys,
		act:  act,
	}
}

// level queues one frame with k wet segments (5% each).
func (r *rig) level(k int) {
	r.bus.ScriptSegments(sensor.DefaultLowAddr, sensor.DefaultHighAddr, k)
}

func TestPollInBand(t *testing.T) {
	r := newRig()
	r.level(10)

	res, events := r.ctrl.Poll()
	if res.Error != logic.ErrNone || res.Level != 50 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(events) != 0 || len(r.out.Writes) != 0 {
		t.Errorf("in-band level caused activity: %v %v", events, r.out.Writes)
	}
}

func TestPollSensorTimeoutsNoWrites(t *testing.T) {
	r := newRig()
	r.level(2) // 10%, would start the inlet
	r.ctrl.Poll()
	r.out.Reset()

	r.bus.Reset()
	r.bus.Script(sensor.DefaultLowAddr, sensor.Reply{Data: nil})

	for i := 0; i < 3; i++ {
		res, events := r.ctrl.Poll()
		if res.Error != logic.ErrSensorTimeout {
			t.Errorf("poll %d: got %s, want SENSOR_TIMEOUT", i, res.Error)
		}
		if len(events) != 0 {
			t.Errorf("poll %d: unexpected events %v", i, events)
		}
	}
	if r.link.IsConnected() {
		t.Error("link must report disconnected after timeouts")
	}
	if len(r.out.Writes) != 0 {
		t.Errorf("expected zero pin writes, got %v", r.out.Writes)
	}
}

func TestPollInletHysteresis(t *testing.T) {
	r := newRig()

	r.level(4) // 20%, below 30-5
	res, events := r.ctrl.Poll()
	if !res.InletActive {
		t.Fatal("inlet should be active at 20%")
	}
	if len(events) != 1 || events[0].Type != logic.EventInletOn {
		t.Errorf("events: %v", events)
	}
	if w := r.out.WritesTo(pinInlet); len(w) != 2 {
		t.Errorf("inlet writes: %v", w)
	}

	// 30% is past the raw threshold but inside the margin: keep filling.
	r.out.Reset()
	r.level(6)
	res, _ = r.ctrl.Poll()
	if !res.InletActive {
		t.Error("inlet released before low+margin")
	}
	if len(r.out.WritesTo(pinInlet)) == 0 {
		t.Error("active inlet should keep running")
	}

	r.out.Reset()
	r.level(7) // 35%
	res, events = r.ctrl.Poll()
	if res.InletActive {
		t.Error("inlet should release at 35%")
	}
	if len(events) != 1 || events[0].Type != logic.EventInletOff {
		t.Errorf("events: %v", events)
	}
	if len(r.out.Writes) != 0 {
		t.Errorf("no pump should run after release: %v", r.out.Writes)
	}
}

func TestPollOutlet(t *testing.T) {
	r := newRig()
	r.level(16) // 80%, above 70+5

	res, _ := r.ctrl.Poll()
	if !res.OutletActive || res.InletActive {
		t.Fatalf("unexpected result %+v", res)
	}
	want := []gpio.Write{
		{Pin: pinValve, On: true},
		{Pin: pinOutlet, On: true},
		{Pin: pinOutlet, On: false},
		{Pin: pinValve, On: false},
	}
	if len(r.out.Writes) != len(want) {
		t.Fatalf("writes: %v", r.out.Writes)
	}
	for i := range want {
		if r.out.Writes[i] != want[i] {
			t.Errorf("write %d: got %v, want %v", i, r.out.Writes[i], want[i])
		}
	}
	// 1000ms + 100ms * (80-70)
	if got := r.act.Runtime(pinOutlet); got != 2*time.Second {
		t.Errorf("outlet runtime %v, want 2s", got)
	}
}

func TestPollManualModeSkipsDirection(t *testing.T) {
	r := newRig()
	r.sys.SetModes(logic.Modes{InletAuto: false, OutletAuto: true})
	r.level(2)

	res, _ := r.ctrl.Poll()
	if res.InletActive || len(r.out.Writes) != 0 {
		t.Errorf("manual inlet was driven: %+v %v", res, r.out.Writes)
	}
}

func TestPollErrorKeepsLatch(t *testing.T) {
	r := newRig()
	r.level(2)
	r.ctrl.Poll()

	r.bus.Reset()
	r.bus.Script(sensor.DefaultLowAddr, sensor.Reply{Data: make([]byte, 8)})
	r.bus.Script(sensor.DefaultHighAddr, sensor.Reply{Data: make([]byte, 12)})

	res, _ := r.ctrl.Poll()
	if res.Error != logic.ErrSensorInvalidData {
		t.Fatalf("got %s, want SENSOR_INVALID_DATA", res.Error)
	}
	if !res.InletActive {
		t.Error("sensor error must not clear the latch")
	}
	if res.Level != 10 {
		t.Errorf("level should hold the last good value, got %d", res.Level)
	}
}

func TestEmergencyStop(t *testing.T) {
	r := newRig()
	r.out.Set(pinInlet, true)
	r.out.Set(pinOutlet, true)
	r.out.Set(pinValve, true)

	if err := r.ctrl.EmergencyStop(); err != nil {
		t.Fatal(err)
	}
	for _, pin := range []int{pinInlet, pinOutlet, pinValve} {
		if r.out.On(pin) {
			t.Errorf("pin %d left on", pin)
		}
	}
	if len(r.out.WritesTo(5)) != 0 {
		t.Error("emergency stop should only touch let-pumps and valve")
	}
}

// stubActuator returns canned reports.
type stubActuator struct {
	report pump.Report
	err    error
	runs   int
}

func (s *stubActuator) Run(pin int, d time.Duration) (pump.Report, error) {
	s.runs++
	r := s.report
	r.Pin = pin
	return r, s.err
}
func (s *stubActuator) EmergencyStop(...int) error { return nil }
func (s *stubActuator) ResetStatistics()           {}
func (s *stubActuator) Limit() time.Duration       { return logic.DefaultPumpLimit }

func TestPollReportsPumpTimeout(t *testing.T) {
	clk := clock.NewFake(start)
	bus := sensor.NewFakeBus()
	bus.ScriptSegments(sensor.DefaultLowAddr, sensor.DefaultHighAddr, 2)
	act := &stubActuator{report: pump.Report{TimedOut: true}}
	ctrl := New(sensor.NewLink(bus, clk, sensor.DefaultConfig()), act, state.Load(config.NewMemStore(), testPins), clk, DefaultConfig())

	res, _ := ctrl.Poll()
	if res.Error != logic.ErrPumpTimeout {
		t.Errorf("got %s, want PUMP_TIMEOUT", res.Error)
	}
}

func TestPollBusyIsNotAnError(t *testing.T) {
	clk := clock.NewFake(start)
	bus := sensor.NewFakeBus()
	bus.ScriptSegments(sensor.DefaultLowAddr, sensor.DefaultHighAddr, 2)
	act := &stubActuator{err: pump.ErrBusy}
	ctrl := New(sensor.NewLink(bus, clk, sensor.DefaultConfig()), act, state.Load(config.NewMemStore(), testPins), clk, DefaultConfig())

	res, _ := ctrl.Poll()
	if res.Error != logic.ErrNone {
		t.Errorf("busy gate reported as %s", res.Error)
	}
	if act.runs != 1 {
		t.Errorf("runs = %d", act.runs)
	}
}

func TestCommands(t *testing.T) {
	r := newRig()

	if err := r.ctrl.Submit(Command{Kind: CommandRun, Pump: 1, Duration: 3 * time.Second}); err != nil {
		t.Fatal(err)
	}
	cmd := <-r.ctrl.Commands()
	if _, err := r.ctrl.Execute(cmd); err != nil {
		t.Fatal(err)
	}
	if got := r.act.Runtime(6); got != 3*time.Second {
		t.Errorf("manual run runtime %v", got)
	}

	if _, err := r.ctrl.Execute(Command{Kind: CommandResetStats}); err != nil {
		t.Fatal(err)
	}
	if r.act.Runtime(6) != 0 {
		t.Error("stats not reset")
	}

	if _, err := r.ctrl.Execute(Command{Kind: CommandRun, Pump: 9}); !errors.Is(err, state.ErrUnknownPump) {
		t.Errorf("unknown pump: got %v", err)
	}

	r.out.Reset()
	if _, err := r.ctrl.Execute(Command{Kind: CommandStop}); err != nil {
		t.Fatal(err)
	}
	if len(r.out.Writes) != 6 {
		t.Errorf("stop should switch off 5 pumps and the valve: %v", r.out.Writes)
	}
}

func TestSubmitQueueFull(t *testing.T) {
	r := newRig()
	for i := 0; i < DefaultConfig().QueueSize; i++ {
		if err := r.ctrl.Submit(Command{Kind: CommandResetStats}); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	if err := r.ctrl.Submit(Command{Kind: CommandResetStats}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("got %v, want ErrQueueFull", err)
	}
}
