package logic

import (
	"testing"
	"time"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestHysteresis() *Hysteresis {
	return NewHysteresis(DefaultMargin, DefaultPumpLimit)
}

func TestHysteresisStartsIdle(t *testing.T) {
	h := newTestHysteresis()
	if h.State(Inlet) != StateIdle || h.State(Outlet) != StateIdle {
		t.Errorf("expected both directions idle, got inlet=%s outlet=%s", h.State(Inlet), h.State(Outlet))
	}
}

func TestHysteresisInBandDoesNothing(t *testing.T) {
	h := newTestHysteresis()
	th := Thresholds{Low: 30, High: 70}

	for _, level := range []int{25, 30, 50, 70, 75} {
		actions, events := h.Step(level, th, AutoModes(), t0)
		if len(actions) != 0 || len(events) != 0 {
			t.Errorf("level %d: expected no actions/events, got %d/%d", level, len(actions), len(events))
		}
	}
}

func TestHysteresisInletCycle(t *testing.T) {
	h := newTestHysteresis()
	th := Thresholds{Low: 30, High: 70}

	actions, events := h.Step(24, th, AutoModes(), t0)
	if h.State(Inlet) != StateActive {
		t.Fatal("level 24 should activate inlet")
	}
	if len(events) != 1 || events[0].Type != EventInletOn {
		t.Fatalf("expected INLET_ON, got %v", events)
	}
	if len(actions) != 1 || actions[0].Direction != Inlet {
		t.Fatalf("expected one inlet action, got %v", actions)
	}
	if actions[0].Duration != 1600*time.Millisecond {
		t.Errorf("duration: got %v, want 1.6s", actions[0].Duration)
	}

	// Above the raw threshold but inside the margin: still active.
	for _, level := range []int{28, 31, 34} {
		actions, events = h.Step(level, th, AutoModes(), t0)
		if h.State(Inlet) != StateActive {
			t.Fatalf("level %d: inlet should stay active", level)
		}
		if len(events) != 0 {
			t.Errorf("level %d: expected no events, got %v", level, events)
		}
		if len(actions) != 1 {
			t.Errorf("level %d: expected a continued run, got %d actions", level, len(actions))
		}
	}

	actions, events = h.Step(35, th, AutoModes(), t0)
	if h.State(Inlet) != StateIdle {
		t.Fatal("level 35 should release inlet")
	}
	if len(actions) != 0 {
		t.Errorf("expected no action on release, got %v", actions)
	}
	if len(events) != 1 || events[0].Type != EventInletOff {
		t.Errorf("expected INLET_OFF, got %v", events)
	}

	// Dropping below the threshold again does not retrigger until past the margin.
	actions, _ = h.Step(26, th, AutoModes(), t0)
	if len(actions) != 0 || h.State(Inlet) != StateIdle {
		t.Error("level 26 should not retrigger inlet")
	}
}

func TestHysteresisOutletCycle(t *testing.T) {
	h := newTestHysteresis()
	th := Thresholds{Low: 30, High: 70}

	actions, events := h.Step(80, th, AutoModes(), t0)
	if h.State(Outlet) != StateActive {
		t.Fatal("level 80 should activate outlet")
	}
	if len(events) != 1 || events[0].Type != EventOutletOn {
		t.Fatalf("expected OUTLET_ON, got %v", events)
	}
	if len(actions) != 1 || actions[0].Direction != Outlet || actions[0].Duration != 2*time.Second {
		t.Fatalf("unexpected actions %v", actions)
	}

	h.Step(66, th, AutoModes(), t0)
	if h.State(Outlet) != StateActive {
		t.Error("level 66 is inside the margin, outlet should stay active")
	}

	_, events = h.Step(65, th, AutoModes(), t0)
	if h.State(Outlet) != StateIdle {
		t.Error("level 65 should release outlet")
	}
	if len(events) != 1 || events[0].Type != EventOutletOff {
		t.Errorf("expected OUTLET_OFF, got %v", events)
	}
}

func TestHysteresisManualModeReleases(t *testing.T) {
	h := newTestHysteresis()
	th := Thresholds{Low: 30, High: 70}

	h.Step(10, th, AutoModes(), t0)
	actions, events := h.Step(10, th, Modes{InletAuto: false, OutletAuto: true}, t0)

	if h.State(Inlet) != StateIdle {
		t.Error("manual mode should force inlet idle")
	}
	if len(actions) != 0 {
		t.Errorf("manual mode should not actuate, got %v", actions)
	}
	if len(events) != 1 || events[0].Type != EventInletOff {
		t.Errorf("expected INLET_OFF on switch to manual, got %v", events)
	}
}

func TestPumpDuration(t *testing.T) {
	tests := []struct {
		level, target int
		want          time.Duration
	}{
		{30, 30, time.Second},
		{20, 30, 2 * time.Second},
		{90, 70, 3 * time.Second},
		{0, 100, 11 * time.Second},
	}
	for _, tt := range tests {
		if got := PumpDuration(tt.level, tt.target, DefaultPumpLimit); got != tt.want {
			t.Errorf("PumpDuration(%d, %d): got %v, want %v", tt.level, tt.target, got, tt.want)
		}
	}

	if got := PumpDuration(0, 100, 5*time.Second); got != 5*time.Second {
		t.Errorf("expected clamp to 5s, got %v", got)
	}
}

func TestThresholdsValid(t *testing.T) {
	tests := []struct {
		th   Thresholds
		want bool
	}{
		{Thresholds{30, 70}, true},
		{Thresholds{0, 100}, true},
		{Thresholds{50, 50}, false},
		{Thresholds{70, 30}, false},
		{Thresholds{-1, 50}, false},
		{Thresholds{10, 101}, false},
	}
	for _, tt := range tests {
		if got := tt.th.Valid(); got != tt.want {
			t.Errorf("%+v: got %v, want %v", tt.th, got, tt.want)
		}
	}

	if got := (Thresholds{70, 30}).OrDefault(); got != DefaultThresholds() {
		t.Errorf("expected default fallback, got %+v", got)
	}
}
