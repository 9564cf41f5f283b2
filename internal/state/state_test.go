package state

import (
	"errors"
	"testing"
	"time"

	"github.com/sweeney/tank-controller/internal/config"
	"github.com/sweeney/tank-controller/internal/logic"
)

var testPins = Pins{Dosing: [3]int{5, 6, 13}, Inlet: 17, Outlet: 27}

func TestLoadDefaultsWithoutWriteBack(t *testing.T) {
	store := config.NewMemStore()
	s := Load(store, testPins)

	if s.Thresholds() != logic.DefaultThresholds() {
		t.Errorf("thresholds: got %+v", s.Thresholds())
	}
	if store.Saves != 0 {
		t.Errorf("defaults written back %d times", store.Saves)
	}
	if s.Modes() != logic.AutoModes() {
		t.Errorf("modes: got %+v", s.Modes())
	}
}

func TestLoadInvalidRecordUsesDefaults(t *testing.T) {
	store := config.NewMemStore()
	bad := config.Default()
	bad.LowThreshold, bad.HighThreshold = 80, 20
	bad.TankVolume = 500
	store.Save(bad)
	store.Saves = 0

	s := Load(store, testPins)
	if s.Thresholds() != (logic.Thresholds{Low: 30, High: 70}) {
		t.Errorf("inverted thresholds not replaced: %+v", s.Thresholds())
	}
	if s.TankVolume() != config.Default().TankVolume {
		t.Errorf("invalid record partially applied: volume %d", s.TankVolume())
	}
	if store.Saves != 0 {
		t.Error("defaults must not be written back on load")
	}
}

func TestLoadFactoryResetRecord(t *testing.T) {
	store := config.NewMemStore()
	store.Save(config.FactoryReset())

	s := Load(store, testPins)
	if s.Configuration() != config.Default() {
		t.Errorf("got %+v, want defaults", s.Configuration())
	}
}

func TestPumpRoles(t *testing.T) {
	s := Load(config.NewMemStore(), testPins)
	want := []struct {
		role Role
		pin  int
	}{
		{RoleDosing, 5}, {RoleDosing, 6}, {RoleDosing, 13}, {RoleInlet, 17}, {RoleOutlet, 27},
	}
	for i, w := range want {
		p, err := s.Pump(i)
		if err != nil {
			t.Fatal(err)
		}
		if p.Role != w.role || p.Pin != w.pin {
			t.Errorf("pump %d: got %s/%d, want %s/%d", i, p.Role, p.Pin, w.role, w.pin)
		}
	}
	if _, err := s.Pump(5); !errors.Is(err, ErrUnknownPump) {
		t.Errorf("pump 5: got %v", err)
	}
	if s.DirectionPin(logic.Outlet) != 27 || s.DirectionPin(logic.Inlet) != 17 {
		t.Error("direction pins mismatch")
	}
}

func TestSetThresholds(t *testing.T) {
	store := config.NewMemStore()
	s := Load(store, testPins)

	tests := []struct {
		name    string
		set     func() error
		wantErr bool
		want    logic.Thresholds
	}{
		{"both", func() error { return s.SetThresholds(20, 80) }, false, logic.Thresholds{Low: 20, High: 80}},
		{"equal", func() error { return s.SetThresholds(50, 50) }, true, logic.Thresholds{Low: 20, High: 80}},
		{"low above high", func() error { return s.SetLow(85) }, true, logic.Thresholds{Low: 20, High: 80}},
		{"low", func() error { return s.SetLow(40) }, false, logic.Thresholds{Low: 40, High: 80}},
		{"high over 100", func() error { return s.SetHigh(101) }, true, logic.Thresholds{Low: 40, High: 80}},
		{"high", func() error { return s.SetHigh(100) }, false, logic.Thresholds{Low: 40, High: 100}},
		{"negative", func() error { return s.SetLow(-1) }, true, logic.Thresholds{Low: 40, High: 100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := store.Saves
			err := tt.set()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidThresholds) {
					t.Errorf("got %v, want ErrInvalidThresholds", err)
				}
				if store.Saves != before {
					t.Error("rejected change was persisted")
				}
			} else {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if store.Saves != before+1 {
					t.Error("change not persisted")
				}
			}
			if s.Thresholds() != tt.want {
				t.Errorf("thresholds: got %+v, want %+v", s.Thresholds(), tt.want)
			}
		})
	}
}

func TestLetPumpNotEditable(t *testing.T) {
	store := config.NewMemStore()
	s := Load(store, testPins)

	for _, i := range []int{config.PumpInlet, config.PumpOutlet} {
		if err := s.SetPumpAmount(i, 10); !errors.Is(err, ErrNotEditable) {
			t.Errorf("amount on pump %d: got %v", i, err)
		}
		if err := s.SetPumpInterval(i, 1); !errors.Is(err, ErrNotEditable) {
			t.Errorf("interval on pump %d: got %v", i, err)
		}
		if err := s.RecordDose(i, 100, time.Second); !errors.Is(err, ErrNotEditable) {
			t.Errorf("dose on pump %d: got %v", i, err)
		}
	}
	if store.Saves != 0 {
		t.Errorf("rejected edits persisted %d times", store.Saves)
	}
}

func TestDosingEditsPersist(t *testing.T) {
	store := config.NewMemStore()
	s := Load(store, testPins)

	if err := s.SetPumpAmount(1, 50); err != nil {
		t.Fatal(err)
	}
	if err := s.SetPumpInterval(1, 2); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordDose(1, 1767225600, 25*time.Second); err != nil {
		t.Fatal(err)
	}

	// A fresh load sees the stored values.
	reloaded := Load(store, testPins)
	p, _ := reloaded.Pump(1)
	want := logic.DosingConfig{AmountMl: 50, IntervalDays: 2, LastDose: 1767225600, Duration: 25 * time.Second}
	if p.Dosing != want {
		t.Errorf("reloaded dosing: got %+v, want %+v", p.Dosing, want)
	}
}

func TestSettersPersist(t *testing.T) {
	store := config.NewMemStore()
	s := Load(store, testPins)

	if err := s.SetLanguage(4); err != nil {
		t.Fatal(err)
	}
	if err := s.SetLanguage(LanguageCount); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("language out of range: got %v", err)
	}
	if err := s.SetTankVolume(250); err != nil {
		t.Fatal(err)
	}
	if err := s.SetTimeOffset(-7200); err != nil {
		t.Fatal(err)
	}
	if err := s.SetTimeOffset(config.UnsetI64); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("sentinel offset: got %v", err)
	}
	if err := s.SetModes(logic.Modes{InletAuto: true, OutletAuto: false}); err != nil {
		t.Fatal(err)
	}

	cfg, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if !config.IsValid(cfg) {
		t.Fatal("persisted record is not valid")
	}
	if cfg.LanguageIndex != 4 || cfg.TankVolume != 250 || cfg.TimeOffset != -7200 {
		t.Errorf("unexpected record %+v", cfg)
	}
	if cfg.InletMode != config.ModeAuto || cfg.OutletMode != config.ModeManual {
		t.Errorf("modes: inlet %d outlet %d", cfg.InletMode, cfg.OutletMode)
	}
}

func TestSaveFailureReported(t *testing.T) {
	store := config.NewMemStore()
	store.SaveFn = func(config.Configuration) error { return errors.New("disk full") }
	s := Load(store, testPins)

	if err := s.SetTankVolume(10); err == nil {
		t.Error("expected persist error")
	}
}

func TestFactoryReset(t *testing.T) {
	store := config.NewMemStore()
	s := Load(store, testPins)
	s.SetThresholds(10, 90)
	s.SetPumpAmount(0, 20)

	if err := s.FactoryReset(); err != nil {
		t.Fatal(err)
	}
	if s.Thresholds() != logic.DefaultThresholds() {
		t.Errorf("thresholds after reset: %+v", s.Thresholds())
	}
	cfg, _ := store.Load()
	if cfg != config.FactoryReset() {
		t.Error("store does not hold the unset record")
	}
}

func TestDosingClock(t *testing.T) {
	s := Load(config.NewMemStore(), testPins)
	now := time.Unix(1767225600, 0)
	if got := s.DosingClock(now); got != 1767225600 {
		t.Errorf("no offset: got %d", got)
	}
	s.SetTimeOffset(3600)
	if got := s.DosingClock(now); got != 1767229200 {
		t.Errorf("with offset: got %d", got)
	}
}
