// Package status provides a thread-safe status tracker for the tank-controller
// daemon. The control loop writes it; HTTP handlers and MQTT snapshots read it.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/tank-controller/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs      int64
	HeartbeatMs int64
	PumpLimitMs int64
	Margin      int
	Broker      string
	HTTPPort    string
}

// PumpStatus describes one pump channel.
type PumpStatus struct {
	Index        int
	Role         string
	Pin          int
	Runtime      time.Duration
	AmountMl     uint16
	IntervalDays uint32
	LastDose     time.Time // zero if never dosed
	NextDose     time.Time // zero if disabled
}

// Settings are the user-editable values shown on the status page.
type Settings struct {
	Thresholds logic.Thresholds
	Modes      logic.Modes
	Language   int
	TankVolume uint32
	TimeOffset int64
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Result          logic.Result
	Polled          bool
	LastPoll        time.Time
	SensorConnected bool
	Mask            uint32
	Counts          logic.EventCounts
	Pumps           []PumpStatus
	Settings        Settings
	StartTime       time.Time
	Now             time.Time
	MQTTConnected   bool
	Network         *NetworkInfo
	Config          Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Lines returns the localized status display lines.
func (s Snapshot) Lines() (string, string) {
	return Lines(s.Result, s.Settings.Language)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
			Settings:  Settings{Thresholds: logic.DefaultThresholds(), Modes: logic.AutoModes(), Language: 1},
		},
		now: time.Now,
	}
}

// UpdatePoll records the result of a control pass.
func (t *Tracker) UpdatePoll(at time.Time, res logic.Result, connected bool, mask uint32, counts logic.EventCounts) {
	t.mu.Lock()
	t.snap.Result = res
	t.snap.Polled = true
	t.snap.LastPoll = at
	t.snap.SensorConnected = connected
	t.snap.Mask = mask
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetPumps replaces the pump channel list.
func (t *Tracker) SetPumps(pumps []PumpStatus) {
	cp := make([]PumpStatus, len(pumps))
	copy(cp, pumps)
	t.mu.Lock()
	t.snap.Pumps = cp
	t.mu.Unlock()
}

// SetSettings records the current user settings.
func (t *Tracker) SetSettings(s Settings) {
	t.mu.Lock()
	t.snap.Settings = s
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Pumps = append([]PumpStatus(nil), s.Pumps...)
	s.Now = t.now()
	return s
}
