package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/tank-controller/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string        `json:"event,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Level         *int          `json:"level"`
	Error         string        `json:"error"`
	Inlet         DirectionJSON `json:"inlet"`
	Outlet        DirectionJSON `json:"outlet"`
	Sensor        SensorJSON    `json:"sensor"`
	Display       [2]string     `json:"display"`
	Thresholds    ThresholdJSON `json:"thresholds"`
	Pumps         []PumpJSON    `json:"pumps"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	MQTT          MQTTStatus    `json:"mqtt"`
	Counts        CountsJSON    `json:"event_counts"`
	Network       *NetworkJSON  `json:"network,omitempty"`
	Config        ConfigJSON    `json:"config"`
}

// DirectionJSON reports the control state of one let-pump direction.
type DirectionJSON struct {
	State string `json:"state"`
	Mode  string `json:"mode"`
}

// SensorJSON reports the sensor link.
type SensorJSON struct {
	Connected bool   `json:"connected"`
	LastPoll  string `json:"last_poll,omitempty"`
	Mask      uint32 `json:"mask"`
}

// ThresholdJSON is the configured band.
type ThresholdJSON struct {
	Low    int `json:"low"`
	High   int `json:"high"`
	Margin int `json:"margin"`
}

// PumpJSON describes one pump channel.
type PumpJSON struct {
	Index          int     `json:"index"`
	Role           string  `json:"role"`
	Pin            int     `json:"pin"`
	RuntimeSeconds float64 `json:"runtime_seconds"`
	AmountMl       uint16  `json:"amount_ml,omitempty"`
	IntervalDays   uint32  `json:"interval_days,omitempty"`
	LastDose       string  `json:"last_dose,omitempty"`
	NextDose       string  `json:"next_dose,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	InletOn      int `json:"inlet_on"`
	OutletOn     int `json:"outlet_on"`
	Doses        int `json:"doses"`
	SensorErrors int `json:"sensor_errors"`
	PumpTimeouts int `json:"pump_timeouts"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs      int64  `json:"poll_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	PumpLimitMs int64  `json:"pump_limit_ms"`
	Broker      string `json:"broker"`
	HTTPPort    string `json:"http_port"`
	Language    string `json:"language"`
	TankVolume  uint32 `json:"tank_volume_l"`
	TimeOffset  int64  `json:"time_offset_s"`
}

func directionJSON(active, auto bool) DirectionJSON {
	d := DirectionJSON{State: string(logic.StateIdle), Mode: "AUTO"}
	if active {
		d.State = string(logic.StateActive)
	}
	if !auto {
		d.Mode = "MANUAL"
	}
	return d
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func buildInner(snap Snapshot) StatusInner {
	res := snap.Result
	inner := StatusInner{
		Error:  res.Error.String(),
		Inlet:  directionJSON(res.InletActive, snap.Settings.Modes.InletAuto),
		Outlet: directionJSON(res.OutletActive, snap.Settings.Modes.OutletAuto),
		Sensor: SensorJSON{
			Connected: snap.SensorConnected,
			LastPoll:  formatTime(snap.LastPoll),
			Mask:      snap.Mask,
		},
		Thresholds: ThresholdJSON{
			Low:    snap.Settings.Thresholds.Low,
			High:   snap.Settings.Thresholds.High,
			Margin: snap.Config.Margin,
		},
		Pumps:         make([]PumpJSON, 0, len(snap.Pumps)),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			InletOn:      snap.Counts.InletOn,
			OutletOn:     snap.Counts.OutletOn,
			Doses:        snap.Counts.Doses,
			SensorErrors: snap.Counts.SensorErrors,
			PumpTimeouts: snap.Counts.PumpTimeouts,
		},
		Config: ConfigJSON{
			PollMs:      snap.Config.PollMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			PumpLimitMs: snap.Config.PumpLimitMs,
			Broker:      snap.Config.Broker,
			HTTPPort:    snap.Config.HTTPPort,
			Language:    LanguageName(snap.Settings.Language),
			TankVolume:  snap.Settings.TankVolume,
			TimeOffset:  snap.Settings.TimeOffset,
		},
	}
	if snap.Polled {
		level := res.Level
		inner.Level = &level
		inner.Display[0], inner.Display[1] = snap.Lines()
	}
	for _, p := range snap.Pumps {
		inner.Pumps = append(inner.Pumps, PumpJSON{
			Index:          p.Index,
			Role:           p.Role,
			Pin:            p.Pin,
			RuntimeSeconds: p.Runtime.Seconds(),
			AmountMl:       p.AmountMl,
			IntervalDays:   p.IntervalDays,
			LastDose:       formatTime(p.LastDose),
			NextDose:       formatTime(p.NextDose),
		})
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
