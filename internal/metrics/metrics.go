// Package metrics exports controller state as Prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sweeney/tank-controller/internal/logic"
)

const prefix = "tank_"

// Metrics bundles the controller collectors.
type Metrics struct {
	Level           prometheus.Gauge
	SensorConnected prometheus.Gauge
	DirectionActive *prometheus.GaugeVec
	PollErrors      *prometheus.CounterVec
	Events          *prometheus.CounterVec
	PumpRuntime     *prometheus.GaugeVec
	MQTTQueued      prometheus.Gauge
}

// New constructs the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Level: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "water_level_percent",
			Help: "Water level from the last good sensor read",
		}),
		SensorConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "sensor_connected",
			Help: "1 if the sensor link delivered a recent valid frame",
		}),
		DirectionActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: prefix + "direction_active",
				Help: "1 while automatic control of a direction is engaged",
			},
			[]string{"direction"},
		),
		PollErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "poll_errors_total",
				Help: "Control passes that ended in an error, by error",
			},
			[]string{"error"},
		),
		Events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "events_total",
				Help: "Published control events by type",
			},
			[]string{"event"},
		),
		PumpRuntime: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: prefix + "pump_runtime_seconds",
				Help: "Cumulative pump run time since the last statistics reset",
			},
			[]string{"pump", "role"},
		),
		MQTTQueued: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "mqtt_queued_messages",
			Help: "Messages waiting for the broker connection",
		}),
	}
	reg.MustRegister(
		m.Level,
		m.SensorConnected,
		m.DirectionActive,
		m.PollErrors,
		m.Events,
		m.PumpRuntime,
		m.MQTTQueued,
	)
	return m
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// ObservePoll records one control pass.
func (m *Metrics) ObservePoll(res logic.Result, connected bool) {
	if res.Error != logic.ErrNone {
		m.PollErrors.WithLabelValues(res.Error.String()).Inc()
	}
	if !res.Error.IsSensor() {
		m.Level.Set(float64(res.Level))
	}
	m.SensorConnected.Set(boolGauge(connected))
	m.DirectionActive.WithLabelValues(string(logic.Inlet)).Set(boolGauge(res.InletActive))
	m.DirectionActive.WithLabelValues(string(logic.Outlet)).Set(boolGauge(res.OutletActive))
}

// ObserveEvents counts published events.
func (m *Metrics) ObserveEvents(events []logic.Event) {
	for _, e := range events {
		m.Events.WithLabelValues(string(e.Type)).Inc()
	}
}

// SetPumpRuntime records the cumulative run time of a pump channel.
func (m *Metrics) SetPumpRuntime(index int, role string, d time.Duration) {
	m.PumpRuntime.WithLabelValues(strconv.Itoa(index), role).Set(d.Seconds())
}

// SetMQTTQueued records the MQTT backlog length.
func (m *Metrics) SetMQTTQueued(n int) {
	m.MQTTQueued.Set(float64(n))
}
