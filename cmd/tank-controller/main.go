// Command tank-controller keeps an aquarium at its target water level, runs
// the dosing pumps on schedule and publishes what it does to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/tank-controller/internal/clock"
	"github.com/sweeney/tank-controller/internal/config"
	"github.com/sweeney/tank-controller/internal/control"
	"github.com/sweeney/tank-controller/internal/dosing"
	"github.com/sweeney/tank-controller/internal/gpio"
	"github.com/sweeney/tank-controller/internal/logic"
	"github.com/sweeney/tank-controller/internal/metrics"
	"github.com/sweeney/tank-controller/internal/mqtt"
	"github.com/sweeney/tank-controller/internal/pump"
	"github.com/sweeney/tank-controller/internal/sensor"
	"github.com/sweeney/tank-controller/internal/state"
	"github.com/sweeney/tank-controller/internal/status"
	"github.com/sweeney/tank-controller/internal/web"
)

func main() {
	opts, err := parseArgs(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	if err := run(opts); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func openStore(path string) (config.Store, func(), error) {
	if path == "" {
		log.Printf("config: no database path, settings will not survive a restart")
		return config.NewMemStore(), func() {}, nil
	}
	db, err := config.OpenBolt(path)
	if err != nil {
		return nil, nil, err
	}
	return db, func() { db.Close() }, nil
}

func run(opts options) error {
	s := opts.settings

	store, closeStore, err := openStore(s.DB)
	if err != nil {
		return fmt.Errorf("open config store: %w", err)
	}
	defer closeStore()

	statePins := state.Pins{Inlet: s.Pins.Inlet, Outlet: s.Pins.Outlet}
	copy(statePins.Dosing[:], s.Pins.Dosing)
	sys := state.Load(store, statePins)

	if opts.factoryReset {
		if err := sys.FactoryReset(); err != nil {
			return fmt.Errorf("factory reset: %w", err)
		}
		fmt.Println("configuration reset; defaults apply on next start")
		return nil
	}

	// Initialize sensor link
	bus, err := sensor.NewI2CBus()
	if err != nil {
		return fmt.Errorf("init sensor: %w", err)
	}
	defer bus.Close()

	clk := clock.Real{}
	link := sensor.NewLink(bus, clk, sensor.Config{
		LowAddr:  s.Sensor.LowAddr,
		HighAddr: s.Sensor.HighAddr,
		Timeout:  s.Sensor.Timeout,
	})

	if opts.printState {
		return printState(link, s.Sensor.TouchThreshold)
	}
	if opts.calibrate != "" {
		return calibrate(link, opts.calibrate)
	}

	// Initialize GPIO outputs, all off
	pins := append([]int{s.Pins.Inlet, s.Pins.Outlet, s.Pins.Valve}, s.Pins.Dosing...)
	out, err := gpio.NewRealWriter(s.GPIOChip, pins)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer out.Close()

	act := pump.NewActuator(out, clk, pump.Config{
		ValvePin:     s.Pins.Valve,
		Limit:        s.Pump.Limit,
		Settle:       s.Pump.Settle,
		PollInterval: pump.DefaultPollInterval,
	})
	ctrl := control.New(link, act, sys, clk, control.Config{
		Margin:         s.Pump.Margin,
		TouchThreshold: s.Sensor.TouchThreshold,
	})
	sched, err := dosing.New(sys, act, dosing.Config{FlowRate: s.Dosing.FlowRate, CheckSpec: s.Dosing.Check})
	if err != nil {
		return err
	}

	// Initialize MQTT
	publisher := mqtt.NewRealPublisher(s.Broker, s.ClientID, s.Backlog)
	defer publisher.Close()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	// Initialize status tracker (before STARTUP so snapshot is available)
	startTime := time.Now()
	tracker := status.NewTracker(startTime, status.Config{
		PollMs:      s.Poll.Milliseconds(),
		HeartbeatMs: s.Heartbeat.Milliseconds(),
		PumpLimitMs: s.Pump.Limit.Milliseconds(),
		Margin:      s.Pump.Margin,
		Broker:      s.Broker,
		HTTPPort:    s.HTTP,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	d := &service{
		ctrl:       ctrl,
		sched:      sched,
		act:        act,
		sys:        sys,
		sensor:     link,
		health:     logic.NewHealth(s.Sensor.StopAfter, startTime),
		publisher:  publisher,
		mqttStatus: publisher,
		tracker:    tracker,
		metrics:    m,
		heartbeat:  s.Heartbeat,
		threshold:  s.Sensor.TouchThreshold,
		notify:     sdNotify,
	}
	d.refresh(startTime)

	// Publish startup event with full status snapshot
	d.publishSystem(startTime, "STARTUP", "")

	// Start HTTP status server
	if s.HTTP != "" {
		handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
		srv := web.New(s.HTTP, tracker, ctrl, handler)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", s.HTTP)
	}

	if interval, err := daemon.SdWatchdogEnabled(false); err == nil && interval > 0 {
		d.watchdog = true
		if s.Poll >= interval/2 {
			log.Printf("systemd: watchdog interval %v is short for poll %v", interval, s.Poll)
		}
	}

	log.Printf("started: poll=%v broker=%s heartbeat=%v limit=%v margin=%d",
		s.Poll, s.Broker, s.Heartbeat, s.Pump.Limit, s.Pump.Margin)
	sdNotify(daemon.SdNotifyReady)

	ticker := time.NewTicker(s.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	err = runLoop(d, time.Now, ticker.C, sigCh)
	sdNotify(daemon.SdNotifyStopping)
	if stopErr := ctrl.StopAll(); stopErr != nil {
		log.Printf("stop pumps: %v", stopErr)
	}
	return err
}

func sdNotify(state string) {
	if _, err := daemon.SdNotify(false, state); err != nil {
		log.Printf("systemd: notify %s: %v", state, err)
	}
}

func printState(link *sensor.Link, threshold byte) error {
	frame, werr := link.Read()
	if werr != logic.ErrNone {
		return fmt.Errorf("read sensor: %s", werr)
	}
	fmt.Printf("level: %d%%\n", logic.Level(frame, threshold))
	fmt.Printf("mask:  %020b\n", frame.Mask(threshold))
	fmt.Printf("low:   %v\nhigh:  %v\n", frame.Low, frame.High)
	return nil
}

func calibrate(link *sensor.Link, which string) error {
	ladder := sensor.LowLadder
	if which == "high" {
		ladder = sensor.HighLadder
	}
	ref, werr := link.Calibrate(ladder)
	if werr != logic.ErrNone {
		return fmt.Errorf("calibrate %s: %s", ladder, werr)
	}
	fmt.Printf("%s reference: %v\n", ladder, ref)
	return nil
}

// backlogger is implemented by publishers that queue while offline.
type backlogger interface {
	Backlog() (queued, dropped int)
}

// service bundles what the control loop drives.
type service struct {
	ctrl       *control.Controller
	sched      *dosing.Scheduler
	act        *pump.Actuator
	sys        *state.System
	sensor     control.Sensor
	health     *logic.Health
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	metrics    *metrics.Metrics
	heartbeat  time.Duration
	threshold  byte
	watchdog   bool
	notify     func(state string)

	counts logic.EventCounts
}

// runLoop is the only goroutine that touches the pumps. Manual commands from
// the HTTP server arrive through the controller's queue.
func runLoop(d *service, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			d.publishSystem(now(), "SHUTDOWN", signalName)
			return nil

		case cmd := <-d.ctrl.Commands():
			log.Printf("command: %s pump=%d duration=%v", cmd.Kind, cmd.Pump, cmd.Duration)
			events, err := d.ctrl.Execute(cmd)
			if err != nil {
				log.Printf("command %s: %v", cmd.Kind, err)
			}
			d.publish(events)
			d.refresh(now())

		case <-tick:
			d.poll(now())
		}
	}
}

// poll runs one control pass: sense, actuate, dose, publish.
func (d *service) poll(t time.Time) {
	res, events := d.ctrl.Poll()

	healthEvents, stop := d.health.Observe(res.Error, t)
	for i := range healthEvents {
		healthEvents[i].Level = res.Level
	}
	events = append(events, healthEvents...)
	if stop {
		log.Printf("emergency stop after %d failed polls (%s)", d.health.Consecutive(), res.Error)
		if err := d.ctrl.EmergencyStop(); err != nil {
			log.Printf("emergency stop: %v", err)
		}
	}

	events = append(events, d.sched.Tick(t, res.Error)...)
	d.publish(events)

	connected := d.sensor.IsConnected()
	var mask uint32
	if frame, ok := d.ctrl.LastFrame(); ok {
		mask = frame.Mask(d.threshold)
	}
	if d.metrics != nil {
		d.metrics.ObservePoll(res, connected)
	}
	if d.tracker != nil {
		d.tracker.UpdatePoll(t, res, connected, mask, d.counts)
	}
	d.refresh(t)

	// Check for heartbeat
	if hb := d.health.CheckHeartbeat(t, d.heartbeat); hb != nil {
		log.Printf("heartbeat: uptime=%v level=%d%% inlet_on=%d outlet_on=%d doses=%d sensor_errors=%d",
			hb.Uptime, res.Level, d.counts.InletOn, d.counts.OutletOn, d.counts.Doses, d.counts.SensorErrors)
		if d.tracker != nil {
			// Refresh network info for heartbeat
			if net := readNetworkInfo(); net != nil {
				d.tracker.SetNetwork(net)
			}
		}
		d.publishSystem(hb.Timestamp, "HEARTBEAT", "")
	}

	if d.watchdog && d.notify != nil {
		d.notify(daemon.SdNotifyWatchdog)
	}
}

func (d *service) publish(events []logic.Event) {
	for _, event := range events {
		d.counts.Add(event.Type)
		log.Printf("event: %s level=%d%% error=%s", event.Type, event.Level, event.Error)
		if err := d.publisher.Publish(event); err != nil {
			log.Printf("publish error: %v", err)
			// Don't crash on publish failure
		}
	}
	if d.metrics != nil {
		d.metrics.ObserveEvents(events)
	}
}

// publishSystem sends a retained lifecycle message carrying a status
// snapshot.
func (d *service) publishSystem(t time.Time, event, reason string) {
	sys := mqtt.SystemEvent{
		Timestamp: t,
		Event:     event,
		Reason:    reason,
		Retained:  true,
	}
	if d.tracker != nil {
		if d.mqttStatus != nil {
			d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
		}
		sys.RawPayload = status.FormatStatusEvent(d.tracker.Snapshot(), event, reason)
	}
	if err := d.publisher.PublishSystem(sys); err != nil {
		log.Printf("failed to publish %s event: %v", event, err)
	} else if event != "HEARTBEAT" {
		log.Printf("published %s event", event)
	}
}

// refresh copies pump statistics and settings into the tracker and metrics.
func (d *service) refresh(t time.Time) {
	stats := d.act.Statistics()
	offset := d.sys.TimeOffset()

	pumps := d.sys.Pumps()
	out := make([]status.PumpStatus, len(pumps))
	for i, p := range pumps {
		ps := status.PumpStatus{
			Index:   p.Index,
			Role:    p.Role.String(),
			Pin:     p.Pin,
			Runtime: stats[p.Pin],
		}
		if p.Role == state.RoleDosing {
			ps.AmountMl = p.Dosing.AmountMl
			ps.IntervalDays = p.Dosing.IntervalDays
			if p.Dosing.LastDose != 0 {
				ps.LastDose = time.Unix(int64(p.Dosing.LastDose)-offset, 0)
			}
			if next := p.Dosing.NextDose(); next != 0 {
				ps.NextDose = time.Unix(int64(next)-offset, 0)
			}
		}
		out[i] = ps
		if d.metrics != nil {
			d.metrics.SetPumpRuntime(p.Index, ps.Role, ps.Runtime)
		}
	}

	if d.metrics != nil {
		if b, ok := d.publisher.(backlogger); ok {
			queued, _ := b.Backlog()
			d.metrics.SetMQTTQueued(queued)
		}
	}

	if d.tracker == nil {
		return
	}
	d.tracker.SetPumps(out)
	d.tracker.SetSettings(status.Settings{
		Thresholds: d.sys.Thresholds(),
		Modes:      d.sys.Modes(),
		Language:   d.sys.Language(),
		TankVolume: d.sys.TankVolume(),
		TimeOffset: offset,
	})
	if d.mqttStatus != nil {
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
