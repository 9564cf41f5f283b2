package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/tank-controller/internal/dosing"
	"github.com/sweeney/tank-controller/internal/gpio"
	"github.com/sweeney/tank-controller/internal/logic"
	"github.com/sweeney/tank-controller/internal/mqtt"
	"github.com/sweeney/tank-controller/internal/pump"
	"github.com/sweeney/tank-controller/internal/sensor"
)

// settings is the daemon configuration. Defaults come first, then the YAML
// file named by -config, then any flag given explicitly on the command line.
type settings struct {
	Poll      time.Duration `yaml:"poll"`
	Heartbeat time.Duration `yaml:"heartbeat"`
	Broker    string        `yaml:"broker"`
	ClientID  string        `yaml:"client_id"`
	Backlog   int           `yaml:"mqtt_backlog"`
	HTTP      string        `yaml:"http"`
	DB        string        `yaml:"db"`
	GPIOChip  string        `yaml:"gpio_chip"`

	Pins   pinSettings    `yaml:"pins"`
	Sensor sensorSettings `yaml:"sensor"`
	Pump   pumpSettings   `yaml:"pump"`
	Dosing dosingSettings `yaml:"dosing"`
}

type pinSettings struct {
	Inlet  int   `yaml:"inlet"`
	Outlet int   `yaml:"outlet"`
	Valve  int   `yaml:"valve"`
	Dosing []int `yaml:"dosing"`
}

type sensorSettings struct {
	LowAddr        byte          `yaml:"low_addr"`
	HighAddr       byte          `yaml:"high_addr"`
	Timeout        time.Duration `yaml:"timeout"`
	TouchThreshold byte          `yaml:"touch_threshold"`
	StopAfter      int           `yaml:"stop_after"`
}

type pumpSettings struct {
	Limit  time.Duration `yaml:"limit"`
	Settle time.Duration `yaml:"settle"`
	Margin int           `yaml:"margin"`
}

type dosingSettings struct {
	FlowRate int    `yaml:"flow_rate"`
	Check    string `yaml:"check"`
}

func defaultSettings() settings {
	return settings{
		Poll:      time.Second,
		Heartbeat: 15 * time.Minute,
		Broker:    "tcp://192.168.1.200:1883",
		ClientID:  "tank-controller",
		Backlog:   mqtt.DefaultBacklog,
		HTTP:      ":80",
		DB:        "/var/lib/tank-controller/config.db",
		GPIOChip:  "gpiochip0",
		Pins: pinSettings{
			Inlet:  gpio.DefaultPinInlet,
			Outlet: gpio.DefaultPinOutlet,
			Valve:  gpio.DefaultPinValve,
			Dosing: append([]int(nil), gpio.DefaultDosingPins...),
		},
		Sensor: sensorSettings{
			LowAddr:        sensor.DefaultLowAddr,
			HighAddr:       sensor.DefaultHighAddr,
			Timeout:        sensor.DefaultReadTimeout,
			TouchThreshold: logic.DefaultTouchThreshold,
			StopAfter:      logic.DefaultStopAfter,
		},
		Pump: pumpSettings{
			Limit:  logic.DefaultPumpLimit,
			Settle: pump.DefaultSettle,
			Margin: logic.DefaultMargin,
		},
		Dosing: dosingSettings{
			FlowRate: logic.DefaultFlowRate,
			Check:    dosing.DefaultCheckSpec,
		},
	}
}

// loadSettings overlays the YAML file at path on base.
func loadSettings(path string, base settings) (settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &base); err != nil {
		return base, fmt.Errorf("parse config %s: %w", path, err)
	}
	return base, nil
}

func (s settings) validate() error {
	if s.Poll <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", s.Poll)
	}
	if len(s.Pins.Dosing) != len(gpio.DefaultDosingPins) {
		return fmt.Errorf("need %d dosing pins, got %d", len(gpio.DefaultDosingPins), len(s.Pins.Dosing))
	}
	if s.Pump.Limit <= 0 {
		return fmt.Errorf("pump limit must be positive, got %v", s.Pump.Limit)
	}
	if s.Pump.Margin < 0 || s.Pump.Margin > 50 {
		return fmt.Errorf("margin out of range: %d", s.Pump.Margin)
	}
	return nil
}

// options are the one-shot modes plus the resolved settings.
type options struct {
	settings     settings
	printState   bool
	calibrate    string
	factoryReset bool
}

// parseArgs resolves defaults, the optional YAML file and explicit flags.
func parseArgs(fs *flag.FlagSet, args []string) (options, error) {
	def := defaultSettings()
	fv := def

	configPath := fs.String("config", "", "YAML settings file (flags given explicitly override it)")
	fs.DurationVar(&fv.Poll, "poll", def.Poll, "Sensor polling interval")
	fs.DurationVar(&fv.Heartbeat, "heartbeat", def.Heartbeat, "Heartbeat interval (0 to disable)")
	fs.StringVar(&fv.Broker, "broker", def.Broker, "MQTT broker address")
	fs.StringVar(&fv.HTTP, "http", def.HTTP, "HTTP status address (empty to disable)")
	fs.StringVar(&fv.DB, "db", def.DB, "Configuration database path (empty for memory only)")
	fs.IntVar(&fv.Pins.Inlet, "pin-inlet", def.Pins.Inlet, "BCM pin number for the inlet pump")
	fs.IntVar(&fv.Pins.Outlet, "pin-outlet", def.Pins.Outlet, "BCM pin number for the outlet pump")
	fs.IntVar(&fv.Pins.Valve, "pin-valve", def.Pins.Valve, "BCM pin number for the electrovalve")
	dosingPins := fs.String("pin-dosing", joinInts(def.Pins.Dosing), "Comma separated BCM pins for the dosing pumps")
	fs.DurationVar(&fv.Pump.Limit, "pump-limit", def.Pump.Limit, "Hard ceiling for a single pump run")

	var opts options
	fs.BoolVar(&opts.printState, "print-state", false, "Print the current sensor state and exit")
	fs.StringVar(&opts.calibrate, "calibrate", "", `Average reads of one ladder ("low" or "high") and exit`)
	fs.BoolVar(&opts.factoryReset, "factory-reset", false, "Overwrite the stored configuration with the unset record and exit")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	s := def
	if *configPath != "" {
		loaded, err := loadSettings(*configPath, s)
		if err != nil {
			return opts, err
		}
		s = loaded
	}

	var visitErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "poll":
			s.Poll = fv.Poll
		case "heartbeat":
			s.Heartbeat = fv.Heartbeat
		case "broker":
			s.Broker = fv.Broker
		case "http":
			s.HTTP = fv.HTTP
		case "db":
			s.DB = fv.DB
		case "pin-inlet":
			s.Pins.Inlet = fv.Pins.Inlet
		case "pin-outlet":
			s.Pins.Outlet = fv.Pins.Outlet
		case "pin-valve":
			s.Pins.Valve = fv.Pins.Valve
		case "pin-dosing":
			pins, err := parseInts(*dosingPins)
			if err != nil {
				visitErr = fmt.Errorf("-pin-dosing: %w", err)
				return
			}
			s.Pins.Dosing = pins
		case "pump-limit":
			s.Pump.Limit = fv.Pump.Limit
		}
	})
	if visitErr != nil {
		return opts, visitErr
	}

	if opts.calibrate != "" && opts.calibrate != "low" && opts.calibrate != "high" {
		return opts, fmt.Errorf("-calibrate: want low or high, got %q", opts.calibrate)
	}
	if err := s.validate(); err != nil {
		return opts, err
	}
	opts.settings = s
	return opts, nil
}

func parseInts(v string) ([]int, error) {
	var out []int
	for _, f := range strings.Split(v, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func joinInts(v []int) string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}
