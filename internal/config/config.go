package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/car-alarm/internal/gpio"
	"github.com/sweeney/car-alarm/internal/logger"
	"github.com/sweeney/car-alarm/internal/logic"
)

// Pins maps alarm functions to GPIO line offsets.
type Pins struct {
	Door      int `yaml:"door"`
	SecretKey int `yaml:"secret_key"`
	Ignition  int `yaml:"ignition"`
	Debug     int `yaml:"debug"`
	Jumper1   int `yaml:"jumper1"`
	Jumper2   int `yaml:"jumper2"`
	LED       int `yaml:"led"`
	Siren     int `yaml:"siren"`
	Relay     int `yaml:"relay"`
}

// Config holds the daemon settings.
type Config struct {
	// Chip is the GPIO character device name.
	Chip string `yaml:"chip"`
	// Pins is the line assignment on Chip.
	Pins Pins `yaml:"pins"`
	// Tick is the period of the main loop.
	Tick time.Duration `yaml:"tick"`
	// SirenWarning is how long the siren sounds before the relay cuts the engine.
	SirenWarning time.Duration `yaml:"siren_warning"`
	// BlinkOnset is how long before the end of the last minute the LED starts blinking.
	BlinkOnset time.Duration `yaml:"blink_onset"`
	// Watchdog restarts the daemon if the loop stalls this long. 0 disables it.
	Watchdog time.Duration `yaml:"watchdog"`
	// Broker is the MQTT broker for telemetry. Empty disables telemetry.
	Broker string `yaml:"broker"`
	// Heartbeat is the telemetry heartbeat interval. 0 disables heartbeats.
	Heartbeat time.Duration `yaml:"heartbeat"`
	// HTTPAddr is the status page address. Empty disables the page.
	HTTPAddr string `yaml:"http"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

const (
	// DefaultConfigFilename is read when no path is given.
	DefaultConfigFilename = "car-alarm.yaml"

	// DefaultWatchdog is the stall time after which the daemon restarts.
	DefaultWatchdog = 2 * time.Second

	// DefaultHeartbeat is the telemetry heartbeat interval.
	DefaultHeartbeat = 15 * time.Minute

	// DefaultFilePermissions is the permission used by Save.
	DefaultFilePermissions = 0o600
)

var (
	errConfigIsNotSet   = errors.New("configuration is not set")
	errDuplicatePin     = errors.New("pin assigned to more than one function")
	errNegativePin      = errors.New("pin offsets must not be negative")
	errWatchdogTooShort = errors.New("watchdog must be longer than the tick period")
	errNegativeInterval = errors.New("heartbeat must not be negative")
	errUnknownLogLevel  = errors.New("unknown log level")
)

// Default returns the settings of the reference board with telemetry and
// the status page disabled.
func Default() Config {
	p := gpio.DefaultPins()
	t := logic.DefaultConfig()

	return Config{
		Chip: gpio.DefaultChip,
		Pins: Pins{
			Door:      p.Door,
			SecretKey: p.SecretKey,
			Ignition:  p.Ignition,
			Debug:     p.Debug,
			Jumper1:   p.Jumper1,
			Jumper2:   p.Jumper2,
			LED:       p.LED,
			Siren:     p.Siren,
			Relay:     p.Relay,
		},
		Tick:         t.TickPeriod,
		SirenWarning: t.SirenWarning,
		BlinkOnset:   t.BlinkOnset,
		Watchdog:     DefaultWatchdog,
		Heartbeat:    DefaultHeartbeat,
		LogLevel:     "info",
	}
}

// Load reads settings from path on top of Default and validates them.
// When path is empty DefaultConfigFilename is tried and a missing file is not an error.
func Load(path string) (*Config, error) {
	optional := path == ""
	if optional {
		path = DefaultConfigFilename
	}

	cfg := Default()

	contents, err := os.ReadFile(filepath.Clean(path))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(contents, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	case optional && errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes cfg to path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the settings and fills the chip name and log level when empty.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.Chip == "" {
		cfg.Chip = gpio.DefaultChip
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if err := cfg.Timing().Validate(); err != nil {
		return fmt.Errorf("invalid timing: %w", err)
	}

	seen := make(map[int]bool)
	for _, p := range cfg.GPIOPins().Offsets() {
		if p < 0 {
			return fmt.Errorf("%w: %d", errNegativePin, p)
		}
		if seen[p] {
			return fmt.Errorf("%w: %d", errDuplicatePin, p)
		}
		seen[p] = true
	}

	if cfg.Watchdog != 0 && cfg.Watchdog <= cfg.Tick {
		return errWatchdogTooShort
	}
	if cfg.Heartbeat < 0 {
		return errNegativeInterval
	}

	if _, ok := logger.ParseLogLevel(cfg.LogLevel); !ok {
		return fmt.Errorf("%w: %q", errUnknownLogLevel, cfg.LogLevel)
	}

	if cfg.Broker != "" {
		if _, err := url.ParseRequestURI(cfg.Broker); err != nil {
			return fmt.Errorf("invalid broker URI: %w", err)
		}
	}

	return nil
}

// Timing returns the state machine time base.
func (c *Config) Timing() logic.Config {
	return logic.Config{
		TickPeriod:   c.Tick,
		SirenWarning: c.SirenWarning,
		BlinkOnset:   c.BlinkOnset,
	}
}

// GPIOPins returns the line assignment for the gpio package.
func (c *Config) GPIOPins() gpio.Pins {
	return gpio.Pins{
		Door:      c.Pins.Door,
		SecretKey: c.Pins.SecretKey,
		Ignition:  c.Pins.Ignition,
		Debug:     c.Pins.Debug,
		Jumper1:   c.Pins.Jumper1,
		Jumper2:   c.Pins.Jumper2,
		LED:       c.Pins.LED,
		Siren:     c.Pins.Siren,
		Relay:     c.Pins.Relay,
	}
}
