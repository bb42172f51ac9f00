// Package config loads the workcell file of the linker daemon.
//
// Configuration is loaded with overlay semantics: the embedded defaults
// (default.toml) are decoded first and the workcell file is decoded over
// them, so fields absent from the file keep their default value. Unlike the
// defaults, the workcell section is mandatory: a file without a workcell
// name or without linkers is rejected.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/ohowland/wadf_core/internal/lib/driver/modbusdio"
	"github.com/ohowland/wadf_core/internal/lib/driver/virtualconveyor"
	"github.com/ohowland/wadf_core/internal/lib/driver/virtualdio"
)

//go:embed default.toml
var defaultConfigTOML string

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid workcell configuration")

// Driver kinds.
const (
	KindVirtualDIO      = "virtual-dio"
	KindVirtualConveyor = "virtual-conveyor"
	KindVirtualSCARA    = "virtual-scara"
	KindModbusDIO       = "modbus-dio"
)

// Config is the top-level workcell configuration.
type Config struct {
	Runtime    RuntimeConfig           `toml:"runtime"`
	Logging    LoggingConfig           `toml:"logging"`
	Webservice WebserviceConfig        `toml:"webservice"`
	MongoDB    MongoDBConfig           `toml:"mongodb"`
	Topic      TopicConfig             `toml:"topic"`
	Drivers    map[string]DriverConfig `toml:"drivers"`
	Workcell   WorkcellConfig          `toml:"workcell"`
}

// RuntimeConfig tunes the dual-driver runner.
type RuntimeConfig struct {
	// PoolSize is the number of workers running digital-twin tasks.
	PoolSize int `toml:"pool_size"`
	// Completion is "first" or "join", see dispatch.ParsePolicy.
	Completion string `toml:"completion"`
	// Mode is the mode of linkers that do not set their own.
	Mode string `toml:"mode"`
}

// LoggingConfig controls logging behaviour.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// WebserviceConfig enables the HTTP surface when Addr is set.
type WebserviceConfig struct {
	Addr string `toml:"addr"`
}

// MongoDBConfig enables the record sink when URI is set.
type MongoDBConfig struct {
	URI        string `toml:"uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

// TopicConfig enables publishing record updates to a gocloud pubsub topic,
// e.g. "mem://records", when URL is set.
type TopicConfig struct {
	URL string `toml:"url"`
}

// DriverConfig declares one driver. Only the section matching Kind is used.
type DriverConfig struct {
	Kind     string                 `toml:"kind"`
	Inputs   []InputConfig          `toml:"inputs"`
	Outputs  []OutputConfig         `toml:"outputs"`
	Conveyor virtualconveyor.Config `toml:"conveyor"`
	Modbus   modbusdio.Config       `toml:"modbus"`
}

// InputConfig attaches a simulated proximity sensor to a pin. When Follows
// is set the sensor detects while the actuator on that output pin is extended.
type InputConfig struct {
	Pin     int  `toml:"pin"`
	Follows *int `toml:"follows"`
}

// OutputConfig attaches a simulated pneumatic actuator to a pin.
type OutputConfig struct {
	Pin int `toml:"pin"`
	virtualdio.PneumaticConfig
}

// WorkcellConfig names the workcell and declares its linkers by class name.
type WorkcellConfig struct {
	Name    string                  `toml:"name"`
	Linkers map[string]LinkerConfig `toml:"linkers"`
}

// LinkerConfig wires one linker.
type LinkerConfig struct {
	// Virtual and Actual name drivers of the drivers table. Either may be
	// empty, which leaves the linker without that driver.
	Virtual string `toml:"virtual"`
	Actual  string `toml:"actual"`
	Pins    []int  `toml:"pins"`
	Mode    string `toml:"mode"`
	// Control and Monitoring list the keys of the device record.
	Control    []string `toml:"control"`
	Monitoring []string `toml:"monitoring"`
	// PollMS is the polling period of sensors.
	PollMS int `toml:"poll_ms"`
}

// DefaultConfig returns the default configuration from the embedded default.toml.
func DefaultConfig() Config {
	var cfg Config
	if _, err := toml.Decode(defaultConfigTOML, &cfg); err != nil {
		return Config{
			Runtime: RuntimeConfig{PoolSize: 2, Completion: "first", Mode: "VirtualMode"},
			Logging: LoggingConfig{Level: "info", Format: "text"},
		}
	}
	return cfg
}

// Load reads the workcell file at path over the defaults and validates it.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read workcell file: %w", err)
	}
	return Parse(string(data))
}

// Parse decodes a workcell document over the defaults and validates it.
func Parse(doc string) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.Decode(doc, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("failed to parse workcell file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("%w: unknown key %q", ErrInvalid, undecoded[0].String())
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks that the workcell structure is complete and that every
// driver a linker names is declared.
func (c *Config) Validate() error {
	if c.Workcell.Name == "" {
		return fmt.Errorf("%w: workcell name is missing", ErrInvalid)
	}
	if len(c.Workcell.Linkers) == 0 {
		return fmt.Errorf("%w: workcell %s declares no linkers", ErrInvalid, c.Workcell.Name)
	}
	for name, d := range c.Drivers {
		switch d.Kind {
		case KindVirtualDIO, KindVirtualConveyor, KindVirtualSCARA:
		case KindModbusDIO:
			if d.Modbus.Addr == "" {
				return fmt.Errorf("%w: driver %s: modbus addr is missing", ErrInvalid, name)
			}
		default:
			return fmt.Errorf("%w: driver %s: unknown kind %q", ErrInvalid, name, d.Kind)
		}
	}
	for _, class := range c.LinkerNames() {
		l := c.Workcell.Linkers[class]
		for _, ref := range []string{l.Virtual, l.Actual} {
			if ref == "" {
				continue
			}
			if _, ok := c.Drivers[ref]; !ok {
				return fmt.Errorf("%w: linker %s: driver %s is not declared", ErrInvalid, class, ref)
			}
		}
	}
	return nil
}

// LinkerNames lists the linker classes of the workcell in order.
func (c *Config) LinkerNames() []string {
	names := make([]string, 0, len(c.Workcell.Linkers))
	for name := range c.Workcell.Linkers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
