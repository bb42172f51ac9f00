// Package root assembles a workcell from its configuration: the driver
// registry, the shared task runner and one linker per declared class.
package root

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/danielorbach/go-component"

	"github.com/ohowland/wadf_core/internal/lib/driver/modbusdio"
	"github.com/ohowland/wadf_core/internal/lib/driver/virtualconveyor"
	"github.com/ohowland/wadf_core/internal/lib/driver/virtualdio"
	"github.com/ohowland/wadf_core/internal/lib/driver/virtualscara"
	"github.com/ohowland/wadf_core/internal/lib/linker/assemblyblockactuator"
	"github.com/ohowland/wadf_core/internal/lib/linker/assemblysensor"
	"github.com/ohowland/wadf_core/internal/lib/linker/conveyor"
	"github.com/ohowland/wadf_core/internal/lib/linker/scararobot"
	"github.com/ohowland/wadf_core/internal/pkg/config"
	"github.com/ohowland/wadf_core/internal/pkg/dispatch"
	"github.com/ohowland/wadf_core/internal/pkg/driver"
	"github.com/ohowland/wadf_core/internal/pkg/linker"
	"github.com/ohowland/wadf_core/internal/pkg/msg"
	"github.com/ohowland/wadf_core/internal/pkg/record"
)

// System is the root node of a workcell.
type System struct {
	name     string
	registry *driver.Registry
	runner   *dispatch.Runner
	linkers  map[string]linker.Linker
	order    []string
	polls    map[string]component.Proc
}

// Build wires the workcell described by cfg. Every error is a startup error.
func Build(cfg config.Config, logger *slog.Logger) (*System, error) {
	registry, err := BuildDrivers(cfg.Drivers, logger)
	if err != nil {
		return nil, err
	}

	policy, err := dispatch.ParsePolicy(cfg.Runtime.Completion)
	if err != nil {
		return nil, err
	}
	defaultMode, err := linker.ParseMode(cfg.Runtime.Mode)
	if err != nil {
		return nil, fmt.Errorf("runtime mode: %w", err)
	}

	s := &System{
		name:     cfg.Workcell.Name,
		registry: registry,
		runner:   dispatch.NewRunner(dispatch.Options{PoolSize: cfg.Runtime.PoolSize, Logger: logger}),
		linkers:  make(map[string]linker.Linker),
		polls:    make(map[string]component.Proc),
	}

	for _, class := range cfg.LinkerNames() {
		lc := cfg.Workcell.Linkers[class]
		mode := defaultMode
		if lc.Mode != "" {
			if mode, err = linker.ParseMode(lc.Mode); err != nil {
				s.runner.Close()
				return nil, fmt.Errorf("linker %s: %w", class, err)
			}
		}
		virtual, err := registry.Lookup(lc.Virtual)
		if err != nil {
			s.runner.Close()
			return nil, fmt.Errorf("linker %s: %w", class, err)
		}
		actual, err := registry.Lookup(lc.Actual)
		if err != nil {
			s.runner.Close()
			return nil, fmt.Errorf("linker %s: %w", class, err)
		}

		lcfg := linker.Config{
			Class: class,
			Record: record.New(class, record.Layout{
				record.Control:    lc.Control,
				record.Monitoring: lc.Monitoring,
			}),
			Drivers: linker.Drivers{Virtual: virtual, Actual: actual},
			Runner:  s.runner,
			Policy:  policy,
			Mode:    mode,
			Logger:  logger,
		}
		l, err := s.newLinker(lcfg, lc)
		if err != nil {
			s.runner.Close()
			return nil, err
		}
		s.linkers[class] = l
		s.order = append(s.order, class)
	}
	return s, nil
}

func (s *System) newLinker(cfg linker.Config, lc config.LinkerConfig) (linker.Linker, error) {
	switch cfg.Class {
	case assemblyblockactuator.Class:
		return assemblyblockactuator.New(cfg, lc.Pins), nil
	case assemblysensor.Class:
		sensor := assemblysensor.New(cfg, lc.Pins)
		s.polls[cfg.Class] = sensor.Poll(time.Duration(lc.PollMS) * time.Millisecond)
		return sensor, nil
	case conveyor.Class:
		return conveyor.New(cfg), nil
	case scararobot.Class:
		return scararobot.New(cfg), nil
	}
	return nil, fmt.Errorf("%w: linker class %s is not known", config.ErrInvalid, cfg.Class)
}

// BuildDrivers creates and registers every declared driver.
func BuildDrivers(drivers map[string]config.DriverConfig, logger *slog.Logger) (*driver.Registry, error) {
	registry := driver.NewRegistry()
	for name, dc := range drivers {
		d, err := buildDriver(name, dc, logger)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(d); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func buildDriver(name string, dc config.DriverConfig, logger *slog.Logger) (driver.Driver, error) {
	switch dc.Kind {
	case config.KindVirtualDIO:
		board := virtualdio.New(name)
		for _, out := range dc.Outputs {
			board.AttachOutput(out.Pin, virtualdio.NewPneumatic(out.PneumaticConfig))
		}
		for _, in := range dc.Inputs {
			sensor := virtualdio.NewProximity()
			if in.Follows != nil {
				a, ok := board.Output(*in.Follows)
				if !ok {
					return nil, fmt.Errorf("%w: driver %s: input %d follows unwired output %d",
						config.ErrInvalid, name, in.Pin, *in.Follows)
				}
				sensor.Follow(a)
			}
			board.AttachInput(in.Pin, sensor)
		}
		return board, nil
	case config.KindVirtualConveyor:
		return virtualconveyor.New(name, dc.Conveyor)
	case config.KindVirtualSCARA:
		return virtualscara.New(name), nil
	case config.KindModbusDIO:
		return modbusdio.New(name, dc.Modbus, logger), nil
	}
	return nil, fmt.Errorf("%w: driver %s: unknown kind %q", config.ErrInvalid, name, dc.Kind)
}

// Name is the workcell name.
func (s *System) Name() string {
	return s.name
}

// Registry holds the drivers of the workcell.
func (s *System) Registry() *driver.Registry {
	return s.registry
}

// Linker returns the linker of class.
func (s *System) Linker(class string) (linker.Linker, bool) {
	l, ok := s.linkers[class]
	return l, ok
}

// Linkers returns every linker in class order.
func (s *System) Linkers() []linker.Linker {
	out := make([]linker.Linker, 0, len(s.order))
	for _, class := range s.order {
		out = append(out, s.linkers[class])
	}
	return out
}

// Records returns the record of every linker in class order.
func (s *System) Records() []msg.Publisher {
	out := make([]msg.Publisher, 0, len(s.order))
	for _, l := range s.Linkers() {
		out = append(out, l.Record())
	}
	return out
}

// Polls returns the polling procs of the workcell sensors by class.
func (s *System) Polls() map[string]component.Proc {
	return s.polls
}

// Close stops the runner once queued tasks have run.
func (s *System) Close() error {
	return s.runner.Close()
}
