// Package assemblyblockactuator links the pneumatic actuators of the assembly
// block to their digital outputs.
package assemblyblockactuator

import (
	"context"
	"fmt"

	"github.com/ohowland/wadf_core/internal/pkg/driver"
	"github.com/ohowland/wadf_core/internal/pkg/linker"
)

// Class is the linker class name used for record keys.
const Class = "AssemblyBlockActuator"

// DefaultPins is the output wiring of the assembly block actuator.
var DefaultPins = []int{5}

// AssemblyBlockActuator drives the pneumatic actuator wired to Pins.
type AssemblyBlockActuator struct {
	*linker.Base
	pins []int
}

// New returns an AssemblyBlockActuator. An empty pins uses DefaultPins.
func New(cfg linker.Config, pins []int) *AssemblyBlockActuator {
	if cfg.Class == "" {
		cfg.Class = Class
	}
	if len(pins) == 0 {
		pins = DefaultPins
	}
	return &AssemblyBlockActuator{Base: linker.New(cfg), pins: pins}
}

// Pins are the output pins driven by SetState.
func (a *AssemblyBlockActuator) Pins() []int {
	return a.pins
}

// SetState drives the actuator. In DigitalTwinMode both writes are queued and
// SetState returns without waiting for them.
func (a *AssemblyBlockActuator) SetState(ctx context.Context, state bool) error {
	return a.setState(ctx, []interface{}{state})
}

func (a *AssemblyBlockActuator) setState(ctx context.Context, args []interface{}) error {
	state, err := linker.BoolArg(args, 0)
	if err != nil {
		return fmt.Errorf("%s.set_state: %w", a.Class(), err)
	}
	return a.Set(ctx, "set_state", args, func(ctx context.Context) error {
		pin := a.pins[0]
		return linker.Fire(ctx, a.Base, linker.Route[struct{}]{
			Virtual: linker.Act(a.Drivers().Virtual, "Write", []interface{}{a.pins, []bool{state}},
				func(ctx context.Context, w driver.Writer) error {
					return w.Write(ctx, a.pins, []bool{state})
				}),
			Actual: linker.Act(a.Drivers().Actual, "digital_write", []interface{}{pin, state},
				func(ctx context.Context, w driver.DigitalWriter) error {
					return w.DigitalWrite(ctx, pin, state)
				}),
		})
	})
}

// GetState reads the actuator pins: the simulated stroke on the virtual
// driver, the commanded outputs on the physical one. In DigitalTwinMode both
// drivers are read and the physical reading is returned.
func (a *AssemblyBlockActuator) GetState(ctx context.Context) ([]bool, error) {
	return linker.Get(ctx, a.Base, "get_state", func(ctx context.Context) ([]bool, error) {
		return linker.Dispatch(ctx, a.Base, linker.Route[[]bool]{
			Virtual: linker.Invoke(a.Drivers().Virtual, "Read", []interface{}{a.pins},
				func(ctx context.Context, r driver.Reader) ([]bool, error) {
					return r.Read(ctx, a.pins)
				}),
			Actual: linker.Invoke(a.Drivers().Actual, "read_outputs", []interface{}{a.pins},
				func(ctx context.Context, r driver.OutputReader) ([]bool, error) {
					return r.ReadOutputs(ctx, a.pins)
				}),
		}, true)
	})
}

// Operations lists the operations of the linker by name.
func (a *AssemblyBlockActuator) Operations() map[string]linker.Operation {
	return map[string]linker.Operation{
		"set_state": func(ctx context.Context, args []interface{}) (interface{}, error) {
			return nil, a.setState(ctx, args)
		},
		"get_state": func(ctx context.Context, _ []interface{}) (interface{}, error) {
			return a.GetState(ctx)
		},
	}
}
