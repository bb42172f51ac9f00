// Package conveyor links the belt conveyor of the workcell.
package conveyor

import (
	"context"

	"github.com/ohowland/wadf_core/internal/pkg/driver"
	"github.com/ohowland/wadf_core/internal/pkg/linker"
)

// Class is the linker class name.
const Class = "Conveyor"

// Conveyor switches the belt on and off. Power calls carry no record key.
type Conveyor struct {
	*linker.Base
}

// New returns a Conveyor.
func New(cfg linker.Config) *Conveyor {
	if cfg.Class == "" {
		cfg.Class = Class
	}
	return &Conveyor{Base: linker.New(cfg)}
}

// PowerOn starts the belt.
func (c *Conveyor) PowerOn(ctx context.Context) error {
	return c.power(ctx, "power_on", driver.PowerSwitch.PowerOn)
}

// PowerOff stops the belt.
func (c *Conveyor) PowerOff(ctx context.Context) error {
	return c.power(ctx, "power_off", driver.PowerSwitch.PowerOff)
}

func (c *Conveyor) power(ctx context.Context, op string, f func(driver.PowerSwitch, context.Context) error) error {
	run := func(ctx context.Context, p driver.PowerSwitch) error {
		return f(p, ctx)
	}
	return c.Call(ctx, op, func(ctx context.Context) error {
		return linker.Fire(ctx, c.Base, linker.Route[struct{}]{
			Virtual: linker.Act(c.Drivers().Virtual, op, nil, run),
			Actual:  linker.Act(c.Drivers().Actual, op, nil, run),
		})
	})
}

// Operations lists the operations of the linker by name.
func (c *Conveyor) Operations() map[string]linker.Operation {
	return map[string]linker.Operation{
		"power_on": func(ctx context.Context, _ []interface{}) (interface{}, error) {
			return nil, c.PowerOn(ctx)
		},
		"power_off": func(ctx context.Context, _ []interface{}) (interface{}, error) {
			return nil, c.PowerOff(ctx)
		},
	}
}
