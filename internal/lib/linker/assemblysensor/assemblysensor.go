// Package assemblysensor links the proximity sensor of the assembly block to
// its digital input and keeps its record current by polling.
package assemblysensor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielorbach/go-component"

	"github.com/ohowland/wadf_core/internal/pkg/driver"
	"github.com/ohowland/wadf_core/internal/pkg/linker"
)

// Class is the linker class name used for record keys.
const Class = "AssemblySensor"

// DefaultPins is the input wiring of the assembly sensor.
var DefaultPins = []int{3}

// DefaultPollPeriod is the interval between two reads of the sensor.
const DefaultPollPeriod = 200 * time.Millisecond

// AssemblySensor reads the proximity sensor wired to its first pin.
type AssemblySensor struct {
	*linker.Base
	pins []int
}

// New returns an AssemblySensor. An empty pins uses DefaultPins.
func New(cfg linker.Config, pins []int) *AssemblySensor {
	if cfg.Class == "" {
		cfg.Class = Class
	}
	if len(pins) == 0 {
		pins = DefaultPins
	}
	return &AssemblySensor{Base: linker.New(cfg), pins: pins}
}

// GetState reads the sensor. The virtual driver is read as a pin set and the
// physical one as a single input; DigitalTwinMode reads both and returns the
// physical value.
func (s *AssemblySensor) GetState(ctx context.Context) (bool, error) {
	pin := s.pins[0]
	return linker.Get(ctx, s.Base, "get_state", func(ctx context.Context) (bool, error) {
		return linker.Dispatch(ctx, s.Base, linker.Route[bool]{
			Virtual: linker.Invoke(s.Drivers().Virtual, "Read", []interface{}{s.pins[:1]},
				func(ctx context.Context, r driver.Reader) (bool, error) {
					states, err := r.Read(ctx, s.pins[:1])
					if err != nil {
						return false, err
					}
					if len(states) == 0 {
						return false, fmt.Errorf("read pin %d: no state returned", pin)
					}
					return states[0], nil
				}),
			Actual: linker.Invoke(s.Drivers().Actual, "digital_read", []interface{}{pin},
				func(ctx context.Context, r driver.DigitalReader) (bool, error) {
					return r.DigitalRead(ctx, pin)
				}),
		}, true)
	})
}

// Watch reads the sensor every period until ctx is done. Failed reads are
// logged and the next tick is awaited.
func (s *AssemblySensor) Watch(ctx context.Context, period time.Duration) {
	if period <= 0 {
		period = DefaultPollPeriod
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if _, err := s.GetState(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.Logger().Warn("Sensor poll failed", slog.Any("error", err))
		}
	}
}

// Poll returns a component.Proc that watches the sensor for the lifetime of
// the component.
func (s *AssemblySensor) Poll(period time.Duration) component.Proc {
	return func(l *component.L) {
		s.Watch(l.Context(), period)
	}
}

// Operations lists the operations of the linker by name.
func (s *AssemblySensor) Operations() map[string]linker.Operation {
	return map[string]linker.Operation{
		"get_state": func(ctx context.Context, _ []interface{}) (interface{}, error) {
			return s.GetState(ctx)
		},
	}
}
