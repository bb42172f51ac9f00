// Package virtualdio is a simulated digital I/O board: proximity sensors on
// its inputs and pneumatic actuators on its outputs.
package virtualdio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ohowland/wadf_core/internal/pkg/driver"
)

// ErrUnknownPin is returned for a pin with no device attached.
var ErrUnknownPin = errors.New("no device on pin")

// Driver is a virtual DIO driver.
type Driver struct {
	name string
	now  func() time.Time

	mu      sync.RWMutex
	inputs  map[int]*Proximity
	outputs map[int]*Pneumatic
}

var (
	_ driver.Reader = (*Driver)(nil)
	_ driver.Writer = (*Driver)(nil)
)

// New returns a board with no devices attached.
func New(name string) *Driver {
	return &Driver{
		name:    name,
		now:     time.Now,
		inputs:  make(map[int]*Proximity),
		outputs: make(map[int]*Pneumatic),
	}
}

// WithClock replaces the clock used to advance the actuators.
func (d *Driver) WithClock(now func() time.Time) *Driver {
	d.now = now
	return d
}

func (d *Driver) Name() string {
	return d.name
}

// AttachInput wires a sensor to pin.
func (d *Driver) AttachInput(pin int, p *Proximity) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inputs[pin] = p
}

// AttachOutput wires an actuator to pin.
func (d *Driver) AttachOutput(pin int, a *Pneumatic) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.outputs[pin] = a
}

// Input returns the sensor on pin.
func (d *Driver) Input(pin int) (*Proximity, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.inputs[pin]
	return p, ok
}

// Output returns the actuator on pin.
func (d *Driver) Output(pin int) (*Pneumatic, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.outputs[pin]
	return a, ok
}

// Read returns the state of pins. An input reads its sensor; an output reads
// whether its actuator is fully extended.
func (d *Driver) Read(ctx context.Context, pins []int) ([]bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	states := make([]bool, len(pins))
	for i, pin := range pins {
		if p, ok := d.inputs[pin]; ok {
			states[i] = p.sense(d)
			continue
		}
		if a, ok := d.outputs[pin]; ok {
			states[i] = a.Extended(d.now())
			continue
		}
		return nil, fmt.Errorf("%s: read pin %d: %w", d.name, pin, ErrUnknownPin)
	}
	return states, nil
}

// Write commands the actuators on pins.
func (d *Driver) Write(ctx context.Context, pins []int, states []bool) error {
	if len(pins) != len(states) {
		return fmt.Errorf("%s: %d pins, %d states", d.name, len(pins), len(states))
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, pin := range pins {
		if _, ok := d.outputs[pin]; !ok {
			return fmt.Errorf("%s: write pin %d: %w", d.name, pin, ErrUnknownPin)
		}
	}
	now := d.now()
	for i, pin := range pins {
		d.outputs[pin].Command(states[i], now)
	}
	return nil
}
