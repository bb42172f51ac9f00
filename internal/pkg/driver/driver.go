// Package driver defines the capabilities a linker can ask of a device
// driver, and the registry that wires named drivers into linkers.
package driver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnsupportedOperation is returned when a driver lacks the capability an
// operation needs. A nil driver supports nothing.
var ErrUnsupportedOperation = errors.New("unsupported operation")

// Driver is any virtual or physical device driver.
type Driver interface {
	Name() string
}

// Reader reads a set of digital pins.
type Reader interface {
	Read(ctx context.Context, pins []int) ([]bool, error)
}

// Writer drives a set of digital pins.
type Writer interface {
	Write(ctx context.Context, pins []int, states []bool) error
}

// OutputReader reads back the commanded state of output pins.
type OutputReader interface {
	ReadOutputs(ctx context.Context, pins []int) ([]bool, error)
}

// DigitalReader reads one digital input.
type DigitalReader interface {
	DigitalRead(ctx context.Context, pin int) (bool, error)
}

// DigitalWriter drives one digital output.
type DigitalWriter interface {
	DigitalWrite(ctx context.Context, pin int, state bool) error
}

// PowerSwitch turns a device on or off.
type PowerSwitch interface {
	PowerOn(ctx context.Context) error
	PowerOff(ctx context.Context) error
}

// PowerSetter sets the servo power of a device.
type PowerSetter interface {
	SetPower(ctx context.Context, on bool) error
}

// Connector opens the session with a physical controller.
type Connector interface {
	Connect(ctx context.Context) error
}

// Mover moves a manipulator to an absolute pose.
type Mover interface {
	MoveAbsolute(ctx context.Context, pose Pose) error
}

// ProgramRunner starts a program stored on the controller.
type ProgramRunner interface {
	SetProgram(ctx context.Context, program string) error
}

// As returns d as capability C, or ErrUnsupportedOperation naming op.
func As[C any](d Driver, op string) (C, error) {
	var zero C
	if d == nil {
		return zero, fmt.Errorf("%s on <nil> driver: %w", op, ErrUnsupportedOperation)
	}
	c, ok := d.(C)
	if !ok {
		return zero, fmt.Errorf("%s not found in %s: %w", op, d.Name(), ErrUnsupportedOperation)
	}
	return c, nil
}

// NameOf returns the driver name, tolerating nil.
func NameOf(d Driver) string {
	if d == nil {
		return "<nil>"
	}
	return d.Name()
}

// Registry holds the drivers of a workcell by name.
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]Driver
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{drivers: make(map[string]Driver)}
}

// Register adds d under its name. Registering a name twice is an error.
func (r *Registry) Register(d Driver) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.drivers[d.Name()]; ok {
		return fmt.Errorf("driver %q already registered", d.Name())
	}
	r.drivers[d.Name()] = d
	return nil
}

// Lookup returns the driver registered as name. The empty name resolves to a
// nil driver without error, the way an unwired physical driver is declared.
func (r *Registry) Lookup(name string) (Driver, error) {
	if name == "" {
		return nil, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.drivers[name]
	if !ok {
		return nil, fmt.Errorf("driver %q not registered", name)
	}
	return d, nil
}

// Names lists the registered driver names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.drivers))
	for name := range r.drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
