// Package drivertest provides drivers that record their invocations, for
// testing linkers without devices.
package drivertest

import (
	"context"
	"sync"

	"github.com/ohowland/wadf_core/internal/pkg/driver"
)

// Call is one recorded driver invocation.
type Call struct {
	Driver string
	Op     string
	Args   []interface{}
}

// Log collects the calls of one or more drivers in invocation order.
type Log struct {
	mu    sync.Mutex
	calls []Call
}

// Calls returns a copy of the recorded calls.
func (l *Log) Calls() []Call {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Call, len(l.calls))
	copy(out, l.calls)
	return out
}

// Count returns the number of recorded calls made on the named driver.
func (l *Log) Count(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.calls {
		if c.Driver == name {
			n++
		}
	}
	return n
}

func (l *Log) add(c Call) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, c)
}

// Mock implements every driver capability. Calls are recorded before they
// block on Gate, when set.
type Mock struct {
	ID  string
	Log *Log
	// Gate, if non-nil, holds every call until it receives or is closed.
	Gate chan struct{}
	// Err is returned by every call.
	Err error

	mu     sync.Mutex
	inputs map[int]bool
}

var (
	_ driver.Reader        = (*Mock)(nil)
	_ driver.Writer        = (*Mock)(nil)
	_ driver.OutputReader  = (*Mock)(nil)
	_ driver.DigitalReader = (*Mock)(nil)
	_ driver.DigitalWriter = (*Mock)(nil)
	_ driver.PowerSwitch   = (*Mock)(nil)
	_ driver.PowerSetter   = (*Mock)(nil)
	_ driver.Connector     = (*Mock)(nil)
	_ driver.Mover         = (*Mock)(nil)
	_ driver.ProgramRunner = (*Mock)(nil)
)

// New returns a Mock named id recording into log.
func New(id string, log *Log) *Mock {
	return &Mock{ID: id, Log: log, inputs: make(map[int]bool)}
}

// SetInput sets the value read back from pin.
func (m *Mock) SetInput(pin int, v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputs[pin] = v
}

func (m *Mock) input(pin int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inputs[pin]
}

func (m *Mock) Name() string { return m.ID }

func (m *Mock) call(ctx context.Context, op string, args ...interface{}) error {
	m.Log.add(Call{Driver: m.ID, Op: op, Args: args})
	if m.Gate != nil {
		select {
		case <-m.Gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return m.Err
}

func (m *Mock) Read(ctx context.Context, pins []int) ([]bool, error) {
	if err := m.call(ctx, "Read", pins); err != nil {
		return nil, err
	}
	out := make([]bool, len(pins))
	for i, p := range pins {
		out[i] = m.input(p)
	}
	return out, nil
}

func (m *Mock) ReadOutputs(ctx context.Context, pins []int) ([]bool, error) {
	if err := m.call(ctx, "read_outputs", pins); err != nil {
		return nil, err
	}
	out := make([]bool, len(pins))
	for i, p := range pins {
		out[i] = m.input(p)
	}
	return out, nil
}

func (m *Mock) Write(ctx context.Context, pins []int, states []bool) error {
	return m.call(ctx, "Write", pins, states)
}

func (m *Mock) DigitalRead(ctx context.Context, pin int) (bool, error) {
	if err := m.call(ctx, "digital_read", pin); err != nil {
		return false, err
	}
	return m.input(pin), nil
}

func (m *Mock) DigitalWrite(ctx context.Context, pin int, state bool) error {
	return m.call(ctx, "digital_write", pin, state)
}

func (m *Mock) PowerOn(ctx context.Context) error {
	return m.call(ctx, "power_on")
}

func (m *Mock) PowerOff(ctx context.Context) error {
	return m.call(ctx, "power_off")
}

func (m *Mock) SetPower(ctx context.Context, on bool) error {
	return m.call(ctx, "set_power", on)
}

func (m *Mock) Connect(ctx context.Context) error {
	return m.call(ctx, "connect")
}

func (m *Mock) MoveAbsolute(ctx context.Context, pose driver.Pose) error {
	return m.call(ctx, "MoveAbsolute", pose.String())
}

func (m *Mock) SetProgram(ctx context.Context, program string) error {
	return m.call(ctx, "set_program", program)
}

// Bare is a driver with no capabilities.
type Bare string

func (b Bare) Name() string { return string(b) }
