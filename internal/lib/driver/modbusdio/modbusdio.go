// Package modbusdio drives a physical digital I/O module over Modbus TCP.
// Inputs are read as discrete inputs and outputs are written as coils.
package modbusdio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/goburrow/modbus"

	"github.com/ohowland/wadf_core/internal/pkg/driver"
)

// Config is the configuration of a Modbus DIO module.
type Config struct {
	Addr    string `toml:"addr"`
	SlaveID byte   `toml:"slave_id"`
	// TimeoutMS bounds every request. Defaults to 1000.
	TimeoutMS int `toml:"timeout_ms"`
	// InputOffset and OutputOffset map pin numbers to Modbus addresses.
	InputOffset  uint16 `toml:"input_offset"`
	OutputOffset uint16 `toml:"output_offset"`
	// Trace logs every frame at debug level.
	Trace bool `toml:"trace"`
}

const (
	coilOn  uint16 = 0xFF00
	coilOff uint16 = 0x0000
)

type transport interface {
	Connect() error
	Close() error
}

// client is the part of modbus.Client used by the driver.
type client interface {
	ReadDiscreteInputs(address, quantity uint16) ([]byte, error)
	ReadCoils(address, quantity uint16) ([]byte, error)
	WriteSingleCoil(address, value uint16) ([]byte, error)
}

// Driver is a Modbus TCP DIO driver. A connection is opened for each
// operation and closed when it completes.
type Driver struct {
	name string
	cfg  Config

	mu        sync.Mutex
	transport transport
	client    client
}

var (
	_ driver.Reader        = (*Driver)(nil)
	_ driver.Writer        = (*Driver)(nil)
	_ driver.OutputReader  = (*Driver)(nil)
	_ driver.DigitalReader = (*Driver)(nil)
	_ driver.DigitalWriter = (*Driver)(nil)
)

// New returns a Driver for the module at cfg.Addr.
func New(name string, cfg Config, logger *slog.Logger) *Driver {
	if cfg.TimeoutMS <= 0 {
		cfg.TimeoutMS = 1000
	}
	handler := modbus.NewTCPClientHandler(cfg.Addr)
	handler.Timeout = time.Millisecond * time.Duration(cfg.TimeoutMS)
	handler.SlaveId = cfg.SlaveID
	if cfg.Trace && logger != nil {
		handler.Logger = slog.NewLogLogger(logger.With("driver", name).Handler(), slog.LevelDebug)
	}
	return &Driver{
		name:      name,
		cfg:       cfg,
		transport: handler,
		client:    modbus.NewClient(handler),
	}
}

func (d *Driver) Name() string {
	return d.name
}

func (d *Driver) session(ctx context.Context, f func(c client) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.transport.Connect(); err != nil {
		return fmt.Errorf("%s: connect %s: %w", d.name, d.cfg.Addr, err)
	}
	defer d.transport.Close()
	return f(d.client)
}

// Read returns the discrete inputs of pins.
func (d *Driver) Read(ctx context.Context, pins []int) ([]bool, error) {
	states := make([]bool, len(pins))
	err := d.session(ctx, func(c client) error {
		for i, pin := range pins {
			v, err := readBit(c.ReadDiscreteInputs, d.cfg.InputOffset, pin)
			if err != nil {
				return fmt.Errorf("%s: read pin %d: %w", d.name, pin, err)
			}
			states[i] = v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return states, nil
}

// DigitalRead returns the discrete input of pin.
func (d *Driver) DigitalRead(ctx context.Context, pin int) (bool, error) {
	states, err := d.Read(ctx, []int{pin})
	if err != nil {
		return false, err
	}
	return states[0], nil
}

// ReadOutputs returns the coil state of pins.
func (d *Driver) ReadOutputs(ctx context.Context, pins []int) ([]bool, error) {
	states := make([]bool, len(pins))
	err := d.session(ctx, func(c client) error {
		for i, pin := range pins {
			v, err := readBit(c.ReadCoils, d.cfg.OutputOffset, pin)
			if err != nil {
				return fmt.Errorf("%s: read coil %d: %w", d.name, pin, err)
			}
			states[i] = v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return states, nil
}

// Write sets the coils of pins.
func (d *Driver) Write(ctx context.Context, pins []int, states []bool) error {
	if len(pins) != len(states) {
		return fmt.Errorf("%s: %d pins, %d states", d.name, len(pins), len(states))
	}
	return d.session(ctx, func(c client) error {
		for i, pin := range pins {
			addr, err := address(d.cfg.OutputOffset, pin)
			if err != nil {
				return err
			}
			value := coilOff
			if states[i] {
				value = coilOn
			}
			if _, err := c.WriteSingleCoil(addr, value); err != nil {
				return fmt.Errorf("%s: write pin %d: %w", d.name, pin, err)
			}
		}
		return nil
	})
}

// DigitalWrite sets the coil of pin.
func (d *Driver) DigitalWrite(ctx context.Context, pin int, state bool) error {
	return d.Write(ctx, []int{pin}, []bool{state})
}

func readBit(read func(address, quantity uint16) ([]byte, error), offset uint16, pin int) (bool, error) {
	addr, err := address(offset, pin)
	if err != nil {
		return false, err
	}
	resp, err := read(addr, 1)
	if err != nil {
		return false, err
	}
	if len(resp) == 0 {
		return false, fmt.Errorf("empty response at address %d", addr)
	}
	return resp[0]&0x01 == 1, nil
}

func address(offset uint16, pin int) (uint16, error) {
	a := int(offset) + pin
	if pin < 0 || a > 0xFFFF {
		return 0, fmt.Errorf("pin %d out of range", pin)
	}
	return uint16(a), nil
}
