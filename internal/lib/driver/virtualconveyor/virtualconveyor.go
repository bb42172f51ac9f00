// Package virtualconveyor is a simulated belt conveyor.
package virtualconveyor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ohowland/wadf_core/internal/pkg/driver"
)

// Config describes the belt.
type Config struct {
	// Velocity is the belt speed in meters per second.
	Velocity float64 `toml:"velocity"`
	// Direction is the axis the belt moves along: "x", "y" or "z".
	Direction string `toml:"direction"`
}

// Conveyor is a simulated belt that moves at a constant speed while powered.
type Conveyor struct {
	name string
	cfg  Config
	now  func() time.Time

	mu       sync.Mutex
	on       bool
	since    time.Time
	traveled float64
}

var _ driver.PowerSwitch = (*Conveyor)(nil)

// New returns a stopped conveyor.
func New(name string, cfg Config) (*Conveyor, error) {
	switch cfg.Direction {
	case "":
		cfg.Direction = "x"
	case "x", "y", "z":
	default:
		return nil, fmt.Errorf("%s: direction %q is not an axis", name, cfg.Direction)
	}
	return &Conveyor{name: name, cfg: cfg, now: time.Now}, nil
}

// WithClock replaces the clock used to integrate belt travel.
func (c *Conveyor) WithClock(now func() time.Time) *Conveyor {
	c.now = now
	return c
}

func (c *Conveyor) Name() string {
	return c.name
}

// PowerOn starts the belt.
func (c *Conveyor) PowerOn(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.on {
		c.on = true
		c.since = c.now()
	}
	return nil
}

// PowerOff stops the belt.
func (c *Conveyor) PowerOff(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.on {
		c.traveled += c.cfg.Velocity * c.now().Sub(c.since).Seconds()
		c.on = false
	}
	return nil
}

// Running reports whether the belt is powered.
func (c *Conveyor) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.on
}

// Traveled is the belt travel along Direction since construction.
func (c *Conveyor) Traveled() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := c.traveled
	if c.on {
		d += c.cfg.Velocity * c.now().Sub(c.since).Seconds()
	}
	return d
}
