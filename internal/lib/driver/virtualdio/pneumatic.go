package virtualdio

import (
	"math"
	"sync"
	"time"
)

// PneumaticConfig describes the stroke of a simulated pneumatic actuator.
type PneumaticConfig struct {
	// Origin and Target are the retracted and extended joint positions.
	Origin float64 `toml:"origin"`
	Target float64 `toml:"target"`
	// Velocity is the stroke speed in position units per second.
	Velocity float64 `toml:"velocity"`
}

// Pneumatic is a simulated pneumatic actuator driven by a digital output.
type Pneumatic struct {
	mu  sync.Mutex
	cfg PneumaticConfig
	sm  *stateMachine
	pos float64
	cmd bool
	at  time.Time
}

// NewPneumatic returns a retracted actuator.
func NewPneumatic(cfg PneumaticConfig) *Pneumatic {
	if cfg.Velocity <= 0 {
		cfg.Velocity = math.Inf(1)
	}
	return &Pneumatic{cfg: cfg, sm: &stateMachine{retracted{}}, pos: cfg.Origin}
}

// Command sets the output driving the actuator at time now.
func (p *Pneumatic) Command(extend bool, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.step(now)
	p.cmd = extend
}

// Extended reports whether the actuator reached the end of its stroke at now.
func (p *Pneumatic) Extended(now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.step(now)
	_, ok := p.sm.current.(extended)
	return ok
}

// Position is the joint position at now.
func (p *Pneumatic) Position(now time.Time) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.step(now)
	return p.pos
}

func (p *Pneumatic) step(now time.Time) {
	if p.at.IsZero() {
		p.at = now
	}
	dt := now.Sub(p.at).Seconds()
	if dt < 0 {
		dt = 0
	}
	p.at = now
	p.sm.run(p, dt)
}

// travel moves the actuator toward to by at most dt of stroke and reports
// whether it arrived.
func (p *Pneumatic) travel(to float64, dt float64) bool {
	d := to - p.pos
	limit := p.cfg.Velocity * dt
	if math.IsInf(p.cfg.Velocity, 1) || math.Abs(d) <= limit {
		p.pos = to
		return true
	}
	p.pos += math.Copysign(limit, d)
	return false
}

type stateMachine struct {
	current state
}

func (s *stateMachine) run(p *Pneumatic, dt float64) {
	s.current = s.current.transition(p)
	s.current = s.current.action(p, dt)
}

type state interface {
	action(p *Pneumatic, dt float64) state
	transition(p *Pneumatic) state
}

type retracted struct{}

func (s retracted) action(p *Pneumatic, dt float64) state {
	return s
}

func (s retracted) transition(p *Pneumatic) state {
	if p.cmd {
		return extending{}
	}
	return s
}

type extending struct{}

func (s extending) action(p *Pneumatic, dt float64) state {
	if p.travel(p.cfg.Target, dt) {
		return extended{}
	}
	return s
}

func (s extending) transition(p *Pneumatic) state {
	if !p.cmd {
		return retracting{}
	}
	return s
}

type extended struct{}

func (s extended) action(p *Pneumatic, dt float64) state {
	return s
}

func (s extended) transition(p *Pneumatic) state {
	if !p.cmd {
		return retracting{}
	}
	return s
}

type retracting struct{}

func (s retracting) action(p *Pneumatic, dt float64) state {
	if p.travel(p.cfg.Origin, dt) {
		return retracted{}
	}
	return s
}

func (s retracting) transition(p *Pneumatic) state {
	if p.cmd {
		return extending{}
	}
	return s
}
