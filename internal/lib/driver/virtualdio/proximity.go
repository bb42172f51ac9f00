package virtualdio

import "sync"

// Proximity is a simulated proximity sensor. Detection is set by the
// simulation, or follows an actuator when one is attached.
type Proximity struct {
	mu       sync.Mutex
	detected bool
	follows  *Pneumatic
}

// NewProximity returns a sensor that detects nothing.
func NewProximity() *Proximity {
	return &Proximity{}
}

// Set forces the detection state.
func (p *Proximity) Set(detected bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.detected = detected
}

// Follow makes the sensor detect while a is extended.
func (p *Proximity) Follow(a *Pneumatic) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.follows = a
}

func (p *Proximity) sense(d *Driver) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.follows != nil {
		return p.follows.Extended(d.now())
	}
	return p.detected
}
