// Package virtualscara is a simulated SCARA arm with three revolute and three
// prismatic axes.
package virtualscara

import (
	"context"
	"sync"

	"github.com/ohowland/wadf_core/internal/pkg/driver"
)

// Robot is a simulated SCARA arm. Moves are applied immediately.
type Robot struct {
	name string

	mu      sync.Mutex
	powered bool
	axes    [6]float64
	moves   int
}

var (
	_ driver.PowerSetter = (*Robot)(nil)
	_ driver.Mover       = (*Robot)(nil)
)

// New returns an unpowered arm at its zero pose.
func New(name string) *Robot {
	return &Robot{name: name}
}

func (r *Robot) Name() string {
	return r.name
}

// SetPower switches the servo power.
func (r *Robot) SetPower(ctx context.Context, on bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.powered = on
	return nil
}

// Powered reports the servo power.
func (r *Robot) Powered() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.powered
}

// MoveAbsolute moves every non-nil axis of pose to its target. The servo
// power state is tracked but does not gate moves.
func (r *Robot) MoveAbsolute(ctx context.Context, pose driver.Pose) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, a := range pose.Axes() {
		if a != nil {
			r.axes[i] = *a
		}
	}
	r.moves++
	return nil
}

// Pose returns the current position of every axis.
func (r *Robot) Pose() driver.Pose {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.axes
	return driver.Pose{
		Theta1: &a[0], Theta2: &a[1], Theta3: &a[2],
		D1: &a[3], D2: &a[4], D3: &a[5],
	}
}

// Moves counts the moves applied since construction.
func (r *Robot) Moves() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.moves
}
