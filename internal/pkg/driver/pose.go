package driver

import (
	"fmt"
	"math"
	"strings"
)

// Pose is an absolute SCARA target over six axes. A nil axis keeps its
// current position.
type Pose struct {
	Theta1 *float64
	Theta2 *float64
	Theta3 *float64
	D1     *float64
	D2     *float64
	D3     *float64
}

// Axes returns the six axes in order theta1, theta2, theta3, d1, d2, d3.
func (p Pose) Axes() [6]*float64 {
	return [6]*float64{p.Theta1, p.Theta2, p.Theta3, p.D1, p.D2, p.D3}
}

// Empty reports whether every axis is nil.
func (p Pose) Empty() bool {
	for _, a := range p.Axes() {
		if a != nil {
			return false
		}
	}
	return true
}

func (p Pose) String() string {
	parts := make([]string, 0, 6)
	for _, a := range p.Axes() {
		if a == nil {
			parts = append(parts, "None")
			continue
		}
		parts = append(parts, fmt.Sprintf("%g", *a))
	}
	return "(" + strings.Join(parts, ",") + ")"
}

// Val returns a pointer to v for building poses.
func Val(v float64) *float64 {
	return &v
}

// Deg returns a pointer to deg converted to radians.
func Deg(deg float64) *float64 {
	return Val(deg * math.Pi / 180)
}
