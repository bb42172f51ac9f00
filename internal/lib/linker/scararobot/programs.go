package scararobot

import (
	"sort"
	"time"

	"github.com/ohowland/wadf_core/internal/pkg/driver"
)

// Step is one program of the gripper sequence: the pose the simulated arm
// moves to, and how long the caller waits for the motion to settle. A nil
// Pose leaves the simulated arm where it is.
type Step struct {
	Pose  *driver.Pose
	Delay time.Duration
}

func pose(theta1, theta2, theta3, d1, d2, d3 *float64) *driver.Pose {
	return &driver.Pose{Theta1: theta1, Theta2: theta2, Theta3: theta3, D1: d1, D2: d2, D3: d3}
}

var val, deg = driver.Val, driver.Deg

// Programs are the steps of the GRIPPER_TEST2 sequence stored on the controller.
var Programs = map[string]Step{
	"GRIPPER_TEST2_01": {pose(deg(-22.3), deg(1.4), deg(69.3), val(0.0), nil, nil), 1000 * time.Millisecond},
	"GRIPPER_TEST2_02": {pose(nil, nil, nil, val(-0.045), nil, nil), 7000 * time.Millisecond},
	"GRIPPER_TEST2_03": {pose(nil, nil, nil, nil, val(0.0135), val(0.0135)), 500 * time.Millisecond},
	"GRIPPER_TEST2_04": {pose(nil, nil, nil, nil, val(0.0135), val(0.0135)), 500 * time.Millisecond},
	"GRIPPER_TEST2_05": {nil, 500 * time.Millisecond},
	"GRIPPER_TEST2_06": {nil, 500 * time.Millisecond},
	"GRIPPER_TEST2_07": {pose(nil, nil, nil, val(0.0), nil, nil), 7000 * time.Millisecond},
	"GRIPPER_TEST2_08": {pose(deg(85), deg(-65), deg(200), nil, nil, nil), 3000 * time.Millisecond},
	"GRIPPER_TEST2_09": {pose(nil, nil, nil, val(-0.02), nil, nil), 2000 * time.Millisecond},
	"GRIPPER_TEST2_10": {pose(nil, nil, nil, val(-0.04), nil, nil), 2500 * time.Millisecond},
	"GRIPPER_TEST2_11": {nil, 1000 * time.Millisecond},
	"GRIPPER_TEST2_12": {nil, 1000 * time.Millisecond},
	"GRIPPER_TEST2_13": {nil, 1000 * time.Millisecond},
	"GRIPPER_TEST2_14": {nil, 1000 * time.Millisecond},
	"GRIPPER_TEST2_15": {nil, 1000 * time.Millisecond},
	"GRIPPER_TEST2_16": {pose(nil, nil, nil, nil, val(0.0), val(0.0)), 500 * time.Millisecond},
	"GRIPPER_TEST2_17": {nil, 500 * time.Millisecond},
	"GRIPPER_TEST2_18": {nil, 500 * time.Millisecond},
	"GRIPPER_TEST2_19": {nil, 500 * time.Millisecond},
	"GRIPPER_TEST2_20": {pose(nil, nil, nil, val(0.0), nil, nil), 3000 * time.Millisecond},
	"GRIPPER_TEST2_21": {pose(deg(0), deg(0), deg(90), val(0.0), nil, nil), 3000 * time.Millisecond},
}

// ProgramNames lists the known programs in order.
func ProgramNames() []string {
	names := make([]string, 0, len(Programs))
	for name := range Programs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
