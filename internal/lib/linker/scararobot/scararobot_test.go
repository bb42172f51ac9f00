package scararobot

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/poll"

	"github.com/ohowland/wadf_core/internal/lib/driver/virtualscara"
	"github.com/ohowland/wadf_core/internal/pkg/dispatch"
	"github.com/ohowland/wadf_core/internal/pkg/driver"
	"github.com/ohowland/wadf_core/internal/pkg/driver/drivertest"
	"github.com/ohowland/wadf_core/internal/pkg/linker"
	"github.com/ohowland/wadf_core/internal/pkg/record"
)

type sleeps struct {
	mu     sync.Mutex
	events []string
}

// sleep records each settle delay instead of blocking.
func (s *sleeps) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, d.String())
	return nil
}

func (s *sleeps) Events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

type robot struct {
	*SCARARobot
	calls  *drivertest.Log
	sleeps *sleeps
	logs   *bytes.Buffer
}

func newRobot(t *testing.T, mode linker.Mode) *robot {
	t.Helper()
	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(logs, nil))
	runner := dispatch.NewRunner(dispatch.Options{PoolSize: 1, Logger: logger})
	t.Cleanup(func() { _ = runner.Close() })

	calls := &drivertest.Log{}
	sl := &sleeps{}
	s := New(linker.Config{
		Record: record.New(Class, record.Layout{
			record.Control: {
				"SCARARobot_control_power_arg",
				"SCARARobot_control_absPosition_arg",
				"SCARARobot_control_program_arg",
			},
		}),
		Drivers: linker.Drivers{
			Virtual: drivertest.New("VSCR_DRIVER", calls),
			Actual:  drivertest.New("ASCR_DRIVER", calls),
		},
		Runner: runner,
		Mode:   mode,
		Logger: logger,
		Sleep:  sl.sleep,
	})
	return &robot{SCARARobot: s, calls: calls, sleeps: sl, logs: logs}
}

func TestSetProgramVirtualGripperStep(t *testing.T) {
	r := newRobot(t, linker.VirtualMode)

	assert.NilError(t, r.SetProgram(context.Background(), "GRIPPER_TEST2_03"))
	assert.DeepEqual(t, r.calls.Calls(), []drivertest.Call{
		{Driver: "VSCR_DRIVER", Op: "MoveAbsolute", Args: []interface{}{"(None,None,None,None,0.0135,0.0135)"}},
	})
	assert.DeepEqual(t, r.sleeps.Events(), []string{"500ms"})

	e, _ := r.Record().Get(record.Control, "SCARARobot_control_program_arg")
	assert.Equal(t, e.Value, "GRIPPER_TEST2_03")
}

func TestSetProgramDrivesSimulatedArm(t *testing.T) {
	arm := virtualscara.New("VSCR_DRIVER")
	sl := &sleeps{}
	s := New(linker.Config{
		Record:  record.New(Class, record.Layout{record.Control: {"SCARARobot_control_program_arg"}}),
		Drivers: linker.Drivers{Virtual: arm},
		Mode:    linker.VirtualMode,
		Logger:  slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
		Sleep:   sl.sleep,
	})

	assert.NilError(t, s.SetProgram(context.Background(), "GRIPPER_TEST2_03"))
	assert.Equal(t, arm.Moves(), 1)
	assert.Equal(t, arm.Pose().String(), "(0,0,0,0,0.0135,0.0135)")
	assert.DeepEqual(t, sl.Events(), []string{"500ms"})
}

func TestSetProgramVirtualWithoutPose(t *testing.T) {
	r := newRobot(t, linker.VirtualMode)

	assert.NilError(t, r.SetProgram(context.Background(), "GRIPPER_TEST2_12"))
	assert.Equal(t, len(r.calls.Calls()), 0)
	assert.DeepEqual(t, r.sleeps.Events(), []string{"1s"})
}

func TestSetProgramActual(t *testing.T) {
	r := newRobot(t, linker.ActualMode)

	assert.NilError(t, r.SetProgram(context.Background(), "GRIPPER_TEST2_02"))
	assert.DeepEqual(t, r.calls.Calls(), []drivertest.Call{
		{Driver: "ASCR_DRIVER", Op: "set_program", Args: []interface{}{"GRIPPER_TEST2_02"}},
	})
	assert.Equal(t, len(r.sleeps.Events()), 0)
}

func TestSetProgramTwinWithPose(t *testing.T) {
	r := newRobot(t, linker.DigitalTwinMode)

	assert.NilError(t, r.SetProgram(context.Background(), "GRIPPER_TEST2_09"))
	assert.DeepEqual(t, r.sleeps.Events(), []string{"2s"})

	poll.WaitOn(t, func(poll.LogT) poll.Result {
		if len(r.calls.Calls()) == 2 {
			return poll.Success()
		}
		return poll.Continue("waiting for both twin tasks")
	}, poll.WithTimeout(time.Second), poll.WithDelay(time.Millisecond))
	assert.DeepEqual(t, r.calls.Calls(), []drivertest.Call{
		{Driver: "VSCR_DRIVER", Op: "MoveAbsolute", Args: []interface{}{"(None,None,None,-0.02,None,None)"}},
		{Driver: "ASCR_DRIVER", Op: "set_program", Args: []interface{}{"GRIPPER_TEST2_09"}},
	})
}

func TestSetProgramTwinWithoutPose(t *testing.T) {
	r := newRobot(t, linker.DigitalTwinMode)

	assert.NilError(t, r.SetProgram(context.Background(), "GRIPPER_TEST2_18"))
	// The controller call is synchronous when there is nothing to simulate.
	assert.DeepEqual(t, r.calls.Calls(), []drivertest.Call{
		{Driver: "ASCR_DRIVER", Op: "set_program", Args: []interface{}{"GRIPPER_TEST2_18"}},
	})
	assert.DeepEqual(t, r.sleeps.Events(), []string{"500ms"})
	assert.Assert(t, !r.Running())
}

func TestSetProgramUnknown(t *testing.T) {
	r := newRobot(t, linker.VirtualMode)

	assert.NilError(t, r.SetProgram(context.Background(), "GRIPPER_TEST3_01"))
	assert.Equal(t, len(r.calls.Calls()), 0)
	assert.Equal(t, len(r.sleeps.Events()), 0)
	assert.Assert(t, strings.Contains(r.logs.String(), "Program GRIPPER_TEST3_01 is not defined"))
}

func TestProgramTable(t *testing.T) {
	names := ProgramNames()
	assert.Equal(t, len(names), 21)
	assert.Equal(t, names[0], "GRIPPER_TEST2_01")
	assert.Equal(t, names[20], "GRIPPER_TEST2_21")
	for _, name := range names {
		step := Programs[name]
		assert.Assert(t, step.Delay >= 500*time.Millisecond, name)
		assert.Assert(t, step.Delay <= 7000*time.Millisecond, name)
	}
	assert.Equal(t, Programs["GRIPPER_TEST2_21"].Pose.String(), "(0,0,1.5707963267948966,0,None,None)")
}

func TestConnect(t *testing.T) {
	tests := []struct {
		mode linker.Mode
		want []drivertest.Call
	}{
		{linker.VirtualMode, []drivertest.Call{{Driver: "VSCR_DRIVER", Op: "set_power", Args: []interface{}{true}}}},
		{linker.ActualMode, []drivertest.Call{{Driver: "ASCR_DRIVER", Op: "connect"}}},
		{linker.DigitalTwinMode, []drivertest.Call{
			{Driver: "VSCR_DRIVER", Op: "set_power", Args: []interface{}{true}},
			{Driver: "ASCR_DRIVER", Op: "connect"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			r := newRobot(t, tt.mode)
			assert.NilError(t, r.Connect(context.Background()))
			assert.DeepEqual(t, r.calls.Calls(), tt.want)
		})
	}
}

func TestSetAbsPositionOperation(t *testing.T) {
	r := newRobot(t, linker.VirtualMode)

	_, err := linker.Perform(context.Background(), r, "set_absPosition", []interface{}{nil, nil, 1.0, nil, 0.5})
	assert.NilError(t, err)
	assert.DeepEqual(t, r.calls.Calls(), []drivertest.Call{
		{Driver: "VSCR_DRIVER", Op: "MoveAbsolute", Args: []interface{}{"(None,None,1,None,0.5,None)"}},
	})
	e, _ := r.Record().Get(record.Control, "SCARARobot_control_absPosition_arg")
	assert.Equal(t, e.Value.(driver.Pose).String(), "(None,None,1,None,0.5,None)")
}
