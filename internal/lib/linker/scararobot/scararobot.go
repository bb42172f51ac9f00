// Package scararobot links the SCARA arm of the workcell to its simulated
// model and its controller.
package scararobot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ohowland/wadf_core/internal/pkg/driver"
	"github.com/ohowland/wadf_core/internal/pkg/linker"
)

// Class is the linker class name used for record keys.
const Class = "SCARARobot"

// SCARARobot runs programs on the arm. In the simulation a program is an
// absolute move followed by a settle delay; on the controller it is started
// by name.
type SCARARobot struct {
	*linker.Base
	programs map[string]Step
}

// New returns a SCARARobot running Programs.
func New(cfg linker.Config) *SCARARobot {
	if cfg.Class == "" {
		cfg.Class = Class
	}
	return &SCARARobot{Base: linker.New(cfg), programs: Programs}
}

// Connect opens the controller session. The simulated arm is powered instead.
func (s *SCARARobot) Connect(ctx context.Context) error {
	return s.Call(ctx, "connect", func(ctx context.Context) error {
		return linker.Do(ctx, s.Base, linker.Route[struct{}]{
			Virtual: linker.Act(s.Drivers().Virtual, "set_power", []interface{}{true},
				func(ctx context.Context, p driver.PowerSetter) error {
					return p.SetPower(ctx, true)
				}),
			Actual: linker.Act(s.Drivers().Actual, "connect", nil,
				func(ctx context.Context, c driver.Connector) error {
					return c.Connect(ctx)
				}),
		})
	})
}

// SetPower switches the servo power.
func (s *SCARARobot) SetPower(ctx context.Context, on bool) error {
	return s.Set(ctx, "set_power", []interface{}{on}, func(ctx context.Context) error {
		power := func(ctx context.Context, p driver.PowerSetter) error {
			return p.SetPower(ctx, on)
		}
		return linker.Fire(ctx, s.Base, linker.Route[struct{}]{
			Virtual: linker.Act(s.Drivers().Virtual, "set_power", []interface{}{on}, power),
			Actual:  linker.Act(s.Drivers().Actual, "set_power", []interface{}{on}, power),
		})
	})
}

// SetAbsPosition moves the arm to pose. Nil axes keep their position.
func (s *SCARARobot) SetAbsPosition(ctx context.Context, pose driver.Pose) error {
	return s.Set(ctx, "set_absPosition", []interface{}{pose}, func(ctx context.Context) error {
		move := func(ctx context.Context, m driver.Mover) error {
			return m.MoveAbsolute(ctx, pose)
		}
		return linker.Fire(ctx, s.Base, linker.Route[struct{}]{
			Virtual: linker.Act(s.Drivers().Virtual, "MoveAbsolute", []interface{}{pose.String()}, move),
			Actual:  linker.Act(s.Drivers().Actual, "MoveAbsolute", []interface{}{pose.String()}, move),
		})
	})
}

// SetProgram runs one program step and blocks for its settle delay.
//
// VirtualMode moves the simulated arm to the step's pose. ActualMode starts
// the program on the controller and does not wait. DigitalTwinMode queues both
// when the step has a pose; otherwise only the controller is driven, directly.
// An unknown program is diagnosed and ignored.
func (s *SCARARobot) SetProgram(ctx context.Context, program string) error {
	return s.Set(ctx, "set_program", []interface{}{program}, func(ctx context.Context) error {
		step, ok := s.programs[program]
		if !ok {
			s.Logger().Warn(fmt.Sprintf("Program %s is not defined", program))
			return nil
		}

		mode := s.Mode()
		route := linker.Route[struct{}]{
			Virtual: s.movePath(step.Pose),
			Actual: linker.Act(s.Drivers().Actual, "set_program", []interface{}{program},
				func(ctx context.Context, p driver.ProgramRunner) error {
					return p.SetProgram(ctx, program)
				}),
		}

		var err error
		switch {
		case mode == linker.DigitalTwinMode && step.Pose == nil:
			_, err = linker.DispatchIn(ctx, s.Base, linker.ActualMode, route, true)
		default:
			_, err = linker.DispatchIn(ctx, s.Base, mode, route, false)
		}
		if err != nil && !errors.Is(err, linker.ErrSkipped) {
			return err
		}
		if mode == linker.ActualMode {
			return nil
		}
		s.Logger().Debug("Settling", slog.String("program", program), slog.Duration("delay", step.Delay))
		return s.Settle(ctx, step.Delay)
	})
}

func (s *SCARARobot) movePath(pose *driver.Pose) linker.Path[struct{}] {
	if pose == nil {
		return linker.Path[struct{}]{
			Op:  "MoveAbsolute",
			Run: func(context.Context) (struct{}, error) { return struct{}{}, nil },
		}
	}
	p := *pose
	return linker.Act(s.Drivers().Virtual, "MoveAbsolute", []interface{}{p.String()},
		func(ctx context.Context, m driver.Mover) error {
			return m.MoveAbsolute(ctx, p)
		})
}

// Operations lists the operations of the linker by name.
func (s *SCARARobot) Operations() map[string]linker.Operation {
	return map[string]linker.Operation{
		"connect": func(ctx context.Context, _ []interface{}) (interface{}, error) {
			return nil, s.Connect(ctx)
		},
		"set_power": func(ctx context.Context, args []interface{}) (interface{}, error) {
			on, err := linker.BoolArg(args, 0)
			if err != nil {
				return nil, fmt.Errorf("%s.set_power: %w", s.Class(), err)
			}
			return nil, s.SetPower(ctx, on)
		},
		"set_absPosition": func(ctx context.Context, args []interface{}) (interface{}, error) {
			var axes [6]*float64
			for i := range axes {
				v, err := linker.FloatArg(args, i)
				if err != nil {
					return nil, fmt.Errorf("%s.set_absPosition: %w", s.Class(), err)
				}
				axes[i] = v
			}
			return nil, s.SetAbsPosition(ctx, driver.Pose{
				Theta1: axes[0], Theta2: axes[1], Theta3: axes[2],
				D1: axes[3], D2: axes[4], D3: axes[5],
			})
		},
		"set_program": func(ctx context.Context, args []interface{}) (interface{}, error) {
			program, err := linker.StringArg(args, 0)
			if err != nil {
				return nil, fmt.Errorf("%s.set_program: %w", s.Class(), err)
			}
			return nil, s.SetProgram(ctx, program)
		},
	}
}
