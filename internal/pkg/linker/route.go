package linker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ohowland/wadf_core/internal/pkg/dispatch"
	"github.com/ohowland/wadf_core/internal/pkg/driver"
	"github.com/ohowland/wadf_core/internal/pkg/msg"
)

// Path is one driver's side of an operation. Op names the driver operation
// for diagnostics, e.g. "Write" or "digital_write".
type Path[T any] struct {
	Op   string
	Args []interface{}
	Run  func(ctx context.Context) (T, error)
}

// Route is an operation expressed against both drivers.
type Route[T any] struct {
	Virtual Path[T]
	Actual  Path[T]
}

// Dispatch runs r in the mode current at the time of the call.
//
// A path whose driver lacks the operation is diagnosed and reported as
// ErrSkipped, which Set, Get and Call absorb without touching the record.
//
// VirtualMode and ActualMode run one path synchronously. DigitalTwinMode
// submits both paths, virtual first, and sets the busy flag; with wait unset
// it returns as soon as they are queued. With wait set it returns the
// physical result, or the virtual one if the physical task failed.
func Dispatch[T any](ctx context.Context, b *Base, r Route[T], wait bool) (T, error) {
	return DispatchIn(ctx, b, b.Mode(), r, wait)
}

// DispatchIn runs r in mode, for operations that already read the mode to
// pick their route.
func DispatchIn[T any](ctx context.Context, b *Base, mode Mode, r Route[T], wait bool) (T, error) {
	var zero T
	switch mode {
	case VirtualMode:
		return direct(ctx, b, b.drivers.Virtual, r.Virtual)
	case ActualMode:
		return direct(ctx, b, b.drivers.Actual, r.Actual)
	case DigitalTwinMode:
		b.busy.Store(true)
		h, err := b.runner.Submit(ctx, b.completed,
			task(b.drivers.Virtual, r.Virtual),
			task(b.drivers.Actual, r.Actual),
		)
		if err != nil {
			b.busy.Store(false)
			return zero, fmt.Errorf("submit %s: %w", r.Virtual.Op, err)
		}
		if !wait {
			return zero, nil
		}
		results, err := h.Wait(ctx)
		if err != nil {
			return zero, err
		}
		return twinResult[T](results)
	default:
		b.logger.Warn(fmt.Sprintf("%s is not defined..!", mode))
		return zero, fmt.Errorf("%s: %w", mode, ErrUndefinedMode)
	}
}

// Do runs a route synchronously in every mode; DigitalTwinMode submits both
// paths and waits for them.
func Do(ctx context.Context, b *Base, r Route[struct{}]) error {
	_, err := Dispatch(ctx, b, r, true)
	return err
}

// Fire runs a route; in DigitalTwinMode it returns once both paths are queued.
func Fire(ctx context.Context, b *Base, r Route[struct{}]) error {
	_, err := Dispatch(ctx, b, r, false)
	return err
}

func direct[T any](ctx context.Context, b *Base, d driver.Driver, p Path[T]) (T, error) {
	var zero T
	if p.Run == nil {
		p.Run = func(context.Context) (T, error) {
			return zero, fmt.Errorf("%s not found in %s: %w", p.Op, driver.NameOf(d), driver.ErrUnsupportedOperation)
		}
	}
	v, err := p.Run(ctx)
	if errors.Is(err, driver.ErrUnsupportedOperation) {
		b.logger.Warn("Unsupported operation", slog.String("driver", driver.NameOf(d)), slog.Any("error", err))
		return zero, skipped(err)
	}
	return v, err
}

func task[T any](d driver.Driver, p Path[T]) dispatch.Task {
	t := dispatch.Task{Driver: driver.NameOf(d), Op: p.Op, Args: p.Args}
	if p.Run != nil {
		run := p.Run
		t.Run = func(ctx context.Context) (interface{}, error) {
			v, err := run(ctx)
			return v, err
		}
	}
	return t
}

func twinResult[T any](results []dispatch.Result) (T, error) {
	var zero T
	if len(results) != 2 {
		return zero, fmt.Errorf("expected 2 twin results, got %d", len(results))
	}
	virtual, actual := results[0], results[1]
	if actual.Err == nil {
		v, _ := actual.Value.(T)
		return v, nil
	}
	if virtual.Err == nil {
		v, _ := virtual.Value.(T)
		return v, nil
	}
	if errors.Is(actual.Err, driver.ErrUnsupportedOperation) {
		return zero, skipped(actual.Err)
	}
	return zero, actual.Err
}

func skipped(err error) error {
	return fmt.Errorf("%w: %w", ErrSkipped, err)
}

// completed is the completion signal of every twin task.
func (b *Base) completed(h *dispatch.Handle, r dispatch.Result) {
	if b.policy != dispatch.JoinAll || h.Remaining() == 0 {
		b.busy.Store(false)
	}
	b.logger.Debug("result", slog.String("task", r.Task.String()), slog.Any("error", r.Err))
	b.events.Publish(msg.Completion, r)
}

// Invoke builds the path that runs f on d's capability C. A driver lacking C
// yields ErrUnsupportedOperation naming op.
func Invoke[C any, T any](d driver.Driver, op string, args []interface{}, f func(ctx context.Context, c C) (T, error)) Path[T] {
	return Path[T]{
		Op:   op,
		Args: args,
		Run: func(ctx context.Context) (T, error) {
			c, err := driver.As[C](d, op)
			if err != nil {
				var zero T
				return zero, err
			}
			return f(ctx, c)
		},
	}
}

// Act is Invoke for operations without a result.
func Act[C any](d driver.Driver, op string, args []interface{}, f func(ctx context.Context, c C) error) Path[struct{}] {
	return Invoke(d, op, args, func(ctx context.Context, c C) (struct{}, error) {
		return struct{}{}, f(ctx, c)
	})
}
