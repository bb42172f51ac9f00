// Package linker binds one logical workcell device to a virtual and a
// physical driver under a selectable execution mode.
//
// Every control ("set_*") and monitoring ("get_*") operation of a linker is
// composed from three pieces provided here: the record wrapper (Set, Get),
// the mode router (Route) and the dual-driver dispatch used in
// DigitalTwinMode. Device specific linkers live under internal/lib/linker.
package linker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ohowland/wadf_core/internal/pkg/dispatch"
	"github.com/ohowland/wadf_core/internal/pkg/driver"
	"github.com/ohowland/wadf_core/internal/pkg/msg"
	"github.com/ohowland/wadf_core/internal/pkg/record"
)

var (
	// ErrUndefinedMode is reported when a call finds the linker in a mode
	// outside {VirtualMode, ActualMode, DigitalTwinMode}. The call is a no-op.
	ErrUndefinedMode = errors.New("mode is not defined")
	// ErrArity is returned when a setter is invoked without its argument.
	ErrArity = errors.New("setter requires an argument")
	// ErrSkipped is reported by a route whose driver does not implement the
	// operation. The call already produced its diagnostic.
	ErrSkipped = errors.New("operation skipped")
)

// Drivers is the pair of drivers a linker routes to. Either may be nil.
type Drivers struct {
	Virtual driver.Driver
	Actual  driver.Driver
}

// Config wires a Base.
type Config struct {
	// Class is the linker class name used for record keys, e.g. "Conveyor".
	Class   string
	Record  *record.Record
	Drivers Drivers
	Runner  *dispatch.Runner
	Policy  dispatch.Policy
	Mode    Mode
	Logger  *slog.Logger
	// Sleep blocks for a settle delay. Defaults to a timer honouring ctx.
	Sleep func(ctx context.Context, d time.Duration) error
	// Now stamps record entries. Defaults to time.Now.
	Now func() time.Time
}

// Base carries the state shared by every linker: mode, record, drivers and
// the busy flag of digital-twin dispatches.
type Base struct {
	pid     uuid.UUID
	class   string
	mux     *sync.Mutex
	mode    Mode
	busy    atomic.Bool
	events  *msg.PubSub
	record  *record.Record
	drivers Drivers
	runner  *dispatch.Runner
	policy  dispatch.Policy
	logger  *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error
	now     func() time.Time
}

// New returns a Base for cfg. A nil Record yields an empty one, so every
// store is skipped with a diagnostic.
func New(cfg Config) *Base {
	if cfg.Record == nil {
		cfg.Record = record.New(cfg.Class, nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Runner == nil {
		cfg.Runner = dispatch.NewRunner(dispatch.Options{Logger: cfg.Logger})
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleep
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	pid := uuid.New()
	return &Base{
		pid:     pid,
		class:   cfg.Class,
		mux:     &sync.Mutex{},
		events:  msg.NewPublisher(pid),
		mode:    cfg.Mode,
		record:  cfg.Record,
		drivers: cfg.Drivers,
		runner:  cfg.Runner,
		policy:  cfg.Policy,
		logger:  cfg.Logger.With("component", "linker", "linker", cfg.Class),
		sleep:   cfg.Sleep,
		now:     cfg.Now,
	}
}

// PID is the process id of the linker.
func (b *Base) PID() uuid.UUID {
	return b.pid
}

// Class is the linker class name.
func (b *Base) Class() string {
	return b.class
}

// Record is the device record of the linker.
func (b *Base) Record() *record.Record {
	return b.record
}

// Drivers returns the virtual and physical drivers.
func (b *Base) Drivers() Drivers {
	return b.drivers
}

// Logger is the diagnostic sink of the linker.
func (b *Base) Logger() *slog.Logger {
	return b.logger
}

// Mode returns the current execution mode.
func (b *Base) Mode() Mode {
	b.mux.Lock()
	defer b.mux.Unlock()
	return b.mode
}

// SwitchMode sets the mode used by the next call. Calls in flight keep the
// mode they started with. The target is not validated.
func (b *Base) SwitchMode(m Mode) {
	b.mux.Lock()
	defer b.mux.Unlock()
	if m != b.mode {
		b.logger.Info("Switching mode", slog.String("from", b.mode.String()), slog.String("to", m.String()))
	}
	b.mode = m
}

// Running reports the busy flag of the last digital-twin dispatch.
func (b *Base) Running() bool {
	return b.busy.Load()
}

// Subscribe returns a channel of the linker's msg.Completion messages, one
// per digital-twin task, carrying its dispatch.Result.
func (b *Base) Subscribe(pid uuid.UUID, topic msg.Topic) <-chan msg.Msg {
	return b.events.Subscribe(pid, topic)
}

// Unsubscribe closes the channels of pid.
func (b *Base) Unsubscribe(pid uuid.UUID) {
	b.events.Unsubscribe(pid)
}

// Settle blocks for d, or until ctx is done.
func (b *Base) Settle(ctx context.Context, d time.Duration) error {
	return b.sleep(ctx, d)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// store writes value under the key derived from op. A missing key is
// diagnosed and skipped.
func (b *Base) store(ctx context.Context, op string, value interface{}) {
	section, key, err := record.DeriveKey(b.class, op)
	if err == nil {
		err = b.record.Set(section, key, value, b.now())
	}
	if err != nil {
		if section == "" {
			section = record.Monitoring
		}
		b.logger.Warn(fmt.Sprintf("Key %s not found in %s. Skipping update.", key, section),
			slog.String("op", op))
		measureSkip(ctx, b.class, op)
	}
}

// Set records args[0] as the value of op's control key, then runs f.
// Undefined-mode calls are absorbed into a no-op.
func (b *Base) Set(ctx context.Context, op string, args []interface{}, f func(ctx context.Context) error) error {
	ctx, end := b.trace(ctx, op)
	defer end()
	if len(args) == 0 {
		return fmt.Errorf("%s.%s: %w", b.class, op, ErrArity)
	}
	b.store(ctx, op, args[0])
	return absorb(f(ctx))
}

// Get runs f and records its value under op's monitoring key. Nothing is
// recorded when f fails or its operation was skipped; a skipped read returns
// the zero value and no error.
func Get[T any](ctx context.Context, b *Base, op string, f func(ctx context.Context) (T, error)) (T, error) {
	ctx, end := b.trace(ctx, op)
	defer end()
	v, err := f(ctx)
	if err != nil {
		var zero T
		return zero, absorb(err)
	}
	b.store(ctx, op, v)
	return v, nil
}

// Call runs an operation that has no record key, such as power_on.
func (b *Base) Call(ctx context.Context, op string, f func(ctx context.Context) error) error {
	ctx, end := b.trace(ctx, op)
	defer end()
	return absorb(f(ctx))
}

func absorb(err error) error {
	if errors.Is(err, ErrUndefinedMode) || errors.Is(err, ErrSkipped) {
		return nil
	}
	return err
}
