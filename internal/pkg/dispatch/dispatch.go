// Package dispatch runs driver operations on a bounded worker pool.
//
// A digital-twin call submits one task per driver, virtual first, and returns
// without waiting. Each task reports its completion exactly once through the
// handle it was submitted with; failures are reported to the diagnostic
// logger and never returned to the submitter.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ohowland/wadf_core/internal/pkg/driver"
)

// ErrClosed is returned by Submit once the runner is closed.
var ErrClosed = errors.New("dispatch: runner closed")

// DefaultPoolSize covers the two sub-operations of a digital-twin call.
const DefaultPoolSize = 2

// Policy decides when a submission counts as finished for the linker's busy flag.
type Policy int

const (
	// FirstCompletion clears the busy flag on the first task completion.
	FirstCompletion Policy = iota
	// JoinAll clears the busy flag once every task of the submission completed.
	JoinAll
)

func (p Policy) String() string {
	switch p {
	case FirstCompletion:
		return "first"
	case JoinAll:
		return "join"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// ParsePolicy parses "first" or "join".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "first", "first-completion":
		return FirstCompletion, nil
	case "join", "join-all", "barrier":
		return JoinAll, nil
	}
	return FirstCompletion, fmt.Errorf("unknown completion policy: %q", s)
}

// Task is one operation against one driver.
type Task struct {
	Driver string
	Op     string
	Args   []interface{}
	Run    func(ctx context.Context) (interface{}, error)
}

func (t Task) String() string {
	return fmt.Sprintf("%s.%s%v", t.Driver, t.Op, t.Args)
}

// Result is the completion signal of a task.
type Result struct {
	Task     Task
	Value    interface{}
	Err      error
	Duration time.Duration
}

// Handle tracks the tasks of one submission.
type Handle struct {
	results   []Result
	remaining atomic.Int32
	onDone    func(*Handle, Result)
	done      chan struct{}
}

// Remaining is the number of tasks of the submission that have not completed.
func (h *Handle) Remaining() int {
	return int(h.remaining.Load())
}

// Done is closed once every task of the submission completed.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until every task completed and returns their results in
// submission order.
func (h *Handle) Wait(ctx context.Context) ([]Result, error) {
	select {
	case <-h.done:
		return h.results, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// complete records r and fires the completion signal. Remaining already
// excludes r when onDone runs, so exactly one call observes zero.
func (h *Handle) complete(i int, r Result) {
	h.results[i] = r
	left := h.remaining.Add(-1)
	if h.onDone != nil {
		h.onDone(h, r)
	}
	if left == 0 {
		close(h.done)
	}
}

type job struct {
	handle *Handle
	index  int
	task   Task
}

// Runner is a fixed-size worker pool fed by a FIFO queue.
type Runner struct {
	logger *slog.Logger
	queue  chan job
	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

// Options configures a Runner.
type Options struct {
	// PoolSize is the number of workers. Defaults to DefaultPoolSize.
	PoolSize int
	// QueueDepth bounds pending tasks before Submit blocks. Defaults to 4*PoolSize.
	QueueDepth int
	Logger     *slog.Logger
}

// NewRunner starts the workers of a Runner.
func NewRunner(opts Options) *Runner {
	if opts.PoolSize <= 0 {
		opts.PoolSize = DefaultPoolSize
	}
	if opts.QueueDepth <= 0 {
		opts.QueueDepth = 4 * opts.PoolSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		logger: opts.Logger.With("component", "dispatch"),
		queue:  make(chan job, opts.QueueDepth),
		group:  &errgroup.Group{},
		ctx:    ctx,
		cancel: cancel,
	}
	for i := 0; i < opts.PoolSize; i++ {
		r.group.Go(r.worker)
	}
	return r
}

// Submit queues tasks in order and returns their handle without waiting for
// them to run. onDone, if set, is called once per task from the worker that ran it.
func (r *Runner) Submit(ctx context.Context, onDone func(*Handle, Result), tasks ...Task) (*Handle, error) {
	h := &Handle{
		results: make([]Result, len(tasks)),
		onDone:  onDone,
		done:    make(chan struct{}),
	}
	h.remaining.Store(int32(len(tasks)))
	if len(tasks) == 0 {
		close(h.done)
		return h, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, ErrClosed
	}
	for i, t := range tasks {
		select {
		case r.queue <- job{handle: h, index: i, task: t}:
			measureSubmit(ctx, t)
		case <-ctx.Done():
			// Tasks already queued still run and complete; the rest are
			// reported as cancelled so the handle resolves.
			for j := i; j < len(tasks); j++ {
				h.complete(j, Result{Task: tasks[j], Err: ctx.Err()})
			}
			return h, ctx.Err()
		}
	}
	return h, nil
}

// Close stops accepting tasks, runs what is queued and waits for the workers.
func (r *Runner) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()
	err := r.group.Wait()
	r.cancel()
	return err
}

func (r *Runner) worker() error {
	for j := range r.queue {
		j.handle.complete(j.index, r.run(j.task))
	}
	return nil
}

func (r *Runner) run(t Task) (res Result) {
	res.Task = t
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res.Err = fmt.Errorf("task %s panicked: %v", t, p)
		}
		res.Duration = time.Since(start)
		measureTask(r.ctx, t, res)
		r.report(res)
	}()

	if t.Run == nil {
		res.Err = fmt.Errorf("%s not found in %s: %w", t.Op, t.Driver, driver.ErrUnsupportedOperation)
		return res
	}
	res.Value, res.Err = t.Run(r.ctx)
	return res
}

func (r *Runner) report(res Result) {
	logger := r.logger.With(
		slog.String("driver", res.Task.Driver),
		slog.String("op", res.Task.Op),
	)
	switch {
	case res.Err == nil:
		logger.Debug("Task completed", slog.Duration("elapsed", res.Duration))
	case errors.Is(res.Err, driver.ErrUnsupportedOperation):
		logger.Warn("Unsupported operation", slog.Any("error", res.Err))
	default:
		logger.Error("Task failed", slog.Any("error", res.Err))
	}
}
