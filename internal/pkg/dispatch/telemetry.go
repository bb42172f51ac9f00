package dispatch

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ohowland/wadf_core/internal/pkg/driver"
)

var meter = otel.Meter("github.com/ohowland/wadf_core/internal/pkg/dispatch")

var (
	// tasksSubmitted counts tasks queued on the pool, labeled by driver and op.
	tasksSubmitted metric.Int64Counter
	// taskDuration measures how long a task held a worker.
	taskDuration metric.Float64Histogram
	// tasksUnsupported counts tasks whose driver lacked the capability.
	tasksUnsupported metric.Int64Counter
	// tasksFailed counts tasks that returned any other error.
	tasksFailed metric.Int64Counter
)

func init() {
	var err error
	tasksSubmitted, err = meter.Int64Counter(
		"dispatch.tasks.submitted",
		metric.WithDescription("The number of driver tasks queued on the worker pool."),
	)
	if err != nil {
		panic("dispatch: failed to init 'dispatch.tasks.submitted' instrument")
	}

	taskDuration, err = meter.Float64Histogram(
		"dispatch.task.duration",
		metric.WithDescription("The time a driver task held a worker."),
		metric.WithUnit("ms"),
	)
	if err != nil {
		panic("dispatch: failed to init 'dispatch.task.duration' instrument")
	}

	tasksUnsupported, err = meter.Int64Counter(
		"dispatch.tasks.unsupported",
		metric.WithDescription("The number of tasks skipped because the driver lacks the operation."),
	)
	if err != nil {
		panic("dispatch: failed to init 'dispatch.tasks.unsupported' instrument")
	}

	tasksFailed, err = meter.Int64Counter(
		"dispatch.tasks.failed",
		metric.WithDescription("The number of tasks whose operation returned an error."),
	)
	if err != nil {
		panic("dispatch: failed to init 'dispatch.tasks.failed' instrument")
	}
}

func taskAttrs(t Task) attribute.Set {
	return attribute.NewSet(
		attribute.String("driver", t.Driver),
		attribute.String("op", t.Op),
	)
}

func measureSubmit(ctx context.Context, t Task) {
	tasksSubmitted.Add(ctx, 1, metric.WithAttributeSet(taskAttrs(t)))
}

func measureTask(ctx context.Context, t Task, res Result) {
	attrs := metric.WithAttributeSet(taskAttrs(t))
	switch {
	case res.Err == nil:
		taskDuration.Record(ctx, float64(res.Duration)/float64(time.Millisecond), attrs)
	case errors.Is(res.Err, driver.ErrUnsupportedOperation):
		tasksUnsupported.Add(ctx, 1, attrs)
	default:
		tasksFailed.Add(ctx, 1, attrs)
	}
}
