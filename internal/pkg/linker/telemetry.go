package linker

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/ohowland/wadf_core/internal/pkg/linker")
var meter = otel.Meter("github.com/ohowland/wadf_core/internal/pkg/linker")

var (
	// linkerCalls counts linker operations, labeled by linker, op and the mode
	// the call was routed in.
	linkerCalls metric.Int64Counter
	// recordSkips counts record stores skipped because the key is not declared.
	recordSkips metric.Int64Counter
)

func init() {
	var err error
	linkerCalls, err = meter.Int64Counter(
		"linker.calls",
		metric.WithDescription("The number of control and monitoring calls made on linkers."),
	)
	if err != nil {
		panic("linker: failed to init 'linker.calls' instrument")
	}

	recordSkips, err = meter.Int64Counter(
		"linker.record.skipped",
		metric.WithDescription("The number of record updates skipped because the key is unknown."),
	)
	if err != nil {
		panic("linker: failed to init 'linker.record.skipped' instrument")
	}
}

// trace opens a span for op and counts the call.
func (b *Base) trace(ctx context.Context, op string) (context.Context, func()) {
	mode := b.Mode()
	ctx, span := tracer.Start(ctx, b.class+"."+op, trace.WithAttributes(
		attribute.String("linker", b.class),
		attribute.String("mode", mode.String()),
	))
	attrs := attribute.NewSet(
		attribute.String("linker", b.class),
		attribute.String("op", op),
		attribute.String("mode", mode.String()),
	)
	linkerCalls.Add(ctx, 1, metric.WithAttributeSet(attrs))
	return ctx, func() { span.End() }
}

func measureSkip(ctx context.Context, class, op string) {
	attrs := attribute.NewSet(
		attribute.String("linker", class),
		attribute.String("op", op),
	)
	recordSkips.Add(ctx, 1, metric.WithAttributeSet(attrs))
}
