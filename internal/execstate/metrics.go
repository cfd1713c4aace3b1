package execstate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("wfengine.execstate")
	meter  = otel.Meter("wfengine.execstate")
)

type instruments struct {
	once       sync.Once
	executions metric.Int64Counter
	duration   metric.Float64Histogram
}

// init creates the instruments once. Failures leave them nil and are only
// logged; recording is then skipped.
func (in *instruments) init(logger *slog.Logger) {
	in.once.Do(func() {
		var err error
		in.executions, err = meter.Int64Counter("wfengine_node_executions_total",
			metric.WithDescription("Number of finished node executions by outcome"),
		)
		if err != nil {
			logger.Warn("Failed to create execution counter.", "error", err)
		}
		in.duration, err = meter.Float64Histogram("wfengine_node_duration_seconds",
			metric.WithDescription("Time spent executing each node"),
			metric.WithUnit("s"),
		)
		if err != nil {
			logger.Warn("Failed to create execution histogram.", "error", err)
		}
	})
}

func (in *instruments) record(ctx context.Context, err error, d time.Duration) {
	outcome := "success"
	switch {
	case errors.Is(err, context.Canceled):
		outcome = "canceled"
	case err != nil:
		outcome = "failure"
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	// ctx may already be canceled; metrics must still be recorded.
	ctx = context.WithoutCancel(ctx)
	if in.executions != nil {
		in.executions.Add(ctx, 1, attrs)
	}
	if in.duration != nil {
		in.duration.Record(ctx, d.Seconds(), attrs)
	}
}
