package commands

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/specialistvlad/wfengine/internal/wferr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("wfengine.commands")
	meter  = otel.Meter("wfengine.commands")
)

type instruments struct {
	once     sync.Once
	commands metric.Int64Counter
	duration metric.Float64Histogram
	undo     metric.Int64Counter
	redo     metric.Int64Counter
}

func (in *instruments) init(logger *slog.Logger) {
	in.once.Do(func() {
		var err error
		if in.commands, err = meter.Int64Counter("wfengine_commands_total",
			metric.WithDescription("Number of executed commands by kind and outcome"),
		); err != nil {
			logger.Warn("Failed to create command counter.", "error", err)
		}
		if in.duration, err = meter.Float64Histogram("wfengine_command_duration_seconds",
			metric.WithDescription("Time spent applying a command"),
			metric.WithUnit("s"),
		); err != nil {
			logger.Warn("Failed to create command histogram.", "error", err)
		}
		if in.undo, err = meter.Int64Counter("wfengine_undo_total",
			metric.WithDescription("Number of undo requests by outcome"),
		); err != nil {
			logger.Warn("Failed to create undo counter.", "error", err)
		}
		if in.redo, err = meter.Int64Counter("wfengine_redo_total",
			metric.WithDescription("Number of redo requests by outcome"),
		); err != nil {
			logger.Warn("Failed to create redo counter.", "error", err)
		}
	})
}

func outcome(err error, changed bool) string {
	switch {
	case err != nil:
		return string(wferr.KindOf(err))
	case !changed:
		return "noop"
	default:
		return "success"
	}
}

func (in *instruments) command(ctx context.Context, kind Kind, out string, d time.Duration) {
	ctx = context.WithoutCancel(ctx)
	if in.commands != nil {
		in.commands.Add(ctx, 1, metric.WithAttributes(
			attribute.String("kind", string(kind)),
			attribute.String("outcome", out),
		))
	}
	if in.duration != nil {
		in.duration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("kind", string(kind))))
	}
}

func (in *instruments) travel(ctx context.Context, undo bool, out string) {
	c := in.redo
	if undo {
		c = in.undo
	}
	if c != nil {
		c.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(attribute.String("outcome", out)))
	}
}
