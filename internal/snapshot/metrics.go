package snapshot

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("wfengine.snapshot")

type instruments struct {
	once      sync.Once
	snapshots metric.Int64Counter
	events    metric.Int64Counter
}

func (in *instruments) init(logger *slog.Logger) {
	in.once.Do(func() {
		var err error
		if in.snapshots, err = meter.Int64Counter("wfengine_snapshots_total",
			metric.WithDescription("Number of stored snapshots"),
		); err != nil {
			logger.Warn("Failed to create snapshot counter.", "error", err)
		}
		if in.events, err = meter.Int64Counter("wfengine_snapshot_events_total",
			metric.WithDescription("Number of subscriber event deliveries by outcome"),
		); err != nil {
			logger.Warn("Failed to create event counter.", "error", err)
		}
	})
}

func (in *instruments) snapshot(ctx context.Context) {
	if in.snapshots != nil {
		in.snapshots.Add(context.WithoutCancel(ctx), 1)
	}
}

func (in *instruments) event(err error) {
	if in.events == nil {
		return
	}
	out := "success"
	if err != nil {
		out = "error"
	}
	in.events.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", out)))
}
