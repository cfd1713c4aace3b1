package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// telemetry owns the meter provider behind the /metrics endpoint.
type telemetry struct {
	handler  http.Handler
	provider *sdkmetric.MeterProvider
}

// setupTelemetry installs a meter provider exporting to a private
// Prometheus registry. When disabled the global no-op provider stays in
// place and there is no handler.
func setupTelemetry(enabled bool) (*telemetry, error) {
	if !enabled {
		return &telemetry{}, nil
	}
	reg := prometheus.NewRegistry()
	exporter, err := promexporter.New(promexporter.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)
	return &telemetry{
		handler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		provider: provider,
	}, nil
}

func (t *telemetry) shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}
