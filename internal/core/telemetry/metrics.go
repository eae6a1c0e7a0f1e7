// Package telemetry wires the OpenTelemetry meter provider used for
// evaluation metrics.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const (
	exportInterval = 10 * time.Second
	initTimeout    = 5 * time.Second
)

// ShutdownFunc flushes and stops the meter provider.
type ShutdownFunc func(context.Context) error

// InitMetrics builds a meter provider that pushes to an OTLP gRPC collector at
// endpoint and installs it globally. An empty endpoint yields a no-op
// provider and a no-op shutdown.
func InitMetrics(ctx context.Context, endpoint, serviceName string, logger hclog.Logger) (metric.MeterProvider, ShutdownFunc, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	noShutdown := func(context.Context) error { return nil }

	if endpoint == "" {
		logger.Debug("metrics export disabled")
		return noop.NewMeterProvider(), noShutdown, nil
	}

	// Schemaless so the merge never conflicts with the SDK default's schema URL
	res, err := sdkresource.Merge(sdkresource.Default(), sdkresource.NewSchemaless(
		semconv.ServiceName(serviceName),
	))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build resource: %w", err)
	}

	initCtx, cancel := context.WithTimeout(ctx, initTimeout)
	defer cancel()
	exp, err := otlpmetricgrpc.New(initCtx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create OTLP exporter for %s: %w", endpoint, err)
	}

	reader := sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(exportInterval))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res))
	otel.SetMeterProvider(mp)

	logger.Info("metrics initialized", "endpoint", endpoint, "interval", exportInterval)
	return mp, mp.Shutdown, nil
}
