package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"

	"github.com/storacha/silo/lib/telemetry/metrics"
	"github.com/storacha/silo/lib/telemetry/traces"
)

type shutdownFn func(context.Context) error

// Config describes the process being instrumented and where its signals go.
type Config struct {
	Environment    string
	ServiceName    string
	ServiceVersion string
	InstanceID     string
	Metrics        metrics.Config
	Traces         traces.Config
	ResourceOpts   []resource.Option
}

type Telemetry struct {
	Metrics     metric.MeterProvider
	Traces      trace.TracerProvider
	shutdownFns []shutdownFn
}

// New builds the meter and tracer providers and installs them as the otel globals.
func New(ctx context.Context, cfg Config) (*Telemetry, error) {
	switch {
	case cfg.ServiceName == "":
		return nil, fmt.Errorf("telemetry service name required")
	case cfg.ServiceVersion == "":
		return nil, fmt.Errorf("telemetry service version required")
	case cfg.InstanceID == "":
		return nil, fmt.Errorf("telemetry instance id required")
	case cfg.Environment == "":
		return nil, fmt.Errorf("telemetry environment required")
	}

	rsrcOpts := []resource.Option{
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
			semconv.ServiceInstanceIDKey.String(cfg.InstanceID),
			semconv.DeploymentEnvironmentNameKey.String(cfg.Environment),
		),
	}
	rsrcOpts = append(rsrcOpts, cfg.ResourceOpts...)

	rsrc, err := resource.New(ctx, rsrcOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	metricsProvider, metricShutdownFn, err := metrics.NewProvider(ctx, rsrc, cfg.Metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics provider: %w", err)
	}

	traceProvider, traceShutdownFn, err := traces.NewProvider(ctx, rsrc, cfg.Traces)
	if err != nil {
		_ = metricShutdownFn(ctx)
		return nil, fmt.Errorf("failed to create trace provider: %w", err)
	}

	otel.SetMeterProvider(metricsProvider)
	otel.SetTracerProvider(traceProvider)

	return &Telemetry{
		Metrics:     metricsProvider,
		Traces:      traceProvider,
		shutdownFns: []shutdownFn{metricShutdownFn, traceShutdownFn},
	}, nil
}

// Shutdown flushes and stops every provider, reporting all failures.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var err error
	for _, fn := range t.shutdownFns {
		err = multierr.Append(err, fn(ctx))
	}
	return err
}
