package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

type CollectorConfig struct {
	Endpoint        string
	Insecure        bool
	Headers         map[string]string
	PublishInterval time.Duration
}

type Config struct {
	Collectors []CollectorConfig
	// Readers are attached in addition to the collectors, tests pass a
	// sdkmetric.ManualReader here.
	Readers []sdkmetric.Reader
	Options []sdkmetric.Option
}

// NewProvider returns a noop provider when neither collectors nor readers are configured.
func NewProvider(
	ctx context.Context,
	res *resource.Resource,
	cfg Config,
) (metric.MeterProvider, func(context.Context) error, error) {
	if len(cfg.Collectors) == 0 && len(cfg.Readers) == 0 {
		return noop.NewMeterProvider(),
			func(context.Context) error { return nil },
			nil
	}

	readers := append([]sdkmetric.Reader{}, cfg.Readers...)
	for _, collector := range cfg.Collectors {
		if collector.Endpoint == "" {
			return nil, nil, fmt.Errorf("telemetry collector endpoint is required")
		}
		if collector.PublishInterval <= 0 {
			return nil, nil, fmt.Errorf("telemetry collector publish interval is required")
		}
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(collector.Endpoint)}
		if len(collector.Headers) > 0 {
			opts = append(opts, otlpmetrichttp.WithHeaders(collector.Headers))
		}
		if collector.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		exporter, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create metric exporter for %s: %w", collector.Endpoint, err)
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(collector.PublishInterval)))
	}

	providerOptions := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, r := range readers {
		providerOptions = append(providerOptions, sdkmetric.WithReader(r))
	}
	providerOptions = append(providerOptions, cfg.Options...)

	provider := sdkmetric.NewMeterProvider(providerOptions...)
	return provider, provider.Shutdown, nil
}
