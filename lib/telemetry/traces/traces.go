package traces

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type CollectorConfig struct {
	Endpoint        string
	Insecure        bool
	Headers         map[string]string
	PublishInterval time.Duration
}

type Config struct {
	Collectors []CollectorConfig
	// Sampler defaults to sampling only spans with a sampled parent.
	Sampler sdktrace.Sampler
}

// NewProvider returns a noop provider when no collector is configured.
func NewProvider(
	ctx context.Context,
	res *sdkresource.Resource,
	cfg Config,
) (trace.TracerProvider, func(context.Context) error, error) {
	if len(cfg.Collectors) == 0 {
		return noop.NewTracerProvider(),
			func(context.Context) error { return nil },
			nil
	}

	sampler := cfg.Sampler
	if sampler == nil {
		sampler = sdktrace.ParentBased(sdktrace.NeverSample())
	}
	providerOptions := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	}

	for _, collector := range cfg.Collectors {
		if collector.Endpoint == "" {
			return nil, nil, fmt.Errorf("trace collector endpoint required")
		}
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(collector.Endpoint)}
		if len(collector.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(collector.Headers))
		}
		if collector.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exporter, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create trace exporter for %s: %w", collector.Endpoint, err)
		}
		var bspOpts []sdktrace.BatchSpanProcessorOption
		if collector.PublishInterval > 0 {
			bspOpts = append(bspOpts, sdktrace.WithBatchTimeout(collector.PublishInterval))
		}
		providerOptions = append(providerOptions, sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(exporter, bspOpts...)))
	}

	provider := sdktrace.NewTracerProvider(providerOptions...)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return provider, provider.Shutdown, nil
}
