package telemetry

import (
	"context"
	"errors"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	libtelemetry "github.com/storacha/silo/lib/telemetry"
	"github.com/storacha/silo/lib/telemetry/metrics"
	"github.com/storacha/silo/lib/telemetry/traces"
	"github.com/storacha/silo/pkg/build"
	"github.com/storacha/silo/pkg/config/app"
)

const defaultServiceName = "silo"

var ErrNotConfigured = errors.New("telemetry endpoint not configured")

// StepDurationBounds are the histogram buckets of startup step durations, in milliseconds.
var StepDurationBounds = []float64{
	1, 5, 10, 50, 100, 250, 500,
	(time.Second).Seconds() * 1000,
	(5 * time.Second).Seconds() * 1000,
	(30 * time.Second).Seconds() * 1000,
	(time.Minute).Seconds() * 1000,
}

// StepDurationView applies StepDurationBounds to the step duration histogram.
var StepDurationView = sdkmetric.NewView(
	sdkmetric.Instrument{
		Name: StepDurationMetric,
		Kind: sdkmetric.InstrumentKindHistogram,
	},
	sdkmetric.Stream{
		Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
			Boundaries: StepDurationBounds,
		},
	},
)

// Setup builds the exporters for cfg.Telemetry. The instance id is the silo's
// membership id so every signal can be tied to one incarnation.
func Setup(ctx context.Context, cfg app.AppConfig, instanceID string, extraReaders ...sdkmetric.Reader) (*Telemetry, error) {
	if cfg.Telemetry == nil || cfg.Telemetry.Endpoint == "" {
		return nil, ErrNotConfigured
	}
	tc := cfg.Telemetry

	serviceName := cfg.ApplicationName
	if serviceName == "" {
		serviceName = defaultServiceName
	}
	environment := cfg.Environment
	if environment == "" {
		log.Warn("environment not configured; telemetry will use 'custom' as deployment environment")
		environment = "custom"
	}

	return New(ctx, libtelemetry.Config{
		Environment:    environment,
		ServiceName:    serviceName,
		ServiceVersion: build.Version,
		InstanceID:     instanceID,
		Metrics: metrics.Config{
			Collectors: []metrics.CollectorConfig{{
				Endpoint:        tc.Endpoint,
				Insecure:        tc.Insecure,
				Headers:         tc.Headers,
				PublishInterval: tc.PublishInterval,
			}},
			Readers: extraReaders,
			Options: []sdkmetric.Option{sdkmetric.WithView(StepDurationView)},
		},
		Traces: traces.Config{
			Collectors: []traces.CollectorConfig{{
				Endpoint:        tc.Endpoint,
				Insecure:        tc.Insecure,
				Headers:         tc.Headers,
				PublishInterval: tc.PublishInterval,
			}},
		},
	})
}
