// Package telemetry exports the silo's own metrics and traces over OTLP.
//
// A Telemetry wraps the meter and tracer providers built by lib/telemetry and
// creates the instruments the host records into:
//
//	tel, err := telemetry.Setup(ctx, cfg, identity.ID())
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(ctx)
//
//	lm, _ := telemetry.NewLifecycleMetrics(tel)
//	lm.StepStarted(ctx, "membership-join", time.Since(start))
package telemetry

import (
	"context"
	"fmt"

	logging "github.com/ipfs/go-log/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	libtelemetry "github.com/storacha/silo/lib/telemetry"
)

var log = logging.Logger("telemetry")

const instrumentationName = "github.com/storacha/silo"

type Telemetry struct {
	providers *libtelemetry.Telemetry
	meter     metric.Meter
	tracer    trace.Tracer
}

func New(ctx context.Context, cfg libtelemetry.Config) (*Telemetry, error) {
	providers, err := libtelemetry.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create telemetry providers: %w", err)
	}

	return &Telemetry{
		providers: providers,
		meter:     providers.Metrics.Meter(instrumentationName),
		tracer:    providers.Traces.Tracer(instrumentationName),
	}, nil
}

// NewWithMeter creates a Telemetry recording into meter, with tracing disabled.
// Tests pass a meter backed by a manual reader.
func NewWithMeter(meter metric.Meter) *Telemetry {
	return &Telemetry{
		meter:  meter,
		tracer: noop.NewTracerProvider().Tracer(instrumentationName),
	}
}

func (t *Telemetry) Meter() metric.Meter {
	return t.meter
}

func (t *Telemetry) Tracer() trace.Tracer {
	return t.tracer
}

func (t *Telemetry) NewCounter(cfg CounterConfig) (*Counter, error) {
	return NewCounter(t.meter, cfg)
}

func (t *Telemetry) NewGauge(cfg GaugeConfig) (*Gauge, error) {
	return NewGauge(t.meter, cfg)
}

func (t *Telemetry) NewTimer(cfg TimerConfig) (*Timer, error) {
	return NewTimer(t.meter, cfg)
}

// Shutdown flushes pending exports. It is a no-op for a Telemetry created by NewWithMeter.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t.providers == nil {
		return nil
	}
	log.Debug("flushing telemetry exporters")
	return t.providers.Shutdown(ctx)
}

func StringAttr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

func IntAttr(key string, value int) attribute.KeyValue {
	return attribute.Int(key, value)
}

func BoolAttr(key string, value bool) attribute.KeyValue {
	return attribute.Bool(key, value)
}

func attrsFromMap(m map[string]string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(m))
	for k, v := range m {
		attrs = append(attrs, attribute.String(k, v))
	}
	return attrs
}
