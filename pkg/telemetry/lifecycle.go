package telemetry

import (
	"context"
	"time"
)

const (
	LifecycleStateMetric = "silo_lifecycle_state"
	StartupStepsMetric   = "silo_startup_steps"
	StepDurationMetric   = "silo_startup_step_duration"
)

// LifecycleMetrics are the instruments recorded by the host while it starts and stops.
type LifecycleMetrics struct {
	state    *Gauge
	steps    *Counter
	duration *Timer
}

func NewLifecycleMetrics(tel *Telemetry) (*LifecycleMetrics, error) {
	state, err := tel.NewGauge(GaugeConfig{
		Name:        LifecycleStateMetric,
		Description: "Current lifecycle state of the silo host",
	})
	if err != nil {
		return nil, err
	}
	steps, err := tel.NewCounter(CounterConfig{
		Name:        StartupStepsMetric,
		Description: "Startup steps run by the silo host",
	})
	if err != nil {
		return nil, err
	}
	duration, err := tel.NewTimer(TimerConfig{
		Name:        StepDurationMetric,
		Description: "Time taken by each startup step",
	})
	if err != nil {
		return nil, err
	}
	return &LifecycleMetrics{state: state, steps: steps, duration: duration}, nil
}

// RecordState sets the state gauge. value is the numeric state, name its label.
func (m *LifecycleMetrics) RecordState(ctx context.Context, name string, value int64) {
	m.state.Record(ctx, value, StringAttr("state", name))
}

// StepStarted counts a successfully started step and records how long it took.
func (m *LifecycleMetrics) StepStarted(ctx context.Context, step string, took time.Duration) {
	m.steps.Inc(ctx, StringAttr("step", step), StringAttr("outcome", "started"))
	m.duration.Record(ctx, took, StringAttr("step", step))
}

// StepFailed counts a step whose start failed.
func (m *LifecycleMetrics) StepFailed(ctx context.Context, step string) {
	m.steps.Inc(ctx, StringAttr("step", step), StringAttr("outcome", "failed"))
}
