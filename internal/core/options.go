package core

import (
	"context"
	"time"

	"surveycore/pkg/domain"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now returns the function's time.
func (f ClockFunc) Now() time.Time { return f() }

// Logger is the structured logging surface used by the service. *slog.Logger
// satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MetricsRecorder observes service operations.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// SurveyGauge is implemented by recorders that also track the stored count.
type SurveyGauge interface {
	SetSurveys(n int)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	clock   Clock
	logger  Logger
	metrics MetricsRecorder
	state   domain.StateStore
	bus     *EventBus
	engine  *RulesEngine
}

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		clock:   ClockFunc(func() time.Time { return time.Now().UTC() }),
		logger:  noopLogger{},
		metrics: noopMetrics{},
	}
}

// WithClock overrides the clock used for ids, timestamps and lastModified.
func WithClock(clock Clock) ServiceOption {
	return func(o *serviceOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger Logger) ServiceOption {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(metrics MetricsRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if metrics != nil {
			o.metrics = metrics
		}
	}
}

// WithStateStore sets the durable snapshot backend. Without it the service
// keeps its snapshot in memory.
func WithStateStore(state domain.StateStore) ServiceOption {
	return func(o *serviceOptions) { o.state = state }
}

// WithEventBus shares an existing event bus.
func WithEventBus(bus *EventBus) ServiceOption {
	return func(o *serviceOptions) { o.bus = bus }
}

// WithRulesEngine replaces the default validation rules.
func WithRulesEngine(engine *RulesEngine) ServiceOption {
	return func(o *serviceOptions) { o.engine = engine }
}
