package api

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Observer receives callbacks from the orchestrator and the execution
// engines for logging and metrics.
//
// Implementations should be fast and non-blocking; heavy work should be done
// asynchronously so as not to delay turn handling.
type Observer interface {
	// OnTurnStart is called once per inbound request, after the state has
	// been loaded or created and before the workflow executes.
	OnTurnStart(ctx context.Context, state *ProcedureState)

	// OnTurnPaused is called when a turn ends with a paused response
	// (the procedure is waiting for more input).
	OnTurnPaused(ctx context.Context, state *ProcedureState)

	// OnTurnCompleted is called when a turn ends with a terminal response
	// and StatusCompleted.
	OnTurnCompleted(ctx context.Context, state *ProcedureState)

	// OnTurnFailed is called when a turn ends in StatusError, whether the
	// failure was contained by the engine or escaped to the orchestrator.
	OnTurnFailed(ctx context.Context, state *ProcedureState, err error)

	// OnStepStart is called before a named step or hook executes.
	OnStepStart(ctx context.Context, state *ProcedureState, stepName string)

	// OnStepCompleted is called after a named step returns, for both
	// successes and failures (err != nil).
	OnStepCompleted(ctx context.Context, state *ProcedureState, stepName string, err error, duration time.Duration)
}

// NoopObserver is an Observer that does nothing.
// It is used as the default when no observer is configured.
type NoopObserver struct{}

func (NoopObserver) OnTurnStart(ctx context.Context, state *ProcedureState)                {}
func (NoopObserver) OnTurnPaused(ctx context.Context, state *ProcedureState)               {}
func (NoopObserver) OnTurnCompleted(ctx context.Context, state *ProcedureState)            {}
func (NoopObserver) OnTurnFailed(ctx context.Context, state *ProcedureState, err error)    {}
func (NoopObserver) OnStepStart(ctx context.Context, state *ProcedureState, stepName string) {
}
func (NoopObserver) OnStepCompleted(ctx context.Context, state *ProcedureState, stepName string, err error, d time.Duration) {
}

// CompositeObserver fans out events to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer that forwards events to each
// non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnTurnStart(ctx context.Context, state *ProcedureState) {
	for _, o := range c.observers {
		o.OnTurnStart(ctx, state)
	}
}

func (c *CompositeObserver) OnTurnPaused(ctx context.Context, state *ProcedureState) {
	for _, o := range c.observers {
		o.OnTurnPaused(ctx, state)
	}
}

func (c *CompositeObserver) OnTurnCompleted(ctx context.Context, state *ProcedureState) {
	for _, o := range c.observers {
		o.OnTurnCompleted(ctx, state)
	}
}

func (c *CompositeObserver) OnTurnFailed(ctx context.Context, state *ProcedureState, err error) {
	for _, o := range c.observers {
		o.OnTurnFailed(ctx, state, err)
	}
}

func (c *CompositeObserver) OnStepStart(ctx context.Context, state *ProcedureState, stepName string) {
	for _, o := range c.observers {
		o.OnStepStart(ctx, state, stepName)
	}
}

func (c *CompositeObserver) OnStepCompleted(ctx context.Context, state *ProcedureState, stepName string, err error, d time.Duration) {
	for _, o := range c.observers {
		o.OnStepCompleted(ctx, state, stepName, err, d)
	}
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver creates an Observer that logs turn / step lifecycle
// events using the provided slog.Logger. If logger is nil, slog.Default()
// is used.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnTurnStart(ctx context.Context, state *ProcedureState) {
	o.Logger.InfoContext(ctx, "turn_start",
		slog.String("service", state.ServiceName),
		slog.String("user_id", state.UserID),
	)
}

func (o *LoggingObserver) OnTurnPaused(ctx context.Context, state *ProcedureState) {
	o.Logger.InfoContext(ctx, "turn_paused",
		slog.String("service", state.ServiceName),
		slog.String("user_id", state.UserID),
	)
}

func (o *LoggingObserver) OnTurnCompleted(ctx context.Context, state *ProcedureState) {
	o.Logger.InfoContext(ctx, "turn_completed",
		slog.String("service", state.ServiceName),
		slog.String("user_id", state.UserID),
	)
}

func (o *LoggingObserver) OnTurnFailed(ctx context.Context, state *ProcedureState, err error) {
	o.Logger.ErrorContext(ctx, "turn_failed",
		slog.String("service", state.ServiceName),
		slog.String("user_id", state.UserID),
		slog.Any("error", err),
	)
}

func (o *LoggingObserver) OnStepStart(ctx context.Context, state *ProcedureState, stepName string) {
	o.Logger.DebugContext(ctx, "step_start",
		slog.String("service", state.ServiceName),
		slog.String("user_id", state.UserID),
		slog.String("step", stepName),
	)
}

func (o *LoggingObserver) OnStepCompleted(ctx context.Context, state *ProcedureState, stepName string, err error, d time.Duration) {
	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelError
	}
	o.Logger.Log(ctx, level, "step_completed",
		slog.String("service", state.ServiceName),
		slog.String("user_id", state.UserID),
		slog.String("step", stepName),
		slog.Duration("duration", d),
		slog.Any("error", err),
	)
}

// BasicMetrics collects simple counters and aggregate step durations.
// It implements Observer, and can be combined with LoggingObserver via
// NewCompositeObserver.
type BasicMetrics struct {
	NoopObserver

	turnsStarted      atomic.Int64
	turnsPaused       atomic.Int64
	turnsCompleted    atomic.Int64
	turnsFailed       atomic.Int64
	stepsCompleted    atomic.Int64
	totalStepDuration atomic.Int64 // nanoseconds
}

// BasicMetricsSnapshot is an immutable snapshot of BasicMetrics.
type BasicMetricsSnapshot struct {
	TurnsStarted   int64
	TurnsPaused    int64
	TurnsCompleted int64
	TurnsFailed    int64

	StepsCompleted  int64
	AvgStepDuration time.Duration
}

func (m *BasicMetrics) OnTurnStart(ctx context.Context, state *ProcedureState) {
	m.turnsStarted.Add(1)
}

func (m *BasicMetrics) OnTurnPaused(ctx context.Context, state *ProcedureState) {
	m.turnsPaused.Add(1)
}

func (m *BasicMetrics) OnTurnCompleted(ctx context.Context, state *ProcedureState) {
	m.turnsCompleted.Add(1)
}

func (m *BasicMetrics) OnTurnFailed(ctx context.Context, state *ProcedureState, err error) {
	m.turnsFailed.Add(1)
}

func (m *BasicMetrics) OnStepCompleted(ctx context.Context, state *ProcedureState, stepName string, err error, d time.Duration) {
	// Only count successful steps for average duration.
	if err == nil {
		m.stepsCompleted.Add(1)
		m.totalStepDuration.Add(d.Nanoseconds())
	}
}

// Snapshot returns a snapshot of the current metrics.
func (m *BasicMetrics) Snapshot() BasicMetricsSnapshot {
	steps := m.stepsCompleted.Load()
	totalNs := m.totalStepDuration.Load()

	var avg time.Duration
	if steps > 0 {
		avg = time.Duration(totalNs / steps)
	}

	return BasicMetricsSnapshot{
		TurnsStarted:    m.turnsStarted.Load(),
		TurnsPaused:     m.turnsPaused.Load(),
		TurnsCompleted:  m.turnsCompleted.Load(),
		TurnsFailed:     m.turnsFailed.Load(),
		StepsCompleted:  steps,
		AvgStepDuration: avg,
	}
}
