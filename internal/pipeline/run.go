package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/agenticcompany/redditor/internal/log"
	"github.com/agenticcompany/redditor/internal/metrics"
	"github.com/agenticcompany/redditor/internal/pubsub"
	"github.com/agenticcompany/redditor/internal/tracing"
)

// State is where a run is in its lifecycle.
type State string

const (
	StateCreated   State = "created"
	StateReady     State = "ready"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateTerminal  State = "terminal"
)

// Run lifecycle event types published by a Runner.
const (
	EventRunStarted   pubsub.EventType = "run.started"
	EventRunSucceeded pubsub.EventType = "run.succeeded"
	EventRunFailed    pubsub.EventType = "run.failed"
	EventRunCleanedUp pubsub.EventType = "run.cleaned_up"
)

// RunEvent is the payload of a run lifecycle event.
type RunEvent struct {
	RunID          string        `json:"run_id"`
	Pipeline       string        `json:"pipeline"`
	State          State         `json:"state"`
	Status         Status        `json:"status,omitempty"`
	ItemsProcessed int           `json:"items_processed,omitempty"`
	Error          string        `json:"error,omitempty"`
	Duration       time.Duration `json:"duration_ns,omitempty"`
}

var errPanicked = errors.New("pipeline panicked")

// Runner drives pipelines through their lifecycle.
// The zero value is not usable; use NewRunner.
type Runner struct {
	tracer trace.Tracer
	events pubsub.Publisher[RunEvent]
	clock  clockwork.Clock
	newID  func() string
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithTracer records a span per run, with a child span per phase.
func WithTracer(t trace.Tracer) RunnerOption {
	return func(r *Runner) {
		if t != nil {
			r.tracer = t
		}
	}
}

// WithEvents publishes lifecycle events to p.
func WithEvents(p pubsub.Publisher[RunEvent]) RunnerOption {
	return func(r *Runner) { r.events = p }
}

// WithClock sets the clock used for StartedAt and Duration.
func WithClock(c clockwork.Clock) RunnerOption {
	return func(r *Runner) { r.clock = c }
}

// WithRunIDs overrides run ID generation.
func WithRunIDs(fn func() string) RunnerOption {
	return func(r *Runner) { r.newID = fn }
}

// NewRunner creates a Runner. Without options it only logs and records metrics.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		tracer: noop.NewTracerProvider().Tracer("pipeline"),
		clock:  clockwork.NewRealClock(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var defaultRunner = NewRunner()

// Run drives p through its lifecycle with a default Runner.
func Run(ctx context.Context, p Pipeline) (Result, error) {
	return defaultRunner.Run(ctx, p)
}

// Run calls Setup then Execute, and always Cleanup exactly once afterwards,
// also when Setup or Execute fail or Execute panics (the panic is re-raised
// after cleanup). It returns Execute's result, or an *ExecutionError once
// cleanup has finished.
//
// A cleanup failure after a successful Execute is returned with
// PhaseCleanup. After a failed Execute it is only logged.
func (r *Runner) Run(ctx context.Context, p Pipeline) (res Result, err error) {
	rs := &runState{
		runID:    r.newID(),
		pipeline: p.Name(),
		started:  r.clock.Now(),
		state:    StateCreated,
	}

	ctx, span := r.tracer.Start(ctx, tracing.SpanPipelineRun, trace.WithAttributes(
		attribute.String(tracing.AttrPipelineName, rs.pipeline),
		attribute.String(tracing.AttrRunID, rs.runID),
	))
	defer span.End()

	metrics.PipelinesRunning.Inc()
	defer metrics.PipelinesRunning.Dec()

	log.Info(log.CatPipeline, "run started", "pipeline", rs.pipeline, "run_id", rs.runID)
	r.publish(EventRunStarted, rs.event())

	panicked := true
	defer func() {
		// Cleanup must not be skipped because the caller gave up.
		cleanupErr := r.phase(context.WithoutCancel(ctx), PhaseCleanup, p.Cleanup)
		rs.duration = r.clock.Since(rs.started)

		recorded := err
		switch {
		case panicked:
			if cleanupErr != nil {
				log.ErrorErr(log.CatPipeline, "cleanup failed after panic", cleanupErr, "pipeline", rs.pipeline, "run_id", rs.runID)
			}
			recorded = errPanicked
			res.Status = StatusFailure
			rs.fail(recorded)
			r.publish(EventRunFailed, rs.event())
		case cleanupErr != nil && err == nil:
			err = newExecutionError(p, rs.runID, PhaseCleanup, cleanupErr)
			recorded = err
			res.Status = StatusFailure
			rs.fail(err)
			r.publish(EventRunFailed, rs.event())
		case cleanupErr != nil:
			log.ErrorErr(log.CatPipeline, "cleanup failed", cleanupErr, "pipeline", rs.pipeline, "run_id", rs.runID)
		case err == nil:
			// Success is only final once cleanup has gone through.
			r.publish(EventRunSucceeded, rs.event())
		}
		rs.state = StateTerminal

		res = rs.stamp(res)
		if err != nil && res.Error == "" {
			res.Error = err.Error()
		}
		r.record(span, rs, res, recorded)
		r.publish(EventRunCleanedUp, rs.event())
	}()

	if setupErr := r.phase(ctx, PhaseSetup, p.Setup); setupErr != nil {
		panicked = false
		err = newExecutionError(p, rs.runID, PhaseSetup, setupErr)
		rs.fail(err)
		r.publish(EventRunFailed, rs.event())
		return Result{Status: StatusFailure}, err
	}
	rs.state = StateReady

	execErr := r.phase(ctx, PhaseExecute, func(ctx context.Context) error {
		var e error
		res, e = p.Execute(ctx)
		return e
	})
	panicked = false

	if execErr != nil {
		err = newExecutionError(p, rs.runID, PhaseExecute, execErr)
		if res.Status == "" || res.Status == StatusSuccess {
			res.Status = StatusFailure
		}
		rs.fail(err)
		r.publish(EventRunFailed, rs.event())
		return res, err
	}
	if res.Status == "" {
		res.Status = StatusSuccess
	}

	rs.state = StateSucceeded
	rs.status = res.Status
	rs.items = res.ItemsProcessed
	return res, nil
}

// phase runs one lifecycle step inside its own span.
func (r *Runner) phase(ctx context.Context, phase Phase, fn func(context.Context) error) error {
	ctx, span := r.tracer.Start(ctx, tracing.SpanPrefixPhase+string(phase),
		trace.WithAttributes(attribute.String(tracing.AttrPhase, string(phase))))
	defer span.End()

	log.Debug(log.CatPipeline, "phase", "phase", string(phase))
	err := fn(ctx)
	tracing.RecordError(span, err)
	return err
}

func (r *Runner) record(span trace.Span, rs *runState, res Result, err error) {
	status := res.Status
	if err != nil {
		status = StatusFailure
	}

	metrics.PipelineRuns.WithLabelValues(rs.pipeline, string(status)).Inc()
	metrics.PipelineDuration.WithLabelValues(rs.pipeline).Observe(rs.duration.Seconds())
	if err == nil {
		metrics.PipelineItems.WithLabelValues(rs.pipeline).Add(float64(res.ItemsProcessed))
	}

	span.SetAttributes(
		attribute.String(tracing.AttrRunStatus, string(status)),
		attribute.Int(tracing.AttrItems, res.ItemsProcessed),
	)
	tracing.RecordError(span, err)

	if err != nil {
		log.ErrorErr(log.CatPipeline, "run failed", err, "pipeline", rs.pipeline, "run_id", rs.runID,
			"duration", rs.duration)
		return
	}
	log.Info(log.CatPipeline, "run finished", "pipeline", rs.pipeline, "run_id", rs.runID,
		"status", string(status), "items", res.ItemsProcessed, "duration", rs.duration)
}

func (r *Runner) publish(t pubsub.EventType, ev RunEvent) {
	if r.events != nil {
		r.events.Publish(t, ev)
	}
}

// runState tracks one run for events and the final Result.
type runState struct {
	runID    string
	pipeline string
	started  time.Time
	duration time.Duration
	state    State
	status   Status
	items    int
	err      string
}

func (rs *runState) fail(err error) {
	rs.state = StateFailed
	rs.status = StatusFailure
	rs.err = err.Error()
}

func (rs *runState) event() RunEvent {
	return RunEvent{
		RunID:          rs.runID,
		Pipeline:       rs.pipeline,
		State:          rs.state,
		Status:         rs.status,
		ItemsProcessed: rs.items,
		Error:          rs.err,
		Duration:       rs.duration,
	}
}

func (rs *runState) stamp(res Result) Result {
	res.RunID = rs.runID
	res.Pipeline = rs.pipeline
	res.StartedAt = rs.started
	res.Duration = rs.duration
	return res
}
