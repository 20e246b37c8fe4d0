package pipeline

import (
	"context"
	"time"

	"github.com/agenticcompany/redditor/internal/log"
)

// Pipeline is a named unit of work with a three-step lifecycle.
// Instances are single-owner; a Runner drives them one step at a time.
type Pipeline interface {
	Name() string
	// Setup acquires resources. It may be called more than once.
	Setup(ctx context.Context) error
	// Execute does the work. It is the only step expected to fail for
	// domain reasons.
	Execute(ctx context.Context) (Result, error)
	// Cleanup releases what Setup acquired.
	Cleanup(ctx context.Context) error
}

// Status is the outcome recorded in a Result.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusSkipped Status = "skipped"
)

// Result is what Execute returns. The runner fills in the run metadata.
type Result struct {
	Status         Status         `json:"status" yaml:"status"`
	ItemsProcessed int            `json:"items_processed" yaml:"items_processed"`
	Payload        map[string]any `json:"payload,omitempty" yaml:"payload,omitempty"`

	RunID     string        `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Pipeline  string        `json:"pipeline,omitempty" yaml:"pipeline,omitempty"`
	StartedAt time.Time     `json:"started_at,omitzero" yaml:"started_at,omitempty"`
	Duration  time.Duration `json:"duration_ns,omitempty" yaml:"duration,omitempty"`
	Error     string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// Succeeded reports whether the status is success.
func (r Result) Succeeded() bool {
	return r.Status == StatusSuccess
}

// Success builds a success Result.
func Success(items int, payload map[string]any) Result {
	return Result{Status: StatusSuccess, ItemsProcessed: items, Payload: payload}
}

// Failure builds the Result returned alongside an Execute error when part
// of the work already happened.
func Failure(items int, payload map[string]any) Result {
	return Result{Status: StatusFailure, ItemsProcessed: items, Payload: payload}
}

// Skipped builds a Result for a run that found nothing to do.
func Skipped(reason string) Result {
	return Result{Status: StatusSkipped, Payload: map[string]any{"reason": reason}}
}

// Base carries a pipeline's name and configuration and provides no-op
// Setup and Cleanup. Concrete pipelines embed it and implement Execute.
type Base struct {
	name   string
	config Config
}

// NewBase validates cfg against the required keys and returns a Base owning
// a copy of cfg. Missing keys fail with *ConfigurationError.
func NewBase(name string, cfg Config, required ...string) (Base, error) {
	if missing := cfg.Missing(required...); len(missing) > 0 {
		return Base{}, &ConfigurationError{Pipeline: name, Missing: missing}
	}
	return Base{name: name, config: cfg.Clone()}, nil
}

// Name returns the pipeline's registered name.
func (b Base) Name() string { return b.name }

// Config returns a copy of the pipeline's configuration.
func (b Base) Config() Config { return b.config.Clone() }

func (b Base) Setup(context.Context) error {
	log.Debug(log.CatPipeline, "default setup", "pipeline", b.name)
	return nil
}

func (b Base) Cleanup(context.Context) error {
	log.Debug(log.CatPipeline, "default cleanup", "pipeline", b.name)
	return nil
}
