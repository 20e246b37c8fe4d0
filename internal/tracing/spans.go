package tracing

import (
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys.
const (
	AttrPipelineName  = "pipeline.name"
	AttrRunID         = "pipeline.run_id"
	AttrRunStatus     = "pipeline.status"
	AttrItems         = "pipeline.items_processed"
	AttrPhase         = "pipeline.phase"
	AttrRedditPath    = "reddit.path"
	AttrRedditMethod  = "reddit.method"
	AttrRedditStatus  = "reddit.status_code"
	AttrRedditAttempt = "reddit.attempt"
	AttrErrorMessage  = "error.message"
)

// Span names.
const (
	SpanPipelineRun   = "pipeline.run"
	SpanPrefixPhase   = "pipeline."
	SpanRedditRequest = "reddit.request"
	SpanSummarize     = "ai.summarize"
)

// RecordError marks span as failed with err. A nil err is ignored.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
