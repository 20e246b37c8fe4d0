// Package ai summarizes Reddit content with a language model.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/agenticcompany/redditor/internal/log"
	"github.com/agenticcompany/redditor/internal/metrics"
	"github.com/agenticcompany/redditor/internal/reddit"
	"github.com/agenticcompany/redditor/internal/tracing"
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("ai: no API key configured")

// DefaultModel is used when none is configured.
const DefaultModel = "claude-haiku-4-5"

// Summarizer turns a set of posts into a short digest.
type Summarizer interface {
	SummarizePosts(ctx context.Context, subreddit string, posts []reddit.Post) (string, error)
}

// AnthropicOptions configures an AnthropicSummarizer.
type AnthropicOptions struct {
	APIKey    string
	Model     string
	MaxTokens int64
	// BaseURL overrides the API endpoint.
	BaseURL    string
	MaxRetries int
}

// AnthropicSummarizer implements Summarizer with the Anthropic Messages API.
type AnthropicSummarizer struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropicSummarizer creates a summarizer. It fails with ErrNotConfigured
// without an API key.
func NewAnthropicSummarizer(opts AnthropicOptions) (*AnthropicSummarizer, error) {
	if opts.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1024
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(opts.MaxRetries),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}

	return &AnthropicSummarizer{
		client:    anthropic.NewClient(reqOpts...),
		model:     anthropic.Model(opts.Model),
		maxTokens: opts.MaxTokens,
	}, nil
}

const digestSystemPrompt = "You summarize Reddit threads for a daily digest. " +
	"Write a few plain sentences covering the main themes, then one line per notable post. " +
	"Do not invent details that are not in the posts."

// SummarizePosts asks the model for a digest of posts.
func (s *AnthropicSummarizer) SummarizePosts(ctx context.Context, subreddit string, posts []reddit.Post) (string, error) {
	if len(posts) == 0 {
		return "", nil
	}

	ctx, span := otel.Tracer("github.com/agenticcompany/redditor/internal/ai").Start(ctx, tracing.SpanSummarize)
	defer span.End()
	span.SetAttributes(attribute.Int("ai.posts", len(posts)), attribute.String("ai.model", string(s.model)))

	start := time.Now()
	msg, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     s.model,
		MaxTokens: s.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: digestSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(digestPrompt(subreddit, posts))),
		},
	})
	if err != nil {
		metrics.SummarizerRequests.WithLabelValues("error").Inc()
		tracing.RecordError(span, err)
		return "", fmt.Errorf("anthropic summarize: %w", err)
	}

	log.Debug(log.CatAI, "summary generated", "model", string(s.model), "duration", time.Since(start),
		"stop_reason", string(msg.StopReason))

	var parts []string
	for _, block := range msg.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		metrics.SummarizerRequests.WithLabelValues("empty").Inc()
		return "", fmt.Errorf("anthropic summarize: no text content in response")
	}
	metrics.SummarizerRequests.WithLabelValues("ok").Inc()
	return strings.TrimSpace(strings.Join(parts, "\n")), nil
}

func digestPrompt(subreddit string, posts []reddit.Post) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Top posts from r/%s:\n\n", subreddit)
	for i, p := range posts {
		fmt.Fprintf(&b, "%d. %s (score %d, %d comments)\n", i+1, p.Title, p.Score, p.NumComments)
		if text := strings.TrimSpace(p.SelfText); text != "" {
			fmt.Fprintf(&b, "   %s\n", truncate(text, 400))
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
