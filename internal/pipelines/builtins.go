// Package pipelines holds redditor's built-in pipelines and the dependencies
// they share.
package pipelines

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/agenticcompany/redditor/internal/ai"
	"github.com/agenticcompany/redditor/internal/config"
	"github.com/agenticcompany/redditor/internal/log"
	"github.com/agenticcompany/redditor/internal/pipeline"
	"github.com/agenticcompany/redditor/internal/reddit"
)

// ErrNoClient is returned when a pipeline executes before Setup.
var ErrNoClient = errors.New("reddit client not open; Setup was not called")

// Deps are the collaborators built-in pipelines need.
type Deps struct {
	// NewClient opens a Reddit client. Called from each pipeline's Setup.
	NewClient func(ctx context.Context) (reddit.API, error)
	// Summarizer is optional. Digest summaries need it.
	Summarizer ai.Summarizer
}

// NewDeps builds Deps from settings. The Reddit client is opened lazily, so
// missing credentials surface when a pipeline is set up.
func NewDeps(cfg config.Config) Deps {
	deps := Deps{
		NewClient: func(ctx context.Context) (reddit.API, error) {
			return reddit.New(ctx, reddit.Options{
				ClientID:     cfg.Reddit.ClientID,
				ClientSecret: cfg.Reddit.ClientSecret,
				UserAgent:    cfg.Reddit.UserAgent,
				Username:     cfg.Reddit.Username,
				Password:     cfg.Reddit.Password,
				MinInterval:  cfg.Reddit.MinRequestInterval,
				MaxRetries:   cfg.Reddit.MaxRetries,
				PostCacheTTL: cfg.Reddit.PostCacheTTL,
			})
		},
	}
	if cfg.AI.AnthropicAPIKey != "" {
		s, err := ai.NewAnthropicSummarizer(ai.AnthropicOptions{
			APIKey: cfg.AI.AnthropicAPIKey,
			Model:  cfg.AI.AnthropicModel,
		})
		if err != nil {
			log.ErrorErr(log.CatAI, "summarizer unavailable", err)
		} else {
			deps.Summarizer = s
		}
	}
	return deps
}

// Definitions returns the built-in pipeline definitions bound to deps.
func Definitions(deps Deps) []pipeline.Definition {
	return []pipeline.Definition{
		{
			Name:           DigestName,
			Description:    "Collect a subreddit's top posts, optionally with an AI summary",
			RequiredConfig: []string{"subreddit"},
			New:            func(cfg pipeline.Config) (pipeline.Pipeline, error) { return NewDigest(cfg, deps) },
		},
		{
			Name:           MonitorName,
			Description:    "Search a subreddit for a query and optionally reply to matches",
			RequiredConfig: []string{"subreddit", "query"},
			New:            func(cfg pipeline.Config) (pipeline.Pipeline, error) { return NewMonitor(cfg, deps) },
		},
		{
			Name:           ThreadName,
			Description:    "Fetch a post with its comments and report the top comment",
			RequiredConfig: []string{"post_id"},
			New:            func(cfg pipeline.Config) (pipeline.Pipeline, error) { return NewThread(cfg, deps) },
		},
	}
}

// RegisterBuiltins registers every built-in pipeline with reg.
func RegisterBuiltins(reg *pipeline.Registry, deps Deps) error {
	for _, def := range Definitions(deps) {
		if err := reg.Register(def); err != nil {
			return fmt.Errorf("registering %s: %w", def.Name, err)
		}
	}
	return nil
}

// ReloadBuiltins swaps reg's contents for the builtins bound to deps.
// Runs already in flight keep the dependencies they were built with.
func ReloadBuiltins(reg *pipeline.Registry, deps Deps) error {
	if err := reg.Replace(Definitions(deps)...); err != nil {
		return fmt.Errorf("reloading builtins: %w", err)
	}
	return nil
}

// conn owns the Reddit client between Setup and Cleanup.
type conn struct {
	open   func(ctx context.Context) (reddit.API, error)
	client reddit.API
}

func (c *conn) setup(ctx context.Context, name string) error {
	if c.client != nil {
		return nil
	}
	if c.open == nil {
		return fmt.Errorf("%s: no reddit client configured", name)
	}
	client, err := c.open(ctx)
	if err != nil {
		return fmt.Errorf("opening reddit client: %w", err)
	}
	c.client = client
	log.Debug(log.CatPipeline, "reddit client opened", "pipeline", name)
	return nil
}

func (c *conn) api() (reddit.API, error) {
	if c.client == nil {
		return nil, ErrNoClient
	}
	return c.client, nil
}

func (c *conn) cleanup(name string) error {
	client := c.client
	c.client = nil
	if closer, ok := client.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("closing reddit client: %w", err)
		}
	}
	log.Debug(log.CatPipeline, "reddit client released", "pipeline", name)
	return nil
}

func postPayload(p reddit.Post) map[string]any {
	return map[string]any{
		"id":           p.ID,
		"title":        p.Title,
		"author":       p.Author,
		"score":        p.Score,
		"num_comments": p.NumComments,
		"url":          p.URL,
		"permalink":    p.Permalink,
	}
}

func commentPayload(c reddit.Comment) map[string]any {
	return map[string]any{
		"id":     c.ID,
		"author": c.Author,
		"body":   c.Body,
		"score":  c.Score,
		"depth":  c.Depth,
	}
}
