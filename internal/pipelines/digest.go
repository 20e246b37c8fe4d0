package pipelines

import (
	"context"
	"fmt"

	"github.com/agenticcompany/redditor/internal/ai"
	"github.com/agenticcompany/redditor/internal/log"
	"github.com/agenticcompany/redditor/internal/pipeline"
	"github.com/agenticcompany/redditor/internal/reddit"
)

// DigestName is the registered name of the digest pipeline.
const DigestName = "digest"

// Digest collects a subreddit's best posts.
//
// Config: subreddit (required), sort (top), time_filter (day), limit (10),
// min_score (0), include_nsfw (false), summarize (false).
type Digest struct {
	pipeline.Base
	conn

	subreddit   string
	sort        reddit.Sort
	timeFilter  reddit.TimeFilter
	limit       int
	minScore    int
	includeNSFW bool
	summarize   bool
	summarizer  ai.Summarizer
}

// NewDigest builds a digest pipeline.
func NewDigest(cfg pipeline.Config, deps Deps) (*Digest, error) {
	base, err := pipeline.NewBase(DigestName, cfg, "subreddit")
	if err != nil {
		return nil, err
	}
	d := &Digest{
		Base:       base,
		conn:       conn{open: deps.NewClient},
		subreddit:  cfg.String("subreddit", ""),
		sort:       reddit.ParseSort(cfg.String("sort", string(reddit.SortTop))),
		timeFilter: reddit.ParseTimeFilter(cfg.String("time_filter", string(reddit.TimeDay))),
		summarizer: deps.Summarizer,
	}
	if d.limit, err = cfg.IntE("limit", 10); err != nil {
		return nil, err
	}
	if d.minScore, err = cfg.IntE("min_score", 0); err != nil {
		return nil, err
	}
	if d.includeNSFW, err = cfg.BoolE("include_nsfw", false); err != nil {
		return nil, err
	}
	if d.summarize, err = cfg.BoolE("summarize", false); err != nil {
		return nil, err
	}
	if d.summarize && d.summarizer == nil {
		return nil, fmt.Errorf("digest: summarize requested: %w", ai.ErrNotConfigured)
	}
	return d, nil
}

func (d *Digest) Setup(ctx context.Context) error { return d.setup(ctx, d.Name()) }

func (d *Digest) Cleanup(context.Context) error { return d.cleanup(d.Name()) }

func (d *Digest) Execute(ctx context.Context) (pipeline.Result, error) {
	client, err := d.api()
	if err != nil {
		return pipeline.Result{}, err
	}

	var (
		kept    []reddit.Post
		entries []map[string]any
		seen    int
	)
	opts := reddit.ListingOptions{Sort: d.sort, Time: d.timeFilter, Limit: d.limit}
	for post, err := range client.Posts(ctx, d.subreddit, opts) {
		if err != nil {
			return pipeline.Result{}, fmt.Errorf("listing r/%s: %w", d.subreddit, err)
		}
		seen++
		if post.Score < d.minScore || post.Stickied || (post.NSFW && !d.includeNSFW) {
			continue
		}
		kept = append(kept, post)
		entries = append(entries, postPayload(post))
	}

	payload := map[string]any{
		"subreddit": d.subreddit,
		"sort":      string(d.sort),
		"fetched":   seen,
		"posts":     entries,
	}
	if d.summarize && len(kept) > 0 {
		summary, err := d.summarizer.SummarizePosts(ctx, d.subreddit, kept)
		if err != nil {
			return pipeline.Result{}, err
		}
		payload["summary"] = summary
	}

	log.Info(log.CatPipeline, "digest collected", "subreddit", d.subreddit, "fetched", seen, "kept", len(kept))
	return pipeline.Success(len(kept), payload), nil
}
