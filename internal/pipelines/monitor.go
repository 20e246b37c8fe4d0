package pipelines

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/agenticcompany/redditor/internal/log"
	"github.com/agenticcompany/redditor/internal/pipeline"
	"github.com/agenticcompany/redditor/internal/reddit"
)

// MonitorName is the registered name of the monitor pipeline.
const MonitorName = "monitor"

// ErrNotAuthenticated is returned when a reply is requested without a user login.
var ErrNotAuthenticated = errors.New("replying needs reddit username and password")

// Monitor searches a subreddit and optionally replies to each match.
//
// Config: subreddit and query (required), sort (new), time_filter (day),
// limit (25), min_score (0), reply (""), dry_run (false).
type Monitor struct {
	pipeline.Base
	conn

	subreddit  string
	query      string
	sort       reddit.SearchSort
	timeFilter reddit.TimeFilter
	limit      int
	minScore   int
	reply      string
	dryRun     bool
}

// NewMonitor builds a monitor pipeline.
func NewMonitor(cfg pipeline.Config, deps Deps) (*Monitor, error) {
	base, err := pipeline.NewBase(MonitorName, cfg, "subreddit", "query")
	if err != nil {
		return nil, err
	}
	m := &Monitor{
		Base:       base,
		conn:       conn{open: deps.NewClient},
		subreddit:  cfg.String("subreddit", ""),
		query:      strings.TrimSpace(cfg.String("query", "")),
		sort:       reddit.ParseSearchSort(cfg.String("sort", string(reddit.SearchNew))),
		timeFilter: reddit.ParseTimeFilter(cfg.String("time_filter", string(reddit.TimeDay))),
		reply:      strings.TrimSpace(cfg.String("reply", "")),
	}
	if m.query == "" {
		return nil, &pipeline.ValueError{Key: "query", Value: cfg["query"], Want: "non-empty string"}
	}
	if m.limit, err = cfg.IntE("limit", 25); err != nil {
		return nil, err
	}
	if m.minScore, err = cfg.IntE("min_score", 0); err != nil {
		return nil, err
	}
	if m.dryRun, err = cfg.BoolE("dry_run", false); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Monitor) Setup(ctx context.Context) error { return m.setup(ctx, m.Name()) }

func (m *Monitor) Cleanup(context.Context) error { return m.cleanup(m.Name()) }

func (m *Monitor) replying() bool { return m.reply != "" && !m.dryRun }

func (m *Monitor) Execute(ctx context.Context) (pipeline.Result, error) {
	client, err := m.api()
	if err != nil {
		return pipeline.Result{}, err
	}
	if m.replying() && !client.IsAuthenticated(ctx) {
		return pipeline.Result{}, ErrNotAuthenticated
	}

	var matches []reddit.Post
	opts := reddit.SearchOptions{Subreddit: m.subreddit, Sort: m.sort, Time: m.timeFilter, Limit: m.limit}
	for post, err := range client.Search(ctx, m.query, opts) {
		if err != nil {
			return pipeline.Result{}, fmt.Errorf("searching r/%s: %w", m.subreddit, err)
		}
		if post.Score < m.minScore {
			continue
		}
		matches = append(matches, post)
	}
	if len(matches) == 0 {
		log.Info(log.CatPipeline, "monitor found nothing", "subreddit", m.subreddit, "query", m.query)
		return pipeline.Skipped(fmt.Sprintf("no posts in r/%s matched %q", m.subreddit, m.query)), nil
	}

	entries := make([]map[string]any, 0, len(matches))
	for _, post := range matches {
		entries = append(entries, postPayload(post))
	}
	payload := map[string]any{
		"subreddit": m.subreddit,
		"query":     m.query,
		"matches":   entries,
		"dry_run":   m.dryRun,
	}
	if !m.replying() {
		return pipeline.Success(len(matches), payload), nil
	}

	replies := make([]string, 0, len(matches))
	for _, post := range matches {
		c, err := client.SubmitComment(ctx, post.ID, m.reply)
		if err != nil {
			// Replies already posted stay in the result so a rerun can skip them.
			payload["replies"] = replies
			payload["failed_post"] = post.ID
			return pipeline.Failure(len(replies), payload), fmt.Errorf("replying to %s: %w", post.ID, err)
		}
		replies = append(replies, c.ID)
		log.Info(log.CatPipeline, "replied", "post", post.ID, "comment", c.ID)
	}
	payload["replies"] = replies
	return pipeline.Success(len(matches), payload), nil
}
