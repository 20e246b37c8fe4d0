package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"github.com/agenticcompany/redditor/internal/cachemanager"
	"github.com/agenticcompany/redditor/internal/log"
	"github.com/agenticcompany/redditor/internal/metrics"
	"github.com/agenticcompany/redditor/internal/tracing"
)

// Options configures a Client.
type Options struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
	// Username and Password select the password grant (script apps).
	// Without a username the client authenticates as the application only.
	Username string
	Password string

	// BaseURL and TokenURL default to Reddit's OAuth endpoints.
	BaseURL  string
	TokenURL string
	// HTTPClient supplies the underlying transport and timeout.
	HTTPClient *http.Client

	// MinInterval is the minimum gap between requests. Zero disables spacing.
	MinInterval time.Duration
	// MaxRetries bounds retries of 429 and 5xx responses. Negative means DefaultMaxRetries.
	MaxRetries int
	// RetryInitialInterval is the first backoff delay (default 500ms).
	RetryInitialInterval time.Duration
	// PostCacheTTL is how long Post results are cached (default 5m, negative disables).
	PostCacheTTL time.Duration

	Clock clockwork.Clock
}

const (
	DefaultUserAgent   = "redditor/0.1.0"
	DefaultMinInterval = time.Second
	DefaultMaxRetries  = 3
	DefaultPostTTL     = 5 * time.Minute
)

func (o *Options) applyDefaults() {
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.BaseURL == "" {
		o.BaseURL = defaultBaseURL
	}
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	if o.TokenURL == "" {
		o.TokenURL = defaultTokenURL
	}
	if o.MinInterval < 0 {
		o.MinInterval = 0
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.RetryInitialInterval <= 0 {
		o.RetryInitialInterval = 500 * time.Millisecond
	}
	if o.PostCacheTTL == 0 {
		o.PostCacheTTL = DefaultPostTTL
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
}

// Client talks to the Reddit API. Safe for concurrent use.
type Client struct {
	http       *http.Client
	baseURL    string
	username   string
	maxRetries int
	retryBase  time.Duration
	clock      clockwork.Clock
	throttle   *throttle
	tracer     trace.Tracer

	postTTL   time.Duration
	postCache *cachemanager.InMemoryCacheManager[string, Post]
	posts     *cachemanager.ReadThroughCache[string, Post, string]

	mu        sync.Mutex
	rateLimit RateLimit
}

var _ API = (*Client)(nil)

// New creates a client. No request is made until the first call.
func New(ctx context.Context, opts Options) (*Client, error) {
	if opts.ClientID == "" || opts.ClientSecret == "" {
		return nil, ErrMissingCredentials
	}
	opts.applyDefaults()

	c := &Client{
		http:       newHTTPClient(ctx, opts),
		baseURL:    opts.BaseURL,
		username:   opts.Username,
		maxRetries: opts.MaxRetries,
		retryBase:  opts.RetryInitialInterval,
		clock:      opts.Clock,
		throttle:   newThrottle(opts.Clock, opts.MinInterval),
		tracer:     otel.Tracer("github.com/agenticcompany/redditor/internal/reddit"),
		postTTL:    opts.PostCacheTTL,
	}

	c.postCache = cachemanager.NewInMemoryCacheManager[string, Post]("reddit-posts", max(opts.PostCacheTTL, time.Second), 0)
	c.posts = cachemanager.NewReadThroughCache[string, Post, string](c.postCache, c.fetchPost, opts.PostCacheTTL < 0)
	c.posts.OnResult(func(hit bool) {
		metrics.PostCacheLookups.WithLabelValues(metrics.CacheResult(hit)).Inc()
	})

	log.Debug(log.CatReddit, "client created", "base_url", c.baseURL, "user", opts.Username != "")
	return c, nil
}

// Close drops cached posts and idle connections.
func (c *Client) Close() error {
	c.postCache.Flush(context.Background())
	c.http.CloseIdleConnections()
	return nil
}

// RateLimit returns the most recent rate-limit headers seen.
func (c *Client) RateLimit() RateLimit {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rateLimit
}

// RequestsRemaining returns the requests left in the current window, or -1
// before any response carried rate-limit headers.
func (c *Client) RequestsRemaining() float64 {
	rl := c.RateLimit()
	if rl.UpdatedAt.IsZero() {
		return -1
	}
	return rl.Remaining
}

// Posts lists a subreddit. Unknown sorts fall back to hot, and the time
// filter only applies to top and controversial.
func (c *Client) Posts(ctx context.Context, subreddit string, opts ListingOptions) iter.Seq2[Post, error] {
	return func(yield func(Post, error) bool) {
		sub := strings.TrimPrefix(strings.TrimSpace(subreddit), "r/")
		if sub == "" {
			yield(Post{}, fmt.Errorf("%w: empty subreddit", ErrInvalidArgument))
			return
		}
		sort := ParseSort(string(opts.Sort))
		q := url.Values{}
		if tf := ParseTimeFilter(string(opts.Time)); tf != "" && sort.takesTimeFilter() {
			q.Set("t", string(tf))
		}
		path := "/r/" + url.PathEscape(sub) + "/" + string(sort)
		c.listPosts(ctx, path, q, opts.Limit, yield)
	}
}

// Search finds posts in opts.Subreddit, or across r/all.
func (c *Client) Search(ctx context.Context, query string, opts SearchOptions) iter.Seq2[Post, error] {
	return func(yield func(Post, error) bool) {
		if strings.TrimSpace(query) == "" {
			yield(Post{}, fmt.Errorf("%w: empty search query", ErrInvalidArgument))
			return
		}
		q := url.Values{}
		q.Set("q", query)
		q.Set("sort", string(ParseSearchSort(string(opts.Sort))))
		q.Set("type", "link")
		if tf := ParseTimeFilter(string(opts.Time)); tf != "" {
			q.Set("t", string(tf))
		}

		sub := strings.TrimPrefix(strings.TrimSpace(opts.Subreddit), "r/")
		if sub == "" {
			sub = "all"
		} else {
			q.Set("restrict_sr", "on")
		}
		c.listPosts(ctx, "/r/"+url.PathEscape(sub)+"/search", q, opts.Limit, yield)
	}
}

// listPosts pages through a post listing with after cursors.
func (c *Client) listPosts(ctx context.Context, path string, q url.Values, limit int, yield func(Post, error) bool) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	remaining := limit
	after := ""
	for remaining > 0 {
		q.Set("limit", strconv.Itoa(min(remaining, maxPageSize)))
		if after != "" {
			q.Set("after", after)
		}

		var page listing
		if err := c.get(ctx, path, q, &page); err != nil {
			yield(Post{}, err)
			return
		}

		for _, child := range page.Data.Children {
			if child.Kind != kindPost {
				continue
			}
			p, err := decodePost(child.Data)
			if err != nil {
				yield(Post{}, err)
				return
			}
			if !yield(p, nil) {
				return
			}
			if remaining--; remaining == 0 {
				return
			}
		}

		if page.Data.After == "" || len(page.Data.Children) == 0 {
			return
		}
		after = page.Data.After
	}
}

// Post fetches a single post through the post cache.
func (c *Client) Post(ctx context.Context, id string) (Post, error) {
	id = postID(id)
	if id == "" {
		return Post{}, fmt.Errorf("%w: empty post id", ErrInvalidArgument)
	}
	return c.posts.Get(ctx, id, id, c.postTTL)
}

func (c *Client) fetchPost(ctx context.Context, id string) (Post, error) {
	var page listing
	if err := c.get(ctx, "/by_id/"+kindPost+"_"+url.PathEscape(id), nil, &page); err != nil {
		return Post{}, err
	}
	for _, child := range page.Data.Children {
		if child.Kind == kindPost {
			return decodePost(child.Data)
		}
	}
	return Post{}, fmt.Errorf("post %s: %w", id, ErrNotFound)
}

// Comments yields a post's comments breadth-first, skipping "load more"
// stubs. A zero opts.Limit yields every comment returned.
func (c *Client) Comments(ctx context.Context, postIDOrName string, opts CommentOptions) iter.Seq2[Comment, error] {
	return func(yield func(Comment, error) bool) {
		id := postID(postIDOrName)
		if id == "" {
			yield(Comment{}, fmt.Errorf("%w: empty post id", ErrInvalidArgument))
			return
		}
		q := url.Values{}
		q.Set("sort", string(ParseCommentSort(string(opts.Sort))))
		if opts.Limit > 0 {
			q.Set("limit", strconv.Itoa(opts.Limit))
		}

		// The response is [post listing, comment listing].
		var pages []listing
		if err := c.get(ctx, "/comments/"+url.PathEscape(id), q, &pages); err != nil {
			yield(Comment{}, err)
			return
		}
		if len(pages) < 2 {
			return
		}

		queue := pages[1].Data.Children
		yielded := 0
		for len(queue) > 0 {
			child := queue[0]
			queue = queue[1:]
			if child.Kind != kindComment {
				continue
			}
			cm, replies, err := decodeComment(child.Data)
			if err != nil {
				yield(Comment{}, err)
				return
			}
			if !yield(cm, nil) {
				return
			}
			if yielded++; opts.Limit > 0 && yielded >= opts.Limit {
				return
			}
			queue = append(queue, replies...)
		}
	}
}

// SubmitComment posts body as a reply to postID.
func (c *Client) SubmitComment(ctx context.Context, postIDOrName, body string) (Comment, error) {
	id := postID(postIDOrName)
	if id == "" || strings.TrimSpace(body) == "" {
		return Comment{}, fmt.Errorf("%w: post id and body are required", ErrInvalidArgument)
	}
	form := url.Values{}
	form.Set("api_type", "json")
	form.Set("thing_id", kindPost+"_"+id)
	form.Set("text", body)

	var resp submitResponse
	if err := c.do(ctx, http.MethodPost, "/api/comment", nil, form, &resp); err != nil {
		return Comment{}, err
	}
	if reasons := resp.reasons(); len(reasons) > 0 {
		return Comment{}, &APIError{Method: http.MethodPost, Path: "/api/comment", StatusCode: http.StatusOK, Reasons: reasons}
	}
	for _, t := range resp.JSON.Data.Things {
		if t.Kind == kindComment {
			cm, _, err := decodeComment(t.Data)
			return cm, err
		}
	}
	return Comment{}, fmt.Errorf("submit comment on %s: no comment in response", id)
}

// IsAuthenticated reports whether the client acts as a user and Reddit
// accepts its credentials.
func (c *Client) IsAuthenticated(ctx context.Context) bool {
	if c.username == "" {
		return false
	}
	var me struct {
		Name string `json:"name"`
	}
	if err := c.get(ctx, "/api/v1/me", nil, &me); err != nil {
		log.Warn(log.CatReddit, "authentication check failed", "error", err.Error())
		return false
	}
	return me.Name != ""
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, q, nil, out)
}

// do sends one logical request: throttled, retried while APIError.Temporary
// holds or a GET hits a transport error, decoded into out.
func (c *Client) do(ctx context.Context, method, path string, q url.Values, form url.Values, out any) error {
	ctx, span := c.tracer.Start(ctx, tracing.SpanRedditRequest, trace.WithAttributes(
		attribute.String(tracing.AttrRedditMethod, method),
		attribute.String(tracing.AttrRedditPath, path),
	))
	defer span.End()

	attempt := 0
	op := func() error {
		attempt++
		span.SetAttributes(attribute.Int(tracing.AttrRedditAttempt, attempt))
		if err := c.throttle.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		return c.roundTrip(ctx, method, path, q, form, out)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryBase
	b.MaxElapsedTime = 0
	b.Clock = c.clock
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.maxRetries)), ctx) //nolint:gosec // maxRetries is non-negative

	err := backoff.RetryNotify(op, policy, func(err error, d time.Duration) {
		metrics.RedditRetries.Inc()
		log.Warn(log.CatReddit, "retrying request", "method", method, "path", path, "in", d, "error", err.Error())
	})
	tracing.RecordError(span, err)
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, q url.Values, form url.Values, out any) error {
	vals := url.Values{"raw_json": {"1"}}
	for k, v := range q {
		vals[k] = v
	}
	u := c.baseURL + path + "?" + vals.Encode()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil || isAuthError(err) || !idempotent(method) {
			return backoff.Permanent(err)
		}
		return err
	}
	defer resp.Body.Close()

	c.trackRateLimit(resp.Header)
	metrics.RedditRequests.WithLabelValues(endpointLabel(path), strconv.Itoa(resp.StatusCode)).Inc()
	log.Debug(log.CatReddit, "request", "method", method, "path", path, "status", resp.StatusCode)

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		apiErr := &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
		if apiErr.Temporary() {
			return apiErr
		}
		return backoff.Permanent(apiErr)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return backoff.Permanent(fmt.Errorf("decode %s %s: %w", method, path, err))
	}
	return nil
}

func isAuthError(err error) bool {
	var re *oauth2.RetrieveError
	return errors.As(err, &re)
}

// trackRateLimit records X-Ratelimit-* headers and pauses the throttle when
// the window is exhausted.
func (c *Client) trackRateLimit(h http.Header) {
	remaining := h.Get("X-Ratelimit-Remaining")
	if remaining == "" {
		return
	}
	rem, err := strconv.ParseFloat(remaining, 64)
	if err != nil {
		return
	}
	used, _ := strconv.Atoi(h.Get("X-Ratelimit-Used"))
	resetSec, _ := strconv.ParseFloat(h.Get("X-Ratelimit-Reset"), 64)
	reset := time.Duration(resetSec * float64(time.Second))
	now := c.clock.Now()

	c.mu.Lock()
	c.rateLimit = RateLimit{Used: used, Remaining: rem, Reset: reset, UpdatedAt: now}
	c.mu.Unlock()

	metrics.RedditRateLimitRemaining.Set(rem)
	if rem < 1 && reset > 0 {
		log.Warn(log.CatReddit, "rate limit exhausted, pausing", "reset", reset)
		c.throttle.PauseUntil(now.Add(reset))
	}
}

// endpointLabel collapses a request path into a low-cardinality metric label.
func endpointLabel(path string) string {
	switch {
	case strings.HasPrefix(path, "/by_id/"):
		return "by_id"
	case strings.HasPrefix(path, "/comments/"):
		return "comments"
	case strings.HasSuffix(path, "/search"):
		return "search"
	case strings.HasPrefix(path, "/r/"):
		return "listing"
	case path == "/api/comment":
		return "comment"
	case path == "/api/v1/me":
		return "me"
	default:
		return "other"
	}
}
