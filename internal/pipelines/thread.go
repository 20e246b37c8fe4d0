package pipelines

import (
	"context"
	"fmt"

	"github.com/agenticcompany/redditor/internal/pipeline"
	"github.com/agenticcompany/redditor/internal/reddit"
)

// ThreadName is the registered name of the thread pipeline.
const ThreadName = "thread"

// Thread fetches one post and its comments.
//
// Config: post_id (required), comment_limit (50, 0 for all), comment_sort (best).
type Thread struct {
	pipeline.Base
	conn

	postID       string
	commentLimit int
	commentSort  reddit.CommentSort
}

// NewThread builds a thread pipeline.
func NewThread(cfg pipeline.Config, deps Deps) (*Thread, error) {
	base, err := pipeline.NewBase(ThreadName, cfg, "post_id")
	if err != nil {
		return nil, err
	}
	t := &Thread{
		Base:        base,
		conn:        conn{open: deps.NewClient},
		postID:      cfg.String("post_id", ""),
		commentSort: reddit.ParseCommentSort(cfg.String("comment_sort", string(reddit.CommentSortBest))),
	}
	if t.commentLimit, err = cfg.IntE("comment_limit", 50); err != nil {
		return nil, err
	}
	if t.commentLimit < 0 {
		return nil, &pipeline.ValueError{Key: "comment_limit", Value: t.commentLimit, Want: "non-negative integer"}
	}
	return t, nil
}

func (t *Thread) Setup(ctx context.Context) error { return t.setup(ctx, t.Name()) }

func (t *Thread) Cleanup(context.Context) error { return t.cleanup(t.Name()) }

func (t *Thread) Execute(ctx context.Context) (pipeline.Result, error) {
	client, err := t.api()
	if err != nil {
		return pipeline.Result{}, err
	}

	post, err := client.Post(ctx, t.postID)
	if err != nil {
		return pipeline.Result{}, err
	}

	var (
		count int
		top   *reddit.Comment
	)
	opts := reddit.CommentOptions{Sort: t.commentSort, Limit: t.commentLimit}
	for c, err := range client.Comments(ctx, post.ID, opts) {
		if err != nil {
			return pipeline.Result{}, fmt.Errorf("comments for %s: %w", post.ID, err)
		}
		count++
		if top == nil || c.Score > top.Score {
			top = &c
		}
	}

	payload := map[string]any{
		"post":     postPayload(post),
		"comments": count,
	}
	if top != nil {
		payload["top_comment"] = commentPayload(*top)
	}
	return pipeline.Success(count, payload), nil
}
