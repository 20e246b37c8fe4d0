package pipelines

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agenticcompany/redditor/internal/pipeline"
	"github.com/agenticcompany/redditor/internal/reddit"
	"github.com/agenticcompany/redditor/internal/reddit/reddittest"
)

func TestMonitor_Matches(t *testing.T) {
	fake := reddittest.NewFake().AddPosts(testPosts()...)
	deps, _ := fakeDeps(fake)
	m, err := NewMonitor(pipeline.Config{"subreddit": "test", "query": "go"}, deps)
	require.NoError(t, err)

	res, err := pipeline.Run(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, pipeline.StatusSuccess, res.Status)
	require.Equal(t, 1, res.ItemsProcessed)
	require.Equal(t, []string{"a1"}, postIDs(t, res.Payload, "matches"))
	require.NotContains(t, res.Payload, "replies")
	require.Empty(t, fake.Submitted())
}

func TestMonitor_NoMatchesIsSkipped(t *testing.T) {
	deps, _ := fakeDeps(reddittest.NewFake().AddPosts(testPosts()...))
	m, err := NewMonitor(pipeline.Config{"subreddit": "test", "query": "rustacean"}, deps)
	require.NoError(t, err)

	res, err := pipeline.Run(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, pipeline.StatusSkipped, res.Status)
	require.Contains(t, res.Payload["reason"], "rustacean")
}

func TestMonitor_Replies(t *testing.T) {
	fake := reddittest.NewFake().AddPosts(testPosts()...)
	fake.Authenticated = true
	deps, _ := fakeDeps(fake)
	m, err := NewMonitor(pipeline.Config{
		"subreddit": "test",
		"query":     "e",
		"min_score": 20,
		"reply":     "Thanks for posting!",
	}, deps)
	require.NoError(t, err)

	res, err := pipeline.Run(context.Background(), m)
	require.NoError(t, err)

	submitted := fake.Submitted()
	require.Len(t, submitted, len(postIDs(t, res.Payload, "matches")))
	for _, c := range submitted {
		require.Equal(t, "Thanks for posting!", c.Body)
	}
	require.Len(t, res.Payload["replies"], len(submitted))
}

func TestMonitor_DryRun(t *testing.T) {
	fake := reddittest.NewFake().AddPosts(testPosts()...)
	deps, _ := fakeDeps(fake)
	m, err := NewMonitor(pipeline.Config{
		"subreddit": "test",
		"query":     "go",
		"reply":     "hi",
		"dry_run":   "true",
	}, deps)
	require.NoError(t, err)

	res, err := pipeline.Run(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, true, res.Payload["dry_run"])
	require.Empty(t, fake.Submitted())
}

func TestMonitor_ReplyNeedsUser(t *testing.T) {
	fake := reddittest.NewFake().AddPosts(testPosts()...)
	deps, _ := fakeDeps(fake)
	m, err := NewMonitor(pipeline.Config{"subreddit": "test", "query": "go", "reply": "hi"}, deps)
	require.NoError(t, err)

	_, err = pipeline.Run(context.Background(), m)
	require.ErrorIs(t, err, ErrNotAuthenticated)
	require.Empty(t, fake.Submitted())
}

func TestMonitor_BlankQuery(t *testing.T) {
	deps, _ := fakeDeps(reddittest.NewFake())

	_, err := NewMonitor(pipeline.Config{"subreddit": "test", "query": "   "}, deps)
	var valErr *pipeline.ValueError
	require.ErrorAs(t, err, &valErr)
	require.Equal(t, "query", valErr.Key)
}

// submitLimitFake accepts okLeft comments and then fails every submit.
type submitLimitFake struct {
	*reddittest.Fake
	okLeft int
}

var errSubmit = errors.New("reddit returned 502")

func (f *submitLimitFake) SubmitComment(ctx context.Context, postID, body string) (reddit.Comment, error) {
	if f.okLeft == 0 {
		return reddit.Comment{}, errSubmit
	}
	f.okLeft--
	return f.Fake.SubmitComment(ctx, postID, body)
}

func TestMonitor_ReplyFailureKeepsPostedReplies(t *testing.T) {
	fake := &submitLimitFake{Fake: reddittest.NewFake().AddPosts(testPosts()...), okLeft: 1}
	fake.Authenticated = true
	deps, _ := fakeDeps(fake)
	m, err := NewMonitor(pipeline.Config{
		"subreddit": "test",
		"query":     "e",
		"min_score": 20,
		"reply":     "Thanks for posting!",
	}, deps)
	require.NoError(t, err)

	res, err := pipeline.Run(context.Background(), m)
	require.ErrorIs(t, err, errSubmit)

	var execErr *pipeline.ExecutionError
	require.ErrorAs(t, err, &execErr)
	require.Equal(t, pipeline.PhaseExecute, execErr.Phase)

	submitted := fake.Submitted()
	require.Len(t, submitted, 1)

	matches := postIDs(t, res.Payload, "matches")
	require.GreaterOrEqual(t, len(matches), 2)
	require.Equal(t, pipeline.StatusFailure, res.Status)
	require.Equal(t, 1, res.ItemsProcessed)
	require.Equal(t, []string{submitted[0].ID}, res.Payload["replies"])
	require.Equal(t, matches[1], res.Payload["failed_post"])
}
