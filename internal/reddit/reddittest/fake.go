// Package reddittest provides an in-memory reddit.API for tests.
package reddittest

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync"

	"github.com/agenticcompany/redditor/internal/reddit"
)

// Fake is an in-memory reddit.API. Posts are returned in insertion order
// regardless of sort, except SortTop which orders by score.
type Fake struct {
	mu        sync.Mutex
	posts     map[string][]reddit.Post
	byID      map[string]reddit.Post
	comments  map[string][]reddit.Comment
	submitted []reddit.Comment
	nextID    int

	// Authenticated is returned by IsAuthenticated.
	Authenticated bool
	// Err, when set, is returned by every call.
	Err error
}

var _ reddit.API = (*Fake)(nil)

// NewFake returns an empty Fake.
func NewFake() *Fake {
	return &Fake{
		posts:    make(map[string][]reddit.Post),
		byID:     make(map[string]reddit.Post),
		comments: make(map[string][]reddit.Comment),
	}
}

// AddPosts adds posts to their subreddits.
func (f *Fake) AddPosts(posts ...reddit.Post) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range posts {
		f.posts[strings.ToLower(p.Subreddit)] = append(f.posts[strings.ToLower(p.Subreddit)], p)
		f.byID[p.ID] = p
	}
	return f
}

// AddComments adds comments under postID, in breadth-first order.
func (f *Fake) AddComments(postID string, comments ...reddit.Comment) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comments[postID] = append(f.comments[postID], comments...)
	return f
}

// Submitted returns the comments submitted so far.
func (f *Fake) Submitted() []reddit.Comment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.submitted)
}

func (f *Fake) Posts(_ context.Context, subreddit string, opts reddit.ListingOptions) iter.Seq2[reddit.Post, error] {
	f.mu.Lock()
	posts := slices.Clone(f.posts[strings.ToLower(strings.TrimPrefix(subreddit, "r/"))])
	f.mu.Unlock()

	if reddit.ParseSort(string(opts.Sort)) == reddit.SortTop {
		slices.SortStableFunc(posts, func(a, b reddit.Post) int { return cmp.Compare(b.Score, a.Score) })
	}
	return f.seq(posts, opts.Limit)
}

func (f *Fake) Post(_ context.Context, id string) (reddit.Post, error) {
	if f.Err != nil {
		return reddit.Post{}, f.Err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[strings.TrimPrefix(id, "t3_")]
	if !ok {
		return reddit.Post{}, fmt.Errorf("post %s: %w", id, reddit.ErrNotFound)
	}
	return p, nil
}

func (f *Fake) Comments(_ context.Context, postID string, opts reddit.CommentOptions) iter.Seq2[reddit.Comment, error] {
	f.mu.Lock()
	comments := slices.Clone(f.comments[strings.TrimPrefix(postID, "t3_")])
	f.mu.Unlock()

	limit := opts.Limit
	if limit <= 0 {
		limit = len(comments)
	}
	return f.seqComments(comments, limit)
}

func (f *Fake) Search(_ context.Context, query string, opts reddit.SearchOptions) iter.Seq2[reddit.Post, error] {
	q := strings.ToLower(query)

	f.mu.Lock()
	var pool []reddit.Post
	if opts.Subreddit != "" {
		pool = slices.Clone(f.posts[strings.ToLower(opts.Subreddit)])
	} else {
		for _, ps := range f.posts {
			pool = append(pool, ps...)
		}
	}
	f.mu.Unlock()

	var matches []reddit.Post
	for _, p := range pool {
		if strings.Contains(strings.ToLower(p.Title), q) || strings.Contains(strings.ToLower(p.SelfText), q) {
			matches = append(matches, p)
		}
	}
	return f.seq(matches, opts.Limit)
}

func (f *Fake) SubmitComment(_ context.Context, postID, body string) (reddit.Comment, error) {
	if f.Err != nil {
		return reddit.Comment{}, f.Err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	c := reddit.Comment{
		ID:     fmt.Sprintf("c%d", f.nextID),
		PostID: strings.TrimPrefix(postID, "t3_"),
		Body:   body,
		Author: "redditor",
	}
	f.submitted = append(f.submitted, c)
	return c, nil
}

func (f *Fake) IsAuthenticated(context.Context) bool {
	return f.Authenticated
}

func (f *Fake) seq(posts []reddit.Post, limit int) iter.Seq2[reddit.Post, error] {
	if limit <= 0 {
		limit = reddit.DefaultLimit
	}
	return func(yield func(reddit.Post, error) bool) {
		if f.Err != nil {
			yield(reddit.Post{}, f.Err)
			return
		}
		for i, p := range posts {
			if i >= limit || !yield(p, nil) {
				return
			}
		}
	}
}

func (f *Fake) seqComments(comments []reddit.Comment, limit int) iter.Seq2[reddit.Comment, error] {
	return func(yield func(reddit.Comment, error) bool) {
		if f.Err != nil {
			yield(reddit.Comment{}, f.Err)
			return
		}
		for i, c := range comments {
			if i >= limit || !yield(c, nil) {
				return
			}
		}
	}
}
