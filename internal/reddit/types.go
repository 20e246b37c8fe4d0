// Package reddit is a small Reddit API client exposing just what redditor's
// pipelines consume: listings, single posts, comment trees, search and replies.
package reddit

import (
	"context"
	"iter"
	"time"
)

// API is the capability pipelines depend on. *Client implements it.
type API interface {
	// Posts lists a subreddit lazily, page by page, until opts.Limit posts.
	Posts(ctx context.Context, subreddit string, opts ListingOptions) iter.Seq2[Post, error]
	// Post fetches a single post by ID, with or without the t3_ prefix.
	Post(ctx context.Context, id string) (Post, error)
	// Comments yields a post's comments breadth-first.
	Comments(ctx context.Context, postID string, opts CommentOptions) iter.Seq2[Comment, error]
	// Search finds posts matching query.
	Search(ctx context.Context, query string, opts SearchOptions) iter.Seq2[Post, error]
	// SubmitComment replies to a post.
	SubmitComment(ctx context.Context, postID, body string) (Comment, error)
	// IsAuthenticated reports whether the client acts as a user account.
	IsAuthenticated(ctx context.Context) bool
}

// Post is a submission (kind t3).
type Post struct {
	ID          string    `json:"id"`
	Fullname    string    `json:"fullname"`
	Subreddit   string    `json:"subreddit"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	SelfText    string    `json:"selftext,omitempty"`
	URL         string    `json:"url"`
	Permalink   string    `json:"permalink"`
	Score       int       `json:"score"`
	UpvoteRatio float64   `json:"upvote_ratio"`
	NumComments int       `json:"num_comments"`
	NSFW        bool      `json:"nsfw"`
	Stickied    bool      `json:"stickied"`
	IsSelf      bool      `json:"is_self"`
	Created     time.Time `json:"created"`
}

// Comment is a comment (kind t1).
type Comment struct {
	ID        string    `json:"id"`
	Fullname  string    `json:"fullname"`
	PostID    string    `json:"post_id"`
	ParentID  string    `json:"parent_id"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	Permalink string    `json:"permalink"`
	Score     int       `json:"score"`
	Depth     int       `json:"depth"`
	Created   time.Time `json:"created"`
}

// Sort orders subreddit listings.
type Sort string

const (
	SortHot           Sort = "hot"
	SortNew           Sort = "new"
	SortTop           Sort = "top"
	SortRising        Sort = "rising"
	SortControversial Sort = "controversial"
)

// ParseSort returns the listing sort named by s, falling back to hot.
func ParseSort(s string) Sort {
	switch Sort(s) {
	case SortHot, SortNew, SortTop, SortRising, SortControversial:
		return Sort(s)
	default:
		return SortHot
	}
}

// takesTimeFilter reports whether Reddit honours t= for this sort.
func (s Sort) takesTimeFilter() bool {
	return s == SortTop || s == SortControversial
}

// TimeFilter bounds top and controversial listings.
type TimeFilter string

const (
	TimeHour  TimeFilter = "hour"
	TimeDay   TimeFilter = "day"
	TimeWeek  TimeFilter = "week"
	TimeMonth TimeFilter = "month"
	TimeYear  TimeFilter = "year"
	TimeAll   TimeFilter = "all"
)

// ParseTimeFilter returns the filter named by s, or "" when s is not one.
func ParseTimeFilter(s string) TimeFilter {
	switch TimeFilter(s) {
	case TimeHour, TimeDay, TimeWeek, TimeMonth, TimeYear, TimeAll:
		return TimeFilter(s)
	default:
		return ""
	}
}

// CommentSort orders a comment tree.
type CommentSort string

const (
	CommentSortBest          CommentSort = "best"
	CommentSortTop           CommentSort = "top"
	CommentSortNew           CommentSort = "new"
	CommentSortControversial CommentSort = "controversial"
	CommentSortOld           CommentSort = "old"
	CommentSortQA            CommentSort = "qa"
)

// ParseCommentSort returns the comment sort named by s, falling back to best.
func ParseCommentSort(s string) CommentSort {
	switch CommentSort(s) {
	case CommentSortBest, CommentSortTop, CommentSortNew, CommentSortControversial, CommentSortOld, CommentSortQA:
		return CommentSort(s)
	default:
		return CommentSortBest
	}
}

// SearchSort orders search results.
type SearchSort string

const (
	SearchRelevance SearchSort = "relevance"
	SearchHot       SearchSort = "hot"
	SearchTop       SearchSort = "top"
	SearchNew       SearchSort = "new"
	SearchComments  SearchSort = "comments"
)

// ParseSearchSort returns the search sort named by s, falling back to relevance.
func ParseSearchSort(s string) SearchSort {
	switch SearchSort(s) {
	case SearchRelevance, SearchHot, SearchTop, SearchNew, SearchComments:
		return SearchSort(s)
	default:
		return SearchRelevance
	}
}

// DefaultLimit is used when a listing limit is not positive.
const DefaultLimit = 25

// maxPageSize is the most Reddit returns per listing request.
const maxPageSize = 100

// ListingOptions configures Posts.
type ListingOptions struct {
	Sort  Sort
	Time  TimeFilter
	Limit int
}

// CommentOptions configures Comments. A zero Limit yields every comment.
type CommentOptions struct {
	Sort  CommentSort
	Limit int
}

// SearchOptions configures Search. An empty Subreddit searches r/all.
type SearchOptions struct {
	Subreddit string
	Sort      SearchSort
	Time      TimeFilter
	Limit     int
}

// RateLimit is the latest rate-limit window reported by Reddit.
type RateLimit struct {
	Used      int
	Remaining float64
	Reset     time.Duration
	UpdatedAt time.Time
}
