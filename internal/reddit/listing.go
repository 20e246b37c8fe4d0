package reddit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Reddit wraps every object as {"kind": ..., "data": ...}.
type thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

const (
	kindComment = "t1"
	kindPost    = "t3"
	kindListing = "Listing"
	kindMore    = "more"
)

type listing struct {
	Kind string `json:"kind"`
	Data struct {
		After    string  `json:"after"`
		Children []thing `json:"children"`
	} `json:"data"`
}

type postData struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Subreddit   string  `json:"subreddit"`
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	SelfText    string  `json:"selftext"`
	URL         string  `json:"url"`
	Permalink   string  `json:"permalink"`
	Score       int     `json:"score"`
	UpvoteRatio float64 `json:"upvote_ratio"`
	NumComments int     `json:"num_comments"`
	Over18      bool    `json:"over_18"`
	Stickied    bool    `json:"stickied"`
	IsSelf      bool    `json:"is_self"`
	CreatedUTC  float64 `json:"created_utc"`
}

type commentData struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	LinkID     string          `json:"link_id"`
	ParentID   string          `json:"parent_id"`
	Author     string          `json:"author"`
	Body       string          `json:"body"`
	Permalink  string          `json:"permalink"`
	Score      int             `json:"score"`
	Depth      int             `json:"depth"`
	CreatedUTC float64         `json:"created_utc"`
	Replies    json.RawMessage `json:"replies"`
}

func decodePost(raw json.RawMessage) (Post, error) {
	var d postData
	if err := json.Unmarshal(raw, &d); err != nil {
		return Post{}, fmt.Errorf("decode post: %w", err)
	}
	return Post{
		ID:          d.ID,
		Fullname:    d.Name,
		Subreddit:   d.Subreddit,
		Title:       d.Title,
		Author:      d.Author,
		SelfText:    d.SelfText,
		URL:         d.URL,
		Permalink:   d.Permalink,
		Score:       d.Score,
		UpvoteRatio: d.UpvoteRatio,
		NumComments: d.NumComments,
		NSFW:        d.Over18,
		Stickied:    d.Stickied,
		IsSelf:      d.IsSelf,
		Created:     unixSeconds(d.CreatedUTC),
	}, nil
}

// decodeComment returns the comment and the raw children of its replies.
func decodeComment(raw json.RawMessage) (Comment, []thing, error) {
	var d commentData
	if err := json.Unmarshal(raw, &d); err != nil {
		return Comment{}, nil, fmt.Errorf("decode comment: %w", err)
	}
	c := Comment{
		ID:        d.ID,
		Fullname:  d.Name,
		PostID:    strings.TrimPrefix(d.LinkID, kindPost+"_"),
		ParentID:  d.ParentID,
		Author:    d.Author,
		Body:      d.Body,
		Permalink: d.Permalink,
		Score:     d.Score,
		Depth:     d.Depth,
		Created:   unixSeconds(d.CreatedUTC),
	}

	// replies is "" for leaves and a Listing otherwise.
	replies := bytes.TrimSpace(d.Replies)
	if len(replies) == 0 || replies[0] != '{' {
		return c, nil, nil
	}
	var l listing
	if err := json.Unmarshal(replies, &l); err != nil {
		return Comment{}, nil, fmt.Errorf("decode replies of %s: %w", d.ID, err)
	}
	return c, l.Data.Children, nil
}

func unixSeconds(f float64) time.Time {
	if f <= 0 {
		return time.Time{}
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

// postID strips the t3_ prefix from a post ID or fullname.
func postID(id string) string {
	return strings.TrimPrefix(strings.TrimSpace(id), kindPost+"_")
}

// submitResponse is the body of POST /api/comment with api_type=json.
type submitResponse struct {
	JSON struct {
		Errors [][]any `json:"errors"`
		Data   struct {
			Things []thing `json:"things"`
		} `json:"data"`
	} `json:"json"`
}

func (r submitResponse) reasons() []string {
	var out []string
	for _, e := range r.JSON.Errors {
		parts := make([]string, 0, len(e))
		for _, p := range e {
			if s, ok := p.(string); ok && s != "" {
				parts = append(parts, s)
			}
		}
		out = append(out, strings.Join(parts, ": "))
	}
	return out
}
