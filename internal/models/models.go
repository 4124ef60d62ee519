package models

import "time"

// Account is a monitored X/Twitter account. Handle is the username without
// the leading "@". AccountID, DisplayName and Description are populated
// lazily on the first successful identity lookup and cached afterwards.
type Account struct {
	Handle      string    `json:"handle"`
	AccountID   string    `json:"account_id,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	Description string    `json:"description,omitempty"`
	Note        string    `json:"note,omitempty"`
	AddedAt     time.Time `json:"added_at"`
}

// Identity is the result of an external identity lookup for a handle.
type Identity struct {
	ID          string
	DisplayName string
	Description string
}

// Post is a single fetched post. PostID is the upstream identifier and the
// primary key for deduplication.
type Post struct {
	PostID        string
	AccountHandle string
	AuthorName    string
	CreatedAt     time.Time
	Body          string
	URL           string
	Likes         int64
	Retweets      int64
	Replies       int64
	Views         int64
	IsRetweet     bool
	IsReply       bool
	MediaURLs     []string
}

// EngagementScore weights replies over reposts over likes.
func (p Post) EngagementScore() int64 {
	return p.Likes + p.Retweets*2 + p.Replies*3
}

// Summary is a generated daily report. One row per report date; regenerating
// a date replaces the previous row.
type Summary struct {
	Date         time.Time
	GeneratedAt  time.Time
	AccountCount int
	PostCount    int
	Analysis     string
	Insights     []string
}
