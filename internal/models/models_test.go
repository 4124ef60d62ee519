package models

import "testing"

func TestEngagementScoreWeightsReplies(t *testing.T) {
	post := Post{Likes: 10, Retweets: 4, Replies: 2}

	if got := post.EngagementScore(); got != 24 {
		t.Fatalf("expected score 24, got %d", got)
	}
}

func TestEngagementScoreZeroForQuietPost(t *testing.T) {
	if got := (Post{}).EngagementScore(); got != 0 {
		t.Fatalf("expected zero score, got %d", got)
	}
}
