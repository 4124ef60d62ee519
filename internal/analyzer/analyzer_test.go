package analyzer

import (
	"strings"
	"testing"
	"time"

	"github.com/luoli523/x-monitor/internal/models"
)

func TestParseInsightsExtractsBullets(t *testing.T) {
	text := `## Daily Summary

Accounts were active today.

## Key Insights

- First finding with detail
- Second finding
* Third finding
1. Fourth finding

## Appendix

- not an insight`

	insights := parseInsights(text)

	if len(insights) != 4 {
		t.Fatalf("expected 4 insights, got %d: %v", len(insights), insights)
	}
	if insights[0] != "First finding with detail" {
		t.Fatalf("unexpected first insight: %q", insights[0])
	}
	if insights[3] != "Fourth finding" {
		t.Fatalf("unexpected fourth insight: %q", insights[3])
	}
}

func TestParseInsightsCapsAtFive(t *testing.T) {
	text := `Key Insights
- one
- two
- three
- four
- five
- six`

	insights := parseInsights(text)

	if len(insights) != 5 {
		t.Fatalf("expected insights capped at 5, got %d", len(insights))
	}
}

func TestParseInsightsIgnoresProseLines(t *testing.T) {
	text := `## Key Insights

Here is what stood out today. 3 accounts were unusually active.

- the actual finding
Trailing commentary that is not a bullet.`

	insights := parseInsights(text)

	if len(insights) != 1 || insights[0] != "the actual finding" {
		t.Fatalf("expected only the bulleted line, got %v", insights)
	}
}

func TestParseInsightsWithoutSection(t *testing.T) {
	if insights := parseInsights("just some analysis text"); len(insights) != 0 {
		t.Fatalf("expected no insights, got %v", insights)
	}
}

func TestFormatPostsGroupsByAuthorInFirstSeenOrder(t *testing.T) {
	base := time.Date(2026, 2, 8, 10, 0, 0, 0, time.UTC)
	posts := []models.Post{
		{PostID: "1", AccountHandle: "bob", AuthorName: "Bob B", CreatedAt: base, Body: "bob one"},
		{PostID: "2", AccountHandle: "alice", CreatedAt: base.Add(time.Minute), Body: "alice one"},
		{PostID: "3", AccountHandle: "bob", AuthorName: "Bob B", CreatedAt: base.Add(2 * time.Minute), Body: "bob two", IsReply: true},
	}

	out := formatPosts(posts)

	bobIdx := strings.Index(out, "## @bob (Bob B)")
	aliceIdx := strings.Index(out, "## @alice (alice)")
	if bobIdx < 0 || aliceIdx < 0 {
		t.Fatalf("expected both author sections, got:\n%s", out)
	}
	if bobIdx > aliceIdx {
		t.Fatalf("expected first-seen author order, got:\n%s", out)
	}
	if !strings.Contains(out, "[reply] bob two") {
		t.Fatalf("expected reply prefix, got:\n%s", out)
	}
	if !strings.Contains(out, "2 posts total") {
		t.Fatalf("expected per-author post count, got:\n%s", out)
	}
}

func TestFormatPostsEmptyWindow(t *testing.T) {
	if out := formatPosts(nil); out != "No post data." {
		t.Fatalf("unexpected empty-window output: %q", out)
	}
}

func TestTopByEngagementKeepsChronologicalOrder(t *testing.T) {
	base := time.Date(2026, 2, 8, 10, 0, 0, 0, time.UTC)
	posts := []models.Post{
		{PostID: "low-early", CreatedAt: base, Likes: 1},
		{PostID: "high-late", CreatedAt: base.Add(2 * time.Hour), Likes: 100},
		{PostID: "mid", CreatedAt: base.Add(time.Hour), Likes: 50},
	}

	top := topByEngagement(posts, 2)

	if len(top) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(top))
	}
	if top[0].PostID != "mid" || top[1].PostID != "high-late" {
		t.Fatalf("expected highest-engagement posts in time order, got %s then %s",
			top[0].PostID, top[1].PostID)
	}
}

func TestTruncateBodyIsRuneSafe(t *testing.T) {
	body := strings.Repeat("测", 250)

	out := truncateBody(body, 200)

	if !strings.HasSuffix(out, "...") {
		t.Fatalf("expected truncation marker")
	}
	if got := len([]rune(out)); got != 203 {
		t.Fatalf("expected 203 runes, got %d", got)
	}
}
