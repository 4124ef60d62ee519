// Package analyzer turns a window of posts into an analytical report via an
// opaque text-in/text-out service.
package analyzer

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/luoli523/x-monitor/internal/models"
)

const (
	maxPostsPerAuthor = 10
	maxBodyChars      = 200
	maxInsights       = 5
)

// Analysis is the collaborator's output for one reporting window.
type Analysis struct {
	Text     string
	Insights []string
}

// Analyzer produces an analysis for a window of posts.
type Analyzer interface {
	Analyze(ctx context.Context, posts []models.Post, date time.Time) (*Analysis, error)
}

// formatPosts renders the window grouped by author for the model prompt.
// Authors keep first-seen order; within an author the highest-engagement
// posts are kept up to maxPostsPerAuthor.
func formatPosts(posts []models.Post) string {
	if len(posts) == 0 {
		return "No post data."
	}

	var authors []string
	byAuthor := make(map[string][]models.Post)
	for _, post := range posts {
		if _, ok := byAuthor[post.AccountHandle]; !ok {
			authors = append(authors, post.AccountHandle)
		}
		byAuthor[post.AccountHandle] = append(byAuthor[post.AccountHandle], post)
	}

	var b strings.Builder
	for _, author := range authors {
		authorPosts := byAuthor[author]

		displayName := authorPosts[0].AuthorName
		if displayName == "" {
			displayName = author
		}

		fmt.Fprintf(&b, "\n## @%s (%s)\n", author, displayName)
		fmt.Fprintf(&b, "%d posts total\n\n", len(authorPosts))

		for _, post := range topByEngagement(authorPosts, maxPostsPerAuthor) {
			prefix := ""
			if post.IsRetweet {
				prefix = "[repost] "
			} else if post.IsReply {
				prefix = "[reply] "
			}

			fmt.Fprintf(&b, "- [%s] %s%s\n",
				post.CreatedAt.UTC().Format("2006-01-02 15:04"),
				prefix,
				truncateBody(post.Body, maxBodyChars))
			fmt.Fprintf(&b, "  likes=%d reposts=%d replies=%d\n", post.Likes, post.Retweets, post.Replies)
			if post.URL != "" {
				fmt.Fprintf(&b, "  %s\n", post.URL)
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}

// topByEngagement keeps the n highest-engagement posts in chronological
// order.
func topByEngagement(posts []models.Post, n int) []models.Post {
	if len(posts) <= n {
		return posts
	}

	ranked := make([]models.Post, len(posts))
	copy(ranked, posts)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].EngagementScore() > ranked[j].EngagementScore()
	})

	top := ranked[:n]
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].CreatedAt.Before(top[j].CreatedAt)
	})

	return top
}

// parseInsights extracts up to maxInsights bullet lines following a
// "Key Insights" heading in the analysis text.
func parseInsights(text string) []string {
	var insights []string

	inSection := false
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)

		if !inSection {
			if strings.Contains(strings.ToLower(trimmed), "key insights") {
				inSection = true
			}
			continue
		}

		if strings.HasPrefix(trimmed, "#") {
			break
		}

		insight, ok := listItemText(trimmed)
		if !ok || insight == "" {
			continue
		}

		insights = append(insights, insight)
		if len(insights) >= maxInsights {
			break
		}
	}

	return insights
}

// listItemText strips a leading "-", "*", "•" or "N." list marker and
// reports whether the line was a list item at all. Prose lines inside the
// insights section are not insights.
func listItemText(line string) (string, bool) {
	if line == "" {
		return "", false
	}

	switch line[0] {
	case '-', '*':
		return strings.TrimSpace(line[1:]), true
	}

	if rest, ok := strings.CutPrefix(line, "•"); ok {
		return strings.TrimSpace(rest), true
	}

	if i := strings.IndexAny(line, ".)"); i > 0 {
		if _, err := strconv.Atoi(line[:i]); err == nil {
			return strings.TrimSpace(line[i+1:]), true
		}
	}

	return "", false
}

func truncateBody(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}

	return string(runes[:n]) + "..."
}
