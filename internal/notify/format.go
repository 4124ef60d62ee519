package notify

import (
	"fmt"
	"html"
	"strings"

	"github.com/luoli523/x-monitor/internal/models"
)

// renderText builds the plain-text report shared by all sinks.
func renderText(summary *models.Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "X/Twitter Daily Report - %s\n\n", summary.Date.UTC().Format("2006-01-02"))
	fmt.Fprintf(&b, "Accounts monitored: %d\n", summary.AccountCount)
	fmt.Fprintf(&b, "Posts: %d\n", summary.PostCount)
	fmt.Fprintf(&b, "Generated at: %s\n", summary.GeneratedAt.UTC().Format("2006-01-02 15:04:05"))
	b.WriteString("\n---\n\n")
	b.WriteString(summary.Analysis)

	if len(summary.Insights) > 0 {
		b.WriteString("\n\n---\n\nKey insights:\n")
		for i, insight := range summary.Insights {
			fmt.Fprintf(&b, "%d. %s\n", i+1, insight)
		}
	}

	return b.String()
}

// renderHTML builds the HTML alternative body for the email sink.
func renderHTML(summary *models.Summary) string {
	var b strings.Builder

	b.WriteString("<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"></head>\n<body>\n")
	fmt.Fprintf(&b, "<h1>X/Twitter Daily Report - %s</h1>\n", summary.Date.UTC().Format("2006-01-02"))
	b.WriteString("<ul>\n")
	fmt.Fprintf(&b, "<li><strong>Accounts monitored:</strong> %d</li>\n", summary.AccountCount)
	fmt.Fprintf(&b, "<li><strong>Posts:</strong> %d</li>\n", summary.PostCount)
	fmt.Fprintf(&b, "<li><strong>Generated at:</strong> %s</li>\n",
		summary.GeneratedAt.UTC().Format("2006-01-02 15:04:05"))
	b.WriteString("</ul>\n<hr>\n")
	fmt.Fprintf(&b, "<div style=\"white-space: pre-wrap\">%s</div>\n", html.EscapeString(summary.Analysis))

	if len(summary.Insights) > 0 {
		b.WriteString("<hr>\n<h2>Key insights</h2>\n<ol>\n")
		for _, insight := range summary.Insights {
			fmt.Fprintf(&b, "<li>%s</li>\n", html.EscapeString(insight))
		}
		b.WriteString("</ol>\n")
	}

	b.WriteString("</body>\n</html>\n")

	return b.String()
}

// splitMessage cuts text into rune-bounded chunks of at most limit runes,
// preferring line breaks.
func splitMessage(text string, limit int) []string {
	if limit <= 0 {
		return []string{text}
	}

	var chunks []string
	runes := []rune(text)

	for len(runes) > limit {
		cut := limit
		for i := limit - 1; i > limit/2; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}

		chunks = append(chunks, strings.TrimRight(string(runes[:cut]), "\n"))
		runes = runes[cut:]
	}

	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}

	return chunks
}
