// Package report writes generated summaries to markdown files.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/luoli523/x-monitor/internal/models"
)

// Exporter writes one markdown report per report date under Dir.
type Exporter struct {
	dir string
}

func NewExporter(dir string) *Exporter {
	return &Exporter{dir: dir}
}

// Write renders the summary to output/report_YYYY-MM-DD.md, overwriting any
// previous export for the same date, and returns the file path.
func (e *Exporter) Write(summary *models.Summary) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	dateStr := summary.Date.UTC().Format("2006-01-02")
	path := filepath.Join(e.dir, fmt.Sprintf("report_%s.md", dateStr))

	var b strings.Builder
	fmt.Fprintf(&b, "# X/Twitter Daily Report - %s\n\n", dateStr)
	fmt.Fprintf(&b, "- Accounts monitored: %d\n", summary.AccountCount)
	fmt.Fprintf(&b, "- Posts: %d\n", summary.PostCount)
	fmt.Fprintf(&b, "- Generated at: %s\n\n", summary.GeneratedAt.UTC().Format("2006-01-02 15:04:05"))
	b.WriteString("---\n\n")
	b.WriteString(summary.Analysis)
	b.WriteString("\n")

	if len(summary.Insights) > 0 {
		b.WriteString("\n---\n\n## Key insights\n\n")
		for i, insight := range summary.Insights {
			fmt.Fprintf(&b, "%d. %s\n", i+1, insight)
		}
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}

	return path, nil
}
