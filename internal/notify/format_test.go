package notify

import (
	"strings"
	"testing"
	"time"

	"github.com/luoli523/x-monitor/internal/models"
)

func sampleSummary() *models.Summary {
	return &models.Summary{
		Date:         time.Date(2026, 2, 8, 0, 0, 0, 0, time.UTC),
		GeneratedAt:  time.Date(2026, 2, 9, 8, 0, 0, 0, time.UTC),
		AccountCount: 3,
		PostCount:    42,
		Analysis:     "Quiet day overall. <script> should stay text.",
		Insights:     []string{"alice shipped a release", "bob went silent"},
	}
}

func TestRenderTextIncludesHeaderAndInsights(t *testing.T) {
	out := renderText(sampleSummary())

	for _, want := range []string{
		"X/Twitter Daily Report - 2026-02-08",
		"Accounts monitored: 3",
		"Posts: 42",
		"Quiet day overall.",
		"1. alice shipped a release",
		"2. bob went silent",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
}

func TestRenderTextOmitsInsightsSectionWhenEmpty(t *testing.T) {
	summary := sampleSummary()
	summary.Insights = nil

	if out := renderText(summary); strings.Contains(out, "Key insights") {
		t.Fatalf("unexpected insights section:\n%s", out)
	}
}

func TestRenderHTMLEscapesAnalysis(t *testing.T) {
	out := renderHTML(sampleSummary())

	if strings.Contains(out, "<script>") {
		t.Fatalf("analysis was not escaped:\n%s", out)
	}
	if !strings.Contains(out, "&lt;script&gt;") {
		t.Fatalf("expected escaped analysis body:\n%s", out)
	}
	if !strings.Contains(out, "<h1>X/Twitter Daily Report - 2026-02-08</h1>") {
		t.Fatalf("expected report heading:\n%s", out)
	}
}

func TestSplitMessageShortTextIsSingleChunk(t *testing.T) {
	chunks := splitMessage("hello", 4096)

	if len(chunks) != 1 || chunks[0] != "hello" {
		t.Fatalf("unexpected chunks: %v", chunks)
	}
}

func TestSplitMessagePrefersNewlineBoundary(t *testing.T) {
	text := strings.Repeat("a", 80) + "\n" + strings.Repeat("b", 80)

	chunks := splitMessage(text, 100)

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %v", len(chunks), chunks)
	}
	if chunks[0] != strings.Repeat("a", 80) {
		t.Fatalf("expected cut at the line break, got %q", chunks[0])
	}
	if chunks[1] != strings.Repeat("b", 80) {
		t.Fatalf("unexpected second chunk %q", chunks[1])
	}
}

func TestSplitMessageHardCutsWithoutNewline(t *testing.T) {
	text := strings.Repeat("测", 150)

	chunks := splitMessage(text, 100)

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if got := len([]rune(chunks[0])); got != 100 {
		t.Fatalf("expected 100-rune first chunk, got %d", got)
	}
	if got := len([]rune(chunks[1])); got != 50 {
		t.Fatalf("expected 50-rune second chunk, got %d", got)
	}
}
