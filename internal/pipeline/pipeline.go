// Package pipeline composes registry, cursor resolution, fetching, the post
// store and the external analysis/notification collaborators into the
// incremental run and the store-only regenerate flow.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/luoli523/x-monitor/internal/analyzer"
	"github.com/luoli523/x-monitor/internal/fetch"
	"github.com/luoli523/x-monitor/internal/models"
	"github.com/luoli523/x-monitor/internal/notify"
	"github.com/luoli523/x-monitor/internal/registry"
	"github.com/luoli523/x-monitor/internal/report"
	"github.com/luoli523/x-monitor/internal/source"
	"github.com/luoli523/x-monitor/internal/store"
)

var (
	// ErrNoAccounts aborts a run when the registry is empty.
	ErrNoAccounts = errors.New("no accounts configured")

	// ErrNoDataForDate is returned by Regenerate when the store holds no
	// posts for the requested window. Distinct from a storage failure.
	ErrNoDataForDate = errors.New("no posts stored for date")

	// ErrRunInProgress rejects overlapping pipeline invocations.
	ErrRunInProgress = errors.New("a run is already in progress")
)

const (
	noPostsAnalysis = "Monitored accounts posted nothing new today."
)

// Deps are the collaborators a Pipeline is built from.
type Deps struct {
	Registry  *registry.Registry
	Store     *store.Store
	Fetcher   *fetch.Fetcher
	Source    source.Source
	Analyzer  analyzer.Analyzer
	Notifiers []notify.Notifier
	Exporter  *report.Exporter
	Lookback  time.Duration
	Log       *slog.Logger
}

type Pipeline struct {
	registry  *registry.Registry
	store     *store.Store
	fetcher   *fetch.Fetcher
	source    source.Source
	analyzer  analyzer.Analyzer
	notifiers []notify.Notifier
	exporter  *report.Exporter
	lookback  time.Duration
	log       *slog.Logger

	mu sync.Mutex
}

func New(deps Deps) *Pipeline {
	lookback := deps.Lookback
	if lookback <= 0 {
		lookback = 24 * time.Hour
	}

	return &Pipeline{
		registry:  deps.Registry,
		store:     deps.Store,
		fetcher:   deps.Fetcher,
		source:    deps.Source,
		analyzer:  deps.Analyzer,
		notifiers: deps.Notifiers,
		exporter:  deps.Exporter,
		lookback:  lookback,
		log:       deps.Log,
	}
}

// RunResult aggregates per-account outcomes of one incremental run. Skipped
// and failed accounts are recorded here, not raised as run-level errors.
type RunResult struct {
	AccountsFetched int
	AccountsSkipped int
	AccountsFailed  int
	SkippedHandles  []string
	FailedHandles   []string
	PostsFetched    int
	PostsInserted   int

	// Summary is nil when analysis failed; see AnalysisErr. Posts persisted
	// before the failure remain persisted.
	Summary     *models.Summary
	AnalysisErr error

	// SinkErrs holds isolated export/notification failures.
	SinkErrs []error
}

// Run executes one incremental cycle: resolve accounts, fetch each account
// from its derived cursor in paced batches (persisting batch by batch), then
// read back the reporting window, analyze it, store the summary and fan out
// to the sinks. Only storage failures and an empty registry abort the run.
func (p *Pipeline) Run(ctx context.Context) (*RunResult, error) {
	if !p.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer p.mu.Unlock()

	accounts := p.registry.List()
	if len(accounts) == 0 {
		return nil, ErrNoAccounts
	}

	accounts = p.registry.EnsureIdentities(ctx, p.source)

	res := &RunResult{}

	sinceFor := func(account models.Account) time.Time {
		return p.sinceFor(ctx, account.Handle, time.Now().UTC())
	}

	err := p.fetcher.FetchAccounts(ctx, accounts, sinceFor, func(batch []fetch.Result) error {
		var posts []models.Post

		for _, r := range batch {
			switch r.Status {
			case fetch.StatusFetched:
				res.AccountsFetched++
				res.PostsFetched += len(r.Posts)
				posts = append(posts, r.Posts...)
			case fetch.StatusSkippedRateLimited, fetch.StatusSkippedNotFound:
				res.AccountsSkipped++
				res.SkippedHandles = append(res.SkippedHandles, r.Handle)
			case fetch.StatusFailed:
				res.AccountsFailed++
				res.FailedHandles = append(res.FailedHandles, r.Handle)
			}
		}

		inserted, err := p.store.UpsertPosts(ctx, posts)
		if err != nil {
			return fmt.Errorf("persist posts: %w", err)
		}
		res.PostsInserted += inserted

		return nil
	})
	if err != nil {
		return res, fmt.Errorf("fetch accounts: %w", err)
	}

	p.log.InfoContext(ctx, "Fetch phase completed",
		"accountsFetched", res.AccountsFetched,
		"accountsSkipped", res.AccountsSkipped,
		"accountsFailed", res.AccountsFailed,
		"postsFetched", res.PostsFetched,
		"postsInserted", res.PostsInserted)

	now := time.Now().UTC()

	posts, err := p.store.PostsBetween(ctx, now.Add(-p.lookback), now, "")
	if err != nil {
		return res, fmt.Errorf("read reporting window: %w", err)
	}

	summary, err := p.buildSummary(ctx, posts, now, len(accounts))
	if err != nil {
		// Fetched posts are already durable; the run just has no summary.
		p.log.ErrorContext(ctx, "Analysis failed, no summary for this run",
			"error", err,
			"postCount", len(posts))
		res.AnalysisErr = err

		return res, nil
	}

	if err := p.store.UpsertSummary(ctx, summary); err != nil {
		return res, fmt.Errorf("persist summary: %w", err)
	}
	res.Summary = summary

	res.SinkErrs = p.deliver(ctx, summary)

	return res, nil
}

// Regenerate rebuilds the summary for the given date purely from stored
// posts: no fetch client involvement. The previous summary for that date is
// replaced.
func (p *Pipeline) Regenerate(
	ctx context.Context,
	date time.Time,
	doNotify bool,
) (*models.Summary, error) {
	if !p.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer p.mu.Unlock()

	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	posts, err := p.store.PostsBetween(ctx, dayStart, dayEnd, "")
	if err != nil {
		return nil, fmt.Errorf("read stored window: %w", err)
	}

	if len(posts) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoDataForDate, dayStart.Format("2006-01-02"))
	}

	analysis, err := p.analyzer.Analyze(ctx, posts, dayStart)
	if err != nil {
		return nil, fmt.Errorf("analyze stored window: %w", err)
	}

	summary := &models.Summary{
		Date:         dayStart,
		GeneratedAt:  time.Now().UTC(),
		AccountCount: distinctHandles(posts),
		PostCount:    len(posts),
		Analysis:     analysis.Text,
		Insights:     analysis.Insights,
	}

	if err := p.store.UpsertSummary(ctx, summary); err != nil {
		return nil, fmt.Errorf("persist summary: %w", err)
	}

	sinkErrs := p.exportOnly(ctx, summary)
	if doNotify {
		sinkErrs = append(sinkErrs, p.notifyAll(ctx, summary)...)
	}
	for _, sinkErr := range sinkErrs {
		p.log.ErrorContext(ctx, "Sink failed after regenerate",
			"error", sinkErr,
			"date", dayStart.Format("2006-01-02"))
	}

	return summary, nil
}

func (p *Pipeline) buildSummary(
	ctx context.Context,
	posts []models.Post,
	now time.Time,
	accountCount int,
) (*models.Summary, error) {
	if len(posts) == 0 {
		return &models.Summary{
			Date:         now,
			GeneratedAt:  now,
			AccountCount: accountCount,
			PostCount:    0,
			Analysis:     noPostsAnalysis,
		}, nil
	}

	analysis, err := p.analyzer.Analyze(ctx, posts, now)
	if err != nil {
		return nil, err
	}

	return &models.Summary{
		Date:         now,
		GeneratedAt:  time.Now().UTC(),
		AccountCount: accountCount,
		PostCount:    len(posts),
		Analysis:     analysis.Text,
		Insights:     analysis.Insights,
	}, nil
}

// deliver exports the report file and fans out to notification sinks,
// isolating every failure.
func (p *Pipeline) deliver(ctx context.Context, summary *models.Summary) []error {
	errs := p.exportOnly(ctx, summary)
	errs = append(errs, p.notifyAll(ctx, summary)...)

	for _, err := range errs {
		p.log.ErrorContext(ctx, "Sink failed",
			"error", err,
			"date", summary.Date.UTC().Format("2006-01-02"))
	}

	return errs
}

func (p *Pipeline) exportOnly(ctx context.Context, summary *models.Summary) []error {
	if p.exporter == nil {
		return nil
	}

	path, err := p.exporter.Write(summary)
	if err != nil {
		return []error{fmt.Errorf("export report: %w", err)}
	}

	p.log.InfoContext(ctx, "Report exported",
		"path", path)

	return nil
}

func (p *Pipeline) notifyAll(ctx context.Context, summary *models.Summary) []error {
	var errs []error

	for _, notifier := range p.notifiers {
		if err := notifier.Send(ctx, summary); err != nil {
			errs = append(errs, fmt.Errorf("notify via %s: %w", notifier.Name(), err))
		}
	}

	return errs
}

func distinctHandles(posts []models.Post) int {
	seen := make(map[string]struct{}, len(posts))
	for _, post := range posts {
		seen[post.AccountHandle] = struct{}{}
	}

	return len(seen)
}
