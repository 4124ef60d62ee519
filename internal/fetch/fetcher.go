// Package fetch performs bounded upstream reads with a skip-on-limit policy.
//
// A rate-limit signal from the provider never blocks the run: the account is
// reported as skipped immediately and the remaining accounts proceed. The
// store's idempotent upsert makes repeated or reordered fetches safe, so the
// pacing delays here are cooperative, not a correctness requirement.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/luoli523/x-monitor/internal/models"
	"github.com/luoli523/x-monitor/internal/source"
)

// Status tags the per-account outcome of a fetch.
type Status int

const (
	StatusFetched Status = iota
	StatusSkippedRateLimited
	StatusSkippedNotFound
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusFetched:
		return "fetched"
	case StatusSkippedRateLimited:
		return "skipped (rate limited)"
	case StatusSkippedNotFound:
		return "skipped (not found)"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the outcome of fetching a single account.
type Result struct {
	Handle string
	Status Status
	Posts  []models.Post
	Err    error
}

// Config controls batch pacing.
type Config struct {
	// BatchSize is the number of accounts fetched before the longer
	// BatchDelay pause. AccountDelay is inserted between individual account
	// calls within a batch.
	BatchSize    int
	AccountDelay time.Duration
	BatchDelay   time.Duration
}

type Fetcher struct {
	source source.Source
	cfg    Config
	log    *slog.Logger
}

func New(src source.Source, cfg Config, log *slog.Logger) *Fetcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}

	return &Fetcher{source: src, cfg: cfg, log: log}
}

// FetchAccounts processes accounts in fixed-size paced batches. sinceFor
// supplies the per-account incremental window start. onBatch receives every
// completed batch so the caller can persist while later batches are still
// being fetched; an onBatch error aborts the whole run.
func (f *Fetcher) FetchAccounts(
	ctx context.Context,
	accounts []models.Account,
	sinceFor func(models.Account) time.Time,
	onBatch func([]Result) error,
) error {
	for start := 0; start < len(accounts); start += f.cfg.BatchSize {
		if start > 0 {
			if err := sleepCtx(ctx, f.cfg.BatchDelay); err != nil {
				return err
			}
		}

		end := min(start+f.cfg.BatchSize, len(accounts))
		batch := accounts[start:end]

		results := make([]Result, 0, len(batch))
		for i, account := range batch {
			if i > 0 {
				if err := sleepCtx(ctx, f.cfg.AccountDelay); err != nil {
					return err
				}
			}

			results = append(results, f.fetchOne(ctx, account, sinceFor(account)))
		}

		if err := onBatch(results); err != nil {
			return fmt.Errorf("process batch: %w", err)
		}
	}

	return nil
}

func (f *Fetcher) fetchOne(
	ctx context.Context,
	account models.Account,
	since time.Time,
) Result {
	posts, err := f.source.ListPosts(ctx, account, since)

	switch {
	case errors.Is(err, source.ErrRateLimited):
		f.log.WarnContext(ctx, "Rate limited, skipping account",
			"handle", account.Handle,
			"since", since)

		return Result{Handle: account.Handle, Status: StatusSkippedRateLimited, Err: err}

	case errors.Is(err, source.ErrNotFound):
		f.log.WarnContext(ctx, "Account not found upstream, skipping",
			"handle", account.Handle)

		return Result{Handle: account.Handle, Status: StatusSkippedNotFound, Err: err}

	case err != nil:
		f.log.ErrorContext(ctx, "Failed to fetch account",
			"error", err,
			"handle", account.Handle,
			"since", since)

		return Result{Handle: account.Handle, Status: StatusFailed, Err: err}
	}

	f.log.InfoContext(ctx, "Fetched account",
		"handle", account.Handle,
		"since", since,
		"postCount", len(posts))

	return Result{Handle: account.Handle, Status: StatusFetched, Posts: posts}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
