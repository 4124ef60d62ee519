package pipeline

import (
	"context"
	"time"
)

// sinceFor derives the incremental fetch window start for one account: the
// newest stored post time, or now minus the default lookback for accounts
// with no history. The cursor is recomputed from the store on every run and
// never persisted, so it cannot drift from the data.
func (p *Pipeline) sinceFor(ctx context.Context, handle string, now time.Time) time.Time {
	last, ok, err := p.store.LastPostTime(ctx, handle)
	if err != nil {
		// Over-fetching is safe (idempotent upsert), so degrade to the
		// default window instead of failing the account.
		p.log.WarnContext(ctx, "Failed to resolve cursor, using default lookback",
			"error", err,
			"handle", handle)

		return now.Add(-p.lookback)
	}

	if !ok {
		return now.Add(-p.lookback)
	}

	return last
}
