// Package scheduler triggers one pipeline run per day at the configured
// UTC time.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/luoli523/x-monitor/internal/pipeline"
)

const (
	Timezone              = "UTC"
	TimezoneOffsetSeconds = 0

	runTimeout = 30 * time.Minute
)

type Scheduler struct {
	ctx      context.Context
	cron     *cron.Cron
	pipeline *pipeline.Pipeline
	hour     int
	minute   int
	running  atomic.Bool
	log      *slog.Logger
}

func New(
	ctx context.Context,
	p *pipeline.Pipeline,
	hour int,
	minute int,
	log *slog.Logger,
) *Scheduler {
	c := cron.New(cron.WithLocation(time.FixedZone(Timezone, TimezoneOffsetSeconds)))

	return &Scheduler{
		ctx:      ctx,
		cron:     c,
		pipeline: p,
		hour:     hour,
		minute:   minute,
		log:      log,
	}
}

// Spec is the daily cron expression built from the configured hour/minute.
func (s *Scheduler) Spec() string {
	return fmt.Sprintf("%d %d * * *", s.minute, s.hour)
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.Spec(), s.runJob); err != nil {
		return err
	}

	s.cron.Start()

	return nil
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// runJob executes one pipeline run. A tick arriving while the previous run
// (including its notify step) is still in flight is skipped, so two runs
// never interleave writes to the same date's summary.
func (s *Scheduler) runJob() {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn("Previous run still in progress, skipping tick",
			"spec", s.Spec())

		return
	}
	defer s.running.Store(false)

	ctx, cancel := context.WithTimeout(s.ctx, runTimeout)
	defer cancel()

	res, err := s.pipeline.Run(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "Scheduled run failed",
			"error", err)

		return
	}

	s.log.InfoContext(ctx, "Scheduled run completed",
		"accountsFetched", res.AccountsFetched,
		"accountsSkipped", res.AccountsSkipped,
		"accountsFailed", res.AccountsFailed,
		"postsInserted", res.PostsInserted,
		"summaryProduced", res.Summary != nil)
}
