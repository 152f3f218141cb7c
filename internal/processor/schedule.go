package processor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// sweepTimeout bounds one scheduled sweep.
const sweepTimeout = 4 * time.Minute

// Scheduler runs periodic sweeps so claims without fresh events still get
// their time-dependent scores (decay, stability, momentum) refreshed.
type Scheduler struct {
	cron   *cron.Cron
	proc   *Processor
	limit  int
	logger *slog.Logger
	ctx    context.Context
}

// NewScheduler registers a sweep on spec, a standard five-field cron
// expression or a descriptor such as "@every 5m". Overlapping runs are skipped.
func NewScheduler(ctx context.Context, p *Processor, spec string, limit int, logger *slog.Logger) (*Scheduler, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	s := &Scheduler{cron: c, proc: p, limit: limit, logger: logger, ctx: ctx}
	if _, err := c.AddFunc(spec, s.RunNow); err != nil {
		return nil, fmt.Errorf("register rescore sweep %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("rescore scheduler started", "entries", len(s.cron.Entries()))
}

// Stop prevents new runs and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("rescore scheduler stopped")
}

// RunNow performs one sweep immediately.
func (s *Scheduler) RunNow() {
	ctx, cancel := context.WithTimeout(s.ctx, sweepTimeout)
	defer cancel()

	start := time.Now()
	n, err := s.proc.Sweep(ctx, s.limit)
	if err != nil {
		s.logger.Error("rescore sweep failed", "rescored", n, "error", err)
		return
	}
	s.logger.Info("rescore sweep complete", "rescored", n, "duration", time.Since(start))
}
