// Package scheduler runs the continuous polling loop: each tick picks up
// every configured site from its last checkpoint and hands new event frames
// to that site's sink.
package scheduler

import (
	"context"
	"time"

	"github.com/KhavKivar/piwebapi-etl/internal/engine"
	"github.com/KhavKivar/piwebapi-etl/internal/logger"
	"github.com/KhavKivar/piwebapi-etl/internal/sink"
)

// Fetcher is the extraction engine surface the scheduler drives.
type Fetcher interface {
	Fetch(ctx context.Context, site string, start, end time.Time) (*engine.Result, error)
}

// Checkpoints persists per-site last-run times between cycles.
type Checkpoints interface {
	LastRun(ctx context.Context, site string) (time.Time, bool, error)
	SetLastRun(ctx context.Context, site string, runTime time.Time) error
}

// Scheduler polls a fixed set of sites on a fixed interval. One failing site
// never blocks the others; a cycle is never aborted mid-site.
type Scheduler struct {
	fetcher     Fetcher
	checkpoints Checkpoints
	sinks       map[string]sink.Sink // per-site destinations
	sites       []string
	interval    time.Duration
	lookback    time.Duration
	log         *logger.Logger
}

// New creates a Scheduler. lookback bounds the first run of a site that has
// no checkpoint yet.
func New(fetcher Fetcher, checkpoints Checkpoints, sinks map[string]sink.Sink,
	sites []string, interval, lookback time.Duration, log *logger.Logger) *Scheduler {
	return &Scheduler{
		fetcher:     fetcher,
		checkpoints: checkpoints,
		sinks:       sinks,
		sites:       sites,
		interval:    interval,
		lookback:    lookback,
		log:         log,
	}
}

// Run blocks until the context is cancelled. The first cycle starts
// immediately; later cycles follow the configured interval.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce processes every site one time. Per-site errors are logged and the
// loop moves on.
func (s *Scheduler) RunOnce(ctx context.Context) {
	cycleStart := time.Now().UTC()

	for _, site := range s.sites {
		if ctx.Err() != nil {
			return
		}

		start, err := s.startTime(ctx, site, cycleStart)
		if err != nil {
			s.log.Errorw("checkpoint lookup failed, skipping site", "site", site, "err", err)
			continue
		}

		s.log.Infow("checking for new events", "site", site, "since", start)
		res, err := s.fetcher.Fetch(ctx, site, start, cycleStart)
		if err != nil {
			s.log.Errorw("fetch failed, skipping site", "site", site, "err", err)
			continue
		}
		if n := len(res.Report.Failures); n > 0 {
			s.log.Warnw("fetch completed with absorbed failures", "site", site, "failures", n)
		}

		if len(res.Records) > 0 {
			if err := s.sinks[site].Write(ctx, res.Records); err != nil {
				s.log.Errorw("sink write failed, checkpoint not advanced", "site", site, "err", err)
				continue
			}
			s.log.Infow("new events stored", "site", site, "rows", len(res.Records))
		} else {
			s.log.Infow("no new events", "site", site)
		}

		// Advance the checkpoint whether or not data arrived.
		if err := s.checkpoints.SetLastRun(ctx, site, cycleStart); err != nil {
			s.log.Errorw("checkpoint update failed", "site", site, "err", err)
		}
	}
}

func (s *Scheduler) startTime(ctx context.Context, site string, now time.Time) (time.Time, error) {
	last, ok, err := s.checkpoints.LastRun(ctx, site)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return now.Add(-s.lookback), nil
	}
	return last, nil
}
