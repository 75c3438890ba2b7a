package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/kaizen-works/kaizen/pkg/services"
	"github.com/robfig/cron/v3"
)

// Janitor discards sessions that stayed idle longer than ttl.
type Janitor struct {
	sessions *services.Sessions
	ttl      time.Duration
	logger   *slog.Logger
	cron     *cron.Cron
}

func NewJanitor(sessions *services.Sessions, ttl time.Duration, logger *slog.Logger) *Janitor {
	return &Janitor{
		sessions: sessions,
		ttl:      ttl,
		logger:   logger.With("component", "janitor"),
	}
}

// Start schedules the sweep with a standard cron spec or a descriptor such as "@every 5m".
// A non-positive ttl disables eviction.
func (j *Janitor) Start(ctx context.Context, spec string) error {
	if j.ttl <= 0 {
		j.logger.Info("Session eviction disabled")

		return nil
	}

	j.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err := j.cron.AddFunc(spec, func() {
		j.sweep(ctx, time.Now())
	})
	if err != nil {
		return err
	}

	j.cron.Start()
	j.logger.Info("Session janitor started", "schedule", spec, "ttl", j.ttl)

	return nil
}

// Stop waits for a running sweep to finish.
func (j *Janitor) Stop() {
	if j.cron == nil {
		return
	}

	<-j.cron.Stop().Done()
}

func (j *Janitor) sweep(ctx context.Context, now time.Time) int {
	evicted := j.sessions.EvictIdle(ctx, j.ttl, now)
	if evicted > 0 {
		j.logger.InfoContext(ctx, "Evicted idle sessions", "count", evicted, "open", j.sessions.Count())
	}

	return evicted
}
