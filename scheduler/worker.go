// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/danielhkuo/mission-control/clock"
	"github.com/danielhkuo/mission-control/models"
	"github.com/danielhkuo/mission-control/timer"
)

// Expirer fires a timer that reached its deadline. mission.Machine satisfies
// it.
type Expirer interface {
	Expire(ctx context.Context, postID string, kind models.TimerKind) (bool, error)
}

// Config controls the worker loop.
type Config struct {
	PollInterval  time.Duration
	LeaseTTL      time.Duration
	BatchSize     int
	MaxAttempts   int
	RetryBackoff  time.Duration
	RetryMaxDelay time.Duration
}

func (c Config) normalized() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = 30 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 25
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 8
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = time.Second
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = 5 * time.Minute
	}
	if c.RetryMaxDelay < c.RetryBackoff {
		c.RetryMaxDelay = c.RetryBackoff
	}
	return c
}

// Worker polls the queue and re-invokes the mission machine for due jobs.
type Worker struct {
	queue   *Queue
	expirer Expirer
	clock   clock.Clock
	cfg     Config
}

func NewWorker(queue *Queue, expirer Expirer, clk clock.Clock, cfg Config) *Worker {
	if clk == nil {
		clk = clock.Real()
	}
	return &Worker{queue: queue, expirer: expirer, clock: clk, cfg: cfg.normalized()}
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	slog.Info("scheduler worker started", "poll_interval", w.cfg.PollInterval, "lease_ttl", w.cfg.LeaseTTL)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
			slog.Error("scheduler poll failed", "error", err)
		}

		select {
		case <-ctx.Done():
			slog.Info("scheduler worker stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce claims one batch of due jobs and dispatches them. It returns how
// many jobs were handled successfully.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	now := w.clock.Now()
	jobs, err := w.queue.Claim(ctx, now, w.cfg.LeaseTTL, w.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	done := 0
	for _, job := range jobs {
		if err := w.dispatch(ctx, job); err != nil {
			w.fail(ctx, job, err)
			continue
		}
		if err := w.queue.Complete(ctx, job); err != nil {
			return done, err
		}
		done++
	}
	return done, nil
}

func (w *Worker) dispatch(ctx context.Context, job Job) error {
	postID, kind, err := timer.ParseJobID(job.ID)
	if err != nil {
		return err
	}
	if postID != job.PostID {
		return fmt.Errorf("job %s names post %q", job.ID, job.PostID)
	}
	if route := timer.Route(kind); route != job.Route {
		return fmt.Errorf("job %s has route %q, want %q", job.ID, job.Route, route)
	}

	changed, err := w.expirer.Expire(ctx, postID, kind)
	if err != nil {
		return err
	}
	slog.Debug("scheduled job ran", "job_id", job.ID, "route", job.Route, "changed", changed)
	return nil
}

func (w *Worker) fail(ctx context.Context, job Job, cause error) {
	if job.Attempts+1 >= w.cfg.MaxAttempts || errors.Is(cause, timer.ErrUnknownKind) {
		logDead(job, cause)
		if err := w.queue.Complete(ctx, job); err != nil {
			slog.Error("failed to drop job", "job_id", job.ID, "error", err)
		}
		return
	}

	next := w.clock.Now().Add(w.retryDelay(job.Attempts + 1))
	slog.Warn("scheduled job failed, retrying", "job_id", job.ID, "attempt", job.Attempts+1, "next", next, "error", cause)
	if err := w.queue.Retry(ctx, job, next, cause); err != nil {
		slog.Error("failed to requeue job", "job_id", job.ID, "error", err)
	}
}

// retryDelay doubles per attempt from RetryBackoff, capped at RetryMaxDelay.
// The delay is stored as the job's next run time rather than slept.
func (w *Worker) retryDelay(attempt int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.cfg.RetryBackoff
	b.MaxInterval = w.cfg.RetryMaxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.Reset()

	delay := b.NextBackOff()
	for i := 1; i < attempt; i++ {
		delay = b.NextBackOff()
	}
	return delay
}
