// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package timer manages the three independent mission countdowns.
package timer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/danielhkuo/mission-control/clock"
	"github.com/danielhkuo/mission-control/models"
	"github.com/danielhkuo/mission-control/pubsub"
)

var (
	ErrUnknownKind = errors.New("unknown timer kind")
	ErrNotRunning  = errors.New("timer is not running")
	ErrNotPaused   = errors.New("timer is not paused")
)

// Scheduler routes invoked when a timer's job comes due
const (
	RouteLaunch    = "launch"
	RouteCloseVote = "close_vote"
	RouteTimerEnd  = "timer_end"
)

// Route returns the callback route for a kind.
func Route(kind models.TimerKind) string {
	switch kind {
	case models.TimerLaunch:
		return RouteLaunch
	case models.TimerPhase:
		return RouteCloseVote
	default:
		return RouteTimerEnd
	}
}

// JobID names the scheduled job backing one timer of one post. There is at
// most one job per (post, kind); rescheduling replaces it.
func JobID(postID string, kind models.TimerKind) string {
	return postID + ":" + strings.ToLower(string(kind))
}

// ParseJobID splits a JobID back into post and kind.
func ParseJobID(jobID string) (string, models.TimerKind, error) {
	i := strings.LastIndexByte(jobID, ':')
	if i <= 0 {
		return "", "", fmt.Errorf("malformed job id %q", jobID)
	}
	kind := models.TimerKind(strings.ToUpper(jobID[i+1:]))
	if !kind.Valid() {
		return "", "", fmt.Errorf("%w: %q", ErrUnknownKind, jobID[i+1:])
	}
	return jobID[:i], kind, nil
}

// Effect is a committed timer transition waiting to be published and
// (re)scheduled.
type Effect struct {
	Kind        models.TimerKind
	Status      string
	EndsAt      *time.Time
	RemainingMs int64
}

// Start runs kind for d from now.
func Start(m *models.Mission, kind models.TimerKind, now time.Time, d time.Duration) Effect {
	endsAt := now.Add(d)
	return set(m, kind, &models.Timer{Status: models.TimerRunning, EndsAt: &endsAt})
}

// Pause re-anchors the deadline at now+remaining and marks the timer paused.
// A non-positive remaining is computed from the current deadline.
func Pause(m *models.Mission, kind models.TimerKind, now time.Time, remaining time.Duration) (Effect, error) {
	if !kind.Valid() {
		return Effect{}, ErrUnknownKind
	}
	cur := m.TimerState(kind)
	if cur.Status != models.TimerRunning {
		return Effect{}, ErrNotRunning
	}
	if remaining <= 0 && cur.EndsAt != nil {
		remaining = max(cur.EndsAt.Sub(now), 0)
	}
	endsAt := now.Add(remaining)
	return set(m, kind, &models.Timer{
		Status:      models.TimerPaused,
		EndsAt:      &endsAt,
		RemainingMs: remaining.Milliseconds(),
	}), nil
}

// Resume restarts a paused timer. A non-positive remaining uses the duration
// stored when it was paused.
func Resume(m *models.Mission, kind models.TimerKind, now time.Time, remaining time.Duration) (Effect, error) {
	if !kind.Valid() {
		return Effect{}, ErrUnknownKind
	}
	cur := m.TimerState(kind)
	if cur.Status != models.TimerPaused {
		return Effect{}, ErrNotPaused
	}
	if remaining <= 0 {
		remaining = time.Duration(cur.RemainingMs) * time.Millisecond
	}
	return Start(m, kind, now, remaining), nil
}

// End clears the deadline. Safe on an already ended timer.
func End(m *models.Mission, kind models.TimerKind) Effect {
	return set(m, kind, nil)
}

// Expired reports whether kind is running with a deadline at or before now.
func Expired(m *models.Mission, kind models.TimerKind, now time.Time) bool {
	t := m.TimerState(kind)
	return t.Status == models.TimerRunning && t.EndsAt != nil && !t.EndsAt.After(now)
}

func set(m *models.Mission, kind models.TimerKind, t *models.Timer) Effect {
	if m.Timers == nil {
		m.Timers = map[models.TimerKind]*models.Timer{}
	}
	if t == nil {
		delete(m.Timers, kind)
		if kind == models.TimerLaunch {
			m.LaunchCountdownUntil = nil
		}
		return Effect{Kind: kind, Status: models.TimerEnded}
	}

	m.Timers[kind] = t
	if kind == models.TimerLaunch {
		until := *t.EndsAt
		m.LaunchCountdownUntil = &until
	}
	return Effect{Kind: kind, Status: t.Status, EndsAt: t.EndsAt, RemainingMs: t.RemainingMs}
}

// Publisher delivers a message to every subscriber of topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, msg any) error
}

// Scheduler arranges an external re-invocation at a deadline.
type Scheduler interface {
	ScheduleAt(ctx context.Context, jobID, postID, route string, at time.Time) error
	Cancel(ctx context.Context, jobID string) error
}

// Coordinator carries committed timer effects out to the scheduler and the
// timer topic. It never touches the mission record.
type Coordinator struct {
	pub   Publisher
	sched Scheduler
	clock clock.Clock
}

func NewCoordinator(pub Publisher, sched Scheduler, clk clock.Clock) *Coordinator {
	if clk == nil {
		clk = clock.Real()
	}
	return &Coordinator{pub: pub, sched: sched, clock: clk}
}

// Apply schedules or cancels the job behind each effect and publishes the
// new state. Failures are logged; the record is already authoritative.
func (c *Coordinator) Apply(ctx context.Context, postID string, effects []Effect) {
	for _, e := range effects {
		jobID := JobID(postID, e.Kind)

		if c.sched != nil {
			var err error
			if e.Status == models.TimerRunning && e.EndsAt != nil {
				err = c.sched.ScheduleAt(ctx, jobID, postID, Route(e.Kind), *e.EndsAt)
			} else {
				err = c.sched.Cancel(ctx, jobID)
			}
			if err != nil {
				slog.Error("failed to update timer job", "error", err, "job_id", jobID, "status", e.Status)
			}
		}

		if e.EndsAt != nil && e.Status == models.TimerRunning {
			slog.Info("timer running", "post_id", postID, "kind", e.Kind, "ends", humanize.Time(*e.EndsAt))
		} else {
			slog.Info("timer "+e.Status, "post_id", postID, "kind", e.Kind)
		}

		if c.pub == nil {
			continue
		}
		msg := models.TimerEvent{
			ServerTime:  models.ServerTime{ServerNow: c.clock.Now().UnixMilli()},
			PostID:      postID,
			Kind:        e.Kind,
			Status:      e.Status,
			EndsAt:      e.EndsAt,
			RemainingMs: e.RemainingMs,
		}
		if err := c.pub.Publish(ctx, pubsub.TimerTopic(postID), msg); err != nil {
			slog.Warn("failed to publish timer state", "error", err, "post_id", postID, "kind", e.Kind)
		}
	}
}
