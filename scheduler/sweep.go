// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielhkuo/mission-control/db"
	"github.com/danielhkuo/mission-control/models"
)

// SweepResult summarizes one deadline sweep.
type SweepResult struct {
	Scanned int      `json:"scanned"`
	Fired   int      `json:"fired"`
	Failed  int      `json:"failed"`
	Posts   []string `json:"posts"`
}

// Sweeper fires expired timers straight from the mission records. It
// recovers deadlines whose scheduled job was lost.
type Sweeper struct {
	store   db.Store
	expirer Expirer
	limit   int
}

func NewSweeper(store db.Store, expirer Expirer, limit int) *Sweeper {
	if limit <= 0 {
		limit = 100
	}
	return &Sweeper{store: store, expirer: expirer, limit: limit}
}

// Sweep expires every due timer of every post with a deadline at or before
// now. Errors on one post are logged and the sweep moves on.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	posts, err := s.store.DueDeadlines(ctx, now, s.limit)
	if err != nil {
		return SweepResult{}, fmt.Errorf("failed to list due deadlines: %w", err)
	}

	res := SweepResult{Scanned: len(posts), Posts: []string{}}
	for _, postID := range posts {
		fired := false
		for _, kind := range models.TimerKinds {
			changed, err := s.expirer.Expire(ctx, postID, kind)
			if err != nil {
				res.Failed++
				slog.Error("sweep failed to expire timer", "post_id", postID, "kind", kind, "error", err)
				continue
			}
			fired = fired || changed
		}
		if fired {
			res.Fired++
			res.Posts = append(res.Posts, postID)
		}
	}

	if res.Scanned > 0 {
		slog.Info("deadline sweep", "scanned", res.Scanned, "fired", res.Fired, "failed", res.Failed)
	}
	return res, nil
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration, now func() time.Time) error {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Sweep(ctx, now()); err != nil && ctx.Err() == nil {
				slog.Error("deadline sweep failed", "error", err)
			}
		}
	}
}
