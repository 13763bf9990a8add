// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielhkuo/mission-control/db"
)

// Job is one scheduled re-invocation claimed from the queue.
type Job struct {
	ID       string
	PostID   string
	Route    string
	RunAt    time.Time
	Attempts int
}

// Queue stores scheduled jobs in scheduled_job. There is at most one row per
// job id; scheduling an existing id moves its deadline.
type Queue struct {
	db *db.DB
}

func NewQueue(conn *db.DB) *Queue {
	return &Queue{db: conn}
}

// ScheduleAt creates or replaces the job. A replaced job loses its lease and
// attempt count.
func (q *Queue) ScheduleAt(ctx context.Context, jobID, postID, route string, at time.Time) error {
	_, err := q.db.ExecContext(ctx, q.db.Q(`
		INSERT INTO scheduled_job (job_id, post_id, route, run_at, attempts, lease_until, last_error, created_at)
		VALUES (?, ?, ?, ?, 0, NULL, NULL, ?)
		ON CONFLICT (job_id) DO UPDATE SET
			post_id = excluded.post_id,
			route = excluded.route,
			run_at = excluded.run_at,
			attempts = 0,
			lease_until = NULL,
			last_error = NULL
	`), jobID, postID, route, at.UnixMilli(), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", jobID, err)
	}
	return nil
}

// Cancel removes the job. Cancelling an unknown job is not an error.
func (q *Queue) Cancel(ctx context.Context, jobID string) error {
	_, err := q.db.ExecContext(ctx, q.db.Q(`DELETE FROM scheduled_job WHERE job_id = ?`), jobID)
	if err != nil {
		return fmt.Errorf("failed to cancel job %s: %w", jobID, err)
	}
	return nil
}

// Claim leases up to limit due jobs until now+lease. Jobs held by an
// unexpired lease are skipped, so two workers never run the same job at once.
func (q *Queue) Claim(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 1
	}

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	nowMs := now.UnixMilli()
	rows, err := tx.QueryContext(ctx, q.db.Q(`
		SELECT job_id, post_id, route, run_at, attempts FROM scheduled_job
		WHERE run_at <= ? AND (lease_until IS NULL OR lease_until <= ?)
		ORDER BY run_at
		LIMIT ?
	`), nowMs, nowMs, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due jobs: %w", err)
	}

	var due []Job
	for rows.Next() {
		var (
			job   Job
			runAt int64
		)
		if err := rows.Scan(&job.ID, &job.PostID, &job.Route, &runAt, &job.Attempts); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		job.RunAt = time.UnixMilli(runAt).UTC()
		due = append(due, job)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	claimed := make([]Job, 0, len(due))
	leaseUntil := now.Add(lease).UnixMilli()
	for _, job := range due {
		res, err := tx.ExecContext(ctx, q.db.Q(`
			UPDATE scheduled_job SET lease_until = ?
			WHERE job_id = ? AND run_at = ? AND (lease_until IS NULL OR lease_until <= ?)
		`), leaseUntil, job.ID, job.RunAt.UnixMilli(), nowMs)
		if err != nil {
			return nil, fmt.Errorf("failed to lease job %s: %w", job.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			claimed = append(claimed, job)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}
	return claimed, nil
}

// Complete deletes a finished job unless it was rescheduled while running.
func (q *Queue) Complete(ctx context.Context, job Job) error {
	_, err := q.db.ExecContext(ctx, q.db.Q(`
		DELETE FROM scheduled_job WHERE job_id = ? AND run_at = ?
	`), job.ID, job.RunAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to complete job %s: %w", job.ID, err)
	}
	return nil
}

// Retry releases the lease and pushes the job to next. A job rescheduled
// while running keeps its new deadline.
func (q *Queue) Retry(ctx context.Context, job Job, next time.Time, cause error) error {
	_, err := q.db.ExecContext(ctx, q.db.Q(`
		UPDATE scheduled_job
		SET attempts = attempts + 1, run_at = ?, lease_until = NULL, last_error = ?
		WHERE job_id = ? AND run_at = ?
	`), next.UnixMilli(), cause.Error(), job.ID, job.RunAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to retry job %s: %w", job.ID, err)
	}
	return nil
}

// Pending counts jobs still in the queue.
func (q *Queue) Pending(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scheduled_job`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return n, nil
}

// Lookup returns the job with jobID, or false if none is queued.
func (q *Queue) Lookup(ctx context.Context, jobID string) (Job, bool, error) {
	var (
		job   Job
		runAt int64
	)
	err := q.db.QueryRowContext(ctx, q.db.Q(`
		SELECT job_id, post_id, route, run_at, attempts FROM scheduled_job WHERE job_id = ?
	`), jobID).Scan(&job.ID, &job.PostID, &job.Route, &runAt, &job.Attempts)
	if err == sql.ErrNoRows {
		return Job{}, false, nil
	}
	if err != nil {
		return Job{}, false, fmt.Errorf("failed to read job %s: %w", jobID, err)
	}
	job.RunAt = time.UnixMilli(runAt).UTC()
	return job, true, nil
}

func logDead(job Job, err error) {
	slog.Error("scheduled job abandoned", "job_id", job.ID, "route", job.Route, "attempts", job.Attempts+1, "error", err)
}
