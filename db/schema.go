// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"fmt"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(ctx context.Context, db *DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return nil
}

// Timestamps are epoch milliseconds so the same DDL runs on SQLite and
// PostgreSQL.
var schema = []string{
	// Mission documents, one per game post
	`CREATE TABLE IF NOT EXISTS mission_record (
    post_id TEXT PRIMARY KEY,
    version BIGINT NOT NULL,
    phase TEXT NOT NULL,
    doc TEXT NOT NULL,
    next_deadline BIGINT,
    updated_at BIGINT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_mission_record_next_deadline ON mission_record(next_deadline)`,

	// Scheduled re-invocations
	`CREATE TABLE IF NOT EXISTS scheduled_job (
    job_id TEXT PRIMARY KEY,
    post_id TEXT NOT NULL,
    route TEXT NOT NULL,
    run_at BIGINT NOT NULL,
    attempts INTEGER NOT NULL DEFAULT 0,
    lease_until BIGINT,
    last_error TEXT,
    created_at BIGINT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_scheduled_job_run_at ON scheduled_job(run_at)`,

	// Point ledger
	`CREATE TABLE IF NOT EXISTS ledger_credit (
    season TEXT NOT NULL,
    mission_id TEXT NOT NULL,
    username TEXT NOT NULL,
    reason TEXT NOT NULL,
    points BIGINT NOT NULL,
    created_at BIGINT NOT NULL,
    PRIMARY KEY (season, mission_id, username, reason)
)`,
	`CREATE TABLE IF NOT EXISTS ledger_total (
    season TEXT NOT NULL,
    username TEXT NOT NULL,
    total BIGINT NOT NULL DEFAULT 0,
    PRIMARY KEY (season, username)
)`,
}
