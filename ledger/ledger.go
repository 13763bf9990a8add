// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package ledger records season points. Each (season, mission, user, reason)
// is credited at most once.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielhkuo/mission-control/db"
	"github.com/danielhkuo/mission-control/models"
)

// Reward reasons
const (
	ReasonDecisiveAction = "DECISIVE_ACTION"
	ReasonMissionSuccess = "MISSION_SUCCESS"
	ReasonMissionFail    = "MISSION_FAIL"
	ReasonMissionAbort   = "MISSION_ABORT"
)

// DefaultPoints is the award per reason when the caller passes 0.
var DefaultPoints = map[string]int64{
	ReasonDecisiveAction: 5,
	ReasonMissionSuccess: 20,
	ReasonMissionFail:    5,
	ReasonMissionAbort:   10,
}

// Ledger credits points idempotently per (season, mission, user, reason).
type Ledger struct {
	db     *db.DB
	season string
}

func New(conn *db.DB, season string) *Ledger {
	if season == "" {
		season = "default"
	}
	return &Ledger{db: conn, season: season}
}

// Season returns the season credits are recorded under.
func (l *Ledger) Season() string { return l.season }

// CreditPoints awards points once. A repeated call for the same key reports
// OK=false with the unchanged total.
func (l *Ledger) CreditPoints(ctx context.Context, missionID, username, reason string, points int64) (models.CreditResult, error) {
	res := models.CreditResult{Username: username, Reason: reason}
	if points == 0 {
		points = DefaultPoints[reason]
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	inserted, err := tx.ExecContext(ctx, l.db.Q(`
		INSERT INTO ledger_credit (season, mission_id, username, reason, points, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (season, mission_id, username, reason) DO NOTHING
	`), l.season, missionID, username, reason, points, time.Now().UnixMilli())
	if err != nil {
		return res, fmt.Errorf("failed to insert credit: %w", err)
	}
	n, err := inserted.RowsAffected()
	if err != nil {
		return res, fmt.Errorf("failed to insert credit: %w", err)
	}

	if n > 0 {
		// Hash-increment of the season total
		_, err = tx.ExecContext(ctx, l.db.Q(`
			INSERT INTO ledger_total (season, username, total)
			VALUES (?, ?, ?)
			ON CONFLICT (season, username) DO UPDATE SET total = ledger_total.total + excluded.total
		`), l.season, username, points)
		if err != nil {
			return res, fmt.Errorf("failed to increment total: %w", err)
		}
		res.OK = true
	}

	err = tx.QueryRowContext(ctx, l.db.Q(`
		SELECT total FROM ledger_total WHERE season = ? AND username = ?
	`), l.season, username).Scan(&res.NewTotal)
	if err != nil && err != sql.ErrNoRows {
		return res, fmt.Errorf("failed to read total: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("failed to commit credit: %w", err)
	}

	if res.OK {
		slog.Info("points credited", "mission_id", missionID, "username", username, "reason", reason, "points", points)
	}
	return res, nil
}

// BulkCreditPoints credits every user for reason. It stops at the first
// storage error; users already credited stay credited.
func (l *Ledger) BulkCreditPoints(ctx context.Context, missionID string, usernames []string, reason string, points int64) ([]models.CreditResult, error) {
	results := make([]models.CreditResult, 0, len(usernames))
	for _, username := range usernames {
		res, err := l.CreditPoints(ctx, missionID, username, reason, points)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Total returns a user's season total, 0 if they have none.
func (l *Ledger) Total(ctx context.Context, username string) (int64, error) {
	var total int64
	err := l.db.QueryRowContext(ctx, l.db.Q(`
		SELECT total FROM ledger_total WHERE season = ? AND username = ?
	`), l.season, username).Scan(&total)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read total: %w", err)
	}
	return total, nil
}
