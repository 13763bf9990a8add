// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielhkuo/mission-control/auth"
	"github.com/danielhkuo/mission-control/ledger"
	"github.com/danielhkuo/mission-control/middleware"
	"github.com/danielhkuo/mission-control/models"
	"github.com/danielhkuo/mission-control/scheduler"
)

type LeaderboardHandler struct {
	ledger *ledger.Ledger
	now    func() time.Time
}

func NewLeaderboardHandler(l *ledger.Ledger, now func() time.Time) *LeaderboardHandler {
	return &LeaderboardHandler{ledger: l, now: now}
}

// Get handles GET /leaderboard/{user}
func (h *LeaderboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("user")
	if username == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "user is required")
		return
	}

	total, err := h.ledger.Total(r.Context(), username)
	if err != nil {
		slog.Error("failed to read total", "error", err, "username", username)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.LeaderboardEntry{
		ServerTime: models.ServerTime{ServerNow: h.now().UnixMilli()},
		Username:   username,
		Season:     h.ledger.Season(),
		Total:      total,
	})
}

// SweepResponse reports one deadline sweep pass.
type SweepResponse struct {
	models.ServerTime
	scheduler.SweepResult
}

type SweepHandler struct {
	sweeper *scheduler.Sweeper
	secret  string
	now     func() time.Time
}

func NewSweepHandler(sweeper *scheduler.Sweeper, secret string, now func() time.Time) *SweepHandler {
	return &SweepHandler{sweeper: sweeper, secret: secret, now: now}
}

// Sweep handles POST /internal/sweep, called by an external cron with the
// X-Sweep-Secret header.
func (h *SweepHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	if err := auth.ValidateSecret(r.Header.Get("X-Sweep-Secret"), h.secret); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid sweep secret")
		return
	}

	now := h.now()
	res, err := h.sweeper.Sweep(r.Context(), now)
	if err != nil {
		slog.Error("sweep failed", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Sweep failed")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, SweepResponse{
		ServerTime:  models.ServerTime{ServerNow: now.UnixMilli()},
		SweepResult: res,
	})
}
