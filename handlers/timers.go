// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielhkuo/mission-control/middleware"
	"github.com/danielhkuo/mission-control/mission"
	"github.com/danielhkuo/mission-control/models"
)

type TimerHandler struct {
	machine *mission.Machine
}

func NewTimerHandler(machine *mission.Machine) *TimerHandler {
	return &TimerHandler{machine: machine}
}

// List handles GET /missions/{post}/timers
func (h *TimerHandler) List(w http.ResponseWriter, r *http.Request) {
	timers, err := h.machine.Timers(r.Context(), r.PathValue("post"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.TimersResponse{
		ServerTime: h.machine.ServerTime(),
		Timers:     timers,
	})
}

// Start handles POST /missions/{post}/timers/{kind}/start (moderator only).
// remaining_ms is the countdown length.
func (h *TimerHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, h.machine.StartTimer)
}

// Pause handles POST /missions/{post}/timers/{kind}/pause (moderator only)
func (h *TimerHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, h.machine.PauseTimer)
}

// Resume handles POST /missions/{post}/timers/{kind}/resume (moderator only)
func (h *TimerHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, h.machine.ResumeTimer)
}

type timerOp func(ctx context.Context, postID string, actor mission.Actor, kind models.TimerKind, remaining time.Duration) (*models.Mission, error)

func (h *TimerHandler) control(w http.ResponseWriter, r *http.Request, op timerOp) {
	kind := models.TimerKind(strings.ToUpper(r.PathValue("kind")))
	if !kind.Valid() {
		middleware.ErrorResponse(w, http.StatusBadRequest, "unknown timer kind")
		return
	}

	var req models.TimerRequest
	if err := parseOptionalBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.RemainingMs < 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "remaining_ms must not be negative")
		return
	}

	m, err := op(r.Context(), r.PathValue("post"), actorFrom(r), kind, time.Duration(req.RemainingMs)*time.Millisecond)
	if err != nil {
		writeError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.TimersResponse{
		ServerTime: h.machine.ServerTime(),
		Timers:     map[models.TimerKind]models.Timer{kind: m.TimerState(kind)},
	})
}
