// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"strings"

	"github.com/danielhkuo/mission-control/middleware"
	"github.com/danielhkuo/mission-control/mission"
	"github.com/danielhkuo/mission-control/models"
	"github.com/danielhkuo/mission-control/tally"
)

type VoteHandler struct {
	machine *mission.Machine
}

func NewVoteHandler(machine *mission.Machine) *VoteHandler {
	return &VoteHandler{machine: machine}
}

func (h *VoteHandler) state(w http.ResponseWriter, window *models.VoteWindow, res tally.Result) {
	resp := models.VoteStateResponse{
		ServerTime: h.machine.ServerTime(),
		Window:     window,
	}
	if window != nil {
		resp.Tally = res.Response()
	}
	middleware.JSONResponse(w, http.StatusOK, resp)
}

// Open handles POST /missions/{post}/votes
func (h *VoteHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req models.OpenVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if !req.Phase.Valid() {
		middleware.ErrorResponse(w, http.StatusBadRequest, "phase is required")
		return
	}

	m, err := h.machine.OpenVote(r.Context(), r.PathValue("post"), actorFrom(r), req.Phase, req.Options, req.DurationSec)
	if err != nil {
		writeError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusCreated, models.MissionResponse{
		ServerTime: h.machine.ServerTime(),
		Mission:    m,
	})
}

// Cast handles POST /missions/{post}/votes/cast
func (h *VoteHandler) Cast(w http.ResponseWriter, r *http.Request) {
	var req models.CastVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if strings.TrimSpace(req.OptionID) == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "option_id is required")
		return
	}

	m, res, err := h.machine.CastVote(r.Context(), r.PathValue("post"), actorFrom(r), req.OptionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.state(w, m.VoteWindow, res)
}

// Close handles POST /missions/{post}/votes/close (moderator only)
func (h *VoteHandler) Close(w http.ResponseWriter, r *http.Request) {
	m, res, err := h.machine.CloseVote(r.Context(), r.PathValue("post"), actorFrom(r), false)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.state(w, m.VoteWindow, res)
}

// State handles GET /missions/{post}/votes
func (h *VoteHandler) State(w http.ResponseWriter, r *http.Request) {
	window, res, err := h.machine.VoteState(r.Context(), r.PathValue("post"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.state(w, window, res)
}
