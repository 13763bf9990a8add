// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"strings"

	"github.com/danielhkuo/mission-control/middleware"
	"github.com/danielhkuo/mission-control/mission"
	"github.com/danielhkuo/mission-control/models"
)

type MissionHandler struct {
	machine *mission.Machine
}

func NewMissionHandler(machine *mission.Machine) *MissionHandler {
	return &MissionHandler{machine: machine}
}

func (h *MissionHandler) respond(w http.ResponseWriter, r *http.Request, m *models.Mission, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.MissionResponse{
		ServerTime: h.machine.ServerTime(),
		Mission:    m,
	})
}

// Get handles GET /missions/{post}
func (h *MissionHandler) Get(w http.ResponseWriter, r *http.Request) {
	m, err := h.machine.Snapshot(r.Context(), r.PathValue("post"))
	h.respond(w, r, m, err)
}

// Start handles POST /missions/{post}/start
func (h *MissionHandler) Start(w http.ResponseWriter, r *http.Request) {
	m, err := h.machine.Start(r.Context(), r.PathValue("post"), actorFrom(r))
	h.respond(w, r, m, err)
}

// Design handles POST /missions/{post}/design
func (h *MissionHandler) Design(w http.ResponseWriter, r *http.Request) {
	var req models.DesignRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	m, err := h.machine.Design(r.Context(), r.PathValue("post"), actorFrom(r), req)
	h.respond(w, r, m, err)
}

// Finalize handles POST /missions/{post}/finalize
func (h *MissionHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	m, err := h.machine.FinalizeDesign(r.Context(), r.PathValue("post"), actorFrom(r))
	h.respond(w, r, m, err)
}

// Launch handles POST /missions/{post}/launch
func (h *MissionHandler) Launch(w http.ResponseWriter, r *http.Request) {
	m, err := h.machine.Launch(r.Context(), r.PathValue("post"), actorFrom(r))
	h.respond(w, r, m, err)
}

// Flight handles POST /missions/{post}/flight
func (h *MissionHandler) Flight(w http.ResponseWriter, r *http.Request) {
	var req models.FlightActionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if strings.TrimSpace(req.Action) == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "action is required")
		return
	}

	m, err := h.machine.FlightAction(r.Context(), r.PathValue("post"), actorFrom(r), req.Action)
	h.respond(w, r, m, err)
}

// Acknowledge handles POST /missions/{post}/acknowledge
func (h *MissionHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	m, credits, err := h.machine.Acknowledge(r.Context(), r.PathValue("post"), actorFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if credits == nil {
		credits = []models.CreditResult{}
	}

	middleware.JSONResponse(w, http.StatusOK, models.AcknowledgeResponse{
		ServerTime: h.machine.ServerTime(),
		Mission:    m,
		Credits:    credits,
	})
}

// Reset handles POST /missions/{post}/reset (moderator only)
func (h *MissionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	m, err := h.machine.Reset(r.Context(), r.PathValue("post"), actorFrom(r))
	h.respond(w, r, m, err)
}
