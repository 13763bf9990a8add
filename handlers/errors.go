// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/mission-control/db"
	"github.com/danielhkuo/mission-control/middleware"
	"github.com/danielhkuo/mission-control/mission"
	"github.com/danielhkuo/mission-control/timer"
)

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, mission.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, mission.ErrInvalidOption),
		errors.Is(err, mission.ErrInvalidDesign),
		errors.Is(err, mission.ErrInvalidAction),
		errors.Is(err, mission.ErrInvalidTimer),
		errors.Is(err, timer.ErrUnknownKind):
		return http.StatusBadRequest
	case errors.Is(err, mission.ErrPhaseMismatch),
		errors.Is(err, mission.ErrNoOpenVote),
		errors.Is(err, mission.ErrVoteAlreadyOpen),
		errors.Is(err, timer.ErrNotRunning),
		errors.Is(err, timer.ErrNotPaused),
		errors.Is(err, db.ErrStaleWrite):
		return http.StatusConflict
	case errors.Is(err, mission.ErrCollaboratorUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers with the mapped status. Unexpected errors are logged and
// their text is not exposed.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "path", r.URL.Path, "error", err)
		if status == http.StatusInternalServerError {
			middleware.ErrorResponse(w, status, "Internal error")
			return
		}
	}
	middleware.ErrorResponse(w, status, err.Error())
}

// parseOptionalBody decodes a JSON body if the request has one.
func parseOptionalBody(r *http.Request, v any) error {
	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return nil
	}
	err := middleware.ParseJSONBody(r, v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// actorFrom builds the machine actor from the identity RequireIdentity
// stored on the request.
func actorFrom(r *http.Request) mission.Actor {
	id, _ := middleware.IdentityFrom(r.Context())
	return mission.Actor{Username: id.Username, Moderator: id.Moderator}
}
