// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package mission

import (
	"errors"
	"fmt"

	"github.com/danielhkuo/mission-control/models"
)

var (
	ErrPhaseMismatch           = errors.New("operation not valid in current phase")
	ErrInvalidOption           = errors.New("invalid vote option")
	ErrNoOpenVote              = errors.New("no open vote")
	ErrVoteAlreadyOpen         = errors.New("a vote is already open")
	ErrInvalidDesign           = errors.New("invalid design mutation")
	ErrInvalidAction           = errors.New("invalid flight action")
	ErrInvalidTimer            = errors.New("invalid timer request")
	ErrForbidden               = errors.New("moderator permission required")
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
)

// PhaseError reports the phase an operation expected and the one it found.
// It matches ErrPhaseMismatch with errors.Is.
type PhaseError struct {
	Op       string
	Expected models.Phase
	Actual   models.Phase
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s: expected phase %s, mission is %s", e.Op, e.Expected, e.Actual)
}

func (e *PhaseError) Unwrap() error { return ErrPhaseMismatch }

func expectPhase(op string, m *models.Mission, want models.Phase) error {
	if m.Phase != want {
		return &PhaseError{Op: op, Expected: want, Actual: m.Phase}
	}
	return nil
}
