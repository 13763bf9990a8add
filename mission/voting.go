// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package mission

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/mission-control/ledger"
	"github.com/danielhkuo/mission-control/models"
	"github.com/danielhkuo/mission-control/tally"
	"github.com/danielhkuo/mission-control/timer"
)

func openVote(m *models.Mission, user string, phase models.Phase, options []string, duration time.Duration, now time.Time, fx *effects) error {
	if m.VoteWindow != nil && m.VoteWindow.Status == models.VoteOpen {
		return ErrVoteAlreadyOpen
	}
	if m.Phase == models.PhaseIdle {
		return &PhaseError{Op: "open vote", Expected: phase, Actual: m.Phase}
	}
	if err := expectPhase("open vote", m, phase); err != nil {
		return err
	}

	if len(options) == 0 {
		return fmt.Errorf("%w: at least one option is required", ErrInvalidOption)
	}
	whitelist := make([]string, 0, len(options))
	seen := make(map[string]bool, len(options))
	for _, opt := range options {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			return fmt.Errorf("%w: empty option id", ErrInvalidOption)
		}
		if seen[opt] {
			return fmt.Errorf("%w: duplicate option %q", ErrInvalidOption, opt)
		}
		seen[opt] = true
		whitelist = append(whitelist, opt)
	}

	duration = max(duration, MinVoteDuration)

	m.VoteWindow = &models.VoteWindow{
		ID:                fmt.Sprintf("%s-%d-%s", m.MissionID, now.UnixMilli(), uuid.NewString()[:8]),
		Phase:             phase,
		Options:           whitelist,
		OpenedAt:          now,
		EndsAt:            now.Add(duration),
		Status:            models.VoteOpen,
		OpenedBy:          user,
		Ballots:           map[string]string{},
		OptionFirstVoteAt: map[string]time.Time{},
	}
	m.Participants = addUnique(m.Participants, user)
	fx.timer(timer.Start(m, models.TimerPhase, now, duration))
	return nil
}

// anchorVoteWindow keeps an open window's deadline on its PHASE timer.
func anchorVoteWindow(m *models.Mission, e timer.Effect) {
	w := m.VoteWindow
	if e.Kind != models.TimerPhase || w == nil || w.Status != models.VoteOpen || e.EndsAt == nil {
		return
	}
	w.EndsAt = *e.EndsAt
}

func castVote(m *models.Mission, user, optionID string, now time.Time) error {
	w := m.VoteWindow
	if w == nil || w.Status != models.VoteOpen {
		return ErrNoOpenVote
	}
	if !w.HasOption(optionID) {
		return fmt.Errorf("%w: %q", ErrInvalidOption, optionID)
	}

	w.Ballots[user] = optionID
	if _, ok := w.OptionFirstVoteAt[optionID]; !ok {
		w.OptionFirstVoteAt[optionID] = now
	}
	m.Participants = addUnique(m.Participants, user)
	return nil
}

// closeVote settles the open window. A window that is already closed is left
// untouched and fx.noWrite is set so nothing is re-applied.
func closeVote(m *models.Mission, byScheduler bool, roll func() float64, now time.Time, fx *effects) error {
	w := m.VoteWindow
	if w == nil {
		return ErrNoOpenVote
	}
	if w.Status == models.VoteClosed {
		fx.noWrite = true
		return nil
	}

	res := tally.Tally(w)
	closedAt := now
	w.Status = models.VoteClosed
	w.ClosedAt = &closedAt
	w.ClosedByScheduler = byScheduler
	w.Winner = res.Winner
	fx.timer(timer.End(m, models.TimerPhase))

	if res.Winner == "" {
		return nil
	}

	winners := winningVoters(w)
	applied, err := applyWinner(m, w, roll, now, fx, winners)
	if err != nil {
		return err
	}
	w.Applied = applied
	if !applied {
		return nil
	}

	m.DecisiveActions = addUnique(m.DecisiveActions, winners...)
	fx.credit(ledger.ReasonDecisiveAction, winners...)
	return nil
}

// applyWinner runs the phase effect of the winning option. A window whose
// phase the mission already left is stale and changes nothing.
func applyWinner(m *models.Mission, w *models.VoteWindow, roll func() float64, now time.Time, fx *effects, winners []string) (bool, error) {
	if w.Phase != m.Phase {
		return false, nil
	}

	switch m.Phase {
	case models.PhaseDesign:
		return true, finalizeDesign(m, now, fx, winners...)
	case models.PhaseLaunch:
		if w.Winner != models.OptionManualLaunch {
			return false, nil
		}
		return true, resolveLaunch(m, roll(), now, fx, winners...)
	case models.PhaseFlight:
		action, ok := flightOptions[w.Winner]
		if !ok {
			return false, nil
		}
		return true, resolveFlight(m, action, now, fx, winners...)
	}
	return false, nil
}

// winningVoters lists, sorted, everyone whose current ballot names the
// winner.
func winningVoters(w *models.VoteWindow) []string {
	var users []string
	for user, opt := range w.Ballots {
		if opt == w.Winner {
			users = append(users, user)
		}
	}
	sort.Strings(users)
	return users
}
