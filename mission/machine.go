// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package mission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/danielhkuo/mission-control/clock"
	"github.com/danielhkuo/mission-control/db"
	"github.com/danielhkuo/mission-control/ledger"
	"github.com/danielhkuo/mission-control/models"
	"github.com/danielhkuo/mission-control/pubsub"
	"github.com/danielhkuo/mission-control/tally"
	"github.com/danielhkuo/mission-control/timer"
)

// maxWriteAttempts bounds CAS retries before ErrStaleWrite reaches the caller.
const maxWriteAttempts = 8

// Actor is the resolved identity behind a call. Scheduler-driven calls use
// the zero Actor.
type Actor struct {
	Username  string
	Moderator bool
}

// Ledger is the point-crediting collaborator.
type Ledger interface {
	CreditPoints(ctx context.Context, missionID, username, reason string, points int64) (models.CreditResult, error)
	BulkCreditPoints(ctx context.Context, missionID string, usernames []string, reason string, points int64) ([]models.CreditResult, error)
}

// Roller draws a launch roll in [0, 100).
type Roller interface {
	Roll() float64
}

type randomRoller struct{}

func (randomRoller) Roll() float64 { return rand.Float64() * 100 }

// RollerFunc adapts a function to Roller.
type RollerFunc func() float64

func (f RollerFunc) Roll() float64 { return f() }

// Deps wires a Machine to its collaborators. Store is required; nil
// collaborators are skipped.
type Deps struct {
	Store     db.Store
	Ledger    Ledger
	Publisher timer.Publisher
	Scheduler timer.Scheduler
	Clock     clock.Clock
	Roller    Roller
	Tracer    trace.Tracer
}

// Machine runs mission transitions. Every mutation goes through transact:
// read, clone, apply a pure transform, compare-and-swap write, then side
// effects once the write has committed.
type Machine struct {
	store  db.Store
	ledger Ledger
	pub    timer.Publisher
	timers *timer.Coordinator
	clock  clock.Clock
	roller Roller
	tracer trace.Tracer
}

func New(deps Deps) *Machine {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Roller == nil {
		deps.Roller = randomRoller{}
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer("github.com/danielhkuo/mission-control/mission")
	}
	return &Machine{
		store:  deps.Store,
		ledger: deps.Ledger,
		pub:    deps.Publisher,
		timers: timer.NewCoordinator(deps.Publisher, deps.Scheduler, deps.Clock),
		clock:  deps.Clock,
		roller: deps.Roller,
		tracer: deps.Tracer,
	}
}

// Now exposes the machine's clock for server_now stamps.
func (mc *Machine) Now() time.Time { return mc.clock.Now() }

type mutation func(m *models.Mission, now time.Time, fx *effects) error

func (mc *Machine) transact(ctx context.Context, op, postID string, fn mutation) (*models.Mission, *effects, error) {
	ctx, span := mc.tracer.Start(ctx, "mission."+op, trace.WithAttributes(
		attribute.String("post_id", postID),
		attribute.String("op", op),
	))
	defer span.End()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = 200 * time.Millisecond

	var fx *effects
	attempts := 0
	m, err := backoff.Retry(ctx, func() (*models.Mission, error) {
		attempts++
		cur, err := mc.store.Get(ctx, postID)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		next := cur.Clone()
		fx = &effects{}
		if err := fn(next, mc.clock.Now(), fx); err != nil {
			return nil, backoff.Permanent(err)
		}
		if fx.noWrite {
			return cur, nil
		}

		version, err := mc.store.Put(ctx, next)
		if errors.Is(err, db.ErrStaleWrite) {
			return nil, err
		}
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		next.Version = version
		return next, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(maxWriteAttempts))

	span.SetAttributes(attribute.Int("attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, err
	}
	span.SetAttributes(attribute.String("phase", string(m.Phase)))

	if attempts > 1 {
		slog.Debug("mission write retried", "post_id", postID, "op", op, "attempts", attempts)
	}

	if !fx.noWrite {
		mc.afterCommit(context.WithoutCancel(ctx), m, fx)
	}
	return m, fx, nil
}

// afterCommit runs side effects. Failures are logged and never undo the
// committed transition; clients recover by polling the snapshot.
func (mc *Machine) afterCommit(ctx context.Context, m *models.Mission, fx *effects) {
	mc.timers.Apply(ctx, m.PostID, fx.timers)

	if mc.ledger != nil {
		for _, c := range fx.credits {
			if _, err := mc.ledger.BulkCreditPoints(ctx, m.MissionID, c.usernames, c.reason, 0); err != nil {
				slog.Error("failed to credit points",
					"error", fmt.Errorf("%w: %w", ErrCollaboratorUnavailable, err),
					"mission_id", m.MissionID, "reason", c.reason)
			}
		}
	}

	mc.publishHUD(ctx, m)
}

func (mc *Machine) publishHUD(ctx context.Context, m *models.Mission) {
	if mc.pub == nil {
		return
	}
	msg := models.HUDMessage{
		ServerTime: mc.serverTime(),
		Type:       "hud",
		Mission:    m,
	}
	if err := mc.pub.Publish(ctx, pubsub.HUDTopic(m.PostID), msg); err != nil {
		slog.Warn("failed to publish hud", "error", err, "post_id", m.PostID)
	}
}

func (mc *Machine) serverTime() models.ServerTime {
	return models.ServerTime{ServerNow: mc.clock.Now().UnixMilli()}
}

// Start begins a new mission on an IDLE post.
func (mc *Machine) Start(ctx context.Context, postID string, actor Actor) (*models.Mission, error) {
	m, _, err := mc.transact(ctx, "start", postID, func(m *models.Mission, now time.Time, _ *effects) error {
		return start(m, actor.Username, now)
	})
	if err != nil {
		return nil, err
	}
	slog.Info("mission started", "post_id", postID, "mission_id", m.MissionID, "by", actor.Username)
	return m, nil
}

// Design applies a design mutation during DESIGN.
func (mc *Machine) Design(ctx context.Context, postID string, actor Actor, req models.DesignRequest) (*models.Mission, error) {
	m, _, err := mc.transact(ctx, "design", postID, func(m *models.Mission, _ time.Time, _ *effects) error {
		return applyDesign(m, actor.Username, req)
	})
	return m, err
}

// FinalizeDesign advances DESIGN to LAUNCH. Concurrent callers race on the
// CAS write; the loser re-reads LAUNCH and gets ErrPhaseMismatch.
func (mc *Machine) FinalizeDesign(ctx context.Context, postID string, actor Actor) (*models.Mission, error) {
	m, _, err := mc.transact(ctx, "finalize", postID, func(m *models.Mission, now time.Time, fx *effects) error {
		return finalizeDesign(m, now, fx, actor.Username)
	})
	if err != nil {
		return nil, err
	}
	slog.Info("design finalized", "post_id", postID, "by", actor.Username)
	return m, nil
}

// Launch resolves LAUNCH immediately on behalf of actor.
func (mc *Machine) Launch(ctx context.Context, postID string, actor Actor) (*models.Mission, error) {
	m, _, err := mc.transact(ctx, "launch", postID, func(m *models.Mission, now time.Time, fx *effects) error {
		return resolveLaunch(m, mc.roller.Roll(), now, fx, actor.Username)
	})
	if err != nil {
		return nil, err
	}
	slog.Info("launch resolved", "post_id", postID, "phase", m.Phase, "outcome", m.Outcome)
	return m, nil
}

// FlightAction applies action and resolves FLIGHT.
func (mc *Machine) FlightAction(ctx context.Context, postID string, actor Actor, action string) (*models.Mission, error) {
	m, _, err := mc.transact(ctx, "flight", postID, func(m *models.Mission, now time.Time, fx *effects) error {
		return resolveFlight(m, action, now, fx, actor.Username)
	})
	if err != nil {
		return nil, err
	}
	slog.Info("flight resolved", "post_id", postID, "action", action, "outcome", m.Outcome)
	return m, nil
}

// Acknowledge distributes RESULT rewards. Calling it again re-issues the same
// credits; the ledger's idempotency key keeps totals unchanged.
func (mc *Machine) Acknowledge(ctx context.Context, postID string, actor Actor) (*models.Mission, []models.CreditResult, error) {
	m, _, err := mc.transact(ctx, "acknowledge", postID, func(m *models.Mission, _ time.Time, fx *effects) error {
		if err := expectPhase("acknowledge", m, models.PhaseResult); err != nil {
			return err
		}
		if m.RewardsDistributed {
			fx.noWrite = true
			return nil
		}
		m.RewardsDistributed = true
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if mc.ledger == nil {
		return m, nil, nil
	}

	var credits []models.CreditResult
	decisive, err := mc.ledger.BulkCreditPoints(ctx, m.MissionID, m.DecisiveActions, ledger.ReasonDecisiveAction, 0)
	credits = append(credits, decisive...)
	if err != nil {
		return m, credits, fmt.Errorf("%w: %w", ErrCollaboratorUnavailable, err)
	}
	outcome, err := mc.ledger.BulkCreditPoints(ctx, m.MissionID, m.Participants, outcomeReason(m.Outcome), 0)
	credits = append(credits, outcome...)
	if err != nil {
		return m, credits, fmt.Errorf("%w: %w", ErrCollaboratorUnavailable, err)
	}

	slog.Info("rewards distributed", "post_id", postID, "mission_id", m.MissionID, "by", actor.Username, "credits", len(credits))
	return m, credits, nil
}

// Reset is the operator escape hatch back to IDLE.
func (mc *Machine) Reset(ctx context.Context, postID string, actor Actor) (*models.Mission, error) {
	if !actor.Moderator {
		return nil, ErrForbidden
	}
	m, _, err := mc.transact(ctx, "reset", postID, func(m *models.Mission, _ time.Time, fx *effects) error {
		reset(m, fx)
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("mission reset", "post_id", postID, "by", actor.Username)
	return m, nil
}

// Snapshot reads the current document.
func (mc *Machine) Snapshot(ctx context.Context, postID string) (*models.Mission, error) {
	return mc.store.Get(ctx, postID)
}

// OpenVote opens a window for phase, which must be the current phase.
func (mc *Machine) OpenVote(ctx context.Context, postID string, actor Actor, phase models.Phase, options []string, durationSec int) (*models.Mission, error) {
	m, _, err := mc.transact(ctx, "open_vote", postID, func(m *models.Mission, now time.Time, fx *effects) error {
		return openVote(m, actor.Username, phase, options, time.Duration(durationSec)*time.Second, now, fx)
	})
	if err != nil {
		return nil, err
	}
	slog.Info("vote opened", "post_id", postID, "vote_id", m.VoteWindow.ID, "phase", phase, "options", len(options))
	return m, nil
}

// CastVote records actor's ballot and returns the live tally.
func (mc *Machine) CastVote(ctx context.Context, postID string, actor Actor, optionID string) (*models.Mission, tally.Result, error) {
	m, _, err := mc.transact(ctx, "cast_vote", postID, func(m *models.Mission, now time.Time, _ *effects) error {
		return castVote(m, actor.Username, optionID, now)
	})
	if err != nil {
		return nil, tally.Result{}, err
	}
	return m, tally.Tally(m.VoteWindow), nil
}

// CloseVote settles the open window. Manual closes need a moderator; the
// scheduler closes on expiry. Closing a closed window returns its stored
// result without re-applying the winner.
func (mc *Machine) CloseVote(ctx context.Context, postID string, actor Actor, byScheduler bool) (*models.Mission, tally.Result, error) {
	if !byScheduler && !actor.Moderator {
		return nil, tally.Result{}, ErrForbidden
	}
	m, _, err := mc.transact(ctx, "close_vote", postID, func(m *models.Mission, now time.Time, fx *effects) error {
		return closeVote(m, byScheduler, mc.roller.Roll, now, fx)
	})
	if err != nil {
		return nil, tally.Result{}, err
	}

	w := m.VoteWindow
	slog.Info("vote closed", "post_id", postID, "vote_id", w.ID, "winner", w.Winner, "applied", w.Applied, "scheduler", byScheduler)
	return m, tally.Tally(w), nil
}

// VoteState returns the current window and its tally.
func (mc *Machine) VoteState(ctx context.Context, postID string) (*models.VoteWindow, tally.Result, error) {
	m, err := mc.store.Get(ctx, postID)
	if err != nil {
		return nil, tally.Result{}, err
	}
	return m.VoteWindow, tally.Tally(m.VoteWindow), nil
}

// StartTimer runs the BALLOT countdown for d. LAUNCH and PHASE belong to the
// phase rules and cannot be started by hand.
func (mc *Machine) StartTimer(ctx context.Context, postID string, actor Actor, kind models.TimerKind, d time.Duration) (*models.Mission, error) {
	if !actor.Moderator {
		return nil, ErrForbidden
	}
	if kind != models.TimerBallot {
		return nil, fmt.Errorf("%w: %s is driven by the mission phase", ErrInvalidTimer, kind)
	}
	if d <= 0 {
		return nil, fmt.Errorf("%w: a positive duration is required", ErrInvalidTimer)
	}
	m, _, err := mc.transact(ctx, "start_timer", postID, func(m *models.Mission, now time.Time, fx *effects) error {
		if m.Phase == models.PhaseIdle {
			return &PhaseError{Op: "start timer", Expected: models.PhaseDesign, Actual: m.Phase}
		}
		fx.timer(timer.Start(m, kind, now, d))
		return nil
	})
	return m, err
}

// PauseTimer freezes a running timer with remaining left on it.
func (mc *Machine) PauseTimer(ctx context.Context, postID string, actor Actor, kind models.TimerKind, remaining time.Duration) (*models.Mission, error) {
	if !actor.Moderator {
		return nil, ErrForbidden
	}
	m, _, err := mc.transact(ctx, "pause_timer", postID, func(m *models.Mission, now time.Time, fx *effects) error {
		e, err := timer.Pause(m, kind, now, remaining)
		if err != nil {
			return err
		}
		anchorVoteWindow(m, e)
		fx.timer(e)
		return nil
	})
	return m, err
}

// ResumeTimer restarts a paused timer.
func (mc *Machine) ResumeTimer(ctx context.Context, postID string, actor Actor, kind models.TimerKind, remaining time.Duration) (*models.Mission, error) {
	if !actor.Moderator {
		return nil, ErrForbidden
	}
	m, _, err := mc.transact(ctx, "resume_timer", postID, func(m *models.Mission, now time.Time, fx *effects) error {
		e, err := timer.Resume(m, kind, now, remaining)
		if err != nil {
			return err
		}
		anchorVoteWindow(m, e)
		fx.timer(e)
		return nil
	})
	return m, err
}

// Expire handles a timer that reached its deadline, from either a scheduled
// job or the deadline sweep. It acts only if the timer is still running and
// expired, so duplicate deliveries and rescheduled timers are no-ops.
// It reports whether the record changed.
func (mc *Machine) Expire(ctx context.Context, postID string, kind models.TimerKind) (bool, error) {
	if !kind.Valid() {
		return false, timer.ErrUnknownKind
	}

	_, fx, err := mc.transact(ctx, "expire_"+string(kind), postID, func(m *models.Mission, now time.Time, fx *effects) error {
		if !timer.Expired(m, kind, now) {
			fx.noWrite = true
			return nil
		}

		switch {
		case kind == models.TimerLaunch && m.Phase == models.PhaseLaunch:
			return resolveLaunch(m, mc.roller.Roll(), now, fx)
		case kind == models.TimerPhase && m.VoteWindow != nil && m.VoteWindow.Status == models.VoteOpen:
			return closeVote(m, true, mc.roller.Roll, now, fx)
		default:
			fx.timer(timer.End(m, kind))
			return nil
		}
	})
	if err != nil {
		return false, err
	}
	return !fx.noWrite, nil
}

// Timers returns every timer kind's state.
func (mc *Machine) Timers(ctx context.Context, postID string) (map[models.TimerKind]models.Timer, error) {
	m, err := mc.store.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	timers := make(map[models.TimerKind]models.Timer, len(models.TimerKinds))
	for _, kind := range models.TimerKinds {
		timers[kind] = m.TimerState(kind)
	}
	return timers, nil
}

// ServerTime stamps a response with the machine clock.
func (mc *Machine) ServerTime() models.ServerTime { return mc.serverTime() }

// CatchUp returns the messages a new subscriber needs before live updates:
// the HUD snapshot followed by the state of every timer.
func (mc *Machine) CatchUp(ctx context.Context, postID string) ([]any, error) {
	m, err := mc.store.Get(ctx, postID)
	if err != nil {
		return nil, err
	}

	now := mc.serverTime()
	msgs := []any{models.HUDMessage{ServerTime: now, Type: "hud", Mission: m}}
	for _, kind := range models.TimerKinds {
		t := m.TimerState(kind)
		msgs = append(msgs, models.TimerEvent{
			ServerTime:  now,
			PostID:      postID,
			Kind:        kind,
			Status:      t.Status,
			EndsAt:      t.EndsAt,
			RemainingMs: t.RemainingMs,
		})
	}
	return msgs, nil
}
