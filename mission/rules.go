// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package mission

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/mission-control/clock"
	"github.com/danielhkuo/mission-control/ledger"
	"github.com/danielhkuo/mission-control/models"
	"github.com/danielhkuo/mission-control/timer"
)

// LaunchCountdown is how long LAUNCH waits before auto-launching.
const LaunchCountdown = 120 * time.Second

// MinVoteDuration is the shortest vote window accepted.
const MinVoteDuration = 5 * time.Second

// Starting stats
const (
	startFuel    = 60
	startHull    = 100
	startCrew    = 100
	startSuccess = 50
)

// Launch and flight constants
const (
	launchFuelCost       = 10
	launchFailScience    = 5
	flightSuccessScience = 20
	flightAbortScience   = 2
)

type payloadDelta struct{ success, crew, fuel int }

var payloadDeltas = map[string]payloadDelta{
	models.PayloadSatellite: {success: 5, crew: 0, fuel: -5},
	models.PayloadProbe:     {success: 10, crew: 0, fuel: -10},
	models.PayloadHabitat:   {success: -5, crew: 15, fuel: -15},
}

// Bigger tanks carry more fuel and stress the hull more
type tankDelta struct{ fuel, hull int }

var tankDeltas = map[string]tankDelta{
	models.TankSmall:  {fuel: 10, hull: -2},
	models.TankMedium: {fuel: 20, hull: -5},
	models.TankLarge:  {fuel: 35, hull: -10},
}

type engineDelta struct{ success, crew int }

var engineDeltas = map[string]engineDelta{
	models.EngineIon:      {success: 5, crew: 0},
	models.EngineChemical: {success: 10, crew: -5},
	models.EngineNuclear:  {success: 15, crew: -10},
}

type flightDelta struct{ fuel, success, science int }

var flightDeltas = map[string]flightDelta{
	models.ActionHoldCourse:       {},
	models.ActionCourseCorrection: {fuel: -8, success: 6},
	models.ActionRunExperiment:    {fuel: -4, science: 3},
}

// flightOptions maps FLIGHT vote options onto flight actions.
var flightOptions = map[string]string{
	models.OptionHoldCourse:       models.ActionHoldCourse,
	models.OptionCourseCorrection: models.ActionCourseCorrection,
	models.OptionRunExperiment:    models.ActionRunExperiment,
}

// credit is a ledger award to run after commit.
type credit struct {
	usernames []string
	reason    string
}

// effects collects what a mutation wants done once its write commits.
type effects struct {
	timers  []timer.Effect
	credits []credit
	noWrite bool
}

func (fx *effects) timer(e timer.Effect) { fx.timers = append(fx.timers, e) }

func (fx *effects) credit(reason string, usernames ...string) {
	if len(usernames) == 0 {
		return
	}
	fx.credits = append(fx.credits, credit{usernames: slices.Clone(usernames), reason: reason})
}

func addUnique(set []string, users ...string) []string {
	for _, u := range users {
		if u != "" && !slices.Contains(set, u) {
			set = append(set, u)
		}
	}
	return set
}

func enterPhase(m *models.Mission, phase models.Phase, now time.Time) {
	m.Phase = phase
	at := now
	m.PhaseStartedAt = &at
}

func start(m *models.Mission, user string, now time.Time) error {
	if err := expectPhase("start", m, models.PhaseIdle); err != nil {
		return err
	}

	version := m.Version
	*m = *models.NewIdleMission(m.PostID)
	m.Version = version
	m.MissionID = uuid.NewString()
	m.Fuel = startFuel
	m.Hull = startHull
	m.Crew = startCrew
	m.Success = startSuccess
	startedAt := now
	m.StartedAt = &startedAt
	enterPhase(m, models.PhaseDesign, now)
	m.Participants = addUnique(m.Participants, user)
	return nil
}

// applyDesign applies payload, tank and engine choices in that order,
// clamping after every delta.
func applyDesign(m *models.Mission, user string, req models.DesignRequest) error {
	if err := expectPhase("design", m, models.PhaseDesign); err != nil {
		return err
	}
	if req.Payload == nil && req.Tank == nil && req.Engine == nil {
		return fmt.Errorf("%w: nothing to change", ErrInvalidDesign)
	}

	// Validate everything before touching the record
	var (
		pd payloadDelta
		td tankDelta
		ed engineDelta
		ok bool
	)
	if req.Payload != nil {
		if pd, ok = payloadDeltas[*req.Payload]; !ok {
			return fmt.Errorf("%w: unknown payload %q", ErrInvalidDesign, *req.Payload)
		}
	}
	if req.Tank != nil {
		if td, ok = tankDeltas[*req.Tank]; !ok {
			return fmt.Errorf("%w: unknown tank %q", ErrInvalidDesign, *req.Tank)
		}
	}
	if req.Engine != nil {
		if ed, ok = engineDeltas[*req.Engine]; !ok {
			return fmt.Errorf("%w: unknown engine %q", ErrInvalidDesign, *req.Engine)
		}
	}

	if req.Payload != nil {
		m.Success = clock.Clamp(m.Success + pd.success)
		m.Crew = clock.Clamp(m.Crew + pd.crew)
		m.Fuel = clock.Clamp(m.Fuel + pd.fuel)
		payload := *req.Payload
		m.Payload = &payload
	}
	if req.Tank != nil {
		m.Fuel = clock.Clamp(m.Fuel + td.fuel)
		m.Hull = clock.Clamp(m.Hull + td.hull)
		tank := *req.Tank
		m.Tank = &tank
	}
	if req.Engine != nil {
		m.Success = clock.Clamp(m.Success + ed.success)
		m.Crew = clock.Clamp(m.Crew + ed.crew)
		engine := *req.Engine
		m.Engine = &engine
	}

	m.Participants = addUnique(m.Participants, user)
	return nil
}

// finalizeDesign moves DESIGN to LAUNCH and arms the launch countdown. The
// deciders are credited as decisive.
func finalizeDesign(m *models.Mission, now time.Time, fx *effects, deciders ...string) error {
	if err := expectPhase("finalize", m, models.PhaseDesign); err != nil {
		return err
	}

	enterPhase(m, models.PhaseLaunch, now)
	m.Participants = addUnique(m.Participants, deciders...)
	m.DecisiveActions = addUnique(m.DecisiveActions, deciders...)
	fx.timer(timer.Start(m, models.TimerLaunch, now, LaunchCountdown))
	return nil
}

// resolveLaunch compares a roll in [0,100) against success. Deciders may be
// empty when the countdown fired.
func resolveLaunch(m *models.Mission, roll float64, now time.Time, fx *effects, deciders ...string) error {
	if err := expectPhase("launch", m, models.PhaseLaunch); err != nil {
		return err
	}

	m.Participants = addUnique(m.Participants, deciders...)
	m.DecisiveActions = addUnique(m.DecisiveActions, deciders...)
	fx.timer(timer.End(m, models.TimerLaunch))

	if roll < float64(m.Success) {
		m.Fuel = clock.Clamp(m.Fuel - launchFuelCost)
		enterPhase(m, models.PhaseFlight, now)
		return nil
	}

	m.Outcome = models.OutcomeFail
	m.SciencePointsDelta += launchFailScience
	enterPhase(m, models.PhaseResult, now)
	return nil
}

// resolveFlight applies one flight action and settles the mission. FLIGHT is
// a single decision point: whatever fuel or hull remains, the first action
// ends it.
func resolveFlight(m *models.Mission, action string, now time.Time, fx *effects, deciders ...string) error {
	d, ok := flightDeltas[action]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
	if err := expectPhase("flight", m, models.PhaseFlight); err != nil {
		return err
	}

	m.Fuel = clock.Clamp(m.Fuel + d.fuel)
	m.Success = clock.Clamp(m.Success + d.success)
	m.SciencePointsDelta += d.science
	m.FlightAction = action
	m.Participants = addUnique(m.Participants, deciders...)
	m.DecisiveActions = addUnique(m.DecisiveActions, deciders...)

	if m.Fuel <= 0 || m.Hull <= 0 {
		m.Outcome = models.OutcomeAbort
		m.SciencePointsDelta += flightAbortScience
	} else {
		m.Outcome = models.OutcomeSuccess
		m.SciencePointsDelta += flightSuccessScience
	}
	enterPhase(m, models.PhaseResult, now)
	return nil
}

// reset returns the post to IDLE and ends every timer.
func reset(m *models.Mission, fx *effects) {
	for _, kind := range models.TimerKinds {
		fx.timer(timer.End(m, kind))
	}
	version := m.Version
	*m = *models.NewIdleMission(m.PostID)
	m.Version = version
}

// outcomeReason maps a mission outcome onto its ledger reason.
func outcomeReason(outcome string) string {
	switch outcome {
	case models.OutcomeSuccess:
		return ledger.ReasonMissionSuccess
	case models.OutcomeAbort:
		return ledger.ReasonMissionAbort
	default:
		return ledger.ReasonMissionFail
	}
}
