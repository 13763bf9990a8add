package models

import (
	"slices"
	"time"
)

// Phase is the mission lifecycle state.
type Phase string

const (
	PhaseIdle   Phase = "IDLE"
	PhaseDesign Phase = "DESIGN"
	PhaseLaunch Phase = "LAUNCH"
	PhaseFlight Phase = "FLIGHT"
	PhaseResult Phase = "RESULT"
)

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	switch p {
	case PhaseIdle, PhaseDesign, PhaseLaunch, PhaseFlight, PhaseResult:
		return true
	}
	return false
}

// Outcome constants
const (
	OutcomeSuccess = "success"
	OutcomeFail    = "fail"
	OutcomeAbort   = "abort"
)

// Design choices
const (
	PayloadSatellite = "SATELLITE"
	PayloadProbe     = "PROBE"
	PayloadHabitat   = "HABITAT"

	TankSmall  = "S"
	TankMedium = "M"
	TankLarge  = "L"

	EngineIon      = "ION"
	EngineChemical = "CHEMICAL"
	EngineNuclear  = "NUCLEAR"
)

// Flight actions
const (
	ActionHoldCourse       = "HoldCourse"
	ActionCourseCorrection = "CourseCorrection"
	ActionRunExperiment    = "RunExperiment"
)

// Vote option identifiers with a phase effect
const (
	OptionFinalizeDesign   = "finalize_design"
	OptionAddMoreFuel      = "add_more_fuel"
	OptionManualLaunch     = "manual_launch"
	OptionHoldCourse       = "hold_course"
	OptionCourseCorrection = "course_correction"
	OptionRunExperiment    = "run_experiment"
)

// Vote window status constants
const (
	VoteOpen   = "open"
	VoteClosed = "closed"
)

// TimerKind names one of the three independent countdowns.
type TimerKind string

const (
	TimerLaunch TimerKind = "LAUNCH"
	TimerBallot TimerKind = "BALLOT"
	TimerPhase  TimerKind = "PHASE"
)

// TimerKinds lists every kind in a stable order.
var TimerKinds = []TimerKind{TimerLaunch, TimerBallot, TimerPhase}

// Valid reports whether k is a known timer kind.
func (k TimerKind) Valid() bool {
	return slices.Contains(TimerKinds, k)
}

// Timer status constants
const (
	TimerRunning = "running"
	TimerPaused  = "paused"
	TimerEnded   = "ended"
)

// Domain types

// Timer is the persisted state of one countdown kind. Status travels with the
// deadline so a paused timer keeps its remaining duration across restarts.
type Timer struct {
	Status      string     `json:"status"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
	RemainingMs int64      `json:"remaining_ms,omitempty"`
}

// VoteWindow is a time-boxed ballot over a fixed option whitelist.
type VoteWindow struct {
	ID                string               `json:"id"`
	Phase             Phase                `json:"phase"`
	Options           []string             `json:"options"`
	OpenedAt          time.Time            `json:"opened_at"`
	EndsAt            time.Time            `json:"ends_at"`
	Status            string               `json:"status"`
	OpenedBy          string               `json:"opened_by,omitempty"`
	Ballots           map[string]string    `json:"ballots"`
	OptionFirstVoteAt map[string]time.Time `json:"option_first_vote_at"`

	Winner            string     `json:"winner,omitempty"`
	ClosedAt          *time.Time `json:"closed_at,omitempty"`
	ClosedByScheduler bool       `json:"closed_by_scheduler,omitempty"`
	Applied           bool       `json:"applied,omitempty"`
}

// HasOption reports whether id is on the whitelist.
func (w *VoteWindow) HasOption(id string) bool {
	return slices.Contains(w.Options, id)
}

// Mission is the single persisted document for one game post.
type Mission struct {
	PostID    string `json:"post_id"`
	MissionID string `json:"mission_id,omitempty"`
	Phase     Phase  `json:"phase"`
	Version   int64  `json:"version"`

	Fuel    int `json:"fuel"`
	Hull    int `json:"hull"`
	Crew    int `json:"crew"`
	Success int `json:"success"`

	Payload *string `json:"payload"`
	Engine  *string `json:"engine"`
	Tank    *string `json:"tank"`

	Participants    []string `json:"participants"`
	DecisiveActions []string `json:"decisive_actions"`

	StartedAt            *time.Time `json:"started_at,omitempty"`
	PhaseStartedAt       *time.Time `json:"phase_started_at,omitempty"`
	LaunchCountdownUntil *time.Time `json:"launch_countdown_until"`

	SciencePointsDelta int    `json:"science_points_delta"`
	Outcome            string `json:"outcome,omitempty"`
	FlightAction       string `json:"flight_action,omitempty"`
	RewardsDistributed bool   `json:"rewards_distributed,omitempty"`

	VoteWindow *VoteWindow          `json:"vote_window"`
	Timers     map[TimerKind]*Timer `json:"timers"`
}

// NewIdleMission returns the document a post holds before any start.
func NewIdleMission(postID string) *Mission {
	return &Mission{
		PostID:          postID,
		Phase:           PhaseIdle,
		Participants:    []string{},
		DecisiveActions: []string{},
		Timers:          map[TimerKind]*Timer{},
	}
}

// Clone returns a deep copy so transforms never alias a committed record.
func (m *Mission) Clone() *Mission {
	if m == nil {
		return nil
	}
	c := *m
	c.Payload = cloneString(m.Payload)
	c.Engine = cloneString(m.Engine)
	c.Tank = cloneString(m.Tank)
	c.Participants = slices.Clone(m.Participants)
	c.DecisiveActions = slices.Clone(m.DecisiveActions)
	c.StartedAt = cloneTime(m.StartedAt)
	c.PhaseStartedAt = cloneTime(m.PhaseStartedAt)
	c.LaunchCountdownUntil = cloneTime(m.LaunchCountdownUntil)
	if m.VoteWindow != nil {
		w := *m.VoteWindow
		w.Options = slices.Clone(m.VoteWindow.Options)
		w.Ballots = make(map[string]string, len(m.VoteWindow.Ballots))
		for k, v := range m.VoteWindow.Ballots {
			w.Ballots[k] = v
		}
		w.OptionFirstVoteAt = make(map[string]time.Time, len(m.VoteWindow.OptionFirstVoteAt))
		for k, v := range m.VoteWindow.OptionFirstVoteAt {
			w.OptionFirstVoteAt[k] = v
		}
		w.ClosedAt = cloneTime(m.VoteWindow.ClosedAt)
		c.VoteWindow = &w
	}
	c.Timers = make(map[TimerKind]*Timer, len(m.Timers))
	for k, t := range m.Timers {
		if t == nil {
			continue
		}
		tc := *t
		tc.EndsAt = cloneTime(t.EndsAt)
		c.Timers[k] = &tc
	}
	return &c
}

// NextDeadline returns the earliest deadline among running timers, or nil.
// The store indexes it so the reconciler can find expired missions.
func (m *Mission) NextDeadline() *time.Time {
	var next *time.Time
	for _, t := range m.Timers {
		if t == nil || t.Status != TimerRunning || t.EndsAt == nil {
			continue
		}
		if next == nil || t.EndsAt.Before(*next) {
			next = t.EndsAt
		}
	}
	return cloneTime(next)
}

// TimerState returns the timer for kind, reporting an ended timer if none is
// stored.
func (m *Mission) TimerState(kind TimerKind) Timer {
	if t, ok := m.Timers[kind]; ok && t != nil {
		return *t
	}
	return Timer{Status: TimerEnded}
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Request types

type DesignRequest struct {
	Payload *string `json:"payload,omitempty"`
	Tank    *string `json:"tank,omitempty"`
	Engine  *string `json:"engine,omitempty"`
}

type FlightActionRequest struct {
	Action string `json:"action"`
}

type OpenVoteRequest struct {
	Phase       Phase    `json:"phase"`
	Options     []string `json:"options"`
	DurationSec int      `json:"duration_sec"`
}

type CastVoteRequest struct {
	OptionID string `json:"option_id"`
}

type TimerRequest struct {
	RemainingMs int64 `json:"remaining_ms,omitempty"`
}

// Response types

// ServerTime is embedded in every response so clients can compute a clock
// drift offset (server_now - local_now).
type ServerTime struct {
	ServerNow int64 `json:"server_now"`
}

type MissionResponse struct {
	ServerTime
	Mission *Mission `json:"mission"`
}

type OptionCount struct {
	OptionID string `json:"option_id"`
	Count    int    `json:"count"`
}

type TallyResponse struct {
	Total     int            `json:"total"`
	PerOption map[string]int `json:"per_option"`
	Ranking   []OptionCount  `json:"ranking"`
	Winner    string         `json:"winner,omitempty"`
}

type VoteStateResponse struct {
	ServerTime
	Window *VoteWindow    `json:"window"`
	Tally  *TallyResponse `json:"tally,omitempty"`
}

type TimerEvent struct {
	ServerTime
	PostID      string     `json:"post_id"`
	Kind        TimerKind  `json:"kind"`
	Status      string     `json:"status"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
	RemainingMs int64      `json:"remaining_ms,omitempty"`
}

type TimersResponse struct {
	ServerTime
	Timers map[TimerKind]Timer `json:"timers"`
}

type CreditResult struct {
	Username string `json:"username"`
	Reason   string `json:"reason"`
	OK       bool   `json:"ok"`
	NewTotal int64  `json:"new_total"`
}

type AcknowledgeResponse struct {
	ServerTime
	Mission *Mission       `json:"mission"`
	Credits []CreditResult `json:"credits"`
}

type HUDMessage struct {
	ServerTime
	Type    string   `json:"type"`
	Mission *Mission `json:"mission"`
}

type LeaderboardEntry struct {
	ServerTime
	Username string `json:"username"`
	Season   string `json:"season"`
	Total    int64  `json:"total"`
}

// Error response

type ErrorResponse struct {
	ServerTime
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
