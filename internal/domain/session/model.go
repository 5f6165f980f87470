package session

import (
	"context"
	"time"
)

// Stage is the lifecycle position of a participant, derived from the record flags.
type Stage string

const (
	StageNew         Stage = "new"
	StageRegistered  Stage = "registered"
	StageTasksIssued Stage = "tasks_issued"
	StageSubmitted   Stage = "submitted"
	StageExpired     Stage = "expired"
)

// Participant is the durable session record of one participant.
type Participant struct {
	ID                string     `json:"id"`
	AccessCode        string     `json:"access_code,omitempty"`
	Registered        bool       `json:"registered"`
	TaskIssuedAt      *time.Time `json:"task_issued_at,omitempty"`
	SolutionSubmitted bool       `json:"solution_submitted"`
	TimerActive       bool       `json:"timer_active"`
	UsernameChecked   bool       `json:"username_checked"`
	Score             int        `json:"score"`
}

// Stage reports where the participant is in the registration/task cycle.
func (p Participant) Stage() Stage {
	switch {
	case !p.Registered:
		return StageNew
	case p.TimerActive:
		return StageTasksIssued
	case p.SolutionSubmitted:
		return StageSubmitted
	case p.TaskIssuedAt != nil:
		return StageExpired
	default:
		return StageRegistered
	}
}

// Deadline returns the end of the open window, if tasks were issued.
func (p Participant) Deadline(window time.Duration) (time.Time, bool) {
	if p.TaskIssuedAt == nil {
		return time.Time{}, false
	}
	return p.TaskIssuedAt.Add(window), true
}

// Document is a binary payload sent to or stored for a participant.
type Document struct {
	Name    string
	Content []byte
	Caption string
}

// Artifact is an uploaded solution. Content is fetched lazily so that
// rejected submissions never download anything.
type Artifact struct {
	FileName string
	Fetch    func(ctx context.Context) ([]byte, error)
}

// Receipt describes an accepted submission.
type Receipt struct {
	ArtifactName string
	Elapsed      time.Duration
}

// Countdown is one solution window handed to the deadline scheduler.
type Countdown struct {
	ParticipantID string
	IssuedAt      time.Time
	Deadline      time.Time
}

// EventPhase describes where the olympiad period stands.
type EventPhase string

const (
	PhaseNotStarted EventPhase = "not_started"
	PhaseRunning    EventPhase = "running"
	PhaseFinished   EventPhase = "finished"
)

// Period is the window in which the olympiad accepts task requests and
// submissions. Zero bounds are open.
type Period struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies inside the period, bounds inclusive.
func (p Period) Contains(t time.Time) bool {
	if !p.Start.IsZero() && t.Before(p.Start) {
		return false
	}
	if !p.End.IsZero() && t.After(p.End) {
		return false
	}
	return true
}

// Phase returns the phase at t and the time left until the next boundary.
// Remaining is zero when there is no next boundary.
func (p Period) Phase(t time.Time) (EventPhase, time.Duration) {
	switch {
	case !p.Start.IsZero() && t.Before(p.Start):
		return PhaseNotStarted, p.Start.Sub(t)
	case !p.End.IsZero() && t.After(p.End):
		return PhaseFinished, 0
	case !p.End.IsZero():
		return PhaseRunning, p.End.Sub(t)
	default:
		return PhaseRunning, 0
	}
}
