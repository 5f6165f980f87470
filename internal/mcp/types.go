package mcp

import (
	"time"

	"github.com/saidjob/olympiad/internal/domain/activity"
	"github.com/saidjob/olympiad/internal/domain/session"
)

type EmptyInput struct{}

type ParticipantView struct {
	ID                string `json:"id" jsonschema:"participant identifier (chat id)"`
	Handle            string `json:"handle,omitempty" jsonschema:"display handle without @"`
	AccessCode        string `json:"access_code" jsonschema:"personal access code"`
	Stage             string `json:"stage" jsonschema:"registered, tasks_issued, submitted or expired"`
	TaskIssuedAt      string `json:"task_issued_at,omitempty" jsonschema:"RFC 3339 time the tasks were issued"`
	SolutionSubmitted bool   `json:"solution_submitted"`
	TimerActive       bool   `json:"timer_active"`
	Score             int    `json:"score"`
}

type ListParticipantsResult struct {
	Participants []ParticipantView `json:"participants"`
}

type SubmissionView struct {
	ParticipantID string `json:"participant_id"`
	Handle        string `json:"handle,omitempty"`
	AccessCode    string `json:"access_code"`
	ArtifactName  string `json:"artifact_name" jsonschema:"stored solution file name"`
	Score         int    `json:"score"`
}

type ListSubmissionsResult struct {
	Submissions []SubmissionView `json:"submissions"`
}

type ScoreView struct {
	ParticipantID string `json:"participant_id"`
	Handle        string `json:"handle,omitempty"`
	AccessCode    string `json:"access_code"`
	Score         int    `json:"score"`
}

type ListScoresResult struct {
	Scores []ScoreView `json:"scores" jsonschema:"participants with points, highest first"`
}

// ParticipantRef names a participant either by id or by display handle.
type ParticipantRef struct {
	ParticipantID string
	Handle        string
}

type SetScoreInput struct {
	ParticipantID string `json:"participant_id,omitempty" jsonschema:"participant identifier; takes precedence over handle"`
	Handle        string `json:"handle,omitempty" jsonschema:"display handle, with or without @"`
	Score         int    `json:"score" jsonschema:"points to record, zero or more"`
}

func (in SetScoreInput) ref() ParticipantRef {
	return ParticipantRef{ParticipantID: in.ParticipantID, Handle: in.Handle}
}

type SetScoreResult struct {
	ParticipantID string `json:"participant_id"`
	Score         int    `json:"score"`
}

type DeleteParticipantInput struct {
	ParticipantID string `json:"participant_id,omitempty" jsonschema:"participant identifier; takes precedence over handle"`
	Handle        string `json:"handle,omitempty" jsonschema:"display handle, with or without @"`
}

func (in DeleteParticipantInput) ref() ParticipantRef {
	return ParticipantRef{ParticipantID: in.ParticipantID, Handle: in.Handle}
}

type DeleteParticipantResult struct {
	ParticipantID string `json:"participant_id"`
	Deleted       bool   `json:"deleted"`
}

type AddOrganizerInput struct {
	OrganizerID string `json:"organizer_id" jsonschema:"numeric chat id of the new organizer"`
}

type AddOrganizerResult struct {
	Organizers []string `json:"organizers"`
}

type GetSolutionInput struct {
	AccessCode string `json:"access_code" jsonschema:"personal code of the participant"`
}

type GetSolutionResult struct {
	Name          string `json:"name"`
	Size          int    `json:"size"`
	ContentBase64 string `json:"content_base64" jsonschema:"file content, base64 encoded"`
}

type EventStatusResult struct {
	Phase            string `json:"phase" jsonschema:"not_started, running or finished"`
	RemainingSeconds int64  `json:"remaining_seconds" jsonschema:"seconds until the next period boundary, 0 if none"`
	WindowSeconds    int64  `json:"window_seconds" jsonschema:"length of the solution window"`
	Registered       int    `json:"registered"`
	Submitted        int    `json:"submitted"`
	Solving          int    `json:"solving" jsonschema:"participants with an open window"`
}

type RecentActivityInput struct {
	ParticipantID string `json:"participant_id,omitempty" jsonschema:"only entries about this participant"`
	ActivityType  string `json:"activity_type,omitempty" jsonschema:"only entries of this type"`
	Limit         int    `json:"limit,omitempty" jsonschema:"maximum number of entries (default 50)"`
	Offset        int    `json:"offset,omitempty"`
}

type ActivityEntryView struct {
	Timestamp     string                `json:"timestamp" jsonschema:"RFC 3339 time of the entry"`
	Type          activity.ActivityType `json:"type"`
	ParticipantID string                `json:"participant_id,omitempty"`
	ActorID       string                `json:"actor_id,omitempty"`
	Summary       string                `json:"summary"`
	Details       string                `json:"details,omitempty"`
}

type RecentActivityResult struct {
	Entries []ActivityEntryView `json:"entries"`
}

func participantView(s session.Summary) ParticipantView {
	v := ParticipantView{
		ID:                s.ID,
		Handle:            s.Handle,
		AccessCode:        s.AccessCode,
		Stage:             string(s.Stage),
		SolutionSubmitted: s.SolutionSubmitted,
		TimerActive:       s.TimerActive,
		Score:             s.Score,
	}
	if s.TaskIssuedAt != nil {
		v.TaskIssuedAt = s.TaskIssuedAt.UTC().Format(time.RFC3339)
	}
	return v
}
