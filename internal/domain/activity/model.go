package activity

import "time"

// ActivityType represents the type of activity event
type ActivityType string

const (
	TypeRegistered         ActivityType = "registered"
	TypeTaskIssued         ActivityType = "task_issued"
	TypeSolutionSubmitted  ActivityType = "solution_submitted"
	TypeWindowExpired      ActivityType = "window_expired"
	TypeScoreSet           ActivityType = "score_set"
	TypeParticipantDeleted ActivityType = "participant_deleted"
	TypeOrganizerAdded     ActivityType = "organizer_added"
)

// Valid reports whether t is a known activity type.
func (t ActivityType) Valid() bool {
	switch t {
	case TypeRegistered, TypeTaskIssued, TypeSolutionSubmitted, TypeWindowExpired,
		TypeScoreSet, TypeParticipantDeleted, TypeOrganizerAdded:
		return true
	}
	return false
}

// ActivityEntry represents an event in the activity log
type ActivityEntry struct {
	ID            string       `json:"id"`
	ParticipantID string       `json:"participant_id,omitempty"`
	ActorID       string       `json:"actor_id,omitempty"`
	ActivityType  ActivityType `json:"type"`
	Summary       string       `json:"summary"`
	Details       string       `json:"details,omitempty"` // JSON string
	CreatedAt     time.Time    `json:"created_at"`
}
