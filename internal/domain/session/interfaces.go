package session

import (
	"context"

	"github.com/saidjob/olympiad/internal/domain/activity"
)

// Store persists the whole participant table. SaveAll is a full rewrite.
type Store interface {
	LoadAll(ctx context.Context) (map[string]Participant, error)
	SaveAll(ctx context.Context, sessions map[string]Participant) error
}

// Notifier delivers messages to participants.
type Notifier interface {
	SendText(ctx context.Context, participantID, text string) error
	SendDocument(ctx context.Context, participantID string, doc Document) error
}

// Directory resolves a participant's public display handle.
type Directory interface {
	DisplayHandle(ctx context.Context, participantID string) (string, bool, error)
}

// ArtifactStore keeps submitted solutions by name.
type ArtifactStore interface {
	Persist(ctx context.Context, name string, data []byte) error
	Exists(ctx context.Context, name string) (bool, error)
	Read(ctx context.Context, name string) ([]byte, error)
}

// TaskSource provides the task bundle handed out on IssueTask.
type TaskSource interface {
	Bundle(ctx context.Context) (Document, error)
}

// Timers owns the per-participant countdowns.
type Timers interface {
	Start(c Countdown)
	Cancel(participantID string)
	Active(participantID string) bool
}

// Authorizer answers organizer membership questions.
type Authorizer interface {
	IsOrganizer(id string) bool
}

// ActivityRecorder journals committed transitions.
type ActivityRecorder interface {
	LogActivity(ctx context.Context, entry *activity.ActivityEntry) error
}

// CodeGenerator draws access codes absent from existing.
type CodeGenerator interface {
	Generate(existing map[string]struct{}) (string, error)
}
