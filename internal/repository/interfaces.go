package repository

import (
	"context"

	"github.com/saidjob/olympiad/internal/domain/activity"
	"github.com/saidjob/olympiad/internal/domain/session"
)

// ParticipantRepository persists the participant table as a whole
type ParticipantRepository interface {
	LoadAll(ctx context.Context) (map[string]session.Participant, error)
	SaveAll(ctx context.Context, sessions map[string]session.Participant) error
}

// OrganizerRepository persists the organizer set
type OrganizerRepository interface {
	LoadOrganizers(ctx context.Context) ([]string, error)
	SaveOrganizers(ctx context.Context, ids []string) error
}

// ActivityRepository manages activity log persistence
type ActivityRepository interface {
	Log(ctx context.Context, entry *activity.ActivityEntry) error
	List(ctx context.Context, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error)
}

// APIKeyRepository manages organizer console tokens
type APIKeyRepository interface {
	Issue(ctx context.Context, organizerID, description string) (string, error)
	ResolveOrganizer(ctx context.Context, token string) (string, error)
}

// ArtifactRepository stores submitted solution files by name
type ArtifactRepository interface {
	Persist(ctx context.Context, name string, data []byte) error
	Exists(ctx context.Context, name string) (bool, error)
	Read(ctx context.Context, name string) ([]byte, error)
}
