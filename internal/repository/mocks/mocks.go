package mocks

import (
	"context"

	"github.com/saidjob/olympiad/internal/domain/activity"
	"github.com/saidjob/olympiad/internal/domain/session"
	"github.com/stretchr/testify/mock"
)

// ParticipantRepository is a mock for repository.ParticipantRepository.
type ParticipantRepository struct {
	mock.Mock
}

func (m *ParticipantRepository) LoadAll(ctx context.Context) (map[string]session.Participant, error) {
	args := m.Called(ctx)
	if sessions, ok := args.Get(0).(map[string]session.Participant); ok {
		return sessions, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ParticipantRepository) SaveAll(ctx context.Context, sessions map[string]session.Participant) error {
	args := m.Called(ctx, sessions)
	return args.Error(0)
}

// OrganizerRepository is a mock for repository.OrganizerRepository.
type OrganizerRepository struct {
	mock.Mock
}

func (m *OrganizerRepository) LoadOrganizers(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if ids, ok := args.Get(0).([]string); ok {
		return ids, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *OrganizerRepository) SaveOrganizers(ctx context.Context, ids []string) error {
	args := m.Called(ctx, ids)
	return args.Error(0)
}

// ActivityRepository is a mock for repository.ActivityRepository.
type ActivityRepository struct {
	mock.Mock
}

func (m *ActivityRepository) Log(ctx context.Context, entry *activity.ActivityEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *ActivityRepository) List(ctx context.Context, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error) {
	args := m.Called(ctx, opts)
	if list, ok := args.Get(0).([]activity.ActivityEntry); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// APIKeyRepository is a mock for repository.APIKeyRepository.
type APIKeyRepository struct {
	mock.Mock
}

func (m *APIKeyRepository) Issue(ctx context.Context, organizerID, description string) (string, error) {
	args := m.Called(ctx, organizerID, description)
	return args.String(0), args.Error(1)
}

func (m *APIKeyRepository) ResolveOrganizer(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

// ArtifactRepository is a mock for repository.ArtifactRepository.
type ArtifactRepository struct {
	mock.Mock
}

func (m *ArtifactRepository) Persist(ctx context.Context, name string, data []byte) error {
	args := m.Called(ctx, name, data)
	return args.Error(0)
}

func (m *ArtifactRepository) Exists(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

func (m *ArtifactRepository) Read(ctx context.Context, name string) ([]byte, error) {
	args := m.Called(ctx, name)
	if data, ok := args.Get(0).([]byte); ok {
		return data, args.Error(1)
	}
	return nil, args.Error(1)
}
