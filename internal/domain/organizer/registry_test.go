package organizer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/saidjob/olympiad/internal/domain/organizer"
	"github.com/saidjob/olympiad/internal/repository/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRegistry_LoadMergesBootstrap(t *testing.T) {
	ctx := context.Background()
	store := &mocks.OrganizerRepository{}
	store.On("LoadOrganizers", ctx).Return([]string{"200", " "}, nil)

	reg := organizer.NewRegistry(store, []string{"100"}, nil)
	require.NoError(t, reg.Load(ctx))

	require.True(t, reg.IsOrganizer("100"))
	require.True(t, reg.IsOrganizer("200"))
	require.False(t, reg.IsOrganizer("300"))
	require.False(t, reg.IsOrganizer(""))
	require.Equal(t, []string{"100", "200"}, reg.List())
}

func TestRegistry_Add(t *testing.T) {
	ctx := context.Background()
	store := &mocks.OrganizerRepository{}
	store.On("SaveOrganizers", ctx, []string{"100", "555"}).Return(nil).Once()

	reg := organizer.NewRegistry(store, []string{"100"}, nil)

	require.ErrorIs(t, reg.Add(ctx, "999", "555"), organizer.ErrNotAuthorized)
	require.ErrorIs(t, reg.Add(ctx, "100", "abc"), organizer.ErrInvalidID)

	require.NoError(t, reg.Add(ctx, "100", "555"))
	require.True(t, reg.IsOrganizer("555"))

	// Re-adding is a no-op and does not write.
	require.NoError(t, reg.Add(ctx, "555", "555"))
	store.AssertExpectations(t)
}

func TestRegistry_AddPersistenceFailure(t *testing.T) {
	ctx := context.Background()
	store := &mocks.OrganizerRepository{}
	store.On("SaveOrganizers", ctx, mock.Anything).Return(errors.New("disk full"))

	reg := organizer.NewRegistry(store, []string{"100"}, nil)
	require.Error(t, reg.Add(ctx, "100", "555"))
	require.False(t, reg.IsOrganizer("555"))
}
