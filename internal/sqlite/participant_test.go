package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/saidjob/olympiad/internal/domain/session"
	"github.com/stretchr/testify/require"
)

func TestParticipantRepository_SaveLoad(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewParticipantRepository(db)

	empty, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Empty(t, empty)

	issued := time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)
	in := map[string]session.Participant{
		"100": {ID: "100"},
		"200": {
			ID:              "200",
			AccessCode:      "54321",
			Registered:      true,
			TaskIssuedAt:    &issued,
			TimerActive:     true,
			UsernameChecked: true,
		},
		"300": {
			ID:                "300",
			AccessCode:        "11111",
			Registered:        true,
			TaskIssuedAt:      &issued,
			SolutionSubmitted: true,
			Score:             20,
		},
	}
	require.NoError(t, repo.SaveAll(ctx, in))

	out, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, out, 3)
	require.Equal(t, "", out["100"].AccessCode)
	require.Nil(t, out["100"].TaskIssuedAt)
	require.True(t, out["200"].TimerActive)
	require.NotNil(t, out["200"].TaskIssuedAt)
	require.True(t, issued.Equal(*out["200"].TaskIssuedAt))
	require.Equal(t, 20, out["300"].Score)
	require.True(t, out["300"].SolutionSubmitted)
}

func TestParticipantRepository_SaveAllReplaces(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewParticipantRepository(db)

	require.NoError(t, repo.SaveAll(ctx, map[string]session.Participant{
		"1": {ID: "1", AccessCode: "10001", Registered: true},
		"2": {ID: "2", AccessCode: "10002", Registered: true},
	}))
	require.NoError(t, repo.SaveAll(ctx, map[string]session.Participant{
		"2": {ID: "2", AccessCode: "10001", Registered: true},
	}))

	out, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "10001", out["2"].AccessCode)
}

func TestParticipantRepository_FailedSaveKeepsPrevious(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewParticipantRepository(db)

	require.NoError(t, repo.SaveAll(ctx, map[string]session.Participant{
		"1": {ID: "1", AccessCode: "10001", Registered: true},
	}))

	err := repo.SaveAll(ctx, map[string]session.Participant{
		"1": {ID: "1", AccessCode: "10001", Registered: true},
		"2": {ID: "2", AccessCode: "10001", Registered: true},
	})
	require.Error(t, err)

	out, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1)
}
