package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/saidjob/olympiad/internal/domain/activity"
	"github.com/stretchr/testify/require"
)

func TestActivityRepository_LogList(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	repo := NewActivityRepository(db)
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	entry1 := &activity.ActivityEntry{
		ID:            "a1",
		ParticipantID: "42",
		ActorID:       "42",
		ActivityType:  activity.TypeRegistered,
		Summary:       "participant registered",
		CreatedAt:     base,
	}
	entry2 := &activity.ActivityEntry{
		ID:            "a2",
		ParticipantID: "42",
		ActorID:       "42",
		ActivityType:  activity.TypeTaskIssued,
		Summary:       "task bundle issued",
		Details:       `{"issued_at":"2025-03-01T09:05:00Z"}`,
		CreatedAt:     base.Add(5 * time.Minute),
	}

	require.NoError(t, repo.Log(ctx, entry1))
	require.NoError(t, repo.Log(ctx, entry2))

	entries, err := repo.List(ctx, activity.ListActivityOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, entry2.ActivityType, entries[0].ActivityType)
	require.Equal(t, entry1.ActivityType, entries[1].ActivityType)
	require.Equal(t, entry2.Details, entries[0].Details)
}

func TestActivityRepository_Filters(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	repo := NewActivityRepository(db)
	require.NoError(t, repo.Log(ctx, &activity.ActivityEntry{
		ID:            "a1",
		ParticipantID: "1",
		ActorID:       "99",
		ActivityType:  activity.TypeScoreSet,
		Summary:       "score set",
		CreatedAt:     time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, repo.Log(ctx, &activity.ActivityEntry{
		ID:            "a2",
		ParticipantID: "2",
		ActivityType:  activity.TypeWindowExpired,
		Summary:       "solution window expired",
		CreatedAt:     time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}))

	participant := "1"
	scoreSet := activity.TypeScoreSet
	entries, err := repo.List(ctx, activity.ListActivityOptions{ParticipantID: &participant, ActivityType: &scoreSet})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "99", entries[0].ActorID)

	expired := activity.TypeWindowExpired
	entries, err = repo.List(ctx, activity.ListActivityOptions{ParticipantID: &participant, ActivityType: &expired})
	require.NoError(t, err)
	require.Len(t, entries, 0)

	entries, err = repo.List(ctx, activity.ListActivityOptions{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "a1", entries[0].ID)
}
