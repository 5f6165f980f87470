package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/saidjob/olympiad/internal/repository"
	"github.com/stretchr/testify/require"
)

func TestOrganizerFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "admin_ids.txt")
	store := NewOrganizerFile(path)

	ids, err := store.LoadOrganizers(ctx)
	require.NoError(t, err)
	require.Empty(t, ids)

	require.NoError(t, os.WriteFile(path, []byte("111\n\n 222 \n"), 0o600))
	ids, err = store.LoadOrganizers(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"111", "222"}, ids)

	require.NoError(t, store.SaveOrganizers(ctx, []string{"111", "222", "333"}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "111\n222\n333\n", string(data))
}

func TestArtifactDir(t *testing.T) {
	ctx := context.Background()
	store := NewArtifactDir(filepath.Join(t.TempDir(), "solutions"))

	ok, err := store.Exists(ctx, "@alice-result.pdf")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = store.Read(ctx, "@alice-result.pdf")
	require.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, store.Persist(ctx, "@alice-result.pdf", []byte("v1")))
	require.NoError(t, store.Persist(ctx, "@alice-result.pdf", []byte("v2")))

	data, err := store.Read(ctx, "@alice-result.pdf")
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), data)

	for _, bad := range []string{"", "../escape.pdf", "sub/dir.pdf", ".hidden"} {
		require.ErrorIs(t, store.Persist(ctx, bad, nil), repository.ErrInvalidInput, bad)
	}
}

func TestTaskBundle(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tasks.pdf")

	_, err := NewTaskBundle(path, "Good luck").Bundle(ctx)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("%PDF"), 0o644))
	doc, err := NewTaskBundle(path, "Good luck").Bundle(ctx)
	require.NoError(t, err)
	require.Equal(t, "tasks.pdf", doc.Name)
	require.Equal(t, "Good luck", doc.Caption)
	require.Equal(t, []byte("%PDF"), doc.Content)
}
