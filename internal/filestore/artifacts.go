package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/saidjob/olympiad/internal/repository"
)

var (
	_ repository.ArtifactRepository    = (*ArtifactDir)(nil)
	_ repository.ParticipantRepository = (*StateStore)(nil)
	_ repository.OrganizerRepository   = (*OrganizerFile)(nil)
)

// ArtifactDir stores submitted solutions as files in one directory.
type ArtifactDir struct {
	dir string
}

// NewArtifactDir returns a store rooted at dir. The directory is created on
// first write.
func NewArtifactDir(dir string) *ArtifactDir {
	return &ArtifactDir{dir: dir}
}

// Persist writes data under name, replacing an earlier submission.
func (a *ArtifactDir) Persist(ctx context.Context, name string, data []byte) error {
	path, err := a.resolve(name)
	if err != nil {
		return err
	}
	if err := writeFileAtomicDurable(path, data, 0o644); err != nil {
		return fmt.Errorf("write artifact %s: %w", name, err)
	}
	return nil
}

// Exists reports whether an artifact called name is stored.
func (a *ArtifactDir) Exists(ctx context.Context, name string) (bool, error) {
	path, err := a.resolve(name)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat artifact %s: %w", name, err)
	}
	return true, nil
}

// Read returns the stored artifact.
func (a *ArtifactDir) Read(ctx context.Context, name string) ([]byte, error) {
	path, err := a.resolve(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("artifact %s: %w", name, repository.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", name, err)
	}
	return data, nil
}

// resolve keeps names inside the artifact directory.
func (a *ArtifactDir) resolve(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("artifact name %q: %w", name, repository.ErrInvalidInput)
	}
	return filepath.Join(a.dir, name), nil
}
