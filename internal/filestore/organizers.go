package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// OrganizerFile stores organizer identifiers one per line.
type OrganizerFile struct {
	path string
	mu   sync.Mutex
}

// NewOrganizerFile returns a store backed by path.
func NewOrganizerFile(path string) *OrganizerFile {
	return &OrganizerFile{path: path}
}

// LoadOrganizers reads the identifiers. A missing file is an empty set.
func (f *OrganizerFile) LoadOrganizers(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read organizers file: %w", err)
	}

	var ids []string
	for _, line := range strings.Split(string(data), "\n") {
		if id := strings.TrimSpace(line); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// SaveOrganizers rewrites the file with ids.
func (f *OrganizerFile) SaveOrganizers(ctx context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var b strings.Builder
	for _, id := range ids {
		b.WriteString(id)
		b.WriteByte('\n')
	}
	if err := writeFileAtomicDurable(f.path, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("write organizers file: %w", err)
	}
	return nil
}
