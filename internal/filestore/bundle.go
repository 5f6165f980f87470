package filestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/saidjob/olympiad/internal/domain/session"
)

// TaskBundle serves the task document from disk. The file is re-read on
// every request so organizers can swap it while the bot runs.
type TaskBundle struct {
	path    string
	caption string
}

// NewTaskBundle returns a task source for path.
func NewTaskBundle(path, caption string) *TaskBundle {
	return &TaskBundle{path: path, caption: caption}
}

// Bundle loads the task document.
func (b *TaskBundle) Bundle(ctx context.Context) (session.Document, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		return session.Document{}, fmt.Errorf("read task bundle: %w", err)
	}
	return session.Document{
		Name:    filepath.Base(b.path),
		Content: data,
		Caption: b.caption,
	}, nil
}
