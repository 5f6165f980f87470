// Package organizer keeps the set of identifiers allowed to run privileged
// olympiad operations.
package organizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/saidjob/olympiad/internal/domain/activity"
)

var (
	// ErrNotAuthorized indicates the actor is not an organizer.
	ErrNotAuthorized = errors.New("not authorized")
	// ErrInvalidID indicates a malformed organizer identifier.
	ErrInvalidID = errors.New("invalid organizer identifier")
)

// Store persists the organizer set.
type Store interface {
	LoadOrganizers(ctx context.Context) ([]string, error)
	SaveOrganizers(ctx context.Context, ids []string) error
}

// Recorder journals organizer changes.
type Recorder interface {
	LogActivity(ctx context.Context, entry *activity.ActivityEntry) error
}

// Registry is the in-memory organizer set backed by a Store. Bootstrap
// identifiers from configuration are always members.
type Registry struct {
	store    Store
	recorder Recorder
	logger   *slog.Logger

	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewRegistry creates a registry seeded with bootstrap identifiers.
func NewRegistry(store Store, bootstrap []string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	ids := make(map[string]struct{}, len(bootstrap))
	for _, id := range bootstrap {
		if id = strings.TrimSpace(id); id != "" {
			ids[id] = struct{}{}
		}
	}
	return &Registry{store: store, logger: logger, ids: ids}
}

// WithRecorder journals every successful Add through rec.
func (r *Registry) WithRecorder(rec Recorder) *Registry {
	r.recorder = rec
	return r
}

// Load merges the durable set into the registry.
func (r *Registry) Load(ctx context.Context) error {
	stored, err := r.store.LoadOrganizers(ctx)
	if err != nil {
		return fmt.Errorf("loading organizers: %w", err)
	}
	r.mu.Lock()
	for _, id := range stored {
		if id = strings.TrimSpace(id); id != "" {
			r.ids[id] = struct{}{}
		}
	}
	n := len(r.ids)
	r.mu.Unlock()
	r.logger.Info("organizers loaded", "count", n)
	return nil
}

// IsOrganizer reports membership.
func (r *Registry) IsOrganizer(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ids[id]
	return ok
}

// List returns the members in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.ids))
	for id := range r.ids {
		out = append(out, id)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Add makes newID an organizer on behalf of actorID. Identifiers must be
// numeric. Adding an existing member is a no-op.
func (r *Registry) Add(ctx context.Context, actorID, newID string) error {
	if !r.IsOrganizer(actorID) {
		return ErrNotAuthorized
	}
	newID = strings.TrimSpace(newID)
	if _, err := strconv.ParseInt(newID, 10, 64); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidID, newID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ids[newID]; ok {
		return nil
	}

	next := make([]string, 0, len(r.ids)+1)
	for id := range r.ids {
		next = append(next, id)
	}
	next = append(next, newID)
	sort.Strings(next)

	if err := r.store.SaveOrganizers(ctx, next); err != nil {
		return fmt.Errorf("saving organizers: %w", err)
	}
	r.ids[newID] = struct{}{}
	r.logger.Info("organizer added", "organizer_id", newID, "actor_id", actorID)

	if r.recorder != nil {
		entry := &activity.ActivityEntry{
			ParticipantID: newID,
			ActorID:       actorID,
			ActivityType:  activity.TypeOrganizerAdded,
			Summary:       "organizer added",
		}
		if err := r.recorder.LogActivity(ctx, entry); err != nil {
			r.logger.Warn("failed to journal activity", "type", entry.ActivityType, "error", err)
		}
	}
	return nil
}
