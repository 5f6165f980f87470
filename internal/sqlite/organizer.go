package sqlite

import (
	"context"
	"fmt"
)

// OrganizerRepository implements organizer.Store for SQLite
type OrganizerRepository struct {
	db *DB
}

// NewOrganizerRepository creates a new OrganizerRepository
func NewOrganizerRepository(db *DB) *OrganizerRepository {
	return &OrganizerRepository{db: db}
}

// LoadOrganizers returns the stored organizer identifiers in insertion order
func (r *OrganizerRepository) LoadOrganizers(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM organizers ORDER BY added_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to load organizers: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan organizer: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating organizer rows: %w", err)
	}
	return ids, nil
}

// SaveOrganizers inserts any identifiers not yet stored. The set is append-only.
func (r *OrganizerRepository) SaveOrganizers(ctx context.Context, ids []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO organizers (id) VALUES (?)`, id); err != nil {
			return fmt.Errorf("failed to save organizer %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit organizers: %w", err)
	}
	return nil
}
