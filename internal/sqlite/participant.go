package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/saidjob/olympiad/internal/domain/session"
)

// ParticipantRepository implements session.Store for SQLite
type ParticipantRepository struct {
	db *DB
}

// NewParticipantRepository creates a new ParticipantRepository
func NewParticipantRepository(db *DB) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

// LoadAll returns every participant record keyed by identifier
func (r *ParticipantRepository) LoadAll(ctx context.Context) (map[string]session.Participant, error) {
	query := `
		SELECT
			id, access_code, registered, task_issued_at, solution_submitted,
			timer_active, username_checked, score
		FROM participants
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}
	defer rows.Close()

	out := make(map[string]session.Participant)
	for rows.Next() {
		var p session.Participant
		var code sql.NullString
		var issuedAt sql.NullTime
		if err := rows.Scan(
			&p.ID,
			&code,
			&p.Registered,
			&issuedAt,
			&p.SolutionSubmitted,
			&p.TimerActive,
			&p.UsernameChecked,
			&p.Score,
		); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		if code.Valid {
			p.AccessCode = code.String
		}
		if issuedAt.Valid {
			t := issuedAt.Time.UTC()
			p.TaskIssuedAt = &t
		}
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating participant rows: %w", err)
	}
	return out, nil
}

// SaveAll replaces the participants table with sessions in one transaction
func (r *ParticipantRepository) SaveAll(ctx context.Context, sessions map[string]session.Participant) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM participants`); err != nil {
		return fmt.Errorf("failed to clear participants: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO participants (
			id, access_code, registered, task_issued_at, solution_submitted,
			timer_active, username_checked, score
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for id, p := range sessions {
		var code sql.NullString
		if p.AccessCode != "" {
			code = sql.NullString{String: p.AccessCode, Valid: true}
		}
		var issuedAt sql.NullTime
		if p.TaskIssuedAt != nil {
			issuedAt = sql.NullTime{Time: p.TaskIssuedAt.UTC(), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			id,
			code,
			boolInt(p.Registered),
			issuedAt,
			boolInt(p.SolutionSubmitted),
			boolInt(p.TimerActive),
			boolInt(p.UsernameChecked),
			p.Score,
		); err != nil {
			return fmt.Errorf("failed to insert participant %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit participants: %w", err)
	}
	return nil
}
