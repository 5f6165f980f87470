package sqlite

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// ErrUnknownToken indicates no API key matches the presented token.
var ErrUnknownToken = errors.New("unknown api token")

// APIKeyRepository stores organizer console tokens as sha256 digests.
type APIKeyRepository struct {
	db  *DB
	now func() time.Time
}

// NewAPIKeyRepository creates a new APIKeyRepository
func NewAPIKeyRepository(db *DB) *APIKeyRepository {
	return &APIKeyRepository{db: db, now: time.Now}
}

// Issue mints a random token for organizerID and stores its digest. The
// plaintext token is returned once and never stored.
func (r *APIKeyRepository) Issue(ctx context.Context, organizerID, description string) (string, error) {
	if organizerID == "" {
		return "", fmt.Errorf("organizer id is required")
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	token := hex.EncodeToString(buf)

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO api_keys (key_hash, organizer_id, created_at, description) VALUES (?, ?, ?, ?)`,
		HashToken(token), organizerID, r.now().UTC(), description)
	if err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("token collision, retry: %w", err)
		}
		return "", fmt.Errorf("failed to store api key: %w", err)
	}
	return token, nil
}

// ResolveOrganizer returns the organizer owning token and stamps last_used.
func (r *APIKeyRepository) ResolveOrganizer(ctx context.Context, token string) (string, error) {
	hash := HashToken(token)
	var organizerID string
	err := r.db.QueryRowContext(ctx, `SELECT organizer_id FROM api_keys WHERE key_hash = ?`, hash).Scan(&organizerID)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && organizerID == "") {
		return "", ErrUnknownToken
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve api key: %w", err)
	}
	_, _ = r.db.ExecContext(ctx, `UPDATE api_keys SET last_used = ? WHERE key_hash = ?`, r.now().UTC(), hash)
	return organizerID, nil
}

// HashToken returns the hex sha256 digest stored for token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
