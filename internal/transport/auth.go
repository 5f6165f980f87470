package transport

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// ErrUnauthorized indicates invalid or missing credentials.
var ErrUnauthorized = errors.New("unauthorized")

type organizerKey struct{}

// OrganizerResolver resolves an organizer ID from a bearer token.
type OrganizerResolver interface {
	ResolveOrganizer(ctx context.Context, token string) (string, error)
}

// OrganizerFromContext returns the authenticated organizer ID, if present.
func OrganizerFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(organizerKey{}).(string)
	return id, ok
}

// AuthMiddleware rejects requests without a bearer token that resolves to an
// organizer. Rejections are JSON-RPC error bodies with status 401.
func AuthMiddleware(resolver OrganizerResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				unauthorized(w, "missing bearer token")
				return
			}

			id, err := resolver.ResolveOrganizer(r.Context(), token)
			if err != nil || id == "" {
				unauthorized(w, "invalid bearer token")
				return
			}

			ctx := context.WithValue(r.Context(), organizerKey{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="olympiad"`)
	WriteError(w, http.StatusUnauthorized, nil, ErrUnauthorizedCode, message)
}
