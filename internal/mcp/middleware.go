package mcp

import (
	"context"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

type contextKey int

const organizerIDKey contextKey = iota

// organizerID extracts the acting organizer from context.
func organizerID(ctx context.Context) string {
	v, _ := ctx.Value(organizerIDKey).(string)
	return v
}

// WithOrganizer returns ctx carrying id as the acting organizer.
func WithOrganizer(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, organizerIDKey, id)
}

// OrganizerResolver resolves an organizer ID from a bearer token.
type OrganizerResolver interface {
	ResolveOrganizer(ctx context.Context, token string) (string, error)
}

// authMiddleware resolves the bearer token of every tool call to an organizer.
func authMiddleware(resolver OrganizerResolver) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			if !strings.HasPrefix(method, "tools/") && !strings.HasPrefix(method, "resources/") {
				return next(ctx, method, req)
			}
			if resolver == nil {
				return nil, fmt.Errorf("unauthorized: no token resolver configured")
			}

			extra := req.GetExtra()
			if extra == nil || extra.Header == nil {
				return nil, fmt.Errorf("unauthorized: missing headers")
			}

			auth := extra.Header.Get("Authorization")
			token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if token == "" {
				return nil, fmt.Errorf("unauthorized: missing bearer token")
			}

			id, err := resolver.ResolveOrganizer(ctx, token)
			if err != nil {
				return nil, fmt.Errorf("unauthorized: %w", err)
			}
			if id == "" {
				return nil, fmt.Errorf("unauthorized: invalid bearer token")
			}

			return next(WithOrganizer(ctx, id), method, req)
		}
	}
}

// fixedOrganizerMiddleware injects a configured organizer.
func fixedOrganizerMiddleware(id string) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			return next(WithOrganizer(ctx, id), method, req)
		}
	}
}
