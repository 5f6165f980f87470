package mcp

import (
	"context"
	"log/slog"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/saidjob/olympiad/internal/domain/activity"
	"github.com/saidjob/olympiad/internal/domain/session"
)

// SessionConsole defines the session engine operations exposed to organizers.
type SessionConsole interface {
	ListParticipants(ctx context.Context) []session.Summary
	ListSubmissions(ctx context.Context) []session.Submission
	ListScores(ctx context.Context) []session.Summary
	FindByHandle(ctx context.Context, handle string) (session.Participant, error)
	SetScore(ctx context.Context, id, organizerID string, score int) error
	DeleteParticipant(ctx context.Context, id, organizerID string) error
	SolutionByCode(ctx context.Context, organizerID, code string) (session.Document, error)
	Phase() (session.EventPhase, time.Duration)
	Window() time.Duration
}

// OrganizerConsole defines organizer registry operations needed by MCP.
type OrganizerConsole interface {
	IsOrganizer(id string) bool
	Add(ctx context.Context, actorID, newID string) error
	List() []string
}

// ActivityService defines activity operations needed by MCP.
type ActivityService interface {
	GetRecentActivity(ctx context.Context, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error)
}

// Services contains all domain services needed by MCP.
type Services struct {
	Sessions   SessionConsole
	Organizers OrganizerConsole
	Activity   ActivityService
}

// Config contains server configuration.
type Config struct {
	Services      Services
	Resolver      OrganizerResolver
	TransportMode string // "stdio" or "http"
	// OrganizerID is the acting organizer in stdio mode.
	OrganizerID string
	Version     string
	Logger      *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "olympiad",
		Version: version,
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	registerDocResources(server)

	// Middleware added later runs first, so identity is resolved before
	// traffic is logged.
	server.AddReceivingMiddleware(trafficLoggingMiddleware(cfg.Logger, "inbound"))
	if cfg.TransportMode == "stdio" {
		server.AddReceivingMiddleware(fixedOrganizerMiddleware(cfg.OrganizerID))
	} else {
		server.AddReceivingMiddleware(authMiddleware(cfg.Resolver))
	}
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	registerTools(server, cfg.Services)

	return server
}
