package mcp

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/saidjob/olympiad/internal/domain/activity"
	"github.com/saidjob/olympiad/internal/domain/session"
)

// tools binds tool handlers to the domain services.
type tools struct {
	sessions   SessionConsole
	organizers OrganizerConsole
	activity   ActivityService
}

func registerTools(server *sdkmcp.Server, svc Services) {
	t := &tools{sessions: svc.Sessions, organizers: svc.Organizers, activity: svc.Activity}

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_participants",
		Description: "List registered participants with their access codes, stage and score",
	}, t.listParticipants)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_submissions",
		Description: "List participants whose solution was accepted",
	}, t.listSubmissions)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_scores",
		Description: "List participants with points, highest first",
	}, t.listScores)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "set_score",
		Description: "Record the points of a participant, by id or display handle",
	}, t.setScore)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "delete_participant",
		Description: "Remove a participant record and cancel any running timer",
	}, t.deleteParticipant)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "add_organizer",
		Description: "Grant organizer rights to a numeric chat id",
	}, t.addOrganizer)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_solution",
		Description: "Fetch the stored solution of the participant with the given access code",
	}, t.getSolution)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "event_status",
		Description: "Report the olympiad phase, time to the next boundary and participant counts",
	}, t.eventStatus)
	if t.activity != nil {
		sdkmcp.AddTool(server, &sdkmcp.Tool{
			Name:        "recent_activity",
			Description: "List recent journal entries, newest first, optionally filtered",
		}, t.recentActivity)
	}
}

// caller returns the acting organizer or ErrNotAuthorized.
func (t *tools) caller(ctx context.Context) (string, error) {
	id := organizerID(ctx)
	if id == "" || !t.organizers.IsOrganizer(id) {
		return "", mapError(session.ErrNotAuthorized)
	}
	return id, nil
}

func (t *tools) resolve(ctx context.Context, ref ParticipantRef) (string, error) {
	if id := strings.TrimSpace(ref.ParticipantID); id != "" {
		return id, nil
	}
	if strings.TrimSpace(ref.Handle) == "" {
		return "", &APIError{Code: "INVALID_INPUT", Message: "participant_id or handle is required"}
	}
	p, err := t.sessions.FindByHandle(ctx, ref.Handle)
	if err != nil {
		return "", mapError(err)
	}
	return p.ID, nil
}

func (t *tools) listParticipants(ctx context.Context, _ *sdkmcp.CallToolRequest, _ EmptyInput) (*sdkmcp.CallToolResult, ListParticipantsResult, error) {
	if _, err := t.caller(ctx); err != nil {
		return nil, ListParticipantsResult{}, err
	}
	summaries := t.sessions.ListParticipants(ctx)
	out := ListParticipantsResult{Participants: make([]ParticipantView, 0, len(summaries))}
	for _, s := range summaries {
		out.Participants = append(out.Participants, participantView(s))
	}
	return nil, out, nil
}

func (t *tools) listSubmissions(ctx context.Context, _ *sdkmcp.CallToolRequest, _ EmptyInput) (*sdkmcp.CallToolResult, ListSubmissionsResult, error) {
	if _, err := t.caller(ctx); err != nil {
		return nil, ListSubmissionsResult{}, err
	}
	subs := t.sessions.ListSubmissions(ctx)
	out := ListSubmissionsResult{Submissions: make([]SubmissionView, 0, len(subs))}
	for _, s := range subs {
		out.Submissions = append(out.Submissions, SubmissionView(s))
	}
	return nil, out, nil
}

func (t *tools) listScores(ctx context.Context, _ *sdkmcp.CallToolRequest, _ EmptyInput) (*sdkmcp.CallToolResult, ListScoresResult, error) {
	if _, err := t.caller(ctx); err != nil {
		return nil, ListScoresResult{}, err
	}
	scores := t.sessions.ListScores(ctx)
	out := ListScoresResult{Scores: make([]ScoreView, 0, len(scores))}
	for _, s := range scores {
		out.Scores = append(out.Scores, ScoreView{
			ParticipantID: s.ID,
			Handle:        s.Handle,
			AccessCode:    s.AccessCode,
			Score:         s.Score,
		})
	}
	return nil, out, nil
}

func (t *tools) setScore(ctx context.Context, _ *sdkmcp.CallToolRequest, in SetScoreInput) (*sdkmcp.CallToolResult, SetScoreResult, error) {
	actor, err := t.caller(ctx)
	if err != nil {
		return nil, SetScoreResult{}, err
	}
	id, err := t.resolve(ctx, in.ref())
	if err != nil {
		return nil, SetScoreResult{}, err
	}
	if err := t.sessions.SetScore(ctx, id, actor, in.Score); err != nil {
		return nil, SetScoreResult{}, mapError(err)
	}
	return nil, SetScoreResult{ParticipantID: id, Score: in.Score}, nil
}

func (t *tools) deleteParticipant(ctx context.Context, _ *sdkmcp.CallToolRequest, in DeleteParticipantInput) (*sdkmcp.CallToolResult, DeleteParticipantResult, error) {
	actor, err := t.caller(ctx)
	if err != nil {
		return nil, DeleteParticipantResult{}, err
	}
	id, err := t.resolve(ctx, in.ref())
	if err != nil {
		return nil, DeleteParticipantResult{}, err
	}
	if err := t.sessions.DeleteParticipant(ctx, id, actor); err != nil {
		return nil, DeleteParticipantResult{}, mapError(err)
	}
	return nil, DeleteParticipantResult{ParticipantID: id, Deleted: true}, nil
}

func (t *tools) addOrganizer(ctx context.Context, _ *sdkmcp.CallToolRequest, in AddOrganizerInput) (*sdkmcp.CallToolResult, AddOrganizerResult, error) {
	actor, err := t.caller(ctx)
	if err != nil {
		return nil, AddOrganizerResult{}, err
	}
	if err := t.organizers.Add(ctx, actor, in.OrganizerID); err != nil {
		return nil, AddOrganizerResult{}, mapError(err)
	}
	return nil, AddOrganizerResult{Organizers: t.organizers.List()}, nil
}

func (t *tools) getSolution(ctx context.Context, _ *sdkmcp.CallToolRequest, in GetSolutionInput) (*sdkmcp.CallToolResult, GetSolutionResult, error) {
	actor, err := t.caller(ctx)
	if err != nil {
		return nil, GetSolutionResult{}, err
	}
	doc, err := t.sessions.SolutionByCode(ctx, actor, in.AccessCode)
	if err != nil {
		return nil, GetSolutionResult{}, mapError(err)
	}
	out := GetSolutionResult{
		Name:          doc.Name,
		Size:          len(doc.Content),
		ContentBase64: base64.StdEncoding.EncodeToString(doc.Content),
	}
	// Keep the text block short; the payload travels in structured content.
	res := &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: fmt.Sprintf("%s (%d bytes)", doc.Name, len(doc.Content))}},
	}
	return res, out, nil
}

func (t *tools) eventStatus(ctx context.Context, _ *sdkmcp.CallToolRequest, _ EmptyInput) (*sdkmcp.CallToolResult, EventStatusResult, error) {
	if _, err := t.caller(ctx); err != nil {
		return nil, EventStatusResult{}, err
	}
	phase, left := t.sessions.Phase()
	out := EventStatusResult{
		Phase:            string(phase),
		RemainingSeconds: int64(left / time.Second),
		WindowSeconds:    int64(t.sessions.Window() / time.Second),
	}
	for _, s := range t.sessions.ListParticipants(ctx) {
		out.Registered++
		if s.SolutionSubmitted {
			out.Submitted++
		}
		if s.TimerActive {
			out.Solving++
		}
	}
	return nil, out, nil
}

func (t *tools) recentActivity(ctx context.Context, _ *sdkmcp.CallToolRequest, in RecentActivityInput) (*sdkmcp.CallToolResult, RecentActivityResult, error) {
	if _, err := t.caller(ctx); err != nil {
		return nil, RecentActivityResult{}, err
	}
	opts := activity.ListActivityOptions{Limit: in.Limit, Offset: in.Offset}
	if in.ParticipantID != "" {
		opts.ParticipantID = &in.ParticipantID
	}
	if in.ActivityType != "" {
		typ := activity.ActivityType(in.ActivityType)
		opts.ActivityType = &typ
	}
	entries, err := t.activity.GetRecentActivity(ctx, opts)
	if err != nil {
		return nil, RecentActivityResult{}, mapError(err)
	}
	out := RecentActivityResult{Entries: make([]ActivityEntryView, 0, len(entries))}
	for _, e := range entries {
		out.Entries = append(out.Entries, ActivityEntryView{
			Timestamp:     e.CreatedAt.UTC().Format(time.RFC3339),
			Type:          e.ActivityType,
			ParticipantID: e.ParticipantID,
			ActorID:       e.ActorID,
			Summary:       e.Summary,
			Details:       e.Details,
		})
	}
	return nil, out, nil
}
