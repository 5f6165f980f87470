package bot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/saidjob/olympiad/internal/domain/organizer"
	"github.com/saidjob/olympiad/internal/domain/session"
)

// scoreLine matches "@handle - [20] points"; anything after the bracket is ignored.
var scoreLine = regexp.MustCompile(`^@?([A-Za-z0-9_]+)\s*-\s*\[(\d+)\]`)

func (d *Dispatcher) promptOrganizer(ctx context.Context, id string, step Step, prompt string) {
	if !d.organizers.IsOrganizer(id) {
		d.reply(ctx, id, msgNoRights)
		return
	}
	d.state.Set(id, step)
	d.reply(ctx, id, prompt)
}

func (d *Dispatcher) cmdRegisteredUsers(ctx context.Context, id string) {
	if !d.organizers.IsOrganizer(id) {
		d.reply(ctx, id, msgNoRights)
		return
	}
	var b strings.Builder
	b.WriteString("Registered participants:\n")
	for _, s := range d.engine.ListParticipants(ctx) {
		fmt.Fprintf(&b, "ID: %s, Code: %s, Username: %s, Stage: %s\n", s.ID, s.AccessCode, handleOrPlaceholder(s.Handle), s.Stage)
	}
	d.reply(ctx, id, strings.TrimRight(b.String(), "\n"))
}

func (d *Dispatcher) onDeleteHandles(ctx context.Context, id, text string) {
	deleted := 0
	for _, line := range strings.Split(text, "\n") {
		handle := strings.TrimSpace(line)
		if handle == "" {
			continue
		}
		p, err := d.engine.FindByHandle(ctx, handle)
		if err != nil {
			continue
		}
		if err := d.engine.DeleteParticipant(ctx, p.ID, id); err != nil {
			if errors.Is(err, session.ErrNotAuthorized) {
				d.reply(ctx, id, msgNoRights)
				return
			}
			d.logger.Warn("failed to delete participant", "participant_id", p.ID, "error", err)
			continue
		}
		deleted++
	}
	d.reply(ctx, id, fmt.Sprintf("Removed %d participants.", deleted))
}

func (d *Dispatcher) cmdResults(ctx context.Context, id string) {
	if !d.organizers.IsOrganizer(id) {
		d.reply(ctx, id, msgNoRights)
		return
	}
	subs := d.engine.ListSubmissions(ctx)
	if len(subs) == 0 {
		d.reply(ctx, id, msgNoSubmissions)
		return
	}
	var b strings.Builder
	b.WriteString("Codes of participants who sent solutions:\n")
	for _, s := range subs {
		fmt.Fprintf(&b, "Code: %s\n", s.AccessCode)
	}
	b.WriteString("\n" + msgAskSolution)
	d.state.Set(id, StepSolutionCode)
	d.reply(ctx, id, b.String())
}

func (d *Dispatcher) onSolutionCode(ctx context.Context, id, code string) {
	doc, err := d.engine.SolutionByCode(ctx, id, code)
	switch {
	case err == nil:
		doc.Caption = "Solution of the participant with code " + strings.TrimSpace(code)
		if err := d.notifier.SendDocument(ctx, id, doc); err != nil {
			d.logger.Warn("failed to send solution", "organizer_id", id, "error", err)
		}
	case errors.Is(err, session.ErrParticipantNotFound), errors.Is(err, session.ErrSolutionNotFound):
		d.reply(ctx, id, msgSolutionAbsent)
	default:
		d.replyError(ctx, id, err, msgStorageFailed)
	}
}

func (d *Dispatcher) cmdResultOlymp(ctx context.Context, id string) {
	if !d.organizers.IsOrganizer(id) {
		d.reply(ctx, id, msgNoRights)
		return
	}
	var b strings.Builder
	b.WriteString("Participants:\n")
	for _, s := range d.engine.ListParticipants(ctx) {
		fmt.Fprintf(&b, "Code: %s, Username: %s\n", s.AccessCode, handleOrPlaceholder(s.Handle))
	}
	b.WriteString("\nTo set points send them like this:\n@username - [20] points")
	d.state.Set(id, StepScore)
	d.reply(ctx, id, b.String())
}

func (d *Dispatcher) onScore(ctx context.Context, id, text string) {
	m := scoreLine.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		d.reply(ctx, id, msgScoreFormat)
		return
	}
	points, err := strconv.Atoi(m[2])
	if err != nil {
		d.reply(ctx, id, msgScoreFormat)
		return
	}
	p, err := d.engine.FindByHandle(ctx, m[1])
	if err != nil {
		d.reply(ctx, id, msgUserNotFound)
		return
	}
	if err := d.engine.SetScore(ctx, p.ID, id, points); err != nil {
		d.replyError(ctx, id, err, msgStorageFailed)
		return
	}
	d.reply(ctx, id, fmt.Sprintf("Points for @%s set: %d", m[1], points))
}

func (d *Dispatcher) cmdListScores(ctx context.Context, id string) {
	if !d.organizers.IsOrganizer(id) {
		d.reply(ctx, id, msgNoRights)
		return
	}
	scores := d.engine.ListScores(ctx)
	if len(scores) == 0 {
		d.reply(ctx, id, msgNoScores)
		return
	}
	var b strings.Builder
	b.WriteString("Participants with points:\n")
	for _, s := range scores {
		fmt.Fprintf(&b, "%s (code %s): %d\n", handleOrPlaceholder(s.Handle), s.AccessCode, s.Score)
	}
	d.reply(ctx, id, strings.TrimRight(b.String(), "\n"))
}

func (d *Dispatcher) onAddOrganizer(ctx context.Context, id, text string) {
	newID := strings.TrimSpace(text)
	err := d.organizers.Add(ctx, id, newID)
	switch {
	case err == nil:
		d.reply(ctx, id, fmt.Sprintf("User with ID %s is now an organizer.", newID))
	case errors.Is(err, organizer.ErrInvalidID):
		d.reply(ctx, id, msgBadOrganizerID)
	case errors.Is(err, organizer.ErrNotAuthorized):
		d.reply(ctx, id, msgNoRights)
	default:
		d.logger.Error("failed to add organizer", "actor_id", id, "error", err)
		d.reply(ctx, id, msgStorageFailed)
	}
}
