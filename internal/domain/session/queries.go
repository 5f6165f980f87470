package session

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Summary is the organizer view of one participant.
type Summary struct {
	Participant
	Handle string `json:"handle,omitempty"`
	Stage  Stage  `json:"stage"`
}

// Submission describes an accepted solution.
type Submission struct {
	ParticipantID string `json:"participant_id"`
	Handle        string `json:"handle,omitempty"`
	AccessCode    string `json:"access_code"`
	ArtifactName  string `json:"artifact_name"`
	Score         int    `json:"score"`
}

// ListParticipants returns registered participants ordered by identifier.
func (s *Service) ListParticipants(ctx context.Context) []Summary {
	var out []Summary
	for _, p := range s.snapshot() {
		if !p.Registered {
			continue
		}
		out = append(out, Summary{Participant: p, Handle: s.handle(ctx, p.ID), Stage: p.Stage()})
	}
	return out
}

// ListSubmissions returns participants whose solution was accepted.
func (s *Service) ListSubmissions(ctx context.Context) []Submission {
	var out []Submission
	for _, p := range s.snapshot() {
		if !p.SolutionSubmitted {
			continue
		}
		handle := s.handle(ctx, p.ID)
		out = append(out, Submission{
			ParticipantID: p.ID,
			Handle:        handle,
			AccessCode:    p.AccessCode,
			ArtifactName:  s.artifactName(ctx, p.ID, s.primaryExtension()),
			Score:         p.Score,
		})
	}
	return out
}

// ListScores returns participants with a positive score, highest first.
func (s *Service) ListScores(ctx context.Context) []Summary {
	var out []Summary
	for _, p := range s.snapshot() {
		if p.Score <= 0 {
			continue
		}
		out = append(out, Summary{Participant: p, Handle: s.handle(ctx, p.ID), Stage: p.Stage()})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// SolutionByCode returns the stored solution of the participant holding code.
func (s *Service) SolutionByCode(ctx context.Context, organizerID, code string) (Document, error) {
	if !s.isOrganizer(organizerID) {
		return Document{}, ErrNotAuthorized
	}
	code = strings.TrimSpace(code)
	var owner *Participant
	for _, p := range s.snapshot() {
		if code != "" && p.AccessCode == code {
			owner = &p
			break
		}
	}
	if owner == nil {
		return Document{}, ErrParticipantNotFound
	}
	if !owner.SolutionSubmitted {
		return Document{}, ErrSolutionNotFound
	}

	for _, ext := range s.cfg.AllowedExtensions {
		name := s.artifactName(ctx, owner.ID, strings.ToLower(ext))
		ok, err := s.artifacts.Exists(ctx, name)
		if err != nil {
			return Document{}, fmt.Errorf("checking artifact %s: %w", name, err)
		}
		if !ok {
			continue
		}
		data, err := s.artifacts.Read(ctx, name)
		if err != nil {
			return Document{}, fmt.Errorf("reading artifact %s: %w", name, err)
		}
		return Document{Name: name, Content: data, Caption: fmt.Sprintf("Solution of participant %s", owner.ID)}, nil
	}
	return Document{}, ErrSolutionNotFound
}

// FindByHandle resolves a display handle (with or without @) to a participant.
func (s *Service) FindByHandle(ctx context.Context, handle string) (Participant, error) {
	want := strings.ToLower(sanitizeHandle(handle))
	if want == "" {
		return Participant{}, ErrParticipantNotFound
	}
	for _, p := range s.snapshot() {
		if strings.ToLower(sanitizeHandle(s.handle(ctx, p.ID))) == want {
			return p, nil
		}
	}
	return Participant{}, ErrParticipantNotFound
}

// Remaining returns the time left in the participant's open window.
func (s *Service) Remaining(id string) (time.Duration, bool) {
	p, ok := s.get(id)
	if !ok || !p.TimerActive {
		return 0, false
	}
	deadline, _ := p.Deadline(s.cfg.Window)
	left := deadline.Sub(s.now())
	if left < 0 {
		left = 0
	}
	return left, true
}

func (s *Service) snapshot() []Participant {
	s.mu.RLock()
	out := make([]Participant, 0, len(s.sessions))
	for _, p := range s.sessions {
		out = append(out, p)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Service) handle(ctx context.Context, id string) string {
	if s.directory == nil {
		return ""
	}
	h, ok, err := s.directory.DisplayHandle(ctx, id)
	if err != nil || !ok {
		return ""
	}
	return h
}

func (s *Service) primaryExtension() string {
	return strings.ToLower(s.cfg.AllowedExtensions[0])
}
