package session

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/saidjob/olympiad/internal/domain/activity"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/saidjob/olympiad/internal/domain/session"

// Config holds the olympiad rules enforced by the service.
type Config struct {
	// Window is the time a participant has between task issuance and submission.
	Window time.Duration
	// SecretHash is the bcrypt hash of the registration password.
	SecretHash []byte
	// AllowedExtensions lists accepted solution file extensions, lower case with dot.
	AllowedExtensions []string
	// Period bounds task issuance and submissions.
	Period Period
}

// Dependencies are the collaborators of the service. Store, Notifier, Tasks,
// Artifacts and Timers are required.
type Dependencies struct {
	Store      Store
	Notifier   Notifier
	Directory  Directory
	Artifacts  ArtifactStore
	Tasks      TaskSource
	Timers     Timers
	Organizers Authorizer
	Activity   ActivityRecorder
	Codes      CodeGenerator
	Now        func() time.Time
}

// Service is the participant session engine. It is the only component that
// mutates participant records; every mutation is written through the store
// before it becomes visible.
type Service struct {
	cfg        Config
	store      Store
	notifier   Notifier
	directory  Directory
	artifacts  ArtifactStore
	tasks      TaskSource
	timers     Timers
	organizers Authorizer
	activity   ActivityRecorder
	codes      CodeGenerator
	now        func() time.Time
	logger     *slog.Logger
	tracer     trace.Tracer

	locks keyedMutex

	// mu guards sessions and serializes SaveAll calls.
	mu       sync.RWMutex
	sessions map[string]Participant
}

// NewService creates a new session service with an empty participant table.
// Call Load before serving requests.
func NewService(cfg Config, deps Dependencies, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.Codes == nil {
		deps.Codes = NewRandomCodes()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if len(cfg.AllowedExtensions) == 0 {
		cfg.AllowedExtensions = []string{".pdf"}
	}
	return &Service{
		cfg:        cfg,
		store:      deps.Store,
		notifier:   deps.Notifier,
		directory:  deps.Directory,
		artifacts:  deps.Artifacts,
		tasks:      deps.Tasks,
		timers:     deps.Timers,
		organizers: deps.Organizers,
		activity:   deps.Activity,
		codes:      deps.Codes,
		now:        deps.Now,
		logger:     logger,
		tracer:     otel.Tracer(tracerName),
		sessions:   make(map[string]Participant),
	}
}

// Window returns the configured solution window.
func (s *Service) Window() time.Duration {
	return s.cfg.Window
}

// Load replaces the in-memory table with the durable state.
func (s *Service) Load(ctx context.Context) error {
	sessions, err := s.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("loading sessions: %w", err)
	}
	if sessions == nil {
		sessions = make(map[string]Participant)
	}
	seen := make(map[string]string)
	for id, p := range sessions {
		if p.TimerActive && (p.TaskIssuedAt == nil || p.SolutionSubmitted) {
			s.logger.Warn("inconsistent session record", "participant_id", id, "timer_active", p.TimerActive, "solution_submitted", p.SolutionSubmitted)
		}
		if p.AccessCode == "" {
			continue
		}
		if other, dup := seen[p.AccessCode]; dup {
			s.logger.Warn("duplicate access code", "code", p.AccessCode, "participant_id", id, "other_participant_id", other)
		}
		seen[p.AccessCode] = id
	}

	s.mu.Lock()
	s.sessions = sessions
	s.mu.Unlock()
	s.logger.Info("sessions loaded", "count", len(sessions))
	return nil
}

// Restore hands every open window back to the scheduler. Windows whose
// deadline passed while the process was down expire immediately.
func (s *Service) Restore(ctx context.Context) int {
	s.mu.RLock()
	var pending []Countdown
	for id, p := range s.sessions {
		if !p.TimerActive || p.TaskIssuedAt == nil {
			continue
		}
		pending = append(pending, Countdown{
			ParticipantID: id,
			IssuedAt:      *p.TaskIssuedAt,
			Deadline:      p.TaskIssuedAt.Add(s.cfg.Window),
		})
	}
	s.mu.RUnlock()

	for _, c := range pending {
		s.timers.Start(c)
	}
	if len(pending) > 0 {
		s.logger.Info("restored solution windows", "count", len(pending))
	}
	return len(pending)
}

// EnsureParticipant creates an unregistered placeholder on first contact.
func (s *Service) EnsureParticipant(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidParticipant
	}
	unlock := s.locks.lock(id)
	defer unlock()

	if _, ok := s.get(id); ok {
		return nil
	}
	_, err := s.apply(ctx, id, func(map[string]Participant) (*Participant, error) {
		return &Participant{ID: id}, nil
	})
	return err
}

// Register validates the secret and assigns a fresh access code.
// UsernameChecked records whether the directory knew a display handle.
func (s *Service) Register(ctx context.Context, id, secret string) (result *Participant, err error) {
	ctx, span := s.startSpan(ctx, "session.Register", id)
	defer func() { endSpan(span, err) }()

	if id == "" {
		return nil, ErrInvalidParticipant
	}
	unlock := s.locks.lock(id)
	defer unlock()

	current, _ := s.get(id)
	if current.Registered {
		return nil, ErrAlreadyRegistered
	}
	if !secretMatches(s.cfg.SecretHash, secret) {
		return nil, ErrInvalidSecret
	}
	hasHandle := s.handle(ctx, id) != ""

	next, err := s.apply(ctx, id, func(sessions map[string]Participant) (*Participant, error) {
		code, err := s.codes.Generate(existingCodes(sessions))
		if err != nil {
			return nil, err
		}
		return &Participant{
			ID:              id,
			AccessCode:      code,
			Registered:      true,
			UsernameChecked: hasHandle,
			Score:           current.Score,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("participant registered", "participant_id", id)
	s.record(ctx, activity.TypeRegistered, id, id, "participant registered", nil)
	return next, nil
}

// IssueTask delivers the task bundle and opens a solution window.
func (s *Service) IssueTask(ctx context.Context, id, suppliedCode string) (result *Participant, err error) {
	ctx, span := s.startSpan(ctx, "session.IssueTask", id)
	defer func() { endSpan(span, err) }()

	unlock := s.locks.lock(id)
	defer unlock()

	current, ok := s.get(id)
	if !ok || !current.Registered {
		return nil, ErrNotRegistered
	}
	if current.TimerActive {
		return nil, ErrTimerActive
	}
	if subtle.ConstantTimeCompare([]byte(suppliedCode), []byte(current.AccessCode)) != 1 {
		return nil, ErrCodeMismatch
	}
	if !s.cfg.Period.Contains(s.now()) {
		return nil, ErrOutsideEventPeriod
	}

	bundle, err := s.tasks.Bundle(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading task bundle: %w", err)
	}
	if err := s.notifier.SendDocument(ctx, id, bundle); err != nil {
		return nil, fmt.Errorf("delivering task bundle: %w", err)
	}

	issuedAt := s.now()
	next, err := s.apply(ctx, id, func(map[string]Participant) (*Participant, error) {
		p := current
		p.TaskIssuedAt = &issuedAt
		p.SolutionSubmitted = false
		p.TimerActive = true
		return &p, nil
	})
	if err != nil {
		s.logger.Error("task bundle delivered but window not committed", "participant_id", id, "error", err)
		return nil, err
	}

	s.timers.Start(Countdown{
		ParticipantID: id,
		IssuedAt:      issuedAt,
		Deadline:      issuedAt.Add(s.cfg.Window),
	})
	s.logger.Info("task issued", "participant_id", id, "deadline", issuedAt.Add(s.cfg.Window))
	s.record(ctx, activity.TypeTaskIssued, id, id, "task bundle issued", map[string]any{
		"issued_at": issuedAt,
	})
	return next, nil
}

// SubmitSolution accepts a solution artifact inside the open window. A
// submission exactly at the deadline is accepted.
func (s *Service) SubmitSolution(ctx context.Context, id string, artifact Artifact) (result *Receipt, err error) {
	ctx, span := s.startSpan(ctx, "session.SubmitSolution", id)
	defer func() { endSpan(span, err) }()

	unlock := s.locks.lock(id)
	defer unlock()

	now := s.now()
	if !s.cfg.Period.Contains(now) {
		return nil, ErrOutsideEventPeriod
	}
	current, ok := s.get(id)
	if !ok || !current.Registered {
		return nil, ErrNotRegistered
	}
	if !current.TimerActive || current.TaskIssuedAt == nil {
		if current.SolutionSubmitted {
			return nil, ErrAlreadySubmitted
		}
		return nil, ErrTimerNotActive
	}
	ext, ok := s.allowedExtension(artifact.FileName)
	if !ok {
		return nil, ErrUnsupportedFormat
	}

	elapsed := now.Sub(*current.TaskIssuedAt)
	if elapsed > s.cfg.Window {
		if err := s.closeWindow(ctx, current, "submission after deadline"); err != nil {
			return nil, errors.Join(ErrDeadlineExceeded, err)
		}
		s.timers.Cancel(id)
		return nil, ErrDeadlineExceeded
	}

	if artifact.Fetch == nil {
		return nil, fmt.Errorf("artifact %q has no content", artifact.FileName)
	}
	data, err := artifact.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("downloading artifact: %w", err)
	}
	name := s.artifactName(ctx, id, ext)
	if err := s.artifacts.Persist(ctx, name, data); err != nil {
		return nil, fmt.Errorf("storing artifact: %w", err)
	}

	if _, err := s.apply(ctx, id, func(map[string]Participant) (*Participant, error) {
		p := current
		p.SolutionSubmitted = true
		p.TimerActive = false
		return &p, nil
	}); err != nil {
		return nil, err
	}
	s.timers.Cancel(id)

	s.logger.Info("solution submitted", "participant_id", id, "artifact", name, "elapsed", elapsed)
	s.record(ctx, activity.TypeSolutionSubmitted, id, id, "solution accepted", map[string]any{
		"artifact":        name,
		"elapsed_seconds": int64(elapsed / time.Second),
	})
	return &Receipt{ArtifactName: name, Elapsed: elapsed}, nil
}

// Expire closes the window opened at issuedAt if it is still open. It reports
// whether this call performed the terminal write; callers notify only then.
func (s *Service) Expire(ctx context.Context, id string, issuedAt time.Time) (expired bool, err error) {
	ctx, span := s.startSpan(ctx, "session.Expire", id)
	defer func() { endSpan(span, err) }()

	unlock := s.locks.lock(id)
	defer unlock()

	current, ok := s.get(id)
	if !ok || !current.TimerActive || current.SolutionSubmitted || current.TaskIssuedAt == nil {
		return false, nil
	}
	if !current.TaskIssuedAt.Equal(issuedAt) {
		return false, nil
	}
	if err := s.closeWindow(ctx, current, "solution window expired"); err != nil {
		return false, err
	}
	return true, nil
}

// Reevaluate re-checks an open window on participant interaction. A window
// past its deadline is closed (reported as expired); an open window without a
// live countdown gets a new one.
func (s *Service) Reevaluate(ctx context.Context, id string) (expired bool, err error) {
	unlock := s.locks.lock(id)
	defer unlock()

	current, ok := s.get(id)
	if !ok || !current.TimerActive || current.TaskIssuedAt == nil {
		return false, nil
	}
	if s.now().Sub(*current.TaskIssuedAt) > s.cfg.Window {
		if err := s.closeWindow(ctx, current, "window closed on re-evaluation"); err != nil {
			return false, err
		}
		s.timers.Cancel(id)
		return true, nil
	}
	if !s.timers.Active(id) {
		s.timers.Start(Countdown{
			ParticipantID: id,
			IssuedAt:      *current.TaskIssuedAt,
			Deadline:      current.TaskIssuedAt.Add(s.cfg.Window),
		})
		s.logger.Info("countdown resumed", "participant_id", id)
	}
	return false, nil
}

// IsLocked reports whether the participant has an open solution window.
func (s *Service) IsLocked(id string) bool {
	p, ok := s.get(id)
	return ok && p.TimerActive
}

// Get returns a copy of the participant record.
func (s *Service) Get(id string) (Participant, bool) {
	return s.get(id)
}

// ParticipantIDs returns all known identifiers in sorted order.
func (s *Service) ParticipantIDs() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Phase reports the event phase at the current time.
func (s *Service) Phase() (EventPhase, time.Duration) {
	return s.cfg.Period.Phase(s.now())
}

// SetScore stores an organizer-assigned score.
func (s *Service) SetScore(ctx context.Context, id, organizerID string, score int) (err error) {
	ctx, span := s.startSpan(ctx, "session.SetScore", id)
	defer func() { endSpan(span, err) }()

	if !s.isOrganizer(organizerID) {
		return ErrNotAuthorized
	}
	if score < 0 {
		return ErrInvalidScore
	}
	unlock := s.locks.lock(id)
	defer unlock()

	current, ok := s.get(id)
	if !ok {
		return ErrParticipantNotFound
	}
	if _, err := s.apply(ctx, id, func(map[string]Participant) (*Participant, error) {
		p := current
		p.Score = score
		return &p, nil
	}); err != nil {
		return err
	}

	s.logger.Info("score set", "participant_id", id, "organizer_id", organizerID, "score", score)
	s.record(ctx, activity.TypeScoreSet, id, organizerID, "score set", map[string]any{"score": score})
	return nil
}

// DeleteParticipant removes the whole record and stops its countdown.
func (s *Service) DeleteParticipant(ctx context.Context, id, organizerID string) (err error) {
	ctx, span := s.startSpan(ctx, "session.DeleteParticipant", id)
	defer func() { endSpan(span, err) }()

	if !s.isOrganizer(organizerID) {
		return ErrNotAuthorized
	}
	unlock := s.locks.lock(id)
	defer unlock()

	if _, ok := s.get(id); !ok {
		return ErrParticipantNotFound
	}
	if _, err := s.apply(ctx, id, func(map[string]Participant) (*Participant, error) {
		return nil, nil
	}); err != nil {
		return err
	}
	s.timers.Cancel(id)

	s.logger.Info("participant deleted", "participant_id", id, "organizer_id", organizerID)
	s.record(ctx, activity.TypeParticipantDeleted, id, organizerID, "participant deleted", nil)
	return nil
}

// mutation computes the next record from the committed table. Returning a nil
// participant deletes the record.
type mutation func(sessions map[string]Participant) (*Participant, error)

// apply runs m against the committed table, writes the resulting table
// through the store and only then publishes it.
func (s *Service) apply(ctx context.Context, id string, m mutation) (*Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := m(s.sessions)
	if err != nil {
		return nil, err
	}

	snapshot := make(map[string]Participant, len(s.sessions)+1)
	for k, v := range s.sessions {
		snapshot[k] = v
	}
	if next == nil {
		delete(snapshot, id)
	} else {
		snapshot[id] = *next
	}

	if err := s.store.SaveAll(ctx, snapshot); err != nil {
		s.logger.Error("failed to persist sessions", "participant_id", id, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	s.sessions = snapshot
	if next == nil {
		return nil, nil
	}
	out := *next
	return &out, nil
}

func (s *Service) closeWindow(ctx context.Context, current Participant, summary string) error {
	if _, err := s.apply(ctx, current.ID, func(map[string]Participant) (*Participant, error) {
		p := current
		p.TimerActive = false
		return &p, nil
	}); err != nil {
		return err
	}
	s.logger.Info("solution window closed", "participant_id", current.ID, "reason", summary)
	s.record(ctx, activity.TypeWindowExpired, current.ID, "", summary, nil)
	return nil
}

func (s *Service) get(id string) (Participant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.sessions[id]
	return p, ok
}

func (s *Service) isOrganizer(id string) bool {
	return id != "" && s.organizers != nil && s.organizers.IsOrganizer(id)
}

func (s *Service) allowedExtension(fileName string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == "" {
		return "", false
	}
	for _, allowed := range s.cfg.AllowedExtensions {
		if ext == strings.ToLower(allowed) {
			return ext, true
		}
	}
	return "", false
}

// artifactName derives the stored file name from the display handle, falling
// back to the identifier when the handle is unavailable.
func (s *Service) artifactName(ctx context.Context, id, ext string) string {
	if s.directory != nil {
		handle, ok, err := s.directory.DisplayHandle(ctx, id)
		if err != nil {
			s.logger.Warn("display handle lookup failed", "participant_id", id, "error", err)
		}
		if handle = sanitizeHandle(handle); ok && handle != "" {
			return "@" + handle + "-result" + ext
		}
	}
	return "id" + sanitizeHandle(id) + "-result" + ext
}

func sanitizeHandle(handle string) string {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return -1
		}
	}, handle)
}

func (s *Service) record(ctx context.Context, typ activity.ActivityType, participantID, actorID, summary string, details map[string]any) {
	if s.activity == nil {
		return
	}
	entry := &activity.ActivityEntry{
		ParticipantID: participantID,
		ActorID:       actorID,
		ActivityType:  typ,
		Summary:       summary,
		CreatedAt:     s.now(),
	}
	if details != nil {
		if data, err := json.Marshal(details); err == nil {
			entry.Details = string(data)
		}
	}
	if err := s.activity.LogActivity(ctx, entry); err != nil {
		s.logger.Warn("failed to journal activity", "type", typ, "participant_id", participantID, "error", err)
	}
}

func (s *Service) startSpan(ctx context.Context, name, id string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("participant.id", id)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// keyedMutex hands out one mutex per participant identifier. Entries live
// only while someone holds or waits for them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(id string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	l, ok := k.locks[id]
	if !ok {
		l = &refMutex{}
		k.locks[id] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}
