package session_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/saidjob/olympiad/internal/domain/session"
)

type memStore struct {
	mu       sync.Mutex
	data     map[string]session.Participant
	saves    int
	failNext error
}

func newMemStore() *memStore {
	return &memStore{data: map[string]session.Participant{}}
}

func (s *memStore) LoadAll(context.Context) (map[string]session.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]session.Participant, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out, nil
}

func (s *memStore) SaveAll(_ context.Context, sessions map[string]session.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failNext; err != nil {
		s.failNext = nil
		return err
	}
	s.saves++
	s.data = make(map[string]session.Participant, len(sessions))
	for k, v := range sessions {
		s.data[k] = v
	}
	return nil
}

func (s *memStore) record(id string) (session.Participant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data[id]
	return p, ok
}

type sentDoc struct {
	to  string
	doc session.Document
}

type fakeNotifier struct {
	mu      sync.Mutex
	texts   map[string][]string
	docs    []sentDoc
	docErr  error
	textErr error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{texts: map[string][]string{}}
}

func (n *fakeNotifier) SendText(_ context.Context, id, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.textErr != nil {
		return n.textErr
	}
	n.texts[id] = append(n.texts[id], text)
	return nil
}

func (n *fakeNotifier) SendDocument(_ context.Context, id string, doc session.Document) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.docErr != nil {
		return n.docErr
	}
	n.docs = append(n.docs, sentDoc{to: id, doc: doc})
	return nil
}

type fakeTimers struct {
	mu      sync.Mutex
	active  map[string]session.Countdown
	started []session.Countdown
	stopped []string
}

func newFakeTimers() *fakeTimers {
	return &fakeTimers{active: map[string]session.Countdown{}}
}

func (t *fakeTimers) Start(c session.Countdown) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active[c.ParticipantID] = c
	t.started = append(t.started, c)
}

func (t *fakeTimers) Cancel(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.active, id)
	t.stopped = append(t.stopped, id)
}

func (t *fakeTimers) Active(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.active[id]
	return ok
}

func (t *fakeTimers) drop(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.active, id)
}

type fakeDirectory map[string]string

func (d fakeDirectory) DisplayHandle(_ context.Context, id string) (string, bool, error) {
	h, ok := d[id]
	return h, ok && h != "", nil
}

type memArtifacts struct {
	mu    sync.Mutex
	files map[string][]byte
	err   error
}

func newMemArtifacts() *memArtifacts {
	return &memArtifacts{files: map[string][]byte{}}
}

func (a *memArtifacts) Persist(_ context.Context, name string, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.files[name] = data
	return nil
}

func (a *memArtifacts) Exists(_ context.Context, name string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.files[name]
	return ok, nil
}

func (a *memArtifacts) Read(_ context.Context, name string) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	data, ok := a.files[name]
	if !ok {
		return nil, errors.New("missing")
	}
	return data, nil
}

type staticTasks struct{}

func (staticTasks) Bundle(context.Context) (session.Document, error) {
	return session.Document{Name: "tasks.pdf", Content: []byte("%PDF tasks"), Caption: "Tasks"}, nil
}

type organizerSet map[string]bool

func (o organizerSet) IsOrganizer(id string) bool { return o[id] }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sequenceCodes struct {
	mu    sync.Mutex
	codes []string
}

func (g *sequenceCodes) Generate(existing map[string]struct{}) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for len(g.codes) > 0 {
		code := g.codes[0]
		g.codes = g.codes[1:]
		if _, taken := existing[code]; !taken {
			return code, nil
		}
	}
	return "", session.ErrCodeSpaceExhausted
}

func pdf(name string) session.Artifact {
	return session.Artifact{
		FileName: name,
		Fetch: func(context.Context) ([]byte, error) {
			return []byte("%PDF solution"), nil
		},
	}
}
