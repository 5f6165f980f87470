// Package deadline runs one countdown per open solution window, sending
// progress notifications and closing the window when time runs out.
package deadline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/saidjob/olympiad/internal/domain/session"
)

// Notifier delivers countdown messages.
type Notifier interface {
	NotifyProgress(ctx context.Context, participantID string, remaining time.Duration) error
	NotifyTimeout(ctx context.Context, participantID string) error
}

// Expirer performs the terminal write when a countdown runs out.
type Expirer interface {
	Expire(ctx context.Context, participantID string, issuedAt time.Time) (bool, error)
}

// Interval returns how long to wait before the next progress notification.
func Interval(remaining time.Duration) time.Duration {
	switch {
	case remaining > 10*time.Minute:
		return 10 * time.Minute
	case remaining >= time.Minute:
		return time.Minute
	default:
		return time.Second
	}
}

type countdown struct {
	session.Countdown
	cancel context.CancelFunc
	done   chan struct{}
}

// Scheduler owns the countdown goroutines. It implements session.Timers.
type Scheduler struct {
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time

	mu         sync.Mutex
	expirer    Expirer
	countdowns map[string]*countdown

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler. SetExpirer must be called before the
// first countdown expires.
func NewScheduler(notifier Notifier, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		notifier:   notifier,
		logger:     logger,
		now:        time.Now,
		countdowns: make(map[string]*countdown),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// SetExpirer wires the session engine back into the scheduler.
func (s *Scheduler) SetExpirer(e Expirer) {
	s.mu.Lock()
	s.expirer = e
	s.mu.Unlock()
}

// Start launches a countdown, replacing any existing one for the participant.
func (s *Scheduler) Start(c session.Countdown) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		s.logger.Warn("scheduler stopped, countdown not started", "participant_id", c.ParticipantID)
		return
	}
	if prev, ok := s.countdowns[c.ParticipantID]; ok {
		prev.cancel()
	}

	ctx, cancel := context.WithCancel(s.ctx)
	cd := &countdown{Countdown: c, cancel: cancel, done: make(chan struct{})}
	s.countdowns[c.ParticipantID] = cd

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(cd.done)
		defer s.release(cd)
		s.run(ctx, cd)
	}()
	s.logger.Debug("countdown started", "participant_id", c.ParticipantID, "deadline", c.Deadline)
}

// Cancel requests the participant's countdown to stop. The goroutine observes
// it at its next wait.
func (s *Scheduler) Cancel(participantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cd, ok := s.countdowns[participantID]; ok {
		cd.cancel()
		delete(s.countdowns, participantID)
		s.logger.Debug("countdown cancelled", "participant_id", participantID)
	}
}

// Active reports whether a countdown is live for the participant.
func (s *Scheduler) Active(participantID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.countdowns[participantID]
	return ok
}

// Len returns the number of live countdowns.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.countdowns)
}

// Stop cancels all countdowns and waits for their goroutines to exit.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	s.mu.Lock()
	s.countdowns = make(map[string]*countdown)
	s.mu.Unlock()
}

func (s *Scheduler) release(cd *countdown) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.countdowns[cd.ParticipantID]; ok && cur == cd {
		delete(s.countdowns, cd.ParticipantID)
	}
	cd.cancel()
}

func (s *Scheduler) run(ctx context.Context, cd *countdown) {
	id := cd.ParticipantID
	for {
		remaining := cd.Deadline.Sub(s.now())
		if remaining <= 0 {
			break
		}

		if err := s.notifier.NotifyProgress(ctx, id, remaining); err != nil {
			if errors.Is(err, session.ErrRecipientUnreachable) {
				s.logger.Warn("participant unreachable, countdown stopped", "participant_id", id)
				return
			}
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("progress notification failed", "participant_id", id, "error", err)
		}

		wait := Interval(remaining)
		if left := cd.Deadline.Sub(s.now()); left < wait {
			wait = left
		}
		if wait <= 0 {
			break
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	if ctx.Err() != nil {
		return
	}
	s.expire(ctx, cd)
}

func (s *Scheduler) expire(ctx context.Context, cd *countdown) {
	s.mu.Lock()
	expirer := s.expirer
	s.mu.Unlock()
	if expirer == nil {
		s.logger.Error("no expirer configured, window left open", "participant_id", cd.ParticipantID)
		return
	}

	// The terminal write must not be abandoned by a concurrent Cancel.
	expireCtx := context.WithoutCancel(ctx)
	expired, err := expirer.Expire(expireCtx, cd.ParticipantID, cd.IssuedAt)
	if err != nil {
		s.logger.Error("failed to expire solution window", "participant_id", cd.ParticipantID, "error", err)
		return
	}
	if !expired {
		return
	}
	if err := s.notifier.NotifyTimeout(expireCtx, cd.ParticipantID); err != nil {
		s.logger.Warn("timeout notification failed", "participant_id", cd.ParticipantID, "error", err)
	}
}
