package deadline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/saidjob/olympiad/internal/domain/session"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu          sync.Mutex
	progress    map[string]int
	timeouts    map[string]int
	progressErr error
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{progress: map[string]int{}, timeouts: map[string]int{}}
}

func (n *recordingNotifier) NotifyProgress(_ context.Context, id string, _ time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.progress[id]++
	return n.progressErr
}

func (n *recordingNotifier) NotifyTimeout(_ context.Context, id string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.timeouts[id]++
	return nil
}

func (n *recordingNotifier) counts(id string) (int, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.progress[id], n.timeouts[id]
}

type recordingExpirer struct {
	mu     sync.Mutex
	calls  []time.Time
	result bool
	err    error
}

func (e *recordingExpirer) Expire(_ context.Context, _ string, issuedAt time.Time) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, issuedAt)
	return e.result, e.err
}

func (e *recordingExpirer) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

func newTestScheduler(t *testing.T, n Notifier, e Expirer) *Scheduler {
	t.Helper()
	s := NewScheduler(n, nil)
	s.SetExpirer(e)
	t.Cleanup(s.Stop)
	return s
}

func countdownIn(id string, d time.Duration) session.Countdown {
	now := time.Now()
	return session.Countdown{ParticipantID: id, IssuedAt: now, Deadline: now.Add(d)}
}

func TestInterval(t *testing.T) {
	cases := []struct {
		remaining time.Duration
		want      time.Duration
	}{
		{60 * time.Minute, 10 * time.Minute},
		{10*time.Minute + time.Second, 10 * time.Minute},
		{10 * time.Minute, time.Minute},
		{5 * time.Minute, time.Minute},
		{time.Minute, time.Minute},
		{59 * time.Second, time.Second},
		{time.Second, time.Second},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprint(tc.remaining), func(t *testing.T) {
			require.Equal(t, tc.want, Interval(tc.remaining))
		})
	}
}

func TestScheduler_ExpiresAndNotifiesOnce(t *testing.T) {
	n := newRecordingNotifier()
	e := &recordingExpirer{result: true}
	s := newTestScheduler(t, n, e)

	s.Start(countdownIn("1", 50*time.Millisecond))
	require.True(t, s.Active("1"))

	require.Eventually(t, func() bool {
		_, timeouts := n.counts("1")
		return timeouts == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool { return !s.Active("1") }, time.Second, 10*time.Millisecond)
	progress, timeouts := n.counts("1")
	require.GreaterOrEqual(t, progress, 1)
	require.Equal(t, 1, timeouts)
	require.Equal(t, 1, e.callCount())
}

func TestScheduler_NoTimeoutWhenExpireDeclines(t *testing.T) {
	n := newRecordingNotifier()
	e := &recordingExpirer{result: false}
	s := newTestScheduler(t, n, e)

	s.Start(countdownIn("1", 20*time.Millisecond))
	require.Eventually(t, func() bool { return e.callCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	_, timeouts := n.counts("1")
	require.Zero(t, timeouts)
}

func TestScheduler_CancelPreventsExpiry(t *testing.T) {
	n := newRecordingNotifier()
	e := &recordingExpirer{result: true}
	s := newTestScheduler(t, n, e)

	s.Start(countdownIn("1", 200*time.Millisecond))
	s.Cancel("1")
	require.False(t, s.Active("1"))

	time.Sleep(400 * time.Millisecond)
	require.Zero(t, e.callCount())
	_, timeouts := n.counts("1")
	require.Zero(t, timeouts)
}

func TestScheduler_UnreachableStopsWithoutExpiring(t *testing.T) {
	n := newRecordingNotifier()
	n.progressErr = fmt.Errorf("send: %w", session.ErrRecipientUnreachable)
	e := &recordingExpirer{result: true}
	s := newTestScheduler(t, n, e)

	s.Start(countdownIn("1", 100*time.Millisecond))
	require.Eventually(t, func() bool { return !s.Active("1") }, time.Second, 5*time.Millisecond)

	time.Sleep(200 * time.Millisecond)
	require.Zero(t, e.callCount())
	progress, _ := n.counts("1")
	require.Equal(t, 1, progress)
}

func TestScheduler_TransientErrorsKeepCounting(t *testing.T) {
	n := newRecordingNotifier()
	n.progressErr = errors.New("timeout talking to api")
	e := &recordingExpirer{result: true}
	s := newTestScheduler(t, n, e)

	s.Start(countdownIn("1", 30*time.Millisecond))
	require.Eventually(t, func() bool {
		_, timeouts := n.counts("1")
		return timeouts == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestScheduler_PastDeadlineExpiresImmediately(t *testing.T) {
	n := newRecordingNotifier()
	e := &recordingExpirer{result: true}
	s := newTestScheduler(t, n, e)

	issued := time.Now().Add(-2 * time.Hour)
	s.Start(session.Countdown{ParticipantID: "1", IssuedAt: issued, Deadline: issued.Add(time.Hour)})

	require.Eventually(t, func() bool { return e.callCount() == 1 }, time.Second, 5*time.Millisecond)
	progress, _ := n.counts("1")
	require.Zero(t, progress)
}

func TestScheduler_StartReplacesExisting(t *testing.T) {
	n := newRecordingNotifier()
	e := &recordingExpirer{result: true}
	s := newTestScheduler(t, n, e)

	first := countdownIn("1", 30*time.Millisecond)
	s.Start(first)
	second := session.Countdown{ParticipantID: "1", IssuedAt: first.IssuedAt.Add(time.Millisecond), Deadline: time.Now().Add(80 * time.Millisecond)}
	s.Start(second)
	require.Equal(t, 1, s.Len())

	require.Eventually(t, func() bool { return e.callCount() >= 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	e.mu.Lock()
	defer e.mu.Unlock()
	require.Len(t, e.calls, 1)
	require.True(t, e.calls[0].Equal(second.IssuedAt))
}

func TestScheduler_StopWaitsForGoroutines(t *testing.T) {
	n := newRecordingNotifier()
	e := &recordingExpirer{result: true}
	s := NewScheduler(n, nil)
	s.SetExpirer(e)

	for i := 0; i < 10; i++ {
		s.Start(countdownIn(fmt.Sprint(i), time.Hour))
	}
	require.Equal(t, 10, s.Len())

	s.Stop()
	require.Zero(t, s.Len())
	require.Zero(t, e.callCount())

	s.Start(countdownIn("late", time.Millisecond))
	require.False(t, s.Active("late"))
}
