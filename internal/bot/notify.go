package bot

import (
	"context"
	"errors"
	"time"

	"github.com/saidjob/olympiad/internal/domain/session"
)

// Reminder renders countdown notifications for the deadline scheduler. It
// needs no engine, so it can be built before the session service.
type Reminder struct {
	notifier session.Notifier
}

func NewReminder(notifier session.Notifier) *Reminder {
	return &Reminder{notifier: notifier}
}

// NotifyProgress sends the running timer.
func (r *Reminder) NotifyProgress(ctx context.Context, participantID string, remaining time.Duration) error {
	return r.notifier.SendText(ctx, participantID, progressText(remaining))
}

// NotifyTimeout tells the participant the window closed without a submission.
func (r *Reminder) NotifyTimeout(ctx context.Context, participantID string) error {
	return r.notifier.SendText(ctx, participantID, msgTimeout)
}

// BroadcastStart announces the olympiad to every known participant when the
// event period is running. Delivery failures are logged and skipped.
func (d *Dispatcher) BroadcastStart(ctx context.Context) int {
	if phase, _ := d.engine.Phase(); phase != session.PhaseRunning {
		return 0
	}
	sent := 0
	for _, id := range d.engine.ParticipantIDs() {
		if ctx.Err() != nil {
			break
		}
		if err := d.notifier.SendText(ctx, id, msgStarted); err != nil {
			if errors.Is(err, session.ErrRecipientUnreachable) {
				d.logger.Info("start broadcast skipped unreachable participant", "participant_id", id)
			} else {
				d.logger.Warn("start broadcast failed", "participant_id", id, "error", err)
			}
			continue
		}
		sent++
	}
	d.logger.Info("start broadcast sent", "recipients", sent)
	return sent
}
