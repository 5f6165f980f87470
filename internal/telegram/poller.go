package telegram

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"
)

// UpdateHandler consumes one inbound update.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, u Update)
}

// UpdateSource is the long-polling part of the Bot API.
type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error)
}

// Poller feeds updates to a handler until its context ends.
type Poller struct {
	source      UpdateSource
	handler     UpdateHandler
	logger      *slog.Logger
	pollTimeout time.Duration
	retryDelay  time.Duration
}

func NewPoller(source UpdateSource, handler UpdateHandler, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Poller{
		source:      source,
		handler:     handler,
		logger:      logger,
		pollTimeout: 30 * time.Second,
		retryDelay:  3 * time.Second,
	}
}

// Run polls until ctx is cancelled. Updates are handled in arrival order;
// the offset advances past each one so nothing is delivered twice.
func (p *Poller) Run(ctx context.Context) error {
	var offset int64
	p.logger.Info("telegram poller started")
	for {
		updates, err := p.source.GetUpdates(ctx, offset, p.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				p.logger.Info("telegram poller stopped")
				return nil
			}
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.Code == 401 {
				return err
			}
			p.logger.Warn("getUpdates failed", "error", err, "retry_in", p.retryDelay)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(p.retryDelay):
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			p.handler.HandleUpdate(ctx, u)
		}
	}
}
