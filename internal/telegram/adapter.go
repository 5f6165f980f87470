package telegram

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/saidjob/olympiad/internal/domain/session"
)

// API is the subset of the Bot API used by the adapter.
type API interface {
	SendMessage(ctx context.Context, chatID int64, text string) (int64, error)
	SendDocument(ctx context.Context, chatID int64, fileName string, content []byte, caption string) (int64, error)
	GetChat(ctx context.Context, chatID int64) (*Chat, error)
}

// Adapter exposes the Bot API as the session engine's Notifier and
// Directory. Participant identifiers are decimal chat IDs.
type Adapter struct {
	api API

	mu      sync.RWMutex
	handles map[string]string
}

func NewAdapter(api API) *Adapter {
	return &Adapter{api: api, handles: make(map[string]string)}
}

// Observe caches the sender's username from an inbound message.
func (a *Adapter) Observe(u *User) {
	if u == nil {
		return
	}
	id := strconv.FormatInt(u.ID, 10)
	a.mu.Lock()
	a.handles[id] = u.Username
	a.mu.Unlock()
}

func (a *Adapter) SendText(ctx context.Context, participantID, text string) error {
	chatID, err := ParseChatID(participantID)
	if err != nil {
		return err
	}
	_, err = a.api.SendMessage(ctx, chatID, text)
	return err
}

func (a *Adapter) SendDocument(ctx context.Context, participantID string, doc session.Document) error {
	chatID, err := ParseChatID(participantID)
	if err != nil {
		return err
	}
	_, err = a.api.SendDocument(ctx, chatID, doc.Name, doc.Content, doc.Caption)
	return err
}

// DisplayHandle returns the participant's username, asking the API when the
// cache has no entry.
func (a *Adapter) DisplayHandle(ctx context.Context, participantID string) (string, bool, error) {
	a.mu.RLock()
	handle, cached := a.handles[participantID]
	a.mu.RUnlock()
	if cached {
		return handle, handle != "", nil
	}

	chatID, err := ParseChatID(participantID)
	if err != nil {
		return "", false, err
	}
	chat, err := a.api.GetChat(ctx, chatID)
	if err != nil {
		return "", false, err
	}
	a.mu.Lock()
	a.handles[participantID] = chat.Username
	a.mu.Unlock()
	return chat.Username, chat.Username != "", nil
}

// ParseChatID converts a participant identifier to a chat ID.
func ParseChatID(participantID string) (int64, error) {
	id, err := strconv.ParseInt(participantID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", session.ErrInvalidParticipant, participantID)
	}
	return id, nil
}
