package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/saidjob/olympiad/internal/domain/session"
	"github.com/stretchr/testify/require"
)

func newTestAPI(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClientWithBase("TOKEN", srv.URL)
}

func writeOK(w http.ResponseWriter, result any) {
	data, _ := json.Marshal(result)
	_ = json.NewEncoder(w).Encode(APIResponse{OK: true, Result: data})
}

func TestClient_SendMessage(t *testing.T) {
	client := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		var req SendMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, int64(42), req.ChatID)
		require.Equal(t, "hello", req.Text)
		writeOK(w, MessageResult{MessageID: 7})
	})

	id, err := client.SendMessage(context.Background(), 42, "hello")
	require.NoError(t, err)
	require.Equal(t, int64(7), id)
}

func TestClient_SendDocumentMultipart(t *testing.T) {
	client := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/botTOKEN/sendDocument", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "42", r.FormValue("chat_id"))
		require.Equal(t, "Tasks", r.FormValue("caption"))
		f, hdr, err := r.FormFile("document")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		require.Equal(t, "tasks.pdf", hdr.Filename)
		require.Equal(t, "%PDF", string(data))
		writeOK(w, MessageResult{MessageID: 8})
	})

	_, err := client.SendDocument(context.Background(), 42, "tasks.pdf", []byte("%PDF"), "Tasks")
	require.NoError(t, err)
}

func TestClient_UnreachableMapping(t *testing.T) {
	client := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(APIResponse{OK: false, ErrorCode: 403, Description: "Forbidden: bot was blocked by the user"})
	})

	_, err := client.SendMessage(context.Background(), 42, "hello")
	require.ErrorIs(t, err, session.ErrRecipientUnreachable)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, 403, apiErr.Code)

	other := &APIError{Method: "sendMessage", Code: 429, Description: "Too Many Requests"}
	require.False(t, errors.Is(other, session.ErrRecipientUnreachable))
	notFound := &APIError{Method: "sendMessage", Code: 400, Description: "Bad Request: chat not found"}
	require.True(t, errors.Is(notFound, session.ErrRecipientUnreachable))
}

func TestClient_DownloadFile(t *testing.T) {
	client := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/botTOKEN/getFile":
			writeOK(w, File{FileID: "abc", FilePath: "documents/file_1.pdf"})
		case r.URL.Path == "/file/botTOKEN/documents/file_1.pdf":
			_, _ = w.Write([]byte("%PDF solution"))
		default:
			http.NotFound(w, r)
		}
	})

	data, err := client.DownloadFile(context.Background(), "abc")
	require.NoError(t, err)
	require.Equal(t, "%PDF solution", string(data))
}

func TestClient_GetUpdates(t *testing.T) {
	client := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		var req GetUpdatesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, int64(5), req.Offset)
		require.Equal(t, 1, req.Timeout)
		writeOK(w, []Update{{UpdateID: 5, Message: &Message{Text: "/start", Chat: Chat{ID: 1}}}})
	})

	updates, err := client.GetUpdates(context.Background(), 5, time.Second)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	require.Equal(t, "/start", updates[0].Message.Text)
}

type fakeAPI struct {
	texts map[int64][]string
	chats map[int64]string
	calls int
}

func (f *fakeAPI) SendMessage(_ context.Context, chatID int64, text string) (int64, error) {
	f.texts[chatID] = append(f.texts[chatID], text)
	return 1, nil
}

func (f *fakeAPI) SendDocument(context.Context, int64, string, []byte, string) (int64, error) {
	return 1, nil
}

func (f *fakeAPI) GetChat(_ context.Context, chatID int64) (*Chat, error) {
	f.calls++
	return &Chat{ID: chatID, Username: f.chats[chatID]}, nil
}

func TestAdapter(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{texts: map[int64][]string{}, chats: map[int64]string{5: "eve"}}
	a := NewAdapter(api)

	require.NoError(t, a.SendText(ctx, "5", "hi"))
	require.Equal(t, []string{"hi"}, api.texts[5])

	err := a.SendText(ctx, "not-a-number", "hi")
	require.ErrorIs(t, err, session.ErrInvalidParticipant)

	handle, ok, err := a.DisplayHandle(ctx, "5")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "eve", handle)
	_, _, _ = a.DisplayHandle(ctx, "5")
	require.Equal(t, 1, api.calls)

	a.Observe(&User{ID: 6})
	_, ok, err = a.DisplayHandle(ctx, "6")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 1, api.calls)
}

type scriptedSource struct {
	batches [][]Update
	offsets []int64
	cancel  context.CancelFunc
}

func (s *scriptedSource) GetUpdates(ctx context.Context, offset int64, _ time.Duration) ([]Update, error) {
	s.offsets = append(s.offsets, offset)
	if len(s.batches) == 0 {
		s.cancel()
		return nil, ctx.Err()
	}
	b := s.batches[0]
	s.batches = s.batches[1:]
	return b, nil
}

type collectHandler struct{ texts []string }

func (h *collectHandler) HandleUpdate(_ context.Context, u Update) {
	h.texts = append(h.texts, u.Message.Text)
}

func TestPoller_AdvancesOffset(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &scriptedSource{
		batches: [][]Update{
			{{UpdateID: 10, Message: &Message{Text: "a"}}, {UpdateID: 11, Message: &Message{Text: "b"}}},
			{{UpdateID: 12, Message: &Message{Text: "c"}}},
		},
		cancel: cancel,
	}
	h := &collectHandler{}

	require.NoError(t, NewPoller(src, h, nil).Run(ctx))
	require.Equal(t, []string{"a", "b", "c"}, h.texts)
	require.Equal(t, []int64{0, 12, 13}, src.offsets)
}
