package testserver

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/saidjob/olympiad/internal/telegram"
)

// SentDocument is a document the bot uploaded to a chat.
type SentDocument struct {
	Name    string
	Caption string
	Content []byte
}

// BotAPI is an in-memory Telegram Bot API.
type BotAPI struct {
	Server *httptest.Server
	token  string

	mu        sync.Mutex
	messages  map[int64][]string
	documents map[int64][]SentDocument
	files     map[string][]byte
	blocked   map[int64]bool
	usernames map[int64]string
	updates   []telegram.Update
	nextID    int64
}

func newBotAPI(t *testing.T, token string) *BotAPI {
	t.Helper()
	api := &BotAPI{
		token:     token,
		messages:  make(map[int64][]string),
		documents: make(map[int64][]SentDocument),
		files:     make(map[string][]byte),
		blocked:   make(map[int64]bool),
		usernames: make(map[int64]string),
	}
	api.Server = httptest.NewServer(http.HandlerFunc(api.serve))
	t.Cleanup(api.Server.Close)
	return api
}

// Messages returns the texts sent to chatID.
func (a *BotAPI) Messages(chatID int64) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.messages[chatID]...)
}

// LastMessage returns the newest text sent to chatID.
func (a *BotAPI) LastMessage(chatID int64) string {
	msgs := a.Messages(chatID)
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1]
}

// Documents returns the documents sent to chatID.
func (a *BotAPI) Documents(chatID int64) []SentDocument {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]SentDocument(nil), a.documents[chatID]...)
}

// Block makes every send to chatID fail as if the user blocked the bot.
func (a *BotAPI) Block(chatID int64) {
	a.mu.Lock()
	a.blocked[chatID] = true
	a.mu.Unlock()
}

// StoreFile registers an uploaded file and returns its file_id.
func (a *BotAPI) StoreFile(content []byte) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextID++
	id := fmt.Sprintf("file-%d", a.nextID)
	a.files[id] = content
	return id
}

// Enqueue makes u available to getUpdates.
func (a *BotAPI) Enqueue(u telegram.Update) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextID++
	u.UpdateID = a.nextID
	if u.Message != nil && u.Message.From != nil {
		a.usernames[u.Message.From.ID] = u.Message.From.Username
	}
	a.updates = append(a.updates, u)
}

func (a *BotAPI) serve(w http.ResponseWriter, r *http.Request) {
	if path, ok := strings.CutPrefix(r.URL.Path, "/file/bot"+a.token+"/"); ok {
		a.serveFile(w, path)
		return
	}
	method, ok := strings.CutPrefix(r.URL.Path, "/bot"+a.token+"/")
	if !ok {
		reply(w, http.StatusUnauthorized, telegram.APIResponse{ErrorCode: 401, Description: "Unauthorized"})
		return
	}

	switch method {
	case "sendMessage":
		var req telegram.SendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, err)
			return
		}
		a.deliver(w, req.ChatID, func() { a.messages[req.ChatID] = append(a.messages[req.ChatID], req.Text) })
	case "sendDocument":
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			badRequest(w, err)
			return
		}
		var chatID int64
		fmt.Sscan(r.FormValue("chat_id"), &chatID)
		file, header, err := r.FormFile("document")
		if err != nil {
			badRequest(w, err)
			return
		}
		defer file.Close()
		content, _ := io.ReadAll(file)
		doc := SentDocument{Name: header.Filename, Caption: r.FormValue("caption"), Content: content}
		a.deliver(w, chatID, func() { a.documents[chatID] = append(a.documents[chatID], doc) })
	case "getChat":
		var req telegram.GetChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, err)
			return
		}
		a.mu.Lock()
		chat := telegram.Chat{ID: req.ChatID, Type: "private", Username: a.usernames[req.ChatID]}
		a.mu.Unlock()
		writeResult(w, chat)
	case "getFile":
		var req telegram.GetFileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, err)
			return
		}
		writeResult(w, telegram.File{FileID: req.FileID, FilePath: "documents/" + req.FileID})
	case "getUpdates":
		var req telegram.GetUpdatesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, err)
			return
		}
		writeResult(w, a.pending(r, req.Offset))
	default:
		reply(w, http.StatusNotFound, telegram.APIResponse{ErrorCode: 404, Description: "Not Found: method not found"})
	}
}

// pending waits briefly for updates at or after offset.
func (a *BotAPI) pending(r *http.Request, offset int64) []telegram.Update {
	deadline := time.Now().Add(200 * time.Millisecond)
	for {
		a.mu.Lock()
		out := []telegram.Update{}
		for _, u := range a.updates {
			if u.UpdateID >= offset {
				out = append(out, u)
			}
		}
		a.mu.Unlock()
		if len(out) > 0 || time.Now().After(deadline) || r.Context().Err() != nil {
			return out
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func (a *BotAPI) deliver(w http.ResponseWriter, chatID int64, record func()) {
	a.mu.Lock()
	if a.blocked[chatID] {
		a.mu.Unlock()
		reply(w, http.StatusForbidden, telegram.APIResponse{ErrorCode: 403, Description: "Forbidden: bot was blocked by the user"})
		return
	}
	record()
	a.nextID++
	id := a.nextID
	a.mu.Unlock()
	writeResult(w, telegram.MessageResult{MessageID: id})
}

func (a *BotAPI) serveFile(w http.ResponseWriter, path string) {
	a.mu.Lock()
	content, found := a.files[strings.TrimPrefix(path, "documents/")]
	a.mu.Unlock()
	if !found {
		http.NotFound(w, nil)
		return
	}
	_, _ = w.Write(content)
}

func writeResult(w http.ResponseWriter, result any) {
	data, _ := json.Marshal(result)
	reply(w, http.StatusOK, telegram.APIResponse{OK: true, Result: data})
}

func badRequest(w http.ResponseWriter, err error) {
	reply(w, http.StatusBadRequest, telegram.APIResponse{ErrorCode: 400, Description: "Bad Request: " + err.Error()})
}

func reply(w http.ResponseWriter, status int, resp telegram.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
