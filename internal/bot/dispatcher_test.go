package bot

import (
	"context"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/saidjob/olympiad/internal/domain/organizer"
	"github.com/saidjob/olympiad/internal/domain/session"
	"github.com/saidjob/olympiad/internal/filestore"
	"github.com/saidjob/olympiad/internal/telegram"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	organizerChat = int64(900)
	password      = "letmein"
)

type chatAPI struct {
	mu    sync.Mutex
	texts map[int64][]string
	docs  map[int64][]string
}

func (a *chatAPI) SendMessage(_ context.Context, chatID int64, text string) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.texts[chatID] = append(a.texts[chatID], text)
	return 1, nil
}

func (a *chatAPI) SendDocument(_ context.Context, chatID int64, name string, _ []byte, _ string) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.docs[chatID] = append(a.docs[chatID], name)
	return 1, nil
}

func (a *chatAPI) GetChat(_ context.Context, chatID int64) (*telegram.Chat, error) {
	return &telegram.Chat{ID: chatID}, nil
}

func (a *chatAPI) last(chatID int64) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	texts := a.texts[chatID]
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

type noTimers struct{}

func (noTimers) Start(session.Countdown) {}
func (noTimers) Cancel(string)           {}
func (noTimers) Active(string) bool      { return true }

type staticFiles struct{}

func (staticFiles) DownloadFile(context.Context, string) ([]byte, error) {
	return []byte("%PDF"), nil
}

type staticBundle struct{}

func (staticBundle) Bundle(context.Context) (session.Document, error) {
	return session.Document{Name: "tasks.pdf", Content: []byte("%PDF")}, nil
}

type fixture struct {
	d      *Dispatcher
	api    *chatAPI
	engine *session.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	api := &chatAPI{texts: map[int64][]string{}, docs: map[int64][]string{}}
	adapter := telegram.NewAdapter(api)
	orgs := organizer.NewRegistry(filestore.NewOrganizerFile(filepath.Join(dir, "admins.txt")), []string{strconv.FormatInt(organizerChat, 10)}, nil)

	engine := session.NewService(session.Config{Window: time.Hour, SecretHash: hash}, session.Dependencies{
		Store:      filestore.NewStateStore(filepath.Join(dir, "users.txt")),
		Notifier:   adapter,
		Directory:  adapter,
		Artifacts:  filestore.NewArtifactDir(filepath.Join(dir, "solutions")),
		Tasks:      staticBundle{},
		Timers:     noTimers{},
		Organizers: orgs,
	}, nil)
	require.NoError(t, engine.Load(context.Background()))

	return &fixture{
		d:      NewDispatcher(engine, orgs, adapter, staticFiles{}, adapter, nil),
		api:    api,
		engine: engine,
	}
}

func (f *fixture) say(chat int64, username, text string) string {
	f.d.HandleUpdate(context.Background(), telegram.Update{Message: &telegram.Message{
		From: &telegram.User{ID: chat, Username: username},
		Chat: telegram.Chat{ID: chat, Type: "private"},
		Text: text,
	}})
	return f.api.last(chat)
}

func (f *fixture) upload(chat int64, username, fileName string) string {
	f.d.HandleUpdate(context.Background(), telegram.Update{Message: &telegram.Message{
		From:     &telegram.User{ID: chat, Username: username},
		Chat:     telegram.Chat{ID: chat, Type: "private"},
		Document: &telegram.Document{FileID: "f1", FileName: fileName},
	}})
	return f.api.last(chat)
}

func TestCommand(t *testing.T) {
	require.Equal(t, "/start", command("/start"))
	require.Equal(t, "/get_tasks", command("/get_tasks@olymp_bot now"))
	require.Equal(t, "/help", command("/HELP"))
	require.Equal(t, "", command("12345"))
}

func TestFormatClock(t *testing.T) {
	require.Equal(t, "01:00:00", formatClock(time.Hour))
	require.Equal(t, "00:09:59", formatClock(10*time.Minute-time.Millisecond))
	require.Equal(t, "00:00:00", formatClock(-time.Second))
	require.Equal(t, "1 days, 2 hours, 3 minutes, 4 seconds", formatSpan(26*time.Hour+3*time.Minute+4*time.Second))
}

func TestParticipantFlow(t *testing.T) {
	f := newFixture(t)

	require.Contains(t, f.say(1, "alice", "/start"), "alice")
	require.Equal(t, msgNotRegistered, f.say(1, "alice", "/get_tasks"))

	require.Equal(t, msgAskPassword, f.say(1, "alice", "/register"))
	require.Equal(t, msgAskPassword, f.say(1, "alice", "wrong"))
	reply := f.say(1, "alice", password)
	require.Contains(t, reply, "Your personal code")

	p, ok := f.engine.Get("1")
	require.True(t, ok)
	require.Contains(t, reply, p.AccessCode)
	require.Equal(t, msgAlreadyReg, f.say(1, "alice", "/register"))

	require.Equal(t, msgAskCode, f.say(1, "alice", "/get_tasks"))
	require.Equal(t, msgWrongCode, f.say(1, "alice", "00000"))
	f.say(1, "alice", "/get_tasks")
	require.Contains(t, f.say(1, "alice", p.AccessCode), "The tasks are sent")
	require.Equal(t, []string{"tasks.pdf"}, f.api.docs[1])

	require.Equal(t, msgLocked, f.say(1, "alice", "/stat"))
	require.Equal(t, msgLocked, f.say(1, "alice", "hello"))
	require.Contains(t, f.say(1, "alice", "/help"), "/get_tasks")

	require.Equal(t, msgNotPDF, f.upload(1, "alice", "solution.docx"))
	require.Contains(t, f.upload(1, "alice", "solution.pdf"), "We received your work")
	require.Equal(t, msgAlreadySent, f.upload(1, "alice", "solution.pdf"))
	require.Contains(t, f.say(1, "alice", "/stat"), "running")
}

func TestRegisterWithoutHandle(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, msgNeedHandle, f.say(2, "", "/register"))

	p, ok := f.engine.Get("2")
	require.True(t, ok)
	require.False(t, p.Registered)
}

func TestOrganizerCommands(t *testing.T) {
	f := newFixture(t)
	f.say(1, "alice", "/register")
	f.say(1, "alice", password)
	p, _ := f.engine.Get("1")
	f.say(1, "alice", "/get_tasks")
	f.say(1, "alice", p.AccessCode)
	f.upload(1, "alice", "a.pdf")

	require.Equal(t, msgNoRights, f.say(1, "alice", "/registered_users"))

	list := f.say(organizerChat, "boss", "/registered_users")
	require.Contains(t, list, "@alice")
	require.Contains(t, list, p.AccessCode)

	require.Contains(t, f.say(organizerChat, "boss", "/results"), "Code: "+p.AccessCode)
	f.say(organizerChat, "boss", p.AccessCode)
	require.Equal(t, []string{"@alice-result.pdf"}, f.api.docs[organizerChat])

	f.say(organizerChat, "boss", "/result_olymp")
	require.Equal(t, msgScoreFormat, f.say(organizerChat, "boss", "alice twenty"))
	f.say(organizerChat, "boss", "/result_olymp")
	require.Equal(t, "Points for @alice set: 20", f.say(organizerChat, "boss", "@alice - [20] points"))
	require.Contains(t, f.say(organizerChat, "boss", "/list_balls"), "@alice (code "+p.AccessCode+"): 20")

	f.say(organizerChat, "boss", "/add_admin")
	require.Equal(t, msgBadOrganizerID, f.say(organizerChat, "boss", "abc"))
	f.say(organizerChat, "boss", "/add_admin")
	require.Contains(t, f.say(organizerChat, "boss", "1"), "now an organizer")
	require.NotEqual(t, msgNoRights, f.say(1, "alice", "/list_balls"))

	f.say(organizerChat, "boss", "/delete_users")
	require.Equal(t, "Removed 1 participants.", f.say(organizerChat, "boss", "@alice\n@nobody"))
	_, ok := f.engine.Get("1")
	require.False(t, ok)
}

func TestCountdownMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r := NewReminder(telegram.NewAdapter(f.api))

	require.NoError(t, r.NotifyProgress(ctx, "5", 59*time.Minute+30*time.Second))
	require.Equal(t, "Timer (running): 00:59:30", f.api.last(5))
	require.NoError(t, r.NotifyTimeout(ctx, "5"))
	require.Equal(t, msgTimeout, f.api.last(5))
}

func TestBroadcastStart(t *testing.T) {
	f := newFixture(t)
	f.say(1, "alice", "/register")
	f.say(1, "alice", password)
	f.say(2, "", "/register")
	f.say(3, "carol", "/register")

	// 3 only started registering and has no record yet.
	require.Equal(t, 2, f.d.BroadcastStart(context.Background()))
	require.Equal(t, msgStarted, f.api.last(1))
	require.Equal(t, msgStarted, f.api.last(2))
	require.Equal(t, msgAskPassword, f.api.last(3))
}
