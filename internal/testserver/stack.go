// Package testserver assembles the olympiad bot in-process for end-to-end
// tests: a fake Bot API, the session engine on an in-memory database and
// the organizer console behind bearer authentication.
package testserver

import (
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/saidjob/olympiad/internal/bot"
	"github.com/saidjob/olympiad/internal/deadline"
	"github.com/saidjob/olympiad/internal/domain/activity"
	"github.com/saidjob/olympiad/internal/domain/organizer"
	"github.com/saidjob/olympiad/internal/domain/session"
	"github.com/saidjob/olympiad/internal/filestore"
	"github.com/saidjob/olympiad/internal/mcp"
	"github.com/saidjob/olympiad/internal/sqlite"
	"github.com/saidjob/olympiad/internal/telegram"
	"github.com/saidjob/olympiad/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const botToken = "123:test"

// Options tune the assembled stack.
type Options struct {
	Secret     string
	Window     time.Duration
	Period     session.Period
	Organizers []int64
}

// Stack is a running olympiad bot wired against fakes at its edges.
type Stack struct {
	API        *BotAPI
	DB         *sqlite.DB
	Engine     *session.Service
	Organizers *organizer.Registry
	Activity   *activity.Service
	Dispatcher *bot.Dispatcher
	Client     *telegram.Client
	Console    *httptest.Server
	// Token authenticates console requests as the first organizer.
	Token        string
	SolutionsDir string
}

// New builds a stack and registers cleanup with t.
func New(t *testing.T, opts Options) *Stack {
	t.Helper()
	if opts.Secret == "" {
		opts.Secret = "letmein"
	}
	if opts.Window == 0 {
		opts.Window = time.Hour
	}
	if len(opts.Organizers) == 0 {
		opts.Organizers = []int64{900}
	}
	ctx := context.Background()
	dir := t.TempDir()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	// Shared-cache tables lock per connection; countdown goroutines write concurrently.
	db.SetMaxOpenConns(1)
	require.NoError(t, db.RunMigrations())

	hash, err := session.HashSecret(opts.Secret, 4)
	require.NoError(t, err)

	tasksPath := filepath.Join(dir, "tasks.pdf")
	require.NoError(t, os.WriteFile(tasksPath, []byte("%PDF-1.4 tasks"), 0o644))

	api := newBotAPI(t, botToken)
	client := telegram.NewClientWithBase(botToken, api.Server.URL)
	chat := telegram.NewAdapter(client)

	bootstrap := make([]string, 0, len(opts.Organizers))
	for _, id := range opts.Organizers {
		bootstrap = append(bootstrap, strconv.FormatInt(id, 10))
	}
	activitySvc := activity.NewService(sqlite.NewActivityRepository(db), nil)
	organizers := organizer.NewRegistry(sqlite.NewOrganizerRepository(db), bootstrap, nil).WithRecorder(activitySvc)
	require.NoError(t, organizers.Load(ctx))

	scheduler := deadline.NewScheduler(bot.NewReminder(chat), nil)
	solutions := filepath.Join(dir, "solutions")
	engine := session.NewService(session.Config{
		Window:            opts.Window,
		SecretHash:        []byte(hash),
		AllowedExtensions: []string{".pdf"},
		Period:            opts.Period,
	}, session.Dependencies{
		Store:      sqlite.NewParticipantRepository(db),
		Notifier:   chat,
		Directory:  chat,
		Artifacts:  filestore.NewArtifactDir(solutions),
		Tasks:      filestore.NewTaskBundle(tasksPath, "Olympiad tasks"),
		Timers:     scheduler,
		Organizers: organizers,
		Activity:   activitySvc,
	}, nil)
	scheduler.SetExpirer(engine)
	require.NoError(t, engine.Load(ctx))

	apiKeys := sqlite.NewAPIKeyRepository(db)
	token, err := apiKeys.Issue(ctx, bootstrap[0], "test console")
	require.NoError(t, err)

	console := mcp.NewServer(mcp.Config{
		Services: mcp.Services{
			Sessions:   engine,
			Organizers: organizers,
			Activity:   activitySvc,
		},
		Resolver:      apiKeys,
		TransportMode: "http",
		Version:       "test",
	})
	server := httptest.NewServer(transport.NewServer(
		mcp.NewHTTPHandler(console, time.Minute),
		transport.AuthMiddleware(apiKeys),
	))

	t.Cleanup(func() {
		server.Close()
		scheduler.Stop()
		_ = db.Close()
	})

	return &Stack{
		API:          api,
		DB:           db,
		Engine:       engine,
		Organizers:   organizers,
		Activity:     activitySvc,
		Dispatcher:   bot.NewDispatcher(engine, organizers, chat, client, chat, nil),
		Client:       client,
		Console:      server,
		Token:        token,
		SolutionsDir: solutions,
	}
}

// Send delivers a text message from chatID and returns the texts the bot sent
// to that chat while handling it. Countdown messages may be interleaved.
func (s *Stack) Send(chatID int64, username, text string) string {
	return s.handle(chatID, username, &telegram.Message{Text: text})
}

// Upload delivers a document from chatID and returns the texts the bot sent
// to that chat while handling it.
func (s *Stack) Upload(chatID int64, username, fileName string, content []byte) string {
	fileID := s.API.StoreFile(content)
	return s.handle(chatID, username, &telegram.Message{Document: &telegram.Document{FileID: fileID, FileName: fileName}})
}

func (s *Stack) handle(chatID int64, username string, msg *telegram.Message) string {
	before := len(s.API.Messages(chatID))
	msg.From = &telegram.User{ID: chatID, Username: username}
	msg.Chat = telegram.Chat{ID: chatID, Type: "private", Username: username}
	msg.Date = time.Now().Unix()
	s.Dispatcher.HandleUpdate(context.Background(), telegram.Update{Message: msg})
	return strings.Join(s.API.Messages(chatID)[before:], "\n")
}

// RunPoller feeds queued updates through the real poller until the returned
// stop function is called.
func (s *Stack) RunPoller(t *testing.T) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	poller := telegram.NewPoller(s.Client, s.Dispatcher, nil)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, poller.Run(ctx))
	}()
	return func() {
		cancel()
		wg.Wait()
	}
}
