package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/saidjob/olympiad/internal/bot"
	"github.com/saidjob/olympiad/internal/config"
	"github.com/saidjob/olympiad/internal/deadline"
	"github.com/saidjob/olympiad/internal/domain/activity"
	"github.com/saidjob/olympiad/internal/domain/organizer"
	"github.com/saidjob/olympiad/internal/domain/session"
	"github.com/saidjob/olympiad/internal/filestore"
	"github.com/saidjob/olympiad/internal/mcp"
	"github.com/saidjob/olympiad/internal/sqlite"
	"github.com/saidjob/olympiad/internal/telegram"
	"github.com/saidjob/olympiad/internal/telemetry"
	"github.com/saidjob/olympiad/internal/transport"
	"golang.org/x/sync/errgroup"
)

var version = "dev"

const usage = `usage:
  server                         run the bot (and the organizer console if enabled)
  server keygen <organizer-id> [description]
                                 mint a console bearer token for an organizer
  server hash-secret [secret]    print the bcrypt hash of a registration password
                                 (read from stdin when omitted)`

func main() {
	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "", "serve":
		err = serve()
	case "keygen":
		err = keygen(args)
	case "hash-secret":
		err = hashSecret(args, os.Stdin, os.Stdout)
	case "help", "-h", "--help":
		fmt.Println(usage)
	default:
		err = fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func serve() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := cfg.RequireBot(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// Use stderr for logs in stdio mode to keep stdout clean for JSON-RPC.
	logWriter := io.Writer(os.Stdout)
	if cfg.MCP.Mode == config.ModeStdio {
		logWriter = os.Stderr
	}
	if logPath := os.Getenv("OLYMPIAD_LOG_PATH"); logPath != "" {
		fileWriter, file, err := newLogFileWriter(logPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log file error: %v\n", err)
		} else {
			defer file.Close()
			logWriter = fileWriter
		}
	}
	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "olympiad", version, cfg.Telemetry.Endpoint)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	db, err := openDB(cfg.DB.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	participants, organizerStore := stores(cfg, db)
	activitySvc := activity.NewService(sqlite.NewActivityRepository(db), logger)

	organizers := organizer.NewRegistry(organizerStore, cfg.Olympiad.Organizers, logger).WithRecorder(activitySvc)
	if err := organizers.Load(ctx); err != nil {
		return err
	}

	client := telegram.NewClientWithBase(cfg.Telegram.Token, cfg.Telegram.APIBase)
	chat := telegram.NewAdapter(client)

	scheduler := deadline.NewScheduler(bot.NewReminder(chat), logger)
	defer scheduler.Stop()

	svc := session.NewService(session.Config{
		Window:            cfg.Olympiad.Window,
		SecretHash:        []byte(cfg.Olympiad.SecretHash),
		AllowedExtensions: cfg.Olympiad.AllowedExtensions,
		Period:            session.Period{Start: cfg.Olympiad.Start, End: cfg.Olympiad.End},
	}, session.Dependencies{
		Store:      participants,
		Notifier:   chat,
		Directory:  chat,
		Artifacts:  filestore.NewArtifactDir(cfg.Olympiad.SolutionsDir),
		Tasks:      filestore.NewTaskBundle(cfg.Olympiad.TasksPath, cfg.Olympiad.TasksCaption),
		Timers:     scheduler,
		Organizers: organizers,
		Activity:   activitySvc,
	}, logger)
	scheduler.SetExpirer(svc)

	if err := svc.Load(ctx); err != nil {
		return err
	}
	logger.Info("countdowns restored", "count", svc.Restore(ctx))

	dispatcher := bot.NewDispatcher(svc, organizers, chat, client, chat, logger)
	poller := telegram.NewPoller(client, dispatcher, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		dispatcher.BroadcastStart(gctx)
		return nil
	})
	g.Go(func() error {
		return poller.Run(gctx)
	})

	if cfg.MCP.Mode != config.ModeOff {
		apiKeys := sqlite.NewAPIKeyRepository(db)
		console := mcp.NewServer(mcp.Config{
			Services: mcp.Services{
				Sessions:   svc,
				Organizers: organizers,
				Activity:   activitySvc,
			},
			Resolver:      apiKeys,
			TransportMode: cfg.MCP.Mode,
			OrganizerID:   cfg.MCP.OrganizerID,
			Version:       version,
			Logger:        logger,
		})
		g.Go(func() error {
			if cfg.MCP.Mode == config.ModeStdio {
				return runStdioConsole(gctx, logger, console)
			}
			router := transport.NewServer(
				mcp.NewHTTPHandler(console, cfg.MCP.SessionTimeout),
				transport.AuthMiddleware(apiKeys),
			)
			return transport.ListenAndServe(gctx, cfg.MCP.Host, cfg.MCP.Port, router, logger)
		})
	}

	logger.Info("olympiad bot started",
		"version", version,
		"store", cfg.Store.Backend,
		"console", cfg.MCP.Mode,
		"window", cfg.Olympiad.Window,
	)
	err = g.Wait()
	logger.Info("shutting down")
	return err
}

// runStdioConsole serves the console until stdin closes or ctx ends. Closing
// stdin does not stop the bot.
func runStdioConsole(ctx context.Context, logger *slog.Logger, server *sdkmcp.Server) error {
	logger.Info("starting stdio console")
	err := server.Run(ctx, &sdkmcp.StdioTransport{})
	if err != nil && ctx.Err() == nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("stdio console: %w", err)
	}
	logger.Info("stdio console closed")
	return nil
}

func stores(cfg config.Config, db *sqlite.DB) (session.Store, organizer.Store) {
	if cfg.Store.Backend == config.BackendSQLite {
		return sqlite.NewParticipantRepository(db), sqlite.NewOrganizerRepository(db)
	}
	return filestore.NewStateStore(cfg.Store.StatePath), filestore.NewOrganizerFile(cfg.Store.OrganizersPath)
}

func openDB(path string) (*sqlite.DB, error) {
	if err := ensureDBDir(path); err != nil {
		return nil, fmt.Errorf("prepare database path: %w", err)
	}
	db, err := sqlite.New(path)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func keygen(args []string) error {
	if len(args) == 0 {
		return errors.New("keygen: organizer id is required")
	}
	organizerID := strings.TrimSpace(args[0])
	description := strings.Join(args[1:], " ")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	db, err := openDB(cfg.DB.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	token, err := sqlite.NewAPIKeyRepository(db).Issue(context.Background(), organizerID, description)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func hashSecret(args []string, in io.Reader, out io.Writer) error {
	var secret string
	if len(args) > 0 {
		secret = args[0]
	} else {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read secret: %w", err)
		}
		secret = strings.TrimRight(line, "\r\n")
	}
	if secret == "" {
		return errors.New("hash-secret: empty secret")
	}
	hash, err := session.HashSecret(secret, 0)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, hash)
	return err
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

const (
	maxLogSizeBytes  = 6 * 1024 * 1024
	keepLogSizeBytes = 5 * 1024 * 1024
)

// logFileWriter appends to a file and trims it to the newest
// keepLogSizeBytes once it grows past maxLogSizeBytes.
type logFileWriter struct {
	file *os.File
	max  int64
	keep int64
	mu   sync.Mutex
}

func newLogFileWriter(path string) (*logFileWriter, *os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, err
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	w := &logFileWriter{file: file, max: maxLogSizeBytes, keep: keepLogSizeBytes}
	if err := w.trim(); err != nil {
		file.Close()
		return nil, nil, err
	}
	return w, file, nil
}

func (w *logFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := w.file.Write(p)
	if err != nil {
		return n, err
	}
	return n, w.trim()
}

func (w *logFileWriter) trim() error {
	info, err := w.file.Stat()
	if err != nil {
		return err
	}
	size := info.Size()
	if size <= w.max {
		return nil
	}

	tail := make([]byte, w.keep)
	n, err := w.file.ReadAt(tail, size-w.keep)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	// O_APPEND makes every write land at the end, so rewrite from zero.
	if err := w.file.Truncate(0); err != nil {
		return err
	}
	_, err = w.file.Write(tail[:n])
	return err
}
