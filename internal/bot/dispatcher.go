// Package bot turns chat updates into session engine calls and renders the
// outcomes back as replies.
package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/saidjob/olympiad/internal/domain/session"
	"github.com/saidjob/olympiad/internal/telegram"
)

// Engine is the session engine surface used by the dispatcher.
type Engine interface {
	EnsureParticipant(ctx context.Context, id string) error
	Register(ctx context.Context, id, secret string) (*session.Participant, error)
	IssueTask(ctx context.Context, id, code string) (*session.Participant, error)
	SubmitSolution(ctx context.Context, id string, artifact session.Artifact) (*session.Receipt, error)
	Reevaluate(ctx context.Context, id string) (bool, error)
	IsLocked(id string) bool
	Get(id string) (session.Participant, bool)
	Phase() (session.EventPhase, time.Duration)
	Window() time.Duration
	ParticipantIDs() []string

	ListParticipants(ctx context.Context) []session.Summary
	ListSubmissions(ctx context.Context) []session.Submission
	ListScores(ctx context.Context) []session.Summary
	SolutionByCode(ctx context.Context, organizerID, code string) (session.Document, error)
	FindByHandle(ctx context.Context, handle string) (session.Participant, error)
	SetScore(ctx context.Context, id, organizerID string, score int) error
	DeleteParticipant(ctx context.Context, id, organizerID string) error
}

// Organizers is the organizer registry surface used by the dispatcher.
type Organizers interface {
	IsOrganizer(id string) bool
	Add(ctx context.Context, actorID, newID string) error
}

// Downloader fetches uploaded files.
type Downloader interface {
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}

// Observer learns display handles from inbound messages.
type Observer interface {
	Observe(u *telegram.User)
}

// Dispatcher routes chat updates to the session engine and organizer registry.
type Dispatcher struct {
	engine     Engine
	organizers Organizers
	notifier   session.Notifier
	files      Downloader
	observer   Observer
	state      *StateManager
	logger     *slog.Logger
}

// NewDispatcher creates a dispatcher. A nil logger discards output.
func NewDispatcher(engine Engine, organizers Organizers, notifier session.Notifier, files Downloader, observer Observer, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dispatcher{
		engine:     engine,
		organizers: organizers,
		notifier:   notifier,
		files:      files,
		observer:   observer,
		state:      NewStateManager(),
		logger:     logger,
	}
}

// HandleUpdate implements telegram.UpdateHandler.
func (d *Dispatcher) HandleUpdate(ctx context.Context, u telegram.Update) {
	msg := u.Message
	if msg == nil || msg.From == nil || msg.From.IsBot {
		return
	}
	if msg.Chat.Type != "" && msg.Chat.Type != "private" {
		return
	}
	if d.observer != nil {
		d.observer.Observe(msg.From)
	}
	d.handleMessage(ctx, msg)
}

func (d *Dispatcher) handleMessage(ctx context.Context, msg *telegram.Message) {
	id := strconv.FormatInt(msg.From.ID, 10)

	expired, err := d.engine.Reevaluate(ctx, id)
	if err != nil {
		d.logger.Warn("re-evaluation failed", "participant_id", id, "error", err)
	}
	if expired {
		d.reply(ctx, id, msgTimeout)
	}

	if msg.Document != nil {
		d.state.Clear(id)
		d.handleDocument(ctx, id, msg.Document)
		return
	}

	text := strings.TrimSpace(msg.Text)
	cmd := command(text)

	if d.engine.IsLocked(id) && cmd != "/help" {
		d.reply(ctx, id, msgLocked)
		return
	}

	if cmd != "" {
		d.state.Clear(id)
		d.handleCommand(ctx, id, cmd, msg.From)
		return
	}

	switch step := d.state.Take(id); step {
	case StepPassword:
		d.onPassword(ctx, id, text)
	case StepTaskCode:
		d.onTaskCode(ctx, id, text)
	case StepDeleteHandles:
		d.onDeleteHandles(ctx, id, text)
	case StepSolutionCode:
		d.onSolutionCode(ctx, id, text)
	case StepScore:
		d.onScore(ctx, id, text)
	case StepAddOrganizer:
		d.onAddOrganizer(ctx, id, text)
	default:
		d.reply(ctx, id, msgUnknown)
	}
}

func (d *Dispatcher) handleCommand(ctx context.Context, id, cmd string, from *telegram.User) {
	switch cmd {
	case "/start":
		d.reply(ctx, id, startText(from.Username))
	case "/help":
		text := helpText(d.engine.Window())
		if d.organizers.IsOrganizer(id) {
			text += "\n" + organizerHelp
		}
		d.reply(ctx, id, text)
	case "/register":
		d.cmdRegister(ctx, id, from)
	case "/stat":
		d.cmdStat(ctx, id)
	case "/get_tasks":
		d.cmdGetTasks(ctx, id)
	case "/registered_users":
		d.cmdRegisteredUsers(ctx, id)
	case "/delete_users":
		d.promptOrganizer(ctx, id, StepDeleteHandles, msgAskHandles)
	case "/results":
		d.cmdResults(ctx, id)
	case "/result_olymp":
		d.cmdResultOlymp(ctx, id)
	case "/list_balls":
		d.cmdListScores(ctx, id)
	case "/add_admin":
		d.promptOrganizer(ctx, id, StepAddOrganizer, msgAskOrganizerID)
	default:
		d.reply(ctx, id, msgUnknown)
	}
}

func (d *Dispatcher) cmdRegister(ctx context.Context, id string, from *telegram.User) {
	if p, ok := d.engine.Get(id); ok && p.Registered {
		d.reply(ctx, id, msgAlreadyReg)
		return
	}
	if from.Username == "" {
		if err := d.engine.EnsureParticipant(ctx, id); err != nil {
			d.logger.Warn("failed to create placeholder", "participant_id", id, "error", err)
		}
		d.reply(ctx, id, msgNeedHandle)
		return
	}
	d.state.Set(id, StepPassword)
	d.reply(ctx, id, msgAskPassword)
}

func (d *Dispatcher) onPassword(ctx context.Context, id, secret string) {
	p, err := d.engine.Register(ctx, id, secret)
	switch {
	case err == nil:
		d.reply(ctx, id, registeredText(p.AccessCode))
	case errors.Is(err, session.ErrInvalidSecret):
		d.reply(ctx, id, msgWrongPassword)
		d.state.Set(id, StepPassword)
		d.reply(ctx, id, msgAskPassword)
	default:
		d.replyError(ctx, id, err, msgStorageFailed)
	}
}

func (d *Dispatcher) cmdStat(ctx context.Context, id string) {
	phase, left := d.engine.Phase()
	switch phase {
	case session.PhaseNotStarted:
		d.reply(ctx, id, "The olympiad period has not started yet. Time until the start: "+formatSpan(left)+". Use /help for details.")
	case session.PhaseFinished:
		d.reply(ctx, id, "The olympiad period is over. Use /help for details.")
	default:
		text := "The olympiad period is running."
		if left > 0 {
			text += " Time until the end: " + formatSpan(left) + "."
		}
		text += " To get the tasks press /get_tasks. You will have exactly " + formatClock(d.engine.Window()) + " to send your solution (PDF only)."
		d.reply(ctx, id, text)
	}
}

func (d *Dispatcher) cmdGetTasks(ctx context.Context, id string) {
	if p, ok := d.engine.Get(id); !ok || !p.Registered {
		d.reply(ctx, id, msgNotRegistered)
		return
	}
	d.state.Set(id, StepTaskCode)
	d.reply(ctx, id, msgAskCode)
}

func (d *Dispatcher) onTaskCode(ctx context.Context, id, code string) {
	if _, err := d.engine.IssueTask(ctx, id, code); err != nil {
		d.replyError(ctx, id, err, msgDeliveryFailed)
		return
	}
	d.reply(ctx, id, tasksSentText(d.engine.Window()))
}

func (d *Dispatcher) handleDocument(ctx context.Context, id string, doc *telegram.Document) {
	artifact := session.Artifact{
		FileName: doc.FileName,
		Fetch: func(ctx context.Context) ([]byte, error) {
			return d.files.DownloadFile(ctx, doc.FileID)
		},
	}
	receipt, err := d.engine.SubmitSolution(ctx, id, artifact)
	if err != nil {
		d.replyError(ctx, id, err, msgSubmitFailed)
		return
	}
	d.reply(ctx, id, receiptText(receipt.Elapsed))
}

// replyError renders an engine error for the participant. Unclassified
// errors are answered with fallback.
func (d *Dispatcher) replyError(ctx context.Context, id string, err error, fallback string) {
	var text string
	switch {
	case errors.Is(err, session.ErrNotRegistered):
		text = msgNotRegistered
	case errors.Is(err, session.ErrAlreadyRegistered):
		text = msgAlreadyReg
	case errors.Is(err, session.ErrCodeMismatch):
		text = msgWrongCode
	case errors.Is(err, session.ErrTimerActive):
		text = msgWindowOpen
	case errors.Is(err, session.ErrOutsideEventPeriod):
		text = msgOutsidePeriod
	case errors.Is(err, session.ErrUnsupportedFormat):
		text = msgNotPDF
	case errors.Is(err, session.ErrAlreadySubmitted):
		text = msgAlreadySent
	case errors.Is(err, session.ErrTimerNotActive):
		text = msgNoWindow
	case errors.Is(err, session.ErrDeadlineExceeded):
		text = msgTimeout
	case errors.Is(err, session.ErrNotAuthorized):
		text = msgNoRights
	case errors.Is(err, session.ErrRecipientUnreachable):
		d.logger.Info("participant unreachable", "participant_id", id, "error", err)
		return
	case errors.Is(err, session.ErrPersistence):
		d.logger.Error("operation not committed", "participant_id", id, "error", err)
		text = msgStorageFailed
	default:
		d.logger.Error("operation failed", "participant_id", id, "error", err)
		text = fallback
	}
	d.reply(ctx, id, text)
}

func (d *Dispatcher) reply(ctx context.Context, id, text string) {
	if err := d.notifier.SendText(ctx, id, text); err != nil {
		if errors.Is(err, session.ErrRecipientUnreachable) {
			d.logger.Info("participant unreachable", "participant_id", id)
			return
		}
		d.logger.Warn("reply failed", "participant_id", id, "error", err)
	}
}

// command extracts "/name" from text, dropping a "@botname" suffix and any
// arguments. Non-command text yields "".
func command(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	word := strings.Fields(text)[0]
	if at := strings.IndexByte(word, '@'); at > 0 {
		word = word[:at]
	}
	return strings.ToLower(word)
}
