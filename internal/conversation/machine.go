package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/heimdex/scenebot/internal/access"
	"github.com/heimdex/scenebot/internal/clips"
	"github.com/heimdex/scenebot/internal/logging"
	"github.com/heimdex/scenebot/internal/scenes"
	"github.com/heimdex/scenebot/internal/scratch"
)

const (
	msgNotAuthorized    = "❌ You are not authorized to use this bot."
	msgWelcome          = "👋 Welcome! Please choose your upload destination:"
	msgInvalidChoice    = "❌ Invalid choice. Please select 'Telegram' or 'Rclone'."
	msgSendVideo        = "📤 Now, please send the video you want to trim."
	msgInvalidVideo     = "❌ Please send a valid video file."
	msgDownloadFailed   = "❌ Could not download the video, please send it again."
	msgRangesPrompt     = "📍 Send start-end time ranges for trimming (format: hh:mm:ss-hh:mm:ss), multiple scenes separated by commas.\nExample:\n00:00:10-00:00:20,00:01:00-00:01:10"
	msgInvalidFormat    = "❌ Invalid format. Try like: 00:00:10-00:00:20"
	msgNamesPrompt      = "✏️ Now send names for each scene separated by commas (e.g. intro,ending,scene3). Number of names must match number of scenes."
	msgNameCount        = "❌ Number of names must match number of scenes."
	msgStarting         = "⏳ Starting processing of scenes..."
	msgStillProcessing  = "⏳ Still processing your scenes, please wait."
	msgNoData           = "❌ No data found, please start over with /start."
	msgCancelled        = "❌ Operation cancelled."
	msgNothingToCancel  = "Nothing to cancel. Send /start to begin."
)

// Processor runs the clip loop for a finished conversation.
type Processor interface {
	Process(ctx context.Context, job clips.Job) (clips.Report, error)
}

type Config struct {
	Roster    *access.Roster
	Messenger Messenger
	Processor Processor
	Scratch   *scratch.Dir
	Logger    *slog.Logger
}

// Machine holds every user's session. Sessions are keyed by identity and
// never shared, so the lock only protects the map itself.
type Machine struct {
	roster    *access.Roster
	msgr      Messenger
	processor Processor
	scratch   *scratch.Dir
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.Mutex
	sessions map[int64]Session
}

func NewMachine(cfg Config) *Machine {
	return &Machine{
		roster:    cfg.Roster,
		msgr:      cfg.Messenger,
		processor: cfg.Processor,
		scratch:   cfg.Scratch,
		logger:    logging.WithComponent(cfg.Logger, "conversation"),
		now:       time.Now,
		sessions:  make(map[int64]Session),
	}
}

// Start enters the conversation. Any previous session for the user is
// discarded so the new one starts clean.
func (m *Machine) Start(ctx context.Context, userID, chatID int64) State {
	if !m.roster.IsAuthorized(userID) {
		m.logger.Info("unauthorized start", "user_id", userID)
		m.send(ctx, chatID, msgNotAuthorized)
		return StateTerminal
	}

	if old, ok := m.take(userID); ok {
		m.release(old)
		m.logger.Info("restarted conversation", "user_id", userID, "previous_state", old.State)
	}

	m.store(Session{
		UserID:    userID,
		ChatID:    chatID,
		State:     StateAwaitingDestination,
		StartedAt: m.now(),
	})
	m.choices(ctx, chatID, msgWelcome)
	return StateAwaitingDestination
}

// Cancel ends the user's conversation and removes any downloaded video.
func (m *Machine) Cancel(ctx context.Context, userID, chatID int64) State {
	old, ok := m.take(userID)
	if !ok {
		m.send(ctx, chatID, msgNothingToCancel)
		return StateTerminal
	}
	m.release(old)
	m.logger.Info("conversation cancelled", "user_id", userID, "state", old.State)
	if err := m.msgr.SendTextClearKeyboard(ctx, chatID, msgCancelled); err != nil {
		m.logger.Warn("failed to send message", "chat_id", chatID, "error", err)
	}
	return StateTerminal
}

// Handle feeds a non-command message into the user's conversation and
// returns the resulting state.
func (m *Machine) Handle(ctx context.Context, msg Message) State {
	sess, ok := m.get(msg.UserID)
	if !ok {
		if m.roster.IsAuthorized(msg.UserID) {
			m.send(ctx, msg.ChatID, msgNoData)
		}
		return StateTerminal
	}

	switch sess.State {
	case StateAwaitingDestination:
		return m.handleDestination(ctx, sess, msg)
	case StateAwaitingVideo:
		return m.handleVideo(ctx, sess, msg)
	case StateAwaitingTrimRanges:
		return m.handleTrimRanges(ctx, sess, msg)
	case StateAwaitingSceneNames:
		return m.handleSceneNames(ctx, sess, msg)
	case StateProcessing:
		m.send(ctx, msg.ChatID, msgStillProcessing)
		return StateProcessing
	default:
		return StateTerminal
	}
}

func (m *Machine) handleDestination(ctx context.Context, sess Session, msg Message) State {
	dest, ok := clips.ParseDestination(msg.Text)
	if !ok {
		m.choices(ctx, msg.ChatID, msgInvalidChoice)
		return sess.State
	}

	sess.Destination = dest
	sess.State = StateAwaitingVideo
	m.store(sess)

	if err := m.msgr.SendTextClearKeyboard(ctx, msg.ChatID, msgSendVideo); err != nil {
		m.logger.Warn("failed to send message", "chat_id", msg.ChatID, "error", err)
	}
	return sess.State
}

func (m *Machine) handleVideo(ctx context.Context, sess Session, msg Message) State {
	if !msg.Attachment.IsVideoAttachment() {
		m.send(ctx, msg.ChatID, msgInvalidVideo)
		return sess.State
	}

	dest := m.scratch.SourcePath(sess.UserID, msg.Attachment.FileID)
	size, err := m.msgr.DownloadFile(ctx, msg.Attachment.FileID, dest)
	if err != nil {
		m.scratch.Remove(dest)
		m.logger.Error("video download failed", "user_id", sess.UserID, "error", err)
		m.send(ctx, msg.ChatID, msgDownloadFailed)
		return sess.State
	}

	sess.SourcePath = dest
	sess.State = StateAwaitingTrimRanges
	m.store(sess)

	m.logger.Info("video received", "user_id", sess.UserID, "size", humanize.Bytes(uint64(size)))
	m.send(ctx, msg.ChatID, fmt.Sprintf("📥 Received video (%s).\n%s", humanize.Bytes(uint64(size)), msgRangesPrompt))
	return sess.State
}

func (m *Machine) handleTrimRanges(ctx context.Context, sess Session, msg Message) State {
	ranges, err := scenes.ParseRanges(msg.Text)
	if err != nil {
		m.send(ctx, msg.ChatID, msgInvalidFormat)
		return sess.State
	}

	sess.Ranges = ranges
	sess.State = StateAwaitingSceneNames
	m.store(sess)

	m.send(ctx, msg.ChatID, fmt.Sprintf("%s (%d %s)", msgNamesPrompt, len(ranges), pluralScenes(len(ranges))))
	return sess.State
}

func (m *Machine) handleSceneNames(ctx context.Context, sess Session, msg Message) State {
	names := scenes.ParseNames(msg.Text)
	list, err := scenes.Zip(sess.Ranges, names)
	if err != nil {
		m.send(ctx, msg.ChatID, fmt.Sprintf("%s Expected %d, got %d.", msgNameCount, len(sess.Ranges), len(names)))
		return sess.State
	}

	sess.Names = names
	sess.State = StateProcessing
	m.store(sess)

	m.send(ctx, msg.ChatID, msgStarting)

	// The session ends with the job, even if processing panics.
	defer m.take(sess.UserID)
	_, err = m.processor.Process(ctx, clips.Job{
		UserID:      sess.UserID,
		ChatID:      sess.ChatID,
		Destination: sess.Destination,
		SourcePath:  sess.SourcePath,
		Scenes:      list,
	})

	switch {
	case err == nil:
	case errors.Is(err, clips.ErrMissingSession):
		m.send(ctx, msg.ChatID, msgNoData)
	default:
		// The processor has already told the user which scene failed.
		m.logger.Warn("processing ended with error", "user_id", sess.UserID, "error", err)
	}
	return StateTerminal
}

// State returns the user's current state.
func (m *Machine) State(userID int64) State {
	sess, ok := m.get(userID)
	if !ok {
		return StateTerminal
	}
	return sess.State
}

// Session returns a copy of the user's session.
func (m *Machine) Session(userID int64) (Session, bool) {
	return m.get(userID)
}

// ActiveSessions counts conversations that have not reached Terminal.
func (m *Machine) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Machine) get(userID int64) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	return s, ok
}

func (m *Machine) store(s Session) {
	m.mu.Lock()
	m.sessions[s.UserID] = s
	m.mu.Unlock()
}

func (m *Machine) take(userID int64) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	delete(m.sessions, userID)
	return s, ok
}

// release deletes files owned by a discarded session. A session that is
// processing hands its source file to the processor, which cleans it up.
func (m *Machine) release(s Session) {
	if s.State == StateProcessing {
		return
	}
	m.scratch.Remove(s.SourcePath)
}

func (m *Machine) send(ctx context.Context, chatID int64, text string) {
	if err := m.msgr.SendText(ctx, chatID, text); err != nil {
		m.logger.Warn("failed to send message", "chat_id", chatID, "error", err)
	}
}

func (m *Machine) choices(ctx context.Context, chatID int64, text string) {
	opts := make([]string, len(clips.Destinations))
	for i, d := range clips.Destinations {
		opts[i] = string(d)
	}
	if err := m.msgr.SendChoices(ctx, chatID, text, opts); err != nil {
		m.logger.Warn("failed to send message", "chat_id", chatID, "error", err)
	}
}

func pluralScenes(n int) string {
	if n == 1 {
		return "scene"
	}
	return "scenes"
}
