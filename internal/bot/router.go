package bot

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/heimdex/scenebot/internal/access"
	"github.com/heimdex/scenebot/internal/conversation"
	"github.com/heimdex/scenebot/internal/logging"
)

const helpText = `Commands:
/start - trim a video into named scenes
/cancel - abandon the current conversation
/id - show your Telegram user ID

Admin:
/add <user_id> - allow a user
/rm <user_id> - remove a user
/setrclone <remote:path> - set the Rclone destination`

// Conversation is the per-user state machine behind the router.
type Conversation interface {
	Start(ctx context.Context, userID, chatID int64) conversation.State
	Cancel(ctx context.Context, userID, chatID int64) conversation.State
	Handle(ctx context.Context, msg conversation.Message) conversation.State
}

// Replier sends plain text replies.
type Replier interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// Router turns updates into admin commands or conversation input.
type Router struct {
	conv   Conversation
	roster *access.Roster
	reply  Replier
	logger *slog.Logger
}

func NewRouter(conv Conversation, roster *access.Roster, reply Replier, logger *slog.Logger) *Router {
	return &Router{
		conv:   conv,
		roster: roster,
		reply:  reply,
		logger: logging.WithComponent(logger, "router"),
	}
}

// Route handles a single update. It blocks until the update is fully
// processed, which for the last conversation step includes every scene.
func (r *Router) Route(ctx context.Context, upd tgbotapi.Update) {
	userID, chatID, ok := sender(upd)
	if !ok {
		return
	}
	m := upd.Message

	if !m.IsCommand() {
		r.conv.Handle(ctx, toMessage(m))
		return
	}

	cmd, args := m.Command(), m.CommandArguments()
	r.logger.Debug("command", "user_id", userID, "command", cmd)

	switch cmd {
	case "start":
		r.conv.Start(ctx, userID, chatID)
	case "cancel":
		r.conv.Cancel(ctx, userID, chatID)
	case "add":
		r.addUser(ctx, userID, chatID, args)
	case "rm":
		r.removeUser(ctx, userID, chatID, args)
	case "setrclone":
		r.setRemote(ctx, userID, chatID, args)
	case "id":
		r.send(ctx, chatID, fmt.Sprintf("Your Telegram user ID is: %d", userID))
	case "help":
		r.send(ctx, chatID, helpText)
	default:
		r.send(ctx, chatID, "Unknown command. Send /help for the list.")
	}
}

func (r *Router) addUser(ctx context.Context, userID, chatID int64, args string) {
	if !r.roster.IsAdmin(userID) {
		r.send(ctx, chatID, "❌ Only the admin can add users.")
		return
	}
	id, err := access.ParseIdentityArg(args)
	if err != nil {
		r.send(ctx, chatID, "❌ Usage: /add <user_id>")
		return
	}
	r.roster.Add(id)
	r.logger.Info("user added", "user_id", id, "roster_size", r.roster.Len())
	r.send(ctx, chatID, fmt.Sprintf("✅ User %d added.", id))
}

func (r *Router) removeUser(ctx context.Context, userID, chatID int64, args string) {
	if !r.roster.IsAdmin(userID) {
		r.send(ctx, chatID, "❌ Only the admin can remove users.")
		return
	}
	id, err := access.ParseIdentityArg(args)
	if err != nil {
		r.send(ctx, chatID, "❌ Usage: /rm <user_id>")
		return
	}
	r.roster.Remove(id)
	r.logger.Info("user removed", "user_id", id, "roster_size", r.roster.Len())
	r.send(ctx, chatID, fmt.Sprintf("✅ User %d removed.", id))
}

func (r *Router) setRemote(ctx context.Context, userID, chatID int64, args string) {
	if !r.roster.IsAdmin(userID) {
		r.send(ctx, chatID, "❌ Only the admin can set the Rclone remote.")
		return
	}
	remote, err := access.ParseRemoteArg(args)
	if err != nil {
		r.send(ctx, chatID, "❌ Usage: /setrclone <remote:path>")
		return
	}
	r.roster.SetRemoteTarget(remote)
	r.logger.Info("rclone remote changed", "remote", remote)
	r.send(ctx, chatID, fmt.Sprintf("✅ Rclone remote set to: %s", remote))
}

func (r *Router) send(ctx context.Context, chatID int64, text string) {
	if err := r.reply.SendText(ctx, chatID, text); err != nil {
		r.logger.Warn("failed to send reply", "chat_id", chatID, "error", err)
	}
}
