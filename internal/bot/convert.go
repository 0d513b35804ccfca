package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/heimdex/scenebot/internal/conversation"
)

// sender returns the user and chat an update came from. ok is false for
// updates without a user-originated message.
func sender(upd tgbotapi.Update) (userID, chatID int64, ok bool) {
	m := upd.Message
	if m == nil || m.From == nil || m.Chat == nil {
		return 0, 0, false
	}
	return m.From.ID, m.Chat.ID, true
}

// toMessage converts a non-command Telegram message.
func toMessage(m *tgbotapi.Message) conversation.Message {
	msg := conversation.Message{
		Text: m.Text,
	}
	if m.From != nil {
		msg.UserID = m.From.ID
	}
	if m.Chat != nil {
		msg.ChatID = m.Chat.ID
	}

	switch {
	case m.Video != nil:
		msg.Attachment = &conversation.Attachment{
			FileID:   m.Video.FileID,
			FileName: m.Video.FileName,
			MimeType: m.Video.MimeType,
			Size:     int64(m.Video.FileSize),
			IsVideo:  true,
		}
	case m.Document != nil:
		msg.Attachment = &conversation.Attachment{
			FileID:   m.Document.FileID,
			FileName: m.Document.FileName,
			MimeType: m.Document.MimeType,
			Size:     int64(m.Document.FileSize),
		}
	}
	return msg
}
