// Package bot connects the conversation machine to the Telegram Bot API:
// long polling, command routing, per-user dispatch and outbound messages.
package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/heimdex/scenebot/internal/logging"
)

const (
	pollTimeout     = 60
	downloadTimeout = 30 * time.Minute
)

// botAPI is the subset of *tgbotapi.BotAPI used here.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Telegram sends and receives through the Bot API. It implements
// conversation.Messenger.
type Telegram struct {
	api    botAPI
	client *http.Client
	logger *slog.Logger
}

// NewTelegram authenticates with the Bot API using token.
func NewTelegram(token string, logger *slog.Logger) (*Telegram, error) {
	if token == "" {
		return nil, errors.New("telegram token is required")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %s",
			strings.ReplaceAll(err.Error(), token, logging.SanitizeToken(token)))
	}
	t := newTelegram(api, &http.Client{Timeout: downloadTimeout}, logger)
	t.logger.Info("authorized", "bot", api.Self.UserName)
	return t, nil
}

func newTelegram(api botAPI, client *http.Client, logger *slog.Logger) *Telegram {
	return &Telegram{
		api:    api,
		client: client,
		logger: logging.WithComponent(logger, "telegram"),
	}
}

// Poll delivers updates to handle until ctx is cancelled.
func (t *Telegram) Poll(ctx context.Context, handle func(tgbotapi.Update)) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeout
	updates := t.api.GetUpdatesChan(cfg)
	defer t.api.StopReceivingUpdates()

	t.logger.Info("polling for updates")
	for {
		select {
		case <-ctx.Done():
			t.logger.Info("polling stopped")
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			handle(upd)
		}
	}
}

func (t *Telegram) SendText(ctx context.Context, chatID int64, text string) error {
	return t.send(tgbotapi.NewMessage(chatID, text))
}

func (t *Telegram) SendChoices(ctx context.Context, chatID int64, text string, choices []string) error {
	buttons := make([]tgbotapi.KeyboardButton, len(choices))
	for i, c := range choices {
		buttons[i] = tgbotapi.NewKeyboardButton(c)
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewOneTimeReplyKeyboard(tgbotapi.NewKeyboardButtonRow(buttons...))
	return t.send(msg)
}

func (t *Telegram) SendTextClearKeyboard(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	return t.send(msg)
}

// SendVideo uploads the file at path as a video message.
func (t *Telegram) SendVideo(ctx context.Context, chatID int64, path, caption string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	video := tgbotapi.NewVideo(chatID, tgbotapi.FilePath(path))
	video.Caption = caption
	if err := t.send(video); err != nil {
		return fmt.Errorf("upload %s: %w", filepath.Base(path), err)
	}
	return nil
}

// DownloadFile fetches a file by id and writes it to dest.
func (t *Telegram) DownloadFile(ctx context.Context, fileID, dest string) (int64, error) {
	url, err := t.api.GetFileDirectURL(fileID)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		// The URL embeds the bot token.
		return 0, fmt.Errorf("download failed: %s", redactURL(err.Error(), url))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return 0, fmt.Errorf("failed to create download dir: %w", err)
	}
	f, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("failed to write file: %w", err)
	}
	return n, nil
}

func (t *Telegram) send(c tgbotapi.Chattable) error {
	if _, err := t.api.Send(c); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func redactURL(msg, url string) string {
	return strings.ReplaceAll(msg, url, "<file url>")
}
