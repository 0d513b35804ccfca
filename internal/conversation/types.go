// Package conversation drives the per-user flow: choose a destination,
// upload a video, send trim ranges, name the scenes, then process.
package conversation

import (
	"context"
	"strings"
	"time"

	"github.com/heimdex/scenebot/internal/clips"
	"github.com/heimdex/scenebot/internal/scenes"
)

// State is a position in the conversation.
type State int

const (
	StateTerminal State = iota
	StateAwaitingDestination
	StateAwaitingVideo
	StateAwaitingTrimRanges
	StateAwaitingSceneNames
	StateProcessing
)

func (s State) String() string {
	switch s {
	case StateAwaitingDestination:
		return "awaiting_destination"
	case StateAwaitingVideo:
		return "awaiting_video"
	case StateAwaitingTrimRanges:
		return "awaiting_trim_ranges"
	case StateAwaitingSceneNames:
		return "awaiting_scene_names"
	case StateProcessing:
		return "processing"
	default:
		return "terminal"
	}
}

// Attachment is an uploaded file as described by the chat platform.
type Attachment struct {
	FileID   string
	FileName string
	MimeType string
	Size     int64
	// IsVideo is true for native video messages. Documents rely on MimeType.
	IsVideo bool
}

// IsVideoAttachment accepts native videos and documents with a video/* type.
func (a *Attachment) IsVideoAttachment() bool {
	if a == nil || a.FileID == "" {
		return false
	}
	return a.IsVideo || strings.HasPrefix(strings.ToLower(a.MimeType), "video/")
}

// Message is an inbound, non-command chat message.
type Message struct {
	UserID     int64
	ChatID     int64
	Text       string
	Attachment *Attachment
}

// Messenger is the chat front-end used by the conversation and the clip
// processor.
type Messenger interface {
	clips.Notifier
	// SendChoices presents a one-time quick-reply keyboard.
	SendChoices(ctx context.Context, chatID int64, text string, choices []string) error
	// SendTextClearKeyboard sends text and removes any reply keyboard.
	SendTextClearKeyboard(ctx context.Context, chatID int64, text string) error
	// DownloadFile stores the platform file at dest and returns its size.
	DownloadFile(ctx context.Context, fileID, dest string) (int64, error)
}

// Session is one user's in-progress conversation.
type Session struct {
	UserID      int64
	ChatID      int64
	State       State
	Destination clips.Destination
	SourcePath  string
	Ranges      []scenes.Range
	Names       []string
	StartedAt   time.Time
}
