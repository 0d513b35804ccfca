// Package clips trims scenes out of an uploaded video one at a time and
// delivers each result before starting the next.
package clips

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/heimdex/scenebot/internal/media"
	"github.com/heimdex/scenebot/internal/scenes"
)

// Destination is where finished clips go.
type Destination string

const (
	DestinationTelegram Destination = "Telegram"
	DestinationRclone   Destination = "Rclone"
)

// Destinations lists the accepted choices in keyboard order.
var Destinations = []Destination{DestinationTelegram, DestinationRclone}

// ParseDestination accepts exactly "Telegram" or "Rclone" (case-sensitive).
func ParseDestination(s string) (Destination, bool) {
	for _, d := range Destinations {
		if s == string(d) {
			return d, true
		}
	}
	return "", false
}

// FailurePolicy decides what happens after a scene fails.
type FailurePolicy string

const (
	// PolicyAbort stops at the first failed scene.
	PolicyAbort FailurePolicy = "abort"
	// PolicyContinue reports the failed scene and moves to the next one.
	PolicyContinue FailurePolicy = "continue"
)

func ParsePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyAbort:
		return PolicyAbort, nil
	case PolicyContinue:
		return PolicyContinue, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q", s)
	}
}

var (
	ErrMissingSession = errors.New("no session data")
	ErrSubprocess     = errors.New("subprocess failed")
)

// SubprocessError carries the result of a tool invocation that exited
// non-zero. It matches ErrSubprocess with errors.Is.
type SubprocessError struct {
	Tool   string
	Result media.RunResult
}

func (e *SubprocessError) Error() string {
	return fmt.Sprintf("%s exited %d", e.Tool, e.Result.ExitCode)
}

func (e *SubprocessError) Unwrap() error { return ErrSubprocess }

// Notifier is the subset of the chat front-end the processor talks to.
type Notifier interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendVideo(ctx context.Context, chatID int64, path, caption string) error
}

// RemoteTarget supplies the current rclone destination. It is read for
// every copy so admin changes apply to the next scene.
type RemoteTarget interface {
	RemoteTarget() string
}

// Job is everything collected by a finished conversation.
type Job struct {
	UserID      int64
	ChatID      int64
	Destination Destination
	SourcePath  string
	Scenes      []scenes.Scene
}

// SceneFailure records a scene that was not delivered.
type SceneFailure struct {
	Scene scenes.Scene
	Err   error
}

// Report summarises a processing run.
type Report struct {
	JobID     string
	Delivered []scenes.Scene
	Failed    []SceneFailure
	Aborted   bool
}

func asSubprocessError(err error) (*SubprocessError, bool) {
	var se *SubprocessError
	ok := errors.As(err, &se)
	return se, ok
}
