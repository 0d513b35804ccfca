// Package media runs the external ffmpeg and rclone tools as subprocesses.
// Their output is never parsed; only the exit status and a bounded stderr
// tail are kept for diagnostics.
package media

import (
	"context"
	"time"
)

// RunResult is the structured outcome of executing a subprocess.
type RunResult struct {
	Args       []string      `json:"args"`
	ExitCode   int           `json:"exit_code"`
	StderrTail string        `json:"stderr_tail,omitempty"` // last N bytes of stderr
	Duration   time.Duration `json:"duration"`
}

// IsSuccess returns true when the subprocess exited cleanly.
func (r RunResult) IsSuccess() bool { return r.ExitCode == 0 }

// Transcoder cuts one scene out of a source video.
type Transcoder interface {
	Trim(ctx context.Context, input, start, end, output string) (RunResult, error)
}

// Copier ships a local file to a remote target.
type Copier interface {
	Copy(ctx context.Context, localPath, remote string) (RunResult, error)
}
