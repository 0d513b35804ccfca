package media

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Rclone copies finished clips to a configured remote.
type Rclone struct {
	cmd command
}

func NewRclone(bin string, timeout time.Duration, logger *slog.Logger) *Rclone {
	if bin == "" {
		bin = "rclone"
	}
	return &Rclone{cmd: command{bin: bin, timeout: timeout, logger: logger.With("tool", "rclone")}}
}

func (r *Rclone) Bin() string { return r.cmd.bin }

// Copy runs `rclone copy <localPath> <remote>`.
func (r *Rclone) Copy(ctx context.Context, localPath, remote string) (RunResult, error) {
	if strings.TrimSpace(remote) == "" {
		return RunResult{}, fmt.Errorf("rclone remote is not configured")
	}
	return r.cmd.run(ctx, "copy", localPath, remote), nil
}
