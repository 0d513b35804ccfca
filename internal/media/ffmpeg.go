package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

const (
	videoCodec = "libx264"
	audioCodec = "aac"
)

// FFmpeg trims scenes by re-encoding with widely supported codecs.
type FFmpeg struct {
	cmd command
}

func NewFFmpeg(bin string, timeout time.Duration, logger *slog.Logger) *FFmpeg {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &FFmpeg{cmd: command{bin: bin, timeout: timeout, logger: logger.With("tool", "ffmpeg")}}
}

func (f *FFmpeg) Bin() string { return f.cmd.bin }

// Trim writes input[start:end] to output, overwriting it if present.
// start and end are handed to ffmpeg unvalidated.
func (f *FFmpeg) Trim(ctx context.Context, input, start, end, output string) (RunResult, error) {
	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return RunResult{}, fmt.Errorf("create output dir: %w", err)
	}
	return f.cmd.run(ctx, trimArgs(input, start, end, output)...), nil
}

func trimArgs(input, start, end, output string) []string {
	return []string{
		"-i", input,
		"-ss", start,
		"-to", end,
		"-c:v", videoCodec,
		"-c:a", audioCodec,
		"-y",
		output,
	}
}
