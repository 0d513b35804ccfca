package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"time"
	"unicode/utf8"
)

const (
	maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics

	// waitDelay bounds how long Wait blocks on stderr after the process is
	// killed, in case a grandchild still holds the pipe.
	waitDelay = 5 * time.Second
)

// command is the shared subprocess execution helper used by the ffmpeg and
// rclone adapters.
type command struct {
	bin     string
	timeout time.Duration // 0 = wait indefinitely
	logger  *slog.Logger
}

func (c command) run(ctx context.Context, args ...string) RunResult {
	start := time.Now()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.bin, args...)
	cmd.WaitDelay = waitDelay

	var stderrBuf bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}
	cmd.Stdout = io.Discard

	c.logger.Debug("executing command", "bin", c.bin, "args", args)

	err := cmd.Run()
	elapsed := time.Since(start)

	exitCode := 0
	stderrTail := trimToRune(stderrBuf.String())
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
		if stderrTail == "" {
			stderrTail = err.Error()
		}
	}

	if exitCode != 0 {
		c.logger.Warn("command failed",
			"bin", c.bin,
			"exit_code", exitCode,
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(stderrTail, 512),
		)
	} else {
		c.logger.Info("command succeeded",
			"bin", c.bin,
			"duration_ms", elapsed.Milliseconds(),
		)
	}

	return RunResult{
		Args:       append([]string{c.bin}, args...),
		ExitCode:   exitCode,
		StderrTail: stderrTail,
		Duration:   elapsed,
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + trimToRune(s[len(s)-maxLen:])
}

// trimToRune drops leading continuation bytes left by a byte-offset cut.
func trimToRune(s string) string {
	i := 0
	for i < len(s) && i < utf8.UTFMax && !utf8.RuneStart(s[i]) {
		i++
	}
	return s[i:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		tail := make([]byte, lw.limit)
		copy(tail, b[len(b)-lw.limit:])
		lw.w.Reset()
		lw.w.Write(tail)
	}
	return n, nil
}
