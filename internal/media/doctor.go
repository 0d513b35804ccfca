package media

import (
	"fmt"
	"log/slog"
	"os/exec"
)

// ToolStatus reports whether an external binary can be found.
type ToolStatus struct {
	Name      string `json:"name"`
	Path      string `json:"path,omitempty"`
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

// Probe resolves the ffmpeg and rclone binaries on PATH. Missing tools are
// reported, not fatal: the bot can still run the conversation and fail at
// processing time with a clear message.
func Probe(logger *slog.Logger, bins ...string) []ToolStatus {
	out := make([]ToolStatus, 0, len(bins))
	for _, bin := range bins {
		st := ToolStatus{Name: bin}
		p, err := exec.LookPath(bin)
		if err != nil {
			st.Error = fmt.Sprintf("%s not found: %v", bin, err)
			logger.Warn("external tool unavailable", "tool", bin, "error", err)
		} else {
			st.Path = p
			st.Available = true
			logger.Info("external tool found", "tool", bin, "path", p)
		}
		out = append(out, st)
	}
	return out
}
