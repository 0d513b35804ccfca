// Package scratch manages the transient working directory that holds
// downloaded source videos and per-scene clip outputs.
package scratch

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const (
	clipExt   = ".mp4"
	sourceExt = ".source.mp4"
)

type Dir struct {
	root   string
	logger *slog.Logger
}

// New creates root if needed.
func New(root string, logger *slog.Logger) (*Dir, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("scratch dir is required")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	return &Dir{root: root, logger: logger}, nil
}

func (d *Dir) Root() string { return d.root }

// SourcePath is where a user's upload is stored. The same file id can reach
// the bot from several users, so the path is keyed by both. Clip stems never
// contain a dot, so a source cannot collide with one of the user's clips.
func (d *Dir) SourcePath(userID int64, fileID string) string {
	return filepath.Join(d.root, fmt.Sprintf("%d_%s%s", userID, safeSegment(fileID), sourceExt))
}

// ClipPath is the deterministic output path for a user's scene.
func (d *Dir) ClipPath(userID int64, stem string) string {
	return filepath.Join(d.root, fmt.Sprintf("%d_%s%s", userID, safeSegment(stem), clipExt))
}

// Remove deletes path, ignoring files that are already gone.
func (d *Dir) Remove(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		d.logger.Warn("failed to remove scratch file", "path", filepath.Base(path), "error", err)
		return
	}
	d.logger.Debug("removed scratch file", "path", filepath.Base(path))
}

// Sweep deletes every regular file left in the scratch dir, typically by a
// crash or restart mid-conversation. It returns the number removed.
func (d *Dir) Sweep() (int, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return 0, fmt.Errorf("failed to read scratch dir: %w", err)
	}
	removed := 0
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if err := os.Remove(filepath.Join(d.root, e.Name())); err != nil {
			d.logger.Warn("sweep: failed to remove", "name", e.Name(), "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		d.logger.Info("swept stale scratch files", "count", removed)
	}
	return removed, nil
}

// safeSegment keeps a single path element from escaping the scratch dir.
func safeSegment(s string) string {
	s = strings.ReplaceAll(s, string(filepath.Separator), "_")
	s = strings.ReplaceAll(s, "/", "_")
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}
