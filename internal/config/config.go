// Package config provides configuration management for scenebot.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	// Default values
	DefaultPort         = 8788
	DefaultLogLevel     = "info"
	DefaultDataDir      = ".scenebot"
	DefaultRcloneRemote = "remote:TelegramBotUploads"
	DefaultFFmpegPath   = "ffmpeg"
	DefaultRclonePath   = "rclone"
	DefaultOnFailure    = "abort"

	// Environment variable names
	EnvTelegramToken     = "SCENEBOT_TELEGRAM_TOKEN"
	EnvAdminID           = "SCENEBOT_ADMIN_ID"
	EnvRcloneRemote      = "SCENEBOT_RCLONE_REMOTE"
	EnvPort              = "SCENEBOT_PORT"
	EnvLogLevel          = "SCENEBOT_LOG_LEVEL"
	EnvDataDir           = "SCENEBOT_DATA_DIR"
	EnvFFmpegPath        = "SCENEBOT_FFMPEG_PATH"
	EnvRclonePath        = "SCENEBOT_RCLONE_PATH"
	EnvOnFailure         = "SCENEBOT_ON_FAILURE"
	EnvSubprocessTimeout = "SCENEBOT_SUBPROCESS_TIMEOUT"

	// Database filename
	DBFilename = "scenebot.db"

	// Scratch subdirectory for downloads and clip outputs
	ScratchDirname = "downloads"
)

// Config defines the application configuration interface
type Config interface {
	TelegramToken() string
	AdminID() int64
	RcloneRemote() string
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	ScratchDir() string
	FFmpegPath() string
	RclonePath() string
	OnFailure() string
	SubprocessTimeout() time.Duration
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	telegramToken string
	adminID       int64
	rcloneRemote  string
	port          int
	logLevel      string
	dataDir       string

	ffmpegPath        string
	rclonePath        string
	onFailure         string
	subprocessTimeout time.Duration
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		rcloneRemote: DefaultRcloneRemote,
		port:         DefaultPort,
		logLevel:     DefaultLogLevel,
		dataDir:      defaultDataDir(),
		ffmpegPath:   DefaultFFmpegPath,
		rclonePath:   DefaultRclonePath,
		onFailure:    DefaultOnFailure,
	}

	cfg.telegramToken = strings.TrimSpace(os.Getenv(EnvTelegramToken))
	if cfg.telegramToken == "" {
		return nil, fmt.Errorf("%s is required", EnvTelegramToken)
	}

	admin := strings.TrimSpace(os.Getenv(EnvAdminID))
	if admin == "" {
		return nil, fmt.Errorf("%s is required", EnvAdminID)
	}
	adminID, err := strconv.ParseInt(admin, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", EnvAdminID, err)
	}
	cfg.adminID = adminID

	if r := os.Getenv(EnvRcloneRemote); r != "" {
		cfg.rcloneRemote = r
	}

	// Port 0 disables the status API
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 0 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 0 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	if fp := os.Getenv(EnvFFmpegPath); fp != "" {
		cfg.ffmpegPath = fp
	}
	if rp := os.Getenv(EnvRclonePath); rp != "" {
		cfg.rclonePath = rp
	}

	if of := os.Getenv(EnvOnFailure); of != "" {
		of = strings.ToLower(strings.TrimSpace(of))
		if of != "abort" && of != "continue" {
			return nil, fmt.Errorf("invalid %s: must be abort or continue", EnvOnFailure)
		}
		cfg.onFailure = of
	}

	if st := os.Getenv(EnvSubprocessTimeout); st != "" {
		d, err := time.ParseDuration(st)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvSubprocessTimeout, err)
		}
		if d < 0 {
			return nil, fmt.Errorf("invalid %s: must not be negative", EnvSubprocessTimeout)
		}
		cfg.subprocessTimeout = d
	}

	return cfg, nil
}

// TelegramToken returns the bot API token
func (c *EnvConfig) TelegramToken() string {
	return c.telegramToken
}

// AdminID returns the bootstrapped admin identity
func (c *EnvConfig) AdminID() int64 {
	return c.adminID
}

// RcloneRemote returns the initial remote target
func (c *EnvConfig) RcloneRemote() string {
	return c.rcloneRemote
}

// Port returns the status API port, 0 when disabled
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// ScratchDir returns the directory for downloaded sources and clip outputs
func (c *EnvConfig) ScratchDir() string {
	return filepath.Join(c.dataDir, ScratchDirname)
}

func (c *EnvConfig) FFmpegPath() string {
	return c.ffmpegPath
}

func (c *EnvConfig) RclonePath() string {
	return c.rclonePath
}

// OnFailure returns the clip failure policy: abort or continue
func (c *EnvConfig) OnFailure() string {
	return c.onFailure
}

// SubprocessTimeout returns the per-invocation limit, 0 meaning none
func (c *EnvConfig) SubprocessTimeout() time.Duration {
	return c.subprocessTimeout
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
