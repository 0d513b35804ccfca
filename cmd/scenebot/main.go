package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/heimdex/scenebot/internal/access"
	"github.com/heimdex/scenebot/internal/api"
	"github.com/heimdex/scenebot/internal/bot"
	"github.com/heimdex/scenebot/internal/clips"
	"github.com/heimdex/scenebot/internal/config"
	"github.com/heimdex/scenebot/internal/conversation"
	"github.com/heimdex/scenebot/internal/db"
	"github.com/heimdex/scenebot/internal/jobs"
	"github.com/heimdex/scenebot/internal/logging"
	"github.com/heimdex/scenebot/internal/media"
	"github.com/heimdex/scenebot/internal/scratch"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:          "scenebot",
		Short:        "Telegram bot that trims uploaded videos into named scene clips",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadEnvFile(envFile); err != nil {
				return err
			}
			return run(cmd.Context())
		},
	}
	root.SilenceErrors = true
	root.Flags().StringVar(&envFile, "env-file", ".env", "Load environment variables from this file if it exists")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "scenebot %s (commit %s, built %s)\n",
				config.Version, config.GitCommit, config.BuildTime)
		},
	})

	return root
}

// loadEnvFile loads path into the environment. A missing file is not an
// error; variables already set take precedence.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func run(parent context.Context) error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting scenebot",
		"version", config.Version,
		"data_dir", logging.SanitizePath(cfg.DataDir()),
		"admin_id", cfg.AdminID(),
		"on_failure", cfg.OnFailure(),
	)

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := jobs.NewRepository(database.Conn())

	work, err := scratch.New(cfg.ScratchDir(), logging.WithComponent(logger, "scratch"))
	if err != nil {
		return err
	}
	if _, err := work.Sweep(); err != nil {
		logger.Warn("scratch sweep failed", "error", err)
	}

	tools := media.Probe(logger, cfg.FFmpegPath(), cfg.RclonePath())

	policy, err := clips.ParsePolicy(cfg.OnFailure())
	if err != nil {
		return err
	}

	roster := access.NewRoster(cfg.AdminID(), cfg.RcloneRemote())

	tg, err := bot.NewTelegram(cfg.TelegramToken(), logger)
	if err != nil {
		return err
	}

	processor := clips.NewProcessor(clips.Config{
		Transcoder: media.NewFFmpeg(cfg.FFmpegPath(), cfg.SubprocessTimeout(), logger),
		Copier:     media.NewRclone(cfg.RclonePath(), cfg.SubprocessTimeout(), logger),
		Notifier:   tg,
		Remote:     roster,
		Scratch:    work,
		History:    repo,
		Policy:     policy,
		Logger:     logger,
	})

	machine := conversation.NewMachine(conversation.Config{
		Roster:    roster,
		Messenger: tg,
		Processor: processor,
		Scratch:   work,
		Logger:    logger,
	})

	router := bot.NewRouter(machine, roster, tg, logger)
	dispatcher := bot.NewDispatcher(router.Route, logger)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var apiServer *api.Server
	if cfg.Port() > 0 {
		authToken, err := ensureAuthToken(ctx, repo)
		if err != nil {
			return fmt.Errorf("failed to ensure auth token: %w", err)
		}
		apiServer = api.NewServer(api.ServerConfig{
			Port:       cfg.Port(),
			Repository: repo,
			Sessions:   machine,
			Roster:     roster,
			Tools:      tools,
			OnFailure:  string(policy),
			Logger:     logging.WithComponent(logger, "api"),
			StartTime:  startTime,
			Version:    config.Version,
		})
		fmt.Printf("Status API: http://%s (token %s)\n", apiServer.Addr(), authToken)

		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error("HTTP server error", "error", err)
			}
		}()
	} else {
		logger.Info("status API disabled")
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		tg.Poll(ctx, func(upd tgbotapi.Update) {
			dispatcher.Dispatch(ctx, upd)
		})
	}()

	<-ctx.Done()
	logger.Info("initiating graceful shutdown")

	wg.Wait()
	// In-flight conversations see the cancelled context, stop at the next
	// scene and remove their scratch files.
	dispatcher.Wait()

	if apiServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown HTTP server", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

func ensureAuthToken(ctx context.Context, repo jobs.Repository) (string, error) {
	existing, err := repo.GetConfig(ctx, api.AuthTokenKey)
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, api.AuthTokenKey, token); err != nil {
		return "", err
	}

	return token, nil
}
