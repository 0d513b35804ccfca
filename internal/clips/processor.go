package clips

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"github.com/heimdex/scenebot/internal/jobs"
	"github.com/heimdex/scenebot/internal/logging"
	"github.com/heimdex/scenebot/internal/media"
	"github.com/heimdex/scenebot/internal/scenes"
	"github.com/heimdex/scenebot/internal/scratch"
)

type Config struct {
	Transcoder media.Transcoder
	Copier     media.Copier
	Notifier   Notifier
	Remote     RemoteTarget
	Scratch    *scratch.Dir
	History    jobs.Repository
	Policy     FailurePolicy
	Logger     *slog.Logger
}

type Processor struct {
	transcoder media.Transcoder
	copier     media.Copier
	notifier   Notifier
	remote     RemoteTarget
	scratch    *scratch.Dir
	history    jobs.Repository
	policy     FailurePolicy
	logger     *slog.Logger
}

func NewProcessor(cfg Config) *Processor {
	policy := cfg.Policy
	if policy == "" {
		policy = PolicyAbort
	}
	return &Processor{
		transcoder: cfg.Transcoder,
		copier:     cfg.Copier,
		notifier:   cfg.Notifier,
		remote:     cfg.Remote,
		scratch:    cfg.Scratch,
		history:    cfg.History,
		policy:     policy,
		logger:     logging.WithComponent(cfg.Logger, "clips"),
	}
}

func (p *Processor) Policy() FailurePolicy { return p.policy }

// Process trims and delivers every scene in order. The source file and each
// clip output are removed on every return path. With PolicyAbort the first
// failure ends the run and is returned; with PolicyContinue failures are
// collected in the report and the returned error is nil.
func (p *Processor) Process(ctx context.Context, job Job) (Report, error) {
	if job.SourcePath == "" || len(job.Scenes) == 0 {
		return Report{}, ErrMissingSession
	}
	defer p.scratch.Remove(job.SourcePath)

	report := Report{JobID: jobs.NewID()}
	logger := logging.WithJobID(logging.WithUserID(p.logger, job.UserID), report.JobID)
	p.createJob(ctx, report.JobID, job, logger)

	total := len(job.Scenes)
	logger.Info("processing started", "scenes", total, "destination", job.Destination, "policy", p.policy)

	for _, sc := range job.Scenes {
		started := time.Now()
		err := p.processScene(ctx, job, sc, total, logger)
		p.recordScene(ctx, report.JobID, sc, err, time.Since(started), logger)

		if err != nil {
			report.Failed = append(report.Failed, SceneFailure{Scene: sc, Err: err})
			logger.Error("scene failed", "index", sc.Index, "name", sc.Name, "error", err)

			if p.policy == PolicyAbort || ctx.Err() != nil {
				report.Aborted = true
				p.finishJob(ctx, report, total, logger)
				p.notify(ctx, job.ChatID, fmt.Sprintf("❌ Processing stopped at Scene %d/%d: %s (%s). Remaining scenes were skipped.",
					sc.Index, total, sc.Name, describe(err)))
				return report, fmt.Errorf("scene %d %q: %w", sc.Index, sc.Name, err)
			}

			p.notify(ctx, job.ChatID, fmt.Sprintf("⚠️ Scene %d/%d: %s failed (%s), continuing.",
				sc.Index, total, sc.Name, describe(err)))
			continue
		}

		report.Delivered = append(report.Delivered, sc)
		p.progress(ctx, report.JobID, len(report.Delivered)+len(report.Failed), logger)
	}

	p.finishJob(ctx, report, total, logger)

	if len(report.Failed) == 0 {
		p.notify(ctx, job.ChatID, "✅ All scenes processed successfully!")
	} else {
		p.notify(ctx, job.ChatID, fmt.Sprintf("⚠️ Finished: %d of %d scenes delivered, %d failed.",
			len(report.Delivered), total, len(report.Failed)))
	}
	return report, nil
}

func (p *Processor) processScene(ctx context.Context, job Job, sc scenes.Scene, total int, logger *slog.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	out := p.scratch.ClipPath(job.UserID, sc.FileStem())
	defer p.scratch.Remove(out)

	p.notify(ctx, job.ChatID, fmt.Sprintf("🔧 Trimming Scene %d/%d: %s (%s - %s)", sc.Index, total, sc.Name, sc.Start, sc.End))

	res, err := p.transcoder.Trim(ctx, job.SourcePath, sc.Start, sc.End, out)
	if err != nil {
		return fmt.Errorf("trim: %w", err)
	}
	if !res.IsSuccess() {
		return &SubprocessError{Tool: "ffmpeg", Result: res}
	}
	if info, err := os.Stat(out); err == nil {
		logger.Info("clip ready", "index", sc.Index, "file", filepath.Base(out),
			"size", humanize.Bytes(uint64(info.Size())), "took", res.Duration.Round(time.Millisecond))
	}

	switch job.Destination {
	case DestinationTelegram:
		if err := p.notifier.SendVideo(ctx, job.ChatID, out, sc.Name); err != nil {
			return fmt.Errorf("send video: %w", err)
		}

	case DestinationRclone:
		remote := p.remote.RemoteTarget()
		p.notify(ctx, job.ChatID, fmt.Sprintf("📤 Uploading Scene %d/%d: %s to Rclone remote...", sc.Index, total, sc.Name))
		res, err := p.copier.Copy(ctx, out, remote)
		if err != nil {
			return fmt.Errorf("copy: %w", err)
		}
		if !res.IsSuccess() {
			return &SubprocessError{Tool: "rclone", Result: res}
		}
		p.notify(ctx, job.ChatID, fmt.Sprintf("✅ Scene '%s' uploaded via Rclone.", sc.Name))

	default:
		return fmt.Errorf("unknown destination %q", job.Destination)
	}

	return nil
}

// notify sends a progress message. Delivery failures of progress text are
// logged and otherwise ignored.
func (p *Processor) notify(ctx context.Context, chatID int64, text string) {
	if err := p.notifier.SendText(ctx, chatID, text); err != nil {
		p.logger.Warn("failed to send progress message", "chat_id", chatID, "error", err)
	}
}

func (p *Processor) createJob(ctx context.Context, id string, job Job, logger *slog.Logger) {
	if p.history == nil {
		return
	}
	rec := &jobs.Job{
		ID:          id,
		UserID:      job.UserID,
		ChatID:      job.ChatID,
		Destination: string(job.Destination),
		SourceFile:  filepath.Base(job.SourcePath),
		ScenesTotal: len(job.Scenes),
		Status:      jobs.StatusRunning,
	}
	if err := p.history.CreateJob(ctx, rec); err != nil {
		logger.Warn("failed to record job", "error", err)
	}
}

func (p *Processor) recordScene(ctx context.Context, jobID string, sc scenes.Scene, sceneErr error, took time.Duration, logger *slog.Logger) {
	if p.history == nil {
		return
	}
	res := &jobs.SceneResult{
		JobID:    jobID,
		Index:    sc.Index,
		Name:     sc.Name,
		Start:    sc.Start,
		End:      sc.End,
		Status:   jobs.SceneDelivered,
		Duration: took,
	}
	if sceneErr != nil {
		res.Status = jobs.SceneFailed
		res.Error = detail(sceneErr)
	}
	if err := p.history.AddSceneResult(context.WithoutCancel(ctx), res); err != nil {
		logger.Warn("failed to record scene result", "index", sc.Index, "error", err)
	}
}

func (p *Processor) progress(ctx context.Context, jobID string, done int, logger *slog.Logger) {
	if p.history == nil {
		return
	}
	if err := p.history.UpdateJobProgress(ctx, jobID, done); err != nil {
		logger.Warn("failed to record progress", "error", err)
	}
}

func (p *Processor) finishJob(ctx context.Context, report Report, total int, logger *slog.Logger) {
	status := jobs.StatusCompleted
	errMsg := ""
	switch {
	case report.Aborted:
		status = jobs.StatusFailed
		errMsg = detail(report.Failed[len(report.Failed)-1].Err)
	case len(report.Failed) > 0:
		status = jobs.StatusPartial
		errMsg = fmt.Sprintf("%d of %d scenes failed", len(report.Failed), total)
	}

	logger.Info("processing finished", "status", status,
		"delivered", len(report.Delivered), "failed", len(report.Failed))

	if p.history == nil {
		return
	}
	// Record the outcome even when the run was cancelled.
	ctx = context.WithoutCancel(ctx)
	if err := p.history.UpdateJobProgress(ctx, report.JobID, len(report.Delivered)+len(report.Failed)); err != nil {
		logger.Warn("failed to record progress", "error", err)
	}
	if err := p.history.UpdateJobStatus(ctx, report.JobID, status, errMsg); err != nil {
		logger.Warn("failed to record job status", "error", err)
	}
}

// describe is the short, user-facing reason for a failure.
func describe(err error) string {
	if se, ok := asSubprocessError(err); ok {
		return se.Error()
	}
	return err.Error()
}

// detail includes the stderr tail for the job history.
func detail(err error) string {
	if se, ok := asSubprocessError(err); ok && se.Result.StderrTail != "" {
		return fmt.Sprintf("%s: %s", se.Error(), tail(se.Result.StderrTail, 512))
	}
	return err.Error()
}

// tail keeps at most the last n bytes of s, starting on a rune boundary.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	i := len(s) - n
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return s[i:]
}
