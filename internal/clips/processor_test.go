package clips

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/heimdex/scenebot/internal/access"
	"github.com/heimdex/scenebot/internal/db"
	"github.com/heimdex/scenebot/internal/jobs"
	"github.com/heimdex/scenebot/internal/logging"
	"github.com/heimdex/scenebot/internal/media"
	"github.com/heimdex/scenebot/internal/scenes"
	"github.com/heimdex/scenebot/internal/scratch"
)

type trimCall struct {
	input, start, end, output string
}

type fakeTranscoder struct {
	mu       sync.Mutex
	calls    []trimCall
	failAt   map[int]int // call number (1-based) -> exit code
	onCalled func(n int)
}

func (f *fakeTranscoder) Trim(ctx context.Context, input, start, end, output string) (media.RunResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, trimCall{input, start, end, output})
	n := len(f.calls)
	f.mu.Unlock()

	if f.onCalled != nil {
		f.onCalled(n)
	}
	if err := os.WriteFile(output, []byte("clip"), 0o644); err != nil {
		return media.RunResult{}, err
	}
	if code, ok := f.failAt[n]; ok {
		return media.RunResult{ExitCode: code, StderrTail: "Invalid duration specification"}, nil
	}
	return media.RunResult{}, nil
}

type copyCall struct {
	local, remote string
	existed       bool
}

type fakeCopier struct {
	calls    []copyCall
	exitCode int
}

func (f *fakeCopier) Copy(ctx context.Context, localPath, remote string) (media.RunResult, error) {
	_, err := os.Stat(localPath)
	f.calls = append(f.calls, copyCall{local: localPath, remote: remote, existed: err == nil})
	return media.RunResult{ExitCode: f.exitCode, StderrTail: "copy failed"}, nil
}

type sentVideo struct {
	chatID  int64
	path    string
	caption string
	existed bool
}

type fakeNotifier struct {
	mu       sync.Mutex
	texts    []string
	videos   []sentVideo
	videoErr error
}

func (f *fakeNotifier) SendText(ctx context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeNotifier) SendVideo(ctx context.Context, chatID int64, path, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := os.Stat(path)
	f.videos = append(f.videos, sentVideo{chatID: chatID, path: path, caption: caption, existed: err == nil})
	return f.videoErr
}

func (f *fakeNotifier) lastText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.texts) == 0 {
		return ""
	}
	return f.texts[len(f.texts)-1]
}

type testEnv struct {
	proc       *Processor
	transcoder *fakeTranscoder
	copier     *fakeCopier
	notifier   *fakeNotifier
	roster     *access.Roster
	scratch    *scratch.Dir
	repo       *jobs.SQLiteRepository
}

func newTestEnv(t *testing.T, policy FailurePolicy) *testEnv {
	t.Helper()

	tmp := t.TempDir()
	database, err := db.New(filepath.Join(tmp, "test.db"), nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	dir, err := scratch.New(filepath.Join(tmp, "downloads"), logging.Discard())
	if err != nil {
		t.Fatalf("scratch.New() error = %v", err)
	}

	env := &testEnv{
		transcoder: &fakeTranscoder{failAt: map[int]int{}},
		copier:     &fakeCopier{},
		notifier:   &fakeNotifier{},
		roster:     access.NewRoster(1, "remote:TelegramBotUploads"),
		scratch:    dir,
		repo:       jobs.NewRepository(database.Conn()),
	}
	env.proc = NewProcessor(Config{
		Transcoder: env.transcoder,
		Copier:     env.copier,
		Notifier:   env.notifier,
		Remote:     env.roster,
		Scratch:    dir,
		History:    env.repo,
		Policy:     policy,
		Logger:     logging.Discard(),
	})
	return env
}

func (e *testEnv) sourceFile(t *testing.T) string {
	t.Helper()
	path := e.scratch.SourcePath(7, "BAADBAAD")
	if err := os.WriteFile(path, []byte("video"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

func (e *testEnv) assertScratchEmpty(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(e.scratch.Root())
	if err != nil {
		t.Fatalf("read scratch: %v", err)
	}
	if len(entries) != 0 {
		names := make([]string, len(entries))
		for i, en := range entries {
			names[i] = en.Name()
		}
		t.Fatalf("scratch not cleaned up, left: %v", names)
	}
}

func (e *testEnv) job(t *testing.T, reportID string) *jobs.Job {
	t.Helper()
	j, err := e.repo.GetJob(context.Background(), reportID)
	if err != nil || j == nil {
		t.Fatalf("GetJob(%s) = %v, %v", reportID, j, err)
	}
	return j
}

func makeScenes(names ...string) []scenes.Scene {
	out := make([]scenes.Scene, len(names))
	for i, n := range names {
		out[i] = scenes.Scene{Index: i + 1, Start: fmt.Sprintf("00:0%d:00", i), End: fmt.Sprintf("00:0%d:10", i), Name: n}
	}
	return out
}

func TestProcess_TelegramDeliversInOrder(t *testing.T) {
	env := newTestEnv(t, PolicyAbort)
	src := env.sourceFile(t)

	report, err := env.proc.Process(context.Background(), Job{
		UserID:      7,
		ChatID:      70,
		Destination: DestinationTelegram,
		SourcePath:  src,
		Scenes:      makeScenes("intro", "ending"),
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if len(env.notifier.videos) != 2 {
		t.Fatalf("videos sent = %d, want 2", len(env.notifier.videos))
	}
	for i, want := range []string{"intro", "ending"} {
		v := env.notifier.videos[i]
		if v.caption != want {
			t.Errorf("video %d caption = %q, want %q", i, v.caption, want)
		}
		if !v.existed {
			t.Errorf("video %d file did not exist at send time", i)
		}
		if v.chatID != 70 {
			t.Errorf("video %d chat = %d, want 70", i, v.chatID)
		}
	}
	if got := env.transcoder.calls[0]; got.input != src || got.start != "00:00:00" || got.end != "00:00:10" {
		t.Errorf("first trim call = %+v", got)
	}
	if filepath.Base(env.transcoder.calls[1].output) != "7_ending.mp4" {
		t.Errorf("second output = %q, want 7_ending.mp4", env.transcoder.calls[1].output)
	}
	if len(env.copier.calls) != 0 {
		t.Errorf("copier called %d times for Telegram destination", len(env.copier.calls))
	}
	if env.notifier.lastText() != "✅ All scenes processed successfully!" {
		t.Errorf("last message = %q", env.notifier.lastText())
	}
	env.assertScratchEmpty(t)

	j := env.job(t, report.JobID)
	if j.Status != jobs.StatusCompleted || j.ScenesDone != 2 || j.ScenesTotal != 2 {
		t.Errorf("job = %+v", j)
	}
	results, _ := env.repo.ListSceneResults(context.Background(), report.JobID)
	if len(results) != 2 || results[0].Status != jobs.SceneDelivered {
		t.Errorf("scene results = %+v", results)
	}
}

func TestProcess_RcloneCopiesToCurrentRemote(t *testing.T) {
	env := newTestEnv(t, PolicyAbort)
	src := env.sourceFile(t)
	env.roster.SetRemoteTarget("gdrive:Scenes")

	_, err := env.proc.Process(context.Background(), Job{
		UserID:      7,
		ChatID:      7,
		Destination: DestinationRclone,
		SourcePath:  src,
		Scenes:      makeScenes("intro"),
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if len(env.transcoder.calls) != 1 {
		t.Fatalf("trim calls = %d, want 1", len(env.transcoder.calls))
	}
	if len(env.copier.calls) != 1 {
		t.Fatalf("copy calls = %d, want 1", len(env.copier.calls))
	}
	c := env.copier.calls[0]
	if c.local != env.transcoder.calls[0].output {
		t.Errorf("copied %q, want transcoder output %q", c.local, env.transcoder.calls[0].output)
	}
	if c.remote != "gdrive:Scenes" {
		t.Errorf("remote = %q, want gdrive:Scenes", c.remote)
	}
	if !c.existed {
		t.Error("clip did not exist when copy ran")
	}
	if len(env.notifier.videos) != 0 {
		t.Errorf("videos sent = %d for Rclone destination", len(env.notifier.videos))
	}
	env.assertScratchEmpty(t)
}

func TestProcess_RcloneFailureStillRemovesClip(t *testing.T) {
	env := newTestEnv(t, PolicyAbort)
	env.copier.exitCode = 1
	src := env.sourceFile(t)

	report, err := env.proc.Process(context.Background(), Job{
		UserID:      7,
		ChatID:      7,
		Destination: DestinationRclone,
		SourcePath:  src,
		Scenes:      makeScenes("intro"),
	})
	if !errors.Is(err, ErrSubprocess) {
		t.Fatalf("Process() error = %v, want ErrSubprocess", err)
	}
	if len(env.copier.calls) != 1 {
		t.Fatalf("copy calls = %d, want 1", len(env.copier.calls))
	}
	env.assertScratchEmpty(t)

	if !strings.Contains(env.notifier.lastText(), "rclone exited 1") {
		t.Errorf("last message = %q, want terminal error mentioning rclone", env.notifier.lastText())
	}

	j := env.job(t, report.JobID)
	if j.Status != jobs.StatusFailed {
		t.Errorf("job status = %s, want failed", j.Status)
	}
	if !strings.Contains(j.Error, "copy failed") {
		t.Errorf("job error = %q, want stderr tail", j.Error)
	}
}

func TestProcess_AbortStopsAtFirstFailure(t *testing.T) {
	env := newTestEnv(t, PolicyAbort)
	env.transcoder.failAt[2] = 1
	src := env.sourceFile(t)

	report, err := env.proc.Process(context.Background(), Job{
		UserID:      7,
		ChatID:      7,
		Destination: DestinationTelegram,
		SourcePath:  src,
		Scenes:      makeScenes("one", "two", "three"),
	})
	if !errors.Is(err, ErrSubprocess) {
		t.Fatalf("Process() error = %v, want ErrSubprocess", err)
	}
	if !report.Aborted {
		t.Error("report.Aborted = false")
	}
	if len(env.transcoder.calls) != 2 {
		t.Errorf("trim calls = %d, want 2", len(env.transcoder.calls))
	}
	if len(env.notifier.videos) != 1 || env.notifier.videos[0].caption != "one" {
		t.Errorf("videos = %+v, want only scene one", env.notifier.videos)
	}
	if !strings.HasPrefix(env.notifier.lastText(), "❌ Processing stopped at Scene 2/3: two") {
		t.Errorf("last message = %q", env.notifier.lastText())
	}
	env.assertScratchEmpty(t)

	j := env.job(t, report.JobID)
	if j.Status != jobs.StatusFailed || j.ScenesDone != 2 {
		t.Errorf("job = %+v", j)
	}
}

func TestProcess_ContinueSkipsFailedScene(t *testing.T) {
	env := newTestEnv(t, PolicyContinue)
	env.transcoder.failAt[1] = 1
	src := env.sourceFile(t)

	report, err := env.proc.Process(context.Background(), Job{
		UserID:      7,
		ChatID:      7,
		Destination: DestinationTelegram,
		SourcePath:  src,
		Scenes:      makeScenes("one", "two", "three"),
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(env.transcoder.calls) != 3 {
		t.Errorf("trim calls = %d, want 3", len(env.transcoder.calls))
	}
	if len(report.Delivered) != 2 || len(report.Failed) != 1 {
		t.Fatalf("report = %+v", report)
	}
	if report.Failed[0].Scene.Name != "one" {
		t.Errorf("failed scene = %q, want one", report.Failed[0].Scene.Name)
	}
	if len(env.notifier.videos) != 2 {
		t.Errorf("videos sent = %d, want 2", len(env.notifier.videos))
	}
	if !strings.Contains(env.notifier.lastText(), "2 of 3 scenes delivered, 1 failed") {
		t.Errorf("last message = %q", env.notifier.lastText())
	}
	env.assertScratchEmpty(t)

	j := env.job(t, report.JobID)
	if j.Status != jobs.StatusPartial || j.ScenesDone != 3 {
		t.Errorf("job = %+v", j)
	}
}

func TestProcess_DeliveryErrorCleansUp(t *testing.T) {
	env := newTestEnv(t, PolicyAbort)
	env.notifier.videoErr = errors.New("Request Entity Too Large")
	src := env.sourceFile(t)

	_, err := env.proc.Process(context.Background(), Job{
		UserID:      7,
		ChatID:      7,
		Destination: DestinationTelegram,
		SourcePath:  src,
		Scenes:      makeScenes("big", "small"),
	})
	if err == nil || !strings.Contains(err.Error(), "Request Entity Too Large") {
		t.Fatalf("Process() error = %v", err)
	}
	if errors.Is(err, ErrSubprocess) {
		t.Error("delivery error must not be reported as a subprocess failure")
	}
	env.assertScratchEmpty(t)
}

func TestProcess_CancelledContextSkipsRemaining(t *testing.T) {
	env := newTestEnv(t, PolicyContinue)
	src := env.sourceFile(t)

	ctx, cancel := context.WithCancel(context.Background())
	env.transcoder.onCalled = func(n int) {
		if n == 1 {
			cancel()
		}
	}

	report, err := env.proc.Process(ctx, Job{
		UserID:      7,
		ChatID:      7,
		Destination: DestinationTelegram,
		SourcePath:  src,
		Scenes:      makeScenes("one", "two", "three"),
	})
	if err == nil {
		t.Fatal("expected an error after cancellation")
	}
	if !report.Aborted {
		t.Error("cancellation must abort even with PolicyContinue")
	}
	if len(env.transcoder.calls) != 1 {
		t.Errorf("trim calls = %d, want 1", len(env.transcoder.calls))
	}
	env.assertScratchEmpty(t)

	j := env.job(t, report.JobID)
	if j.Status != jobs.StatusFailed {
		t.Errorf("job status = %s, want failed", j.Status)
	}
}

func TestProcess_MissingSession(t *testing.T) {
	env := newTestEnv(t, PolicyAbort)

	_, err := env.proc.Process(context.Background(), Job{UserID: 7})
	if !errors.Is(err, ErrMissingSession) {
		t.Fatalf("Process() error = %v, want ErrMissingSession", err)
	}
	if len(env.transcoder.calls) != 0 {
		t.Fatal("transcoder must not run without a session")
	}
}

func TestProcess_EmptyNameUsesPositionalStem(t *testing.T) {
	env := newTestEnv(t, PolicyAbort)
	src := env.sourceFile(t)

	_, err := env.proc.Process(context.Background(), Job{
		UserID:      7,
		ChatID:      7,
		Destination: DestinationTelegram,
		SourcePath:  src,
		Scenes:      makeScenes("!!!"),
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if got := filepath.Base(env.transcoder.calls[0].output); got != "7_scene_1.mp4" {
		t.Fatalf("output = %q, want 7_scene_1.mp4", got)
	}
	if env.notifier.videos[0].caption != "!!!" {
		t.Fatalf("caption = %q, want raw name", env.notifier.videos[0].caption)
	}
}

func TestTail_KeepsRunesWhole(t *testing.T) {
	s := "abc" + strings.Repeat("é", 3)

	got := tail(s, 5)
	if got != "éé" {
		t.Fatalf("tail() = %q, want %q", got, "éé")
	}
	if !utf8.ValidString(got) {
		t.Fatalf("tail() produced invalid UTF-8: %q", got)
	}
	if tail("short", 512) != "short" {
		t.Fatal("tail() changed a short string")
	}
	if got := tail("Ошибка: файл не найден", 7); !utf8.ValidString(got) {
		t.Fatalf("tail() produced invalid UTF-8: %q", got)
	}
}

func TestParseDestination(t *testing.T) {
	for _, in := range []string{"Telegram", "Rclone"} {
		if d, ok := ParseDestination(in); !ok || string(d) != in {
			t.Errorf("ParseDestination(%q) = %q, %v", in, d, ok)
		}
	}
	for _, in := range []string{"telegram", "RCLONE", " Telegram", "", "Drive"} {
		if _, ok := ParseDestination(in); ok {
			t.Errorf("ParseDestination(%q) accepted", in)
		}
	}
}

func TestParsePolicy(t *testing.T) {
	tests := map[string]FailurePolicy{
		"":          PolicyAbort,
		"abort":     PolicyAbort,
		"Continue ": PolicyContinue,
	}
	for in, want := range tests {
		got, err := ParsePolicy(in)
		if err != nil || got != want {
			t.Errorf("ParsePolicy(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParsePolicy("retry"); err == nil {
		t.Error("ParsePolicy(retry) expected error")
	}
}
