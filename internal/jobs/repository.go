package jobs

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/heimdex/scenebot/internal/db"
)

type Repository interface {
	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, limit int) ([]*Job, error)
	CountRunning(ctx context.Context) (int, error)
	UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error
	UpdateJobProgress(ctx context.Context, id string, scenesDone int) error

	AddSceneResult(ctx context.Context, res *SceneResult) error
	ListSceneResults(ctx context.Context, jobID string) ([]*SceneResult, error)

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(conn *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: conn}
}

const jobColumns = `id, user_id, chat_id, destination, source_file, scenes_total, scenes_done, status, error, created_at, updated_at`

func (r *SQLiteRepository) CreateJob(ctx context.Context, j *Job) error {
	now := time.Now().UTC()
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	j.UpdatedAt = now
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.UserID, j.ChatID, j.Destination, j.SourceFile, j.ScenesTotal, j.ScenesDone, j.Status,
		nullString(j.Error), formatTime(j.CreatedAt), formatTime(j.UpdatedAt))
	return err
}

func (r *SQLiteRepository) GetJob(ctx context.Context, id string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return j, err
}

func (r *SQLiteRepository) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CountRunning(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs WHERE status = ?`, StatusRunning).Scan(&n)
	return n, err
}

func (r *SQLiteRepository) UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?
	`, status, nullString(errorMsg), formatTime(time.Now()), id)
	return err
}

func (r *SQLiteRepository) UpdateJobProgress(ctx context.Context, id string, scenesDone int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET scenes_done = ?, updated_at = ? WHERE id = ?
	`, scenesDone, formatTime(time.Now()), id)
	return err
}

func (r *SQLiteRepository) AddSceneResult(ctx context.Context, s *SceneResult) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO job_scenes (job_id, idx, name, start_ts, end_ts, status, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.JobID, s.Index, s.Name, s.Start, s.End, s.Status, nullString(s.Error), s.Duration.Milliseconds(), formatTime(s.CreatedAt))
	return err
}

func (r *SQLiteRepository) ListSceneResults(ctx context.Context, jobID string) ([]*SceneResult, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT job_id, idx, name, start_ts, end_ts, status, error, duration_ms, created_at
		FROM job_scenes WHERE job_id = ? ORDER BY idx
	`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*SceneResult
	for rows.Next() {
		var s SceneResult
		var errMsg sql.NullString
		var durationMs int64
		var createdAt string
		if err := rows.Scan(&s.JobID, &s.Index, &s.Name, &s.Start, &s.End, &s.Status, &errMsg, &durationMs, &createdAt); err != nil {
			return nil, err
		}
		s.Error = errMsg.String
		s.Duration = time.Duration(durationMs) * time.Millisecond
		s.CreatedAt = parseTime(createdAt)
		out = append(out, &s)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var j Job
	var errMsg sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&j.ID, &j.UserID, &j.ChatID, &j.Destination, &j.SourceFile,
		&j.ScenesTotal, &j.ScenesDone, &j.Status, &errMsg, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	j.Error = errMsg.String
	j.CreatedAt = parseTime(createdAt)
	j.UpdatedAt = parseTime(updatedAt)
	return &j, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(db.TimeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(db.TimeLayout, s)
	if err != nil {
		// rows written by SQLite's datetime('now')
		t, _ = time.Parse(time.DateTime, s)
	}
	return t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
