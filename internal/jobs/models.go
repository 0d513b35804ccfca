// Package jobs records the history of clip processing runs.
package jobs

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusPartial   = "partial"
	StatusFailed    = "failed"

	SceneDelivered = "delivered"
	SceneFailed    = "failed"
)

// Job is one run of the clip processor for a single conversation.
type Job struct {
	ID          string    `json:"id"`
	UserID      int64     `json:"user_id"`
	ChatID      int64     `json:"chat_id"`
	Destination string    `json:"destination"`
	SourceFile  string    `json:"source_file"`
	ScenesTotal int       `json:"scenes_total"`
	ScenesDone  int       `json:"scenes_done"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SceneResult is the outcome of one scene within a job.
type SceneResult struct {
	JobID     string        `json:"job_id"`
	Index     int           `json:"index"`
	Name      string        `json:"name"`
	Start     string        `json:"start"`
	End       string        `json:"end"`
	Status    string        `json:"status"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"created_at"`
}

func NewID() string {
	return uuid.NewString()
}
