package api

import (
	"time"

	"github.com/heimdex/scenebot/internal/jobs"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type StatusResponse struct {
	State          string         `json:"state"`
	LastError      string         `json:"last_error,omitempty"`
	ActiveSessions int            `json:"active_sessions"`
	RosterSize     int            `json:"roster_size"`
	RemoteTarget   string         `json:"remote_target"`
	OnFailure      string         `json:"on_failure"`
	JobsRunning    int            `json:"jobs_running"`
	Tools          []ToolResponse `json:"tools"`
}

type ToolResponse struct {
	Name      string `json:"name"`
	Path      string `json:"path,omitempty"`
	Available bool   `json:"available"`
}

type JobResponse struct {
	ID          string `json:"id"`
	UserID      int64  `json:"user_id"`
	Destination string `json:"destination"`
	SourceFile  string `json:"source_file"`
	ScenesTotal int    `json:"scenes_total"`
	ScenesDone  int    `json:"scenes_done"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type JobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

type SceneResponse struct {
	Index      int    `json:"index"`
	Name       string `json:"name"`
	Start      string `json:"start"`
	End        string `json:"end"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

type JobDetailResponse struct {
	JobResponse
	Scenes []SceneResponse `json:"scenes"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func JobToResponse(j *jobs.Job) JobResponse {
	return JobResponse{
		ID:          j.ID,
		UserID:      j.UserID,
		Destination: j.Destination,
		SourceFile:  j.SourceFile,
		ScenesTotal: j.ScenesTotal,
		ScenesDone:  j.ScenesDone,
		Status:      j.Status,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   j.UpdatedAt.Format(time.RFC3339),
	}
}

func SceneToResponse(s *jobs.SceneResult) SceneResponse {
	return SceneResponse{
		Index:      s.Index,
		Name:       s.Name,
		Start:      s.Start,
		End:        s.End,
		Status:     s.Status,
		Error:      s.Error,
		DurationMS: s.Duration.Milliseconds(),
	}
}
