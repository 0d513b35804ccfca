package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/heimdex/scenebot/internal/export"
	"github.com/heimdex/scenebot/internal/jobs"
)

const (
	defaultJobsLimit = 50
	maxJobsLimit     = 500
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID, echoRequestID)
	r.Use(recoverJSON(cfg.Logger))
	r.Use(accessLog(cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(requireToken(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))
		r.Get("/jobs", listJobsHandler(cfg))
		r.Get("/jobs/{id}", getJobHandler(cfg))
		r.Get("/jobs/{id}/edl", jobEDLHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		writeJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: uptime,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		running, err := cfg.Repository.CountRunning(ctx)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to count jobs", "INTERNAL_ERROR")
			return
		}
		recent, _ := cfg.Repository.ListJobs(ctx, 10)

		state := "idle"
		if running > 0 {
			state = "processing"
		}
		lastError := ""
		for _, j := range recent {
			if j.Status == jobs.StatusFailed {
				lastError = j.Error
				break
			}
		}

		resp := StatusResponse{
			State:       state,
			LastError:   lastError,
			JobsRunning: running,
			OnFailure:   cfg.OnFailure,
			Tools:       make([]ToolResponse, len(cfg.Tools)),
		}
		if cfg.Sessions != nil {
			resp.ActiveSessions = cfg.Sessions.ActiveSessions()
		}
		if cfg.Roster != nil {
			resp.RosterSize = cfg.Roster.Len()
			resp.RemoteTarget = cfg.Roster.RemoteTarget()
		}
		for i, t := range cfg.Tools {
			resp.Tools[i] = ToolResponse{Name: t.Name, Path: t.Path, Available: t.Available}
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func listJobsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultJobsLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer", "BAD_REQUEST")
				return
			}
			limit = min(n, maxJobsLimit)
		}

		list, err := cfg.Repository.ListJobs(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list jobs", "INTERNAL_ERROR")
			return
		}

		resp := JobsResponse{Jobs: make([]JobResponse, len(list))}
		for i, j := range list {
			resp.Jobs[i] = JobToResponse(j)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			writeError(w, http.StatusBadRequest, "job id required", "BAD_REQUEST")
			return
		}

		job, err := cfg.Repository.GetJob(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if job == nil {
			writeError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}

		results, err := cfg.Repository.ListSceneResults(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		resp := JobDetailResponse{
			JobResponse: JobToResponse(job),
			Scenes:      make([]SceneResponse, len(results)),
		}
		for i, s := range results {
			resp.Scenes[i] = SceneToResponse(s)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// jobEDLHandler returns the delivered scenes of a job as an edit decision
// list against the original upload.
func jobEDLHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		fps := 25.0
		if v := r.URL.Query().Get("fps"); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil || f <= 0 || f > 240 {
				writeError(w, http.StatusBadRequest, "fps must be between 0 and 240", "BAD_REQUEST")
				return
			}
			fps = f
		}

		job, err := cfg.Repository.GetJob(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if job == nil {
			writeError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}

		results, err := cfg.Repository.ListSceneResults(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		cuts := make([]export.Cut, 0, len(results))
		for _, s := range results {
			if s.Status != jobs.SceneDelivered {
				continue
			}
			start, err := export.ParseTimestamp(s.Start)
			if err != nil {
				cfg.Logger.Warn("skipping scene in edl", "job_id", id, "index", s.Index, "error", err)
				continue
			}
			end, err := export.ParseTimestamp(s.End)
			if err != nil {
				cfg.Logger.Warn("skipping scene in edl", "job_id", id, "index", s.Index, "error", err)
				continue
			}
			cuts = append(cuts, export.Cut{Name: s.Name, Source: job.SourceFile, Start: start, End: end})
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", "attachment; filename=\""+id+".edl\"")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(export.EDL(cuts, "scenebot job "+id, fps)))
	}
}
