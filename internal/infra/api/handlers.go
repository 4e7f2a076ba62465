package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"offer-ai-service/internal/domain"
	"offer-ai-service/internal/infra/export"
	"offer-ai-service/internal/infra/logging"
	"offer-ai-service/internal/infra/queue"
	"offer-ai-service/internal/usecase"
)

type createJobRequest struct {
	ProjectDescription string         `json:"projectDescription" validate:"required"`
	Metadata           map[string]any `json:"metadata"`
}

type createJobResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"jobId"`
	Status  string `json:"status"`
	PollURL string `json:"pollUrl"`
}

type processJobRequest struct {
	JobID string `json:"jobId" validate:"required"`
}

type processJobResponse struct {
	Success bool   `json:"success,omitempty"`
	Message string `json:"message,omitempty"`
	JobID   string `json:"jobId"`
	Status  string `json:"status"`
}

// decode reads a JSON body. An empty body decodes to the zero value.
func decode(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	if err := render.DecodeJSON(r.Body, v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, errorBody{Error: "Invalid JSON body"})
		return
	}
	req.ProjectDescription = strings.TrimSpace(req.ProjectDescription)
	if err := s.validate.Struct(req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, errorBody{Error: "projectDescription is required"})
		return
	}

	res, err := s.jobs.Submit(r.Context(), usecase.SubmitInput{
		ProjectDescription: req.ProjectDescription,
		Metadata:           req.Metadata,
	})
	if err != nil {
		s.internalError(w, r, "create job", err)
		return
	}
	writeJSON(w, r, http.StatusAccepted, createJobResponse{
		Success: true,
		JobID:   res.JobID,
		Status:  string(res.Status),
		PollURL: res.PollURL,
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	view, err := s.jobs.Status(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, r, http.StatusNotFound, errorBody{Error: "Job not found", JobID: jobID})
			return
		}
		s.internalError(w, r, "job status", err)
		return
	}
	writeJSON(w, r, http.StatusOK, view)
}

func (s *Server) handleJobExport(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	offer, err := s.jobs.Export(r.Context(), jobID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, r, http.StatusNotFound, errorBody{Error: "Job not found", JobID: jobID})
		return
	case errors.Is(err, domain.ErrJobNotCompleted):
		writeJSON(w, r, http.StatusConflict, errorBody{Error: "Job is not completed", JobID: jobID})
		return
	case err != nil:
		s.internalError(w, r, "export job", err)
		return
	}

	b, err := export.WriteOffer(offer, jobID)
	if err != nil {
		s.internalError(w, r, "render workbook", err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="offert-%s.xlsx"`, jobID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

// handleProcessJob checks the secret before reading the body. Processing
// ignores request cancellation.
func (s *Server) handleProcessJob(w http.ResponseWriter, r *http.Request) {
	secret := r.Header.Get(queue.JobSecretHeader)
	if err := s.jobs.Authorize(secret); err != nil {
		writeJSON(w, r, http.StatusUnauthorized, errorBody{Error: "Unauthorized"})
		return
	}

	var req processJobRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, errorBody{Error: "jobId is required"})
		return
	}
	req.JobID = strings.TrimSpace(req.JobID)
	if err := s.validate.Struct(req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, errorBody{Error: "jobId is required"})
		return
	}

	ctx := context.WithoutCancel(logging.WithJobID(r.Context(), req.JobID))
	out, err := s.jobs.Process(ctx, secret, req.JobID)
	switch {
	case err == nil && out.AlreadyProcessed:
		writeJSON(w, r, http.StatusOK, processJobResponse{Message: "Job already processed", JobID: out.JobID, Status: string(out.Status)})
	case err == nil:
		writeJSON(w, r, http.StatusOK, processJobResponse{Success: true, JobID: out.JobID, Status: string(out.Status)})
	case errors.Is(err, domain.ErrUnauthorized):
		writeJSON(w, r, http.StatusUnauthorized, errorBody{Error: "Unauthorized"})
	case errors.Is(err, domain.ErrInvalidArgument):
		writeJSON(w, r, http.StatusBadRequest, errorBody{Error: "jobId is required"})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, r, http.StatusNotFound, errorBody{Error: "Job not found"})
	default:
		l := logging.With(ctx, s.log)
		l.Error().Err(err).Msg("process offer job failed")
		writeJSON(w, r, http.StatusInternalServerError, errorBody{Error: "Processing failed", Message: err.Error()})
	}
}

type healthResponse struct {
	Status      string          `json:"status"`
	Timestamp   time.Time       `json:"timestamp"`
	Version     string          `json:"version"`
	Environment string          `json:"environment"`
	Checks      map[string]bool `json:"checks"`
}

// handleHealth always answers 200. A failing check flips status to "degraded".
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:      "ok",
		Timestamp:   s.now(),
		Version:     s.opts.Version,
		Environment: s.opts.Environment,
		Checks:      make(map[string]bool, len(s.checks)),
	}
	for name, check := range s.checks {
		ok := check(ctx)
		resp.Checks[name] = ok
		if !ok {
			resp.Status = "degraded"
		}
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	l := logging.With(r.Context(), s.log)
	l.Error().Err(err).Str("op", op).Msg("request failed")
	writeJSON(w, r, http.StatusInternalServerError, errorBody{Error: "Internal server error", Message: err.Error()})
}
