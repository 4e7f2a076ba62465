package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"offer-ai-service/internal/domain/model"
	"offer-ai-service/internal/infra/logging"
	"offer-ai-service/internal/usecase"
)

type generateRequest struct {
	ProjectDescription string `json:"projectDescription"`
	Description        string `json:"description"`
	ProjectType        string `json:"projectType"`
}

// text accepts either field name; the stream endpoint historically used
// "description".
func (g generateRequest) text() string {
	if d := strings.TrimSpace(g.ProjectDescription); d != "" {
		return d
	}
	return strings.TrimSpace(g.Description)
}

type generateResponse struct {
	Success  bool               `json:"success"`
	Offer    *model.Offer       `json:"offer"`
	Warnings []string           `json:"warnings,omitempty"`
	Metadata usecase.StagesUsed `json:"metadata"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, errorBody{Error: "Invalid JSON body"})
		return
	}
	desc := req.text()
	if desc == "" {
		writeJSON(w, r, http.StatusBadRequest, errorBody{Error: "projectDescription is required"})
		return
	}

	res, err := s.gen.Run(r.Context(), desc, nil)
	if err != nil {
		s.internalError(w, r, "generate offer", err)
		return
	}
	writeJSON(w, r, http.StatusOK, generateResponse{
		Success:  true,
		Offer:    res.Offer,
		Warnings: res.Warnings,
		Metadata: s.gen.Config().Used(),
	})
}

type progressEvent struct {
	Progress  int    `json:"progress"`
	Phase     string `json:"phase"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

type streamTimings struct {
	TotalMs int64 `json:"total_ms"`
	Pass1Ms int64 `json:"pass1_ms"`
	Pass2Ms int64 `json:"pass2_ms"`
}

type completeEvent struct {
	Result   *model.Offer       `json:"result"`
	Warnings []string           `json:"warnings,omitempty"`
	Metadata usecase.StagesUsed `json:"metadata"`
	Timings  streamTimings      `json:"timings"`
}

type errorEvent struct {
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

type sseWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

func (s sseWriter) send(event string, data any) {
	b, err := json.Marshal(data)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, b)
	if s.f != nil {
		s.f.Flush()
	}
}

// handleGenerateStream runs the pipeline while pushing progress as server
// sent events. Failures after the headers are sent arrive as an error event.
func (s *Server) handleGenerateStream(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req generateRequest
	decodeErr := decode(r, &req)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	out := sseWriter{w: w, f: flusher}
	elapsed := func() int64 { return time.Since(start).Milliseconds() }

	desc := req.text()
	if decodeErr != nil || desc == "" {
		out.send("error", errorEvent{Message: "Beskrivning saknas", ElapsedMs: elapsed()})
		return
	}

	res, err := s.gen.Run(r.Context(), desc, func(p usecase.Progress) {
		out.send("progress", progressEvent{Progress: p.Percent, Phase: p.Phase, ElapsedMs: elapsed()})
	})
	if err != nil {
		l := logging.With(r.Context(), s.log)
		l.Error().Err(err).Int64("elapsed_ms", elapsed()).Msg("streamed generation failed")
		out.send("error", errorEvent{Message: "Fel vid AI-generering", Details: err.Error(), ElapsedMs: elapsed()})
		return
	}
	out.send("complete", completeEvent{
		Result:   res.Offer,
		Warnings: res.Warnings,
		Metadata: s.gen.Config().Used(),
		Timings: streamTimings{
			TotalMs: res.Timings.Total.Milliseconds(),
			Pass1Ms: res.Timings.Pass1.Milliseconds(),
			Pass2Ms: res.Timings.Pass2.Milliseconds(),
		},
	})
}
