//go:build !integration

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"offer-ai-service/internal/domain/model"
	"offer-ai-service/internal/infra/api"
	"offer-ai-service/internal/infra/db/memory"
	"offer-ai-service/internal/usecase"
)

const testSecret = "s3cret"

//
// ---------------- fakes ----------------
//

type fakeGenerator struct {
	err   error
	calls int
}

func (g *fakeGenerator) Run(ctx context.Context, description string, obs usecase.Observer) (*usecase.PipelineResult, error) {
	g.calls++
	if obs != nil {
		obs(usecase.Progress{Percent: 5, Phase: "start"})
		obs(usecase.Progress{Percent: 95, Phase: "finish"})
	}
	if g.err != nil {
		return nil, g.err
	}
	return &usecase.PipelineResult{
		Offer: &model.Offer{
			ProjectTitle:  "Takbyte",
			WorkItems:     []model.LineItem{{Description: "Rivning", Quantity: 2, Unit: "tim", UnitPrice: 550}},
			MaterialItems: []model.LineItem{},
			OptionalItems: []model.LineItem{},
			TotalEstimate: model.TotalEstimate{WorkHours: 2, WorkCost: 1100, TotalExclVat: 1100},
		},
		Warnings: []string{"w1"},
		Timings:  usecase.Timings{Total: 1500 * time.Millisecond},
	}, nil
}

func (g *fakeGenerator) Config() usecase.PipelineConfig {
	return usecase.PipelineConfig{TwoPass: true, Validator: true}
}

type fakeLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (l *fakeLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	l.keys = append(l.keys, key)
	return l.allow, l.err
}

//
// ---------------- helpers ----------------
//

type fixture struct {
	gen     *fakeGenerator
	repo    *memory.OfferJobRepo
	limiter *fakeLimiter
	handler http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	l := zerolog.Nop()
	f := &fixture{gen: &fakeGenerator{}, repo: memory.NewOfferJobRepo(), limiter: &fakeLimiter{allow: true}}
	uc := usecase.NewOfferJobUseCase(f.repo, f.gen, nil, nil, testSecret, &l)
	checks := map[string]api.Check{
		"database":  func(context.Context) bool { return true },
		"jobSecret": func(context.Context) bool { return true },
	}
	srv := api.NewServer(uc, f.gen, f.limiter, checks, api.Options{
		AllowedOrigins: []string{"https://gesa-company-ab.webflow.io"},
		SubmitLimit:    5,
		SubmitWindow:   time.Minute,
		Version:        "test",
		Environment:    "test",
	}, &l)
	f.handler = srv.Router()
	return f
}

func (f *fixture) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var rdr *bytes.Buffer
	if body != "" {
		rdr = bytes.NewBufferString(body)
	} else {
		rdr = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func (f *fixture) createJob(t *testing.T) string {
	t.Helper()
	rec := f.do(http.MethodPost, "/api/ai/create-offer-job", `{"projectDescription":"Byta tak 120 kvm"}`, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("create: want 202, got %d body=%s", rec.Code, rec.Body.String())
	}
	return decodeBody(t, rec)["jobId"].(string)
}

var secretHeader = map[string]string{"x-job-secret": testSecret}

//
// ---------------- tests ----------------
//

func TestCreateJob(t *testing.T) {
	t.Run("202 with poll url", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(http.MethodPost, "/api/ai/create-offer-job", `{"projectDescription":"Nytt tak","metadata":{"source":"web"}}`, nil)
		if rec.Code != http.StatusAccepted {
			t.Fatalf("want 202, got %d body=%s", rec.Code, rec.Body.String())
		}
		body := decodeBody(t, rec)
		id, _ := body["jobId"].(string)
		if body["success"] != true || body["status"] != "pending" || id == "" {
			t.Fatalf("unexpected body: %v", body)
		}
		if body["pollUrl"] != "/api/ai/job-status/"+id {
			t.Fatalf("pollUrl: %v", body["pollUrl"])
		}
	})

	t.Run("400 when description missing or blank", func(t *testing.T) {
		f := newFixture(t)
		for _, payload := range []string{``, `{}`, `{"projectDescription":"   "}`} {
			rec := f.do(http.MethodPost, "/api/ai/create-offer-job", payload, nil)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("payload %q: want 400, got %d", payload, rec.Code)
			}
			if decodeBody(t, rec)["error"] != "projectDescription is required" {
				t.Fatalf("payload %q: body %s", payload, rec.Body.String())
			}
		}
	})

	t.Run("429 when rate limited", func(t *testing.T) {
		f := newFixture(t)
		f.limiter.allow = false
		rec := f.do(http.MethodPost, "/api/ai/create-offer-job", `{"projectDescription":"x"}`, map[string]string{"X-Forwarded-For": "10.0.0.9, 10.0.0.1"})
		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("want 429, got %d", rec.Code)
		}
		if len(f.limiter.keys) != 1 || !strings.HasSuffix(f.limiter.keys[0], "10.0.0.9") {
			t.Fatalf("limiter keyed on %v", f.limiter.keys)
		}
		if rec.Header().Get("Retry-After") != "60" {
			t.Fatalf("Retry-After: %q", rec.Header().Get("Retry-After"))
		}
	})

	t.Run("limiter errors fail open", func(t *testing.T) {
		f := newFixture(t)
		f.limiter.err = errors.New("redis down")
		rec := f.do(http.MethodPost, "/api/ai/create-offer-job", `{"projectDescription":"x"}`, nil)
		if rec.Code != http.StatusAccepted {
			t.Fatalf("want 202, got %d", rec.Code)
		}
	})
}

func TestJobStatus(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/ai/job-status/nope", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("want 404, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "Job not found" || body["jobId"] != "nope" {
		t.Fatalf("unexpected body: %v", body)
	}

	id := f.createJob(t)
	rec = f.do(http.MethodGet, "/api/ai/job-status/"+id, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "pending" {
		t.Fatalf("status: %v", body["status"])
	}
	if _, ok := body["result"]; ok {
		t.Fatalf("pending job must not expose a result")
	}
	if _, ok := body["input"]; ok {
		t.Fatalf("input must never be exposed")
	}
}

func TestProcessJob(t *testing.T) {
	t.Run("401 before anything else", func(t *testing.T) {
		f := newFixture(t)
		for _, h := range []map[string]string{nil, {"x-job-secret": "wrong"}} {
			rec := f.do(http.MethodPost, "/api/ai/process-offer-job", `not json`, h)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("want 401, got %d", rec.Code)
			}
			if decodeBody(t, rec)["error"] != "Unauthorized" {
				t.Fatalf("body: %s", rec.Body.String())
			}
		}
		if f.gen.calls != 0 {
			t.Fatalf("pipeline must not run")
		}
	})

	t.Run("400 without jobId", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(http.MethodPost, "/api/ai/process-offer-job", `{}`, secretHeader)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("want 400, got %d", rec.Code)
		}
	})

	t.Run("404 unknown job", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(http.MethodPost, "/api/ai/process-offer-job", `{"jobId":"missing"}`, secretHeader)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("want 404, got %d", rec.Code)
		}
	})

	t.Run("completes then reports already processed", func(t *testing.T) {
		f := newFixture(t)
		id := f.createJob(t)

		rec := f.do(http.MethodPost, "/api/ai/process-offer-job", `{"jobId":"`+id+`"}`, secretHeader)
		if rec.Code != http.StatusOK {
			t.Fatalf("want 200, got %d body=%s", rec.Code, rec.Body.String())
		}
		body := decodeBody(t, rec)
		if body["success"] != true || body["status"] != "completed" {
			t.Fatalf("unexpected body: %v", body)
		}

		rec = f.do(http.MethodPost, "/api/ai/process-offer-job", `{"jobId":"`+id+`"}`, secretHeader)
		body = decodeBody(t, rec)
		if rec.Code != http.StatusOK || body["message"] != "Job already processed" || body["status"] != "completed" {
			t.Fatalf("second trigger: %d %v", rec.Code, body)
		}
		if f.gen.calls != 1 {
			t.Fatalf("pipeline ran %d times, want 1", f.gen.calls)
		}

		status := decodeBody(t, f.do(http.MethodGet, "/api/ai/job-status/"+id, "", nil))
		result, ok := status["result"].(map[string]any)
		if !ok || result["projectTitle"] != "Takbyte" {
			t.Fatalf("completed status should carry the offer, got %v", status)
		}
	})

	t.Run("500 and failed job when the pipeline errors", func(t *testing.T) {
		f := newFixture(t)
		f.gen.err = errors.New("pass 1 timeout")
		id := f.createJob(t)

		rec := f.do(http.MethodPost, "/api/ai/process-offer-job", `{"jobId":"`+id+`"}`, secretHeader)
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("want 500, got %d", rec.Code)
		}
		body := decodeBody(t, rec)
		if body["error"] != "Processing failed" || !strings.Contains(body["message"].(string), "pass 1 timeout") {
			t.Fatalf("unexpected body: %v", body)
		}

		status := decodeBody(t, f.do(http.MethodGet, "/api/ai/job-status/"+id, "", nil))
		if status["status"] != "failed" || !strings.Contains(status["error"].(string), "pass 1 timeout") {
			t.Fatalf("job should be failed with message, got %v", status)
		}
	})
}

func TestJobExport(t *testing.T) {
	f := newFixture(t)
	id := f.createJob(t)

	if rec := f.do(http.MethodGet, "/api/ai/job-status/"+id+"/offer.xlsx", "", nil); rec.Code != http.StatusConflict {
		t.Fatalf("pending export: want 409, got %d", rec.Code)
	}
	if rec := f.do(http.MethodGet, "/api/ai/job-status/nope/offer.xlsx", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown export: want 404, got %d", rec.Code)
	}

	f.do(http.MethodPost, "/api/ai/process-offer-job", `{"jobId":"`+id+`"}`, secretHeader)
	rec := f.do(http.MethodGet, "/api/ai/job-status/"+id+"/offer.xlsx", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Fatalf("content type: %q", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Fatalf("body is not a zip container")
	}
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/ai/process-offer-job", nil)
	req.Header.Set("Origin", "https://gesa-company-ab.webflow.io")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "content-type,x-job-secret")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if rec.Code >= 300 {
		t.Fatalf("preflight should succeed without a secret, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://gesa-company-ab.webflow.io" {
		t.Fatalf("allow-origin: %q", got)
	}
	if got := strings.ToLower(rec.Header().Get("Access-Control-Allow-Headers")); !strings.Contains(got, "x-job-secret") {
		t.Fatalf("allow-headers: %q", got)
	}
	if got := rec.Header().Get("Access-Control-Max-Age"); got != "86400" {
		t.Fatalf("max-age: %q", got)
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/api/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "ok" || body["version"] != "test" {
		t.Fatalf("unexpected body: %v", body)
	}
	checks := body["checks"].(map[string]any)
	if checks["database"] != true || checks["jobSecret"] != true {
		t.Fatalf("checks: %v", checks)
	}
}

func TestGenerateOffer(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/generate-offer", `{"projectDescription":"Badrum 6 kvm"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	meta := body["metadata"].(map[string]any)
	if body["success"] != true || meta["twoPassUsed"] != true || meta["ontologyUsed"] != false {
		t.Fatalf("unexpected body: %v", body)
	}

	if rec := f.do(http.MethodPost, "/api/generate-offer", `{}`, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty description: want 400, got %d", rec.Code)
	}
}

func TestGenerateOfferStream(t *testing.T) {
	t.Run("progress then complete", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(http.MethodPost, "/api/generate-offer-stream", `{"description":"Fasad 90 kvm"}`, nil)
		if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
			t.Fatalf("content type: %q", ct)
		}
		out := rec.Body.String()
		p := strings.Index(out, "event: progress")
		c := strings.Index(out, "event: complete")
		if p < 0 || c < 0 || p > c {
			t.Fatalf("expected progress before complete, got:\n%s", out)
		}
		if !strings.Contains(out, `"total_ms":1500`) {
			t.Fatalf("complete event should carry timings:\n%s", out)
		}
	})

	t.Run("missing description yields error event", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(http.MethodPost, "/api/generate-offer-stream", `{}`, nil)
		out := rec.Body.String()
		if !strings.Contains(out, "event: error") || !strings.Contains(out, "Beskrivning saknas") {
			t.Fatalf("unexpected stream:\n%s", out)
		}
		if f.gen.calls != 0 {
			t.Fatalf("pipeline must not run")
		}
	})

	t.Run("pipeline failure yields error event", func(t *testing.T) {
		f := newFixture(t)
		f.gen.err = errors.New("boom")
		out := f.do(http.MethodPost, "/api/generate-offer-stream", `{"description":"x"}`, nil).Body.String()
		if !strings.Contains(out, "event: error") || !strings.Contains(out, "boom") {
			t.Fatalf("unexpected stream:\n%s", out)
		}
	})
}
