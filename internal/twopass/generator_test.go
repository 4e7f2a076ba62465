//go:build !integration

package twopass

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"offer-ai-service/internal/domain"
	"offer-ai-service/internal/domain/ports/adapter"
)

type fakeProvider struct {
	mu       sync.Mutex
	plan     string
	tsv      string
	err      error
	requests []adapter.GenerationRequest
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Generate(ctx context.Context, req adapter.GenerationRequest) (adapter.Generation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return adapter.Generation{}, f.err
	}
	if req.Structured() {
		return adapter.Generation{Content: f.plan, Usage: adapter.Usage{PromptTokens: 10, TotalTokens: 10}}, nil
	}
	return adapter.Generation{Content: f.tsv, Usage: adapter.Usage{CompletionTokens: 5, TotalTokens: 5}}, nil
}

func newTestGenerator(t *testing.T, p *fakeProvider) *Generator {
	t.Helper()
	g, err := NewGenerator(p, Config{Model: "gpt-4o-mini"}, nil)
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	return g.WithSeedSource(func() int64 { return 1700000123 })
}

func TestGenerator_RoofScenario(t *testing.T) {
	t.Parallel()
	plan := roofPlan(150)
	p := &fakeProvider{
		plan: planJSON(t, plan),
		tsv:  "```tsv\n" + ReferenceTSV(plan) + "```",
	}
	var hooks []string
	res, err := newTestGenerator(t, p).Generate(context.Background(), Request{
		System: "Du är en expert på byggofferthantering.",
		User:   "Projekt: Byta tak på villa, 150 kvm",
		OnPass: func(pass int, done bool) {
			if done {
				hooks = append(hooks, "done")
			} else {
				hooks = append(hooks, "start")
			}
		},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if len(p.requests) != 2 {
		t.Fatalf("want 2 provider calls, got %d", len(p.requests))
	}
	r1, r2 := p.requests[0], p.requests[1]
	if !r1.Structured() || r1.SchemaName != SchemaName || r1.Temperature != 0.3 || r1.MaxTokens != 3000 {
		t.Errorf("pass 1 request wrong: %+v", r1)
	}
	if r2.Structured() || r2.Temperature != 0.2 || r2.MaxTokens != 2500 {
		t.Errorf("pass 2 request wrong: %+v", r2)
	}
	if r2.Seed != r1.Seed+1 || r1.Seed != 1700000123 {
		t.Errorf("seeds: pass1=%d pass2=%d", r1.Seed, r2.Seed)
	}
	if !strings.Contains(r1.Prompt, "Byta tak på villa") || !strings.HasPrefix(r1.System, "Du är en expert på byggofferthantering.") {
		t.Errorf("pass 1 should carry the assembled prompts")
	}
	if strings.Join(hooks, ",") != "start,done,start,done" {
		t.Errorf("hook order: %v", hooks)
	}

	o := res.Offer
	if !strings.Contains(o.ProjectTitle, "150") {
		t.Errorf("title should contain 150, got %q", o.ProjectTitle)
	}
	var found bool
	for _, w := range o.WorkItems {
		if w.Description == "Montering läkt och papp" {
			found = true
			if w.Quantity != 60 || w.Total() != 60*StandardHourlyRate {
				t.Errorf("battening row wrong: %+v", w)
			}
		}
	}
	if !found {
		t.Fatal("roof battening labor row missing")
	}
	if o.TotalEstimate.WorkCost != o.TotalEstimate.WorkHours*StandardHourlyRate {
		t.Errorf("work cost mismatch: %+v", o.TotalEstimate)
	}
	if res.Usage.TotalTokens != 15 {
		t.Errorf("usage not summed: %+v", res.Usage)
	}
}

func TestGenerator_Failures(t *testing.T) {
	t.Parallel()
	valid := planJSON(t, roofPlan(150))
	cases := map[string]*fakeProvider{
		"provider error":   {err: errors.New("rate limited")},
		"empty pass 1":     {plan: "  ", tsv: "x"},
		"unparseable plan": {plan: "{not json", tsv: "x"},
		"schema violation": {plan: `{"work_blocks":["tak"]}`, tsv: "x"},
		"empty pass 2":     {plan: valid, tsv: ""},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := newTestGenerator(t, p).Generate(context.Background(), Request{User: "x"})
			if !errors.Is(err, domain.ErrGeneration) {
				t.Fatalf("want ErrGeneration, got %v", err)
			}
		})
	}
}

func TestGenerator_OntologyAppended(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{plan: planJSON(t, roofPlan(10)), tsv: "ARBETE\tA\tB\t1\ttim\t1\t-"}
	_, err := newTestGenerator(t, p).Generate(context.Background(), Request{
		User:     "Projekt: tak",
		Ontology: map[string]any{"workBlocks": []string{"tak"}},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.Contains(p.requests[0].Prompt, "ONTOLOGI:") {
		t.Fatal("ontology metadata should be appended to the pass 1 prompt")
	}
}
