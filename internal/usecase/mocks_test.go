// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"offer-ai-service/internal/domain"
	"offer-ai-service/internal/domain/model"
	"offer-ai-service/internal/domain/ports/adapter"
	"offer-ai-service/internal/domain/ports/repository"
	"offer-ai-service/internal/twopass"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// memJobRepo is a small in-memory job store used by unit tests.
type memJobRepo struct {
	mu        sync.RWMutex
	store     map[string]*model.OfferJob
	updates   []model.JobPatch
	createErr error
	updateErr error
	// failOnce fails the next update that moves a job into this status.
	failOnce    model.JobStatus
	failOnceErr error
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{store: make(map[string]*model.OfferJob)}
}

func (m *memJobRepo) Create(ctx context.Context, tx repository.Tx, job *model.OfferJob) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.store[job.ID] = &cp
	return nil
}

func (m *memJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.OfferJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *memJobRepo) Update(ctx context.Context, tx repository.Tx, id string, patch model.JobPatch) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOnce != "" && patch.Status == m.failOnce {
		m.failOnce = ""
		return m.failOnceErr
	}
	j, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	j.Apply(patch, time.Now().UTC())
	m.updates = append(m.updates, patch)
	return nil
}

func (m *memJobRepo) Ping(ctx context.Context) error { return nil }

func (m *memJobRepo) get(id string) model.OfferJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return *m.store[id]
}

func (m *memJobRepo) updateCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.updates)
}

// stageLog records the order in which collaborators are called.
type stageLog struct {
	mu    sync.Mutex
	calls []string
}

func (s *stageLog) add(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, name)
}

func (s *stageLog) list() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

type fakeOntology struct {
	log *stageLog
	err error
}

func (f *fakeOntology) Enrich(ctx context.Context, description string) (*adapter.Enrichment, error) {
	f.log.add("ontology")
	if f.err != nil {
		return nil, f.err
	}
	return &adapter.Enrichment{
		Description: description + " (takläggning)",
		Metadata:    map[string]any{"workBlocks": []string{"tak"}},
	}, nil
}

type fakeSearch struct {
	log  *stageLog
	seen string
}

func (f *fakeSearch) Search(ctx context.Context, description string) (*adapter.SearchResults, error) {
	f.log.add("search")
	f.seen = description
	return &adapter.SearchResults{
		WorkTasks: []adapter.CatalogEntry{{ID: "w1", Name: "Rivning av takpapp", Unit: "tim", Hours: 8}},
		Materials: []adapter.CatalogEntry{{ID: "m1", Name: "Underlagspapp", Unit: "rulle", Price: 890, Supplier: "Beijer"}},
	}, nil
}

type fakeExamples struct{ log *stageLog }

func (f *fakeExamples) Examples(ctx context.Context) ([]map[string]any, error) {
	f.log.add("examples")
	return []map[string]any{{"projectTitle": "Takbyte 120 m²"}}, nil
}

// fakeGenerator returns a fixed offer, or err. check runs before returning.
type fakeGenerator struct {
	log   *stageLog
	err   error
	check func()
	req   twopass.Request
}

func (f *fakeGenerator) Generate(ctx context.Context, req twopass.Request) (*twopass.Result, error) {
	f.log.add("generator")
	f.req = req
	if f.check != nil {
		f.check()
	}
	if req.OnPass != nil {
		req.OnPass(1, false)
		req.OnPass(1, true)
		req.OnPass(2, false)
		req.OnPass(2, true)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &twopass.Result{Offer: sampleOffer(), Seed: 42, Pass1Time: time.Millisecond, Pass2Time: time.Millisecond}, nil
}

func sampleOffer() *model.Offer {
	items := []model.LineItem{
		{Category: model.LineLabor, Description: "Montering läkt och papp", Quantity: 60, Unit: "tim", UnitPrice: twopass.StandardHourlyRate},
		{Category: model.LineMaterial, Description: "Underlagspapp", Quantity: 10, Unit: "rulle", UnitPrice: 890, Supplier: "Beijer"},
	}
	return &model.Offer{
		ProjectTitle:  "Takbyte 150 m²",
		ProjectType:   []string{"Takbyte"},
		WorkItems:     items[:1],
		MaterialItems: items[1:],
		TotalEstimate: twopass.Aggregate(items),
	}
}

type fakeValidator struct {
	log    *stageLog
	result *model.ValidationResult
	err    error
}

func (f *fakeValidator) Validate(ctx context.Context, offer *model.Offer) (*model.ValidationResult, error) {
	f.log.add("validator")
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &model.ValidationResult{IsValid: true}, nil
}

type fakeAnalyzer struct{ log *stageLog }

func (f *fakeAnalyzer) Analyze(ctx context.Context, offer *model.Offer) (*model.QualityReport, error) {
	f.log.add("analyzer")
	return &model.QualityReport{Score: 82, Metrics: map[string]float64{"rows": float64(offer.RowCount())}}, nil
}

type fakeLearning struct {
	log *stageLog
	err error
	obs *model.LearningObservation
}

func (f *fakeLearning) Learn(ctx context.Context, obs *model.LearningObservation) error {
	f.log.add("learning")
	f.obs = obs
	return f.err
}

type fakeDispatcher struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, jobID)
	return f.err
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeNotifier) JobFinished(ctx context.Context, job *model.OfferJob, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, string(job.Status)+":"+title)
	return nil
}

// fullCollaborators wires every fake onto one shared stage log.
func fullCollaborators(log *stageLog) (Collaborators, *fakeGenerator, *fakeLearning) {
	gen := &fakeGenerator{log: log}
	learn := &fakeLearning{log: log}
	return Collaborators{
		Ontology:  &fakeOntology{log: log},
		Search:    &fakeSearch{log: log},
		Examples:  &fakeExamples{log: log},
		Generator: gen,
		Validator: &fakeValidator{log: log},
		Analyzer:  &fakeAnalyzer{log: log},
		Learning:  learn,
	}, gen, learn
}

func allStages() PipelineConfig {
	return PipelineConfig{Ontology: true, Search: true, FewShot: true, TwoPass: true, Validator: true, Analyzer: true, Learning: true}
}

func decodeOffer(raw json.RawMessage) (*model.Offer, error) {
	var o model.Offer
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, err
	}
	return &o, nil
}
