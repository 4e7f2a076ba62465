// File: internal/usecase/pipeline.go
package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"offer-ai-service/internal/domain/model"
	"offer-ai-service/internal/domain/ports/adapter"
	"offer-ai-service/internal/infra/metrics"
	"offer-ai-service/internal/twopass"
)

const systemPrompt = "Du är en expert på byggofferthantering."

// PipelineConfig switches the optional stages. Order never changes.
type PipelineConfig struct {
	Ontology  bool
	Search    bool
	FewShot   bool
	TwoPass   bool
	Validator bool
	Analyzer  bool
	Learning  bool
}

// StagesUsed is the public report of which optional stages ran.
type StagesUsed struct {
	OntologyUsed  bool `json:"ontologyUsed"`
	SearchUsed    bool `json:"searchUsed"`
	FewShotUsed   bool `json:"fewShotUsed"`
	TwoPassUsed   bool `json:"twoPassUsed"`
	ValidatorUsed bool `json:"validatorUsed"`
	AnalyzerUsed  bool `json:"analyzerUsed"`
	LearningUsed  bool `json:"learningUsed"`
}

func (c PipelineConfig) Used() StagesUsed {
	return StagesUsed{
		OntologyUsed:  c.Ontology,
		SearchUsed:    c.Search,
		FewShotUsed:   c.FewShot,
		TwoPassUsed:   c.TwoPass,
		ValidatorUsed: c.Validator,
		AnalyzerUsed:  c.Analyzer,
		LearningUsed:  c.Learning,
	}
}

// OfferGenerator is the two-pass protocol as seen by the pipeline.
type OfferGenerator interface {
	Generate(ctx context.Context, req twopass.Request) (*twopass.Result, error)
}

// Collaborators are resolved once at startup. Only those required by an
// enabled stage may be nil-checked away.
type Collaborators struct {
	Ontology  adapter.OntologyEnricher
	Search    adapter.CatalogSearcher
	Examples  adapter.ExampleSource
	Generator OfferGenerator
	Validator adapter.PolicyValidator
	Analyzer  adapter.QualityAnalyzer
	Learning  adapter.LearningRecorder
}

// Progress is reported to an Observer as the pipeline advances.
type Progress struct {
	Percent int    `json:"progress"`
	Phase   string `json:"phase"`
}

// Observer receives progress updates. It runs on the pipeline goroutine.
type Observer func(Progress)

type Timings struct {
	Total time.Duration
	Pass1 time.Duration
	Pass2 time.Duration
}

type PipelineResult struct {
	Offer    *model.Offer
	Warnings []string
	Seed     int64
	Usage    adapter.Usage
	Timings  Timings
}

type Pipeline struct {
	cfg PipelineConfig
	c   Collaborators
	log *zerolog.Logger
}

// NewPipeline fails when an enabled stage has no collaborator.
func NewPipeline(cfg PipelineConfig, c Collaborators, log *zerolog.Logger) (*Pipeline, error) {
	var missing []string
	need := func(enabled bool, present bool, name string) {
		if enabled && !present {
			missing = append(missing, name)
		}
	}
	need(cfg.Ontology, c.Ontology != nil, "ontology enricher")
	need(cfg.Search, c.Search != nil, "catalog searcher")
	need(cfg.FewShot, c.Examples != nil, "few-shot example source")
	need(cfg.TwoPass, c.Generator != nil, "two-pass generator")
	need(cfg.Validator, c.Validator != nil, "policy validator")
	need(cfg.Analyzer, c.Analyzer != nil, "quality analyzer")
	need(cfg.Learning, c.Learning != nil, "learning recorder")
	if len(missing) > 0 {
		return nil, fmt.Errorf("pipeline: missing collaborators: %s", strings.Join(missing, ", "))
	}
	if log == nil {
		l := zerolog.Nop()
		log = &l
	}
	return &Pipeline{cfg: cfg, c: c, log: log}, nil
}

func (p *Pipeline) Config() PipelineConfig { return p.cfg }

// stageState carries data between stages of a single run.
type stageState struct {
	description string
	enrichment  *adapter.Enrichment
	search      *adapter.SearchResults
	system      string
	user        string
	offer       *model.Offer
	result      *PipelineResult
}

// Run executes the stages strictly in order. Any stage error except the
// learning stage aborts the run.
func (p *Pipeline) Run(ctx context.Context, description string, obs Observer) (*PipelineResult, error) {
	if obs == nil {
		obs = func(Progress) {}
	}
	start := time.Now()
	st := &stageState{description: description, result: &PipelineResult{}}

	obs(Progress{Percent: 5, Phase: "Startar AI-analys..."})

	if p.cfg.Ontology {
		if err := p.stage("ontology", func() error {
			e, err := p.c.Ontology.Enrich(ctx, st.description)
			if err != nil {
				return err
			}
			st.enrichment = e
			if e != nil && strings.TrimSpace(e.Description) != "" {
				st.description = e.Description
			}
			return nil
		}); err != nil {
			return nil, fmt.Errorf("ontology enrichment: %w", err)
		}
	}
	obs(Progress{Percent: 10, Phase: "Analyserar projektbeskrivning..."})

	if p.cfg.Search {
		if err := p.stage("search", func() error {
			res, err := p.c.Search.Search(ctx, st.description)
			st.search = res
			return err
		}); err != nil {
			return nil, fmt.Errorf("catalog search: %w", err)
		}
	}

	if err := p.stage("prompt", func() error { return p.assemblePrompts(ctx, st) }); err != nil {
		return nil, fmt.Errorf("prompt assembly: %w", err)
	}

	if err := p.stage("generation", func() error { return p.generate(ctx, st, obs) }); err != nil {
		return nil, err
	}

	if p.cfg.Validator {
		if err := p.stage("validator", func() error {
			v, err := p.c.Validator.Validate(ctx, st.offer)
			if err != nil {
				return err
			}
			if v != nil && !v.IsValid {
				st.result.Warnings = v.Warnings
				metrics.AddPolicyWarnings(len(v.Warnings))
				p.log.Warn().Strs("warnings", v.Warnings).Msg("offer failed policy validation")
			}
			return nil
		}); err != nil {
			return nil, fmt.Errorf("policy validation: %w", err)
		}
	}

	if p.cfg.Analyzer {
		if err := p.stage("analyzer", func() error {
			q, err := p.c.Analyzer.Analyze(ctx, st.offer)
			if err != nil {
				return err
			}
			if q != nil {
				score := q.Score
				st.offer.QualityScore = &score
				st.offer.QualityMetrics = q.Metrics
			}
			return nil
		}); err != nil {
			return nil, fmt.Errorf("quality analysis: %w", err)
		}
	}

	if p.cfg.Learning {
		_ = p.stage("learning", func() error {
			err := p.c.Learning.Learn(ctx, &model.LearningObservation{
				ProjectDescription: description,
				Offer:              st.offer,
				Metadata:           p.observationMetadata(st),
			})
			if err != nil {
				p.log.Warn().Err(err).Msg("learning recorder failed; ignoring")
			}
			return err
		})
	}

	obs(Progress{Percent: 95, Phase: "Färdigställer offert..."})
	if err := p.stage("format", func() error {
		if st.offer == nil {
			return errors.New("no offer produced")
		}
		st.result.Offer = formatOffer(st.offer)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("output formatting: %w", err)
	}

	st.result.Timings.Total = time.Since(start)
	return st.result, nil
}

func (p *Pipeline) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	metrics.ObserveStage(name, elapsed.Milliseconds(), err == nil)
	p.log.Debug().Str("stage", name).Dur("duration", elapsed).Bool("ok", err == nil).Msg("pipeline.stage")
	return err
}

func (p *Pipeline) assemblePrompts(ctx context.Context, st *stageState) error {
	system := systemPrompt
	if p.cfg.FewShot {
		examples, err := p.c.Examples.Examples(ctx)
		if err != nil {
			return fmt.Errorf("few-shot examples: %w", err)
		}
		if len(examples) > 0 {
			b, err := json.MarshalIndent(examples, "", "  ")
			if err != nil {
				return err
			}
			system += "\n\nExempel:\n" + string(b)
		}
	}

	var user strings.Builder
	user.WriteString("Projekt: ")
	user.WriteString(st.description)
	if st.search != nil {
		if err := appendSection(&user, "Relevanta arbetsmoment", st.search.WorkTasks); err != nil {
			return err
		}
		if err := appendSection(&user, "Relevanta material", st.search.Materials); err != nil {
			return err
		}
		if err := appendSection(&user, "Relevanta hyresobjekt", st.search.Rentals); err != nil {
			return err
		}
	}
	st.system = system
	st.user = user.String()
	return nil
}

func appendSection(b *strings.Builder, label string, entries []adapter.CatalogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode %s: %w", label, err)
	}
	b.WriteString("\n\n")
	b.WriteString(label)
	b.WriteString(": ")
	b.Write(raw)
	return nil
}

func (p *Pipeline) generate(ctx context.Context, st *stageState, obs Observer) error {
	if !p.cfg.TwoPass {
		st.offer = twopass.EmptyOffer()
		return nil
	}
	var ontology map[string]any
	if st.enrichment != nil {
		ontology = st.enrichment.Metadata
	}
	res, err := p.c.Generator.Generate(ctx, twopass.Request{
		System:   st.system,
		User:     st.user,
		Ontology: ontology,
		OnPass: func(pass int, done bool) {
			switch {
			case pass == 1 && !done:
				obs(Progress{Percent: 15, Phase: "Skapar projektplan..."})
			case pass == 1 && done:
				obs(Progress{Percent: 40, Phase: "Projektplan skapad!"})
			case pass == 2 && !done:
				obs(Progress{Percent: 50, Phase: "Genererar arbetsposter och material..."})
				obs(Progress{Percent: 55, Phase: "AI genererar detaljer..."})
			case pass == 2 && done:
				obs(Progress{Percent: 85, Phase: "Bearbetar resultat..."})
			}
		},
	})
	if err != nil {
		return err
	}
	st.offer = res.Offer
	st.result.Seed = res.Seed
	st.result.Usage = res.Usage
	st.result.Timings.Pass1 = res.Pass1Time
	st.result.Timings.Pass2 = res.Pass2Time
	return nil
}

func (p *Pipeline) observationMetadata(st *stageState) map[string]any {
	meta := map[string]any{
		"stages": p.cfg.Used(),
	}
	if st.enrichment != nil {
		meta["ontology"] = st.enrichment.Metadata
	}
	if st.search != nil {
		meta["searchHits"] = len(st.search.WorkTasks) + len(st.search.Materials) + len(st.search.Rentals)
	}
	if st.result.Seed != 0 {
		meta["seed"] = st.result.Seed
	}
	if len(st.result.Warnings) > 0 {
		meta["warnings"] = st.result.Warnings
	}
	return meta
}

// formatOffer returns the public shape: list fields are never null.
func formatOffer(o *model.Offer) *model.Offer {
	out := *o
	if strings.TrimSpace(out.ProjectTitle) == "" {
		out.ProjectTitle = "Byggprojekt"
	}
	if out.ProjectType == nil {
		out.ProjectType = []string{}
	}
	if out.WorkItems == nil {
		out.WorkItems = []model.LineItem{}
	}
	if out.MaterialItems == nil {
		out.MaterialItems = []model.LineItem{}
	}
	if out.OptionalItems == nil {
		out.OptionalItems = []model.LineItem{}
	}
	if out.Assumptions == nil {
		out.Assumptions = []string{}
	}
	if out.NotIncludedItems == nil {
		out.NotIncludedItems = []string{}
	}
	return &out
}
