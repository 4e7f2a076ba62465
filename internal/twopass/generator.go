package twopass

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"offer-ai-service/internal/domain"
	"offer-ai-service/internal/domain/model"
	"offer-ai-service/internal/domain/ports/adapter"
)

type Config struct {
	Model            string
	Pass1Temperature float64
	Pass1MaxTokens   int
	Pass2Temperature float64
	Pass2MaxTokens   int
}

func DefaultConfig() Config {
	return Config{
		Pass1Temperature: 0.3,
		Pass1MaxTokens:   3000,
		Pass2Temperature: 0.2,
		Pass2MaxTokens:   2500,
	}
}

// Request carries the assembled prompts from the pipeline.
type Request struct {
	System   string
	User     string
	Ontology map[string]any
	// OnPass, if set, is called before (done=false) and after (done=true) each pass.
	OnPass func(pass int, done bool)
}

type Result struct {
	Offer     *model.Offer
	Plan      *model.ProjectPlan
	Seed      int64
	Pass1Time time.Duration
	Pass2Time time.Duration
	Usage     adapter.Usage
}

type Generator struct {
	provider  adapter.GenerationProvider
	validator *PlanValidator
	cfg       Config
	seed      func() int64
	log       *zerolog.Logger
}

func NewGenerator(provider adapter.GenerationProvider, cfg Config, log *zerolog.Logger) (*Generator, error) {
	if provider == nil {
		return nil, errors.New("twopass: generation provider is required")
	}
	v, err := NewPlanValidator()
	if err != nil {
		return nil, fmt.Errorf("twopass: %w", err)
	}
	def := DefaultConfig()
	if cfg.Pass1MaxTokens <= 0 {
		cfg.Pass1MaxTokens = def.Pass1MaxTokens
	}
	if cfg.Pass2MaxTokens <= 0 {
		cfg.Pass2MaxTokens = def.Pass2MaxTokens
	}
	if cfg.Pass1Temperature <= 0 {
		cfg.Pass1Temperature = def.Pass1Temperature
	}
	if cfg.Pass2Temperature <= 0 {
		cfg.Pass2Temperature = def.Pass2Temperature
	}
	if log == nil {
		l := zerolog.Nop()
		log = &l
	}
	return &Generator{provider: provider, validator: v, cfg: cfg, seed: timeSeed, log: log}, nil
}

// WithSeedSource replaces the time based seed; tests use it to pin seeds.
func (g *Generator) WithSeedSource(f func() int64) *Generator {
	g.seed = f
	return g
}

func timeSeed() int64 {
	return time.Now().Unix() + rand.Int64N(1000)
}

// Generate runs Pass 1 then Pass 2. Pass 2 uses seed+1.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	seed := g.seed()
	res := &Result{Seed: seed}
	hook := req.OnPass
	if hook == nil {
		hook = func(int, bool) {}
	}

	hook(1, false)
	start := time.Now()
	system := pass1System
	if s := strings.TrimSpace(req.System); s != "" {
		system = s + "\n\n" + pass1System
	}
	gen1, err := g.provider.Generate(ctx, adapter.GenerationRequest{
		Model:       g.cfg.Model,
		System:      system,
		Prompt:      withOntology(Pass1Prompt(req.User), req.Ontology),
		Schema:      Pass1Schema(),
		SchemaName:  SchemaName,
		Seed:        seed,
		Temperature: g.cfg.Pass1Temperature,
		MaxTokens:   g.cfg.Pass1MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: pass 1: %v", domain.ErrGeneration, err)
	}
	if strings.TrimSpace(gen1.Content) == "" {
		return nil, fmt.Errorf("%w: pass 1 returned no content", domain.ErrGeneration)
	}
	plan, err := g.validator.Parse(gen1.Content)
	if err != nil {
		return nil, err
	}
	res.Plan = plan
	res.Pass1Time = time.Since(start)
	addUsage(&res.Usage, gen1.Usage)
	hook(1, true)
	g.log.Debug().Int64("seed", seed).Strs("scope_tags", plan.ScopeTags).Dur("duration", res.Pass1Time).Msg("twopass.pass1.ok")

	hook(2, false)
	start = time.Now()
	gen2, err := g.provider.Generate(ctx, adapter.GenerationRequest{
		Model:       g.cfg.Model,
		System:      pass2System,
		Prompt:      Pass2Prompt(plan),
		Seed:        seed + 1,
		Temperature: g.cfg.Pass2Temperature,
		MaxTokens:   g.cfg.Pass2MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: pass 2: %v", domain.ErrGeneration, err)
	}
	if strings.TrimSpace(gen2.Content) == "" {
		return nil, fmt.Errorf("%w: pass 2 returned no content", domain.ErrGeneration)
	}
	items := ParseTSV(CleanTSV(gen2.Content))
	res.Pass2Time = time.Since(start)
	addUsage(&res.Usage, gen2.Usage)
	hook(2, true)
	g.log.Debug().Int("rows", len(items)).Dur("duration", res.Pass2Time).Msg("twopass.pass2.ok")

	res.Offer = BuildOffer(plan, items)
	return res, nil
}

func addUsage(dst *adapter.Usage, u adapter.Usage) {
	dst.PromptTokens += u.PromptTokens
	dst.CompletionTokens += u.CompletionTokens
	dst.TotalTokens += u.TotalTokens
}
