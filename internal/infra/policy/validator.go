// Package policy checks generated offers against business rules written in
// Rego. A failing rule yields a warning; it never rejects the offer.
package policy

import (
	"context"
	_ "embed"
	"fmt"
	"sort"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/rs/zerolog"

	"offer-ai-service/internal/domain/model"
	"offer-ai-service/internal/domain/ports/adapter"
	"offer-ai-service/internal/twopass"
)

//go:embed offer.rego
var offerPolicy string

const warningsQuery = "data.offer.policy.warnings"

var _ adapter.PolicyValidator = (*Validator)(nil)

type Validator struct {
	query   rego.PreparedEvalQuery
	maxRows int
	log     *zerolog.Logger
}

type input struct {
	Offer        *model.Offer `json:"offer"`
	StandardRate int          `json:"standardRate"`
	MaxRows      int          `json:"maxRows"`
}

// New compiles the embedded offer policy.
func New(ctx context.Context, log *zerolog.Logger) (*Validator, error) {
	return NewValidator(ctx, map[string]string{"offer.rego": offerPolicy}, 0, log)
}

// NewValidator compiles the given policies. maxRows <= 0 keeps the
// policy's own default.
func NewValidator(ctx context.Context, policies map[string]string, maxRows int, log *zerolog.Logger) (*Validator, error) {
	if len(policies) == 0 {
		return nil, fmt.Errorf("no policies provided for validation")
	}
	if log == nil {
		l := zerolog.Nop()
		log = &l
	}

	compiler := ast.NewCompiler()
	modules := make(map[string]*ast.Module, len(policies))
	for filename, content := range policies {
		module, err := ast.ParseModuleWithOpts(filename, content, ast.ParserOptions{
			RegoVersion: ast.RegoV1,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to parse policy %s: %w", filename, err)
		}
		modules[filename] = module
	}
	compiler.Compile(modules)
	if compiler.Failed() {
		return nil, fmt.Errorf("policy compilation failed: %v", compiler.Errors)
	}

	query, err := rego.New(
		rego.Query(warningsQuery),
		rego.Compiler(compiler),
		rego.SetRegoVersion(ast.RegoV1),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego query: %w", err)
	}
	log.Debug().Int("policies", len(policies)).Msg("offer policy compiled")
	return &Validator{query: query, maxRows: maxRows, log: log}, nil
}

func (v *Validator) Validate(ctx context.Context, offer *model.Offer) (*model.ValidationResult, error) {
	if offer == nil {
		return nil, fmt.Errorf("policy: nil offer")
	}
	rs, err := v.query.Eval(ctx, rego.EvalInput(input{
		Offer:        withRows(offer),
		StandardRate: twopass.StandardHourlyRate,
		MaxRows:      v.maxRows,
	}))
	if err != nil {
		return nil, fmt.Errorf("policy evaluation failed: %w", err)
	}

	warnings := []string{}
	if len(rs) > 0 && len(rs[0].Expressions) > 0 {
		raw, ok := rs[0].Expressions[0].Value.([]interface{})
		if !ok {
			return nil, fmt.Errorf("unexpected result type from policy evaluation")
		}
		for _, w := range raw {
			s, ok := w.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected warning type %T", w)
			}
			warnings = append(warnings, s)
		}
	}
	sort.Strings(warnings)
	if len(warnings) > 0 {
		v.log.Debug().Strs("warnings", warnings).Msg("offer policy warnings")
	}
	return &model.ValidationResult{IsValid: len(warnings) == 0, Warnings: warnings}, nil
}

// withRows returns a shallow copy whose row lists are never null, so the
// policy's count() calls stay defined.
func withRows(o *model.Offer) *model.Offer {
	c := *o
	if c.WorkItems == nil {
		c.WorkItems = []model.LineItem{}
	}
	if c.MaterialItems == nil {
		c.MaterialItems = []model.LineItem{}
	}
	if c.OptionalItems == nil {
		c.OptionalItems = []model.LineItem{}
	}
	return &c
}
