package ai

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"offer-ai-service/internal/domain"
	"offer-ai-service/internal/domain/ports/adapter"
)

var _ adapter.GenerationProvider = (*MultiAdapter)(nil)

// MultiAdapter routes each request to a provider by model name. It does not
// inject a default model; each provider keeps its own.
type MultiAdapter struct {
	defaultProvider string // e.g., "openai" or "gemini"
	byProvider      map[string]adapter.GenerationProvider
	modelToProvider map[string]string
}

func NewMultiAdapter(
	defaultProvider string,
	byProvider map[string]adapter.GenerationProvider,
	modelToProvider map[string]string,
) *MultiAdapter {
	return &MultiAdapter{
		defaultProvider: strings.ToLower(defaultProvider),
		byProvider:      byProvider,
		modelToProvider: modelToProvider,
	}
}

func (m *MultiAdapter) Name() string { return "multi" }

func (m *MultiAdapter) resolveProvider(model string) string {
	if p := m.modelToProvider[model]; p != "" {
		return strings.ToLower(p)
	}
	l := strings.ToLower(model)
	switch {
	case strings.HasPrefix(l, "gemini"):
		return "gemini"
	case strings.HasPrefix(l, "gpt"), strings.HasPrefix(l, "o1"), strings.HasPrefix(l, "o3"), strings.HasPrefix(l, "o4"):
		return "openai"
	default:
		return m.defaultProvider
	}
}

func (m *MultiAdapter) pick(model string) adapter.GenerationProvider {
	if a := m.byProvider[m.resolveProvider(model)]; a != nil {
		return a
	}
	// last resort: first available, in name order so routing is stable
	names := make([]string, 0, len(m.byProvider))
	for name, a := range m.byProvider {
		if a != nil {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	sort.Strings(names)
	return m.byProvider[names[0]]
}

func (m *MultiAdapter) Generate(ctx context.Context, req adapter.GenerationRequest) (adapter.Generation, error) {
	a := m.pick(req.Model)
	if a == nil {
		return adapter.Generation{}, fmt.Errorf("%w: no generation provider configured", domain.ErrGeneration)
	}
	return a.Generate(ctx, req)
}
