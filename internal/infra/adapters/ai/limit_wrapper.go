package ai

import (
	"context"

	"offer-ai-service/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.GenerationProvider = (*limitedAI)(nil)

type limitedAI struct {
	inner adapter.GenerationProvider
	sem   chan struct{}
}

// NewLimitedAI caps in-flight generations. Waiting for a slot honours ctx.
func NewLimitedAI(inner adapter.GenerationProvider, maxConcurrent int) adapter.GenerationProvider {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedAI{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedAI) Name() string { return l.inner.Name() }

func (l *limitedAI) Generate(ctx context.Context, req adapter.GenerationRequest) (adapter.Generation, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return adapter.Generation{}, ctx.Err()
	}
	defer func() { <-l.sem }()
	return l.inner.Generate(ctx, req)
}
