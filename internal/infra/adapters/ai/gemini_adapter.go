package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"google.golang.org/genai"

	"offer-ai-service/internal/domain"
	"offer-ai-service/internal/domain/ports/adapter"
	"offer-ai-service/internal/infra/metrics"
)

var _ adapter.GenerationProvider = (*GeminiAdapter)(nil)

const defaultGeminiModel = "gemini-2.0-flash"

type GeminiAdapter struct {
	client       *genai.Client
	defaultModel string
}

// NewGeminiAdapter creates a Gemini adapter using the official SDK.
func NewGeminiAdapter(ctx context.Context, apiKey, baseURL, defaultModel string) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	if defaultModel == "" {
		defaultModel = defaultGeminiModel
	}
	return &GeminiAdapter{client: c, defaultModel: defaultModel}, nil
}

// geminiSeed folds a time-based seed into the int32 range the API accepts.
// Consecutive seeds stay consecutive except at the fold boundary.
func geminiSeed(seed int64) int32 {
	return int32(seed % math.MaxInt32)
}

func (g *GeminiAdapter) Name() string { return "gemini" }

func (g *GeminiAdapter) Generate(ctx context.Context, req adapter.GenerationRequest) (adapter.Generation, error) {
	model := modelOrDefault(req.Model, g.defaultModel)
	kind := requestKind(req)

	prompt := req.Prompt
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr[float32](float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Seed != 0 {
		cfg.Seed = genai.Ptr[int32](geminiSeed(req.Seed))
	}
	if req.Structured() {
		// The schema travels in the prompt; callers validate the reply locally.
		cfg.ResponseMIMEType = "application/json"
		schema, err := json.Marshal(req.Schema)
		if err != nil {
			return adapter.Generation{}, fmt.Errorf("gemini: encode schema: %w", err)
		}
		prompt += "\n\nSvara ENDAST med JSON som följer detta schema exakt:\n" + string(schema)
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), cfg)
	latency := int(time.Since(start).Milliseconds())
	if err != nil {
		metrics.ObserveGeneration(g.Name(), model, kind, 0, 0, 0, latency, false)
		return adapter.Generation{}, fmt.Errorf("%w: gemini: %v", domain.ErrGeneration, err)
	}

	u := adapter.Usage{}
	if resp.UsageMetadata != nil {
		u.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		u.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		u.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		metrics.ObserveGeneration(g.Name(), model, kind, u.PromptTokens, u.CompletionTokens, u.TotalTokens, latency, false)
		return adapter.Generation{}, fmt.Errorf("%w: gemini: empty response", domain.ErrGeneration)
	}
	metrics.ObserveGeneration(g.Name(), model, kind, u.PromptTokens, u.CompletionTokens, u.TotalTokens, latency, true)
	return adapter.Generation{Content: text, Usage: u, Model: model}, nil
}
