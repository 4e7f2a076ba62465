package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog"

	"offer-ai-service/internal/domain"
	"offer-ai-service/internal/domain/ports/adapter"
	"offer-ai-service/internal/infra/metrics"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.GenerationProvider = (*OpenAIAdapter)(nil)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIAdapter talks to the Chat Completions API. Any OpenAI compatible
// endpoint works through baseURL.
type OpenAIAdapter struct {
	client openai.Client
	model  string
	log    *zerolog.Logger
}

func NewOpenAIAdapter(apiKey, baseURL, model string, timeout time.Duration, log *zerolog.Logger) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	if log == nil {
		l := zerolog.Nop()
		log = &l
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(timeout),
		option.WithMaxRetries(1),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIAdapter{client: openai.NewClient(opts...), model: model, log: log}, nil
}

func (o *OpenAIAdapter) Name() string { return "openai" }

func (o *OpenAIAdapter) Generate(ctx context.Context, req adapter.GenerationRequest) (adapter.Generation, error) {
	model := modelOrDefault(req.Model, o.model)
	kind := requestKind(req)

	if n, err := estimateTokens(model, req.Messages()); err == nil {
		metrics.ObservePromptEstimate(o.Name(), model, n)
	} else {
		o.log.Debug().Err(err).Str("model", model).Msg("prompt token estimate unavailable")
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: toOpenAIMessages(req.Messages()),
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Seed != 0 {
		params.Seed = openai.Int(req.Seed)
	}
	if req.Structured() {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   schemaName(req),
					Strict: openai.Bool(true),
					Schema: req.Schema,
				},
			},
		}
	}

	start := time.Now()
	resp, err := o.client.Chat.Completions.New(ctx, params)
	latency := int(time.Since(start).Milliseconds())
	if err != nil {
		metrics.ObserveGeneration(o.Name(), model, kind, 0, 0, 0, latency, false)
		return adapter.Generation{}, fmt.Errorf("%w: openai: %v", domain.ErrGeneration, err)
	}

	u := adapter.Usage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
	for _, c := range resp.Choices {
		if c.Message.Refusal != "" {
			metrics.ObserveGeneration(o.Name(), model, kind, u.PromptTokens, u.CompletionTokens, u.TotalTokens, latency, false)
			return adapter.Generation{}, fmt.Errorf("%w: openai refused: %s", domain.ErrGeneration, c.Message.Refusal)
		}
		if c.Message.Content != "" {
			metrics.ObserveGeneration(o.Name(), model, kind, u.PromptTokens, u.CompletionTokens, u.TotalTokens, latency, true)
			return adapter.Generation{Content: c.Message.Content, Usage: u, Model: resp.Model}, nil
		}
	}
	metrics.ObserveGeneration(o.Name(), model, kind, u.PromptTokens, u.CompletionTokens, u.TotalTokens, latency, false)
	return adapter.Generation{}, fmt.Errorf("%w: openai: no choice content", domain.ErrGeneration)
}

func toOpenAIMessages(msgs []adapter.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch strings.ToLower(m.Role) {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// estimateTokens counts prompt tokens with the model's BPE, falling back to
// cl100k_base for models tiktoken does not know.
func estimateTokens(model string, msgs []adapter.Message) (int, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return 0, err
		}
	}
	n := 3
	for _, m := range msgs {
		n += 4 + len(enc.Encode(m.Role, nil, nil)) + len(enc.Encode(m.Content, nil, nil))
	}
	return n, nil
}

func schemaName(req adapter.GenerationRequest) string {
	if req.SchemaName != "" {
		return req.SchemaName
	}
	return "response"
}

func requestKind(req adapter.GenerationRequest) string {
	if req.Structured() {
		return "structured"
	}
	return "text"
}

func modelOrDefault(model, def string) string {
	if strings.TrimSpace(model) != "" {
		return model
	}
	return def
}
