package adapter

import "context"

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// Usage for a single generation call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// GenerationRequest asks a provider for one completion. When Schema is set
// the provider must return JSON that conforms to it exactly; otherwise the
// reply is free text.
type GenerationRequest struct {
	Model       string
	System      string
	Prompt      string
	Schema      map[string]any
	SchemaName  string
	Seed        int64
	Temperature float64
	MaxTokens   int
}

func (r GenerationRequest) Structured() bool { return r.Schema != nil }

func (r GenerationRequest) Messages() []Message {
	msgs := make([]Message, 0, 2)
	if r.System != "" {
		msgs = append(msgs, Message{Role: "system", Content: r.System})
	}
	return append(msgs, Message{Role: "user", Content: r.Prompt})
}

type Generation struct {
	Content string
	Usage   Usage
	Model   string
}

// GenerationProvider is the port for LLM completion.
type GenerationProvider interface {
	Name() string
	Generate(ctx context.Context, req GenerationRequest) (Generation, error)
}
