package core

import (
	"context"

	"github.com/econlens/econlens/internal/models"
)

// EmbeddingProvider turns text into fixed-length vectors. EmbedTexts output
// is index-aligned with its input.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// MetadataGenerator derives a display name and summary for extracted text.
type MetadataGenerator interface {
	Summarize(ctx context.Context, text, declaredType string) (models.DocumentMeta, error)
}

// Turn is one entry of the conversation history handed to the model.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolHandler executes a model-invoked tool call and returns its result as
// structured data. It must never return an error across the tool boundary;
// failures are encoded in the returned map.
type ToolHandler func(ctx context.Context, name string, args map[string]any) map[string]any

// ToolDefinition describes one callable tool exposed to the model.
type ToolDefinition struct {
	Name        string
	Description string
	// Parameters maps argument name to a short type/description pair the
	// adapter translates into the provider's schema format.
	Parameters map[string]ToolParam
	Required   []string
}

// ToolParam describes a single tool argument.
type ToolParam struct {
	Type        string // "string", "number", "integer", "array", "object"
	Description string
}

// ChatModelRequest is a single streaming completion invocation.
type ChatModelRequest struct {
	System      string
	History     []Turn
	Temperature float32
	MaxTokens   int32
	Tools       []ToolDefinition
	OnToolCall  ToolHandler
}

// TokenStream yields text increments as the model produces them. Recv returns
// io.EOF on graceful completion; Close releases the underlying transport and
// is the only cancellation signal supported mid-stream.
type TokenStream interface {
	Recv() (string, error)
	Close() error
}

// StreamingModel is the completion model behind the chat orchestrator.
type StreamingModel interface {
	StreamChat(ctx context.Context, req ChatModelRequest) (TokenStream, error)
}
