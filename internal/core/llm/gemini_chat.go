package llm

import (
	"context"
	"io"
	"os"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/econlens/econlens/internal/apperr"
	"github.com/econlens/econlens/internal/core"
)

// GeminiChat implements the streaming completion model with tool calling.
type GeminiChat struct {
	client    *genai.Client
	modelName string
}

func NewGeminiChat(ctx context.Context, apiKey, modelName string) (*GeminiChat, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &GeminiChat{client: cl, modelName: modelName}, nil
}

func (g *GeminiChat) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func schemaType(t string) genai.Type {
	switch t {
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}

func buildTools(defs []core.ToolDefinition) []*genai.Tool {
	if len(defs) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(defs))
	for _, d := range defs {
		props := make(map[string]*genai.Schema, len(d.Parameters))
		for name, p := range d.Parameters {
			props[name] = &genai.Schema{
				Type:        schemaType(p.Type),
				Description: p.Description,
			}
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        d.Name,
			Description: d.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: props,
				Required:   d.Required,
			},
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// StreamChat invokes the model with the supplied history and bound tools and
// returns a pull-based token stream. Function calls are resolved inside the
// stream: tool results are fed back to the model and generation continues
// until the model finishes with text.
func (g *GeminiChat) StreamChat(ctx context.Context, req core.ChatModelRequest) (core.TokenStream, error) {
	if len(req.History) == 0 {
		return nil, apperr.New(apperr.KindValidation, "empty message history")
	}

	m := g.client.GenerativeModel(g.modelName)
	if req.System != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	m.SetTemperature(req.Temperature)
	if req.MaxTokens > 0 {
		m.SetMaxOutputTokens(req.MaxTokens)
	}
	m.Tools = buildTools(req.Tools)

	cs := m.StartChat()
	for _, turn := range req.History[:len(req.History)-1] {
		role := "user"
		if turn.Role == "assistant" || turn.Role == "model" {
			role = "model"
		}
		cs.History = append(cs.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(turn.Content)},
		})
	}
	last := req.History[len(req.History)-1]

	streamCtx, cancel := context.WithCancel(ctx)
	s := &geminiStream{
		items:  make(chan streamItem, 8),
		cancel: cancel,
	}
	go s.pump(streamCtx, cs, req.OnToolCall, genai.Text(last.Content))
	return s, nil
}

type streamItem struct {
	text string
	err  error
}

type geminiStream struct {
	items  chan streamItem
	cancel context.CancelFunc
}

// pump drives the model iterator, forwarding text deltas and resolving
// function calls until the model completes.
func (s *geminiStream) pump(ctx context.Context, cs *genai.ChatSession, onTool core.ToolHandler, first ...genai.Part) {
	defer close(s.items)

	parts := first
	for {
		iter := cs.SendMessageStream(ctx, parts...)

		var calls []genai.FunctionCall
		for {
			resp, err := iter.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				s.emit(ctx, streamItem{err: err})
				return
			}
			for _, cand := range resp.Candidates {
				if cand.Content == nil {
					continue
				}
				for _, part := range cand.Content.Parts {
					switch p := part.(type) {
					case genai.Text:
						if !s.emit(ctx, streamItem{text: string(p)}) {
							return
						}
					case genai.FunctionCall:
						calls = append(calls, p)
					}
				}
			}
		}

		if len(calls) == 0 {
			return
		}

		// Answer every pending call, then continue the same session.
		parts = parts[:0]
		for _, call := range calls {
			var result map[string]any
			if onTool != nil {
				result = onTool(ctx, call.Name, call.Args)
			} else {
				result = map[string]any{"success": false, "error": map[string]any{
					"message": "tool not available", "type": string(apperr.KindConfig),
				}}
			}
			parts = append(parts, genai.FunctionResponse{
				Name:     call.Name,
				Response: result,
			})
		}
	}
}

func (s *geminiStream) emit(ctx context.Context, item streamItem) bool {
	select {
	case s.items <- item:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *geminiStream) Recv() (string, error) {
	item, ok := <-s.items
	if !ok {
		return "", io.EOF
	}
	if item.err != nil {
		return "", item.err
	}
	return item.text, nil
}

func (s *geminiStream) Close() error {
	s.cancel()
	return nil
}

var _ core.StreamingModel = (*GeminiChat)(nil)
