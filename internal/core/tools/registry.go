package tools

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/econlens/econlens/internal/apperr"
	"github.com/econlens/econlens/internal/core"
)

// Tool is one callable exposed to the model. Execute must never return an
// error: every failure is encoded as structured data so a failed tool call
// degrades the conversation instead of aborting the stream.
type Tool interface {
	Definition() core.ToolDefinition
	Execute(ctx context.Context, args map[string]any) map[string]any
}

// Registry dispatches model-invoked tool calls by name.
type Registry struct {
	tools map[string]Tool
	order []string
}

func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		name := t.Definition().Name
		r.tools[name] = t
		r.order = append(r.order, name)
	}
	return r
}

// Definitions returns the tool declarations in registration order.
func (r *Registry) Definitions() []core.ToolDefinition {
	defs := make([]core.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// Handle executes the named tool. Unknown names come back as structured
// validation failures, not errors.
func (r *Registry) Handle(ctx context.Context, name string, args map[string]any) map[string]any {
	t, ok := r.tools[name]
	if !ok {
		log.Warn().Str("tool", name).Msg("model requested unknown tool")
		return Failure(apperr.KindValidation, "unknown tool: "+name, nil)
	}
	return t.Execute(ctx, args)
}

// Success wraps a tool result in the standard envelope.
func Success(payload map[string]any) map[string]any {
	out := map[string]any{"success": true}
	for k, v := range payload {
		out[k] = v
	}
	return out
}

// Failure encodes a tool failure as data the model may relay conversationally.
func Failure(kind apperr.Kind, message string, details map[string]any) map[string]any {
	errBody := map[string]any{
		"message": message,
		"type":    string(kind),
	}
	if len(details) > 0 {
		errBody["details"] = details
	}
	return map[string]any{"success": false, "error": errBody}
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
