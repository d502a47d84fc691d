package chat

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/econlens/econlens/internal/apperr"
	"github.com/econlens/econlens/internal/core"
	"github.com/econlens/econlens/internal/core/llm"
	"github.com/econlens/econlens/internal/core/tools"
	"github.com/econlens/econlens/internal/models"
)

const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 2000
	historyFallback    = 50
)

// Request is one chat turn. Messages is the client-supplied conversation so
// far; the last entry must be a user message. VaultID is empty in workspace
// mode and set in vault mode, where document search is bound as a tool.
type Request struct {
	ConversationID string
	UserID         string
	VaultID        string
	Messages       []core.Turn
	Persona        string
	Temperature    float32 // 0 means the default
}

// Orchestrator runs a persona-scoped, tool-augmented streaming completion per
// turn, keeping the durable message store and the short-term context cache in
// step with what the model saw and said.
type Orchestrator struct {
	model     core.StreamingModel
	messages  core.MessageStore
	cache     core.ContextCache
	embedder  core.EmbeddingProvider
	vectors   core.VectorStore
	baseTools []tools.Tool
}

func NewOrchestrator(
	model core.StreamingModel,
	messages core.MessageStore,
	cache core.ContextCache,
	embedder core.EmbeddingProvider,
	vectors core.VectorStore,
	baseTools ...tools.Tool,
) *Orchestrator {
	return &Orchestrator{
		model:     model,
		messages:  messages,
		cache:     cache,
		embedder:  embedder,
		vectors:   vectors,
		baseTools: baseTools,
	}
}

// Stream validates the turn, records the user message, and returns the token
// stream for the assistant reply. The user message must be durably stored
// before any model call; failing that aborts the turn. Once tokens are
// flowing, persistence problems are logged and the stream continues.
func (o *Orchestrator) Stream(ctx context.Context, req Request) (core.TokenStream, error) {
	if req.ConversationID == "" {
		return nil, apperr.New(apperr.KindValidation, "conversation id is required")
	}
	if len(req.Messages) == 0 {
		return nil, apperr.New(apperr.KindValidation, "messages must not be empty")
	}
	last := req.Messages[len(req.Messages)-1]
	if last.Role != "user" || strings.TrimSpace(last.Content) == "" {
		return nil, apperr.New(apperr.KindValidation, "last message must be a non-empty user message")
	}

	system := llm.ResolvePersona(req.Persona)

	if _, err := o.messages.AppendMessage(ctx, req.ConversationID, "user", last.Content, ""); err != nil {
		return nil, apperr.Wrap(err, apperr.KindPersistence, "store user message")
	}
	o.cachePush(ctx, req.ConversationID, "user", last.Content)

	history := o.buildHistory(ctx, req)

	registry := o.registryFor(req.VaultID)

	temp := req.Temperature
	if temp <= 0 {
		temp = defaultTemperature
	}

	inner, err := o.model.StreamChat(ctx, core.ChatModelRequest{
		System:      system,
		History:     history,
		Temperature: temp,
		MaxTokens:   defaultMaxTokens,
		Tools:       registry.Definitions(),
		OnToolCall:  registry.Handle,
	})
	if err != nil {
		return nil, err
	}

	return &recordingStream{
		inner: inner,
		onComplete: func(full string) {
			// Detached from the request context so a client disconnect
			// right after the final token still records the reply.
			pctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if _, perr := o.messages.AppendMessage(pctx, req.ConversationID, "assistant", full, ""); perr != nil {
				log.Error().Str("conversation", req.ConversationID).Err(perr).
					Msg("assistant message not persisted; reply already delivered")
			}
			o.cachePush(pctx, req.ConversationID, "assistant", full)
		},
	}, nil
}

// buildHistory hands the model the caller's transcript. When the caller sent
// only the current message, the short-term cache supplies the earlier turns,
// with a rebuild from the durable store on a cache miss. Caller-provided
// context is never dropped in favor of the cache.
func (o *Orchestrator) buildHistory(ctx context.Context, req Request) []core.Turn {
	if len(req.Messages) > 1 {
		return req.Messages
	}

	cached, err := o.cache.Get(ctx, req.ConversationID)
	if err != nil {
		log.Warn().Str("conversation", req.ConversationID).Err(err).Msg("context cache read failed")
	}

	var history []core.Turn
	if len(cached) > 0 {
		history = make([]core.Turn, 0, len(cached))
		for _, m := range cached {
			history = append(history, core.Turn{Role: m.Role, Content: m.Content})
		}
	} else {
		stored, serr := o.messages.ListRecentMessages(ctx, req.ConversationID, historyFallback)
		if serr != nil {
			log.Warn().Str("conversation", req.ConversationID).Err(serr).Msg("history rebuild failed, continuing without")
		}
		// Most-recent-first from the store; the model wants oldest first.
		for i := len(stored) - 1; i >= 0; i-- {
			history = append(history, core.Turn{Role: stored[i].Role, Content: stored[i].Content})
		}
	}

	last := req.Messages[len(req.Messages)-1]
	if len(history) == 0 || history[len(history)-1].Content != last.Content || history[len(history)-1].Role != "user" {
		history = append(history, last)
	}
	return history
}

func (o *Orchestrator) registryFor(vaultID string) *tools.Registry {
	bound := o.baseTools
	if vaultID != "" {
		bound = append(append([]tools.Tool{}, o.baseTools...),
			tools.NewVaultSearchTool(o.embedder, o.vectors, vaultID))
	}
	return tools.NewRegistry(bound...)
}

func (o *Orchestrator) cachePush(ctx context.Context, conversationID, role, content string) {
	msg := models.CachedMessage{Role: role, Content: content, Timestamp: time.Now().UTC()}
	if err := o.cache.Push(ctx, conversationID, msg); err != nil {
		log.Warn().Str("conversation", conversationID).Err(err).Msg("context cache push failed")
	}
}

// recordingStream accumulates the streamed text and fires onComplete exactly
// once when the underlying stream finishes cleanly. A Close before EOF means
// the reply was cut short and is not recorded.
type recordingStream struct {
	inner      core.TokenStream
	onComplete func(full string)

	mu   sync.Mutex
	buf  strings.Builder
	done bool
}

func (s *recordingStream) Recv() (string, error) {
	token, err := s.inner.Recv()
	if err == nil {
		s.mu.Lock()
		s.buf.WriteString(token)
		s.mu.Unlock()
		return token, nil
	}
	if err == io.EOF {
		s.complete()
	}
	return token, err
}

func (s *recordingStream) Close() error {
	return s.inner.Close()
}

func (s *recordingStream) complete() {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.done = true
	full := s.buf.String()
	s.mu.Unlock()
	if s.onComplete != nil {
		s.onComplete(full)
	}
}
