package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	middleware "github.com/econlens/econlens/internal/api/middlewares"
	"github.com/econlens/econlens/internal/apperr"
	"github.com/econlens/econlens/internal/core"
	"github.com/econlens/econlens/internal/core/chat"
)

type ChatHandler struct {
	orchestrator *chat.Orchestrator
	store        core.DocumentStore
}

func NewChatHandler(orchestrator *chat.Orchestrator, store core.DocumentStore) *ChatHandler {
	return &ChatHandler{orchestrator: orchestrator, store: store}
}

type chatRequest struct {
	Messages    []core.Turn `json:"messages"`
	System      string      `json:"system,omitempty"`
	Temperature float32     `json:"temperature,omitempty"`
}

// ChatWorkspace streams a completion for a free-form analysis conversation.
func (h *ChatHandler) ChatWorkspace(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	h.stream(w, r, workspaceID, "")
}

// ChatVault streams a completion grounded in one vault's documents.
func (h *ChatHandler) ChatVault(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vaultID := chi.URLParam(r, "vaultID")

	vault, err := h.store.GetVaultByID(ctx, vaultID)
	if err != nil {
		http.Error(w, "could not load vault", http.StatusInternalServerError)
		return
	}
	if vault == nil {
		http.Error(w, "vault not found", http.StatusNotFound)
		return
	}
	if vault.UserID != middleware.UserID(ctx) {
		http.Error(w, "vault belongs to another user", http.StatusUnauthorized)
		return
	}

	h.stream(w, r, vaultID, vaultID)
}

// stream runs the turn and writes tokens as unbuffered plain text. Errors
// after the first byte can only be logged; the status line is already gone.
func (h *ChatHandler) stream(w http.ResponseWriter, r *http.Request, conversationID, vaultID string) {
	ctx := r.Context()
	userID := middleware.UserID(ctx)
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	stream, err := h.orchestrator.Stream(ctx, chat.Request{
		ConversationID: conversationID,
		UserID:         userID,
		VaultID:        vaultID,
		Messages:       req.Messages,
		Persona:        req.System,
		Temperature:    req.Temperature,
	})
	if err != nil {
		status := apperr.HTTPStatus(apperr.KindOf(err))
		http.Error(w, err.Error(), status)
		return
	}
	defer stream.Close()

	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	for {
		token, rerr := stream.Recv()
		if token != "" {
			if _, werr := io.WriteString(w, token); werr != nil {
				log.Warn().Str("conversation", conversationID).Err(werr).Msg("client went away mid-stream")
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if rerr == io.EOF {
			return
		}
		if rerr != nil {
			log.Error().Str("conversation", conversationID).Err(rerr).Msg("stream aborted")
			return
		}
	}
}
