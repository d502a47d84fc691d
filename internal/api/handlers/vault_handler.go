package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	middleware "github.com/econlens/econlens/internal/api/middlewares"
	"github.com/econlens/econlens/internal/apperr"
	"github.com/econlens/econlens/internal/core"
	"github.com/econlens/econlens/internal/models"
)

type VaultHandler struct {
	store    core.DocumentStore
	messages core.MessageStore
	cache    core.ContextCache
	vectors  core.VectorStore
}

func NewVaultHandler(store core.DocumentStore, messages core.MessageStore, cache core.ContextCache, vectors core.VectorStore) *VaultHandler {
	return &VaultHandler{store: store, messages: messages, cache: cache, vectors: vectors}
}

type createVaultRequest struct {
	Title    string `json:"title"`
	IsPublic bool   `json:"is_public"`
}

func (h *VaultHandler) CreateVault(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		writeErrorKind(w, apperr.KindAuth, "unauthorized")
		return
	}

	var req createVaultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorKind(w, apperr.KindValidation, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeErrorKind(w, apperr.KindValidation, "title is required")
		return
	}

	vault := &models.Vault{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     req.Title,
		IsPublic:  req.IsPublic,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.store.CreateVault(r.Context(), vault); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, vault)
}

func (h *VaultHandler) ListVaults(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		writeErrorKind(w, apperr.KindAuth, "unauthorized")
		return
	}

	vaults, err := h.store.ListVaultsByUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if vaults == nil {
		vaults = []models.Vault{}
	}
	writeJSON(w, http.StatusOK, vaults)
}

// DeleteVault removes the vault and everything hanging off it. Vectors go
// first so a failure never leaves searchable embeddings without rows behind
// them.
func (h *VaultHandler) DeleteVault(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserID(ctx)
	vaultID := chi.URLParam(r, "vaultID")

	vault, err := h.store.GetVaultByID(ctx, vaultID)
	if err != nil {
		writeError(w, err)
		return
	}
	if vault == nil {
		writeErrorKind(w, apperr.KindNotFound, "vault not found")
		return
	}
	if vault.UserID != userID {
		writeErrorKind(w, apperr.KindAuth, "vault belongs to another user")
		return
	}

	if err := h.vectors.DeleteByFilter(ctx, vaultID, map[string]any{"vault_id": vaultID}); err != nil {
		writeError(w, err)
		return
	}
	if err := h.messages.DeleteMessagesByConversation(ctx, vaultID); err != nil {
		writeError(w, err)
		return
	}
	if err := h.cache.Reset(ctx, vaultID); err != nil {
		log.Warn().Str("vault", vaultID).Err(err).Msg("context cache reset failed")
	}
	// Documents and chunk records cascade off the vault row.
	if err := h.store.DeleteVault(ctx, vaultID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "vaultId": vaultID})
}
