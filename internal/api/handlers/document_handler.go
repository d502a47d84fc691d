package handlers

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	middleware "github.com/econlens/econlens/internal/api/middlewares"
	"github.com/econlens/econlens/internal/apperr"
	"github.com/econlens/econlens/internal/core"
	"github.com/econlens/econlens/internal/core/ingest"
	"github.com/econlens/econlens/internal/models"
)

const maxUploadBytes = 50 << 20 // 50 MB

type DocumentHandler struct {
	store    core.DocumentStore
	vectors  core.VectorStore
	pipeline *ingest.Pipeline
}

func NewDocumentHandler(store core.DocumentStore, vectors core.VectorStore, pipeline *ingest.Pipeline) *DocumentHandler {
	return &DocumentHandler{store: store, vectors: vectors, pipeline: pipeline}
}

// ownedVault loads the vault and enforces ownership. nil result means the
// response has already been written.
func (h *DocumentHandler) ownedVault(w http.ResponseWriter, r *http.Request) *models.Vault {
	ctx := r.Context()
	vaultID := chi.URLParam(r, "vaultID")

	vault, err := h.store.GetVaultByID(ctx, vaultID)
	if err != nil {
		writeError(w, err)
		return nil
	}
	if vault == nil {
		writeErrorKind(w, apperr.KindNotFound, "vault not found")
		return nil
	}
	if vault.UserID != middleware.UserID(ctx) {
		writeErrorKind(w, apperr.KindAuth, "vault belongs to another user")
		return nil
	}
	return vault
}

// UploadDocument ingests one document into the vault from a multipart file,
// a url field or a text field.
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	vault := h.ownedVault(w, r)
	if vault == nil {
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeErrorKind(w, apperr.KindValidation, "invalid multipart form")
		return
	}

	req := ingest.Request{
		VaultID: vault.ID,
		UserID:  middleware.UserID(r.Context()),
		DocType: strings.ToLower(r.FormValue("documentType")),
		URL:     r.FormValue("url"),
		RawText: r.FormValue("text"),
	}

	if file, header, err := r.FormFile("file"); err == nil {
		defer file.Close()
		data, rerr := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
		if rerr != nil {
			writeErrorKind(w, apperr.KindValidation, "could not read uploaded file")
			return
		}
		if len(data) > maxUploadBytes {
			writeErrorKind(w, apperr.KindValidation, "file exceeds the upload limit")
			return
		}
		req.FileData = data
		req.FileName = filepath.Base(header.Filename)
		if req.DocType == "" {
			req.DocType = strings.TrimPrefix(filepath.Ext(req.FileName), ".")
		}
	}
	if req.DocType == "" && req.URL != "" {
		req.DocType = "url"
	}

	result, err := h.pipeline.Ingest(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	vault := h.ownedVault(w, r)
	if vault == nil {
		return
	}

	docs, err := h.store.ListDocumentsByVault(r.Context(), vault.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}

// DeleteDocument removes the document's vectors first, then its chunk records
// and row, and reports how many chunks went away. A stray vector is worse
// than a stray row: it would keep surfacing in retrieval.
func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vault := h.ownedVault(w, r)
	if vault == nil {
		return
	}

	documentID := chi.URLParam(r, "documentID")
	doc, err := h.store.GetDocumentByID(ctx, documentID)
	if err != nil {
		writeError(w, err)
		return
	}
	if doc == nil {
		writeErrorKind(w, apperr.KindNotFound, "document not found")
		return
	}
	if doc.VaultID != vault.ID {
		writeErrorKind(w, apperr.KindAuth, "document belongs to another vault")
		return
	}

	chunks, err := h.store.GetChunksByDocument(ctx, documentID)
	if err != nil {
		writeError(w, err)
		return
	}
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}

	if err := h.vectors.DeleteByIDs(ctx, vault.ID, ids); err != nil {
		writeError(w, err)
		return
	}
	deleted, err := h.store.DeleteChunksByDocument(ctx, documentID)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.store.DeleteDocument(ctx, documentID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"documentId":    documentID,
		"deletedChunks": deleted,
	})
}
