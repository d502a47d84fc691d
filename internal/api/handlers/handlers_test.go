package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	middleware "github.com/econlens/econlens/internal/api/middlewares"
	"github.com/econlens/econlens/internal/core"
	"github.com/econlens/econlens/internal/core/chat"
	"github.com/econlens/econlens/internal/core/chunk"
	"github.com/econlens/econlens/internal/core/ingest"
	"github.com/econlens/econlens/internal/models"
)

type fakeStore struct {
	core.DocumentStore
	core.MessageStore

	vaults    map[string]*models.Vault
	documents map[string]*models.Document
	chunks    map[string][]models.DocumentChunk
	messages  map[string]*models.ChatMessage

	deletedChunkDocs []string
	deletedDocs      []string
	calls            []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		vaults:    map[string]*models.Vault{},
		documents: map[string]*models.Document{},
		chunks:    map[string][]models.DocumentChunk{},
		messages:  map[string]*models.ChatMessage{},
	}
}

func (f *fakeStore) GetVaultByID(_ context.Context, id string) (*models.Vault, error) {
	return f.vaults[id], nil
}

func (f *fakeStore) CreateVault(_ context.Context, v *models.Vault) error {
	f.vaults[v.ID] = v
	return nil
}

func (f *fakeStore) ListVaultsByUser(_ context.Context, userID string) ([]models.Vault, error) {
	var out []models.Vault
	for _, v := range f.vaults {
		if v.UserID == userID {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (f *fakeStore) GetDocumentByID(_ context.Context, id string) (*models.Document, error) {
	return f.documents[id], nil
}

func (f *fakeStore) GetChunksByDocument(_ context.Context, documentID string) ([]models.DocumentChunk, error) {
	return f.chunks[documentID], nil
}

func (f *fakeStore) DeleteChunksByDocument(_ context.Context, documentID string) (int, error) {
	f.calls = append(f.calls, "delete_chunks")
	n := len(f.chunks[documentID])
	delete(f.chunks, documentID)
	f.deletedChunkDocs = append(f.deletedChunkDocs, documentID)
	return n, nil
}

func (f *fakeStore) DeleteDocument(_ context.Context, id string) error {
	f.calls = append(f.calls, "delete_document")
	delete(f.documents, id)
	f.deletedDocs = append(f.deletedDocs, id)
	return nil
}

func (f *fakeStore) UpdateMessage(_ context.Context, messageID string, fields core.MessageUpdate) (*models.ChatMessage, error) {
	m, ok := f.messages[messageID]
	if !ok {
		return nil, nil
	}
	if fields.Upvoted != nil {
		m.Upvoted = fields.Upvoted
	}
	return m, nil
}

func (f *fakeStore) AppendMessage(_ context.Context, conversationID, role, content, _ string) (*models.ChatMessage, error) {
	m := &models.ChatMessage{ID: role + "-msg", ConversationID: conversationID, Role: role, Content: content}
	f.messages[m.ID] = m
	return m, nil
}

func (f *fakeStore) ListRecentMessages(context.Context, string, int) ([]models.ChatMessage, error) {
	return nil, nil
}

func (f *fakeStore) DeleteVault(_ context.Context, id string) error {
	delete(f.vaults, id)
	return nil
}

func (f *fakeStore) DeleteMessagesByConversation(context.Context, string) error {
	return nil
}

type fakeVectorStore struct {
	core.VectorStore

	existing   map[string]bool
	deletedIDs []string
	calls      *[]string
}

// DeleteByIDs mirrors the real store's contract: ids that no longer exist
// are skipped silently, never an error.
func (f *fakeVectorStore) DeleteByIDs(_ context.Context, _ string, ids []string) error {
	if f.calls != nil {
		*f.calls = append(*f.calls, "delete_vectors")
	}
	for _, id := range ids {
		if f.existing != nil && !f.existing[id] {
			continue
		}
		delete(f.existing, id)
		f.deletedIDs = append(f.deletedIDs, id)
	}
	return nil
}

func (f *fakeVectorStore) DeleteByFilter(context.Context, string, map[string]any) error {
	return nil
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) ([]models.CachedMessage, error) { return nil, nil }
func (noopCache) Push(context.Context, string, models.CachedMessage) error    { return nil }
func (noopCache) Reset(context.Context, string) error                         { return nil }

type scriptedModel struct {
	tokens []string
}

type scriptedStream struct {
	tokens []string
	next   int
}

func (s *scriptedStream) Recv() (string, error) {
	if s.next >= len(s.tokens) {
		return "", io.EOF
	}
	t := s.tokens[s.next]
	s.next++
	return t, nil
}

func (s *scriptedStream) Close() error { return nil }

func (m *scriptedModel) StreamChat(context.Context, core.ChatModelRequest) (core.TokenStream, error) {
	return &scriptedStream{tokens: m.tokens}, nil
}

type stubEmbedder struct{}

func (stubEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	return make([][]float32, len(texts)), nil
}

func (stubEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return []float32{1}, nil
}

func authedRequest(method, target string, body io.Reader, userID string) *http.Request {
	req := httptest.NewRequest(method, target, body)
	return req.WithContext(middleware.WithUserID(req.Context(), userID))
}

func decodeErrorType(t *testing.T, body []byte) string {
	t.Helper()
	var env struct {
		Success bool `json:"success"`
		Error   struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &env))
	require.False(t, env.Success)
	return env.Error.Type
}

func docRouter(h *DocumentHandler) http.Handler {
	r := chi.NewRouter()
	r.Delete("/api/vaults/{vaultID}/documents/{documentID}", h.DeleteDocument)
	r.Post("/api/vaults/{vaultID}/documents", h.UploadDocument)
	return r
}

func TestDeleteDocumentVaultOwnershipMismatch(t *testing.T) {
	store := newFakeStore()
	store.vaults["v1"] = &models.Vault{ID: "v1", UserID: "owner"}
	store.documents["d1"] = &models.Document{ID: "d1", VaultID: "v1"}
	store.chunks["d1"] = []models.DocumentChunk{{ID: "c1", DocumentID: "d1"}}
	vectors := &fakeVectorStore{}

	h := NewDocumentHandler(store, vectors, nil)
	rec := httptest.NewRecorder()
	docRouter(h).ServeHTTP(rec, authedRequest(http.MethodDelete, "/api/vaults/v1/documents/d1", nil, "intruder"))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "AUTH_ERROR", decodeErrorType(t, rec.Body.Bytes()))
	assert.Empty(t, vectors.deletedIDs, "nothing may be deleted on an ownership mismatch")
	assert.Len(t, store.chunks["d1"], 1)
	assert.NotNil(t, store.documents["d1"])
}

func TestDeleteDocumentWrongVault(t *testing.T) {
	store := newFakeStore()
	store.vaults["v1"] = &models.Vault{ID: "v1", UserID: "u1"}
	store.documents["d1"] = &models.Document{ID: "d1", VaultID: "other-vault"}

	h := NewDocumentHandler(store, &fakeVectorStore{}, nil)
	rec := httptest.NewRecorder()
	docRouter(h).ServeHTTP(rec, authedRequest(http.MethodDelete, "/api/vaults/v1/documents/d1", nil, "u1"))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "AUTH_ERROR", decodeErrorType(t, rec.Body.Bytes()))
}

func TestDeleteDocumentRemovesVectorsBeforeRows(t *testing.T) {
	store := newFakeStore()
	store.vaults["v1"] = &models.Vault{ID: "v1", UserID: "u1"}
	store.documents["d1"] = &models.Document{ID: "d1", VaultID: "v1"}
	store.chunks["d1"] = []models.DocumentChunk{
		{ID: "c1", DocumentID: "d1", ChunkIndex: 0},
		{ID: "c2", DocumentID: "d1", ChunkIndex: 1},
	}
	vectors := &fakeVectorStore{calls: &store.calls}

	h := NewDocumentHandler(store, vectors, nil)
	rec := httptest.NewRecorder()
	docRouter(h).ServeHTTP(rec, authedRequest(http.MethodDelete, "/api/vaults/v1/documents/d1", nil, "u1"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"c1", "c2"}, vectors.deletedIDs)
	assert.Equal(t, []string{"delete_vectors", "delete_chunks", "delete_document"}, store.calls)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.EqualValues(t, 2, resp["deletedChunks"])
}

func TestDeleteDocumentToleratesAlreadyDeletedVectors(t *testing.T) {
	store := newFakeStore()
	store.vaults["v1"] = &models.Vault{ID: "v1", UserID: "u1"}
	store.documents["d1"] = &models.Document{ID: "d1", VaultID: "v1"}
	store.chunks["d1"] = []models.DocumentChunk{
		{ID: "c1", DocumentID: "d1", ChunkIndex: 0},
		{ID: "c2", DocumentID: "d1", ChunkIndex: 1},
	}
	// c2's vector is already gone; deletion must still succeed.
	vectors := &fakeVectorStore{existing: map[string]bool{"c1": true}}

	h := NewDocumentHandler(store, vectors, nil)
	rec := httptest.NewRecorder()
	docRouter(h).ServeHTTP(rec, authedRequest(http.MethodDelete, "/api/vaults/v1/documents/d1", nil, "u1"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"c1"}, vectors.deletedIDs)
	assert.Empty(t, vectors.existing)
	assert.NotContains(t, store.documents, "d1")
}

func TestDeleteDocumentNotFound(t *testing.T) {
	store := newFakeStore()
	store.vaults["v1"] = &models.Vault{ID: "v1", UserID: "u1"}

	h := NewDocumentHandler(store, &fakeVectorStore{}, nil)
	rec := httptest.NewRecorder()
	docRouter(h).ServeHTTP(rec, authedRequest(http.MethodDelete, "/api/vaults/v1/documents/ghost", nil, "u1"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeErrorType(t, rec.Body.Bytes()))
}

func TestChatVaultStreamsPlainText(t *testing.T) {
	store := newFakeStore()
	store.vaults["v1"] = &models.Vault{ID: "v1", UserID: "u1"}

	orch := chat.NewOrchestrator(
		&scriptedModel{tokens: []string{"Growth ", "slowed ", "last quarter."}},
		store, noopCache{}, stubEmbedder{}, &fakeVectorStore{},
	)
	h := NewChatHandler(orch, store)

	r := chi.NewRouter()
	r.Post("/api/vaults/{vaultID}/chat", h.ChatVault)

	body, _ := json.Marshal(map[string]any{
		"messages": []map[string]string{{"role": "user", "content": "How did GDP do?"}},
	})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/vaults/v1/chat", bytes.NewReader(body), "u1"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Equal(t, "Growth slowed last quarter.", rec.Body.String())

	// Both sides of the turn were durably recorded.
	assert.Contains(t, store.messages, "user-msg")
	assert.Contains(t, store.messages, "assistant-msg")
}

func TestChatVaultRejectsForeignVault(t *testing.T) {
	store := newFakeStore()
	store.vaults["v1"] = &models.Vault{ID: "v1", UserID: "owner"}

	orch := chat.NewOrchestrator(&scriptedModel{}, store, noopCache{}, stubEmbedder{}, &fakeVectorStore{})
	h := NewChatHandler(orch, store)

	r := chi.NewRouter()
	r.Post("/api/vaults/{vaultID}/chat", h.ChatVault)

	body, _ := json.Marshal(map[string]any{
		"messages": []map[string]string{{"role": "user", "content": "hi"}},
	})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/vaults/v1/chat", bytes.NewReader(body), "intruder"))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, store.messages)
}

func TestChatWorkspaceValidationIsPlainText(t *testing.T) {
	store := newFakeStore()
	orch := chat.NewOrchestrator(&scriptedModel{}, store, noopCache{}, stubEmbedder{}, &fakeVectorStore{})
	h := NewChatHandler(orch, store)

	r := chi.NewRouter()
	r.Post("/api/workspaces/{workspaceID}/chat", h.ChatWorkspace)

	body, _ := json.Marshal(map[string]any{"messages": []map[string]string{}})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/workspaces/w1/chat", bytes.NewReader(body), "u1"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotContains(t, rec.Header().Get("Content-Type"), "application/json")
}

func TestUploadDocumentRequiresSource(t *testing.T) {
	store := newFakeStore()
	store.vaults["v1"] = &models.Vault{ID: "v1", UserID: "u1"}

	pipeline := ingest.NewPipeline(store, &fakeVectorStore{}, stubEmbedder{}, failExtractor{}, nil,
		chunk.NewChunker(chunk.DefaultSize, chunk.DefaultOverlap))
	h := NewDocumentHandler(store, &fakeVectorStore{}, pipeline)

	var buf bytes.Buffer
	req := authedRequest(http.MethodPost, "/api/vaults/v1/documents", &buf, "u1")
	req.Header.Set("Content-Type", "multipart/form-data; boundary=xxx")
	buf.WriteString("--xxx--\r\n")

	rec := httptest.NewRecorder()
	docRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeErrorType(t, rec.Body.Bytes()))
}

type failExtractor struct{}

func (failExtractor) Extract(context.Context, []byte, string) (string, error) {
	return "", nil
}

func (failExtractor) ExtractURL(context.Context, string) (string, error) {
	return "", nil
}

func TestMessageFeedback(t *testing.T) {
	store := newFakeStore()
	store.messages["m1"] = &models.ChatMessage{ID: "m1", Role: "assistant", Content: "answer", CreatedAt: time.Now()}

	h := NewMessageHandler(store)
	r := chi.NewRouter()
	r.Patch("/api/messages/{messageID}", h.Feedback)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authedRequest(http.MethodPatch, "/api/messages/m1",
		strings.NewReader(`{"upvoted": true}`), "u1"))

	require.Equal(t, http.StatusOK, rec.Code)
	var msg models.ChatMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	require.NotNil(t, msg.Upvoted)
	assert.True(t, *msg.Upvoted)
}

func TestMessageFeedbackNotFound(t *testing.T) {
	h := NewMessageHandler(newFakeStore())
	r := chi.NewRouter()
	r.Patch("/api/messages/{messageID}", h.Feedback)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authedRequest(http.MethodPatch, "/api/messages/ghost",
		strings.NewReader(`{"upvoted": false}`), "u1"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeErrorType(t, rec.Body.Bytes()))
}

func TestCreateVaultRequiresTitle(t *testing.T) {
	h := NewVaultHandler(newFakeStore(), newFakeStore(), noopCache{}, &fakeVectorStore{})
	rec := httptest.NewRecorder()
	req := authedRequest(http.MethodPost, "/api/vaults", strings.NewReader(`{"title":"  "}`), "u1")
	h.CreateVault(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeErrorType(t, rec.Body.Bytes()))
}

func TestDeleteVaultCascade(t *testing.T) {
	store := newFakeStore()
	store.vaults["v1"] = &models.Vault{ID: "v1", UserID: "u1"}
	vectors := &fakeVectorStore{}

	h := NewVaultHandler(store, store, noopCache{}, vectors)
	r := chi.NewRouter()
	r.Delete("/api/vaults/{vaultID}", h.DeleteVault)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authedRequest(http.MethodDelete, "/api/vaults/v1", nil, "u1"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, store.vaults, "v1")
}
