package tools

import (
	"context"

	"github.com/econlens/econlens/internal/apperr"
	"github.com/econlens/econlens/internal/core"
)

const defaultSearchTopK = 5

// VaultSearchTool retrieves the most relevant document chunks from one
// vault's namespace. It is bound only when chatting in vault mode.
type VaultSearchTool struct {
	embedder core.EmbeddingProvider
	vectors  core.VectorStore
	vaultID  string
}

func NewVaultSearchTool(embedder core.EmbeddingProvider, vectors core.VectorStore, vaultID string) *VaultSearchTool {
	return &VaultSearchTool{embedder: embedder, vectors: vectors, vaultID: vaultID}
}

func (t *VaultSearchTool) Definition() core.ToolDefinition {
	return core.ToolDefinition{
		Name: "search_vault",
		Description: "Search the user's uploaded documents for passages relevant to a query. " +
			"Use it before answering questions about the user's own documents.",
		Parameters: map[string]core.ToolParam{
			"query": {Type: "string", Description: "What to look for in the documents"},
			"top_k": {Type: "integer", Description: "How many passages to return (default 5)"},
		},
		Required: []string{"query"},
	}
}

func (t *VaultSearchTool) Execute(ctx context.Context, args map[string]any) map[string]any {
	query := stringArg(args, "query")
	if query == "" {
		return Failure(apperr.KindValidation, "query is required", nil)
	}

	topK := intArg(args, "top_k")
	if topK <= 0 {
		topK = defaultSearchTopK
	}

	vec, err := t.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return Failure(apperr.KindOf(err), "could not embed the query", nil)
	}

	matches, err := t.vectors.Query(ctx, t.vaultID, vec, topK, nil)
	if err != nil {
		return Failure(apperr.KindOf(err), "vault search failed", nil)
	}
	if len(matches) == 0 {
		return Failure(apperr.KindNoData, "no relevant passages found", nil)
	}

	passages := make([]map[string]any, 0, len(matches))
	for _, m := range matches {
		passages = append(passages, map[string]any{
			"text":          m.Metadata["chunk_text"],
			"score":         m.Score,
			"document_id":   m.Metadata["document_id"],
			"document_name": m.Metadata["file_name"],
			"chunk_index":   m.Metadata["chunk_index"],
		})
	}
	return Success(map[string]any{"passages": passages})
}

var _ Tool = (*VaultSearchTool)(nil)
