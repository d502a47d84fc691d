package core

import "context"

// VectorInput is one embedding plus its metadata, ready for upsert.
type VectorInput struct {
	Embedding []float32
	Metadata  map[string]any
}

// VectorMatch is a ranked similarity-search hit.
type VectorMatch struct {
	ID       string
	Score    float32
	Metadata map[string]any
}

// VectorStore is a namespaced nearest-neighbor index. The namespace is the
// vault id, which gives per-vault isolation without separate indices.
type VectorStore interface {
	// Upsert stores the inputs and returns one freshly generated id per
	// input, in order. Ids are never supplied by the caller.
	Upsert(ctx context.Context, namespace string, inputs []VectorInput) ([]string, error)

	// Query returns the topK most similar records, highest similarity first.
	// A non-nil filter restricts matches by metadata containment.
	Query(ctx context.Context, namespace string, embedding []float32, topK int, filter map[string]any) ([]VectorMatch, error)

	// DeleteByIDs removes the given ids; a nonexistent id is not an error.
	DeleteByIDs(ctx context.Context, namespace string, ids []string) error

	DeleteByFilter(ctx context.Context, namespace string, filter map[string]any) error
}
