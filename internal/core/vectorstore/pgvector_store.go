package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/econlens/econlens/internal/apperr"
	"github.com/econlens/econlens/internal/core"
)

// PgVectorStore implements the namespaced nearest-neighbor index on a
// pgvector table. The namespace column keeps vaults isolated inside a single
// index; all queries are namespace-scoped by construction.
type PgVectorStore struct {
	db *sql.DB
}

func NewPgVectorStore(db *sql.DB) *PgVectorStore {
	return &PgVectorStore{db: db}
}

// Upsert inserts all inputs in one transaction and returns one freshly
// generated vector id per input, in order.
func (s *PgVectorStore) Upsert(ctx context.Context, namespace string, inputs []core.VectorInput) ([]string, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindVectorStore, "begin upsert tx")
	}

	const q = `
		INSERT INTO vault_vectors (id, namespace, embedding, metadata, created_at)
		VALUES ($1, $2, $3, $4, now())
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return nil, apperr.Wrap(err, apperr.KindVectorStore, "prepare upsert")
	}
	defer stmt.Close()

	ids := make([]string, 0, len(inputs))
	for i := range inputs {
		id := uuid.NewString()
		meta, err := json.Marshal(inputs[i].Metadata)
		if err != nil {
			_ = tx.Rollback()
			return nil, apperr.Wrap(err, apperr.KindVectorStore, "encode metadata")
		}
		vec := pgvector.NewVector(inputs[i].Embedding)
		if _, err := stmt.ExecContext(ctx, id, namespace, vec, meta); err != nil {
			_ = tx.Rollback()
			return nil, apperr.Wrap(err, apperr.KindVectorStore, "upsert vector")
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, apperr.Wrap(err, apperr.KindVectorStore, "commit upsert")
	}
	return ids, nil
}

// Query returns the topK nearest vectors by cosine distance, highest
// similarity first. filter, when non-nil, is applied as jsonb containment.
func (s *PgVectorStore) Query(ctx context.Context, namespace string, embedding []float32, topK int, filter map[string]any) ([]core.VectorMatch, error) {
	if topK <= 0 {
		topK = 5
	}
	vec := pgvector.NewVector(embedding)

	var (
		rows *sql.Rows
		err  error
	)
	if len(filter) > 0 {
		filterJSON, merr := json.Marshal(filter)
		if merr != nil {
			return nil, apperr.Wrap(merr, apperr.KindVectorStore, "encode filter")
		}
		const q = `
			SELECT id, 1 - (embedding <=> $2) AS score, metadata
			FROM vault_vectors
			WHERE namespace = $1 AND metadata @> $3
			ORDER BY embedding <=> $2
			LIMIT $4
		`
		rows, err = s.db.QueryContext(ctx, q, namespace, vec, filterJSON, topK)
	} else {
		const q = `
			SELECT id, 1 - (embedding <=> $2) AS score, metadata
			FROM vault_vectors
			WHERE namespace = $1
			ORDER BY embedding <=> $2
			LIMIT $3
		`
		rows, err = s.db.QueryContext(ctx, q, namespace, vec, topK)
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindVectorStore, "similarity query")
	}
	defer rows.Close()

	var out []core.VectorMatch
	for rows.Next() {
		var (
			m    core.VectorMatch
			meta []byte
		)
		if err := rows.Scan(&m.ID, &m.Score, &meta); err != nil {
			return nil, apperr.Wrap(err, apperr.KindVectorStore, "scan match")
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &m.Metadata); err != nil {
				return nil, apperr.Wrap(err, apperr.KindVectorStore, "decode metadata")
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteByIDs removes the given ids from the namespace. Ids that do not
// exist are ignored.
func (s *PgVectorStore) DeleteByIDs(ctx context.Context, namespace string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	const q = `DELETE FROM vault_vectors WHERE namespace = $1 AND id = ANY($2)`
	_, err := s.db.ExecContext(ctx, q, namespace, ids)
	return apperr.Wrap(err, apperr.KindVectorStore, "delete by ids")
}

// DeleteByFilter removes every vector in the namespace whose metadata
// contains the filter.
func (s *PgVectorStore) DeleteByFilter(ctx context.Context, namespace string, filter map[string]any) error {
	filterJSON, err := json.Marshal(filter)
	if err != nil {
		return apperr.Wrap(err, apperr.KindVectorStore, "encode filter")
	}
	const q = `DELETE FROM vault_vectors WHERE namespace = $1 AND metadata @> $2`
	_, err = s.db.ExecContext(ctx, q, namespace, filterJSON)
	return apperr.Wrap(err, apperr.KindVectorStore, "delete by filter")
}

var _ core.VectorStore = (*PgVectorStore)(nil)
