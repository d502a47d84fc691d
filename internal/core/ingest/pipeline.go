package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/econlens/econlens/internal/apperr"
	"github.com/econlens/econlens/internal/core"
	"github.com/econlens/econlens/internal/core/chunk"
	"github.com/econlens/econlens/internal/models"
)

// Request carries one ingestion submission. Exactly one of FileData, URL or
// RawText must be set.
type Request struct {
	VaultID  string
	UserID   string
	FileName string
	DocType  string // pdf | docx | xlsx | txt | csv | url
	FileData []byte
	URL      string
	RawText  string
}

// Result is returned to the caller after a successful ingestion.
type Result struct {
	DocumentID      string `json:"documentId"`
	DocumentName    string `json:"documentName"`
	ChunkCount      int    `json:"chunkCount"`
	DocumentSummary string `json:"documentSummary"`
}

// Pipeline orchestrates extraction, metadata generation, chunking, embedding,
// vector upsert and durable record creation for one document at a time. All
// steps are strictly sequential within a request; concurrent ingestions into
// the same vault are safe because chunk ids derive from freshly generated
// vector ids.
type Pipeline struct {
	store     core.DocumentStore
	vectors   core.VectorStore
	embedder  core.EmbeddingProvider
	extractor core.TextExtractor
	metadata  core.MetadataGenerator
	chunker   *chunk.Chunker

	// objects archives original uploads; optional.
	objects core.ObjectClient
	bucket  string
}

func NewPipeline(
	store core.DocumentStore,
	vectors core.VectorStore,
	embedder core.EmbeddingProvider,
	extractor core.TextExtractor,
	metadata core.MetadataGenerator,
	chunker *chunk.Chunker,
) *Pipeline {
	return &Pipeline{
		store:     store,
		vectors:   vectors,
		embedder:  embedder,
		extractor: extractor,
		metadata:  metadata,
		chunker:   chunker,
	}
}

// WithArchive enables best-effort archival of original uploads to object
// storage. Archive failures are logged, never fatal.
func (p *Pipeline) WithArchive(objects core.ObjectClient, bucket string) *Pipeline {
	p.objects = objects
	p.bucket = bucket
	return p
}

// Ingest runs the full pipeline. Nothing is persisted before the Document
// record; a chunk-record failure after the vector upsert leaves orphaned
// vectors (accepted window, the caller may re-submit).
func (p *Pipeline) Ingest(ctx context.Context, req Request) (*Result, error) {
	if req.VaultID == "" {
		return nil, apperr.New(apperr.KindValidation, "vault id is required")
	}
	if err := validateSource(req); err != nil {
		return nil, err
	}

	text, err := p.extract(ctx, req)
	if err != nil {
		return nil, err
	}

	docID := uuid.NewString()

	// Metadata generation and the archive upload do not depend on each
	// other; run them together.
	var meta models.DocumentMeta
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var merr error
		meta, merr = p.metadata.Summarize(gctx, text, req.DocType)
		return merr
	})
	if p.objects != nil && len(req.FileData) > 0 {
		g.Go(func() error {
			key := fmt.Sprintf("%s/%s/%s", req.UserID, docID, req.FileName)
			if _, aerr := p.objects.UploadFile(gctx, p.bucket, key, req.FileData, ""); aerr != nil {
				log.Warn().Str("document", docID).Err(aerr).Msg("original upload archive failed")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindUnknown, "encode document metadata")
	}

	doc := &models.Document{
		ID:        docID,
		VaultID:   req.VaultID,
		Name:      meta.DocumentName,
		DocType:   req.DocType,
		Metadata:  string(metaJSON),
		DocSize:   strconv.Itoa(len(text)),
		CreatedAt: time.Now().UTC(),
	}
	// First durable write; nothing to roll back if it fails.
	if err := p.store.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}

	chunks := p.chunker.Split(text)
	embeddings, err := p.embedder.EmbedTexts(ctx, chunks)
	if err != nil {
		return nil, err
	}
	if len(embeddings) != len(chunks) {
		return nil, apperr.Newf(apperr.KindEmbedding, "embed size mismatch: got %d want %d", len(embeddings), len(chunks))
	}

	now := time.Now().UTC()
	inputs := make([]core.VectorInput, len(chunks))
	for i := range chunks {
		inputs[i] = core.VectorInput{
			Embedding: embeddings[i],
			Metadata: map[string]any{
				"vault_id":         req.VaultID,
				"document_id":      docID,
				"file_name":        req.FileName,
				"document_type":    req.DocType,
				"chunk_index":      i,
				"chunk_text":       chunks[i],
				"document_summary": meta.DocumentSummary,
				"created_at":       now.Format(time.RFC3339),
				"user_id":          req.UserID,
			},
		}
	}

	vectorIDs, err := p.vectors.Upsert(ctx, req.VaultID, inputs)
	if err != nil {
		return nil, err
	}
	if len(vectorIDs) != len(chunks) {
		return nil, apperr.Newf(apperr.KindVectorStore, "upsert id mismatch: got %d want %d", len(vectorIDs), len(chunks))
	}

	// Chunk record ids are the vector ids, index-aligned. A failure here
	// leaves the just-upserted vectors orphaned; see package docs.
	cg, cctx := errgroup.WithContext(ctx)
	cg.SetLimit(8)
	for i, id := range vectorIDs {
		row := models.DocumentChunk{
			ID:         id,
			DocumentID: docID,
			UserID:     req.UserID,
			ChunkIndex: i,
			CreatedAt:  now,
		}
		cg.Go(func() error {
			return p.store.InsertDocumentChunks(cctx, []models.DocumentChunk{row})
		})
	}
	if err := cg.Wait(); err != nil {
		log.Error().Str("document", docID).Int("vectors", len(vectorIDs)).Err(err).
			Msg("chunk records failed after vector upsert; vectors orphaned until re-ingest")
		return nil, err
	}

	return &Result{
		DocumentID:      docID,
		DocumentName:    meta.DocumentName,
		ChunkCount:      len(chunks),
		DocumentSummary: meta.DocumentSummary,
	}, nil
}

func validateSource(req Request) error {
	sources := 0
	if len(req.FileData) > 0 {
		sources++
	}
	if req.URL != "" {
		sources++
	}
	if req.RawText != "" {
		sources++
	}
	switch sources {
	case 0:
		return apperr.New(apperr.KindValidation, "one of file, url or text is required")
	case 1:
		return nil
	default:
		return apperr.New(apperr.KindValidation, "only one of file, url or text may be supplied")
	}
}

func (p *Pipeline) extract(ctx context.Context, req Request) (string, error) {
	switch {
	case req.URL != "":
		return p.extractor.ExtractURL(ctx, req.URL)
	case len(req.FileData) > 0:
		return p.extractor.Extract(ctx, req.FileData, req.DocType)
	default:
		return p.extractor.Extract(ctx, []byte(req.RawText), "txt")
	}
}
