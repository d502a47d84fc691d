package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/econlens/econlens/internal/apperr"
	"github.com/econlens/econlens/internal/config"
	"github.com/econlens/econlens/internal/core"
	"github.com/econlens/econlens/internal/models"
)

// DatabaseClient is the single arbiter of "does this vault/document/chunk
// exist". It implements both core.DocumentStore and core.MessageStore.
type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (*DatabaseClient, error) {
	if cfg == nil {
		return nil, errors.New("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindPersistence, "open db")
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, apperr.Wrap(err, apperr.KindPersistence, "ping db")
	}

	if err := EnsureBootstrapped(pingCtx, db, cfg.EmbedDim); err != nil {
		_ = db.Close()
		return nil, apperr.Wrap(err, apperr.KindPersistence, "bootstrap")
	}

	return &DatabaseClient{db: db}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// DB exposes the underlying pool so the vector store can share it.
func (c *DatabaseClient) DB() *sql.DB { return c.db }

// Vaults

func (c *DatabaseClient) CreateVault(ctx context.Context, vault *models.Vault) error {
	if vault == nil {
		return errors.New("nil vault")
	}
	const q = `
		INSERT INTO vaults (id, user_id, title, is_public, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
	`
	_, err := c.db.ExecContext(ctx, q,
		vault.ID, vault.UserID, vault.Title, vault.IsPublic, vault.CreatedAt)
	return apperr.Wrap(err, apperr.KindPersistence, "create vault")
}

func (c *DatabaseClient) GetVaultByID(ctx context.Context, id string) (*models.Vault, error) {
	const q = `
		SELECT id, user_id, title, is_public, created_at
		FROM vaults WHERE id = $1
	`
	var v models.Vault
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&v.ID, &v.UserID, &v.Title, &v.IsPublic, &v.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindPersistence, "get vault")
	}
	return &v, nil
}

func (c *DatabaseClient) ListVaultsByUser(ctx context.Context, userID string) ([]models.Vault, error) {
	const q = `
		SELECT id, user_id, title, is_public, created_at
		FROM vaults
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := c.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindPersistence, "list vaults")
	}
	defer rows.Close()

	var out []models.Vault
	for rows.Next() {
		var v models.Vault
		if err := rows.Scan(&v.ID, &v.UserID, &v.Title, &v.IsPublic, &v.CreatedAt); err != nil {
			return nil, apperr.Wrap(err, apperr.KindPersistence, "scan vault")
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) DeleteVault(ctx context.Context, id string) error {
	const q = `DELETE FROM vaults WHERE id = $1`
	_, err := c.db.ExecContext(ctx, q, id)
	return apperr.Wrap(err, apperr.KindPersistence, "delete vault")
}

// Documents

func (c *DatabaseClient) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return errors.New("nil document")
	}
	const q = `
		INSERT INTO documents (id, vault_id, name, doc_type, metadata, doc_size, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, now()))
	`
	_, err := c.db.ExecContext(ctx, q,
		doc.ID, doc.VaultID, doc.Name, doc.DocType, doc.Metadata, doc.DocSize, doc.CreatedAt)
	return apperr.Wrap(err, apperr.KindPersistence, "create document")
}

func (c *DatabaseClient) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	const q = `
		SELECT id, vault_id, name, doc_type, metadata, doc_size, created_at
		FROM documents
		WHERE id = $1
	`
	var d models.Document
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&d.ID, &d.VaultID, &d.Name, &d.DocType, &d.Metadata, &d.DocSize, &d.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindPersistence, "get document")
	}
	return &d, nil
}

func (c *DatabaseClient) ListDocumentsByVault(ctx context.Context, vaultID string) ([]models.Document, error) {
	const q = `
		SELECT id, vault_id, name, doc_type, metadata, doc_size, created_at
		FROM documents
		WHERE vault_id = $1
		ORDER BY created_at DESC
	`
	rows, err := c.db.QueryContext(ctx, q, vaultID)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindPersistence, "list documents")
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.ID, &d.VaultID, &d.Name, &d.DocType, &d.Metadata, &d.DocSize, &d.CreatedAt); err != nil {
			return nil, apperr.Wrap(err, apperr.KindPersistence, "scan document")
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) DeleteDocument(ctx context.Context, id string) error {
	const q = `DELETE FROM documents WHERE id = $1`
	_, err := c.db.ExecContext(ctx, q, id)
	return apperr.Wrap(err, apperr.KindPersistence, "delete document")
}

// Document chunks

// InsertDocumentChunks inserts chunk records in a single transaction. Chunk
// ids are supplied by the caller; they equal the vector ids returned by the
// vector store upsert.
func (c *DatabaseClient) InsertDocumentChunks(ctx context.Context, chunks []models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return apperr.Wrap(err, apperr.KindPersistence, "begin chunk tx")
	}

	const q = `
		INSERT INTO document_chunks (id, document_id, user_id, chunk_index, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return apperr.Wrap(err, apperr.KindPersistence, "prepare chunk insert")
	}
	defer stmt.Close()

	for i := range chunks {
		ch := &chunks[i]
		if _, err := stmt.ExecContext(ctx, ch.ID, ch.DocumentID, ch.UserID, ch.ChunkIndex, ch.CreatedAt); err != nil {
			_ = tx.Rollback()
			return apperr.Wrap(err, apperr.KindPersistence, "insert chunk")
		}
	}
	return apperr.Wrap(tx.Commit(), apperr.KindPersistence, "commit chunks")
}

func (c *DatabaseClient) GetChunksByDocument(ctx context.Context, documentID string) ([]models.DocumentChunk, error) {
	const q = `
		SELECT id, document_id, user_id, chunk_index, created_at
		FROM document_chunks
		WHERE document_id = $1
		ORDER BY chunk_index ASC
	`
	rows, err := c.db.QueryContext(ctx, q, documentID)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindPersistence, "list chunks")
	}
	defer rows.Close()

	var out []models.DocumentChunk
	for rows.Next() {
		var ch models.DocumentChunk
		if err := rows.Scan(&ch.ID, &ch.DocumentID, &ch.UserID, &ch.ChunkIndex, &ch.CreatedAt); err != nil {
			return nil, apperr.Wrap(err, apperr.KindPersistence, "scan chunk")
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) DeleteChunksByDocument(ctx context.Context, documentID string) (int, error) {
	const q = `DELETE FROM document_chunks WHERE document_id = $1`
	res, err := c.db.ExecContext(ctx, q, documentID)
	if err != nil {
		return 0, apperr.Wrap(err, apperr.KindPersistence, "delete chunks")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Conversation messages

func (c *DatabaseClient) AppendMessage(ctx context.Context, conversationID, role, content, metadata string) (*models.ChatMessage, error) {
	msg := &models.ChatMessage{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Metadata:       metadata,
		CreatedAt:      time.Now().UTC(),
	}
	const q = `
		INSERT INTO chat_messages (id, conversation_id, role, content, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := c.db.ExecContext(ctx, q,
		msg.ID, msg.ConversationID, msg.Role, msg.Content, msg.Metadata, msg.CreatedAt)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindPersistence, "append message")
	}
	return msg, nil
}

func (c *DatabaseClient) ListRecentMessages(ctx context.Context, conversationID string, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
		SELECT id, conversation_id, role, content, metadata, upvoted, created_at
		FROM chat_messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := c.db.QueryContext(ctx, q, conversationID, limit)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindPersistence, "list messages")
	}
	defer rows.Close()

	var out []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.Metadata, &m.Upvoted, &m.CreatedAt); err != nil {
			return nil, apperr.Wrap(err, apperr.KindPersistence, "scan message")
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpdateMessage patches the mutable feedback fields. Returns nil, nil when
// no message has the given id.
func (c *DatabaseClient) UpdateMessage(ctx context.Context, messageID string, fields core.MessageUpdate) (*models.ChatMessage, error) {
	const q = `
		UPDATE chat_messages
		SET content  = COALESCE($2, content),
		    metadata = COALESCE($3, metadata),
		    upvoted  = COALESCE($4, upvoted)
		WHERE id = $1
		RETURNING id, conversation_id, role, content, metadata, upvoted, created_at
	`
	var m models.ChatMessage
	err := c.db.QueryRowContext(ctx, q, messageID, fields.Content, fields.Metadata, fields.Upvoted).Scan(
		&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.Metadata, &m.Upvoted, &m.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindPersistence, "update message")
	}
	return &m, nil
}

func (c *DatabaseClient) DeleteMessagesByConversation(ctx context.Context, conversationID string) error {
	const q = `DELETE FROM chat_messages WHERE conversation_id = $1`
	_, err := c.db.ExecContext(ctx, q, conversationID)
	return apperr.Wrap(err, apperr.KindPersistence, "delete conversation messages")
}

var (
	_ core.DocumentStore = (*DatabaseClient)(nil)
	_ core.MessageStore  = (*DatabaseClient)(nil)
)
