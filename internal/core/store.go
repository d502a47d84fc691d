package core

import (
	"context"

	"github.com/econlens/econlens/internal/models"
)

// DocumentStore defines the relational persistence operations for vaults,
// documents and chunk records. It abstracts Postgres so higher layers never
// depend on a specific driver.
type DocumentStore interface {
	CreateVault(ctx context.Context, vault *models.Vault) error
	GetVaultByID(ctx context.Context, id string) (*models.Vault, error)
	ListVaultsByUser(ctx context.Context, userID string) ([]models.Vault, error)
	DeleteVault(ctx context.Context, id string) error

	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocumentByID(ctx context.Context, id string) (*models.Document, error)
	ListDocumentsByVault(ctx context.Context, vaultID string) ([]models.Document, error)
	DeleteDocument(ctx context.Context, id string) error

	InsertDocumentChunks(ctx context.Context, chunks []models.DocumentChunk) error
	GetChunksByDocument(ctx context.Context, documentID string) ([]models.DocumentChunk, error)
	DeleteChunksByDocument(ctx context.Context, documentID string) (int, error)
}

// MessageUpdate names the mutable fields of a stored chat message.
type MessageUpdate struct {
	Content  *string
	Metadata *string
	Upvoted  *bool
}

// MessageStore is the durable conversation record, independent of the
// short-term cache's TTL and eviction. It is the source of truth for history.
type MessageStore interface {
	AppendMessage(ctx context.Context, conversationID, role, content, metadata string) (*models.ChatMessage, error)
	ListRecentMessages(ctx context.Context, conversationID string, limit int) ([]models.ChatMessage, error)
	// UpdateMessage returns nil, nil when no message has the given id.
	UpdateMessage(ctx context.Context, messageID string, fields MessageUpdate) (*models.ChatMessage, error)
	DeleteMessagesByConversation(ctx context.Context, conversationID string) error
}

// ContextCache is the bounded, TTL-expiring recent-message buffer per
// conversation. Total loss on eviction must never break correctness.
type ContextCache interface {
	Get(ctx context.Context, conversationID string) ([]models.CachedMessage, error)
	Push(ctx context.Context, conversationID string, msg models.CachedMessage) error
	Reset(ctx context.Context, conversationID string) error
}
