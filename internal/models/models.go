package models

import (
	"time"
)

// Vault is a named collection of documents with its own chat history,
// isolated per user. The vault id doubles as the vector-store namespace.
type Vault struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Title     string    `db:"title" json:"title"`
	IsPublic  bool      `db:"is_public" json:"is_public"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Document is created only as the terminal step of a successful ingestion
// and is immutable afterwards except for deletion.
type Document struct {
	ID        string    `db:"id" json:"id"`
	VaultID   string    `db:"vault_id" json:"vault_id"`
	Name      string    `db:"name" json:"name"`
	DocType   string    `db:"doc_type" json:"doc_type"` // pdf | docx | xlsx | txt | csv | url
	Metadata  string    `db:"metadata" json:"metadata"` // JSON: generated name, type, summary
	DocSize   string    `db:"doc_size" json:"doc_size"` // character count of extracted text, stored as text
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// DocumentChunk records one embedded slice of a document. Its ID equals the
// vector id returned by the vector store for that chunk, so a chunk lookup
// resolves directly to a vector with no join table.
type DocumentChunk struct {
	ID         string    `db:"id" json:"id"`
	DocumentID string    `db:"document_id" json:"document_id"`
	UserID     string    `db:"user_id" json:"user_id"`
	ChunkIndex int       `db:"chunk_index" json:"chunk_index"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// ChatMessage is the durable record of a single user or assistant message in
// a workspace or vault conversation. Created once; only the feedback fields
// are ever updated.
type ChatMessage struct {
	ID             string    `db:"id" json:"id"`
	ConversationID string    `db:"conversation_id" json:"conversation_id"`
	Role           string    `db:"role" json:"role"` // "user" or "assistant"
	Content        string    `db:"content" json:"content"`
	Metadata       string    `db:"metadata" json:"metadata,omitempty"` // tool results, grounding citations
	Upvoted        *bool     `db:"upvoted" json:"upvoted,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// CachedMessage is the short-term-context view of a message: role, content
// and timestamp only, no id. Losing it never loses data.
type CachedMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// DocumentMeta is the generated metadata stored on a Document.
type DocumentMeta struct {
	DocumentName    string `json:"document_name"`
	DocumentType    string `json:"document_type"`
	DocumentSummary string `json:"document_summary"`
}
