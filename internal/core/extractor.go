package core

import "context"

// TextExtractor pulls normalized plain text out of an uploaded file or a URL.
// Whitespace runs are collapsed to single spaces and the result is trimmed.
// Empty text after extraction is a caller-visible NO_DATA failure, never a
// silent success.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, docType string) (string, error)
	ExtractURL(ctx context.Context, url string) (string, error)
}
