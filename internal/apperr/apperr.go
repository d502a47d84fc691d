package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind categorizes a failure so handlers and tool callbacks can map it to a
// status code or a structured envelope without inspecting error strings.
type Kind string

const (
	KindValidation  Kind = "VALIDATION_ERROR"
	KindAuth        Kind = "AUTH_ERROR"
	KindNotFound    Kind = "NOT_FOUND"
	KindNoData      Kind = "NO_DATA"
	KindFetch       Kind = "FETCH_ERROR"
	KindExtraction  Kind = "EXTRACTION_ERROR"
	KindRateLimit   Kind = "RATE_LIMIT"
	KindConfig      Kind = "CONFIG_ERROR"
	KindEmbedding   Kind = "EMBEDDING_ERROR"
	KindVectorStore Kind = "VECTOR_STORE_ERROR"
	KindMetadata    Kind = "METADATA_ERROR"
	KindPersistence Kind = "PERSISTENCE_ERROR"
	KindUnknown     Kind = "UNKNOWN_ERROR"
)

// Error carries a kind, a user-presentable message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error. Returns nil when
// err is nil so call sites can wrap unconditionally.
func Wrap(err error, kind Kind, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf reports the Kind of err, or KindUnknown when err carries none.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps a kind to the status code the HTTP boundary responds with.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation, KindNoData:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindFetch, KindExtraction:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
