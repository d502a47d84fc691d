package extract

import (
	"bytes"
	"context"
	"strings"
	"time"

	"code.sajari.com/docconv"
	"github.com/go-resty/resty/v2"

	"github.com/econlens/econlens/internal/apperr"
	"github.com/econlens/econlens/internal/core"
)

var _ core.TextExtractor = (*DocconvExtractor)(nil)

// DocconvExtractor extracts plain text with docconv, falling back to a raw
// read for already-textual types.
type DocconvExtractor struct {
	httpClient *resty.Client
}

func NewDocconvExtractor() *DocconvExtractor {
	return &DocconvExtractor{
		httpClient: resty.New().
			SetHeader("User-Agent", "EconLens/1.0").
			SetTimeout(10 * time.Second),
	}
}

// mimeForType maps a declared document type to the MIME hint docconv needs.
func mimeForType(docType string) string {
	switch strings.ToLower(docType) {
	case "pdf":
		return "application/pdf"
	case "docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case "xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "url":
		return "text/html"
	default:
		return "text/plain"
	}
}

// Extract converts the raw bytes of an uploaded file into normalized text.
func (e *DocconvExtractor) Extract(ctx context.Context, data []byte, docType string) (string, error) {
	if len(data) == 0 {
		return "", apperr.New(apperr.KindNoData, "no content to extract")
	}

	var text string
	switch strings.ToLower(docType) {
	case "txt", "csv":
		text = string(data)
	default:
		res, err := docconv.Convert(bytes.NewReader(data), mimeForType(docType), false)
		if err != nil {
			return "", apperr.Wrap(err, apperr.KindExtraction, "content could not be parsed")
		}
		text = res.Body
	}

	if err := ctx.Err(); err != nil {
		return "", apperr.Wrap(err, apperr.KindExtraction, "extraction cancelled")
	}

	text = NormalizeWhitespace(text)
	if text == "" {
		return "", apperr.New(apperr.KindNoData, "extraction yielded empty text")
	}
	return text, nil
}

// ExtractURL fetches the url and converts the returned HTML into text.
func (e *DocconvExtractor) ExtractURL(ctx context.Context, url string) (string, error) {
	if url == "" {
		return "", apperr.New(apperr.KindValidation, "url is required")
	}

	resp, err := e.httpClient.R().SetContext(ctx).Get(url)
	if err != nil {
		return "", apperr.Wrap(err, apperr.KindFetch, "url unreachable")
	}
	if resp.IsError() {
		return "", apperr.Newf(apperr.KindFetch, "url fetch returned status %d", resp.StatusCode())
	}

	return e.Extract(ctx, resp.Body(), "url")
}

// NormalizeWhitespace collapses runs of whitespace to single spaces and trims.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
