package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/econlens/econlens/internal/apperr"
)

func TestNormalizeWhitespace(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"collapses runs", "GDP   grew\t\tby  2%", "GDP grew by 2%"},
		{"trims edges", "  inflation report \n", "inflation report"},
		{"newlines become spaces", "line one\nline two\r\nline three", "line one line two line three"},
		{"empty stays empty", "   \t\n ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeWhitespace(tt.in))
		})
	}
}

func TestExtract_PlainText(t *testing.T) {
	e := NewDocconvExtractor()

	text, err := e.Extract(context.Background(), []byte("quarterly  report\n\n2024"), "txt")
	require.NoError(t, err)
	assert.Equal(t, "quarterly report 2024", text)
}

func TestExtract_CSVPassesThrough(t *testing.T) {
	e := NewDocconvExtractor()

	text, err := e.Extract(context.Background(), []byte("year,gdp\n2023,2.1"), "csv")
	require.NoError(t, err)
	assert.Equal(t, "year,gdp 2023,2.1", text)
}

func TestExtract_EmptyInputIsNoData(t *testing.T) {
	e := NewDocconvExtractor()

	_, err := e.Extract(context.Background(), nil, "txt")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNoData, apperr.KindOf(err))
}

func TestExtract_WhitespaceOnlyIsNoData(t *testing.T) {
	e := NewDocconvExtractor()

	_, err := e.Extract(context.Background(), []byte("  \n\t "), "txt")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNoData, apperr.KindOf(err))
}

func TestExtractURL_FetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := NewDocconvExtractor()
	_, err := e.ExtractURL(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, apperr.KindFetch, apperr.KindOf(err))
}

func TestExtractURL_EmptyURLIsValidation(t *testing.T) {
	e := NewDocconvExtractor()
	_, err := e.ExtractURL(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}
