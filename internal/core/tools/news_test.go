package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	name     string
	articles []Article
	err      error
}

func (f *fakeSource) Name() string { return f.name }
func (f *fakeSource) Fetch(_ context.Context, _, _, _ string) ([]Article, error) {
	return f.articles, f.err
}

func TestNewsTool_MergesSources(t *testing.T) {
	tool := NewNewsTool(
		&fakeSource{name: "alpha", articles: []Article{
			{Title: "Fed holds rates", Source: "alpha", PublishedAt: "2025-08-30"},
		}},
		&fakeSource{name: "beta", articles: []Article{
			{Title: "ECB cuts rates", Source: "beta", PublishedAt: "2025-08-31"},
		}},
	)

	result := tool.Execute(context.Background(), map[string]any{})
	require.Equal(t, true, result["success"])
	articles, ok := result["articles"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, articles, 2)
	// Most recent first.
	assert.Equal(t, "ECB cuts rates", articles[0]["title"])
}

func TestNewsTool_PartialFailureDegrades(t *testing.T) {
	tool := NewNewsTool(
		&fakeSource{name: "alpha", err: errors.New("boom")},
		&fakeSource{name: "beta", articles: []Article{{Title: "Inflation eases", Source: "beta"}}},
	)

	result := tool.Execute(context.Background(), map[string]any{})
	require.Equal(t, true, result["success"])
	articles := result["articles"].([]map[string]any)
	assert.Len(t, articles, 1)
}

func TestNewsTool_AllSourcesFail(t *testing.T) {
	tool := NewNewsTool(
		&fakeSource{name: "alpha", err: errors.New("boom")},
		&fakeSource{name: "beta", err: errors.New("boom")},
	)

	result := tool.Execute(context.Background(), map[string]any{})
	assert.Equal(t, "FETCH_ERROR", errType(t, result))
}

func TestNewsTool_NoArticles(t *testing.T) {
	tool := NewNewsTool(&fakeSource{name: "alpha"})
	result := tool.Execute(context.Background(), map[string]any{"entity": "XYZ"})
	assert.Equal(t, "NO_DATA", errType(t, result))
}

func TestNewsTool_NoSourcesConfigured(t *testing.T) {
	tool := NewNewsTool()
	result := tool.Execute(context.Background(), map[string]any{})
	assert.Equal(t, "CONFIG_ERROR", errType(t, result))
}
