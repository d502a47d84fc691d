package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/econlens/econlens/internal/models"
)

func TestAppendBounded_FIFOEviction(t *testing.T) {
	var window []models.CachedMessage
	for i := 0; i < 51; i++ {
		window = AppendBounded(window, models.CachedMessage{
			Role:    "user",
			Content: fmt.Sprintf("message %d", i),
		}, MaxEntries)
	}

	require.Len(t, window, 50)
	// The originally-pushed oldest entry is gone.
	assert.Equal(t, "message 1", window[0].Content)
	assert.Equal(t, "message 50", window[49].Content)
}

func TestAppendBounded_UnderCapKeepsAll(t *testing.T) {
	var window []models.CachedMessage
	for i := 0; i < 10; i++ {
		window = AppendBounded(window, models.CachedMessage{Content: fmt.Sprintf("m%d", i)}, MaxEntries)
	}
	require.Len(t, window, 10)
	assert.Equal(t, "m0", window[0].Content)
}

func TestWindowRoundTrip(t *testing.T) {
	ts := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	window := []models.CachedMessage{
		{Role: "user", Content: "What is GDP?", Timestamp: ts},
		{Role: "assistant", Content: "Gross domestic product is...", Timestamp: ts.Add(time.Second)},
	}

	raw, err := EncodeWindow(window)
	require.NoError(t, err)

	decoded, err := DecodeWindow(raw)
	require.NoError(t, err)
	assert.Equal(t, window, decoded)
}

func TestEncodeWindow_ShapeIsBareArray(t *testing.T) {
	raw, err := EncodeWindow([]models.CachedMessage{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, byte('['), raw[0])
	assert.Contains(t, string(raw), `"role":"user"`)
	assert.Contains(t, string(raw), `"content":"hi"`)
	assert.NotContains(t, string(raw), `"id"`)
}

func TestDecodeWindow_CorruptData(t *testing.T) {
	_, err := DecodeWindow([]byte("{not json"))
	assert.Error(t, err)
}

func TestContextKey(t *testing.T) {
	assert.Equal(t, "chat:context:ws-42", contextKey("ws-42"))
}
