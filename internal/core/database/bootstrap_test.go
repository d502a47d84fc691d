package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderBootstrapSQLUsesConfiguredDimension(t *testing.T) {
	ddl, err := renderBootstrapSQL(1536)
	require.NoError(t, err)
	assert.Contains(t, ddl, "VECTOR(1536)")
	assert.NotContains(t, ddl, embedDimPlaceholder)
}

func TestRenderBootstrapSQLDefaultsDimension(t *testing.T) {
	for _, dim := range []int{0, -5} {
		ddl, err := renderBootstrapSQL(dim)
		require.NoError(t, err)
		assert.Contains(t, ddl, "VECTOR(768)")
	}
}

func TestRenderBootstrapSQLCoversSchema(t *testing.T) {
	ddl, err := renderBootstrapSQL(DefaultEmbedDim)
	require.NoError(t, err)
	for _, table := range []string{"vaults", "documents", "document_chunks", "chat_messages", "vault_vectors", "econlens_meta"} {
		assert.True(t, strings.Contains(ddl, "CREATE TABLE IF NOT EXISTS "+table), table)
	}
}
