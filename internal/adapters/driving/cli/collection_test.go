package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

func TestStatusCmd(t *testing.T) {
	svc := newMockServices()
	svc.collection.status.Chunks = 12
	svc.collection.status.Sources = 2
	svc.collection.sources = []string{"docs/a.pdf", "docs/b.pdf"}
	withServices(t, svc)

	out, _, err := execute(t, "", "stats")

	require.NoError(t, err)
	assert.Contains(t, out, "COLLECTION pdf_documents (memory)")
	assert.Contains(t, out, "Chunks:  12")
	assert.Contains(t, out, "a.pdf (docs/a.pdf)")
}

func TestStatusCmd_JSON(t *testing.T) {
	svc := newMockServices()
	svc.collection.status.Chunks = 3
	withServices(t, svc)

	out, _, err := execute(t, "", "status", "--json")
	require.NoError(t, err)

	var got domain.CollectionStatus
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 3, got.Chunks)
	assert.Equal(t, "pdf_documents", got.Collection)
}

func TestListCmd(t *testing.T) {
	svc := newMockServices()
	svc.collection.sources = []string{"docs/a.pdf"}
	withServices(t, svc)

	out, _, err := execute(t, "", "list")

	require.NoError(t, err)
	assert.Equal(t, "docs/a.pdf\n", out)
}

func TestListCmd_Empty(t *testing.T) {
	withServices(t, newMockServices())

	out, _, err := execute(t, "", "sources")

	require.NoError(t, err)
	assert.Contains(t, out, "No documents indexed.")
}

func TestListCmd_JSON(t *testing.T) {
	svc := newMockServices()
	svc.collection.sources = []string{"docs/a.pdf", "docs/b.pdf"}
	withServices(t, svc)

	out, _, err := execute(t, "", "list", "--json")
	require.NoError(t, err)

	var got []string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, []string{"docs/a.pdf", "docs/b.pdf"}, got)
}

func TestRemoveCmd_Confirmed(t *testing.T) {
	svc := newMockServices()
	withServices(t, svc)

	out, _, err := execute(t, "yes\n", "remove", "a.pdf")

	require.NoError(t, err)
	assert.Equal(t, []string{"a.pdf"}, svc.collection.removed)
	assert.Contains(t, out, "Type 'yes' to confirm")
	assert.Contains(t, out, "Removed docs/a.pdf.")
}

func TestRemoveCmd_Cancelled(t *testing.T) {
	tests := []struct {
		name  string
		stdin string
	}{
		{"no", "no\n"},
		{"y is not yes", "y\n"},
		{"no input", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newMockServices()
			withServices(t, svc)

			out, _, err := execute(t, tt.stdin, "remove", "a.pdf")

			require.NoError(t, err)
			assert.Empty(t, svc.collection.removed)
			assert.Contains(t, out, "Cancelled.")
		})
	}
}

func TestRemoveCmd_Yes(t *testing.T) {
	svc := newMockServices()
	withServices(t, svc)

	out, _, err := execute(t, "", "delete", "--yes", "a.pdf")

	require.NoError(t, err)
	assert.Equal(t, []string{"a.pdf"}, svc.collection.removed)
	assert.NotContains(t, out, "confirm")
}

func TestRemoveCmd_NotFound(t *testing.T) {
	svc := newMockServices()
	svc.collection.err = domain.NewNotFoundError("document", "missing.pdf")
	withServices(t, svc)

	_, _, err := execute(t, "", "remove", "-y", "missing.pdf")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClearCmd(t *testing.T) {
	svc := newMockServices()
	svc.collection.status.Chunks = 5
	withServices(t, svc)

	out, _, err := execute(t, "YES\n", "clear")

	require.NoError(t, err)
	assert.True(t, svc.collection.cleared)
	assert.Contains(t, out, "Remove all 5 chunks of collection pdf_documents?")
	assert.Contains(t, out, "Collection cleared.")
}

func TestClearCmd_AlreadyEmpty(t *testing.T) {
	svc := newMockServices()
	withServices(t, svc)

	out, _, err := execute(t, "", "clear", "--yes")

	require.NoError(t, err)
	assert.False(t, svc.collection.cleared)
	assert.Contains(t, out, "already empty")
}

func TestClearCmd_Cancelled(t *testing.T) {
	svc := newMockServices()
	svc.collection.status.Chunks = 5
	withServices(t, svc)

	out, _, err := execute(t, "\n", "clear")

	require.NoError(t, err)
	assert.False(t, svc.collection.cleared)
	assert.Contains(t, out, "Cancelled.")
}
