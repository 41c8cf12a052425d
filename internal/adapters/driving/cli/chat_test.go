package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatCmd_PlainSession(t *testing.T) {
	svc := newMockServices()
	withServices(t, svc)

	out, _, err := execute(t, "what is it?\nstats\nquit\n", "chat")

	require.NoError(t, err)
	assert.Contains(t, out, "ragchat: ask questions about your PDF documents")
	assert.Equal(t, "what is it?", svc.answer.question)
	assert.Contains(t, out, "ANSWER: Forty-two.")
	assert.Contains(t, out, "COLLECTION pdf_documents")
	assert.Contains(t, out, "Goodbye.")
}

func TestChatCmd_QuietSkipsBanner(t *testing.T) {
	svc := newMockServices()
	withServices(t, svc)

	out, _, err := execute(t, "what is it?\n", "chat", "--quiet")

	require.NoError(t, err)
	assert.NotContains(t, out, "ask questions about your PDF documents")
	assert.Contains(t, out, "Forty-two.\n")
	assert.NotContains(t, out, "ANSWER:")
}

func TestChatCmd_EndOfInput(t *testing.T) {
	svc := newMockServices()
	withServices(t, svc)

	_, _, err := execute(t, "", "chat", "--plain")

	assert.NoError(t, err)
}

func TestChatCmd_FileIngestedFirst(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guide.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o600))

	svc := newMockServices()
	withServices(t, svc)

	out, _, err := execute(t, "exit\n", "chat", "-f", path)

	require.NoError(t, err)
	assert.Equal(t, []string{path}, svc.ingestion.ingested)
	assert.Contains(t, out, "Added "+path)
}

func TestChatCmd_SessionOptions(t *testing.T) {
	svc := newMockServices()
	withServices(t, svc)

	_, _, err := execute(t, "question\n", "chat", "-k", "9", "-t", "1.1")

	require.NoError(t, err)
	assert.Equal(t, 9, svc.answer.opts.TopK)
	assert.InDelta(t, 1.1, svc.answer.opts.Temperature, 1e-9)
}
