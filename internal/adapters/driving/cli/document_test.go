package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

func TestDocumentCommand_HasSubcommands(t *testing.T) {
	names := make([]string, 0, len(documentCmd.Commands()))
	for _, c := range documentCmd.Commands() {
		names = append(names, c.Name())
	}

	assert.ElementsMatch(t, []string{"upload", "list", "get", "chunks", "process", "delete", "summarise"}, names)
	assert.Contains(t, documentCmd.Aliases, "doc")
}

func TestDocumentList(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "document", "list")

	require.NoError(t, err)
	assert.Contains(t, out, "doc-1")
	assert.Contains(t, out, "physics.txt")
	assert.Contains(t, out, "corrupt file")
	assert.Contains(t, out, "Total: 2 documents")
}

func TestDocumentList_Empty(t *testing.T) {
	svc, cleanup := setupTestServices()
	defer cleanup()
	svc.documents.docs = map[string]*domain.Document{}

	out, err := execute(t, "doc", "list")

	require.NoError(t, err)
	assert.Contains(t, out, "No documents found.")
}

func TestDocumentList_NoService(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	documentService = nil

	_, err := execute(t, "document", "list")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "document service not configured")
}

func TestDocumentGet(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "document", "get", "doc-1")

	require.NoError(t, err)
	assert.Contains(t, out, "Document: doc-1")
	assert.Contains(t, out, "Filename: physics.txt")
	assert.Contains(t, out, "Status:   ready")
	assert.Contains(t, out, "Chunks:   2")
	assert.Contains(t, out, "Ready:    2026-01-02 03:05:00")
}

func TestDocumentGet_NotFound(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "document", "get", "missing")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	assert.Contains(t, err.Error(), "docqa document list")
}

func TestDocumentChunks(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "document", "chunks", "doc-1")

	require.NoError(t, err)
	assert.Contains(t, out, "[0] chars 0-35, 7 tokens")
	assert.Contains(t, out, "Alpha particles are helium nuclei.")
	assert.Contains(t, out, "...")
}

func TestDocumentChunks_Full(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "document", "chunks", "doc-1", "--full")

	require.NoError(t, err)
	assert.Contains(t, out, strings.Repeat("beta ", 54))
}

func TestDocumentChunks_None(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "document", "chunks", "doc-2")

	require.NoError(t, err)
	assert.Contains(t, out, "No chunks.")
}

func TestDocumentUpload(t *testing.T) {
	svc, cleanup := setupTestServices()
	defer cleanup()

	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("gamma rays"), 0o600))

	out, err := execute(t, "document", "upload", path)

	require.NoError(t, err)
	assert.Contains(t, out, "notes.txt  ready (2 chunks)")
	require.Len(t, svc.documents.uploaded, 1)
	assert.Equal(t, "notes.txt", svc.documents.uploaded[0].Filename)
	assert.Equal(t, []byte("gamma rays"), svc.documents.uploaded[0].Content)
	assert.Equal(t, []string{"doc-notes.txt"}, svc.documents.processed)
}

func TestDocumentUpload_NoProcess(t *testing.T) {
	svc, cleanup := setupTestServices()
	defer cleanup()

	path := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("# Notes"), 0o600))

	out, err := execute(t, "document", "upload", "--no-process", path)

	require.NoError(t, err)
	assert.Contains(t, out, "notes.md  uploaded")
	assert.Empty(t, svc.documents.processed)
}

func TestDocumentUpload_ReportsFailures(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	dir := t.TempDir()
	good := filepath.Join(dir, "good.txt")
	bad := filepath.Join(dir, "corrupt.pdf")
	require.NoError(t, os.WriteFile(good, []byte("ok"), 0o600))
	require.NoError(t, os.WriteFile(bad, []byte("%PDF-garbage"), 0o600))

	out, err := execute(t, "document", "upload", good, bad)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 documents failed processing")
	assert.Contains(t, out, "good.txt  ready")
	assert.Contains(t, out, "corrupt.pdf  failed: corrupt file")
}

func TestDocumentUpload_Unsupported(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	path := filepath.Join(t.TempDir(), "tool.exe")
	require.NoError(t, os.WriteFile(path, []byte("MZ"), 0o600))

	_, err := execute(t, "document", "upload", path)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnsupportedFileType)
	assert.Contains(t, err.Error(), "supported types")
}

func TestDocumentUpload_MissingFile(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "document", "upload", filepath.Join(t.TempDir(), "absent.txt"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read")
}

func TestDocumentProcess(t *testing.T) {
	svc, cleanup := setupTestServices()
	defer cleanup()
	svc.documents.docs["doc-3"] = &domain.Document{ID: "doc-3", Filename: "new.txt", Status: domain.StatusUploaded}

	out, err := execute(t, "document", "process", "doc-3")

	require.NoError(t, err)
	assert.Contains(t, out, "Processing doc-3...")
	assert.Contains(t, out, "Document doc-3 is ready (2 chunks).")
}

func TestDocumentProcess_Failed(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	// broken.pdf is failed and retried; it fails again.
	_, err := execute(t, "document", "process", "doc-2")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "processing failed")
}

func TestDocumentProcess_AlreadyReady(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "document", "process", "doc-1")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestDocumentDelete(t *testing.T) {
	svc, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "document", "delete", "doc-1")

	require.NoError(t, err)
	assert.Contains(t, out, "Deleted document: doc-1")
	assert.Equal(t, []string{"doc-1"}, svc.documents.deleted)
}

func TestDocumentSummarise(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "document", "summarize", "doc-1")
	require.NoError(t, err)
	assert.Contains(t, out, "A short summary.")

	_, err = execute(t, "document", "summarise", "doc-2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "docqa document process")
}

func TestPreviewText(t *testing.T) {
	assert.Equal(t, "a b c", previewText("a \n b\t c", 10))
	assert.Equal(t, "abc...", previewText("abcdef", 3))
	assert.Equal(t, "héllo", previewText("héllo", 5))
}
