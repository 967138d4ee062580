package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigStore_Success(t *testing.T) {
	dir := t.TempDir()

	store, err := NewConfigStore(dir)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.toml"), store.Path())
}

func TestNewConfigStore_WithNestedDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")

	_, err := NewConfigStore(dir)

	require.NoError(t, err)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewConfigStore_LoadCorruptedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("not [valid toml"), 0600))

	_, err := NewConfigStore(dir)

	assert.Error(t, err)
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("llm.model", "llama3:8b"))
	require.NoError(t, store.Set("retrieval.top_k", 8))
	require.NoError(t, store.Set("llm.temperature", 0.2))
	require.NoError(t, store.Set("lookup.fetch_pages", true))
	require.NoError(t, store.Set("tags", []string{"a", "b"}))

	assert.Equal(t, "llama3:8b", store.GetString("llm.model"))
	assert.Equal(t, 8, store.GetInt("retrieval.top_k"))
	assert.InDelta(t, 0.2, store.GetFloat("llm.temperature"), 1e-9)
	assert.InDelta(t, 8.0, store.GetFloat("retrieval.top_k"), 1e-9)
	assert.True(t, store.GetBool("lookup.fetch_pages"))
	assert.Equal(t, []string{"a", "b"}, store.GetStringSlice("tags"))

	// Wrong types read as zero values.
	assert.Equal(t, "", store.GetString("retrieval.top_k"))
	assert.Equal(t, 0, store.GetInt("llm.model"))
	assert.Equal(t, 0, store.GetInt("llm.temperature"))
	assert.Zero(t, store.GetFloat("llm.model"))
	assert.False(t, store.GetBool("llm.model"))
	assert.Nil(t, store.GetStringSlice("llm.model"))

	_, ok := store.Get("missing")
	assert.False(t, ok)
}

func TestConfigStore_PersistsNestedTables(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Set("retrieval.top_k", 6))
	require.NoError(t, store.Set("retrieval.confidence_floor", 0.25))
	require.NoError(t, store.Set("llm.provider", "openai"))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "[retrieval]")
	assert.Contains(t, content, "[llm]")
	assert.False(t, strings.Contains(content, "'retrieval.top_k'"))

	reopened, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, 6, reopened.GetInt("retrieval.top_k"))
	assert.InDelta(t, 0.25, reopened.GetFloat("retrieval.confidence_floor"), 1e-9)
	assert.Equal(t, "openai", reopened.GetString("llm.provider"))
	assert.Equal(t, []string{"llm.provider", "retrieval.confidence_floor", "retrieval.top_k"}, reopened.Keys())
}

func TestConfigStore_ReadsHandWrittenFile(t *testing.T) {
	dir := t.TempDir()
	content := `
[embedding]
provider = "ollama"
model = "all-minilm"

[generation]
max_concurrent = 2
timeout_seconds = 60.0
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0600))

	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	assert.Equal(t, "all-minilm", store.GetString("embedding.model"))
	assert.Equal(t, 2, store.GetInt("generation.max_concurrent"))
	assert.Equal(t, 60, store.GetInt("generation.timeout_seconds"))
}

func TestConfigStore_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), nil, 0600))

	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Empty(t, store.Keys())
}

func TestConfigStore_FilePermissions(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Save())

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestConfigStore_SetFailureRollsBack(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("llm.model", "a"))

	// Channels cannot be encoded as TOML.
	err = store.Set("llm.model", make(chan int))
	require.Error(t, err)
	assert.Equal(t, "a", store.GetString("llm.model"))

	err = store.Set("bad", make(chan int))
	require.Error(t, err)
	_, ok := store.Get("bad")
	assert.False(t, ok)
}

func TestConfigStore_Concurrency(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("section.key%d", i)
			assert.NoError(t, store.Set(key, i))
			assert.Equal(t, i, store.GetInt(key))
		}(i)
	}
	wg.Wait()
	assert.Len(t, store.Keys(), 10)
}

func TestNestMap(t *testing.T) {
	nested := nestMap(map[string]any{
		"a":     1,
		"a.b":   2,
		"c.d.e": 3,
		"c.f":   4,
	})

	assert.Equal(t, 1, nested["a"])
	assert.Equal(t, 2, nested["a.b"])
	c, ok := nested["c"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 4, c["f"])
	d, ok := c["d"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 3, d["e"])

	assert.Equal(t, map[string]any{"a": 1, "a.b": 2, "c.d.e": 3, "c.f": 4}, flattenMap(nested, ""))
}
