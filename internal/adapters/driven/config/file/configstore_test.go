package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigStore_Success(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewConfigStore(tmpDir)

	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Equal(t, filepath.Join(tmpDir, "config.toml"), store.Path())
	assert.Equal(t, tmpDir, store.Dir())
}

func TestNewConfigStore_WithNestedDirectory(t *testing.T) {
	nestedPath := filepath.Join(t.TempDir(), "nested", "deep")

	store, err := NewConfigStore(nestedPath)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(nestedPath, "config.toml"), store.Path())

	info, err := os.Stat(nestedPath)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
}

func TestNewConfigStore_MkdirAllError(t *testing.T) {
	store, err := NewConfigStore("/dev/null/cannot/create/dirs")

	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestNewConfigStore_LoadCorruptedFile(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("this is not valid TOML {{{[["), 0600))

	store, err := NewConfigStore(tmpDir)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "config.toml")
	assert.Nil(t, store)
}

func TestConfigStore_NestedTables(t *testing.T) {
	tmpDir := t.TempDir()
	content := `
[ai]
provider = "openai"

[store]
backend = "postgres"
collection = "manuals"

[answer]
top_k = 4
temperature = 0.3
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(content), 0600))

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "openai", store.GetString("ai.provider"))
	assert.Equal(t, "postgres", store.GetString("store.backend"))
	assert.Equal(t, "manuals", store.GetString("store.collection"))
	assert.Equal(t, 4, store.GetInt("answer.top_k"))
	assert.InDelta(t, 0.3, store.GetFloat("answer.temperature"), 1e-9)
}

func TestConfigStore_SaveWritesTables(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	require.NoError(t, store.Set("answer.top_k", 7))
	require.NoError(t, store.Set("store.collection", "handbook"))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "[answer]")
	assert.Contains(t, string(data), "[store]")

	reloaded, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, 7, reloaded.GetInt("answer.top_k"))
	assert.Equal(t, "handbook", reloaded.GetString("store.collection"))
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("s", "hello"))
	require.NoError(t, store.Set("i", 42))
	require.NoError(t, store.Set("f", 0.5))
	require.NoError(t, store.Set("whole", 8.0))
	require.NoError(t, store.Set("b", true))
	require.NoError(t, store.Set("list", []string{"a", "b"}))

	assert.Equal(t, "hello", store.GetString("s"))
	assert.Equal(t, "", store.GetString("i"))
	assert.Equal(t, 42, store.GetInt("i"))
	assert.Equal(t, 8, store.GetInt("whole"))
	assert.Equal(t, 0, store.GetInt("f"), "fractional values are not integers")
	assert.Equal(t, 0, store.GetInt("s"))
	assert.InDelta(t, 0.5, store.GetFloat("f"), 1e-9)
	assert.InDelta(t, 42.0, store.GetFloat("i"), 1e-9)
	assert.Zero(t, store.GetFloat("s"))
	assert.True(t, store.GetBool("b"))
	assert.False(t, store.GetBool("s"))
	assert.Equal(t, []string{"a", "b"}, store.GetStringSlice("list"))
	assert.Nil(t, store.GetStringSlice("missing"))

	val, ok := store.Get("missing")
	assert.False(t, ok)
	assert.Nil(t, val)
}

func TestConfigStore_Persistence(t *testing.T) {
	tmpDir := t.TempDir()
	store1, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	require.NoError(t, store1.Set("google.llm_model", "gemini-2.5-flash"))
	require.NoError(t, store1.Set("ingest.chunk_size", int64(800)))
	require.NoError(t, store1.Set("provider.requests_per_second", 2.5))

	store2, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.5-flash", store2.GetString("google.llm_model"))
	assert.Equal(t, 800, store2.GetInt("ingest.chunk_size"))
	assert.InDelta(t, 2.5, store2.GetFloat("provider.requests_per_second"), 1e-9)
}

func TestConfigStore_FilePermissions(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("test", "value"))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestConfigStore_EmptyFile(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("# Just a comment\n\n"), 0600))

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	_, ok := store.Get("any_key")
	assert.False(t, ok)
}

func TestConfigStore_Save_WriteFileError(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("test", "value"))

	require.NoError(t, os.Remove(store.Path()))
	require.NoError(t, os.Mkdir(store.Path(), 0700))

	assert.Error(t, store.Set("another", "value"))
}

func TestConfigStore_SetWithUnmarshallableValue(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, store.Set("channel", make(chan int)))
}

func TestConfigStore_Concurrency(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(id int) {
			key := "key" + string(rune('0'+id))
			_ = store.Set(key, id)
			_ = store.GetInt(key)
			_ = store.GetFloat(key)
			_, _ = store.Get(key)
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestNestMap(t *testing.T) {
	flat := map[string]any{
		"a.b":   1,
		"a.c":   "x",
		"top":   true,
		"d.e.f": 2.5,
	}

	nested := nestMap(flat)

	assert.Equal(t, map[string]any{"b": 1, "c": "x"}, nested["a"])
	assert.Equal(t, true, nested["top"])
	assert.Equal(t, map[string]any{"e": map[string]any{"f": 2.5}}, nested["d"])
	assert.Equal(t, flat, flattenMap(nested, ""))
}

func TestNestMap_Conflict(t *testing.T) {
	nested := nestMap(map[string]any{"a": 1, "a.b": 2})

	flat := flattenMap(nested, "")
	assert.Len(t, flat, 2)
	assert.Contains(t, flat, "a.b")
}
