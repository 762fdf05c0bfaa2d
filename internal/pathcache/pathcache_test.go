package pathcache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_SetAndGet(t *testing.T) {
	c := New()
	c.Set("src/main.go", "abc123")

	d, ok := c.Get("src/main.go")
	require.True(t, ok)
	assert.Equal(t, "abc123", d)
}

func TestCache_GetMissing(t *testing.T) {
	c := New()
	_, ok := c.Get("nope")
	assert.False(t, ok)
}

func TestCache_NormalizesWindowsSeparators(t *testing.T) {
	c := New()
	c.Set(`src\main.go`, "abc123")

	d, ok := c.Get("src/main.go")
	require.True(t, ok)
	assert.Equal(t, "abc123", d)
}

func TestCache_SaveAndLoadRoundTrip(t *testing.T) {
	c := New()
	c.Set("a.txt", "digest-a")
	c.Set("dir/b.txt", "digest-b")

	p := filepath.Join(t.TempDir(), "objhashcache")
	require.NoError(t, c.Save(p))

	loaded, err := Load(p)
	require.NoError(t, err)

	d, ok := loaded.Get("a.txt")
	require.True(t, ok)
	assert.Equal(t, "digest-a", d)

	d, ok = loaded.Get("dir/b.txt")
	require.True(t, ok)
	assert.Equal(t, "digest-b", d)
}

func TestCache_LoadMissingFileReturnsEmptyCache(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	assert.Empty(t, c.Keys())
}

func TestCache_Delete(t *testing.T) {
	c := New()
	c.Set("a.txt", "d")
	c.Delete("a.txt")
	_, ok := c.Get("a.txt")
	assert.False(t, ok)
}
