package treewalk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jepayne1138/branchback/internal/digest"
	"github.com/jepayne1138/branchback/internal/objectstore"
	"github.com/jepayne1138/branchback/internal/pathcache"
)

func newFixture(t *testing.T) (*Serializer, *objectstore.Store, string) {
	t.Helper()
	root := t.TempDir()
	store, err := objectstore.New(filepath.Join(t.TempDir(), "objects"), zerolog.Nop())
	require.NoError(t, err)
	cache := pathcache.New()
	repoDir := filepath.Join(root, ".pbb")
	require.NoError(t, os.MkdirAll(repoDir, 0o755))
	s := New(store, cache, repoDir, nil, zerolog.Nop(), nil)
	return s, store, root
}

func TestSnapshotTree_EmptyDirectory(t *testing.T) {
	s, _, root := newFixture(t)
	treeDigest, err := s.SnapshotTree(root)
	require.NoError(t, err)
	assert.Equal(t, digest.Of([]byte("\n")), treeDigest)
}

func TestSnapshotTree_SingleFile(t *testing.T) {
	s, store, root := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644))

	treeDigest, err := s.SnapshotTree(root)
	require.NoError(t, err)

	content, err := store.Read(treeDigest)
	require.NoError(t, err)
	assert.Contains(t, string(content), "a.txt")
}

func TestSnapshotTree_NestedDirectories(t *testing.T) {
	s, _, root := newFixture(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "b.txt"), []byte("nested"), 0o644))

	treeDigest, err := s.SnapshotTree(root)
	require.NoError(t, err)
	assert.Len(t, treeDigest, digest.Size)
}

func TestSnapshotTree_ExcludesRepoDir(t *testing.T) {
	s, store, root := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, ".pbb", "HEAD"), []byte("main\n"), 0o644))

	treeDigest, err := s.SnapshotTree(root)
	require.NoError(t, err)

	content, err := store.Read(treeDigest)
	require.NoError(t, err)
	assert.NotContains(t, string(content), ".pbb")
}

func TestSnapshotTree_SecondSnapshotDeltaCompressesPreviousVersion(t *testing.T) {
	s, store, root := newFixture(t)
	path := filepath.Join(root, "a.txt")

	require.NoError(t, os.WriteFile(path, []byte("version one\n"), 0o644))
	_, err := s.SnapshotTree(root)
	require.NoError(t, err)

	v1Digest := digest.Of([]byte("version one\n"))

	require.NoError(t, os.WriteFile(path, []byte("version two, a little longer\n"), 0o644))
	_, err = s.SnapshotTree(root)
	require.NoError(t, err)

	// Reading the first version's digest must still resolve to its
	// original content even though its object file now holds a delta.
	got, err := store.Read(v1Digest)
	require.NoError(t, err)
	assert.Equal(t, "version one\n", string(got))
}

func TestSnapshotTree_PrunesCacheEntryForDeletedFile(t *testing.T) {
	s, _, root := newFixture(t)
	path := filepath.Join(root, "a.txt")

	require.NoError(t, os.WriteFile(path, []byte("version one\n"), 0o644))
	_, err := s.SnapshotTree(root)
	require.NoError(t, err)

	_, tracked := s.cache.Get("a.txt")
	require.True(t, tracked)

	require.NoError(t, os.Remove(path))
	_, err = s.SnapshotTree(root)
	require.NoError(t, err)

	_, tracked = s.cache.Get("a.txt")
	assert.False(t, tracked)
}

func TestTreeHashOnly_MatchesSnapshotTreeWithoutWriting(t *testing.T) {
	s, store, root := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644))

	dryDigest, err := s.TreeHashOnly(root)
	require.NoError(t, err)

	exists, err := store.Exists(dryDigest)
	require.NoError(t, err)
	assert.False(t, exists)

	wetDigest, err := s.SnapshotTree(root)
	require.NoError(t, err)
	assert.Equal(t, dryDigest, wetDigest)
}
