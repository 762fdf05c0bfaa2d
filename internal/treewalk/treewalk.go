// Package treewalk builds tree objects from a working directory,
// storing blob and tree content into an object store and deciding, for
// each changed file, whether to store it fresh or delta-compress the
// file's previous version against it.
package treewalk

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"

	"github.com/jepayne1138/branchback/internal/delta"
	"github.com/jepayne1138/branchback/internal/digest"
	"github.com/jepayne1138/branchback/internal/domain"
	"github.com/jepayne1138/branchback/internal/metrics"
	"github.com/jepayne1138/branchback/internal/objectstore"
	"github.com/jepayne1138/branchback/internal/pathcache"
)

// ObjectWriter is the subset of objectstore.Store the serializer needs.
type ObjectWriter interface {
	PutFresh(data []byte) (string, error)
	ReplaceWithDelta(oldDigest, originDigest string, patch []byte) error
	Exists(d string) (bool, error)
}

// Serializer walks a working directory and produces tree objects.
type Serializer struct {
	store    ObjectWriter
	cache    *pathcache.Cache
	repoDir  string // absolute path of the repo's own metadata dir, excluded from every walk
	excludes []string
	logger   zerolog.Logger
	metrics  *metrics.Metrics
	visited  map[string]bool // paths seen by the in-progress SnapshotTree call, for pruning
}

// New returns a Serializer. repoDir is the absolute path to the
// repository's metadata directory (e.g. ".pbb"); it is always excluded
// from the walk regardless of excludes. m may be nil, in which case no
// metrics are recorded.
func New(store ObjectWriter, cache *pathcache.Cache, repoDir string, excludes []string, logger zerolog.Logger, m *metrics.Metrics) *Serializer {
	return &Serializer{store: store, cache: cache, repoDir: repoDir, excludes: excludes, logger: logger, metrics: m}
}

// SnapshotTree walks root and writes tree/blob objects for everything
// found, returning the digest of the root tree. Every changed file's
// previous version (if the path was tracked at the last snapshot and
// its content changed) is delta-compressed in place against the new
// content once the new content is written — see §4.7.1 of the
// accompanying design notes for the exact ordering this depends on.
func (s *Serializer) SnapshotTree(root string) (string, error) {
	s.visited = make(map[string]bool)
	treeDigest, err := s.walk(root, root, false)
	if err != nil {
		return "", err
	}
	s.pruneDeleted()
	return treeDigest, nil
}

// TreeHashOnly computes the digest SnapshotTree would return without
// writing any objects or mutating the path cache — used to detect a
// dirty (unsaved) working directory before a checkout.
func (s *Serializer) TreeHashOnly(root string) (string, error) {
	return s.walk(root, root, true)
}

func (s *Serializer) walk(absDir, root string, dryRun bool) (string, error) {
	entries, err := os.ReadDir(absDir)
	if err != nil {
		return "", fmt.Errorf("treewalk: reading directory %s: %w", absDir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var treeEntries []domain.Entry
	for _, name := range names {
		full := filepath.Join(absDir, name)
		if full == s.repoDir {
			continue
		}
		if s.isExcluded(name) {
			continue
		}

		info, err := os.Lstat(full)
		if err != nil {
			return "", fmt.Errorf("treewalk: statting %s: %w", full, err)
		}

		if info.IsDir() {
			childDigest, err := s.walk(full, root, dryRun)
			if err != nil {
				return "", err
			}
			treeEntries = append(treeEntries, domain.Entry{Kind: domain.KindTree, Digest: childDigest, Name: name})
			continue
		}

		blobDigest, err := s.storeBlob(full, root, dryRun)
		if err != nil {
			return "", err
		}
		treeEntries = append(treeEntries, domain.Entry{Kind: domain.KindBlob, Digest: blobDigest, Name: name})
	}

	content := domain.EncodeTree(treeEntries)
	treeDigest := digest.Of(content)
	if !dryRun {
		existed, err := s.store.Exists(treeDigest)
		if err != nil {
			return "", fmt.Errorf("treewalk: checking tree object: %w", err)
		}
		if _, err := s.store.PutFresh(content); err != nil {
			return "", fmt.Errorf("treewalk: writing tree object: %w", err)
		}
		if s.metrics != nil {
			s.metrics.RecordObjectWrite(!existed)
		}
	}
	return treeDigest, nil
}

func (s *Serializer) isExcluded(name string) bool {
	for _, pattern := range s.excludes {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// storeBlob writes the file's content as a fresh object (if new), and
// applies the delta-compression policy against the path's previous
// digest when the file existed before and its content changed.
func (s *Serializer) storeBlob(path, root string, dryRun bool) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("treewalk: reading %s: %w", path, err)
	}
	newDigest := digest.Of(data)

	relPath, err := filepath.Rel(root, path)
	if err != nil {
		return "", fmt.Errorf("treewalk: computing relative path for %s: %w", path, err)
	}

	if dryRun {
		return newDigest, nil
	}

	if s.metrics != nil {
		s.metrics.SnapshotBytesTotal.Add(float64(len(data)))
	}

	prevDigest, tracked := s.cache.Get(relPath)

	existed, err := s.store.Exists(newDigest)
	if err != nil {
		return "", fmt.Errorf("treewalk: checking blob object: %w", err)
	}
	if _, err := s.store.PutFresh(data); err != nil {
		return "", fmt.Errorf("treewalk: writing blob object: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordObjectWrite(!existed)
	}

	if tracked && prevDigest != newDigest {
		if err := s.compressPrevious(prevDigest, newDigest, data); err != nil {
			return "", err
		}
	}

	s.cache.Set(relPath, newDigest)
	if s.visited != nil {
		s.visited[filepath.ToSlash(relPath)] = true
	}
	return newDigest, nil
}

// pruneDeleted drops path cache entries for files that no longer exist
// in the working directory, so a path cannot spuriously drive a future
// delta-compression decision against a file it no longer names.
func (s *Serializer) pruneDeleted() {
	for _, key := range s.cache.Keys() {
		if !s.visited[key] {
			s.cache.Delete(key)
		}
	}
}

// compressPrevious delta-compresses the object at prevDigest in place,
// storing it as a patch relative to newDigest's content. If prevDigest
// no longer exists as an object (its file was itself replaced by an
// earlier compression step against a digest equal to newDigest, or it
// was never actually written), this is a no-op: losing the opportunity
// to compress one historical version never corrupts anything.
func (s *Serializer) compressPrevious(prevDigest, newDigest string, newContent []byte) error {
	if prevDigest == newDigest {
		return nil
	}
	exists, err := s.store.Exists(prevDigest)
	if err != nil {
		return fmt.Errorf("treewalk: checking previous object %s: %w", prevDigest, err)
	}
	if !exists {
		return nil
	}

	prevContent, err := readObject(s.store, prevDigest)
	if err != nil {
		s.logger.Warn().Str("digest", prevDigest).Err(err).Msg("skipping delta compression: previous object unreadable")
		return nil
	}

	patch, err := delta.Diff(newContent, prevContent)
	if err != nil {
		return fmt.Errorf("treewalk: computing delta for %s: %w", prevDigest, err)
	}

	if err := s.store.ReplaceWithDelta(prevDigest, newDigest, patch); err != nil {
		return fmt.Errorf("treewalk: delta-compressing %s: %w", prevDigest, err)
	}
	if s.metrics != nil {
		s.metrics.RecordDeltaCompression(int64(len(prevContent) - len(patch)))
	}
	return nil
}

// readObject reads full object content through the store interface
// when a Reader is available; ObjectWriter alone does not expose Read,
// so callers that need it pass the concrete *objectstore.Store.
func readObject(store ObjectWriter, d string) ([]byte, error) {
	reader, ok := store.(interface{ Read(string) ([]byte, error) })
	if !ok {
		return nil, fmt.Errorf("treewalk: store does not support reading objects")
	}
	return reader.Read(d)
}

var _ ObjectWriter = (*objectstore.Store)(nil)
