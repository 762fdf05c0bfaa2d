// Package objectstore implements the content-addressed, two-level
// fan-out object store that every blob and tree object is read from
// and written to.
package objectstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jepayne1138/branchback/internal/delta"
	"github.com/jepayne1138/branchback/internal/digest"
)

// Store is the on-disk, content-addressed object store rooted at a
// single "objects" directory. The spec this store implements assumes
// a single-threaded, single-process writer, so one mutex over the
// whole store is sufficient; the per-shard locking a busier, concurrent
// store would need is not needed here.
type Store struct {
	root   string
	mu     sync.Mutex
	logger zerolog.Logger
}

// New returns a Store rooted at root, creating the directory if it
// does not already exist.
func New(root string, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("objectstore: creating root %s: %w", root, err)
	}
	return &Store{root: root, logger: logger}, nil
}

func (s *Store) pathFor(d string) (string, error) {
	dir, name, err := digest.Shard(d)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, dir, name), nil
}

// Exists reports whether an object file exists for digest d, without
// resolving any delta chain.
func (s *Store) Exists(d string) (bool, error) {
	path, err := s.pathFor(d)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("objectstore: checking %s: %w", d, err)
	}
	return true, nil
}

// PutFresh writes data verbatim under its own digest, unless an object
// already exists there (fresh or delta) — content that already has a
// home is never rewritten. It returns the digest of data.
func (s *Store) PutFresh(data []byte) (string, error) {
	d := digest.Of(data)
	path, err := s.pathFor(d)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(path); err == nil {
		s.logger.Debug().Str("digest", d).Msg("object already present, skipping write")
		return d, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("objectstore: checking %s: %w", d, err)
	}

	if err := s.writeAtomic(path, data); err != nil {
		return "", err
	}
	s.logger.Debug().Str("digest", d).Int("bytes", len(data)).Msg("stored fresh object")
	return d, nil
}

// ReplaceWithDelta overwrites the file at oldDigest in place with a
// delta envelope pointing at originDigest, carrying the patch that
// reconstructs oldDigest's content from originDigest's content. This
// is the one place a digest's underlying bytes change after being
// written once.
func (s *Store) ReplaceWithDelta(oldDigest, originDigest string, patch []byte) error {
	path, err := s.pathFor(oldDigest)
	if err != nil {
		return err
	}

	encoded, err := encodeEnvelope(envelope{Origin: originDigest, Patch: patch})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeAtomic(path, encoded); err != nil {
		return err
	}
	s.logger.Debug().
		Str("digest", oldDigest).
		Str("origin", originDigest).
		Msg("compressed object into delta envelope")
	return nil
}

// Read returns the content addressed by d, resolving through any chain
// of delta envelopes. Discrimination between fresh content and a delta
// envelope is purely the result of comparing d against the hash of the
// bytes stored at d's path: an envelope is never flagged as such.
func (s *Store) Read(d string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked(d)
}

// maxChainDepth bounds how many delta envelopes readLocked will follow
// before giving up. A well-formed chain is at most as long as the
// object's version count; this exists purely as a defensive backstop
// against a cycle (e.g. two objects delta-compressed against each
// other), which would otherwise spin forever.
const maxChainDepth = 10000

func (s *Store) readLocked(d string) ([]byte, error) {
	// The chain is resolved with an explicit stack rather than
	// recursion: a long history of small edits to one file produces a
	// delta chain as long as the file's version count.
	type frame struct {
		digest string
		patch  []byte
	}
	var stack []frame

	current := d
	for {
		if len(stack) > maxChainDepth {
			return nil, fmt.Errorf("%w: %s exceeded %d hops", ErrDeltaChainTooDeep, d, maxChainDepth)
		}

		raw, err := s.readRaw(current)
		if err != nil {
			if len(stack) == 0 {
				return nil, err
			}
			return nil, fmt.Errorf("%w: resolving %s from %s: %v", ErrDeltaChainBroken, d, current, err)
		}

		if digest.Of(raw) == current {
			// Fresh object: base case, unwind the stack applying patches.
			content := raw
			for i := len(stack) - 1; i >= 0; i-- {
				content, err = delta.Patch(stack[i].patch, content)
				if err != nil {
					return nil, fmt.Errorf("%w: applying patch for %s: %v", ErrDeltaChainBroken, stack[i].digest, err)
				}
			}
			return content, nil
		}

		env, ok := decodeEnvelope(raw)
		if !ok {
			return nil, fmt.Errorf("%w: %s is neither fresh content nor a delta envelope", ErrCorruptObject, current)
		}

		stack = append(stack, frame{digest: current, patch: env.Patch})
		current = env.Origin
	}
}

func (s *Store) readRaw(d string) ([]byte, error) {
	path, err := s.pathFor(d)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrMissingObject, d)
	}
	if err != nil {
		return nil, fmt.Errorf("objectstore: reading %s: %w", d, err)
	}
	return raw, nil
}

// writeAtomic writes data to path by first writing to a uniquely
// named temp file in the same shard directory, then renaming into
// place, so a crash mid-write never leaves a half-written object
// visible at its final path.
func (s *Store) writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("objectstore: creating shard dir %s: %w", dir, err)
	}

	tmp := filepath.Join(dir, ".tmp-"+uuid.New().String())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("objectstore: writing temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("objectstore: renaming into place: %w", err)
	}
	return nil
}
