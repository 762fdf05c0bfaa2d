// Package checkout rebuilds a working directory from a tree object
// graph, replacing whatever is on disk with exactly what the tree
// describes.
package checkout

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/jepayne1138/branchback/internal/domain"
)

// ObjectReader is the subset of objectstore.Store the checkout engine
// needs.
type ObjectReader interface {
	Read(d string) ([]byte, error)
}

// Engine rebuilds working directories from tree digests.
type Engine struct {
	store   ObjectReader
	repoDir string
	logger  zerolog.Logger
}

// New returns an Engine. repoDir is the repository's metadata
// directory, preserved across every checkout.
func New(store ObjectReader, repoDir string, logger zerolog.Logger) *Engine {
	return &Engine{store: store, repoDir: repoDir, logger: logger}
}

// Checkout wipes root (except repoDir) and rebuilds it to match the
// tree at treeDigest. There is no transactional rollback: a failure
// partway through leaves the working directory partially rebuilt, the
// same limitation the engine this one is modeled on accepts.
func (e *Engine) Checkout(root, treeDigest string) error {
	if err := e.wipe(root); err != nil {
		return err
	}
	return e.rebuild(root, treeDigest)
}

func (e *Engine) wipe(root string) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("checkout: reading %s: %w", root, err)
	}
	for _, entry := range entries {
		full := filepath.Join(root, entry.Name())
		if full == e.repoDir {
			continue
		}
		if err := os.RemoveAll(full); err != nil {
			return fmt.Errorf("checkout: removing %s: %w", full, err)
		}
	}
	return nil
}

func (e *Engine) rebuild(dir, treeDigest string) error {
	content, err := e.store.Read(treeDigest)
	if err != nil {
		return fmt.Errorf("checkout: reading tree %s: %w", treeDigest, err)
	}
	entries, err := domain.DecodeTree(content)
	if err != nil {
		return fmt.Errorf("checkout: parsing tree %s: %w", treeDigest, err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("checkout: creating %s: %w", dir, err)
	}

	for _, entry := range entries {
		target := filepath.Join(dir, entry.Name)
		switch entry.Kind {
		case domain.KindTree:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("checkout: creating directory %s: %w", target, err)
			}
			if err := e.rebuild(target, entry.Digest); err != nil {
				return err
			}
		case domain.KindBlob:
			data, err := e.store.Read(entry.Digest)
			if err != nil {
				return fmt.Errorf("checkout: reading blob %s for %s: %w", entry.Digest, target, err)
			}
			if err := os.WriteFile(target, data, 0o644); err != nil {
				return fmt.Errorf("checkout: writing %s: %w", target, err)
			}
		default:
			return fmt.Errorf("checkout: unknown entry kind %q in tree %s", entry.Kind, treeDigest)
		}
	}
	return nil
}
