// Package repository orchestrates the object store, path cache, ref
// store, snapshot catalog, tree serializer, and checkout engine into
// the operations a front-end (CLI or otherwise) calls: open, snapshot,
// create_branch, checkout, list_snapshots, list_branches, and
// current_snapshot_hash.
package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jepayne1138/branchback/internal/catalog"
	"github.com/jepayne1138/branchback/internal/checkout"
	"github.com/jepayne1138/branchback/internal/config"
	"github.com/jepayne1138/branchback/internal/digest"
	"github.com/jepayne1138/branchback/internal/hiddenattr"
	"github.com/jepayne1138/branchback/internal/metrics"
	"github.com/jepayne1138/branchback/internal/objectstore"
	"github.com/jepayne1138/branchback/internal/pathcache"
	"github.com/jepayne1138/branchback/internal/refstore"
	"github.com/jepayne1138/branchback/internal/treewalk"
)

const (
	objectsDirName  = "objects"
	pathCacheName   = "objhashcache"
	catalogFileName = "snapshots"
	defaultBranch   = "master"
)

// HeadState describes HEAD as either attached to a branch or detached
// at a specific snapshot digest.
type HeadState struct {
	Branch   string
	Digest   string
	Detached bool
}

// Repository is a single open working-directory repository.
type Repository struct {
	root    string
	repoDir string

	store      *objectstore.Store
	cache      *pathcache.Cache
	cachePath  string
	refs       *refstore.Store
	cat        *catalog.Catalog
	serializer *treewalk.Serializer
	checkout   *checkout.Engine

	cfg     config.Config
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// Init creates a new repository rooted at root: the metadata directory,
// an empty object store, and a "master" branch pointing at the empty
// tree.
func Init(ctx context.Context, root string, cfg config.Config, logger zerolog.Logger) (*Repository, error) {
	repoDir := filepath.Join(root, cfg.RepoDirName)
	if _, err := os.Stat(repoDir); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyInitialized, repoDir)
	}

	if err := os.MkdirAll(repoDir, 0o755); err != nil {
		return nil, fmt.Errorf("repository: creating %s: %w", repoDir, err)
	}

	store, err := objectstore.New(filepath.Join(repoDir, objectsDirName), logger)
	if err != nil {
		return nil, err
	}

	refs := refstore.New(repoDir)
	if err := refs.Init(); err != nil {
		return nil, fmt.Errorf("repository: initializing refs: %w", err)
	}

	cat := catalog.New(filepath.Join(repoDir, catalogFileName))
	if err := cat.Init(ctx); err != nil {
		return nil, err
	}

	emptyTree := []byte("\n")
	emptyDigest, err := store.PutFresh(emptyTree)
	if err != nil {
		return nil, fmt.Errorf("repository: writing empty tree: %w", err)
	}

	if err := refs.WriteBranch(defaultBranch, emptyDigest); err != nil {
		return nil, fmt.Errorf("repository: creating default branch: %w", err)
	}
	if err := refs.WriteHEAD(defaultBranch); err != nil {
		return nil, fmt.Errorf("repository: writing HEAD: %w", err)
	}

	if err := hiddenattr.Set(repoDir); err != nil {
		logger.Debug().Err(err).Msg("could not set hidden attribute on repository directory")
	}

	return Open(ctx, root, cfg, logger)
}

// Open opens an existing repository rooted at root.
func Open(ctx context.Context, root string, cfg config.Config, logger zerolog.Logger) (*Repository, error) {
	repoDir := filepath.Join(root, cfg.RepoDirName)
	if _, err := os.Stat(repoDir); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotARepository, root)
	}

	store, err := objectstore.New(filepath.Join(repoDir, objectsDirName), logger)
	if err != nil {
		return nil, err
	}

	cachePath := filepath.Join(repoDir, pathCacheName)
	cache, err := pathcache.Load(cachePath)
	if err != nil {
		return nil, fmt.Errorf("repository: loading path cache: %w", err)
	}

	refs := refstore.New(repoDir)
	cat := catalog.New(filepath.Join(repoDir, catalogFileName))
	if err := cat.Init(ctx); err != nil {
		return nil, err
	}

	m := metrics.New()
	serializer := treewalk.New(store, cache, repoDir, cfg.ExcludePatterns, logger, m)
	engine := checkout.New(store, repoDir, logger)

	return &Repository{
		root:       root,
		repoDir:    repoDir,
		store:      store,
		cache:      cache,
		cachePath:  cachePath,
		refs:       refs,
		cat:        cat,
		serializer: serializer,
		checkout:   engine,
		cfg:        cfg,
		logger:     logger,
		metrics:    m,
	}, nil
}

// Head returns the current HEAD state.
func (r *Repository) Head() (HeadState, error) {
	h, err := r.refs.ReadHEAD()
	if err != nil {
		return HeadState{}, err
	}
	return HeadState{Branch: h.Branch, Digest: h.Digest, Detached: h.Detached}, nil
}

// CurrentBranchName returns the raw HEAD content and whether it is
// detached, regardless of which state HEAD is in.
func (r *Repository) CurrentBranchName() (name string, detached bool, err error) {
	h, err := r.Head()
	if err != nil {
		return "", false, err
	}
	if h.Detached {
		return h.Digest, true, nil
	}
	return h.Branch, false, nil
}

// CurrentSnapshotHash returns the tree digest HEAD currently resolves
// to, whether attached or detached.
func (r *Repository) CurrentSnapshotHash() (string, error) {
	h, err := r.Head()
	if err != nil {
		return "", err
	}
	if h.Detached {
		return h.Digest, nil
	}
	return r.refs.ReadBranch(h.Branch)
}

// Snapshot records the current state of the working directory as a new
// snapshot on the current branch. It is a no-op (returns the existing
// digest) when nothing changed since the branch's last snapshot.
// Requires HEAD to be attached. user attributes the snapshot to a
// specific author; an empty user falls back to the repository's
// configured default user.
func (r *Repository) Snapshot(ctx context.Context, label, message, user string) (string, error) {
	start := time.Now()
	d, err := r.snapshot(ctx, label, message, user)
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.metrics.RecordOperation("snapshot", status, time.Since(start).Seconds())
	return d, err
}

func (r *Repository) snapshot(ctx context.Context, label, message, user string) (string, error) {
	h, err := r.Head()
	if err != nil {
		return "", err
	}
	if h.Detached {
		return "", ErrDetachedHead
	}

	previous, err := r.refs.ReadBranch(h.Branch)
	if err != nil {
		return "", err
	}

	treeDigest, err := r.serializer.SnapshotTree(r.root)
	if err != nil {
		return "", err
	}

	if treeDigest == previous {
		r.logger.Debug().Str("branch", h.Branch).Msg("snapshot: no changes since last snapshot")
		return treeDigest, nil
	}

	if user == "" {
		user = r.cfg.DefaultUser
	}

	// Ordering matters for crash safety: objects and the path cache are
	// durable once written, so they are persisted before the branch ref
	// is advanced, and the branch ref is advanced before the catalog
	// row is appended. A crash at any point leaves HEAD resolving to
	// either the old or the new snapshot, never to one that isn't fully
	// stored.
	if err := r.cache.Save(r.cachePath); err != nil {
		return "", fmt.Errorf("repository: saving path cache: %w", err)
	}
	if err := r.refs.WriteBranch(h.Branch, treeDigest); err != nil {
		return "", fmt.Errorf("repository: advancing branch %s: %w", h.Branch, err)
	}
	if _, err := r.cat.Insert(ctx, catalog.Snapshot{
		Hash:    treeDigest,
		Branch:  h.Branch,
		Label:   label,
		Message: message,
		User:    user,
	}); err != nil {
		return "", err
	}

	r.metrics.CatalogRowsTotal.Inc()

	return treeDigest, nil
}

// CreateBranch creates a new branch pointing at fromDigest (or HEAD's
// current snapshot if fromDigest is empty).
func (r *Repository) CreateBranch(name, fromDigest string) error {
	if fromDigest == "" {
		current, err := r.CurrentSnapshotHash()
		if err != nil {
			return err
		}
		fromDigest = current
	}
	return r.refs.WriteBranch(name, fromDigest)
}

// ListBranches returns every branch name.
func (r *Repository) ListBranches() ([]string, error) {
	return r.refs.ListBranches()
}

// ListSnapshots returns every recorded snapshot.
func (r *Repository) ListSnapshots(ctx context.Context) ([]catalog.Snapshot, error) {
	return r.cat.List(ctx)
}

// ListSnapshotsByBranch returns every snapshot recorded against branch.
func (r *Repository) ListSnapshotsByBranch(ctx context.Context, branch string) ([]catalog.Snapshot, error) {
	return r.cat.ListByBranch(ctx, branch)
}

// IsDirty reports whether the working directory differs from the
// snapshot HEAD currently resolves to.
func (r *Repository) IsDirty() (bool, error) {
	current, err := r.CurrentSnapshotHash()
	if err != nil {
		return false, err
	}
	working, err := r.serializer.TreeHashOnly(r.root)
	if err != nil {
		return false, err
	}
	return working != current, nil
}

// Checkout rebuilds the working directory to match target, which may
// be a branch name or a full or unambiguous partial digest. Refuses to
// run if the working directory has unsaved changes, unless force is
// true. When newBranch is non-empty, a branch by that name is created
// at target's resolved digest first, and HEAD attaches to newBranch
// rather than to target.
func (r *Repository) Checkout(ctx context.Context, target string, force bool, newBranch string) error {
	start := time.Now()
	err := r.checkoutTo(ctx, target, force, newBranch)
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.metrics.RecordOperation("checkout", status, time.Since(start).Seconds())
	return err
}

func (r *Repository) checkoutTo(ctx context.Context, target string, force bool, newBranch string) error {
	if !force {
		dirty, err := r.IsDirty()
		if err != nil {
			return err
		}
		if dirty {
			return ErrDirtyDirectory
		}
	}

	resolvedDigest := target
	detached := true
	branchName := ""

	if branches, err := r.refs.ListBranches(); err == nil {
		for _, b := range branches {
			if b == target {
				d, err := r.refs.ReadBranch(target)
				if err != nil {
					return err
				}
				resolvedDigest = d
				detached = false
				branchName = target
				break
			}
		}
	}

	if detached {
		if normalized := digest.Normalize(target); digest.Valid(normalized) {
			resolvedDigest = normalized
		} else {
			resolved, err := r.ResolvePartial(ctx, target)
			if err != nil {
				return err
			}
			resolvedDigest = resolved
		}
	}

	if newBranch != "" {
		if err := r.CreateBranch(newBranch, resolvedDigest); err != nil {
			return err
		}
		branchName = newBranch
	}

	if err := r.checkout.Checkout(r.root, resolvedDigest); err != nil {
		return err
	}

	if branchName != "" {
		return r.refs.WriteHEAD(branchName)
	}
	return r.refs.WriteHEADDetached(resolvedDigest)
}

// ResolvePartial resolves a case-insensitive digest prefix against the
// set of digests recorded in the snapshot catalog, returning
// InvalidHashError if it matches zero or more than one.
func (r *Repository) ResolvePartial(ctx context.Context, prefix string) (string, error) {
	prefix = digest.Normalize(prefix)

	snapshots, err := r.cat.List(ctx)
	if err != nil {
		return "", err
	}

	seen := make(map[string]bool)
	var candidates []string
	for _, s := range snapshots {
		h := digest.Normalize(s.Hash)
		if strings.HasPrefix(h, prefix) && !seen[h] {
			seen[h] = true
			candidates = append(candidates, h)
		}
	}

	if len(candidates) != 1 {
		return "", &InvalidHashError{Prefix: prefix, Candidates: candidates}
	}
	return candidates[0], nil
}

// Close releases any resources the repository holds open. branchback
// opens and releases its catalog connection per call, so there is
// nothing to release here beyond satisfying callers that expect a
// Close method.
func (r *Repository) Close() error {
	return nil
}
