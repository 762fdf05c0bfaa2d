// Package catalog implements the SnapshotCatalog: an append-only,
// SQLite-backed log of every snapshot taken in a repository, recording
// the branch, optional label and message, author, and timestamp
// alongside the tree digest it points at.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	hash      TEXT NOT NULL,
	branch    TEXT NOT NULL,
	label     TEXT,
	message   TEXT,
	user      TEXT,
	timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Snapshot is one row of the catalog.
type Snapshot struct {
	ID        int64
	Hash      string
	Branch    string
	Label     string
	Message   string
	User      string
	Timestamp time.Time
}

// Catalog is a handle to the snapshot database file. Every method opens
// its own connection and releases it before returning, matching the
// single-writer, single-process assumption this store is built for —
// there is no long-lived pool to manage or leak.
type Catalog struct {
	path string
}

// New returns a Catalog backed by the sqlite file at path.
func New(path string) *Catalog {
	return &Catalog{path: path}
}

func (c *Catalog) open() (*sql.DB, error) {
	db, err := sql.Open("sqlite", c.path)
	if err != nil {
		return nil, fmt.Errorf("catalog: opening %s: %w", c.path, err)
	}
	return db, nil
}

// Init creates the snapshots table if it does not already exist.
func (c *Catalog) Init(ctx context.Context) error {
	db, err := c.open()
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("catalog: creating schema: %w", err)
	}
	return nil
}

// Insert appends a new snapshot row and returns its assigned id.
func (c *Catalog) Insert(ctx context.Context, s Snapshot) (int64, error) {
	db, err := c.open()
	if err != nil {
		return 0, err
	}
	defer db.Close()

	result, err := db.ExecContext(ctx, `
		INSERT INTO snapshots (hash, branch, label, message, user, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.Hash, s.Branch, nullable(s.Label), nullable(s.Message), s.User, timestampOrNow(s.Timestamp))
	if err != nil {
		return 0, fmt.Errorf("catalog: inserting snapshot: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("catalog: reading inserted id: %w", err)
	}
	return id, nil
}

// List returns every snapshot, ordered by insertion order.
func (c *Catalog) List(ctx context.Context) ([]Snapshot, error) {
	db, err := c.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `
		SELECT id, hash, branch, label, message, user, timestamp
		FROM snapshots
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("catalog: listing snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var s Snapshot
		var label, message, user sql.NullString
		if err := rows.Scan(&s.ID, &s.Hash, &s.Branch, &label, &message, &user, &s.Timestamp); err != nil {
			return nil, fmt.Errorf("catalog: scanning snapshot row: %w", err)
		}
		s.Label = label.String
		s.Message = message.String
		s.User = user.String
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterating snapshot rows: %w", err)
	}
	return snapshots, nil
}

// ListByBranch returns every snapshot recorded against branch, ordered
// by insertion order.
func (c *Catalog) ListByBranch(ctx context.Context, branch string) ([]Snapshot, error) {
	all, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	var filtered []Snapshot
	for _, s := range all {
		if s.Branch == branch {
			filtered = append(filtered, s)
		}
	}
	return filtered, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func timestampOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
