// Package linkindex maintains the SQLite-backed link and backlink index the
// consistency engine queries: every vault file, every link occurrence, and
// each occurrence's resolved target.
package linkindex

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"linktidy/internal/vault"
)

const (
	dataDirName = ".linktidy"
	dbFileName  = "index.sqlite"
)

// ErrNoIndex is returned when an operation needs an index that has not been
// built yet.
var ErrNoIndex = errors.New("index not found: run 'linktidy index' first")

// Index is a handle on the vault's link index.
type Index struct {
	db *sql.DB
}

func dbPath(vaultRoot string) string {
	return filepath.Join(vaultRoot, dataDirName, dbFileName)
}

// Open opens (creating if necessary) the index for the vault rooted at
// vaultRoot.
func Open(vaultRoot string) (*Index, error) {
	dir := filepath.Join(vaultRoot, dataDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s", dbPath(vaultRoot)))
	if err != nil {
		return nil, err
	}
	ix := &Index{db: db}
	if err := ix.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return ix, nil
}

// OpenExisting opens the index for vaultRoot, failing with ErrNoIndex when
// it has never been built.
func OpenExisting(vaultRoot string) (*Index, error) {
	if _, err := os.Stat(dbPath(vaultRoot)); os.IsNotExist(err) {
		return nil, ErrNoIndex
	}
	return Open(vaultRoot)
}

// Close releases the database handle.
func (ix *Index) Close() error { return ix.db.Close() }

func (ix *Index) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS files (
			path  TEXT PRIMARY KEY,
			kind  TEXT NOT NULL,
			name  TEXT NOT NULL,
			mtime INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_files_kind_name ON files(kind, name);`,
		`CREATE TABLE IF NOT EXISTS links (
			id            INTEGER PRIMARY KEY,
			source_path   TEXT NOT NULL,
			start_offset  INTEGER NOT NULL,
			end_offset    INTEGER NOT NULL,
			style         TEXT NOT NULL,
			embed         INTEGER NOT NULL,
			target        TEXT NOT NULL,
			subpath       TEXT NOT NULL DEFAULT '',
			alias         TEXT NOT NULL DEFAULT '',
			raw           TEXT NOT NULL,
			resolved_path TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_links_source ON links(source_path);`,
		`CREATE INDEX IF NOT EXISTS idx_links_resolved ON links(resolved_path);`,
	}
	for _, stmt := range stmts {
		if _, err := ix.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// nameKey is the lookup key stored in files.name: for notes the lowercased
// basename without extension, for attachments the lowercased filename.
func nameKey(path string, kind vault.Kind) string {
	base := strings.ToLower(filepath.Base(path))
	if kind.IsNote() {
		return strings.TrimSuffix(strings.TrimSuffix(base, ".md"), ".canvas")
	}
	return base
}
