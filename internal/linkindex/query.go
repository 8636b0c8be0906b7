package linkindex

import (
	"database/sql"
	"sort"

	"linktidy/internal/links"
	"linktidy/internal/vault"
)

// FileInfo describes one indexed file.
type FileInfo struct {
	Path string
	Kind vault.Kind
}

// Link is one indexed occurrence together with its resolved target ("" when
// unresolved).
type Link struct {
	links.Occurrence
	Source   string
	Resolved string
}

// BacklinkGroup is the set of occurrences in one source document that point
// at a given target.
type BacklinkGroup struct {
	Source      string
	Occurrences []Link
}

// Files returns every indexed file sorted by path.
func (ix *Index) Files() ([]FileInfo, error) {
	rows, err := ix.db.Query(`SELECT path, kind FROM files ORDER BY path`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []FileInfo
	for rows.Next() {
		var fi FileInfo
		var kind string
		if err := rows.Scan(&fi.Path, &kind); err != nil {
			return nil, err
		}
		fi.Kind = vault.KindFromString(kind)
		out = append(out, fi)
	}
	return out, rows.Err()
}

// Notes returns every indexed link-capable document sorted by path.
func (ix *Index) Notes() ([]FileInfo, error) {
	all, err := ix.Files()
	if err != nil {
		return nil, err
	}
	notes := all[:0]
	for _, fi := range all {
		if fi.Kind.IsNote() {
			notes = append(notes, fi)
		}
	}
	return notes, nil
}

// LookupFile implements links.Catalog.
func (ix *Index) LookupFile(path string) (vault.Kind, bool) {
	var kind string
	err := ix.db.QueryRow(`SELECT kind FROM files WHERE path = ?`, path).Scan(&kind)
	if err != nil {
		return 0, false
	}
	return vault.KindFromString(kind), true
}

// NotesNamed implements links.Catalog.
func (ix *Index) NotesNamed(name string) []string {
	return ix.pathsNamed(name, true)
}

// AttachmentsNamed implements links.Catalog.
func (ix *Index) AttachmentsNamed(name string) []string {
	return ix.pathsNamed(name, false)
}

func (ix *Index) pathsNamed(name string, note bool) []string {
	op := "="
	if note {
		op = "!="
	}
	rows, err := ix.db.Query(
		`SELECT path FROM files WHERE kind `+op+` 'attachment' AND name = ? ORDER BY path`, name)
	if err != nil {
		return nil
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil
		}
		out = append(out, p)
	}
	return out
}

// LinksOf returns the ordered outgoing link occurrences of a document.
func (ix *Index) LinksOf(source string) ([]Link, error) {
	rows, err := ix.db.Query(
		`SELECT start_offset, end_offset, style, embed, target, subpath, alias, raw, resolved_path
		 FROM links WHERE source_path = ? ORDER BY start_offset`, source)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLinks(rows, source)
}

// BacklinksOf returns, for each source document referencing target, that
// document's occurrences pointing at it. Groups are sorted by source path.
func (ix *Index) BacklinksOf(target string) ([]BacklinkGroup, error) {
	rows, err := ix.db.Query(
		`SELECT source_path, start_offset, end_offset, style, embed, target, subpath, alias, raw, resolved_path
		 FROM links WHERE resolved_path = ? ORDER BY source_path, start_offset`, target)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	grouped := make(map[string][]Link)
	for rows.Next() {
		var l Link
		var style string
		var embed int
		var resolved sql.NullString
		if err := rows.Scan(&l.Source, &l.Start, &l.End, &style, &embed,
			&l.Target, &l.Subpath, &l.Alias, &l.Raw, &resolved); err != nil {
			return nil, err
		}
		l.Style = styleFromString(style)
		l.Embed = embed != 0
		l.Resolved = resolved.String
		grouped[l.Source] = append(grouped[l.Source], l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sources := make([]string, 0, len(grouped))
	for s := range grouped {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	out := make([]BacklinkGroup, 0, len(sources))
	for _, s := range sources {
		out = append(out, BacklinkGroup{Source: s, Occurrences: grouped[s]})
	}
	return out, nil
}

func scanLinks(rows *sql.Rows, source string) ([]Link, error) {
	var out []Link
	for rows.Next() {
		var l Link
		var style string
		var embed int
		var resolved sql.NullString
		if err := rows.Scan(&l.Start, &l.End, &style, &embed,
			&l.Target, &l.Subpath, &l.Alias, &l.Raw, &resolved); err != nil {
			return nil, err
		}
		l.Source = source
		l.Style = styleFromString(style)
		l.Embed = embed != 0
		l.Resolved = resolved.String
		out = append(out, l)
	}
	return out, rows.Err()
}

// RenameFile records a physical move: the file row, its outgoing link
// sources, and every resolved target pointing at it.
func (ix *Index) RenameFile(oldPath, newPath string) error {
	kind := vault.KindOf(newPath)
	tx, err := ix.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`UPDATE files SET path = ?, name = ?, kind = ? WHERE path = ?`,
		newPath, nameKey(newPath, kind), kind.String(), oldPath); err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE links SET source_path = ? WHERE source_path = ?`,
		newPath, oldPath); err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE links SET resolved_path = ? WHERE resolved_path = ?`,
		newPath, oldPath); err != nil {
		return err
	}
	return tx.Commit()
}

// RemoveFile drops a file from the index. Links that resolved to it become
// unresolved; its own outgoing links are dropped.
func (ix *Index) RemoveFile(path string) error {
	tx, err := ix.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM files WHERE path = ?`, path); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM links WHERE source_path = ?`, path); err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE links SET resolved_path = NULL WHERE resolved_path = ?`, path); err != nil {
		return err
	}
	return tx.Commit()
}

// AddFile registers a new file without parsing it (attachments, copies).
func (ix *Index) AddFile(path string) error {
	kind := vault.KindOf(path)
	_, err := ix.db.Exec(
		`INSERT INTO files (path, kind, name, mtime) VALUES (?, ?, ?, 0)
		 ON CONFLICT(path) DO NOTHING`,
		path, kind.String(), nameKey(path, kind))
	return err
}

// ReindexFile re-reads one document from the vault and replaces its outgoing
// links, resolving against the live index.
func (ix *Index) ReindexFile(v *vault.FS, path string) error {
	kind := vault.KindOf(path)
	data, err := v.Read(path)
	if err != nil {
		return err
	}
	var occs []links.Occurrence
	if kind == vault.KindCanvas {
		occs = canvasOccurrences(data)
	} else if kind == vault.KindNote {
		occs = links.Parse(string(data))
	}
	// Resolve before opening the write transaction: resolution queries the
	// live tables.
	resolver := &links.Resolver{Catalog: ix}
	resolutions := make([]links.Resolution, len(occs))
	for i, occ := range occs {
		resolutions[i] = resolver.Resolve(occ, path)
	}

	tx, err := ix.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(
		`INSERT INTO files (path, kind, name, mtime) VALUES (?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET mtime = excluded.mtime`,
		path, kind.String(), nameKey(path, kind), fileMtime(v, path)); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM links WHERE source_path = ?`, path); err != nil {
		return err
	}
	for i, occ := range occs {
		if err := insertLink(tx, path, occ, resolutions[i]); err != nil {
			return err
		}
	}
	return tx.Commit()
}
