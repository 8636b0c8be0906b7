package linkindex

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"linktidy/internal/links"
	"linktidy/internal/vault"
)

// BuildStats summarizes an index build.
type BuildStats struct {
	Files int
	Notes int
	Links int
}

// memCatalog is the in-memory file lookup used while building, before the
// tables are populated.
type memCatalog struct {
	kinds map[string]vault.Kind
	notes map[string][]string // basename key -> paths
	atts  map[string][]string // filename key -> paths
}

func newMemCatalog() *memCatalog {
	return &memCatalog{
		kinds: make(map[string]vault.Kind),
		notes: make(map[string][]string),
		atts:  make(map[string][]string),
	}
}

func (c *memCatalog) add(path string, kind vault.Kind) {
	c.kinds[path] = kind
	key := nameKey(path, kind)
	if kind.IsNote() {
		c.notes[key] = append(c.notes[key], path)
	} else {
		c.atts[key] = append(c.atts[key], path)
	}
}

func (c *memCatalog) LookupFile(path string) (vault.Kind, bool) {
	k, ok := c.kinds[path]
	return k, ok
}

func (c *memCatalog) NotesNamed(name string) []string       { return c.notes[name] }
func (c *memCatalog) AttachmentsNamed(name string) []string { return c.atts[name] }

// Build rescans the whole vault and rebuilds the index from scratch. ignore,
// when non-nil, excludes files from indexing. Note bodies are read and
// parsed concurrently; resolution and insertion run serially over the
// in-memory catalog so resolution sees the complete tree.
func (ix *Index) Build(ctx context.Context, v *vault.FS, ignore func(string) bool) (*BuildStats, error) {
	var paths []string
	err := v.Walk("", func(p string) error {
		if ignore != nil && ignore(p) {
			return nil
		}
		paths = append(paths, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	cat := newMemCatalog()
	for _, p := range paths {
		cat.add(p, vault.KindOf(p))
	}

	// Parse note bodies concurrently.
	type parsed struct {
		occs  []links.Occurrence
		mtime int64
	}
	parsedByPath := make(map[string]*parsed, len(paths))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, p := range paths {
		p := p
		kind := vault.KindOf(p)
		if !kind.IsNote() {
			continue
		}
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			data, err := v.Read(p)
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			var occs []links.Occurrence
			if kind == vault.KindCanvas {
				occs = canvasOccurrences(data)
			} else {
				occs = links.Parse(string(data))
			}
			mu.Lock()
			parsedByPath[p] = &parsed{occs: occs, mtime: fileMtime(v, p)}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	resolver := &links.Resolver{Catalog: cat}

	tx, err := ix.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM links`); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(`DELETE FROM files`); err != nil {
		return nil, err
	}

	stats := &BuildStats{}
	for _, p := range paths {
		p := p
		kind := vault.KindOf(p)
		var mtime int64
		if pr := parsedByPath[p]; pr != nil {
			mtime = pr.mtime
		} else {
			mtime = fileMtime(v, p)
		}
		if _, err := tx.Exec(
			`INSERT INTO files (path, kind, name, mtime) VALUES (?, ?, ?, ?)`,
			p, kind.String(), nameKey(p, kind), mtime,
		); err != nil {
			return nil, err
		}
		stats.Files++
		if kind.IsNote() {
			stats.Notes++
		}

		pr := parsedByPath[p]
		if pr == nil {
			continue
		}
		for _, occ := range pr.occs {
			res := resolver.Resolve(occ, p)
			if err := insertLink(tx, p, occ, res); err != nil {
				return nil, err
			}
			stats.Links++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return stats, nil
}

// dbExec is satisfied by both *sql.DB and *sql.Tx.
type dbExec interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertLink(tx dbExec, source string, occ links.Occurrence, res links.Resolution) error {
	var resolved any
	if res.OK {
		resolved = res.Path
	}
	embed := 0
	if occ.Embed {
		embed = 1
	}
	_, err := tx.Exec(
		`INSERT INTO links (source_path, start_offset, end_offset, style, embed, target, subpath, alias, raw, resolved_path)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		source, occ.Start, occ.End, occ.Style.String(), embed,
		occ.Target, occ.Subpath, occ.Alias, occ.Raw, resolved,
	)
	return err
}

// canvasOccurrences maps a canvas board's structured file references onto
// link occurrences. Offsets are zero: canvas documents are rewritten
// structurally, never by text patch.
func canvasOccurrences(data []byte) []links.Occurrence {
	refs, err := links.ParseCanvasRefs(data)
	if err != nil {
		return nil
	}
	occs := make([]links.Occurrence, 0, len(refs))
	for _, ref := range refs {
		occs = append(occs, links.Occurrence{
			Style:  links.StyleMarkdown,
			Embed:  true,
			Target: ref,
			Raw:    ref,
		})
	}
	return occs
}

func fileMtime(v *vault.FS, rel string) int64 {
	info, err := os.Stat(filepath.Join(v.Root(), filepath.FromSlash(rel)))
	if err != nil {
		return 0
	}
	return info.ModTime().Unix()
}

// styleFromString parses a style name stored in the links table.
func styleFromString(s string) links.Style {
	if s == "wikilink" {
		return links.StyleWiki
	}
	return links.StyleMarkdown
}
