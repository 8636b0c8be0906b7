package links

import (
	"path"
	"strings"

	"linktidy/internal/vault"
)

// Catalog is the file-lookup surface the resolver needs. The link index
// implements it with database queries; the index builder implements it with
// in-memory maps over the scanned tree.
type Catalog interface {
	// LookupFile reports whether a file exists at the exact vault-relative
	// path, and its kind.
	LookupFile(path string) (vault.Kind, bool)
	// NotesNamed returns the paths of all notes whose basename (without
	// extension, case-insensitive) matches name.
	NotesNamed(name string) []string
	// AttachmentsNamed returns the paths of all attachments whose filename
	// (with extension, case-insensitive) matches name.
	AttachmentsNamed(name string) []string
}

// Resolution is the outcome of resolving one link target.
type Resolution struct {
	Path    string // vault-relative path of the target file
	Kind    vault.Kind
	Subpath string
	OK      bool // false when no file matches
}

// Resolver turns a raw link target plus its source document into a target
// file reference, using the same shortest-path semantics link search uses:
// relative to the source folder first, then vault-absolute, then a unique
// basename match (notes before attachments).
type Resolver struct {
	Catalog Catalog
}

// Resolve resolves the target of an occurrence from the given source
// document. It has no side effects.
func (r *Resolver) Resolve(occ Occurrence, sourcePath string) Resolution {
	res := r.ResolveTarget(occ.Target, sourcePath)
	res.Subpath = occ.Subpath
	return res
}

// ResolveTarget resolves a bare target string (subpath already split off)
// from the given source document.
func (r *Resolver) ResolveTarget(target, sourcePath string) Resolution {
	if target == "" {
		// Self link ("[[#Heading]]").
		kind, ok := r.Catalog.LookupFile(sourcePath)
		return Resolution{Path: sourcePath, Kind: kind, OK: ok}
	}

	// Relative to the source folder.
	if strings.HasPrefix(target, "./") || strings.HasPrefix(target, "../") {
		joined := vault.NormalizePath(path.Join(path.Dir(sourcePath), target))
		if strings.HasPrefix(joined, "..") {
			return Resolution{}
		}
		return r.lookup(joined)
	}

	// Vault-absolute ("/sub/Note.md").
	if strings.HasPrefix(target, "/") {
		return r.lookup(strings.TrimPrefix(target, "/"))
	}

	// Plain path: try relative to the source folder first (shortest-path
	// semantics), then from the vault root.
	if strings.Contains(target, "/") {
		if res := r.lookup(vault.NormalizePath(path.Join(path.Dir(sourcePath), target))); res.OK {
			return res
		}
		return r.lookup(vault.NormalizePath(target))
	}

	// Bare name: sibling file first, then a unique basename match anywhere
	// in the tree.
	if res := r.lookup(vault.NormalizePath(path.Join(path.Dir(sourcePath), target))); res.OK {
		return res
	}
	if notes := r.Catalog.NotesNamed(noteName(target)); len(notes) == 1 {
		kind, _ := r.Catalog.LookupFile(notes[0])
		return Resolution{Path: notes[0], Kind: kind, OK: true}
	}
	if atts := r.Catalog.AttachmentsNamed(strings.ToLower(target)); len(atts) == 1 {
		return Resolution{Path: atts[0], Kind: vault.KindAttachment, OK: true}
	}
	return Resolution{}
}

// lookup checks an exact path, then the path with a ".md" extension added
// (wikilinks usually omit it).
func (r *Resolver) lookup(p string) Resolution {
	if kind, ok := r.Catalog.LookupFile(p); ok {
		return Resolution{Path: p, Kind: kind, OK: true}
	}
	if !strings.HasSuffix(strings.ToLower(p), ".md") {
		if kind, ok := r.Catalog.LookupFile(p + ".md"); ok {
			return Resolution{Path: p + ".md", Kind: kind, OK: true}
		}
	}
	return Resolution{}
}

// noteName normalizes a link target to a note basename key: lowercased,
// ".md" stripped.
func noteName(target string) string {
	lower := strings.ToLower(target)
	return strings.TrimSuffix(lower, ".md")
}
