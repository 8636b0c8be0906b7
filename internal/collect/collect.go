// Package collect moves a note's referenced attachments into the note's
// attachment folder, resolving sharing and name collisions so no link ever
// breaks and no attachment is lost or wrongly duplicated.
package collect

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"path"

	"linktidy/internal/cascade"
	"linktidy/internal/linkindex"
	"linktidy/internal/links"
	"linktidy/internal/vault"
)

// ErrMissingNoteID is returned in content-addressed mode for a note whose
// frontmatter carries no stable identifier; that note's collection is
// skipped.
var ErrMissingNoteID = errors.New("note has no stable identifier")

// Options are the two conflict-resolution toggles.
type Options struct {
	// DeleteExisting deletes the source attachment when the computed target
	// is occupied, instead of renaming to a unique sibling.
	DeleteExisting bool
	// ContentAddressed derives target filenames from a content hash and the
	// note's stable identifier.
	ContentAddressed bool
}

// Outcome is what the conflict resolver decided for one attachment.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeMove
	OutcomeCopy
	OutcomeRenameUnique
	OutcomeDeleteSource
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMove:
		return "move"
	case OutcomeCopy:
		return "copy"
	case OutcomeRenameUnique:
		return "rename-to-unique"
	case OutcomeDeleteSource:
		return "delete-source"
	default:
		return "no-op"
	}
}

// Collector decides and executes attachment moves for one note at a time.
// Redirects it produces are folded into the cascade context's rename map so
// later notes referencing the same originals still find them.
type Collector struct {
	Vault   *vault.FS
	Index   *linkindex.Index
	Policy  cascade.FolderPolicy
	Cascade *cascade.Context
	Logger  *slog.Logger
	Ignore  func(string) bool
	Opts    Options

	PruneEmpty bool
}

// NoteResult aggregates one note's collection.
type NoteResult struct {
	Moved          int
	Copied         int
	Deleted        int
	Renamed        int
	LinksRewritten int
}

// CollectNote processes every attachment the note references. The note's
// links are rewritten as one batched patch at the end; the note is either
// fully processed or untouched.
func (c *Collector) CollectNote(notePath string) (*NoteResult, error) {
	notePath = vault.NormalizePath(notePath)
	data, err := c.Vault.Read(notePath)
	if err != nil {
		return nil, err
	}
	content := string(data)

	noteID := ""
	if c.Opts.ContentAddressed {
		if noteID = links.NoteID(content); noteID == "" {
			return nil, fmt.Errorf("%s: %w", notePath, ErrMissingNoteID)
		}
	}

	folder := c.Policy.AttachmentFolderFor(notePath)
	resolver := &links.Resolver{Catalog: c.Index}
	m := c.Cascade.Map()
	rewriter := &links.Rewriter{Final: m.Final}

	// Resolve every occurrence before anything moves: a repeated reference
	// to the same attachment must resolve against the pre-move tree, not the
	// path an earlier occurrence already vacated.
	type ref struct {
		occ links.Occurrence
		res links.Resolution
	}
	var refs []ref
	for _, occ := range links.Parse(content) {
		resolution := resolver.Resolve(occ, notePath)
		if !resolution.OK || resolution.Kind.IsNote() {
			continue
		}
		refs = append(refs, ref{occ, resolution})
	}

	res := &NoteResult{}
	var patches []links.Patch
	pruneDirs := make(map[string]bool)
	placed := make(map[string]string) // resolved source path -> its path after this pass

	for _, w := range refs {
		newPath, decided := placed[w.res.Path]
		if !decided {
			att := m.Final(w.res.Path)
			if c.Ignore != nil && c.Ignore(att) {
				placed[w.res.Path] = w.res.Path
				continue
			}
			target, err := c.targetFor(att, folder, noteID)
			if err != nil {
				c.Logger.Warn("collect: target not computed",
					slog.String("attachment", att), slog.String("error", err.Error()))
				placed[w.res.Path] = w.res.Path
				continue
			}
			var outcome Outcome
			newPath, outcome, err = c.resolveConflict(notePath, att, target)
			if err != nil {
				c.Logger.Warn("collect: attachment skipped",
					slog.String("attachment", att), slog.String("error", err.Error()))
				placed[w.res.Path] = w.res.Path
				continue
			}
			switch outcome {
			case OutcomeMove:
				res.Moved++
				pruneDirs[path.Dir(att)] = true
			case OutcomeCopy:
				res.Copied++
			case OutcomeRenameUnique:
				res.Renamed++
				pruneDirs[path.Dir(att)] = true
			case OutcomeDeleteSource:
				res.Deleted++
				pruneDirs[path.Dir(att)] = true
			}
			if newPath == "" {
				// No action taken, but the attachment may already sit at a
				// path the link text does not spell out yet.
				newPath = att
			}
			placed[w.res.Path] = newPath
		}
		if newPath == w.res.Path {
			continue
		}
		if p, ok := rewriter.Retarget(w.occ, w.res, newPath, notePath); ok {
			patches = append(patches, p)
		}
	}

	if len(patches) > 0 {
		if err := c.Vault.Write(notePath, []byte(links.ApplyPatches(content, patches))); err != nil {
			return nil, err
		}
		if err := c.Index.ReindexFile(c.Vault, notePath); err != nil {
			return nil, err
		}
		res.LinksRewritten = len(patches)
	}

	if c.PruneEmpty {
		for dir := range pruneDirs {
			if dir == "." || dir == folder {
				continue
			}
			_ = c.Vault.PruneUpward(dir)
		}
	}
	return res, nil
}

// targetFor computes the attachment's path inside the note's attachment
// folder: the positional policy keeps the filename; content-addressed mode
// derives it from the content hash and the note's identifier.
func (c *Collector) targetFor(att, folder, noteID string) (string, error) {
	if !c.Opts.ContentAddressed {
		return folder + "/" + path.Base(att), nil
	}
	data, err := c.Vault.Read(att)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%s/%s-%s%s", folder, noteID, hex.EncodeToString(sum[:])[:12], path.Ext(att)), nil
}

// resolveConflict applies the sharing/collision outcome table to one
// attachment and executes the decision. It returns the path the note's link
// must point at afterwards ("" to leave the link alone).
func (c *Collector) resolveConflict(notePath, att, target string) (string, Outcome, error) {
	if att == target || path.Dir(att) == path.Dir(target) {
		return "", OutcomeNone, nil // already collected
	}

	shared, err := c.sharedOutside(att, notePath)
	if err != nil {
		return "", OutcomeNone, err
	}
	m := c.Cascade.Map()
	occupied := func(p string) bool {
		if m.Claimed(p) {
			return true
		}
		if _, pending := m.Lookup(p); pending {
			return false
		}
		return c.Vault.Exists(p)
	}
	collision := occupied(target)

	switch {
	case !shared && !collision:
		if err := c.Vault.Move(att, target); err != nil {
			return "", OutcomeNone, err
		}
		if err := c.Index.RenameFile(att, target); err != nil {
			return "", OutcomeNone, err
		}
		m.Add(att, target)
		c.Cascade.MarkApplied(att, target)
		return target, OutcomeMove, nil

	case !shared && collision && c.Opts.DeleteExisting:
		// The occupant survives; the source goes away.
		if err := c.Vault.Delete(att); err != nil {
			return "", OutcomeNone, err
		}
		if err := c.Index.RemoveFile(att); err != nil {
			return "", OutcomeNone, err
		}
		m.Add(att, target)
		return target, OutcomeDeleteSource, nil

	case !shared && collision:
		unique := vault.UniqueSibling(target, occupied)
		if err := c.Vault.Move(att, unique); err != nil {
			return "", OutcomeNone, err
		}
		if err := c.Index.RenameFile(att, unique); err != nil {
			return "", OutcomeNone, err
		}
		// Both the move and the redirect from the intended target, so later
		// notes computing the same target still find the content.
		m.Add(att, unique)
		m.Add(target, unique)
		c.Cascade.MarkApplied(att, unique)
		return unique, OutcomeRenameUnique, nil

	case shared && !collision:
		// Other notes still reference the original; leave it in place.
		if err := c.Vault.Copy(att, target); err != nil {
			return "", OutcomeNone, err
		}
		if err := c.Index.AddFile(target); err != nil {
			return "", OutcomeNone, err
		}
		return target, OutcomeCopy, nil

	case shared && collision && !c.Opts.DeleteExisting:
		// Park the original under a unique sibling of the target, then
		// restore a copy at its old path so other referencing notes stay
		// valid.
		unique := vault.UniqueSibling(target, occupied)
		if err := c.Vault.Move(att, unique); err != nil {
			return "", OutcomeNone, err
		}
		if err := c.Vault.Copy(unique, att); err != nil {
			return "", OutcomeNone, err
		}
		if err := c.Index.AddFile(unique); err != nil {
			return "", OutcomeNone, err
		}
		m.Add(target, unique)
		c.Cascade.MarkApplied(att, unique)
		return unique, OutcomeRenameUnique, nil

	default: // shared && collision && DeleteExisting
		// The target already holds what other linkers need; the shared
		// original stays untouched.
		return "", OutcomeNone, nil
	}
}

// sharedOutside reports whether any document other than exclude references
// the attachment.
func (c *Collector) sharedOutside(att, exclude string) (bool, error) {
	groups, err := c.Index.BacklinksOf(att)
	if err != nil {
		return false, err
	}
	for _, g := range groups {
		if g.Source != exclude {
			return true, nil
		}
	}
	return false, nil
}
