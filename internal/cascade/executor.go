package cascade

import (
	"context"
	"fmt"
	"log/slog"
	"path"

	"linktidy/internal/linkindex"
	"linktidy/internal/links"
	"linktidy/internal/vault"
)

// Executor consumes a completed rename map: for each entry it rewrites every
// inbound link across the tree, fixes the moved document's own links,
// performs the physical move, and prunes folders the move emptied.
type Executor struct {
	Vault  *vault.FS
	Index  *linkindex.Index
	Policy FolderPolicy
	Logger *slog.Logger

	PruneEmpty           bool
	UpdateMovedNoteLinks bool
}

// RunResult aggregates what one cascade did.
type RunResult struct {
	Moved          int
	DocsPatched    int
	LinksRewritten int
	Errors         int
}

// Run drains the cascade's rename map in insertion order. Per-entry failures
// are logged and counted; they never abort the remaining entries.
func (e *Executor) Run(ctx context.Context, cc *Context) (*RunResult, error) {
	m := cc.Map()
	res := &RunResult{}
	for {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}
		pair, ok := m.First()
		if !ok {
			return res, nil
		}
		if err := e.applyPair(cc, pair.Old, pair.New, res); err != nil {
			e.Logger.Warn("cascade: entry failed",
				slog.String("old", pair.Old),
				slog.String("new", pair.New),
				slog.String("error", err.Error()))
			res.Errors++
		}
		m.Remove(pair.Old)
	}
}

func (e *Executor) applyPair(cc *Context, oldPath, newPath string, res *RunResult) error {
	m := cc.Map()

	// Locate the live document: still at its old path, or already moved by
	// an earlier step.
	livePath := ""
	switch {
	case e.Vault.Exists(oldPath):
		livePath = oldPath
	case e.Vault.Exists(newPath):
		livePath = newPath
	default:
		e.Logger.Warn("cascade: document missing, skipping",
			slog.String("old", oldPath), slog.String("new", newPath))
		return nil
	}

	// Rewrite every inbound link, one batched patch per referencing
	// document.
	groups, err := e.Index.BacklinksOf(oldPath)
	if err != nil {
		return fmt.Errorf("backlinks of %s: %w", oldPath, err)
	}
	for _, g := range groups {
		if g.Source == oldPath || g.Source == newPath {
			continue // the moved document's own links are handled below
		}
		n, err := e.patchReferrer(m, g.Source, oldPath, newPath)
		if err != nil {
			// A missing or malformed backlink holder is isolated to that
			// one document.
			e.Logger.Warn("cascade: referrer not patched",
				slog.String("source", g.Source),
				slog.String("error", err.Error()))
			res.Errors++
			continue
		}
		if n > 0 {
			res.DocsPatched++
			res.LinksRewritten += n
		}
	}

	// The moved document's own references.
	kind := vault.KindOf(oldPath)
	switch kind {
	case vault.KindCanvas:
		if n, err := e.rewriteCanvas(m, livePath); err != nil {
			e.Logger.Warn("cascade: canvas rewrite failed",
				slog.String("path", livePath), slog.String("error", err.Error()))
			res.Errors++
		} else {
			res.LinksRewritten += n
		}
	case vault.KindNote:
		if e.UpdateMovedNoteLinks {
			n, err := e.rewriteMovedNote(m, livePath, oldPath, newPath)
			if err != nil {
				e.Logger.Warn("cascade: moved-note rewrite failed",
					slog.String("path", livePath), slog.String("error", err.Error()))
				res.Errors++
			} else {
				res.LinksRewritten += n
			}
		}
	}

	// Physical move, if still pending.
	if e.Vault.Exists(oldPath) {
		if err := e.Vault.Move(oldPath, newPath); err != nil {
			return fmt.Errorf("move %s -> %s: %w", oldPath, newPath, err)
		}
		cc.MarkApplied(oldPath, newPath)
		res.Moved++
		if err := e.Index.RenameFile(oldPath, newPath); err != nil {
			return fmt.Errorf("index rename: %w", err)
		}
		if kind.IsNote() {
			if err := e.Index.ReindexFile(e.Vault, newPath); err != nil {
				e.Logger.Warn("cascade: reindex failed",
					slog.String("path", newPath), slog.String("error", err.Error()))
			}
		}
		if e.PruneEmpty {
			if err := e.Vault.PruneUpward(path.Dir(oldPath)); err != nil {
				e.Logger.Warn("cascade: prune failed",
					slog.String("dir", path.Dir(oldPath)), slog.String("error", err.Error()))
			}
		}
	} else if _, ok := e.Index.LookupFile(oldPath); ok {
		// Moved out-of-band; keep the index in step anyway.
		if err := e.Index.RenameFile(oldPath, newPath); err != nil {
			return fmt.Errorf("index rename: %w", err)
		}
	}
	return nil
}

// patchReferrer rewrites every occurrence in source that resolves to oldPath
// so it points at newPath, as a single batched patch. Returns the number of
// links rewritten.
func (e *Executor) patchReferrer(m *RenameMap, source, oldPath, newPath string) (int, error) {
	if !e.Vault.Exists(source) {
		return 0, fmt.Errorf("referencing document missing: %s", source)
	}
	if vault.KindOf(source) == vault.KindCanvas {
		return e.rewriteCanvas(m, source)
	}

	data, err := e.Vault.Read(source)
	if err != nil {
		return 0, err
	}
	content := string(data)
	resolver := &links.Resolver{Catalog: e.Index}
	rewriter := &links.Rewriter{Final: m.Final}
	sourceFinal := m.Final(source)

	var patches []links.Patch
	for _, occ := range links.Parse(content) {
		resolution := resolver.Resolve(occ, source)
		if !resolution.OK || resolution.Path != oldPath {
			continue
		}
		if p, ok := rewriter.Retarget(occ, resolution, newPath, sourceFinal); ok {
			patches = append(patches, p)
		}
	}
	if len(patches) == 0 {
		return 0, nil
	}
	if err := e.Vault.Write(source, []byte(links.ApplyPatches(content, patches))); err != nil {
		return 0, err
	}
	if err := e.Index.ReindexFile(e.Vault, source); err != nil {
		return 0, err
	}
	return len(patches), nil
}

// rewriteCanvas structurally rewrites a canvas document's file references
// through the rename map.
func (e *Executor) rewriteCanvas(m *RenameMap, canvasPath string) (int, error) {
	data, err := e.Vault.Read(canvasPath)
	if err != nil {
		return 0, err
	}
	out, changed, err := links.RewriteCanvasRefs(data, func(ref string) (string, bool) {
		final := m.Final(vault.NormalizePath(ref))
		if final != vault.NormalizePath(ref) {
			return final, true
		}
		return "", false
	})
	if err != nil {
		return 0, err
	}
	if changed == 0 {
		return 0, nil
	}
	if err := e.Vault.Write(canvasPath, out); err != nil {
		return 0, err
	}
	if err := e.Index.ReindexFile(e.Vault, canvasPath); err != nil {
		return 0, err
	}
	return changed, nil
}

// rewriteMovedNote fixes the moved note's own links: relative targets are
// re-expressed from the new location, and targets that are themselves
// mid-cascade are redirected to their eventual paths. The note is read from
// and written back to livePath; resolution happens from the old path, where
// its links were valid.
func (e *Executor) rewriteMovedNote(m *RenameMap, livePath, oldPath, newPath string) (int, error) {
	data, err := e.Vault.Read(livePath)
	if err != nil {
		return 0, err
	}
	content := string(data)
	resolver := &links.Resolver{Catalog: e.Index}
	rewriter := &links.Rewriter{Final: m.Final}

	var patches []links.Patch
	for _, occ := range links.Parse(content) {
		resolution := resolver.Resolve(occ, oldPath)
		if !resolution.OK {
			continue
		}
		finalTarget := m.Final(resolution.Path)
		relative := links.TargetForm(occ.Target) == links.FormRelative
		if !relative && finalTarget == resolution.Path {
			continue
		}
		if p, ok := rewriter.Retarget(occ, resolution, finalTarget, newPath); ok {
			patches = append(patches, p)
		}
	}
	if len(patches) == 0 {
		return 0, nil
	}
	return len(patches), e.Vault.Write(livePath, []byte(links.ApplyPatches(content, patches)))
}
