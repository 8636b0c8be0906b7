package engine

import (
	"context"
	"errors"
	"log/slog"

	"linktidy/internal/collect"
	"linktidy/internal/links"
	"linktidy/internal/vault"
)

// BulkOptions scope a bulk command.
type BulkOptions struct {
	// Doc limits the command to one document; empty means every note in the
	// vault, in lexicographic path order.
	Doc string
	// DryRun computes and counts the rewrites without writing anything.
	DryRun bool
}

// BulkResult aggregates a bulk command over the documents it visited.
type BulkResult struct {
	Docs           int
	DocsChanged    int
	LinksRewritten int
	FilesMoved     int
	Errors         int
}

// scope returns the documents a bulk command runs over. Canvas documents are
// excluded: their references are structural, not markdown syntax.
func (e *Engine) scope(doc string) ([]string, error) {
	if doc != "" {
		doc = vault.NormalizePath(doc)
		if vault.KindOf(doc) != vault.KindNote {
			return nil, errors.New("not a markdown document: " + doc)
		}
		return []string{doc}, nil
	}
	notes, err := e.Index.Notes()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, fi := range notes {
		if fi.Kind != vault.KindNote || e.ignore.Ignored(fi.Path) {
			continue
		}
		out = append(out, fi.Path)
	}
	return out, nil
}

// ConvertWikilinks rewrites wikilink occurrences to markdown-style links
// across the scoped documents.
func (e *Engine) ConvertWikilinks(ctx context.Context, opts BulkOptions) (*BulkResult, error) {
	return e.rewriteEach(ctx, opts, func(rw *links.Rewriter, occ links.Occurrence, res links.Resolution, doc string) (links.Patch, bool) {
		return rw.ToMarkdown(occ, res)
	})
}

// ConvertToRelative re-expresses every resolvable link target relative to its
// document's folder across the scoped documents.
func (e *Engine) ConvertToRelative(ctx context.Context, opts BulkOptions) (*BulkResult, error) {
	return e.rewriteEach(ctx, opts, func(rw *links.Rewriter, occ links.Occurrence, res links.Resolution, doc string) (links.Patch, bool) {
		return rw.ToRelative(occ, res, doc)
	})
}

type patchFunc func(rw *links.Rewriter, occ links.Occurrence, res links.Resolution, doc string) (links.Patch, bool)

// rewriteEach runs one patch rule over every scoped document. Each document
// is rewritten as a single batched patch or left untouched; a per-document
// failure is logged and counted, never fatal. Cancellation is honored between
// documents.
func (e *Engine) rewriteEach(ctx context.Context, opts BulkOptions, fn patchFunc) (*BulkResult, error) {
	docs, err := e.scope(opts.Doc)
	if err != nil {
		return nil, err
	}
	resolver := &links.Resolver{Catalog: e.Index}
	rewriter := &links.Rewriter{Final: e.cascade.Map().Final}
	res := &BulkResult{}

	for _, doc := range docs {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}
		res.Docs++
		data, err := e.Vault.Read(doc)
		if err != nil {
			e.Logger.Warn("bulk: document unreadable",
				slog.String("doc", doc), slog.String("error", err.Error()))
			res.Errors++
			continue
		}
		content := string(data)
		var patches []links.Patch
		for _, occ := range links.Parse(content) {
			resolution := resolver.Resolve(occ, doc)
			if p, ok := fn(rewriter, occ, resolution, doc); ok {
				patches = append(patches, p)
			}
		}
		if len(patches) == 0 {
			continue
		}
		res.DocsChanged++
		res.LinksRewritten += len(patches)
		if opts.DryRun {
			continue
		}
		if err := e.Vault.Write(doc, []byte(links.ApplyPatches(content, patches))); err != nil {
			e.Logger.Warn("bulk: write failed",
				slog.String("doc", doc), slog.String("error", err.Error()))
			res.Errors++
			continue
		}
		if err := e.Index.ReindexFile(e.Vault, doc); err != nil {
			e.Logger.Warn("bulk: reindex failed",
				slog.String("doc", doc), slog.String("error", err.Error()))
			res.Errors++
		}
	}
	return res, nil
}

// CollectAttachments gathers each scoped note's referenced attachments into
// its attachment folder. Collection moves files, so it does not support dry
// runs; a note missing its stable identifier in content-addressed mode is
// skipped and counted as an error.
func (e *Engine) CollectAttachments(ctx context.Context, opts BulkOptions) (*BulkResult, error) {
	docs, err := e.scope(opts.Doc)
	if err != nil {
		return nil, err
	}
	collector := e.collector()
	res := &BulkResult{}

	for _, doc := range docs {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}
		res.Docs++
		nr, err := collector.CollectNote(doc)
		if err != nil {
			if errors.Is(err, collect.ErrMissingNoteID) {
				e.Logger.Warn("collect: note skipped", slog.String("error", err.Error()))
			} else {
				e.Logger.Warn("collect: note failed",
					slog.String("doc", doc), slog.String("error", err.Error()))
			}
			res.Errors++
			continue
		}
		moved := nr.Moved + nr.Copied + nr.Renamed
		res.FilesMoved += moved
		res.LinksRewritten += nr.LinksRewritten
		if moved > 0 || nr.Deleted > 0 || nr.LinksRewritten > 0 {
			res.DocsChanged++
		}
	}
	return res, nil
}

// Reorganize runs the full maintenance pass in a fixed order: wikilinks to
// markdown style, then targets to relative form, then attachment collection,
// then empty-folder pruning.
func (e *Engine) Reorganize(ctx context.Context, opts BulkOptions) (*BulkResult, error) {
	total := &BulkResult{}
	steps := []func(context.Context, BulkOptions) (*BulkResult, error){
		e.ConvertWikilinks,
		e.ConvertToRelative,
		e.CollectAttachments,
	}
	for _, step := range steps {
		r, err := step(ctx, opts)
		if r != nil {
			total.Docs = max(total.Docs, r.Docs)
			total.DocsChanged += r.DocsChanged
			total.LinksRewritten += r.LinksRewritten
			total.FilesMoved += r.FilesMoved
			total.Errors += r.Errors
		}
		if err != nil {
			return total, err
		}
	}
	if e.Cfg.PruneEmptyFolders && !opts.DryRun {
		if _, err := e.PruneEmptyFolders(ctx); err != nil {
			e.Logger.Warn("reorganize: prune failed", slog.String("error", err.Error()))
			total.Errors++
		}
	}
	return total, nil
}

// PruneEmptyFolders removes every folder that contains no files at any depth,
// deepest first. Returns the removed folders.
func (e *Engine) PruneEmptyFolders(ctx context.Context) ([]string, error) {
	empties, err := e.Vault.EmptyFolders(".")
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, dir := range empties {
		select {
		case <-ctx.Done():
			return removed, ctx.Err()
		default:
		}
		if e.ignore.Ignored(dir) {
			continue
		}
		if err := e.Vault.Delete(dir); err != nil {
			// Racing writer dropped a file in; the folder is no longer empty.
			e.Logger.Debug("prune: folder kept", slog.String("dir", dir))
			continue
		}
		removed = append(removed, dir)
	}
	return removed, nil
}

// EnsureResult reports an identifier pass.
type EnsureResult struct {
	Checked int
	Added   int
}

// EnsureIDs gives every markdown note a stable frontmatter identifier,
// writing only the notes that lack one.
func (e *Engine) EnsureIDs(ctx context.Context) (*EnsureResult, error) {
	docs, err := e.scope("")
	if err != nil {
		return nil, err
	}
	res := &EnsureResult{}
	for _, doc := range docs {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}
		res.Checked++
		data, err := e.Vault.Read(doc)
		if err != nil {
			e.Logger.Warn("ensure-ids: document unreadable",
				slog.String("doc", doc), slog.String("error", err.Error()))
			continue
		}
		updated, _, added := links.EnsureNoteID(string(data))
		if !added {
			continue
		}
		if err := e.Vault.Write(doc, []byte(updated)); err != nil {
			return res, err
		}
		if err := e.Index.ReindexFile(e.Vault, doc); err != nil {
			e.Logger.Warn("ensure-ids: reindex failed",
				slog.String("doc", doc), slog.String("error", err.Error()))
		}
		res.Added++
	}
	return res, nil
}
