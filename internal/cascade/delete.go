package cascade

import (
	"fmt"
	"log/slog"
	"path"

	"linktidy/internal/vault"
)

// DeleteResult reports what a delete cascade removed.
type DeleteResult struct {
	Deleted []string // attachments removed alongside the note
	Kept    []string // attachments kept because another note still references them
}

// DeleteNote runs the delete cascade for a removed note: the attachment
// folder the note's last known path implies is cleared of the attachments it
// alone referenced, then pruned. When deleteOrphaned is false only the index
// is updated. Files still referenced by a surviving note are never removed.
func (e *Executor) DeleteNote(notePath string, deleteOrphaned bool) (*DeleteResult, error) {
	notePath = vault.NormalizePath(notePath)
	res := &DeleteResult{}

	folder := e.Policy.AttachmentFolderFor(notePath)
	if deleteOrphaned && folder != "" && e.Vault.IsDir(folder) {
		var files []string
		if err := e.Vault.Walk(folder, func(p string) error {
			files = append(files, p)
			return nil
		}); err != nil {
			return nil, fmt.Errorf("delete cascade: enumerate %s: %w", folder, err)
		}
		for _, f := range files {
			if vault.KindOf(f).IsNote() {
				res.Kept = append(res.Kept, f)
				continue // owned by its own note, not this cascade
			}
			shared, err := e.sharedOutside(f, notePath)
			if err != nil {
				return nil, err
			}
			if shared {
				e.Logger.Debug("delete cascade: attachment still referenced, keeping",
					slog.String("path", f))
				res.Kept = append(res.Kept, f)
				continue
			}
			if err := e.Vault.Delete(f); err != nil {
				e.Logger.Warn("delete cascade: remove failed",
					slog.String("path", f), slog.String("error", err.Error()))
				continue
			}
			if err := e.Index.RemoveFile(f); err != nil {
				return nil, err
			}
			res.Deleted = append(res.Deleted, f)
		}
		if err := e.Vault.PruneUpward(folder); err != nil {
			e.Logger.Warn("delete cascade: prune failed",
				slog.String("dir", folder), slog.String("error", err.Error()))
		}
	}

	if e.PruneEmpty {
		_ = e.Vault.PruneUpward(path.Dir(notePath))
	}
	if err := e.Index.RemoveFile(notePath); err != nil {
		return nil, err
	}
	return res, nil
}

// sharedOutside reports whether any document other than exclude references
// the file.
func (e *Executor) sharedOutside(filePath, exclude string) (bool, error) {
	groups, err := e.Index.BacklinksOf(filePath)
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
