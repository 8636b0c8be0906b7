package cascade

import (
	"strings"

	"linktidy/internal/vault"
)

// Build populates the cascade context's rename map for a document whose path
// changed from oldPath to newPath: the document itself plus, when it is a
// note whose attachment folder moves with it, every attachment under the old
// attachment folder re-rooted under the new one. Nested notes are skipped;
// they get their own cascades.
//
// Collisions are resolved against the final rename-map state: a destination
// occupied only by a file that is itself pending a move in this map is free,
// and a destination already claimed by an earlier entry is taken.
func Build(cc *Context, v *vault.FS, policy FolderPolicy, oldPath, newPath string) error {
	m := cc.Map()
	oldPath = vault.NormalizePath(oldPath)
	newPath = vault.NormalizePath(newPath)
	m.Add(oldPath, newPath)

	if !vault.KindOf(oldPath).IsNote() {
		return nil
	}

	oldFolder := policy.AttachmentFolderFor(oldPath)
	newFolder := policy.AttachmentFolderFor(newPath)
	if oldFolder == "" || oldFolder == newFolder {
		return nil
	}
	if !v.IsDir(oldFolder) {
		return nil
	}

	occupied := func(p string) bool {
		if m.Claimed(p) {
			return true
		}
		if _, pending := m.Lookup(p); pending {
			return false // vacates its path within this cascade
		}
		return v.Exists(p)
	}

	return v.Walk(oldFolder, func(p string) error {
		if vault.KindOf(p).IsNote() {
			return nil
		}
		relPos := strings.TrimPrefix(p, oldFolder+"/")
		target := vault.UniqueSibling(newFolder+"/"+relPos, occupied)
		m.Add(p, target)
		return nil
	})
}
