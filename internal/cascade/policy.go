package cascade

import (
	"path"
	"strings"

	"linktidy/internal/vault"
)

// FolderPolicy computes the attachment folder a note's attachments live in.
// The pattern understands two placeholders: {folder} (the note's parent
// folder) and {note} (the note's name without extension). Brace syntax keeps
// the placeholders out of reach of the config loader's env expansion.
type FolderPolicy struct {
	Pattern string
}

// AttachmentFolderFor returns the vault-relative attachment folder implied
// by a note path under this policy.
func (p FolderPolicy) AttachmentFolderFor(notePath string) string {
	dir := path.Dir(notePath)
	if dir == "." {
		dir = ""
	}
	base := path.Base(notePath)
	name := strings.TrimSuffix(base, path.Ext(base))

	out := strings.ReplaceAll(p.Pattern, "{folder}", dir)
	out = strings.ReplaceAll(out, "{note}", name)
	return vault.NormalizePath(strings.TrimPrefix(out, "/"))
}
