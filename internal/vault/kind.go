package vault

import (
	"path/filepath"
	"strings"
)

// Kind classifies a vault file by extension. The set is closed: markdown
// notes, canvas boards (structured containers), and everything else as an
// opaque attachment.
type Kind int

const (
	KindNote Kind = iota
	KindCanvas
	KindAttachment
)

func (k Kind) String() string {
	switch k {
	case KindNote:
		return "note"
	case KindCanvas:
		return "canvas"
	default:
		return "attachment"
	}
}

// KindOf classifies a vault-relative path by its extension.
func KindOf(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md":
		return KindNote
	case ".canvas":
		return KindCanvas
	default:
		return KindAttachment
	}
}

// IsNote reports whether the kind can carry outgoing links (markdown and
// canvas documents both can).
func (k Kind) IsNote() bool {
	return k == KindNote || k == KindCanvas
}

// KindFromString parses a kind name as stored in the index.
func KindFromString(s string) Kind {
	switch s {
	case "note":
		return KindNote
	case "canvas":
		return KindCanvas
	default:
		return KindAttachment
	}
}
