package links

import (
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// NoteIDKey is the frontmatter key holding a note's stable identifier.
const NoteIDKey = "linktidy-id"

// splitFrontmatter splits content into the frontmatter lines (without the
// "---" markers) and the body. ok is false when no frontmatter block exists.
func splitFrontmatter(content string) (fm []string, body string, ok bool) {
	lines := strings.Split(content, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return nil, content, false
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			return lines[1:i], strings.Join(lines[i+1:], "\n"), true
		}
	}
	return nil, content, false
}

// NoteID extracts the stable identifier from a note's frontmatter. Returns
// "" when the note has no frontmatter or no identifier.
func NoteID(content string) string {
	fm, _, ok := splitFrontmatter(content)
	if !ok {
		return ""
	}
	var doc map[string]any
	if err := yaml.Unmarshal([]byte(strings.Join(fm, "\n")), &doc); err != nil {
		return ""
	}
	if v, ok := doc[NoteIDKey].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// EnsureNoteID returns content carrying a stable identifier, minting one if
// absent. added reports whether the content changed.
func EnsureNoteID(content string) (newContent, id string, added bool) {
	if id := NoteID(content); id != "" {
		return content, id, false
	}
	id = uuid.NewString()
	fm, body, ok := splitFrontmatter(content)
	if !ok {
		block := "---\n" + NoteIDKey + ": " + id + "\n---\n"
		if content == "" {
			return block, id, true
		}
		return block + "\n" + content, id, true
	}
	fm = append(fm, NoteIDKey+": "+id)
	return "---\n" + strings.Join(fm, "\n") + "\n---\n" + body, id, true
}
