package links

import (
	"strings"
	"testing"
)

func TestNoteID(t *testing.T) {
	content := "---\ntitle: Hello\nlinktidy-id: abc-123\n---\nbody\n"
	if got := NoteID(content); got != "abc-123" {
		t.Errorf("NoteID = %q, want abc-123", got)
	}
	if got := NoteID("no frontmatter\n"); got != "" {
		t.Errorf("NoteID without frontmatter = %q", got)
	}
	if got := NoteID("---\ntitle: Hello\n---\nbody\n"); got != "" {
		t.Errorf("NoteID without key = %q", got)
	}
}

func TestEnsureNoteID_AddsToExistingFrontmatter(t *testing.T) {
	content := "---\ntitle: Hello\n---\nbody\n"
	updated, id, added := EnsureNoteID(content)
	if !added || id == "" {
		t.Fatalf("expected a minted id, got added=%v id=%q", added, id)
	}
	if NoteID(updated) != id {
		t.Errorf("minted id not readable back: %q", updated)
	}
	if !strings.Contains(updated, "title: Hello") || !strings.HasSuffix(updated, "body\n") {
		t.Errorf("existing content disturbed: %q", updated)
	}
}

func TestEnsureNoteID_CreatesFrontmatter(t *testing.T) {
	updated, id, added := EnsureNoteID("just a body\n")
	if !added {
		t.Fatal("expected an addition")
	}
	if NoteID(updated) != id {
		t.Errorf("minted id not readable back: %q", updated)
	}
	if !strings.Contains(updated, "just a body") {
		t.Errorf("body lost: %q", updated)
	}
}

func TestEnsureNoteID_Stable(t *testing.T) {
	content := "---\nlinktidy-id: keep-me\n---\nbody\n"
	updated, id, added := EnsureNoteID(content)
	if added || id != "keep-me" || updated != content {
		t.Errorf("existing id must be kept: added=%v id=%q", added, id)
	}
}
