package cascade

import (
	"os"
	"path/filepath"
	"testing"

	"linktidy/internal/vault"
)

func writeFiles(t *testing.T, files map[string]string) *vault.FS {
	t.Helper()
	dir := t.TempDir()
	for p, body := range files {
		full := filepath.Join(dir, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	v, err := vault.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestBuild_ReRootsAttachmentFolder(t *testing.T) {
	v := writeFiles(t, map[string]string{
		"A/note.md":          "body\n",
		"A/note/img.png":     "png",
		"A/note/sub/doc.pdf": "pdf",
		"A/note/nested.md":   "a note of its own\n",
	})
	cc := NewContext()
	policy := FolderPolicy{Pattern: "{folder}/{note}"}
	if err := Build(cc, v, policy, "A/note.md", "B/note.md"); err != nil {
		t.Fatalf("build: %v", err)
	}

	want := map[string]string{
		"A/note.md":          "B/note.md",
		"A/note/img.png":     "B/note/img.png",
		"A/note/sub/doc.pdf": "B/note/sub/doc.pdf",
	}
	pairs := cc.Map().Pairs()
	if len(pairs) != len(want) {
		t.Fatalf("pairs = %+v", pairs)
	}
	if pairs[0].Old != "A/note.md" {
		t.Errorf("document entry must come first: %+v", pairs[0])
	}
	for _, p := range pairs {
		if want[p.Old] != p.New {
			t.Errorf("entry %q -> %q, want %q", p.Old, p.New, want[p.Old])
		}
	}
	if _, ok := cc.Map().Lookup("A/note/nested.md"); ok {
		t.Error("nested note must not join the cascade")
	}
}

func TestBuild_CollisionGetsUniqueSibling(t *testing.T) {
	v := writeFiles(t, map[string]string{
		"A/note.md":      "body\n",
		"A/note/img.png": "png",
		"B/note/img.png": "occupied",
	})
	cc := NewContext()
	policy := FolderPolicy{Pattern: "{folder}/{note}"}
	if err := Build(cc, v, policy, "A/note.md", "B/note.md"); err != nil {
		t.Fatal(err)
	}
	got, ok := cc.Map().Lookup("A/note/img.png")
	if !ok || got != "B/note/img 1.png" {
		t.Errorf("collision target = %q, want B/note/img 1.png", got)
	}
}

func TestBuild_PendingMoverVacatesDestination(t *testing.T) {
	// B/note/img.png exists on disk but is itself moving away within this
	// cascade, so the destination counts as free.
	v := writeFiles(t, map[string]string{
		"A/note.md":      "body\n",
		"A/note/img.png": "png",
		"B/note/img.png": "leaving",
	})
	cc := NewContext()
	cc.Map().Add("B/note/img.png", "elsewhere/img.png")

	policy := FolderPolicy{Pattern: "{folder}/{note}"}
	if err := Build(cc, v, policy, "A/note.md", "B/note.md"); err != nil {
		t.Fatal(err)
	}
	got, ok := cc.Map().Lookup("A/note/img.png")
	if !ok || got != "B/note/img.png" {
		t.Errorf("target = %q, want B/note/img.png (vacated by pending move)", got)
	}
}

func TestBuild_AttachmentRenameStaysSingle(t *testing.T) {
	v := writeFiles(t, map[string]string{
		"pics/img.png": "png",
	})
	cc := NewContext()
	policy := FolderPolicy{Pattern: "{folder}/{note}"}
	if err := Build(cc, v, policy, "pics/img.png", "pics/photo.png"); err != nil {
		t.Fatal(err)
	}
	if cc.Map().Len() != 1 {
		t.Errorf("attachment rename must produce exactly one entry: %+v", cc.Map().Pairs())
	}
}

func TestBuild_SameFolderRenameSkipsAttachments(t *testing.T) {
	// Renaming within the same folder with a shared attachment folder keeps
	// the attachments where they are.
	v := writeFiles(t, map[string]string{
		"A/note.md":            "body\n",
		"A/attachments/im.png": "png",
	})
	cc := NewContext()
	policy := FolderPolicy{Pattern: "{folder}/attachments"}
	if err := Build(cc, v, policy, "A/note.md", "A/renamed.md"); err != nil {
		t.Fatal(err)
	}
	if cc.Map().Len() != 1 {
		t.Errorf("shared folder unchanged, map = %+v", cc.Map().Pairs())
	}
}
