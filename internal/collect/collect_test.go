package collect

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"linktidy/internal/cascade"
	"linktidy/internal/linkindex"
	"linktidy/internal/vault"
)

func setup(t *testing.T, files map[string]string, opts Options) (*vault.FS, *linkindex.Index, *Collector) {
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
	ix, err := linkindex.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ix.Close() })
	if _, err := ix.Build(context.Background(), v, nil); err != nil {
		t.Fatal(err)
	}
	c := &Collector{
		Vault:      v,
		Index:      ix,
		Policy:     cascade.FolderPolicy{Pattern: "{folder}/{note}"},
		Cascade:    cascade.NewContext(),
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Opts:       opts,
		PruneEmpty: true,
	}
	return v, ix, c
}

func TestCollect_MoveExclusive(t *testing.T) {
	v, ix, c := setup(t, map[string]string{
		"note.md":      "pic ![](pics/img.png)\n",
		"pics/img.png": "png",
	}, Options{})

	res, err := c.CollectNote("note.md")
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if res.Moved != 1 || res.LinksRewritten != 1 {
		t.Errorf("result = %+v", res)
	}
	if !v.Exists("note/img.png") || v.Exists("pics/img.png") {
		t.Error("attachment must move into the note folder")
	}
	if v.Exists("pics") {
		t.Error("emptied source folder must be pruned")
	}
	body, _ := v.Read("note.md")
	if string(body) != "pic ![](note/img.png)\n" {
		t.Errorf("note = %q", body)
	}
	if _, ok := ix.LookupFile("note/img.png"); !ok {
		t.Error("index must follow the move")
	}
}

func TestCollect_RepeatedReferenceRewritesAll(t *testing.T) {
	v, _, c := setup(t, map[string]string{
		"note.md":      "a ![](pics/img.png) b ![](pics/img.png)\n",
		"pics/img.png": "png",
	}, Options{})

	res, err := c.CollectNote("note.md")
	if err != nil {
		t.Fatal(err)
	}
	if res.Moved != 1 {
		t.Errorf("one physical move expected, got %+v", res)
	}
	if res.LinksRewritten != 2 {
		t.Errorf("both references must be rewritten, got %+v", res)
	}
	body, _ := v.Read("note.md")
	if string(body) != "a ![](note/img.png) b ![](note/img.png)\n" {
		t.Errorf("note = %q", body)
	}
	if v.Exists("pics/img.png") || !v.Exists("note/img.png") {
		t.Error("attachment must end up in the note folder exactly once")
	}
}

func TestCollect_CollisionRenamesUnique(t *testing.T) {
	v, _, c := setup(t, map[string]string{
		"note.md":      "pic ![](pics/img.png)\n",
		"pics/img.png": "incoming",
		"note/img.png": "occupant",
	}, Options{})

	res, err := c.CollectNote("note.md")
	if err != nil {
		t.Fatal(err)
	}
	if res.Renamed != 1 {
		t.Errorf("result = %+v", res)
	}
	occupant, _ := v.Read("note/img.png")
	if string(occupant) != "occupant" {
		t.Error("occupant must be untouched")
	}
	moved, err := v.Read("note/img 1.png")
	if err != nil || string(moved) != "incoming" {
		t.Errorf("unique sibling wrong: %v %q", err, moved)
	}
	body, _ := v.Read("note.md")
	if string(body) != "pic ![](note/img%201.png)\n" {
		t.Errorf("note = %q", body)
	}
}

func TestCollect_CollisionDeleteExisting(t *testing.T) {
	v, ix, c := setup(t, map[string]string{
		"note.md":      "pic ![](pics/img.png)\n",
		"pics/img.png": "incoming",
		"note/img.png": "occupant",
	}, Options{DeleteExisting: true})

	res, err := c.CollectNote("note.md")
	if err != nil {
		t.Fatal(err)
	}
	if res.Deleted != 1 {
		t.Errorf("result = %+v", res)
	}
	if v.Exists("pics/img.png") {
		t.Error("source must be deleted")
	}
	occupant, _ := v.Read("note/img.png")
	if string(occupant) != "occupant" {
		t.Error("occupant survives")
	}
	body, _ := v.Read("note.md")
	if string(body) != "pic ![](note/img.png)\n" {
		t.Errorf("note = %q", body)
	}
	if _, ok := ix.LookupFile("pics/img.png"); ok {
		t.Error("deleted source still indexed")
	}
}

func TestCollect_SharedCopies(t *testing.T) {
	v, _, c := setup(t, map[string]string{
		"note.md":      "pic ![](pics/img.png)\n",
		"other.md":     "also ![](pics/img.png)\n",
		"pics/img.png": "png",
	}, Options{})

	res, err := c.CollectNote("note.md")
	if err != nil {
		t.Fatal(err)
	}
	if res.Copied != 1 {
		t.Errorf("result = %+v", res)
	}
	if !v.Exists("pics/img.png") {
		t.Error("shared original must stay for the other note")
	}
	if !v.Exists("note/img.png") {
		t.Error("private copy missing")
	}
	other, _ := v.Read("other.md")
	if string(other) != "also ![](pics/img.png)\n" {
		t.Errorf("other note must be untouched: %q", other)
	}
	body, _ := v.Read("note.md")
	if string(body) != "pic ![](note/img.png)\n" {
		t.Errorf("note = %q", body)
	}
}

func TestCollect_SharedCollisionParksUnique(t *testing.T) {
	v, _, c := setup(t, map[string]string{
		"note.md":      "pic ![](pics/img.png)\n",
		"other.md":     "also ![](pics/img.png)\n",
		"pics/img.png": "incoming",
		"note/img.png": "occupant",
	}, Options{})

	res, err := c.CollectNote("note.md")
	if err != nil {
		t.Fatal(err)
	}
	if res.Renamed != 1 {
		t.Errorf("result = %+v", res)
	}
	// The original is parked under a unique sibling and restored in place so
	// the other note keeps resolving.
	parked, err := v.Read("note/img 1.png")
	if err != nil || string(parked) != "incoming" {
		t.Errorf("parked copy wrong: %v %q", err, parked)
	}
	restored, _ := v.Read("pics/img.png")
	if string(restored) != "incoming" {
		t.Error("shared original must be restored at its old path")
	}
	body, _ := v.Read("note.md")
	if string(body) != "pic ![](note/img%201.png)\n" {
		t.Errorf("note = %q", body)
	}
}

func TestCollect_SharedCollisionDeleteExistingIsNoOp(t *testing.T) {
	v, _, c := setup(t, map[string]string{
		"note.md":      "pic ![](pics/img.png)\n",
		"other.md":     "also ![](pics/img.png)\n",
		"pics/img.png": "incoming",
		"note/img.png": "occupant",
	}, Options{DeleteExisting: true})

	res, err := c.CollectNote("note.md")
	if err != nil {
		t.Fatal(err)
	}
	if res.Moved+res.Copied+res.Deleted+res.Renamed != 0 {
		t.Errorf("expected a no-op, got %+v", res)
	}
	if !v.Exists("pics/img.png") || !v.Exists("note/img.png") {
		t.Error("nothing may be touched")
	}
	body, _ := v.Read("note.md")
	if string(body) != "pic ![](pics/img.png)\n" {
		t.Errorf("note must be unchanged: %q", body)
	}
}

func TestCollect_AlreadyCollectedIsIdempotent(t *testing.T) {
	v, _, c := setup(t, map[string]string{
		"note.md":      "pic ![](note/img.png)\n",
		"note/img.png": "png",
	}, Options{})

	res, err := c.CollectNote("note.md")
	if err != nil {
		t.Fatal(err)
	}
	if res.Moved+res.Copied+res.Deleted+res.Renamed+res.LinksRewritten != 0 {
		t.Errorf("expected a no-op, got %+v", res)
	}
	body, _ := v.Read("note.md")
	if string(body) != "pic ![](note/img.png)\n" {
		t.Errorf("note changed: %q", body)
	}
}

func TestCollect_ContentAddressedNeedsID(t *testing.T) {
	_, _, c := setup(t, map[string]string{
		"note.md":      "pic ![](pics/img.png)\n",
		"pics/img.png": "png",
	}, Options{ContentAddressed: true})

	if _, err := c.CollectNote("note.md"); !errors.Is(err, ErrMissingNoteID) {
		t.Errorf("expected ErrMissingNoteID, got %v", err)
	}
}

func TestCollect_ContentAddressedNaming(t *testing.T) {
	v, _, c := setup(t, map[string]string{
		"note.md":      "---\nlinktidy-id: nid\n---\npic ![](pics/img.png)\n",
		"pics/img.png": "png-bytes",
	}, Options{ContentAddressed: true})

	res, err := c.CollectNote("note.md")
	if err != nil {
		t.Fatal(err)
	}
	if res.Moved != 1 {
		t.Errorf("result = %+v", res)
	}
	sum := sha256.Sum256([]byte("png-bytes"))
	want := fmt.Sprintf("note/nid-%s.png", hex.EncodeToString(sum[:])[:12])
	if !v.Exists(want) {
		t.Errorf("content-addressed file missing at %s", want)
	}
	body, _ := v.Read("note.md")
	wantLink := fmt.Sprintf("---\nlinktidy-id: nid\n---\npic ![](%s)\n", want)
	if string(body) != wantLink {
		t.Errorf("note = %q, want %q", body, wantLink)
	}
}

func TestCollect_SkipsNotesAndIgnored(t *testing.T) {
	v, _, c := setup(t, map[string]string{
		"note.md":       "see [x](other.md) and ![](pics/skip.png) and ![](pics/take.png)\n",
		"other.md":      "x\n",
		"pics/skip.png": "png",
		"pics/take.png": "png",
	}, Options{})
	c.Ignore = func(p string) bool { return p == "pics/skip.png" }

	res, err := c.CollectNote("note.md")
	if err != nil {
		t.Fatal(err)
	}
	if res.Moved != 1 {
		t.Errorf("result = %+v", res)
	}
	if !v.Exists("pics/skip.png") {
		t.Error("ignored attachment must stay put")
	}
	if !v.Exists("other.md") || !v.Exists("note/take.png") {
		t.Error("note reference untouched, attachment collected")
	}
}
