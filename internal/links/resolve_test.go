package links

import (
	"path"
	"strings"
	"testing"

	"linktidy/internal/vault"
)

// fakeCatalog serves resolver tests from a plain path list.
type fakeCatalog struct {
	paths []string
}

func (f *fakeCatalog) LookupFile(p string) (vault.Kind, bool) {
	for _, have := range f.paths {
		if have == p {
			return vault.KindOf(p), true
		}
	}
	return 0, false
}

func (f *fakeCatalog) NotesNamed(name string) []string {
	var out []string
	for _, p := range f.paths {
		if !vault.KindOf(p).IsNote() {
			continue
		}
		base := strings.ToLower(path.Base(p))
		base = strings.TrimSuffix(strings.TrimSuffix(base, ".md"), ".canvas")
		if base == name {
			out = append(out, p)
		}
	}
	return out
}

func (f *fakeCatalog) AttachmentsNamed(name string) []string {
	var out []string
	for _, p := range f.paths {
		if vault.KindOf(p).IsNote() {
			continue
		}
		if strings.ToLower(path.Base(p)) == name {
			out = append(out, p)
		}
	}
	return out
}

func TestResolveTarget(t *testing.T) {
	cat := &fakeCatalog{paths: []string{
		"Top.md",
		"notes/Here.md",
		"notes/Sibling.md",
		"notes/pics/img.png",
		"other/Unique.md",
		"dup/Same.md",
		"deep/Same.md",
		"board.canvas",
	}}
	r := &Resolver{Catalog: cat}

	cases := []struct {
		target string
		source string
		want   string
		ok     bool
	}{
		// Exact and extension-added lookups from the source folder.
		{"Sibling", "notes/Here.md", "notes/Sibling.md", true},
		{"Sibling.md", "notes/Here.md", "notes/Sibling.md", true},
		{"./pics/img.png", "notes/Here.md", "notes/pics/img.png", true},
		{"../Top", "notes/Here.md", "Top.md", true},
		// Vault-absolute.
		{"/other/Unique.md", "notes/Here.md", "other/Unique.md", true},
		// Plain path tries the source folder first, then the root.
		{"pics/img.png", "notes/Here.md", "notes/pics/img.png", true},
		{"other/Unique", "notes/Here.md", "other/Unique.md", true},
		// Unique basename anywhere in the tree.
		{"Unique", "notes/Here.md", "other/Unique.md", true},
		{"img.png", "Top.md", "notes/pics/img.png", true},
		{"board", "notes/Here.md", "board.canvas", true},
		// Ambiguous basename fails.
		{"Same", "notes/Here.md", "", false},
		// Escaping the vault fails.
		{"../../etc/passwd", "Top.md", "", false},
		{"Nope", "notes/Here.md", "", false},
	}
	for _, c := range cases {
		res := r.ResolveTarget(c.target, c.source)
		if res.OK != c.ok {
			t.Errorf("ResolveTarget(%q, %q): ok = %v, want %v", c.target, c.source, res.OK, c.ok)
			continue
		}
		if res.OK && res.Path != c.want {
			t.Errorf("ResolveTarget(%q, %q) = %q, want %q", c.target, c.source, res.Path, c.want)
		}
	}
}

func TestResolve_SelfLink(t *testing.T) {
	cat := &fakeCatalog{paths: []string{"notes/Here.md"}}
	r := &Resolver{Catalog: cat}
	occ := Occurrence{Target: "", Subpath: "#Heading"}
	res := r.Resolve(occ, "notes/Here.md")
	if !res.OK || res.Path != "notes/Here.md" || res.Subpath != "#Heading" {
		t.Errorf("self link resolution wrong: %+v", res)
	}
}

func TestResolve_SiblingBeatsBasenameMatch(t *testing.T) {
	cat := &fakeCatalog{paths: []string{"notes/A.md", "elsewhere/A.md"}}
	r := &Resolver{Catalog: cat}
	res := r.ResolveTarget("A", "notes/Here.md")
	if !res.OK || res.Path != "notes/A.md" {
		t.Errorf("sibling must win: %+v", res)
	}
}
