package watch

import "testing"

func TestTakePending_PrefersMatchingBasename(t *testing.T) {
	pending := []pendingRename{
		{oldPath: "A/other.md"},
		{oldPath: "A/note.md"},
	}
	old, ok := takePending(&pending, "B/note.md")
	if !ok || old != "A/note.md" {
		t.Errorf("got %q, want A/note.md", old)
	}
	if len(pending) != 1 || pending[0].oldPath != "A/other.md" {
		t.Errorf("remaining = %+v", pending)
	}
}

func TestTakePending_FallsBackToOldest(t *testing.T) {
	pending := []pendingRename{
		{oldPath: "A/first.md"},
		{oldPath: "A/second.md"},
	}
	old, ok := takePending(&pending, "B/renamed.md")
	if !ok || old != "A/first.md" {
		t.Errorf("got %q, want A/first.md", old)
	}
}

func TestTakePending_Empty(t *testing.T) {
	var pending []pendingRename
	if _, ok := takePending(&pending, "x.md"); ok {
		t.Error("empty queue must not match")
	}
}

func TestHidden(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"notes/a.md", false},
		{".linktidy/index.sqlite", true},
		{"notes/.trash/a.md", true},
		{"notes/.hidden.md", true},
	}
	for _, c := range cases {
		if got := hidden(c.path); got != c.want {
			t.Errorf("hidden(%q) = %v, want %v", c.path, got, c.want)
		}
	}
}
