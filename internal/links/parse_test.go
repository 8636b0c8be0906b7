package links

import (
	"strings"
	"testing"
)

func TestParse_WikiVariants(t *testing.T) {
	content := "See [[Note]] and [[sub/Other#Heading|shown]] plus ![[img.png]].\n"
	occs := Parse(content)
	if len(occs) != 3 {
		t.Fatalf("expected 3 occurrences, got %d: %+v", len(occs), occs)
	}

	if occs[0].Target != "Note" || occs[0].Style != StyleWiki || occs[0].Embed {
		t.Errorf("first occurrence wrong: %+v", occs[0])
	}
	if occs[0].Raw != "[[Note]]" {
		t.Errorf("raw = %q", occs[0].Raw)
	}

	if occs[1].Target != "sub/Other" || occs[1].Subpath != "#Heading" || occs[1].Alias != "shown" {
		t.Errorf("second occurrence wrong: %+v", occs[1])
	}

	if occs[2].Target != "img.png" || !occs[2].Embed {
		t.Errorf("third occurrence wrong: %+v", occs[2])
	}
}

func TestParse_MarkdownVariants(t *testing.T) {
	content := "A [text](Note.md) and ![alt](pics/my%20img.png) and [site](https://example.com).\n"
	occs := Parse(content)
	if len(occs) != 2 {
		t.Fatalf("expected 2 occurrences (URL skipped), got %d: %+v", len(occs), occs)
	}
	if occs[0].Target != "Note.md" || occs[0].Alias != "text" || occs[0].Style != StyleMarkdown {
		t.Errorf("first occurrence wrong: %+v", occs[0])
	}
	if occs[1].Target != "pics/my img.png" || !occs[1].Embed {
		t.Errorf("percent-decoded embed wrong: %+v", occs[1])
	}
}

func TestParse_OffsetsMatchRaw(t *testing.T) {
	content := "prefix [[A]] middle [link](b/c.md#x) suffix\nsecond line ![[d.png]]\n"
	for _, occ := range Parse(content) {
		if got := content[occ.Start:occ.End]; got != occ.Raw {
			t.Errorf("span mismatch: content[%d:%d] = %q, raw = %q", occ.Start, occ.End, got, occ.Raw)
		}
	}
}

func TestParse_SkipsCodeAndFrontmatter(t *testing.T) {
	content := strings.Join([]string{
		"---",
		"title: has [[NotALink]]",
		"---",
		"Real [[Link]] here.",
		"```",
		"[[fenced]]",
		"```",
		"Inline `[[code]]` stays, [[after]] counts.",
		"",
	}, "\n")
	occs := Parse(content)
	if len(occs) != 2 {
		t.Fatalf("expected 2 occurrences, got %d: %+v", len(occs), occs)
	}
	if occs[0].Target != "Link" || occs[1].Target != "after" {
		t.Errorf("unexpected targets: %+v", occs)
	}
}

func TestParse_SelfSubpathLink(t *testing.T) {
	occs := Parse("jump [[#Heading]]\n")
	if len(occs) != 1 {
		t.Fatalf("expected 1 occurrence, got %d", len(occs))
	}
	if occs[0].Target != "" || occs[0].Subpath != "#Heading" {
		t.Errorf("self link wrong: %+v", occs[0])
	}
}

func TestParse_EmptyBracketsIgnored(t *testing.T) {
	if occs := Parse("broken [[]] and [](x\n"); len(occs) != 0 {
		t.Errorf("expected nothing, got %+v", occs)
	}
}
