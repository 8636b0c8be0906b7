package links

import (
	"net/url"
	"path"
	"sort"
	"strings"
)

// Patch is one textual replacement: content[Start:End] becomes Text.
type Patch struct {
	Start int
	End   int
	Text  string
}

// ApplyPatches applies a batch of non-overlapping patches to content in one
// pass, highest offset first, so earlier replacements never shift the
// offsets of later ones.
func ApplyPatches(content string, patches []Patch) string {
	if len(patches) == 0 {
		return content
	}
	ordered := make([]Patch, len(patches))
	copy(ordered, patches)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Start > ordered[j].Start })

	out := content
	prevStart := len(content) + 1
	for _, p := range ordered {
		if p.Start < 0 || p.End > len(content) || p.End > prevStart {
			continue // overlapping or out-of-range patch, skip
		}
		out = out[:p.Start] + p.Text + out[p.End:]
		prevStart = p.Start
	}
	return out
}

// EncodeTarget percent-encodes only the characters markdown link syntax
// requires: spaces, parentheses and a literal percent sign.
func EncodeTarget(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ':
			b.WriteString("%20")
		case '(':
			b.WriteString("%28")
		case ')':
			b.WriteString("%29")
		case '%':
			b.WriteString("%25")
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// DecodeTarget reverses percent-encoding in a markdown link target. Invalid
// escapes are left as-is.
func DecodeTarget(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	dec, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return dec
}

// Form classifies how a link target expresses its path.
type Form int

const (
	FormBasename Form = iota // "Note" / "img.png"
	FormRelative             // "./sub/Note" / "../img.png"
	FormAbsolute             // "/sub/Note.md"
	FormPath                 // "sub/Note.md"
)

// TargetForm classifies a raw link target.
func TargetForm(target string) Form {
	switch {
	case strings.HasPrefix(target, "./") || strings.HasPrefix(target, "../"):
		return FormRelative
	case strings.HasPrefix(target, "/"):
		return FormAbsolute
	case strings.Contains(target, "/"):
		return FormPath
	default:
		return FormBasename
	}
}

// Rewriter builds replacement patches for link occurrences. Final, when
// set, redirects a resolved path that is mid-cascade to its eventual path;
// a nil Final is the identity.
type Rewriter struct {
	Final func(string) string
}

func (r *Rewriter) final(p string) string {
	if r == nil || r.Final == nil {
		return p
	}
	return r.Final(p)
}

// ToMarkdown rewrites a wikilink occurrence to the equivalent markdown-style
// occurrence, preserving alias text and subpath. res carries the occurrence's
// resolution; an unresolved occurrence keeps its raw target text.
func (r *Rewriter) ToMarkdown(occ Occurrence, res Resolution) (Patch, bool) {
	if occ.Style != StyleWiki {
		return Patch{}, false
	}

	target := occ.Target
	isNote := false
	if res.OK {
		isNote = res.Kind.IsNote()
		if final := r.final(res.Path); final != res.Path {
			// Mid-cascade target: point at its eventual path.
			target = final
			if occ.Target != "" && !strings.Contains(occ.Target, "/") {
				target = path.Base(final)
			}
		}
	}

	mdTarget := target
	if isNote && mdTarget != "" && !strings.HasSuffix(strings.ToLower(mdTarget), ".md") {
		mdTarget += ".md"
	}

	text := occ.Alias
	if text == "" {
		if target == "" {
			text = occ.Subpath
		} else {
			text = path.Base(target) + occ.Subpath
		}
	}

	raw := "[" + text + "](" + EncodeTarget(mdTarget) + EncodeTarget(occ.Subpath) + ")"
	if occ.Embed {
		raw = "!" + raw
	}
	if raw == occ.Raw {
		return Patch{}, false
	}
	return Patch{Start: occ.Start, End: occ.End, Text: raw}, true
}

// ToRelative rewrites an occurrence so its target is expressed relative to
// the source document's folder, re-appending subpath and alias exactly as
// they appeared. sourcePath must be the source document's (final) path.
func (r *Rewriter) ToRelative(occ Occurrence, res Resolution, sourcePath string) (Patch, bool) {
	if !res.OK {
		return Patch{}, false
	}
	target := r.final(res.Path)
	rel := RelativeTo(sourcePath, target)
	raw := r.rebuild(occ, rel)
	if raw == occ.Raw {
		return Patch{}, false
	}
	return Patch{Start: occ.Start, End: occ.End, Text: raw}, true
}

// Retarget rewrites an occurrence whose resolved target moved from res.Path
// to newPath, preserving the occurrence's style and the form in which it
// expressed the path. sourcePath must be the source document's final path
// (the referencing document may itself be mid-cascade). Returns false when
// the raw text needs no change, e.g. a bare-name link whose target kept its
// name.
func (r *Rewriter) Retarget(occ Occurrence, res Resolution, newPath, sourcePath string) (Patch, bool) {
	var text string
	switch TargetForm(occ.Target) {
	case FormBasename:
		if path.Base(res.Path) == path.Base(newPath) {
			return Patch{}, false
		}
		text = path.Base(newPath)
	case FormRelative:
		text = RelativeTo(sourcePath, newPath)
	case FormAbsolute:
		text = "/" + newPath
	default:
		text = newPath
	}
	raw := r.rebuild(occ, text)
	if raw == occ.Raw {
		return Patch{}, false
	}
	return Patch{Start: occ.Start, End: occ.End, Text: raw}, true
}

// rebuild reassembles an occurrence's raw text around a new target string,
// keeping style, embed marker, subpath and alias.
func (r *Rewriter) rebuild(occ Occurrence, target string) string {
	var raw string
	switch occ.Style {
	case StyleWiki:
		t := strings.TrimSuffix(target, ".md")
		raw = "[[" + t + occ.Subpath
		if occ.Alias != "" {
			raw += "|" + occ.Alias
		}
		raw += "]]"
	default:
		t := target
		// Preserve the original target's .md-extension presence.
		if strings.HasSuffix(strings.ToLower(t), ".md") &&
			!strings.HasSuffix(strings.ToLower(occ.Target), ".md") {
			t = t[:len(t)-3]
		}
		raw = "[" + occ.Alias + "](" + EncodeTarget(t) + EncodeTarget(occ.Subpath) + ")"
	}
	if occ.Embed {
		raw = "!" + raw
	}
	return raw
}

// RelativeTo expresses target relative to the folder of sourcePath, with
// forward slashes. Targets outside the source folder use ".." segments; a
// sibling or deeper target carries no "./" prefix.
func RelativeTo(sourcePath, target string) string {
	srcDir := path.Dir(sourcePath)
	if srcDir == "." {
		return target
	}
	srcParts := strings.Split(srcDir, "/")
	tgtParts := strings.Split(target, "/")

	common := 0
	for common < len(srcParts) && common < len(tgtParts)-1 && srcParts[common] == tgtParts[common] {
		common++
	}
	var b []string
	for i := common; i < len(srcParts); i++ {
		b = append(b, "..")
	}
	b = append(b, tgtParts[common:]...)
	return strings.Join(b, "/")
}
