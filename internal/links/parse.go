// Package links implements link-occurrence parsing, resolution and
// rewriting for vault documents.
package links

import (
	"strings"
)

// Style distinguishes the two link syntaxes.
type Style int

const (
	StyleWiki Style = iota
	StyleMarkdown
)

func (s Style) String() string {
	if s == StyleWiki {
		return "wikilink"
	}
	return "markdown"
}

// Occurrence is one link found in a note body. Start and End are byte
// offsets of the raw text span in the source document; Raw is exactly
// content[Start:End].
type Occurrence struct {
	Start   int
	End     int
	Style   Style
	Embed   bool
	Target  string // raw target with subpath and alias split off; percent-decoded for markdown links
	Subpath string // "#Heading" / "#^block" including the '#', or ""
	Alias   string // wikilink alias or markdown link text
	Raw     string
}

// Parse scans a note body and returns every wikilink and markdown link
// occurrence in document order. Code fences, inline code spans, the
// frontmatter block and external URLs are skipped.
func Parse(content string) []Occurrence {
	var out []Occurrence

	offset := 0
	inFence := false
	lines := strings.SplitAfter(content, "\n")

	// Skip the frontmatter block, if present.
	if len(lines) > 0 && strings.TrimSpace(strings.TrimSuffix(lines[0], "\n")) == "---" {
		for i := 1; i < len(lines); i++ {
			if strings.TrimSpace(strings.TrimSuffix(lines[i], "\n")) == "---" {
				for j := 0; j <= i; j++ {
					offset += len(lines[j])
				}
				lines = lines[i+1:]
				break
			}
		}
	}

	for _, line := range lines {
		trim := strings.TrimSpace(strings.TrimSuffix(line, "\n"))
		if strings.HasPrefix(trim, "```") {
			inFence = !inFence
			offset += len(line)
			continue
		}
		if inFence {
			offset += len(line)
			continue
		}
		out = append(out, parseLine(line, offset)...)
		offset += len(line)
	}
	return out
}

// codeMask marks the bytes of a line that sit inside backtick-delimited
// inline code, which the scanner must not treat as link syntax.
func codeMask(line string) []bool {
	mask := make([]bool, len(line))
	inCode := false
	for i := 0; i < len(line); i++ {
		if line[i] == '`' {
			if inCode {
				mask[i] = true
				inCode = false
				continue
			}
			// Only open a span if it closes on this line.
			if strings.IndexByte(line[i+1:], '`') >= 0 {
				inCode = true
				mask[i] = true
			}
			continue
		}
		mask[i] = inCode
	}
	return mask
}

func parseLine(line string, base int) []Occurrence {
	var out []Occurrence
	mask := codeMask(line)

	i := 0
	for i < len(line) {
		if mask[i] {
			i++
			continue
		}
		if strings.HasPrefix(line[i:], "[[") || strings.HasPrefix(line[i:], "![[") {
			occ, next, ok := parseWiki(line, i, base)
			if ok {
				out = append(out, occ)
				i = next
				continue
			}
			i += 2
			continue
		}
		if line[i] == '[' || (line[i] == '!' && i+1 < len(line) && line[i+1] == '[') {
			occ, next, ok := parseMarkdown(line, i, base)
			if ok {
				out = append(out, occ)
				i = next
				continue
			}
			i++
			continue
		}
		i++
	}
	return out
}

// parseWiki parses "[[target#subpath|alias]]" (or its embed form) starting
// at index i of line. Returns the occurrence, the index after it, and
// whether parsing succeeded.
func parseWiki(line string, i, base int) (Occurrence, int, bool) {
	start := i
	embed := false
	if line[i] == '!' {
		embed = true
		i++
	}
	if !strings.HasPrefix(line[i:], "[[") {
		return Occurrence{}, 0, false
	}
	end := strings.Index(line[i+2:], "]]")
	if end < 0 {
		return Occurrence{}, 0, false
	}
	inner := line[i+2 : i+2+end]
	after := i + 2 + end + 2

	target := inner
	var alias, subpath string
	if idx := strings.Index(target, "|"); idx >= 0 {
		alias = target[idx+1:]
		target = target[:idx]
	}
	if idx := strings.Index(target, "#"); idx >= 0 {
		subpath = target[idx:]
		target = target[:idx]
	}
	if target == "" && subpath == "" {
		return Occurrence{}, 0, false
	}
	return Occurrence{
		Start:   base + start,
		End:     base + after,
		Style:   StyleWiki,
		Embed:   embed,
		Target:  target,
		Subpath: subpath,
		Alias:   alias,
		Raw:     line[start:after],
	}, after, true
}

// parseMarkdown parses "[text](target#fragment)" (or its embed form)
// starting at index i of line.
func parseMarkdown(line string, i, base int) (Occurrence, int, bool) {
	start := i
	embed := false
	if line[i] == '!' {
		embed = true
		i++
	}
	if i >= len(line) || line[i] != '[' || strings.HasPrefix(line[i:], "[[") {
		return Occurrence{}, 0, false
	}
	mid := strings.Index(line[i:], "](")
	if mid < 0 {
		return Occurrence{}, 0, false
	}
	mid = i + mid
	close := strings.IndexByte(line[mid+2:], ')')
	if close < 0 {
		return Occurrence{}, 0, false
	}
	close = mid + 2 + close
	after := close + 1

	text := line[i+1 : mid]
	rawTarget := strings.TrimSpace(line[mid+2 : close])
	if rawTarget == "" || isURL(rawTarget) {
		return Occurrence{}, 0, false
	}
	target := rawTarget
	var subpath string
	if idx := strings.Index(target, "#"); idx >= 0 {
		subpath = target[idx:]
		target = target[:idx]
	}
	return Occurrence{
		Start:   base + start,
		End:     base + after,
		Style:   StyleMarkdown,
		Embed:   embed,
		Target:  DecodeTarget(target),
		Subpath: subpath,
		Alias:   text,
		Raw:     line[start:after],
	}, after, true
}

func isURL(target string) bool {
	return strings.Contains(target, "://") || strings.HasPrefix(target, "mailto:")
}
