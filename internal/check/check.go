// Package check implements the read-only consistency scan and its report.
package check

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"linktidy/internal/linkindex"
	"linktidy/internal/links"
	"linktidy/internal/vault"
)

// Category classifies a finding.
type Category int

const (
	BadLink Category = iota
	BadEmbed
	WikiLink
	WikiEmbed
)

var categoryTitles = map[Category]string{
	BadLink:   "Bad links",
	BadEmbed:  "Bad embeds",
	WikiLink:  "Wiki links",
	WikiEmbed: "Wiki embeds",
}

// Finding is one (document, raw link text, reason) triple.
type Finding struct {
	Doc    string
	Raw    string
	Reason string
}

// Report is the categorized scan result. It never mutates the tree.
type Report struct {
	Findings map[Category][]Finding
	Docs     int
}

// Run scans every note and canvas board: unresolved occurrences are bad
// links or bad embeds by relation; resolved occurrences still in wikilink
// style are wiki-link or wiki-embed findings regardless of resolution.
// Cancellation is honored between documents.
func Run(ctx context.Context, v *vault.FS, ix *linkindex.Index, ignore func(string) bool) (*Report, error) {
	notes, err := ix.Notes()
	if err != nil {
		return nil, err
	}
	resolver := &links.Resolver{Catalog: ix}
	report := &Report{Findings: make(map[Category][]Finding)}

	for _, note := range notes {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if ignore != nil && ignore(note.Path) {
			continue
		}
		data, err := v.Read(note.Path)
		if err != nil {
			report.add(BadLink, Finding{Doc: note.Path, Raw: "", Reason: "unreadable: " + err.Error()})
			continue
		}
		var occs []links.Occurrence
		if note.Kind == vault.KindCanvas {
			occs, err = canvasOccurrences(data)
			if err != nil {
				report.add(BadEmbed, Finding{Doc: note.Path, Raw: "", Reason: "unreadable board: " + err.Error()})
				continue
			}
		} else {
			occs = links.Parse(string(data))
		}
		report.Docs++
		seen := make(map[string]bool)
		for _, occ := range occs {
			resolution := resolver.Resolve(occ, note.Path)
			if !resolution.OK {
				cat := BadLink
				if occ.Embed {
					cat = BadEmbed
				}
				report.addOnce(seen, cat, Finding{
					Doc:    note.Path,
					Raw:    occ.Raw,
					Reason: "target not found",
				})
				continue
			}
			if occ.Style == links.StyleWiki {
				cat := WikiLink
				if occ.Embed {
					cat = WikiEmbed
				}
				report.addOnce(seen, cat, Finding{
					Doc:    note.Path,
					Raw:    occ.Raw,
					Reason: "wikilink style",
				})
			}
		}
	}
	return report, nil
}

// canvasOccurrences maps a board's structured file references onto link
// occurrences so they flow through the same resolution checks. They are
// always embeds and never wikilink style.
func canvasOccurrences(data []byte) ([]links.Occurrence, error) {
	refs, err := links.ParseCanvasRefs(data)
	if err != nil {
		return nil, err
	}
	occs := make([]links.Occurrence, 0, len(refs))
	for _, ref := range refs {
		occs = append(occs, links.Occurrence{
			Style:  links.StyleMarkdown,
			Embed:  true,
			Target: ref,
			Raw:    ref,
		})
	}
	return occs, nil
}

func (r *Report) add(cat Category, f Finding) {
	r.Findings[cat] = append(r.Findings[cat], f)
}

func (r *Report) addOnce(seen map[string]bool, cat Category, f Finding) {
	key := fmt.Sprintf("%d|%s|%s", cat, f.Doc, f.Raw)
	if seen[key] {
		return
	}
	seen[key] = true
	r.add(cat, f)
}

// Total returns the number of findings across all categories.
func (r *Report) Total() int {
	n := 0
	for _, fs := range r.Findings {
		n += len(fs)
	}
	return n
}

// Render produces the stable, sorted report document: one section per
// category, findings grouped by source document.
func (r *Report) Render() string {
	var b strings.Builder
	b.WriteString("# Consistency report\n")

	for _, cat := range []Category{BadLink, BadEmbed, WikiLink, WikiEmbed} {
		findings := append([]Finding(nil), r.Findings[cat]...)
		if len(findings) == 0 {
			continue
		}
		sort.Slice(findings, func(i, j int) bool {
			if findings[i].Doc != findings[j].Doc {
				return findings[i].Doc < findings[j].Doc
			}
			return findings[i].Raw < findings[j].Raw
		})
		fmt.Fprintf(&b, "\n## %s\n", categoryTitles[cat])
		lastDoc := ""
		for _, f := range findings {
			if f.Doc != lastDoc {
				fmt.Fprintf(&b, "\n### %s\n", f.Doc)
				lastDoc = f.Doc
			}
			fmt.Fprintf(&b, "- `%s`: %s\n", f.Raw, f.Reason)
		}
	}
	if r.Total() == 0 {
		b.WriteString("\nNo findings.\n")
	}
	return b.String()
}
