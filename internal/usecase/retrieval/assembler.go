package retrieval

import (
	"cmp"
	"slices"
	"strings"
	"unicode/utf8"
)

// NoContext is the context block used when retrieval found nothing.
const NoContext = "No relevant context found."

// Assemble renders every non-empty section under its header, chunks
// separated by blank lines.
func Assemble(res Result) string {
	return AssembleWithin(res, 0)
}

// AssembleWithin is Assemble capped at maxChars runes. It drops the
// highest-distance chunks first and never cuts a chunk. maxChars <= 0
// means unbounded.
func AssembleWithin(res Result, maxChars int) string {
	keep := keepAll(res)
	out := render(res, keep)
	for maxChars > 0 && utf8.RuneCountInString(out) > maxChars && dropWorst(res, keep) {
		out = render(res, keep)
	}
	if out == "" {
		return NoContext
	}
	return out
}

type hitRef struct{ section, hit int }

func keepAll(res Result) map[hitRef]bool {
	keep := make(map[hitRef]bool)
	for si, s := range res.Sections {
		for hi := range s.Hits {
			keep[hitRef{si, hi}] = true
		}
	}
	return keep
}

// dropWorst removes the kept hit with the largest distance. On ties the one
// appearing last in the rendered block goes first.
func dropWorst(res Result, keep map[hitRef]bool) bool {
	refs := make([]hitRef, 0, len(keep))
	for ref := range keep {
		refs = append(refs, ref)
	}
	if len(refs) == 0 {
		return false
	}
	worst := slices.MaxFunc(refs, func(a, b hitRef) int {
		da := res.Sections[a.section].Hits[a.hit].Distance
		db := res.Sections[b.section].Hits[b.hit].Distance
		if c := cmp.Compare(da, db); c != 0 {
			return c
		}
		if c := cmp.Compare(a.section, b.section); c != 0 {
			return c
		}
		return cmp.Compare(a.hit, b.hit)
	})
	delete(keep, worst)
	return true
}

func render(res Result, keep map[hitRef]bool) string {
	var parts []string
	for si, s := range res.Sections {
		var texts []string
		for hi, h := range s.Hits {
			if keep[hitRef{si, hi}] {
				texts = append(texts, h.Text)
			}
		}
		if len(texts) == 0 {
			continue
		}
		block := strings.Join(texts, "\n\n")
		if s.Header != "" {
			block = s.Header + "\n" + block
		}
		parts = append(parts, block)
	}
	return strings.Join(parts, "\n\n")
}
