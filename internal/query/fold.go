// Package query detects multi-part legal questions and splits them into
// self-contained sub-queries.
package query

import (
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/norma/internal/keyword"
)

// folded is a lowercased, diacritic-free view of a source string. Patterns run
// against text, and offsets map every folded byte back to its source byte so
// matches can be cut out of the original.
type folded struct {
	src    string
	text   string
	offset []int
}

func fold(s string) folded {
	var b strings.Builder
	offset := make([]int, 0, len(s)+1)
	for i, r := range s {
		f := keyword.FoldText(string(r))
		b.WriteString(f)
		for j := 0; j < len(f); j++ {
			offset = append(offset, i)
		}
	}
	offset = append(offset, len(s))
	return folded{src: s, text: b.String(), offset: offset}
}

// source returns the source byte offset of folded offset i.
func (f folded) source(i int) int {
	if i >= len(f.offset) {
		return len(f.src)
	}
	return f.offset[i]
}

// slice returns the source text covered by the folded range [start, end).
func (f folded) slice(start, end int) string {
	return f.src[f.source(start):f.source(end)]
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

// normalize trims s and collapses internal whitespace runs to one space.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := values[:0:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
