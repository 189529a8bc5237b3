// Package indexer turns legal source documents into corpus chunks and builds
// the lexical and vector artifacts retrieval loads.
package indexer

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Section is one article-aligned piece of a source document.
type Section struct {
	Text    string
	Title   string
	Chapter string
	Section string
	Article string
}

// Path joins the structural headings, outermost first.
func (s Section) Path() string {
	var parts []string
	for _, p := range []string{s.Title, s.Chapter, s.Section, s.Article} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " > ")
}

var (
	titleRe   = regexp.MustCompile(`(?i)^t[íi]tulo\s+([IVXLC]+|primero|segundo|tercero|cuarto|quinto|sexto|s[ée]ptimo|octavo|noveno|d[ée]cimo)\b`)
	chapterRe = regexp.MustCompile(`(?i)^cap[íi]tulo\s+([IVXLC]+|[0-9]+)\b`)
	sectionRe = regexp.MustCompile(`(?i)^secci[óo]n\s+([IVXLC]+|[0-9]+)\b`)
	articleRe = regexp.MustCompile(`(?i)^(?:art[íi]culo|art\.?)\s+([0-9][0-9A-Za-z.\-]*)`)
)

// Chunker splits a norm into sections at title, chapter, section and article
// headings, merges fragments that are too small and windows those too large.
type Chunker struct {
	maxChars     int
	overlapChars int
	minChars     int
}

// NewChunker creates a chunker producing sections of at most maxChars runes,
// repeating up to overlapChars runes of trailing lines when a section is windowed.
func NewChunker(maxChars, overlapChars int) *Chunker {
	if maxChars <= 0 {
		maxChars = 1000
	}
	if overlapChars < 0 || overlapChars >= maxChars {
		overlapChars = 0
	}
	return &Chunker{maxChars: maxChars, overlapChars: overlapChars, minChars: 50}
}

// Split returns the sections of text in document order.
func (c *Chunker) Split(text string) []Section {
	var (
		parts  []Section
		buffer []string
		cur    Section
	)
	flush := func() {
		body := strings.TrimSpace(strings.Join(buffer, "\n"))
		// Short fragments stay buffered and join the next heading's text.
		if utf8.RuneCountInString(body) < c.minChars {
			return
		}
		s := cur
		s.Text = body
		parts = append(parts, s)
		buffer = buffer[:0]
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case titleRe.MatchString(trimmed):
			flush()
			cur.Title = "Título " + strings.ToUpper(titleRe.FindStringSubmatch(trimmed)[1])
			cur.Chapter, cur.Section = "", ""
		case chapterRe.MatchString(trimmed):
			flush()
			cur.Chapter = "Capítulo " + strings.ToUpper(chapterRe.FindStringSubmatch(trimmed)[1])
			cur.Section = ""
		case sectionRe.MatchString(trimmed):
			flush()
			cur.Section = "Sección " + strings.ToUpper(sectionRe.FindStringSubmatch(trimmed)[1])
		case articleRe.MatchString(trimmed):
			flush()
			cur.Article = "Artículo " + strings.TrimRight(articleRe.FindStringSubmatch(trimmed)[1], ".-")
		}
		buffer = append(buffer, line)
	}
	if body := strings.TrimSpace(strings.Join(buffer, "\n")); body != "" {
		s := cur
		s.Text = body
		parts = append(parts, s)
	}
	return c.merge(parts)
}

// merge joins consecutive fragments of one article while they fit, and very
// small neighbours from different articles.
func (c *Chunker) merge(parts []Section) []Section {
	if len(parts) == 0 {
		return nil
	}
	var out []Section
	acc := parts[0]
	for _, p := range parts[1:] {
		accLen, pLen := utf8.RuneCountInString(acc.Text), utf8.RuneCountInString(p.Text)
		sameArticle := acc.Article == p.Article
		switch {
		case sameArticle && accLen+pLen < c.maxChars*3/2:
			acc.Text += "\n\n" + p.Text
		case !sameArticle && accLen+pLen < c.maxChars*4/5 && accLen < c.maxChars*2/5:
			acc.Text += "\n\n" + p.Text
			if acc.Article != "" && p.Article != "" {
				acc.Article += " y " + p.Article
			} else if acc.Article == "" {
				acc.Article = p.Article
			}
		default:
			out = append(out, c.window(acc)...)
			acc = p
		}
	}
	return append(out, c.window(acc)...)
}

// window cuts an oversized section at line boundaries. Each window after the
// first starts with the previous window's trailing lines, up to overlapChars.
func (c *Chunker) window(s Section) []Section {
	if utf8.RuneCountInString(s.Text) <= c.maxChars {
		return []Section{s}
	}
	var (
		out     []Section
		current []string
		size    int
	)
	emit := func() {
		w := s
		w.Text = strings.Join(current, "\n")
		out = append(out, w)
	}
	for _, line := range c.lines(s.Text) {
		n := utf8.RuneCountInString(line) + 1
		if size+n > c.maxChars && len(current) > 0 {
			emit()
			current = c.overlap(current)
			size = 0
			for _, l := range current {
				size += utf8.RuneCountInString(l) + 1
			}
		}
		current = append(current, line)
		size += n
	}
	if len(current) > 0 {
		emit()
	}
	return out
}

// overlap returns the trailing lines of prev that fit in overlapChars.
func (c *Chunker) overlap(prev []string) []string {
	size := 0
	i := len(prev)
	for i > 0 {
		n := utf8.RuneCountInString(prev[i-1]) + 1
		if size+n > c.overlapChars {
			break
		}
		size += n
		i--
	}
	return append([]string(nil), prev[i:]...)
}

// lines splits text into lines, breaking any line longer than maxChars at
// word boundaries.
func (c *Chunker) lines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if utf8.RuneCountInString(line) <= c.maxChars {
			out = append(out, line)
			continue
		}
		var b strings.Builder
		size := 0
		for _, word := range strings.Fields(line) {
			n := utf8.RuneCountInString(word)
			if size > 0 && size+1+n > c.maxChars {
				out = append(out, b.String())
				b.Reset()
				size = 0
			}
			if size > 0 {
				b.WriteByte(' ')
				size++
			}
			b.WriteString(word)
			size += n
		}
		if b.Len() > 0 {
			out = append(out, b.String())
		}
	}
	return out
}
