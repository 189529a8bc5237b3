package indexer

import (
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/norma/internal/models"
)

// Preprocess collapses whitespace inside each line, trims lines and squeezes
// runs of blank lines to one. Line breaks are kept for heading detection.
func Preprocess(text string) string {
	var (
		out   []string
		blank bool
	)
	for _, line := range strings.Split(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// Header is the metadata a source file declares about itself.
type Header struct {
	Title   string
	Type    string
	Area    string
	URL     string
	Date    string
	Subject string
}

var (
	frontmatterRe = regexp.MustCompile(`(?s)\A---[ \t]*\n(.*?)\n---[ \t]*(?:\n|\z)`)
	keyValueRe    = regexp.MustCompile(`^([^:]{1,40}):\s*(.*)$`)
	headingRe     = regexp.MustCompile(`^#\s*(.+)$`)
	titleKeyRe    = regexp.MustCompile(`(?i)^t[íi]tulo\s*:\s*(.+)$`)
	yearRe        = regexp.MustCompile(`_(\d{4})(?:_|$)`)
	// The body starts at the first structural heading after any navigation block.
	bodyStartRe = regexp.MustCompile(`(?im)^(?:t[íi]tulo|cap[íi]tulo|art[íi]culo\s+\d|ley\s+\d|decreto|c[óo]digo|constituci[óo]n|resoluci[óo]n|sentencia)`)
)

const headerRule = "========================================"

// parseHeader reads YAML frontmatter, or "Clave: valor" lines before a
// ==== rule, and returns the header with the remaining body.
func parseHeader(raw string) (Header, string) {
	var h Header
	if m := frontmatterRe.FindStringSubmatchIndex(raw); m != nil {
		var fields map[string]string
		if err := yaml.Unmarshal([]byte(raw[m[2]:m[3]]), &fields); err == nil {
			h = headerFrom(fields)
		}
		return h, raw[m[1]:]
	}
	if i := strings.Index(raw, headerRule); i >= 0 {
		fields := make(map[string]string)
		for _, line := range strings.Split(raw[:i], "\n") {
			if kv := keyValueRe.FindStringSubmatch(strings.TrimSpace(line)); kv != nil {
				fields[kv[1]] = strings.TrimSpace(kv[2])
			}
		}
		h = headerFrom(fields)
		body := raw[i+len(headerRule):]
		return h, strings.TrimPrefix(strings.TrimLeft(body, "="), "\n")
	}
	return h, raw
}

func headerFrom(fields map[string]string) Header {
	var h Header
	for k, v := range fields {
		v = strings.Trim(strings.TrimSpace(v), `"'`)
		switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(k)), " ", "_") {
		case "title", "titulo", "título":
			h.Title = v
		case "tipo", "type":
			h.Type = v
		case "area", "area_legal":
			h.Area = v
		case "url", "fuente":
			h.URL = v
		case "fecha", "fecha_vigencia", "date":
			h.Date = v
		case "tema":
			h.Subject = v
		}
	}
	return h
}

// stripNavigation drops any table of contents placed before the first
// structural heading.
func stripNavigation(body string) string {
	if loc := bodyStartRe.FindStringIndex(body); loc != nil && loc[0] > 0 {
		return body[loc[0]:]
	}
	return body
}

// extractTitle looks for a markdown heading or "Título:" line in the first
// lines, falling back to the file name.
func extractTitle(text, fallback string) string {
	lines := strings.SplitN(text, "\n", 6)
	if len(lines) > 5 {
		lines = lines[:5]
	}
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if m := headingRe.FindStringSubmatch(l); m != nil {
			return strings.TrimSpace(m[1])
		}
		if m := titleKeyRe.FindStringSubmatch(l); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return strings.NewReplacer("_", " ", "-", " ").Replace(fallback)
}

// docTypeFor resolves the declared type, then the file name prefix.
func docTypeFor(declared, name string) models.DocType {
	if dt, ok := models.ParseDocType(declared); ok {
		return dt
	}
	lower := strings.ToLower(declared)
	switch {
	case strings.Contains(lower, "tutela"), strings.Contains(lower, "constitucionalidad"), strings.Contains(lower, "unificaci"):
		return models.DocTypeCaselaw
	case strings.Contains(lower, "ley"), strings.Contains(lower, "decreto"), strings.Contains(lower, "código"):
		return models.DocTypeStatute
	}

	base := strings.ToLower(filepath.Base(name))
	switch {
	case strings.HasPrefix(base, "jurisprudencia_"), strings.Contains(base, "sentencia_"):
		return models.DocTypeCaselaw
	case strings.HasPrefix(base, "reglamento_"), strings.HasPrefix(base, "resolucion_"):
		return models.DocTypeRegulation
	case strings.HasPrefix(base, "procedimiento_"):
		return models.DocTypeProcedure
	}
	return models.DocTypeStatute
}

// yearFromName extracts the year of names like ley_100_1993.
func yearFromName(name string) string {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if m := yearRe.FindStringSubmatch(stem); m != nil {
		return m[1]
	}
	return ""
}
