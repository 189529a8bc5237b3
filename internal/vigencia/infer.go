package vigencia

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

var (
	leyPattern     = regexp.MustCompile(`\bley\s+(\d+)\s+de\s+(\d{4})\b`)
	decretoPattern = regexp.MustCompile(`\bdecreto\s+(\d+)\s+de\s+(\d{4})\b`)
)

// knownTitles maps titles that do not follow "Ley N de YYYY" to canonical
// ids. Checked in order.
var knownTitles = []struct {
	fragment string
	id       string
}{
	{"código penal", "ley-599-2000"},
	{"codigo penal", "ley-599-2000"},
	{"ley 599 de 2000", "ley-599-2000"},
	{"ley 100 de 1993", "ley-100-1993"},
	{"decreto 2591 de 1991", "decreto-2591-1991"},
	{"ley 1437 de 2011", "ley-1437-2011"},
	{"código de procedimiento administrativo", "ley-1437-2011"},
	{"cpaca", "ley-1437-2011"},
	{"ley 50 de 1990", "ley-50-1990"},
	{"ley 57 de 1887", "ley-57-1887"},
}

// InferNormID maps a citation title such as "Ley 599 de 2000 (Código Penal)"
// to a known norm id. It returns false when no known norm matches, which
// callers treat as "validity unknown".
func (r *Registry) InferNormID(ctx context.Context, title string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(title))
	if normalized == "" {
		return "", false
	}
	c, err := r.catalog(ctx)
	if err != nil {
		r.logger.Warn("vigencia catalog unavailable", zap.Error(err))
		return "", false
	}
	known := func(id string) bool {
		_, ok := c.records[id]
		return ok
	}

	if m := leyPattern.FindStringSubmatch(normalized); m != nil {
		if id := fmt.Sprintf("ley-%s-%s", m[1], m[2]); known(id) {
			return id, true
		}
	}
	if m := decretoPattern.FindStringSubmatch(normalized); m != nil {
		if id := fmt.Sprintf("decreto-%s-%s", m[1], m[2]); known(id) {
			return id, true
		}
	}

	for _, kt := range knownTitles {
		if strings.Contains(normalized, kt.fragment) && known(kt.id) {
			return kt.id, true
		}
	}

	for _, id := range c.ids {
		name := strings.ToLower(strings.TrimSpace(c.records[id].Name))
		if name != "" && strings.Contains(normalized, name) {
			return id, true
		}
	}
	return "", false
}
