package vigencia

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/norma/internal/models"
)

const reportRule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

// Report renders a plain-text Spanish validity report for id as of date.
func (r *Registry) Report(ctx context.Context, id string, date models.Date) (string, error) {
	n, err := r.lookup(ctx, id)
	if err != nil {
		return "", err
	}
	if date.IsZero() {
		date = r.Today()
	}
	res := Evaluate(n, date)

	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\nREPORTE DE VIGENCIA\n%s\n\n", reportRule, reportRule)
	fmt.Fprintf(&b, "Norma: %s\n", n.Name)
	fmt.Fprintf(&b, "ID: %s\n", n.ID)
	fmt.Fprintf(&b, "Tipo: %s\n\n", n.Kind)

	until := "Actualmente vigente"
	if !n.EffectiveUntil.IsZero() {
		until = n.EffectiveUntil.String()
	}
	b.WriteString("Vigencia:\n")
	fmt.Fprintf(&b, "  Desde: %s\n", n.EffectiveFrom)
	fmt.Fprintf(&b, "  Hasta: %s\n\n", until)

	fmt.Fprintf(&b, "Estado al %s: ", date)
	switch s := res.Status.(type) {
	case InForce:
		b.WriteString("VIGENTE\n")
	case NotYetEffective:
		b.WriteString("AÚN NO VIGENTE\n")
		fmt.Fprintf(&b, "  Entra en vigencia: %s\n", s.From)
	case Derogated:
		b.WriteString("DEROGADA\n")
		if s.By != "" {
			fmt.Fprintf(&b, "  Derogada por: %s\n", s.By)
		}
		if !s.Since.IsZero() {
			fmt.Fprintf(&b, "  Desde: %s\n", s.Since)
		}
	case PartiallyDerogated:
		b.WriteString("PARCIALMENTE DEROGADA\n")
		b.WriteString("\n  Derogaciones parciales:\n")
		for _, pd := range s.Derogations {
			article := pd.Article
			if article == "" {
				article = "Sección"
			}
			fmt.Fprintf(&b, "    • %s\n", article)
			fmt.Fprintf(&b, "      Derogada por: %s\n", pd.DerogatedBy)
			fmt.Fprintf(&b, "      Desde: %s\n", pd.Since)
			if pd.Reason != "" {
				fmt.Fprintf(&b, "      Razón: %s\n", pd.Reason)
			}
		}
	}

	if len(n.Modifications) > 0 {
		b.WriteString("\nModificaciones:\n")
		for _, m := range n.Modifications {
			fmt.Fprintf(&b, "  • %s (%s)\n", m.ByNorm, m.Date)
			fmt.Fprintf(&b, "    Tipo: %s\n", m.Kind)
			if m.Note != "" {
				fmt.Fprintf(&b, "    %s\n", m.Note)
			}
		}
	}

	if len(n.Notes) > 0 {
		b.WriteString("\nNotas:\n")
		for _, note := range n.Notes {
			fmt.Fprintf(&b, "  • %s\n", note)
		}
	}

	fmt.Fprintf(&b, "\n%s\n", reportRule)
	return b.String(), nil
}
