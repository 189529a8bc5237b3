package query

import "strings"

type legalArea struct {
	name     string
	keywords []string
}

// Keywords are folded. Order breaks ties.
var legalAreas = []legalArea{
	{"constitucional", []string{"constitucion", "constitucional", "derechos fundamentales", "tutela", "accion de tutela"}},
	{"laboral", []string{"laboral", "trabajo", "empleado", "empleador", "contrato de trabajo", "horas extras", "vacaciones", "cesantias"}},
	{"seguridad_social", []string{"pension", "salud", "eps", "arl", "seguridad social", "afp", "embargable"}},
	{"tributario", []string{"impuesto", "renta", "iva", "retefuente", "dian", "factura", "tributario"}},
	{"comercial", []string{"sociedad", "empresa", "comercio", "contrato", "compraventa", "arrendamiento"}},
	{"civil", []string{"derecho civil", "propiedad", "sucesion", "divorcio", "patrimonio"}},
	{"penal", []string{"penal", "delito", "carcel", "prision", "homicidio", "robo"}},
	{"administrativo", []string{"administrativo", "licencia", "permiso", "tramite", "procedimiento administrativo"}},
	{"familia", []string{"familia", "matrimonio", "divorcio", "alimentos", "patria potestad"}},
	{"procesal", []string{"proceso", "demanda", "sentencia", "recurso", "apelacion", "casacion"}},
}

// DetectLegalArea returns the area whose keywords appear most often in text,
// or "" when none does.
func DetectLegalArea(text string) string {
	f := " " + strings.Join(tokenWords(fold(text).text), " ") + " "
	best, bestHits := "", 0
	for _, area := range legalAreas {
		hits := 0
		for _, kw := range area.keywords {
			if strings.Contains(f, " "+kw+" ") {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = area.name, hits
		}
	}
	return best
}

// tokenWords splits folded text on anything that is not a letter or digit.
func tokenWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == 'ñ')
	})
}
