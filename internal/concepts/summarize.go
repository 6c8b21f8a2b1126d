package concepts

import (
	"strings"

	"github.com/alfanetac/liqreader/internal/numtext"
)

// controlMarker separates the main CONCEPTO|TOTAL block from the optional
// per-day control section the oracle may append. Lines after the marker pass
// through untouched.
const controlMarker = "CONTROL_TOTALES_DIARIOS"

// SummarizeText cleans raw oracle output and collapses the main block into
// the eight canonical category lines. Markdown noise (fences, bold markers,
// separators) is dropped first.
func SummarizeText(text string) string {
	var kept []string
	for _, raw := range strings.Split(text, "\n") {
		ln := strings.TrimSpace(raw)
		if ln == "" {
			continue
		}
		if strings.HasPrefix(ln, "```") || strings.HasPrefix(ln, "**") || ln == "---" {
			continue
		}
		kept = append(kept, ln)
	}
	if len(kept) == 0 {
		return text
	}

	var out []string
	var main []string
	inControl := false
	for _, ln := range kept {
		if numtext.Normalize(ln) == controlMarker {
			inControl = true
			out = append(out, summarizeMain(main)...)
			main = nil
			out = append(out, ln)
			continue
		}
		if inControl {
			out = append(out, ln)
		} else {
			main = append(main, ln)
		}
	}
	if len(main) > 0 {
		out = append(out, summarizeMain(main)...)
	}

	return strings.Join(out, "\n") + "\n"
}

// summarizeMain sums the CONCEPTO|TOTAL lines per category and emits one
// canonical line per category in fixed order. Models occasionally answer a
// generic OTROS for every row; the positional fallback recovers the expected
// eight-row structure, and an unmatched first row defaults to TARJETA since
// the presented total always leads.
func summarizeMain(lines []string) []string {
	cats := Categories()
	sums := make(map[Category]float64, len(cats))

	rowIdx := 0
	for _, ln := range lines {
		concept, total, ok := strings.Cut(ln, "|")
		if !ok {
			continue
		}
		concept = strings.TrimSpace(concept)
		total = strings.TrimSpace(total)

		switch numtext.Normalize(concept) {
		case "CONCEPTO", "TIPO", "TIPOCONCEPTOIA":
			continue
		}
		switch numtext.Normalize(total) {
		case "TOTAL", "IMPORTE":
			continue
		}

		rowIdx++
		cat := Classify(concept)
		if cat == Otros {
			switch numtext.Normalize(concept) {
			case "OTRO", "OTROS", "OTHER":
				if rowIdx >= 1 && rowIdx <= len(cats) {
					cat = cats[rowIdx-1]
				}
			}
		}
		if rowIdx == 1 && cat == Otros {
			cat = Tarjeta
		}
		sums[cat] += numtext.ParseNumber(total)
	}

	out := make([]string, 0, len(cats))
	for _, cat := range cats {
		v := NormalizeAmount(sums[cat], cat)
		out = append(out, cat.String()+"|"+numtext.FormatAmount(v))
	}
	return out
}
