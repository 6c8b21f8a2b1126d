package statement

import (
	"regexp"
	"strings"

	"github.com/alfanetac/liqreader/internal/numtext"
)

var (
	rePatagoniaTriple = regexp.MustCompile(
		`(?i)TOTAL\s+PRESENTADO\s*\$\s*([0-9.,]+)\s*[\r\n ]+` +
			`TOTAL\s+DESCUENTO\s*\$\s*([0-9.,]+)\s*[\r\n ]+` +
			`SALDO\s*\$\s*([0-9.,]+)`)
	rePatagoniaTitle = regexp.MustCompile(`(?i)TOTAL\s+PRESENTADO\s*\$`)

	reLabelNoise = regexp.MustCompile(`[^A-Z0-9/%\s.\-]`)
	reBareNumber = regexp.MustCompile(`\b[0-9][0-9.,]*\b`)
	reMultiSpace = regexp.MustCompile(`\s{2,}`)
)

// extractPatagoniaHeader captures the TOTAL PRESENTADO / TOTAL DESCUENTO /
// SALDO triple, trying a strict three-line match first and falling back to
// positional windows when OCR mangles the layout.
func (t *Totals) extractPatagoniaHeader(text string) {
	if t.HasTotalPresentado && t.HasTotalDescuento && t.HasSaldo {
		return
	}

	setTriple := func(tp, desc, saldo float64) {
		if !t.HasTotalPresentado {
			t.TotalPresentado, t.HasTotalPresentado = tp, true
		}
		if !t.HasTotalDescuento {
			t.TotalDescuento, t.HasTotalDescuento = desc, true
		}
		if !t.HasSaldo {
			t.Saldo, t.HasSaldo = saldo, true
		}
	}

	if m := rePatagoniaTriple.FindStringSubmatch(text); m != nil {
		setTriple(numtext.ParseNumber(m[1]), numtext.ParseNumber(m[2]), numtext.ParseNumber(m[3]))
		return
	}

	// window fallback after the block title
	upper := strings.ToUpper(text)
	if idx := strings.Index(upper, "TOTAL PRESENTADO"); idx >= 0 {
		end := idx + 500
		if end > len(text) {
			end = len(text)
		}
		if vals := positiveCurrency(text[idx:end]); len(vals) >= 3 {
			setTriple(vals[0], vals[1], vals[2])
			return
		}
	}

	// line fallback: next amounts after the title row
	var lines []string
	for _, ln := range strings.Split(text, "\n") {
		if s := strings.TrimSpace(ln); s != "" {
			lines = append(lines, s)
		}
	}
	for i, ln := range lines {
		if !rePatagoniaTitle.MatchString(ln) {
			continue
		}
		end := i + 12
		if end > len(lines) {
			end = len(lines)
		}
		var vals []float64
		for _, l := range lines[i:end] {
			vals = append(vals, positiveCurrency(l)...)
		}
		if len(vals) >= 3 {
			setTriple(vals[0], vals[1], vals[2])
		}
		return
	}
}

func positiveCurrency(s string) []float64 {
	var vals []float64
	for _, m := range reCurrency.FindAllString(s, -1) {
		if v := numtext.ParseNumber(m); v > 0 {
			vals = append(vals, v)
		}
	}
	return vals
}

// extractDesglose parses the Patagonia "DESGLOSE DE DESCUENTOS" section into
// labeled amounts. Section titles without an amount become pending labels for
// the following rate lines; dollar-denominated (U$S) lines are skipped. A
// "Base Imponible IVA" line means the arancel/cargo lines duplicate amounts
// already broken down, so they are removed to avoid double counting.
func extractDesglose(pages []Page) []DesgloseItem {
	var parts []string
	for _, p := range pages {
		parts = append(parts, p.Text)
	}
	text := strings.Join(parts, "\n")

	idx := strings.Index(strings.ToUpper(text), "DESGLOSE DE DESCUENTOS")
	if idx < 0 {
		return nil
	}
	end := idx + 2000
	if end > len(text) {
		end = len(text)
	}
	block := text[idx:end]
	if sep := strings.Index(block, "____"); sep > 0 {
		block = block[:sep]
	}

	var items []DesgloseItem
	pendingLabel := ""
	for _, ln := range strings.Split(block, "\n") {
		if !strings.Contains(ln, "$") {
			clean := cleanLabel(ln)
			if clean != "" && !strings.HasPrefix(clean, "DESGLOSE") {
				pendingLabel = clean
			}
			continue
		}
		if strings.Contains(strings.ToUpper(ln), "U$S") {
			continue
		}
		amount, ok := lastAmount(ln)
		if !ok {
			continue
		}
		label := cleanLabel(ln)
		label = strings.TrimSpace(reBareNumber.ReplaceAllString(label, ""))
		label = reMultiSpace.ReplaceAllString(label, " ")

		if (label == "%" || label == "TASA %") && pendingLabel != "" {
			label = pendingLabel
		} else if strings.HasPrefix(label, "TASA") && pendingLabel != "" {
			label = pendingLabel + " - " + label
		}
		if label == "%" || label == "TASA %" || label == "" {
			continue
		}
		items = append(items, DesgloseItem{Label: label, Amount: amount})
	}

	hasBase := false
	for _, it := range items {
		if strings.Contains(it.Label, "BASE IMPONIBLE IVA") {
			hasBase = true
			break
		}
	}
	if hasBase {
		var kept []DesgloseItem
		for _, it := range items {
			if strings.Contains(it.Label, "ARANCEL TJ.C") ||
				strings.Contains(it.Label, "ARANCEL TJ.D") ||
				strings.Contains(it.Label, "CARGO POR SERVICIO") {
				continue
			}
			kept = append(kept, it)
		}
		items = kept
	}
	return items
}

func cleanLabel(ln string) string {
	s := reLabelNoise.ReplaceAllString(strings.ToUpper(ln), " ")
	s = strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
	return reMultiSpace.ReplaceAllString(s, " ")
}
