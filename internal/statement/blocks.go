package statement

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/alfanetac/liqreader/internal/numtext"
)

var (
	reNetoAnchor   = regexp.MustCompile(`(?i)IMPORTE\s*NETO\s*DE\s*PAGOS`)
	reVentasAnchor = regexp.MustCompile(`(?i)VENTAS\s*C[/ ]DESCUENTO\s*CONTADO`)
	reNumToken     = regexp.MustCompile(`[0-9][0-9.,]*`)
	reAnyDigit     = regexp.MustCompile(`\d`)

	reDateFPres = regexp.MustCompile(`(?i)F\.\s*Pres\s*([0-9]{2}/[0-9]{2}/[0-9]{4})`)
	reDateElDia = regexp.MustCompile(`(?i)el\s+d[ií]a\s*([0-9]{2}/[0-9]{2}/[0-9]{4})`)
	reDateAny   = regexp.MustCompile(`[0-9]{2}/[0-9]{2}/[0-9]{4}`)
)

// canonLabel maps a text line onto one of the canonical block labels, or ""
// when the line belongs to no known concept.
func canonLabel(line string) string {
	t := strings.TrimSpace(reSpaces.ReplaceAllString(strings.ToUpper(line), " "))
	switch {
	case strings.Contains(t, "VENTAS C/DESCUENTO CONTADO"):
		return LabelVentas
	case strings.Contains(t, "ARANCEL"):
		return LabelArancel
	case strings.Contains(t, "IVA CRED.FISC.COMERCIO S/ARANC"):
		return LabelIVACred
	case strings.Contains(t, "IVA RI SERV.OPER. INT"):
		return LabelIVAOperInt
	case strings.Contains(t, "SERVICIO OPER. INTERNAC"), strings.Contains(t, "SERV.OPER. INT"):
		return LabelServOperInt
	case strings.Contains(t, "RETENCION ING.BRUTOS SIRTAC"):
		return LabelRetIIBB
	case strings.Contains(t, "PERCEPCION IVA R.G. 2408"):
		return LabelPercepIVA
	case strings.Contains(t, "QR PERCEPCION IVA 3337"):
		return LabelQRPercepIVA
	case strings.Contains(t, "QR RETENCION IIBB RIO NEGRO"):
		return LabelQRRetIIBB
	case strings.Contains(t, "IMPORTE NETO DE PAGOS"):
		return LabelNeto
	}
	return ""
}

// lastAmount extracts the last numeric token of the line.
func lastAmount(line string) (float64, bool) {
	nums := reNumToken.FindAllString(line, -1)
	if len(nums) == 0 {
		return 0, false
	}
	v := numtext.ParseNumber(nums[len(nums)-1])
	if v <= 0 {
		return 0, false
	}
	return v, true
}

// extractDailyBlocks carves candidate text windows around the two anchor
// phrases. The net-of-payments anchor takes 12 lines before and 3 after; the
// sales anchor takes 2 before and 10 after, catching blocks whose net line
// was lost to OCR.
func extractDailyBlocks(text, nextHead string) []string {
	if text == "" {
		return nil
	}
	combined := text
	if nextHead != "" {
		combined += "\n" + nextHead
	}
	var lines []string
	for _, ln := range strings.Split(combined, "\n") {
		if strings.TrimSpace(ln) != "" {
			lines = append(lines, ln)
		}
	}

	var blocks []string
	appendWindow := func(idx, before, after int) {
		start := idx - before
		if start < 0 {
			start = 0
		}
		end := idx + after
		if end > len(lines) {
			end = len(lines)
		}
		blocks = append(blocks, strings.Join(lines[start:end], "\n"))
	}

	for i, ln := range lines {
		if reNetoAnchor.MatchString(ln) {
			appendWindow(i, 12, 3)
		}
	}
	for i, ln := range lines {
		if reVentasAnchor.MatchString(ln) {
			appendWindow(i, 2, 10)
		}
	}

	// de-dup by prefix
	seen := make(map[string]bool, len(blocks))
	var uniq []string
	for _, b := range blocks {
		key := b
		if len(key) > 200 {
			key = key[:200]
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		uniq = append(uniq, b)
	}
	return uniq
}

// parseDailyBlock turns one candidate window into a DailyRow. The block is
// accepted only when bounded by the sales line and the net line; everything
// outside those boundaries is another period's data.
func parseDailyBlock(block string) (DailyRow, bool) {
	var all []string
	for _, ln := range strings.Split(block, "\n") {
		if s := strings.TrimSpace(ln); s != "" {
			all = append(all, s)
		}
	}
	if len(all) == 0 {
		return DailyRow{}, false
	}

	startIdx, endIdx := -1, -1
	for i, ln := range all {
		if startIdx < 0 && reVentasAnchor.MatchString(ln) {
			startIdx = i
		}
		if reNetoAnchor.MatchString(ln) {
			endIdx = i
			if startIdx < 0 {
				startIdx = 0
			}
			break
		}
	}
	if startIdx < 0 || endIdx < 0 || endIdx < startIdx {
		return DailyRow{}, false
	}

	concepts := make(map[string]float64)
	for _, ln := range all[startIdx : endIdx+1] {
		if !reAnyDigit.MatchString(ln) || !strings.Contains(ln, "$") {
			continue
		}
		label := canonLabel(ln)
		if label == "" {
			continue
		}
		if v, ok := lastAmount(ln); ok {
			concepts[label] = v
		}
	}
	if len(concepts) == 0 {
		return DailyRow{}, false
	}

	date := ""
	if m := reDateFPres.FindStringSubmatch(block); m != nil {
		date = m[1]
	} else if m := reDateElDia.FindStringSubmatch(block); m != nil {
		date = m[1]
	} else if dates := reDateAny.FindAllString(block, -1); len(dates) > 0 {
		date = dates[len(dates)-1]
	}

	return DailyRow{Date: date, Concepts: concepts}, true
}

// extractSequential rebuilds daily rows by walking pages in order and
// flushing the running block every time the net line is seen. Banco Nación
// statements do not repeat section headers, which makes window anchoring
// unreliable for them.
func extractSequential(pages []Page) []DailyRow {
	var rows []DailyRow
	current := make(map[string]float64)

	for _, page := range pages {
		for _, ln := range strings.Split(page.Text, "\n") {
			label := canonLabel(ln)
			if label == "" {
				continue
			}
			v, ok := lastAmount(ln)
			if !ok {
				continue
			}
			current[label] = v
			if label == LabelNeto {
				copied := make(map[string]float64, len(current))
				for k, val := range current {
					copied[k] = val
				}
				rows = append(rows, DailyRow{Concepts: copied})
				clear(current)
			}
		}
	}
	return rows
}

func closeTo(a, b float64) bool {
	tol := b * 0.002
	if tol < 1.0 {
		tol = 1.0
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return a > 0 && diff <= tol
}

// FilterDailyRows discards partial blocks (those missing a positive sale or
// net amount) when the unfiltered aggregate disagrees with the document
// header beyond the 0.2%-or-1-unit tolerance, but only if filtering actually
// restores agreement. Disagreement is logged, never fatal.
func FilterDailyRows(rows []DailyRow, t *Totals, log zerolog.Logger) []DailyRow {
	if len(rows) == 0 {
		return rows
	}

	saleNet := func(rs []DailyRow) (float64, float64) {
		agg := TotalsFromDailyRows(rs)
		return agg[LabelVentas], agg[LabelNeto]
	}

	sale, net := saleNet(rows)
	okSale := !t.HasTotalPresentado || closeTo(sale, t.TotalPresentado)
	okNet := !t.HasNetoHeader || closeTo(net, t.NetoHeader)
	if okSale && okNet {
		return rows
	}

	var filtered []DailyRow
	for _, r := range rows {
		if r.Concepts[LabelVentas] > 0 && r.Concepts[LabelNeto] > 0 {
			filtered = append(filtered, r)
		}
	}
	if len(filtered) == 0 {
		return rows
	}

	sale2, net2 := saleNet(filtered)
	okSale2 := !t.HasTotalPresentado || closeTo(sale2, t.TotalPresentado)
	okNet2 := !t.HasNetoHeader || closeTo(net2, t.NetoHeader)

	log.Info().
		Float64("sale_before", sale).Float64("sale_after", sale2).
		Float64("net_before", net).Float64("net_after", net2).
		Msg("partial daily blocks filtered")

	if okSale2 && okNet2 {
		return filtered
	}
	return rows
}
