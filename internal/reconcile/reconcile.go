// Package reconcile merges the oracle's CONCEPTO|TOTAL output with the
// deterministic statement totals and forces the zero-sum invariant on the
// final ledger lines. Deterministic figures always win over model output.
package reconcile

import (
	"math"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/alfanetac/liqreader/internal/concepts"
	"github.com/alfanetac/liqreader/internal/numtext"
	"github.com/alfanetac/liqreader/internal/statement"
)

// preferredColumns is the column order used when building output from daily
// rows; concepts outside the list follow alphabetically.
var preferredColumns = []string{
	statement.LabelVentas,
	statement.LabelArancel,
	statement.LabelIVACred,
	statement.LabelRetIIBB,
	statement.LabelPercepIVA,
	"RETENCION IVA",
	"RETENCION GANANCIAS",
	statement.LabelNeto,
}

// Apply reconciles the oracle text against the statement snapshot and
// returns the final ledger text, header block included. Branches are tried
// in fixed order and the first applicable one wins.
func Apply(oracleText string, tot *statement.Totals, log zerolog.Logger) string {
	header := BuildHeader(tot)

	// Patagonia publishes its own discount breakdown; the oracle text is
	// bypassed entirely.
	if tot.BankPatagonia && len(tot.Desglose) > 0 {
		if !tot.HasTotalPresentado {
			log.Warn().Msg("no TOTAL PRESENTADO detected in Patagonia header")
		}
		log.Info().Msg("ledger built from Patagonia discount breakdown")
		return header + desgloseOutput(tot)
	}

	if tot.BankNacion && len(tot.DailyRows) > 0 {
		rows := statement.FilterDailyRows(tot.DailyRows, tot, log)
		if out := dailyColumnsOutput(rows, tot); out != "" {
			log.Info().Msg("ledger built from daily settlement columns")
			return header + out
		}
	}

	totals := parseOutputTotals(oracleText)
	changed := false

	ventas := tot.VentasSum
	arancel := tot.ArancelSum
	iva := tot.IVASum
	retIVA := tot.RetIVASum
	retIIBB := tot.RetIIBBSum
	retGan := tot.RetGanSum
	neto := tot.NetoSum

	// The raw IVA sum often picks up the 21,00% rate token instead of the
	// amount; recompute from the fee when inconsistent.
	if tot.HasDaily && arancel > 0 {
		ivaCalc := numtext.Round2(arancel * 0.21)
		if iva <= 0 || math.Abs(iva-ivaCalc) > 0.05 {
			iva = ivaCalc
		}
	}

	switch {
	case tot.HasDaily && ventas > 0:
		totals[concepts.Tarjeta] = ventas
		changed = true
	case tot.HasTotalPresentado:
		totals[concepts.Tarjeta] = tot.TotalPresentado
		changed = true
	}

	switch {
	case tot.HasDaily && neto > 0:
		totals[concepts.Banco] = neto
		changed = true
	case tot.HasDaily && ventas > 0 && (arancel > 0 || iva > 0 || retIVA > 0 || retIIBB > 0 || retGan > 0):
		totals[concepts.Banco] = ventas - (arancel + iva + retIVA + retIIBB + retGan)
		changed = true
	case tot.HasNetoHeader:
		totals[concepts.Banco] = tot.NetoHeader
		changed = true
	}

	if tot.HasDaily {
		if arancel > 0 {
			totals[concepts.Gasto] = -arancel
			changed = true
		}
		if iva > 0 {
			totals[concepts.IVACredito] = -iva
			changed = true
		}
		if retIVA > 0 {
			totals[concepts.RetIVA] = -retIVA
			changed = true
		}
		if retIIBB > 0 {
			totals[concepts.RetIIBB] = -retIIBB
			changed = true
		}
		if retGan > 0 {
			totals[concepts.RetGan] = -retGan
			changed = true
		}
	}

	if !changed {
		return header + oracleText
	}

	norm := map[concepts.Category]float64{
		concepts.Tarjeta:    math.Abs(totals[concepts.Tarjeta]),
		concepts.Banco:      -math.Abs(totals[concepts.Banco]),
		concepts.Gasto:      -math.Abs(totals[concepts.Gasto]),
		concepts.IVACredito: -math.Abs(totals[concepts.IVACredito]),
		concepts.RetIVA:     -math.Abs(totals[concepts.RetIVA]),
		concepts.RetIIBB:    -math.Abs(totals[concepts.RetIIBB]),
		concepts.RetGan:     -math.Abs(totals[concepts.RetGan]),
	}
	sumExceptOtros := 0.0
	for _, v := range norm {
		sumExceptOtros += v
	}
	if math.Abs(sumExceptOtros) < 0.01 {
		norm[concepts.Otros] = 0
	} else {
		norm[concepts.Otros] = -sumExceptOtros
	}

	log.Info().
		Float64("tarjeta", norm[concepts.Tarjeta]).
		Float64("banco", norm[concepts.Banco]).
		Msg("deterministic overrides applied")

	return header + formatFromTotals(norm)
}

// desgloseOutput emits the Patagonia breakdown: presented total positive,
// every discount negative, balance negative.
func desgloseOutput(tot *statement.Totals) string {
	var lines []string
	if tot.HasTotalPresentado {
		lines = append(lines, "TOTAL PRESENTADO|"+numtext.FormatAmount(tot.TotalPresentado))
	}
	for _, it := range tot.Desglose {
		lines = append(lines, it.Label+"|"+numtext.FormatAmount(-math.Abs(it.Amount)))
	}
	if tot.HasSaldo {
		lines = append(lines, "SALDO|"+numtext.FormatAmount(-math.Abs(tot.Saldo)))
	}
	return strings.Join(lines, "\n") + "\n"
}

// dailyColumnsOutput builds one line per concept column summed across daily
// rows. When the header net figure disagrees with the computed net beyond
// the tolerance the header wins and the difference moves into the sales
// column, keeping sale = net + charges.
func dailyColumnsOutput(rows []statement.DailyRow, tot *statement.Totals) string {
	totals := statement.TotalsFromDailyRows(rows)
	if len(totals) == 0 {
		return ""
	}
	cols := orderedColumns(totals)

	if tot.HasNetoHeader {
		if netoCalc, ok := totals[statement.LabelNeto]; ok {
			tolerance := math.Max(1.0, tot.NetoHeader*0.002)
			if math.Abs(netoCalc-tot.NetoHeader) > tolerance {
				totals[statement.LabelNeto] = tot.NetoHeader
				cargos := 0.0
				for label, v := range totals {
					if label == statement.LabelVentas || label == statement.LabelNeto {
						continue
					}
					cargos += v
				}
				totals[statement.LabelVentas] = tot.NetoHeader + cargos
			}
		}
	}

	var lines []string
	for _, c := range cols {
		v := totals[c]
		if strings.Contains(strings.ToUpper(c), "VENTAS") {
			v = math.Abs(v)
		} else {
			v = -math.Abs(v)
		}
		lines = append(lines, c+"|"+numtext.FormatAmount(v))
	}
	return strings.Join(lines, "\n") + "\n"
}

func orderedColumns(totals map[string]float64) []string {
	var cols []string
	inPreferred := make(map[string]bool)
	for _, c := range preferredColumns {
		if _, ok := totals[c]; ok {
			cols = append(cols, c)
			inPreferred[c] = true
		}
	}
	var rest []string
	for c := range totals {
		if !inPreferred[c] {
			rest = append(rest, c)
		}
	}
	sort.Strings(rest)
	return append(cols, rest...)
}

// parseOutputTotals reads the oracle's CONCEPTO|TOTAL lines into per-category
// amounts. Later lines of the same category replace earlier ones; the
// summarized oracle output carries one line per category.
func parseOutputTotals(text string) map[concepts.Category]float64 {
	totals := make(map[concepts.Category]float64, 8)
	for _, cat := range concepts.Categories() {
		totals[cat] = 0
	}
	for _, ln := range strings.Split(text, "\n") {
		concept, total, ok := strings.Cut(ln, "|")
		if !ok {
			continue
		}
		cat := concepts.Classify(strings.TrimSpace(concept))
		totals[cat] = numtext.ParseNumber(strings.TrimSpace(total))
	}
	return totals
}

// formatFromTotals renders one line per canonical category. The OTROS
// residual keeps whichever sign balances the entry.
func formatFromTotals(totals map[concepts.Category]float64) string {
	var lines []string
	for _, cat := range concepts.Categories() {
		v := totals[cat]
		if cat == concepts.Otros {
			v = numtext.Round2(v)
		} else {
			v = concepts.NormalizeAmount(v, cat)
		}
		lines = append(lines, cat.String()+"|"+numtext.FormatAmount(v))
	}
	return strings.Join(lines, "\n") + "\n"
}
