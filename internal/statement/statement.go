// Package statement reconstructs bank-specific settlement totals from raw
// page text. It is the deterministic counterpart of the extraction oracle:
// header figures and per-period daily blocks recovered here override whatever
// the model answered. Extraction is best-effort throughout; a page that does
// not match simply contributes nothing.
package statement

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/alfanetac/liqreader/internal/numtext"
)

// Canonical concept labels of the daily settlement block.
const (
	LabelVentas      = "VENTAS C/DESCUENTO CONTADO"
	LabelArancel     = "ARANCEL"
	LabelIVACred     = "IVA CRED.FISC.COMERCIO S/ARANC 21,00%"
	LabelIVAOperInt  = "IVA RI SERV.OPER. INT."
	LabelServOperInt = "SERVICIO OPER. INTERNAC."
	LabelRetIIBB     = "RETENCION ING.BRUTOS SIRTAC"
	LabelPercepIVA   = "PERCEPCION IVA R.G. 2408 3,00 %"
	LabelQRPercepIVA = "QR PERCEPCION IVA 3337"
	LabelQRRetIIBB   = "QR RETENCION IIBB RIO NEGRO"
	LabelNeto        = "IMPORTE NETO DE PAGOS"
)

// Page is one page of extracted document text. NextHead carries the first
// lines of the following page so blocks split across page breaks still match.
type Page struct {
	Text     string
	NextHead string
}

// DailyRow is one reconstructed settlement period: an optional date plus the
// mapping from canonical concept label to amount.
type DailyRow struct {
	Date     string
	Concepts map[string]float64
}

// DesgloseItem is one line of the Patagonia discount breakdown section.
type DesgloseItem struct {
	Label  string
	Amount float64
}

// Totals is the read-only snapshot of everything deterministically extracted
// from one document.
type Totals struct {
	TotalPresentado    float64
	HasTotalPresentado bool
	NetoHeader         float64
	HasNetoHeader      bool

	// HeaderAmbiguous flags documents where more than two distinct amounts
	// matched near the header labels; the two largest were kept but the
	// document deserves manual review.
	HeaderAmbiguous bool

	BankNacion    bool
	BankPatagonia bool
	BankName      string
	CardName      string
	Period        string

	// Patagonia header triple.
	TotalDescuento    float64
	HasTotalDescuento bool
	Saldo             float64
	HasSaldo          bool
	Desglose          []DesgloseItem

	// Running per-concept sums across all pages.
	VentasSum  float64
	ArancelSum float64
	IVASum     float64
	RetIVASum  float64
	RetIIBBSum float64
	RetGanSum  float64
	NetoSum    float64
	HasDaily   bool

	DailyRows []DailyRow
}

var (
	reCurrency = regexp.MustCompile(`[0-9]{1,3}(?:[.\s][0-9]{3})*,[0-9]{2}`)

	reVentasSum  = regexp.MustCompile(`(?i)VENTAS\s*C[/ ]DESCUENTO\s*CONTADO\+?\s*\$?\s*([0-9.,]+)`)
	reArancelSum = regexp.MustCompile(`(?i)ARANCEL-?\s*\$?\s*([0-9.,]+)`)
	reIVASum     = regexp.MustCompile(`(?i)IVA\s*CRED[^0-9]*\$?\s*([0-9.,]+)`)
	reRetIIBBSum = regexp.MustCompile(`(?i)RETENCION\s*ING[^0-9]*\$?\s*([0-9.,]+)`)
	reRetIVASum  = regexp.MustCompile(`(?i)(?:PERCEPCION|RETENCION)\s*IVA[^0-9]*\$?\s*([0-9.,]+)`)
	reRetGanSum  = regexp.MustCompile(`(?i)RETENCION\s*GANANCIAS[^0-9]*\$?\s*([0-9.,]+)`)
	reNetoSum    = regexp.MustCompile(`(?i)IMPORTE\s*NETO\s*DE\s*PAGOS\s*\$?\s*([0-9.,]+)`)
)

func sumMatches(re *regexp.Regexp, text string) float64 {
	acc := 0.0
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		acc += numtext.ParseNumber(m[1])
	}
	return acc
}

// Extract walks the document pages once and builds the Totals snapshot.
// filename feeds the card-brand and period fallbacks.
func (t *Totals) extractHeader(text string, log zerolog.Logger) {
	if t.HasTotalPresentado && t.HasNetoHeader {
		return
	}
	amounts := headerAmounts(text)
	if len(amounts) == 0 {
		return
	}
	vals := distinctDesc(amounts)
	if len(vals) > 2 && !t.HeaderAmbiguous {
		t.HeaderAmbiguous = true
		log.Warn().Int("matches", len(vals)).
			Msg("more than two header amounts matched; keeping the two largest, flag for review")
	}
	if len(vals) >= 2 {
		if !t.HasTotalPresentado {
			t.TotalPresentado = vals[0]
			t.HasTotalPresentado = true
		}
		if !t.HasNetoHeader {
			t.NetoHeader = vals[1]
			t.HasNetoHeader = true
		}
	} else if !t.HasTotalPresentado {
		t.TotalPresentado = vals[0]
		t.HasTotalPresentado = true
	}
}

// headerAmounts collects currency-shaped amounts from a fixed window after
// each header label.
func headerAmounts(text string) []float64 {
	var amounts []float64
	lower := strings.ToLower(text)
	for _, label := range []string{"total presentado", "neto de pagos"} {
		idx := strings.Index(lower, label)
		if idx < 0 {
			continue
		}
		end := idx + 220
		if end > len(text) {
			end = len(text)
		}
		for _, m := range reCurrency.FindAllString(text[idx:end], -1) {
			if v := numtext.ParseNumber(m); v > 0 {
				amounts = append(amounts, v)
			}
		}
	}
	return amounts
}

func distinctDesc(vals []float64) []float64 {
	seen := make(map[float64]bool, len(vals))
	var out []float64
	for _, v := range vals {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(out)))
	return out
}

// Extract builds the totals snapshot for one document.
func Extract(pages []Page, filename string, log zerolog.Logger) *Totals {
	t := &Totals{}
	seenRows := make(map[string]bool)

	for _, page := range pages {
		text := page.Text

		t.detectBank(text)
		t.detectCard(text, filename)
		t.detectPeriod(text)
		t.extractHeader(text, log)
		if t.BankPatagonia {
			t.extractPatagoniaHeader(text)
		}

		ventas := sumMatches(reVentasSum, text)
		arancel := sumMatches(reArancelSum, text)
		iva := sumMatches(reIVASum, text)
		retIIBB := sumMatches(reRetIIBBSum, text)
		retIVA := sumMatches(reRetIVASum, text)
		retGan := sumMatches(reRetGanSum, text)
		neto := sumMatches(reNetoSum, text)

		if ventas > 0 || arancel > 0 || iva > 0 || retIIBB > 0 || retIVA > 0 || retGan > 0 || neto > 0 {
			t.HasDaily = true
			t.VentasSum += ventas
			t.ArancelSum += arancel
			t.IVASum += iva
			t.RetIIBBSum += retIIBB
			t.RetIVASum += retIVA
			t.RetGanSum += retGan
			t.NetoSum += neto
		}

		// Window-anchored blocks are unreliable for Banco Nación; its pages
		// are rebuilt sequentially below instead.
		if !t.BankNacion {
			for _, block := range extractDailyBlocks(text, page.NextHead) {
				row, ok := parseDailyBlock(block)
				if !ok {
					continue
				}
				key := rowKey(row)
				if seenRows[key] {
					continue
				}
				seenRows[key] = true
				t.DailyRows = append(t.DailyRows, row)
			}
		}
	}

	if t.BankNacion {
		t.DailyRows = extractSequential(pages)
	}
	if t.BankPatagonia {
		t.Desglose = extractDesglose(pages)
	}

	if t.BankName == "" && t.BankNacion {
		t.BankName = "BANCO DE LA NACION ARGENTINA"
	}
	if t.BankName == "" && t.BankPatagonia {
		t.BankName = "BANCO PATAGONIA S.A."
	}
	if t.CardName == "" {
		t.CardName = inferCardFromFilename(filename)
	}
	if t.Period == "" && t.BankPatagonia {
		t.Period = inferPeriodFromFilename(filename)
	}
	return t
}

func rowKey(row DailyRow) string {
	labels := make([]string, 0, len(row.Concepts))
	for k := range row.Concepts {
		labels = append(labels, k)
	}
	sort.Strings(labels)
	var b strings.Builder
	for _, l := range labels {
		fmt.Fprintf(&b, "%s=%.2f;", l, row.Concepts[l])
	}
	return b.String()
}

// TotalsFromDailyRows sums every concept column across rows.
func TotalsFromDailyRows(rows []DailyRow) map[string]float64 {
	totals := make(map[string]float64)
	for _, r := range rows {
		for label, v := range r.Concepts {
			totals[label] += v
		}
	}
	return totals
}
