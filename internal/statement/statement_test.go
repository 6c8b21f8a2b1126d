package statement

import (
	"math"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func discard() zerolog.Logger {
	return zerolog.Nop()
}

const nacionDaily = `BCO DE LA NACION ARGENTINA
TARJETA DE CREDITO MASTERCARD
MARZO 2025
F. Pres 05/03/2025
VENTAS C/DESCUENTO CONTADO $ 1.000,00
ARANCEL $ 50,00
IVA CRED.FISC.COMERCIO S/ARANC 21,00% $ 10,50
IMPORTE NETO DE PAGOS $ 939,50
`

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 0.005 {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func TestExtractBankAndPeriod(t *testing.T) {
	tot := Extract([]Page{{Text: nacionDaily}}, "liq_master_2025.pdf", discard())

	if !tot.BankNacion {
		t.Error("BankNacion not detected")
	}
	if tot.BankName != "BANCO DE LA NACION ARGENTINA" {
		t.Errorf("BankName = %q", tot.BankName)
	}
	if tot.CardName != "TARJETA MASTERCARD" {
		t.Errorf("CardName = %q, brand should beat the generic label", tot.CardName)
	}
	if tot.Period != "MARZO 2025" {
		t.Errorf("Period = %q", tot.Period)
	}
}

func TestExtractDailySums(t *testing.T) {
	tot := Extract([]Page{{Text: nacionDaily}}, "liq.pdf", discard())

	if !tot.HasDaily {
		t.Fatal("HasDaily = false")
	}
	approx(t, "VentasSum", tot.VentasSum, 1000)
	approx(t, "ArancelSum", tot.ArancelSum, 50)
	approx(t, "NetoSum", tot.NetoSum, 939.50)
}

func TestExtractSequentialForNacion(t *testing.T) {
	// Two settlement periods across two pages; no section headers repeat.
	page1 := "BANCO NACION\nVENTAS C/DESCUENTO CONTADO $ 600,00\nARANCEL $ 30,00\nIMPORTE NETO DE PAGOS $ 570,00\n"
	page2 := "VENTAS C/DESCUENTO CONTADO $ 400,00\nARANCEL $ 20,00\nIMPORTE NETO DE PAGOS $ 380,00\n"

	tot := Extract([]Page{{Text: page1}, {Text: page2}}, "liq.pdf", discard())

	if len(tot.DailyRows) != 2 {
		t.Fatalf("got %d daily rows, want 2", len(tot.DailyRows))
	}
	approx(t, "row0 ventas", tot.DailyRows[0].Concepts[LabelVentas], 600)
	approx(t, "row1 neto", tot.DailyRows[1].Concepts[LabelNeto], 380)
}

func TestParseDailyBlockRequiresBoundaries(t *testing.T) {
	// Missing net line: not a complete block.
	if _, ok := parseDailyBlock("VENTAS C/DESCUENTO CONTADO $ 100,00\nARANCEL $ 5,00"); ok {
		t.Error("block without net boundary should be rejected")
	}

	row, ok := parseDailyBlock("F. Pres 05/03/2025\nVENTAS C/DESCUENTO CONTADO $ 100,00\nIMPORTE NETO DE PAGOS $ 95,00")
	if !ok {
		t.Fatal("complete block rejected")
	}
	if row.Date != "05/03/2025" {
		t.Errorf("Date = %q", row.Date)
	}
	approx(t, "ventas", row.Concepts[LabelVentas], 100)
}

func TestExtractDeduplicatesBlocks(t *testing.T) {
	// The same block matches both the net anchor and the sales anchor; it
	// must land in DailyRows once.
	text := "VENTAS C/DESCUENTO CONTADO $ 100,00\nIMPORTE NETO DE PAGOS $ 95,00\n"
	tot := Extract([]Page{{Text: text}}, "liq.pdf", discard())
	if len(tot.DailyRows) != 1 {
		t.Errorf("got %d daily rows, want 1", len(tot.DailyRows))
	}
}

func TestHeaderAmounts(t *testing.T) {
	text := "Total presentado $ 1.234.567,89\nNeto de pagos $ 1.100.000,00\n"
	tot := Extract([]Page{{Text: text}}, "liq.pdf", discard())

	if !tot.HasTotalPresentado || !tot.HasNetoHeader {
		t.Fatal("header totals not extracted")
	}
	approx(t, "TotalPresentado", tot.TotalPresentado, 1234567.89)
	approx(t, "NetoHeader", tot.NetoHeader, 1100000)
	if tot.HeaderAmbiguous {
		t.Error("two distinct values should not be ambiguous")
	}
}

func TestHeaderAmbiguous(t *testing.T) {
	text := "Total presentado 1.000,00 900,00 800,00\n"
	tot := Extract([]Page{{Text: text}}, "liq.pdf", discard())

	if !tot.HeaderAmbiguous {
		t.Error("three distinct header amounts should flag ambiguity")
	}
	approx(t, "TotalPresentado", tot.TotalPresentado, 1000)
	approx(t, "NetoHeader", tot.NetoHeader, 900)
}

func TestFilterDailyRows(t *testing.T) {
	full := DailyRow{Concepts: map[string]float64{LabelVentas: 1000, LabelNeto: 939.50, LabelArancel: 50}}
	partial := DailyRow{Concepts: map[string]float64{LabelVentas: 500}}

	tot := &Totals{TotalPresentado: 1000, HasTotalPresentado: true, NetoHeader: 939.50, HasNetoHeader: true}

	got := FilterDailyRows([]DailyRow{full, partial}, tot, discard())
	if len(got) != 1 {
		t.Fatalf("got %d rows, want 1 (partial filtered)", len(got))
	}

	// Filtering that does not restore agreement keeps the unfiltered set.
	tot2 := &Totals{TotalPresentado: 5000, HasTotalPresentado: true}
	got2 := FilterDailyRows([]DailyRow{full, partial}, tot2, discard())
	if len(got2) != 2 {
		t.Errorf("got %d rows, want 2 (filter not applied)", len(got2))
	}

	// Agreement within tolerance: untouched.
	got3 := FilterDailyRows([]DailyRow{full}, tot, discard())
	if len(got3) != 1 {
		t.Errorf("got %d rows, want 1", len(got3))
	}
}

func TestExtractDesglose(t *testing.T) {
	text := strings.Join([]string{
		"BANCO PATAGONIA S.A.",
		"DESGLOSE DE DESCUENTOS",
		"ARANCEL TJ.CREDITO $ 120,00",
		"IVA 21% $ 25,20",
		"COMISION QR",
		"TASA % $ 10,00",
		"U$S ARANCEL $ 5,00",
		"____",
		"ARANCEL FUERA $ 99,00",
	}, "\n")

	tot := Extract([]Page{{Text: text}}, "patagonia_2025-03-31.pdf", discard())

	if !tot.BankPatagonia {
		t.Fatal("BankPatagonia not detected")
	}
	labels := make([]string, 0, len(tot.Desglose))
	for _, it := range tot.Desglose {
		labels = append(labels, it.Label)
	}
	joined := strings.Join(labels, ";")
	if !strings.Contains(joined, "ARANCEL TJ.CREDITO") {
		t.Errorf("missing arancel item: %v", labels)
	}
	if !strings.Contains(joined, "COMISION QR") {
		t.Errorf("pending label not applied to rate line: %v", labels)
	}
	if strings.Contains(joined, "ARANCEL FUERA") {
		t.Errorf("items past the separator must be ignored: %v", labels)
	}
	for _, it := range tot.Desglose {
		if strings.Contains(it.Label, "U$S") {
			t.Errorf("dollar line not skipped: %v", it)
		}
	}
	// Patagonia period falls back to the filename date.
	if tot.Period == "" {
		t.Error("period should fall back to filename for Patagonia")
	}
}

func TestDesgloseBaseImponibleDropsDuplicates(t *testing.T) {
	text := strings.Join([]string{
		"BANCO PATAGONIA",
		"DESGLOSE DE DESCUENTOS",
		"ARANCEL TJ.CREDITO $ 120,00",
		"BASE IMPONIBLE IVA $ 120,00",
		"IVA 21% $ 25,20",
	}, "\n")

	tot := Extract([]Page{{Text: text}}, "pata.pdf", discard())
	for _, it := range tot.Desglose {
		if strings.Contains(it.Label, "ARANCEL TJ.C") {
			t.Errorf("duplicate arancel should be dropped when base imponible present: %v", tot.Desglose)
		}
	}
}

func TestPeriodDate(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"MARZO 2025", "31-03-2025"},
		{"FEBRERO 2024", "29-02-2024"},
		{"28/02/2025", "28-02-2025"},
		{"03/2025", "31-03-2025"},
		{"", ""},
		{"SIN FORMATO", "SIN FORMATO"},
	}
	for _, tt := range tests {
		if got := PeriodDate(tt.in); got != tt.want {
			t.Errorf("PeriodDate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTotalsFromDailyRows(t *testing.T) {
	rows := []DailyRow{
		{Concepts: map[string]float64{LabelVentas: 600, LabelNeto: 570}},
		{Concepts: map[string]float64{LabelVentas: 400, LabelNeto: 380}},
	}
	agg := TotalsFromDailyRows(rows)
	approx(t, "ventas", agg[LabelVentas], 1000)
	approx(t, "neto", agg[LabelNeto], 950)
}
