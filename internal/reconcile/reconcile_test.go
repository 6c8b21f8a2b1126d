package reconcile

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/alfanetac/liqreader/internal/numtext"
	"github.com/alfanetac/liqreader/internal/statement"
)

func discard() zerolog.Logger {
	return zerolog.Nop()
}

// ledgerSum adds up every amount after the CONCEPTO|IMPORTE line.
func ledgerSum(t *testing.T, out string) float64 {
	t.Helper()
	sum := 0.0
	seen := false
	for _, ln := range strings.Split(out, "\n") {
		if ln == "CONCEPTO|IMPORTE" {
			seen = true
			continue
		}
		if !seen || !strings.Contains(ln, "|") {
			continue
		}
		_, amount, _ := strings.Cut(ln, "|")
		sum += numtext.ParseNumber(amount)
	}
	if !seen {
		t.Fatalf("no CONCEPTO|IMPORTE header in output:\n%s", out)
	}
	return sum
}

func wantLine(t *testing.T, out, line string) {
	t.Helper()
	if !strings.Contains(out, line+"\n") {
		t.Errorf("output missing line %q:\n%s", line, out)
	}
}

func TestApplyAggregateOverrides(t *testing.T) {
	tot := &statement.Totals{
		HasDaily:   true,
		VentasSum:  1000,
		ArancelSum: 50,
		IVASum:     10.50,
		NetoSum:    939.50,
	}

	out := Apply("VENTA DEL DIA|999,99\n", tot, discard())

	wantLine(t, out, "TARJETA|1000.00")
	wantLine(t, out, "GASTO|-50.00")
	wantLine(t, out, "IVA_CREDITO|-10.50")
	wantLine(t, out, "BANCO|-939.50")
	wantLine(t, out, "OTROS|0.00")
	if s := ledgerSum(t, out); math.Abs(s) > 0.005 {
		t.Errorf("ledger sum = %v, want 0", s)
	}
}

func TestApplyRecomputesVATFromFee(t *testing.T) {
	// The running sum picked up the 21,00% rate token instead of the amount.
	tot := &statement.Totals{
		HasDaily:   true,
		VentasSum:  1000,
		ArancelSum: 50,
		IVASum:     21,
		NetoSum:    939.50,
	}

	out := Apply("", tot, discard())

	wantLine(t, out, "IVA_CREDITO|-10.50")
	if s := ledgerSum(t, out); math.Abs(s) > 0.005 {
		t.Errorf("ledger sum = %v, want 0", s)
	}
}

func TestApplyResidualBalancesLedger(t *testing.T) {
	// Net missing: BANCO falls back to sale minus charges, but with an
	// unexplained gap OTROS must absorb the difference.
	tot := &statement.Totals{
		HasDaily:           true,
		VentasSum:          1000,
		ArancelSum:         50,
		IVASum:             10.50,
		NetoSum:            930, // does not match 1000 - 60.50
		HasTotalPresentado: true,
		TotalPresentado:    1000,
	}

	out := Apply("", tot, discard())

	wantLine(t, out, "BANCO|-930.00")
	wantLine(t, out, "OTROS|-9.50")
	if s := ledgerSum(t, out); math.Abs(s) > 0.005 {
		t.Errorf("ledger sum = %v, want 0", s)
	}
}

func TestApplyPatagoniaDesglose(t *testing.T) {
	tot := &statement.Totals{
		BankPatagonia:      true,
		BankName:           "BANCO PATAGONIA S.A.",
		HasTotalPresentado: true,
		TotalPresentado:    1000,
		HasSaldo:           true,
		Saldo:              854.80,
		Desglose: []statement.DesgloseItem{
			{Label: "ARANCEL TJ.CREDITO", Amount: 120},
			{Label: "IVA", Amount: 25.20},
		},
	}

	out := Apply("IGNORED|1,00\n", tot, discard())

	wantLine(t, out, "TOTAL PRESENTADO|1000.00")
	wantLine(t, out, "ARANCEL TJ.CREDITO|-120.00")
	wantLine(t, out, "IVA|-25.20")
	wantLine(t, out, "SALDO|-854.80")
	if s := ledgerSum(t, out); math.Abs(s) > 0.005 {
		t.Errorf("ledger sum = %v, want 0", s)
	}
}

func TestApplyNacionDailyColumns(t *testing.T) {
	tot := &statement.Totals{
		BankNacion: true,
		BankName:   "BANCO DE LA NACION ARGENTINA",
		DailyRows: []statement.DailyRow{
			{Concepts: map[string]float64{
				statement.LabelVentas:  600,
				statement.LabelArancel: 30,
				statement.LabelNeto:    570,
			}},
			{Concepts: map[string]float64{
				statement.LabelVentas:  400,
				statement.LabelArancel: 20,
				statement.LabelNeto:    380,
			}},
		},
	}

	out := Apply("", tot, discard())

	wantLine(t, out, statement.LabelVentas+"|1000.00")
	wantLine(t, out, statement.LabelArancel+"|-50.00")
	wantLine(t, out, statement.LabelNeto+"|-950.00")
	if s := ledgerSum(t, out); math.Abs(s) > 0.005 {
		t.Errorf("ledger sum = %v, want 0", s)
	}
}

func TestApplyNacionHeaderNetWins(t *testing.T) {
	tot := &statement.Totals{
		BankNacion:    true,
		HasNetoHeader: true,
		NetoHeader:    940, // computed net is 950; header wins, sales rebalance
		DailyRows: []statement.DailyRow{
			{Concepts: map[string]float64{
				statement.LabelVentas:  1000,
				statement.LabelArancel: 50,
				statement.LabelNeto:    950,
			}},
		},
	}

	out := Apply("", tot, discard())

	wantLine(t, out, statement.LabelNeto+"|-940.00")
	wantLine(t, out, statement.LabelVentas+"|990.00")
	if s := ledgerSum(t, out); math.Abs(s) > 0.005 {
		t.Errorf("ledger sum = %v, want 0", s)
	}
}

func TestApplyPassthrough(t *testing.T) {
	oracle := "ALGO|123,45\nOTRA COSA|-1,00\n"
	out := Apply(oracle, &statement.Totals{}, discard())

	if !strings.HasSuffix(out, "CONCEPTO|IMPORTE\n"+oracle) {
		t.Errorf("oracle text must pass through untouched:\n%s", out)
	}
}

func TestBuildHeader(t *testing.T) {
	tot := &statement.Totals{
		BankName: "BANCO DE LA NACION ARGENTINA",
		CardName: "TARJETA MASTERCARD",
		Period:   "MARZO 2025",
	}
	got := BuildHeader(tot)
	want := "BANCO DE LA NACION ARGENTINA\n" +
		"TARJETA MASTERCARD\n" +
		"31-03-2025\n" +
		"LIQ 31-03-2025 TARJETA MASTERCARD BANCO NACION\n" +
		"CONCEPTO|IMPORTE\n"
	if got != want {
		t.Errorf("BuildHeader:\ngot  %q\nwant %q", got, want)
	}
}

func TestBuildHeaderTruncatesConcept(t *testing.T) {
	tot := &statement.Totals{
		BankName: "BANCO CON UN NOMBRE EXTREMADAMENTE LARGO DE VERDAD",
		CardName: "TARJETA DE CREDITO INTERNACIONAL PLATINO",
		Period:   "28/02/2025",
	}
	lines := strings.Split(BuildHeader(tot), "\n")
	concept := lines[3]
	if len(concept) > 50 {
		t.Errorf("concept %q exceeds 50 chars", concept)
	}
	if !strings.HasPrefix(concept, "LIQ 28-02-2025") {
		t.Errorf("concept %q should start with LIQ and the period date", concept)
	}
	// "TARJETA DE " is stripped from the card short form.
	if strings.Contains(concept, "TARJETA DE ") {
		t.Errorf("concept %q should not keep the TARJETA DE prefix", concept)
	}
}

func TestWriteControlTable(t *testing.T) {
	rows := []statement.DailyRow{
		{Concepts: map[string]float64{
			statement.LabelVentas:  600,
			statement.LabelArancel: 30,
			statement.LabelNeto:    570,
		}},
		{Concepts: map[string]float64{
			statement.LabelVentas:  400,
			statement.LabelArancel: 25,
			statement.LabelNeto:    380,
		}},
	}

	var buf bytes.Buffer
	if err := WriteControlTable(&buf, rows); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want header + 2 rows + total:\n%s", len(lines), buf.String())
	}
	if lines[0] != "LINEA\t"+statement.LabelVentas+"\t"+statement.LabelArancel+"\t"+statement.LabelNeto+"\tSUMA_CARGOS\tCHECK" {
		t.Errorf("header = %q", lines[0])
	}
	// Row 1 balances exactly; row 2 is short by 5.
	if !strings.HasSuffix(lines[1], "\t30.00\t0.00") {
		t.Errorf("row 1 = %q, want cargos 30.00 check 0.00", lines[1])
	}
	if !strings.HasSuffix(lines[2], "\t25.00\t-5.00") {
		t.Errorf("row 2 = %q, want cargos 25.00 check -5.00", lines[2])
	}
	if !strings.HasPrefix(lines[3], "TOTAL\t1000.00\t55.00\t950.00\t55.00\t-5.00") {
		t.Errorf("total = %q", lines[3])
	}
}

func TestWriteControlTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteControlTable(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Errorf("empty rows should write nothing, got %q", buf.String())
	}
}

func TestWriteControlWorkbook(t *testing.T) {
	rows := []statement.DailyRow{
		{Concepts: map[string]float64{
			statement.LabelVentas: 100,
			statement.LabelNeto:   95,
		}},
	}
	path := t.TempDir() + "/control.xlsx"
	if err := WriteControlWorkbook(path, rows); err != nil {
		t.Fatal(err)
	}
}
