package reconcile

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/alfanetac/liqreader/internal/statement"
)

// controlColumns is the column order of the per-day control table. RETENCION
// IVA is absent on purpose: Banco Nación settlements never carry it as a
// daily column.
var controlColumns = []string{
	statement.LabelVentas,
	statement.LabelArancel,
	statement.LabelIVACred,
	statement.LabelRetIIBB,
	statement.LabelPercepIVA,
	"RETENCION GANANCIAS",
	statement.LabelNeto,
}

func controlCols(rows []statement.DailyRow) []string {
	colSet := make(map[string]bool)
	for _, r := range rows {
		for c := range r.Concepts {
			colSet[c] = true
		}
	}
	var cols []string
	for _, c := range controlColumns {
		if colSet[c] {
			cols = append(cols, c)
			delete(colSet, c)
		}
	}
	var rest []string
	for c := range colSet {
		rest = append(rest, c)
	}
	sort.Strings(rest)
	return append(cols, rest...)
}

// controlCells lays out the full control table including header and TOTAL
// row. CHECK is sale minus net-plus-charges and should read 0.00 on every
// line of a correctly parsed settlement.
func controlCells(rows []statement.DailyRow) [][]string {
	cols := controlCols(rows)

	header := append([]string{"LINEA"}, cols...)
	header = append(header, "SUMA_CARGOS", "CHECK")
	cells := [][]string{header}

	colTotals := make(map[string]float64, len(cols))
	totalCargos, totalCheck := 0.0, 0.0
	for i, r := range rows {
		rec := []string{fmt.Sprintf("%d", i+1)}
		ventas := r.Concepts[statement.LabelVentas]
		neto := r.Concepts[statement.LabelNeto]
		cargos := 0.0
		for _, c := range cols {
			v := r.Concepts[c]
			colTotals[c] += v
			rec = append(rec, fmt.Sprintf("%.2f", v))
			if c != statement.LabelVentas && c != statement.LabelNeto {
				cargos += v
			}
		}
		check := ventas - (neto + cargos)
		totalCargos += cargos
		totalCheck += check
		rec = append(rec, fmt.Sprintf("%.2f", cargos), fmt.Sprintf("%.2f", check))
		cells = append(cells, rec)
	}

	total := []string{"TOTAL"}
	for _, c := range cols {
		total = append(total, fmt.Sprintf("%.2f", colTotals[c]))
	}
	total = append(total, fmt.Sprintf("%.2f", totalCargos), fmt.Sprintf("%.2f", totalCheck))
	cells = append(cells, total)
	return cells
}

// WriteControlTable writes the tab-separated per-day control table.
func WriteControlTable(w io.Writer, rows []statement.DailyRow) error {
	if len(rows) == 0 {
		return nil
	}
	for _, rec := range controlCells(rows) {
		if _, err := fmt.Fprintln(w, strings.Join(rec, "\t")); err != nil {
			return fmt.Errorf("WriteControlTable: %w", err)
		}
	}
	return nil
}

// WriteControlWorkbook saves the same control table as an xlsx workbook for
// back-office review.
func WriteControlWorkbook(path string, rows []statement.DailyRow) error {
	if len(rows) == 0 {
		return nil
	}
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Control"
	f.SetSheetName(f.GetSheetName(0), sheet)
	for i, rec := range controlCells(rows) {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("WriteControlWorkbook: %w", err)
		}
		row := make([]interface{}, len(rec))
		for j, v := range rec {
			row[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("WriteControlWorkbook: set row %d: %w", i+1, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("WriteControlWorkbook: save %s: %w", path, err)
	}
	return nil
}
