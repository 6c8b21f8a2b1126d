// Package reader turns one document unit (a statement PDF or scan, possibly
// multi-file) into the final ledger text file. It drives the extraction
// oracle, the deterministic statement extractor, and the reconciliation
// engine as a fixed sequence of pipeline steps.
package reader

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/alfanetac/liqreader/internal/config"
	"github.com/alfanetac/liqreader/internal/oracle"
	"github.com/alfanetac/liqreader/internal/statement"
)

const defaultPrompt = `Vas a analizar una liquidación de tarjeta (débito o crédito) con varias páginas.

Objetivo: devolver SOLO texto con 2 columnas: CONCEPTO|TOTAL

Reglas clave:
- La primer línea es el TOTAL PRESENTADO (importe positivo).
- La línea BANCO es el NETO DE PAGOS / NETO A COBRAR / IMPORTE NETO / A ACREDITAR / LIQUIDADO / ACREDITADO.
- Todas las demás líneas son importes negativos.
- La suma de TODAS las líneas debe ser 0 (cero). Si faltan conceptos, completar con 0 o ajustar OTROS para cerrar.

Cómo identificar montos (buscar sinónimos, ignorar ubicación):
- TOTAL PRESENTADO: "Total presentado", "Total liquidación", "Total liq. tarjeta", "Importe total".
- BANCO: "Neto de pagos", "Neto a cobrar", "Importe neto", "A acreditar", "Total liquidado", "A depositar", "Acreditado".
- GASTO: "Arancel", "Comisión", "Gastos", "Cargo".
- IVA CREDITO: "IVA créd.", "IVA crédito fiscal", "IVA s/arancel".
- RET IVA: "Retención IVA", "Percepción IVA", "R.G. 2408".
- RET IIBB: "Retención IIBB", "Ingresos Brutos", "SIRTAC", "IIBB".
- RET GAN: "Retención Ganancias", "RG 830".
- OTROS: cualquier ajuste o concepto no clasificado.

Validaciones:
- Si BANCO es mayor que TARJETA y no hay explicación, revisá si están invertidos.
- Si no encontrás un concepto, poné 0.
- Asegurá que la suma total sea 0 (ajustar OTROS si hace falta).

Formato de salida OBLIGATORIO:
CONCEPTO|TOTAL
`

// Step is a single stage of the reader pipeline.
type Step interface {
	Execute(ctx context.Context, state *State) error
}

// State is the shared state flowing through the pipeline steps.
type State struct {
	Files    []string
	OutDir   string
	Task     string
	ClientID int

	Blocks     []oracle.ContentBlock
	Pages      []statement.Page
	Totals     *statement.Totals
	OracleText string
	Ledger     string
	OutPath    string

	notes []string
}

// note records a progress line for the caller's marker body.
func (s *State) note(format string, args ...any) {
	s.notes = append(s.notes, fmt.Sprintf(format, args...))
}

// stem is the output basename: the first input file without its extension.
func (s *State) stem() string {
	base := filepath.Base(s.Files[0])
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Pipeline processes document units with a fixed oracle and configuration.
// It implements agent.Reader.
type Pipeline struct {
	Cfg    *config.Config
	Oracle oracle.Oracle
}

func (p *Pipeline) steps() []Step {
	return []Step{
		&BuildBlocksStep{},
		&LoadPagesStep{},
		&ExtractTotalsStep{},
		&CallOracleStep{Oracle: p.Oracle, Cfg: p.Cfg},
		&ReconcileStep{},
		&WriteOutputStep{},
		&WriteControlStep{},
	}
}

// Process runs the full pipeline for one unit and returns the captured
// progress output. On success the last line is the output path.
func (p *Pipeline) Process(ctx context.Context, files []string, outDir, task string, clientID int) (string, error) {
	if len(files) == 0 {
		return "", fmt.Errorf("reader.Process: no input files")
	}
	state := &State{
		Files:    files,
		OutDir:   outDir,
		Task:     task,
		ClientID: clientID,
	}

	log := zerolog.Ctx(ctx).With().Str("file", filepath.Base(files[0])).Logger()
	ctx = log.WithContext(ctx)

	for _, step := range p.steps() {
		if err := step.Execute(ctx, state); err != nil {
			return strings.Join(state.notes, "\n"), fmt.Errorf("reader.Process: %w", err)
		}
	}
	return strings.Join(state.notes, "\n"), nil
}

// OutputPath returns where Process wrote (or would write) the ledger for
// these inputs.
func OutputPath(outDir, firstFile string) string {
	base := filepath.Base(firstFile)
	return filepath.Join(outDir, strings.TrimSuffix(base, filepath.Ext(base))+".txt")
}
