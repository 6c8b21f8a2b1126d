package reader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/alfanetac/liqreader/internal/concepts"
	"github.com/alfanetac/liqreader/internal/config"
	"github.com/alfanetac/liqreader/internal/oracle"
	"github.com/alfanetac/liqreader/internal/reconcile"
	"github.com/alfanetac/liqreader/internal/statement"
)

// BuildBlocksStep converts the input files into oracle content blocks,
// prompt first.
type BuildBlocksStep struct{}

func (s *BuildBlocksStep) Execute(ctx context.Context, state *State) error {
	state.Blocks = []oracle.ContentBlock{oracle.TextBlock(defaultPrompt)}
	for _, f := range state.Files {
		blocks, err := oracle.FileBlocks(f)
		if err != nil {
			return err
		}
		state.Blocks = append(state.Blocks, blocks...)
		state.note("Archivo: %s", f)
	}
	return nil
}

// LoadPagesStep reads the sidecar page dump next to each input file: the
// same name with a .txt extension, pages separated by form feeds. Scanned
// documents have no text layer and therefore no sidecar; that is fine, the
// deterministic extractor simply contributes nothing for them.
type LoadPagesStep struct{}

func sidecarPath(src string) string {
	return strings.TrimSuffix(src, filepath.Ext(src)) + ".txt"
}

func (s *LoadPagesStep) Execute(ctx context.Context, state *State) error {
	for _, f := range state.Files {
		data, err := os.ReadFile(sidecarPath(f))
		if err != nil {
			continue
		}
		pageTexts := strings.Split(string(data), "\f")
		for _, pt := range pageTexts {
			if strings.TrimSpace(pt) == "" {
				continue
			}
			state.Pages = append(state.Pages, statement.Page{Text: pt})
		}
	}
	// Each page sees the head of the next one so blocks split across page
	// breaks still parse.
	for i := range state.Pages {
		if i+1 < len(state.Pages) {
			state.Pages[i].NextHead = pageHead(state.Pages[i+1].Text)
		}
	}
	if len(state.Pages) > 0 {
		state.note("Texto de páginas: %d página(s)", len(state.Pages))
	}
	return nil
}

func pageHead(text string) string {
	lines := strings.SplitN(text, "\n", 6)
	if len(lines) > 5 {
		lines = lines[:5]
	}
	return strings.Join(lines, "\n")
}

// ExtractTotalsStep runs the deterministic statement extractor over the
// loaded pages.
type ExtractTotalsStep struct{}

func (s *ExtractTotalsStep) Execute(ctx context.Context, state *State) error {
	log := zerolog.Ctx(ctx)
	state.Totals = statement.Extract(state.Pages, filepath.Base(state.Files[0]), *log)
	if state.Totals.BankName != "" {
		state.note("Banco: %s", state.Totals.BankName)
	}
	if state.Totals.Period != "" {
		state.note("Período: %s", state.Totals.Period)
	}
	if state.Totals.HeaderAmbiguous {
		state.note("AVISO: encabezado ambiguo, revisar manualmente")
	}
	return nil
}

// CallOracleStep sends the blocks to the extraction oracle. Requests
// rejected for size retry attachment by attachment.
type CallOracleStep struct {
	Oracle oracle.Oracle
	Cfg    *config.Config
}

func isRequestTooLarge(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "request too large") ||
		strings.Contains(msg, "tokens per min") ||
		(strings.Contains(msg, "rate_limit_exceeded") && strings.Contains(msg, "requested"))
}

func (s *CallOracleStep) request(blocks []oracle.ContentBlock, state *State) oracle.Request {
	return oracle.Request{
		Blocks:        blocks,
		Model:         s.Cfg.Model,
		MaxOutputToks: s.Cfg.MaxOutputToks,
		Task:          state.Task,
		ClientID:      strconv.Itoa(state.ClientID),
	}
}

func (s *CallOracleStep) Execute(ctx context.Context, state *State) error {
	callCtx, cancel := context.WithTimeout(ctx, s.Cfg.OracleTimeout)
	defer cancel()

	out, err := s.Oracle.Extract(callCtx, s.request(state.Blocks, state))
	if err != nil && isRequestTooLarge(err) {
		state.note("Documento grande detectado. Reintentando por archivo...")
		zerolog.Ctx(ctx).Warn().Err(err).Msg("request too large, retrying per attachment")

		var parts []string
		for _, f := range state.Files {
			blocks, berr := oracle.FileBlocks(f)
			if berr != nil {
				return berr
			}
			unit := append([]oracle.ContentBlock{oracle.TextBlock(defaultPrompt)}, blocks...)
			// Each attachment gets the full timeout, not the remainder of
			// the failed combined call.
			unitCtx, unitCancel := context.WithTimeout(ctx, s.Cfg.OracleTimeout)
			text, uerr := s.Oracle.Extract(unitCtx, s.request(unit, state))
			unitCancel()
			if uerr != nil {
				return uerr
			}
			if strings.TrimSpace(text) != "" {
				parts = append(parts, text)
			}
		}
		out, err = strings.Join(parts, "\n"), nil
	}
	if err != nil {
		return err
	}
	state.OracleText = out
	return nil
}

// ReconcileStep summarizes the oracle lines into the canonical categories
// and applies the deterministic overrides.
type ReconcileStep struct{}

func (s *ReconcileStep) Execute(ctx context.Context, state *State) error {
	summary := concepts.SummarizeText(state.OracleText)
	state.Ledger = reconcile.Apply(summary, state.Totals, *zerolog.Ctx(ctx))
	return nil
}

// WriteOutputStep writes the final ledger file.
type WriteOutputStep struct{}

func (s *WriteOutputStep) Execute(ctx context.Context, state *State) error {
	state.OutPath = OutputPath(state.OutDir, state.Files[0])
	content := strings.TrimSpace(state.Ledger) + "\n"
	if err := os.WriteFile(state.OutPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("WriteOutputStep: %w", err)
	}
	state.note("Salida generada: %s", state.OutPath)
	return nil
}

// WriteControlStep emits the per-day control table for Banco Nación
// settlements: a TSV for the legacy consumer plus an xlsx for people. Both
// are audit artifacts; failures are logged, never fatal.
type WriteControlStep struct{}

func (s *WriteControlStep) Execute(ctx context.Context, state *State) error {
	if !state.Totals.BankNacion || len(state.Totals.DailyRows) == 0 {
		return nil
	}
	log := zerolog.Ctx(ctx)
	// The control files show the full reconstruction, including rows the
	// consistency filter drops from the ledger, so operators can audit them.
	rows := state.Totals.DailyRows

	tsvPath := filepath.Join(state.OutDir, state.stem()+".xls")
	f, err := os.Create(tsvPath)
	if err != nil {
		log.Warn().Err(err).Msg("could not create control table")
		return nil
	}
	werr := reconcile.WriteControlTable(f, rows)
	cerr := f.Close()
	if werr != nil || cerr != nil {
		log.Warn().AnErr("write", werr).AnErr("close", cerr).Msg("control table not written")
		return nil
	}
	state.note("Control diario generado: %s", tsvPath)

	xlsxPath := filepath.Join(state.OutDir, state.stem()+".xlsx")
	if err := reconcile.WriteControlWorkbook(xlsxPath, rows); err != nil {
		log.Warn().Err(err).Msg("control workbook not written")
		return nil
	}
	state.note("Control diario (xlsx) generado: %s", xlsxPath)
	return nil
}
