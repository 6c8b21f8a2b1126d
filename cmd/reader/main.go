// Command reader converts one settlement document (or a multi-page group)
// into its ledger text file. On success the only stdout line is the output
// path; everything else goes to stderr. Legacy consumers parse stdout, so
// keep it that way.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alfanetac/liqreader/internal/config"
	"github.com/alfanetac/liqreader/internal/logger"
	"github.com/alfanetac/liqreader/internal/oracle"
	"github.com/alfanetac/liqreader/internal/reader"
)

func pickOracle(cfg *config.Config) oracle.Oracle {
	if cfg.BackendEnabled() {
		return &oracle.Backend{
			BaseURL:      cfg.BackendURL,
			Route:        cfg.BackendRoute,
			ClientID:     cfg.OracleClient,
			ClientSecret: cfg.OracleSecret,
			Timeout:      cfg.OracleTimeout,
		}
	}
	return oracle.Gemini{}
}

func main() {
	log := logger.New()

	outdir := flag.String("outdir", "", "output directory (default: alongside the first input)")
	model := flag.String("model", "", "model identifier override")
	task := flag.String("task", "TARJETAS", "task label sent to the oracle")
	configPath := flag.String("config", "", "optional YAML configuration file")
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "ERROR: no input files")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
	if *model != "" {
		cfg.Model = *model
	}
	if err := cfg.ValidateOracle(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}

	outDir := *outdir
	if outDir == "" {
		outDir = filepath.Dir(files[0])
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}

	ctx := logger.WithContext(context.Background(), log)

	pipe := &reader.Pipeline{Cfg: cfg, Oracle: pickOracle(cfg)}
	output, err := pipe.Process(ctx, files, outDir, *task, cfg.DefaultClientID)
	if output != "" {
		fmt.Fprintln(os.Stderr, output)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(reader.OutputPath(outDir, files[0]))
}
