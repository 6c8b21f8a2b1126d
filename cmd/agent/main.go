// Command agent processes a client folder: TARJETAS settlements and COMPRAS
// invoices, with idempotency markers, an advisory run lock, and optional
// cron-scheduled watch mode. Exit code 2 is reserved for configuration
// errors; per-file failures are reported in markers and the summary only.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alfanetac/liqreader/internal/agent"
	"github.com/alfanetac/liqreader/internal/config"
	"github.com/alfanetac/liqreader/internal/logger"
	"github.com/alfanetac/liqreader/internal/oracle"
	"github.com/alfanetac/liqreader/internal/reader"
	"github.com/alfanetac/liqreader/internal/routes"
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

	clientRoot := flag.String("client-root", "", "client folder (default: RUTA_CLIENTE)")
	force := flag.Bool("force", false, "reprocess files even with an OK marker")
	watch := flag.Bool("watch", false, "keep running on a cron schedule")
	schedule := flag.String("schedule", "*/5 * * * *", "cron schedule for --watch")
	configPath := flag.String("config", "", "optional YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error().Err(err).Msg("configuration error")
		os.Exit(2)
	}
	if *clientRoot != "" {
		cfg.ClientRoot = *clientRoot
	}
	if err := cfg.ValidateAgent(); err != nil {
		log.Error().Err(err).Msg("configuration error")
		os.Exit(2)
	}
	if err := cfg.ValidateOracle(); err != nil {
		log.Error().Err(err).Msg("configuration error")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	lookup := routes.New(ctx, cfg.RoutesDSN, cfg.DefaultClientID, log)
	defer lookup.Close(ctx)
	clientID := lookup.ClientID(ctx, cfg.ClientRoot)

	pipe := &reader.Pipeline{Cfg: cfg, Oracle: pickOracle(cfg)}
	runner := &agent.Runner{
		Cfg:      cfg,
		Tarjetas: pipe,
		Compras:  pipe,
		ClientID: clientID,
		Force:    *force,
	}

	runOnce := func() agent.Summary {
		sum, err := runner.Run(ctx)
		if err != nil {
			if errors.Is(err, agent.ErrLockHeld) {
				log.Info().Msg("another instance is running, nothing to do")
				return sum
			}
			log.Error().Err(err).Msg("run aborted")
			return sum
		}
		fmt.Printf("RUTA_CLIENTE: %s\nProcesados: %d\nSaltados: %d\nErrores: %d\n",
			cfg.ClientRoot, sum.Processed, sum.Skipped, sum.Errors)
		return sum
	}

	if *watch {
		if err := agent.Watch(ctx, *schedule, log, func() { runOnce() }); err != nil {
			log.Error().Err(err).Msg("configuration error")
			os.Exit(2)
		}
		return
	}
	runOnce()
}
