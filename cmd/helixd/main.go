// Command helixd is the headless daemon that owns a live relay connection
// and runs one Coordinator: the engine's host process, and the natural
// attach point for a future UI process or integration test.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/n1/helix/internal/chunkstore"
	"github.com/n1/helix/internal/clock"
	"github.com/n1/helix/internal/config"
	"github.com/n1/helix/internal/coordinator"
	"github.com/n1/helix/internal/janitor"
	"github.com/n1/helix/internal/log"
	"github.com/n1/helix/internal/metrics"
	"github.com/n1/helix/internal/transport"
	"github.com/n1/helix/internal/uiadapter"
	"github.com/n1/helix/internal/vault"
)

func main() {
	cfg := config.Default()

	app := &cli.App{
		Name:  "helixd",
		Usage: "HeliX client engine daemon",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "relay",
				Aliases:     []string{"r"},
				Usage:       "WebSocket URL of the relay server",
				Value:       cfg.RelayURL,
				Destination: &cfg.RelayURL,
			},
			&cli.StringFlag{
				Name:        "vault",
				Aliases:     []string{"v"},
				Usage:       "Path to the local vault database",
				Value:       cfg.VaultPath,
				Destination: &cfg.VaultPath,
			},
			&cli.StringFlag{
				Name:        "download-dir",
				Usage:       "Directory assembled file transfers are written to",
				Value:       cfg.DownloadDir,
				Destination: &cfg.DownloadDir,
			},
			&cli.StringFlag{
				Name:        "metrics-addr",
				Usage:       "Listen address for the Prometheus /metrics endpoint",
				Value:       cfg.MetricsAddr,
				Destination: &cfg.MetricsAddr,
			},
			&cli.StringFlag{
				Name:  "identifier",
				Usage: "Identifier to register with the relay (defaults to the vault's last-used identifier)",
			},
			&cli.BoolFlag{
				Name:        "verbose",
				Usage:       "Enable debug logging",
				Destination: &cfg.Debug,
			},
		},
		Action: func(c *cli.Context) error {
			return run(cfg, c.String("identifier"))
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "helixd: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, identifier string) error {
	if cfg.Debug {
		log.SetLevel(zerolog.DebugLevel)
	}
	logger := log.Logger

	v, err := vault.Open(cfg.VaultPath)
	if err != nil {
		return fmt.Errorf("open vault: %w", err)
	}
	defer v.Close()

	if identifier == "" {
		identifier, err = v.LastIdentifier()
		if err != nil {
			return fmt.Errorf("read last identifier: %w", err)
		}
		if identifier == "" {
			return fmt.Errorf("no identifier given and none previously registered (use --identifier)")
		}
	}

	store, err := chunkstore.Open(cfg.VaultPath + ".chunks")
	if err != nil {
		return fmt.Errorf("open chunk store: %w", err)
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	ws := transport.NewWebSocket(cfg.RelayURL, logger)
	ui := uiadapter.NewLogUI(logger)

	co := coordinator.New(ws, ui, store, m, logger, clock.Real, cfg)
	defer co.Close()

	j, err := janitor.New(fmt.Sprintf("@every %s", cfg.JanitorInterval), store, co.LiveTransferIDs, logger)
	if err != nil {
		return fmt.Errorf("build janitor: %w", err)
	}
	j.Start()
	defer j.Stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		metricsSrv.Shutdown(ctx)
	}()

	if err := ws.Connect(); err != nil {
		return fmt.Errorf("connect to relay: %w", err)
	}
	if err := co.Register(identifier); err != nil {
		return fmt.Errorf("register %q: %w", identifier, err)
	}
	if err := v.SetLastIdentifier(identifier); err != nil {
		logger.Warn().Err(err).Msg("failed to persist last-used identifier")
	}

	logger.Info().Str("identifier", identifier).Str("relay", cfg.RelayURL).Msg("helixd running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("shutting down")
	return nil
}
