// SPDX-License-Identifier: MIT

// Command daemon runs the pagetap capture daemon: it serves the control
// API, accepts page bridge connections and coordinates capture sessions.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/pagetap/pagetap/internal/api"
	"github.com/pagetap/pagetap/internal/bridge"
	"github.com/pagetap/pagetap/internal/bus"
	"github.com/pagetap/pagetap/internal/config"
	"github.com/pagetap/pagetap/internal/controller"
	"github.com/pagetap/pagetap/internal/export"
	"github.com/pagetap/pagetap/internal/log"
	"github.com/pagetap/pagetap/internal/version"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	// Safe defaults until the config is loaded.
	log.Configure(log.Config{
		Level:   "info",
		Service: "pagetap",
		Version: version.Version,
	})
	logger := log.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.NewLoader(*configPath, version.Version).Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(log.FieldEvent, "config.load_failed").
			Str("config_path", *configPath).
			Msg("failed to load configuration")
	}

	log.Configure(log.Config{
		Level:   cfg.LogLevel,
		Service: "pagetap",
		Version: cfg.Version,
	})
	if *configPath != "" {
		logger.Info().
			Str(log.FieldEvent, "config.loaded").
			Str("source", "file").
			Str("path", *configPath).
			Msg("loaded configuration from file")
	} else {
		logger.Info().
			Str(log.FieldEvent, "config.loaded").
			Str("source", "env+defaults").
			Msg("loaded configuration from environment and defaults")
	}

	b := bus.NewMemoryBus()
	hub := bridge.NewHub(b, cfg.PollInterval, cfg.FlushInterval)

	var ctrlOpts []controller.Option
	if cfg.SpoolDir != "" {
		spooler, err := export.NewDirSpooler(cfg.SpoolDir)
		if err != nil {
			logger.Fatal().
				Err(err).
				Str(log.FieldPath, cfg.SpoolDir).
				Msg("failed to prepare spool directory")
		}
		ctrlOpts = append(ctrlOpts, controller.WithSpooler(spooler))
		logger.Info().Str(log.FieldPath, cfg.SpoolDir).Msg("artifact spooling enabled")
	}
	ctrl := controller.New(b, hub, ctrlOpts...)

	srv := api.New(cfg, ctrl, api.WithBridge(hub))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ctrl.Run(gctx) })
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return srv.ListenAndServe(gctx) })

	logger.Info().
		Str(log.FieldEvent, "daemon.started").
		Str("listen", cfg.ListenAddr).
		Msg("pagetap daemon started")

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("daemon exited with error")
		os.Exit(1)
	}
	logger.Info().Str(log.FieldEvent, "daemon.stopped").Msg("pagetap daemon stopped")
}
